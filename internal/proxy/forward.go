package proxy

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/logging"
	"github.com/oriys/rift/internal/metrics"
	"github.com/oriys/rift/internal/observability"
)

var hopByHopHeaders = []string{"Transfer-Encoding", "Connection", "Keep-Alive"}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// forward proxies req to upstream. NewRequestFromHTTP has already read the
// whole request body into req.Body, so every mode sends that buffered
// copy upstream. In ProxyTransparent mode the response streams back
// unbuffered with no recording. In the recording modes the response is
// also buffered: a ProxyOnce replay hit serves the stored copy with a
// marker header, otherwise the live response is forwarded and recorded
// for future replay/export.
func (h *Handler) forward(ctx context.Context, w http.ResponseWriter, r *http.Request, req *domain.Request, sig domain.RequestSignature, upstream string) bool {
	_, span := observability.Tracer().Start(ctx, "proxy.forward")
	defer span.End()
	span.SetAttributes(attribute.String("rift.upstream", upstream))

	mode := h.store.Mode()
	if mode == domain.ProxyTransparent {
		r.Body = io.NopCloser(strings.NewReader(req.Body))
		return h.forwardTransparent(ctx, w, r, upstream)
	}

	if !h.store.ShouldProxy(sig) {
		if recorded, ok := h.store.GetRecorded(sig); ok {
			w.Header().Set("X-Rift-Replayed", "true")
			writeRecordedResponse(w, recorded)
			return true
		}
	}

	upstreamURL := strings.TrimSuffix(upstream, "/") + req.Path
	if req.RawQuery != "" {
		upstreamURL += "?" + req.RawQuery
	}

	outReq, err := http.NewRequestWithContext(ctx, req.Method, upstreamURL, bytes.NewReader([]byte(req.Body)))
	if err != nil {
		http.Error(w, `{"error":"failed building upstream request"}`, http.StatusBadGateway)
		return false
	}
	outReq.Header = req.Headers.Clone()

	start := time.Now()
	resp, err := h.httpClient.Do(outReq)
	if err != nil {
		logging.Op().Warn("upstream forward failed", "upstream", upstream, "error", err)
		http.Error(w, `{"error":"upstream request failed"}`, http.StatusBadGateway)
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, `{"error":"failed reading upstream response"}`, http.StatusBadGateway)
		return false
	}
	latency := time.Since(start)

	recorded := domain.RecordedResponse{
		Status:    resp.StatusCode,
		Headers:   map[string][]string(resp.Header),
		Body:      body,
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now(),
	}
	h.store.Record(sig, recorded)
	metrics.Global().SetRecordingStoreSize(h.store.Size())

	writeRecordedResponse(w, recorded)
	return resp.StatusCode < 500
}

// forwardTransparent sends r.Body (reset by forward to the buffered
// request body) upstream and streams the response back with no buffering
// and no recording, for the common case where the proxy is only injecting
// faults and not replaying responses.
func (h *Handler) forwardTransparent(ctx context.Context, w http.ResponseWriter, r *http.Request, upstream string) bool {
	upstreamURL := strings.TrimSuffix(upstream, "/") + r.URL.Path
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	outReq, err := http.NewRequestWithContext(ctx, r.Method, upstreamURL, r.Body)
	if err != nil {
		http.Error(w, `{"error":"failed building upstream request"}`, http.StatusBadGateway)
		return false
	}
	outReq.Header = r.Header.Clone()

	resp, err := h.httpClient.Do(outReq)
	if err != nil {
		logging.Op().Warn("upstream forward failed", "upstream", upstream, "error", err)
		http.Error(w, `{"error":"upstream request failed"}`, http.StatusBadGateway)
		return false
	}
	defer resp.Body.Close()

	header := w.Header()
	for name, values := range resp.Header {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			header.Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
	return resp.StatusCode < 500
}

func writeRecordedResponse(w http.ResponseWriter, resp domain.RecordedResponse) {
	header := w.Header()
	for name, values := range resp.Headers {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			header.Add(name, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

// randomTCPPayload returns n bytes of random data for the
// RandomDataThenClose TCP fault.
func randomTCPPayload(n int) []byte {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return buf
}
