package imposter

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oriys/rift/internal/behavior"
	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/logging"
	"github.com/oriys/rift/internal/recording"
)

var hopByHopHeaders = []string{"Transfer-Encoding", "Connection", "Keep-Alive"}

// materializeProxy forwards req to cfg.To, honoring the response's proxy
// mode: proxyTransparent never records, proxyOnce records the first
// observation per signature and replays it thereafter, proxyAlways
// appends every observation. A per-response recording.Store keeps modes
// and predicate generators independent across Proxy responses in the same
// imposter.
func (rt *Runtime) materializeProxy(w http.ResponseWriter, r *http.Request, req *domain.Request, key string, cfg *domain.ProxyConfig) bool {
	mode := cfg.Mode
	if mode == "" {
		mode = domain.ProxyOnce
	}
	store := rt.proxies.storeFor(key, mode)
	sig := recording.Signature(req, cfg.PredicateGenerators)

	if !store.ShouldProxy(sig) {
		if recorded, ok := store.GetRecorded(sig); ok {
			writeRecordedResponse(w, recorded)
			return true
		}
	}

	upstreamURL := strings.TrimSuffix(cfg.To, "/") + req.Path
	if req.RawQuery != "" {
		upstreamURL += "?" + req.RawQuery
	}

	outReq, err := http.NewRequestWithContext(r.Context(), req.Method, upstreamURL, bytes.NewReader([]byte(req.Body)))
	if err != nil {
		writeDiagnostic500(w, err)
		return false
	}
	outReq.Header = req.Headers.Clone()

	start := time.Now()
	resp, err := rt.httpClient.Do(outReq)
	if err != nil {
		http.Error(w, `{"error":"upstream proxy request failed"}`, http.StatusBadGateway)
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
	store.Record(sig, recorded)

	if cfg.Decorate != "" {
		view := &behavior.ResponseView{StatusCode: recorded.Status, Body: string(body)}
		if err := behavior.Decorate(cfg.Decorate, req, view); err != nil {
			logging.Op().Warn("proxy decorate failed", "error", err)
		} else {
			recorded.Status = view.StatusCode
			if s, ok := view.Body.(string); ok {
				recorded.Body = []byte(s)
			}
		}
	}

	writeRecordedResponse(w, recorded)
	return true
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

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}
