package imposter

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/oriys/rift/internal/domain"
)

func proxyStub(to string, mode domain.ProxyMode) *domain.Stub {
	return &domain.Stub{
		Responses: []*domain.StubResponse{
			{Proxy: &domain.ProxyConfig{To: to, Mode: mode}},
		},
	}
}

func TestMaterializeProxyOnceForwardsOnceThenReplays(t *testing.T) {
	var hits int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("upstream body"))
	}))
	defer upstream.Close()

	imp := domain.NewImposter(0, domain.ProtocolHTTP)
	imp.SetStubs([]*domain.Stub{proxyStub(upstream.URL, domain.ProxyOnce)})
	rt := newTestRuntime(imp)

	for i := 0; i < 3; i++ {
		rec := doRequest(t, rt, http.MethodGet, "/passthrough")
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d: got status %d, want 201", i, rec.Code)
		}
		if rec.Body.String() != "upstream body" {
			t.Fatalf("request %d: got body %q", i, rec.Body.String())
		}
	}

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("upstream hit %d times, want exactly 1 (proxyOnce should replay)", got)
	}
}

func TestMaterializeProxyAlwaysForwardsEveryRequest(t *testing.T) {
	var hits int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	imp := domain.NewImposter(0, domain.ProtocolHTTP)
	imp.SetStubs([]*domain.Stub{proxyStub(upstream.URL, domain.ProxyAlways)})
	rt := newTestRuntime(imp)

	for i := 0; i < 3; i++ {
		doRequest(t, rt, http.MethodGet, "/passthrough")
	}

	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("upstream hit %d times, want 3 (proxyAlways forwards every request)", got)
	}
}

func TestMaterializeProxyStripsHopByHopHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Custom", "keep-me")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	imp := domain.NewImposter(0, domain.ProtocolHTTP)
	imp.SetStubs([]*domain.Stub{proxyStub(upstream.URL, domain.ProxyTransparent)})
	rt := newTestRuntime(imp)

	rec := doRequest(t, rt, http.MethodGet, "/x")
	if rec.Header().Get("Connection") != "" {
		t.Fatalf("Connection header leaked through: %q", rec.Header().Get("Connection"))
	}
	if rec.Header().Get("X-Custom") != "keep-me" {
		t.Fatalf("expected non-hop-by-hop header to survive")
	}
}

func TestIsHopByHopIsCaseInsensitive(t *testing.T) {
	if !isHopByHop("connection") {
		t.Fatalf("expected lowercase 'connection' to be treated as hop-by-hop")
	}
	if isHopByHop("X-Custom") {
		t.Fatalf("did not expect X-Custom to be treated as hop-by-hop")
	}
}
