package proxy

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/oriys/rift/internal/config"
	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/flowstore"
	"github.com/oriys/rift/internal/scriptpool"
)

func newTestHandler(t *testing.T, cfg *config.Config) *Handler {
	t.Helper()
	pool := scriptpool.New(scriptpool.Config{Workers: 2, QueueSize: 8, JobTimeout: time.Second})
	pool.Start()
	t.Cleanup(pool.Stop)
	h, err := New(cfg, pool, flowstore.NewNoopStore(), &http.Client{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func TestHandlerForwardsCleanRequestsWithNoFaultConfigured(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello from upstream"))
	}))
	defer upstream.Close()

	cfg := config.DefaultConfig()
	cfg.Upstream = upstream.URL
	h := newTestHandler(t, cfg)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/anything", nil)
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK || rec.Body.String() != "hello from upstream" {
		t.Fatalf("got status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestHandlerAppliesErrorFaultInsteadOfForwarding(t *testing.T) {
	var upstreamHit bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHit = true
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	cfg := config.DefaultConfig()
	cfg.Upstream = upstream.URL
	cfg.Rules = []domain.Rule{
		{
			ID:    "always-503",
			Match: domain.MatchConfig{Path: domain.PathMatch{Prefix: "/"}},
			Fault: domain.FaultConfig{
				Error: &domain.ErrorFault{Probability: 1.0, Status: 503, Body: `{"error":"injected"}`},
			},
		},
	}
	h := newTestHandler(t, cfg)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/anything", nil)
	h.ServeHTTP(rec, r)

	if rec.Code != 503 {
		t.Fatalf("got status %d, want 503", rec.Code)
	}
	if upstreamHit {
		t.Fatal("upstream should not have been hit when an error fault matched")
	}
}

func TestHandlerAppliesLatencyFaultThenForwards(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	cfg := config.DefaultConfig()
	cfg.Upstream = upstream.URL
	cfg.Rules = []domain.Rule{
		{
			ID:    "slow",
			Match: domain.MatchConfig{Path: domain.PathMatch{Prefix: "/"}},
			Fault: domain.FaultConfig{
				Latency: &domain.LatencyFault{Probability: 1.0, MinMs: 5, MaxMs: 5},
			},
		},
	}
	h := newTestHandler(t, cfg)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/anything", nil)
	start := time.Now()
	h.ServeHTTP(rec, r)
	elapsed := time.Since(start)

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("got status %d body %q", rec.Code, rec.Body.String())
	}
	if elapsed < 5*time.Millisecond {
		t.Fatalf("expected at least 5ms of injected latency, got %v", elapsed)
	}
}

func TestHandlerScriptRuleTakesPrecedenceOverRuleMatch(t *testing.T) {
	var upstreamHit bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHit = true
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	cfg := config.DefaultConfig()
	cfg.Upstream = upstream.URL
	cfg.Rules = []domain.Rule{
		{
			ID:    "rule-latency",
			Match: domain.MatchConfig{Path: domain.PathMatch{Prefix: "/"}},
			Fault: domain.FaultConfig{Latency: &domain.LatencyFault{Probability: 1.0, MinMs: 1, MaxMs: 1}},
		},
	}
	cfg.ScriptRules = []domain.ScriptRule{
		{
			ID:     "script-error",
			Engine: "javascript",
			Script: `function should_inject(request, flow) { return {inject: true, fault: "error", status: 500, body: "script wins"}; }`,
			Match:  domain.MatchConfig{Path: domain.PathMatch{Prefix: "/"}},
		},
	}
	h := newTestHandler(t, cfg)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/anything", nil)
	h.ServeHTTP(rec, r)

	if rec.Code != 500 || rec.Body.String() != "script wins" {
		t.Fatalf("got status %d body %q, want script-sourced 500", rec.Code, rec.Body.String())
	}
	if upstreamHit {
		t.Fatal("upstream should not have been hit when a script fault matched")
	}
}

func TestHandlerRecordsAndReplaysInProxyOnceMode(t *testing.T) {
	var hits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("recorded once"))
	}))
	defer upstream.Close()

	cfg := config.DefaultConfig()
	cfg.Upstream = upstream.URL
	cfg.Recording.Mode = string(domain.ProxyOnce)
	h := newTestHandler(t, cfg)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/replay-me", nil)
		h.ServeHTTP(rec, r)
		if rec.Code != http.StatusCreated || rec.Body.String() != "recorded once" {
			t.Fatalf("request %d: got status %d body %q", i, rec.Code, rec.Body.String())
		}
	}
	if hits != 1 {
		t.Fatalf("got %d upstream hits, want exactly 1 in ProxyOnce mode", hits)
	}
}

func TestHandlerReloadSwapsRulesWithoutRace(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("clean"))
	}))
	defer upstream.Close()

	cfg := config.DefaultConfig()
	cfg.Upstream = upstream.URL
	h := newTestHandler(t, cfg)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/anything", nil)
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK || rec.Body.String() != "clean" {
		t.Fatalf("before reload: got status %d body %q", rec.Code, rec.Body.String())
	}

	reloaded := config.DefaultConfig()
	reloaded.Upstream = upstream.URL
	reloaded.Rules = []domain.Rule{
		{
			ID:    "reloaded-503",
			Match: domain.MatchConfig{Path: domain.PathMatch{Prefix: "/"}},
			Fault: domain.FaultConfig{
				Error: &domain.ErrorFault{Probability: 1.0, Status: 503, Body: `{"error":"reloaded"}`},
			},
		},
	}
	if err := h.Reload(reloaded); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	rec2 := httptest.NewRecorder()
	r2 := httptest.NewRequest(http.MethodGet, "/anything", nil)
	h.ServeHTTP(rec2, r2)
	if rec2.Code != 503 {
		t.Fatalf("after reload: got status %d, want 503", rec2.Code)
	}
}

func TestHandlerLoadPersistedStoreRestoresRecordings(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("recorded once"))
	}))
	defer upstream.Close()

	cfg := config.DefaultConfig()
	cfg.Upstream = upstream.URL
	cfg.Recording.Mode = string(domain.ProxyOnce)
	h := newTestHandler(t, cfg)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/replay-me", nil)
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusCreated {
		t.Fatalf("priming request: got status %d", rec.Code)
	}

	path := filepath.Join(t.TempDir(), "recordings.json")
	if err := h.Store().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	h2 := newTestHandler(t, cfg)
	if err := h2.LoadPersistedStore(path); err != nil {
		t.Fatalf("LoadPersistedStore: %v", err)
	}

	rec2 := httptest.NewRecorder()
	r2 := httptest.NewRequest(http.MethodGet, "/replay-me", nil)
	h2.ServeHTTP(rec2, r2)
	if rec2.Code != http.StatusCreated || rec2.Body.String() != "recorded once" {
		t.Fatalf("replay after restore: got status %d body %q", rec2.Code, rec2.Body.String())
	}

	if err := h2.LoadPersistedStore(""); err != nil {
		t.Fatalf("LoadPersistedStore with empty path should be a no-op: %v", err)
	}
}

func TestHandlerRoutesToNamedUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("billing"))
	}))
	defer upstream.Close()

	cfg := config.DefaultConfig()
	cfg.Upstream = "http://unused.invalid"
	cfg.Upstreams = map[string]string{"billing": upstream.URL}
	cfg.Routing = []config.RouteConfig{{Upstream: "billing", PathPrefix: "/billing"}}
	h := newTestHandler(t, cfg)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/billing/invoice", nil)
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK || rec.Body.String() != "billing" {
		t.Fatalf("got status %d body %q", rec.Code, rec.Body.String())
	}
}
