package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oriys/rift/internal/config"
	"github.com/oriys/rift/internal/domain"
)

func newReq(t *testing.T, method, path, host string, headers map[string]string) *domain.Request {
	t.Helper()
	r := httptest.NewRequest(method, path, nil)
	if host != "" {
		r.Host = host
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	req, err := domain.NewRequestFromHTTP(r)
	if err != nil {
		t.Fatalf("NewRequestFromHTTP: %v", err)
	}
	return req
}

func TestRouterFirstMatchWinsOnPathPrefix(t *testing.T) {
	cfg := &config.Config{
		Upstream: "http://default.internal",
		Routing: []config.RouteConfig{
			{Upstream: "http://billing.internal", PathPrefix: "/billing"},
			{Upstream: "http://catchall.internal", PathPrefix: "/"},
		},
	}
	r, err := NewRouter(cfg)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	req := newReq(t, http.MethodGet, "/billing/invoices", "", nil)
	if got := r.Route(req); got != "http://billing.internal" {
		t.Fatalf("got upstream %q, want billing", got)
	}

	req2 := newReq(t, http.MethodGet, "/other", "", nil)
	if got := r.Route(req2); got != "http://catchall.internal" {
		t.Fatalf("got upstream %q, want catchall", got)
	}
}

func TestRouterFallsBackToDefaultUpstreamWhenNothingMatches(t *testing.T) {
	cfg := &config.Config{
		Upstream: "http://default.internal",
		Routing: []config.RouteConfig{
			{Upstream: "http://billing.internal", PathExact: "/billing"},
		},
	}
	r, err := NewRouter(cfg)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	req := newReq(t, http.MethodGet, "/unmatched", "", nil)
	if got := r.Route(req); got != "http://default.internal" {
		t.Fatalf("got upstream %q, want default", got)
	}
}

func TestRouterResolvesUpstreamByName(t *testing.T) {
	cfg := &config.Config{
		Upstreams: map[string]string{"billing": "http://billing.internal:8080"},
		Routing: []config.RouteConfig{
			{Upstream: "billing", PathPrefix: "/billing"},
		},
	}
	r, err := NewRouter(cfg)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	req := newReq(t, http.MethodGet, "/billing/x", "", nil)
	if got := r.Route(req); got != "http://billing.internal:8080" {
		t.Fatalf("got upstream %q, want resolved billing URL", got)
	}
}

func TestRouterMatchesHostWildcard(t *testing.T) {
	cfg := &config.Config{
		Upstream: "http://default.internal",
		Routing: []config.RouteConfig{
			{Upstream: "http://tenant.internal", Host: "*.tenants.example.com"},
		},
	}
	r, err := NewRouter(cfg)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	req := newReq(t, http.MethodGet, "/", "acme.tenants.example.com", nil)
	if got := r.Route(req); got != "http://tenant.internal" {
		t.Fatalf("got upstream %q, want tenant match", got)
	}

	req2 := newReq(t, http.MethodGet, "/", "tenants.example.com", nil)
	if got := r.Route(req2); got != "http://default.internal" {
		t.Fatalf("got upstream %q, want default (bare suffix doesn't match wildcard)", got)
	}
}

func TestRouterMatchesExactHost(t *testing.T) {
	cfg := &config.Config{
		Upstream: "http://default.internal",
		Routing: []config.RouteConfig{
			{Upstream: "http://api.internal", Host: "api.example.com"},
		},
	}
	r, err := NewRouter(cfg)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	req := newReq(t, http.MethodGet, "/", "api.example.com", nil)
	if got := r.Route(req); got != "http://api.internal" {
		t.Fatalf("got upstream %q, want api match", got)
	}
}

func TestRouterRequiresAllConfiguredHeaders(t *testing.T) {
	cfg := &config.Config{
		Upstream: "http://default.internal",
		Routing: []config.RouteConfig{
			{Upstream: "http://canary.internal", PathPrefix: "/", Headers: map[string]string{"X-Canary": "true"}},
		},
	}
	r, err := NewRouter(cfg)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	req := newReq(t, http.MethodGet, "/", "", map[string]string{"X-Canary": "true"})
	if got := r.Route(req); got != "http://canary.internal" {
		t.Fatalf("got upstream %q, want canary", got)
	}

	req2 := newReq(t, http.MethodGet, "/", "", nil)
	if got := r.Route(req2); got != "http://default.internal" {
		t.Fatalf("got upstream %q, want default without header", got)
	}
}

func TestRouterRejectsInvalidPathRegex(t *testing.T) {
	cfg := &config.Config{
		Routing: []config.RouteConfig{
			{Upstream: "http://x.internal", PathRegex: "("},
		},
	}
	if _, err := NewRouter(cfg); err == nil {
		t.Fatal("expected error compiling invalid regex")
	}
}
