// Package proxy implements the fault-injection proxy listener (C9): route
// selection, fault-rule and script-rule matching against the decision
// cache and script pool, fault application, and upstream forwarding with
// optional record/replay.
package proxy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oriys/rift/internal/config"
	"github.com/oriys/rift/internal/domain"
)

// compiledRoute pre-compiles a RouteConfig's path regex once at build time.
type compiledRoute struct {
	cfg       config.RouteConfig
	pathRegex *regexp.Regexp
}

// Router selects an upstream base URL for a request, first-match-wins
// over an ordered route list, falling back to the single configured
// default upstream when no route matches or none are configured.
type Router struct {
	routes          []compiledRoute
	upstreams       map[string]string
	defaultUpstream string
}

// NewRouter builds a Router from cfg.Routing/cfg.Upstreams/cfg.Upstream.
func NewRouter(cfg *config.Config) (*Router, error) {
	r := &Router{
		upstreams:       cfg.Upstreams,
		defaultUpstream: cfg.Upstream,
	}
	for _, rc := range cfg.Routing {
		cr := compiledRoute{cfg: rc}
		if rc.PathRegex != "" {
			re, err := regexp.Compile(rc.PathRegex)
			if err != nil {
				return nil, fmt.Errorf("proxy: route for upstream %q: compile path regex: %w", rc.Upstream, err)
			}
			cr.pathRegex = re
		}
		r.routes = append(r.routes, cr)
	}
	return r, nil
}

// Route returns the base URL a request should be forwarded to: the first
// matching route's upstream (resolved through cfg.Upstreams by name, or
// used directly if it's already a URL), or the default upstream.
func (r *Router) Route(req *domain.Request) string {
	for _, cr := range r.routes {
		if cr.matches(req) {
			return r.resolve(cr.cfg.Upstream)
		}
	}
	return r.resolve(r.defaultUpstream)
}

func (r *Router) resolve(name string) string {
	if url, ok := r.upstreams[name]; ok {
		return url
	}
	return name
}

func (cr *compiledRoute) matches(req *domain.Request) bool {
	rc := cr.cfg
	if rc.PathExact != "" && req.Path != rc.PathExact {
		return false
	}
	if rc.PathPrefix != "" && !strings.HasPrefix(req.Path, rc.PathPrefix) {
		return false
	}
	if rc.PathRegex != "" && !cr.pathRegex.MatchString(req.Path) {
		return false
	}
	if rc.Host != "" && !matchesHost(req.Host, rc.Host) {
		return false
	}
	for k, v := range rc.Headers {
		if !headerHasValue(req.Headers, k, v) {
			return false
		}
	}
	return true
}

// matchesHost supports an exact host or a "*.suffix" wildcard, matching
// only a single leftmost label per the documented host-matching contract.
func matchesHost(actual, want string) bool {
	if !strings.HasPrefix(want, "*.") {
		return strings.EqualFold(actual, want)
	}
	suffix := want[1:] // ".suffix"
	if len(actual) <= len(suffix) || !strings.HasSuffix(strings.ToLower(actual), strings.ToLower(suffix)) {
		return false
	}
	return !strings.Contains(actual[:len(actual)-len(suffix)], ".")
}

func headerHasValue(headers map[string][]string, name, want string) bool {
	for k, vals := range headers {
		if !strings.EqualFold(k, name) {
			continue
		}
		for _, v := range vals {
			if v == want {
				return true
			}
		}
	}
	return false
}
