// Package imposter implements the per-imposter request-handling pipeline
// (stub matching, response cycling, behavior/proxy/script/fault dispatch)
// and the manager that owns port allocation and the imposter registry.
package imposter

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/flowstore"
	"github.com/oriys/rift/internal/logging"
	"github.com/oriys/rift/internal/metrics"
	"github.com/oriys/rift/internal/predicate"
	"github.com/oriys/rift/internal/scriptpool"
)

// Runtime wraps a domain.Imposter with the machinery needed to serve
// requests against it: compiled predicates (cached by stub identity),
// per-response-variant recording stores for Proxy responses, the HTTP
// client used to reach proxy targets, and the script pool shared across
// every imposter in the process.
type Runtime struct {
	Imposter *domain.Imposter

	pool       *scriptpool.Pool
	flowStore  flowstore.Store
	httpClient *http.Client

	predicates *predicateCache
	proxies    *proxyRegistry
}

// NewRuntime builds a Runtime around imp, sharing pool/flowStore/client
// with every other imposter the manager owns.
func NewRuntime(imp *domain.Imposter, pool *scriptpool.Pool, flowStore flowstore.Store, httpClient *http.Client) *Runtime {
	return &Runtime{
		Imposter:   imp,
		pool:       pool,
		flowStore:  flowStore,
		httpClient: httpClient,
		predicates: newPredicateCache(),
		proxies:    newProxyRegistry(),
	}
}

// ServeHTTP is the per-imposter HTTP handler: CORS preflight short-circuit,
// disabled short-circuit, request capture, then the stub dispatch pipeline.
func (rt *Runtime) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	listener := strconv.Itoa(int(rt.Imposter.Port))

	if rt.Imposter.AllowCORS && r.Method == http.MethodOptions {
		if handleCORSPreflight(w, r) {
			return
		}
	}

	req, err := domain.NewRequestFromHTTP(r)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"failed to read request body: %v"}`, err), http.StatusBadRequest)
		return
	}

	if !rt.Imposter.Enabled {
		rt.writeDefault(w)
		metrics.Global().RecordRequest(listener, time.Since(start).Milliseconds(), true)
		return
	}

	if rt.Imposter.RecordRequests {
		rt.Imposter.CaptureRequest(domain.RecordedRequest{
			Method:      req.Method,
			Path:        req.Path,
			Query:       map[string][]string(req.Query),
			Headers:     map[string][]string(req.Headers),
			Body:        req.Body,
			RequestFrom: req.RequestFrom,
		})
	}

	ok := rt.dispatch(w, r, req)
	metrics.Global().RecordRequest(listener, time.Since(start).Milliseconds(), ok)
}

func (rt *Runtime) writeDefault(w http.ResponseWriter) {
	if rt.Imposter.DefaultResponse != nil {
		writeIsResponse(w, rt.Imposter.DefaultResponse)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// predicateCache memoizes compiled predicate trees by stub identity so a
// hot imposter doesn't recompile the same tree on every request; entries
// are dropped wholesale when stubs are replaced (see Manager.ReplaceStubs).
// sync.Map fits this read-heavy, write-on-stub-change access pattern.
type predicateCache struct {
	entries sync.Map // string -> []*predicate.Compiled
}

func newPredicateCache() *predicateCache {
	return &predicateCache{}
}

func (c *predicateCache) compiled(key string, preds []*domain.Predicate) []*predicate.Compiled {
	if cached, ok := c.entries.Load(key); ok {
		return cached.([]*predicate.Compiled)
	}
	out := make([]*predicate.Compiled, 0, len(preds))
	for _, p := range preds {
		cp, err := predicate.Compile(p)
		if err != nil {
			logging.Op().Warn("predicate compile failed, stub will never match", "stub_key", key, "error", err)
			continue
		}
		out = append(out, cp)
	}
	actual, _ := c.entries.LoadOrStore(key, out)
	return actual.([]*predicate.Compiled)
}

// invalidate drops cached predicates no longer reachable under the current
// stub list, keeping the cache bounded by live stub count.
func (c *predicateCache) invalidate(liveKeys map[string]bool) {
	c.entries.Range(func(k, _ interface{}) bool {
		if !liveKeys[k.(string)] {
			c.entries.Delete(k)
		}
		return true
	})
}
