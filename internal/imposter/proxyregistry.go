package imposter

import (
	"strconv"
	"sync"

	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/recording"
)

// proxyRegistry owns one recording.Store per Proxy response variant in an
// imposter's stub list, keyed by the same stable key the cycler uses for
// that response's owning stub plus the response's position within it. Each
// Proxy response can name its own mode and predicate generators, so a
// single imposter-wide store would conflate unrelated signatures.
type proxyRegistry struct {
	mu     sync.Mutex
	stores map[string]*recording.Store
}

func newProxyRegistry() *proxyRegistry {
	return &proxyRegistry{stores: make(map[string]*recording.Store)}
}

func (r *proxyRegistry) storeFor(key string, mode domain.ProxyMode) *recording.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[key]; ok {
		return s
	}
	s := recording.New(mode)
	r.stores[key] = s
	return s
}

func responseKey(stubKey string, responseIdx int) string {
	return stubKey + "#" + strconv.Itoa(responseIdx)
}

// clear drops every Proxy response variant's recorded store, used by the
// admin API's DELETE savedProxyResponses endpoint.
func (r *proxyRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = make(map[string]*recording.Store)
}
