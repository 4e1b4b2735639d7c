// Package admin implements the REST admin API: imposter and stub CRUD,
// config read/reload, and the health/metrics informational endpoints. It
// never sits on the request-forwarding path; every handler here talks to
// the imposter manager and the fault-injection proxy's reload hook, not to
// live traffic.
package admin

import (
	"net/http"
	"sync"

	"github.com/oriys/rift/internal/config"
	"github.com/oriys/rift/internal/imposter"
	"github.com/oriys/rift/internal/proxy"
)

// Handler wires the admin surface to the components it administers: the
// imposter manager (imposter/stub lifecycle), the fault-injection proxy's
// Handler (rule hot-reload), and the config snapshot reload re-reads from
// disk.
type Handler struct {
	Manager    *imposter.Manager
	Proxy      *proxy.Handler
	ConfigPath string

	cfgMu sync.RWMutex
	cfg   *config.Config
}

// New builds a Handler. px may be nil when the process runs without the
// fault-injection proxy listener (imposter-only deployments); reload then
// only re-reads the config snapshot GET /config serves.
func New(manager *imposter.Manager, px *proxy.Handler, cfg *config.Config, configPath string) *Handler {
	return &Handler{Manager: manager, Proxy: px, cfg: cfg, ConfigPath: configPath}
}

func (h *Handler) currentConfig() *config.Config {
	h.cfgMu.RLock()
	defer h.cfgMu.RUnlock()
	return h.cfg
}

// RegisterRoutes registers every admin endpoint on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /config", h.GetConfig)
	mux.HandleFunc("GET /metrics", h.Metrics)
	mux.HandleFunc("POST /admin/reload", h.Reload)

	mux.HandleFunc("GET /imposters", h.ListImposters)
	mux.HandleFunc("POST /imposters", h.CreateImposter)
	mux.HandleFunc("PUT /imposters", h.ReplaceImposters)
	mux.HandleFunc("DELETE /imposters", h.DeleteImposters)
	mux.HandleFunc("GET /imposters/{port}", h.GetImposter)
	mux.HandleFunc("DELETE /imposters/{port}", h.DeleteImposter)
	mux.HandleFunc("POST /imposters/{port}/enable", h.EnableImposter)
	mux.HandleFunc("POST /imposters/{port}/disable", h.DisableImposter)
	mux.HandleFunc("DELETE /imposters/{port}/savedRequests", h.ClearSavedRequests)
	mux.HandleFunc("DELETE /imposters/{port}/savedProxyResponses", h.ClearSavedProxyResponses)

	mux.HandleFunc("GET /imposters/{port}/stubs", h.ListStubs)
	mux.HandleFunc("POST /imposters/{port}/stubs", h.AddStub)
	mux.HandleFunc("PUT /imposters/{port}/stubs", h.ReplaceStubs)
	mux.HandleFunc("GET /imposters/{port}/stubs/{index}", h.GetStub)
	mux.HandleFunc("PUT /imposters/{port}/stubs/{index}", h.ReplaceStub)
	mux.HandleFunc("DELETE /imposters/{port}/stubs/{index}", h.DeleteStub)
}
