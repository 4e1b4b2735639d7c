package admin

import (
	"net/http"
	"time"

	"github.com/oriys/rift/internal/config"
	"github.com/oriys/rift/internal/metrics"
)

// Root handles GET /: a short informational document pointing at the
// imposters collection and config snapshot, mirroring the borrowed admin
// surface's self-describing root.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "rift",
		"_links": map[string]interface{}{
			"imposters": map[string]string{"href": "/imposters"},
			"config":    map[string]string{"href": "/config"},
			"metrics":   map[string]string{"href": "/metrics"},
		},
	})
}

// Health handles GET /health: a liveness probe only, no dependency checks.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "up",
		"uptimeSeconds": time.Since(metrics.StartTime()).Seconds(),
	})
}

// GetConfig handles GET /config: the config snapshot currently governing
// the fault-injection proxy's rules and routing.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.currentConfig())
}

// Metrics handles GET /metrics, serving the Prometheus exposition text
// format the rest of the process already publishes counters/histograms to.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics.PrometheusHandler().ServeHTTP(w, r)
}

// Reload handles POST /admin/reload: re-reads the config file from disk,
// recompiles the fault-injection proxy's router/rule/script-rule set, and
// swaps both in atomically. A bad config on disk is rejected before
// anything live is touched.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.Load(h.ConfigPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid config", err.Error())
		return
	}
	if h.Proxy != nil {
		if err := h.Proxy.Reload(cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid config", err.Error())
			return
		}
	}

	h.cfgMu.Lock()
	h.cfg = cfg
	h.cfgMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"reloaded": true})
}
