package admin

import (
	"encoding/json"
	"net/http"

	"github.com/oriys/rift/internal/domain"
)

// ListImposters handles GET /imposters[?replayable=true[&removeProxies=true]].
// Without replayable, each entry is a summary (no stubs); replayable=true
// returns full exportable configs, optionally with Proxy responses
// stripped so the document only describes literal behavior.
func (h *Handler) ListImposters(w http.ResponseWriter, r *http.Request) {
	replayable := r.URL.Query().Get("replayable") == "true"
	removeProxies := r.URL.Query().Get("removeProxies") == "true"

	imps := h.Manager.List()
	out := make([]map[string]interface{}, 0, len(imps))
	for _, imp := range imps {
		if replayable {
			m, err := imposterJSON(r.Host, imp, removeProxies)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "encode error", err.Error())
				return
			}
			out = append(out, m)
			continue
		}
		out = append(out, map[string]interface{}{
			"port":             imp.Port,
			"protocol":         imp.Protocol,
			"name":             imp.Name,
			"numberOfRequests": imp.NumberOfRequests(),
			"_links":           imposterLinks(r.Host, imp.Port),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"imposters": out})
}

// CreateImposter handles POST /imposters.
func (h *Handler) CreateImposter(w http.ResponseWriter, r *http.Request) {
	imp := &domain.Imposter{}
	if err := json.NewDecoder(r.Body).Decode(imp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err.Error())
		return
	}
	if !validateProtocol(imp.Protocol) {
		writeError(w, http.StatusBadRequest, "invalid protocol", "protocol must be http or https")
		return
	}
	if err := validateStubs(imp.Stubs()); err != nil {
		writeError(w, http.StatusBadRequest, "script validation failed", err.Error())
		return
	}

	if err := h.Manager.Create(imp); err != nil {
		status, msg := statusForManagerError(err)
		writeError(w, status, "create failed", msg)
		return
	}

	m, err := imposterJSON(r.Host, imp, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode error", err.Error())
		return
	}
	if warnings := analyzeWarnings(imp.Stubs()); len(warnings) > 0 {
		m["warnings"] = warnings
	}
	writeJSON(w, http.StatusCreated, m)
}

// ReplaceImposters handles PUT /imposters: delete everything this manager
// owns, then create each imposter in the submitted document in order.
func (h *Handler) ReplaceImposters(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Imposters []*domain.Imposter `json:"imposters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err.Error())
		return
	}
	for _, imp := range body.Imposters {
		if !validateProtocol(imp.Protocol) {
			writeError(w, http.StatusBadRequest, "invalid protocol", "protocol must be http or https")
			return
		}
		if err := validateStubs(imp.Stubs()); err != nil {
			writeError(w, http.StatusBadRequest, "script validation failed", err.Error())
			return
		}
	}

	h.Manager.DeleteAll()

	out := make([]map[string]interface{}, 0, len(body.Imposters))
	for _, imp := range body.Imposters {
		if err := h.Manager.Create(imp); err != nil {
			status, msg := statusForManagerError(err)
			writeError(w, status, "create failed", msg)
			return
		}
		m, err := imposterJSON(r.Host, imp, false)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "encode error", err.Error())
			return
		}
		out = append(out, m)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"imposters": out})
}

// DeleteImposters handles DELETE /imposters: stop and remove every
// imposter, returning their configs.
func (h *Handler) DeleteImposters(w http.ResponseWriter, r *http.Request) {
	deleted := h.Manager.DeleteAll()
	out := make([]map[string]interface{}, 0, len(deleted))
	for _, imp := range deleted {
		m, err := imposterJSON(r.Host, imp, false)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "encode error", err.Error())
			return
		}
		out = append(out, m)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"imposters": out})
}

// GetImposter handles GET /imposters/:port[?removeProxies=true].
func (h *Handler) GetImposter(w http.ResponseWriter, r *http.Request) {
	port, ok := parsePort(w, r)
	if !ok {
		return
	}
	imp, err := h.Manager.Get(port)
	if err != nil {
		status, msg := statusForManagerError(err)
		writeError(w, status, "not found", msg)
		return
	}
	removeProxies := r.URL.Query().Get("removeProxies") == "true"
	m, err := imposterJSON(r.Host, imp, removeProxies)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteImposter handles DELETE /imposters/:port.
func (h *Handler) DeleteImposter(w http.ResponseWriter, r *http.Request) {
	port, ok := parsePort(w, r)
	if !ok {
		return
	}
	imp, err := h.Manager.Delete(port)
	if err != nil {
		status, msg := statusForManagerError(err)
		writeError(w, status, "not found", msg)
		return
	}
	m, err := imposterJSON(r.Host, imp, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	port, ok := parsePort(w, r)
	if !ok {
		return
	}
	if err := h.Manager.SetEnabled(port, enabled); err != nil {
		status, msg := statusForManagerError(err)
		writeError(w, status, "not found", msg)
		return
	}
	imp, _ := h.Manager.Get(port)
	m, err := imposterJSON(r.Host, imp, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// EnableImposter handles POST /imposters/:port/enable.
func (h *Handler) EnableImposter(w http.ResponseWriter, r *http.Request) { h.setEnabled(w, r, true) }

// DisableImposter handles POST /imposters/:port/disable.
func (h *Handler) DisableImposter(w http.ResponseWriter, r *http.Request) { h.setEnabled(w, r, false) }

// ClearSavedRequests handles DELETE /imposters/:port/savedRequests.
func (h *Handler) ClearSavedRequests(w http.ResponseWriter, r *http.Request) {
	port, ok := parsePort(w, r)
	if !ok {
		return
	}
	if err := h.Manager.ClearRecordedRequests(port); err != nil {
		status, msg := statusForManagerError(err)
		writeError(w, status, "not found", msg)
		return
	}
	imp, _ := h.Manager.Get(port)
	m, err := imposterJSON(r.Host, imp, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ClearSavedProxyResponses handles DELETE /imposters/:port/savedProxyResponses.
func (h *Handler) ClearSavedProxyResponses(w http.ResponseWriter, r *http.Request) {
	port, ok := parsePort(w, r)
	if !ok {
		return
	}
	if err := h.Manager.ClearSavedProxyResponses(port); err != nil {
		status, msg := statusForManagerError(err)
		writeError(w, status, "not found", msg)
		return
	}
	imp, _ := h.Manager.Get(port)
	m, err := imposterJSON(r.Host, imp, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}
