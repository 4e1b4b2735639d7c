package admin

import (
	"encoding/json"
	"net/http"

	"github.com/oriys/rift/internal/domain"
)

// ListStubs handles GET /imposters/:port/stubs.
func (h *Handler) ListStubs(w http.ResponseWriter, r *http.Request) {
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
	stubs := imp.Stubs()
	out := make([]map[string]interface{}, 0, len(stubs))
	for i, s := range stubs {
		m, err := stubJSON(r.Host, port, i, s)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "encode error", err.Error())
			return
		}
		out = append(out, m)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stubs": out})
}

// AddStub handles POST /imposters/:port/stubs with body {"stub": ..., "index"?: n}.
func (h *Handler) AddStub(w http.ResponseWriter, r *http.Request) {
	port, ok := parsePort(w, r)
	if !ok {
		return
	}
	if _, err := h.Manager.Get(port); err != nil {
		status, msg := statusForManagerError(err)
		writeError(w, status, "not found", msg)
		return
	}

	var body struct {
		Stub  *domain.Stub `json:"stub"`
		Index *int         `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Stub == nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "body must be {\"stub\": ..., \"index\"?: n}")
		return
	}
	if err := validateStub(body.Stub); err != nil {
		writeError(w, http.StatusBadRequest, "script validation failed", err.Error())
		return
	}

	index := -1
	if body.Index != nil {
		index = *body.Index
	}
	if err := h.Manager.AddStub(port, body.Stub, index); err != nil {
		status, msg := statusForManagerError(err)
		writeError(w, status, "add stub failed", msg)
		return
	}

	imp, _ := h.Manager.Get(port)
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

// ReplaceStubs handles PUT /imposters/:port/stubs with body {"stubs": [...]}.
func (h *Handler) ReplaceStubs(w http.ResponseWriter, r *http.Request) {
	port, ok := parsePort(w, r)
	if !ok {
		return
	}
	if _, err := h.Manager.Get(port); err != nil {
		status, msg := statusForManagerError(err)
		writeError(w, status, "not found", msg)
		return
	}

	var body struct {
		Stubs []*domain.Stub `json:"stubs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err.Error())
		return
	}
	if err := validateStubs(body.Stubs); err != nil {
		writeError(w, http.StatusBadRequest, "script validation failed", err.Error())
		return
	}

	if err := h.Manager.ReplaceStubs(port, body.Stubs); err != nil {
		status, msg := statusForManagerError(err)
		writeError(w, status, "replace stubs failed", msg)
		return
	}

	imp, _ := h.Manager.Get(port)
	m, err := imposterJSON(r.Host, imp, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode error", err.Error())
		return
	}
	if warnings := analyzeWarnings(imp.Stubs()); len(warnings) > 0 {
		m["warnings"] = warnings
	}
	writeJSON(w, http.StatusOK, m)
}

// GetStub handles GET /imposters/:port/stubs/:index.
func (h *Handler) GetStub(w http.ResponseWriter, r *http.Request) {
	port, ok := parsePort(w, r)
	if !ok {
		return
	}
	index, ok := parseStubIndex(w, r)
	if !ok {
		return
	}
	stub, err := h.Manager.GetStub(port, index)
	if err != nil {
		status, msg := statusForManagerError(err)
		if status == http.StatusInternalServerError {
			status = http.StatusNotFound // out-of-bounds index is a 404, not a 500
		}
		writeError(w, status, "not found", msg)
		return
	}
	m, err := stubJSON(r.Host, port, index, stub)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ReplaceStub handles PUT /imposters/:port/stubs/:index.
func (h *Handler) ReplaceStub(w http.ResponseWriter, r *http.Request) {
	port, ok := parsePort(w, r)
	if !ok {
		return
	}
	index, ok := parseStubIndex(w, r)
	if !ok {
		return
	}

	stub := &domain.Stub{}
	if err := json.NewDecoder(r.Body).Decode(stub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err.Error())
		return
	}
	if err := validateStub(stub); err != nil {
		writeError(w, http.StatusBadRequest, "script validation failed", err.Error())
		return
	}

	if err := h.Manager.ReplaceStub(port, index, stub); err != nil {
		status, msg := statusForManagerError(err)
		if status == http.StatusInternalServerError {
			status = http.StatusNotFound
		}
		writeError(w, status, "replace stub failed", msg)
		return
	}

	m, err := stubJSON(r.Host, port, index, stub)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteStub handles DELETE /imposters/:port/stubs/:index.
func (h *Handler) DeleteStub(w http.ResponseWriter, r *http.Request) {
	port, ok := parsePort(w, r)
	if !ok {
		return
	}
	index, ok := parseStubIndex(w, r)
	if !ok {
		return
	}
	if err := h.Manager.DeleteStub(port, index); err != nil {
		status, msg := statusForManagerError(err)
		if status == http.StatusInternalServerError {
			status = http.StatusNotFound
		}
		writeError(w, status, "delete stub failed", msg)
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
