package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/oriys/rift/internal/imposter"
	"github.com/oriys/rift/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Op().Warn("admin: failed to encode response", "error", err)
	}
}

// adminError matches the borrowed admin-surface error vocabulary:
// {"errors":[{"code":"...","message":"..."}]}.
type adminError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"errors": []adminError{{Code: code, Message: message}},
	})
}

// statusForManagerError maps a Manager error to the admin status code
// contract: port-in-use and not-found are client errors, bind failures
// carry server context the caller can't fix by retrying the same body.
func statusForManagerError(err error) (int, string) {
	var merr *imposter.ManagerError
	if errors.As(err, &merr) {
		switch merr.Kind {
		case "PortInUse":
			return http.StatusBadRequest, merr.Message
		case "NotFound":
			return http.StatusNotFound, merr.Message
		case "BindError":
			return http.StatusInternalServerError, merr.Message
		}
	}
	return http.StatusInternalServerError, err.Error()
}

// parsePort extracts the {port} path value as a uint16, failing the
// request with 400 if it isn't one.
func parsePort(w http.ResponseWriter, r *http.Request) (uint16, bool) {
	raw := r.PathValue("port")
	n, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid port", "port must be an integer in [0, 65535]")
		return 0, false
	}
	return uint16(n), true
}

// parseStubIndex extracts the {index} path value as a non-negative int.
func parseStubIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.PathValue("index")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid stub index", "index must be a non-negative integer")
		return 0, false
	}
	return n, true
}
