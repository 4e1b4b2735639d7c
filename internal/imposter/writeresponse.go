package imposter

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/oriys/rift/internal/domain"
)

// writeIsResponse renders an IsResponse to the wire: status code (accepted
// as a number or a numeric string), headers, and body (string, []byte, or
// any value re-encoded as JSON).
func writeIsResponse(w http.ResponseWriter, resp *domain.IsResponse) {
	status := statusCodeOf(resp.StatusCode)
	for k, v := range resp.Headers {
		w.Header().Set(k, fmt.Sprintf("%v", v))
	}
	body, err := domain.MarshalBody(resp.Body)
	if err != nil {
		writeDiagnostic500(w, err)
		return
	}
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

func statusCodeOf(v interface{}) int {
	switch sc := v.(type) {
	case int:
		return sc
	case int64:
		return int(sc)
	case float64:
		return int(sc)
	case string:
		if n, err := strconv.Atoi(sc); err == nil {
			return n
		}
	}
	return http.StatusOK
}

// writeDiagnostic500 converts any pipeline-stage failure (behavior, script,
// backend) into a diagnostic 500 so one bad stub never takes down the rest
// of the imposter's request handling.
func writeDiagnostic500(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, `{"error":%q}`, err.Error())
}
