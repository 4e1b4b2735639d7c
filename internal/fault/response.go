package fault

import (
	"net/http"
	"strconv"
	"strings"
)

// BuildErrorResponse renders the fixed (rule-configured) headers merged
// with dynamic (caller-supplied, e.g. from a script decision) headers per
// the merge/content-length/content-type rules: dynamic wins on key
// collision, transfer-encoding is dropped, content-length is always
// recomputed from the final body, and content-type defaults to
// application/json. status falls back to 500 if not a valid HTTP status.
func BuildErrorResponse(status int, body string, fixed, dynamic map[string]string) (int, map[string]string, string) {
	if status < 100 || status > 599 {
		status = http.StatusInternalServerError
	}

	merged := make(map[string]string, len(fixed)+len(dynamic))
	for k, v := range fixed {
		merged[strings.ToLower(k)] = v
	}
	for k, v := range dynamic {
		merged[strings.ToLower(k)] = v
	}
	delete(merged, "transfer-encoding")

	if _, ok := merged["content-type"]; !ok {
		merged["content-type"] = "application/json"
	}
	merged["content-length"] = strconv.Itoa(len(body))

	return status, merged, body
}
