package imposter

import "net/http"

// handleCORSPreflight answers an OPTIONS preflight request when the
// imposter has AllowCORS set. Returns false (leaving the request to fall
// through to normal stub dispatch) when the required preflight headers
// aren't present — an OPTIONS request without Origin/Access-Control-
// Request-Method is a stub match candidate like any other request.
func handleCORSPreflight(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	requestMethod := r.Header.Get("Access-Control-Request-Method")
	if origin == "" || requestMethod == "" {
		return false
	}

	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", requestMethod)
	if requestHeaders := r.Header.Get("Access-Control-Request-Headers"); requestHeaders != "" {
		w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
	}
	w.WriteHeader(http.StatusOK)
	return true
}
