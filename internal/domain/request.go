package domain

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request is the normalized view of an inbound HTTP exchange that the
// predicate engine, behavior engine, and script engines all operate on. It
// is built once per request (NewRequestFromHTTP) and treated as read-only
// thereafter.
type Request struct {
	Method      string
	Path        string
	Host        string // r.Host, used by the fault-injection proxy's router
	Query       url.Values
	RawQuery    string
	Headers     http.Header
	Form        url.Values
	Body        string
	RequestFrom string // client address, e.g. "127.0.0.1:54321"
	IP          string // RequestFrom without the port
}

// NewRequestFromHTTP consumes r.Body (so callers must not read it again)
// and produces the normalized Request used by the rest of the pipeline.
func NewRequestFromHTTP(r *http.Request) (*Request, error) {
	var bodyStr string
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		bodyStr = string(data)
	}

	var form url.Values
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		if parsed, err := url.ParseQuery(bodyStr); err == nil {
			form = parsed
		}
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx >= 0 {
		ip = ip[:idx]
	}

	return &Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		Host:        r.Host,
		Query:       r.URL.Query(),
		RawQuery:    r.URL.RawQuery,
		Headers:     r.Header,
		Form:        form,
		Body:        bodyStr,
		RequestFrom: r.RemoteAddr,
		IP:          ip,
	}, nil
}

// FieldValue returns the actual value(s) for a predicate field name, used
// by the predicate engine's scalar-vs-object-field dispatch.
func (r *Request) FieldValue(field string) interface{} {
	switch field {
	case FieldMethod:
		return r.Method
	case FieldPath:
		return r.Path
	case FieldQuery:
		return valuesToMap(r.Query)
	case FieldHeaders:
		return headerToMap(r.Headers)
	case FieldBody:
		return r.Body
	case FieldForm:
		return valuesToMap(r.Form)
	case FieldRequestFrom:
		return r.RequestFrom
	case FieldIP:
		return r.IP
	default:
		return nil
	}
}

func valuesToMap(v url.Values) map[string][]string {
	if v == nil {
		return nil
	}
	return map[string][]string(v)
}

func headerToMap(h http.Header) map[string][]string {
	if h == nil {
		return nil
	}
	return map[string][]string(h)
}
