package domain

import (
	"strings"
	"time"
)

// RequestSignature identifies a request for recording purposes: method,
// path, optional raw query string, and the header pairs selected by a
// rule's predicateGenerators.matches.headers. Equality is exact
// string equality — no case-folding, since headers are assumed already
// normalized on capture.
type RequestSignature struct {
	Method  string
	Path    string
	Query   string
	Headers []HeaderPair
}

// HeaderPair is one (name, value) selected into a RequestSignature.
type HeaderPair struct {
	Name  string
	Value string
}

// Key renders the signature to a stable string usable as a map key. Header
// pairs are compared in the order they were selected (predicateGenerators
// order is itself significant and caller-controlled), matching the
// definition of signature equality as reflexive/symmetric/transitive over
// the selected projection.
func (s RequestSignature) Key() string {
	var b strings.Builder
	b.WriteString(s.Method)
	b.WriteByte('\x00')
	b.WriteString(s.Path)
	b.WriteByte('\x00')
	b.WriteString(s.Query)
	for _, h := range s.Headers {
		b.WriteByte('\x00')
		b.WriteString(h.Name)
		b.WriteByte('=')
		b.WriteString(h.Value)
	}
	return b.String()
}

// RecordedResponse is a captured upstream response stored under a
// RequestSignature for replay (ProxyOnce) or export (ProxyAlways).
type RecordedResponse struct {
	Status    int                 `json:"status"`
	Headers   map[string][]string `json:"headers,omitempty"`
	Body      []byte              `json:"body,omitempty"`
	LatencyMs int64               `json:"latencyMs"`
	Timestamp time.Time           `json:"timestamp"`
}
