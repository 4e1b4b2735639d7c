// Package domain holds the wire-level and in-memory data model shared by
// every component of the proxy: imposters, stubs, predicates, responses,
// fault-injection rules, and recorded requests/responses. Types here are
// the nouns the rest of the system operates on; behavior lives in the
// packages named after each component of the system (predicate, behavior,
// scriptpool, fault, recording, imposter, proxy, admin).
package domain

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Protocol is the wire protocol an imposter listens with.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

// Imposter is a virtual HTTP server bound to a single port.
//
// At most one Imposter owns a given port at any instant (enforced by the
// manager, not this type); deletion is terminal — a deleted imposter is
// never resurrected under the same handle.
type Imposter struct {
	Port            uint16   `json:"port"`
	Protocol        Protocol `json:"protocol"`
	Name            string   `json:"name,omitempty"`
	RecordRequests  bool     `json:"recordRequests,omitempty"`
	Enabled         bool     `json:"-"`
	DefaultResponse *IsResponse `json:"defaultResponse,omitempty"`
	AllowCORS       bool     `json:"allowCORS,omitempty"`
	CertPEM         string   `json:"cert,omitempty"`
	KeyPEM          string   `json:"key,omitempty"`

	mu     sync.RWMutex
	stubs  []*Stub
	recent []RecordedRequest

	// cyclers maps a stub's stable key to its packed (responseIdx,repeatIdx)
	// atomic word (see imposter/cycler.go for the packing).
	cyclers sync.Map // map[string]*uint64
}

// MaxRecordedRequests bounds the ring buffer of captured requests per
// imposter so a long-running recording imposter doesn't grow unbounded.
const MaxRecordedRequests = 1000

// NewImposter constructs an Imposter in the enabled state with no stubs.
func NewImposter(port uint16, protocol Protocol) *Imposter {
	if protocol == "" {
		protocol = ProtocolHTTP
	}
	return &Imposter{
		Port:     port,
		Protocol: protocol,
		Enabled:  true,
	}
}

// Stubs returns a snapshot of the current stub list. The snapshot is safe
// to range over without holding any lock, since Stubs are replaced
// wholesale (never mutated in place) by SetStubs/ReplaceStub.
func (im *Imposter) Stubs() []*Stub {
	im.mu.RLock()
	defer im.mu.RUnlock()
	out := make([]*Stub, len(im.stubs))
	copy(out, im.stubs)
	return out
}

// SetStubs atomically replaces the entire stub list.
func (im *Imposter) SetStubs(stubs []*Stub) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.stubs = stubs
}

// AddStub inserts a stub at index (or appends if index < 0 or out of
// range), assigning a generated id when the caller omitted one so every
// stub has a stable identity for the cycler and the admin API to key on.
func (im *Imposter) AddStub(stub *Stub, index int) {
	if stub.ID == "" {
		stub.ID = uuid.NewString()
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	if index < 0 || index >= len(im.stubs) {
		im.stubs = append(im.stubs, stub)
		return
	}
	next := make([]*Stub, 0, len(im.stubs)+1)
	next = append(next, im.stubs[:index]...)
	next = append(next, stub)
	next = append(next, im.stubs[index:]...)
	im.stubs = next
}

// InsertStubBefore inserts stub immediately before the stub currently at
// position idx. Used by the proxy-recording path to splice a generated
// stub ahead of the Proxy stub that produced it.
func (im *Imposter) InsertStubBefore(idx int, stub *Stub) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if idx < 0 || idx > len(im.stubs) {
		im.stubs = append(im.stubs, stub)
		return
	}
	next := make([]*Stub, 0, len(im.stubs)+1)
	next = append(next, im.stubs[:idx]...)
	next = append(next, stub)
	next = append(next, im.stubs[idx:]...)
	im.stubs = next
}

// ReplaceStub overwrites the stub at index. Returns false if out of bounds.
func (im *Imposter) ReplaceStub(index int, stub *Stub) bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	if index < 0 || index >= len(im.stubs) {
		return false
	}
	im.stubs[index] = stub
	return true
}

// DeleteStub removes the stub at index. Returns false if out of bounds.
func (im *Imposter) DeleteStub(index int) bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	if index < 0 || index >= len(im.stubs) {
		return false
	}
	im.stubs = append(im.stubs[:index], im.stubs[index+1:]...)
	return true
}

// GetStub returns the stub at index, or nil if out of bounds.
func (im *Imposter) GetStub(index int) *Stub {
	im.mu.RLock()
	defer im.mu.RUnlock()
	if index < 0 || index >= len(im.stubs) {
		return nil
	}
	return im.stubs[index]
}

// CaptureRequest appends req to the ring buffer of recorded requests,
// evicting the oldest entry once MaxRecordedRequests is exceeded. It does
// not check RecordRequests itself; Runtime.ServeHTTP does.
func (im *Imposter) CaptureRequest(req RecordedRequest) {
	im.mu.Lock()
	defer im.mu.Unlock()
	req.Timestamp = time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	im.recent = append(im.recent, req)
	if len(im.recent) > MaxRecordedRequests {
		im.recent = im.recent[len(im.recent)-MaxRecordedRequests:]
	}
}

// RecordedRequests returns a snapshot of captured requests.
func (im *Imposter) RecordedRequests() []RecordedRequest {
	im.mu.RLock()
	defer im.mu.RUnlock()
	out := make([]RecordedRequest, len(im.recent))
	copy(out, im.recent)
	return out
}

// NumberOfRequests reports how many requests have been captured (bounded by
// MaxRecordedRequests, not a lifetime total — matching mountebank-family
// semantics where savedRequests and numberOfRequests are the same list).
func (im *Imposter) NumberOfRequests() int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return len(im.recent)
}

// ClearRecordedRequests empties the captured-request buffer.
func (im *Imposter) ClearRecordedRequests() {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.recent = nil
}

// CyclerWord returns the packed (responseIdx,repeatIdx) atomic word for
// stubKey, creating a fresh zero word on first use. The returned pointer
// is stable for the imposter's lifetime, so callers can drive it with
// sync/atomic's CAS loop directly (see imposter.cycler).
func (im *Imposter) CyclerWord(stubKey string) *uint64 {
	word, _ := im.cyclers.LoadOrStore(stubKey, new(uint64))
	return word.(*uint64)
}

// Stub pairs an ordered set of predicates (AND) with an ordered, cycled
// list of responses.
type Stub struct {
	ID           string         `json:"id,omitempty"`
	Predicates   []*Predicate   `json:"predicates"`
	Responses    []*StubResponse `json:"responses"`
	ScenarioName string         `json:"scenarioName,omitempty"`
}

// CatchAll reports whether this stub has no predicates and therefore
// matches every request.
func (s *Stub) CatchAll() bool {
	return len(s.Predicates) == 0
}

// RecordedRequest captures one inbound HTTP exchange for later inspection
// via the admin API's savedRequests surface.
type RecordedRequest struct {
	ID        string              `json:"id,omitempty"`
	Method    string              `json:"method"`
	Path      string              `json:"path"`
	Query     map[string][]string `json:"query,omitempty"`
	Headers   map[string][]string `json:"headers,omitempty"`
	Body      string              `json:"body,omitempty"`
	RequestFrom string            `json:"requestFrom,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// TCPFaultKind enumerates the TCP-level fault kinds. The set is small and
// explicit, but the type is string-based: any string converts to it, and
// decoding does not reject names outside the constants below.
type TCPFaultKind string

const (
	FaultConnectionResetByPeer TCPFaultKind = "ConnectionResetByPeer"
	FaultRandomDataThenClose   TCPFaultKind = "RandomDataThenClose"
)

// MarshalBody renders an arbitrary decoded JSON body value back to bytes,
// used when a response body needs re-encoding (e.g. scripted or templated
// responses that produce a Go value instead of a literal string).
func MarshalBody(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch b := v.(type) {
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	return out, nil
}
