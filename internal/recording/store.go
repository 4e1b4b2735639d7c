// Package recording implements the record/replay store behind Proxy
// responses: ShouldProxy/GetRecorded/Record, keyed by RequestSignature,
// with JSON persistence tolerant of a missing file.
package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/oriys/rift/internal/domain"
)

// Store holds recorded responses keyed by RequestSignature, one map entry
// per signature holding an ordered list (ProxyAlways appends; ProxyOnce
// only ever has one entry, the first).
type Store struct {
	mu             sync.RWMutex
	mode           domain.ProxyMode
	data           map[string][]domain.RecordedResponse
	signatureByKey map[string]domain.RequestSignature
}

// New creates a Store in the given mode.
func New(mode domain.ProxyMode) *Store {
	if mode == "" {
		mode = domain.ProxyTransparent
	}
	return &Store{
		mode:           mode,
		data:           make(map[string][]domain.RecordedResponse),
		signatureByKey: make(map[string]domain.RequestSignature),
	}
}

// Mode returns the configured record/replay mode.
func (s *Store) Mode() domain.ProxyMode { return s.mode }

// ShouldProxy reports whether a request matching signature should still be
// forwarded upstream: always true in Transparent/Always mode; in Once
// mode, true only if nothing has been recorded for this signature yet.
func (s *Store) ShouldProxy(sig domain.RequestSignature) bool {
	if s.mode != domain.ProxyOnce {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[sig.Key()]) == 0
}

// GetRecorded returns the first stored response for signature, if any.
func (s *Store) GetRecorded(sig domain.RequestSignature) (domain.RecordedResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.data[sig.Key()]
	if len(entries) == 0 {
		return domain.RecordedResponse{}, false
	}
	return entries[0], true
}

// Record stores resp under signature. In Transparent mode this is a
// no-op (nothing is ever recorded); in Once mode it only stores the first
// observation; in Always mode every call appends.
func (s *Store) Record(sig domain.RequestSignature, resp domain.RecordedResponse) {
	if s.mode == domain.ProxyTransparent {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sig.Key()
	if s.mode == domain.ProxyOnce && len(s.data[key]) > 0 {
		return
	}
	s.signatureByKey[key] = sig
	s.data[key] = append(s.data[key], resp)
}

// Size reports the total number of recorded responses across all
// signatures, for the recording-store-size metric gauge.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, entries := range s.data {
		n += len(entries)
	}
	return n
}

// persistedEntry is the on-disk shape: the signature alongside its
// responses, since RequestSignature isn't itself a valid map key in JSON.
type persistedEntry struct {
	Signature domain.RequestSignature   `json:"signature"`
	Responses []domain.RecordedResponse `json:"responses"`
}

type persistedFile struct {
	Mode    domain.ProxyMode `json:"mode"`
	Entries []persistedEntry `json:"entries"`
}

// Save encodes the store to path as JSON.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	file := persistedFile{Mode: s.mode}
	for key, entries := range s.data {
		file.Entries = append(file.Entries, persistedEntry{
			Signature: s.signatureByKey[key],
			Responses: entries,
		})
	}
	s.mu.RUnlock()

	out, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("recording: marshal: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("recording: write %s: %w", path, err)
	}
	return nil
}

// Load reads path and replaces the store's contents. A missing file is
// treated as empty, not an error, per the persistence contract.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(domain.ProxyTransparent), nil
	}
	if err != nil {
		return nil, fmt.Errorf("recording: read %s: %w", path, err)
	}

	var file persistedFile
	if err := json.Unmarshal(data, &file); err != nil {
		// Corrupt payloads never panic; they load as an empty store and no
		// error is returned, matching the recording store's tolerant-load
		// contract for bad persisted state.
		return New(domain.ProxyTransparent), nil
	}

	s := New(file.Mode)
	s.signatureByKey = make(map[string]domain.RequestSignature, len(file.Entries))
	for _, entry := range file.Entries {
		key := entry.Signature.Key()
		s.data[key] = entry.Responses
		s.signatureByKey[key] = entry.Signature
	}
	return s, nil
}
