package flowstore

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     json.RawMessage
	expiresAt time.Time
}

// MemoryStore is an in-process flow-state backend: a single mutex guards a
// map of namespaced keys to values with absolute expiry. Every operation
// opportunistically evicts its target key first if expired, so readers
// never observe stale-expired values.
type MemoryStore struct {
	mu         sync.Mutex
	data       map[string]*memoryEntry
	defaultTTL time.Duration
}

// NewMemoryStore creates an in-memory flow-state store. defaultTTL is the
// expiry window applied (from now) on every Set/Increment.
func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &MemoryStore{
		data:       make(map[string]*memoryEntry),
		defaultTTL: defaultTTL,
	}
}

func (m *MemoryStore) evictIfExpired(key string, now time.Time) *memoryEntry {
	entry, ok := m.data[key]
	if !ok {
		return nil
	}
	if now.After(entry.expiresAt) {
		delete(m.data, key)
		return nil
	}
	return entry
}

// Get returns the value for flowID/key, or ok=false if absent or expired.
func (m *MemoryStore) Get(_ context.Context, flowID, key string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.evictIfExpired(namespacedKey(flowID, key), time.Now())
	if entry == nil {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores value under flowID/key and refreshes its expiry.
func (m *MemoryStore) Set(_ context.Context, flowID, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[namespacedKey(flowID, key)] = &memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(m.defaultTTL),
	}
	return nil
}

// Exists reports whether flowID/key is present and unexpired.
func (m *MemoryStore) Exists(_ context.Context, flowID, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.evictIfExpired(namespacedKey(flowID, key), time.Now())
	return entry != nil, nil
}

// Delete removes flowID/key unconditionally.
func (m *MemoryStore) Delete(_ context.Context, flowID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, namespacedKey(flowID, key))
	return nil
}

// Increment parses the current value as an int64 (treating absent or
// non-numeric values as 0), adds one, stores the result, and refreshes
// expiry. It holds the single lock for the whole read-modify-write, so
// concurrent increments are linearizable: N calls always yield N as the
// final stored value.
func (m *MemoryStore) Increment(_ context.Context, flowID, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := namespacedKey(flowID, key)
	entry := m.evictIfExpired(k, time.Now())

	var current int64
	if entry != nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(string(entry.value)), 10, 64); err == nil {
			current = n
		}
	}
	next := current + 1
	m.data[k] = &memoryEntry{
		value:     json.RawMessage(strconv.FormatInt(next, 10)),
		expiresAt: time.Now().Add(m.defaultTTL),
	}
	return next, nil
}

// SetTTL rewrites the expiry for every unexpired key stored under flowID;
// keys under flowID that have already expired are evicted instead.
func (m *MemoryStore) SetTTL(_ context.Context, flowID string, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := "flow:" + flowID + ":"
	now := time.Now()
	expiresAt := now.Add(time.Duration(ttlSeconds) * time.Second)
	for k, entry := range m.data {
		if strings.HasPrefix(k, prefix) {
			if now.After(entry.expiresAt) {
				delete(m.data, k)
				continue
			}
			entry.expiresAt = expiresAt
		}
	}
	return nil
}
