package scriptpool

import (
	"context"
	"encoding/json"
)

// Get returns the value stored under key for this call's flow_id.
func (f *BoundFlow) Get(key string) (json.RawMessage, bool, error) {
	return f.store.Get(context.Background(), f.flowID, key)
}

// Set stores value under key for this call's flow_id.
func (f *BoundFlow) Set(key string, value json.RawMessage) error {
	return f.store.Set(context.Background(), f.flowID, key, value)
}

// Exists reports whether key is present for this call's flow_id.
func (f *BoundFlow) Exists(key string) (bool, error) {
	return f.store.Exists(context.Background(), f.flowID, key)
}

// Delete removes key for this call's flow_id.
func (f *BoundFlow) Delete(key string) error {
	return f.store.Delete(context.Background(), f.flowID, key)
}

// Increment adds one to the integer stored under key and returns the new
// value.
func (f *BoundFlow) Increment(key string) (int64, error) {
	return f.store.Increment(context.Background(), f.flowID, key)
}

// SetTTL rewrites the expiry for every key under this call's flow_id.
func (f *BoundFlow) SetTTL(ttlSeconds int) error {
	return f.store.SetTTL(context.Background(), f.flowID, ttlSeconds)
}
