package flowstore

import (
	"context"
	"encoding/json"
)

// NoopStore is the backend used when flow-state is not configured. Every
// read reports absent; Increment acts as though each key starts fresh at
// zero, so it always returns 1.
type NoopStore struct{}

// NewNoopStore returns a flow-state store that persists nothing.
func NewNoopStore() *NoopStore { return &NoopStore{} }

func (NoopStore) Get(context.Context, string, string) (json.RawMessage, bool, error) {
	return nil, false, nil
}

func (NoopStore) Set(context.Context, string, string, json.RawMessage) error { return nil }

func (NoopStore) Exists(context.Context, string, string) (bool, error) { return false, nil }

func (NoopStore) Delete(context.Context, string, string) error { return nil }

func (NoopStore) Increment(context.Context, string, string) (int64, error) { return 1, nil }

func (NoopStore) SetTTL(context.Context, string, int) error { return nil }
