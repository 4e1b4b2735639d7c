// Package flowstore implements the synchronous flow-state key/value store
// that script engines use for cross-request correlation. The contract is
// deliberately blocking: script engines run on the script pool's worker
// goroutines, not on an async runtime, so there is no asynchrony to bridge.
//
// Keys are namespaced "flow:{flowID}:{key}" and carry an absolute expiry
// refreshed on every write.
package flowstore

import (
	"context"
	"encoding/json"
)

// Store is the synchronous contract every backend implements. All methods
// are total: a missing key is not an error, it is reported via the ok
// return (Get, Exists) or treated as zero (Increment).
type Store interface {
	Get(ctx context.Context, flowID, key string) (value json.RawMessage, ok bool, err error)
	Set(ctx context.Context, flowID, key string, value json.RawMessage) error
	Exists(ctx context.Context, flowID, key string) (bool, error)
	Delete(ctx context.Context, flowID, key string) error
	Increment(ctx context.Context, flowID, key string) (int64, error)
	SetTTL(ctx context.Context, flowID string, ttlSeconds int) error
}

func namespacedKey(flowID, key string) string {
	return "flow:" + flowID + ":" + key
}
