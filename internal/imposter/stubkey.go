package imposter

import (
	"strconv"

	"github.com/oriys/rift/internal/domain"
)

// stubKey returns a stable identity for a stub's cycler word: the stub's
// own id when set, otherwise its index in the owning imposter's stub list.
// Index-based keys stay stable across requests within one stub-list
// generation (stubs are replaced wholesale, never mutated in place). Cycler
// words are kept per key and are not reset when stubs are added, removed or
// reordered: whichever stub sits at an index afterwards continues that
// index's cycle position.
func stubKey(index int, stub *domain.Stub) string {
	if stub.ID != "" {
		return "id:" + stub.ID
	}
	return "idx:" + strconv.Itoa(index)
}
