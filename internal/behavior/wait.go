// Package behavior implements the post-materialization transforms applied
// to a stub's literal Is response: wait, decorate, shellTransform, and CSV
// lookup. Response cycling (repeat) lives in the imposter package's
// cycler, since it needs to see the whole response list, not one response.
package behavior

import (
	"math/rand"
	"time"

	"github.com/oriys/rift/internal/domain"
)

// waitDuration resolves a WaitSpec to a concrete sleep duration: a fixed
// value, or a uniform random draw over [min, max] inclusive.
func waitDuration(w *domain.WaitSpec) time.Duration {
	if w == nil {
		return 0
	}
	if w.Min == 0 && w.Max == 0 {
		return time.Duration(w.Fixed) * time.Millisecond
	}
	lo, hi := w.Min, w.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	ms := lo
	if hi > lo {
		ms = lo + rand.Intn(hi-lo+1)
	}
	return time.Duration(ms) * time.Millisecond
}

// ApplyWait sleeps for the duration described by behaviors.wait, if set.
func ApplyWait(b *domain.Behaviors) {
	if b == nil || b.Wait == nil {
		return
	}
	d := waitDuration(b.Wait)
	if d > 0 {
		time.Sleep(d)
	}
}
