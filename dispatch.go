package orcjit

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Dispatcher decides how a claimed MU's Materialize call actually runs.
// run executes the MU; a dispatcher may call it inline or hand it to a
// goroutine. The engine makes no assumption about which thread later MR
// calls arrive from.
type Dispatcher func(lib *DynamicLibrary, run func())

// InlineDispatcher runs every MU on the caller's goroutine. It is the
// default, and is the right choice for tests: every claimed MU's
// Materialize call has returned before Lookup returns.
func InlineDispatcher(_ *DynamicLibrary, run func()) { run() }

// NewThreadedDispatcher returns a Dispatcher that spawns one goroutine per
// MU. If maxConcurrent is positive, concurrently-running MUs are bounded by
// a weighted semaphore; additional MUs queue for a slot rather than running
// unboundedly. A non-positive maxConcurrent spawns without limit, matching
// spec.md §5's "spawns a worker per MU".
func NewThreadedDispatcher(maxConcurrent int) Dispatcher {
	if maxConcurrent <= 0 {
		return func(_ *DynamicLibrary, run func()) {
			go run()
		}
	}
	sem := semaphore.NewWeighted(int64(maxConcurrent))
	return func(_ *DynamicLibrary, run func()) {
		go func() {
			// Acquire never returns an error for a context.Background that
			// is never cancelled; the blocking wait itself is the point.
			_ = sem.Acquire(context.Background(), 1)
			defer sem.Release(1)
			run()
		}()
	}
}
