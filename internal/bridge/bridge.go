// Package bridge implements the async-function bridge: it lets a
// host-implemented asynchronous operation (an HTTP request, a
// filesystem read, `wait`, a `require` of a module still being built)
// look like a blocking script call while cooperating with the
// scheduler instead of blocking the VM thread. One reusable entry point
// (Call) covers every built-in and every require call that needs it.
package bridge

import (
	"context"

	"github.com/lune-org/lune/internal/core"
)

// Scheduler is the subset of *scheduler.Scheduler the bridge needs. It
// is expressed as an interface here so internal/bridge does not import
// internal/scheduler, keeping the dependency graph leaf-first.
type Scheduler interface {
	NextID() core.ThreadId
	ResumptionQueue() ResumptionQueue
	IsCancelled(id core.ThreadId) bool
}

// ResumptionQueue is the push half of scheduler.Queue the bridge needs.
type ResumptionQueue interface {
	PushBack(id core.ThreadId, payload core.ResumePayload)
}

// Coroutine is the continuation a bridge call suspends — normally a
// thin wrapper around a script engine's stored promise resolve/reject
// pair, matching internal/scheduler.Coroutine (intentionally the same
// shape; bridge does not import scheduler to stay leaf-first, so it
// redeclares the method it needs).
type Coroutine interface {
	Resume(payload core.ResumePayload)
}

// Registrar is the subset of the registry the bridge needs: storing the
// waiting coroutine under a pre-minted id.
type Registrar interface {
	Store(id core.ThreadId, coroutine Coroutine) error
}

// Bridge wires host async operations into the scheduler's queues.
type Bridge struct {
	sched    Scheduler
	registry Registrar
}

// New creates a Bridge over the given scheduler facade and registry.
func New(sched Scheduler, registry Registrar) *Bridge {
	return &Bridge{sched: sched, registry: registry}
}

// Call performs five steps:
//  1. Call mints a ThreadId and asks coroFactory to build the waiting
//     continuation for it — most callers close over the script engine's
//     "construct a promise, stash its resolve/reject under this id"
//     step here, which is why the id has to exist before the coroutine
//     does;
//  2. Call registers the built coroutine as pending in the registry;
//  3. the caller is expected to have already told the VM to yield — Call
//     itself only arranges for the eventual resume;
//  4. Call submits host to run on a goroutine via spawnFuture;
//  5. when host completes, its result is pushed to the resumption queue.
//
// host receives ctx so long-running operations can be cancelled
// cooperatively; Call does not cancel ctx itself — callers that want
// cancellation-on-script-cancel should derive ctx accordingly and check
// sched.IsCancelled from within host for cheap early-exit: a discarded
// result is allowed to still run to completion.
func (b *Bridge) Call(ctx context.Context, coroFactory func(id core.ThreadId) Coroutine, spawnFuture func(func()), host func(context.Context) (core.Values, error)) (core.ThreadId, error) {
	id := b.sched.NextID()
	coro := coroFactory(id)
	if err := b.registry.Store(id, coro); err != nil {
		return 0, err
	}
	spawnFuture(func() {
		vals, err := host(ctx)
		if b.sched.IsCancelled(id) {
			// Registry entry is already gone; this push would be a
			// harmless no-op downstream, but skip it entirely so a
			// cancelled thread never reappears in any queue.
			return
		}
		if err != nil {
			b.sched.ResumptionQueue().PushBack(id, core.ErrorPayload(err))
			return
		}
		b.sched.ResumptionQueue().PushBack(id, core.ValuesPayload(vals))
	})
	return id, nil
}
