// Package scheduler implements the cooperative task scheduler: the
// thread registry, the spawn/defer/resumption queues, the user-facing
// spawn/defer/delay/cancel primitives, and the scheduler main loop
// that binds them to an external async Executor. Coroutines run one at
// a time on the scheduler's own goroutine; everything else synchronizes
// through the registry, the three queues, and the cancel set.
package scheduler

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lune-org/lune/internal/core"
	"github.com/lune-org/lune/internal/executor"
)

// minWaitGranularity is the scheduler's best-effort timer resolution:
// how long the main loop sleeps when nothing is immediately ready,
// tight enough to keep delay() accurate without busy-waiting.
const minWaitGranularity = time.Millisecond

// Target is something spawn/defer/delay can invoke: a script function,
// or an already-built Coroutine, since the two are interchangeable
// wherever a thread of execution is expected. Build only constructs the
// Coroutine; the target's body runs when the scheduler calls Resume on
// it (at once for an eager Spawn, otherwise from a queue or timer).
// Build receives the ThreadId the scheduler already
// minted for this thread so implementations that need to wire
// id-keyed continuations (e.g. internal/builtins/task, which attaches
// JS promise callbacks keyed by id) can do so before returning.
type Target interface {
	Build(id core.ThreadId) Coroutine
}

// FuncTarget adapts a plain function into a Target whose Coroutine
// simply invokes it fresh on first Resume.
type FuncTarget func(id core.ThreadId) Coroutine

// Build implements Target.
func (f FuncTarget) Build(id core.ThreadId) Coroutine { return f(id) }

// Scheduler owns the registry, the three queues, and the main loop.
// Exactly one instance backs a given VM goroutine; all scheduler state
// mutates only from the Run goroutine (or synchronously inside a
// Resume it drives).
type Scheduler struct {
	registry *Registry
	spawnQ   *Queue
	deferQ   *Queue
	resumeQ  *Queue
	ids      idGenerator
	cancels  *cancelSet
	exec     *executor.Executor

	errCbMu sync.Mutex
	errCb   core.ErrorCallback

	resumeDepth atomic.Int32 // >0 while executing inside a resumed coroutine

	exitMu      sync.Mutex
	exitCalled  bool
	exitCode    int
	anyError    bool

	logger *log.Logger
}

// New creates a Scheduler bound to the given Executor.
func New(exec *executor.Executor, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		registry: NewRegistry(),
		spawnQ:   NewQueue(),
		deferQ:   NewQueue(),
		resumeQ:  NewQueue(),
		cancels:  newCancelSet(),
		exec:     exec,
		logger:   logger,
	}
}

// SetErrorCallback installs the single error-callback sink. Installing
// again replaces the previous callback.
func (s *Scheduler) SetErrorCallback(cb core.ErrorCallback) {
	s.errCbMu.Lock()
	defer s.errCbMu.Unlock()
	s.errCb = cb
}

func (s *Scheduler) reportError(id core.ThreadId, err error) {
	s.errCbMu.Lock()
	cb := s.errCb
	s.errCbMu.Unlock()

	s.exitMu.Lock()
	s.anyError = true
	hasCallback := cb != nil
	s.exitMu.Unlock()

	if hasCallback {
		cb(id, err)
		return
	}
	s.logger.Printf("lune: unhandled error in thread %d: %v", id, err)
}

// ResumptionQueue exposes the resumption queue so the async bridge can
// push completed-future results onto it from any goroutine.
func (s *Scheduler) ResumptionQueue() *Queue { return s.resumeQ }

// Cancels exposes the cancel set so the bridge can check it before
// delivering a result for an already-cancelled thread.
func (s *Scheduler) Cancels() *cancelSet { return s.cancels }

// IsCancelled reports whether id has been cancelled. Exposed for
// internal/bridge, which must not deliver a resumption for a thread
// cancelled while its host operation was in flight.
func (s *Scheduler) IsCancelled(id core.ThreadId) bool {
	return s.cancels.isCancelled(id)
}

// NextID mints a fresh ThreadId. Exposed so the bridge can reserve an id
// before the coroutine it describes is built.
func (s *Scheduler) NextID() core.ThreadId { return s.ids.mint() }

// Registry exposes the thread registry so the bridge can park a waiting
// coroutine under a bridge-minted id.
func (s *Scheduler) Registry() *Registry { return s.registry }

// Executor exposes the bound Executor so the bridge can submit host
// operations to run off the scheduler's own goroutine.
func (s *Scheduler) Executor() *executor.Executor { return s.exec }

// insideResume reports whether the calling goroutine is currently
// inside a Resume call driven by the main loop — i.e. whether spawn's
// eager-execution rule applies: eager unless the caller is the bare
// main loop itself.
func (s *Scheduler) insideResume() bool {
	return s.resumeDepth.Load() > 0
}

// Spawn implements the `spawn` primitive. If called from
// within a running coroutine, target is resumed eagerly, synchronously,
// up to its first yield, before Spawn returns. If called from outside
// any resume (e.g. the host bootstrapping the entry script), target is
// instead placed at the front of the spawn queue for the next tick.
func (s *Scheduler) Spawn(target Target, args core.Values) (core.ThreadId, error) {
	id := s.ids.mint()
	coro := target.Build(id)
	if err := s.registry.Store(id, coro); err != nil {
		return 0, err
	}
	payload := core.ValuesPayload(args)
	if s.insideResume() {
		s.runOne(id, payload)
	} else {
		s.spawnQ.PushFront(id, payload)
	}
	return id, nil
}

// Defer implements the `defer` primitive: target never runs before
// Defer returns; it is parked at the back of the defer queue.
func (s *Scheduler) Defer(target Target, args core.Values) (core.ThreadId, error) {
	id := s.ids.mint()
	coro := target.Build(id)
	if err := s.registry.Store(id, coro); err != nil {
		return 0, err
	}
	s.deferQ.PushBack(id, core.ValuesPayload(args))
	return id, nil
}

// Delay implements the `delay` primitive: target is scheduled to enter
// the spawn queue no earlier than d seconds from now, unless cancelled
// first. d <= 0 behaves like defer's timing but still lands on the
// spawn pass of the *next* tick, never the current one.
func (s *Scheduler) Delay(d time.Duration, target Target, args core.Values) (core.ThreadId, error) {
	id := s.ids.mint()
	coro := target.Build(id)
	if err := s.registry.Store(id, coro); err != nil {
		return 0, err
	}
	// The coroutine sits in the registry — parked, not yet run — until
	// the timer fires; cancel() finds and evicts it there exactly like
	// any other suspended thread. Firing only ever pushes the id onto
	// the resumption queue; runOne is solely responsible for consuming
	// the registry entry, so there is exactly one registry.Resume per
	// id no matter how delay and cancel interleave.
	s.exec.SpawnFuture(func() {
		if d > 0 {
			time.Sleep(d)
		}
		if s.cancels.isCancelled(id) {
			return
		}
		s.resumeQ.PushBack(id, core.ValuesPayload(args))
	})
	return id, nil
}

// Cancel implements the `cancel` primitive. Idempotent
// and permanent: once cancelled, id is never resumed again regardless
// of which of registry/queue/timer it currently lives in.
func (s *Scheduler) Cancel(id core.ThreadId) {
	s.cancels.mark(id)
	s.registry.Cancel(id)
}

// Finish retires id directly, without going through a queue: it evicts
// id's registry entry (a no-op if id was already cancelled or already
// finished) and, if err is non-nil and id was not cancelled, reports
// the error. Used by targets whose "resume" is driven by something
// other than the scheduler's own queues — concretely,
// internal/builtins/task, whose spawned/deferred threads run to
// completion inside the script engine's own async-function machinery
// and report back here once settled, rather than suspending on a
// bridge-style host operation.
func (s *Scheduler) Finish(id core.ThreadId, err error) {
	cancelled := s.cancels.isCancelled(id)
	s.registry.Resume(id) //nolint:errcheck // already-evicted is fine
	if err != nil && !cancelled {
		s.reportError(id, err)
	}
}

// runOne resumes id with payload unless it has been cancelled, and
// routes any terminal error to the error callback. Must run on the
// scheduler goroutine (or, for Spawn's eager path, on whatever
// goroutine is currently inside a resume — which by invariant is always
// the scheduler goroutine, since coroutines never run concurrently).
func (s *Scheduler) runOne(id core.ThreadId, payload core.ResumePayload) {
	if s.cancels.isCancelled(id) {
		return
	}
	coro, err := s.registry.Resume(id)
	if err != nil {
		return
	}
	s.resumeDepth.Add(1)
	defer s.resumeDepth.Add(-1)
	coro.Resume(payload)
}

// drainSpawnLike pops every ready entry from q and resumes each in
// turn. Re-entrant spawn/defer/delay calls made while draining enqueue
// further work that is only processed on a later iteration, since
// Drain snapshots the queue up front rather than reading it live.
func (s *Scheduler) drainSpawnLike(q *Queue) {
	for _, e := range q.Drain() {
		s.runOne(e.id, e.payload)
	}
}

// Run executes the scheduler main loop until termination and returns
// the process exit code.
func (s *Scheduler) Run(ctx context.Context) int {
	defer s.registry.Close()
	for {
		// Step 1: merge resumptions into the front of the spawn queue.
		s.spawnQ.PushAllFront(s.resumeQ.Drain())

		// Step 2: drain spawn.
		s.drainSpawnLike(s.spawnQ)

		if s.exitRequested() {
			break
		}

		// Step 3: tick the executor once, letting background futures
		// (timers, I/O) make progress. This may deliver new resumption
		// entries, picked up at the top of the next iteration.
		s.exec.TryTick()

		// Step 4: drain defer.
		s.drainSpawnLike(s.deferQ)

		if s.exitRequested() {
			break
		}

		// Step 5: termination check.
		if s.quiescent() {
			break
		}

		select {
		case <-ctx.Done():
			return s.finalExitCode()
		default:
		}

		// Nothing was immediately ready; give the executor a moment to
		// make progress rather than spinning.
		if s.quiescentExceptBackground() {
			time.Sleep(minWaitGranularity)
		}
	}
	return s.finalExitCode()
}

func (s *Scheduler) quiescent() bool {
	return s.spawnQ.IsEmpty() && s.deferQ.IsEmpty() && s.resumeQ.IsEmpty() &&
		s.registry.IsEmpty() && s.exec.Outstanding() == 0
}

func (s *Scheduler) quiescentExceptBackground() bool {
	return s.spawnQ.IsEmpty() && s.deferQ.IsEmpty() && s.resumeQ.IsEmpty()
}

// RequestExit implements script-level `exit(code)`: that code wins
// regardless of any error state.
func (s *Scheduler) RequestExit(code int) {
	s.exitMu.Lock()
	defer s.exitMu.Unlock()
	if !s.exitCalled {
		s.exitCalled = true
		s.exitCode = code
	}
}

func (s *Scheduler) exitRequested() bool {
	s.exitMu.Lock()
	defer s.exitMu.Unlock()
	return s.exitCalled
}

// finalExitCode applies the scheduler's exit code policy: exit(code)
// wins if called; otherwise nonzero iff some coroutine errored with no
// callback installed; otherwise zero.
func (s *Scheduler) finalExitCode() int {
	s.exitMu.Lock()
	defer s.exitMu.Unlock()
	if s.exitCalled {
		return s.exitCode
	}
	s.errCbMu.Lock()
	hasCallback := s.errCb != nil
	s.errCbMu.Unlock()
	if s.anyError && !hasCallback {
		return 1
	}
	return 0
}
