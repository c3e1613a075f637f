// Package executor provides the multi-consumer, multi-producer async
// task executor the scheduler depends on abstractly. Background work
// (SpawnFuture) runs on its own goroutine; local work (SpawnLocal) only
// ever runs on whichever goroutine calls TryTick/RunUntilIdle, so VM
// calls queued this way never race with script execution.
package executor

import "sync"

// Executor runs background (Send) futures on any goroutine and local
// tasks on whichever goroutine calls TryTick/RunUntilIdle — by
// convention, the scheduler's own loop goroutine, so local tasks never
// touch the VM concurrently with script execution.
type Executor struct {
	mu       sync.Mutex
	local    []func()
	outReady chan struct{}

	wg      sync.WaitGroup
	pending int
}

// New creates an idle Executor.
func New() *Executor {
	return &Executor{outReady: make(chan struct{}, 1)}
}

// SpawnFuture runs f on a new goroutine. f may touch shared state only
// through channels or other synchronization — it must not touch the VM
// directly.
func (e *Executor) SpawnFuture(f func()) {
	e.mu.Lock()
	e.pending++
	e.mu.Unlock()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.markDone()
		f()
	}()
}

// SpawnLocal enqueues f to run on the next TryTick/RunUntilIdle call,
// i.e. on the VM thread. f need not be goroutine-safe.
func (e *Executor) SpawnLocal(f func()) {
	e.mu.Lock()
	e.local = append(e.local, f)
	e.mu.Unlock()
	e.notify()
}

func (e *Executor) markDone() {
	e.mu.Lock()
	e.pending--
	e.mu.Unlock()
	e.notify()
}

func (e *Executor) notify() {
	select {
	case e.outReady <- struct{}{}:
	default:
	}
}

// TryTick runs at most one unit of pending local work and reports
// whether anything ran.
func (e *Executor) TryTick() bool {
	e.mu.Lock()
	if len(e.local) == 0 {
		e.mu.Unlock()
		return false
	}
	f := e.local[0]
	e.local = e.local[1:]
	e.mu.Unlock()
	f()
	return true
}

// RunUntilIdle drains local tasks until none remain ready. Local tasks
// queued by other local tasks are picked up in the same call.
func (e *Executor) RunUntilIdle() {
	for e.TryTick() {
	}
}

// Outstanding reports the number of in-flight background futures plus
// queued local tasks. Used by the scheduler's termination predicate:
// the loop only exits once this reaches zero.
func (e *Executor) Outstanding() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending + len(e.local)
}

// Wait blocks until all background futures spawned so far have
// completed. Used only during teardown.
func (e *Executor) Wait() {
	e.wg.Wait()
}
