package scheduler

import (
	"sync"

	"github.com/lune-org/lune/internal/core"
)

// Coroutine is the scheduler's view of a suspended script call: whatever
// the VM needs to resume it. Concretely this wraps a resolve/reject
// pair for the promise the script-facing polyfill is awaiting — see
// internal/vm/quickjs for the construction site — but the scheduler
// itself never looks inside.
type Coroutine interface {
	// Resume delivers the payload to the waiting script call. Called on
	// the scheduler's own goroutine only.
	Resume(payload core.ResumePayload)
}

// pendingThread is a registry entry: a suspended coroutine together with
// bookkeeping the scheduler needs for cancellation.
type pendingThread struct {
	id        core.ThreadId
	coroutine Coroutine
	cancelled bool
}

// Registry maps ThreadId to suspended coroutines behind a single mutex,
// keyed by the Scheduler's monotonically increasing id space.
type Registry struct {
	mu      sync.Mutex
	threads map[core.ThreadId]*pendingThread
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{threads: make(map[core.ThreadId]*pendingThread)}
}

// Store parks coroutine as suspended under the given (already minted)
// ThreadId. IDs are minted centrally by the Scheduler so that the same
// id space covers suspended-in-registry, ready-in-queue, and
// pending-timer threads without collision. Returns core.ErrClosed after
// Close.
func (r *Registry) Store(id core.ThreadId, coroutine Coroutine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return core.ErrClosed
	}
	r.threads[id] = &pendingThread{id: id, coroutine: coroutine}
	return nil
}

// Resume atomically removes and returns the parked coroutine for id.
// Returns core.ErrNotFound if id is unknown (already resumed, cancelled,
// or never registered) — this is the no-op path cancellation relies on.
func (r *Registry) Resume(id core.ThreadId) (Coroutine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	delete(r.threads, id)
	return t.coroutine, nil
}

// Cancel marks id so it will never be resumed. Idempotent: cancelling an
// id twice, or an id already resumed/unknown, is a no-op.
func (r *Registry) Cancel(id core.ThreadId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.threads[id]; ok {
		t.cancelled = true
		delete(r.threads, id)
	}
}

// Len returns the number of currently suspended coroutines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}

// IsEmpty reports whether the registry holds no suspended coroutines.
func (r *Registry) IsEmpty() bool {
	return r.Len() == 0
}

// Close marks the registry closed; further Store calls fail with
// ErrClosed. Used during scheduler teardown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}
