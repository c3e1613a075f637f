package scheduler

import (
	"sync"

	"github.com/lune-org/lune/internal/core"
)

// entry is one (thread-id, resume payload) pair ready to run.
type entry struct {
	id      core.ThreadId
	payload core.ResumePayload
}

// Queue is a thread-safe FIFO of ready-to-resume threads. The scheduler
// keeps three of these: spawn, defer, and resumption. Drain snapshots
// and clears the whole queue atomically so the caller can rebuild it
// (e.g. merged with another queue) without losing entries pushed
// concurrently mid-drain.
type Queue struct {
	mu    sync.Mutex
	items []entry
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// PushBack appends an entry to the back of the queue.
func (q *Queue) PushBack(id core.ThreadId, payload core.ResumePayload) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, entry{id: id, payload: payload})
}

// PushFront prepends an entry, used by spawn when it is called from
// outside any resume and so cannot run its target eagerly.
func (q *Queue) PushFront(id core.ThreadId, payload core.ResumePayload) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]entry{{id: id, payload: payload}}, q.items...)
}

// PopFront removes and returns the front entry, if any.
func (q *Queue) PopFront() (core.ThreadId, core.ResumePayload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return 0, core.ResumePayload{}, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e.id, e.payload, true
}

// Drain removes and returns every entry currently queued, in order.
func (q *Queue) Drain() []entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// PushAllFront prepends a batch of entries, preserving their relative
// order. Used to merge the resumption queue into the front of the spawn
// queue each loop iteration.
func (q *Queue) PushAllFront(items []entry) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append([]entry{}, items...), q.items...)
}

// Len reports the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the queue holds no entries.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}
