package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/lune-org/lune/internal/core"
)

// idGenerator mints ThreadIds. A single generator is shared by the
// registry, both ready queues, and the delay timer table so that a
// ThreadId is never reused within a scheduler's lifetime regardless of
// which of those three places currently references it.
type idGenerator struct {
	next atomic.Uint64
}

func (g *idGenerator) mint() core.ThreadId {
	return core.ThreadId(g.next.Add(1))
}

// cancelSet records ids that have been cancelled. Membership is
// monotonic: once set, an id stays set for the life of the scheduler.
// Every resume path — registry resume, queue pop, and timer fire —
// consults this set immediately before acting, so a cancelled thread
// never resumes even across the race between cancel() and an
// in-flight timer or already-queued entry.
type cancelSet struct {
	mu   sync.Mutex
	ids  map[core.ThreadId]struct{}
}

func newCancelSet() *cancelSet {
	return &cancelSet{ids: make(map[core.ThreadId]struct{})}
}

func (c *cancelSet) mark(id core.ThreadId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[id] = struct{}{}
}

func (c *cancelSet) isCancelled(id core.ThreadId) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ids[id]
	return ok
}
