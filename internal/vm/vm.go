// Package vm wires together the engine-agnostic scheduler, the async
// bridge, and a concrete core.JSRuntime backend (internal/vm/quickjs)
// into the one object a host embeds: a runnable script VM.
//
// internal/scheduler and internal/bridge each expose narrow local
// interfaces rather than depending on each other directly, so this
// package supplies the small adapters that satisfy them.
package vm

import (
	"log"

	"github.com/lune-org/lune/internal/bridge"
	"github.com/lune-org/lune/internal/core"
	"github.com/lune-org/lune/internal/executor"
	"github.com/lune-org/lune/internal/scheduler"
)

// schedulerAdapter satisfies bridge.Scheduler over *scheduler.Scheduler.
type schedulerAdapter struct{ s *scheduler.Scheduler }

func (a schedulerAdapter) NextID() core.ThreadId { return a.s.NextID() }
func (a schedulerAdapter) ResumptionQueue() bridge.ResumptionQueue {
	return a.s.ResumptionQueue()
}
func (a schedulerAdapter) IsCancelled(id core.ThreadId) bool { return a.s.IsCancelled(id) }

// registrarAdapter satisfies bridge.Registrar over *scheduler.Registry.
type registrarAdapter struct{ r *scheduler.Registry }

func (a registrarAdapter) Store(id core.ThreadId, c bridge.Coroutine) error {
	return a.r.Store(id, c)
}

// VM bundles one script runtime with its scheduler and async bridge.
type VM struct {
	Runtime   core.JSRuntime
	Scheduler *scheduler.Scheduler
	Bridge    *bridge.Bridge
	Executor  *executor.Executor
}

// New assembles a VM around an already-constructed runtime. logger may
// be nil (the scheduler falls back to log.Default()).
func New(rt core.JSRuntime, logger *log.Logger) *VM {
	exec := executor.New()
	sched := scheduler.New(exec, logger)
	br := bridge.New(schedulerAdapter{sched}, registrarAdapter{sched.Registry()})
	return &VM{Runtime: rt, Scheduler: sched, Bridge: br, Executor: exec}
}
