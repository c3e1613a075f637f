// Package task registers the script-visible `task` built-in: spawn,
// defer, delay, cancel, wait. It is a thin wrapper — the interesting
// engineering lives in internal/scheduler — whose job is purely to
// translate between the script engine's own async functions/promises
// and the scheduler's Target/Coroutine contract: a JS global installed
// via Eval, backed by a handful of Go-registered functions that only
// ever exchange ids and JSON strings with script code, never live
// values.
package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lune-org/lune/internal/core"
)

// Runtime is core.JSRuntime; task only needs Eval/RegisterFunc, both
// already part of that contract. Named locally so a future
// task-specific addition doesn't ripple into internal/core.
type Runtime interface {
	core.JSRuntime
}

// Scheduler is the subset of *scheduler.Scheduler task needs, expressed
// narrowly so this package does not import internal/scheduler directly
// (*scheduler.Scheduler takes a scheduler.Target, so the caller supplies
// a small adapter; cmd/lune's taskTargetAdapter is one).
type Scheduler interface {
	Spawn(target Target, args core.Values) (core.ThreadId, error)
	Defer(target Target, args core.Values) (core.ThreadId, error)
	Delay(d time.Duration, target Target, args core.Values) (core.ThreadId, error)
	Cancel(id core.ThreadId)
	Finish(id core.ThreadId, err error)
}

// Target mirrors scheduler.Target's method set.
type Target interface {
	Build(id core.ThreadId) Coroutine
}

// Coroutine mirrors scheduler.Coroutine's method set.
type Coroutine interface {
	Resume(payload core.ResumePayload)
}

// settleAwaitCoroutine resumes a Promise previously registered by
// __threadAwait(id) via the generic thread bridge's
// __threadResolve/__threadReject globals. Used by task.wait, which
// suspends the *calling* coroutine on a delay rather than starting a
// new task thread.
type settleAwaitCoroutine struct {
	rt Runtime
	id core.ThreadId
}

func (c settleAwaitCoroutine) Resume(payload core.ResumePayload) {
	if payload.Err != nil {
		_ = c.rt.Eval(fmt.Sprintf("__threadReject(%d, %s)", uint64(c.id), jsStringLiteral(fmt.Sprint(payload.Err))))
		return
	}
	valsJSON, err := json.Marshal([]any(payload.Vals))
	if err != nil {
		valsJSON = []byte("[]")
	}
	_ = c.rt.Eval(fmt.Sprintf("__threadResolve(%d, %s)", uint64(c.id), jsStringLiteral(string(valsJSON))))
}

// jsStringLiteral re-encodes s as a JS string literal so it can be
// spliced safely into an Eval call.
func jsStringLiteral(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

// TargetFunc adapts a plain build function into a Target.
type TargetFunc func(id core.ThreadId) Coroutine

// Build implements Target.
func (f TargetFunc) Build(id core.ThreadId) Coroutine { return f(id) }

// jsRunTarget builds a Target whose Build only pairs the stored JS
// function ref with the minted id; the actual call into script code
// happens later, in Resume, so Spawn's eager-vs-queued branch and
// Defer/Delay's queueing are what decide when the function body runs —
// Build itself must never run script code, or spawn/defer/delay would
// all behave like spawn regardless of which one was called.
func jsRunTarget(rt Runtime, sched Scheduler, ref int) Target {
	return TargetFunc(func(id core.ThreadId) Coroutine {
		return taskRunCoroutine{rt: rt, sched: sched, ref: ref, id: id}
	})
}

// taskRunCoroutine invokes the stored JS function ref on Resume —
// eagerly running it up to its first `await`, or to completion if it
// never awaits, which falls out for free because a plain synchronous JS
// call already has that behavior for an async function.
type taskRunCoroutine struct {
	rt    Runtime
	sched Scheduler
	ref   int
	id    core.ThreadId
}

func (c taskRunCoroutine) Resume(core.ResumePayload) {
	js := fmt.Sprintf(`__taskRun(%d, %d)`, c.ref, uint64(c.id))
	if err := c.rt.Eval(js); err != nil {
		c.sched.Finish(c.id, err)
	}
}

// Register installs the `task` global and its Go-backed entry points
// into rt, wired to sched.
func Register(rt Runtime, sched Scheduler) error {
	if err := rt.Eval(taskBootstrapJS); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__task_spawn", func(ref int) (uint64, error) {
		id, err := sched.Spawn(jsRunTarget(rt, sched, ref), nil)
		return uint64(id), err
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__task_defer", func(ref int) (uint64, error) {
		id, err := sched.Defer(jsRunTarget(rt, sched, ref), nil)
		return uint64(id), err
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__task_delay", func(seconds float64, ref int) (uint64, error) {
		id, err := sched.Delay(durationFromSeconds(seconds), jsRunTarget(rt, sched, ref), nil)
		return uint64(id), err
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__task_cancel", func(id uint64) (int, error) {
		sched.Cancel(core.ThreadId(id))
		return 1, nil
	}); err != nil {
		return err
	}

	// __wait_start backs task.wait: it schedules a delay and returns the
	// ThreadId the script should __threadAwait on, reusing the generic
	// async-function bridge's Promise table rather than task's own
	// spawn/settle machinery, since wait suspends the calling coroutine
	// itself instead of starting a new one.
	if err := rt.RegisterFunc("__wait_start", func(seconds float64) (uint64, error) {
		target := TargetFunc(func(id core.ThreadId) Coroutine {
			return settleAwaitCoroutine{rt: rt, id: id}
		})
		mintedID, err := sched.Delay(durationFromSeconds(seconds), target, nil)
		if err != nil {
			return 0, err
		}
		return uint64(mintedID), nil
	}); err != nil {
		return err
	}

	// __task_settle is called from the JS-side promise chain a spawned/
	// deferred/delayed thread's body produces, once it has fully
	// settled (resolved or rejected). It is the only thing that retires
	// a task thread's registry entry.
	if err := rt.RegisterFunc("__task_settle", func(id uint64, ok bool, valueJSON string) (int, error) {
		if ok {
			sched.Finish(core.ThreadId(id), nil)
		} else {
			var raw any
			_ = json.Unmarshal([]byte(valueJSON), &raw)
			sched.Finish(core.ThreadId(id), core.NewScriptError(raw, ""))
		}
		return 1, nil
	}); err != nil {
		return err
	}

	return nil
}

func durationFromSeconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// taskBootstrapJS defines the script-facing `task` table. `wait` is
// implemented on top of the generic async-function bridge
// (__threadAwait/__threadResolve, see internal/vm/quickjs/coroutine.go)
// rather than __task_spawn's own settle path, because waiting suspends
// the *calling* coroutine itself rather than starting a new one.
const taskBootstrapJS = `
(function() {
	globalThis.__taskFns = {};
	globalThis.__taskArgs = {};
	globalThis.__taskNextRef = 1;

	// __threadAwait is installed by the runtime's thread bridge
	// (internal/vm/quickjs's threadBridgeJS) before any builtin is
	// registered.
	globalThis.__threadWaitStart = function(seconds) {
		var id = __wait_start(seconds);
		return __threadAwait(id);
	};

	function storeFn(fn, args) {
		var ref = globalThis.__taskNextRef++;
		globalThis.__taskFns[ref] = fn;
		globalThis.__taskArgs[ref] = args;
		return ref;
	}

	// Invoked by Go (via __taskRun) once the scheduler has minted id for
	// this thread. Runs fn synchronously up to its first await (or to
	// completion, for a non-async fn), then arranges for __task_settle
	// to fire once the result is known either way.
	globalThis.__taskRun = function(ref, id) {
		var fn = globalThis.__taskFns[ref];
		var args = globalThis.__taskArgs[ref] || [];
		delete globalThis.__taskFns[ref];
		delete globalThis.__taskArgs[ref];
		try {
			var result = fn.apply(null, args);
			if (result && typeof result.then === 'function') {
				result.then(
					function(v) { __task_settle(id, true, JSON.stringify(v === undefined ? null : v)); },
					function(e) { __task_settle(id, false, JSON.stringify(e && e.message !== undefined ? e.message : String(e))); }
				);
			} else {
				__task_settle(id, true, JSON.stringify(result === undefined ? null : result));
			}
		} catch (e) {
			__task_settle(id, false, JSON.stringify(e && e.message !== undefined ? e.message : String(e)));
		}
	};

	globalThis.task = {
		spawn: function(fn) {
			var args = Array.prototype.slice.call(arguments, 1);
			var ref = storeFn(fn, args);
			return __task_spawn(ref);
		},
		defer: function(fn) {
			var args = Array.prototype.slice.call(arguments, 1);
			var ref = storeFn(fn, args);
			return __task_defer(ref);
		},
		delay: function(seconds, fn) {
			var args = Array.prototype.slice.call(arguments, 2);
			var ref = storeFn(fn, args);
			return __task_delay(seconds || 0, ref);
		},
		cancel: function(id) {
			return __task_cancel(id);
		},
		wait: function(seconds) {
			var started = Date.now();
			return __threadWaitStart(seconds || 0).then(function() {
				return (Date.now() - started) / 1000;
			});
		}
	};
})();
`
