package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/lune-org/lune/internal/bridge"
	"github.com/lune-org/lune/internal/builtins/datetime"
	"github.com/lune-org/lune/internal/builtins/fs"
	netbuiltin "github.com/lune-org/lune/internal/builtins/net"
	"github.com/lune-org/lune/internal/builtins/process"
	"github.com/lune-org/lune/internal/builtins/regexlib"
	"github.com/lune-org/lune/internal/builtins/script"
	"github.com/lune-org/lune/internal/builtins/serde"
	"github.com/lune-org/lune/internal/builtins/stdio"
	"github.com/lune-org/lune/internal/builtins/task"
	"github.com/lune-org/lune/internal/core"
	"github.com/lune-org/lune/internal/require"
	"github.com/lune-org/lune/internal/scheduler"
	"github.com/lune-org/lune/internal/vm"
	"github.com/lune-org/lune/internal/vm/quickjs"
)

// stdGlobals lists every built-in library installed as a global table,
// in the order PreloadStd registers them, each addressable as
// `@std/<name>` in addition to its bare global name.
var stdGlobals = []string{"task", "fs", "net", "process", "regex", "script", "serde", "stdio", "datetime"}

// engine bundles a ready-to-run VM with its require cache, wiring a
// fresh script runtime to every built-in before ever handing it a
// script to run.
type engine struct {
	vm    *vm.VM
	cache *require.Cache
}

// newEngine constructs a VM, registers every built-in library, and
// wires the require subsystem rooted at entryDir.
func newEngine(entryDir string) (*engine, error) {
	rt, err := quickjs.New()
	if err != nil {
		return nil, fmt.Errorf("creating script runtime: %w", err)
	}

	machine := vm.New(rt, log.New(os.Stderr, "lune: ", 0))
	if err := registerBuiltins(rt, machine); err != nil {
		return nil, err
	}

	resolver := require.NewResolver(stdLoader)
	cache := require.NewCache(resolver, moduleLoader(rt))
	for _, name := range stdGlobals {
		cache.PreloadStd(name, core.Values{stdGlobalMarker(name)})
	}

	spawnFuture := machine.Executor.SpawnFuture
	if err := rt.SetGlobal("__require_root", entryDir); err != nil {
		return nil, err
	}
	// __require_try never blocks the VM goroutine: a new or already-
	// resolved module settles inline (require's common case, since a
	// module body must run on this same goroutine regardless), but a
	// module another caller is already loading is routed through the
	// async bridge instead of parking here, so the calling script
	// coroutine suspends rather than stalling the scheduler.
	//
	// One require stack serves the whole engine: module bodies load
	// synchronously on the VM goroutine, so it always holds exactly the
	// chain of loads in progress, and a module that requires itself,
	// directly or through others, fails with a cycle error.
	requireStack := require.NewStack()
	if err := rt.RegisterFunc("__require_try", func(fromDir, specifier string) (string, error) {
		outcome, err := cache.TryRequire(requireStack, fromDir, specifier)
		if err != nil {
			return "", err
		}
		if outcome.Ready {
			if outcome.Err != nil {
				return "", outcome.Err
			}
			valsJSON, jerr := valuesToJSON(outcome.Vals)
			if jerr != nil {
				return "", jerr
			}
			return fmt.Sprintf(`{"ready":true,"values":%s}`, valsJSON), nil
		}

		id, err := machine.Bridge.Call(context.Background(),
			func(id core.ThreadId) bridge.Coroutine { return quickjs.NewPromiseCoroutine(rt, id) },
			spawnFuture,
			func(context.Context) (core.Values, error) { return outcome.Wait() },
		)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(`{"ready":false,"id":%d}`, id), nil
	}); err != nil {
		return nil, err
	}
	if err := rt.Eval(requireBootstrapJS); err != nil {
		return nil, err
	}

	return &engine{vm: machine, cache: cache}, nil
}

// stdGlobalMarker is what require("@std/<name>") resolves to: a sentinel
// object requireBootstrapJS's require() recognizes and substitutes with
// the live globalThis[name] table, since a built-in's functions cannot
// round-trip through the JSON values a require result otherwise carries.
func stdGlobalMarker(name string) map[string]any {
	return map[string]any{"__stdGlobal": name}
}

// registerBuiltins installs every built-in library's globals into rt,
// wired against machine's scheduler/bridge/executor. Split out of
// newEngine so the REPL can rebuild a fresh scheduler bound to the
// same long-lived rt between lines without re-deriving this wiring by
// hand (see repl.go's per-line scheduler rebuild).
func registerBuiltins(rt core.JSRuntime, machine *vm.VM) error {
	spawnFuture := machine.Executor.SpawnFuture

	if err := task.Register(rt, schedulerForTask{machine.Scheduler}); err != nil {
		return fmt.Errorf("registering task: %w", err)
	}
	if err := fs.Register(rt); err != nil {
		return fmt.Errorf("registering fs: %w", err)
	}
	if err := netbuiltin.Register(rt, machine.Bridge, machine.Executor, spawnFuture); err != nil {
		return fmt.Errorf("registering net: %w", err)
	}
	if err := process.Register(rt, machine.Bridge, spawnFuture); err != nil {
		return fmt.Errorf("registering process: %w", err)
	}
	if err := serde.Register(rt); err != nil {
		return fmt.Errorf("registering serde: %w", err)
	}
	if err := datetime.Register(rt); err != nil {
		return fmt.Errorf("registering datetime: %w", err)
	}
	if err := regexlib.Register(rt); err != nil {
		return fmt.Errorf("registering regex: %w", err)
	}
	if err := stdio.Register(rt); err != nil {
		return fmt.Errorf("registering stdio: %w", err)
	}
	if err := script.Register(rt); err != nil {
		return fmt.Errorf("registering script: %w", err)
	}
	return nil
}

// schedulerForTask adapts *scheduler.Scheduler to task.Scheduler — the
// same named-interface-over-concrete-type shim internal/vm/vm.go uses
// for the bridge's Scheduler/Registrar. task.Target and scheduler.Target
// are distinct named interface types even though task.Coroutine and
// scheduler.Coroutine share an identical Resume method set (and are
// therefore directly interchangeable); the Target leg still needs
// taskTargetAdapter below to cross the package boundary as a parameter.
type schedulerForTask struct {
	s *scheduler.Scheduler
}

func (a schedulerForTask) Spawn(target task.Target, args core.Values) (core.ThreadId, error) {
	return a.s.Spawn(taskTargetAdapter{target}, args)
}

func (a schedulerForTask) Defer(target task.Target, args core.Values) (core.ThreadId, error) {
	return a.s.Defer(taskTargetAdapter{target}, args)
}

func (a schedulerForTask) Delay(d time.Duration, target task.Target, args core.Values) (core.ThreadId, error) {
	return a.s.Delay(d, taskTargetAdapter{target}, args)
}

func (a schedulerForTask) Cancel(id core.ThreadId) {
	a.s.Cancel(id)
}

func (a schedulerForTask) Finish(id core.ThreadId, err error) {
	a.s.Finish(id, err)
}

// taskTargetAdapter adapts a task.Target to scheduler.Target.
type taskTargetAdapter struct {
	t task.Target
}

func (a taskTargetAdapter) Build(id core.ThreadId) scheduler.Coroutine {
	return a.t.Build(id)
}

// moduleLoader builds a require.Loader that compiles and runs a module
// body against rt, wrapping it CommonJS-style so `module.exports`
// becomes the single value require() resolves to — a convention picked
// because the embedded engine is JS-based (see DESIGN.md for the
// reasoning).
func moduleLoader(rt core.JSRuntime) require.Loader {
	return func(path string) (core.Values, error) {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		wrapped := "(function() {\nvar module = { exports: {} };\nvar exports = module.exports;\n" +
			string(src) + "\nreturn module.exports;\n})()"
		chunk, err := rt.Compile(wrapped, path)
		if err != nil {
			return nil, fmt.Errorf("compiling %s: %w", path, err)
		}
		return rt.EvalCompiled(chunk)
	}
}

// stdLoader reports whether name is one of the built-in libraries
// registered as a global table, so the resolver accepts `@std/<name>`
// as a valid specifier. The actual value returned here is never used —
// Cache.PreloadStd (called once in newEngine, after registerBuiltins)
// is what populates the matching cache entry every @std/<name> require
// actually resolves to.
func stdLoader(name string) (core.Values, bool) {
	for _, n := range stdGlobals {
		if n == name {
			return core.Values{stdGlobalMarker(name)}, true
		}
	}
	return nil, false
}

func valuesToJSON(vals core.Values) (string, error) {
	b, err := json.Marshal([]any(vals))
	if err != nil {
		return "", fmt.Errorf("require: return value not JSON-representable: %w", err)
	}
	return string(b), nil
}

const requireBootstrapJS = `
(function() {
	function unwrap(values) {
		if (values.length === 1 && values[0] && typeof values[0] === 'object' && typeof values[0].__stdGlobal === 'string') {
			return globalThis[values[0].__stdGlobal];
		}
		return values.length === 1 ? values[0] : values;
	}

	globalThis.require = function(specifier) {
		var fromDir = globalThis.__require_root;
		var result = JSON.parse(__require_try(fromDir, specifier));
		if (result.ready) {
			return unwrap(result.values);
		}
		// Another require of the same module is already in flight: this
		// one suspends on the same bridge every other async built-in
		// uses, so it resolves to a Promise instead of a plain value —
		// only reachable when something outside a single script body's
		// own synchronous require chain contends for the same module.
		// __threadResolve already unwraps a single-value result, so no
		// stdGlobal substitution is needed here: std modules are always
		// preloaded as Resolved before any script runs.
		return __threadAwait(result.id);
	};
})();
`

func scriptPathDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "."
	}
	return filepath.Dir(abs)
}
