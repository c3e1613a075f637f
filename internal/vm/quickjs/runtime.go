//go:build !v8

// Package quickjs implements core.JSRuntime on top of modernc.org/quickjs,
// the pure-Go (no cgo) QuickJS binding — the repository's only script
// backend. The package is excluded from builds with the v8 tag, and no
// other backend exists in the repository.
package quickjs

import (
	"fmt"

	"github.com/lune-org/lune/internal/core"
	"modernc.org/quickjs"
)

// Runtime implements core.JSRuntime for the QuickJS engine. One Runtime
// backs exactly one VM goroutine: QuickJS values and contexts are not
// safe to share across goroutines, so every call into a Runtime must
// come from the same goroutine that created it.
type Runtime struct {
	vm *quickjs.VM
}

var _ core.JSRuntime = (*Runtime)(nil)

// New creates a Runtime with a fresh QuickJS VM and installs the
// resume/promise bridge described in coroutine.go.
func New() (*Runtime, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating quickjs VM: %w", err)
	}
	r := &Runtime{vm: vm}
	if err := r.installThreadBridge(); err != nil {
		vm.Close()
		return nil, err
	}
	return r, nil
}

// Eval evaluates src and discards the result.
func (r *Runtime) Eval(src string) error {
	v, err := r.vm.EvalValue(src, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// EvalString evaluates src and returns the result as a Go string.
func (r *Runtime) EvalString(src string) (string, error) {
	result, err := r.vm.Eval(src, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprint(result), nil
}

// EvalBool evaluates src and returns the result as a Go bool.
func (r *Runtime) EvalBool(src string) (bool, error) {
	result, err := r.vm.Eval(src, quickjs.EvalGlobal)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool result, got %T", result)
	}
	return b, nil
}

// EvalInt evaluates src and returns the result as a Go int.
func (r *Runtime) EvalInt(src string) (int, error) {
	result, err := r.vm.Eval(src, quickjs.EvalGlobal)
	if err != nil {
		return 0, err
	}
	switch v := result.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected numeric result, got %T", result)
	}
}

// RegisterFunc registers fn as a global JavaScript function named name.
// Multi-value Go returns (T, error) arrive in JS as a two-element array;
// RegisterFunc installs a thin wrapper that unpacks that array into a
// plain return-or-throw.
func (r *Runtime) RegisterFunc(name string, fn any) error {
	rawName := "__raw_" + name
	if err := r.vm.RegisterFunc(rawName, fn, false); err != nil {
		return err
	}
	wrap := fmt.Sprintf(`(function() {
		var raw = globalThis[%q];
		globalThis[%q] = function() {
			var r = raw.apply(this, arguments);
			if (Array.isArray(r)) {
				if (r[1] !== null && r[1] !== undefined) throw new Error(String(r[1]));
				return r[0];
			}
			return r;
		};
		delete globalThis[%q];
	})()`, rawName, name, rawName)
	return r.Eval(wrap)
}

// SetGlobal sets a property on the VM's global object.
func (r *Runtime) SetGlobal(name string, value any) error {
	atom, err := r.vm.NewAtom(name)
	if err != nil {
		return fmt.Errorf("creating atom %q: %w", name, err)
	}
	glob := r.vm.GlobalObject()
	defer glob.Free()
	return glob.SetProperty(atom, value)
}

// RunMicrotasks pumps the QuickJS job queue once.
func (r *Runtime) RunMicrotasks() {
	executePendingJobs(r.vm)
}

// chunk holds a script body for later evaluation against the owning
// Runtime's own VM. The modernc.org/quickjs binding has no standalone
// parse-only or bytecode-compile entry point, so Compile cannot validate
// src without running it; running it is EvalCompiled's job alone, so
// Compile just stores src and defers every side effect to there.
type chunk struct {
	src       string
	chunkName string
}

func (*chunk) chunkMarker() {}

// Compile stores src for later evaluation by EvalCompiled. It does not
// touch the VM, so it cannot itself fail, and a module's top-level body
// still runs exactly once — whenever EvalCompiled is called on the
// chunk it returns.
func (r *Runtime) Compile(src, chunkName string) (core.CompiledChunk, error) {
	return &chunk{src: src, chunkName: chunkName}, nil
}

// EvalCompiled runs a chunk produced by Compile against this Runtime's
// own VM, with every builtin installThreadBridge/registerBuiltins
// already set up, and returns its result. Safe to call more than once on
// the same chunk: each call re-runs src as a fresh top-level evaluation
// (script.compile(...).run() relies on this; require's module cache
// relies on calling it exactly once per module instead).
func (r *Runtime) EvalCompiled(c core.CompiledChunk) (core.Values, error) {
	ch, ok := c.(*chunk)
	if !ok {
		return nil, fmt.Errorf("quickjs: foreign CompiledChunk")
	}
	result, err := r.vm.Eval(ch.src, quickjs.EvalGlobal)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", ch.chunkName, err)
	}
	if result == nil {
		return nil, nil
	}
	return core.Values{result}, nil
}

// Close releases the underlying VM.
func (r *Runtime) Close() {
	r.vm.Close()
}
