package core

// JSRuntime abstracts the embedded scripting engine (QuickJS, the one
// implementation) behind the common surface the scheduler, require
// subsystem, and built-in libraries need: evaluating script source,
// registering Go-backed globals, and compiling/running module bodies as
// two separate steps.
type JSRuntime interface {
	// Eval evaluates script source and discards the result.
	Eval(src string) error

	// EvalString/EvalBool/EvalInt evaluate script source and convert the
	// result to the named Go type.
	EvalString(src string) (string, error)
	EvalBool(src string) (bool, error)
	EvalInt(src string) (int, error)

	// RegisterFunc registers a Go function as a global script-callable
	// function. Go types are marshaled to/from script values; an error
	// return causes the script-side wrapper to throw instead of
	// returning a (value, error) tuple.
	RegisterFunc(name string, fn any) error

	// SetGlobal sets a global variable. Basic Go types are converted to
	// their script equivalent.
	SetGlobal(name string, value any) error

	// RunMicrotasks pumps the engine's microtask/job queue once to
	// completion (Promise reactions, etc.).
	RunMicrotasks()

	// Compile prepares source without running it, returning an opaque
	// handle EvalCompiled can later execute. The QuickJS implementation
	// only stores the source, so a syntax error surfaces from
	// EvalCompiled, not from Compile.
	Compile(src, chunkName string) (CompiledChunk, error)

	// EvalCompiled runs a previously compiled chunk and returns its
	// module-body return values (module bodies return a value list, the
	// same shape require() callers receive).
	EvalCompiled(c CompiledChunk) (Values, error)

	// Close releases the underlying engine instance.
	Close()
}

// CompiledChunk is an opaque compiled-module handle. Each JSRuntime
// implementation defines its own concrete type satisfying this marker
// interface; the require subsystem never inspects it.
type CompiledChunk interface {
	chunkMarker()
}

// ThreadId identifies a suspended coroutine tracked by the scheduler.
// It is minted monotonically and never reused within a VM's lifetime.
type ThreadId uint64

// ErrorCallback is invoked once per coroutine that terminates with an
// unhandled error. At most one may be installed.
type ErrorCallback func(id ThreadId, err error)
