package require

import (
	"fmt"
	"sync"

	"github.com/lune-org/lune/internal/core"
)

// Loader compiles and executes the module body at canonical path path,
// returning the values it exports. Called at most once per path for
// the lifetime of a Cache. Invoked with the cache's internal lock
// released, so Loader is free to recursively require other modules
// (including, transitively, path itself — which Cache.Require detects
// and rejects as a cycle).
type Loader func(path string) (core.Values, error)

// entryState is a cache entry's variant: monotonic, Pending -> Resolved,
// never back.
type entryState int

const (
	statePending entryState = iota
	stateResolved
)

// entry is one RequireEntry: either a broadcast channel closed when the
// single in-flight load finishes, or the finished result.
type entry struct {
	state entryState

	// Pending:
	done chan struct{}

	// Resolved:
	vals core.Values
	err  error
}

// Cache is the require module cache: canonical path -> entry, with
// single-flight execution (at most one body-run per path, all
// concurrent requires of the same path wait on and share its result)
// and per-coroutine cycle detection.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	resolver *Resolver
	load     Loader
}

// NewCache creates an empty cache. load is invoked to compile/execute a
// module body the first time its canonical path is required.
func NewCache(resolver *Resolver, load Loader) *Cache {
	return &Cache{
		entries:  make(map[string]*entry),
		resolver: resolver,
		load:     load,
	}
}

// Stack is the per-coroutine stack of canonical paths currently being
// loaded, used for cycle detection: a require of a path already on the
// stack is a cycle. Each script coroutine owns its own Stack; it must
// not be shared across coroutines.
type Stack struct {
	paths []string
}

// NewStack creates an empty require stack for one coroutine.
func NewStack() *Stack { return &Stack{} }

func (s *Stack) contains(path string) bool {
	for _, p := range s.paths {
		if p == path {
			return true
		}
	}
	return false
}

// PreloadStd registers a built-in `@std/name` module as a pre-resolved
// entry that never yields. Call once per built-in at scheduler
// construction, before any script runs.
func (c *Cache) PreloadStd(name string, vals core.Values) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries["@std/"+name] = &entry{state: stateResolved, vals: vals}
}

// RequireOutcome is what TryRequire finds. Ready is true when Vals/Err
// are already the final answer; otherwise Wait blocks until the
// in-flight load elsewhere finishes and returns its broadcast result.
type RequireOutcome struct {
	Vals  core.Values
	Err   error
	Ready bool
	Wait  func() (core.Values, error)
}

// TryRequire resolves specifier relative to fromDir, loading the module
// body at most once regardless of how many callers request it. stack is
// the requesting coroutine's require stack, used to detect and reject
// cyclic requires immediately rather than waiting on the in-flight
// entry's done channel forever.
//
// If no load for this path is in flight, TryRequire performs it right
// here before returning, since compiling/evaluating a module body must
// run on the same goroutine as every other script call — there is no
// way to defer that part without moving script execution off its own
// goroutine. Only when another caller is already loading the same path
// does TryRequire return early with Ready=false: its Wait func blocks
// on a plain channel and reads an already-produced result, touching
// nothing in the script runtime, so it is safe to run on a background
// goroutine instead of the one driving the VM — callers that must not
// block that goroutine should route Wait through internal/bridge rather
// than invoking it inline.
func (c *Cache) TryRequire(stack *Stack, fromDir, specifier string) (RequireOutcome, error) {
	resolved, err := c.resolver.Resolve(fromDir, specifier)
	if err != nil {
		return RequireOutcome{}, err
	}

	key := resolved.Path
	if resolved.Std != "" {
		key = "@std/" + resolved.Std
	}

	if stack.contains(key) {
		return RequireOutcome{}, fmt.Errorf("%w: %s", core.ErrRequireCycle, key)
	}

	c.mu.Lock()
	e, exists := c.entries[key]
	if !exists {
		e = &entry{state: statePending, done: make(chan struct{})}
		c.entries[key] = e
		c.mu.Unlock()

		stack.paths = append(stack.paths, key)
		vals, loadErr := c.load(key)
		stack.paths = stack.paths[:len(stack.paths)-1]

		c.mu.Lock()
		e.state = stateResolved
		e.vals, e.err = vals, loadErr
		close(e.done)
		c.mu.Unlock()
		return RequireOutcome{Vals: vals, Err: loadErr, Ready: true}, nil
	}
	c.mu.Unlock()

	if e.state == stateResolved {
		return RequireOutcome{Vals: e.vals, Err: e.err, Ready: true}, nil
	}
	// Another caller is already loading this path: every waiter shares
	// its broadcast result off e.done once that load settles.
	return RequireOutcome{Wait: func() (core.Values, error) {
		<-e.done
		return e.vals, e.err
	}}, nil
}

// Require resolves specifier exactly like TryRequire, but blocks the
// calling goroutine itself when the module is already being loaded
// elsewhere. Fine for callers that run on their own dedicated goroutine
// (tests, a synchronous driver); callers sharing a goroutine with script
// execution should call TryRequire and route a non-Ready Wait through
// internal/bridge instead, so the scheduler can run other coroutines
// while this one waits.
func (c *Cache) Require(stack *Stack, fromDir, specifier string) (core.Values, error) {
	outcome, err := c.TryRequire(stack, fromDir, specifier)
	if err != nil {
		return nil, err
	}
	if outcome.Ready {
		return outcome.Vals, outcome.Err
	}
	return outcome.Wait()
}
