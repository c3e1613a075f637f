//go:build !v8

package quickjs

import (
	"encoding/json"
	"fmt"

	"github.com/lune-org/lune/internal/core"
)

// threadBridgeJS installs a global `__threadPromises` table mapping a
// ThreadId to its {resolve, reject} pair, plus the two Go-backed entry
// points that settle it. Every script-visible async call (task.wait,
// every async_bridge-routed built-in) constructs a Promise, stashes its
// resolve/reject in this table under the ThreadId the host minted for
// it, and awaits that Promise — the Go side never touches the Promise
// object directly, only these two functions.
const threadBridgeJS = `
(function() {
	globalThis.__threadPromises = {};

	globalThis.__threadAwait = function(id) {
		return new Promise(function(resolve, reject) {
			globalThis.__threadPromises[id] = { resolve: resolve, reject: reject };
		});
	};

	globalThis.__threadResolve = function(id, valuesJSON) {
		var p = globalThis.__threadPromises[id];
		delete globalThis.__threadPromises[id];
		if (!p) return;
		var vals = JSON.parse(valuesJSON);
		p.resolve(vals.length === 1 ? vals[0] : vals);
	};

	globalThis.__threadReject = function(id, errJSON) {
		var p = globalThis.__threadPromises[id];
		delete globalThis.__threadPromises[id];
		if (!p) return;
		var e = JSON.parse(errJSON);
		p.reject(new Error(typeof e === 'string' ? e : JSON.stringify(e)));
	};
})();
`

// installThreadBridge evaluates threadBridgeJS into r's VM. Called once
// at Runtime construction.
func (r *Runtime) installThreadBridge() error {
	return r.Eval(threadBridgeJS)
}

// Await evaluates `__threadAwait(id)` and returns the resulting Promise
// value — intended to be called from within a registered builtin's Go
// function body so the Promise construction happens inside the same
// script call that is about to suspend, rather than from a separate Go
// entry point invoked afterward.
func (r *Runtime) Await(id core.ThreadId) (string, error) {
	return r.EvalString(fmt.Sprintf("__threadAwait(%d)", uint64(id)))
}

// PromiseCoroutine is a scheduler.Coroutine that settles the JS Promise
// registered under a ThreadId in __threadPromises. cmd/lune creates one
// for each require that waits on a module already being loaded;
// task.wait and the net and process built-ins settle their Promises
// through coroutine types of their own.
type PromiseCoroutine struct {
	rt *Runtime
	id core.ThreadId
}

// NewPromiseCoroutine wraps id's pending JS Promise as a Coroutine.
func NewPromiseCoroutine(rt *Runtime, id core.ThreadId) *PromiseCoroutine {
	return &PromiseCoroutine{rt: rt, id: id}
}

// Resume settles the Promise: resolves it with payload.Vals, or rejects
// it with payload.Err, then pumps microtasks once so any .then()/await
// continuation the script registered on the Promise runs immediately,
// on the same tick rather than waiting for a later one.
func (c *PromiseCoroutine) Resume(payload core.ResumePayload) {
	defer c.rt.RunMicrotasks()

	if payload.Err != nil {
		errJSON, err := json.Marshal(scriptErrorValue(payload.Err))
		if err != nil {
			errJSON = []byte(`"internal error marshaling rejection"`)
		}
		_ = c.rt.Eval(fmt.Sprintf("__threadReject(%d, %s)", uint64(c.id), quoteJSONString(string(errJSON))))
		return
	}

	valsJSON, err := json.Marshal([]any(payload.Vals))
	if err != nil {
		valsJSON = []byte("[]")
	}
	_ = c.rt.Eval(fmt.Sprintf("__threadResolve(%d, %s)", uint64(c.id), quoteJSONString(string(valsJSON))))
}

// scriptErrorValue unwraps a *core.ScriptError back to its original
// script-raised value so rejection carries the exact value the script
// threw, whether that was a string, an object, or anything else a
// script can throw; any other Go error is passed through as its
// message string.
func scriptErrorValue(err error) any {
	if se, ok := err.(*core.ScriptError); ok {
		return se.Value
	}
	return err.Error()
}

// quoteJSONString re-encodes an already-JSON-encoded string as a JS
// string literal so it can be spliced into an Eval call safely.
func quoteJSONString(s string) string {
	quoted, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(quoted)
}
