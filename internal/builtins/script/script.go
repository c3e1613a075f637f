// Package script implements the `script` global: dynamic load/compile
// of additional source text against the same running engine, the
// scripting-runtime equivalent of Lune's `luau` built-in. It is a thin
// script-facing wrapper around `core.JSRuntime.Compile`/`EvalCompiled`,
// the same host entry points the require subsystem already uses,
// reused here instead of duplicated.
package script

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lune-org/lune/internal/core"
)

// Runtime is core.JSRuntime narrowed to what script needs.
type Runtime interface {
	core.JSRuntime
}

var (
	chunksMu   sync.Mutex
	chunks     = map[uint64]core.CompiledChunk{}
	nextHandle uint64
)

// Register installs the script.* globals into rt.
func Register(rt Runtime) error {
	if err := rt.RegisterFunc("__script_compile", func(src, chunkName string) (uint64, error) {
		chunk, err := rt.Compile(src, chunkName)
		if err != nil {
			return 0, err
		}
		chunksMu.Lock()
		nextHandle++
		handle := nextHandle
		chunks[handle] = chunk
		chunksMu.Unlock()
		return handle, nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__script_run", func(handle uint64) (string, error) {
		chunksMu.Lock()
		chunk, ok := chunks[handle]
		chunksMu.Unlock()
		if !ok {
			return "", fmt.Errorf("script: unknown compiled chunk handle %d", handle)
		}
		vals, err := rt.EvalCompiled(chunk)
		if err != nil {
			return "", err
		}
		return valuesToJSONArray(vals)
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__script_load", func(src, chunkName string) (string, error) {
		chunk, err := rt.Compile(src, chunkName)
		if err != nil {
			return "", err
		}
		vals, err := rt.EvalCompiled(chunk)
		if err != nil {
			return "", err
		}
		return valuesToJSONArray(vals)
	}); err != nil {
		return err
	}

	return rt.Eval(scriptBootstrapJS)
}

func valuesToJSONArray(vals core.Values) (string, error) {
	b, err := json.Marshal([]any(vals))
	if err != nil {
		return "", fmt.Errorf("script: return value not JSON-representable: %w", err)
	}
	return string(b), nil
}

const scriptBootstrapJS = `
(function() {
	globalThis.script = {
		compile: function(src, chunkName) {
			var handle = __script_compile(src, chunkName || 'script.compile');
			return {
				run: function() {
					var vals = JSON.parse(__script_run(handle));
					return vals.length === 1 ? vals[0] : vals;
				}
			};
		},
		load: function(src, chunkName) {
			var vals = JSON.parse(__script_load(src, chunkName || 'script.load'));
			return vals.length === 1 ? vals[0] : vals;
		}
	};
})();
`
