// Package process implements the `process` global: argv/env access,
// process exit, and subprocess spawning. Subprocesses run through
// os/exec, with stdout/stderr/exit code collected into a single result
// handed back to the awaiting script call.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"runtime"

	"github.com/lune-org/lune/internal/bridge"
	"github.com/lune-org/lune/internal/core"
)

// Runtime is core.JSRuntime narrowed to what process needs.
type Runtime interface {
	core.JSRuntime
}

type spawnArgs struct {
	Program string            `json:"program"`
	Args    []string          `json:"args"`
	Cwd     string            `json:"cwd"`
	Env     map[string]string `json:"env"`
	Stdin   string            `json:"stdin"`
}

type spawnResult struct {
	Ok     bool   `json:"ok"`
	Code   int    `json:"code"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

func jsonLiteral(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

type awaitCoroutine struct {
	rt Runtime
	id core.ThreadId
}

func (c awaitCoroutine) Resume(payload core.ResumePayload) {
	if payload.Err != nil {
		_ = c.rt.Eval("__threadReject(" + idStr(c.id) + ", " + jsonLiteral(payload.Err.Error()) + ")")
		return
	}
	valsJSON, err := json.Marshal([]any(payload.Vals))
	if err != nil {
		valsJSON = []byte("[]")
	}
	_ = c.rt.Eval("__threadResolve(" + idStr(c.id) + ", " + jsonLiteral(string(valsJSON)) + ")")
}

func idStr(id core.ThreadId) string {
	b, _ := json.Marshal(uint64(id))
	return string(b)
}

func doSpawn(ctx context.Context, argsJSON string) (core.Values, error) {
	var args spawnArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, args.Program, args.Args...)
	if args.Cwd != "" {
		cmd.Dir = args.Cwd
	}
	if len(args.Env) > 0 {
		env := os.Environ()
		for k, v := range args.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	if args.Stdin != "" {
		cmd.Stdin = bytes.NewReader([]byte(args.Stdin))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	code := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			return nil, runErr
		}
	}

	out := spawnResult{Ok: code == 0, Code: code, Stdout: stdout.String(), Stderr: stderr.String()}
	return core.Values{out}, nil
}

// Register installs the process.* globals into rt.
func Register(rt Runtime, br *bridge.Bridge, spawnFuture func(func())) error {
	if err := rt.RegisterFunc("__process_spawnStart", func(argsJSON string) (uint64, error) {
		id, err := br.Call(context.Background(),
			func(id core.ThreadId) bridge.Coroutine { return awaitCoroutine{rt: rt, id: id} },
			spawnFuture,
			func(ctx context.Context) (core.Values, error) { return doSpawn(ctx, argsJSON) },
		)
		return uint64(id), err
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__process_exit", func(code int) {
		os.Exit(code)
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__process_env_get", func(key string) (string, error) {
		val, _ := os.LookupEnv(key)
		return val, nil
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__process_env_set", func(key, value string) {
		_ = os.Setenv(key, value)
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__process_cwd", func() (string, error) {
		return os.Getwd()
	}); err != nil {
		return err
	}

	argsJSON, err := json.Marshal(os.Args)
	if err != nil {
		return err
	}
	envJSON, err := json.Marshal(environMap())
	if err != nil {
		return err
	}

	return rt.Eval(processBootstrapJS(string(argsJSON), string(envJSON), runtime.GOOS, runtime.GOARCH))
}

func environMap() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}

func processBootstrapJS(argsJSON, envJSON, goos, goarch string) string {
	return `
(function() {
	globalThis.process = globalThis.process || {};
	process.args = ` + argsJSON + `;
	process.os = ` + jsonLiteral(goos) + `;
	process.arch = ` + jsonLiteral(goarch) + `;
	process.cwd = function() { return __process_cwd(); };
	process.exit = function(code) { __process_exit(code || 0); };

	var __env = ` + envJSON + `;
	process.env = new Proxy(__env, {
		get: function(target, key) {
			if (typeof key !== 'string') return undefined;
			var val = __process_env_get(key);
			return val === undefined ? undefined : val;
		},
		set: function(target, key, value) {
			__process_env_set(String(key), String(value));
			target[key] = value;
			return true;
		}
	});

	process.create = function(program, args, options) {
		options = options || {};
		var argsJSON = JSON.stringify({
			program: program,
			args: args || [],
			cwd: options.cwd || '',
			env: options.env || {},
			stdin: options.stdin || ''
		});
		var id = __process_spawnStart(argsJSON);
		return __threadAwait(id);
	};
})();
`
}
