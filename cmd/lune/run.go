package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lune-org/lune/internal/core"
	"github.com/lune-org/lune/internal/scheduler"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a script file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runScript(args[0], args[1:])
			if err != nil {
				return err
			}
			os.Exit(code)
			return nil
		},
	}
	return cmd
}

// runScript loads path, registers it as the main thread on a fresh
// engine, and drives the scheduler to completion, returning the
// process exit code the scheduler settled on.
func runScript(path string, scriptArgs []string) (int, error) {
	entryDir := scriptPathDir(path)

	eng, err := newEngine(entryDir)
	if err != nil {
		return 1, err
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return 1, fmt.Errorf("reading %s: %w", path, err)
	}

	argsJSON, err := json.Marshal(scriptArgs)
	if err != nil {
		return 1, err
	}
	// process.args is seeded from os.Args by process.Register; overwrite
	// it here with just the script's own trailing args, matching Lune's
	// `process.args` (args after the script path, not the CLI invocation).
	if err := eng.vm.Runtime.Eval(fmt.Sprintf("globalThis.process = globalThis.process || {}; process.args = %s;", argsJSON)); err != nil {
		return 1, err
	}

	chunk, err := eng.vm.Runtime.Compile(string(src), path)
	if err != nil {
		return 1, fmt.Errorf("compiling %s: %w", path, err)
	}

	sched := eng.vm.Scheduler
	target := scheduler.FuncTarget(func(id core.ThreadId) scheduler.Coroutine {
		return mainCoroutine{run: func() {
			_, err := eng.vm.Runtime.EvalCompiled(chunk)
			sched.Finish(id, err)
		}}
	})

	if _, err := sched.Spawn(target, nil); err != nil {
		return 1, fmt.Errorf("spawning main thread: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return sched.Run(ctx), nil
}

// mainCoroutine is the registry entry for an entry thread (the script
// of `lune run`, or one REPL line). Build only wraps the body; the
// scheduler's first Resume runs it to completion and retires the thread
// via Scheduler.Finish. Because the body runs inside a resume, its
// task.spawn calls run their targets eagerly.
type mainCoroutine struct {
	run func()
}

func (c mainCoroutine) Resume(core.ResumePayload) { c.run() }
