package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lune-org/lune/internal/core"
	"github.com/lune-org/lune/internal/scheduler"
	"github.com/lune-org/lune/internal/vm"
	"github.com/spf13/cobra"
)

func replCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive read-eval-print loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl()
		},
	}
	return cmd
}

// runRepl keeps one engine (and its require cache) alive across every
// line, so required modules and global script state persist between
// prompts. Scheduler.Run retires its registry once the thread it was
// given reaches quiescence and is a one-shot object after that, so each
// line gets a fresh scheduler/bridge/executor bound to the same
// long-lived script runtime — the moral equivalent of a script process
// per statement, sharing one interpreter.
func runRepl() error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	eng, err := newEngine(cwd)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	fmt.Println("lune repl — Ctrl+D to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()

		if err := evalLine(ctx, eng, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		cancel()
	}
}

// evalLine compiles line against the REPL's shared runtime, binds a
// fresh scheduler/bridge/executor to that runtime via registerBuiltins
// (rebuilding closures task/net/process's globals hold over the
// scheduler), spawns line as that scheduler's one entry thread, and
// drains it to completion with Scheduler.Run — which also picks up any
// task.spawn'd or delayed work the line kicked off before returning.
func evalLine(ctx context.Context, eng *engine, line string) error {
	rt := eng.vm.Runtime

	machine := vm.New(rt, log.New(os.Stderr, "lune: ", 0))
	if err := registerBuiltins(rt, machine); err != nil {
		return err
	}

	chunk, err := rt.Compile(line, "=repl")
	if err != nil {
		return err
	}

	sched := machine.Scheduler
	var result replResult
	target := scheduler.FuncTarget(func(id core.ThreadId) scheduler.Coroutine {
		return mainCoroutine{run: func() {
			vals, err := rt.EvalCompiled(chunk)
			result = replResult{vals: vals, err: err}
			sched.Finish(id, err)
		}}
	})

	if _, err := sched.Spawn(target, nil); err != nil {
		return err
	}

	sched.Run(ctx)

	if result.err != nil {
		return result.err
	}
	for _, v := range result.vals {
		fmt.Printf("%v\n", v)
	}
	return nil
}

type replResult struct {
	vals core.Values
	err  error
}
