package scheduler

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/lune-org/lune/internal/core"
	"github.com/lune-org/lune/internal/executor"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// recordingTarget builds a Coroutine that immediately records the args
// it was spawned with and finishes itself; it never actually suspends.
func recordingTarget(sched *Scheduler, record *[]core.Values) Target {
	return FuncTarget(func(id core.ThreadId) Coroutine {
		return &onceCoroutine{
			onResume: func(p core.ResumePayload) {
				*record = append(*record, p.Vals)
			},
		}
	})
}

type onceCoroutine struct {
	onResume func(core.ResumePayload)
}

func (c *onceCoroutine) Resume(p core.ResumePayload) { c.onResume(p) }

func TestSchedulerSpawnFromOutsideResumeRunsNextTick(t *testing.T) {
	sched := New(executor.New(), testLogger())

	var record []core.Values
	_, err := sched.Spawn(recordingTarget(sched, &record), core.Values{"hello"})
	require.NoError(t, err)

	// Not run yet: Spawn from outside a resume only enqueues.
	require.Empty(t, record)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	code := sched.Run(ctx)

	require.Equal(t, 0, code)
	require.Equal(t, []core.Values{{"hello"}}, record)
}

func TestSchedulerFinishReportsErrorToCallback(t *testing.T) {
	sched := New(executor.New(), testLogger())

	var gotErr error
	var gotID core.ThreadId
	sched.SetErrorCallback(func(id core.ThreadId, err error) {
		gotID, gotErr = id, err
	})

	failing := FuncTarget(func(id core.ThreadId) Coroutine {
		sched.Finish(id, core.NewScriptError("boom", ""))
		return &onceCoroutine{onResume: func(core.ResumePayload) {}}
	})

	id, err := sched.Spawn(failing, nil)
	require.NoError(t, err)
	require.Equal(t, id, gotID)
	require.EqualError(t, gotErr, "boom")
}

func TestSchedulerExitCodeDefaultsToOneOnUnhandledError(t *testing.T) {
	sched := New(executor.New(), testLogger())

	failing := FuncTarget(func(id core.ThreadId) Coroutine {
		sched.Finish(id, core.NewScriptError("boom", ""))
		return &onceCoroutine{onResume: func(core.ResumePayload) {}}
	})

	_, err := sched.Spawn(failing, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Equal(t, 1, sched.Run(ctx))
}

func TestSchedulerRequestExitWinsOverErrorState(t *testing.T) {
	sched := New(executor.New(), testLogger())

	failing := FuncTarget(func(id core.ThreadId) Coroutine {
		sched.Finish(id, core.NewScriptError("boom", ""))
		sched.RequestExit(7)
		return &onceCoroutine{onResume: func(core.ResumePayload) {}}
	})

	_, err := sched.Spawn(failing, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Equal(t, 7, sched.Run(ctx))
}

func TestSchedulerCancelPreventsDelayedResume(t *testing.T) {
	sched := New(executor.New(), testLogger())

	var record []core.Values
	id, err := sched.Delay(50*time.Millisecond, recordingTarget(sched, &record), core.Values{"late"})
	require.NoError(t, err)
	sched.Cancel(id)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	require.Empty(t, record)
}

func TestSchedulerDelayRunsAfterDuration(t *testing.T) {
	sched := New(executor.New(), testLogger())

	var record []core.Values
	start := time.Now()
	_, err := sched.Delay(30*time.Millisecond, recordingTarget(sched, &record), core.Values{"ok"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sched.Run(ctx)

	require.Equal(t, []core.Values{{"ok"}}, record)
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
