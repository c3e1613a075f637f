package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTryTickRunsOneLocalTaskAtATime(t *testing.T) {
	e := New()

	var order []int
	e.SpawnLocal(func() { order = append(order, 1) })
	e.SpawnLocal(func() { order = append(order, 2) })

	require.True(t, e.TryTick())
	require.Equal(t, []int{1}, order)

	require.True(t, e.TryTick())
	require.Equal(t, []int{1, 2}, order)

	require.False(t, e.TryTick())
}

func TestRunUntilIdleDrainsTasksQueuedByLocalTasks(t *testing.T) {
	e := New()

	var ran []string
	e.SpawnLocal(func() {
		ran = append(ran, "first")
		e.SpawnLocal(func() { ran = append(ran, "second") })
	})

	e.RunUntilIdle()
	require.Equal(t, []string{"first", "second"}, ran)
}

func TestOutstandingCountsPendingFuturesAndLocalTasks(t *testing.T) {
	e := New()
	require.Equal(t, 0, e.Outstanding())

	done := make(chan struct{})
	e.SpawnFuture(func() { <-done })
	e.SpawnLocal(func() {})

	require.Eventually(t, func() bool { return e.Outstanding() == 2 }, time.Second, time.Millisecond)

	close(done)
	e.Wait()
	require.Equal(t, 1, e.Outstanding())

	e.TryTick()
	require.Equal(t, 0, e.Outstanding())
}

func TestSpawnFutureDoesNotBlockCaller(t *testing.T) {
	e := New()

	block := make(chan struct{})
	e.SpawnFuture(func() { <-block })

	done := make(chan struct{})
	go func() {
		e.SpawnFuture(func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SpawnFuture blocked the caller")
	}
	close(block)
	e.Wait()
}
