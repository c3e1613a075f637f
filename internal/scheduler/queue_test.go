package scheduler

import (
	"testing"

	"github.com/lune-org/lune/internal/core"
	"github.com/stretchr/testify/require"
)

func TestQueuePushBackPopFrontIsFIFO(t *testing.T) {
	q := NewQueue()
	q.PushBack(1, core.ValuesPayload(nil))
	q.PushBack(2, core.ValuesPayload(nil))

	id, _, ok := q.PopFront()
	require.True(t, ok)
	require.Equal(t, core.ThreadId(1), id)

	id, _, ok = q.PopFront()
	require.True(t, ok)
	require.Equal(t, core.ThreadId(2), id)

	_, _, ok = q.PopFront()
	require.False(t, ok)
}

func TestQueuePushFrontPrepends(t *testing.T) {
	q := NewQueue()
	q.PushBack(1, core.ValuesPayload(nil))
	q.PushFront(2, core.ValuesPayload(nil))

	id, _, ok := q.PopFront()
	require.True(t, ok)
	require.Equal(t, core.ThreadId(2), id)
}

func TestQueueDrainEmptiesAndPreservesOrder(t *testing.T) {
	q := NewQueue()
	q.PushBack(1, core.ValuesPayload(nil))
	q.PushBack(2, core.ValuesPayload(nil))
	q.PushBack(3, core.ValuesPayload(nil))

	items := q.Drain()
	require.Len(t, items, 3)
	require.Equal(t, core.ThreadId(1), items[0].id)
	require.Equal(t, core.ThreadId(2), items[1].id)
	require.Equal(t, core.ThreadId(3), items[2].id)
	require.True(t, q.IsEmpty())
}

func TestQueuePushAllFrontPreservesRelativeOrder(t *testing.T) {
	q := NewQueue()
	q.PushBack(3, core.ValuesPayload(nil))

	q.PushAllFront([]entry{
		{id: 1, payload: core.ValuesPayload(nil)},
		{id: 2, payload: core.ValuesPayload(nil)},
	})

	items := q.Drain()
	require.Equal(t, []core.ThreadId{1, 2, 3}, []core.ThreadId{items[0].id, items[1].id, items[2].id})
}
