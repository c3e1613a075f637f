package scheduler

import (
	"testing"

	"github.com/lune-org/lune/internal/core"
	"github.com/stretchr/testify/require"
)

type fakeCoroutine struct {
	resumed []core.ResumePayload
}

func (f *fakeCoroutine) Resume(p core.ResumePayload) {
	f.resumed = append(f.resumed, p)
}

func TestRegistryStoreAndResume(t *testing.T) {
	r := NewRegistry()
	coro := &fakeCoroutine{}

	require.NoError(t, r.Store(1, coro))
	require.Equal(t, 1, r.Len())

	got, err := r.Resume(1)
	require.NoError(t, err)
	require.Same(t, coro, got)
	require.True(t, r.IsEmpty())
}

func TestRegistryResumeUnknownIDFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resume(42)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegistryCancelEvictsAndIsIdempotent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Store(1, &fakeCoroutine{}))

	r.Cancel(1)
	require.True(t, r.IsEmpty())

	r.Cancel(1) // no panic, no-op

	_, err := r.Resume(1)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegistryCloseRejectsFurtherStores(t *testing.T) {
	r := NewRegistry()
	r.Close()

	err := r.Store(1, &fakeCoroutine{})
	require.ErrorIs(t, err, core.ErrClosed)
}
