package require

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lune-org/lune/internal/core"
	"github.com/stretchr/testify/require"
)

func TestCacheLoadsModuleAtMostOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mod.luau"), "return {}")

	var loadCount atomic.Int32
	loader := func(path string) (core.Values, error) {
		loadCount.Add(1)
		return core.Values{path}, nil
	}

	cache := NewCache(NewResolver(nil), loader)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Require(NewStack(), dir, "./mod")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, loadCount.Load())
}

func TestCacheBroadcastsResultToConcurrentWaiters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mod.luau"), "return {}")

	release := make(chan struct{})
	loader := func(path string) (core.Values, error) {
		<-release
		return core.Values{"loaded"}, nil
	}
	cache := NewCache(NewResolver(nil), loader)

	results := make(chan core.Values, 2)
	for i := 0; i < 2; i++ {
		go func() {
			vals, err := cache.Require(NewStack(), dir, "./mod")
			require.NoError(t, err)
			results <- vals
		}()
	}

	time.Sleep(20 * time.Millisecond) // let both callers block on the in-flight load
	close(release)

	for i := 0; i < 2; i++ {
		select {
		case vals := <-results:
			require.Equal(t, core.Values{"loaded"}, vals)
		case <-time.After(time.Second):
			t.Fatal("waiter was never unblocked")
		}
	}
}

func TestCacheDetectsCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.luau"), "return {}")

	var cache *Cache
	stack := NewStack()
	loader := func(path string) (core.Values, error) {
		// a requires itself through the same stack.
		return cache.Require(stack, dir, "./a")
	}
	cache = NewCache(NewResolver(nil), loader)

	_, err := cache.Require(stack, dir, "./a")
	require.ErrorIs(t, err, core.ErrRequireCycle)
}

func TestCachePreloadStdShortCircuitsLoader(t *testing.T) {
	std := func(name string) (core.Values, bool) {
		if name == "fs" {
			return core.Values{"preloaded"}, true
		}
		return nil, false
	}
	loaderCalled := false
	cache := NewCache(NewResolver(std), func(path string) (core.Values, error) {
		loaderCalled = true
		return nil, nil
	})
	cache.PreloadStd("fs", core.Values{"preloaded"})

	vals, err := cache.Require(NewStack(), t.TempDir(), "@std/fs")
	require.NoError(t, err)
	require.Equal(t, core.Values{"preloaded"}, vals)
	require.False(t, loaderCalled)
}

func TestCacheSurfacesResolveErrors(t *testing.T) {
	cache := NewCache(NewResolver(nil), func(string) (core.Values, error) { return nil, nil })
	_, err := cache.Require(NewStack(), t.TempDir(), "./missing")
	require.ErrorIs(t, err, core.ErrRequireNotFound)
}

func TestTryRequireSettlesNewModuleInline(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mod.luau"), "return {}")

	cache := NewCache(NewResolver(nil), func(path string) (core.Values, error) {
		return core.Values{path}, nil
	})

	outcome, err := cache.TryRequire(NewStack(), dir, "./mod")
	require.NoError(t, err)
	require.True(t, outcome.Ready)
	require.Nil(t, outcome.Wait)
	require.NoError(t, outcome.Err)
	require.Len(t, outcome.Vals, 1)
}

func TestTryRequireReturnsWaitForInFlightLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mod.luau"), "return {}")

	release := make(chan struct{})
	started := make(chan struct{})
	loader := func(path string) (core.Values, error) {
		close(started)
		<-release
		return core.Values{"loaded"}, nil
	}
	cache := NewCache(NewResolver(nil), loader)

	go func() {
		_, err := cache.Require(NewStack(), dir, "./mod")
		require.NoError(t, err)
	}()
	<-started

	outcome, err := cache.TryRequire(NewStack(), dir, "./mod")
	require.NoError(t, err)
	require.False(t, outcome.Ready)
	require.NotNil(t, outcome.Wait)

	close(release)

	waitDone := make(chan core.Values, 1)
	go func() {
		vals, err := outcome.Wait()
		require.NoError(t, err)
		waitDone <- vals
	}()

	select {
	case vals := <-waitDone:
		require.Equal(t, core.Values{"loaded"}, vals)
	case <-time.After(time.Second):
		t.Fatal("Wait never returned")
	}
}
