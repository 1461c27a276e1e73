package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/compareai/compare-client/cache"
)

const testKey = "current-identity"

func TestQueryCachesSuccess(t *testing.T) {
	store := cache.New()
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	value, superseded, err := store.Query(ctx, testKey, fetch)
	require.NoError(t, err)
	require.False(t, superseded)
	require.Equal(t, "value", value)

	value, superseded, err = store.Query(ctx, testKey, fetch)
	require.NoError(t, err)
	require.False(t, superseded)
	require.Equal(t, "value", value)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	cached, status, ok := store.Peek(testKey)
	require.True(t, ok)
	require.Equal(t, cache.StatusSuccess, status)
	require.Equal(t, "value", cached)
}

func TestQueryCoalescesConcurrentReads(t *testing.T) {
	store := cache.New()
	ctx := context.Background()

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]interface{}, 2)
	queryErrs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _, queryErrs[0] = store.Query(ctx, testKey, fetch)
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _, queryErrs[1] = store.Query(ctx, testKey, fetch)
	}()
	time.Sleep(50 * time.Millisecond) // let the second caller join the in-flight fetch
	close(release)
	wg.Wait()

	require.NoError(t, queryErrs[0])
	require.NoError(t, queryErrs[1])
	require.Equal(t, "value", results[0])
	require.Equal(t, "value", results[1])
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "exactly one network call for concurrent readers")
}

func TestQueryRetriesAfterError(t *testing.T) {
	store := cache.New()
	ctx := context.Background()

	var calls int32
	fetchErr := errors.New("connection refused")
	fetch := func(ctx context.Context) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, fetchErr
		}
		return "recovered", nil
	}

	_, _, err := store.Query(ctx, testKey, fetch)
	require.ErrorIs(t, err, fetchErr)

	_, status, ok := store.Peek(testKey)
	require.True(t, ok)
	require.Equal(t, cache.StatusError, status)

	// The error is not auto-retried; the next explicit Query refetches.
	value, superseded, err := store.Query(ctx, testKey, fetch)
	require.NoError(t, err)
	require.False(t, superseded)
	require.Equal(t, "recovered", value)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInvalidateDiscardsStaleInFlightResponse(t *testing.T) {
	store := cache.New()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	stale := func(ctx context.Context) (interface{}, error) {
		close(started)
		<-release
		return "stale", nil
	}

	var staleValue interface{}
	var staleSuperseded bool
	var staleErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		staleValue, staleSuperseded, staleErr = store.Query(ctx, testKey, stale)
	}()
	<-started

	// A newer request for the key supersedes the in-flight fetch.
	store.Invalidate(testKey)
	close(release)
	<-done

	// The original waiter still gets its response, flagged as
	// superseded so it is not applied anywhere...
	require.NoError(t, staleErr)
	require.True(t, staleSuperseded)
	require.Equal(t, "stale", staleValue)

	// ...and the cache discarded it: last request wins per key.
	_, _, ok := store.Peek(testKey)
	require.False(t, ok)

	value, superseded, err := store.Query(ctx, testKey, func(ctx context.Context) (interface{}, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	require.False(t, superseded)
	require.Equal(t, "fresh", value)
}

func TestPrimeSupersedesInFlightFetch(t *testing.T) {
	store := cache.New()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	var superseded bool
	go func() {
		defer close(done)
		_, superseded, _ = store.Query(ctx, testKey, func(ctx context.Context) (interface{}, error) {
			close(started)
			<-release
			return "stale", nil
		})
	}()
	<-started

	store.Prime(testKey, "primed")
	close(release)
	<-done

	require.True(t, superseded)
	value, status, ok := store.Peek(testKey)
	require.True(t, ok)
	require.Equal(t, cache.StatusSuccess, status)
	require.Equal(t, "primed", value, "primed value survives the stale resolution")
}

func TestMutateRunsOncePerCallAndInvalidates(t *testing.T) {
	store := cache.New()
	ctx := context.Background()

	_, _, err := store.Query(ctx, testKey, func(ctx context.Context) (interface{}, error) {
		return "before", nil
	})
	require.NoError(t, err)

	var runs int32
	op := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&runs, 1)
		return "written", nil
	}

	// No deduplication across calls: each submit is a distinct action.
	for i := 0; i < 2; i++ {
		value, err := store.Mutate(ctx, op, testKey)
		require.NoError(t, err)
		require.Equal(t, "written", value)
	}
	require.Equal(t, int32(2), atomic.LoadInt32(&runs))

	_, _, ok := store.Peek(testKey)
	require.False(t, ok, "dependent key invalidated on mutation success")
}

func TestMutateFailureKeepsEntries(t *testing.T) {
	store := cache.New()
	ctx := context.Background()

	_, _, err := store.Query(ctx, testKey, func(ctx context.Context) (interface{}, error) {
		return "before", nil
	})
	require.NoError(t, err)

	opErr := errors.New("rejected")
	_, err = store.Mutate(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, opErr
	}, testKey)
	require.ErrorIs(t, err, opErr)

	value, status, ok := store.Peek(testKey)
	require.True(t, ok)
	require.Equal(t, cache.StatusSuccess, status)
	require.Equal(t, "before", value)
}

func TestPrimedEntrySkipsFetch(t *testing.T) {
	store := cache.New()
	ctx := context.Background()

	store.Prime(testKey, "primed")

	value, superseded, err := store.Query(ctx, testKey, func(ctx context.Context) (interface{}, error) {
		t.Fatal("primed entry must not trigger a fetch")
		return nil, nil
	})
	require.NoError(t, err)
	require.False(t, superseded)
	require.Equal(t, "primed", value)
}
