package source

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/costlens/internal/engine/cache"
	"github.com/rshade/costlens/internal/ingest"
)

type countingSource struct {
	calls   atomic.Int32
	release chan struct{}
	fail    atomic.Bool
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Fetch(ctx context.Context, q Query) (ingest.RawTable, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ingest.RawTable{}, ctx.Err()
		}
	}
	if s.fail.Load() {
		return ingest.RawTable{}, errors.New("upstream down")
	}
	return ingest.RawTable{
		Columns: []string{"Date", "Application", "Cost"},
		Rows:    [][]string{{"2024-01-01", q.Scope, "1"}},
	}, nil
}

func TestCachedMemoizes(t *testing.T) {
	src := &countingSource{}
	c := NewCached(src, cache.NewMemoryStore(time.Hour))
	assert.Equal(t, "counting", c.Name())
	ctx := context.Background()

	first, err := c.Fetch(ctx, Query{Scope: "a"})
	require.NoError(t, err)
	second, err := c.Fetch(ctx, Query{Scope: "a"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())

	_, err = c.Fetch(ctx, Query{Scope: "b"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load(), "different key fetches again")

	require.NoError(t, c.Invalidate(ctx, Query{Scope: "a"}))
	_, err = c.Fetch(ctx, Query{Scope: "a"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), src.calls.Load())

	require.NoError(t, c.Refresh(ctx))
	_, _ = c.Fetch(ctx, Query{Scope: "a"})
	_, _ = c.Fetch(ctx, Query{Scope: "b"})
	assert.Equal(t, int32(5), src.calls.Load())
}

func TestCachedCollapsesConcurrentFetches(t *testing.T) {
	src := &countingSource{release: make(chan struct{})}
	c := NewCached(src, cache.NewMemoryStore(time.Hour))

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Fetch(context.Background(), Query{Scope: "x"})
		}(i)
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	src := &countingSource{}
	src.fail.Store(true)
	store := cache.NewMemoryStore(time.Hour)
	c := NewCached(src, store)
	ctx := context.Background()

	_, err := c.Fetch(ctx, Query{})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 0, store.Len())

	src.fail.Store(false)
	table, err := c.Fetch(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCachedSurvivesRestartWithFileStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := cache.NewFileStore(dir, time.Hour)
	require.NoError(t, err)
	src := &countingSource{}
	_, err = NewCached(src, store).Fetch(ctx, Query{Scope: "p"})
	require.NoError(t, err)

	reopened, err := cache.NewFileStore(dir, time.Hour)
	require.NoError(t, err)
	table, err := NewCached(src, reopened).Fetch(ctx, Query{Scope: "p"})
	require.NoError(t, err)
	assert.Equal(t, "p", table.Rows[0][1])
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCachedCallerCancelDoesNotFailOthers(t *testing.T) {
	src := &countingSource{release: make(chan struct{})}
	c := NewCached(src, cache.NewMemoryStore(time.Hour))

	cancelCtx, cancel := context.WithCancel(context.Background())
	canceledErr := make(chan error, 1)
	go func() {
		_, err := c.Fetch(cancelCtx, Query{Scope: "x"})
		canceledErr <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	waiterErr := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), Query{Scope: "x"})
		waiterErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-canceledErr
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, context.Canceled)

	close(src.release)
	require.NoError(t, <-waiterErr)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCachedRefreshDiscardsInFlightResult(t *testing.T) {
	src := &countingSource{release: make(chan struct{})}
	store := cache.NewMemoryStore(time.Hour)
	c := NewCached(src, store)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, Query{Scope: "x"})
		done <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.Refresh(ctx))
	close(src.release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, store.Len(), "result fetched before the refresh is not stored")

	_, err := c.Fetch(ctx, Query{Scope: "x"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, 1, store.Len())
}
