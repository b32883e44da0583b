package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rshade/costlens/internal/engine/cache"
	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/logging"
	"github.com/rshade/costlens/internal/metrics"
)

// Cached memoizes a Source in a cache.Store. Concurrent fetches for the same
// query share one upstream call. Failed fetches are never stored.
type Cached struct {
	source Source
	store  cache.Store
	group  singleflight.Group
	// mu orders store access against invalidation and guards gen.
	mu sync.RWMutex
	// gen is bumped by Invalidate and Refresh.
	gen uint64
}

// NewCached wraps src with store.
func NewCached(src Source, store cache.Store) *Cached {
	return &Cached{source: src, store: store}
}

// Name reports the wrapped source's name.
func (c *Cached) Name() string { return c.source.Name() }

// Key returns the cache key for q.
func (c *Cached) Key(q Query) string {
	return cache.GenerateKey(cache.KeyParams{
		Source: c.source.Name(),
		Scope:  q.Scope,
		From:   q.From,
		To:     q.To,
	})
}

// Fetch implements Source. The upstream call is detached from the caller's
// cancellation so that one caller giving up does not fail the others waiting
// on the same key; each caller still returns as soon as its own ctx is done.
func (c *Cached) Fetch(ctx context.Context, q Query) (ingest.RawTable, error) {
	key := c.Key(q)
	if t, ok := c.lookup(ctx, key); ok {
		metrics.RecordCache(metrics.ResultHit)
		return t, nil
	}

	gen := c.generation()
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fmt.Sprintf("%s@%d", key, gen), func() (any, error) {
		if t, ok := c.lookup(flightCtx, key); ok {
			return t, nil
		}
		t, fetchErr := c.source.Fetch(flightCtx, q)
		metrics.RecordSourceFetch(c.source.Name(), fetchErr)
		if fetchErr != nil {
			return nil, fail(c.source.Name(), fetchErr)
		}
		c.save(flightCtx, key, gen, t)
		return t, nil
	})

	select {
	case <-ctx.Done():
		return ingest.RawTable{}, fail(c.source.Name(), ctx.Err())
	case res := <-ch:
		if res.Shared {
			metrics.RecordCache(metrics.ResultShared)
		} else {
			metrics.RecordCache(metrics.ResultMiss)
		}
		if res.Err != nil {
			return ingest.RawTable{}, res.Err
		}
		return res.Val.(ingest.RawTable), nil
	}
}

// Invalidate drops the cached result for q. Fetches already in flight are
// returned to their callers but not stored.
func (c *Cached) Invalidate(ctx context.Context, q Query) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.store.Delete(ctx, c.Key(q))
}

// Refresh drops every cached result. Fetches already in flight are returned
// to their callers but not stored.
func (c *Cached) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.store.Clear(ctx)
}

func (c *Cached) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *Cached) lookup(ctx context.Context, key string) (ingest.RawTable, bool) {
	c.mu.RLock()
	entry, err := c.store.Get(ctx, key)
	c.mu.RUnlock()
	if err != nil {
		if !errors.Is(err, cache.ErrCacheNotFound) && !errors.Is(err, cache.ErrCacheExpired) {
			logging.FromContext(ctx).Warn().
				Str("component", "source").
				Str("source", c.source.Name()).
				Err(err).
				Msg("cache read failed, fetching from source")
		}
		return ingest.RawTable{}, false
	}
	var t ingest.RawTable
	if err = entry.Decode(&t); err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "source").
			Err(err).
			Msg("discarding undecodable cache entry")
		return ingest.RawTable{}, false
	}
	return t, true
}

// save stores t unless the cache was invalidated after gen was read.
func (c *Cached) save(ctx context.Context, key string, gen uint64, t ingest.RawTable) {
	data, err := json.Marshal(t)
	if err == nil {
		c.mu.Lock()
		if c.gen == gen {
			err = c.store.Set(ctx, key, data)
		}
		c.mu.Unlock()
	}
	if err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "source").
			Str("source", c.source.Name()).
			Err(err).
			Msg("cache write failed")
	}
}
