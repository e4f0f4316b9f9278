package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordokr/lmssearch/internal/backend"
	"github.com/ordokr/lmssearch/internal/telemetry"
)

func countingCompute(calls *int, res *backend.SearchResult) ComputeFunc {
	return func(context.Context) (*backend.SearchResult, error) {
		*calls++
		return res, nil
	}
}

func TestQueryCache_HitSkipsCompute(t *testing.T) {
	// Given: an empty cache
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	c := NewQueryCache(10, metrics)
	want := &backend.SearchResult{Query: "rust"}
	calls := 0

	// When: the same key is requested twice
	first, err := c.GetOrCompute(context.Background(), "topics", "k", countingCompute(&calls, want))
	require.NoError(t, err)
	second, err := c.GetOrCompute(context.Background(), "topics", "k", countingCompute(&calls, want))
	require.NoError(t, err)

	// Then: the backend was contacted once and both calls see the same result
	assert.Equal(t, 1, calls)
	assert.Same(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("topics", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("topics", "miss")))
}

func TestQueryCache_ErrorsAreNotCached(t *testing.T) {
	c := NewQueryCache(10, nil)
	boom := errors.New("backend down")
	calls := 0
	failing := func(context.Context) (*backend.SearchResult, error) {
		calls++
		return nil, boom
	}

	_, err := c.GetOrCompute(context.Background(), "topics", "k", failing)
	require.ErrorIs(t, err, boom)
	_, err = c.GetOrCompute(context.Background(), "topics", "k", failing)
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 2, calls)
	assert.Zero(t, c.Len())
}

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	// Given: a cache of capacity 2 holding a and b, with a used last
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	c := NewQueryCache(2, metrics)
	calls := 0
	ctx := context.Background()
	for _, k := range []string{"a", "b", "a"} {
		_, err := c.GetOrCompute(ctx, "topics", k, countingCompute(&calls, &backend.SearchResult{Query: k}))
		require.NoError(t, err)
	}
	require.Equal(t, 2, calls)

	// When: a third key is inserted
	_, err := c.GetOrCompute(ctx, "topics", "c", countingCompute(&calls, &backend.SearchResult{}))
	require.NoError(t, err)

	// Then: b was evicted and a is still cached
	assert.Equal(t, 2, c.Len())
	_, _ = c.GetOrCompute(ctx, "topics", "a", countingCompute(&calls, &backend.SearchResult{}))
	assert.Equal(t, 3, calls)
	_, _ = c.GetOrCompute(ctx, "topics", "b", countingCompute(&calls, &backend.SearchResult{}))
	assert.Equal(t, 4, calls)
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.CacheEvictions), 1.0)
}

func TestQueryCache_InvalidateAllForcesRecompute(t *testing.T) {
	c := NewQueryCache(10, nil)
	calls := 0
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.GetOrCompute(ctx, "topics", fmt.Sprint(i), countingCompute(&calls, &backend.SearchResult{}))
		require.NoError(t, err)
	}

	c.InvalidateAll()

	assert.Zero(t, c.Len())
	for i := 0; i < 3; i++ {
		_, err := c.GetOrCompute(ctx, "topics", fmt.Sprint(i), countingCompute(&calls, &backend.SearchResult{}))
		require.NoError(t, err)
	}
	assert.Equal(t, 6, calls)
}

func TestQueryCache_ResultComputedAcrossPurgeIsNotInserted(t *testing.T) {
	// Given: a compute that runs while the cache is purged
	c := NewQueryCache(10, nil)
	stale := func(context.Context) (*backend.SearchResult, error) {
		c.InvalidateAll()
		return &backend.SearchResult{Query: "stale"}, nil
	}

	// When: the compute finishes
	res, err := c.GetOrCompute(context.Background(), "topics", "k", stale)

	// Then: the caller gets its result but the cache stays empty
	require.NoError(t, err)
	assert.Equal(t, "stale", res.Query)
	assert.Zero(t, c.Len())
}

func TestCacheKey(t *testing.T) {
	base := SearchOptions{Limit: 20, Offset: 0, Filter: "user_id = 7", Sort: []string{"created_at:desc"}}

	tests := []struct {
		name       string
		collection string
		query      string
		opts       SearchOptions
		same       bool
	}{
		{"identical inputs", "topics", "rust", base, true},
		{"other collection", "categories", "rust", base, false},
		{"other query", "topics", "go", base, false},
		{"other limit", "topics", "rust", SearchOptions{Limit: 10, Filter: base.Filter, Sort: base.Sort}, false},
		{"other offset", "topics", "rust", SearchOptions{Limit: 20, Offset: 20, Filter: base.Filter, Sort: base.Sort}, false},
		{"other filter", "topics", "rust", SearchOptions{Limit: 20, Sort: base.Sort}, false},
		{"other sort", "topics", "rust", SearchOptions{Limit: 20, Filter: base.Filter}, false},
	}

	want := CacheKey("topics", "rust", base)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CacheKey(tt.collection, tt.query, tt.opts)
			assert.Equal(t, tt.same, got == want)
			assert.Len(t, got, 64)
		})
	}
}
