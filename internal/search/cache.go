package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ordokr/lmssearch/internal/backend"
	"github.com/ordokr/lmssearch/internal/telemetry"
)

// DefaultCacheCapacity is the number of search results kept in memory.
const DefaultCacheCapacity = 100

// ComputeFunc runs a search against the backend on a cache miss.
type ComputeFunc func(ctx context.Context) (*backend.SearchResult, error)

// QueryCache is a bounded LRU of search results. It is purged as a whole
// after every sync, so it never serves results older than the last
// completed cycle.
type QueryCache struct {
	cache   *lru.Cache[string, *backend.SearchResult]
	metrics *telemetry.Metrics

	// mu orders inserts against purges. It is never held across a compute.
	mu         sync.Mutex
	generation uint64
}

// NewQueryCache creates a cache holding at most capacity results.
func NewQueryCache(capacity int, metrics *telemetry.Metrics) *QueryCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	cache, _ := lru.New[string, *backend.SearchResult](capacity)
	return &QueryCache{cache: cache, metrics: metrics}
}

// CacheKey derives the key of a search from every input that shapes its result.
func CacheKey(collection, query string, opts SearchOptions) string {
	var b strings.Builder
	b.WriteString(collection)
	b.WriteByte(0)
	b.WriteString(query)
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(opts.Limit))
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(opts.Offset))
	b.WriteByte(0)
	b.WriteString(opts.Filter)
	b.WriteByte(0)
	b.WriteString(strings.Join(opts.Sort, ","))

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// GetOrCompute returns the cached result for key, or runs compute and caches
// its result. Errors are returned and never cached. A result computed while
// InvalidateAll ran is returned but not inserted.
func (c *QueryCache) GetOrCompute(ctx context.Context, collection, key string, compute ComputeFunc) (*backend.SearchResult, error) {
	if res, ok := c.cache.Get(key); ok {
		c.metrics.CacheLookup(collection, true)
		return res, nil
	}
	c.metrics.CacheLookup(collection, false)

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	res, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if gen == c.generation {
		if evicted := c.cache.Add(key, res); evicted {
			c.metrics.CacheEvicted()
		}
	}
	c.mu.Unlock()

	return res, nil
}

// InvalidateAll drops every cached result.
func (c *QueryCache) InvalidateAll() {
	c.mu.Lock()
	c.generation++
	c.cache.Purge()
	c.mu.Unlock()

	c.metrics.CacheInvalidated()
}

// Len returns the number of cached results.
func (c *QueryCache) Len() int {
	return c.cache.Len()
}
