// Package search keeps the search backend in step with the datastore and
// serves queries through a result cache.
package search

import (
	"fmt"
	"time"

	"github.com/ordokr/lmssearch/internal/async"
	serrors "github.com/ordokr/lmssearch/internal/errors"
)

// DefaultLimit is the page size used when SearchOptions.Limit is unset.
const DefaultLimit = 20

// PrimaryKey is the document field every index is keyed by.
const PrimaryKey = "id"

// SearchOptions shapes one search request.
type SearchOptions struct {
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
	Filter string   `json:"filter,omitempty"`
	Sort   []string `json:"sort,omitempty"`
}

// normalize fills defaults and rejects negative paging.
func (o SearchOptions) normalize() (SearchOptions, error) {
	if o.Limit < 0 || o.Offset < 0 {
		return o, serrors.ValidationError(serrors.ErrCodeInvalidInput,
			fmt.Sprintf("limit and offset must not be negative (limit=%d, offset=%d)", o.Limit, o.Offset), nil)
	}
	if o.Limit == 0 {
		o.Limit = DefaultLimit
	}
	return o, nil
}

// Observer receives sync progress. Methods may be called concurrently from
// the goroutines syncing different collections.
type Observer interface {
	// CollectionStarted is called once the changed rows are loaded.
	CollectionStarted(collection string, rows, batches int)
	// BatchDone is called after each batch submission.
	BatchDone(collection string, docs int, err error)
	// CollectionDone is called when every batch of a collection has returned.
	CollectionDone(result async.CollectionResult)
}

type nopObserver struct{}

func (nopObserver) CollectionStarted(string, int, int)    {}
func (nopObserver) BatchDone(string, int, error)          {}
func (nopObserver) CollectionDone(async.CollectionResult) {}

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	BatchSize     int
	Concurrency   int
	MinInterval   time.Duration
	CacheCapacity int
	HealthTimeout time.Duration
	Adaptive      AdaptiveConfig
}

// Defaults.
const (
	DefaultBatchSize     = 1000
	DefaultConcurrency   = 3
	DefaultMinInterval   = 10 * time.Minute
	DefaultHealthTimeout = 3 * time.Second
)

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = DefaultCacheCapacity
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = DefaultHealthTimeout
	}
	return c
}
