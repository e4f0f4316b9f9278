package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ordokr/lmssearch/internal/async"
	"github.com/ordokr/lmssearch/internal/backend"
	serrors "github.com/ordokr/lmssearch/internal/errors"
	"github.com/ordokr/lmssearch/internal/store"
	"github.com/ordokr/lmssearch/internal/telemetry"
)

// BatchIndexer moves changed rows of one collection into its index.
type BatchIndexer struct {
	datastore   store.Datastore
	backend     backend.Backend
	batchSize   int
	concurrency int
	observer    Observer
	metrics     *telemetry.Metrics
	logger      *slog.Logger
}

// SyncCollection reads the rows of kind changed after since (all rows when
// since is nil) and submits them in batches, with at most the configured
// number in flight. A failed batch does not stop the others. It returns the
// number of rows submitted and, if any batch failed, an error joining every
// batch failure.
func (x *BatchIndexer) SyncCollection(ctx context.Context, kind store.Kind, since *time.Time) (int, error) {
	collection := string(kind)

	docs, err := x.datastore.ChangedDocuments(ctx, kind, since)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		x.observer.CollectionStarted(collection, 0, 0)
		x.logger.Debug("collection_unchanged", slog.String("collection", collection))
		return 0, nil
	}

	batches := partition(docs, x.batchSize)
	x.observer.CollectionStarted(collection, len(docs), len(batches))
	x.logger.Info("collection_sync_started",
		slog.String("collection", collection),
		slog.Int("rows", len(docs)),
		slog.Int("batches", len(batches)))

	var (
		mu       sync.Mutex
		failures []error
	)

	// Batch errors are collected, not returned, so one failure never
	// cancels the sibling batches.
	var g errgroup.Group
	g.SetLimit(x.concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			err := x.backend.AddDocuments(ctx, collection, batch, PrimaryKey)
			x.metrics.BatchSubmitted(collection, len(batch), err)
			x.observer.BatchDone(collection, len(batch), err)
			if err != nil {
				x.logger.Warn("batch_submit_failed",
					slog.String("collection", collection),
					slog.Int("batch", i),
					slog.Int("docs", len(batch)),
					slog.String("error", err.Error()))
				mu.Lock()
				failures = append(failures, fmt.Errorf("batch %d: %w", i, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		return len(docs), serrors.BackendError(serrors.ErrCodeIndexWrite,
			fmt.Sprintf("%d of %d batches failed for %s", len(failures), len(batches), collection),
			errors.Join(failures...))
	}
	return len(docs), nil
}

func partition(docs []store.Document, size int) [][]store.Document {
	batches := make([][]store.Document, 0, (len(docs)+size-1)/size)
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		batches = append(batches, docs[start:end])
	}
	return batches
}

// syncAll runs SyncCollection for every collection concurrently.
func (x *BatchIndexer) syncAll(ctx context.Context, watermarks map[string]time.Time) []async.CollectionResult {
	results := make([]async.CollectionResult, len(store.Kinds))

	var g errgroup.Group
	for i, kind := range store.Kinds {
		g.Go(func() error {
			var since *time.Time
			if w, ok := watermarks[string(kind)]; ok {
				since = &w
			}
			n, err := x.SyncCollection(ctx, kind, since)
			results[i] = async.CollectionResult{Collection: string(kind), Submitted: n, Err: err}
			x.observer.CollectionDone(results[i])
			return nil
		})
	}
	_ = g.Wait()

	return results
}
