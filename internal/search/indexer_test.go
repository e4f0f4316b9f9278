package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordokr/lmssearch/internal/async"
	serrors "github.com/ordokr/lmssearch/internal/errors"
	"github.com/ordokr/lmssearch/internal/store"
)

// recordingObserver keeps every progress event.
type recordingObserver struct {
	mu      sync.Mutex
	started map[string]int
	batches map[string]int
	done    []async.CollectionResult
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{started: map[string]int{}, batches: map[string]int{}}
}

func (r *recordingObserver) CollectionStarted(collection string, rows, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started[collection] = rows
}

func (r *recordingObserver) BatchDone(collection string, _ int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[collection]++
}

func (r *recordingObserver) CollectionDone(result async.CollectionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, result)
}

func newTestIndexer(ds store.Datastore, fb *fakeBackend, batchSize, concurrency int, obs Observer) *BatchIndexer {
	return &BatchIndexer{
		datastore:   ds,
		backend:     fb,
		batchSize:   batchSize,
		concurrency: concurrency,
		observer:    obs,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestBatchIndexer_PartitionsAndBoundsConcurrency(t *testing.T) {
	// Given: 7 topics, batches of 2 and at most 2 in flight
	ds := newTestStore(t)
	seedForum(t, ds, 7, 1, baseTime)
	fb := newFakeBackend()
	obs := newRecordingObserver()
	x := newTestIndexer(ds, fb, 2, 2, obs)

	// When: syncing the collection
	n, err := x.SyncCollection(context.Background(), store.KindTopics, nil)

	// Then: every row went out in 4 batches, never more than 2 at once
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	adds, _ := fb.calls()
	assert.Equal(t, 4, adds)
	assert.LessOrEqual(t, fb.maxInFlight, 2)
	assert.Equal(t, 7, fb.docCount("topics"))
	assert.Equal(t, 7, obs.started["topics"])
	assert.Equal(t, 4, obs.batches["topics"])
}

func TestBatchIndexer_NoRowsSkipsBackend(t *testing.T) {
	ds := newTestStore(t)
	fb := newFakeBackend()
	x := newTestIndexer(ds, fb, 1000, 3, nopObserver{})

	since := baseTime
	n, err := x.SyncCollection(context.Background(), store.KindCategories, &since)

	require.NoError(t, err)
	assert.Zero(t, n)
	adds, _ := fb.calls()
	assert.Zero(t, adds)
}

// flakyBackend fails the first batch it receives.
type flakyBackend struct {
	*fakeBackend
	once sync.Once
}

func (f *flakyBackend) AddDocuments(ctx context.Context, name string, docs []store.Document, pk string) error {
	failed := false
	f.once.Do(func() { failed = true })
	if failed {
		return errors.New("batch rejected")
	}
	return f.fakeBackend.AddDocuments(ctx, name, docs, pk)
}

func TestBatchIndexer_FailedBatchDoesNotStopOthers(t *testing.T) {
	// Given: 5 topics in batches of 2, and a backend that rejects one batch
	ds := newTestStore(t)
	seedForum(t, ds, 5, 1, baseTime)
	fb := newFakeBackend()
	x := &BatchIndexer{
		datastore:   ds,
		backend:     &flakyBackend{fakeBackend: fb},
		batchSize:   2,
		concurrency: 3,
		observer:    nopObserver{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	// When: syncing
	n, err := x.SyncCollection(context.Background(), store.KindTopics, nil)

	// Then: the other batches landed and the failure is reported as an index write error
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeIndexWrite, serrors.GetCode(err))
	assert.ErrorContains(t, err, "batch rejected")
	assert.Equal(t, 5, n)
	assert.GreaterOrEqual(t, fb.docCount("topics"), 3)
}

func TestBatchIndexer_IncrementalRead(t *testing.T) {
	ds := newTestStore(t)
	seedForum(t, ds, 3, 1, baseTime)
	require.NoError(t, ds.UpsertTopic(context.Background(), store.TopicDocument{
		ID: 101, Title: "Edited", Content: "x", CategoryID: 1, UserID: 1, Slug: "edited",
		CreatedAt: baseTime, UpdatedAt: baseTime.Add(time.Hour),
	}))
	fb := newFakeBackend()
	x := newTestIndexer(ds, fb, 1000, 3, nopObserver{})

	since := baseTime.Add(time.Minute)
	n, err := x.SyncCollection(context.Background(), store.KindTopics, &since)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPartition(t *testing.T) {
	docs := make([]store.Document, 5)
	for i := range docs {
		docs[i] = store.CategoryDocument{ID: int64(i)}
	}

	tests := []struct {
		size int
		want []int
	}{
		{1, []int{1, 1, 1, 1, 1}},
		{2, []int{2, 2, 1}},
		{5, []int{5}},
		{1000, []int{5}},
	}
	for _, tt := range tests {
		batches := partition(docs, tt.size)
		got := make([]int, len(batches))
		for i, b := range batches {
			got[i] = len(b)
		}
		assert.Equal(t, tt.want, got, "size %d", tt.size)
	}
}
