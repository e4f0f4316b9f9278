package ui

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ordokr/lmssearch/internal/async"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	tracker *ProgressTracker
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:     cfg.Output,
		tracker: NewProgressTracker(),
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// CollectionStarted implements Renderer.
func (r *PlainRenderer) CollectionStarted(collection string, rows, batches int) {
	r.tracker.Started(collection, rows, batches)

	r.mu.Lock()
	defer r.mu.Unlock()
	if rows == 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] no changes\n", collection)
		return
	}
	_, _ = fmt.Fprintf(r.out, "[%s] %d rows in %d batches\n", collection, rows, batches)
}

// BatchDone implements Renderer.
func (r *PlainRenderer) BatchDone(collection string, docs int, err error) {
	r.tracker.Batch(collection, docs, err != nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		_, _ = fmt.Fprintf(r.out, "WARN: [%s] batch of %d failed: %v\n", collection, docs, err)
		return
	}
	_, _ = fmt.Fprintf(r.out, "[%s] sent %d documents\n", collection, docs)
}

// CollectionDone implements Renderer.
func (r *PlainRenderer) CollectionDone(result async.CollectionResult) {
	r.tracker.Finished(result.Collection, result.Err)

	r.mu.Lock()
	defer r.mu.Unlock()
	if result.Err != nil {
		_, _ = fmt.Fprintf(r.out, "ERROR: [%s] %v\n", result.Collection, result.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats async.SyncStats, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stats.Skipped != async.SkipNone {
		_, _ = fmt.Fprintln(r.out, skippedMessage(stats))
		return
	}
	if err != nil {
		_, _ = fmt.Fprintf(r.out, "Sync failed: %v\n", err)
		return
	}

	_, _ = fmt.Fprintf(r.out, "Sync complete: %s", formatCounts(stats.Counts))
	if stats.LastSyncDuration != nil {
		_, _ = fmt.Fprintf(r.out, " in %s", stats.LastSyncDuration.Round(time.Millisecond))
	}
	if len(stats.Errors) > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d collections failed)", len(stats.Errors))
	}
	_, _ = fmt.Fprintln(r.out)
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

func skippedMessage(stats async.SyncStats) string {
	if stats.Skipped == async.SkipInProgress {
		return "Sync skipped: another cycle is in progress"
	}
	return "Sync skipped: the last cycle completed too recently (use --force)"
}

// formatCounts renders counts as "categories=2, topics=3".
func formatCounts(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for _, name := range slices.Sorted(maps.Keys(counts)) {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, ", ")
}

var _ Renderer = (*PlainRenderer)(nil)
