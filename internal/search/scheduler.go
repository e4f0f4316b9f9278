package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ordokr/lmssearch/internal/async"
	serrors "github.com/ordokr/lmssearch/internal/errors"
	"github.com/ordokr/lmssearch/internal/store"
	"github.com/ordokr/lmssearch/internal/telemetry"
)

// Scheduler runs sync cycles on demand and from an adaptive background loop.
// At most one cycle runs at a time.
type Scheduler struct {
	indexer     *BatchIndexer
	datastore   store.Datastore
	tracker     *async.SyncTracker
	cache       *QueryCache
	policy      AdaptivePolicy
	minInterval time.Duration

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
	nudge chan struct{}

	loop     async.Loop
	interval atomic.Int64

	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// Sync runs one cycle over every collection. It returns the current stats
// without doing anything if a cycle is already running or, unless force is
// set, if the last cycle completed less than the minimum interval ago.
//
// A skipped request returns the current stats with Skipped set to the
// reason. Stats are recorded whatever the outcome. An error is returned only when
// every collection failed; partial failures leave their error in the stats
// and keep that collection's watermark where it was.
func (s *Scheduler) Sync(ctx context.Context, force bool) (async.SyncStats, error) {
	cycle, skip := s.tracker.TryBegin(force, s.minInterval, s.now())
	if skip != async.SkipNone {
		s.metrics.SyncOutcome("skipped_" + string(skip))
		s.logger.Debug("sync_skipped",
			slog.String("reason", string(skip)),
			slog.Bool("force", force))
		stats := s.tracker.Snapshot()
		stats.Skipped = skip
		return stats, nil
	}

	s.logger.Info("sync_started",
		slog.String("cycle_id", cycle.ID),
		slog.Bool("force", force))

	results := s.indexer.syncAll(ctx, cycle.Watermarks)

	var (
		failures  []error
		submitted int
	)
	for _, r := range results {
		submitted += r.Submitted
		if r.Err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", r.Collection, r.Err))
		}
	}
	allFailed := len(failures) == len(results)

	if !allFailed || submitted > 0 {
		s.cache.InvalidateAll()
	}

	finishedAt := s.now()
	s.tracker.Finish(cycle, finishedAt, results)
	stats := s.tracker.Snapshot()

	elapsed := finishedAt.Sub(cycle.StartedAt)
	s.metrics.SyncCompleted(elapsed)

	attrs := []any{
		slog.String("cycle_id", cycle.ID),
		slog.Duration("duration", elapsed),
		slog.Int("submitted", submitted),
		slog.Int("failed_collections", len(failures)),
	}
	switch {
	case allFailed:
		s.metrics.SyncOutcome("failed")
		s.logger.Error("sync_failed", append(attrs, slog.String("error", errors.Join(failures...).Error()))...)
		return stats, serrors.BackendError(serrors.ErrCodeSyncFailed,
			"every collection failed to sync", errors.Join(failures...))
	case len(failures) > 0:
		s.metrics.SyncOutcome("partial")
		s.logger.Warn("sync_partial", attrs...)
	default:
		s.metrics.SyncOutcome("ok")
		s.logger.Info("sync_completed", attrs...)
	}
	return stats, nil
}

// StartBackgroundSync starts the adaptive loop. It returns false if the
// loop is already running. The loop runs until ctx is done or Stop is called.
func (s *Scheduler) StartBackgroundSync(ctx context.Context) bool {
	started := s.loop.Start(ctx, s.run)
	if started {
		s.logger.Info("background_sync_started",
			slog.Duration("interval", s.policy.Initial().CurrentInterval))
	}
	return started
}

// Stop halts the background loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.loop.IsRunning() {
		s.loop.Stop()
		s.logger.Info("background_sync_stopped")
	}
}

// Nudge wakes the background loop early. It never blocks.
func (s *Scheduler) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// CurrentInterval returns the background loop's current sleep interval,
// or zero if the loop never ran.
func (s *Scheduler) CurrentInterval() time.Duration {
	return time.Duration(s.interval.Load())
}

func (s *Scheduler) run(ctx context.Context) {
	state := s.policy.Initial()
	s.interval.Store(int64(state.CurrentInterval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.after(state.CurrentInterval):
		case <-s.nudge:
			s.logger.Debug("background_sync_nudged")
		}
		state = s.tick(ctx, state)
	}
}

// tick counts changes, adapts the interval and syncs when anything changed.
// Failures are logged; the loop always continues.
func (s *Scheduler) tick(ctx context.Context, state AdaptiveState) AdaptiveState {
	changes, err := s.countChanges(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("change_count_failed", serrors.LogAttrs(err)...)
		}
		return state
	}

	next, due := s.policy.Next(state, changes)
	if next.CurrentInterval != state.CurrentInterval {
		s.logger.Info("sync_interval_adjusted",
			slog.Duration("from", state.CurrentInterval),
			slog.Duration("to", next.CurrentInterval),
			slog.Int64("changes", changes))
	}
	s.interval.Store(int64(next.CurrentInterval))
	s.metrics.LoopTick(next.CurrentInterval, changes)

	if due {
		s.logger.Info("changes_detected", slog.Int64("changes", changes))
		if _, err := s.Sync(ctx, false); err != nil {
			s.logger.Error("background_sync_failed", serrors.LogAttrs(err)...)
		}
	}
	return next
}

// countChanges counts rows changed since the oldest watermark. A collection
// that never synced successfully counts as one change.
func (s *Scheduler) countChanges(ctx context.Context) (int64, error) {
	since, ok := s.tracker.OldestWatermark(collectionNames())
	if !ok {
		return 1, nil
	}
	return s.datastore.CountChangedSince(ctx, since)
}

func collectionNames() []string {
	names := make([]string, len(store.Kinds))
	for i, k := range store.Kinds {
		names[i] = string(k)
	}
	return names
}
