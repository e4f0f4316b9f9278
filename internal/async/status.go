// Package async provides the sync bookkeeping and background loop
// lifecycle shared by the sync scheduler.
package async

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SkipReason says why a sync request did not start a cycle.
type SkipReason string

const (
	// SkipNone means the cycle started.
	SkipNone SkipReason = ""
	// SkipInProgress means another cycle is running.
	SkipInProgress SkipReason = "in_progress"
	// SkipRateLimited means the last cycle completed too recently.
	SkipRateLimited SkipReason = "rate_limited"
)

// SyncStats is an immutable snapshot of sync bookkeeping. Skipped is set
// only on the stats returned by a sync request that did not start a cycle;
// Snapshot never sets it.
type SyncStats struct {
	CycleID          string               `json:"cycle_id,omitempty"`
	LastSyncAt       *time.Time           `json:"last_sync_at,omitempty"`
	LastSyncDuration *time.Duration       `json:"last_sync_duration,omitempty"`
	Counts           map[string]int       `json:"counts"`
	Errors           map[string]string    `json:"errors,omitempty"`
	Watermarks       map[string]time.Time `json:"watermarks,omitempty"`
	InProgress       bool                 `json:"in_progress"`
	Cycles           int                  `json:"cycles"`
	Skipped          SkipReason           `json:"skipped,omitempty"`
}

// Cycle is a started sync cycle.
type Cycle struct {
	ID        string
	StartedAt time.Time
	// Watermarks holds each collection's last successful cycle start.
	Watermarks map[string]time.Time
}

// CollectionResult is the outcome of syncing one collection.
type CollectionResult struct {
	Collection string
	Submitted  int
	Err        error
}

// SyncTracker provides thread-safe sync bookkeeping. At most one cycle is
// in progress at a time.
type SyncTracker struct {
	mu sync.RWMutex

	cycleID      string
	inProgress   bool
	lastSyncAt   time.Time
	lastDuration time.Duration
	counts       map[string]int
	errs         map[string]string
	watermarks   map[string]time.Time
	cycles       int
}

// NewSyncTracker creates a tracker with no completed cycles.
func NewSyncTracker() *SyncTracker {
	return &SyncTracker{
		counts:     make(map[string]int),
		errs:       make(map[string]string),
		watermarks: make(map[string]time.Time),
	}
}

// TryBegin starts a cycle unless one is in progress or, when force is
// false, the last cycle completed less than minInterval before now.
// The check and the transition happen under one lock.
func (t *SyncTracker) TryBegin(force bool, minInterval time.Duration, now time.Time) (Cycle, SkipReason) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inProgress {
		return Cycle{}, SkipInProgress
	}
	if !force && !t.lastSyncAt.IsZero() && now.Sub(t.lastSyncAt) < minInterval {
		return Cycle{}, SkipRateLimited
	}

	t.inProgress = true
	t.cycleID = uuid.NewString()
	return Cycle{
		ID:         t.cycleID,
		StartedAt:  now,
		Watermarks: maps.Clone(t.watermarks),
	}, SkipNone
}

// Finish records a completed cycle and leaves the in-progress state.
// Counts and errors are replaced by this cycle's results. A collection's
// watermark moves to the cycle start only if it finished without error.
func (t *SyncTracker) Finish(c Cycle, finishedAt time.Time, results []CollectionResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.inProgress = false
	t.lastSyncAt = finishedAt
	t.lastDuration = finishedAt.Sub(c.StartedAt)
	t.cycles++

	t.counts = make(map[string]int, len(results))
	t.errs = make(map[string]string)
	for _, r := range results {
		t.counts[r.Collection] = r.Submitted
		if r.Err != nil {
			t.errs[r.Collection] = r.Err.Error()
			continue
		}
		t.watermarks[r.Collection] = c.StartedAt
	}
}

// Watermark returns the last successful cycle start for a collection.
func (t *SyncTracker) Watermark(collection string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	w, ok := t.watermarks[collection]
	return w, ok
}

// OldestWatermark returns the earliest watermark among collections. It
// returns false if any of them has never synced successfully.
func (t *SyncTracker) OldestWatermark(collections []string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var oldest time.Time
	for i, c := range collections {
		w, ok := t.watermarks[c]
		if !ok {
			return time.Time{}, false
		}
		if i == 0 || w.Before(oldest) {
			oldest = w
		}
	}
	return oldest, len(collections) > 0
}

// InProgress reports whether a cycle is running.
func (t *SyncTracker) InProgress() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inProgress
}

// Snapshot returns an immutable copy of the current state.
func (t *SyncTracker) Snapshot() SyncStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := SyncStats{
		CycleID:    t.cycleID,
		Counts:     maps.Clone(t.counts),
		InProgress: t.inProgress,
		Cycles:     t.cycles,
	}
	if len(t.errs) > 0 {
		s.Errors = maps.Clone(t.errs)
	}
	if len(t.watermarks) > 0 {
		s.Watermarks = maps.Clone(t.watermarks)
	}
	if !t.lastSyncAt.IsZero() {
		at, d := t.lastSyncAt, t.lastDuration
		s.LastSyncAt = &at
		s.LastSyncDuration = &d
	}
	return s
}
