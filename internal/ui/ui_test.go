package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordokr/lmssearch/internal/async"
)

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	// Given: a buffer output
	buf := &bytes.Buffer{}

	// When: creating a renderer
	r := NewRenderer(NewConfig(buf))

	// Then: plain renderer is used
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewTUIRenderer_ErrorsForNonTTY(t *testing.T) {
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestIsTTY_NilAndBuffer(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestProgressTracker(t *testing.T) {
	// Given: two collections in flight
	p := NewProgressTracker()
	p.Started("topics", 5, 3)
	p.Started("categories", 0, 0)

	// When: batches complete, one failing
	p.Batch("topics", 2, false)
	p.Batch("topics", 2, true)
	p.Finished("categories", nil)

	// Then: snapshots are ordered and fractions reflect the batches
	snap := p.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "categories", snap[0].Collection)
	assert.Equal(t, 1.0, snap[0].Fraction())
	assert.Equal(t, 2, snap[1].DocsDone)
	assert.Equal(t, 1, snap[1].Failures)
	assert.InDelta(t, 2.0/3.0, snap[1].Fraction(), 1e-9)
}

func TestPlainRenderer_FullCycle(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))
	require.NoError(t, r.Start(context.Background()))

	r.CollectionStarted("topics", 3, 1)
	r.CollectionStarted("categories", 0, 0)
	r.BatchDone("topics", 3, nil)
	r.CollectionDone(async.CollectionResult{Collection: "topics", Submitted: 3})
	r.CollectionDone(async.CollectionResult{Collection: "categories"})

	d := 1500 * time.Millisecond
	r.Complete(async.SyncStats{
		Counts:           map[string]int{"topics": 3, "categories": 0},
		LastSyncDuration: &d,
	}, nil)
	require.NoError(t, r.Stop())

	out := buf.String()
	assert.Contains(t, out, "[topics] 3 rows in 1 batches")
	assert.Contains(t, out, "[categories] no changes")
	assert.Contains(t, out, "[topics] sent 3 documents")
	assert.Contains(t, out, "Sync complete: categories=0, topics=3 in 1.5s")
}

func TestPlainRenderer_Failures(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.CollectionStarted("topics", 2, 1)
	r.BatchDone("topics", 2, errors.New("rejected"))
	r.CollectionDone(async.CollectionResult{Collection: "topics", Submitted: 2, Err: errors.New("1 of 1 batches failed")})
	r.Complete(async.SyncStats{}, errors.New("every collection failed to sync"))

	out := buf.String()
	assert.Contains(t, out, "WARN: [topics] batch of 2 failed: rejected")
	assert.Contains(t, out, "ERROR: [topics] 1 of 1 batches failed")
	assert.Contains(t, out, "Sync failed: every collection failed to sync")
}

func TestPlainRenderer_Skipped(t *testing.T) {
	tests := []struct {
		name  string
		stats async.SyncStats
		want  string
	}{
		{"in progress", async.SyncStats{InProgress: true, Skipped: async.SkipInProgress}, "another cycle is in progress"},
		{"rate limited", async.SyncStats{Skipped: async.SkipRateLimited}, "too recently"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			r := NewPlainRenderer(NewConfig(buf))
			r.Complete(tt.stats, nil)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestSyncModel_Views(t *testing.T) {
	// Given: a model with one collection half done
	tracker := NewProgressTracker()
	tracker.Started("topics", 4, 2)
	tracker.Batch("topics", 2, false)
	m := newSyncModel(tracker)
	m.styles = NoColorStyles()

	// When: rendering while running
	view := m.View()

	// Then: the collection and its document count are shown
	assert.Contains(t, view, "topics")
	assert.Contains(t, view, "2/4")

	// When: the cycle completes
	_, _ = m.Update(completeMsg{stats: async.SyncStats{Counts: map[string]int{"topics": 4}}})

	// Then: the summary replaces the progress
	assert.Contains(t, m.View(), "Sync complete")
}

func TestStatusRenderer(t *testing.T) {
	at := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	d := 250 * time.Millisecond
	info := StatusInfo{
		Datastore: "lms.db",
		Backend:   "available",
		Documents: map[string]uint64{"topics": 3, "categories": 2},
		Sync: async.SyncStats{
			LastSyncAt:       &at,
			LastSyncDuration: &d,
			Counts:           map[string]int{"topics": 3, "categories": 2},
			Errors:           map[string]string{"categories": "backend down"},
		},
	}

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		r := NewStatusRenderer(buf, true)
		r.now = func() time.Time { return at.Add(5 * time.Minute) }

		require.NoError(t, r.Render(info))

		out := buf.String()
		assert.Contains(t, out, "(in memory)")
		assert.Contains(t, out, "5 minutes ago")
		assert.Contains(t, out, "backend down")
		assert.Contains(t, out, "250ms")
	})

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		require.NoError(t, NewStatusRenderer(buf, true).RenderJSON(info))

		var parsed map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
		assert.Equal(t, "available", parsed["backend"])
		assert.Equal(t, float64(3), parsed["documents"].(map[string]any)["topics"])
	})

	t.Run("never synced", func(t *testing.T) {
		buf := &bytes.Buffer{}
		require.NoError(t, NewStatusRenderer(buf, true).Render(StatusInfo{Backend: "unavailable"}))
		assert.Contains(t, buf.String(), "never")
	})
}
