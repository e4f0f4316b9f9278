package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	// Given: a debouncer with a short window
	var calls atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { calls.Add(1) })
	defer d.Stop()

	// When: many triggers arrive inside the window
	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}

	// Then: fn runs once after the burst
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncer_StopCancelsPendingCall(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Stop()
	d.Trigger()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{PollInterval: time.Second}.WithDefaults()

	assert.Equal(t, 2*time.Second, got.DebounceWindow)
	assert.Equal(t, time.Second, got.PollInterval)
}

func TestChanged(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := map[string]fileState{"db": {modTime: at, size: 10}}

	tests := []struct {
		name  string
		after map[string]fileState
		want  bool
	}{
		{"identical", map[string]fileState{"db": {modTime: at, size: 10}}, false},
		{"size grew", map[string]fileState{"db": {modTime: at, size: 11}}, true},
		{"touched", map[string]fileState{"db": {modTime: at.Add(time.Second), size: 10}}, true},
		{"wal appeared", map[string]fileState{"db": {modTime: at, size: 10}, "db-wal": {}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, changed(base, tt.after))
		})
	}
}

func runWatcher(t *testing.T, opts Options) (string, *atomic.Int32) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "lms.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("init"), 0o644))

	w, err := New(dbPath, opts, discardLogger())
	require.NoError(t, err)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx, func() { calls.Add(1) })
	}()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
		<-done
	})
	return dbPath, &calls
}

func TestDatastoreWatcher_Polling(t *testing.T) {
	// Given: a polling watcher on a database file
	dbPath, calls := runWatcher(t, Options{
		DebounceWindow: 10 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
		ForcePolling:   true,
	})
	time.Sleep(30 * time.Millisecond)

	// When: the WAL file is written
	require.NoError(t, os.WriteFile(dbPath+"-wal", []byte("page"), 0o644))

	// Then: a change is reported
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestDatastoreWatcher_Fsnotify(t *testing.T) {
	dbPath, calls := runWatcher(t, Options{DebounceWindow: 10 * time.Millisecond})
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(dbPath, []byte("changed"), 0o644))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestDatastoreWatcher_IgnoresOtherFiles(t *testing.T) {
	dbPath, calls := runWatcher(t, Options{
		DebounceWindow: 10 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
		ForcePolling:   true,
	})
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(dbPath), "notes.txt"), []byte("x"), 0o644))

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
