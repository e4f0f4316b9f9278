package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Options configures the watcher.
type Options struct {
	// DebounceWindow is the quiet time required before notifying.
	// Default: 2s
	DebounceWindow time.Duration

	// PollInterval is used when fsnotify is unavailable.
	// Default: 5s
	PollInterval time.Duration

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 2 * time.Second,
		PollInterval:   5 * time.Second,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	return o
}

// DatastoreWatcher reports writes to a SQLite database file, including its
// -wal and -journal companions.
type DatastoreWatcher struct {
	path   string
	files  map[string]bool
	opts   Options
	logger *slog.Logger

	fsWatcher *fsnotify.Watcher

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped bool
}

// New creates a watcher for the database at path. It falls back to polling
// when fsnotify cannot be initialized.
func New(path string, opts Options, logger *slog.Logger) (*DatastoreWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve datastore path: %w", err)
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(absPath)); err == nil {
		absPath = filepath.Join(dir, filepath.Base(absPath))
	}
	opts = opts.WithDefaults()

	w := &DatastoreWatcher{
		path:   absPath,
		files:  companionFiles(absPath),
		opts:   opts,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
		} else {
			logger.Warn("fsnotify_unavailable_using_polling", slog.String("error", err.Error()))
		}
	}
	return w, nil
}

func companionFiles(path string) map[string]bool {
	return map[string]bool{
		path:              true,
		path + "-wal":     true,
		path + "-journal": true,
	}
}

// Polling reports whether the watcher runs in polling mode.
func (w *DatastoreWatcher) Polling() bool {
	return w.fsWatcher == nil
}

// Start watches until ctx is done or Stop is called, calling onChange once
// per debounced burst of writes.
func (w *DatastoreWatcher) Start(ctx context.Context, onChange func()) error {
	debouncer := NewDebouncer(w.opts.DebounceWindow, onChange)
	defer debouncer.Stop()

	if w.fsWatcher != nil {
		return w.runFsnotify(ctx, debouncer)
	}
	return w.runPolling(ctx, debouncer)
}

func (w *DatastoreWatcher) runFsnotify(ctx context.Context, debouncer *Debouncer) error {
	// The directory is watched so that files created later, such as the
	// WAL, are seen too.
	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch datastore directory: %w", err)
	}
	w.logger.Info("datastore_watch_started", slog.String("path", w.path), slog.String("mode", "fsnotify"))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if w.files[filepath.Clean(event.Name)] && event.Op.Has(fsnotify.Write|fsnotify.Create) {
				debouncer.Trigger()
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("datastore_watch_error", slog.String("error", err.Error()))
		}
	}
}

type fileState struct {
	modTime time.Time
	size    int64
}

func (w *DatastoreWatcher) snapshot() map[string]fileState {
	states := make(map[string]fileState, len(w.files))
	for name := range w.files {
		if info, err := os.Stat(name); err == nil {
			states[name] = fileState{modTime: info.ModTime(), size: info.Size()}
		}
	}
	return states
}

func (w *DatastoreWatcher) runPolling(ctx context.Context, debouncer *Debouncer) error {
	w.logger.Info("datastore_watch_started", slog.String("path", w.path), slog.String("mode", "polling"))

	last := w.snapshot()
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			current := w.snapshot()
			if changed(last, current) {
				debouncer.Trigger()
			}
			last = current
		}
	}
}

func changed(before, after map[string]fileState) bool {
	if len(before) != len(after) {
		return true
	}
	for name, a := range after {
		if b, ok := before[name]; !ok || b != a {
			return true
		}
	}
	return false
}

// Stop ends Start and releases resources. Safe to call multiple times.
func (w *DatastoreWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}
