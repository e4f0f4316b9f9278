// Package watcher detects writes to the SQLite datastore file so the
// background sync loop can wake before its interval elapses.
//
// fsnotify is used when available; polling the file's size and mtime is
// the fallback for filesystems without change notification. Bursts of
// writes are debounced into a single notification.
//
// Usage:
//
//	w, err := watcher.New("/var/lib/lms/lms.db", watcher.DefaultOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, svc.Nudge) }()
package watcher
