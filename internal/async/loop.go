package async

import (
	"context"
	"sync"
)

// LoopFunc is the body of a background loop. It must return once ctx is done.
type LoopFunc func(ctx context.Context)

// Loop runs a LoopFunc in one background goroutine with explicit stop.
// A stopped Loop may be started again.
type Loop struct {
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// IsRunning returns true while the loop goroutine is alive.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Start launches fn in the background and returns immediately. It returns
// false if the loop is already running.
func (l *Loop) Start(ctx context.Context, fn LoopFunc) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return false
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})

	go l.run(ctx, fn, l.stopCh, l.doneCh)
	return true
}

func (l *Loop) run(ctx context.Context, fn LoopFunc, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	// Merge the parent context with the stop channel.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	fn(ctx)
}

// Stop signals the loop to stop and waits for it to exit.
// It is safe to call on a loop that is not running.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	stopCh, doneCh := l.stopCh, l.doneCh
	l.stopCh = nil
	l.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	<-doneCh
}

// Wait blocks until the current run exits.
func (l *Loop) Wait() {
	l.mu.Lock()
	doneCh := l.doneCh
	l.mu.Unlock()

	if doneCh != nil {
		<-doneCh
	}
}
