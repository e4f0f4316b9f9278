package async

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoop_StopCancelsBody(t *testing.T) {
	// Given: a loop that ticks until cancelled
	var l Loop
	var ticks atomic.Int32
	started := l.Start(context.Background(), func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
				ticks.Add(1)
			}
		}
	})
	assert.True(t, started)
	assert.Eventually(t, func() bool { return ticks.Load() > 2 }, time.Second, time.Millisecond)

	// When: stopping
	l.Stop()

	// Then: the goroutine has exited
	assert.False(t, l.IsRunning())
}

func TestLoop_StartTwiceIsNoop(t *testing.T) {
	var l Loop
	block := func(ctx context.Context) { <-ctx.Done() }

	assert.True(t, l.Start(context.Background(), block))
	assert.False(t, l.Start(context.Background(), block))

	l.Stop()
	l.Stop()
}

func TestLoop_ParentCancellationEndsLoop(t *testing.T) {
	var l Loop
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx, func(ctx context.Context) { <-ctx.Done() })

	cancel()
	l.Wait()

	assert.False(t, l.IsRunning())
}

func TestLoop_CanRestartAfterStop(t *testing.T) {
	var l Loop
	var runs atomic.Int32
	body := func(ctx context.Context) {
		runs.Add(1)
		<-ctx.Done()
	}

	l.Start(context.Background(), body)
	l.Stop()
	l.Start(context.Background(), body)
	l.Stop()

	assert.Equal(t, int32(2), runs.Load())
}

func TestLoop_StopWithoutStart(t *testing.T) {
	var l Loop
	l.Stop()
	l.Wait()
	assert.False(t, l.IsRunning())
}
