package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdaptivePolicy_Next(t *testing.T) {
	p := NewAdaptivePolicy(DefaultAdaptiveConfig())

	tests := []struct {
		name         string
		state        AdaptiveState
		changes      int64
		wantInterval time.Duration
		wantIdle     int
		wantSync     bool
	}{
		{
			name:         "first idle tick keeps interval",
			state:        AdaptiveState{CurrentInterval: 10 * time.Minute},
			wantInterval: 10 * time.Minute,
			wantIdle:     1,
		},
		{
			name:         "third idle tick grows interval",
			state:        AdaptiveState{CurrentInterval: 10 * time.Minute, ConsecutiveIdleTicks: 2},
			wantInterval: 15 * time.Minute,
			wantIdle:     3,
		},
		{
			name:         "growth is capped at the ceiling",
			state:        AdaptiveState{CurrentInterval: 58 * time.Minute, ConsecutiveIdleTicks: 5},
			wantInterval: time.Hour,
			wantIdle:     6,
		},
		{
			name:         "low activity syncs and resets idle",
			state:        AdaptiveState{CurrentInterval: 20 * time.Minute, ConsecutiveIdleTicks: 4},
			changes:      5,
			wantInterval: 20 * time.Minute,
			wantSync:     true,
		},
		{
			name:         "threshold itself is not high activity",
			state:        AdaptiveState{CurrentInterval: 20 * time.Minute},
			changes:      100,
			wantInterval: 20 * time.Minute,
			wantSync:     true,
		},
		{
			name:         "high activity shrinks interval",
			state:        AdaptiveState{CurrentInterval: 20 * time.Minute, ConsecutiveIdleTicks: 1},
			changes:      101,
			wantInterval: 19 * time.Minute,
			wantSync:     true,
		},
		{
			name:         "shrink is floored at the minimum",
			state:        AdaptiveState{CurrentInterval: 5*time.Minute + 30*time.Second},
			changes:      5000,
			wantInterval: 5 * time.Minute,
			wantSync:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, sync := p.Next(tt.state, tt.changes)

			assert.Equal(t, tt.wantInterval, got.CurrentInterval)
			assert.Equal(t, tt.wantIdle, got.ConsecutiveIdleTicks)
			assert.Equal(t, tt.wantSync, sync)
		})
	}
}

func TestAdaptivePolicy_StaysWithinBounds(t *testing.T) {
	// Given: the default policy
	p := NewAdaptivePolicy(DefaultAdaptiveConfig())
	s := p.Initial()
	assert.Equal(t, 10*time.Minute, s.CurrentInterval)

	// When: a long run of alternating bursts and idle stretches is applied
	for i := 0; i < 200; i++ {
		var changes int64
		if (i/20)%2 == 0 {
			changes = 1000
		}
		s, _ = p.Next(s, changes)

		// Then: the interval never leaves [5m, 1h]
		assert.GreaterOrEqual(t, s.CurrentInterval, 5*time.Minute)
		assert.LessOrEqual(t, s.CurrentInterval, time.Hour)
	}
}

func TestNewAdaptivePolicy_FillsZeroFields(t *testing.T) {
	p := NewAdaptivePolicy(AdaptiveConfig{InitialInterval: 30 * time.Minute})

	assert.Equal(t, 30*time.Minute, p.Initial().CurrentInterval)
	assert.Equal(t, DefaultAdaptiveConfig().MaxInterval, p.cfg.MaxInterval)
}
