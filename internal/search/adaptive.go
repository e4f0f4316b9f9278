package search

import "time"

// AdaptiveConfig bounds the background sync interval.
type AdaptiveConfig struct {
	InitialInterval time.Duration
	MinInterval     time.Duration
	MaxInterval     time.Duration
	GrowStep        time.Duration
	ShrinkStep      time.Duration
	// HighActivityThreshold is the change count above which the interval shrinks.
	HighActivityThreshold int64
	// IdleTicksBeforeGrow is how many idle ticks in a row are tolerated
	// before the interval starts to grow.
	IdleTicksBeforeGrow int
}

// DefaultAdaptiveConfig returns the stock interval bounds.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		InitialInterval:       10 * time.Minute,
		MinInterval:           5 * time.Minute,
		MaxInterval:           time.Hour,
		GrowStep:              5 * time.Minute,
		ShrinkStep:            time.Minute,
		HighActivityThreshold: 100,
		IdleTicksBeforeGrow:   2,
	}
}

// AdaptiveState is owned by the background loop goroutine.
type AdaptiveState struct {
	CurrentInterval      time.Duration
	ConsecutiveIdleTicks int
}

// AdaptivePolicy tunes the polling interval from observed change volume.
type AdaptivePolicy struct {
	cfg AdaptiveConfig
}

// NewAdaptivePolicy creates a policy. Unset durations and threshold fall
// back to defaults.
func NewAdaptivePolicy(cfg AdaptiveConfig) AdaptivePolicy {
	def := DefaultAdaptiveConfig()
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.GrowStep <= 0 {
		cfg.GrowStep = def.GrowStep
	}
	if cfg.ShrinkStep <= 0 {
		cfg.ShrinkStep = def.ShrinkStep
	}
	if cfg.HighActivityThreshold <= 0 {
		cfg.HighActivityThreshold = def.HighActivityThreshold
	}
	if cfg.IdleTicksBeforeGrow < 0 {
		cfg.IdleTicksBeforeGrow = def.IdleTicksBeforeGrow
	}
	return AdaptivePolicy{cfg: cfg}
}

// Initial returns the state the loop starts in.
func (p AdaptivePolicy) Initial() AdaptiveState {
	return AdaptiveState{CurrentInterval: p.clamp(p.cfg.InitialInterval)}
}

// Next applies one tick's change count and reports whether a sync is due.
//
// No changes: the idle counter grows, and once it passes IdleTicksBeforeGrow
// every further idle tick widens the interval by GrowStep up to MaxInterval.
// Changes above HighActivityThreshold narrow it by ShrinkStep down to
// MinInterval. Any change resets the idle counter and requests a sync.
func (p AdaptivePolicy) Next(s AdaptiveState, changes int64) (AdaptiveState, bool) {
	if changes <= 0 {
		s.ConsecutiveIdleTicks++
		if s.ConsecutiveIdleTicks > p.cfg.IdleTicksBeforeGrow {
			s.CurrentInterval = p.clamp(s.CurrentInterval + p.cfg.GrowStep)
		}
		return s, false
	}

	s.ConsecutiveIdleTicks = 0
	if changes > p.cfg.HighActivityThreshold {
		s.CurrentInterval = p.clamp(s.CurrentInterval - p.cfg.ShrinkStep)
	}
	return s, true
}

func (p AdaptivePolicy) clamp(d time.Duration) time.Duration {
	return min(max(d, p.cfg.MinInterval), p.cfg.MaxInterval)
}
