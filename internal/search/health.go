package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/ordokr/lmssearch/internal/backend"
	"github.com/ordokr/lmssearch/internal/telemetry"
)

// HealthMonitor probes the backend under a deadline.
type HealthMonitor struct {
	backend backend.Backend
	timeout time.Duration
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewHealthMonitor creates a monitor giving each probe at most timeout.
func NewHealthMonitor(b backend.Backend, timeout time.Duration, metrics *telemetry.Metrics, logger *slog.Logger) *HealthMonitor {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	return &HealthMonitor{backend: b, timeout: timeout, metrics: metrics, logger: logger}
}

// Check returns true only if the backend reports itself available before
// the deadline. It never returns an error; the probe is cancelled when the
// deadline passes.
func (h *HealthMonitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	status, err := h.backend.Health(ctx)
	healthy := err == nil && ctx.Err() == nil && status.Status == backend.StatusAvailable
	if !healthy {
		attrs := []any{slog.String("status", status.Status)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		} else if ctx.Err() != nil {
			attrs = append(attrs, slog.String("error", ctx.Err().Error()))
		}
		h.logger.Warn("backend_unhealthy", attrs...)
	}

	h.metrics.HealthChecked(healthy)
	return healthy
}
