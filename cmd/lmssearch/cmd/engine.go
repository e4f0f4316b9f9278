package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ordokr/lmssearch/internal/backend"
	"github.com/ordokr/lmssearch/internal/config"
	serrors "github.com/ordokr/lmssearch/internal/errors"
	"github.com/ordokr/lmssearch/internal/search"
	"github.com/ordokr/lmssearch/internal/store"
	"github.com/ordokr/lmssearch/internal/telemetry"
)

// engine is an initialized search service with the resources it owns.
type engine struct {
	store    *store.SQLiteStore
	backend  *backend.BleveBackend
	svc      *search.Service
	registry *prometheus.Registry
}

// serviceConfig maps file configuration onto the engine's tuning knobs.
func serviceConfig(cfg *config.Config) search.Config {
	a := cfg.Adaptive
	return search.Config{
		BatchSize:     cfg.Sync.BatchSize,
		Concurrency:   cfg.Sync.Concurrency,
		MinInterval:   cfg.Sync.MinInterval,
		CacheCapacity: cfg.Cache.Capacity,
		HealthTimeout: cfg.Backend.HealthTimeout,
		Adaptive: search.AdaptiveConfig{
			InitialInterval:       a.InitialInterval,
			MinInterval:           a.MinInterval,
			MaxInterval:           a.MaxInterval,
			GrowStep:              a.GrowStep,
			ShrinkStep:            a.ShrinkStep,
			HighActivityThreshold: a.HighActivityThreshold,
			IdleTicksBeforeGrow:   a.IdleTicksBeforeGrow,
		},
	}
}

// openEngine opens the datastore and backend, builds the service and
// creates the indexes.
func (a *app) openEngine(ctx context.Context, opts ...search.Option) (*engine, error) {
	ds, err := store.OpenSQLite(a.cfg.Datastore.Driver, a.cfg.Datastore.DSN)
	if err != nil {
		return nil, err
	}

	b, err := backend.NewBleveBackend(a.cfg.Backend.DataDir)
	if err != nil {
		_ = ds.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts = append([]search.Option{
		search.WithLogger(a.logger),
		search.WithMetrics(telemetry.NewMetrics(reg)),
	}, opts...)
	svc, err := search.NewService(ds, b, serviceConfig(a.cfg), opts...)
	if err != nil {
		_ = b.Close()
		_ = ds.Close()
		return nil, serrors.New(serrors.ErrCodeInternal, "failed to build search service", err)
	}

	e := &engine{store: ds, backend: b, svc: svc, registry: reg}
	if err := svc.Initialize(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}

	a.logger.Debug("engine_opened",
		slog.String("datastore", a.cfg.Datastore.DSN),
		slog.String("data_dir", a.cfg.Backend.DataDir))
	return e, nil
}

// Close stops background work and releases the backend and datastore.
func (e *engine) Close() error {
	e.svc.Stop()
	return errors.Join(e.backend.Close(), e.store.Close())
}
