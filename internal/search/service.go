package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/ordokr/lmssearch/internal/async"
	"github.com/ordokr/lmssearch/internal/backend"
	serrors "github.com/ordokr/lmssearch/internal/errors"
	"github.com/ordokr/lmssearch/internal/store"
	"github.com/ordokr/lmssearch/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Service is the caller-facing engine: it owns the index registry, the
// sync scheduler, the query cache and the health monitor.
type Service struct {
	backend   backend.Backend
	registry  *Registry
	scheduler *Scheduler
	cache     *QueryCache
	health    *HealthMonitor
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

type serviceOptions struct {
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	observer Observer
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
}

// Option configures a Service.
type Option func(*serviceOptions)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *serviceOptions) {
		o.logger = l
	}
}

// WithMetrics sets the Prometheus collectors to record into.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *serviceOptions) {
		o.metrics = m
	}
}

// WithObserver sets a receiver for sync progress.
func WithObserver(obs Observer) Option {
	return func(o *serviceOptions) {
		o.observer = obs
	}
}

// WithClock replaces time.Now for sync bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		o.now = now
	}
}

// WithTimer replaces time.After for the background loop's sleeps.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(o *serviceOptions) {
		o.after = after
	}
}

// NewService wires an engine over a datastore and a search backend.
func NewService(ds store.Datastore, b backend.Backend, cfg Config, opts ...Option) (*Service, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: datastore is required", ErrNilDependency)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrNilDependency)
	}

	o := serviceOptions{
		observer: nopObserver{},
		now:      time.Now,
		after:    time.After,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}

	cfg = cfg.withDefaults()
	cache := NewQueryCache(cfg.CacheCapacity, o.metrics)

	indexer := &BatchIndexer{
		datastore:   ds,
		backend:     b,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		observer:    o.observer,
		metrics:     o.metrics,
		logger:      o.logger,
	}

	scheduler := &Scheduler{
		indexer:     indexer,
		datastore:   ds,
		tracker:     async.NewSyncTracker(),
		cache:       cache,
		policy:      NewAdaptivePolicy(cfg.Adaptive),
		minInterval: cfg.MinInterval,
		now:         o.now,
		after:       o.after,
		nudge:       make(chan struct{}, 1),
		metrics:     o.metrics,
		logger:      o.logger,
	}

	return &Service{
		backend:   b,
		registry:  NewRegistry(b, o.logger),
		scheduler: scheduler,
		cache:     cache,
		health:    NewHealthMonitor(b, cfg.HealthTimeout, o.metrics, o.logger),
		metrics:   o.metrics,
		logger:    o.logger,
	}, nil
}

// Initialize creates the indexes and applies their settings. It must
// succeed before any sync or search.
func (s *Service) Initialize(ctx context.Context) error {
	return s.registry.Initialize(ctx)
}

// Sync runs one sync cycle. See Scheduler.Sync.
func (s *Service) Sync(ctx context.Context, force bool) (async.SyncStats, error) {
	if !s.registry.Ready() {
		return s.Stats(), serrors.ConfigurationError("search indexes not initialized", nil).
			WithSuggestion("Call Initialize before syncing")
	}
	return s.scheduler.Sync(ctx, force)
}

// SearchTopics searches the topics index through the query cache.
func (s *Service) SearchTopics(ctx context.Context, query string, opts SearchOptions) (*backend.SearchResult, error) {
	return s.search(ctx, store.KindTopics, query, opts)
}

// SearchCategories searches the categories index through the query cache.
func (s *Service) SearchCategories(ctx context.Context, query string, opts SearchOptions) (*backend.SearchResult, error) {
	return s.search(ctx, store.KindCategories, query, opts)
}

func (s *Service) search(ctx context.Context, kind store.Kind, query string, opts SearchOptions) (*backend.SearchResult, error) {
	index, err := s.registry.Index(kind)
	if err != nil {
		return nil, err
	}
	opts, err = opts.normalize()
	if err != nil {
		return nil, err
	}

	key := CacheKey(index, query, opts)
	return s.cache.GetOrCompute(ctx, index, key, func(ctx context.Context) (*backend.SearchResult, error) {
		start := time.Now()
		res, err := s.backend.Search(ctx, index, backend.SearchRequest{
			Query:  query,
			Limit:  opts.Limit,
			Offset: opts.Offset,
			Filter: opts.Filter,
			Sort:   opts.Sort,
		})
		if err != nil {
			if serrors.GetCode(err) == "" {
				err = serrors.BackendError(serrors.ErrCodeSearchFailed, "search "+index, err)
			}
			return nil, err
		}
		s.metrics.SearchCompleted(index, time.Since(start), len(res.Hits))
		return res, nil
	})
}

// DeleteTopic removes a topic from the index and drops cached results that
// might still contain it.
func (s *Service) DeleteTopic(ctx context.Context, id int64) error {
	index, err := s.registry.Index(store.KindTopics)
	if err != nil {
		return err
	}
	if err := s.backend.DeleteDocument(ctx, index, strconv.FormatInt(id, 10)); err != nil {
		if serrors.GetCode(err) == "" {
			err = serrors.BackendError(serrors.ErrCodeDeleteFailed, fmt.Sprintf("delete topic %d", id), err)
		}
		return err
	}
	s.cache.InvalidateAll()
	s.logger.Info("topic_deleted", slog.Int64("id", id))
	return nil
}

// HealthCheck reports whether the backend is available. It never fails.
func (s *Service) HealthCheck(ctx context.Context) bool {
	return s.health.Check(ctx)
}

// StartBackgroundSync starts the adaptive sync loop if it is not running.
func (s *Service) StartBackgroundSync(ctx context.Context) error {
	if !s.registry.Ready() {
		return serrors.ConfigurationError("search indexes not initialized", nil).
			WithSuggestion("Call Initialize before starting background sync")
	}
	s.scheduler.StartBackgroundSync(ctx)
	return nil
}

// Stop halts the background loop, if any, and waits for it.
func (s *Service) Stop() {
	s.scheduler.Stop()
}

// Nudge wakes the background loop ahead of its interval.
func (s *Service) Nudge() {
	s.scheduler.Nudge()
}

// Stats returns a snapshot of sync bookkeeping.
func (s *Service) Stats() async.SyncStats {
	return s.scheduler.tracker.Snapshot()
}

// BackgroundInterval returns the adaptive loop's current interval.
func (s *Service) BackgroundInterval() time.Duration {
	return s.scheduler.CurrentInterval()
}
