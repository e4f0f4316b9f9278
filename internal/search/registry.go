package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ordokr/lmssearch/internal/backend"
	serrors "github.com/ordokr/lmssearch/internal/errors"
	"github.com/ordokr/lmssearch/internal/store"
)

// CollectionSettings returns the index settings of a tracked collection.
func CollectionSettings(kind store.Kind) backend.Settings {
	switch kind {
	case store.KindTopics:
		return backend.Settings{
			SearchableFields: []string{"title", "content", "category_name", "slug"},
			FilterableFields: []string{"category_id", "user_id", "created_at"},
			SortableFields:   []string{"created_at"},
			Pagination:       backend.Pagination{MaxTotalHits: 1000, MaxPageSize: 500},
			TypoTolerance:    true,
		}
	case store.KindCategories:
		return backend.Settings{
			SearchableFields: []string{"name", "description", "slug"},
			FilterableFields: []string{"created_at"},
			SortableFields:   []string{"created_at"},
			Pagination:       backend.Pagination{MaxTotalHits: 1000, MaxPageSize: 100},
			TypoTolerance:    true,
		}
	default:
		return backend.Settings{}
	}
}

// settingPatch is one independently applied setting.
type settingPatch struct {
	name  string
	patch backend.SettingsPatch
}

func settingPatches(s backend.Settings) []settingPatch {
	pagination := s.Pagination
	typo := s.TypoTolerance
	return []settingPatch{
		{"searchable_fields", backend.SettingsPatch{SearchableFields: s.SearchableFields}},
		{"filterable_fields", backend.SettingsPatch{FilterableFields: s.FilterableFields}},
		{"sortable_fields", backend.SettingsPatch{SortableFields: s.SortableFields}},
		{"pagination", backend.SettingsPatch{Pagination: &pagination}},
		{"typo_tolerance", backend.SettingsPatch{TypoTolerance: &typo}},
	}
}

// Registry creates the indexes and gates every other operation until they
// exist.
type Registry struct {
	backend backend.Backend
	logger  *slog.Logger

	mu    sync.RWMutex
	ready bool
}

// NewRegistry creates a registry over b.
func NewRegistry(b backend.Backend, logger *slog.Logger) *Registry {
	return &Registry{backend: b, logger: logger}
}

// Initialize gets or creates one index per collection, then applies their
// settings concurrently. Settings failures are logged and do not fail
// initialization. Calling Initialize again is harmless.
func (r *Registry) Initialize(ctx context.Context) error {
	for _, kind := range store.Kinds {
		if err := r.backend.CreateIndex(ctx, string(kind), PrimaryKey); err != nil {
			return serrors.BackendError(serrors.ErrCodeIndexCreate,
				fmt.Sprintf("create index %q", kind), err)
		}
	}

	var g errgroup.Group
	for _, kind := range store.Kinds {
		for _, sp := range settingPatches(CollectionSettings(kind)) {
			g.Go(func() error {
				if err := r.backend.UpdateSettings(ctx, string(kind), sp.patch); err != nil {
					r.logger.Warn("index_settings_rejected",
						slog.String("index", string(kind)),
						slog.String("setting", sp.name),
						slog.String("error", err.Error()))
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	r.mu.Lock()
	r.ready = true
	r.mu.Unlock()

	r.logger.Info("indexes_initialized", slog.Int("collections", len(store.Kinds)))
	return nil
}

// Ready reports whether Initialize has succeeded.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

// Index returns the index name of a collection, or a configuration error
// before Initialize has succeeded.
func (r *Registry) Index(kind store.Kind) (string, error) {
	if !r.Ready() {
		return "", serrors.ConfigurationError(
			fmt.Sprintf("%s index not initialized", kind), nil)
	}
	return string(kind), nil
}
