// Package backend defines the search backend the engine keeps in sync and
// provides an embedded bleve implementation of it.
package backend

import (
	"context"
	"slices"
	"time"

	"github.com/ordokr/lmssearch/internal/store"
)

// StatusAvailable is the health status of a backend ready to serve.
const StatusAvailable = "available"

// Backend is a full-text search service holding one index per collection.
// Implementations must be safe for concurrent use.
type Backend interface {
	// CreateIndex gets or creates the named index. Creating an index that
	// already exists is not an error.
	CreateIndex(ctx context.Context, name, primaryKey string) error

	// UpdateSettings applies the non-nil parts of patch to the index.
	UpdateSettings(ctx context.Context, name string, patch SettingsPatch) error

	// AddDocuments upserts docs, keyed by primaryKey.
	AddDocuments(ctx context.Context, name string, docs []store.Document, primaryKey string) error

	// DeleteDocument removes one document. Deleting a missing id is not an error.
	DeleteDocument(ctx context.Context, name, id string) error

	Search(ctx context.Context, name string, req SearchRequest) (*SearchResult, error)

	// Health reports backend status. It must return once ctx is done.
	Health(ctx context.Context) (HealthStatus, error)

	Close() error
}

// Pagination caps how deep a search may page.
type Pagination struct {
	MaxTotalHits int `json:"max_total_hits"`
	MaxPageSize  int `json:"max_page_size"`
}

// Settings controls how an index answers searches.
type Settings struct {
	SearchableFields []string   `json:"searchable_fields"`
	FilterableFields []string   `json:"filterable_fields"`
	SortableFields   []string   `json:"sortable_fields"`
	Pagination       Pagination `json:"pagination"`
	TypoTolerance    bool       `json:"typo_tolerance"`
}

func (s Settings) clone() Settings {
	s.SearchableFields = slices.Clone(s.SearchableFields)
	s.FilterableFields = slices.Clone(s.FilterableFields)
	s.SortableFields = slices.Clone(s.SortableFields)
	return s
}

// SettingsPatch changes one or more settings. Nil members are left alone.
type SettingsPatch struct {
	SearchableFields []string
	FilterableFields []string
	SortableFields   []string
	Pagination       *Pagination
	TypoTolerance    *bool
}

// Apply returns s with the patch applied.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.SearchableFields != nil {
		s.SearchableFields = slices.Clone(p.SearchableFields)
	}
	if p.FilterableFields != nil {
		s.FilterableFields = slices.Clone(p.FilterableFields)
	}
	if p.SortableFields != nil {
		s.SortableFields = slices.Clone(p.SortableFields)
	}
	if p.Pagination != nil {
		s.Pagination = *p.Pagination
	}
	if p.TypoTolerance != nil {
		s.TypoTolerance = *p.TypoTolerance
	}
	return s
}

// SearchRequest is a single query against one index.
type SearchRequest struct {
	Query  string
	Limit  int
	Offset int
	// Filter is an expression such as "category_id = 3 AND created_at > 2024-01-01".
	Filter string
	// Sort entries are "field", "field:asc" or "field:desc".
	Sort []string
}

// Hit is one matching document.
type Hit struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields"`
}

// SearchResult is a page of hits. Values are shared by the query cache and
// must not be modified by callers.
type SearchResult struct {
	Hits               []Hit         `json:"hits"`
	Query              string        `json:"query"`
	Limit              int           `json:"limit"`
	Offset             int           `json:"offset"`
	EstimatedTotalHits uint64        `json:"estimated_total_hits"`
	ProcessingTime     time.Duration `json:"processing_time"`
}

// HealthStatus is the result of a health probe.
type HealthStatus struct {
	Status    string            `json:"status"`
	Documents map[string]uint64 `json:"documents,omitempty"`
}
