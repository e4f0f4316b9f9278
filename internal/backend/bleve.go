package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	serrors "github.com/ordokr/lmssearch/internal/errors"
	"github.com/ordokr/lmssearch/internal/store"
)

// settingsKey is where index settings live in bleve's internal key space.
var settingsKey = []byte("_lmssearch_settings")

// BleveBackend implements Backend with one embedded bleve index per name.
type BleveBackend struct {
	mu      sync.RWMutex
	dataDir string
	lock    *dirLock
	indexes map[string]*bleveIndex
	closed  bool
}

type bleveIndex struct {
	name       string
	primaryKey string
	index      bleve.Index

	mu       sync.RWMutex
	settings Settings
}

var _ Backend = (*BleveBackend)(nil)

// NewBleveBackend returns a backend storing indexes under dataDir as
// <name>.bleve directories. An empty dataDir keeps every index in memory.
func NewBleveBackend(dataDir string) (*BleveBackend, error) {
	b := &BleveBackend{
		dataDir: dataDir,
		indexes: make(map[string]*bleveIndex),
	}
	if dataDir == "" {
		return b, nil
	}

	b.lock = newDirLock(dataDir)
	acquired, err := b.lock.tryLock()
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeIndexLocked, "lock index directory", err)
	}
	if !acquired {
		return nil, serrors.New(serrors.ErrCodeIndexLocked,
			fmt.Sprintf("index directory %s is in use by another process", dataDir), nil).
			WithSuggestion("stop the other lmssearch process or point backend.data_dir elsewhere")
	}
	return b, nil
}

func (b *BleveBackend) get(name string) (*bleveIndex, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, serrors.New(serrors.ErrCodeBackendUnavailable, "backend is closed", nil)
	}
	ix, ok := b.indexes[name]
	if !ok {
		return nil, serrors.New(serrors.ErrCodeBackendUnavailable, fmt.Sprintf("index %q does not exist", name), nil)
	}
	return ix, nil
}

// CreateIndex implements Backend.
func (b *BleveBackend) CreateIndex(ctx context.Context, name, primaryKey string) error {
	if err := ctx.Err(); err != nil {
		return serrors.BackendError(serrors.ErrCodeIndexCreate, "create index "+name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return serrors.New(serrors.ErrCodeBackendUnavailable, "backend is closed", nil)
	}
	if _, ok := b.indexes[name]; ok {
		return nil
	}

	idx, err := b.openIndex(name)
	if err != nil {
		return serrors.BackendError(serrors.ErrCodeIndexCreate, "create index "+name, err)
	}

	ix := &bleveIndex{name: name, primaryKey: primaryKey, index: idx}
	if raw, err := idx.GetInternal(settingsKey); err == nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, &ix.settings); err != nil {
			slog.Warn("index_settings_unreadable",
				slog.String("index", name),
				slog.String("error", err.Error()))
		}
	}

	b.indexes[name] = ix
	slog.Debug("index_ready",
		slog.String("index", name),
		slog.Bool("in_memory", b.dataDir == ""))
	return nil
}

func (b *BleveBackend) openIndex(name string) (bleve.Index, error) {
	m := newIndexMapping(name)

	if b.dataDir == "" {
		return bleve.NewMemOnly(m)
	}

	path := filepath.Join(b.dataDir, name+".bleve")
	if err := validateIndexMeta(path); err != nil {
		slog.Warn("index_corrupted",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if err := os.RemoveAll(path); err != nil {
			return nil, serrors.New(serrors.ErrCodeCorruptIndex, "remove corrupted index "+path, err)
		}
		slog.Info("index_cleared",
			slog.String("path", path),
			slog.String("reason", "corruption detected, next sync rebuilds it"))
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		return bleve.New(path, m)
	}
	if err == bleve.ErrorIndexMetaCorrupt {
		if err := os.RemoveAll(path); err != nil {
			return nil, serrors.New(serrors.ErrCodeCorruptIndex, "remove corrupted index "+path, err)
		}
		return bleve.New(path, m)
	}
	return idx, err
}

// validateIndexMeta reports a present but unreadable index_meta.json.
// A missing index directory is fine; it will be created.
func validateIndexMeta(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(path, "index_meta.json"))
	if err != nil {
		return fmt.Errorf("index_meta.json unreadable: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// UpdateSettings implements Backend. Settings are persisted with the index.
func (b *BleveBackend) UpdateSettings(ctx context.Context, name string, patch SettingsPatch) error {
	if err := ctx.Err(); err != nil {
		return serrors.BackendError(serrors.ErrCodeSettingsRejected, "update settings of "+name, err)
	}
	ix, err := b.get(name)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	next := patch.Apply(ix.settings)
	raw, err := json.Marshal(next)
	if err != nil {
		return serrors.BackendError(serrors.ErrCodeSettingsRejected, "encode settings of "+name, err)
	}
	if err := ix.index.SetInternal(settingsKey, raw); err != nil {
		return serrors.BackendError(serrors.ErrCodeSettingsRejected, "persist settings of "+name, err)
	}
	ix.settings = next
	return nil
}

// Settings returns a copy of the current settings of an index.
func (b *BleveBackend) Settings(name string) (Settings, error) {
	ix, err := b.get(name)
	if err != nil {
		return Settings{}, err
	}
	return ix.snapshot(), nil
}

func (ix *bleveIndex) snapshot() Settings {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.settings.clone()
}

// AddDocuments implements Backend. The whole slice is written as one batch.
func (b *BleveBackend) AddDocuments(ctx context.Context, name string, docs []store.Document, primaryKey string) error {
	if err := ctx.Err(); err != nil {
		return serrors.BackendError(serrors.ErrCodeIndexWrite, "add documents to "+name, err)
	}
	ix, err := b.get(name)
	if err != nil {
		return err
	}
	if primaryKey != ix.primaryKey {
		return serrors.BackendError(serrors.ErrCodeIndexWrite,
			fmt.Sprintf("index %s is keyed by %q, not %q", name, ix.primaryKey, primaryKey), nil)
	}
	if len(docs) == 0 {
		return nil
	}

	batch := ix.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.DocumentID(), doc.Fields()); err != nil {
			return serrors.BackendError(serrors.ErrCodeIndexWrite,
				fmt.Sprintf("index document %s/%s", name, doc.DocumentID()), err)
		}
	}
	if err := ix.index.Batch(batch); err != nil {
		return serrors.BackendError(serrors.ErrCodeIndexWrite, "execute batch on "+name, err)
	}
	return nil
}

// DeleteDocument implements Backend.
func (b *BleveBackend) DeleteDocument(ctx context.Context, name, id string) error {
	if err := ctx.Err(); err != nil {
		return serrors.BackendError(serrors.ErrCodeDeleteFailed, "delete from "+name, err)
	}
	ix, err := b.get(name)
	if err != nil {
		return err
	}
	if err := ix.index.Delete(id); err != nil {
		return serrors.BackendError(serrors.ErrCodeDeleteFailed, fmt.Sprintf("delete %s/%s", name, id), err)
	}
	return nil
}

// Search implements Backend.
func (b *BleveBackend) Search(ctx context.Context, name string, req SearchRequest) (*SearchResult, error) {
	ix, err := b.get(name)
	if err != nil {
		return nil, err
	}
	settings := ix.snapshot()

	sreq, pg, err := buildSearchRequest(req, settings)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		Query:  req.Query,
		Limit:  pg.limit,
		Offset: pg.offset,
		Hits:   []Hit{},
	}

	start := time.Now()
	res, err := ix.index.SearchInContext(ctx, sreq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, serrors.TimeoutError("search "+name, err)
		}
		return nil, serrors.BackendError(serrors.ErrCodeSearchFailed, "search "+name, err)
	}

	result.ProcessingTime = time.Since(start)
	result.EstimatedTotalHits = res.Total
	if ceiling := uint64(settings.Pagination.MaxTotalHits); ceiling > 0 && result.EstimatedTotalHits > ceiling {
		result.EstimatedTotalHits = ceiling
	}
	if pg.limit == 0 {
		return result, nil
	}
	for _, h := range res.Hits {
		result.Hits = append(result.Hits, Hit{ID: h.ID, Score: h.Score, Fields: h.Fields})
	}
	return result, nil
}

// Health implements Backend. Every index must answer a document count
// before ctx is done.
func (b *BleveBackend) Health(ctx context.Context) (HealthStatus, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return HealthStatus{Status: "closed"}, serrors.New(serrors.ErrCodeBackendUnavailable, "backend is closed", nil)
	}
	indexes := make([]*bleveIndex, 0, len(b.indexes))
	for _, ix := range b.indexes {
		indexes = append(indexes, ix)
	}
	b.mu.RUnlock()

	type probe struct {
		docs map[string]uint64
		err  error
	}
	done := make(chan probe, 1)
	go func() {
		docs := make(map[string]uint64, len(indexes))
		for _, ix := range indexes {
			n, err := ix.index.DocCount()
			if err != nil {
				done <- probe{err: fmt.Errorf("count %s: %w", ix.name, err)}
				return
			}
			docs[ix.name] = n
		}
		done <- probe{docs: docs}
	}()

	select {
	case <-ctx.Done():
		return HealthStatus{Status: "timeout"}, serrors.TimeoutError("health probe", ctx.Err())
	case p := <-done:
		if p.err != nil {
			return HealthStatus{Status: "unavailable"}, serrors.New(serrors.ErrCodeBackendUnavailable, "health probe", p.err)
		}
		return HealthStatus{Status: StatusAvailable, Documents: p.docs}, nil
	}
}

// Close closes every index and releases the data directory lock.
func (b *BleveBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for name, ix := range b.indexes {
		if err := ix.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	if b.lock != nil {
		if err := b.lock.unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
