package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ordokr/lmssearch/internal/backend"
	"github.com/ordokr/lmssearch/internal/store"
)

// fakeBackend records calls and lets tests inject failures and delays.
type fakeBackend struct {
	mu sync.Mutex

	createErr   error
	settingsErr error
	addErr      map[string]error
	searchErr   error
	healthBlock bool

	// gate, when set, blocks every AddDocuments until it is closed.
	gate chan struct{}

	created        []string
	settingsCalls  int
	addCalls       int
	inFlight       int
	maxInFlight    int
	docs           map[string]map[string]store.Document
	searchCalls    int
	deleted        []string
	healthCanceled bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		addErr: make(map[string]error),
		docs:   make(map[string]map[string]store.Document),
	}
}

func (f *fakeBackend) CreateIndex(_ context.Context, name, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, name)
	return nil
}

func (f *fakeBackend) UpdateSettings(context.Context, string, backend.SettingsPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settingsCalls++
	return f.settingsErr
}

func (f *fakeBackend) AddDocuments(_ context.Context, name string, docs []store.Document, _ string) error {
	f.mu.Lock()
	f.addCalls++
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	} else {
		time.Sleep(5 * time.Millisecond)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if err := f.addErr[name]; err != nil {
		return err
	}
	if f.docs[name] == nil {
		f.docs[name] = make(map[string]store.Document)
	}
	for _, d := range docs {
		f.docs[name][d.DocumentID()] = d
	}
	return nil
}

func (f *fakeBackend) DeleteDocument(_ context.Context, name, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name+"/"+id)
	delete(f.docs[name], id)
	return nil
}

func (f *fakeBackend) Search(_ context.Context, name string, req backend.SearchRequest) (*backend.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &backend.SearchResult{Query: req.Query, Limit: req.Limit, Offset: req.Offset, Hits: []backend.Hit{}}, nil
}

func (f *fakeBackend) Health(ctx context.Context) (backend.HealthStatus, error) {
	if f.healthBlock {
		<-ctx.Done()
		f.mu.Lock()
		f.healthCanceled = true
		f.mu.Unlock()
		return backend.HealthStatus{}, ctx.Err()
	}
	return backend.HealthStatus{Status: backend.StatusAvailable}, nil
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) docCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs[name])
}

func (f *fakeBackend) calls() (adds, searches int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addCalls, f.searchCalls
}

// testClock is a settable time source.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var baseTime = time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.OpenSQLite(store.DriverModernc, ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

// seedForum inserts topics and categories last updated at.
func seedForum(t *testing.T, s *store.SQLiteStore, topics, categories int, at time.Time) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= categories; i++ {
		require.NoError(t, s.UpsertCategory(ctx, store.CategoryDocument{
			ID:          int64(i),
			Name:        []string{"General", "Homework", "Projects", "Exams"}[(i-1)%4],
			Description: strPtr("Course discussion"),
			Slug:        "category-" + string(rune('a'+i)),
			CreatedAt:   at,
			UpdatedAt:   at,
		}))
	}
	titles := []string{"Welcome to the course", "Rust ownership question", "Week 3 problem set", "Exam logistics"}
	for i := 1; i <= topics; i++ {
		require.NoError(t, s.UpsertTopic(ctx, store.TopicDocument{
			ID:         int64(100 + i),
			Title:      titles[(i-1)%len(titles)],
			Content:    "Posted in the forum",
			CategoryID: 1,
			UserID:     int64(i),
			Slug:       "topic-" + string(rune('a'+i)),
			CreatedAt:  at,
			UpdatedAt:  at,
		}))
	}
}
