package ui

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// CollectionProgress is the state of one collection within a cycle.
type CollectionProgress struct {
	Collection  string
	Rows        int
	Batches     int
	BatchesDone int
	DocsDone    int
	Failures    int
	Done        bool
	Err         string
}

// Fraction returns completed batches over total batches. A collection with
// nothing to send counts as complete once it is known.
func (c CollectionProgress) Fraction() float64 {
	if c.Batches == 0 {
		if c.Done || c.Rows == 0 {
			return 1
		}
		return 0
	}
	return float64(c.BatchesDone) / float64(c.Batches)
}

// ProgressTracker accumulates progress across collections.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	start       time.Time
	collections map[string]*CollectionProgress
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		start:       time.Now(),
		collections: make(map[string]*CollectionProgress),
	}
}

func (p *ProgressTracker) get(collection string) *CollectionProgress {
	c, ok := p.collections[collection]
	if !ok {
		c = &CollectionProgress{Collection: collection}
		p.collections[collection] = c
	}
	return c
}

// Started records the workload of a collection.
func (p *ProgressTracker) Started(collection string, rows, batches int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.get(collection)
	c.Rows = rows
	c.Batches = batches
}

// Batch records one submitted batch.
func (p *ProgressTracker) Batch(collection string, docs int, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.get(collection)
	c.BatchesDone++
	if failed {
		c.Failures++
		return
	}
	c.DocsDone += docs
}

// Finished marks a collection as done.
func (p *ProgressTracker) Finished(collection string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.get(collection)
	c.Done = true
	if err != nil {
		c.Err = err.Error()
	}
}

// Snapshot returns every collection's progress, ordered by name.
func (p *ProgressTracker) Snapshot() []CollectionProgress {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]CollectionProgress, 0, len(p.collections))
	for _, c := range p.collections {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b CollectionProgress) int {
		return cmp.Compare(a.Collection, b.Collection)
	})
	return out
}

// Elapsed returns the time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	return time.Since(p.start)
}
