//go:build ignore

// Package main fills a SQLite datastore with a synthetic forum for trying
// sync and search at volume.
// Usage: go run scripts/seed-forum.go -dsn lms.db -topics 20000 -categories 40
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/ordokr/lmssearch/internal/store"
)

var (
	dsn        = flag.String("dsn", "lms.db", "SQLite datastore path")
	driver     = flag.String("driver", store.DriverModernc, "SQLite driver: sqlite or sqlite3")
	numTopics  = flag.Int("topics", 10000, "Number of topics to generate")
	numCats    = flag.Int("categories", 20, "Number of categories to generate")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
	spreadDays = flag.Int("days", 180, "Spread created_at over this many past days")
)

// Word pools for generating realistic forum text
var (
	subjects = []string{
		"Rust", "Go", "Python", "Haskell", "SQL", "Linear algebra", "Calculus",
		"Statistics", "Operating systems", "Networking", "Compilers", "Databases",
		"Machine learning", "Cryptography", "Graph theory", "Probability",
	}
	topicsOf = []string{
		"ownership", "borrow checker", "goroutines", "closures", "recursion",
		"eigenvalues", "integrals", "hypothesis testing", "page tables", "TCP handshake",
		"parsing", "indexes", "gradient descent", "hash functions", "shortest paths",
		"Bayes rule", "lifetimes", "channels", "transactions", "pointers",
	}
	asks = []string{
		"question about %s", "help with %s", "confused by %s", "%s in the week %d problem set",
		"exam prep: %s", "is this the right approach to %s?", "notes on %s", "%s homework %d",
	}
	categoryKinds = []string{
		"General", "Homework", "Projects", "Exams", "Announcements", "Office hours", "Labs", "Readings",
	}
	sentences = []string{
		"I tried the approach from the lecture but the tests still fail.",
		"Can someone explain why this compiles on my machine but not on the grader?",
		"Here is a minimal example that reproduces the problem.",
		"The slides mention this briefly but I could not find more detail.",
		"Thanks in advance, this has been bugging me all week.",
		"I read the textbook chapter twice and still do not get it.",
		"Is there a recording of the tutorial where this was covered?",
	}
)

func pick(pool []string) string {
	return pool[rand.Intn(len(pool))]
}

func slugify(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
		} else if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

func topicTitle() string {
	tmpl := pick(asks)
	subject := pick(subjects) + " " + pick(topicsOf)
	if strings.Count(tmpl, "%") == 2 {
		return fmt.Sprintf(tmpl, subject, 1+rand.Intn(12))
	}
	return fmt.Sprintf(tmpl, subject)
}

func topicContent() string {
	n := 2 + rand.Intn(4)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = pick(sentences)
	}
	return strings.Join(parts, " ")
}

func main() {
	flag.Parse()
	rand.Seed(*seed)
	ctx := context.Background()

	if *numCats < 1 {
		fmt.Fprintln(os.Stderr, "Error: -categories must be at least 1")
		os.Exit(1)
	}

	ds, err := store.OpenSQLite(*driver, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening datastore: %v\n", err)
		os.Exit(1)
	}
	defer ds.Close()

	if err := ds.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating schema: %v\n", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	spread := time.Duration(*spreadDays) * 24 * time.Hour
	randomTime := func() time.Time {
		return now.Add(-time.Duration(rand.Int63n(int64(spread))))
	}

	start := time.Now()
	for i := 1; i <= *numCats; i++ {
		name := fmt.Sprintf("%s: %s", pick(subjects), pick(categoryKinds))
		desc := fmt.Sprintf("Discussion for %s", strings.ToLower(name))
		at := randomTime()
		if err := ds.UpsertCategory(ctx, store.CategoryDocument{
			ID:          int64(i),
			Name:        name,
			Description: &desc,
			Slug:        fmt.Sprintf("%s-%d", slugify(name), i),
			CreatedAt:   at,
			UpdatedAt:   at,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing category %d: %v\n", i, err)
			os.Exit(1)
		}
	}

	for i := 1; i <= *numTopics; i++ {
		title := topicTitle()
		created := randomTime()
		updated := created.Add(time.Duration(rand.Int63n(int64(now.Sub(created)) + 1)))
		if err := ds.UpsertTopic(ctx, store.TopicDocument{
			ID:         int64(i),
			Title:      title,
			Content:    topicContent(),
			CategoryID: int64(1 + rand.Intn(*numCats)),
			UserID:     int64(1 + rand.Intn(500)),
			Slug:       fmt.Sprintf("%s-%d", slugify(title), i),
			CreatedAt:  created,
			UpdatedAt:  updated,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing topic %d: %v\n", i, err)
			os.Exit(1)
		}
		if i%5000 == 0 {
			fmt.Printf("  %d/%d topics\n", i, *numTopics)
		}
	}

	fmt.Printf("Seeded %d categories and %d topics into %s in %s\n",
		*numCats, *numTopics, *dsn, time.Since(start).Round(time.Millisecond))
}
