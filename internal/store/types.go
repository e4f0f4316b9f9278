// Package store reads the relational source of truth that the search
// indexes are synchronized from.
package store

import (
	"context"
	"strconv"
	"time"
)

// Kind identifies a tracked collection. Its value is also the index name.
type Kind string

const (
	KindTopics     Kind = "topics"
	KindCategories Kind = "categories"
)

// Kinds lists the tracked collections in sync order.
var Kinds = []Kind{KindTopics, KindCategories}

// TimestampLayout is how timestamps are stored: UTC, fixed width, so text
// comparison in SQL orders them correctly.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Document is a row snapshot ready to be handed to the search backend.
type Document interface {
	DocumentID() string
	Fields() map[string]any
}

// TopicDocument is a forum topic joined with its category name.
type TopicDocument struct {
	ID           int64
	Title        string
	Content      string
	CategoryID   int64
	CategoryName string
	UserID       int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Slug         string
}

// DocumentID implements Document.
func (d TopicDocument) DocumentID() string { return strconv.FormatInt(d.ID, 10) }

// Fields implements Document.
func (d TopicDocument) Fields() map[string]any {
	return map[string]any{
		"id":            float64(d.ID),
		"title":         d.Title,
		"content":       d.Content,
		"category_id":   float64(d.CategoryID),
		"category_name": d.CategoryName,
		"user_id":       float64(d.UserID),
		"created_at":    d.CreatedAt.UTC(),
		"slug":          d.Slug,
	}
}

// CategoryDocument is a forum category.
type CategoryDocument struct {
	ID          int64
	Name        string
	Description *string
	Slug        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocumentID implements Document.
func (d CategoryDocument) DocumentID() string { return strconv.FormatInt(d.ID, 10) }

// Fields implements Document. A nil description is omitted.
func (d CategoryDocument) Fields() map[string]any {
	f := map[string]any{
		"id":         float64(d.ID),
		"name":       d.Name,
		"slug":       d.Slug,
		"created_at": d.CreatedAt.UTC(),
	}
	if d.Description != nil {
		f["description"] = *d.Description
	}
	return f
}

// Datastore is the read side of the relational source of truth.
type Datastore interface {
	// ChangedDocuments returns rows of kind with updated_at after since,
	// or every row when since is nil, ordered by id.
	ChangedDocuments(ctx context.Context, kind Kind, since *time.Time) ([]Document, error)

	// CountChangedSince counts rows changed after since across all tracked
	// tables in a single query.
	CountChangedSince(ctx context.Context, since time.Time) (int64, error)

	Close() error
}
