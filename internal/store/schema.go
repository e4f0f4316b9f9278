package store

import (
	"context"
	"database/sql"
	"time"

	serrors "github.com/ordokr/lmssearch/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id          INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT,
	slug        TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
	id          INTEGER PRIMARY KEY,
	title       TEXT NOT NULL,
	content     TEXT NOT NULL,
	category_id INTEGER NOT NULL REFERENCES categories(id),
	user_id     INTEGER NOT NULL,
	slug        TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
`

// changeIndexes back the watermark predicates of ChangedDocuments and
// CountChangedSince.
var changeIndexes = []string{
	`DROP INDEX IF EXISTS idx_categories_updated_at`,
	`DROP INDEX IF EXISTS idx_topics_updated_at`,
	`CREATE INDEX IF NOT EXISTS idx_categories_changed ON categories(` + normalizedTime("updated_at") + `)`,
	`CREATE INDEX IF NOT EXISTS idx_topics_changed ON topics(` + normalizedTime("updated_at") + `)`,
}

// Migrate creates the tracked tables and their change indexes if they do
// not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return serrors.New(serrors.ErrCodeDatastoreOpen, "create datastore schema", err)
	}
	for _, stmt := range changeIndexes {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return serrors.New(serrors.ErrCodeDatastoreOpen, "create change index", err)
		}
	}
	return nil
}

// UpsertCategory inserts or replaces a category row. A zero UpdatedAt is
// set to the current time.
func (s *SQLiteStore) UpsertCategory(ctx context.Context, c CategoryDocument) error {
	created, updated := stamps(c.CreatedAt, c.UpdatedAt)
	var desc sql.NullString
	if c.Description != nil {
		desc = sql.NullString{String: *c.Description, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			slug = excluded.slug,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, desc, c.Slug, created, updated)
	if err != nil {
		return serrors.New(serrors.ErrCodeDatastoreQuery, "upsert category", err)
	}
	return nil
}

// UpsertTopic inserts or replaces a topic row. CategoryName is ignored; it
// is always read through the join.
func (s *SQLiteStore) UpsertTopic(ctx context.Context, t TopicDocument) error {
	created, updated := stamps(t.CreatedAt, t.UpdatedAt)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO topics (id, title, content, category_id, user_id, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			category_id = excluded.category_id,
			user_id = excluded.user_id,
			slug = excluded.slug,
			updated_at = excluded.updated_at`,
		t.ID, t.Title, t.Content, t.CategoryID, t.UserID, t.Slug, created, updated)
	if err != nil {
		return serrors.New(serrors.ErrCodeDatastoreQuery, "upsert topic", err)
	}
	return nil
}

func stamps(created, updated time.Time) (string, string) {
	now := time.Now()
	if updated.IsZero() {
		updated = now
	}
	if created.IsZero() {
		created = updated
	}
	return formatTime(created), formatTime(updated)
}
