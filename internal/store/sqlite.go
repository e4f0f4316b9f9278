package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go driver, registered as "sqlite"

	serrors "github.com/ordokr/lmssearch/internal/errors"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// SQLiteStore implements Datastore over a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	driver string
	path   string
}

var _ Datastore = (*SQLiteStore)(nil)

// OpenSQLite opens the database at dsn with the named driver.
// ":memory:" opens a private in-memory database.
func OpenSQLite(driver, dsn string) (*SQLiteStore, error) {
	driver = strings.ToLower(driver)
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverCGO {
		return nil, serrors.ConfigError(fmt.Sprintf("unsupported datastore driver %q", driver), nil)
	}

	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, serrors.New(serrors.ErrCodeDatastoreOpen, "create datastore directory", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeDatastoreOpen, "open datastore", err)
	}

	// A single connection keeps ":memory:" databases alive and avoids
	// writer contention on the file.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if path != ":memory:" {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, serrors.New(serrors.ErrCodeDatastoreOpen, fmt.Sprintf("set %s", pragma), err)
		}
	}

	slog.Debug("datastore_opened",
		slog.String("driver", driver),
		slog.String("path", path))

	return &SQLiteStore{db: db, driver: driver, path: path}, nil
}

// Path returns the database file path, or ":memory:".
func (s *SQLiteStore) Path() string { return s.path }

// DB exposes the underlying handle for writers that share the file.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const topicColumns = `
	SELECT t.id, t.title, t.content, t.category_id, COALESCE(c.name, ''),
	       t.user_id, t.created_at, t.updated_at, t.slug
	FROM topics t
	LEFT JOIN categories c ON c.id = t.category_id`

const categoryColumns = `
	SELECT id, name, description, slug, created_at, updated_at
	FROM categories`

// ChangedDocuments implements Datastore.
func (s *SQLiteStore) ChangedDocuments(ctx context.Context, kind Kind, since *time.Time) ([]Document, error) {
	switch kind {
	case KindTopics:
		return s.changedTopics(ctx, since)
	case KindCategories:
		return s.changedCategories(ctx, since)
	default:
		return nil, serrors.ValidationError(serrors.ErrCodeInvalidInput, fmt.Sprintf("unknown collection %q", kind), nil)
	}
}

func (s *SQLiteStore) changedTopics(ctx context.Context, since *time.Time) ([]Document, error) {
	query := topicColumns
	var args []any
	if since != nil {
		query += ` WHERE ` + normalizedTime("t.updated_at") + ` > ?`
		args = append(args, formatTime(*since))
	}
	query += ` ORDER BY t.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, serrors.DatastoreError("query changed topics", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d                TopicDocument
			created, updated string
		)
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.CategoryID, &d.CategoryName,
			&d.UserID, &created, &updated, &d.Slug); err != nil {
			return nil, serrors.DatastoreError("scan topic row", err)
		}
		if d.CreatedAt, err = parseTime(created); err != nil {
			return nil, serrors.DatastoreError(fmt.Sprintf("topic %d created_at", d.ID), err)
		}
		if d.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, serrors.DatastoreError(fmt.Sprintf("topic %d updated_at", d.ID), err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, serrors.DatastoreError("iterate topic rows", err)
	}
	return docs, nil
}

func (s *SQLiteStore) changedCategories(ctx context.Context, since *time.Time) ([]Document, error) {
	query := categoryColumns
	var args []any
	if since != nil {
		query += ` WHERE ` + normalizedTime("updated_at") + ` > ?`
		args = append(args, formatTime(*since))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, serrors.DatastoreError("query changed categories", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d                CategoryDocument
			desc             sql.NullString
			created, updated string
		)
		if err := rows.Scan(&d.ID, &d.Name, &desc, &d.Slug, &created, &updated); err != nil {
			return nil, serrors.DatastoreError("scan category row", err)
		}
		if desc.Valid {
			v := desc.String
			d.Description = &v
		}
		if d.CreatedAt, err = parseTime(created); err != nil {
			return nil, serrors.DatastoreError(fmt.Sprintf("category %d created_at", d.ID), err)
		}
		if d.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, serrors.DatastoreError(fmt.Sprintf("category %d updated_at", d.ID), err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, serrors.DatastoreError("iterate category rows", err)
	}
	return docs, nil
}

// CountChangedSince implements Datastore.
func (s *SQLiteStore) CountChangedSince(ctx context.Context, since time.Time) (int64, error) {
	ts := formatTime(since)
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM topics WHERE `+normalizedTime("updated_at")+` > ?)
		     + (SELECT COUNT(*) FROM categories WHERE `+normalizedTime("updated_at")+` > ?)`, ts, ts).Scan(&n)
	if err != nil {
		return 0, serrors.DatastoreError("count changed rows", err)
	}
	return n, nil
}

// canonicalTimeGlob matches values already in TimestampLayout.
const canonicalTimeGlob = "[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9] [0-9][0-9]:[0-9][0-9]:[0-9][0-9].[0-9][0-9][0-9][0-9][0-9][0-9]"

// normalizedTime returns a SQL expression rendering col in TimestampLayout
// so that text comparison against formatTime orders correctly. Rows written
// by other tools (RFC 3339, offsets, second precision) are converted to UTC
// with millisecond precision; unparseable values become NULL and never match.
// Migrate indexes the same expression, so the text must stay identical.
func normalizedTime(col string) string {
	return `(CASE WHEN ` + col + ` GLOB '` + canonicalTimeGlob + `' THEN ` + col +
		` ELSE strftime('%Y-%m-%d %H:%M:%f', ` + col + `) || '000' END)`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// parseTime accepts the storage layout and the second-precision layout
// written by other tools sharing the database.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{TimestampLayout, "2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
