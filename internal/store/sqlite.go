package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/erp-sync/internal/docstore"
	"github.com/nhle/erp-sync/internal/model"
)

// SQLiteStore implements docstore.Store on a local SQLite database. It
// stands in for the remote store in offline mode and in tests: every write
// re-runs the live listeners on the written collection.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *log.Logger

	mu        gosync.Mutex
	listeners map[string]map[*listener]struct{} // by collection path
	rules     map[string]error                  // injected listener failures by collection
}

// documentRow mirrors one row of the documents table.
type documentRow struct {
	Collection string    `db:"collection"`
	ID         string    `db:"id"`
	Fields     string    `db:"fields"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = log.Default()
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:        db,
		logger:    logger,
		listeners: make(map[string]map[*listener]struct{}),
		rules:     make(map[string]error),
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close stops every live listener and closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	var all []*listener
	for _, set := range s.listeners {
		for l := range set {
			all = append(all, l)
		}
	}
	s.mu.Unlock()

	for _, l := range all {
		l.Stop()
	}
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Set merges fields into the document at path, creating it if needed, and
// then notifies listeners on its collection.
func (s *SQLiteStore) Set(ctx context.Context, path string, fields model.Fields) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	merged := model.Fields{}
	var existing string
	err = tx.GetContext(ctx, &existing,
		"SELECT fields FROM documents WHERE collection = ? AND id = ?", collection, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("reading %s: %w", path, err)
	default:
		if err := json.Unmarshal([]byte(existing), &merged); err != nil {
			return fmt.Errorf("unmarshaling %s: %w", path, err)
		}
	}
	for k, v := range fields {
		merged[k] = v
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			fields = excluded.fields,
			updated_at = excluded.updated_at`,
		collection, id, string(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", path, err)
	}

	s.notify(collection)
	return nil
}

// Delete removes the document at path and notifies listeners on its
// collection. Deleting a missing document is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}

	s.notify(collection)
	return nil
}

// Get returns the document at path, or nil if it does not exist.
func (s *SQLiteStore) Get(ctx context.Context, path string) (*docstore.Document, error) {
	collection, id, err := docstore.SplitPath(path)
	if err != nil {
		return nil, err
	}

	var row documentRow
	err = s.db.GetContext(ctx, &row,
		"SELECT * FROM documents WHERE collection = ? AND id = ?", collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", path, err)
	}

	doc, err := row.document()
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Query evaluates q once against the stored documents.
func (s *SQLiteStore) Query(ctx context.Context, q docstore.Query) (docstore.Snapshot, error) {
	var rows []documentRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM documents WHERE collection = ? ORDER BY id", q.Collection)
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("querying %s: %w", q.Collection, err)
	}

	docs := make([]docstore.Document, 0, len(rows))
	for _, r := range rows {
		doc, err := r.document()
		if err != nil {
			s.logger.Printf("store: skipping %s/%s: %v", r.Collection, r.ID, err)
			continue
		}
		docs = append(docs, doc)
	}

	return docstore.Snapshot{
		Documents: docstore.Apply(q, docs),
		ReadAt:    time.Now().UTC(),
	}, nil
}

func (r documentRow) document() (docstore.Document, error) {
	fields := model.Fields{}
	if err := json.Unmarshal([]byte(r.Fields), &fields); err != nil {
		return docstore.Document{}, fmt.Errorf("unmarshaling %s/%s: %w", r.Collection, r.ID, err)
	}
	return docstore.Document{ID: r.ID, Fields: fields}, nil
}
