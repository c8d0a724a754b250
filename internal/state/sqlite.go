package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/jarmeli1/reddit-rss-alerts/internal/model"
	"github.com/jarmeli1/reddit-rss-alerts/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLiteStore keeps the seen set in a local SQLite database. Used when
// the job runs from cron on a host with a disk instead of a CI runner.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dsn and runs pending migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns every recorded entry ID.
func (s *SQLiteStore) Load(ctx context.Context) (model.SeenSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM seen_entries`)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("query seen_entries: %w", err)}
	}
	defer func() { _ = rows.Close() }()

	seen := model.NewSeenSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &LoadError{Err: fmt.Errorf("scan seen entry: %w", err)}
		}
		seen.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("iterate seen_entries: %w", err)}
	}
	return seen, nil
}

// Save inserts every ID in one transaction. Existing rows are kept
// untouched, so the stored set only grows.
func (s *SQLiteStore) Save(ctx context.Context, seen model.SeenSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistError{Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	for _, id := range seen.IDs() {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO seen_entries (id, seen_at) VALUES (?, ?)`,
			id, now,
		); err != nil {
			return &PersistError{Err: fmt.Errorf("insert seen entry: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &PersistError{Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}
