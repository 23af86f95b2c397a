// Package redaction implements the censored-content registry: a small
// SQL-backed table of content keys whose reads are administratively denied,
// consulted by the blobstore on every get.
package redaction

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one row of the redaction registry.
type Entry struct {
	ContentKey   string
	Task         string
	AddTimestamp int64
}

const schema = `
CREATE TABLE IF NOT EXISTS censored_blobs (
	content_key   TEXT PRIMARY KEY,
	task          TEXT NOT NULL,
	add_timestamp INTEGER NOT NULL
)`

// Store is the SQLite-backed redaction registry. A content key is in exactly
// one of two states, clear or redacted; transitions happen only through
// explicit Insert/Delete calls, with no automatic expiry.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if necessary) the registry database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open redaction database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create redaction schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InsertCensoredBlobs bulk-inserts content keys under a task. Re-inserting
// an already-redacted key updates its task and timestamp (upsert), it is not
// an error.
func (s *Store) InsertCensoredBlobs(ctx context.Context, contentKeys []string, task string, timestamp int64) error {
	if len(contentKeys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin redaction insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO censored_blobs (content_key, task, add_timestamp) VALUES (?, ?, ?)
		ON CONFLICT(content_key) DO UPDATE SET task = excluded.task, add_timestamp = excluded.add_timestamp`)
	if err != nil {
		return fmt.Errorf("failed to prepare redaction insert: %w", err)
	}
	defer stmt.Close()

	for _, key := range contentKeys {
		if _, err := stmt.ExecContext(ctx, key, task, timestamp); err != nil {
			return fmt.Errorf("failed to insert censored blob %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit redaction insert: %w", err)
	}
	return nil
}

// DeleteCensoredBlobs bulk-removes content keys. Removing an absent key is a
// no-op, not an error.
func (s *Store) DeleteCensoredBlobs(ctx context.Context, contentKeys []string) error {
	if len(contentKeys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin redaction delete: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM censored_blobs WHERE content_key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare redaction delete: %w", err)
	}
	defer stmt.Close()

	for _, key := range contentKeys {
		if _, err := stmt.ExecContext(ctx, key); err != nil {
			return fmt.Errorf("failed to delete censored blob %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit redaction delete: %w", err)
	}
	return nil
}

// GetAllCensoredBlobs returns the full registry listing, used by
// administrative tooling.
func (s *Store) GetAllCensoredBlobs(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content_key, task, add_timestamp FROM censored_blobs ORDER BY content_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list censored blobs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ContentKey, &e.Task, &e.AddTimestamp); err != nil {
			return nil, fmt.Errorf("failed to scan censored blob row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate censored blobs: %w", err)
	}
	return entries, nil
}

// IsRedacted reports whether a content key is currently redacted and by
// which task.
func (s *Store) IsRedacted(ctx context.Context, contentKey string) (bool, string, error) {
	var task string
	err := s.db.QueryRowContext(ctx, `SELECT task FROM censored_blobs WHERE content_key = ?`, contentKey).Scan(&task)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to check redaction for %s: %w", contentKey, err)
	}
	return true, task, nil
}
