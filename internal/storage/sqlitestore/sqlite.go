//go:build sqlite

package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"pastebin/internal/storage"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// Open initializes the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := initialize(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initialize(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS pastes (
    short TEXT PRIMARY KEY,
    content BLOB NOT NULL,
    metadata TEXT NOT NULL,
    expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_pastes_expires_at ON pastes (expires_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Save inserts or replaces a paste.
func (s *Store) Save(ctx context.Context, paste *storage.Paste) error {
	if paste == nil {
		return errors.New("paste is nil")
	}

	paste.Metadata.PostedAt = paste.Metadata.PostedAt.UTC()
	paste.Metadata.LastModified = paste.Metadata.LastModified.UTC()
	meta, err := json.Marshal(paste.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	content := paste.Content
	if content == nil {
		content = []byte{}
	}

	const q = `
INSERT INTO pastes (short, content, metadata, expires_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(short) DO UPDATE SET
    content=excluded.content,
    metadata=excluded.metadata,
    expires_at=excluded.expires_at;
`
	_, err = s.db.ExecContext(ctx, q, paste.Short, content, string(meta), nullableUnix(paste.ExpiresAt()))
	if err != nil {
		return fmt.Errorf("save paste: %w", err)
	}
	return nil
}

// Get fetches a paste by short name.
func (s *Store) Get(ctx context.Context, short string) (*storage.Paste, error) {
	const q = `SELECT content, metadata FROM pastes WHERE short = ?;`
	row := s.db.QueryRowContext(ctx, q, short)

	var (
		content []byte
		meta    string
	)
	if err := row.Scan(&content, &meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%q: %w", short, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("query paste: %w", err)
	}

	paste := &storage.Paste{Short: short, Content: content}
	if err := json.Unmarshal([]byte(meta), &paste.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return paste, nil
}

// Delete removes a paste by short name.
func (s *Store) Delete(ctx context.Context, short string) error {
	const q = `DELETE FROM pastes WHERE short = ?;`
	res, err := s.db.ExecContext(ctx, q, short)
	if err != nil {
		return fmt.Errorf("delete paste: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("%q: %w", short, storage.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes all expired pastes.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	const q = `DELETE FROM pastes WHERE expires_at IS NOT NULL AND expires_at <= ?;`
	res, err := s.db.ExecContext(ctx, q, before.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(rows), nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullableUnix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().UnixNano()
}
