// Package sqlite persists the clipboard history document in an SQLite
// key-value table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"go.klb.dev/keepclip/internal/crypto"
	"go.klb.dev/keepclip/internal/history"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// Store implements history.Persister on an SQLite database.
type Store struct {
	db     *sql.DB
	sealer *crypto.Sealer
}

// Open opens (or creates) the database at path. sealer may be nil.
func Open(ctx context.Context, path string, sealer *crypto.Sealer) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps writes serialised without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, sealer: sealer}, nil
}

func (s *Store) Load(ctx context.Context) ([]history.Entry, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, history.DocumentKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	plain, err := s.sealer.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return history.DecodeDocument(plain)
}

func (s *Store) Save(ctx context.Context, entries []history.Entry) error {
	data, err := history.EncodeDocument(entries)
	if err != nil {
		return err
	}
	if data, err = s.sealer.Seal(data); err != nil {
		return fmt.Errorf("seal history: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		history.DocumentKey, data)
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }
