// Package boltdb persists the clipboard history document in a bbolt database.
package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"go.klb.dev/keepclip/internal/crypto"
	"go.klb.dev/keepclip/internal/history"
)

var bucket = []byte("keepclip")

// Store implements history.Persister on top of bbolt. The document lives
// under history.DocumentKey in a single bucket.
type Store struct {
	db     *bbolt.DB
	sealer *crypto.Sealer
}

// Open opens (or creates) the database at path. sealer may be nil.
func Open(path string, sealer *crypto.Sealer) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: db, sealer: sealer}, nil
}

func (s *Store) Load(_ context.Context) ([]history.Entry, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		// Values are only valid inside the transaction.
		if v := tx.Bucket(bucket).Get([]byte(history.DocumentKey)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	plain, err := s.sealer.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return history.DecodeDocument(plain)
}

func (s *Store) Save(_ context.Context, entries []history.Entry) error {
	data, err := history.EncodeDocument(entries)
	if err != nil {
		return err
	}
	if data, err = s.sealer.Seal(data); err != nil {
		return fmt.Errorf("seal history: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(history.DocumentKey), data)
	})
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }
