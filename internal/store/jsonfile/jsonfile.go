// Package jsonfile persists the clipboard history as a single JSON document.
package jsonfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.klb.dev/keepclip/internal/crypto"
	"go.klb.dev/keepclip/internal/history"
)

// Store implements history.Persister using a JSON file.
type Store struct {
	path   string
	sealer *crypto.Sealer // nil = plain JSON
	mu     sync.Mutex
}

// New returns a Store writing to path. sealer may be nil.
func New(path string, sealer *crypto.Sealer) *Store {
	return &Store{path: path, sealer: sealer}
}

// Load reads the document. A missing file yields an empty history.
func (s *Store) Load(_ context.Context) ([]history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	plain, err := s.sealer.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	return history.DecodeDocument(plain)
}

// Save writes the document atomically.
func (s *Store) Save(_ context.Context, entries []history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	data, err := history.EncodeDocument(entries)
	if err != nil {
		return err
	}
	if data, err = s.sealer.Seal(data); err != nil {
		return fmt.Errorf("seal history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write history temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename history file: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return nil }
