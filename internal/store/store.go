// Package store opens the configured history persister.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.klb.dev/keepclip/internal/crypto"
	"go.klb.dev/keepclip/internal/history"
	"go.klb.dev/keepclip/internal/store/boltdb"
	"go.klb.dev/keepclip/internal/store/jsonfile"
	"go.klb.dev/keepclip/internal/store/sqlite"
)

// Kind selects a persister implementation.
type Kind string

const (
	KindJSON   Kind = "json"
	KindBolt   Kind = "bolt"
	KindSQLite Kind = "sqlite"
)

// FileName returns the name of the file kind keeps inside the data directory.
func FileName(kind Kind) string {
	switch kind {
	case KindBolt:
		return "history.db"
	case KindSQLite:
		return "history.sqlite"
	default:
		return "history.json"
	}
}

// Open returns the persister of the given kind, storing its file in dir.
// sealer may be nil to keep the document in plain JSON.
func Open(ctx context.Context, kind Kind, dir string, sealer *crypto.Sealer) (history.Persister, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(dir, FileName(kind))
	switch kind {
	case KindJSON, "":
		return jsonfile.New(path, sealer), nil
	case KindBolt:
		return boltdb.Open(path, sealer)
	case KindSQLite:
		return sqlite.Open(ctx, path, sealer)
	default:
		return nil, fmt.Errorf("unknown store %q (want json, bolt, or sqlite)", kind)
	}
}
