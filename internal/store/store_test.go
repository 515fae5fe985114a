package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/keepclip/internal/crypto"
	"go.klb.dev/keepclip/internal/history"
)

func sampleEntries() []history.Entry {
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	img := history.NewImage("1760866200000.png", "abc123", now)
	img.Locked = true
	return []history.Entry{
		img,
		history.NewText("hello", now.Add(-time.Minute)),
	}
}

func TestPersisters(t *testing.T) {
	ctx := context.Background()

	for _, kind := range []Kind{KindJSON, KindBolt, KindSQLite} {
		t.Run(string(kind), func(t *testing.T) {
			t.Run("missing document is empty", func(t *testing.T) {
				p, err := Open(ctx, kind, t.TempDir(), nil)
				require.NoError(t, err)
				defer p.Close()

				entries, err := p.Load(ctx)
				require.NoError(t, err)
				assert.Empty(t, entries)
			})

			t.Run("save and load", func(t *testing.T) {
				dir := t.TempDir()
				p, err := Open(ctx, kind, dir, nil)
				require.NoError(t, err)

				want := sampleEntries()
				require.NoError(t, p.Save(ctx, want))
				require.NoError(t, p.Save(ctx, want[:1]), "save replaces the document")
				require.NoError(t, p.Save(ctx, want))
				require.NoError(t, p.Close())

				p, err = Open(ctx, kind, dir, nil)
				require.NoError(t, err)
				defer p.Close()
				got, err := p.Load(ctx)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			})

			t.Run("sealed", func(t *testing.T) {
				dir := t.TempDir()
				sealer, err := crypto.NewSealer("secret")
				require.NoError(t, err)

				p, err := Open(ctx, kind, dir, sealer)
				require.NoError(t, err)
				require.NoError(t, p.Save(ctx, sampleEntries()))
				require.NoError(t, p.Close())

				wrong, err := crypto.NewSealer("other")
				require.NoError(t, err)
				p, err = Open(ctx, kind, dir, wrong)
				require.NoError(t, err)
				defer p.Close()
				_, err = p.Load(ctx)
				assert.ErrorIs(t, err, crypto.ErrDecrypt)
			})
		})
	}
}

func TestJSONDocumentFormat(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p, err := Open(ctx, KindJSON, dir, nil)
	require.NoError(t, err)
	require.NoError(t, p.Save(ctx, sampleEntries()))

	data, err := os.ReadFile(filepath.Join(dir, "history.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"clipboardHistory"`)
	assert.Contains(t, string(data), `"timestamp": "2026-10-19T09:30:00.000Z"`)
	assert.Contains(t, string(data), `"type": "image"`)

	t.Run("documents without ids load", func(t *testing.T) {
		legacy := `{"clipboardHistory":[{"type":"text","content":"hi","timestamp":"2024-05-01T10:00:00.123Z"}]}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "history.json"), []byte(legacy), 0o600))
		entries, err := p.Load(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "hi", entries[0].Text)
		assert.NotEmpty(t, entries[0].ID)
	})

	t.Run("corrupt document", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "history.json"), []byte("{"), 0o600))
		_, err := p.Load(ctx)
		assert.Error(t, err)
	})
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open(context.Background(), "redis", t.TempDir(), nil)
	assert.Error(t, err)
}
