package imagestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "images"))
	require.NoError(t, err)
	fixed := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return fixed }
	return s
}

func TestHash(t *testing.T) {
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Hash([]byte("hello")))
	assert.Equal(t, Hash([]byte{1, 2, 3}), Hash([]byte{1, 2, 3}))
	assert.NotEqual(t, Hash([]byte{1, 2, 3}), Hash([]byte{1, 2, 4}))
}

func TestPutAndRead(t *testing.T) {
	s := newStore(t)

	name, err := s.Put([]byte("png-one"))
	require.NoError(t, err)
	assert.Equal(t, "1700000000000.png", name)

	t.Run("collision bumps the timestamp", func(t *testing.T) {
		second, err := s.Put([]byte("png-two"))
		require.NoError(t, err)
		assert.Equal(t, "1700000000001.png", second)

		data, err := s.Read(second)
		require.NoError(t, err)
		assert.Equal(t, []byte("png-two"), data)
	})

	t.Run("empty data is rejected", func(t *testing.T) {
		_, err := s.Put(nil)
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := s.Read("42.png")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("path traversal is refused", func(t *testing.T) {
		_, err := s.Read("../secret.png")
		assert.ErrorIs(t, err, ErrInvalidName)
	})
}

func TestRemove(t *testing.T) {
	s := newStore(t)
	name, err := s.Put([]byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(name))
	require.NoError(t, s.Remove(name), "removing twice is fine")
	_, err = s.Read(name)
	assert.Error(t, err)
}

func TestPrune(t *testing.T) {
	s := newStore(t)
	keep, err := s.Put([]byte("keep"))
	require.NoError(t, err)
	drop, err := s.Put([]byte("drop"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o600))

	removed, err := s.Prune(map[string]struct{}{keep: {}})
	require.NoError(t, err)
	assert.Equal(t, []string{drop}, removed)

	_, err = s.Read(keep)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(s.Dir(), "notes.txt"))
	assert.NoError(t, err, "non-image files are left alone")
}
