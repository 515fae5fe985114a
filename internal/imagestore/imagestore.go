// Package imagestore keeps clipboard images as PNG files in one directory,
// named by the millisecond timestamp at which they were first seen.
package imagestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const ext = ".png"

// ErrEmpty is returned when asked to store zero-length image data.
var ErrEmpty = errors.New("image data is empty")

// ErrInvalidName is returned for names that are not plain file names.
var ErrInvalidName = errors.New("invalid image name")

// Hash returns the hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Store is a directory of image files.
type Store struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// New returns a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the directory holding the images.
func (s *Store) Dir() string { return s.dir }

// Put writes data under a fresh name and returns that name.
func (s *Store) Put(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now().UnixMilli()
	for {
		name := strconv.FormatInt(ms, 10) + ext
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, os.ErrExist) {
			ms++
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create image %s: %w", name, err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("write image %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close image %s: %w", name, err)
		}
		return name, nil
	}
}

// Read returns the bytes stored under name.
func (s *Store) Read(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read image %s: %w", name, ErrEmpty)
	}
	return data, nil
}

// Remove deletes the named image. A missing file is not an error.
func (s *Store) Remove(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image %s: %w", name, err)
	}
	return nil
}

// Prune deletes every image file whose name is not in referenced and returns
// the names it removed. Files that cannot be removed are logged and skipped.
func (s *Store) Prune(referenced map[string]struct{}) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list image directory: %w", err)
	}
	var removed []string
	for _, de := range dirents {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		if _, ok := referenced[name]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			slog.Warn("orphan image removal failed", "file", name, "err", err)
			continue
		}
		removed = append(removed, name)
	}
	return removed, nil
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
