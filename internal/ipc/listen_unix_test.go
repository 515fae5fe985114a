//go:build unix

package ipc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestListenUnixOwnerOnly(t *testing.T) {
	dir, err := os.MkdirTemp("", "kc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	old := unix.Umask(0)
	t.Cleanup(func() { unix.Umask(old) })

	path := filepath.Join(dir, "k.sock")
	ln, err := listenUnix(path)
	require.NoError(t, err)
	defer ln.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "socket must be owner-only before any chmod")

	assert.Equal(t, 0, unix.Umask(0), "process umask restored")
}
