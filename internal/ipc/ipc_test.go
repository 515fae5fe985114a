package ipc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketPath(t *testing.T) {
	t.Setenv("KEEPCLIP_SOCKET", "/tmp/custom.sock")
	assert.Equal(t, "/tmp/custom.sock", SocketPath())

	t.Setenv("KEEPCLIP_SOCKET", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/keepclip.sock", SocketPath())
}

func TestListen(t *testing.T) {
	// Unix socket paths are length-limited; keep it short.
	dir, err := os.MkdirTemp("", "kc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv("KEEPCLIP_SOCKET", filepath.Join(dir, "k.sock"))

	assert.False(t, IsRunning())

	ln, err := Listen()
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	assert.True(t, IsRunning())
	_, err = Listen()
	assert.Error(t, err, "second daemon must not steal the socket")

	info, err := os.Stat(SocketPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
