// Package ipc provides helpers for the local Unix-socket IPC channel used by
// CLI tools (list/copy/lock/...) to talk to a running keepclip daemon.
//
// The IPC channel is plain gRPC served over a Unix domain socket, using the
// same HistoryService as the TCP listener. The socket file is created with
// owner-only permissions, so no token is required on it.
package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// SocketPath returns the path of the IPC socket:
//
//   - $KEEPCLIP_SOCKET if set
//   - $XDG_RUNTIME_DIR/keepclip.sock on Linux desktops
//   - $TMPDIR/keepclip.sock otherwise (macOS, Windows 10+ AF_UNIX)
func SocketPath() string {
	if s := os.Getenv("KEEPCLIP_SOCKET"); s != "" {
		return s
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "keepclip.sock")
	}
	return filepath.Join(os.TempDir(), "keepclip.sock")
}

// IsRunning reports whether a daemon appears to be listening on the IPC
// socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := net.DialTimeout("unix", SocketPath(), 500*time.Millisecond)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on the IPC socket path, removing any stale
// socket file first. It refuses to steal the socket from a live daemon.
func Listen() (net.Listener, error) {
	path := SocketPath()
	if IsRunning() {
		return nil, fmt.Errorf("another daemon is listening on %s", path)
	}
	// Remove stale socket from a previous (crashed) run.
	_ = os.Remove(path)
	ln, err := listenUnix(path)
	if err != nil {
		return nil, err
	}
	// Already 0600 where listenUnix controls the umask; enforce it elsewhere.
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return ln, nil
}
