//go:build unix

package ipc

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// umaskMu serialises umask changes made by this package.
var umaskMu sync.Mutex

// listenUnix binds path with umask 0177 so the socket file is owner-only
// from the moment it exists.
func listenUnix(path string) (net.Listener, error) {
	umaskMu.Lock()
	defer umaskMu.Unlock()
	old := unix.Umask(0o177)
	defer unix.Umask(old)
	return net.Listen("unix", path)
}
