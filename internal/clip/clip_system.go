//go:build darwin || windows || linux

package clip

import (
	"log/slog"
	"runtime"

	"golang.design/x/clipboard"
)

type systemBackend struct{}

// New returns the system clipboard backend, or an in-memory backend if the
// display environment is unavailable (e.g. a headless server without X11
// or Wayland). clipboard.Init is called here rather than in init() so that
// CLI sub-commands that never construct a Backend don't log spurious
// warnings on headless systems.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return NewMemory()
	}
	return systemBackend{}
}

func (systemBackend) Name() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS NSPasteboard"
	case "windows":
		return "Windows Clipboard"
	default:
		return "Linux clipboard"
	}
}

func (systemBackend) ReadText() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (systemBackend) ReadImage() ([]byte, error) {
	return clipboard.Read(clipboard.FmtImage), nil
}

func (systemBackend) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (systemBackend) WriteImage(png []byte) error {
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

func (systemBackend) Close() {}
