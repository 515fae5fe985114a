// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the appropriate implementation:
//
//	clip_system.go: macOS, Windows, Linux via golang.design/x/clipboard
//	clip_other.go:  every other OS, in-memory clipboard
//
// On Linux without a display server the in-memory clipboard is used as well.
package clip

// Backend is the interface that all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// ReadText returns the current clipboard text, or "" if there is none.
	ReadText() (string, error)

	// ReadImage returns the current clipboard image as PNG bytes, or nil if
	// the clipboard holds no image.
	ReadImage() ([]byte, error)

	// WriteText replaces the clipboard contents with text.
	WriteText(text string) error

	// WriteImage replaces the clipboard contents with PNG-encoded data.
	WriteImage(png []byte) error

	// Close releases any resources held by the backend.
	Close()
}
