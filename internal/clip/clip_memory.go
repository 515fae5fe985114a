package clip

import (
	"bytes"
	"sync"
)

// Memory is an in-process clipboard. It backs headless environments
// (containers, CI, Linux without X11/Wayland) and tests.
type Memory struct {
	mu    sync.Mutex
	text  string
	image []byte
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "memory (headless)" }

func (m *Memory) ReadText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *Memory) ReadImage() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.image), nil
}

func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	m.text = text
	m.image = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) WriteImage(png []byte) error {
	m.mu.Lock()
	m.image = bytes.Clone(png)
	m.text = ""
	m.mu.Unlock()
	return nil
}

// Set replaces both formats at once, as an application copying rich
// content would.
func (m *Memory) Set(text string, png []byte) {
	m.mu.Lock()
	m.text = text
	m.image = bytes.Clone(png)
	m.mu.Unlock()
}

func (m *Memory) Close() {}
