// Package history holds the clipboard history: an ordered, deduplicated,
// capacity-bounded list of entries, most recent first.
package history

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no entry matches the requested ID.
var ErrNotFound = errors.New("history entry not found")

// DefaultCapacity is the number of entries kept when no capacity is configured.
const DefaultCapacity = 100

// Kind identifies the payload type of an entry.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Entry is one recorded clipboard payload.
type Entry struct {
	ID   string
	Kind Kind

	// Text is set for KindText.
	Text string
	// File and Hash are set for KindImage. File is the name of the stored
	// PNG inside the image directory; Hash is its SHA-256 hex digest.
	File string
	Hash string

	RecordedAt time.Time
	Locked     bool
}

// NewText returns a new unlocked text entry recorded at now.
func NewText(text string, now time.Time) Entry {
	return Entry{ID: uuid.NewString(), Kind: KindText, Text: text, RecordedAt: now}
}

// NewImage returns a new unlocked image entry recorded at now.
func NewImage(file, hash string, now time.Time) Entry {
	return Entry{ID: uuid.NewString(), Kind: KindImage, File: file, Hash: hash, RecordedAt: now}
}

// Content returns the entry's payload: the text itself, or the image file name.
func (e Entry) Content() string {
	if e.Kind == KindImage {
		return e.File
	}
	return e.Text
}

// Same reports whether e and o carry the same payload. Text compares by exact
// string, images by content hash.
func (e Entry) Same(o Entry) bool {
	if e.Kind != o.Kind {
		return false
	}
	if e.Kind == KindImage {
		return e.Hash != "" && e.Hash == o.Hash
	}
	return e.Text == o.Text
}
