package history

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Persister loads and saves the full entry list as one document.
type Persister interface {
	// Load returns the persisted entries, most recent first. A missing
	// document is not an error and yields an empty list.
	Load(ctx context.Context) ([]Entry, error)
	// Save replaces the persisted document with entries.
	Save(ctx context.Context, entries []Entry) error
	Close() error
}

// History is the in-memory, ordered entry list. Index 0 is the most recent
// entry. It is safe for concurrent use.
//
// Locked entries are never evicted. When an insert pushes the list past
// capacity, the oldest unlocked entry goes first; the entry being inserted
// is itself a candidate, so inserts never grow the list past capacity.
//
// The one exception is a list loaded with more locked entries than
// capacity (the capacity was lowered, or entries were locked by hand in the
// document). Those entries all stay, Len exceeds Capacity, and Overfull
// reports true until enough of them are unlocked or deleted; every insert
// in the meantime is dropped.
type History struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
}

// New returns a History holding entries, re-sorted most recent first and
// trimmed to capacity. A capacity <= 0 selects DefaultCapacity.
func New(capacity int, entries []Entry) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	h := &History{capacity: capacity, entries: slices.Clone(entries)}
	slices.SortStableFunc(h.entries, func(a, b Entry) int {
		return b.RecordedAt.Compare(a.RecordedAt)
	})
	h.evictLocked()
	return h
}

// Capacity returns the configured maximum length.
func (h *History) Capacity() int { return h.capacity }

// Overfull reports whether locked entries hold the list above capacity.
func (h *History) Overfull() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries) > h.capacity
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// List returns a copy of all entries, most recent first.
func (h *History) List() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries)
}

// Get returns the entry with the given ID.
func (h *History) Get(id string) (Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.indexOf(id)
	if i < 0 {
		return Entry{}, ErrNotFound
	}
	return h.entries[i], nil
}

// FindSame returns the entry carrying the same payload as e, if any.
func (h *History) FindSame(e Entry) (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cur := range h.entries {
		if cur.Same(e) {
			return cur, true
		}
	}
	return Entry{}, false
}

// Touch refreshes the entry's timestamp and moves it to the front.
func (h *History) Touch(id string, now time.Time) (Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.indexOf(id)
	if i < 0 {
		return Entry{}, ErrNotFound
	}
	e := h.entries[i]
	e.RecordedAt = now
	h.entries = slices.Delete(h.entries, i, i+1)
	h.entries = slices.Insert(h.entries, 0, e)
	return e, nil
}

// Insert prepends e and trims the list back to capacity. An existing entry
// with the same payload is replaced, keeping its ID and lock state. The
// stored entry and any evicted entries are returned; if e itself was evicted
// it appears in evicted and stored is the zero Entry with ok false.
func (h *History) Insert(e Entry) (stored Entry, ok bool, evicted []Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, cur := range h.entries {
		if cur.Same(e) {
			e.ID = cur.ID
			e.Locked = cur.Locked
			h.entries = slices.Delete(h.entries, i, i+1)
			break
		}
	}
	h.entries = slices.Insert(h.entries, 0, e)
	evicted = h.evictLocked()
	if len(h.entries) > 0 && h.entries[0].ID == e.ID {
		return e, true, evicted
	}
	return Entry{}, false, evicted
}

// Delete removes the entry with the given ID. Locked entries are only
// removed when force is set. It reports the removed entry, if any.
func (h *History) Delete(id string, force bool) (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.indexOf(id)
	if i < 0 {
		return Entry{}, false
	}
	e := h.entries[i]
	if e.Locked && !force {
		return Entry{}, false
	}
	h.entries = slices.Delete(h.entries, i, i+1)
	return e, true
}

// Clear removes every unlocked entry and returns them.
func (h *History) Clear() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	var removed []Entry
	kept := h.entries[:0:0]
	for _, e := range h.entries {
		if e.Locked {
			kept = append(kept, e)
		} else {
			removed = append(removed, e)
		}
	}
	h.entries = kept
	return removed
}

// ToggleLock flips the entry's locked flag and returns the updated entry.
func (h *History) ToggleLock(id string) (Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.indexOf(id)
	if i < 0 {
		return Entry{}, ErrNotFound
	}
	h.entries[i].Locked = !h.entries[i].Locked
	return h.entries[i], nil
}

func (h *History) indexOf(id string) int {
	return slices.IndexFunc(h.entries, func(e Entry) bool { return e.ID == id })
}

// evictLocked drops the oldest unlocked entries until the list fits.
// Must be called with h.mu held.
func (h *History) evictLocked() []Entry {
	var evicted []Entry
	for len(h.entries) > h.capacity {
		i := len(h.entries) - 1
		for i >= 0 && h.entries[i].Locked {
			i--
		}
		if i < 0 {
			// Only locked entries left; they stay even past capacity.
			break
		}
		evicted = append(evicted, h.entries[i])
		h.entries = slices.Delete(h.entries, i, i+1)
	}
	return evicted
}
