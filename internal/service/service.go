// Package service owns the clipboard history at runtime. It reconciles
// clipboard observations into the history, persists every change, and
// serves the operations front ends invoke (list, clear, delete, lock, copy).
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/keepclip/internal/clip"
	"go.klb.dev/keepclip/internal/history"
	"go.klb.dev/keepclip/internal/hub"
	"go.klb.dev/keepclip/internal/imagestore"
)

// ErrInvalidImage is returned for image data that is not a decodable PNG.
var ErrInvalidImage = errors.New("invalid PNG image")

// Observation is the changed part of one clipboard poll. Empty fields mean
// "unchanged" and are ignored.
type Observation struct {
	Text string

	Image     []byte
	ImageHash string
}

// Status summarises the running service.
type Status struct {
	Backend     string               `json:"backend"`
	Entries     int                  `json:"entries"`
	Locked      int                  `json:"locked"`
	Capacity    int                  `json:"capacity"`
	ImageDir    string               `json:"image_dir"`
	StartedAt   time.Time            `json:"started_at"`
	Subscribers []hub.SubscriberInfo `json:"subscribers"`
}

// Service serialises every mutation of the history: poll cycles and user
// operations run one at a time under mu.
type Service struct {
	hist    *history.History
	images  *imagestore.Store
	persist history.Persister
	backend clip.Backend
	hub     *hub.Hub

	now     func() time.Time
	started time.Time

	mu sync.Mutex
}

// New wires a Service together. hist is the already-loaded history.
func New(hist *history.History, images *imagestore.Store, persist history.Persister, backend clip.Backend, h *hub.Hub) *Service {
	return &Service{
		hist:    hist,
		images:  images,
		persist: persist,
		backend: backend,
		hub:     h,
		now:     time.Now,
		started: time.Now(),
	}
}

// Load reads the persisted history and returns it bounded to capacity.
func Load(ctx context.Context, persist history.Persister, capacity int) (*history.History, error) {
	entries, err := persist.Load(ctx)
	if err != nil {
		return nil, err
	}
	h := history.New(capacity, entries)
	if h.Overfull() {
		slog.Warn("history holds more locked entries than its capacity; new entries are dropped until some are unlocked",
			"entries", h.Len(), "capacity", h.Capacity())
	}
	return h, nil
}

// Hub returns the event hub changes are published on.
func (s *Service) Hub() *hub.Hub { return s.hub }

// Reconcile records an observation. Text and image are handled
// independently; each yields at most one changed entry. The changed entries
// are persisted, published as EventChanged, and returned.
func (s *Service) Reconcile(ctx context.Context, obs Observation) ([]history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		changed []history.Entry
		evicted []history.Entry
	)
	if obs.Text != "" {
		e, ev := s.recordLocked(history.NewText(obs.Text, s.now()), nil)
		changed = append(changed, e...)
		evicted = append(evicted, ev...)
	}
	if obs.ImageHash != "" {
		e, ev, err := s.recordImageLocked(obs.Image, obs.ImageHash)
		if err != nil {
			slog.Error("clipboard image skipped", "hash", obs.ImageHash, "err", err)
		}
		changed = append(changed, e...)
		evicted = append(evicted, ev...)
	}
	if len(changed) == 0 && len(evicted) == 0 {
		return nil, nil
	}

	s.dropImagesLocked(evicted)
	err := s.saveLocked(ctx)

	for _, e := range changed {
		hub.LogEntry("history changed", e)
	}
	s.hub.Publish(hub.Removed(evicted...)...)
	s.hub.Publish(hub.Changed(changed...)...)
	return changed, err
}

func (s *Service) recordImageLocked(data []byte, hash string) ([]history.Entry, []history.Entry, error) {
	if len(data) == 0 {
		return nil, nil, imagestore.ErrEmpty
	}
	candidate := history.NewImage("", hash, s.now())
	if _, ok := s.hist.FindSame(candidate); ok {
		e, ev := s.recordLocked(candidate, nil)
		return e, ev, nil
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	name, err := s.images.Put(data)
	if err != nil {
		return nil, nil, err
	}
	candidate.File = name
	e, ev := s.recordLocked(candidate, func() { _ = s.images.Remove(name) })
	return e, ev, nil
}

// recordLocked touches the entry matching candidate, or inserts candidate.
// onDropped runs if the inserted entry was itself evicted.
func (s *Service) recordLocked(candidate history.Entry, onDropped func()) ([]history.Entry, []history.Entry) {
	if cur, ok := s.hist.FindSame(candidate); ok {
		e, err := s.hist.Touch(cur.ID, candidate.RecordedAt)
		if err != nil {
			return nil, nil
		}
		return []history.Entry{e}, nil
	}
	stored, ok, evicted := s.hist.Insert(candidate)
	if !ok {
		slog.Warn("history full of locked entries, new entry dropped",
			"kind", candidate.Kind, "capacity", s.hist.Capacity())
		if onDropped != nil {
			onDropped()
		}
		// The candidate is reported back in evicted; it never existed for
		// subscribers.
		evicted = removeID(evicted, candidate.ID)
		return nil, evicted
	}
	return []history.Entry{stored}, evicted
}

// List returns all entries, most recent first.
func (s *Service) List() []history.Entry { return s.hist.List() }

// Get returns the entry with the given ID.
func (s *Service) Get(id string) (history.Entry, error) { return s.hist.Get(id) }

// Clear removes every unlocked entry and its image file.
func (s *Service) Clear(ctx context.Context) ([]history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.hist.Clear()
	s.dropImagesLocked(removed)
	err := s.saveLocked(ctx)
	slog.Info("history cleared", "removed", len(removed), "kept", s.hist.Len())
	s.hub.Publish(hub.Event{Type: hub.EventCleared})
	return removed, err
}

// Delete removes the entry with the given ID. Unknown IDs, and locked
// entries without force, are a no-op reported as false.
func (s *Service) Delete(ctx context.Context, id string, force bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.hist.Delete(id, force)
	if !ok {
		return false, nil
	}
	s.dropImagesLocked([]history.Entry{e})
	err := s.saveLocked(ctx)
	hub.LogEntry("history entry deleted", e)
	s.hub.Publish(hub.Removed(e)...)
	return true, err
}

// ToggleLock flips the entry's lock and returns the updated entry.
func (s *Service) ToggleLock(ctx context.Context, id string) (history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.hist.ToggleLock(id)
	if err != nil {
		return history.Entry{}, err
	}
	err = s.saveLocked(ctx)
	hub.LogEntry("history entry lock toggled", e)
	s.hub.Publish(hub.Changed(e)...)
	return e, err
}

// CopyToClipboard makes the entry with the given ID the live clipboard
// content. It reports false, without an error, when the entry's image file
// is missing or unreadable.
func (s *Service) CopyToClipboard(_ context.Context, id string) (bool, error) {
	e, err := s.hist.Get(id)
	if err != nil {
		return false, err
	}
	if err := s.SetActive(e); err != nil {
		slog.Error("copy to clipboard failed", "id", id, "err", err)
		return false, nil
	}
	return true, nil
}

// SetActive writes e's payload to the system clipboard.
func (s *Service) SetActive(e history.Entry) error {
	switch e.Kind {
	case history.KindText:
		return s.backend.WriteText(e.Text)
	case history.KindImage:
		data, err := s.images.Read(e.File)
		if err != nil {
			return err
		}
		if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidImage, e.File, err)
		}
		return s.backend.WriteImage(data)
	default:
		return fmt.Errorf("unknown entry kind %q", e.Kind)
	}
}

// Image returns the raw bytes of a stored image.
func (s *Service) Image(name string) ([]byte, error) { return s.images.Read(name) }

// PruneOrphans deletes stored images that no entry references.
func (s *Service) PruneOrphans() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	referenced := make(map[string]struct{})
	for _, e := range s.hist.List() {
		if e.Kind == history.KindImage {
			referenced[e.File] = struct{}{}
		}
	}
	removed, err := s.images.Prune(referenced)
	if len(removed) > 0 {
		slog.Info("orphan images removed", "count", len(removed))
	}
	return removed, err
}

// Status returns a snapshot of the service state.
func (s *Service) Status() Status {
	entries := s.hist.List()
	locked := 0
	for _, e := range entries {
		if e.Locked {
			locked++
		}
	}
	return Status{
		Backend:     s.backend.Name(),
		Entries:     len(entries),
		Locked:      locked,
		Capacity:    s.hist.Capacity(),
		ImageDir:    s.images.Dir(),
		StartedAt:   s.started,
		Subscribers: s.hub.Subscribers(),
	}
}

// Flush persists the current history.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Service) saveLocked(ctx context.Context) error {
	if err := s.persist.Save(ctx, s.hist.List()); err != nil {
		slog.Error("history save failed", "err", err)
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

func (s *Service) dropImagesLocked(entries []history.Entry) {
	for _, e := range entries {
		if e.Kind != history.KindImage || e.File == "" {
			continue
		}
		if err := s.images.Remove(e.File); err != nil {
			slog.Warn("image removal failed", "file", e.File, "err", err)
		}
	}
}

func removeID(entries []history.Entry, id string) []history.Entry {
	out := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
