// Package poller watches the system clipboard on a fixed delay and feeds
// changes to a Reconciler.
package poller

import (
	"context"
	"log/slog"
	"time"

	"go.klb.dev/keepclip/internal/clip"
	"go.klb.dev/keepclip/internal/history"
	"go.klb.dev/keepclip/internal/imagestore"
	"go.klb.dev/keepclip/internal/service"
)

// DefaultInterval is the delay between the end of one poll and the next.
const DefaultInterval = time.Second

// Reconciler records clipboard changes.
type Reconciler interface {
	Reconcile(ctx context.Context, obs service.Observation) ([]history.Entry, error)
}

// Poller holds the last-observed clipboard state between cycles.
type Poller struct {
	backend  clip.Backend
	rec      Reconciler
	interval time.Duration

	lastText      string
	lastImageHash string
}

// New returns a Poller. An interval <= 0 selects DefaultInterval.
func New(backend clip.Backend, rec Reconciler, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{backend: backend, rec: rec, interval: interval}
}

// Run polls until ctx is cancelled. The next cycle is scheduled only after
// the current one has finished.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("clipboard poller started", "backend", p.backend.Name(), "interval", p.interval)

	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("clipboard poller stopped")
			return
		case <-t.C:
			if _, err := p.Cycle(ctx); err != nil {
				slog.Error("poll cycle failed", "err", err)
			}
			t.Reset(p.interval)
		}
	}
}

// Cycle runs one poll: it reads the clipboard, works out what changed since
// the previous cycle, and hands the changes to the reconciler.
func (p *Poller) Cycle(ctx context.Context) ([]history.Entry, error) {
	var obs service.Observation

	text, err := p.backend.ReadText()
	if err != nil {
		slog.Warn("clipboard text read failed", "err", err)
	} else if text != "" && text != p.lastText {
		p.lastText = text
		obs.Text = text
	}

	img, err := p.backend.ReadImage()
	switch {
	case err != nil:
		slog.Warn("clipboard image read failed", "err", err)
	case img == nil:
		p.lastImageHash = ""
	case len(img) == 0:
		slog.Error("clipboard image is empty, skipped")
	default:
		if hash := imagestore.Hash(img); hash != p.lastImageHash {
			p.lastImageHash = hash
			obs.Image = img
			obs.ImageHash = hash
		}
	}

	if obs.Text == "" && obs.ImageHash == "" {
		return nil, nil
	}
	return p.rec.Reconcile(ctx, obs)
}
