package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/keepclip/internal/clip"
	"go.klb.dev/keepclip/internal/history"
	"go.klb.dev/keepclip/internal/imagestore"
	"go.klb.dev/keepclip/internal/service"
)

type fakeReconciler struct {
	mu  sync.Mutex
	obs []service.Observation
}

func (f *fakeReconciler) Reconcile(_ context.Context, obs service.Observation) ([]history.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = append(f.obs, obs)
	return nil, nil
}

func (f *fakeReconciler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.obs)
}

func TestCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("text is reported once per change", func(t *testing.T) {
		b := clip.NewMemory()
		rec := &fakeReconciler{}
		p := New(b, rec, time.Millisecond)

		require.NoError(t, b.WriteText("hello"))
		_, err := p.Cycle(ctx)
		require.NoError(t, err)
		_, err = p.Cycle(ctx)
		require.NoError(t, err)

		require.Len(t, rec.obs, 1)
		assert.Equal(t, "hello", rec.obs[0].Text)
		assert.Empty(t, rec.obs[0].ImageHash)
	})

	t.Run("empty clipboard is ignored", func(t *testing.T) {
		rec := &fakeReconciler{}
		p := New(clip.NewMemory(), rec, 0)
		_, err := p.Cycle(ctx)
		require.NoError(t, err)
		assert.Empty(t, rec.obs)
		assert.Equal(t, DefaultInterval, p.interval)
	})

	t.Run("image hash tracks changes", func(t *testing.T) {
		b := clip.NewMemory()
		rec := &fakeReconciler{}
		p := New(b, rec, time.Millisecond)
		img := []byte("png-bytes")

		b.Set("", img)
		_, _ = p.Cycle(ctx)
		_, _ = p.Cycle(ctx)
		require.Len(t, rec.obs, 1)
		assert.Equal(t, imagestore.Hash(img), rec.obs[0].ImageHash)
		assert.Equal(t, img, rec.obs[0].Image)

		// Clearing the image resets the last hash, so the same image is
		// reported again when it comes back.
		b.Set("", nil)
		_, _ = p.Cycle(ctx)
		b.Set("", img)
		_, _ = p.Cycle(ctx)
		assert.Len(t, rec.obs, 2)
	})

	t.Run("text and image change together", func(t *testing.T) {
		b := clip.NewMemory()
		rec := &fakeReconciler{}
		p := New(b, rec, time.Millisecond)

		b.Set("caption", []byte("img"))
		_, _ = p.Cycle(ctx)
		require.Len(t, rec.obs, 1)
		assert.Equal(t, "caption", rec.obs[0].Text)
		assert.NotEmpty(t, rec.obs[0].ImageHash)
	})

	t.Run("zero-length image is skipped", func(t *testing.T) {
		b := clip.NewMemory()
		rec := &fakeReconciler{}
		p := New(b, rec, time.Millisecond)

		b.Set("", []byte{})
		_, _ = p.Cycle(ctx)
		assert.Empty(t, rec.obs)
	})
}

func TestRun(t *testing.T) {
	b := clip.NewMemory()
	rec := &fakeReconciler{}
	p := New(b, rec, time.Millisecond)
	require.NoError(t, b.WriteText("first"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, b.WriteText("second"))
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
