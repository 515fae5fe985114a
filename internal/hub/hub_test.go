package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/keepclip/internal/history"
)

type recorder struct {
	id     string
	events []Event
}

func (r *recorder) ID() string { return r.id }
func (r *recorder) Info() SubscriberInfo {
	return SubscriberInfo{ID: r.id, Source: "test", ConnectedAt: time.Unix(0, 0)}
}
func (r *recorder) Send(ev Event) { r.events = append(r.events, ev) }

func TestHubPublish(t *testing.T) {
	h := New()
	a := &recorder{id: "a"}
	b := &recorder{id: "b"}
	h.Register(a)
	h.Register(b)
	require.Len(t, h.Subscribers(), 2)

	e := history.NewText("hello", time.Now())
	h.Publish(Changed(e)...)

	for _, r := range []*recorder{a, b} {
		require.Len(t, r.events, 1)
		assert.Equal(t, EventChanged, r.events[0].Type)
		assert.Equal(t, e.ID, r.events[0].Entry.ID)
	}

	h.Unregister(b)
	h.Publish(Removed(e)...)
	h.Publish()
	assert.Len(t, a.events, 2)
	assert.Len(t, b.events, 1)
	assert.Equal(t, EventRemoved, a.events[1].Type)
}
