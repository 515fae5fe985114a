// Package hub implements the history event broker. It is transport-agnostic:
// subscribers register, receive events via Send, and the service publishes
// one event per changed entry.
package hub

import (
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/keepclip/internal/history"
)

// EventType names what happened to the entry carried by an Event.
type EventType string

const (
	// EventChanged is historyChanged: an entry was created, refreshed, or
	// had its lock toggled.
	EventChanged EventType = "changed"
	// EventRemoved reports an entry deleted by the user or evicted.
	EventRemoved EventType = "removed"
	// EventCleared reports a bulk clear; Entry is zero.
	EventCleared EventType = "cleared"
)

// Event is a history update delivered to a subscriber.
type Event struct {
	Type  EventType
	Entry history.Entry
}

// SubscriberInfo describes a registered subscriber, for status output.
type SubscriberInfo struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Addr        string    `json:"addr"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen,omitempty"`
}

// Subscriber is anything that can receive history events from the hub.
type Subscriber interface {
	ID() string
	Info() SubscriberInfo
	// Send delivers an event to the subscriber. Must be non-blocking.
	Send(Event)
}

// Hub fans history events out to all registered subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]Subscriber
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{subs: make(map[string]Subscriber)}
}

// Register adds a subscriber.
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	h.subs[s.ID()] = s
	total := len(h.subs)
	h.mu.Unlock()

	info := s.Info()
	slog.Info("subscriber registered",
		"subscriber", s.ID(),
		"source", info.Source,
		"total", total,
	)
}

// Unregister removes a subscriber from the hub.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	delete(h.subs, s.ID())
	total := len(h.subs)
	h.mu.Unlock()

	slog.Info("subscriber unregistered",
		"subscriber", s.ID(),
		"source", s.Info().Source,
		"total", total,
	)
}

// Publish delivers each event, in order, to every subscriber.
func (h *Hub) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		for _, ev := range events {
			s.Send(ev)
		}
	}
}

// Subscribers returns a snapshot of all current subscriber metadata.
func (h *Hub) Subscribers() []SubscriberInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]SubscriberInfo, 0, len(h.subs))
	for _, s := range h.subs {
		out = append(out, s.Info())
	}
	return out
}

// Changed builds one EventChanged per entry.
func Changed(entries ...history.Entry) []Event {
	out := make([]Event, len(entries))
	for i, e := range entries {
		out[i] = Event{Type: EventChanged, Entry: e}
	}
	return out
}

// Removed builds one EventRemoved per entry.
func Removed(entries ...history.Entry) []Event {
	out := make([]Event, len(entries))
	for i, e := range entries {
		out[i] = Event{Type: EventRemoved, Entry: e}
	}
	return out
}
