// Package hub implements the event broker between the daemon's components
// and whoever observes them (CLI watchers, the log indicator).
// Subscribers register, receive events via Send, and publishers fan out
// through Publish. Components never reach into a subscriber's state.
package hub

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Kind identifies an event.
type Kind string

const (
	KindClipAdded   Kind = "clip.added"
	KindClipUpdated Kind = "clip.updated"
	KindClipRemoved Kind = "clip.removed"

	KindStackShown    Kind = "stack.shown"
	KindStackProgress Kind = "stack.progress"
	KindStackHidden   Kind = "stack.hidden"
)

// IsStack reports whether k is a paste stack event.
func (k Kind) IsStack() bool { return strings.HasPrefix(string(k), "stack.") }

// Event is a change delivered to subscribers.
type Event struct {
	Kind   Kind      `json:"kind"`
	At     time.Time `json:"at"`
	Source string    `json:"source,omitempty"`

	// clip.* events
	ClipID      string `json:"clip_id,omitempty"`
	ContentKind string `json:"content_kind,omitempty"`
	Preview     string `json:"preview,omitempty"`

	// stack.* events
	Current int `json:"current,omitempty"`
	Total   int `json:"total,omitempty"`
}

// Subscriber is anything that can receive events from the hub.
type Subscriber interface {
	ID() string
	// Kinds lists the event kinds wanted; empty means all.
	Kinds() []Kind
	// Send delivers an event to the subscriber. Must be non-blocking.
	Send(Event)
}

// SubscriberInfo describes a registered subscriber for status output.
type SubscriberInfo struct {
	ID    string    `json:"id"`
	Kinds []Kind    `json:"kinds,omitempty"`
	Since time.Time `json:"since"`
}

type registration struct {
	sub   Subscriber
	since time.Time
}

// Hub routes events between publishers and all registered subscribers.
type Hub struct {
	// pub orders deliveries: a replay never interleaves with a Publish.
	pub sync.Mutex

	mu          sync.RWMutex
	subs        map[string]registration
	latestStack *Event
	now         func() time.Time
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{
		subs: make(map[string]registration),
		now:  time.Now,
	}
}

// Register adds a subscriber and immediately delivers the latest stack event
// if it wants stack events, so a late watcher sees a stack already in progress.
// Registering an ID twice replaces the earlier subscriber.
func (h *Hub) Register(s Subscriber) {
	h.pub.Lock()
	defer h.pub.Unlock()

	h.mu.Lock()
	h.subs[s.ID()] = registration{sub: s, since: h.now()}
	var replay *Event
	if h.latestStack != nil && h.latestStack.Kind != KindStackHidden && accepts(s.Kinds(), h.latestStack.Kind) {
		ev := *h.latestStack
		replay = &ev
	}
	total := len(h.subs)
	h.mu.Unlock()

	slog.Debug("subscriber registered", "id", s.ID(), "kinds", s.Kinds(), "total", total)

	if replay != nil {
		s.Send(*replay)
	}
}

// Unregister removes a subscriber from the hub.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	if cur, ok := h.subs[s.ID()]; ok && cur.sub == s {
		delete(h.subs, s.ID())
	}
	total := len(h.subs)
	h.mu.Unlock()

	slog.Debug("subscriber unregistered", "id", s.ID(), "total", total)
}

// Publish stamps ev and fans it out to every subscriber that accepts its kind.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = h.now()
	}

	h.pub.Lock()
	defer h.pub.Unlock()

	h.mu.Lock()
	if ev.Kind.IsStack() {
		latest := ev
		h.latestStack = &latest
	}
	targets := make([]Subscriber, 0, len(h.subs))
	for _, r := range h.subs {
		if accepts(r.sub.Kinds(), ev.Kind) {
			targets = append(targets, r.sub)
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.Send(ev)
	}
}

// Subscribers returns a snapshot of registered subscribers sorted by ID.
func (h *Hub) Subscribers() []SubscriberInfo {
	h.mu.RLock()
	out := make([]SubscriberInfo, 0, len(h.subs))
	for id, r := range h.subs {
		out = append(out, SubscriberInfo{ID: id, Kinds: r.sub.Kinds(), Since: r.since})
	}
	h.mu.RUnlock()
	slices.SortFunc(out, func(a, b SubscriberInfo) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// accepts reports whether a subscriber that wants kinds should get k.
// An empty kinds slice accepts everything; a kind ending in ".*" matches a
// whole family ("stack.*").
func accepts(kinds []Kind, k Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if want == k {
			return true
		}
		if prefix, ok := strings.CutSuffix(string(want), "*"); ok && strings.HasPrefix(string(k), prefix) {
			return true
		}
	}
	return false
}
