package hub

import "log/slog"

// Chan is a Subscriber backed by a buffered channel. Events that do not fit
// are dropped with a warning rather than blocking the publisher.
type Chan struct {
	id    string
	kinds []Kind
	ch    chan Event
}

// NewChan returns a channel subscriber with room for buf pending events.
func NewChan(id string, kinds []Kind, buf int) *Chan {
	if buf <= 0 {
		buf = 16
	}
	return &Chan{id: id, kinds: kinds, ch: make(chan Event, buf)}
}

func (c *Chan) ID() string    { return c.id }
func (c *Chan) Kinds() []Kind { return c.kinds }

// Events returns the receive side of the subscription.
func (c *Chan) Events() <-chan Event { return c.ch }

func (c *Chan) Send(ev Event) {
	select {
	case c.ch <- ev:
	default:
		slog.Warn("subscriber channel full, dropping", "id", c.id, "kind", ev.Kind)
	}
}
