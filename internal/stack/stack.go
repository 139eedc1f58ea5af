// Package stack implements the Paste Stack: the user selects N clips and
// pastes them back one per trigger, in selection order.
//
// A Coordinator owns an immutable snapshot of the selection and a cursor
// that only moves forward. Each Advance hands the entry under the cursor to
// an Executor and reports progress to an Indicator. After the last paste the
// stack stays visible for a grace delay and then resets itself; Skip moves
// the cursor without pasting and resets immediately when it runs out.
//
// Invalid calls (Advance or Skip on an inactive or exhausted stack) are not
// errors: they reset the stack and return nothing.
package stack

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.klb.dev/clipstack/internal/message"
)

// DefaultGraceDelay is how long a completed stack stays visible.
const DefaultGraceDelay = 500 * time.Millisecond

// Entry is one clip in a stack: its history ID, a short label for display
// and the representations to write when it is pasted. Entries are copied on
// activation, so history edits do not change a running stack.
type Entry struct {
	ID    string         `json:"id"`
	Label string         `json:"label,omitempty"`
	Items []message.Item `json:"items"`
}

func (e Entry) clone() Entry {
	e.Items = slices.Clone(e.Items)
	for i := range e.Items {
		e.Items[i].Data = slices.Clone(e.Items[i].Data)
	}
	return e
}

// Executor pastes one entry. It is called once per Advance, with the owner
// lock held, and its outcome is not observed: failures are the executor's
// to log.
type Executor interface {
	Paste(Entry)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(Entry)

func (f ExecutorFunc) Paste(e Entry) { f(e) }

// Indicator renders stack progress.
type Indicator interface {
	Show(total int)
	UpdateProgress(current, total int)
	Hide()
}

// State is a point-in-time copy of the coordinator.
type State struct {
	Active    bool   `json:"active"`
	Cursor    int    `json:"cursor"`
	Total     int    `json:"total"`
	Remaining int    `json:"remaining"`
	Current   *Entry `json:"current,omitempty"`
}

// timer is the part of *time.Timer the coordinator needs.
type timer interface {
	Stop() bool
}

type afterFunc func(time.Duration, func()) timer

func realAfterFunc(d time.Duration, f func()) timer { return time.AfterFunc(d, f) }

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithIndicator sets the progress indicator. The default discards progress.
func WithIndicator(ind Indicator) Option {
	return func(c *Coordinator) {
		if ind != nil {
			c.ind = ind
		}
	}
}

// WithGraceDelay overrides DefaultGraceDelay. Negative values are treated as zero.
func WithGraceDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		c.grace = max(d, 0)
	}
}

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// Coordinator is the Paste Stack state machine. All methods are safe for
// concurrent use; calls are serialised by a single owner lock.
type Coordinator struct {
	mu sync.Mutex

	exec  Executor
	ind   Indicator
	grace time.Duration
	after afterFunc
	log   *slog.Logger

	active bool
	items  []Entry
	cursor int

	// token identifies the current scheduled deactivation; any state change
	// bumps it so a stale timer callback becomes a no-op.
	token   uint64
	pending timer
}

// New returns an inactive Coordinator that pastes through exec.
func New(exec Executor, opts ...Option) *Coordinator {
	c := &Coordinator{
		exec:  exec,
		ind:   nopIndicator{},
		grace: DefaultGraceDelay,
		after: realAfterFunc,
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Activate starts a stack over selection, replacing any current stack. An
// empty selection is ignored.
func (c *Coordinator) Activate(selection []Entry) {
	if len(selection) == 0 {
		return
	}
	items := make([]Entry, len(selection))
	for i, e := range selection {
		items[i] = e.clone()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPendingLocked()
	replaced := c.active
	c.items = items
	c.cursor = 0
	c.active = true
	c.log.Info("paste stack activated", "items", len(items), "replaced", replaced)
	c.ind.Show(len(items))
}

// Advance pastes the entry under the cursor and moves past it. On an
// inactive or exhausted stack it deactivates and returns false.
func (c *Coordinator) Advance() (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.cursor >= len(c.items) {
		c.deactivateLocked()
		return Entry{}, false
	}

	e := c.items[c.cursor]
	c.cursor++
	c.exec.Paste(e)
	c.ind.UpdateProgress(c.cursor, len(c.items))
	c.log.Debug("paste stack advanced", "id", e.ID, "cursor", c.cursor, "total", len(c.items))

	if c.cursor == len(c.items) {
		c.scheduleDeactivateLocked()
	}
	return e, true
}

// Skip moves past the entry under the cursor without pasting it. On an
// inactive or exhausted stack, or when the skip exhausts it, the stack
// deactivates immediately.
func (c *Coordinator) Skip() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.cursor >= len(c.items) {
		c.deactivateLocked()
		return
	}

	c.cursor++
	c.ind.UpdateProgress(c.cursor, len(c.items))
	c.log.Debug("paste stack skipped", "cursor", c.cursor, "total", len(c.items))

	if c.cursor == len(c.items) {
		c.deactivateLocked()
	}
}

// Deactivate resets the stack. It is idempotent; the indicator is hidden
// only when an active stack goes away.
func (c *Coordinator) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deactivateLocked()
}

// RemainingCount returns how many entries are still to be pasted.
func (c *Coordinator) RemainingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return max(0, len(c.items)-c.cursor)
}

// TotalCount returns the number of entries in the current stack.
func (c *Coordinator) TotalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Active reports whether a stack is in progress, including the grace delay
// after the last paste.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// CurrentEntry returns the entry the next Advance would paste.
func (c *Coordinator) CurrentEntry() (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked()
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Active:    c.active,
		Cursor:    c.cursor,
		Total:     len(c.items),
		Remaining: max(0, len(c.items)-c.cursor),
	}
	if e, ok := c.currentLocked(); ok {
		st.Current = &e
	}
	return st
}

func (c *Coordinator) currentLocked() (Entry, bool) {
	if !c.active || c.cursor >= len(c.items) {
		return Entry{}, false
	}
	return c.items[c.cursor], true
}

func (c *Coordinator) deactivateLocked() {
	c.cancelPendingLocked()
	wasActive := c.active
	c.active = false
	c.items = nil
	c.cursor = 0
	if wasActive {
		c.log.Info("paste stack deactivated")
		c.ind.Hide()
	}
}

func (c *Coordinator) scheduleDeactivateLocked() {
	c.cancelPendingLocked()
	tok := c.token
	c.pending = c.after(c.grace, func() { c.expire(tok) })
}

// cancelPendingLocked stops the pending timer and invalidates its token, so
// a callback already past Stop still does nothing.
func (c *Coordinator) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.token++
}

func (c *Coordinator) expire(tok uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tok != c.token {
		return
	}
	c.pending = nil
	c.deactivateLocked()
}

type nopIndicator struct{}

func (nopIndicator) Show(int)               {}
func (nopIndicator) UpdateProgress(int, int) {}
func (nopIndicator) Hide()                  {}
