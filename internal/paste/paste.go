// Package paste writes history items back to the clipboard and, when
// pasting, sends the paste keystroke to the frontmost application.
//
// All clipboard writes and keystrokes go through one worker goroutine, so
// pastes land in the order they were requested even when the caller does
// not wait for them.
package paste

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.klb.dev/clipstack/internal/history"
	"go.klb.dev/clipstack/internal/message"
	"go.klb.dev/clipstack/internal/stack"
)

// DefaultKeystrokeDelay lets the clipboard settle before the keystroke.
const DefaultKeystrokeDelay = 50 * time.Millisecond

const queueSize = 64

var (
	ErrKeystrokeUnsupported = errors.New("paste keystroke not supported in this build")
	ErrNothingToPaste       = errors.New("nothing to paste")
	ErrClosed               = errors.New("paste service closed")
)

// Store is the part of the history the service needs.
type Store interface {
	Get(id string) (history.Item, error)
	MarkUsed(id string) (history.Item, error)
}

// Writer puts items on the clipboard.
type Writer interface {
	Write(items []message.Item) error
}

// Keystroker sends the platform paste shortcut.
type Keystroker interface {
	SendPaste() error
}

// KeystrokeFunc adapts a function to Keystroker.
type KeystrokeFunc func() error

func (f KeystrokeFunc) SendPaste() error { return f() }

// Option configures a Service.
type Option func(*Service)

// WithKeystroker replaces the platform keystroke sender.
func WithKeystroker(k Keystroker) Option {
	return func(s *Service) {
		if k != nil {
			s.keys = k
		}
	}
}

// WithKeystrokeDelay overrides DefaultKeystrokeDelay.
func WithKeystrokeDelay(d time.Duration) Option {
	return func(s *Service) { s.delay = max(d, 0) }
}

// WithPlainText makes plain text the default for stack pastes.
func WithPlainText(plain bool) Option {
	return func(s *Service) { s.plain = plain }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

type job struct {
	label     string
	items     []message.Item
	ids       []string
	keystroke bool
	result    chan error // nil when nobody waits
}

// Service pastes history items. Close stops its worker.
type Service struct {
	store Store
	w     Writer
	keys  Keystroker
	delay time.Duration
	plain bool
	log   *slog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	done   chan struct{}
}

// New starts a service writing through w.
func New(store Store, w Writer, opts ...Option) *Service {
	s := &Service{
		store: store,
		w:     w,
		keys:  platformKeystroker(),
		delay: DefaultKeystrokeDelay,
		log:   slog.Default(),
		jobs:  make(chan job, queueSize),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.run()
	return s
}

// PlainText reports the default paste mode.
func (s *Service) PlainText() bool { return s.plain }

// Paste writes the item to the clipboard, sends the paste keystroke and
// marks the item used.
func (s *Service) Paste(ctx context.Context, id string, plain bool) error {
	it, err := s.store.Get(id)
	if err != nil {
		return err
	}
	return s.do(ctx, job{label: id, items: it.Content.Representations(plain), ids: []string{id}, keystroke: true})
}

// Copy writes the item to the clipboard without pasting it.
func (s *Service) Copy(ctx context.Context, id string, plain bool) error {
	it, err := s.store.Get(id)
	if err != nil {
		return err
	}
	return s.do(ctx, job{label: id, items: it.Content.Representations(plain), ids: []string{id}})
}

// PasteMultiple joins the text of the given items with sep ("\n" when
// empty) and pastes it as plain text. Items without text are skipped.
func (s *Service) PasteMultiple(ctx context.Context, ids []string, sep string) error {
	j, err := s.joined(ids, sep)
	if err != nil {
		return err
	}
	j.keystroke = true
	return s.do(ctx, j)
}

// CopyMultiple is PasteMultiple without the keystroke.
func (s *Service) CopyMultiple(ctx context.Context, ids []string, sep string) error {
	j, err := s.joined(ids, sep)
	if err != nil {
		return err
	}
	return s.do(ctx, j)
}

func (s *Service) joined(ids []string, sep string) (job, error) {
	if sep == "" {
		sep = "\n"
	}
	var parts []string
	for _, id := range ids {
		it, err := s.store.Get(id)
		if err != nil {
			return job{}, err
		}
		if t := it.Content.Text(); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return job{}, ErrNothingToPaste
	}
	items := []message.Item{message.NewTextItem(strings.Join(parts, sep))}
	return job{label: fmt.Sprintf("%d items", len(parts)), items: items, ids: ids}, nil
}

// Entries builds stack entries for ids, in order. plain selects plain-text
// representations.
func (s *Service) Entries(ids []string, plain bool) ([]stack.Entry, error) {
	out := make([]stack.Entry, 0, len(ids))
	for _, id := range ids {
		it, err := s.store.Get(id)
		if err != nil {
			return nil, err
		}
		items := it.Content.Representations(plain)
		if len(items) == 0 {
			return nil, fmt.Errorf("clip %s: %w", id, ErrNothingToPaste)
		}
		out = append(out, stack.Entry{ID: id, Label: it.Preview(), Items: items})
	}
	return out, nil
}

// StackExecutor returns a stack.Executor that queues each entry for
// pasting without waiting for it. Failures are logged.
func (s *Service) StackExecutor() stack.Executor {
	return stack.ExecutorFunc(func(e stack.Entry) {
		s.enqueue(job{label: e.ID, items: e.Items, ids: []string{e.ID}, keystroke: true})
	})
}

// Close stops the worker after the queued jobs have run.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()
	<-s.done
}

func (s *Service) do(ctx context.Context, j job) error {
	j.result = make(chan error, 1)
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case s.jobs <- j:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) enqueue(j job) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Warn("paste service closed, dropping paste", "clip", j.label)
		return
	}
	select {
	case s.jobs <- j:
	default:
		s.log.Warn("paste queue full, dropping paste", "clip", j.label)
	}
}

func (s *Service) run() {
	defer close(s.done)
	for j := range s.jobs {
		err := s.exec(j)
		if err != nil {
			s.log.Error("paste failed", "clip", j.label, "err", err)
		}
		if j.result != nil {
			j.result <- err
		}
	}
}

func (s *Service) exec(j job) error {
	if len(j.items) == 0 {
		return ErrNothingToPaste
	}
	if err := s.w.Write(j.items); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	for _, id := range j.ids {
		if _, err := s.store.MarkUsed(id); err != nil {
			s.log.Debug("mark used failed", "id", id, "err", err)
		}
	}
	if !j.keystroke {
		s.log.Info("clip copied", "clip", j.label, "types", message.Types(j.items))
		return nil
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if err := s.keys.SendPaste(); err != nil {
		return fmt.Errorf("paste keystroke: %w", err)
	}
	s.log.Info("clip pasted", "clip", j.label, "types", message.Types(j.items))
	return nil
}
