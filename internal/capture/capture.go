// Package capture watches the system clipboard and records every copy in
// the history. It is the only writer of the clipboard as well, so it can
// tell its own writes apart from the user's.
package capture

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.klb.dev/clipstack/internal/clip"
	"go.klb.dev/clipstack/internal/content"
	"go.klb.dev/clipstack/internal/history"
	"go.klb.dev/clipstack/internal/linkmeta"
	"go.klb.dev/clipstack/internal/message"
)

// Store is the part of the history the monitor writes to.
type Store interface {
	Add(c content.Content, source string) (history.Item, bool)
	UpdateLinkMetadata(id, ogTitle string, ogImage, favicon []byte) (history.Item, error)
	SetOCRText(id, text string) (history.Item, error)
}

// LinkFetcher fetches link previews.
type LinkFetcher interface {
	Fetch(ctx context.Context, rawURL string) (linkmeta.Metadata, error)
}

// Recognizer extracts text from images.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte) (string, error)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSource labels captured clips; the default is the backend name.
func WithSource(s string) Option {
	return func(m *Monitor) { m.source = s }
}

// WithIgnoreKinds drops clips of the given kinds instead of storing them.
func WithIgnoreKinds(kinds ...content.Kind) Option {
	return func(m *Monitor) { m.ignore = append(m.ignore, kinds...) }
}

// WithLinkFetcher enables link preview enrichment.
func WithLinkFetcher(f LinkFetcher) Option {
	return func(m *Monitor) { m.links = f }
}

// WithRecognizer enables OCR of image clips.
func WithRecognizer(r Recognizer) Option {
	return func(m *Monitor) { m.ocr = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.log = l
		}
	}
}

// Monitor owns the clipboard backend.
type Monitor struct {
	backend clip.Backend
	store   Store
	source  string
	ignore  []content.Kind
	links   LinkFetcher
	ocr     Recognizer
	log     *slog.Logger

	mu          sync.Mutex
	lastItems   []message.Item
	lastCapture time.Time
	captured    int

	enrich sync.WaitGroup
}

// New returns a monitor for backend that records into store. Run starts it.
func New(backend clip.Backend, store Store, opts ...Option) *Monitor {
	m := &Monitor{
		backend: backend,
		store:   store,
		source:  backend.Name(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Backend returns the backend name.
func (m *Monitor) Backend() string { return m.backend.Name() }

// Run handles clipboard changes until ctx is done. Enrichment still in
// flight is waited for before it returns.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("clipboard monitor started", "backend", m.backend.Name(), "source", m.source)
	defer m.enrich.Wait()

	changes := m.backend.Watch()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("clipboard monitor stopped")
			return nil
		case <-changes:
			items, err := m.backend.Read()
			if err != nil {
				m.log.Error("clipboard read failed", "err", err)
				continue
			}
			m.Capture(ctx, items)
		}
	}
}

// Capture records items as if they had just been copied. It returns the
// stored item, or false when the items were ignored: empty, unchanged since
// the last capture or write, unclassifiable or of an ignored kind.
func (m *Monitor) Capture(ctx context.Context, items []message.Item) (history.Item, bool) {
	if len(items) == 0 {
		return history.Item{}, false
	}
	m.mu.Lock()
	if message.Equal(items, m.lastItems) {
		m.mu.Unlock()
		return history.Item{}, false
	}
	m.lastItems = items
	m.mu.Unlock()

	c, ok := content.Classify(items)
	if !ok {
		m.log.Debug("clipboard change ignored, nothing to keep", "types", message.Types(items))
		return history.Item{}, false
	}
	if slices.Contains(m.ignore, c.Kind) {
		m.log.Debug("clipboard change ignored by kind", "kind", c.Kind)
		return history.Item{}, false
	}

	it, isNew := m.store.Add(c, m.source)

	m.mu.Lock()
	m.lastCapture = time.Now()
	m.captured++
	m.mu.Unlock()

	if isNew {
		m.startEnrichment(ctx, it)
	}
	return it, true
}

// Write puts items on the clipboard and remembers them so the resulting
// change is not captured again. Backends may store fewer representations
// than given, so what is remembered is what reads back.
func (m *Monitor) Write(items []message.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.backend.Write(items); err != nil {
		return err
	}
	m.lastItems = items
	if back, err := m.backend.Read(); err == nil && len(back) > 0 {
		m.lastItems = back
	}
	m.log.Debug("clipboard written", "items", len(items), "types", message.Types(items))
	return nil
}

// Stats is a snapshot of monitor activity.
type Stats struct {
	Backend     string    `json:"backend"`
	Captured    int       `json:"captured"`
	LastCapture time.Time `json:"last_capture,omitzero"`
}

// Stats returns the current activity counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Backend: m.backend.Name(), Captured: m.captured, LastCapture: m.lastCapture}
}

// Wait blocks until enrichment started so far has finished.
func (m *Monitor) Wait() { m.enrich.Wait() }

func (m *Monitor) startEnrichment(ctx context.Context, it history.Item) {
	switch {
	case it.Content.Kind == content.KindLink && m.links != nil:
		m.enrich.Go(func() { m.enrichLink(ctx, it) })
	case it.Content.Kind == content.KindImage && m.ocr != nil:
		m.enrich.Go(func() { m.enrichImage(ctx, it) })
	}
}

func (m *Monitor) enrichLink(ctx context.Context, it history.Item) {
	u, ok := it.Content.URL()
	if !ok {
		return
	}
	md, err := m.links.Fetch(ctx, u.String())
	if err != nil {
		m.log.Debug("link preview failed", "id", it.ID, "err", err)
		return
	}
	if !md.HasContent() {
		return
	}
	if _, err := m.store.UpdateLinkMetadata(it.ID, md.Title, md.Image, md.Favicon); err != nil {
		// The clip may have been deleted meanwhile.
		m.log.Debug("link preview not stored", "id", it.ID, "err", err)
	}
}

func (m *Monitor) enrichImage(ctx context.Context, it history.Item) {
	text, err := m.ocr.Recognize(ctx, it.Content.Active())
	if err != nil {
		m.log.Warn("ocr failed", "id", it.ID, "err", err)
		return
	}
	if text == "" {
		return
	}
	if _, err := m.store.SetOCRText(it.ID, text); err != nil {
		m.log.Debug("ocr text not stored", "id", it.ID, "err", err)
	}
}
