// Package history keeps the clip history: deduplicated items, newest first,
// with pinning, usage tracking, search and collections. Every mutation is
// appended to a journal so the history survives restarts.
package history

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.klb.dev/clipstack/internal/content"
	"go.klb.dev/clipstack/internal/hub"
	"go.klb.dev/clipstack/internal/journal"
)

// DefaultMaxItems is the history size used when none is configured.
const DefaultMaxItems = 500

var (
	ErrNotFound          = errors.New("not found")
	ErrCollectionExists  = errors.New("collection already exists")
	ErrSmartCollection   = errors.New("smart collections cannot be modified")
	ErrNotEditable       = errors.New("clip kind is not editable")
	ErrInvalidCollection = errors.New("collection name is empty")
)

// Item is one entry in the history.
type Item struct {
	ID      string          `json:"id"`
	Content content.Content `json:"content"`
	Source  string          `json:"source,omitempty"`

	// CreatedAt is when the content was first seen; CopiedAt is refreshed
	// every time it is copied again and orders the history.
	CreatedAt  time.Time `json:"created_at"`
	CopiedAt   time.Time `json:"copied_at"`
	LastUsedAt time.Time `json:"last_used_at,omitzero"`
	UseCount   int       `json:"use_count,omitempty"`

	Pinned      bool     `json:"pinned,omitempty"`
	Collections []string `json:"collections,omitempty"`
	OCRText     string   `json:"ocr_text,omitempty"`
}

// clone copies the parts of an item the store mutates in place. Byte slices
// are always replaced, never written to, so they are shared.
func (it Item) clone() Item {
	it.Collections = slices.Clone(it.Collections)
	if it.Content.Metadata != nil {
		m := make(map[string]string, len(it.Content.Metadata))
		for k, v := range it.Content.Metadata {
			m[k] = v
		}
		it.Content.Metadata = m
	}
	return it
}

// Preview is a short single-line description for logs and events.
func (it Item) Preview() string { return it.Content.Preview(80) }

// Publisher receives change events.
type Publisher interface {
	Publish(hub.Event)
}

// Option configures a Store.
type Option func(*Store)

// WithMaxItems caps the number of unpinned items kept. Zero or less means
// unlimited.
func WithMaxItems(n int) Option {
	return func(s *Store) { s.maxItems = n }
}

// WithPublisher sets where clip.* events go.
func WithPublisher(p Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.pub = p
		}
	}
}

// WithJournal persists mutations to j. The journal is not replayed; use Open
// for that.
func WithJournal(j *journal.Journal) Option {
	return func(s *Store) { s.j = j }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store is the clip history. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	items       map[string]*Item
	byPrint     map[string]string // fingerprint -> id
	collections map[string]*Collection
	maxItems    int
	last        time.Time

	j   *journal.Journal
	pub Publisher
	log *slog.Logger
	now func() time.Time
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		items:       make(map[string]*Item),
		byPrint:     make(map[string]string),
		collections: make(map[string]*Collection),
		maxItems:    DefaultMaxItems,
		pub:         nopPublisher{},
		log:         slog.Default(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	for _, c := range SmartCollections() {
		s.collections[c.ID] = &c
	}
	return s
}

// Add records content copied from source. Content already in the history
// moves to the top instead of being duplicated. It returns the stored item
// and whether it was new.
func (s *Store) Add(c content.Content, source string) (Item, bool) {
	fp := c.Fingerprint()

	s.mu.Lock()
	now := s.stampLocked()
	var (
		it    *Item
		isNew bool
	)
	if id, ok := s.byPrint[fp]; ok {
		it = s.items[id]
		it.CopiedAt = now
		if source != "" {
			it.Source = source
		}
	} else {
		it = &Item{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Content:   c,
			Source:    source,
			CreatedAt: now,
			CopiedAt:  now,
		}
		s.items[it.ID] = it
		s.byPrint[fp] = it.ID
		isNew = true
	}
	s.persistLocked(record{Op: opPut, Item: it})
	trimmed := s.trimLocked()
	out := it.clone()
	s.mu.Unlock()

	s.log.Info("clip stored", "id", out.ID, "kind", out.Content.Kind, "source", source, "new", isNew)
	s.log.Debug("clip stored", "id", out.ID, "preview", logPreview(out.Content))
	s.publish(hub.KindClipAdded, out)
	for _, t := range trimmed {
		s.publish(hub.KindClipRemoved, t)
	}
	return out, isNew
}

// Get returns the item with id.
func (s *Store) Get(id string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return Item{}, fmt.Errorf("clip %s: %w", id, ErrNotFound)
	}
	return it.clone(), nil
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Query selects items for List. Zero values match everything.
type Query struct {
	Text       string         `json:"text,omitempty"`
	Kinds      []content.Kind `json:"kinds,omitempty"`
	Collection string         `json:"collection,omitempty"`
	PinnedOnly bool           `json:"pinned_only,omitempty"`
	Limit      int            `json:"limit,omitempty"`
}

// List returns matching items, newest first. An unknown collection is
// ErrNotFound.
func (s *Store) List(q Query) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var coll *Collection
	if q.Collection != "" {
		c, ok := s.lookupCollectionLocked(q.Collection)
		if !ok {
			return nil, fmt.Errorf("collection %s: %w", q.Collection, ErrNotFound)
		}
		coll = c
	}
	needle := strings.ToLower(strings.TrimSpace(q.Text))

	var out []Item
	for _, it := range s.items {
		if q.PinnedOnly && !it.Pinned {
			continue
		}
		if len(q.Kinds) > 0 && !slices.Contains(q.Kinds, it.Content.Kind) {
			continue
		}
		if coll != nil && !coll.contains(it) {
			continue
		}
		if needle != "" && !matches(it, needle) {
			continue
		}
		out = append(out, it.clone())
	}
	sortNewestFirst(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Search is List with a text filter.
func (s *Store) Search(text string, limit int) []Item {
	out, _ := s.List(Query{Text: text, Limit: limit})
	return out
}

// matches is a case-insensitive substring match over everything a user
// would recognise a clip by. needle must already be lower case.
func matches(it *Item, needle string) bool {
	fields := []string{
		it.Content.Text(),
		it.Content.LinkTitle(),
		it.Content.FileName(),
		it.OCRText,
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// SetPinned pins or unpins an item. Pinned items are never trimmed and
// survive Clear(true).
func (s *Store) SetPinned(id string, pinned bool) (Item, error) {
	return s.update(id, func(it *Item) (bool, error) {
		if it.Pinned == pinned {
			return false, nil
		}
		it.Pinned = pinned
		return true, nil
	})
}

// MarkUsed records that an item was pasted.
func (s *Store) MarkUsed(id string) (Item, error) {
	return s.update(id, func(it *Item) (bool, error) {
		it.LastUsedAt = s.now()
		it.UseCount++
		return true, nil
	})
}

// SetOCRText stores recognised text for an image clip.
func (s *Store) SetOCRText(id, text string) (Item, error) {
	text = strings.TrimSpace(text)
	return s.update(id, func(it *Item) (bool, error) {
		if it.OCRText == text {
			return false, nil
		}
		it.OCRText = text
		return true, nil
	})
}

// UpdateLinkMetadata merges fetched link metadata into a link clip.
func (s *Store) UpdateLinkMetadata(id, ogTitle string, ogImage, favicon []byte) (Item, error) {
	return s.update(id, func(it *Item) (bool, error) {
		return it.Content.UpdateLinkMetadata(ogTitle, ogImage, favicon), nil
	})
}

// claimPrintLocked points its fingerprint at it unless another clip owns
// it. A clip still holding its captured text outranks an edited one.
func (s *Store) claimPrintLocked(it *Item) {
	fp := it.Content.Fingerprint()
	if owner, ok := s.items[s.byPrint[fp]]; ok && owner != it {
		if owner.Content.Edited == nil || it.Content.Edited != nil {
			return
		}
	}
	s.byPrint[fp] = it.ID
}

// Edit replaces the text of a text-bearing clip. Setting it back to the
// captured text clears the edit.
func (s *Store) Edit(id, text string) (Item, error) {
	s.mu.Lock()
	it, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return Item{}, fmt.Errorf("clip %s: %w", id, ErrNotFound)
	}
	switch it.Content.Kind {
	case content.KindText, content.KindRichText, content.KindLink, content.KindColor:
	default:
		s.mu.Unlock()
		return Item{}, fmt.Errorf("clip %s (%s): %w", id, it.Content.Kind, ErrNotEditable)
	}

	oldPrint := it.Content.Fingerprint()
	if text == string(it.Content.Data) {
		it.Content.Edited = nil
	} else {
		it.Content.Edited = []byte(text)
	}
	if s.byPrint[oldPrint] == id {
		delete(s.byPrint, oldPrint)
	}
	s.claimPrintLocked(it)
	s.persistLocked(record{Op: opPut, Item: it})
	out := it.clone()
	s.mu.Unlock()

	s.publish(hub.KindClipUpdated, out)
	return out, nil
}

// Delete removes an item.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	it, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("clip %s: %w", id, ErrNotFound)
	}
	s.removeLocked(it)
	s.persistLocked(record{Op: opDelete, ID: id})
	out := it.clone()
	s.mu.Unlock()

	s.publish(hub.KindClipRemoved, out)
	return nil
}

// Clear removes every item, or every unpinned item when keepPinned is set.
// It returns how many were removed.
func (s *Store) Clear(keepPinned bool) int {
	s.mu.Lock()
	n := s.clearLocked(keepPinned)
	s.persistLocked(record{Op: opClear, KeepPinned: keepPinned})
	s.mu.Unlock()

	s.log.Info("history cleared", "removed", n, "keep_pinned", keepPinned)
	if n > 0 {
		s.pub.Publish(hub.Event{Kind: hub.KindClipRemoved, Source: "clear"})
	}
	return n
}

// update applies fn to an item under the lock and, if fn reports a change,
// journals it and publishes clip.updated.
func (s *Store) update(id string, fn func(*Item) (bool, error)) (Item, error) {
	s.mu.Lock()
	it, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return Item{}, fmt.Errorf("clip %s: %w", id, ErrNotFound)
	}
	changed, err := fn(it)
	if err != nil {
		s.mu.Unlock()
		return Item{}, err
	}
	if changed {
		s.persistLocked(record{Op: opPut, Item: it})
	}
	out := it.clone()
	s.mu.Unlock()

	if changed {
		s.publish(hub.KindClipUpdated, out)
	}
	return out, nil
}

func (s *Store) removeLocked(it *Item) {
	delete(s.items, it.ID)
	fp := it.Content.Fingerprint()
	if s.byPrint[fp] == it.ID {
		delete(s.byPrint, fp)
	}
}

func (s *Store) clearLocked(keepPinned bool) int {
	n := 0
	for _, it := range s.items {
		if keepPinned && it.Pinned {
			continue
		}
		s.removeLocked(it)
		n++
	}
	return n
}

// trimLocked drops the oldest unpinned items beyond maxItems and returns
// them.
func (s *Store) trimLocked() []Item {
	if s.maxItems <= 0 {
		return nil
	}
	var unpinned []Item
	for _, it := range s.items {
		if !it.Pinned {
			unpinned = append(unpinned, *it)
		}
	}
	if len(unpinned) <= s.maxItems {
		return nil
	}
	sortNewestFirst(unpinned)
	drop := unpinned[s.maxItems:]
	for _, it := range drop {
		s.removeLocked(s.items[it.ID])
		s.persistLocked(record{Op: opDelete, ID: it.ID})
	}
	s.log.Debug("history trimmed", "removed", len(drop), "max", s.maxItems)
	return drop
}

// stampLocked returns the current time, strictly after the previous stamp
// so that ordering by CopiedAt is total.
func (s *Store) stampLocked() time.Time {
	now := s.now()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}

func (s *Store) publish(kind hub.Kind, it Item) {
	s.pub.Publish(hub.Event{
		Kind:        kind,
		Source:      it.Source,
		ClipID:      it.ID,
		ContentKind: string(it.Content.Kind),
		Preview:     it.Preview(),
	})
}

func sortNewestFirst(items []Item) {
	slices.SortFunc(items, func(a, b Item) int {
		if c := b.CopiedAt.Compare(a.CopiedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

// logPreview is what DEBUG logging shows of a clip: text capped at 120
// characters, or the size of binary payloads.
func logPreview(c content.Content) string {
	if c.Kind == content.KindImage {
		return fmt.Sprintf("<%d bytes>", len(c.Active()))
	}
	return c.Preview(120)
}

type nopPublisher struct{}

func (nopPublisher) Publish(hub.Event) {}
