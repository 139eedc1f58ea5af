package history

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"go.klb.dev/clipstack/internal/content"
	"go.klb.dev/clipstack/internal/hub"
)

// Collection groups clips. User collections hold explicit members; smart
// collections match every clip of one kind and hold no members.
type Collection struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Icon      string       `json:"icon,omitempty"`
	Color     string       `json:"color,omitempty"`
	SortOrder int          `json:"sort_order"`
	Smart     content.Kind `json:"smart,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitzero"`
}

// IsSmart reports whether c filters by kind.
func (c Collection) IsSmart() bool { return c.Smart != "" }

func (c *Collection) contains(it *Item) bool {
	if c.IsSmart() {
		return it.Content.Kind == c.Smart
	}
	return slices.Contains(it.Collections, c.ID)
}

const (
	defaultIcon  = "folder"
	defaultColor = "#007AFF"
)

// SmartCollections returns the built-in kind collections.
func SmartCollections() []Collection {
	return []Collection{
		{ID: "links", Name: "Links", Icon: "link", Color: "#AF52DE", SortOrder: 0, Smart: content.KindLink},
		{ID: "images", Name: "Images", Icon: "photo", Color: "#FF9500", SortOrder: 1, Smart: content.KindImage},
		{ID: "colors", Name: "Colors", Icon: "paintpalette", Color: "#34C759", SortOrder: 2, Smart: content.KindColor},
	}
}

// CollectionInfo is a collection with its current item count.
type CollectionInfo struct {
	Collection
	Count int `json:"count"`
}

// Collections returns every collection in sort order with item counts.
func (s *Store) Collections() []CollectionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CollectionInfo, 0, len(s.collections))
	for _, c := range s.collections {
		info := CollectionInfo{Collection: *c}
		for _, it := range s.items {
			if c.contains(it) {
				info.Count++
			}
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b CollectionInfo) int {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder - b.SortOrder
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// CreateCollection adds a user collection. Names are unique, compared
// case-insensitively. Empty icon and color get defaults.
func (s *Store) CreateCollection(name, icon, color string) (Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Collection{}, ErrInvalidCollection
	}
	if icon == "" {
		icon = defaultIcon
	}
	if color == "" {
		color = defaultColor
	} else if _, err := content.ParseHex(color); err != nil {
		return Collection{}, fmt.Errorf("collection color: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collectionByNameLocked(name); ok {
		return Collection{}, fmt.Errorf("collection %q: %w", name, ErrCollectionExists)
	}
	order := 0
	for _, c := range s.collections {
		order = max(order, c.SortOrder+1)
	}
	c := &Collection{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      name,
		Icon:      icon,
		Color:     color,
		SortOrder: order,
		CreatedAt: s.now(),
	}
	s.collections[c.ID] = c
	s.persistLocked(record{Op: opCollectionPut, Collection: c})
	s.log.Info("collection created", "id", c.ID, "name", name)
	return *c, nil
}

// RenameCollection renames a user collection.
func (s *Store) RenameCollection(ref, name string) (Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Collection{}, ErrInvalidCollection
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.userCollectionLocked(ref)
	if err != nil {
		return Collection{}, err
	}
	if other, ok := s.collectionByNameLocked(name); ok && other.ID != c.ID {
		return Collection{}, fmt.Errorf("collection %q: %w", name, ErrCollectionExists)
	}
	c.Name = name
	s.persistLocked(record{Op: opCollectionPut, Collection: c})
	return *c, nil
}

// DeleteCollection removes a user collection. Its clips stay in the history.
func (s *Store) DeleteCollection(ref string) error {
	s.mu.Lock()
	c, err := s.userCollectionLocked(ref)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.collections, c.ID)
	for _, it := range s.items {
		if i := slices.Index(it.Collections, c.ID); i >= 0 {
			it.Collections = slices.Delete(it.Collections, i, i+1)
		}
	}
	s.persistLocked(record{Op: opCollectionDelete, ID: c.ID})
	s.mu.Unlock()

	s.log.Info("collection deleted", "id", c.ID, "name", c.Name)
	return nil
}

// AddToCollection puts a clip into a user collection.
func (s *Store) AddToCollection(id, ref string) (Item, error) {
	return s.editMembership(id, ref, func(it *Item, cid string) bool {
		if slices.Contains(it.Collections, cid) {
			return false
		}
		it.Collections = append(it.Collections, cid)
		return true
	})
}

// RemoveFromCollection takes a clip out of a user collection.
func (s *Store) RemoveFromCollection(id, ref string) (Item, error) {
	return s.editMembership(id, ref, func(it *Item, cid string) bool {
		i := slices.Index(it.Collections, cid)
		if i < 0 {
			return false
		}
		it.Collections = slices.Delete(it.Collections, i, i+1)
		return true
	})
}

func (s *Store) editMembership(id, ref string, fn func(*Item, string) bool) (Item, error) {
	s.mu.Lock()
	c, err := s.userCollectionLocked(ref)
	if err != nil {
		s.mu.Unlock()
		return Item{}, err
	}
	it, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return Item{}, fmt.Errorf("clip %s: %w", id, ErrNotFound)
	}
	changed := fn(it, c.ID)
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

// lookupCollectionLocked resolves a collection by ID or by name.
func (s *Store) lookupCollectionLocked(ref string) (*Collection, bool) {
	if c, ok := s.collections[ref]; ok {
		return c, true
	}
	return s.collectionByNameLocked(ref)
}

func (s *Store) collectionByNameLocked(name string) (*Collection, bool) {
	for _, c := range s.collections {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

func (s *Store) userCollectionLocked(ref string) (*Collection, error) {
	c, ok := s.lookupCollectionLocked(ref)
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", ref, ErrNotFound)
	}
	if c.IsSmart() {
		return nil, fmt.Errorf("collection %s: %w", c.Name, ErrSmartCollection)
	}
	return c, nil
}
