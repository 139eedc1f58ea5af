package history

import (
	"encoding/json"
	"fmt"

	"go.klb.dev/clipstack/internal/crypto"
	"go.klb.dev/clipstack/internal/journal"
)

const (
	opPut              = "put"
	opDelete           = "delete"
	opClear            = "clear"
	opCollectionPut    = "collection.put"
	opCollectionDelete = "collection.delete"
)

// record is one journal line. Put records carry the whole item, so replay
// only ever needs the latest put per ID.
type record struct {
	Op         string      `json:"op"`
	Item       *Item       `json:"item,omitempty"`
	ID         string      `json:"id,omitempty"`
	KeepPinned bool        `json:"keep_pinned,omitempty"`
	Collection *Collection `json:"collection,omitempty"`
}

// Open opens the journal at path, replays it into a new store and keeps
// appending to it. A nil key stores records in the clear.
func Open(path string, key *crypto.Key, opts ...Option) (*Store, error) {
	j, err := journal.Open(path, key)
	if err != nil {
		return nil, err
	}
	s := New(opts...)
	if err := s.replay(j); err != nil {
		j.Close()
		return nil, err
	}
	s.j = j

	s.mu.Lock()
	s.trimLocked()
	s.mu.Unlock()

	s.log.Info("history loaded", "path", path, "items", s.Len(), "encrypted", key != nil)
	return s, nil
}

func (s *Store) replay(j *journal.Journal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	err := j.Replay(func(raw []byte) error {
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.log.Warn("history: skipping malformed record", "err", err)
			return nil
		}
		s.applyLocked(rec)
		n++
		return nil
	})
	if err != nil {
		return fmt.Errorf("history replay: %w", err)
	}
	s.log.Debug("history replayed", "records", n)
	return nil
}

func (s *Store) applyLocked(rec record) {
	switch rec.Op {
	case opPut:
		if rec.Item == nil || rec.Item.ID == "" {
			return
		}
		it := *rec.Item
		if old, ok := s.items[it.ID]; ok {
			s.removeLocked(old)
		}
		s.items[it.ID] = &it
		s.claimPrintLocked(&it)
		if it.CopiedAt.After(s.last) {
			s.last = it.CopiedAt
		}
	case opDelete:
		if it, ok := s.items[rec.ID]; ok {
			s.removeLocked(it)
		}
	case opClear:
		s.clearLocked(rec.KeepPinned)
	case opCollectionPut:
		if rec.Collection == nil || rec.Collection.ID == "" || rec.Collection.IsSmart() {
			return
		}
		c := *rec.Collection
		s.collections[c.ID] = &c
	case opCollectionDelete:
		if c, ok := s.collections[rec.ID]; ok && !c.IsSmart() {
			delete(s.collections, rec.ID)
		}
	default:
		s.log.Warn("history: unknown record", "op", rec.Op)
	}
}

// persistLocked appends rec to the journal, if any. Failures are logged:
// the in-memory history stays authoritative until the next compaction.
func (s *Store) persistLocked(rec record) {
	if s.j == nil {
		return
	}
	if err := s.j.Append(rec); err != nil {
		s.log.Error("history: journal append failed", "op", rec.Op, "err", err)
	}
}

// Compact rewrites the journal from the live state.
func (s *Store) Compact() error {
	s.mu.RLock()
	if s.j == nil {
		s.mu.RUnlock()
		return nil
	}
	recs := make([]any, 0, len(s.collections)+len(s.items))
	for _, c := range s.collections {
		if !c.IsSmart() {
			recs = append(recs, record{Op: opCollectionPut, Collection: c})
		}
	}
	for _, it := range s.items {
		recs = append(recs, record{Op: opPut, Item: it})
	}
	// Hold the read lock across the rewrite so no append lands in the old file.
	err := s.j.Rewrite(recs)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("history compact: %w", err)
	}
	s.log.Info("history compacted", "records", len(recs))
	return nil
}

// Close closes the journal.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.j == nil {
		return nil
	}
	err := s.j.Close()
	s.j = nil
	return err
}
