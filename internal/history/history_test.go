package history

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.klb.dev/clipstack/internal/content"
	"go.klb.dev/clipstack/internal/crypto"
	"go.klb.dev/clipstack/internal/hub"
)

type eventLog struct {
	mu     sync.Mutex
	events []hub.Event
}

func (l *eventLog) Publish(ev hub.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []hub.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]hub.Kind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func texts(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Content.Text()
	}
	return out
}

func TestAddDedupesAndMovesToTop(t *testing.T) {
	t.Parallel()
	ev := &eventLog{}
	s := New(WithPublisher(ev))

	a, isNew := s.Add(content.Text("alpha"), "test")
	if !isNew {
		t.Fatal("first Add not new")
	}
	s.Add(content.Text("beta"), "test")
	again, isNew := s.Add(content.Text("alpha"), "other")
	if isNew {
		t.Fatal("duplicate Add reported new")
	}
	if again.ID != a.ID {
		t.Fatalf("duplicate got ID %s, want %s", again.ID, a.ID)
	}
	if !again.CopiedAt.After(a.CopiedAt) || !again.CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("timestamps: created %v→%v copied %v→%v", a.CreatedAt, again.CreatedAt, a.CopiedAt, again.CopiedAt)
	}
	if again.Source != "other" {
		t.Fatalf("Source = %q, want other", again.Source)
	}

	all, err := s.List(Query{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"alpha", "beta"}, texts(all)); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]hub.Kind{hub.KindClipAdded, hub.KindClipAdded, hub.KindClipAdded}, ev.kinds()); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestSameTextDifferentKindIsNotDuplicate(t *testing.T) {
	t.Parallel()
	s := New()
	s.Add(content.Text("#FF0000"), "")
	s.Add(content.Color("#FF0000"), "")
	if got := s.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}

func TestTrimKeepsPinned(t *testing.T) {
	t.Parallel()
	ev := &eventLog{}
	s := New(WithMaxItems(2), WithPublisher(ev))

	first, _ := s.Add(content.Text("one"), "")
	if _, err := s.SetPinned(first.ID, true); err != nil {
		t.Fatal(err)
	}
	s.Add(content.Text("two"), "")
	s.Add(content.Text("three"), "")
	s.Add(content.Text("four"), "")

	all, _ := s.List(Query{})
	if diff := cmp.Diff([]string{"four", "three", "one"}, texts(all)); diff != "" {
		t.Fatalf("after trim (-want +got):\n%s", diff)
	}
	removed := 0
	for _, k := range ev.kinds() {
		if k == hub.KindClipRemoved {
			removed++
		}
	}
	if removed != 1 {
		t.Fatalf("clip.removed events = %d, want 1", removed)
	}
}

func TestListFilters(t *testing.T) {
	t.Parallel()
	s := New()
	s.Add(content.Text("plain note"), "")
	link, _ := s.Add(content.Link("https://example.com/a", "Example Page"), "")
	s.Add(content.Color("#00FF00"), "")
	file, _ := s.Add(content.File("/tmp/Report.pdf"), "")
	s.SetPinned(link.ID, true)

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"all", Query{}, []string{"/tmp/Report.pdf", "#00FF00", "https://example.com/a", "plain note"}},
		{"limit", Query{Limit: 2}, []string{"/tmp/Report.pdf", "#00FF00"}},
		{"kinds", Query{Kinds: []content.Kind{content.KindText, content.KindColor}}, []string{"#00FF00", "plain note"}},
		{"pinned", Query{PinnedOnly: true}, []string{"https://example.com/a"}},
		{"smart collection", Query{Collection: "links"}, []string{"https://example.com/a"}},
		{"smart by name", Query{Collection: "colors"}, []string{"#00FF00"}},
		{"text", Query{Text: "NOTE"}, []string{"plain note"}},
		{"link title", Query{Text: "example page"}, []string{"https://example.com/a"}},
		{"file name", Query{Text: "report"}, []string{file.Content.Text()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, texts(got)); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}

	if _, err := s.List(Query{Collection: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown collection err = %v, want ErrNotFound", err)
	}
}

func TestSearchOCRText(t *testing.T) {
	t.Parallel()
	s := New()
	img, _ := s.Add(content.Image([]byte("not really a png")), "")
	if _, err := s.SetOCRText(img.ID, "  Invoice 42\n"); err != nil {
		t.Fatal(err)
	}
	got := s.Search("invoice", 0)
	if diff := cmp.Diff([]string{img.ID}, ids(got)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if got[0].OCRText != "Invoice 42" {
		t.Fatalf("OCRText = %q", got[0].OCRText)
	}
}

func TestMutationsOnMissingItem(t *testing.T) {
	t.Parallel()
	s := New()
	checks := map[string]error{}
	_, checks["get"] = s.Get("missing")
	_, checks["pin"] = s.SetPinned("missing", true)
	_, checks["used"] = s.MarkUsed("missing")
	_, checks["edit"] = s.Edit("missing", "x")
	checks["delete"] = s.Delete("missing")
	for name, err := range checks {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", name, err)
		}
	}
}

func TestMarkUsed(t *testing.T) {
	t.Parallel()
	s := New()
	it, _ := s.Add(content.Text("x"), "")
	s.MarkUsed(it.ID)
	got, _ := s.MarkUsed(it.ID)
	if got.UseCount != 2 || got.LastUsedAt.IsZero() {
		t.Fatalf("UseCount = %d LastUsedAt = %v", got.UseCount, got.LastUsedAt)
	}
}

func TestEdit(t *testing.T) {
	t.Parallel()
	s := New()
	it, _ := s.Add(content.Text("original"), "")

	got, err := s.Edit(it.ID, "changed")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content.Text() != "changed" || string(got.Content.Data) != "original" {
		t.Fatalf("after edit: text %q data %q", got.Content.Text(), got.Content.Data)
	}

	// The edited text now dedupes; the original is new content again.
	if dup, isNew := s.Add(content.Text("changed"), ""); isNew || dup.ID != it.ID {
		t.Fatalf("Add(edited text) = %s new=%v, want existing %s", dup.ID, isNew, it.ID)
	}

	got, _ = s.Edit(it.ID, "original")
	if got.Content.Edited != nil {
		t.Fatalf("Edited = %q, want cleared", got.Content.Edited)
	}

	img, _ := s.Add(content.Image([]byte("png")), "")
	if _, err := s.Edit(img.ID, "text"); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("edit image err = %v, want ErrNotEditable", err)
	}
}

func TestEditKeepsDedupeOwner(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.journal")
	key, err := crypto.DeriveKey("hunter2", crypto.PurposeJournal)
	if err != nil {
		t.Fatal(err)
	}
	s, err := Open(path, key)
	if err != nil {
		t.Fatal(err)
	}
	orig, _ := s.Add(content.Text("shared"), "")
	other, _ := s.Add(content.Text("other"), "")
	if _, err := s.Edit(other.ID, "shared"); err != nil {
		t.Fatal(err)
	}

	check := func(t *testing.T, s *Store) {
		t.Helper()
		if dup, isNew := s.Add(content.Text("shared"), ""); isNew || dup.ID != orig.ID {
			t.Fatalf("Add(shared) = %s new=%v, want original %s", dup.ID, isNew, orig.ID)
		}
	}
	check(t, s)

	if err := s.Compact(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s, err = Open(path, key)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	check(t, s)

	// Once the original is gone, the edited text is new content again.
	s.Delete(orig.ID)
	if _, isNew := s.Add(content.Text("shared"), ""); !isNew {
		t.Fatal("Add(shared) after deleting the original deduped")
	}
}

func TestUpdateLinkMetadata(t *testing.T) {
	t.Parallel()
	ev := &eventLog{}
	s := New(WithPublisher(ev))
	it, _ := s.Add(content.Link("https://example.com", ""), "")

	got, err := s.UpdateLinkMetadata(it.ID, "Example", nil, []byte("ico"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Content.LinkTitle() != "Example" || string(got.Content.Favicon) != "ico" {
		t.Fatalf("content = %+v", got.Content)
	}
	s.UpdateLinkMetadata(it.ID, "Example", nil, nil)

	want := []hub.Kind{hub.KindClipAdded, hub.KindClipUpdated}
	if diff := cmp.Diff(want, ev.kinds()); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestReturnedItemsAreCopies(t *testing.T) {
	t.Parallel()
	s := New()
	it, _ := s.Add(content.Link("https://example.com", "Title"), "")
	it.Content.Metadata[content.MetaTitle] = "mutated"

	got, _ := s.Get(it.ID)
	if got.Content.LinkTitle() != "Title" {
		t.Fatalf("LinkTitle() = %q, store was mutated through a copy", got.Content.LinkTitle())
	}
}

func TestDeleteAndClear(t *testing.T) {
	t.Parallel()
	s := New()
	a, _ := s.Add(content.Text("a"), "")
	b, _ := s.Add(content.Text("b"), "")
	s.Add(content.Text("c"), "")
	s.SetPinned(b.ID, true)

	if err := s.Delete(a.ID); err != nil {
		t.Fatal(err)
	}
	if _, isNew := s.Add(content.Text("a"), ""); !isNew {
		t.Fatal("re-adding deleted content was deduplicated")
	}

	if n := s.Clear(true); n != 2 {
		t.Fatalf("Clear(true) removed %d, want 2", n)
	}
	all, _ := s.List(Query{})
	if diff := cmp.Diff([]string{b.ID}, ids(all)); diff != "" {
		t.Fatalf("after Clear(true) (-want +got):\n%s", diff)
	}
	if n := s.Clear(false); n != 1 || s.Len() != 0 {
		t.Fatalf("Clear(false) removed %d, Len() = %d", n, s.Len())
	}
}

func TestCollections(t *testing.T) {
	t.Parallel()
	s := New()
	work, err := s.CreateCollection("Work", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if work.Icon != defaultIcon || work.Color != defaultColor || work.SortOrder != 3 {
		t.Fatalf("defaults = %+v", work)
	}
	if _, err := s.CreateCollection("work", "", ""); !errors.Is(err, ErrCollectionExists) {
		t.Fatalf("duplicate name err = %v", err)
	}
	if _, err := s.CreateCollection("  ", "", ""); !errors.Is(err, ErrInvalidCollection) {
		t.Fatalf("empty name err = %v", err)
	}
	if _, err := s.CreateCollection("Bad", "", "red"); err == nil {
		t.Fatal("invalid color accepted")
	}

	it, _ := s.Add(content.Text("memo"), "")
	if _, err := s.AddToCollection(it.ID, "Work"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.AddToCollection(it.ID, work.ID)
	if diff := cmp.Diff([]string{work.ID}, got.Collections); diff != "" {
		t.Fatalf("membership (-want +got):\n%s", diff)
	}
	if _, err := s.AddToCollection(it.ID, "links"); !errors.Is(err, ErrSmartCollection) {
		t.Fatalf("add to smart err = %v", err)
	}

	infos := s.Collections()
	var names []string
	for _, c := range infos {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"Links", "Images", "Colors", "Work"}, names); diff != "" {
		t.Fatalf("collections (-want +got):\n%s", diff)
	}
	if infos[3].Count != 1 {
		t.Fatalf("Work count = %d, want 1", infos[3].Count)
	}

	if _, err := s.RenameCollection("Work", "Office"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RenameCollection("Images", "Pics"); !errors.Is(err, ErrSmartCollection) {
		t.Fatalf("rename smart err = %v", err)
	}
	if got, _ := s.List(Query{Collection: "office"}); len(got) != 1 {
		t.Fatalf("List(office) = %d items, want 1", len(got))
	}

	got, _ = s.RemoveFromCollection(it.ID, "Office")
	if len(got.Collections) != 0 {
		t.Fatalf("Collections = %v after remove", got.Collections)
	}
	s.AddToCollection(it.ID, "Office")
	if err := s.DeleteCollection("Office"); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Get(it.ID); len(got.Collections) != 0 {
		t.Fatalf("Collections = %v after collection delete", got.Collections)
	}
	if err := s.DeleteCollection("colors"); !errors.Is(err, ErrSmartCollection) {
		t.Fatalf("delete smart err = %v", err)
	}
}

func TestPersistence(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.journal")
	key, err := crypto.DeriveKey("hunter2", crypto.PurposeJournal)
	if err != nil {
		t.Fatal(err)
	}

	s, err := Open(path, key)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := s.Add(content.Text("keep me"), "")
	b, _ := s.Add(content.Text("delete me"), "")
	c, _ := s.Add(content.Link("https://example.com", ""), "")
	coll, _ := s.CreateCollection("Saved", "star", "#FF0000")
	s.SetPinned(a.ID, true)
	s.AddToCollection(a.ID, coll.ID)
	s.Delete(b.ID)
	s.UpdateLinkMetadata(c.ID, "Example", nil, nil)
	s.Edit(a.ID, "kept")
	want, _ := s.List(Query{})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	check := func(t *testing.T, s *Store) {
		t.Helper()
		got, _ := s.List(Query{})
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("replayed history (-want +got):\n%s", diff)
		}
		if got, _ := s.List(Query{Collection: "Saved"}); len(got) != 1 || got[0].ID != a.ID {
			t.Fatalf("collection membership lost: %v", ids(got))
		}
		// Dedupe index is rebuilt from the edited text.
		if id := s.byPrint[content.Text("kept").Fingerprint()]; id != a.ID {
			t.Fatalf("dedupe index maps edited text to %q, want %s", id, a.ID)
		}
	}

	s, err = Open(path, key)
	if err != nil {
		t.Fatal(err)
	}
	check(t, s)
	if err := s.Compact(); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path, key)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	check(t, s)

	wrong, _ := crypto.DeriveKey("wrong", crypto.PurposeJournal)
	if _, err := Open(path, wrong); !errors.Is(err, crypto.ErrDecrypt) {
		t.Fatalf("wrong passphrase err = %v, want ErrDecrypt", err)
	}
}
