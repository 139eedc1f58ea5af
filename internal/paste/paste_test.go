package paste

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.klb.dev/clipstack/internal/clip"
	"go.klb.dev/clipstack/internal/content"
	"go.klb.dev/clipstack/internal/history"
	"go.klb.dev/clipstack/internal/message"
	"go.klb.dev/clipstack/internal/stack"
)

// recorder captures the clipboard text at each keystroke.
type recorder struct {
	mu    sync.Mutex
	mem   *clip.Memory
	typed []string
	err   error
}

func (r *recorder) SendPaste() error {
	items, _ := r.mem.Read()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typed = append(r.typed, message.Text(items))
	return r.err
}

func (r *recorder) Typed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.typed...)
}

func setup(t *testing.T, opts ...Option) (*Service, *history.Store, *clip.Memory, *recorder) {
	t.Helper()
	store := history.New()
	mem := clip.NewMemory()
	rec := &recorder{mem: mem}
	s := New(store, mem, append([]Option{WithKeystroker(rec), WithKeystrokeDelay(0)}, opts...)...)
	t.Cleanup(s.Close)
	return s, store, mem, rec
}

func TestPaste(t *testing.T) {
	t.Parallel()
	s, store, mem, rec := setup(t)
	it, _ := store.Add(content.Link("https://example.com", "Example"), "")

	if err := s.Paste(t.Context(), it.ID, false); err != nil {
		t.Fatal(err)
	}
	items, _ := mem.Read()
	if diff := cmp.Diff([]string{message.MIMEText, message.MIMEURIList}, message.Types(items)); diff != "" {
		t.Fatalf("clipboard types (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"https://example.com"}, rec.Typed()); diff != "" {
		t.Fatalf("keystrokes (-want +got):\n%s", diff)
	}
	got, _ := store.Get(it.ID)
	if got.UseCount != 1 {
		t.Fatalf("UseCount = %d, want 1", got.UseCount)
	}
}

func TestPastePlainText(t *testing.T) {
	t.Parallel()
	s, store, mem, _ := setup(t)
	it, _ := store.Add(content.RichText("bold", []byte("<b>bold</b>"), message.MIMEHTML), "")

	if err := s.Paste(t.Context(), it.ID, true); err != nil {
		t.Fatal(err)
	}
	items, _ := mem.Read()
	if diff := cmp.Diff([]string{message.MIMEText}, message.Types(items)); diff != "" {
		t.Fatalf("clipboard types (-want +got):\n%s", diff)
	}
}

func TestCopyDoesNotType(t *testing.T) {
	t.Parallel()
	s, store, mem, rec := setup(t)
	it, _ := store.Add(content.Text("quiet"), "")

	if err := s.Copy(t.Context(), it.ID, false); err != nil {
		t.Fatal(err)
	}
	items, _ := mem.Read()
	if message.Text(items) != "quiet" {
		t.Fatalf("clipboard = %q", message.Text(items))
	}
	if len(rec.Typed()) != 0 {
		t.Fatalf("Copy sent keystrokes: %v", rec.Typed())
	}
	if got, _ := store.Get(it.ID); got.UseCount != 1 {
		t.Fatalf("UseCount = %d, want 1", got.UseCount)
	}
}

func TestPasteMultiple(t *testing.T) {
	t.Parallel()
	s, store, _, rec := setup(t)
	a, _ := store.Add(content.Text("first"), "")
	img, _ := store.Add(content.Image([]byte("png")), "")
	b, _ := store.Add(content.Text("second"), "")

	if err := s.PasteMultiple(t.Context(), []string{a.ID, img.ID, b.ID}, ""); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"first\nsecond"}, rec.Typed()); diff != "" {
		t.Fatalf("keystrokes (-want +got):\n%s", diff)
	}
	for _, id := range []string{a.ID, img.ID, b.ID} {
		if got, _ := store.Get(id); got.UseCount != 1 {
			t.Errorf("%s UseCount = %d, want 1", id, got.UseCount)
		}
	}

	if err := s.PasteMultiple(t.Context(), []string{img.ID}, ", "); !errors.Is(err, ErrNothingToPaste) {
		t.Fatalf("images only err = %v, want ErrNothingToPaste", err)
	}
}

func TestCopyMultipleDoesNotType(t *testing.T) {
	t.Parallel()
	s, store, mem, rec := setup(t)
	a, _ := store.Add(content.Text("a"), "")
	b, _ := store.Add(content.Text("b"), "")

	if err := s.CopyMultiple(t.Context(), []string{a.ID, b.ID}, ", "); err != nil {
		t.Fatal(err)
	}
	items, _ := mem.Read()
	if got := message.Text(items); got != "a, b" {
		t.Fatalf("clipboard = %q, want %q", got, "a, b")
	}
	if got := rec.Typed(); len(got) != 0 {
		t.Fatalf("typed %q, want nothing", got)
	}
}

func TestPasteErrors(t *testing.T) {
	t.Parallel()
	s, store, _, rec := setup(t)
	if err := s.Paste(t.Context(), "missing", false); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}

	rec.err = ErrKeystrokeUnsupported
	it, _ := store.Add(content.Text("x"), "")
	if err := s.Paste(t.Context(), it.ID, false); !errors.Is(err, ErrKeystrokeUnsupported) {
		t.Fatalf("keystroke err = %v", err)
	}
}

func TestKeystrokeDelay(t *testing.T) {
	t.Parallel()
	s, store, _, _ := setup(t, WithKeystrokeDelay(DefaultKeystrokeDelay))
	it, _ := store.Add(content.Text("x"), "")

	start := time.Now()
	if err := s.Paste(t.Context(), it.ID, false); err != nil {
		t.Fatal(err)
	}
	if d := time.Since(start); d < DefaultKeystrokeDelay {
		t.Fatalf("Paste returned after %v, before the keystroke delay", d)
	}
}

func TestStackExecutorKeepsOrder(t *testing.T) {
	t.Parallel()
	s, store, _, rec := setup(t, WithKeystrokeDelay(time.Millisecond))
	var ids []string
	for _, txt := range []string{"A", "B", "C"} {
		it, _ := store.Add(content.Text(txt), "")
		ids = append(ids, it.ID)
	}

	entries, err := s.Entries(ids, false)
	if err != nil {
		t.Fatal(err)
	}
	c := stack.New(s.StackExecutor(), stack.WithGraceDelay(time.Hour))
	c.Activate(entries)
	c.Advance()
	c.Skip()
	c.Advance()

	s.Close()
	if diff := cmp.Diff([]string{"A", "C"}, rec.Typed()); diff != "" {
		t.Fatalf("keystrokes (-want +got):\n%s", diff)
	}
	if err := s.Paste(context.Background(), ids[0], false); !errors.Is(err, ErrClosed) {
		t.Fatalf("Paste after Close err = %v, want ErrClosed", err)
	}
}

func TestEntries(t *testing.T) {
	t.Parallel()
	s, store, _, _ := setup(t)
	it, _ := store.Add(content.Color("#ff0000"), "")

	entries, err := s.Entries([]string{it.ID}, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []stack.Entry{{ID: it.ID, Label: "#FF0000", Items: []message.Item{message.NewTextItem("#FF0000")}}}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if _, err := s.Entries([]string{it.ID, "missing"}, false); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}
