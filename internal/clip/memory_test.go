package clip

import (
	"testing"
	"time"

	"go.klb.dev/clipstack/internal/message"
)

func TestMemoryWriteSignalsWatch(t *testing.T) {
	m := NewMemory()
	if err := m.Write([]message.Item{message.NewTextItem("hi")}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	select {
	case <-m.Watch():
	case <-time.After(time.Second):
		t.Fatal("Watch() did not signal after Write")
	}

	items, err := m.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := message.Text(items); got != "hi" {
		t.Fatalf("Read() text = %q, want %q", got, "hi")
	}
	if m.Writes() != 1 {
		t.Fatalf("Writes() = %d, want 1", m.Writes())
	}
}

func TestMemoryReadReturnsCopy(t *testing.T) {
	m := NewMemory()
	_ = m.Write([]message.Item{message.NewTextItem("a")})
	items, _ := m.Read()
	items[0] = message.NewTextItem("mutated")

	again, _ := m.Read()
	if got := message.Text(again); got != "a" {
		t.Fatalf("Read() after caller mutation = %q, want %q", got, "a")
	}
}
