package clip

import (
	"slices"
	"sync"

	"go.klb.dev/clipstack/internal/message"
)

// Memory is an in-process clipboard. Writes are visible to Read and raise a
// Watch signal, the same way an external application copying would.
type Memory struct {
	mu      sync.Mutex
	items   []message.Item
	writes  int
	watchCh chan struct{}
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory {
	return &Memory{watchCh: make(chan struct{}, 1)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Read() ([]message.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.items), nil
}

func (m *Memory) Write(items []message.Item) error {
	m.mu.Lock()
	m.items = slices.Clone(items)
	m.writes++
	m.mu.Unlock()
	signal(m.watchCh)
	return nil
}

// Writes returns how many times Write has been called.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) Watch() <-chan struct{} { return m.watchCh }
func (m *Memory) Close()                 {}
