//go:build darwin

package clip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
//
// NSInteger clipstack_changeCount() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
import "C"

import (
	"log/slog"
	"time"

	"golang.design/x/clipboard"

	"go.klb.dev/clipstack/internal/message"
)

const darwinPollInterval = 100 * time.Millisecond

type darwinBackend struct {
	lastChange C.NSInteger
	watchCh    chan struct{}
	done       chan struct{}
}

// New returns the macOS clipboard backend.
// clipboard.Init is called here rather than in init() so that CLI sub-commands
// that only talk to the daemon never touch the pasteboard.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard init failed", "err", err)
	}
	b := &darwinBackend{
		lastChange: C.clipstack_changeCount(),
		watchCh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go b.poll()
	return b
}

func (b *darwinBackend) Name() string { return "macOS NSPasteboard" }

// poll compares the pasteboard changeCount; it increments on every copy,
// including copies of identical content.
func (b *darwinBackend) poll() {
	t := time.NewTicker(darwinPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			cc := C.clipstack_changeCount()
			if cc != b.lastChange {
				b.lastChange = cc
				signal(b.watchCh)
			}
		}
	}
}

func (b *darwinBackend) Read() ([]message.Item, error)    { return readNative(), nil }
func (b *darwinBackend) Write(items []message.Item) error { return writeNative(items) }
func (b *darwinBackend) Watch() <-chan struct{}           { return b.watchCh }
func (b *darwinBackend) Close()                           { close(b.done) }
