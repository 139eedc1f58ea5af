package stack

import (
	"log/slog"

	"go.klb.dev/clipstack/internal/hub"
)

// Publisher is the part of hub.Hub the hub indicator needs.
type Publisher interface {
	Publish(hub.Event)
}

// HubIndicator turns progress signals into stack.* hub events, so any
// number of watchers can render the stack without the coordinator knowing
// about them.
type HubIndicator struct {
	pub Publisher
}

// NewHubIndicator returns an Indicator publishing to pub.
func NewHubIndicator(pub Publisher) *HubIndicator {
	return &HubIndicator{pub: pub}
}

func (h *HubIndicator) Show(total int) {
	h.pub.Publish(hub.Event{Kind: hub.KindStackShown, Total: total})
}

func (h *HubIndicator) UpdateProgress(current, total int) {
	h.pub.Publish(hub.Event{Kind: hub.KindStackProgress, Current: current, Total: total})
}

func (h *HubIndicator) Hide() {
	h.pub.Publish(hub.Event{Kind: hub.KindStackHidden})
}

// LogIndicator writes progress to the log.
type LogIndicator struct {
	Logger *slog.Logger
}

func (l LogIndicator) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l LogIndicator) Show(total int) { l.logger().Info("paste stack", "pasted", 0, "total", total) }
func (l LogIndicator) UpdateProgress(current, total int) {
	l.logger().Info("paste stack", "pasted", current, "total", total)
}
func (l LogIndicator) Hide() { l.logger().Info("paste stack hidden") }

// Indicators fans signals out to several indicators in order.
type Indicators []Indicator

func (is Indicators) Show(total int) {
	for _, i := range is {
		i.Show(total)
	}
}

func (is Indicators) UpdateProgress(current, total int) {
	for _, i := range is {
		i.UpdateProgress(current, total)
	}
}

func (is Indicators) Hide() {
	for _, i := range is {
		i.Hide()
	}
}
