package rpc

import (
	"time"

	"go.klb.dev/clipstack/internal/capture"
	"go.klb.dev/clipstack/internal/history"
	"go.klb.dev/clipstack/internal/hub"
	"go.klb.dev/clipstack/internal/message"
	"go.klb.dev/clipstack/internal/stack"
)

// ServiceName is the full gRPC service name.
const ServiceName = "clipstack.v1.ClipStack"

type Empty struct{}

// CopyRequest puts items on the clipboard and records them in the history.
type CopyRequest struct {
	Items  []message.Item `json:"items"`
	Source string         `json:"source,omitempty"`
}

type CopyResponse struct {
	Item history.Item `json:"item"`
	New  bool         `json:"new"`
}

// PasteMode says what Paste does with the item.
type PasteMode string

const (
	// PasteReturn only returns the item. It is the default.
	PasteReturn PasteMode = "return"
	// PasteClipboard writes the item to the clipboard.
	PasteClipboard PasteMode = "clipboard"
	// PasteKeystroke writes the item and sends the paste keystroke.
	PasteKeystroke PasteMode = "keystroke"
)

// PasteRequest selects one item by ID (empty = newest), or several by IDs,
// which are pasted joined by Separator.
type PasteRequest struct {
	ID        string    `json:"id,omitempty"`
	IDs       []string  `json:"ids,omitempty"`
	Separator string    `json:"separator,omitempty"`
	Plain     *bool     `json:"plain,omitempty"`
	Mode      PasteMode `json:"mode,omitempty"`
}

type PasteResponse struct {
	Items []history.Item `json:"items"`
}

type HistoryRequest struct {
	Query history.Query `json:"query"`
}

type HistoryResponse struct {
	Items []history.Item `json:"items"`
}

type PinRequest struct {
	ID     string `json:"id"`
	Pinned bool   `json:"pinned"`
}

type EditRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type ItemResponse struct {
	Item history.Item `json:"item"`
}

type DeleteRequest struct {
	ID string `json:"id"`
}

type ClearRequest struct {
	// All also removes pinned items.
	All bool `json:"all,omitempty"`
}

type ClearResponse struct {
	Removed int `json:"removed"`
}

type CollectionsResponse struct {
	Collections []history.CollectionInfo `json:"collections"`
}

// CollectionAction is a CollectionEdit verb.
type CollectionAction string

const (
	CollectionCreate CollectionAction = "create"
	CollectionDelete CollectionAction = "delete"
	CollectionRename CollectionAction = "rename"
	CollectionAdd    CollectionAction = "add"
	CollectionRemove CollectionAction = "remove"
)

// CollectionEditRequest changes a collection. Collection is an ID or name;
// Name is the new name for create and rename; ItemID is the clip for add
// and remove.
type CollectionEditRequest struct {
	Action     CollectionAction `json:"action"`
	Collection string           `json:"collection,omitempty"`
	Name       string           `json:"name,omitempty"`
	Icon       string           `json:"icon,omitempty"`
	Color      string           `json:"color,omitempty"`
	ItemID     string           `json:"item_id,omitempty"`
}

type CollectionEditResponse struct {
	Collection *history.Collection `json:"collection,omitempty"`
	Item       *history.Item       `json:"item,omitempty"`
}

// StackActivateRequest starts a paste stack over IDs in order.
type StackActivateRequest struct {
	IDs   []string `json:"ids"`
	Plain *bool    `json:"plain,omitempty"`
}

// StackResponse is the stack state after a stack call. Pasted is set by a
// StackNext that pasted something.
type StackResponse struct {
	State  stack.State  `json:"state"`
	Pasted *stack.Entry `json:"pasted,omitempty"`
}

type StatusResponse struct {
	Version     string               `json:"version"`
	StartedAt   time.Time            `json:"started_at"`
	Items       int                  `json:"items"`
	Capture     capture.Stats        `json:"capture"`
	Stack       stack.State          `json:"stack"`
	Subscribers []hub.SubscriberInfo `json:"subscribers"`
	TCP         string               `json:"tcp,omitempty"`
}

// WatchRequest subscribes to hub events. Empty Kinds means all; "stack.*"
// style wildcards are allowed.
type WatchRequest struct {
	Kinds []hub.Kind `json:"kinds,omitempty"`
}
