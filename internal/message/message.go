// Package message defines clipboard representations exchanged between the
// clipboard backends, the history store and the control plane.
//
// A clipboard change is a slice of Items, one per MIME type the source
// application offered. Data is raw bytes; encoding/json renders it as base64
// so binary payloads (images) survive the JSON control plane and the journal.
package message

import (
	"bytes"
	"strings"
)

// Well-known MIME types handled by clipstack.
const (
	MIMEText    = "text/plain"
	MIMEHTML    = "text/html"
	MIMERTF     = "text/rtf"
	MIMEURIList = "text/uri-list"
	MIMEPNG     = "image/png"
)

// Item is a single clipboard representation with a MIME type.
type Item struct {
	MIME string `json:"mime"`
	Data []byte `json:"data"`
}

// NewTextItem creates a text/plain Item from a plain string.
func NewTextItem(text string) Item {
	return Item{MIME: MIMEText, Data: []byte(text)}
}

// NewBinaryItem creates an Item from raw bytes with the given MIME type.
func NewBinaryItem(mime string, data []byte) Item {
	return Item{MIME: mime, Data: data}
}

// Find returns the first item with the given MIME type.
func Find(items []Item, mime string) (Item, bool) {
	for _, it := range items {
		if it.MIME == mime {
			return it, true
		}
	}
	return Item{}, false
}

// Text returns the content of the first text/plain item, or "".
func Text(items []Item) string {
	if it, ok := Find(items, MIMEText); ok {
		return string(it.Data)
	}
	return ""
}

// Types returns the MIME types of items in order.
func Types(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.MIME
	}
	return out
}

// Filter returns only the items whose MIME type appears in accepted.
// If accepted is empty all items are returned unchanged.
func Filter(items []Item, accepted []string) []Item {
	if len(accepted) == 0 {
		return items
	}
	set := make(map[string]struct{}, len(accepted))
	for _, a := range accepted {
		set[strings.ToLower(a)] = struct{}{}
	}
	var out []Item
	for _, it := range items {
		if _, ok := set[strings.ToLower(it.MIME)]; ok {
			out = append(out, it)
		}
	}
	return out
}

// Equal reports whether a and b carry the same representations in the same order.
func Equal(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].MIME != b[i].MIME || !bytes.Equal(a[i].Data, b[i].Data) {
			return false
		}
	}
	return true
}

// Size returns the total payload size of items in bytes.
func Size(items []Item) int {
	n := 0
	for _, it := range items {
		n += len(it.Data)
	}
	return n
}
