//go:build darwin || windows || linux

package clip

import (
	"fmt"

	"golang.design/x/clipboard"

	"go.klb.dev/clipstack/internal/message"
)

// readNative returns the text and image formats golang.design/x/clipboard
// can see. Other pasteboard flavours (HTML, file URLs) are not exposed by the
// library and arrive as their text/plain fallback.
func readNative() []message.Item {
	var items []message.Item
	if text := clipboard.Read(clipboard.FmtText); len(text) > 0 {
		items = append(items, message.NewTextItem(string(text)))
	}
	if img := clipboard.Read(clipboard.FmtImage); len(img) > 0 {
		items = append(items, message.NewBinaryItem(message.MIMEPNG, img))
	}
	return items
}

// writeNative writes the first representation the library supports. Text
// flavours without a native format fall back to text/plain so pasting a file
// or a link still produces something useful.
func writeNative(items []message.Item) error {
	if img, ok := message.Find(items, message.MIMEPNG); ok {
		clipboard.Write(clipboard.FmtImage, img.Data)
		return nil
	}
	if text, ok := message.Find(items, message.MIMEText); ok {
		clipboard.Write(clipboard.FmtText, text.Data)
		return nil
	}
	for _, it := range items {
		switch it.MIME {
		case message.MIMEURIList, message.MIMEHTML, message.MIMERTF:
			clipboard.Write(clipboard.FmtText, it.Data)
			return nil
		}
	}
	if len(items) == 0 {
		return nil
	}
	return fmt.Errorf("unsupported MIME types: %v", message.Types(items))
}
