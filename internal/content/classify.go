package content

import (
	"net/url"
	"strings"

	"go.klb.dev/clipstack/internal/message"
)

// Classify turns the representations of one clipboard change into Content.
// It reports false when nothing worth keeping was copied (empty or
// whitespace-only text, no image).
func Classify(items []message.Item) (Content, bool) {
	if img, ok := message.Find(items, message.MIMEPNG); ok && len(img.Data) > 0 {
		return Image(img.Data), true
	}

	if list, ok := message.Find(items, message.MIMEURIList); ok {
		if p, ok := firstFilePath(string(list.Data)); ok {
			return File(p), true
		}
	}

	text := message.Text(items)
	if strings.TrimSpace(text) == "" {
		return Content{}, false
	}

	for _, mime := range []string{message.MIMEHTML, message.MIMERTF} {
		if rich, ok := message.Find(items, mime); ok && len(rich.Data) > 0 {
			return RichText(text, rich.Data, mime), true
		}
	}

	trimmed := strings.TrimSpace(text)
	if p, ok := firstFilePath(trimmed); ok && !strings.ContainsAny(trimmed, "\r\n") {
		return File(p), true
	}
	if isWebURL(trimmed) {
		return Link(trimmed, ""), true
	}
	if IsHexColor(trimmed) {
		return Color(trimmed), true
	}
	return Text(text), true
}

// isWebURL reports whether s is a single http(s) URL with a host.
func isWebURL(s string) bool {
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// firstFilePath returns the first file:// entry of a text/uri-list body.
// Comment lines (#) are skipped per RFC 2483.
func firstFilePath(list string) (string, bool) {
	for _, line := range strings.Split(list, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Scheme != "file" || u.Path == "" {
			continue
		}
		return u.Path, true
	}
	return "", false
}
