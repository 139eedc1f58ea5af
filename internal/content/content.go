// Package content models what a clip holds and how it maps to and from
// clipboard representations.
package content

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image/png"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.klb.dev/clipstack/internal/message"
)

// Kind is the type of content stored in a clip.
type Kind string

const (
	KindText     Kind = "text"
	KindRichText Kind = "richText"
	KindImage    Kind = "image"
	KindFile     Kind = "file"
	KindLink     Kind = "link"
	KindColor    Kind = "color"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindText, KindRichText, KindImage, KindFile, KindLink, KindColor}

// DisplayName returns the human label for k.
func (k Kind) DisplayName() string {
	switch k {
	case KindText:
		return "Text"
	case KindRichText:
		return "Rich Text"
	case KindImage:
		return "Image"
	case KindFile:
		return "File"
	case KindLink:
		return "Link"
	case KindColor:
		return "Color"
	default:
		return string(k)
	}
}

// ParseKind accepts a kind name case-insensitively; "rich" and "rich-text"
// are accepted for KindRichText.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return KindText, nil
	case "richtext", "rich-text", "rich":
		return KindRichText, nil
	case "image", "img":
		return KindImage, nil
	case "file":
		return KindFile, nil
	case "link", "url":
		return KindLink, nil
	case "color", "colour":
		return KindColor, nil
	}
	return "", fmt.Errorf("unknown content kind %q", s)
}

// Metadata keys.
const (
	MetaPath       = "path"
	MetaName       = "name"
	MetaTitle      = "title"
	MetaOGTitle    = "og_title"
	MetaDimensions = "dimensions"
	MetaRichMIME   = "rich_mime"
)

// Content is the payload of a clip. Data is the captured value; Edited, when
// set, replaces it for display and pasting.
type Content struct {
	Kind      Kind              `json:"kind"`
	Data      []byte            `json:"data"`
	Edited    []byte            `json:"edited,omitempty"`
	Rich      []byte            `json:"rich,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	LinkImage []byte            `json:"link_image,omitempty"`
	Favicon   []byte            `json:"favicon,omitempty"`
}

// Text creates plain text content.
func Text(s string) Content {
	return Content{Kind: KindText, Data: []byte(s)}
}

// RichText creates rich text content; plain is kept for text-only targets.
func RichText(plain string, rich []byte, mime string) Content {
	return Content{
		Kind:     KindRichText,
		Data:     []byte(plain),
		Rich:     rich,
		Metadata: map[string]string{MetaRichMIME: mime},
	}
}

// Image creates image content from PNG bytes.
func Image(pngData []byte) Content {
	c := Content{Kind: KindImage, Data: pngData}
	if cfg, err := png.DecodeConfig(bytes.NewReader(pngData)); err == nil {
		c.Metadata = map[string]string{MetaDimensions: fmt.Sprintf("%d×%d", cfg.Width, cfg.Height)}
	}
	return c
}

// Link creates link content. title may be empty.
func Link(rawURL, title string) Content {
	c := Content{Kind: KindLink, Data: []byte(rawURL)}
	if title != "" {
		c.Metadata = map[string]string{MetaTitle: title}
	}
	return c
}

// File creates file content for an absolute path.
func File(path string) Content {
	return Content{
		Kind:     KindFile,
		Data:     []byte(path),
		Metadata: map[string]string{MetaPath: path, MetaName: filepath.Base(path)},
	}
}

// Color creates color content from a hex string, stored as #RRGGBB[AA] in
// upper case when it parses.
func Color(s string) Content {
	s = strings.TrimSpace(s)
	if _, err := ParseHex(s); err == nil {
		s = "#" + strings.ToUpper(strings.TrimPrefix(s, "#"))
	}
	return Content{Kind: KindColor, Data: []byte(s)}
}

// Active returns the edited data if present, otherwise the original.
func (c Content) Active() []byte {
	if c.Edited != nil {
		return c.Edited
	}
	return c.Data
}

// Text returns the textual value for text-bearing kinds and the path for
// files. Images have no text.
func (c Content) Text() string {
	switch c.Kind {
	case KindText, KindRichText, KindLink, KindColor:
		return string(c.Active())
	case KindFile:
		return c.FilePath()
	}
	return ""
}

// URL returns the parsed URL of a link.
func (c Content) URL() (*url.URL, bool) {
	if c.Kind != KindLink {
		return nil, false
	}
	u, err := url.Parse(strings.TrimSpace(string(c.Active())))
	if err != nil {
		return nil, false
	}
	return u, true
}

// FilePath returns the path of a file clip.
func (c Content) FilePath() string {
	if c.Kind != KindFile {
		return ""
	}
	if p := c.Metadata[MetaPath]; p != "" {
		return p
	}
	return string(c.Data)
}

// FileName returns the base name of a file clip.
func (c Content) FileName() string {
	if c.Kind != KindFile {
		return ""
	}
	if n := c.Metadata[MetaName]; n != "" {
		return n
	}
	return filepath.Base(c.FilePath())
}

// Color returns the parsed color of a color clip.
func (c Content) Color() (RGBA, bool) {
	if c.Kind != KindColor {
		return RGBA{}, false
	}
	rgba, err := ParseHex(string(c.Active()))
	if err != nil {
		return RGBA{}, false
	}
	return rgba, true
}

// LinkTitle prefers og:title over the page title.
func (c Content) LinkTitle() string {
	if c.Kind != KindLink {
		return ""
	}
	if t := c.Metadata[MetaOGTitle]; t != "" {
		return t
	}
	return c.Metadata[MetaTitle]
}

// UpdateLinkMetadata merges fetched metadata into a link clip. Empty values
// leave existing ones untouched. It reports whether anything changed.
func (c *Content) UpdateLinkMetadata(ogTitle string, ogImage, favicon []byte) bool {
	if c.Kind != KindLink {
		return false
	}
	changed := false
	if ogTitle != "" && c.Metadata[MetaOGTitle] != ogTitle {
		if c.Metadata == nil {
			c.Metadata = map[string]string{}
		}
		c.Metadata[MetaOGTitle] = ogTitle
		changed = true
	}
	if len(ogImage) > 0 {
		c.LinkImage = ogImage
		changed = true
	}
	if len(favicon) > 0 {
		c.Favicon = favicon
		changed = true
	}
	return changed
}

// Fingerprint identifies content for dedupe: two clips with the same kind
// and active data are the same clip.
func (c Content) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(c.Kind))
	h.Write([]byte{0})
	h.Write(c.Active())
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Preview returns a single-line summary at most n runes long.
func (c Content) Preview(n int) string {
	var s string
	switch c.Kind {
	case KindImage:
		s = "Image"
		if d := c.Metadata[MetaDimensions]; d != "" {
			s += " " + d
		}
	case KindFile:
		s = c.FileName()
	case KindLink:
		s = string(c.Active())
		if t := c.LinkTitle(); t != "" {
			s = t + " — " + s
		}
	default:
		s = string(c.Active())
	}
	s = strings.Join(strings.Fields(s), " ")
	if n > 0 && utf8.RuneCountInString(s) > n {
		r := []rune(s)
		s = string(r[:n]) + "…"
	}
	return s
}

// Representations returns the clipboard items to write when pasting c. In
// plain mode only text/plain is written if the content has any text.
func (c Content) Representations(plain bool) []message.Item {
	if plain {
		if t := c.Text(); t != "" {
			return []message.Item{message.NewTextItem(t)}
		}
	}
	switch c.Kind {
	case KindText, KindColor:
		return []message.Item{message.NewTextItem(string(c.Active()))}
	case KindRichText:
		items := []message.Item{message.NewTextItem(string(c.Active()))}
		if len(c.Rich) > 0 && c.Edited == nil {
			mime := c.Metadata[MetaRichMIME]
			if mime == "" {
				mime = message.MIMEHTML
			}
			items = append(items, message.NewBinaryItem(mime, c.Rich))
		}
		return items
	case KindImage:
		return []message.Item{message.NewBinaryItem(message.MIMEPNG, c.Active())}
	case KindLink:
		u := strings.TrimSpace(string(c.Active()))
		return []message.Item{
			message.NewTextItem(u),
			message.NewBinaryItem(message.MIMEURIList, []byte(u)),
		}
	case KindFile:
		p := c.FilePath()
		return []message.Item{
			message.NewBinaryItem(message.MIMEURIList, []byte(fileURI(p))),
			message.NewTextItem(p),
		}
	}
	return nil
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
