package content

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.klb.dev/clipstack/internal/message"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		items    []message.Item
		wantOK   bool
		wantKind Kind
		wantText string
	}{
		{
			name:     "plain text",
			items:    []message.Item{message.NewTextItem("hello world")},
			wantOK:   true,
			wantKind: KindText,
			wantText: "hello world",
		},
		{
			name:   "whitespace only",
			items:  []message.Item{message.NewTextItem(" \n\t ")},
			wantOK: false,
		},
		{
			name:   "nothing",
			items:  nil,
			wantOK: false,
		},
		{
			name:     "link",
			items:    []message.Item{message.NewTextItem("  https://example.com/a?b=c \n")},
			wantOK:   true,
			wantKind: KindLink,
			wantText: "https://example.com/a?b=c",
		},
		{
			name:     "url inside sentence stays text",
			items:    []message.Item{message.NewTextItem("see https://example.com")},
			wantOK:   true,
			wantKind: KindText,
			wantText: "see https://example.com",
		},
		{
			name:     "mailto stays text",
			items:    []message.Item{message.NewTextItem("mailto:a@b.c")},
			wantOK:   true,
			wantKind: KindText,
			wantText: "mailto:a@b.c",
		},
		{
			name:     "color",
			items:    []message.Item{message.NewTextItem("#ff8800")},
			wantOK:   true,
			wantKind: KindColor,
			wantText: "#FF8800",
		},
		{
			name:     "bare hex stays text",
			items:    []message.Item{message.NewTextItem("deadbeef")},
			wantOK:   true,
			wantKind: KindText,
			wantText: "deadbeef",
		},
		{
			name: "rich text",
			items: []message.Item{
				message.NewTextItem("bold"),
				message.NewBinaryItem(message.MIMEHTML, []byte("<b>bold</b>")),
			},
			wantOK:   true,
			wantKind: KindRichText,
			wantText: "bold",
		},
		{
			name: "file from uri list",
			items: []message.Item{
				message.NewBinaryItem(message.MIMEURIList, []byte("# comment\nfile:///tmp/report.pdf\n")),
				message.NewTextItem("report.pdf"),
			},
			wantOK:   true,
			wantKind: KindFile,
			wantText: "/tmp/report.pdf",
		},
		{
			name:     "file url as text",
			items:    []message.Item{message.NewTextItem("file:///home/me/notes.txt")},
			wantOK:   true,
			wantKind: KindFile,
			wantText: "/home/me/notes.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.items)
			if ok != tt.wantOK {
				t.Fatalf("Classify() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Kind != tt.wantKind {
				t.Fatalf("Classify() kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if got.Text() != tt.wantText {
				t.Fatalf("Classify() text = %q, want %q", got.Text(), tt.wantText)
			}
		})
	}
}

func TestClassifyImage(t *testing.T) {
	data := pngBytes(t, 4, 3)
	got, ok := Classify([]message.Item{
		message.NewTextItem("caption"),
		message.NewBinaryItem(message.MIMEPNG, data),
	})
	if !ok || got.Kind != KindImage {
		t.Fatalf("Classify() = %v, %v; want image", got.Kind, ok)
	}
	if d := got.Metadata[MetaDimensions]; d != "4×3" {
		t.Fatalf("dimensions = %q, want 4×3", d)
	}
	if got.Text() != "" {
		t.Fatalf("image Text() = %q, want empty", got.Text())
	}
}

func TestRepresentations(t *testing.T) {
	tests := []struct {
		name    string
		content Content
		plain   bool
		want    []string
	}{
		{name: "text", content: Text("a"), want: []string{message.MIMEText}},
		{name: "rich", content: RichText("a", []byte("<i>a</i>"), message.MIMEHTML), want: []string{message.MIMEText, message.MIMEHTML}},
		{name: "rich plain", content: RichText("a", []byte("<i>a</i>"), message.MIMEHTML), plain: true, want: []string{message.MIMEText}},
		{name: "link", content: Link("https://x.dev", ""), want: []string{message.MIMEText, message.MIMEURIList}},
		{name: "file", content: File("/tmp/x"), want: []string{message.MIMEURIList, message.MIMEText}},
		{name: "color", content: Color("#000000"), want: []string{message.MIMEText}},
		{name: "image plain falls back", content: Content{Kind: KindImage, Data: []byte{1}}, plain: true, want: []string{message.MIMEPNG}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := message.Types(tt.content.Representations(tt.plain))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Representations() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	file := File("/tmp/a b.txt").Representations(false)
	if got := string(file[0].Data); got != "file:///tmp/a%20b.txt" {
		t.Fatalf("file uri = %q", got)
	}
}

func TestEditedDataWins(t *testing.T) {
	c := Text("original")
	fp := c.Fingerprint()
	c.Edited = []byte("edited")

	if c.Text() != "edited" {
		t.Fatalf("Text() = %q, want edited", c.Text())
	}
	if c.Fingerprint() == fp {
		t.Fatal("Fingerprint() unchanged after edit")
	}
	if got := message.Text(c.Representations(false)); got != "edited" {
		t.Fatalf("Representations() text = %q, want edited", got)
	}
}

func TestFingerprintDependsOnKind(t *testing.T) {
	if Text("#FFFFFF").Fingerprint() == Color("#FFFFFF").Fingerprint() {
		t.Fatal("text and color with the same bytes share a fingerprint")
	}
	if Text("a").Fingerprint() != Text("a").Fingerprint() {
		t.Fatal("Fingerprint() is not stable")
	}
}

func TestUpdateLinkMetadata(t *testing.T) {
	c := Link("https://example.com", "Example")
	if got := c.LinkTitle(); got != "Example" {
		t.Fatalf("LinkTitle() = %q", got)
	}
	if !c.UpdateLinkMetadata("OG Example", []byte{1}, nil) {
		t.Fatal("UpdateLinkMetadata() = false, want true")
	}
	if got := c.LinkTitle(); got != "OG Example" {
		t.Fatalf("LinkTitle() after update = %q", got)
	}
	if c.UpdateLinkMetadata("OG Example", nil, nil) {
		t.Fatal("UpdateLinkMetadata() with identical title = true")
	}

	text := Text("x")
	if text.UpdateLinkMetadata("t", nil, nil) {
		t.Fatal("UpdateLinkMetadata() on text = true")
	}
}

func TestPreview(t *testing.T) {
	if got := Text("line one\n  line two").Preview(0); got != "line one line two" {
		t.Fatalf("Preview() = %q", got)
	}
	if got := Text("abcdef").Preview(3); got != "abc…" {
		t.Fatalf("Preview(3) = %q", got)
	}
	if got := File("/var/log/syslog").Preview(0); got != "syslog" {
		t.Fatalf("file Preview() = %q", got)
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#FF000080")
	if err != nil {
		t.Fatalf("ParseHex() error = %v", err)
	}
	if c.R != 1 || c.G != 0 || c.B != 0 || math.Abs(c.A-128.0/255) > 1e-9 {
		t.Fatalf("ParseHex() = %+v", c)
	}
	if c.Hex() != "#FF0000" {
		t.Fatalf("Hex() = %q", c.Hex())
	}

	for _, bad := range []string{"", "#FFF", "#GGGGGG", "#1234567"} {
		if _, err := ParseHex(bad); !errors.Is(err, ErrInvalidColor) {
			t.Errorf("ParseHex(%q) error = %v, want ErrInvalidColor", bad, err)
		}
	}

	white, _ := ParseHex("ffffff")
	black, _ := ParseHex("000000")
	if !white.IsLight() || black.IsLight() {
		t.Fatalf("IsLight() white=%v black=%v", white.IsLight(), black.IsLight())
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"Link": KindLink, "rich-text": KindRichText, "colour": KindColor} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("pdf"); err == nil {
		t.Error("ParseKind(pdf) error = nil")
	}
}
