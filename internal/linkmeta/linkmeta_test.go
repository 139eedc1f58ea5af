package linkmeta

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetch(t *testing.T) {
	t.Parallel()
	img := pngBytes(t)
	var pageHits atomic.Int32
	var gotUA atomic.Value

	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
		gotUA.Store(r.UserAgent())
		fmt.Fprint(w, `<!doctype html><html><head>
<title>Plain title</title>
<meta content="Open &amp; Graph" property="og:title">
<meta name="twitter:image" content="/twitter.png">
<meta property="og:image" content="img/preview.png">
<link rel="apple-touch-icon" href="/touch.png">
<link rel="shortcut icon" href="/static/icon.png">
</head><body><meta property="og:title" content="ignored"></body></html>`)
	})
	mux.HandleFunc("/img/preview.png", func(w http.ResponseWriter, r *http.Request) { w.Write(img) })
	mux.HandleFunc("/static/icon.png", func(w http.ResponseWriter, r *http.Request) { w.Write(img) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(WithClient(srv.Client()))
	md, err := f.Fetch(t.Context(), srv.URL+"/article")
	if err != nil {
		t.Fatal(err)
	}
	want := Metadata{
		Title:      "Open & Graph",
		ImageURL:   srv.URL + "/img/preview.png",
		FaviconURL: srv.URL + "/static/icon.png",
		Image:      img,
		Favicon:    img,
	}
	if diff := cmp.Diff(want, md); diff != "" {
		t.Fatalf("metadata (-want +got):\n%s", diff)
	}
	if ua, _ := gotUA.Load().(string); ua != UserAgent {
		t.Fatalf("User-Agent = %q", ua)
	}

	if _, err := f.Fetch(t.Context(), srv.URL+"/article"); err != nil {
		t.Fatal(err)
	}
	if n := pageHits.Load(); n != 1 {
		t.Fatalf("page fetched %d times, want 1 (cached)", n)
	}
}

func TestFetchFallbacks(t *testing.T) {
	t.Parallel()
	img := pngBytes(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title> Only a title </title>
<meta name="twitter:image" content="/tw.png"></head></html>`)
	})
	mux.HandleFunc("/tw.png", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not an image</html>")
	})
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) { w.Write(img) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	md, err := New(WithClient(srv.Client())).Fetch(t.Context(), srv.URL+"/page")
	if err != nil {
		t.Fatal(err)
	}
	if md.Title != "Only a title" {
		t.Errorf("Title = %q", md.Title)
	}
	if md.ImageURL != srv.URL+"/tw.png" || md.Image != nil {
		t.Errorf("image %q (%d bytes), want URL kept and non-image body dropped", md.ImageURL, len(md.Image))
	}
	if md.FaviconURL != srv.URL+"/favicon.ico" || !bytes.Equal(md.Favicon, img) {
		t.Errorf("favicon %q (%d bytes)", md.FaviconURL, len(md.Favicon))
	}
	if !md.HasContent() {
		t.Error("HasContent() = false")
	}
}

func TestFetchErrorsAreNotCached(t *testing.T) {
	t.Parallel()
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "nope", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `<meta property="og:title" content="Back">`)
	}))
	defer srv.Close()

	f := New(WithClient(srv.Client()))
	if _, err := f.Fetch(t.Context(), srv.URL); err == nil {
		t.Fatal("Fetch succeeded on 503")
	}
	fail.Store(false)
	md, err := f.Fetch(t.Context(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if md.Title != "Back" {
		t.Fatalf("Title = %q", md.Title)
	}
}

func TestFetchRejectsNonHTTP(t *testing.T) {
	t.Parallel()
	_, err := New().Fetch(t.Context(), "ftp://example.com/file")
	if !errors.Is(err, ErrUnsupportedURL) {
		t.Fatalf("err = %v, want ErrUnsupportedURL", err)
	}
}

func TestHasContent(t *testing.T) {
	t.Parallel()
	if (Metadata{FaviconURL: "http://x/favicon.ico"}).HasContent() {
		t.Fatal("URLs alone count as content")
	}
}
