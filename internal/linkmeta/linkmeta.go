// Package linkmeta fetches preview metadata for link clips: the page's
// og:title, a preview image (og:image or twitter:image) and its favicon.
package linkmeta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	DefaultCacheSize = 256
	DefaultTimeout   = 10 * time.Second

	// UserAgent is sent with every request; many sites only serve Open Graph
	// tags to browsers.
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"

	maxPageSize  = 2 << 20
	maxImageSize = 5 << 20
)

var ErrUnsupportedURL = errors.New("only http and https links have metadata")

// Metadata is what a page says about itself. Image and Favicon hold image
// bytes, already checked to be images.
type Metadata struct {
	Title      string `json:"title,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	FaviconURL string `json:"favicon_url,omitempty"`
	Image      []byte `json:"image,omitempty"`
	Favicon    []byte `json:"favicon,omitempty"`
}

// HasContent reports whether anything useful was found.
func (m Metadata) HasContent() bool {
	return m.Title != "" || len(m.Image) > 0 || len(m.Favicon) > 0
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient replaces the HTTP client. Its timeout is left alone.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithCacheSize sets how many pages are remembered.
func WithCacheSize(n int) Option {
	return func(f *Fetcher) { f.cacheSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// Fetcher fetches and caches link metadata. It is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	cacheSize int
	cache     *lru.Cache[string, Metadata]
	log       *slog.Logger
}

// New returns a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultTimeout},
		cacheSize: DefaultCacheSize,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.cacheSize <= 0 {
		f.cacheSize = DefaultCacheSize
	}
	// lru.New only fails on a non-positive size.
	f.cache, _ = lru.New[string, Metadata](f.cacheSize)
	return f
}

// Fetch returns the metadata for rawURL. Successful results are cached;
// failures are not, so a later copy of the same link tries again.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Metadata, error) {
	if md, ok := f.cache.Get(rawURL); ok {
		return md, nil
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Metadata{}, fmt.Errorf("parse %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Metadata{}, fmt.Errorf("%q: %w", rawURL, ErrUnsupportedURL)
	}

	body, err := f.get(ctx, u.String(), maxPageSize)
	if err != nil {
		return Metadata{}, err
	}
	page := parse(body)

	md := Metadata{Title: page.ogTitle}
	if md.Title == "" {
		md.Title = page.title
	}
	if img := firstNonEmpty(page.ogImage, page.twitterImage); img != "" {
		md.ImageURL = resolve(u, img)
		md.Image = f.image(ctx, md.ImageURL)
	}
	if page.icon != "" {
		md.FaviconURL = resolve(u, page.icon)
	} else {
		md.FaviconURL = (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/favicon.ico"}).String()
	}
	md.Favicon = f.image(ctx, md.FaviconURL)

	f.cache.Add(rawURL, md)
	f.log.Debug("link metadata fetched", "url", rawURL, "title", md.Title,
		"image", len(md.Image), "favicon", len(md.Favicon))
	return md, nil
}

// Purge empties the cache.
func (f *Fetcher) Purge() { f.cache.Purge() }

// get fetches u and returns at most limit bytes of a 200 response.
func (f *Fetcher) get(ctx context.Context, u string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", u, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: %s", u, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	return data, nil
}

// image fetches u and keeps the body only if it sniffs as an image.
func (f *Fetcher) image(ctx context.Context, u string) []byte {
	data, err := f.get(ctx, u, maxImageSize)
	if err != nil {
		f.log.Debug("link image fetch failed", "url", u, "err", err)
		return nil
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		f.log.Debug("link image is not an image", "url", u)
		return nil
	}
	return data
}

type page struct {
	title        string
	ogTitle      string
	ogImage      string
	twitterImage string
	icon         string
	iconRank     int
}

// parse walks the document head. Parsing stops at <body>.
func parse(body []byte) page {
	var p page
	z := html.NewTokenizer(strings.NewReader(string(body)))
	inTitle := false
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return p
		case html.TextToken:
			if inTitle && p.title == "" {
				p.title = strings.TrimSpace(string(z.Text()))
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Title {
				inTitle = false
			}
			if atom.Lookup(name) == atom.Head {
				return p
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			a := atom.Lookup(name)
			switch a {
			case atom.Body:
				return p
			case atom.Title:
				inTitle = tt == html.StartTagToken
			case atom.Meta, atom.Link:
				if !hasAttr {
					continue
				}
				attrs := attributes(z)
				if a == atom.Meta {
					p.meta(attrs)
				} else {
					p.link(attrs)
				}
			}
		}
	}
}

func attributes(z *html.Tokenizer) map[string]string {
	attrs := map[string]string{}
	for {
		k, v, more := z.TagAttr()
		attrs[strings.ToLower(string(k))] = string(v)
		if !more {
			return attrs
		}
	}
}

func (p *page) meta(attrs map[string]string) {
	key := strings.ToLower(firstNonEmpty(attrs["property"], attrs["name"]))
	val := strings.TrimSpace(attrs["content"])
	if val == "" {
		return
	}
	switch key {
	case "og:title":
		setOnce(&p.ogTitle, val)
	case "og:image", "og:image:url":
		setOnce(&p.ogImage, val)
	case "twitter:image", "twitter:image:src":
		setOnce(&p.twitterImage, val)
	}
}

// link records the best icon: icon and shortcut icon beat apple-touch-icon.
func (p *page) link(attrs map[string]string) {
	href := strings.TrimSpace(attrs["href"])
	if href == "" {
		return
	}
	rank := 0
	for _, rel := range strings.Fields(strings.ToLower(attrs["rel"])) {
		switch rel {
		case "icon":
			rank = max(rank, 2)
		case "apple-touch-icon":
			rank = max(rank, 1)
		}
	}
	if rank > p.iconRank {
		p.icon, p.iconRank = href, rank
	}
}

func resolve(base *url.URL, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
