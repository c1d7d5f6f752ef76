// CLAUDE:SUMMARY Plain-HTTP OG metadata fetcher: meta-tag walk, image content-type short circuit, sanitized fields.
// Package ogfetch retrieves Open Graph metadata for a URL. Two
// implementations of the same capability: HTTPFetcher does a plain GET and
// parses the static HTML, BrowserFetcher renders the page in headless
// Chrome for sites that only emit OG tags client-side. Both sanitize
// fetched text before it is persisted and indexed.
package ogfetch

import (
	"context"
	"fmt"
	stdhtml "html"
	"io"
	"net/http"
	"strings"

	"github.com/hazyhaar/plurkive/internal/enrich"
	"github.com/hazyhaar/plurkive/internal/store"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Config configures an HTTPFetcher.
type Config struct {
	MaxBytes  int64  // max response body read. Default: 1MB.
	UserAgent string // sent with requests
	// URLValidator validates URLs before fetch and on every redirect hop
	// (SSRF prevention). Default: ValidateURL.
	URLValidator func(string) error
}

func (c *Config) defaults() {
	if c.MaxBytes <= 0 {
		c.MaxBytes = 1 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "plurkive/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = ValidateURL
	}
}

// HTTPFetcher fetches OG metadata over plain HTTP.
type HTTPFetcher struct {
	client *http.Client
	config Config
}

// NewHTTP creates an HTTPFetcher with SSRF protection on redirects. The
// per-attempt deadline comes from the caller's context, not the client.
func NewHTTP(cfg Config) *HTTPFetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &HTTPFetcher{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch implements enrich.Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (enrich.Result, error) {
	if err := f.config.URLValidator(url); err != nil {
		return enrich.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return enrich.Result{}, fmt.Errorf("ogfetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return enrich.Result{}, fmt.Errorf("ogfetch: get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return enrich.Result{}, fmt.Errorf("ogfetch: http %d", resp.StatusCode)
	}

	// Some image URLs carry no extension; the server's content type is the
	// second chance to classify them.
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return enrich.Result{Status: store.StatusImage}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return enrich.Result{}, fmt.Errorf("ogfetch: read body: %w", err)
	}
	return parseOG(string(body)), nil
}

// parseOG extracts og:title/og:description/og:site_name from an HTML
// document. A document with at least one OG tag is a success, with the
// <title> element standing in for a missing og:title; a document with none
// is no_og.
func parseOG(body string) enrich.Result {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return enrich.Result{Status: store.StatusNoOG}
	}

	var og struct{ title, desc, site, docTitle string }
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Meta:
				var prop, content string
				for _, a := range n.Attr {
					switch a.Key {
					case "property", "name":
						prop = a.Val
					case "content":
						content = a.Val
					}
				}
				switch prop {
				case "og:title":
					og.title = content
				case "og:description":
					og.desc = content
				case "og:site_name":
					og.site = content
				}
			case atom.Title:
				if n.FirstChild != nil && og.docTitle == "" {
					og.docTitle = n.FirstChild.Data
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if og.title == "" && og.desc == "" && og.site == "" {
		return enrich.Result{Status: store.StatusNoOG}
	}
	if og.title == "" {
		og.title = og.docTitle
	}
	return enrich.Result{
		Status:      store.StatusSuccess,
		Title:       sanitized(og.title),
		Description: sanitized(og.desc),
		SiteName:    sanitized(og.site),
	}
}

// maxFieldLen bounds persisted OG fields; some pages ship entire articles
// in og:description.
const maxFieldLen = 500

var sanitizePolicy = bluemonday.StrictPolicy()

// sanitized strips any markup from a fetched field, decodes entities,
// collapses whitespace and truncates. Returns nil for empty results so the
// column stays NULL.
func sanitized(s string) *string {
	s = stdhtml.UnescapeString(sanitizePolicy.Sanitize(s))
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil
	}
	if runes := []rune(s); len(runes) > maxFieldLen {
		s = string(runes[:maxFieldLen])
	}
	return &s
}
