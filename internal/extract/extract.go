// CLAUDE:SUMMARY URL extraction from post text with source provenance; image-extension detection.
// Package extract scans normalized post text for URLs and aggregates them
// into candidate link records keyed by the literal URL string. Two textually
// different URLs are always distinct candidates, even when they resolve to
// the same resource.
package extract

import (
	"path"
	"regexp"
	"strings"

	"github.com/hazyhaar/plurkive/backup"
	"github.com/hazyhaar/plurkive/internal/store"
)

// urlRe matches http(s) URLs embedded in plain text. The character class
// stops at whitespace, quotes, brackets and CJK characters: exported posts
// butt URLs directly against CJK prose with no separator, so a Han
// character ends the URL.
var urlRe = regexp.MustCompile(`https?://[^\s"'<>()\[\]{}\x{3000}-\x{303F}\x{4E00}-\x{9FFF}\x{3040}-\x{30FF}\x{AC00}-\x{D7AF}]+`)

// trailingPunct is stripped from match ends; sentence punctuation after a
// URL is prose, not part of it.
const trailingPunct = ".,;:!?"

// URLs returns the distinct URLs found in text, in first-occurrence order.
func URLs(text string) []string {
	matches := urlRe.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var urls []string
	for _, m := range matches {
		u := strings.TrimRight(m, trailingPunct)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".svg": true,
}

// IsImageURL reports whether the URL path ends in a known image extension.
// Query string and fragment are ignored.
func IsImageURL(url string) bool {
	u := url
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return imageExtensions[strings.ToLower(path.Ext(u))]
}

// Links extracts every URL from the given records and aggregates provenance
// per distinct URL: which plurks and which responses referenced it.
func Links(plurks []backup.Plurk, responses []backup.Response) map[string]store.Sources {
	links := make(map[string]store.Sources)

	for _, p := range plurks {
		if p.Content == nil {
			continue
		}
		for _, u := range URLs(*p.Content) {
			src := links[u]
			src.Merge(store.Sources{PlurkIDs: []int64{p.ID}})
			links[u] = src
		}
	}
	for _, r := range responses {
		if r.Content == nil {
			continue
		}
		for _, u := range URLs(*r.Content) {
			src := links[u]
			src.Merge(store.Sources{ResponseIDs: []int64{r.ID}})
			links[u] = src
		}
	}
	return links
}
