package extract

import (
	"slices"
	"testing"

	"github.com/hazyhaar/plurkive/backup"
)

func str(s string) *string { return &s }

func TestURLs(t *testing.T) {
	// WHAT: URL matching stops at whitespace, CJK prose and brackets, and
	// sheds trailing sentence punctuation.
	cases := []struct {
		in   string
		want []string
	}{
		{"see https://example.com/page for details", []string{"https://example.com/page"}},
		{"link: https://example.com/a.", []string{"https://example.com/a"}},
		{"看這個https://example.com/x真的很棒", []string{"https://example.com/x"}},
		{"(https://example.com/paren)", []string{"https://example.com/paren"}},
		{"http://a.example/ and https://b.example/", []string{"http://a.example/", "https://b.example/"}},
		{"dup https://x.example/ twice https://x.example/", []string{"https://x.example/"}},
		{"no links here", nil},
		{"ftp://not.matched/", nil},
	}
	for _, c := range cases {
		if got := URLs(c.in); !slices.Equal(got, c.want) {
			t.Errorf("URLs(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestIsImageURL(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://example.com/pic.jpg", true},
		{"https://example.com/pic.PNG", true},
		{"https://example.com/pic.webp?size=large", true},
		{"https://example.com/page.html", false},
		{"https://example.com/pic.jpg/view", false},
		{"https://example.com/", false},
	}
	for _, c := range cases {
		if got := IsImageURL(c.url); got != c.want {
			t.Errorf("IsImageURL(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func TestLinksProvenance(t *testing.T) {
	// WHAT: The same URL referenced from a plurk and a response yields one
	// candidate carrying both ids; distinct URLs stay separate.
	plurks := []backup.Plurk{
		{ID: 1, Content: str("read https://example.com/a now")},
		{ID: 2, Content: str("also https://example.com/a and https://example.com/b")},
		{ID: 3, Content: nil},
	}
	responses := []backup.Response{
		{ID: 9, Content: str("re: https://example.com/a")},
	}

	links := Links(plurks, responses)
	if len(links) != 2 {
		t.Fatalf("want 2 distinct urls, got %d: %v", len(links), links)
	}

	a := links["https://example.com/a"]
	if !slices.Equal(a.PlurkIDs, []int64{1, 2}) || !slices.Equal(a.ResponseIDs, []int64{9}) {
		t.Fatalf("provenance for /a = %+v", a)
	}
	b := links["https://example.com/b"]
	if !slices.Equal(b.PlurkIDs, []int64{2}) || len(b.ResponseIDs) != 0 {
		t.Fatalf("provenance for /b = %+v", b)
	}
}
