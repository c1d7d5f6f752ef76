package ogfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hazyhaar/plurkive/internal/store"
)

// allowAll disables the SSRF guard so tests can hit httptest loopback
// servers.
func allowAll(string) error { return nil }

func testFetcher() *HTTPFetcher {
	return NewHTTP(Config{URLValidator: allowAll})
}

func TestHTTPFetchSuccess(t *testing.T) {
	// WHAT: A page with OG tags yields success with sanitized fields.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head>
			<title>Doc Title</title>
			<meta property="og:title" content="OG &amp; Title">
			<meta property="og:description" content="A   description">
			<meta property="og:site_name" content="Example Site">
		</head><body></body></html>`))
	}))
	defer srv.Close()

	res, err := testFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != store.StatusSuccess {
		t.Fatalf("status = %q", res.Status)
	}
	if res.Title == nil || *res.Title != "OG & Title" {
		t.Fatalf("title = %v", res.Title)
	}
	if res.Description == nil || *res.Description != "A description" {
		t.Fatalf("description = %v (whitespace must collapse)", res.Description)
	}
	if res.SiteName == nil || *res.SiteName != "Example Site" {
		t.Fatalf("site name = %v", res.SiteName)
	}
}

func TestHTTPFetchTitleFallback(t *testing.T) {
	// WHAT: og:title missing but other OG tags present: the document title
	// stands in.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Fallback</title>
			<meta property="og:description" content="desc"></head></html>`))
	}))
	defer srv.Close()

	res, err := testFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != store.StatusSuccess || res.Title == nil || *res.Title != "Fallback" {
		t.Fatalf("res = %+v", res)
	}
}

func TestHTTPFetchNoOG(t *testing.T) {
	// WHAT: A page without any OG tag is no_og, not an error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Plain</title></head><body>hi</body></html>`))
	}))
	defer srv.Close()

	res, err := testFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != store.StatusNoOG {
		t.Fatalf("status = %q", res.Status)
	}
}

func TestHTTPFetchImageContentType(t *testing.T) {
	// WHAT: An image content type short-circuits to image without parsing.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	res, err := testFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != store.StatusImage {
		t.Fatalf("status = %q", res.Status)
	}
}

func TestHTTPFetchErrorStatus(t *testing.T) {
	// WHAT: 4xx/5xx responses are fetch errors, to be classified by the
	// pipeline's retry logic.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := testFetcher().Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("404 did not error")
	}
}

func TestHTTPFetchBlocksUnsafeURLs(t *testing.T) {
	// WHAT: The default validator refuses private addresses and odd
	// schemes before any request goes out.
	f := NewHTTP(Config{})
	for _, u := range []string{
		"http://127.0.0.1/admin",
		"http://169.254.169.254/latest/meta-data/",
		"file:///etc/passwd",
		"gopher://x/",
	} {
		if _, err := f.Fetch(context.Background(), u); err == nil {
			t.Errorf("%s not blocked", u)
		}
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://example.com/page"); err != nil {
		t.Fatalf("public https rejected: %v", err)
	}
	if err := ValidateURL("http://10.0.0.8/"); err == nil {
		t.Fatal("private IP accepted")
	}
	if err := ValidateURL("ftp://example.com/"); err == nil {
		t.Fatal("ftp accepted")
	}
	if err := ValidateURL("http:///nohost"); err == nil {
		t.Fatal("hostless URL accepted")
	}
}

func TestSanitized(t *testing.T) {
	// WHAT: Fetched OG text is stripped of markup and normalized before it
	// reaches the database.
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{`<script>x</script>safe`, "safe"},
		{"<b>bold</b> claim", "bold claim"},
		{"a &amp; b", "a & b"},
	}
	for _, c := range cases {
		got := sanitized(c.in)
		if got == nil || *got != c.want {
			t.Errorf("sanitized(%q) = %v, want %q", c.in, got, c.want)
		}
	}
	if sanitized("  ") != nil {
		t.Error("blank input should sanitize to nil")
	}
	if sanitized("<br>") != nil {
		t.Error("markup-only input should sanitize to nil")
	}
}
