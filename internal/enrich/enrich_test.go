package enrich

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hazyhaar/plurkive/internal/store"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := store.ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.New(db)
}

func seedPending(t *testing.T, st *store.Store, urls ...string) {
	t.Helper()
	for _, u := range urls {
		if _, err := st.UpsertLink(context.Background(), u, store.Sources{}); err != nil {
			t.Fatal(err)
		}
	}
}

// fakeFetcher scripts per-URL outcomes. Each call consumes the next step
// for that URL; the last step repeats.
type fakeFetcher struct {
	steps  map[string][]fetchStep
	calls  map[string]int
	onCall func(url string)
}

type fetchStep struct {
	res Result
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (Result, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	n := f.calls[url]
	f.calls[url] = n + 1
	if f.onCall != nil {
		f.onCall(url)
	}
	steps := f.steps[url]
	if len(steps) == 0 {
		return Result{}, fmt.Errorf("unscripted url %s", url)
	}
	if n >= len(steps) {
		n = len(steps) - 1
	}
	return steps[n].res, steps[n].err
}

func str(s string) *string { return &s }

func fastConfig() Config {
	return Config{Timeout: time.Second, Attempts: 3, Backoff: time.Millisecond}
}

func TestRunSuccess(t *testing.T) {
	// WHAT: A clean fetch lands success with its OG fields persisted.
	st := newTestStore(t)
	seedPending(t, st, "https://ok.example/")
	f := &fakeFetcher{steps: map[string][]fetchStep{
		"https://ok.example/": {{res: Result{Status: store.StatusSuccess, Title: str("T"), SiteName: str("S")}}},
	}}

	report, err := New(st, f, fastConfig()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Processed != 1 || report.ByStatus[store.StatusSuccess] != 1 {
		t.Fatalf("report = %+v", report)
	}

	l, err := st.GetLink(context.Background(), "https://ok.example/")
	if err != nil {
		t.Fatal(err)
	}
	if l.Status != store.StatusSuccess || l.OGTitle == nil || *l.OGTitle != "T" || l.OGSiteName == nil {
		t.Fatalf("link = %+v", l)
	}
	if l.FetchedAt == nil {
		t.Fatal("fetched_at not set on success")
	}
}

func TestRunImageShortCircuit(t *testing.T) {
	// WHAT: Direct image URLs settle as image without calling the fetcher.
	st := newTestStore(t)
	seedPending(t, st, "https://img.example/photo.jpg")
	f := &fakeFetcher{}

	report, err := New(st, f, fastConfig()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.ByStatus[store.StatusImage] != 1 {
		t.Fatalf("report = %+v", report)
	}
	if f.calls["https://img.example/photo.jpg"] != 0 {
		t.Fatal("fetcher called for an image URL")
	}
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	// WHAT: Transient failures are retried against the same URL until an
	// attempt succeeds.
	st := newTestStore(t)
	seedPending(t, st, "https://flaky.example/")
	f := &fakeFetcher{steps: map[string][]fetchStep{
		"https://flaky.example/": {
			{err: errors.New("connection reset")},
			{err: errors.New("connection reset")},
			{res: Result{Status: store.StatusNoOG}},
		},
	}}

	report, err := New(st, f, fastConfig()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.ByStatus[store.StatusNoOG] != 1 {
		t.Fatalf("report = %+v", report)
	}
	if f.calls["https://flaky.example/"] != 3 {
		t.Fatalf("calls = %d, want 3", f.calls["https://flaky.example/"])
	}
}

func TestRunTimeoutExhaustion(t *testing.T) {
	// WHAT: A URL whose every attempt times out ends in timeout, not
	// failed.
	st := newTestStore(t)
	seedPending(t, st, "https://slow.example/")
	f := &fakeFetcher{steps: map[string][]fetchStep{
		"https://slow.example/": {{err: context.DeadlineExceeded}},
	}}

	report, err := New(st, f, fastConfig()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.ByStatus[store.StatusTimeout] != 1 {
		t.Fatalf("report = %+v", report)
	}
	if f.calls["https://slow.example/"] != 3 {
		t.Fatalf("calls = %d, want all attempts used", f.calls["https://slow.example/"])
	}
}

func TestRunFinalAttemptClassifies(t *testing.T) {
	// WHAT: The recorded cause follows the final attempt: earlier timeouts
	// followed by a hard error settle as failed, and vice versa.
	st := newTestStore(t)
	seedPending(t, st, "https://a.example/", "https://b.example/")
	f := &fakeFetcher{steps: map[string][]fetchStep{
		"https://a.example/": {
			{err: context.DeadlineExceeded},
			{err: context.DeadlineExceeded},
			{err: errors.New("dns failure")},
		},
		"https://b.example/": {
			{err: errors.New("dns failure")},
			{err: errors.New("dns failure")},
			{err: context.DeadlineExceeded},
		},
	}}

	report, err := New(st, f, fastConfig()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.ByStatus[store.StatusFailed] != 1 || report.ByStatus[store.StatusTimeout] != 1 {
		t.Fatalf("report = %+v", report)
	}

	a, _ := st.GetLink(context.Background(), "https://a.example/")
	if a.Status != store.StatusFailed {
		t.Fatalf("a status = %q, want failed (final attempt was a hard error)", a.Status)
	}
	b, _ := st.GetLink(context.Background(), "https://b.example/")
	if b.Status != store.StatusTimeout {
		t.Fatalf("b status = %q, want timeout (final attempt timed out)", b.Status)
	}
}

func TestRunLimit(t *testing.T) {
	// WHAT: Limit bounds a run to the oldest pending rows; the rest stay
	// pending for the next run.
	st := newTestStore(t)
	seedPending(t, st, "https://one.example/", "https://two.example/", "https://three.example/")
	f := &fakeFetcher{steps: map[string][]fetchStep{
		"https://one.example/":   {{res: Result{Status: store.StatusNoOG}}},
		"https://two.example/":   {{res: Result{Status: store.StatusNoOG}}},
		"https://three.example/": {{res: Result{Status: store.StatusNoOG}}},
	}}

	cfg := fastConfig()
	cfg.Limit = 2
	report, err := New(st, f, cfg).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Processed != 2 {
		t.Fatalf("processed = %d", report.Processed)
	}

	counts, err := st.StatusCounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts[store.StatusPending] != 1 || counts[store.StatusNoOG] != 2 {
		t.Fatalf("counts = %v", counts)
	}
	if f.calls["https://three.example/"] != 0 {
		t.Fatal("limit exceeded: newest row was fetched")
	}
}

func TestRunURLsTargetsGivenLinks(t *testing.T) {
	// WHAT: A targeted run fetches exactly the named URLs, ignoring Limit
	// and the rest of the pending backlog, and skips rows that are unknown
	// or already terminal.
	// WHY: Eager extraction must reach the links it just created even when
	// an older backlog would fill the configured run limit first.
	st := newTestStore(t)
	seedPending(t, st, "https://old1.example/", "https://old2.example/", "https://new.example/", "https://done.example/")
	if err := st.SetLinkResult(context.Background(), "https://done.example/", store.LinkResult{Status: store.StatusFailed}); err != nil {
		t.Fatal(err)
	}
	f := &fakeFetcher{steps: map[string][]fetchStep{
		"https://new.example/": {{res: Result{Status: store.StatusNoOG}}},
	}}

	cfg := fastConfig()
	cfg.Limit = 1
	report, err := New(st, f, cfg).RunURLs(context.Background(),
		[]string{"https://new.example/", "https://done.example/", "https://never-seen.example/"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Processed != 1 || report.ByStatus[store.StatusNoOG] != 1 {
		t.Fatalf("report = %+v", report)
	}

	counts, err := st.StatusCounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts[store.StatusPending] != 2 {
		t.Fatalf("backlog disturbed: counts = %v", counts)
	}
	for _, u := range []string{"https://old1.example/", "https://old2.example/", "https://done.example/"} {
		if f.calls[u] != 0 {
			t.Fatalf("fetcher called for %s", u)
		}
	}
}

func TestRunInterruption(t *testing.T) {
	// WHAT: Cancelling mid-run leaves already-committed rows terminal and
	// the rest pending; the partial report is still returned.
	st := newTestStore(t)
	seedPending(t, st, "https://one.example/", "https://two.example/")
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeFetcher{
		steps: map[string][]fetchStep{
			"https://one.example/": {{res: Result{Status: store.StatusSuccess}}},
			"https://two.example/": {{res: Result{Status: store.StatusSuccess}}},
		},
	}
	f.onCall = func(url string) {
		if url == "https://two.example/" {
			cancel()
		}
	}

	report, err := New(st, f, fastConfig()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if report.Processed != 1 {
		t.Fatalf("processed = %d, want the committed prefix", report.Processed)
	}

	counts, err := st.StatusCounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts[store.StatusSuccess] != 1 || counts[store.StatusPending] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}
