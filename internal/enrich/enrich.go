// CLAUDE:SUMMARY Enrichment runner: drives pending links to terminal status with timeout/retry/backoff.
// Package enrich walks the backlog of pending link_metadata rows and drives
// each one to exactly one terminal status. The metadata fetch itself is an
// external capability behind the Fetcher interface; this package owns the
// lifecycle: attempt timeouts, retries with backoff, cause classification,
// and the per-URL commit discipline that makes a run safe to interrupt.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/plurkive/internal/extract"
	"github.com/hazyhaar/plurkive/internal/store"
)

// Result is the outcome of a single successful fetch attempt.
type Result struct {
	Status      store.LinkStatus // StatusSuccess, StatusNoOG or StatusImage
	Title       *string
	Description *string
	SiteName    *string
}

// Fetcher retrieves OG metadata for one URL. Implementations must respect
// ctx cancellation; the runner applies the per-attempt deadline. A returned
// error marks the attempt failed and is classified by its cause.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Result, error)
}

// Config tunes one enrichment run.
type Config struct {
	Timeout  time.Duration // per-attempt deadline
	Attempts int           // fetch attempts per URL before settling
	Backoff  time.Duration // sleep before the second attempt, doubled each retry
	Limit    int           // max pending rows per run, 0 = no limit
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 2 * time.Second
	}
}

// Report is the operator-visible outcome of a run.
type Report struct {
	Processed int                      `json:"processed"`
	ByStatus  map[store.LinkStatus]int `json:"by_status"`
}

// Runner processes pending links against a Fetcher.
type Runner struct {
	store   *store.Store
	fetcher Fetcher
	cfg     Config
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a Runner.
func New(st *store.Store, fetcher Fetcher, cfg Config, opts ...Option) *Runner {
	cfg.defaults()
	r := &Runner{store: st, fetcher: fetcher, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes up to cfg.Limit pending rows in insertion order. Every
// URL's transition commits independently: cancelling mid-run leaves a
// strict prefix of rows settled and the rest still pending, and the partial
// report is returned alongside ctx's error.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	pending, err := r.store.PendingLinks(ctx, r.cfg.Limit)
	if err != nil {
		return Report{ByStatus: make(map[store.LinkStatus]int)}, err
	}
	urls := make([]string, len(pending))
	for i, link := range pending {
		urls[i] = link.URL
	}
	r.logger.Info("enrich: run starting", "pending", len(pending), "limit", r.cfg.Limit)
	return r.run(ctx, urls)
}

// RunURLs drives exactly the named URLs through the pipeline, skipping any
// that are unknown or no longer pending. Eager extraction uses this so the
// links it just discovered are fetched regardless of how large the older
// pending backlog is. cfg.Limit does not apply.
func (r *Runner) RunURLs(ctx context.Context, urls []string) (Report, error) {
	r.logger.Info("enrich: targeted run starting", "urls", len(urls))
	return r.run(ctx, urls)
}

func (r *Runner) run(ctx context.Context, urls []string) (Report, error) {
	report := Report{ByStatus: make(map[store.LinkStatus]int)}

	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		link, err := r.store.GetLink(ctx, url)
		if err != nil {
			return report, err
		}
		if link == nil || link.Status != store.StatusPending {
			continue
		}

		res := r.processURL(ctx, url)
		if err := ctx.Err(); err != nil {
			// Cancelled mid-fetch: leave the row pending for the next run.
			return report, err
		}
		if err := r.store.SetLinkResult(ctx, url, res); err != nil {
			return report, fmt.Errorf("enrich: persist %s: %w", url, err)
		}
		report.Processed++
		report.ByStatus[res.Status]++
	}

	r.logger.Info("enrich: run complete", "processed", report.Processed)
	return report, nil
}

// processURL resolves one URL to a terminal result. Direct image URLs skip
// the fetch entirely. Otherwise the fetch is attempted cfg.Attempts times
// against the same URL with exponential backoff between attempts; when all
// attempts are exhausted the recorded cause follows the final attempt, with
// timeout taking precedence over generic failure.
func (r *Runner) processURL(ctx context.Context, url string) store.LinkResult {
	if extract.IsImageURL(url) {
		return store.LinkResult{Status: store.StatusImage}
	}

	var lastTimedOut bool
	for attempt := 0; attempt < r.cfg.Attempts; attempt++ {
		if attempt > 0 {
			if !sleepCtx(ctx, r.cfg.Backoff<<(attempt-1)) {
				break
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		res, err := r.fetcher.Fetch(attemptCtx, url)
		timedOut := errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			return store.LinkResult{
				Status:        res.Status,
				OGTitle:       res.Title,
				OGDescription: res.Description,
				OGSiteName:    res.SiteName,
			}
		}
		if ctx.Err() != nil {
			break
		}

		lastTimedOut = timedOut
		r.logger.Warn("enrich: fetch attempt failed",
			"url", url, "attempt", attempt+1, "attempts", r.cfg.Attempts,
			"timed_out", timedOut, "error", err)
	}

	if lastTimedOut {
		return store.LinkResult{Status: store.StatusTimeout}
	}
	return store.LinkResult{Status: store.StatusFailed}
}

// sleepCtx waits d or until ctx is done; reports whether the full wait
// elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
