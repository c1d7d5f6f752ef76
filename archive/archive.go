// CLAUDE:SUMMARY Service facade: open archive, import months, extract links, enrich, search, maintenance ops.
// Package archive ties the parser, store, extractor and enrichment pipeline
// into the operations the CLI and the search API expose. It re-exports the
// store types callers need so internal packages stay internal.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hazyhaar/plurkive/backup"
	"github.com/hazyhaar/plurkive/dbopen"
	"github.com/hazyhaar/plurkive/internal/enrich"
	"github.com/hazyhaar/plurkive/internal/extract"
	"github.com/hazyhaar/plurkive/internal/store"
)

// Re-exported store types; see internal/store for semantics.
type (
	Link           = store.Link
	LinkStatus     = store.LinkStatus
	Sources        = store.Sources
	MergeCounts    = store.MergeCounts
	Stats          = store.Stats
	SearchMode     = store.SearchMode
	SearchOptions  = store.SearchOptions
	ReindexCounts  = store.ReindexCounts
	ImportLogEntry = store.ImportLogEntry
	SearchLogEntry = store.SearchLogEntry
	EnrichReport   = enrich.Report
	EnrichConfig   = enrich.Config
	Fetcher        = enrich.Fetcher
)

const (
	StatusPending = store.StatusPending
	StatusImage   = store.StatusImage
	StatusSuccess = store.StatusSuccess
	StatusNoOG    = store.StatusNoOG
	StatusFailed  = store.StatusFailed
	StatusTimeout = store.StatusTimeout

	ModeAuto = store.ModeAuto
	ModeFTS  = store.ModeFTS
	ModeLike = store.ModeLike

	// DefaultPerPage is the search page size when the caller sets none.
	DefaultPerPage = store.DefaultPerPage
)

// ParseLinkStatus validates an operator-supplied status string.
func ParseLinkStatus(raw string) (LinkStatus, error) { return store.ParseLinkStatus(raw) }

// ParseSearchMode validates an operator-supplied mode string.
func ParseSearchMode(raw string) (SearchMode, error) { return store.ParseSearchMode(raw) }

// rescanMonths is how far behind the newest stored post an incremental
// import rescans. Responses keep arriving on old plurks for a while, so
// re-reading recent months picks them up; insert-or-ignore makes the
// overlap free.
const rescanMonths = 6

// Service exposes the archive operations.
type Service struct {
	store   *store.Store
	db      *sql.DB
	parser  *backup.Parser
	fetcher enrich.Fetcher
	enrich  enrich.Config
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithFetcher wires the OG metadata fetcher and its run configuration.
// Without one, FetchPending and eager extraction return an error.
func WithFetcher(f enrich.Fetcher, cfg enrich.Config) Option {
	return func(s *Service) {
		s.fetcher = f
		s.enrich = cfg
	}
}

// Open opens (creating if needed) the archive database and returns a
// ready Service. Call Close when done.
func Open(dbPath string, opts ...Option) (*Service, error) {
	db, err := dbopen.Open(dbPath,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(store.Schema),
	)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", dbPath, err)
	}
	s := newService(db, opts...)
	return s, nil
}

func newService(db *sql.DB, opts ...Option) *Service {
	s := &Service{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.store = store.New(db, store.WithLogger(s.logger))
	s.parser = backup.NewParser(s.logger)
	return s
}

// Close closes the underlying database.
func (s *Service) Close() error { return s.db.Close() }

// ImportReport is the operator-visible outcome of one import.
type ImportReport struct {
	Months         int    `json:"months"`
	AddedPlurks    int    `json:"added_plurks"`
	AddedResponses int    `json:"added_responses"`
	StartMonth     string `json:"start_month,omitempty"`
	EndMonth       string `json:"end_month,omitempty"`
}

// Import merges export months from root into the archive. start/end are
// "YYYY-MM" bounds; empty start means automatic: everything for an empty
// archive, or the window from rescanMonths before the newest stored post
// for an incremental run. Each month commits in its own transaction, so a
// failure loses at most the month in flight.
func (s *Service) Import(ctx context.Context, root, start, end string) (ImportReport, error) {
	var report ImportReport

	if err := backup.ValidateDir(root); err != nil {
		return report, err
	}

	if start == "" {
		latest, err := s.store.LatestPosted(ctx)
		if err != nil {
			return report, err
		}
		start, end = scanRange(latest, time.Now().UTC())
	}
	report.StartMonth, report.EndMonth = start, end

	files, err := backup.PlurkFiles(backup.PlurksDir(root), start, end)
	if err != nil {
		return report, err
	}
	s.logger.Info("archive: import starting", "months", len(files), "start", start, "end", end)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		key, plurks, err := s.parser.ParsePlurkFile(file)
		if err != nil {
			return report, err
		}

		baseIDs := make(map[string]bool, len(plurks))
		for _, p := range plurks {
			baseIDs[p.BaseID] = true
		}
		respFiles, err := backup.ResponseFiles(backup.ResponsesDir(root), baseIDs)
		if err != nil {
			return report, err
		}
		var responses []backup.Response
		for _, rf := range respFiles {
			_, rs, err := s.parser.ParseResponseFile(rf)
			if err != nil {
				return report, err
			}
			responses = append(responses, rs...)
		}

		month := monthKeyFromFile(key)
		counts, err := s.store.MergeMonth(ctx, month, plurks, responses)
		if err != nil {
			return report, err
		}
		report.Months++
		report.AddedPlurks += counts.AddedPlurks
		report.AddedResponses += counts.AddedResponses
	}

	s.logger.Info("archive: import complete",
		"months", report.Months, "added_plurks", report.AddedPlurks,
		"added_responses", report.AddedResponses)
	return report, nil
}

// scanRange computes the automatic import window. Nil latest (empty
// archive) selects everything.
func scanRange(latest *time.Time, now time.Time) (start, end string) {
	if latest == nil {
		return "", ""
	}
	return latest.AddDate(0, -rescanMonths, 0).Format("2006-01"), now.Format("2006-01")
}

// monthKeyFromFile normalizes the export's "2008_12" bracket key to the
// "2008-12" month form used everywhere else.
func monthKeyFromFile(key string) string {
	if len(key) == 7 && key[4] == '_' {
		return key[:4] + "-" + key[5:]
	}
	return key
}

// ExtractReport is the operator-visible outcome of one extraction run.
type ExtractReport struct {
	URLs    int            `json:"urls"`
	Created int            `json:"created"`
	Merged  int            `json:"merged"`
	Enrich  *enrich.Report `json:"enrich,omitempty"`
}

// ExtractLinks scans stored content for URLs and upserts link candidates.
// month is "YYYYMM" to bound the scan to one month's posts, or empty for
// the whole archive; merging is keyed by URL either way, so re-extracting
// any range only grows provenance. With eager set, exactly the links this
// run created are fetched immediately, independent of any older pending
// backlog.
func (s *Service) ExtractLinks(ctx context.Context, month string, eager bool) (ExtractReport, error) {
	var report ExtractReport

	from, to, err := monthBounds(month)
	if err != nil {
		return report, err
	}
	plurks, err := s.store.ListPlurks(ctx, from, to)
	if err != nil {
		return report, err
	}
	responses, err := s.store.ListResponses(ctx, from, to)
	if err != nil {
		return report, err
	}

	links := extract.Links(plurks, responses)
	report.URLs = len(links)

	// Deterministic upsert order.
	urls := make([]string, 0, len(links))
	for u := range links {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	var createdURLs []string
	for _, u := range urls {
		created, err := s.store.UpsertLink(ctx, u, links[u])
		if err != nil {
			return report, err
		}
		if created {
			report.Created++
			createdURLs = append(createdURLs, u)
		} else {
			report.Merged++
		}
	}
	s.logger.Info("archive: links extracted",
		"month", month, "urls", report.URLs, "created", report.Created, "merged", report.Merged)

	if eager && len(createdURLs) > 0 {
		if s.fetcher == nil {
			return report, fmt.Errorf("archive: no OG fetcher configured")
		}
		runner := enrich.New(s.store, s.fetcher, s.enrich, enrich.WithLogger(s.logger))
		enrichReport, err := runner.RunURLs(ctx, createdURLs)
		if err != nil {
			return report, err
		}
		report.Enrich = &enrichReport
	}
	return report, nil
}

// monthBounds converts a "YYYYMM" month into a [from, to) time window.
func monthBounds(month string) (from, to *time.Time, err error) {
	if month == "" {
		return nil, nil, nil
	}
	key, err := backup.MonthKey(month)
	if err != nil {
		return nil, nil, err
	}
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: parse month %q: %w", month, err)
	}
	f := t
	u := t.AddDate(0, 1, 0)
	return &f, &u, nil
}

// FetchPending runs the enrichment pipeline over up to limit pending links
// (0 = no limit, subject to the configured default).
func (s *Service) FetchPending(ctx context.Context, limit int) (enrich.Report, error) {
	if s.fetcher == nil {
		return enrich.Report{}, fmt.Errorf("archive: no OG fetcher configured")
	}
	cfg := s.enrich
	cfg.Limit = limit
	runner := enrich.New(s.store, s.fetcher, cfg, enrich.WithLogger(s.logger))
	return runner.Run(ctx)
}

// LinkStatusCounts reports current row counts per link status.
func (s *Service) LinkStatusCounts(ctx context.Context) (map[LinkStatus]int, error) {
	return s.store.StatusCounts(ctx)
}

// ResetLinks returns every link in a terminal status to pending.
func (s *Service) ResetLinks(ctx context.Context, status LinkStatus) (int64, error) {
	return s.store.ResetLinks(ctx, status)
}

// SearchPlurks searches plurk content. Returns the page, the total match
// count and the resolved mode.
func (s *Service) SearchPlurks(ctx context.Context, query string, opts SearchOptions) ([]backup.Plurk, int, SearchMode, error) {
	return s.store.SearchPlurks(ctx, query, opts)
}

// SearchResponses searches response content.
func (s *Service) SearchResponses(ctx context.Context, query string, opts SearchOptions) ([]backup.Response, int, SearchMode, error) {
	return s.store.SearchResponses(ctx, query, opts)
}

// SearchLinks searches link URLs and OG metadata.
func (s *Service) SearchLinks(ctx context.Context, query string, opts SearchOptions) ([]Link, int, SearchMode, error) {
	return s.store.SearchLinks(ctx, query, opts)
}

// GetPlurk returns a plurk by numeric id, or nil.
func (s *Service) GetPlurk(ctx context.Context, id int64) (*backup.Plurk, error) {
	return s.store.GetPlurk(ctx, id)
}

// GetPlurkByBase returns a plurk by permalink base id, or nil.
func (s *Service) GetPlurkByBase(ctx context.Context, baseID string) (*backup.Plurk, error) {
	return s.store.GetPlurkByBase(ctx, baseID)
}

// GetResponsePlurk returns the parent plurk of a response, or nil.
func (s *Service) GetResponsePlurk(ctx context.Context, responseID int64) (*backup.Plurk, error) {
	return s.store.GetResponsePlurk(ctx, responseID)
}

// PlurkResponses returns a plurk's responses, oldest first.
func (s *Service) PlurkResponses(ctx context.Context, baseID string) ([]backup.Response, error) {
	return s.store.PlurkResponses(ctx, baseID)
}

// Stats returns aggregate archive counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}

// ImportHistory returns recent import batches, newest first.
func (s *Service) ImportHistory(ctx context.Context, limit int) ([]ImportLogEntry, error) {
	return s.store.ImportHistory(ctx, limit)
}

// SearchHistory returns recent searches, newest first.
func (s *Service) SearchHistory(ctx context.Context, limit int) ([]SearchLogEntry, error) {
	return s.store.ListSearchLog(ctx, limit)
}

// Reindex rebuilds all FTS indexes from the base tables.
func (s *Service) Reindex(ctx context.Context) (ReindexCounts, error) {
	return s.store.Reindex(ctx)
}
