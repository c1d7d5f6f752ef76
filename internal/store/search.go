// CLAUDE:SUMMARY Dual-mode search: FTS5 ranked queries with automatic LIKE fallback on index syntax errors.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/plurkive/backup"
	"github.com/hazyhaar/plurkive/internal/fts"
)

// SearchMode selects how a search executes.
type SearchMode string

const (
	// ModeAuto tries the FTS index and degrades to a LIKE scan if the
	// index rejects the query. The default.
	ModeAuto SearchMode = "auto"
	// ModeFTS forces the index; index errors surface to the caller.
	ModeFTS SearchMode = "fts"
	// ModeLike forces the substring scan. Slow but literal.
	ModeLike SearchMode = "like"
)

// ParseSearchMode validates an operator-supplied mode string. Empty means
// ModeAuto.
func ParseSearchMode(raw string) (SearchMode, error) {
	switch SearchMode(raw) {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeFTS, ModeLike:
		return SearchMode(raw), nil
	}
	return "", fmt.Errorf("store: unknown search mode %q", raw)
}

// DefaultPerPage is the page size when the caller does not set one.
const DefaultPerPage = 50

// SearchOptions control mode and pagination. Page is 1-based.
type SearchOptions struct {
	Mode    SearchMode
	Page    int
	PerPage int
}

func (o SearchOptions) normalize() SearchOptions {
	if o.Mode == "" {
		o.Mode = ModeAuto
	}
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 {
		o.PerPage = DefaultPerPage
	}
	return o
}

func (o SearchOptions) offset() int { return (o.Page - 1) * o.PerPage }

// SearchPlurks searches plurk content. Returns the requested page, the
// total match count across all pages, and the mode that actually produced
// them (auto resolves to fts or like).
func (s *Store) SearchPlurks(ctx context.Context, query string, opts SearchOptions) ([]backup.Plurk, int, SearchMode, error) {
	opts = opts.normalize()
	run := func(mode SearchMode) ([]backup.Plurk, int, error) {
		if mode == ModeFTS {
			expr := fts.QueryExpr(query)
			var total int
			if err := s.DB.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM plurks_fts WHERE plurks_fts MATCH ?`, expr).Scan(&total); err != nil {
				return nil, 0, err
			}
			rows, err := s.DB.QueryContext(ctx,
				`SELECT p.id, p.base_id, p.content_raw, p.posted, p.response_count, p.qualifier
				FROM plurks_fts f
				JOIN plurks p ON p.id = f.rowid
				WHERE plurks_fts MATCH ?
				ORDER BY rank
				LIMIT ? OFFSET ?`,
				expr, opts.PerPage, opts.offset())
			if err != nil {
				return nil, 0, err
			}
			defer rows.Close()
			res, err := scanPlurks(rows)
			return res, total, err
		}
		pat := fts.LikePattern(query)
		var total int
		if err := s.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM plurks WHERE content_raw LIKE ? ESCAPE '\'`, pat).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err := s.DB.QueryContext(ctx,
			`SELECT id, base_id, content_raw, posted, response_count, qualifier
			FROM plurks
			WHERE content_raw LIKE ? ESCAPE '\'
			ORDER BY posted_ts DESC
			LIMIT ? OFFSET ?`,
			pat, opts.PerPage, opts.offset())
		if err != nil {
			return nil, 0, err
		}
		defer rows.Close()
		res, err := scanPlurks(rows)
		return res, total, err
	}
	return searchWith(s, ctx, "plurks", query, opts, run)
}

// SearchResponses searches response content.
func (s *Store) SearchResponses(ctx context.Context, query string, opts SearchOptions) ([]backup.Response, int, SearchMode, error) {
	opts = opts.normalize()
	run := func(mode SearchMode) ([]backup.Response, int, error) {
		if mode == ModeFTS {
			expr := fts.QueryExpr(query)
			var total int
			if err := s.DB.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM responses_fts WHERE responses_fts MATCH ?`, expr).Scan(&total); err != nil {
				return nil, 0, err
			}
			rows, err := s.DB.QueryContext(ctx,
				`SELECT r.id, r.base_id, r.content_raw, r.posted, r.user_id, r.user_nick, r.user_display
				FROM responses_fts f
				JOIN responses r ON r.id = f.rowid
				WHERE responses_fts MATCH ?
				ORDER BY rank
				LIMIT ? OFFSET ?`,
				expr, opts.PerPage, opts.offset())
			if err != nil {
				return nil, 0, err
			}
			defer rows.Close()
			res, err := scanResponses(rows)
			return res, total, err
		}
		pat := fts.LikePattern(query)
		var total int
		if err := s.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM responses WHERE content_raw LIKE ? ESCAPE '\'`, pat).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err := s.DB.QueryContext(ctx,
			`SELECT id, base_id, content_raw, posted, user_id, user_nick, user_display
			FROM responses
			WHERE content_raw LIKE ? ESCAPE '\'
			ORDER BY posted_ts DESC
			LIMIT ? OFFSET ?`,
			pat, opts.PerPage, opts.offset())
		if err != nil {
			return nil, 0, err
		}
		defer rows.Close()
		res, err := scanResponses(rows)
		return res, total, err
	}
	return searchWith(s, ctx, "responses", query, opts, run)
}

// SearchLinks searches link URLs and fetched OG metadata.
func (s *Store) SearchLinks(ctx context.Context, query string, opts SearchOptions) ([]Link, int, SearchMode, error) {
	opts = opts.normalize()
	run := func(mode SearchMode) ([]Link, int, error) {
		if mode == ModeFTS {
			expr := fts.QueryExpr(query)
			var total int
			if err := s.DB.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM links_fts WHERE links_fts MATCH ?`, expr).Scan(&total); err != nil {
				return nil, 0, err
			}
			rows, err := s.DB.QueryContext(ctx,
				`SELECT l.url, l.og_title, l.og_description, l.og_site_name, l.sources, l.status, l.fetched_at
				FROM links_fts f
				JOIN link_metadata l ON l.rowid = f.rowid
				WHERE links_fts MATCH ?
				ORDER BY rank
				LIMIT ? OFFSET ?`,
				expr, opts.PerPage, opts.offset())
			if err != nil {
				return nil, 0, err
			}
			defer rows.Close()
			res, err := scanLinks(rows)
			return res, total, err
		}
		pat := fts.LikePattern(query)
		var total int
		if err := s.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM link_metadata
			WHERE url LIKE ?1 ESCAPE '\'
			   OR og_title LIKE ?1 ESCAPE '\'
			   OR og_description LIKE ?1 ESCAPE '\'
			   OR og_site_name LIKE ?1 ESCAPE '\'`, pat).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err := s.DB.QueryContext(ctx,
			`SELECT url, og_title, og_description, og_site_name, sources, status, fetched_at
			FROM link_metadata
			WHERE url LIKE ?1 ESCAPE '\'
			   OR og_title LIKE ?1 ESCAPE '\'
			   OR og_description LIKE ?1 ESCAPE '\'
			   OR og_site_name LIKE ?1 ESCAPE '\'
			ORDER BY rowid DESC
			LIMIT ?2 OFFSET ?3`,
			pat, opts.PerPage, opts.offset())
		if err != nil {
			return nil, 0, err
		}
		defer rows.Close()
		res, err := scanLinks(rows)
		return res, total, err
	}
	return searchWith(s, ctx, "links", query, opts, run)
}

// searchWith runs the mode-selection and fallback policy shared by all
// three corpora: auto tries fts and degrades to like on a query the index
// cannot parse; an explicit mode is binding. The search log records the
// total match count, not the page size.
func searchWith[T any](s *Store, ctx context.Context, target, query string, opts SearchOptions, run func(SearchMode) ([]T, int, error)) ([]T, int, SearchMode, error) {
	mode := opts.Mode
	if mode == ModeAuto {
		mode = ModeFTS
	}
	results, total, err := run(mode)
	if err != nil && opts.Mode == ModeAuto && mode == ModeFTS && isFTSQueryErr(err) {
		s.logger.Debug("store: fts rejected query, falling back to like",
			"target", target, "query", query, "error", err)
		mode = ModeLike
		results, total, err = run(mode)
	}
	if err != nil {
		return nil, 0, mode, fmt.Errorf("store: search %s: %w", target, err)
	}

	// Log the search (fire-and-forget).
	s.DB.ExecContext(ctx,
		`INSERT INTO search_log (id, query, target, mode, result_count, searched_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.newID(), query, target, string(mode), total, time.Now().UnixMilli())

	return results, total, mode, nil
}

// isFTSQueryErr recognizes FTS5 query-parse failures, which are recoverable
// by degrading to a scan. Anything else (I/O, schema) is structural.
func isFTSQueryErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "fts5: syntax error") ||
		strings.Contains(msg, "malformed match") ||
		strings.Contains(msg, "unterminated string") ||
		strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "unknown special query")
}

// ListSearchLog returns recent search log entries, newest first.
func (s *Store) ListSearchLog(ctx context.Context, limit int) ([]SearchLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, query, target, mode, result_count, searched_at
		FROM search_log ORDER BY searched_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []SearchLogEntry
	for rows.Next() {
		var e SearchLogEntry
		if err := rows.Scan(&e.ID, &e.Query, &e.Target, &e.Mode, &e.ResultCount, &e.SearchedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SearchLogEntry is one recorded search.
type SearchLogEntry struct {
	ID          string `json:"id"`
	Query       string `json:"query"`
	Target      string `json:"target"`
	Mode        string `json:"mode"`
	ResultCount int    `json:"result_count"`
	SearchedAt  int64  `json:"searched_at"`
}

func scanPlurks(rows *sql.Rows) ([]backup.Plurk, error) {
	var plurks []backup.Plurk
	for rows.Next() {
		var p backup.Plurk
		if err := rows.Scan(&p.ID, &p.BaseID, &p.Content, &p.Posted, &p.ResponseCount, &p.Qualifier); err != nil {
			return nil, err
		}
		plurks = append(plurks, p)
	}
	return plurks, rows.Err()
}

func scanResponses(rows *sql.Rows) ([]backup.Response, error) {
	var responses []backup.Response
	for rows.Next() {
		var r backup.Response
		if err := rows.Scan(&r.ID, &r.BaseID, &r.Content, &r.Posted, &r.UserID, &r.UserNick, &r.UserDisplay); err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}
