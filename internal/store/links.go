// CLAUDE:SUMMARY link_metadata operations: provenance-growing upsert, pending selection, result persistence, reset.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/plurkive/internal/fts"
)

// UpsertLink creates a pending link_metadata row for url, or grows the
// existing row's sources set. Status, OG fields and fetched_at of an
// existing row are never touched; the URL string is the dedup key across
// extraction runs. Returns whether a new row was created.
func (s *Store) UpsertLink(ctx context.Context, url string, src Sources) (bool, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin upsert link: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT sources FROM link_metadata WHERE url = ?`, url).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		srcJSON, err := src.marshal()
		if err != nil {
			return false, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO link_metadata (url, sources, status) VALUES (?, ?, ?)`,
			url, srcJSON, StatusPending)
		if err != nil {
			return false, fmt.Errorf("store: insert link %s: %w", url, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO links_fts (rowid, url, og_title, og_description, og_site_name)
			SELECT rowid, ?, '', '', '' FROM link_metadata WHERE url = ?`,
			fts.Segment(url), url)
		if err != nil {
			return false, fmt.Errorf("store: index link %s: %w", url, err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("store: commit upsert link: %w", err)
		}
		return true, nil

	case err != nil:
		return false, fmt.Errorf("store: load link %s: %w", url, err)
	}

	existing, err := unmarshalSources(raw)
	if err != nil {
		return false, err
	}
	existing.Merge(src)
	srcJSON, err := existing.marshal()
	if err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE link_metadata SET sources = ? WHERE url = ?`, srcJSON, url)
	if err != nil {
		return false, fmt.Errorf("store: grow link sources %s: %w", url, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit upsert link: %w", err)
	}
	return false, nil
}

// PendingLinks returns pending rows in insertion order. limit <= 0 means no
// limit; the stable order makes repeated bounded runs advance through the
// backlog without starving any subset.
func (s *Store) PendingLinks(ctx context.Context, limit int) ([]Link, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means unlimited
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT url, og_title, og_description, og_site_name, sources, status, fetched_at
		FROM link_metadata WHERE status = ? ORDER BY rowid LIMIT ?`,
		StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list pending links: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

// GetLink returns the row for url, or nil if absent.
func (s *Store) GetLink(ctx context.Context, url string) (*Link, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT url, og_title, og_description, og_site_name, sources, status, fetched_at
		FROM link_metadata WHERE url = ?`, url)
	l, err := scanLink(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get link %s: %w", url, err)
	}
	return l, nil
}

// SetLinkResult commits one URL's terminal transition. Each URL commits
// independently so an interrupted run leaves a strict prefix updated and
// the rest still pending. fetched_at is recorded only when a page was
// actually loaded (success and no_og).
func (s *Store) SetLinkResult(ctx context.Context, url string, res LinkResult) error {
	if !res.Status.Terminal() {
		return fmt.Errorf("store: refusing to set non-terminal status %q on %s", res.Status, url)
	}

	var fetchedAt *int64
	if res.Status == StatusSuccess || res.Status == StatusNoOG {
		ms := time.Now().UnixMilli()
		fetchedAt = &ms
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin link result: %w", err)
	}
	defer tx.Rollback()

	out, err := tx.ExecContext(ctx,
		`UPDATE link_metadata
		SET status = ?, og_title = ?, og_description = ?, og_site_name = ?, fetched_at = ?
		WHERE url = ?`,
		res.Status, res.OGTitle, res.OGDescription, res.OGSiteName, fetchedAt, url)
	if err != nil {
		return fmt.Errorf("store: set link result %s: %w", url, err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return fmt.Errorf("store: link %s not found", url)
	}

	// Refresh the FTS row so fetched OG text becomes searchable.
	if err := reindexLinkTx(ctx, tx, url); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit link result: %w", err)
	}
	return nil
}

// ResetLinks returns every row in the given terminal status to pending,
// clearing OG fields and fetched_at. Operator action for deliberate
// re-fetching; pending rows are never reset.
func (s *Store) ResetLinks(ctx context.Context, status LinkStatus) (int64, error) {
	if !status.Terminal() {
		return 0, fmt.Errorf("store: can only reset terminal statuses, got %q", status)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin reset: %w", err)
	}
	defer tx.Rollback()

	// Clear indexed OG text first, while the status still selects the rows.
	_, err = tx.ExecContext(ctx,
		`UPDATE links_fts SET og_title = '', og_description = '', og_site_name = ''
		WHERE rowid IN (SELECT rowid FROM link_metadata WHERE status = ?)`, status)
	if err != nil {
		return 0, fmt.Errorf("store: reset link index: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE link_metadata
		SET status = ?, og_title = NULL, og_description = NULL, og_site_name = NULL, fetched_at = NULL
		WHERE status = ?`,
		StatusPending, status)
	if err != nil {
		return 0, fmt.Errorf("store: reset links: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit reset: %w", err)
	}
	s.logger.Info("store: links reset", "status", status, "count", n)
	return n, nil
}

// StatusCounts returns the row count per status, including zero entries for
// statuses with no rows.
func (s *Store) StatusCounts(ctx context.Context) (map[LinkStatus]int, error) {
	counts := make(map[LinkStatus]int, len(AllStatuses))
	for _, st := range AllStatuses {
		counts[st] = 0
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM link_metadata GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("store: status counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st LinkStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

// reindexLinkTx rewrites one URL's FTS row from the base table, segmenting
// the text columns. links_fts stores its own text, so this is a plain
// UPDATE keyed on the mirrored rowid.
func reindexLinkTx(ctx context.Context, tx *sql.Tx, url string) error {
	var rowid int64
	var title, desc, site sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT rowid, og_title, og_description, og_site_name FROM link_metadata WHERE url = ?`,
		url).Scan(&rowid, &title, &desc, &site)
	if err != nil {
		return fmt.Errorf("store: reload link %s: %w", url, err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE links_fts SET url = ?, og_title = ?, og_description = ?, og_site_name = ? WHERE rowid = ?`,
		fts.Segment(url), fts.Segment(title.String), fts.Segment(desc.String), fts.Segment(site.String), rowid)
	if err != nil {
		return fmt.Errorf("store: rewrite link index %s: %w", url, err)
	}
	return nil
}

type scanner func(dest ...any) error

func scanLink(scan scanner) (*Link, error) {
	var l Link
	var raw string
	if err := scan(&l.URL, &l.OGTitle, &l.OGDescription, &l.OGSiteName, &raw, &l.Status, &l.FetchedAt); err != nil {
		return nil, err
	}
	src, err := unmarshalSources(raw)
	if err != nil {
		return nil, err
	}
	l.Sources = src
	return &l, nil
}

func scanLinks(rows *sql.Rows) ([]Link, error) {
	var links []Link
	for rows.Next() {
		l, err := scanLink(rows.Scan)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}
