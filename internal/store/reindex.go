// CLAUDE:SUMMARY Full FTS rebuild from the base tables; indexes are derived state, never authoritative.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hazyhaar/plurkive/internal/fts"
)

// ReindexCounts reports rows indexed per corpus by a rebuild.
type ReindexCounts struct {
	Plurks    int `json:"plurks"`
	Responses int `json:"responses"`
	Links     int `json:"links"`
}

// Reindex drops all three FTS indexes and rebuilds them from the base
// tables in one transaction. Used after a segmentation change or index
// corruption; the base tables are the sole source of truth.
func (s *Store) Reindex(ctx context.Context) (ReindexCounts, error) {
	var counts ReindexCounts

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("store: begin reindex: %w", err)
	}
	defer tx.Rollback()

	counts.Plurks, err = rebuildContentFTS(ctx, tx, "plurks_fts",
		`SELECT id, content_raw FROM plurks WHERE content_raw IS NOT NULL`)
	if err != nil {
		return ReindexCounts{}, err
	}
	counts.Responses, err = rebuildContentFTS(ctx, tx, "responses_fts",
		`SELECT id, content_raw FROM responses WHERE content_raw IS NOT NULL`)
	if err != nil {
		return ReindexCounts{}, err
	}
	counts.Links, err = rebuildLinksFTS(ctx, tx)
	if err != nil {
		return ReindexCounts{}, err
	}

	if err := tx.Commit(); err != nil {
		return ReindexCounts{}, fmt.Errorf("store: commit reindex: %w", err)
	}
	s.logger.Info("store: reindex complete",
		"plurks", counts.Plurks, "responses", counts.Responses, "links", counts.Links)
	return counts, nil
}

// rebuildContentFTS wipes an external-content FTS table and refills it with
// segmented text from the base rows.
func rebuildContentFTS(ctx context.Context, tx *sql.Tx, table, selectSQL string) (int, error) {
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(%s) VALUES('delete-all')`, table, table)); err != nil {
		return 0, fmt.Errorf("store: clear %s: %w", table, err)
	}

	rows, err := tx.QueryContext(ctx, selectSQL)
	if err != nil {
		return 0, fmt.Errorf("store: scan for %s: %w", table, err)
	}
	defer rows.Close()

	type entry struct {
		id   int64
		text string
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.text); err != nil {
			return 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	insertSQL := fmt.Sprintf(`INSERT INTO %s (rowid, content_raw) VALUES (?, ?)`, table)
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, insertSQL, e.id, fts.Segment(e.text)); err != nil {
			return 0, fmt.Errorf("store: refill %s row %d: %w", table, e.id, err)
		}
	}
	return len(entries), nil
}

func rebuildLinksFTS(ctx context.Context, tx *sql.Tx) (int, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM links_fts`); err != nil {
		return 0, fmt.Errorf("store: clear links_fts: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT rowid, url, og_title, og_description, og_site_name FROM link_metadata`)
	if err != nil {
		return 0, fmt.Errorf("store: scan links: %w", err)
	}
	defer rows.Close()

	type entry struct {
		rowid            int64
		url              string
		title, desc, sit sql.NullString
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.rowid, &e.url, &e.title, &e.desc, &e.sit); err != nil {
			return 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO links_fts (rowid, url, og_title, og_description, og_site_name)
			VALUES (?, ?, ?, ?, ?)`,
			e.rowid, fts.Segment(e.url), fts.Segment(e.title.String),
			fts.Segment(e.desc.String), fts.Segment(e.sit.String))
		if err != nil {
			return 0, fmt.Errorf("store: refill links_fts row %d: %w", e.rowid, err)
		}
	}
	return len(entries), nil
}
