// CLAUDE:SUMMARY Aggregate counters, permalink lookups, latest-posted watermark, import history.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/plurkive/backup"
)

// Stats returns aggregate row counts, including per-status link counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	for _, q := range []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM plurks`, &st.Plurks},
		{`SELECT COUNT(*) FROM responses`, &st.Responses},
		{`SELECT COUNT(*) FROM link_metadata`, &st.Links},
	} {
		if err := s.DB.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return Stats{}, fmt.Errorf("store: stats: %w", err)
		}
	}

	byStatus, err := s.StatusCounts(ctx)
	if err != nil {
		return Stats{}, err
	}
	st.ByStatus = make(map[string]int, len(byStatus))
	for k, v := range byStatus {
		st.ByStatus[string(k)] = v
	}
	return st, nil
}

// GetPlurk returns the plurk with the given numeric id, or nil if absent.
func (s *Store) GetPlurk(ctx context.Context, id int64) (*backup.Plurk, error) {
	return s.getPlurk(ctx, `SELECT id, base_id, content_raw, posted, response_count, qualifier
		FROM plurks WHERE id = ?`, id)
}

// GetPlurkByBase returns the plurk with the given permalink base id, or nil.
func (s *Store) GetPlurkByBase(ctx context.Context, baseID string) (*backup.Plurk, error) {
	return s.getPlurk(ctx, `SELECT id, base_id, content_raw, posted, response_count, qualifier
		FROM plurks WHERE base_id = ?`, baseID)
}

// GetResponsePlurk returns the parent plurk of a response, or nil when
// either the response or its parent is absent (referential integrity is
// advisory, so orphan responses are expected).
func (s *Store) GetResponsePlurk(ctx context.Context, responseID int64) (*backup.Plurk, error) {
	return s.getPlurk(ctx,
		`SELECT p.id, p.base_id, p.content_raw, p.posted, p.response_count, p.qualifier
		FROM responses r
		JOIN plurks p ON p.base_id = r.base_id
		WHERE r.id = ?`, responseID)
}

func (s *Store) getPlurk(ctx context.Context, query string, arg any) (*backup.Plurk, error) {
	var p backup.Plurk
	err := s.DB.QueryRowContext(ctx, query, arg).
		Scan(&p.ID, &p.BaseID, &p.Content, &p.Posted, &p.ResponseCount, &p.Qualifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get plurk: %w", err)
	}
	return &p, nil
}

// PlurkResponses returns the responses attached to a plurk, oldest first.
func (s *Store) PlurkResponses(ctx context.Context, baseID string) ([]backup.Response, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, base_id, content_raw, posted, user_id, user_nick, user_display
		FROM responses WHERE base_id = ? ORDER BY posted_ts, id`, baseID)
	if err != nil {
		return nil, fmt.Errorf("store: plurk responses: %w", err)
	}
	defer rows.Close()
	return scanResponses(rows)
}

// LatestPosted returns the newest stored post time, or nil for an empty
// archive. Drives the default scan range of incremental imports.
func (s *Store) LatestPosted(ctx context.Context) (*time.Time, error) {
	var ms sql.NullInt64
	err := s.DB.QueryRowContext(ctx,
		`SELECT MAX(posted_ts) FROM plurks`).Scan(&ms)
	if err != nil {
		return nil, fmt.Errorf("store: latest posted: %w", err)
	}
	if !ms.Valid {
		return nil, nil
	}
	t := time.UnixMilli(ms.Int64).UTC()
	return &t, nil
}

// ImportHistory returns recent import batches, newest first.
func (s *Store) ImportHistory(ctx context.Context, limit int) ([]ImportLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, month, added_plurks, added_responses, imported_at
		FROM import_log ORDER BY imported_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ImportLogEntry
	for rows.Next() {
		var e ImportLogEntry
		if err := rows.Scan(&e.ID, &e.Month, &e.AddedPlurks, &e.AddedResponses, &e.ImportedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ImportLogEntry is one recorded import batch.
type ImportLogEntry struct {
	ID             string `json:"id"`
	Month          string `json:"month"`
	AddedPlurks    int    `json:"added_plurks"`
	AddedResponses int    `json:"added_responses"`
	ImportedAt     int64  `json:"imported_at"`
}
