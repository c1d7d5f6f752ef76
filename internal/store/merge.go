// CLAUDE:SUMMARY Idempotent insert-or-ignore merge of parsed records, FTS rows inserted in the same tx.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/plurkive/backup"
	"github.com/hazyhaar/plurkive/internal/fts"
)

// MergeMonth inserts one month's records in a single transaction.
// Conflict policy is keep-existing: a record whose id is already stored is
// skipped and never overwritten, so re-running the same import is a no-op
// and importing a superset adds exactly the new records. FTS index rows are
// written for newly inserted records only, inside the same transaction, so
// base table and index cannot diverge.
func (s *Store) MergeMonth(ctx context.Context, month string, plurks []backup.Plurk, responses []backup.Response) (MergeCounts, error) {
	var counts MergeCounts

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("store: begin merge: %w", err)
	}
	defer tx.Rollback()

	for _, p := range plurks {
		added, err := mergePlurk(ctx, tx, p)
		if err != nil {
			return MergeCounts{}, err
		}
		if added {
			counts.AddedPlurks++
		}
	}
	for _, r := range responses {
		added, err := mergeResponse(ctx, tx, r)
		if err != nil {
			return MergeCounts{}, err
		}
		if added {
			counts.AddedResponses++
		}
	}

	// Operator-visible batch record, same transaction.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO import_log (id, month, added_plurks, added_responses, imported_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.newID(), month, counts.AddedPlurks, counts.AddedResponses, time.Now().UnixMilli())
	if err != nil {
		return MergeCounts{}, fmt.Errorf("store: record import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return MergeCounts{}, fmt.Errorf("store: commit merge: %w", err)
	}

	s.logger.Info("store: month merged", "month", month,
		"added_plurks", counts.AddedPlurks, "added_responses", counts.AddedResponses,
		"skipped", len(plurks)+len(responses)-counts.AddedPlurks-counts.AddedResponses)
	return counts, nil
}

func mergePlurk(ctx context.Context, tx *sql.Tx, p backup.Plurk) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO plurks (id, base_id, content_raw, posted, posted_ts, response_count, qualifier)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BaseID, p.Content, p.Posted, postedTS(p.Posted), p.ResponseCount, p.Qualifier)
	if err != nil {
		return false, fmt.Errorf("store: insert plurk %d: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: rows affected for plurk %d: %w", p.ID, err)
	}
	if n == 0 {
		return false, nil
	}
	if p.Content != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO plurks_fts (rowid, content_raw) VALUES (?, ?)`,
			p.ID, fts.Segment(*p.Content))
		if err != nil {
			return false, fmt.Errorf("store: index plurk %d: %w", p.ID, err)
		}
	}
	return true, nil
}

func mergeResponse(ctx context.Context, tx *sql.Tx, r backup.Response) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO responses (id, base_id, content_raw, posted, posted_ts, user_id, user_nick, user_display)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BaseID, r.Content, r.Posted, postedTS(r.Posted), r.UserID, r.UserNick, r.UserDisplay)
	if err != nil {
		return false, fmt.Errorf("store: insert response %d: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: rows affected for response %d: %w", r.ID, err)
	}
	if n == 0 {
		return false, nil
	}
	if r.Content != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO responses_fts (rowid, content_raw) VALUES (?, ?)`,
			r.ID, fts.Segment(*r.Content))
		if err != nil {
			return false, fmt.Errorf("store: index response %d: %w", r.ID, err)
		}
	}
	return true, nil
}

// postedTS parses the export's RFC1123 timestamp into unix ms. Unparseable
// or absent timestamps store NULL; the verbatim string is kept regardless.
func postedTS(posted *string) *int64 {
	if posted == nil {
		return nil
	}
	t, err := time.Parse(time.RFC1123, *posted)
	if err != nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
