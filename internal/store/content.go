// CLAUDE:SUMMARY Record listing for the link extractor: plurks/responses, optionally bounded by post time.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/plurkive/backup"
)

// ListPlurks returns stored plurks, oldest first. A non-nil bound restricts
// by post time; rows with an unparseable timestamp are included only in
// unbounded listings.
func (s *Store) ListPlurks(ctx context.Context, from, to *time.Time) ([]backup.Plurk, error) {
	query := `SELECT id, base_id, content_raw, posted, response_count, qualifier FROM plurks`
	where, args := timeBounds(from, to)
	rows, err := s.DB.QueryContext(ctx, query+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list plurks: %w", err)
	}
	defer rows.Close()
	return scanPlurks(rows)
}

// ListResponses returns stored responses, oldest first, with the same
// bounding rules as ListPlurks.
func (s *Store) ListResponses(ctx context.Context, from, to *time.Time) ([]backup.Response, error) {
	query := `SELECT id, base_id, content_raw, posted, user_id, user_nick, user_display FROM responses`
	where, args := timeBounds(from, to)
	rows, err := s.DB.QueryContext(ctx, query+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list responses: %w", err)
	}
	defer rows.Close()
	return scanResponses(rows)
}

func timeBounds(from, to *time.Time) (string, []any) {
	var clauses []string
	var args []any
	if from != nil {
		clauses = append(clauses, `posted_ts >= ?`)
		args = append(args, from.UnixMilli())
	}
	if to != nil {
		clauses = append(clauses, `posted_ts < ?`)
		args = append(args, to.UnixMilli())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := ` WHERE ` + clauses[0]
	if len(clauses) == 2 {
		where += ` AND ` + clauses[1]
	}
	return where, args
}
