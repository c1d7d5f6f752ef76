// CLAUDE:SUMMARY Store wrapper over the archive SQLite database; options for logger and id generation.
// Package store is the data access layer for the archive database: the
// plurks/responses/link_metadata tables, their FTS5 shadow indexes, and the
// operator-facing log tables.
//
// Writes follow a single-writer discipline: one batch process holds a
// transaction at a time, concurrent readers see the last committed state.
package store

import (
	"database/sql"
	"log/slog"

	"github.com/hazyhaar/plurkive/idgen"
)

// Store wraps an already-opened archive database.
type Store struct {
	DB     *sql.DB
	logger *slog.Logger
	newID  idgen.Generator
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDGenerator sets the generator used for log-row IDs. Tests pin a
// deterministic generator here.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{DB: db, logger: slog.Default(), newID: idgen.Default}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
