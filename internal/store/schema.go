// CLAUDE:SUMMARY The complete archive SQL schema: base tables, FTS5 shadow indexes, log tables.
package store

import "database/sql"

// Schema is the complete archive schema. Idempotent: applying it to an
// already-initialized database is a no-op.
//
// The FTS5 tables are external-content and carry NO sync triggers: indexed
// text is CJK-bigram-segmented on the Go side (see internal/fts), which SQL
// triggers cannot do, so the merge and reindex paths insert FTS rows
// themselves inside the same transaction as the base row.
const Schema = `
-- Top-level posts, keyed by the export's numeric id
CREATE TABLE IF NOT EXISTS plurks (
    id             INTEGER PRIMARY KEY,
    base_id        TEXT NOT NULL,
    content_raw    TEXT,
    posted         TEXT,
    posted_ts      INTEGER,
    response_count INTEGER,
    qualifier      TEXT
);
CREATE INDEX IF NOT EXISTS idx_plurks_base ON plurks(base_id);
CREATE INDEX IF NOT EXISTS idx_plurks_posted ON plurks(posted_ts DESC);

-- Replies; base_id references plurks.base_id advisorily (parent may be absent)
CREATE TABLE IF NOT EXISTS responses (
    id           INTEGER PRIMARY KEY,
    base_id      TEXT NOT NULL,
    content_raw  TEXT,
    posted       TEXT,
    posted_ts    INTEGER,
    user_id      INTEGER,
    user_nick    TEXT,
    user_display TEXT
);
CREATE INDEX IF NOT EXISTS idx_responses_base ON responses(base_id);

CREATE VIRTUAL TABLE IF NOT EXISTS plurks_fts USING fts5(
    content_raw, content='plurks', content_rowid='id',
    tokenize='unicode61 remove_diacritics 2'
);
CREATE VIRTUAL TABLE IF NOT EXISTS responses_fts USING fts5(
    content_raw, content='responses', content_rowid='id',
    tokenize='unicode61 remove_diacritics 2'
);

-- External links discovered in content, keyed by the literal URL string
CREATE TABLE IF NOT EXISTS link_metadata (
    url            TEXT PRIMARY KEY,
    og_title       TEXT,
    og_description TEXT,
    og_site_name   TEXT,
    sources        TEXT NOT NULL DEFAULT '{}',
    status         TEXT NOT NULL DEFAULT 'pending',
    fetched_at     INTEGER
);
CREATE INDEX IF NOT EXISTS idx_link_metadata_status ON link_metadata(status);

-- Regular (content-storing) FTS table: link rows are updated in place when
-- enrichment lands, which external-content FTS cannot express without
-- replaying the previously indexed text. rowid mirrors link_metadata.rowid.
CREATE VIRTUAL TABLE IF NOT EXISTS links_fts USING fts5(
    url, og_title, og_description, og_site_name,
    tokenize='unicode61 remove_diacritics 2'
);

-- Import log (operator-visible counters per batch)
CREATE TABLE IF NOT EXISTS import_log (
    id              TEXT PRIMARY KEY,
    month           TEXT NOT NULL,
    added_plurks    INTEGER NOT NULL DEFAULT 0,
    added_responses INTEGER NOT NULL DEFAULT 0,
    imported_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_import_log_time ON import_log(imported_at DESC);

-- Search log (query history)
CREATE TABLE IF NOT EXISTS search_log (
    id           TEXT PRIMARY KEY,
    query        TEXT NOT NULL,
    target       TEXT NOT NULL,
    mode         TEXT NOT NULL,
    result_count INTEGER NOT NULL DEFAULT 0,
    searched_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_log_time ON search_log(searched_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
