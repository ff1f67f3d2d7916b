package store

import (
	"context"
	"fmt"
	"strings"
)

// schema uses {{ts}} for the timestamp type, which differs by dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id            TEXT PRIMARY KEY,
		filename      TEXT NOT NULL,
		content_hash  TEXT NOT NULL UNIQUE,
		page_count    INTEGER NOT NULL DEFAULT 0,
		element_count INTEGER NOT NULL DEFAULT 0,
		created_at    {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sections (
		document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		id           INTEGER NOT NULL,
		parent_id    INTEGER,
		level        INTEGER NOT NULL,
		heading      TEXT NOT NULL,
		heading_path TEXT NOT NULL,
		numbering    TEXT NOT NULL DEFAULT '',
		order_index  INTEGER NOT NULL,
		page_start   INTEGER NOT NULL,
		page_end     INTEGER NOT NULL,
		inferred     BOOLEAN NOT NULL DEFAULT FALSE,
		vocabulary   BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (document_id, id),
		FOREIGN KEY (document_id, parent_id) REFERENCES sections(document_id, id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS elements (
		document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		seq          INTEGER NOT NULL,
		element_type TEXT NOT NULL,
		text         TEXT NOT NULL DEFAULT '',
		markdown     TEXT NOT NULL DEFAULT '',
		page         INTEGER NOT NULL DEFAULT 0,
		page_end     INTEGER NOT NULL DEFAULT 0,
		native_depth INTEGER NOT NULL DEFAULT 0,
		caption      TEXT NOT NULL DEFAULT '',
		section_id   INTEGER,
		PRIMARY KEY (document_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS parent_chunks (
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		section_id  INTEGER NOT NULL,
		order_index INTEGER NOT NULL,
		content     TEXT NOT NULL,
		token_count INTEGER NOT NULL CHECK (token_count > 0),
		page_start  INTEGER NOT NULL,
		page_end    INTEGER NOT NULL,
		PRIMARY KEY (document_id, section_id, order_index),
		FOREIGN KEY (document_id, section_id) REFERENCES sections(document_id, id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sections_parent ON sections(document_id, parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_elements_section ON elements(document_id, section_id)`,
}

func (s *Store) migrate(ctx context.Context) error {
	ts := "DATETIME"
	if s.driver == DriverPostgres {
		ts = "TIMESTAMPTZ"
	}
	for _, stmt := range schema {
		stmt = strings.ReplaceAll(stmt, "{{ts}}", ts)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %.40q: %w", stmt, err)
		}
	}
	return nil
}
