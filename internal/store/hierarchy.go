package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dgallion1/guideseg/internal/doctree"
)

// ReplaceHierarchy swaps a document's sections and elements in one
// transaction. owner maps element Seq to its section ID; elements missing
// from owner are stored as orphans. Existing chunks go with the old
// sections.
func (s *Store) ReplaceHierarchy(ctx context.Context, docID string, sections []doctree.Section, elements []doctree.Element, owner map[int]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM parent_chunks WHERE document_id = ?`,
		`DELETE FROM elements WHERE document_id = ?`,
		`DELETE FROM sections WHERE document_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, s.rebind(q), docID); err != nil {
			return fmt.Errorf("clear hierarchy: %w", err)
		}
	}

	secStmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO sections (document_id, id, parent_id, level, heading, heading_path, numbering,
			order_index, page_start, page_end, inferred, vocabulary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare section insert: %w", err)
	}
	defer secStmt.Close()

	// Sections arrive in document order, so parents precede children.
	for _, sec := range sections {
		_, err := secStmt.ExecContext(ctx, docID, sec.ID, nullInt(sec.ParentID), sec.Level, sec.Heading,
			sec.HeadingPath, sec.Numbering, sec.OrderIndex, sec.PageStart, sec.PageEnd, sec.Inferred, sec.Vocabulary)
		if err != nil {
			return fmt.Errorf("insert section %d: %w", sec.ID, err)
		}
	}

	elStmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO elements (document_id, seq, element_type, text, markdown, page, page_end,
			native_depth, caption, section_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare element insert: %w", err)
	}
	defer elStmt.Close()

	for _, el := range elements {
		_, err := elStmt.ExecContext(ctx, docID, el.Seq, el.Type, el.Text, el.Markdown, el.Page, el.PageEnd,
			el.NativeDepth, el.Caption, nullInt(owner[el.Seq]))
		if err != nil {
			return fmt.Errorf("insert element %d: %w", el.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit hierarchy: %w", err)
	}
	return nil
}

// ListSections returns a document's sections in document order.
func (s *Store) ListSections(ctx context.Context, docID string) ([]doctree.Section, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, parent_id, level, heading, heading_path, numbering, order_index,
			page_start, page_end, inferred, vocabulary
		 FROM sections WHERE document_id = ? ORDER BY order_index`), docID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var out []doctree.Section
	for rows.Next() {
		var sec doctree.Section
		var parent sql.NullInt64
		err := rows.Scan(&sec.ID, &parent, &sec.Level, &sec.Heading, &sec.HeadingPath, &sec.Numbering,
			&sec.OrderIndex, &sec.PageStart, &sec.PageEnd, &sec.Inferred, &sec.Vocabulary)
		if err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sec.ParentID = int(parent.Int64)
		out = append(out, sec)
	}
	return out, rows.Err()
}

// ListElements returns a document's elements in order with their owning
// section IDs (0 for orphans).
func (s *Store) ListElements(ctx context.Context, docID string) ([]doctree.Element, map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT seq, element_type, text, markdown, page, page_end, native_depth, caption, section_id
		 FROM elements WHERE document_id = ? ORDER BY seq`), docID)
	if err != nil {
		return nil, nil, fmt.Errorf("list elements: %w", err)
	}
	defer rows.Close()

	var out []doctree.Element
	owner := make(map[int]int)
	for rows.Next() {
		var el doctree.Element
		var section sql.NullInt64
		err := rows.Scan(&el.Seq, &el.Type, &el.Text, &el.Markdown, &el.Page, &el.PageEnd,
			&el.NativeDepth, &el.Caption, &section)
		if err != nil {
			return nil, nil, fmt.Errorf("scan element: %w", err)
		}
		if section.Valid {
			owner[el.Seq] = int(section.Int64)
		}
		out = append(out, el)
	}
	return out, owner, rows.Err()
}
