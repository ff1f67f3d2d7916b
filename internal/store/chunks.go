package store

import (
	"context"
	"fmt"

	"github.com/dgallion1/guideseg/internal/doctree"
)

// InsertChunks writes one batch of chunks in a single transaction.
func (s *Store) InsertChunks(ctx context.Context, docID string, chunks []doctree.ParentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO parent_chunks (document_id, section_id, order_index, content, token_count, page_start, page_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		_, err := stmt.ExecContext(ctx, docID, c.SectionID, c.OrderIndex, c.Content, c.TokenCount, c.PageStart, c.PageEnd)
		if err != nil {
			return fmt.Errorf("insert chunk %d/%d: %w", c.SectionID, c.OrderIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

// ListChunks returns a document's chunks ordered by topic then position.
// A non-zero sectionID restricts the result to that topic.
func (s *Store) ListChunks(ctx context.Context, docID string, sectionID int) ([]doctree.ParentChunk, error) {
	query := `SELECT c.section_id, c.order_index, c.content, c.token_count, c.page_start, c.page_end
		FROM parent_chunks c
		JOIN sections s ON s.document_id = c.document_id AND s.id = c.section_id
		WHERE c.document_id = ?`
	args := []any{docID}
	if sectionID != 0 {
		query += ` AND c.section_id = ?`
		args = append(args, sectionID)
	}
	query += ` ORDER BY s.order_index, c.order_index`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []doctree.ParentChunk
	for rows.Next() {
		var c doctree.ParentChunk
		if err := rows.Scan(&c.SectionID, &c.OrderIndex, &c.Content, &c.TokenCount, &c.PageStart, &c.PageEnd); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
