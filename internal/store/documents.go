package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const documentColumns = `d.id, d.filename, d.content_hash, d.page_count, d.element_count, d.created_at,
	(SELECT COUNT(*) FROM sections s WHERE s.document_id = d.id),
	(SELECT COUNT(*) FROM parent_chunks c WHERE c.document_id = d.id)`

// CreateDocument registers a document. An empty ID gets a fresh UUID. A
// second document with the same content hash returns ErrDuplicate.
func (s *Store) CreateDocument(ctx context.Context, d *Document) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO documents (id, filename, content_hash, page_count, element_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		d.ID, d.Filename, d.ContentHash, d.PageCount, d.ElementCount, d.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create document %s: %w", d.Filename, ErrDuplicate)
		}
		return fmt.Errorf("create document %s: %w", d.Filename, err)
	}
	return nil
}

// UpdateDocument rewrites the mutable fields of a rebuilt document.
func (s *Store) UpdateDocument(ctx context.Context, d *Document) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE documents SET filename = ?, page_count = ?, element_count = ? WHERE id = ?`),
		d.Filename, d.PageCount, d.ElementCount, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update document %s: %w", d.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update document %s: %w", d.ID, ErrNotFound)
	}
	return nil
}

// FindDocumentByHash looks a document up by its content hash.
func (s *Store) FindDocumentByHash(ctx context.Context, hash string) (*Document, error) {
	return s.getDocument(ctx, "d.content_hash = ?", hash)
}

// GetDocument returns a document with its section and chunk counts.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	return s.getDocument(ctx, "d.id = ?", id)
}

func (s *Store) getDocument(ctx context.Context, where string, arg any) (*Document, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+documentColumns+` FROM documents d WHERE `+where), arg)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListDocuments returns every document, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents d ORDER BY d.created_at DESC, d.filename`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and, by cascade, everything built from it.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM documents WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete document %s: %w", id, ErrNotFound)
	}
	return nil
}

// Counts totals the rows across all documents.
func (s *Store) Counts(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM documents),
		(SELECT COUNT(*) FROM elements),
		(SELECT COUNT(*) FROM sections),
		(SELECT COUNT(*) FROM parent_chunks),
		(SELECT COALESCE(SUM(token_count), 0) FROM parent_chunks)`,
	).Scan(&t.Documents, &t.Elements, &t.Sections, &t.Chunks, &t.Tokens)
	if err != nil {
		return Totals{}, fmt.Errorf("count rows: %w", err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*Document, error) {
	d := &Document{}
	err := sc.Scan(&d.ID, &d.Filename, &d.ContentHash, &d.PageCount, &d.ElementCount,
		&d.CreatedAt, &d.SectionCount, &d.ChunkCount)
	if err != nil {
		return nil, err
	}
	return d, nil
}
