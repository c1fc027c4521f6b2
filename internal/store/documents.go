package store

import (
	"context"
	"fmt"
)

// CreateDocument records an ingested document under the worker-assigned id.
func (s *Store) CreateDocument(ctx context.Context, doc Document) (*Document, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, filename, type, status, chunk_count, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING created_at`,
		doc.ID, doc.Filename, doc.Type, doc.Status, doc.ChunkCount,
	).Scan(&doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, filename, type, status, chunk_count, created_at
		FROM documents
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.Type, &d.Status, &d.ChunkCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document record.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
