package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveDocument inserts a document row.
func (s *Store) SaveDocument(doc Document) error {
	_, err := s.db.Exec(`
		INSERT INTO documents (id, name, status, content, openai_file_id, is_processing, processing_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.Status, doc.Content, doc.OpenAIFileID,
		boolToInt(doc.IsProcessing), doc.ProcessingError,
		doc.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetDocument returns a document by id, or ErrNotFound.
func (s *Store) GetDocument(id string) (Document, error) {
	row := s.db.QueryRow(`
		SELECT id, name, status, content, openai_file_id, is_processing, processing_error, created_at
		FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments() ([]Document, error) {
	rows, err := s.db.Query(`
		SELECT id, name, status, content, openai_file_id, is_processing, processing_error, created_at
		FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, doc)
	}
	return results, rows.Err()
}

// MarkDocumentReady clears the processing flag and sets status "ready".
func (s *Store) MarkDocumentReady(id string) error {
	return s.updateDocumentStatus(id, DocStatusReady, false, "")
}

// MarkDocumentFailed records a processing error and sets status "failed".
func (s *Store) MarkDocumentFailed(id, errMsg string) error {
	return s.updateDocumentStatus(id, DocStatusFailed, false, errMsg)
}

func (s *Store) updateDocumentStatus(id, status string, processing bool, errMsg string) error {
	res, err := s.db.Exec(`
		UPDATE documents SET status = ?, is_processing = ?, processing_error = ? WHERE id = ?`,
		status, boolToInt(processing), errMsg, id)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document and its vector index rows.
func (s *Store) DeleteDocument(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM context_vectors WHERE source_id = ?`, id); err != nil {
		return fmt.Errorf("deleting vectors for document %s: %w", id, err)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	var isProcessing int
	var createdAt string
	if err := row.Scan(&d.ID, &d.Name, &d.Status, &d.Content, &d.OpenAIFileID,
		&isProcessing, &d.ProcessingError, &createdAt); err != nil {
		return Document{}, err
	}
	d.IsProcessing = isProcessing != 0
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Document{}, fmt.Errorf("parsing created_at: %w", err)
	}
	d.CreatedAt = t
	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
