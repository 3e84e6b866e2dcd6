package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateConversation inserts a conversation row and any initial messages in
// one transaction.
func (s *Store) CreateConversation(conv Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning create transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)`,
		conv.ID, conv.CreatedAt.UTC().Format(time.RFC3339), conv.UpdatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("inserting conversation %s: %w", conv.ID, err)
	}

	for _, m := range conv.Messages {
		if err := insertMessage(tx, m); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetConversation loads a conversation and its messages in append order.
func (s *Store) GetConversation(id string) (Conversation, error) {
	var conv Conversation
	var createdAt, updatedAt string
	err := s.db.QueryRow(`SELECT id, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	if conv.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Conversation{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if conv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Conversation{}, fmt.Errorf("parsing updated_at: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT id, conversation_id, role, text, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`, id)
	if err != nil {
		return Conversation{}, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Message
		var msgCreatedAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Text, &msgCreatedAt); err != nil {
			return Conversation{}, fmt.Errorf("scanning message: %w", err)
		}
		if m.CreatedAt, err = time.Parse(time.RFC3339, msgCreatedAt); err != nil {
			return Conversation{}, fmt.Errorf("parsing message created_at: %w", err)
		}
		conv.Messages = append(conv.Messages, m)
	}
	return conv, rows.Err()
}

// AppendMessage adds a message row to an existing conversation and bumps its
// updated_at. Returns ErrNotFound if the conversation does not exist. The
// write touches only this conversation's rows, so concurrent appends to
// different conversations cannot clobber each other.
func (s *Store) AppendMessage(m Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		m.CreatedAt.UTC().Format(time.RFC3339), m.ConversationID)
	if err != nil {
		return fmt.Errorf("touching conversation %s: %w", m.ConversationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := insertMessage(tx, m); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveConversation upserts the conversation row and replaces its messages.
func (s *Store) SaveConversation(conv Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		conv.ID, conv.CreatedAt.UTC().Format(time.RFC3339), conv.UpdatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("upserting conversation %s: %w", conv.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return fmt.Errorf("clearing messages for %s: %w", conv.ID, err)
	}
	for _, m := range conv.Messages {
		if err := insertMessage(tx, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListConversations returns conversation rows (without messages) ordered by
// most recently updated.
func (s *Store) ListConversations(limit int) ([]Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, updated_at FROM conversations
		ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Conversation
	for rows.Next() {
		var conv Conversation
		var createdAt, updatedAt string
		if err := rows.Scan(&conv.ID, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if conv.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if conv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, conv)
	}
	return results, rows.Err()
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(id string) error {
	res, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
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

func insertMessage(tx *sql.Tx, m Message) error {
	if _, err := tx.Exec(`
		INSERT INTO messages (id, conversation_id, role, text, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Text, m.CreatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("inserting message %s: %w", m.ID, err)
	}
	return nil
}
