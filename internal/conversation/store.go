// Package conversation manages persisted chat threads and tracks which one
// is active. It wraps the storage layer with the small amount of policy the
// request path needs: ID assignment, timestamps, and self-healing appends
// when a referenced conversation has gone missing.
package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/northstar-app/northstar/internal/storage"
)

const activeStateKey = "active_conversation_id"

const defaultListLimit = 50

// Backend is the persistence surface Store needs. Implemented by
// storage.Store.
type Backend interface {
	CreateConversation(conv storage.Conversation) error
	GetConversation(id string) (storage.Conversation, error)
	AppendMessage(m storage.Message) error
	SaveConversation(conv storage.Conversation) error
	ListConversations(limit int) ([]storage.Conversation, error)
	DeleteConversation(id string) error
	GetState(key string) (string, error)
	SetState(key, value string) error
}

// Store manages conversations.
type Store struct {
	backend Backend
}

// NewStore creates a Store over the given backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Create starts a new conversation, optionally seeded with initial messages,
// and marks it active.
func (s *Store) Create(initial ...storage.Message) (storage.Conversation, error) {
	now := time.Now().UTC()
	conv := storage.Conversation{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range initial {
		conv.Messages = append(conv.Messages, normalize(m, conv.ID, now))
	}

	if err := s.backend.CreateConversation(conv); err != nil {
		return storage.Conversation{}, fmt.Errorf("creating conversation: %w", err)
	}
	if err := s.backend.SetState(activeStateKey, conv.ID); err != nil {
		return storage.Conversation{}, fmt.Errorf("marking conversation active: %w", err)
	}
	return conv, nil
}

// Get loads a conversation with its messages. Returns storage.ErrNotFound
// when it does not exist.
func (s *Store) Get(id string) (storage.Conversation, error) {
	return s.backend.GetConversation(id)
}

// AddMessage appends a message to the conversation with the given ID. When
// that conversation no longer exists, a fresh one is created holding just
// this message — history references from stale clients degrade to a new
// thread instead of an error. The conversation the message landed in is
// returned.
func (s *Store) AddMessage(conversationID, role, text string) (storage.Conversation, error) {
	now := time.Now().UTC()
	msg := storage.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		CreatedAt:      now,
	}

	err := s.backend.AppendMessage(msg)
	if err == storage.ErrNotFound {
		return s.Create(msg)
	}
	if err != nil {
		return storage.Conversation{}, fmt.Errorf("appending message: %w", err)
	}
	return s.backend.GetConversation(conversationID)
}

// Save upserts a whole conversation, replacing its messages.
func (s *Store) Save(conv storage.Conversation) error {
	now := time.Now().UTC()
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
	for i, m := range conv.Messages {
		conv.Messages[i] = normalize(m, conv.ID, now)
	}
	return s.backend.SaveConversation(conv)
}

// List returns conversations ordered by most recent activity, without their
// messages. A limit <= 0 selects the default.
func (s *Store) List(limit int) ([]storage.Conversation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.backend.ListConversations(limit)
}

// Delete removes a conversation. If it was the active one, the active marker
// is cleared.
func (s *Store) Delete(id string) error {
	if err := s.backend.DeleteConversation(id); err != nil {
		return err
	}
	active, err := s.backend.GetState(activeStateKey)
	if err == nil && active == id {
		return s.backend.SetState(activeStateKey, "")
	}
	return nil
}

// Active returns the ID of the active conversation, or "" when none is set.
func (s *Store) Active() string {
	id, err := s.backend.GetState(activeStateKey)
	if err != nil {
		return ""
	}
	return id
}

// SetActive marks the given conversation as the active one.
func (s *Store) SetActive(id string) error {
	if _, err := s.backend.GetConversation(id); err != nil {
		return err
	}
	return s.backend.SetState(activeStateKey, id)
}

func normalize(m storage.Message, conversationID string, now time.Time) storage.Message {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.ConversationID = conversationID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	return m
}
