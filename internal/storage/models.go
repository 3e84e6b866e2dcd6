package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Conversation roles.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// Conversation is a persisted chat thread. Messages are stored per-row in the
// messages table rather than as one serialized blob, so two writers appending
// to different conversations never clobber each other.
type Conversation struct {
	ID        string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single conversation turn. Immutable once appended.
type Message struct {
	ID             string
	ConversationID string
	Role           string // "user" or "ai"
	Text           string
	CreatedAt      time.Time
}

// Document statuses.
const (
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
	DocStatusFailed     = "failed"
)

// Document is an ingested knowledge source. It is usable as fallback context
// only when it is not processing, has no processing error, and has content.
type Document struct {
	ID              string
	Name            string
	Status          string
	Content         string
	OpenAIFileID    string
	IsProcessing    bool
	ProcessingError string
	CreatedAt       time.Time
}

// Usable reports whether the document can serve as raw fallback context.
func (d Document) Usable() bool {
	return !d.IsProcessing && d.ProcessingError == "" && d.Content != ""
}

// CacheEntry is a persisted semantic cache row. The prompt embedding is kept
// alongside the response so lookups are a pure similarity scan.
type CacheEntry struct {
	ID          string
	Prompt      string
	Embedding   []float32
	Text        string
	ActionsJSON string
	CreatedAt   time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
