package retrieval

import (
	"context"
	"time"
)

// VectorStore is the interface for vector storage and similarity search
// backends. The default implementation uses SQLite with brute-force cosine
// similarity, which is fine for the single-user document volumes this daemon
// sees. An ANN-capable backend can be swapped in behind this interface.
type VectorStore interface {
	// Insert adds records to the given table.
	Insert(table string, records []Record) error

	// Search returns the top-K records most similar to vector, excluding
	// anything scoring below minScore. Results are ordered by descending score.
	Search(table string, vector []float32, topK int, minScore float32) ([]ScoredRecord, error)

	// GetByIDs returns records matching the given IDs.
	GetByIDs(ctx context.Context, table string, ids []string) ([]Record, error)

	// Delete removes a record by ID.
	Delete(table string, id string) error

	// ExportAll returns all records from the given table, for backend migration.
	ExportAll(table string) ([]Record, error)

	// Count returns the number of records in the given table.
	Count(table string) (int, error)
}

// Record represents a row in the vector store.
type Record struct {
	ID         string
	SourceID   string
	SourceType string
	TextChunk  string
	Embedding  []float32
	CreatedAt  time.Time
	Tags       string // JSON array stored as text
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
