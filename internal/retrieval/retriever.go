package retrieval

import (
	"context"
	"time"
)

// ContextChunk is a retrieved context fragment with its similarity score.
// SourceID identifies the document the chunk came from; name resolution is
// left to callers that already hold the document list.
type ContextChunk struct {
	ID         string
	SourceID   string
	SourceType string
	Text       string
	Score      float32
	CreatedAt  time.Time
}

// Retriever combines embedding and vector search to find relevant context.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds the query and returns the top-K context chunks scoring at
// or above minSimilarity, best first. The store's ordering is trusted.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, minSimilarity float32) ([]ContextChunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := r.store.Search("context_vectors", vec, topK, minSimilarity)
	if err != nil {
		return nil, err
	}

	chunks := make([]ContextChunk, len(scored))
	for i, s := range scored {
		chunks[i] = ContextChunk{
			ID:         s.ID,
			SourceID:   s.SourceID,
			SourceType: s.SourceType,
			Text:       s.TextChunk,
			Score:      s.Score,
			CreatedAt:  s.CreatedAt,
		}
	}
	return chunks, nil
}
