package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmbeddingClient is the interface the Embedder needs from the remote
// embeddings endpoint. Implemented by openai.Client.
type EmbeddingClient interface {
	Embeddings(ctx context.Context, input []string) ([][]float32, error)
}

// Embedder wraps an EmbeddingClient to generate text embeddings.
type Embedder struct {
	client EmbeddingClient
}

// NewEmbedder creates an Embedder using the given client.
func NewEmbedder(client EmbeddingClient) *Embedder {
	return &Embedder{client: client}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.client.Embeddings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

// EmbedBatch returns embedding vectors for multiple texts. Batches of up to
// batchSize go to the endpoint concurrently, bounded to 4 in-flight requests.
// Returns nil (not error) for empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const batchSize = 16

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid tripping endpoint rate limits.

	for start := 0; start < len(texts); start += batchSize {
		start := start
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.client.Embeddings(gCtx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding batch [%d:%d]: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("batch [%d:%d]: expected %d embeddings, got %d", start, end, end-start, len(vecs))
			}
			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
