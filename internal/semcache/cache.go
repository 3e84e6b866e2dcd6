// Package semcache is a similarity-keyed response cache: a prompt hits when
// a previously answered prompt's embedding is close enough, not only on
// exact text equality. The cache is advisory — every failure inside it is
// logged and reported as a miss so the request path never stalls on it.
package semcache

import (
	"context"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/northstar-app/northstar/internal/directive"
	"github.com/northstar-app/northstar/internal/storage"
)

// DefaultThreshold is the cosine similarity floor for a hit.
const DefaultThreshold = 0.92

// Embedder turns a prompt into an embedding vector. Implemented by
// retrieval.Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EntryStore persists cache entries. Implemented by storage.Store.
type EntryStore interface {
	SaveCacheEntry(entry storage.CacheEntry) error
	AllCacheEntries() ([]storage.CacheEntry, error)
}

// Hit is a successful cache lookup.
type Hit struct {
	Text       string
	Actions    []directive.Action
	Similarity float32
}

// Cache answers repeated prompts from stored responses. A nil *Cache is
// valid and behaves as a permanent miss.
type Cache struct {
	store     EntryStore
	embedder  Embedder
	threshold float32
}

// New creates a Cache. A threshold <= 0 selects DefaultThreshold.
func New(store EntryStore, embedder Embedder, threshold float32) *Cache {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Cache{store: store, embedder: embedder, threshold: threshold}
}

// Lookup embeds the prompt and scans stored entries for the closest one. It
// returns (hit, true) when the best similarity clears the threshold. Any
// embedding or storage failure is logged and treated as a miss.
func (c *Cache) Lookup(ctx context.Context, prompt string) (Hit, bool) {
	if c == nil {
		return Hit{}, false
	}

	vector, err := c.embedder.Embed(ctx, prompt)
	if err != nil {
		slog.Debug("semcache: embedding failed, treating as miss", "error", err)
		return Hit{}, false
	}

	entries, err := c.store.AllCacheEntries()
	if err != nil {
		slog.Warn("semcache: loading entries failed, treating as miss", "error", err)
		return Hit{}, false
	}

	var (
		best      storage.CacheEntry
		bestScore float32 = -1
	)
	for _, entry := range entries {
		score := cosine(vector, entry.Embedding)
		if score > bestScore {
			bestScore = score
			best = entry
		}
	}

	if bestScore < c.threshold {
		return Hit{}, false
	}

	actions, err := directive.UnmarshalActions(best.ActionsJSON)
	if err != nil {
		slog.Warn("semcache: undecodable cached actions, treating as miss", "id", best.ID, "error", err)
		return Hit{}, false
	}

	return Hit{Text: best.Text, Actions: actions, Similarity: bestScore}, true
}

// Store saves a fresh response under the prompt's embedding. Failures are
// logged, never propagated: losing a cache write must not fail the request
// that produced the response.
func (c *Cache) Store(ctx context.Context, prompt, text string, actions []directive.Action) {
	if c == nil {
		return
	}

	vector, err := c.embedder.Embed(ctx, prompt)
	if err != nil {
		slog.Debug("semcache: embedding failed, skipping store", "error", err)
		return
	}

	actionsJSON, err := directive.MarshalActions(actions)
	if err != nil {
		slog.Warn("semcache: marshaling actions failed, skipping store", "error", err)
		return
	}

	entry := storage.CacheEntry{
		ID:          uuid.New().String(),
		Prompt:      prompt,
		Embedding:   vector,
		Text:        text,
		ActionsJSON: actionsJSON,
	}
	if err := c.store.SaveCacheEntry(entry); err != nil {
		slog.Warn("semcache: saving entry failed", "error", err)
	}
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
