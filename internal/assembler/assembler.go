// Package assembler builds the bounded background-knowledge block that is
// folded into model prompts. Retrieval infrastructure is unreliable at this
// scale (empty index, missing embeddings key), so assembly is an ordered
// fallback chain that degrades to raw document text, and from there to
// nothing — never to an error.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/northstar-app/northstar/internal/retrieval"
	"github.com/northstar-app/northstar/internal/storage"
)

const (
	// minSimilarity is the fixed relevance floor for vector search hits.
	minSimilarity = 0.6

	// maxDirectChars caps how much raw document content the direct-content
	// fallback emits per document.
	maxDirectChars = 2000

	defaultMaxResults = 3
)

// Outcome tags which stage of the fallback chain produced the context.
// Behavior is identical for SearchFailed and SearchEmpty; only diagnostics
// differ.
type Outcome string

const (
	OutcomeNoDocuments  Outcome = "no_documents"
	OutcomeSearch       Outcome = "search"
	OutcomeSearchEmpty  Outcome = "search_empty_fallback"
	OutcomeSearchFailed Outcome = "search_failed_fallback"
	OutcomeNoContext    Outcome = "no_context"
)

// DocumentSource lists ingested documents. Implemented by storage.Store.
type DocumentSource interface {
	ListDocuments() ([]storage.Document, error)
}

// Searcher runs similarity search over document chunks. Implemented by
// retrieval.Retriever.
type Searcher interface {
	Retrieve(ctx context.Context, query string, topK int, minSimilarity float32) ([]retrieval.ContextChunk, error)
}

// Assembler produces relevant background text for a prompt.
type Assembler struct {
	docs     DocumentSource
	searcher Searcher
}

// New creates an Assembler over the given document source and searcher.
func New(docs DocumentSource, searcher Searcher) *Assembler {
	return &Assembler{docs: docs, searcher: searcher}
}

// BuildContext returns a labeled text block of background knowledge for the
// prompt, or "" when nothing relevant is available. It never returns an
// error: every internal failure degrades to the next fallback stage.
//
// The chain, in order:
//  1. No ingested documents: return "" before any vector or network call.
//  2. Vector search at the similarity floor; hits are formatted in the
//     engine's ranked order.
//  3. On search error or zero hits, fall back to the raw content of usable
//     documents, truncated per document.
//  4. Nothing usable anywhere: "".
func (a *Assembler) BuildContext(ctx context.Context, prompt string, maxResults int) (string, Outcome) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	docs, err := a.docs.ListDocuments()
	if err != nil {
		slog.Warn("assembler: listing documents failed", "error", err)
		return "", OutcomeNoDocuments
	}
	if len(docs) == 0 {
		// Common, cheap case: nothing ingested, skip the vector engine.
		return "", OutcomeNoDocuments
	}

	chunks, searchErr := a.searcher.Retrieve(ctx, prompt, maxResults, minSimilarity)
	if searchErr != nil {
		slog.Warn("assembler: vector search failed, falling back to document content", "error", searchErr)
	}

	if len(chunks) > 0 {
		return formatChunks(chunks, docs), OutcomeSearch
	}

	outcome := OutcomeSearchEmpty
	if searchErr != nil {
		outcome = OutcomeSearchFailed
	}

	text := formatDirect(docs)
	if text == "" {
		return "", OutcomeNoContext
	}
	return text, outcome
}

// formatChunks renders search hits as labeled blocks in engine order.
func formatChunks(chunks []retrieval.ContextChunk, docs []storage.Document) string {
	names := make(map[string]string, len(docs))
	for _, d := range docs {
		names[d.ID] = d.Name
	}

	var sb strings.Builder
	for _, ch := range chunks {
		name := names[ch.SourceID]
		if name == "" {
			name = ch.SourceID
		}
		fmt.Fprintf(&sb, "[Document: %s]\n%s\n\n", name, ch.Text)
	}
	return sb.String()
}

// formatDirect renders the raw content of usable documents, truncated.
func formatDirect(docs []storage.Document) string {
	var sb strings.Builder
	for _, d := range docs {
		if !d.Usable() {
			continue
		}
		content := d.Content
		if len(content) > maxDirectChars {
			content = content[:maxDirectChars] + "..."
		}
		fmt.Fprintf(&sb, "[Document: %s]\n%s\n\n", d.Name, content)
	}
	return sb.String()
}
