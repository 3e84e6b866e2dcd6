package assembler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/northstar-app/northstar/internal/retrieval"
	"github.com/northstar-app/northstar/internal/storage"
)

type fakeDocs struct {
	docs []storage.Document
	err  error
}

func (f *fakeDocs) ListDocuments() ([]storage.Document, error) {
	return f.docs, f.err
}

type fakeSearcher struct {
	chunks []retrieval.ContextChunk
	err    error
	calls  int
}

func (f *fakeSearcher) Retrieve(ctx context.Context, query string, topK int, minSimilarity float32) ([]retrieval.ContextChunk, error) {
	f.calls++
	return f.chunks, f.err
}

func TestNoDocumentsShortCircuits(t *testing.T) {
	searcher := &fakeSearcher{}
	a := New(&fakeDocs{}, searcher)

	text, outcome := a.BuildContext(context.Background(), "anything", 3)
	if text != "" {
		t.Errorf("expected empty context, got %q", text)
	}
	if outcome != OutcomeNoDocuments {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeNoDocuments)
	}
	if searcher.calls != 0 {
		t.Errorf("vector engine invoked %d times with no documents", searcher.calls)
	}
}

func TestSearchResultsPreserveOrder(t *testing.T) {
	docs := &fakeDocs{docs: []storage.Document{
		{ID: "d1", Name: "Journal", Content: "text", Status: storage.DocStatusReady},
		{ID: "d2", Name: "Plan", Content: "text", Status: storage.DocStatusReady},
	}}
	searcher := &fakeSearcher{chunks: []retrieval.ContextChunk{
		{ID: "c1", SourceID: "d2", Text: "second doc chunk", Score: 0.91},
		{ID: "c2", SourceID: "d1", Text: "first doc chunk", Score: 0.85},
	}}
	a := New(docs, searcher)

	text, outcome := a.BuildContext(context.Background(), "query", 3)
	if outcome != OutcomeSearch {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeSearch)
	}

	planIdx := strings.Index(text, "[Document: Plan]")
	journalIdx := strings.Index(text, "[Document: Journal]")
	if planIdx < 0 || journalIdx < 0 {
		t.Fatalf("missing labeled blocks in %q", text)
	}
	if planIdx > journalIdx {
		t.Error("engine order not preserved: higher-ranked chunk should come first")
	}
	if !strings.Contains(text, "second doc chunk") {
		t.Errorf("chunk text missing from %q", text)
	}
}

func TestSearchErrorFallsBackToDocumentContent(t *testing.T) {
	docs := &fakeDocs{docs: []storage.Document{
		{ID: "d1", Name: "Notes", Content: "raw notes content", Status: storage.DocStatusReady},
	}}
	searcher := &fakeSearcher{err: errors.New("index unavailable")}
	a := New(docs, searcher)

	text, outcome := a.BuildContext(context.Background(), "query", 3)
	if outcome != OutcomeSearchFailed {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeSearchFailed)
	}
	if !strings.Contains(text, "[Document: Notes]") || !strings.Contains(text, "raw notes content") {
		t.Errorf("fallback content missing: %q", text)
	}
}

func TestSearchEmptyFallsBackWithDistinctOutcome(t *testing.T) {
	docs := &fakeDocs{docs: []storage.Document{
		{ID: "d1", Name: "Notes", Content: "raw notes content", Status: storage.DocStatusReady},
	}}
	a := New(docs, &fakeSearcher{})

	_, outcome := a.BuildContext(context.Background(), "query", 3)
	if outcome != OutcomeSearchEmpty {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeSearchEmpty)
	}
}

func TestFallbackSkipsUnusableDocuments(t *testing.T) {
	docs := &fakeDocs{docs: []storage.Document{
		{ID: "d1", Name: "Processing", Content: "pending", IsProcessing: true},
		{ID: "d2", Name: "Errored", Content: "bad", ProcessingError: "extraction failed"},
		{ID: "d3", Name: "Empty", Content: ""},
		{ID: "d4", Name: "Good", Content: "usable content"},
	}}
	a := New(docs, &fakeSearcher{})

	text, _ := a.BuildContext(context.Background(), "query", 3)
	if strings.Contains(text, "Processing") || strings.Contains(text, "Errored") || strings.Contains(text, "Empty") {
		t.Errorf("unusable document leaked into context: %q", text)
	}
	if !strings.Contains(text, "[Document: Good]") {
		t.Errorf("usable document missing: %q", text)
	}
}

func TestFallbackTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("a", maxDirectChars+500)
	docs := &fakeDocs{docs: []storage.Document{
		{ID: "d1", Name: "Big", Content: long},
	}}
	a := New(docs, &fakeSearcher{})

	text, _ := a.BuildContext(context.Background(), "query", 3)
	if !strings.Contains(text, strings.Repeat("a", maxDirectChars)+"...") {
		t.Error("expected truncated content with ellipsis marker")
	}
	if strings.Contains(text, strings.Repeat("a", maxDirectChars+1)) {
		t.Error("content exceeds truncation limit")
	}
}

func TestNothingUsableYieldsNoContext(t *testing.T) {
	docs := &fakeDocs{docs: []storage.Document{
		{ID: "d1", Name: "Processing", IsProcessing: true},
	}}
	a := New(docs, &fakeSearcher{})

	text, outcome := a.BuildContext(context.Background(), "query", 3)
	if text != "" {
		t.Errorf("expected empty context, got %q", text)
	}
	if outcome != OutcomeNoContext {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeNoContext)
	}
}

func TestUnknownSourceFallsBackToID(t *testing.T) {
	docs := &fakeDocs{docs: []storage.Document{
		{ID: "d1", Name: "Known", Content: "x"},
	}}
	searcher := &fakeSearcher{chunks: []retrieval.ContextChunk{
		{ID: "c1", SourceID: "gone", Text: "orphan chunk", Score: 0.8},
	}}
	a := New(docs, searcher)

	text, _ := a.BuildContext(context.Background(), "query", 3)
	if !strings.Contains(text, "[Document: gone]") {
		t.Errorf("expected source id label for unknown document, got %q", text)
	}
}
