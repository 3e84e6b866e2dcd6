package ingest

import (
	"strings"
	"testing"
)

func TestSplitChunksEmpty(t *testing.T) {
	if got := SplitChunks("", 100); got != nil {
		t.Errorf("empty input should yield no chunks, got %v", got)
	}
	if got := SplitChunks("   \n\n  \n", 100); got != nil {
		t.Errorf("whitespace input should yield no chunks, got %v", got)
	}
}

func TestSplitChunksSingleParagraph(t *testing.T) {
	got := SplitChunks("short paragraph", 100)
	if len(got) != 1 || got[0] != "short paragraph" {
		t.Errorf("chunks = %v", got)
	}
}

func TestSplitChunksGroupsParagraphs(t *testing.T) {
	text := "first para\n\nsecond para\n\nthird para"
	got := SplitChunks(text, 30)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if got[0] != "first para\n\nsecond para" {
		t.Errorf("chunk 0 = %q", got[0])
	}
	if got[1] != "third para" {
		t.Errorf("chunk 1 = %q", got[1])
	}
}

func TestSplitChunksRespectsLimit(t *testing.T) {
	text := strings.Repeat("word ", 1000)
	for _, chunk := range SplitChunks(text, 200) {
		if len(chunk) > 200 {
			t.Errorf("chunk length %d exceeds limit", len(chunk))
		}
		if chunk == "" {
			t.Error("empty chunk emitted")
		}
	}
}

func TestSplitChunksPrefersSentenceBoundary(t *testing.T) {
	// A long paragraph whose only sentence end sits past the halfway point.
	text := strings.Repeat("x", 120) + ". " + strings.Repeat("y", 120)
	got := SplitChunks(text, 200)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if !strings.HasSuffix(got[0], "x.") {
		t.Errorf("chunk 0 should end at the sentence boundary, got %q", got[0][len(got[0])-10:])
	}
}

func TestSplitChunksHardSplitWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("a", 450)
	got := SplitChunks(text, 200)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if len(got[0]) != 200 || len(got[1]) != 200 || len(got[2]) != 50 {
		t.Errorf("lengths = %d, %d, %d", len(got[0]), len(got[1]), len(got[2]))
	}
}

func TestSplitChunksDefaultSize(t *testing.T) {
	text := strings.Repeat("sentence here. ", 400) // ~6000 chars
	got := SplitChunks(text, 0)
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks at default size, got %d", len(got))
	}
	for _, chunk := range got {
		if len(chunk) > defaultChunkSize {
			t.Errorf("chunk length %d exceeds default limit", len(chunk))
		}
	}
}
