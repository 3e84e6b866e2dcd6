package storage

import (
	"errors"
	"testing"
	"time"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// --- Conversations ---

func TestConversationRoundTrip(t *testing.T) {
	s := openTest(t)

	now := time.Now().UTC().Truncate(time.Second)
	conv := Conversation{
		ID:        "c1",
		CreatedAt: now,
		UpdatedAt: now,
		Messages: []Message{
			{ID: "m1", ConversationID: "c1", Role: RoleUser, Text: "hi", CreatedAt: now},
			{ID: "m2", ConversationID: "c1", Role: RoleAI, Text: "hello", CreatedAt: now},
		},
	}
	if err := s.CreateConversation(conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	got, err := s.GetConversation("c1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	// Same-timestamp messages keep insertion order.
	if got.Messages[0].ID != "m1" || got.Messages[1].ID != "m2" {
		t.Errorf("message order: %s, %s", got.Messages[0].ID, got.Messages[1].ID)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, now)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	s := openTest(t)
	if _, err := s.GetConversation("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAppendMessageBumpsUpdatedAt(t *testing.T) {
	s := openTest(t)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.CreateConversation(Conversation{ID: "c1", CreatedAt: created, UpdatedAt: created}); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	later := created.Add(time.Hour)
	err := s.AppendMessage(Message{ID: "m1", ConversationID: "c1", Role: RoleUser, Text: "ping", CreatedAt: later})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := s.GetConversation("c1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, later)
	}
}

func TestAppendMessageMissingConversation(t *testing.T) {
	s := openTest(t)
	err := s.AppendMessage(Message{ID: "m1", ConversationID: "ghost", Role: RoleUser, Text: "x", CreatedAt: time.Now()})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveConversationReplacesMessages(t *testing.T) {
	s := openTest(t)

	now := time.Now().UTC().Truncate(time.Second)
	conv := Conversation{ID: "c1", CreatedAt: now, UpdatedAt: now, Messages: []Message{
		{ID: "m1", ConversationID: "c1", Role: RoleUser, Text: "old", CreatedAt: now},
	}}
	if err := s.SaveConversation(conv); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}

	conv.Messages = []Message{
		{ID: "m2", ConversationID: "c1", Role: RoleUser, Text: "new", CreatedAt: now},
	}
	if err := s.SaveConversation(conv); err != nil {
		t.Fatalf("SaveConversation (second): %v", err)
	}

	got, err := s.GetConversation("c1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Text != "new" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestListConversationsOrderAndLimit(t *testing.T) {
	s := openTest(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		ts := base.Add(time.Duration(i) * time.Hour)
		if err := s.CreateConversation(Conversation{ID: id, CreatedAt: ts, UpdatedAt: ts}); err != nil {
			t.Fatalf("CreateConversation %s: %v", id, err)
		}
	}

	list, err := s.ListConversations(2)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(list))
	}
	if list[0].ID != "new" || list[1].ID != "mid" {
		t.Errorf("order = %s, %s; want new, mid", list[0].ID, list[1].ID)
	}
}

func TestDeleteConversationCascadesMessages(t *testing.T) {
	s := openTest(t)

	now := time.Now().UTC()
	conv := Conversation{ID: "c1", CreatedAt: now, UpdatedAt: now, Messages: []Message{
		{ID: "m1", ConversationID: "c1", Role: RoleUser, Text: "x", CreatedAt: now},
	}}
	if err := s.CreateConversation(conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	if err := s.DeleteConversation("c1"); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = 'c1'`).Scan(&count); err != nil {
		t.Fatalf("counting messages: %v", err)
	}
	if count != 0 {
		t.Errorf("expected cascade delete, %d messages remain", count)
	}

	if err := s.DeleteConversation("c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

// --- Documents ---

func TestDocumentLifecycle(t *testing.T) {
	s := openTest(t)

	doc := Document{
		ID:           "d1",
		Name:         "Notes",
		Status:       DocStatusProcessing,
		Content:      "some text",
		IsProcessing: true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, err := s.GetDocument("d1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Usable() {
		t.Error("processing document must not be usable")
	}

	if err := s.MarkDocumentReady("d1"); err != nil {
		t.Fatalf("MarkDocumentReady: %v", err)
	}
	got, _ = s.GetDocument("d1")
	if got.Status != DocStatusReady || got.IsProcessing || !got.Usable() {
		t.Errorf("after ready: %+v", got)
	}

	if err := s.MarkDocumentFailed("d1", "boom"); err != nil {
		t.Fatalf("MarkDocumentFailed: %v", err)
	}
	got, _ = s.GetDocument("d1")
	if got.Status != DocStatusFailed || got.ProcessingError != "boom" || got.Usable() {
		t.Errorf("after failed: %+v", got)
	}

	// Retry success clears the recorded error.
	if err := s.MarkDocumentReady("d1"); err != nil {
		t.Fatalf("MarkDocumentReady (retry): %v", err)
	}
	got, _ = s.GetDocument("d1")
	if got.ProcessingError != "" || !got.Usable() {
		t.Errorf("after retry: %+v", got)
	}
}

func TestDocumentNotFound(t *testing.T) {
	s := openTest(t)
	if _, err := s.GetDocument("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument err = %v, want ErrNotFound", err)
	}
	if err := s.MarkDocumentReady("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkDocumentReady err = %v, want ErrNotFound", err)
	}
}

func TestDeleteDocumentRemovesVectors(t *testing.T) {
	s := openTest(t)

	if err := s.SaveDocument(Document{ID: "d1", Name: "N", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	_, err := s.db.Exec(`
		INSERT INTO context_vectors (id, source_id, source_type, text_chunk, embedding, created_at)
		VALUES ('v1', 'd1', 'document', 'chunk', X'0000803F', '2026-03-01T10:00:00Z')`)
	if err != nil {
		t.Fatalf("seeding vector: %v", err)
	}

	if err := s.DeleteDocument("d1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM context_vectors WHERE source_id = 'd1'`).Scan(&count); err != nil {
		t.Fatalf("counting vectors: %v", err)
	}
	if count != 0 {
		t.Errorf("expected vectors deleted with document, %d remain", count)
	}
}

// --- Cache entries ---

func TestCacheEntryRoundTrip(t *testing.T) {
	s := openTest(t)

	entry := CacheEntry{
		ID:          "e1",
		Prompt:      "plan my week",
		Embedding:   []float32{0.25, -1.5, 3},
		Text:        "Here's a plan.",
		ActionsJSON: `[{"id":"a","type":"createGoal","data":{}}]`,
	}
	if err := s.SaveCacheEntry(entry); err != nil {
		t.Fatalf("SaveCacheEntry: %v", err)
	}

	entries, err := s.AllCacheEntries()
	if err != nil {
		t.Fatalf("AllCacheEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Prompt != entry.Prompt || got.Text != entry.Text || got.ActionsJSON != entry.ActionsJSON {
		t.Errorf("entry = %+v", got)
	}
	if len(got.Embedding) != 3 {
		t.Fatalf("embedding length = %d", len(got.Embedding))
	}
	for i, want := range entry.Embedding {
		if got.Embedding[i] != want {
			t.Errorf("embedding[%d] = %f, want %f", i, got.Embedding[i], want)
		}
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at backfilled")
	}
}

// --- App state ---

func TestAppState(t *testing.T) {
	s := openTest(t)

	if _, err := s.GetState("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetState err = %v, want ErrNotFound", err)
	}

	if err := s.SetState("k", "v1"); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if err := s.SetState("k", "v2"); err != nil {
		t.Fatalf("SetState (upsert): %v", err)
	}
	got, err := s.GetState("k")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if got != "v2" {
		t.Errorf("value = %q, want v2", got)
	}
}

// --- Jobs ---

func TestJobClaimCompleteCycle(t *testing.T) {
	s := openTest(t)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "document_index", PayloadJSON: `{"document_id":"d1"}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob([]string{"document_index"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil {
		t.Fatal("expected a claimed job")
	}
	if job.ID != "j1" || job.Status != "running" {
		t.Errorf("job = %+v", job)
	}

	// Claimed job is invisible to a second claimer.
	second, err := s.ClaimNextJob([]string{"document_index"})
	if err != nil {
		t.Fatalf("ClaimNextJob (second): %v", err)
	}
	if second != nil {
		t.Errorf("running job claimed twice: %+v", second)
	}

	if err := s.CompleteJob("j1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
}

func TestClaimFiltersByType(t *testing.T) {
	s := openTest(t)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "other_work", PayloadJSON: "{}"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob([]string{"document_index"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job != nil {
		t.Errorf("claimed job of wrong type: %+v", job)
	}

	job, err = s.ClaimNextJob(nil)
	if err != nil || job != nil {
		t.Errorf("empty type list should claim nothing, got %+v, %v", job, err)
	}
}

func TestFailJobBacksOffThenFails(t *testing.T) {
	s := openTest(t)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "document_index", PayloadJSON: "{}", MaxAttempts: 2}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob([]string{"document_index"})
	if err != nil || job == nil {
		t.Fatalf("first claim: %+v, %v", job, err)
	}

	// First failure reschedules with backoff, so it is not immediately claimable.
	if err := s.FailJob("j1", "transient"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	job, err = s.ClaimNextJob([]string{"document_index"})
	if err != nil {
		t.Fatalf("claim after backoff schedule: %v", err)
	}
	if job != nil {
		t.Errorf("backed-off job should not be runnable yet: %+v", job)
	}

	var status string
	var attempts int
	if err := s.db.QueryRow(`SELECT status, attempts FROM jobs WHERE id = 'j1'`).Scan(&status, &attempts); err != nil {
		t.Fatalf("reading job row: %v", err)
	}
	if status != "pending" || attempts != 1 {
		t.Errorf("after first failure: status=%s attempts=%d", status, attempts)
	}

	// Second failure exhausts max_attempts.
	if err := s.FailJob("j1", "fatal"); err != nil {
		t.Fatalf("FailJob (second): %v", err)
	}
	var lastError string
	if err := s.db.QueryRow(`SELECT status, attempts, last_error FROM jobs WHERE id = 'j1'`).Scan(&status, &attempts, &lastError); err != nil {
		t.Fatalf("reading job row: %v", err)
	}
	if status != "failed" || attempts != 2 || lastError != "fatal" {
		t.Errorf("after exhaustion: status=%s attempts=%d last_error=%q", status, attempts, lastError)
	}
}

func TestFailJobNotFound(t *testing.T) {
	s := openTest(t)
	if err := s.FailJob("ghost", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.CompleteJob("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteJob err = %v, want ErrNotFound", err)
	}
}

func TestEmbeddingCodec(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, 3.14159}
	out, err := decodeEmbedding(encodeEmbedding(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("value[%d] = %f, want %f", i, out[i], in[i])
		}
	}
	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
