package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/northstar-app/northstar/internal/retrieval"
	"github.com/northstar-app/northstar/internal/storage"
)

// JobTypeIndex is the queue type for document indexing jobs.
const JobTypeIndex = "document_index"

// DocumentStore is the persistence surface the worker needs. Implemented by
// storage.Store.
type DocumentStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetDocument(id string) (storage.Document, error)
	MarkDocumentReady(id string) error
	MarkDocumentFailed(id, errMsg string) error
}

// BatchEmbedder embeds chunk batches. Implemented by retrieval.Embedder.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorInserter inserts records into the vector index. Implemented by
// retrieval.SQLiteStore.
type VectorInserter interface {
	Insert(table string, records []retrieval.Record) error
}

// NewIndexJob builds a queue job that indexes the given document.
func NewIndexJob(documentID string) (storage.Job, error) {
	payload, err := json.Marshal(indexPayload{DocumentID: documentID})
	if err != nil {
		return storage.Job{}, fmt.Errorf("marshaling index payload: %w", err)
	}
	return storage.Job{
		ID:          uuid.New().String(),
		Type:        JobTypeIndex,
		PayloadJSON: string(payload),
	}, nil
}

// Worker drains document_index jobs from the SQLite job queue: chunk the
// document, embed the chunks, insert the vectors, and flip the document to
// ready.
type Worker struct {
	store    DocumentStore
	embedder BatchEmbedder
	vectors  VectorInserter
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker. A pollInterval <= 0 defaults to 500ms.
func NewWorker(store DocumentStore, embedder BatchEmbedder, vectors VectorInserter, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single indexing job. Returns true if a job
// was processed, regardless of success.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeIndex})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("indexing job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type indexPayload struct {
	DocumentID string `json:"document_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload indexPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	chunks := SplitChunks(doc.Content, 0)
	if len(chunks) == 0 {
		// Nothing to index: an empty document is ready, not failed.
		return w.store.MarkDocumentReady(doc.ID)
	}

	vecs, err := w.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		// Surface the failure on the document too; a successful retry
		// clears it via MarkDocumentReady.
		if markErr := w.store.MarkDocumentFailed(doc.ID, err.Error()); markErr != nil {
			w.logger.Error("failed to mark document", "document_id", doc.ID, "error", markErr)
		}
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	now := time.Now().UTC()
	records := make([]retrieval.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = retrieval.Record{
			ID:         uuid.New().String(),
			SourceID:   doc.ID,
			SourceType: "document",
			TextChunk:  chunk,
			Embedding:  vecs[i],
			CreatedAt:  now,
		}
	}

	if err := w.vectors.Insert("context_vectors", records); err != nil {
		if markErr := w.store.MarkDocumentFailed(doc.ID, err.Error()); markErr != nil {
			w.logger.Error("failed to mark document", "document_id", doc.ID, "error", markErr)
		}
		return fmt.Errorf("inserting %d vectors: %w", len(records), err)
	}

	if err := w.store.MarkDocumentReady(doc.ID); err != nil {
		return fmt.Errorf("marking document ready: %w", err)
	}

	w.logger.Info("document indexed", "document_id", doc.ID, "chunks", len(chunks))
	return nil
}
