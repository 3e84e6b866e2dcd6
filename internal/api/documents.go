package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/northstar-app/northstar/internal/ingest"
	"github.com/northstar-app/northstar/internal/storage"
)

const maxDocumentBodySize = 10 << 20 // 10MB

// DocumentRequest is the body of POST /v1/documents. Type selects how
// Content/URL is interpreted: "text" (default) takes Content verbatim,
// "file" decodes Content from base64 (PDF or plain text), "url" fetches URL.
type DocumentRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// DocumentSummary is a document without its content, for listings.
type DocumentSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	IsProcessing    bool   `json:"isProcessing"`
	ProcessingError string `json:"processingError,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

func handleAddDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBodySize)
		defer r.Body.Close()

		var req DocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Content == "" && req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of content or url is required")
			return
		}
		if req.Type == "" {
			req.Type = "text"
		}

		var content string
		switch req.Type {
		case "url":
			if req.URL == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required for type url")
				return
			}
			fetched, err := ingest.FetchURL(r.Context(), req.URL)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "failed to fetch url: %v", err)
				return
			}
			content = fetched
			if req.Name == "" {
				req.Name = req.URL
			}

		case "file":
			decoded, err := base64.StdEncoding.DecodeString(req.Content)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
				return
			}
			if bytes.HasPrefix(decoded, []byte("%PDF")) {
				text, err := ingest.ExtractPDF(bytes.NewReader(decoded), int64(len(decoded)))
				if err != nil {
					httpError(w, http.StatusBadRequest, "invalid_request_error", "failed to extract pdf text: %v", err)
					return
				}
				content = text
			} else {
				content = string(decoded)
			}

		case "text":
			content = req.Content

		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown document type %q", req.Type)
			return
		}

		if strings.TrimSpace(content) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "document has no extractable text")
			return
		}
		if req.Name == "" {
			req.Name = "Untitled document"
		}

		doc := storage.Document{
			ID:           uuid.New().String(),
			Name:         req.Name,
			Status:       storage.DocStatusProcessing,
			Content:      content,
			IsProcessing: true,
			CreatedAt:    time.Now().UTC(),
		}
		if err := deps.Store.SaveDocument(doc); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save document: %v", err)
			return
		}

		job, err := ingest.NewIndexJob(doc.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create index job: %v", err)
			return
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue index job: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     doc.ID,
			"status": "queued",
		})
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Store.ListDocuments()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}

		summaries := make([]DocumentSummary, len(docs))
		for i, d := range docs {
			summaries[i] = documentSummary(d)
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

func handleGetDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		doc, err := deps.Store.GetDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get document: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			DocumentSummary
			Content string `json:"content"`
		}{documentSummary(doc), doc.Content})
	}
}

func handleDeleteDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		// DeleteDocument clears the document's index rows in the same
		// transaction.
		err := deps.Store.DeleteDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete document: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func documentSummary(d storage.Document) DocumentSummary {
	return DocumentSummary{
		ID:              d.ID,
		Name:            d.Name,
		Status:          d.Status,
		IsProcessing:    d.IsProcessing,
		ProcessingError: d.ProcessingError,
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
	}
}
