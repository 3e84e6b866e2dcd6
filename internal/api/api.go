// Package api exposes the daemon over HTTP: the assist endpoints that run
// the request pipeline, plus CRUD for conversations and documents. All
// routes except /health require bearer-token auth.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/northstar-app/northstar/internal/conversation"
	"github.com/northstar-app/northstar/internal/openai"
	"github.com/northstar-app/northstar/internal/pipeline"
	"github.com/northstar-app/northstar/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Sender runs the request pipeline. Implemented by pipeline.Orchestrator.
type Sender interface {
	Send(ctx context.Context, prompt string, history []openai.Message, opts pipeline.Options) (pipeline.Result, error)
	SendViaProxy(ctx context.Context, prompt string, history []openai.Message, opts pipeline.Options) (pipeline.Result, error)
	Stats() pipeline.Stats
}

// Deps holds the handler dependencies.
type Deps struct {
	Store         *storage.Store
	Conversations *conversation.Store
	Orchestrator  Sender
	Retriever     MCPRetriever
	Token         string
}

// NewHandler builds the daemon's HTTP routing tree.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/v1/assist", handleAssist(deps, false))
		r.Post("/v1/assist/proxy", handleAssist(deps, true))
		r.Get("/v1/recall", handleRecall(deps))
		r.Get("/v1/stats", handleStats(deps))

		r.Route("/v1/conversations", func(r chi.Router) {
			r.Get("/", handleListConversations(deps))
			r.Post("/", handleCreateConversation(deps))
			r.Get("/active", handleActiveConversation(deps))
			r.Get("/{id}", handleGetConversation(deps))
			r.Delete("/{id}", handleDeleteConversation(deps))
			r.Post("/{id}/activate", handleActivateConversation(deps))
		})

		r.Route("/v1/documents", func(r chi.Router) {
			r.Get("/", handleListDocuments(deps))
			r.Post("/", handleAddDocument(deps))
			r.Get("/{id}", handleGetDocument(deps))
			r.Delete("/{id}", handleDeleteDocument(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := deps.Orchestrator.Stats()
		writeJSON(w, http.StatusOK, map[string]uint64{
			"requests":   stats.Requests,
			"cache_hits": stats.CacheHits,
			"failures":   stats.Failures,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// pipelineError maps the transport error taxonomy onto HTTP statuses.
func pipelineError(w http.ResponseWriter, err error) {
	var configErr *openai.ConfigError
	var transportErr *openai.TransportError
	var protocolErr *openai.ProtocolError
	switch {
	case errors.As(err, &configErr):
		httpError(w, http.StatusPreconditionFailed, "config_error", "%v", configErr)
	case errors.As(err, &transportErr):
		httpError(w, http.StatusBadGateway, "transport_error", "%v", transportErr)
	case errors.As(err, &protocolErr):
		httpError(w, http.StatusBadGateway, "protocol_error", "%v", protocolErr)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
