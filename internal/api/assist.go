package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/northstar-app/northstar/internal/directive"
	"github.com/northstar-app/northstar/internal/openai"
	"github.com/northstar-app/northstar/internal/pipeline"
	"github.com/northstar-app/northstar/internal/storage"
)

// AssistRequest is the body of POST /v1/assist and /v1/assist/proxy.
type AssistRequest struct {
	Prompt         string  `json:"prompt"`
	ConversationID string  `json:"conversationId,omitempty"`
	Model          string  `json:"model,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	MaxTokens      int     `json:"maxTokens,omitempty"`
	MaxResults     int     `json:"maxResults,omitempty"`
	AITier         string  `json:"aiTier,omitempty"`
	Verbosity      string  `json:"verbosity,omitempty"`
	UserID         string  `json:"userId,omitempty"`
}

// AssistResponse is the assist reply.
type AssistResponse struct {
	Text           string             `json:"text"`
	Actions        []directive.Action `json:"actions,omitempty"`
	FromCache      bool               `json:"fromCache"`
	Similarity     float32            `json:"similarity,omitempty"`
	ResponseTimeMs int64              `json:"responseTimeMs"`
	ConversationID string             `json:"conversationId"`
	Usage          *openai.Usage      `json:"usage,omitempty"`
}

// handleAssist runs the pipeline for one prompt. The exchange is persisted to
// the conversation named in the request, or to a fresh conversation when none
// is given (or the given one has been deleted).
func handleAssist(deps Deps, viaProxy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AssistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Prompt == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "prompt is required")
			return
		}

		history := loadHistory(deps, req.ConversationID)

		opts := pipeline.Options{
			Model:       req.Model,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			MaxResults:  req.MaxResults,
			AITier:      req.AITier,
			Verbosity:   req.Verbosity,
			UserID:      req.UserID,
		}

		var result pipeline.Result
		var err error
		if viaProxy {
			result, err = deps.Orchestrator.SendViaProxy(r.Context(), req.Prompt, history, opts)
		} else {
			result, err = deps.Orchestrator.Send(r.Context(), req.Prompt, history, opts)
		}
		if err != nil {
			pipelineError(w, err)
			return
		}

		conversationID := persistExchange(deps, req.ConversationID, req.Prompt, result.Text)

		resp := AssistResponse{
			Text:           result.Text,
			Actions:        result.Actions,
			FromCache:      result.FromCache,
			Similarity:     result.Similarity,
			ResponseTimeMs: result.ResponseTime.Milliseconds(),
			ConversationID: conversationID,
		}
		if result.Usage.TotalTokens > 0 {
			usage := result.Usage
			resp.Usage = &usage
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// loadHistory converts a stored conversation to transport messages. A
// missing or unknown conversation yields empty history, never an error.
func loadHistory(deps Deps, conversationID string) []openai.Message {
	if conversationID == "" {
		return nil
	}
	conv, err := deps.Conversations.Get(conversationID)
	if err != nil {
		return nil
	}
	history := make([]openai.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		role := m.Role
		if role == storage.RoleAI {
			role = "assistant"
		}
		history = append(history, openai.Message{Role: role, Content: m.Text})
	}
	return history
}

// persistExchange appends the user prompt and the answer to the conversation
// and returns the ID the messages actually landed in (a fresh conversation
// when the requested one is gone).
func persistExchange(deps Deps, conversationID, prompt, answer string) string {
	if conversationID == "" {
		conv, err := deps.Conversations.Create(storage.Message{
			Role:      storage.RoleUser,
			Text:      prompt,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return ""
		}
		conversationID = conv.ID
	} else {
		conv, err := deps.Conversations.AddMessage(conversationID, storage.RoleUser, prompt)
		if err != nil {
			return conversationID
		}
		conversationID = conv.ID
	}

	if conv, err := deps.Conversations.AddMessage(conversationID, storage.RoleAI, answer); err == nil {
		conversationID = conv.ID
	}
	return conversationID
}
