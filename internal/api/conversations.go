package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/northstar-app/northstar/internal/storage"
)

// ConversationSummary is a conversation without its messages.
type ConversationSummary struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// MessageView is one conversation turn on the wire.
type MessageView struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

func handleListConversations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)

		convs, err := deps.Conversations.List(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list conversations: %v", err)
			return
		}

		summaries := make([]ConversationSummary, len(convs))
		for i, c := range convs {
			summaries[i] = conversationSummary(c)
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

func handleCreateConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, err := deps.Conversations.Create()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create conversation: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, conversationSummary(conv))
	}
}

func handleGetConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		conv, err := deps.Conversations.Get(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get conversation: %v", err)
			return
		}

		messages := make([]MessageView, len(conv.Messages))
		for i, m := range conv.Messages {
			messages[i] = MessageView{
				ID:        m.ID,
				Role:      m.Role,
				Text:      m.Text,
				CreatedAt: m.CreatedAt.Format(time.RFC3339),
			}
		}
		writeJSON(w, http.StatusOK, struct {
			ConversationSummary
			Messages []MessageView `json:"messages"`
		}{conversationSummary(conv), messages})
	}
}

func handleDeleteConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Conversations.Delete(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete conversation: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleActiveConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": deps.Conversations.Active()})
	}
}

func handleActivateConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Conversations.SetActive(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to activate conversation: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
	}
}

func conversationSummary(c storage.Conversation) ConversationSummary {
	return ConversationSummary{
		ID:        c.ID,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}
