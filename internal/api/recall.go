package api

import "net/http"

// RecallResult is one semantic search hit on the wire.
type RecallResult struct {
	ID       string  `json:"id"`
	SourceID string  `json:"source_id"`
	Text     string  `json:"text"`
	Score    float32 `json:"score"`
}

// handleRecall runs a raw similarity search over indexed document chunks.
func handleRecall(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		limit := parseIntParam(r, "limit", 5, 50)

		chunks, err := deps.Retriever.Retrieve(r.Context(), query, limit, 0)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "search failed: %v", err)
			return
		}

		results := make([]RecallResult, len(chunks))
		for i, c := range chunks {
			results[i] = RecallResult{ID: c.ID, SourceID: c.SourceID, Text: c.Text, Score: c.Score}
		}
		writeJSON(w, http.StatusOK, results)
	}
}
