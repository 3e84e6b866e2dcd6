package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/northstar-app/northstar/internal/ingest"
	"github.com/northstar-app/northstar/internal/pipeline"
	"github.com/northstar-app/northstar/internal/retrieval"
	"github.com/northstar-app/northstar/internal/storage"
)

// MCPRetriever abstracts semantic search for the MCP layer.
type MCPRetriever interface {
	Retrieve(ctx context.Context, query string, topK int, minSimilarity float32) ([]retrieval.ContextChunk, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store        *storage.Store
	Retriever    MCPRetriever
	Orchestrator Sender
}

// NewMCPServer creates an MCP server exposing the planning pipeline and the
// knowledge base to MCP clients.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"northstar",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("northstar — personal goal-planning assistant with a local knowledge base."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("plan",
			mcp.WithDescription("Ask the planning assistant; returns the reply text plus any structured planning actions (goals, projects, tasks, todos) it proposed."),
			mcp.WithString("prompt", mcp.Description("What to plan or ask"), mcp.Required()),
		),
		mcpPlan(deps),
	)

	s.AddTool(
		mcp.NewTool("recall",
			mcp.WithDescription("Semantically search ingested documents and return relevant chunks."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpRecall(deps),
	)

	s.AddTool(
		mcp.NewTool("add_document",
			mcp.WithDescription("Store a text document into the knowledge base; it is indexed in the background for later retrieval."),
			mcp.WithString("name", mcp.Description("Document name")),
			mcp.WithString("content", mcp.Description("The text content to store"), mcp.Required()),
		),
		mcpAddDocument(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"northstar://documents",
			"Ingested Documents",
			mcp.WithResourceDescription("List of ingested documents with status"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDocuments(deps),
	)

	return s
}

func mcpPlan(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}

		result, err := deps.Orchestrator.Send(ctx, prompt, nil, pipeline.Options{})
		if err != nil {
			return mcpError(fmt.Sprintf("planning failed: %v", err)), nil
		}

		out := struct {
			Text      string `json:"text"`
			Actions   any    `json:"actions,omitempty"`
			FromCache bool   `json:"fromCache"`
		}{Text: result.Text, FromCache: result.FromCache}
		if len(result.Actions) > 0 {
			out.Actions = result.Actions
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecall(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		chunks, err := deps.Retriever.Retrieve(ctx, query, limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}
		if len(chunks) == 0 {
			return mcpText("[]"), nil
		}

		type chunkResult struct {
			ID       string  `json:"id"`
			SourceID string  `json:"source_id"`
			Text     string  `json:"text"`
			Score    float32 `json:"score"`
		}
		results := make([]chunkResult, len(chunks))
		for i, c := range chunks {
			results[i] = chunkResult{ID: c.ID, SourceID: c.SourceID, Text: c.Text, Score: c.Score}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		name := req.GetString("name", "Untitled document")

		doc := storage.Document{
			ID:           uuid.New().String(),
			Name:         name,
			Status:       storage.DocStatusProcessing,
			Content:      content,
			IsProcessing: true,
			CreatedAt:    time.Now().UTC(),
		}
		if err := deps.Store.SaveDocument(doc); err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}

		job, err := ingest.NewIndexJob(doc.ID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create index job: %v", err)), nil
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			return mcpError(fmt.Sprintf("saved document but failed to queue indexing: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Stored document %s", doc.ID)), nil
	}
}

func mcpResourceDocuments(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		docs, err := deps.Store.ListDocuments()
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}

		summaries := make([]DocumentSummary, len(docs))
		for i, d := range docs {
			summaries[i] = documentSummary(d)
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal documents: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
