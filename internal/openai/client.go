package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultTimeout   = 60 * time.Second
	defaultChatModel = "gpt-4o-mini"
	embedModel       = "text-embedding-3-small"
)

// Client communicates with the OpenAI REST API. It performs no retries;
// retry policy belongs to the caller.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client with the given API key. An empty key is allowed
// at construction time; requests will fail with ConfigError.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// HasKey reports whether the client was configured with an API key.
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// Message is a chat message in OpenAI wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Usage reports upstream token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the decoded chat completion response.
type ChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Text returns the first choice's content, or "".
func (r ChatResponse) Text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// ChatCompletion sends a chat completion request. The model defaults to
// gpt-4o-mini when unset. Errors follow the transport taxonomy: ConfigError
// for a missing key (checked before any I/O), TransportError for non-2xx,
// ProtocolError for undecodable bodies.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if !c.HasKey() {
		return ChatResponse{}, &ConfigError{Reason: "API key is not set"}
	}
	if req.Model == "" {
		req.Model = defaultChatModel
	}

	var resp ChatResponse
	if err := c.postJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return ChatResponse{}, err
	}
	return resp, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embeddings returns one vector per input string, in input order.
func (c *Client) Embeddings(ctx context.Context, input []string) ([][]float32, error) {
	if !c.HasKey() {
		return nil, &ConfigError{Reason: "API key is not set"}
	}
	if len(input) == 0 {
		return nil, nil
	}

	var resp embeddingsResponse
	if err := c.postJSON(ctx, "/embeddings", embeddingsRequest{Model: embedModel, Input: input}, &resp); err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(input))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, &ProtocolError{Err: fmt.Errorf("embedding index %d out of range", d.Index)}
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProtocolError{Err: err}
	}
	return nil
}
