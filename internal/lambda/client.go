// Package lambda implements the proxy transport: chat requests are forwarded
// to a hosted endpoint that holds the model credentials server-side, so the
// daemon needs no API key of its own for this path.
package lambda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/northstar-app/northstar/internal/openai"
)

const defaultTimeout = 90 * time.Second

// Message mirrors the proxy's chat message shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserData carries side-channel request context the proxy folds into its own
// prompt assembly. Context holds retrieved background text, when any.
type UserData struct {
	Context string `json:"context,omitempty"`
}

// Request is the proxy invocation payload.
type Request struct {
	Messages            []Message `json:"messages"`
	AITier              string    `json:"aiTier,omitempty"`
	ShouldDetectActions bool      `json:"shouldDetectActions"`
	Verbosity           string    `json:"verbosity,omitempty"`
	UserData            UserData  `json:"userData"`
	UserID              string    `json:"userId,omitempty"`
}

// Response is the proxy's reply.
type Response struct {
	Text string `json:"text"`
}

// Client calls the hosted proxy endpoint. No retries; retry policy belongs
// to the caller.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a proxy client for the given endpoint URL.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Send posts the request and decodes the reply. Non-2xx statuses surface as
// openai.TransportError and undecodable bodies as openai.ProtocolError, so
// both transports share one error taxonomy.
func (c *Client) Send(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return Response{}, &openai.TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, &openai.ProtocolError{Err: err}
	}
	return out, nil
}
