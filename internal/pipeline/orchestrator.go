// Package pipeline wires the request path: semantic cache lookup, context
// assembly, prompt construction, the transport call, directive extraction,
// and the cache write-back. Two entry points share the shape and differ only
// in transport: Send talks to the chat-completion API directly, SendViaProxy
// goes through the hosted proxy.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/northstar-app/northstar/internal/assembler"
	"github.com/northstar-app/northstar/internal/directive"
	"github.com/northstar-app/northstar/internal/lambda"
	"github.com/northstar-app/northstar/internal/openai"
	"github.com/northstar-app/northstar/internal/semcache"
)

const defaultContextResults = 3

// systemPrompt is the base instruction block for the direct transport. The
// proxy holds its own copy server-side.
const systemPrompt = `You are a planning assistant for a personal goal-tracking app. ` +
	`Help the user define goals, break them into projects and tasks, schedule time blocks, ` +
	`and keep daily todo lists. When the user asks you to create something, emit the matching ` +
	`directive marker ([[CREATE_GOAL]], [[CREATE_PROJECT]], [[CREATE_TASK]], [[CREATE_TIME_BLOCK]], ` +
	`[[CREATE_TODO]], [[CREATE_TODO_GROUP]], [[UPDATE_LIFE_DIRECTION]]) followed by one "key: value" ` +
	`field per line. Keep the conversational part of your reply before the first marker.`

// Cacher is the semantic cache surface. Implemented by semcache.Cache; a nil
// implementation behaves as a permanent miss.
type Cacher interface {
	Lookup(ctx context.Context, prompt string) (semcache.Hit, bool)
	Store(ctx context.Context, prompt, text string, actions []directive.Action)
}

// ContextBuilder assembles background knowledge for a prompt. Implemented by
// assembler.Assembler.
type ContextBuilder interface {
	BuildContext(ctx context.Context, prompt string, maxResults int) (string, assembler.Outcome)
}

// ChatClient is the direct transport. Implemented by openai.Client.
type ChatClient interface {
	HasKey() bool
	ChatCompletion(ctx context.Context, req openai.ChatRequest) (openai.ChatResponse, error)
}

// ProxyClient is the proxy transport. Implemented by lambda.Client.
type ProxyClient interface {
	Send(ctx context.Context, req lambda.Request) (lambda.Response, error)
}

// Options tune a single request.
type Options struct {
	Model       string // direct transport only
	Temperature float64
	MaxTokens   int
	MaxResults  int    // context chunks; <=0 selects the default
	AITier      string // proxy transport only
	Verbosity   string // proxy transport only
	UserID      string // proxy transport only
}

// Result is the outcome of one request.
type Result struct {
	Text         string
	Actions      []directive.Action
	FromCache    bool
	Similarity   float32
	ResponseTime time.Duration
	Usage        openai.Usage
}

// Stats are advisory request counters. Reads may race with in-flight
// requests; the numbers are telemetry, not bookkeeping.
type Stats struct {
	Requests  uint64
	CacheHits uint64
	Failures  uint64
}

// Orchestrator runs the request pipeline.
type Orchestrator struct {
	cache   Cacher
	builder ContextBuilder
	chat    ChatClient
	proxy   ProxyClient

	requests  atomic.Uint64
	cacheHits atomic.Uint64
	failures  atomic.Uint64
}

// New creates an Orchestrator. cache and proxy may be nil; the corresponding
// paths then degrade (permanent cache miss, SendViaProxy errors).
func New(cache Cacher, builder ContextBuilder, chat ChatClient, proxy ProxyClient) *Orchestrator {
	return &Orchestrator{cache: cache, builder: builder, chat: chat, proxy: proxy}
}

// Send answers a prompt via the direct chat-completion transport. history is
// prior conversation turns in order; the current prompt is appended as the
// final user turn unless history already ends with it.
func (o *Orchestrator) Send(ctx context.Context, prompt string, history []openai.Message, opts Options) (Result, error) {
	o.requests.Add(1)
	start := time.Now()

	if hit, ok := o.lookup(ctx, prompt); ok {
		return o.hitResult(hit, start), nil
	}

	// Checked before context assembly: a missing key is a configuration
	// problem and must not cost an embeddings call to discover.
	if !o.chat.HasKey() {
		o.failures.Add(1)
		return Result{}, &openai.ConfigError{Reason: "API key is not set"}
	}

	contextText, outcome := o.buildContext(ctx, prompt, opts.MaxResults)

	messages := make([]openai.Message, 0, len(history)+2)
	system := systemPrompt
	if contextText != "" {
		system += "\n\nRelevant background from the user's documents:\n\n" + contextText
	}
	messages = append(messages, openai.Message{Role: "system", Content: system})
	messages = append(messages, historyWithPrompt(history, prompt)...)

	resp, err := o.chat.ChatCompletion(ctx, openai.ChatRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		o.failures.Add(1)
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}

	result := o.finish(ctx, prompt, resp.Text(), start)
	result.Usage = resp.Usage
	slog.Debug("request completed",
		"transport", "direct",
		"context", outcome,
		"actions", len(result.Actions),
		"duration", result.ResponseTime,
	)
	return result, nil
}

// SendViaProxy answers a prompt via the hosted proxy transport. Retrieved
// context travels in the request's userData side channel instead of a system
// message; no API key is required on this path.
func (o *Orchestrator) SendViaProxy(ctx context.Context, prompt string, history []openai.Message, opts Options) (Result, error) {
	o.requests.Add(1)
	start := time.Now()

	if o.proxy == nil {
		o.failures.Add(1)
		return Result{}, &openai.ConfigError{Reason: "proxy endpoint is not configured"}
	}

	if hit, ok := o.lookup(ctx, prompt); ok {
		return o.hitResult(hit, start), nil
	}

	contextText, outcome := o.buildContext(ctx, prompt, opts.MaxResults)

	messages := make([]lambda.Message, 0, len(history)+1)
	for _, m := range historyWithPrompt(history, prompt) {
		messages = append(messages, lambda.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := o.proxy.Send(ctx, lambda.Request{
		Messages:            messages,
		AITier:              opts.AITier,
		ShouldDetectActions: true,
		Verbosity:           opts.Verbosity,
		UserData:            lambda.UserData{Context: contextText},
		UserID:              opts.UserID,
	})
	if err != nil {
		o.failures.Add(1)
		return Result{}, fmt.Errorf("proxy call: %w", err)
	}

	result := o.finish(ctx, prompt, resp.Text, start)
	slog.Debug("request completed",
		"transport", "proxy",
		"context", outcome,
		"actions", len(result.Actions),
		"duration", result.ResponseTime,
	)
	return result, nil
}

// Stats returns a snapshot of the advisory counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Requests:  o.requests.Load(),
		CacheHits: o.cacheHits.Load(),
		Failures:  o.failures.Load(),
	}
}

func (o *Orchestrator) lookup(ctx context.Context, prompt string) (semcache.Hit, bool) {
	if o.cache == nil {
		return semcache.Hit{}, false
	}
	hit, ok := o.cache.Lookup(ctx, prompt)
	if ok {
		o.cacheHits.Add(1)
	}
	return hit, ok
}

func (o *Orchestrator) hitResult(hit semcache.Hit, start time.Time) Result {
	return Result{
		Text:         hit.Text,
		Actions:      hit.Actions,
		FromCache:    true,
		Similarity:   hit.Similarity,
		ResponseTime: time.Since(start),
	}
}

func (o *Orchestrator) buildContext(ctx context.Context, prompt string, maxResults int) (string, assembler.Outcome) {
	if maxResults <= 0 {
		maxResults = defaultContextResults
	}
	return o.builder.BuildContext(ctx, prompt, maxResults)
}

// finish extracts directives, cleans the text, and writes the cache entry.
// Cache writes happen only here — on a genuine miss followed by transport
// success.
func (o *Orchestrator) finish(ctx context.Context, prompt, raw string, start time.Time) Result {
	actions := directive.Extract(raw)
	text := directive.Clean(raw)

	if o.cache != nil {
		o.cache.Store(ctx, prompt, text, actions)
	}

	return Result{
		Text:         text,
		Actions:      actions,
		ResponseTime: time.Since(start),
	}
}

// historyWithPrompt appends prompt as the final user turn unless history
// already ends with that exact user message.
func historyWithPrompt(history []openai.Message, prompt string) []openai.Message {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Role == "user" && strings.TrimSpace(last.Content) == strings.TrimSpace(prompt) {
			return history
		}
	}
	return append(append([]openai.Message{}, history...), openai.Message{Role: "user", Content: prompt})
}
