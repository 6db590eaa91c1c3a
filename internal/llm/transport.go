// Package llm provides a resilient HTTP client for the OpenRouter chat
// completions API. Requests flow through a composable middleware pipeline
// handling rate limiting, response caching, and structured logging before
// reaching the provider adapter.
package llm

import (
	"context"
	"net/http"
	"time"
)

// Request is a normalized chat completion request. One Request maps to one
// provider call; fan-out across bidders happens above this layer.
type Request struct {
	// Model is the OpenRouter model identifier, e.g. "openai/gpt-4o".
	Model string `json:"model"`

	// Prompt is the user-turn content.
	Prompt string `json:"prompt"`

	// SystemPrompt provides instructions ahead of the user turn.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxTokens caps the completion length. Zero leaves the provider default.
	MaxTokens int64 `json:"max_tokens,omitempty"`

	// Temperature controls sampling. Zero value means provider default.
	Temperature float64 `json:"temperature,omitempty"`

	// Timeout bounds this single call. Zero means no per-request deadline
	// beyond the caller's context.
	Timeout time.Duration `json:"timeout,omitempty"`

	// IdempotencyKey namespaces cache entries and dedupes retried sends.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// TraceID correlates logs across the middleware chain.
	TraceID string `json:"trace_id,omitempty"`
}

// Response is the normalized output of a chat completion call.
type Response struct {
	// Content is the assistant message text.
	Content string `json:"content"`

	// Model echoes the model that actually served the request.
	Model string `json:"model"`

	// FinishReason indicates why generation stopped ("stop", "length", ...).
	FinishReason string `json:"finish_reason"`

	// ProviderRequestID enables cross-system correlation.
	ProviderRequestID string `json:"provider_request_id,omitempty"`

	// Usage tracks token consumption and latency.
	Usage Usage `json:"usage"`

	// CacheHit is set by the cache middleware on a served-from-cache reply.
	CacheHit bool `json:"cache_hit,omitempty"`
}

// Usage normalizes provider token accounting.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// Handler processes chat completion requests. It is the core abstraction
// the middleware pipeline composes around.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware transforms a Handler into an enhanced Handler.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler. Middleware
// executes in the order provided, first middleware outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// adapter translates between normalized requests and a concrete provider's
// HTTP wire format.
type adapter interface {
	Build(ctx context.Context, req *Request) (*http.Request, error)
	Parse(httpResp *http.Response) (*Response, error)
}

// httpHandler is the core handler making the actual provider call.
type httpHandler struct {
	client  *http.Client
	adapter adapter
}

// Handle implements Handler by issuing one HTTP request to the provider.
func (h *httpHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := h.adapter.Build(reqCtx, req)
	if err != nil {
		return nil, &ClientError{Model: req.Model, Type: ErrorTypeValidation, Err: err}
	}

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return nil, classifyTransportError(req.Model, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	resp, err := h.adapter.Parse(httpResp)
	if err != nil {
		return nil, err
	}

	resp.Usage.LatencyMs = latency.Milliseconds()
	return resp, nil
}
