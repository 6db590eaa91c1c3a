package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultOpenRouterEndpoint is the production chat completions URL.
const DefaultOpenRouterEndpoint = "https://openrouter.ai/api/v1"

// openRouterAdapter implements adapter for the OpenRouter chat completions
// API. OpenRouter fronts every council model behind one OpenAI-compatible
// surface, so a single adapter covers the whole catalog.
type openRouterAdapter struct {
	endpoint string
	apiKey   string
	referer  string
	title    string
}

func newOpenRouterAdapter(cfg Config) *openRouterAdapter {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultOpenRouterEndpoint
	}
	return &openRouterAdapter{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		referer:  cfg.Referer,
		title:    cfg.AppTitle,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int64         `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// Build constructs the chat completions HTTP request.
func (a *openRouterAdapter) Build(ctx context.Context, req *Request) (*http.Request, error) {
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.endpoint+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	if a.referer != "" {
		httpReq.Header.Set("HTTP-Referer", a.referer)
	}
	if a.title != "" {
		httpReq.Header.Set("X-Title", a.title)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	return httpReq, nil
}

// Parse extracts a normalized Response from the provider reply, converting
// non-200 statuses into classified ClientErrors.
func (a *openRouterAdapter) Parse(httpResp *http.Response) (*Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseOpenRouterError(httpResp.StatusCode, body)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ClientError{
			Type:    ErrorTypeValidation,
			Message: "unparseable response body",
			Err:     err,
		}
	}
	if len(resp.Choices) == 0 {
		return nil, &ClientError{
			Model:   resp.Model,
			Type:    ErrorTypeValidation,
			Message: "response carried no choices",
		}
	}

	return &Response{
		Content:           resp.Choices[0].Message.Content,
		Model:             resp.Model,
		FinishReason:      resp.Choices[0].FinishReason,
		ProviderRequestID: httpResp.Header.Get("x-request-id"),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// parseOpenRouterError decodes the provider's error envelope, falling back
// to the raw body when the envelope itself is malformed.
func parseOpenRouterError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    any    `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &ClientError{
		StatusCode: statusCode,
		Type:       classifyStatus(statusCode),
		Message:    message,
	}
}
