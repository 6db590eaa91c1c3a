package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// NewLoggingMiddleware captures the request lifecycle with structured logs.
// Prompts are never logged, only their lengths.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "llm")

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			traceID := req.TraceID
			if traceID == "" {
				traceID = uuid.NewString()
			}

			logger.DebugContext(ctx, "llm request",
				"trace_id", traceID,
				"model", req.Model,
				"prompt_len", len(req.Prompt),
				"max_tokens", req.MaxTokens,
			)

			start := time.Now()
			resp, err := next.Handle(ctx, req)
			duration := time.Since(start)

			if err != nil {
				logger.WarnContext(ctx, "llm request failed",
					"trace_id", traceID,
					"model", req.Model,
					"duration_ms", duration.Milliseconds(),
					"error", err,
				)
				return nil, err
			}

			logger.InfoContext(ctx, "llm request completed",
				"trace_id", traceID,
				"model", req.Model,
				"duration_ms", duration.Milliseconds(),
				"prompt_tokens", resp.Usage.PromptTokens,
				"completion_tokens", resp.Usage.CompletionTokens,
				"cache_hit", resp.CacheHit,
			)
			return resp, nil
		})
	}
}
