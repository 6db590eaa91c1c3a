package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Invoker is the single seam the stage activities call providers through.
// Stubbing it is how the stage packages test fan-out, drop, and repair
// behavior without network access.
type Invoker interface {
	Invoke(ctx context.Context, req *Request) (*Response, error)
}

// Config carries client construction parameters.
type Config struct {
	// Endpoint overrides the OpenRouter base URL, mainly for tests.
	Endpoint string

	// APIKey authenticates against OpenRouter.
	APIKey string

	// Referer and AppTitle populate OpenRouter's attribution headers.
	Referer  string
	AppTitle string

	// HTTPTimeout bounds the underlying http.Client. Per-request timeouts
	// layer on top via Request.Timeout.
	HTTPTimeout time.Duration

	// RequestsPerSecond and Burst configure the local rate limiter.
	// Zero RequestsPerSecond disables limiting.
	RequestsPerSecond float64
	Burst             int

	// CacheTTL bounds cached response lifetime. Zero disables caching
	// even when a Redis client is supplied.
	CacheTTL time.Duration
}

// ErrMissingAPIKey rejects client construction without credentials.
var ErrMissingAPIKey = errors.New("openrouter api key required")

const defaultHTTPTimeout = 120 * time.Second

// Client is the production Invoker. It funnels every call through the
// middleware chain: logging, rate limiting, cache, then the HTTP core.
type Client struct {
	handler Handler
}

// NewClient builds a Client against OpenRouter. redisClient may be nil to
// run without response caching; logger nil falls back to slog.Default.
func NewClient(cfg Config, redisClient *redis.Client, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	core := &httpHandler{
		client:  &http.Client{Timeout: timeout},
		adapter: newOpenRouterAdapter(cfg),
	}

	middlewares := []Middleware{
		NewLoggingMiddleware(logger),
	}
	if cfg.RequestsPerSecond > 0 {
		middlewares = append(middlewares, NewRateLimitMiddleware(cfg.RequestsPerSecond, cfg.Burst))
	}
	if redisClient != nil && cfg.CacheTTL > 0 {
		middlewares = append(middlewares, NewCacheMiddleware(redisClient, cfg.CacheTTL, logger))
	}

	return &Client{handler: Chain(core, middlewares...)}, nil
}

// Invoke implements Invoker.
func (c *Client) Invoke(ctx context.Context, req *Request) (*Response, error) {
	return c.handler.Handle(ctx, req)
}
