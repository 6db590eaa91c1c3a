package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "council:llm:"

// NewCacheMiddleware serves repeated identical calls from Redis. Only
// successful responses are stored. Redis failures degrade to a pass-through
// call; a broken cache must never fail a pipeline run.
func NewCacheMiddleware(client *redis.Client, ttl time.Duration, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "llm-cache")

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			key := cacheKey(req)

			if data, err := client.Get(ctx, key).Bytes(); err == nil {
				var resp Response
				if err := json.Unmarshal(data, &resp); err == nil {
					resp.CacheHit = true
					return &resp, nil
				}
				logger.Warn("dropping corrupt cache entry", "key", key)
				_ = client.Del(ctx, key).Err()
			} else if !errors.Is(err, redis.Nil) {
				logger.Warn("cache read failed, bypassing", "error", err)
			}

			resp, err := next.Handle(ctx, req)
			if err != nil {
				return nil, err
			}

			if data, err := json.Marshal(resp); err == nil {
				if err := client.Set(ctx, key, data, ttl).Err(); err != nil {
					logger.Warn("cache write failed", "key", key, "error", err)
				}
			}
			return resp, nil
		})
	}
}

// cacheKey hashes the request's semantic content. The idempotency key, when
// present, dominates so retried sends of one logical call always collide.
func cacheKey(req *Request) string {
	if req.IdempotencyKey != "" {
		return cacheKeyPrefix + req.IdempotencyKey
	}
	h := sha256.New()
	h.Write([]byte(req.Model))
	h.Write([]byte{0})
	h.Write([]byte(req.SystemPrompt))
	h.Write([]byte{0})
	h.Write([]byte(req.Prompt))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}
