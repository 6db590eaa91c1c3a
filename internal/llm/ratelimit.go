package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// NewRateLimitMiddleware bounds outbound request rate with a local token
// bucket. Waiting respects the caller's context, so a per-call timeout also
// caps time spent queued behind the limiter.
func NewRateLimitMiddleware(requestsPerSecond float64, burst int) Middleware {
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burst)

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, &ClientError{Model: req.Model, Type: ErrorTypeTimeout, Err: err}
			}
			return next.Handle(ctx, req)
		})
	}
}
