package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorType categorizes provider call failures. The pipeline maps retryable
// types to per-bidder recoverable failures (the bidder is dropped, the run
// continues) and the rest to validation problems surfaced to the caller.
type ErrorType string

const (
	// ErrorTypeTimeout indicates the per-call deadline elapsed.
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeRateLimit indicates the provider rejected the call with 429.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeNetwork indicates connectivity failure before any response.
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeProvider indicates a 5xx from the provider.
	ErrorTypeProvider ErrorType = "provider_unavailable"

	// ErrorTypeAuth indicates rejected credentials. Never retried.
	ErrorTypeAuth ErrorType = "authentication"

	// ErrorTypeValidation indicates a malformed request or response body.
	ErrorTypeValidation ErrorType = "validation_failed"

	// ErrorTypeUnknown indicates an unclassified failure.
	ErrorTypeUnknown ErrorType = "unknown"
)

// ClientError is a classified failure of one provider call. It carries
// enough structure for the stage layer to decide between dropping the
// bidder and failing the run.
type ClientError struct {
	Model      string    `json:"model"`
	StatusCode int       `json:"status_code,omitempty"`
	Type       ErrorType `json:"type"`
	Message    string    `json:"message,omitempty"`
	Err        error     `json:"-"`
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Model, e.Message, e.Type)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (%s)", e.Model, e.Err, e.Type)
	}
	return fmt.Sprintf("%s: %s", e.Model, e.Type)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *ClientError) Unwrap() error { return e.Err }

// Transient reports whether the failure could plausibly succeed on a
// different attempt. The pipeline treats transient and permanent bidder
// failures identically (drop the bidder); the distinction matters for the
// chairman path, where a transient failure is still fatal for the run but
// logged differently.
func (e *ClientError) Transient() bool {
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeNetwork, ErrorTypeProvider:
		return true
	default:
		return false
	}
}

// classifyTransportError maps a failed http.Client.Do into a ClientError.
func classifyTransportError(model string, err error) *ClientError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ClientError{Model: model, Type: ErrorTypeTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &ClientError{Model: model, Type: ErrorTypeTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Model: model, Type: ErrorTypeTimeout, Err: err}
	}
	return &ClientError{Model: model, Type: ErrorTypeNetwork, Err: err}
}

// classifyStatus maps an HTTP status code to an error type.
func classifyStatus(status int) ErrorType {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorTypeAuth
	case status == http.StatusRequestTimeout:
		return ErrorTypeTimeout
	case status >= 500:
		return ErrorTypeProvider
	case status >= 400:
		return ErrorTypeValidation
	default:
		return ErrorTypeUnknown
	}
}
