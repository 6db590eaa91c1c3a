// Package events provides the generic event infrastructure for the stage
// event stream. It defines the Envelope type wrapping stage events with
// consistent metadata and the EventSink interface clients observe a running
// exchange through.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope wraps stage events with consistent metadata for reliable event
// processing. It is a generic container for any stage-specific payload while
// keeping standard fields for routing, ordering, and correlation.
type Envelope struct {
	// ID uniquely identifies this event instance.
	// Generated as a UUID for each emission.
	ID string `json:"id"`

	// Type identifies the event for routing and display.
	// Examples: "quote_start", "aggregate_complete", "pipeline_failed".
	Type string `json:"type"`

	// Source identifies the component that emitted this event.
	// Examples: "auction-activity", "settlement-activity".
	Source string `json:"source"`

	// Version enables schema evolution. Starts at "1.0.0".
	Version string `json:"version"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey ensures exactly-once processing during retries.
	// Generated deterministically from workflow context and event content.
	IdempotencyKey string `json:"idempotency_key"`

	// ConversationID identifies the conversation the exchange belongs to.
	// Streaming subscribers filter on it.
	ConversationID string `json:"conversation_id"`

	// ExchangeID identifies the exchange whose stage produced the event.
	ExchangeID string `json:"exchange_id"`

	// WorkflowID and RunID tie the event back to the Temporal execution
	// for correlation and debugging.
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`

	// Payload contains the stage-specific event data as JSON.
	// Schema varies by Type and Version.
	Payload json.RawMessage `json:"payload"`
}

// EventSink delivers events to downstream consumers. Implementations include
// the in-process broker backing SSE streams, the Redis publisher, and the
// no-op sink for tests.
//
// Delivery is best effort: event failures must never fail the pipeline run
// that produced them.
type EventSink interface {
	// Append adds an event to the sink with best-effort delivery.
	// Implementations should handle idempotency (duplicate events are
	// no-ops) and return quickly to avoid blocking the caller.
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink is a null EventSink for tests or when streaming is disabled.
type NoOpEventSink struct{}

// Append implements EventSink with no side effects.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error { return nil }

// NewNoOpEventSink creates a new no-op event sink.
func NewNoOpEventSink() EventSink { return &NoOpEventSink{} }
