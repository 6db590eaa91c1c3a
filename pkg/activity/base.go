// Package activity carries the shared plumbing of the stage activity
// packages: workflow metadata extraction, best-effort event emission, and
// logging helpers that tolerate being called outside a Temporal activity.
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/ahrav/go-council/pkg/events"
)

// emitAttempts and emitBackoff bound the retry on event emission. Stage
// events feed the client-facing stream; they never fail the run itself.
const (
	emitAttempts = 2
	emitBackoff  = 200 * time.Millisecond
)

// testWorkflowID stands in for the real workflow ID when activities run
// outside Temporal, keeping idempotency keys deterministic in unit tests.
const testWorkflowID = "550e8400-e29b-41d4-a716-446655440000"

// WorkflowContext is the slice of Temporal execution metadata the stage
// packages stamp onto events.
type WorkflowContext struct {
	WorkflowID string
	RunID      string
	ActivityID string
}

// BaseActivities is embedded by every stage activity struct. It owns the
// event sink and the context-extraction and emission helpers built on it.
type BaseActivities struct {
	sink events.EventSink
}

// NewBaseActivities wraps an event sink. A nil sink disables emission.
func NewBaseActivities(sink events.EventSink) BaseActivities {
	return BaseActivities{sink: sink}
}

// GetWorkflowContext reads execution metadata from the activity context.
// Outside a real activity (unit tests call these methods directly, where
// activity.GetInfo panics) it falls back to stable test identifiers.
func (b *BaseActivities) GetWorkflowContext(ctx context.Context) WorkflowContext {
	wfCtx := WorkflowContext{
		WorkflowID: testWorkflowID,
		RunID:      "test-run-" + uuid.NewString()[:8],
		ActivityID: "test-activity",
	}

	func() {
		defer func() { _ = recover() }()
		info := activity.GetInfo(ctx)
		wfCtx = WorkflowContext{
			WorkflowID: info.WorkflowExecution.ID,
			RunID:      info.WorkflowExecution.RunID,
			ActivityID: info.ActivityID,
		}
	}()

	return wfCtx
}

// EmitEventSafe appends the envelope to the sink, retrying once after a
// short pause. Failures are logged and swallowed.
func (b *BaseActivities) EmitEventSafe(ctx context.Context, envelope events.Envelope, description string) {
	if b.sink == nil {
		return
	}

	var lastErr error
	for attempt := 0; attempt < emitAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(emitBackoff):
			case <-ctx.Done():
				SafeLogError(ctx, "Event emission cancelled",
					"event_type", envelope.Type, "description", description)
				return
			}
		}

		if lastErr = b.sink.Append(ctx, envelope); lastErr == nil {
			SafeLog(ctx, "Event emitted",
				"event_type", envelope.Type,
				"idempotency_key", envelope.IdempotencyKey)
			return
		}
	}

	SafeLogError(ctx, "Event emission failed",
		"event_type", envelope.Type,
		"description", description,
		"attempts", emitAttempts,
		"error", lastErr)
}

// RecordHeartbeat forwards to the package-level helper so embedders can
// heartbeat without importing the Temporal activity package.
func (b *BaseActivities) RecordHeartbeat(ctx context.Context, details ...any) {
	RecordHeartbeat(ctx, details...)
}

// SafeLog logs through the activity logger, ignoring the call when no
// activity context is present.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	defer func() { _ = recover() }()
	activity.GetLogger(ctx).Info(msg, keyvals...)
}

// SafeLogError is SafeLog at ERROR level.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	defer func() { _ = recover() }()
	activity.GetLogger(ctx).Error(msg, keyvals...)
}

// RecordHeartbeat records an activity heartbeat, ignoring the call when no
// activity context is present.
func RecordHeartbeat(ctx context.Context, details ...any) {
	defer func() { _ = recover() }()
	activity.RecordHeartbeat(ctx, details...)
}
