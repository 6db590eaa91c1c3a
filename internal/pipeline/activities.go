// Package pipeline owns the run lifecycle around the seven council stages:
// acquiring the conversation's processing lock, checkpointing each stage's
// output, and closing or failing the run. The workflow calls these between
// stage activities; everything touching the store lives here so workflow
// code stays deterministic.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/internal/store"
	"github.com/ahrav/go-council/pkg/activity"
)

// Activities handles the run lifecycle Temporal activities.
type Activities struct {
	activity.BaseActivities
	store  store.Store
	events *EventEmitter
}

// NewActivities creates pipeline activities over the given store.
func NewActivities(base activity.BaseActivities, st store.Store) *Activities {
	return &Activities{
		BaseActivities: base,
		store:          st,
		events:         NewEventEmitter(base),
	}
}

// BeginRun acquires the conversation for one exchange. The idle-to-
// processing compare-and-set is the admission gate: losing it while a
// checkpointed open exchange exists means a previous run died mid-pipeline,
// and the run resumes that exchange instead of failing. That inference is
// safe because workflow IDs are keyed by conversation, so Temporal admits
// at most one live run per conversation; a concurrent duplicate is rejected
// at start and never reaches this activity.
func (a *Activities) BeginRun(
	ctx context.Context,
	input BeginRunInput,
) (*BeginRunOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable("BeginRun", err, "invalid input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting BeginRun activity",
		"workflow_id", wfCtx.WorkflowID,
		"conversation_id", input.ConversationID)

	err := a.store.CompareAndSetStatus(ctx, input.ConversationID, domain.StatusIdle, domain.StatusProcessing)
	switch {
	case err == nil:
		// Fresh run.
	case errors.Is(err, domain.ErrConversationBusy):
		ex, findErr := a.store.FindOpenExchange(ctx, input.ConversationID)
		if findErr != nil {
			return nil, nonRetryable("BeginRun", err, "conversation already processing")
		}
		activity.SafeLog(ctx, "Resuming checkpointed exchange",
			"exchange_id", ex.ID, "stage", ex.Stage)
		return &BeginRunOutput{Exchange: *ex, Resumed: true}, nil
	default:
		return nil, nonRetryable("BeginRun", err, "status transition failed")
	}

	ex, err := domain.NewExchange(input.ConversationID, input.Query)
	if err != nil {
		return nil, nonRetryable("BeginRun", err, "exchange creation failed")
	}
	if err := a.store.SaveExchange(ctx, ex); err != nil {
		return nil, nonRetryable("BeginRun", err, "exchange persistence failed")
	}
	if err := a.store.AppendMessage(ctx, input.ConversationID, domain.Message{
		Role:      domain.RoleUser,
		Content:   input.Query,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, nonRetryable("BeginRun", err, "user message persistence failed")
	}

	activity.SafeLog(ctx, "BeginRun completed", "exchange_id", ex.ID)
	return &BeginRunOutput{Exchange: *ex}, nil
}

// Checkpoint persists one stage's output, advances the stage marker, and
// then publishes the stage's completion event. It runs after the stage
// activity succeeds and before the next stage starts, so a crash between
// stages resumes with nothing lost and nothing repeated. The emission order
// matters: a completion that reached consumers must never describe a stage
// a resumed run would re-execute, so nothing is published until the patch
// is durable.
func (a *Activities) Checkpoint(
	ctx context.Context,
	input CheckpointInput,
) (*CheckpointOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable("Checkpoint", err, "invalid input")
	}

	ex, err := a.store.PatchExchange(ctx, input.ExchangeID, input.Field, input.Patch)
	if err != nil {
		return nil, nonRetryable("Checkpoint", err, "exchange patch failed")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	a.events.EmitStageCompleted(ctx, input.ConversationID, input.ExchangeID,
		input.Stage, input.Field, input.Patch, wfCtx)

	activity.SafeLog(ctx, "Checkpoint persisted",
		"exchange_id", ex.ID,
		"field", input.Field,
		"next_stage", ex.Stage)

	return &CheckpointOutput{Exchange: *ex}, nil
}

// EmitStageStarted announces a stage on the event stream.
func (a *Activities) EmitStageStarted(ctx context.Context, input StageStartedInput) error {
	if err := input.Validate(); err != nil {
		return nonRetryable("EmitStageStarted", err, "invalid input")
	}
	wfCtx := a.GetWorkflowContext(ctx)
	a.events.EmitStageStarted(ctx, input.ConversationID, input.ExchangeID, input.Stage, wfCtx)
	return nil
}

// FinishRun appends the aggregated answer as the assistant message,
// releases the conversation back to idle, and publishes the terminal
// complete event.
func (a *Activities) FinishRun(ctx context.Context, input FinishRunInput) error {
	if err := input.Validate(); err != nil {
		return nonRetryable("FinishRun", err, "invalid input")
	}

	wfCtx := a.GetWorkflowContext(ctx)

	if err := a.store.AppendMessage(ctx, input.ConversationID, domain.Message{
		Role:       domain.RoleAssistant,
		Content:    input.AggregatedAnswer,
		ExchangeID: input.ExchangeID,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		return nonRetryable("FinishRun", err, "assistant message persistence failed")
	}

	if err := a.store.CompareAndSetStatus(ctx, input.ConversationID,
		domain.StatusProcessing, domain.StatusIdle); err != nil {
		return nonRetryable("FinishRun", err, "status release failed")
	}

	a.events.EmitRunComplete(ctx, input.ConversationID, input.ExchangeID,
		input.AggregatedAnswer, wfCtx)

	activity.SafeLog(ctx, "FinishRun completed",
		"conversation_id", input.ConversationID,
		"exchange_id", input.ExchangeID)
	return nil
}

// FailRun publishes the terminal error event. The conversation stays in
// processing and the exchange stays open at its last checkpoint; a later
// run resumes it from the failed stage.
func (a *Activities) FailRun(ctx context.Context, input FailRunInput) error {
	if err := input.Validate(); err != nil {
		return nonRetryable("FailRun", err, "invalid input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	a.events.EmitRunError(ctx, input.ConversationID, input.ExchangeID,
		input.Stage, input.Reason, wfCtx)

	activity.SafeLogError(ctx, "Exchange run failed",
		"conversation_id", input.ConversationID,
		"exchange_id", input.ExchangeID,
		"stage", input.Stage,
		"reason", input.Reason)
	return nil
}

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}
