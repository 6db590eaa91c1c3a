// Package chairman implements the two single-call chairman stages:
// aggregation (synthesized answer plus initial MCC split) and finalization
// (private decisions plus per-bidder communications). Unlike the bidder
// fan-out stages, a chairman failure is fatal for the exchange: there is no
// fallback answer and no default split.
package chairman

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/internal/llm"
	"github.com/ahrav/go-council/pkg/activity"
)

// chairmanMaxTokens bounds a chairman reply. Aggregated answers are long;
// this matches the headroom bidders get for their own answers.
const chairmanMaxTokens = 8192

// defaultChairmanTimeout bounds one chairman call.
const defaultChairmanTimeout = 120 * time.Second

// heartbeatEvery paces heartbeats during an in-flight chairman call.
const heartbeatEvery = 10 * time.Second

// Activities handles the Aggregate and Finalize Temporal activities.
type Activities struct {
	activity.BaseActivities
	invoker     llm.Invoker
	callTimeout time.Duration
	penaltyRate float64
}

// NewActivities creates chairman activities. callTimeout <= 0 selects the
// default deadline; penaltyRate <= 0 the default rate.
func NewActivities(
	base activity.BaseActivities,
	invoker llm.Invoker,
	callTimeout time.Duration,
	penaltyRate float64,
) *Activities {
	if callTimeout <= 0 {
		callTimeout = defaultChairmanTimeout
	}
	if penaltyRate <= 0 {
		penaltyRate = domain.DefaultPenaltyRate
	}
	return &Activities{
		BaseActivities: base,
		invoker:        invoker,
		callTimeout:    callTimeout,
		penaltyRate:    penaltyRate,
	}
}

// Aggregate asks the chairman to synthesize the surviving answers and split
// MCC across the bidders. Out-of-tolerance splits are renormalized to sum
// exactly 100 with the raw values kept for audit. Provider failure or output
// that survives one repair attempt still malformed ends the exchange.
func (a *Activities) Aggregate(
	ctx context.Context,
	input domain.AggregateInput,
) (*domain.AggregateOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable("Aggregate", err, "invalid input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting Aggregate activity",
		"workflow_id", wfCtx.WorkflowID,
		"exchange_id", input.ExchangeID,
		"chairman", input.ChairmanModel,
		"survivors", len(input.Survivors))

	resp, err := a.callChairman(ctx, input.ChairmanModel,
		aggregatePrompt(input.Query, input.Responses))
	if err != nil {
		return nil, nonRetryable("Aggregate", err, "chairman call failed")
	}

	parsed, err := parseAggregate(resp.Content, input.Survivors)
	if err != nil {
		return nil, nonRetryable("Aggregate", err, "chairman output rejected")
	}

	eval := domain.ChairmanEvaluation{
		ChairmanModel:    input.ChairmanModel,
		AggregatedAnswer: parsed.AggregatedAnswer,
		MCC:              parsed.MCC,
	}
	if err := eval.Normalize(); err != nil {
		return nil, nonRetryable("Aggregate", err, "MCC split cannot be rescaled")
	}
	if err := eval.Validate(input.Survivors); err != nil {
		return nil, nonRetryable("Aggregate", err, "MCC split failed validation")
	}

	activity.SafeLog(ctx, "Aggregate completed",
		"exchange_id", input.ExchangeID,
		"answer_len", len(eval.AggregatedAnswer),
		"renormalized", eval.RawMCC != nil)

	return &domain.AggregateOutput{Evaluation: eval}, nil
}

// Finalize asks the chairman to weigh the self-evaluations against its own
// initial split and fix both the private decisions and the per-bidder
// communications. Failure here is fatal, same as Aggregate.
func (a *Activities) Finalize(
	ctx context.Context,
	input domain.FinalizeInput,
) (*domain.FinalizeOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable("Finalize", err, "invalid input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting Finalize activity",
		"workflow_id", wfCtx.WorkflowID,
		"exchange_id", input.ExchangeID,
		"chairman", input.ChairmanModel,
		"self_evaluations", len(input.SelfEvaluations))

	resp, err := a.callChairman(ctx, input.ChairmanModel,
		finalizePrompt(&input, a.penaltyRate))
	if err != nil {
		return nil, nonRetryable("Finalize", err, "chairman call failed")
	}

	parsed, err := parseDecision(resp.Content, input.Survivors)
	if err != nil {
		return nil, nonRetryable("Finalize", err, "chairman output rejected")
	}

	decision := domain.ChairmanDecision{
		ChairmanModel:  input.ChairmanModel,
		Decisions:      parsed.Decisions,
		Communications: parsed.Communications,
	}
	if err := decision.Validate(input.Survivors); err != nil {
		return nil, nonRetryable("Finalize", err, "decision failed validation")
	}

	activity.SafeLog(ctx, "Finalize completed",
		"exchange_id", input.ExchangeID,
		"decisions", len(decision.Decisions))

	return &domain.FinalizeOutput{Decision: decision}, nil
}

// callChairman runs one chairman invocation under the call timeout,
// heartbeating while the call is in flight so the long single request
// stays within the activity's heartbeat window.
func (a *Activities) callChairman(ctx context.Context, model, prompt string) (*llm.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				a.RecordHeartbeat(callCtx, "awaiting chairman")
			}
		}
	}()

	return a.invoker.Invoke(callCtx, &llm.Request{
		Model:     model,
		Prompt:    prompt,
		MaxTokens: chairmanMaxTokens,
	})
}

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}
