package bidders

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/internal/llm"
	"github.com/ahrav/go-council/pkg/activity"
)

// Activities handles the three bidder fan-out Temporal activities.
type Activities struct {
	activity.BaseActivities
	invoker     llm.Invoker
	callTimeout time.Duration
	penaltyRate float64
}

// NewActivities creates bidder activities. callTimeout <= 0 selects the
// default per-bidder deadline; penaltyRate <= 0 the default rate.
func NewActivities(
	base activity.BaseActivities,
	invoker llm.Invoker,
	callTimeout time.Duration,
	penaltyRate float64,
) *Activities {
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

// CollectResponses fans the user query out to every seated bidder, each
// call capped at the token budget that bidder quoted during the auction. A
// bidder whose call fails, or who returns empty content, is dropped: it
// leaves the survivor set and is excluded from every later stage. The stage
// is fatal only when every bidder fails.
func (a *Activities) CollectResponses(
	ctx context.Context,
	input domain.CollectResponsesInput,
) (*domain.CollectResponsesOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable("CollectResponses", err, "invalid input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting CollectResponses activity",
		"workflow_id", wfCtx.WorkflowID,
		"exchange_id", input.ExchangeID,
		"bidders", len(input.Bidders))

	prompt := responsePrompt(input.Query, len(input.Bidders))
	replies := fanOut(ctx, a.invoker, input.Bidders, a.callTimeout, func(model string) *llm.Request {
		return &llm.Request{
			Model:     model,
			Prompt:    prompt,
			MaxTokens: input.TokenBudgets[model],
		}
	})

	var responses []domain.ModelResponse
	var failed []string
	for _, model := range input.Bidders {
		r := replies[model]
		if r.err != nil || r.content == "" {
			activity.SafeLogError(ctx, "Bidder dropped during response collection",
				"model", model, "error", r.err)
			failed = append(failed, model)
			continue
		}
		responses = append(responses, domain.ModelResponse{Model: model, Content: r.content})
	}

	if len(responses) == 0 {
		return nil, nonRetryable("CollectResponses", domain.ErrAllBiddersFailed, "no bidder produced a response")
	}

	result := domain.ResponseResult{
		Responses: responses,
		Survivors: input.Bidders.Without(failed...),
		Failed:    failed,
	}
	if err := result.Validate(); err != nil {
		return nil, nonRetryable("CollectResponses", err, "response result failed validation")
	}

	activity.SafeLog(ctx, "CollectResponses completed",
		"exchange_id", input.ExchangeID,
		"survivors", len(result.Survivors),
		"dropped", len(failed))

	return &domain.CollectResponsesOutput{Result: result}, nil
}

// selfEvalSchema is the JSON shape bidders answer the self-evaluation
// prompt with.
type selfEvalSchema struct {
	Arguments string  `json:"arguments"`
	MCC       float64 `json:"MCC"`
}

// CollectSelfEvaluations asks every survivor to counter-assess its credit.
// Failure here never unseats a bidder: a failed or unparseable reply simply
// leaves no self-evaluation on record, and the chairman finalizes against
// silence.
func (a *Activities) CollectSelfEvaluations(
	ctx context.Context,
	input domain.CollectSelfEvaluationsInput,
) (*domain.CollectSelfEvaluationsOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable("CollectSelfEvaluations", err, "invalid input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting CollectSelfEvaluations activity",
		"workflow_id", wfCtx.WorkflowID,
		"exchange_id", input.ExchangeID,
		"survivors", len(input.Survivors))

	ownAnswer := make(map[string]string, len(input.Responses))
	var aggregated string
	for _, r := range input.Responses {
		ownAnswer[r.Model] = r.Content
	}
	aggregated = input.AggregatedAnswer

	replies := fanOut(ctx, a.invoker, input.Survivors, a.callTimeout, func(model string) *llm.Request {
		return &llm.Request{
			Model: model,
			Prompt: selfEvalPrompt(
				input.Query,
				ownAnswer[model],
				aggregated,
				formatOtherAnswers(input.Responses, model),
				len(input.Survivors),
				input.MCC[model],
			),
		}
	})

	var evals []domain.SelfEvaluation
	for _, model := range input.Survivors {
		r := replies[model]
		if r.err != nil {
			activity.SafeLogError(ctx, "Self-evaluation absent for bidder",
				"model", model, "error", r.err)
			continue
		}

		parsed, ok := parseSelfEval(r.content)
		if !ok {
			activity.SafeLogError(ctx, "Self-evaluation unparseable, recording absent",
				"model", model)
			continue
		}

		evals = append(evals, domain.SelfEvaluation{
			Model:       model,
			ChairmanMCC: input.MCC[model],
			SelfMCC:     clampPercent(parsed.MCC),
			Arguments:   parsed.Arguments,
		})
	}

	activity.SafeLog(ctx, "CollectSelfEvaluations completed",
		"exchange_id", input.ExchangeID,
		"recorded", len(evals),
		"absent", len(input.Survivors)-len(evals))

	return &domain.CollectSelfEvaluationsOutput{SelfEvaluations: evals}, nil
}

// CollectFinalClaims discloses each survivor's communicated MCC and collects
// a final claim. A bidder whose call fails, or whose reply carries no
// number, drops out of settlement entirely: it receives nothing and its
// line never enters the ledger. The stage is fatal only when every
// survivor fails to claim.
func (a *Activities) CollectFinalClaims(
	ctx context.Context,
	input domain.CollectFinalClaimsInput,
) (*domain.CollectFinalClaimsOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable("CollectFinalClaims", err, "invalid input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting CollectFinalClaims activity",
		"workflow_id", wfCtx.WorkflowID,
		"exchange_id", input.ExchangeID,
		"survivors", len(input.Survivors))

	replies := fanOut(ctx, a.invoker, input.Survivors, a.callTimeout, func(model string) *llm.Request {
		return &llm.Request{
			Model:     model,
			Prompt:    acceptancePrompt(input.Query, input.Communications[model], a.penaltyRate),
			MaxTokens: 100,
		}
	})

	claims := make([]domain.FinalClaim, 0, len(input.Survivors))
	var failed []string
	for _, model := range input.Survivors {
		r := replies[model]
		if r.err != nil {
			activity.SafeLogError(ctx, "Bidder dropped from settlement, claim call failed",
				"model", model, "error", r.err)
			failed = append(failed, model)
			continue
		}
		v, ok := firstNumber(r.content)
		if !ok {
			activity.SafeLogError(ctx, "Bidder dropped from settlement, claim unparseable",
				"model", model)
			failed = append(failed, model)
			continue
		}
		claims = append(claims, domain.FinalClaim{
			Model:           model,
			CommunicatedMCC: input.Communications[model],
			ClaimMCC:        clampPercent(v),
		})
	}

	if len(claims) == 0 {
		return nil, nonRetryable("CollectFinalClaims", domain.ErrAllBiddersFailed, "no survivor produced a claim")
	}

	activity.SafeLog(ctx, "CollectFinalClaims completed",
		"exchange_id", input.ExchangeID,
		"claims", len(claims),
		"dropped", len(failed))

	return &domain.CollectFinalClaimsOutput{Claims: claims, Failed: failed}, nil
}

// parseSelfEval decodes the self-evaluation JSON with one repair attempt.
func parseSelfEval(content string) (*selfEvalSchema, bool) {
	var parsed selfEvalSchema
	if err := json.Unmarshal([]byte(content), &parsed); err == nil {
		return &parsed, true
	}

	repaired := llm.RepairJSON(content)
	if repaired == content {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return nil, false
	}
	return &parsed, true
}

var numberRegex = regexp.MustCompile(`\d+\.?\d*`)

// firstNumber extracts the first numeric literal from a reply.
func firstNumber(text string) (float64, bool) {
	match := numberRegex.FindString(text)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// clampPercent bounds a claimed percentage to [0, 100].
func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}
