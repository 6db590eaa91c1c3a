package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/internal/pipeline"
)

// Registered activity names. Temporal registers struct methods under their
// bare method name; the workflow refers to them by string so it does not
// import the activity implementations.
const (
	ActivityBeginRun         = "BeginRun"
	ActivityEmitStageStarted = "EmitStageStarted"
	ActivityCheckpoint       = "Checkpoint"
	ActivityFinishRun        = "FinishRun"
	ActivityFailRun          = "FailRun"

	ActivityRunQuoteAuction        = "RunQuoteAuction"
	ActivityCollectResponses       = "CollectResponses"
	ActivityAggregate              = "Aggregate"
	ActivityCollectSelfEvaluations = "CollectSelfEvaluations"
	ActivityFinalize               = "Finalize"
	ActivityCollectFinalClaims     = "CollectFinalClaims"
	ActivitySettle                 = "Settle"
)

// ExchangeRequest is the workflow input: one user question plus the council
// configuration frozen for the run.
type ExchangeRequest struct {
	ConversationID string   `json:"conversation_id"`
	Query          string   `json:"query"`
	Candidates     []string `json:"candidates"`
	CouncilSize    int      `json:"council_size"`
	ChairmanModel  string   `json:"chairman_model"`
	PenaltyRate    float64  `json:"penalty_rate"`

	// ValueBasisUSD, when positive, fixes the exchange's value basis
	// instead of deriving it from the winning quotes.
	ValueBasisUSD float64 `json:"value_basis_usd,omitempty"`
}

// ExchangeResult is the workflow output returned once the exchange settles.
type ExchangeResult struct {
	ExchangeID       string            `json:"exchange_id"`
	AggregatedAnswer string            `json:"aggregated_answer"`
	Settlement       domain.Settlement `json:"settlement"`
	Resumed          bool              `json:"resumed"`
}

// ExchangeWorkflow runs the seven council stages for one exchange. Each
// stage is an activity followed by a checkpoint; the loop dispatches on the
// stage marker the checkpoint hands back, so a resumed run (BeginRun found
// an open exchange) enters mid-loop and never repeats completed stages.
//
// Stage activities carry their own failure semantics: bidder fan-out stages
// drop failing bidders internally, chairman stages fail the run. The retry
// policy therefore allows a single attempt; anything that surfaces here is
// final, and the workflow reports it via FailRun before returning.
func ExchangeWorkflow(ctx workflow.Context, req ExchangeRequest) (*ExchangeResult, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "exchange.v", workflow.DefaultVersion, currentVersion)

	if req.ConversationID == "" || req.Query == "" {
		return nil, temporal.NewNonRetryableApplicationError(
			"invalid exchange request", "Validation", nil)
	}
	if req.CouncilSize <= 0 {
		req.CouncilSize = domain.DefaultCouncilSize
	}
	if req.PenaltyRate <= 0 {
		req.PenaltyRate = domain.DefaultPenaltyRate
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var begun pipeline.BeginRunOutput
	if err := workflow.ExecuteActivity(ctx, ActivityBeginRun, pipeline.BeginRunInput{
		ConversationID: req.ConversationID,
		Query:          req.Query,
	}).Get(ctx, &begun); err != nil {
		return nil, err
	}

	ex := begun.Exchange
	for !ex.Stage.Terminal() {
		next, err := runStage(ctx, &req, &ex)
		if err != nil {
			failRun(ctx, &ex, err)
			return nil, err
		}
		ex = *next
	}

	if err := workflow.ExecuteActivity(ctx, ActivityFinishRun, pipeline.FinishRunInput{
		ConversationID:   ex.ConversationID,
		ExchangeID:       ex.ID,
		AggregatedAnswer: ex.Evaluation.AggregatedAnswer,
	}).Get(ctx, nil); err != nil {
		return nil, err
	}

	return &ExchangeResult{
		ExchangeID:       ex.ID,
		AggregatedAnswer: ex.Evaluation.AggregatedAnswer,
		Settlement:       *ex.Settlement,
		Resumed:          begun.Resumed,
	}, nil
}

// runStage executes the exchange's current stage plus its checkpoint and
// returns the advanced exchange.
func runStage(ctx workflow.Context, req *ExchangeRequest, ex *domain.Exchange) (*domain.Exchange, error) {
	if err := workflow.ExecuteActivity(ctx, ActivityEmitStageStarted, pipeline.StageStartedInput{
		ConversationID: ex.ConversationID,
		ExchangeID:     ex.ID,
		Stage:          ex.Stage,
	}).Get(ctx, nil); err != nil {
		return nil, err
	}

	patch, err := executeStage(ctx, req, ex)
	if err != nil {
		return nil, err
	}

	field, ok := domain.FieldForStage(ex.Stage)
	if !ok {
		return nil, temporal.NewNonRetryableApplicationError(
			"no checkpoint field for stage", "Checkpoint", nil)
	}

	var checkpointed pipeline.CheckpointOutput
	if err := workflow.ExecuteActivity(ctx, ActivityCheckpoint, pipeline.CheckpointInput{
		ConversationID: ex.ConversationID,
		ExchangeID:     ex.ID,
		Stage:          ex.Stage,
		Field:          field,
		Patch:          patch,
	}).Get(ctx, &checkpointed); err != nil {
		return nil, err
	}
	return &checkpointed.Exchange, nil
}

// executeStage dispatches on the stage marker and returns the stage patch
// to checkpoint.
func executeStage(ctx workflow.Context, req *ExchangeRequest, ex *domain.Exchange) (*domain.StagePatch, error) {
	switch ex.Stage {
	case domain.StageQuoting:
		var out domain.RunQuoteAuctionOutput
		err := workflow.ExecuteActivity(ctx, ActivityRunQuoteAuction, domain.RunQuoteAuctionInput{
			ExchangeID:            ex.ID,
			ConversationID:        ex.ConversationID,
			Query:                 ex.Query,
			Candidates:            req.Candidates,
			CouncilSize:           req.CouncilSize,
			ValueBasisOverrideUSD: req.ValueBasisUSD,
		}).Get(ctx, &out)
		if err != nil {
			return nil, err
		}
		return &domain.StagePatch{Auction: &out.Result}, nil

	case domain.StageResponding:
		// Each seated bidder writes under the token budget it quoted; that
		// cap is what makes underbidding the auction consequential.
		budgets := make(map[string]int64, len(ex.Bidders))
		for _, q := range ex.Quotes {
			if q.Selected {
				budgets[q.Model] = q.QuotedTokens
			}
		}
		var out domain.CollectResponsesOutput
		err := workflow.ExecuteActivity(ctx, ActivityCollectResponses, domain.CollectResponsesInput{
			ExchangeID:     ex.ID,
			ConversationID: ex.ConversationID,
			Query:          ex.Query,
			Bidders:        ex.Bidders,
			TokenBudgets:   budgets,
		}).Get(ctx, &out)
		if err != nil {
			return nil, err
		}
		return &domain.StagePatch{Responses: &out.Result}, nil

	case domain.StageAggregating:
		var out domain.AggregateOutput
		err := workflow.ExecuteActivity(ctx, ActivityAggregate, domain.AggregateInput{
			ExchangeID:     ex.ID,
			ConversationID: ex.ConversationID,
			Query:          ex.Query,
			ChairmanModel:  req.ChairmanModel,
			Responses:      ex.Responses,
			Survivors:      ex.Bidders,
		}).Get(ctx, &out)
		if err != nil {
			return nil, err
		}
		return &domain.StagePatch{Evaluation: &out.Evaluation}, nil

	case domain.StageSelfEvaluating:
		var out domain.CollectSelfEvaluationsOutput
		err := workflow.ExecuteActivity(ctx, ActivityCollectSelfEvaluations, domain.CollectSelfEvaluationsInput{
			ExchangeID:       ex.ID,
			ConversationID:   ex.ConversationID,
			Query:            ex.Query,
			AggregatedAnswer: ex.Evaluation.AggregatedAnswer,
			MCC:              ex.Evaluation.MCC,
			Responses:        ex.Responses,
			Survivors:        ex.Bidders,
		}).Get(ctx, &out)
		if err != nil {
			return nil, err
		}
		return &domain.StagePatch{SelfEvaluations: out.SelfEvaluations}, nil

	case domain.StageFinalizing:
		var out domain.FinalizeOutput
		err := workflow.ExecuteActivity(ctx, ActivityFinalize, domain.FinalizeInput{
			ExchangeID:       ex.ID,
			ConversationID:   ex.ConversationID,
			Query:            ex.Query,
			ChairmanModel:    req.ChairmanModel,
			AggregatedAnswer: ex.Evaluation.AggregatedAnswer,
			InitialMCC:       ex.Evaluation.MCC,
			Responses:        ex.Responses,
			SelfEvaluations:  ex.SelfEvaluations,
			Survivors:        ex.Bidders,
		}).Get(ctx, &out)
		if err != nil {
			return nil, err
		}
		return &domain.StagePatch{Decision: &out.Decision}, nil

	case domain.StageAccepting:
		var out domain.CollectFinalClaimsOutput
		err := workflow.ExecuteActivity(ctx, ActivityCollectFinalClaims, domain.CollectFinalClaimsInput{
			ExchangeID:     ex.ID,
			ConversationID: ex.ConversationID,
			Query:          ex.Query,
			Communications: ex.Decision.Communications,
			Survivors:      ex.Bidders,
		}).Get(ctx, &out)
		if err != nil {
			return nil, err
		}
		return &domain.StagePatch{Claims: out.Claims}, nil

	case domain.StageSettling:
		var out domain.SettleOutput
		err := workflow.ExecuteActivity(ctx, ActivitySettle, domain.SettleInput{
			ExchangeID:     ex.ID,
			ConversationID: ex.ConversationID,
			ValueBasisUSD:  ex.ValueBasisUSD,
			PenaltyRate:    req.PenaltyRate,
			Decisions:      ex.Decision.Decisions,
			Claims:         ex.Claims,
			Survivors:      ex.Bidders,
		}).Get(ctx, &out)
		if err != nil {
			return nil, err
		}
		return &domain.StagePatch{Settlement: &out.Settlement}, nil

	default:
		return nil, temporal.NewNonRetryableApplicationError(
			"unknown stage", "Validation", nil)
	}
}

// failRun reports a fatal stage failure best-effort. The run is already
// lost; a FailRun error must not mask the stage error.
func failRun(ctx workflow.Context, ex *domain.Exchange, cause error) {
	_ = workflow.ExecuteActivity(ctx, ActivityFailRun, pipeline.FailRunInput{
		ConversationID: ex.ConversationID,
		ExchangeID:     ex.ID,
		Stage:          ex.Stage,
		Reason:         cause.Error(),
	}).Get(ctx, nil)
}
