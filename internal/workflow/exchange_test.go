package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/internal/pipeline"
)

// stageRecorder registers stub activities that drive a real exchange
// through Apply-backed checkpoints while recording which stage activities
// actually ran.
type stageRecorder struct {
	mu     sync.Mutex
	called []string

	exchange     domain.Exchange
	beginResumed bool
	failedStage  domain.Stage
	aggregateErr error
	tokenBudgets map[string]int64
}

func (r *stageRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.called = append(r.called, name)
}

func (r *stageRecorder) wasCalled(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.called {
		if c == name {
			return true
		}
	}
	return false
}

func (r *stageRecorder) register(env *testsuite.TestWorkflowEnvironment) {
	reg := func(name string, fn any) {
		env.RegisterActivityWithOptions(fn, sdkactivity.RegisterOptions{Name: name})
	}

	reg(ActivityBeginRun, func(_ context.Context, _ pipeline.BeginRunInput) (*pipeline.BeginRunOutput, error) {
		r.record(ActivityBeginRun)
		return &pipeline.BeginRunOutput{Exchange: r.exchange, Resumed: r.beginResumed}, nil
	})
	reg(ActivityEmitStageStarted, func(_ context.Context, _ pipeline.StageStartedInput) error {
		return nil
	})
	reg(ActivityCheckpoint, func(_ context.Context, in pipeline.CheckpointInput) (*pipeline.CheckpointOutput, error) {
		r.record(ActivityCheckpoint)
		r.mu.Lock()
		defer r.mu.Unlock()
		if err := r.exchange.Apply(in.Field, in.Patch); err != nil {
			return nil, err
		}
		return &pipeline.CheckpointOutput{Exchange: r.exchange}, nil
	})
	reg(ActivityFinishRun, func(_ context.Context, _ pipeline.FinishRunInput) error {
		r.record(ActivityFinishRun)
		return nil
	})
	reg(ActivityFailRun, func(_ context.Context, in pipeline.FailRunInput) error {
		r.record(ActivityFailRun)
		r.mu.Lock()
		r.failedStage = in.Stage
		r.mu.Unlock()
		return nil
	})

	reg(ActivityRunQuoteAuction, func(_ context.Context, in domain.RunQuoteAuctionInput) (*domain.RunQuoteAuctionOutput, error) {
		r.record(ActivityRunQuoteAuction)
		return &domain.RunQuoteAuctionOutput{Result: domain.AuctionResult{
			Quotes: []domain.Quote{
				{Model: "a", QuotedTokens: 500, EstimatedCostUSD: 0.30, Selected: true},
				{Model: "b", QuotedTokens: 800, EstimatedCostUSD: 0.70, Selected: true},
			},
			Bidders:       domain.BidderSet{"a", "b"},
			ValueBasisUSD: 1.0,
		}}, nil
	})
	reg(ActivityCollectResponses, func(_ context.Context, in domain.CollectResponsesInput) (*domain.CollectResponsesOutput, error) {
		r.record(ActivityCollectResponses)
		r.mu.Lock()
		r.tokenBudgets = in.TokenBudgets
		r.mu.Unlock()
		return &domain.CollectResponsesOutput{Result: domain.ResponseResult{
			Responses: []domain.ModelResponse{
				{Model: "a", Content: "answer a"},
				{Model: "b", Content: "answer b"},
			},
			Survivors: in.Bidders,
		}}, nil
	})
	reg(ActivityAggregate, func(_ context.Context, in domain.AggregateInput) (*domain.AggregateOutput, error) {
		r.record(ActivityAggregate)
		if r.aggregateErr != nil {
			return nil, r.aggregateErr
		}
		return &domain.AggregateOutput{Evaluation: domain.ChairmanEvaluation{
			ChairmanModel:    in.ChairmanModel,
			AggregatedAnswer: "the aggregate answer",
			MCC:              map[string]float64{"a": 60, "b": 40},
		}}, nil
	})
	reg(ActivityCollectSelfEvaluations, func(_ context.Context, in domain.CollectSelfEvaluationsInput) (*domain.CollectSelfEvaluationsOutput, error) {
		r.record(ActivityCollectSelfEvaluations)
		return &domain.CollectSelfEvaluationsOutput{SelfEvaluations: []domain.SelfEvaluation{
			{Model: "a", ChairmanMCC: 60, SelfMCC: 70, Arguments: "depth"},
			{Model: "b", ChairmanMCC: 40, SelfMCC: 40, Arguments: "agree"},
		}}, nil
	})
	reg(ActivityFinalize, func(_ context.Context, in domain.FinalizeInput) (*domain.FinalizeOutput, error) {
		r.record(ActivityFinalize)
		return &domain.FinalizeOutput{Decision: domain.ChairmanDecision{
			ChairmanModel:  in.ChairmanModel,
			Decisions:      map[string]float64{"a": 60, "b": 40},
			Communications: map[string]float64{"a": 55, "b": 40},
		}}, nil
	})
	reg(ActivityCollectFinalClaims, func(_ context.Context, in domain.CollectFinalClaimsInput) (*domain.CollectFinalClaimsOutput, error) {
		r.record(ActivityCollectFinalClaims)
		return &domain.CollectFinalClaimsOutput{Claims: []domain.FinalClaim{
			{Model: "a", CommunicatedMCC: 55, ClaimMCC: 55},
			{Model: "b", CommunicatedMCC: 40, ClaimMCC: 40},
		}}, nil
	})
	reg(ActivitySettle, func(_ context.Context, in domain.SettleInput) (*domain.SettleOutput, error) {
		r.record(ActivitySettle)
		return &domain.SettleOutput{Settlement: domain.Settlement{
			ValueBasisUSD: in.ValueBasisUSD,
			PenaltyRate:   in.PenaltyRate,
			Payments: []domain.PaymentRecord{
				{Model: "a", ChairmanPaysMCC: 57.5, BidderReceivesMCC: 57.5, PaymentUSD: 0.575},
				{Model: "b", ChairmanPaysMCC: 40, BidderReceivesMCC: 40, PaymentUSD: 0.40},
			},
			ChairmanNetUSD: 0.025,
		}}, nil
	})
}

func newRequest() ExchangeRequest {
	return ExchangeRequest{
		ConversationID: uuid.NewString(),
		Query:          "why is the sky blue?",
		Candidates:     []string{"a", "b", "c"},
		CouncilSize:    2,
		ChairmanModel:  "google/gemini-3-pro-preview",
		PenaltyRate:    0.2,
	}
}

func freshExchange(t *testing.T, conversationID string) domain.Exchange {
	t.Helper()
	ex, err := domain.NewExchange(conversationID, "why is the sky blue?")
	require.NoError(t, err)
	return *ex
}

func TestExchangeWorkflow(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()

	req := newRequest()
	rec := &stageRecorder{exchange: freshExchange(t, req.ConversationID)}
	rec.register(env)

	env.ExecuteWorkflow(ExchangeWorkflow, req)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ExchangeResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, "the aggregate answer", result.AggregatedAnswer)
	assert.False(t, result.Resumed)
	assert.Len(t, result.Settlement.Payments, 2)

	for _, name := range []string{
		ActivityRunQuoteAuction, ActivityCollectResponses, ActivityAggregate,
		ActivityCollectSelfEvaluations, ActivityFinalize,
		ActivityCollectFinalClaims, ActivitySettle, ActivityFinishRun,
	} {
		assert.True(t, rec.wasCalled(name), "%s should run", name)
	}
	assert.False(t, rec.wasCalled(ActivityFailRun))

	assert.Equal(t, map[string]int64{"a": 500, "b": 800}, rec.tokenBudgets,
		"response collection is capped at each bidder's quoted tokens")
}

func TestExchangeWorkflowResumeSkipsCompletedStages(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()

	req := newRequest()
	ex := freshExchange(t, req.ConversationID)
	require.NoError(t, ex.Apply(domain.FieldAuction, &domain.StagePatch{
		Auction: &domain.AuctionResult{
			Quotes: []domain.Quote{
				{Model: "a", QuotedTokens: 500, EstimatedCostUSD: 0.30, Selected: true},
				{Model: "b", QuotedTokens: 800, EstimatedCostUSD: 0.70, Selected: true},
			},
			Bidders:       domain.BidderSet{"a", "b"},
			ValueBasisUSD: 1.0,
		},
	}))
	require.NoError(t, ex.Apply(domain.FieldResponses, &domain.StagePatch{
		Responses: &domain.ResponseResult{
			Responses: []domain.ModelResponse{
				{Model: "a", Content: "answer a"},
				{Model: "b", Content: "answer b"},
			},
			Survivors: domain.BidderSet{"a", "b"},
		},
	}))
	require.Equal(t, domain.StageAggregating, ex.Stage)

	rec := &stageRecorder{exchange: ex, beginResumed: true}
	rec.register(env)

	env.ExecuteWorkflow(ExchangeWorkflow, req)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ExchangeResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Resumed)

	assert.False(t, rec.wasCalled(ActivityRunQuoteAuction), "resume must not re-run the auction")
	assert.False(t, rec.wasCalled(ActivityCollectResponses), "resume must not re-collect responses")
	assert.True(t, rec.wasCalled(ActivityAggregate))
	assert.True(t, rec.wasCalled(ActivitySettle))
}

func TestExchangeWorkflowChairmanFailureIsFatal(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()

	req := newRequest()
	rec := &stageRecorder{
		exchange:     freshExchange(t, req.ConversationID),
		aggregateErr: errors.New("chairman call failed"),
	}
	rec.register(env)

	env.ExecuteWorkflow(ExchangeWorkflow, req)
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())

	assert.True(t, rec.wasCalled(ActivityFailRun), "fatal stage failure is reported")
	assert.Equal(t, domain.StageAggregating, rec.failedStage)
	assert.False(t, rec.wasCalled(ActivityFinalize))
	assert.False(t, rec.wasCalled(ActivityFinishRun))
}

func TestExchangeWorkflowRejectsEmptyQuery(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()

	req := newRequest()
	req.Query = ""
	rec := &stageRecorder{exchange: freshExchange(t, req.ConversationID)}
	rec.register(env)

	env.ExecuteWorkflow(ExchangeWorkflow, req)
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
	assert.False(t, rec.wasCalled(ActivityBeginRun))
}
