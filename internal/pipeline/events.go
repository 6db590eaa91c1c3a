package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/pkg/activity"
	"github.com/ahrav/go-council/pkg/events"
)

// EventEmitter handles run-level event emission: stage starts, stage
// completions, and the terminal complete / error markers. Completions are
// emitted only after the checkpoint persists the stage's output, so a
// consumer never sees a stage as done that a resumed run would re-execute.
type EventEmitter struct {
	base activity.BaseActivities
}

// NewEventEmitter creates an EventEmitter over the base activities.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

func (e *EventEmitter) emit(
	ctx context.Context,
	eventType, conversationID, exchangeID string,
	payload any,
	wfCtx activity.WorkflowContext,
) {
	data, err := json.Marshal(payload)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal run event payload",
			"event_type", eventType, "error", err)
		return
	}

	envelope := events.Envelope{
		ID:             uuid.NewString(),
		Type:           eventType,
		Source:         "pipeline-activity",
		Version:        "1.0.0",
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: fmt.Sprintf("%s:%s:%s", wfCtx.WorkflowID, exchangeID, eventType),
		ConversationID: conversationID,
		ExchangeID:     exchangeID,
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		Payload:        data,
	}

	e.base.EmitEventSafe(ctx, envelope, fmt.Sprintf("%s[%s]", eventType, exchangeID))
}

// EmitStageStarted publishes <stage>_start.
func (e *EventEmitter) EmitStageStarted(
	ctx context.Context,
	conversationID, exchangeID string,
	stage domain.Stage,
	wfCtx activity.WorkflowContext,
) {
	e.emit(ctx, stage.EventName()+"_start", conversationID, exchangeID,
		map[string]any{"stage": stage}, wfCtx)
}

// EmitStageCompleted publishes <stage>_complete with a display view of the
// checkpointed patch. Called only after the patch is persisted.
func (e *EventEmitter) EmitStageCompleted(
	ctx context.Context,
	conversationID, exchangeID string,
	stage domain.Stage,
	field domain.StageField,
	patch *domain.StagePatch,
	wfCtx activity.WorkflowContext,
) {
	payload, err := completionPayload(field, patch)
	if err != nil {
		activity.SafeLogError(ctx, "Stage completion payload rejected",
			"stage", stage, "error", err)
		return
	}
	e.emit(ctx, stage.EventName()+"_complete", conversationID, exchangeID, payload, wfCtx)
}

// EmitRunComplete publishes the terminal complete marker carrying the
// answer clients render.
func (e *EventEmitter) EmitRunComplete(
	ctx context.Context,
	conversationID, exchangeID, aggregatedAnswer string,
	wfCtx activity.WorkflowContext,
) {
	e.emit(ctx, "complete", conversationID, exchangeID,
		map[string]any{"aggregated_answer": aggregatedAnswer}, wfCtx)
}

// EmitRunError publishes the terminal error marker with the stage that
// broke and why.
func (e *EventEmitter) EmitRunError(
	ctx context.Context,
	conversationID, exchangeID string,
	stage domain.Stage,
	message string,
	wfCtx activity.WorkflowContext,
) {
	e.emit(ctx, "error", conversationID, exchangeID,
		map[string]any{"message": message, "stage": stage}, wfCtx)
}

// Display views for stage completion payloads. MCC points and USD amounts
// are rounded here, at the boundary; the stored exchange keeps full
// precision. The finalizing view deliberately omits the chairman's private
// decisions: the stream is visible to bidders' callers before final claims
// are in.

type quoteView struct {
	Model            string  `json:"model"`
	QuotedTokens     int64   `json:"quoted_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	Selected         bool    `json:"selected"`
}

type auctionPayload struct {
	Quotes        []quoteView `json:"quotes"`
	Bidders       []string    `json:"bidders"`
	ValueBasisUSD float64     `json:"value_basis_usd"`
	Failed        []string    `json:"failed,omitempty"`
}

type responsesPayload struct {
	Responses []domain.ModelResponse `json:"responses"`
	Survivors []string               `json:"survivors"`
	Failed    []string               `json:"failed,omitempty"`
}

type aggregatePayload struct {
	ChairmanModel    string             `json:"chairman_model"`
	AggregatedAnswer string             `json:"aggregated_answer"`
	MCC              map[string]float64 `json:"mcc"`
	Renormalized     bool               `json:"renormalized,omitempty"`
}

type selfEvalView struct {
	Model       string  `json:"model"`
	ChairmanMCC float64 `json:"chairman_mcc"`
	SelfMCC     float64 `json:"self_mcc"`
	Arguments   string  `json:"arguments"`
}

type finalizePayload struct {
	ChairmanModel  string             `json:"chairman_model"`
	Communications map[string]float64 `json:"communications"`
}

type claimView struct {
	Model           string  `json:"model"`
	CommunicatedMCC float64 `json:"communicated_mcc"`
	ClaimMCC        float64 `json:"claim_mcc"`
}

type paymentView struct {
	Model              string  `json:"model"`
	DecisionMCC        float64 `json:"decision_mcc"`
	ClaimMCC           float64 `json:"claim_mcc"`
	PenaltyMCC         float64 `json:"penalty_mcc"`
	ChairmanPaysMCC    float64 `json:"chairman_pays_mcc"`
	BidderReceivesMCC  float64 `json:"bidder_receives_mcc"`
	PaymentUSD         float64 `json:"payment_usd"`
	ChairmanPaymentUSD float64 `json:"chairman_payment_usd"`
}

type settlementPayload struct {
	ValueBasisUSD  float64       `json:"value_basis_usd"`
	ChairmanNetUSD float64       `json:"chairman_net_usd"`
	TotalPaidUSD   float64       `json:"total_paid_usd"`
	Payments       []paymentView `json:"payments"`
}

// completionPayload builds the display view for one persisted stage patch.
func completionPayload(field domain.StageField, patch *domain.StagePatch) (any, error) {
	switch field {
	case domain.FieldAuction:
		if patch.Auction == nil {
			return nil, fmt.Errorf("%w: auction patch missing payload", domain.ErrInvalidPatch)
		}
		p := auctionPayload{
			Bidders:       patch.Auction.Bidders,
			ValueBasisUSD: domain.RoundUSD(patch.Auction.ValueBasisUSD),
			Failed:        patch.Auction.Failed,
		}
		for _, q := range patch.Auction.Quotes {
			p.Quotes = append(p.Quotes, quoteView{
				Model:            q.Model,
				QuotedTokens:     q.QuotedTokens,
				EstimatedCostUSD: domain.RoundUSD(q.EstimatedCostUSD),
				Selected:         q.Selected,
			})
		}
		return p, nil

	case domain.FieldResponses:
		if patch.Responses == nil {
			return nil, fmt.Errorf("%w: responses patch missing payload", domain.ErrInvalidPatch)
		}
		return responsesPayload{
			Responses: patch.Responses.Responses,
			Survivors: patch.Responses.Survivors,
			Failed:    patch.Responses.Failed,
		}, nil

	case domain.FieldEvaluation:
		if patch.Evaluation == nil {
			return nil, fmt.Errorf("%w: evaluation patch missing payload", domain.ErrInvalidPatch)
		}
		rounded := make(map[string]float64, len(patch.Evaluation.MCC))
		for model, v := range patch.Evaluation.MCC {
			rounded[model] = domain.RoundPercent(v)
		}
		return aggregatePayload{
			ChairmanModel:    patch.Evaluation.ChairmanModel,
			AggregatedAnswer: patch.Evaluation.AggregatedAnswer,
			MCC:              rounded,
			Renormalized:     patch.Evaluation.RawMCC != nil,
		}, nil

	case domain.FieldSelfEvaluations:
		views := make([]selfEvalView, 0, len(patch.SelfEvaluations))
		for _, se := range patch.SelfEvaluations {
			views = append(views, selfEvalView{
				Model:       se.Model,
				ChairmanMCC: domain.RoundPercent(se.ChairmanMCC),
				SelfMCC:     domain.RoundPercent(se.SelfMCC),
				Arguments:   se.Arguments,
			})
		}
		return map[string]any{"self_evaluations": views}, nil

	case domain.FieldDecision:
		if patch.Decision == nil {
			return nil, fmt.Errorf("%w: decision patch missing payload", domain.ErrInvalidPatch)
		}
		rounded := make(map[string]float64, len(patch.Decision.Communications))
		for model, v := range patch.Decision.Communications {
			rounded[model] = domain.RoundPercent(v)
		}
		return finalizePayload{
			ChairmanModel:  patch.Decision.ChairmanModel,
			Communications: rounded,
		}, nil

	case domain.FieldClaims:
		views := make([]claimView, 0, len(patch.Claims))
		for _, c := range patch.Claims {
			views = append(views, claimView{
				Model:           c.Model,
				CommunicatedMCC: domain.RoundPercent(c.CommunicatedMCC),
				ClaimMCC:        domain.RoundPercent(c.ClaimMCC),
			})
		}
		return map[string]any{"claims": views}, nil

	case domain.FieldSettlement:
		if patch.Settlement == nil {
			return nil, fmt.Errorf("%w: settlement patch missing payload", domain.ErrInvalidPatch)
		}
		s := patch.Settlement
		p := settlementPayload{
			ValueBasisUSD:  domain.RoundUSD(s.ValueBasisUSD),
			ChairmanNetUSD: domain.RoundUSD(s.ChairmanNetUSD),
			TotalPaidUSD:   domain.RoundUSD(s.TotalPaidUSD()),
		}
		for _, pay := range s.Payments {
			p.Payments = append(p.Payments, paymentView{
				Model:              pay.Model,
				DecisionMCC:        domain.RoundPercent(pay.DecisionMCC),
				ClaimMCC:           domain.RoundPercent(pay.ClaimMCC),
				PenaltyMCC:         domain.RoundPercent(pay.PenaltyMCC),
				ChairmanPaysMCC:    domain.RoundPercent(pay.ChairmanPaysMCC),
				BidderReceivesMCC:  domain.RoundPercent(pay.BidderReceivesMCC),
				PaymentUSD:         domain.RoundUSD(pay.PaymentUSD),
				ChairmanPaymentUSD: domain.RoundUSD(pay.ChairmanPaymentUSD),
			})
		}
		return p, nil

	default:
		return nil, fmt.Errorf("%w: unknown stage field %q", domain.ErrInvalidPatch, field)
	}
}
