// Package domain provides core types and business logic for the council
// auction pipeline. It defines quotes, bidder sets, chairman evaluations,
// settlement records, and the Exchange container that carries one
// user-question-to-settled-payment unit of work through all seven stages.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage identifies the pipeline state an Exchange is in. The pipeline is
// strictly linear: each stage's external calls depend on the full, joined
// output of the previous stage.
type Stage string

const (
	// StageQuoting collects token-count quotes from every catalog candidate.
	StageQuoting Stage = "quoting"

	// StageResponding fans the user prompt out to the selected bidders.
	StageResponding Stage = "responding"

	// StageAggregating asks the chairman for a synthesized answer and
	// an initial credit split.
	StageAggregating Stage = "aggregating"

	// StageSelfEvaluating collects each bidder's counter-assessment of
	// its own credit.
	StageSelfEvaluating Stage = "self_evaluating"

	// StageFinalizing asks the chairman for final decisions plus the
	// disclosed communication values.
	StageFinalizing Stage = "finalizing"

	// StageAccepting collects each bidder's final claimed credit.
	StageAccepting Stage = "accepting"

	// StageSettling converts decisions and claims into payments.
	StageSettling Stage = "settling"

	// StageDone marks a fully settled, immutable Exchange.
	StageDone Stage = "done"
)

// stageOrder defines the strict linear progression of the pipeline.
var stageOrder = []Stage{
	StageQuoting,
	StageResponding,
	StageAggregating,
	StageSelfEvaluating,
	StageFinalizing,
	StageAccepting,
	StageSettling,
	StageDone,
}

// Next returns the stage that follows s. The terminal stage maps to itself.
func (s Stage) Next() Stage {
	for i, st := range stageOrder {
		if st == s && i < len(stageOrder)-1 {
			return stageOrder[i+1]
		}
	}
	return StageDone
}

// Terminal reports whether the stage ends the pipeline.
func (s Stage) Terminal() bool { return s == StageDone }

// EventName returns the external event-stream prefix for the stage
// (e.g. "quote" for quote_start/quote_complete).
func (s Stage) EventName() string {
	switch s {
	case StageQuoting:
		return "quote"
	case StageResponding:
		return "respond"
	case StageAggregating:
		return "aggregate"
	case StageSelfEvaluating:
		return "self_evaluate"
	case StageFinalizing:
		return "finalize"
	case StageAccepting:
		return "accept"
	case StageSettling:
		return "settle"
	default:
		return string(s)
	}
}

// StageField names the single Exchange field a stage fills in. Persistence
// patches exactly one field per stage boundary; the field name doubles as
// the document key in stores.
type StageField string

const (
	FieldAuction         StageField = "auction"
	FieldResponses       StageField = "responses"
	FieldEvaluation      StageField = "evaluation"
	FieldSelfEvaluations StageField = "self_evaluations"
	FieldDecision        StageField = "decision"
	FieldClaims          StageField = "claims"
	FieldSettlement      StageField = "settlement"
)

// FieldForStage maps a pipeline stage to the Exchange field it fills.
func FieldForStage(s Stage) (StageField, bool) {
	switch s {
	case StageQuoting:
		return FieldAuction, true
	case StageResponding:
		return FieldResponses, true
	case StageAggregating:
		return FieldEvaluation, true
	case StageSelfEvaluating:
		return FieldSelfEvaluations, true
	case StageFinalizing:
		return FieldDecision, true
	case StageAccepting:
		return FieldClaims, true
	case StageSettling:
		return FieldSettlement, true
	default:
		return "", false
	}
}

// Exchange is the per-turn container holding one instance of every stage's
// output. It is created when a user message starts processing, mutated
// stage-by-stage by exactly one pipeline run, and immutable once settled.
// Only the persistence layer reads or writes it across process restarts.
type Exchange struct {
	// ID uniquely identifies this exchange.
	ID string `json:"id" bson:"_id" validate:"required,uuid"`

	// ConversationID ties the exchange to its owning conversation.
	ConversationID string `json:"conversation_id" bson:"conversation_id" validate:"required,uuid"`

	// Query is the user question driving the exchange.
	Query string `json:"query" bson:"query" validate:"required,min=1"`

	// Stage is the next unexecuted pipeline stage. Advanced atomically with
	// each checkpoint; resume continues strictly from here.
	Stage Stage `json:"stage" bson:"stage" validate:"required"`

	// Quotes holds every collected quote, selected or not, for transparency.
	Quotes []Quote `json:"quotes,omitempty" bson:"quotes,omitempty"`

	// Bidders is the surviving bidder set. Initialized by the auction and
	// narrowed when bidders drop out during response collection or final
	// acceptance.
	Bidders BidderSet `json:"bidders,omitempty" bson:"bidders,omitempty"`

	// ValueBasisUSD converts MCC percentages into currency at settlement.
	// Established once, at auction time.
	ValueBasisUSD float64 `json:"value_basis_usd,omitempty" bson:"value_basis_usd,omitempty"`

	Responses       []ModelResponse     `json:"responses,omitempty" bson:"responses,omitempty"`
	Evaluation      *ChairmanEvaluation `json:"evaluation,omitempty" bson:"evaluation,omitempty"`
	SelfEvaluations []SelfEvaluation    `json:"self_evaluations,omitempty" bson:"self_evaluations,omitempty"`
	Decision        *ChairmanDecision   `json:"decision,omitempty" bson:"decision,omitempty"`
	Claims          []FinalClaim        `json:"claims,omitempty" bson:"claims,omitempty"`
	Settlement      *Settlement         `json:"settlement,omitempty" bson:"settlement,omitempty"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// NewExchange creates an Exchange at the quoting stage.
//
// WARNING: uses uuid.New and time.Now; never call inside workflow code.
// Activities create exchanges, workflows only sequence them.
func NewExchange(conversationID, query string) (*Exchange, error) {
	ex := &Exchange{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Query:          query,
		Stage:          StageQuoting,
		CreatedAt:      time.Now().UTC(),
	}
	if err := validate.Struct(ex); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExchange, err)
	}
	return ex, nil
}

// Validate checks the exchange against its structural constraints.
func (e *Exchange) Validate() error { return validate.Struct(e) }

// Apply fills the Exchange field owned by the given stage and advances the
// stage marker. It is the single mutation path shared by the persistence
// implementations and the in-workflow working copy, keeping both views of
// the exchange identical after every checkpoint.
func (e *Exchange) Apply(field StageField, patch *StagePatch) error {
	switch field {
	case FieldAuction:
		if patch.Auction == nil {
			return fmt.Errorf("%w: auction patch missing payload", ErrInvalidPatch)
		}
		e.Quotes = patch.Auction.Quotes
		e.Bidders = patch.Auction.Bidders
		e.ValueBasisUSD = patch.Auction.ValueBasisUSD
		e.Stage = StageResponding
	case FieldResponses:
		if patch.Responses == nil {
			return fmt.Errorf("%w: responses patch missing payload", ErrInvalidPatch)
		}
		e.Responses = patch.Responses.Responses
		e.Bidders = patch.Responses.Survivors
		e.Stage = StageAggregating
	case FieldEvaluation:
		if patch.Evaluation == nil {
			return fmt.Errorf("%w: evaluation patch missing payload", ErrInvalidPatch)
		}
		e.Evaluation = patch.Evaluation
		e.Stage = StageSelfEvaluating
	case FieldSelfEvaluations:
		e.SelfEvaluations = patch.SelfEvaluations
		e.Stage = StageFinalizing
	case FieldDecision:
		if patch.Decision == nil {
			return fmt.Errorf("%w: decision patch missing payload", ErrInvalidPatch)
		}
		e.Decision = patch.Decision
		e.Stage = StageAccepting
	case FieldClaims:
		if len(patch.Claims) == 0 {
			return fmt.Errorf("%w: claims patch missing payload", ErrInvalidPatch)
		}
		e.Claims = patch.Claims
		// Bidders whose acceptance call failed have no claim; they leave
		// the survivor set here and never reach settlement.
		claimants := make(BidderSet, 0, len(patch.Claims))
		for _, c := range patch.Claims {
			claimants = append(claimants, c.Model)
		}
		e.Bidders = claimants
		e.Stage = StageSettling
	case FieldSettlement:
		if patch.Settlement == nil {
			return fmt.Errorf("%w: settlement patch missing payload", ErrInvalidPatch)
		}
		e.Settlement = patch.Settlement
		e.Stage = StageDone
		now := patch.CompletedAt
		if now.IsZero() {
			now = time.Now().UTC()
		}
		e.CompletedAt = &now
	default:
		return fmt.Errorf("%w: unknown stage field %q", ErrInvalidPatch, field)
	}
	return nil
}

// StagePatch is the typed union of per-stage outputs accepted by Apply and
// by Store.PatchExchange. Exactly one payload matching the field must be set.
type StagePatch struct {
	Auction         *AuctionResult      `json:"auction,omitempty" bson:"auction,omitempty"`
	Responses       *ResponseResult     `json:"responses,omitempty" bson:"responses,omitempty"`
	Evaluation      *ChairmanEvaluation `json:"evaluation,omitempty" bson:"evaluation,omitempty"`
	SelfEvaluations []SelfEvaluation    `json:"self_evaluations,omitempty" bson:"self_evaluations,omitempty"`
	Decision        *ChairmanDecision   `json:"decision,omitempty" bson:"decision,omitempty"`
	Claims          []FinalClaim        `json:"claims,omitempty" bson:"claims,omitempty"`
	Settlement      *Settlement         `json:"settlement,omitempty" bson:"settlement,omitempty"`
	CompletedAt     time.Time           `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// AuctionResult is the quote stage's complete output: every quote collected,
// the selected bidder set, and the value basis implied by the selection.
// Candidates whose quote call failed appear only in Failed.
type AuctionResult struct {
	Quotes        []Quote   `json:"quotes" bson:"quotes" validate:"required,min=1,dive"`
	Bidders       BidderSet `json:"bidders" bson:"bidders" validate:"required,min=1"`
	ValueBasisUSD float64   `json:"value_basis_usd" bson:"value_basis_usd" validate:"gt=0"`
	Failed        []string  `json:"failed,omitempty" bson:"failed,omitempty"`
}

// Validate checks the auction result against its structural constraints.
func (a *AuctionResult) Validate() error { return validate.Struct(a) }

// ResponseResult is the response stage's output: one response per surviving
// bidder plus the survivor set itself. Dropped bidders appear only in Failed,
// as an omission rather than an error.
type ResponseResult struct {
	Responses []ModelResponse `json:"responses" bson:"responses" validate:"required,min=1,dive"`
	Survivors BidderSet       `json:"survivors" bson:"survivors" validate:"required,min=1"`
	Failed    []string        `json:"failed,omitempty" bson:"failed,omitempty"`
}

// Validate checks the response result against its structural constraints.
func (r *ResponseResult) Validate() error { return validate.Struct(r) }
