package domain

// Activity input/output contracts. Every input validates at the activity
// boundary before any provider call is made; outputs validate before the
// result crosses back into the workflow.

// RunQuoteAuctionInput seats the council for one exchange. An empty
// Candidates list asks the activity to auction the full catalog roster.
type RunQuoteAuctionInput struct {
	ExchangeID     string   `json:"exchange_id" validate:"required,uuid4"`
	ConversationID string   `json:"conversation_id" validate:"required,uuid4"`
	Query          string   `json:"query" validate:"required,min=1"`
	Candidates     []string `json:"candidates,omitempty" validate:"omitempty,dive,min=1"`
	CouncilSize    int      `json:"council_size" validate:"required,min=1"`

	// ValueBasisOverrideUSD, when positive, replaces the quote-derived
	// value basis with a fixed operator-configured amount.
	ValueBasisOverrideUSD float64 `json:"value_basis_override_usd,omitempty" validate:"min=0"`
}

// Validate checks the input against its structural constraints.
func (i *RunQuoteAuctionInput) Validate() error { return validate.Struct(i) }

// RunQuoteAuctionOutput carries the seated council and the exchange's
// value basis.
type RunQuoteAuctionOutput struct {
	Result AuctionResult `json:"result"`
}

// Validate checks the output against its structural constraints.
func (o *RunQuoteAuctionOutput) Validate() error { return o.Result.Validate() }

// CollectResponsesInput fans the user query out to the seated council.
// TokenBudgets caps each bidder's completion at the token count it quoted
// during the auction; a bidder without an entry gets the provider default.
type CollectResponsesInput struct {
	ExchangeID     string           `json:"exchange_id" validate:"required,uuid4"`
	ConversationID string           `json:"conversation_id" validate:"required,uuid4"`
	Query          string           `json:"query" validate:"required,min=1"`
	Bidders        BidderSet        `json:"bidders" validate:"required,min=1,dive,min=1"`
	TokenBudgets   map[string]int64 `json:"token_budgets,omitempty" validate:"omitempty"`
}

// Validate checks the input against its structural constraints.
func (i *CollectResponsesInput) Validate() error { return validate.Struct(i) }

// CollectResponsesOutput carries the surviving responses and the bidders
// dropped along the way.
type CollectResponsesOutput struct {
	Result ResponseResult `json:"result"`
}

// Validate checks the output against its structural constraints.
func (o *CollectResponsesOutput) Validate() error { return o.Result.Validate() }

// AggregateInput asks the chairman for a synthesized answer plus the
// initial MCC split.
type AggregateInput struct {
	ExchangeID     string          `json:"exchange_id" validate:"required,uuid4"`
	ConversationID string          `json:"conversation_id" validate:"required,uuid4"`
	Query          string          `json:"query" validate:"required,min=1"`
	ChairmanModel  string          `json:"chairman_model" validate:"required,min=1"`
	Responses      []ModelResponse `json:"responses" validate:"required,min=1,dive"`
	Survivors      BidderSet       `json:"survivors" validate:"required,min=1,dive,min=1"`
}

// Validate checks the input against its structural constraints.
func (i *AggregateInput) Validate() error { return validate.Struct(i) }

// AggregateOutput carries the validated (possibly renormalized) evaluation.
type AggregateOutput struct {
	Evaluation ChairmanEvaluation `json:"evaluation"`
}

// CollectSelfEvaluationsInput fans the chairman's per-bidder MCC back to
// each surviving bidder for counter-assessment.
type CollectSelfEvaluationsInput struct {
	ExchangeID       string             `json:"exchange_id" validate:"required,uuid4"`
	ConversationID   string             `json:"conversation_id" validate:"required,uuid4"`
	Query            string             `json:"query" validate:"required,min=1"`
	AggregatedAnswer string             `json:"aggregated_answer" validate:"required"`
	MCC              map[string]float64 `json:"mcc" validate:"required,min=1"`
	Responses        []ModelResponse    `json:"responses" validate:"required,min=1,dive"`
	Survivors        BidderSet          `json:"survivors" validate:"required,min=1,dive,min=1"`
}

// Validate checks the input against its structural constraints.
func (i *CollectSelfEvaluationsInput) Validate() error { return validate.Struct(i) }

// CollectSelfEvaluationsOutput carries whatever self-evaluations arrived.
// A bidder failing this stage stays seated; its entry is simply absent.
type CollectSelfEvaluationsOutput struct {
	SelfEvaluations []SelfEvaluation `json:"self_evaluations" validate:"dive"`
}

// Validate checks the output against its structural constraints.
func (o *CollectSelfEvaluationsOutput) Validate() error { return validate.Struct(o) }

// FinalizeInput asks the chairman to weigh self-evaluations and fix the
// final decisions and per-bidder communications.
type FinalizeInput struct {
	ExchangeID       string             `json:"exchange_id" validate:"required,uuid4"`
	ConversationID   string             `json:"conversation_id" validate:"required,uuid4"`
	Query            string             `json:"query" validate:"required,min=1"`
	ChairmanModel    string             `json:"chairman_model" validate:"required,min=1"`
	AggregatedAnswer string             `json:"aggregated_answer" validate:"required"`
	InitialMCC       map[string]float64 `json:"initial_mcc" validate:"required,min=1"`
	Responses        []ModelResponse    `json:"responses" validate:"required,min=1,dive"`
	SelfEvaluations  []SelfEvaluation   `json:"self_evaluations" validate:"dive"`
	Survivors        BidderSet          `json:"survivors" validate:"required,min=1,dive,min=1"`
}

// Validate checks the input against its structural constraints.
func (i *FinalizeInput) Validate() error { return validate.Struct(i) }

// FinalizeOutput carries the chairman's final decision.
type FinalizeOutput struct {
	Decision ChairmanDecision `json:"decision"`
}

// CollectFinalClaimsInput discloses each bidder's communicated MCC and asks
// for a final claim. Bidders never see the chairman's private decisions.
type CollectFinalClaimsInput struct {
	ExchangeID     string             `json:"exchange_id" validate:"required,uuid4"`
	ConversationID string             `json:"conversation_id" validate:"required,uuid4"`
	Query          string             `json:"query" validate:"required,min=1"`
	Communications map[string]float64 `json:"communications" validate:"required,min=1"`
	Survivors      BidderSet          `json:"survivors" validate:"required,min=1,dive,min=1"`
}

// Validate checks the input against its structural constraints.
func (i *CollectFinalClaimsInput) Validate() error { return validate.Struct(i) }

// CollectFinalClaimsOutput carries one claim per bidder whose acceptance
// call succeeded. A bidder that fails to claim drops out of settlement
// entirely: zero payment, excluded from the ledger.
type CollectFinalClaimsOutput struct {
	Claims []FinalClaim `json:"claims" validate:"required,min=1,dive"`
	Failed []string     `json:"failed,omitempty"`
}

// Validate checks the output against its structural constraints.
func (o *CollectFinalClaimsOutput) Validate() error { return validate.Struct(o) }

// SettleInput computes the terminal payment ledger from the chairman's
// decisions and the bidders' claims.
type SettleInput struct {
	ExchangeID     string             `json:"exchange_id" validate:"required,uuid4"`
	ConversationID string             `json:"conversation_id" validate:"required,uuid4"`
	ValueBasisUSD  float64            `json:"value_basis_usd" validate:"min=0"`
	PenaltyRate    float64            `json:"penalty_rate" validate:"min=0,max=1"`
	Decisions      map[string]float64 `json:"decisions" validate:"required,min=1"`
	Claims         []FinalClaim       `json:"claims" validate:"dive"`
	Survivors      BidderSet          `json:"survivors" validate:"required,min=1,dive,min=1"`
}

// Validate checks the input against its structural constraints.
func (i *SettleInput) Validate() error { return validate.Struct(i) }

// SettleOutput carries the final ledger.
type SettleOutput struct {
	Settlement Settlement `json:"settlement"`
}

// Validate checks the output against its structural constraints.
func (o *SettleOutput) Validate() error { return o.Settlement.Validate() }
