package domain

import (
	"fmt"
	"math"
)

// MCCSumTolerance is the allowed deviation of an initial MCC mapping's sum
// from 100 before the engine renormalizes it.
const MCCSumTolerance = 0.5

// mccTarget is the exact sum a renormalized MCC mapping is rescaled to.
const mccTarget = 100.0

// ModelResponse is one surviving bidder's answer to the user query.
type ModelResponse struct {
	Model   string `json:"model" bson:"model" validate:"required,min=1"`
	Content string `json:"content" bson:"content" validate:"required"`
}

// Validate checks the response against its structural constraints.
func (m *ModelResponse) Validate() error { return validate.Struct(m) }

// ChairmanEvaluation is the chairman's synthesized answer plus its initial
// marginal-contribution split across surviving bidders. MCC holds the
// engine-validated mapping (sum exactly 100 after renormalization, or within
// tolerance as returned); RawMCC preserves the chairman's literal values for
// audit whenever they were rescaled.
type ChairmanEvaluation struct {
	ChairmanModel    string             `json:"chairman_model" bson:"chairman_model" validate:"required,min=1"`
	AggregatedAnswer string             `json:"aggregated_answer" bson:"aggregated_answer" validate:"required"`
	MCC              map[string]float64 `json:"mcc" bson:"mcc" validate:"required,min=1"`
	RawMCC           map[string]float64 `json:"raw_mcc,omitempty" bson:"raw_mcc,omitempty"`
}

// Validate checks the evaluation structurally and enforces the MCC mapping
// invariants: only surviving bidders named, every value non-negative, sum
// within 100 ± MCCSumTolerance.
func (c *ChairmanEvaluation) Validate(survivors BidderSet) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := validateMCCMembers(c.MCC, survivors); err != nil {
		return err
	}
	sum := mccSum(c.MCC)
	if math.Abs(sum-mccTarget) > MCCSumTolerance {
		return fmt.Errorf("%w: MCC sum %.2f outside 100±%.1f", ErrMCCSumOutOfTolerance, sum, MCCSumTolerance)
	}
	return nil
}

// Normalize rescales an out-of-tolerance MCC mapping proportionally so the
// values sum to exactly 100, recording the raw values for audit. Mappings
// already within tolerance are returned untouched. A zero-sum mapping cannot
// be rescaled and is reported as an error.
func (c *ChairmanEvaluation) Normalize() error {
	sum := mccSum(c.MCC)
	if math.Abs(sum-mccTarget) <= MCCSumTolerance {
		return nil
	}
	if sum <= 0 {
		return fmt.Errorf("%w: MCC sum %.2f cannot be rescaled", ErrMCCSumOutOfTolerance, sum)
	}

	raw := cloneFloatMap(c.MCC)
	scale := mccTarget / sum
	for model, v := range c.MCC {
		c.MCC[model] = v * scale
	}
	c.RawMCC = raw
	return nil
}

// SelfEvaluation is a bidder's counter-assessment of its own credit.
// Self-claims carry no cross-bidder sum constraint; each is independent
// advisory input to the chairman.
type SelfEvaluation struct {
	Model       string  `json:"model" bson:"model" validate:"required,min=1"`
	ChairmanMCC float64 `json:"chairman_mcc" bson:"chairman_mcc" validate:"min=0"`
	SelfMCC     float64 `json:"self_mcc" bson:"self_mcc" validate:"min=0,max=100"`
	Arguments   string  `json:"arguments" bson:"arguments"`
}

// Validate checks the self-evaluation against its structural constraints.
func (s *SelfEvaluation) Validate() error { return validate.Struct(s) }

// ChairmanDecision carries the chairman's authoritative final credit per
// bidder (Decisions) and the value it discloses to each bidder
// (Communications). The two mappings are deliberately distinct and may
// differ: the chairman may shade what it tells a bidder without changing
// what it actually pays on. Neither mapping is sum-constrained.
type ChairmanDecision struct {
	ChairmanModel  string             `json:"chairman_model" bson:"chairman_model" validate:"required,min=1"`
	Decisions      map[string]float64 `json:"decisions" bson:"decisions" validate:"required,min=1"`
	Communications map[string]float64 `json:"communications" bson:"communications" validate:"required,min=1"`
}

// Validate checks both mappings cover exactly the surviving bidders with
// non-negative values. No sum constraint applies to either mapping.
func (d *ChairmanDecision) Validate(survivors BidderSet) error {
	if err := validate.Struct(d); err != nil {
		return err
	}
	if err := validateMCCMembers(d.Decisions, survivors); err != nil {
		return fmt.Errorf("decisions: %w", err)
	}
	if err := validateMCCMembers(d.Communications, survivors); err != nil {
		return fmt.Errorf("communications: %w", err)
	}
	for _, m := range survivors {
		if _, ok := d.Decisions[m]; !ok {
			return fmt.Errorf("%w: decision missing for bidder %q", ErrUnknownBidder, m)
		}
		if _, ok := d.Communications[m]; !ok {
			return fmt.Errorf("%w: communication missing for bidder %q", ErrUnknownBidder, m)
		}
	}
	return nil
}

// FinalClaim is a bidder's final claimed MCC, made against only the
// disclosed communication value, never the chairman's private decision.
type FinalClaim struct {
	Model           string  `json:"model" bson:"model" validate:"required,min=1"`
	CommunicatedMCC float64 `json:"communicated_mcc" bson:"communicated_mcc" validate:"min=0"`
	ClaimMCC        float64 `json:"claim_mcc" bson:"claim_mcc" validate:"min=0,max=100"`
}

// Validate checks the claim against its structural constraints.
func (f *FinalClaim) Validate() error { return validate.Struct(f) }

// validateMCCMembers rejects mappings naming models outside the surviving
// bidder set or carrying negative values.
func validateMCCMembers(mcc map[string]float64, survivors BidderSet) error {
	for model, v := range mcc {
		if !survivors.Contains(model) {
			return fmt.Errorf("%w: %q is not a surviving bidder", ErrUnknownBidder, model)
		}
		if v < 0 {
			return fmt.Errorf("%w: negative MCC %.2f for %q", ErrNegativeMCC, v, model)
		}
	}
	return nil
}

func mccSum(mcc map[string]float64) float64 {
	var sum float64
	for _, v := range mcc {
		sum += v
	}
	return sum
}
