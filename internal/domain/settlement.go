package domain

// DefaultPenaltyRate is the fraction of the communicated/claimed gap charged
// as a negotiation penalty when a bidder claims above what the chairman
// disclosed.
const DefaultPenaltyRate = 0.2

// PaymentRecord is one bidder's settled line item. DecisionMCC is the
// chairman's private final decision; ChairmanPaysMCC and BidderReceivesMCC
// are in MCC points and the spread between them is burned. PaymentUSD and
// ChairmanPaymentUSD convert the respective point totals against the
// exchange value basis.
type PaymentRecord struct {
	Model              string  `json:"model" bson:"model" validate:"required,min=1"`
	DecisionMCC        float64 `json:"decision_mcc" bson:"decision_mcc" validate:"min=0"`
	ClaimMCC           float64 `json:"claim_mcc" bson:"claim_mcc" validate:"min=0"`
	PenaltyMCC         float64 `json:"penalty_mcc" bson:"penalty_mcc" validate:"min=0"`
	ChairmanPaysMCC    float64 `json:"chairman_pays_mcc" bson:"chairman_pays_mcc" validate:"min=0"`
	BidderReceivesMCC  float64 `json:"bidder_receives_mcc" bson:"bidder_receives_mcc"`
	PaymentUSD         float64 `json:"payment_usd" bson:"payment_usd"`
	ChairmanPaymentUSD float64 `json:"chairman_payment_usd" bson:"chairman_payment_usd"`
}

// Validate checks the record against its structural constraints.
func (p *PaymentRecord) Validate() error { return validate.Struct(p) }

// Settlement is the terminal payment ledger for an exchange.
type Settlement struct {
	ValueBasisUSD  float64         `json:"value_basis_usd" bson:"value_basis_usd" validate:"min=0"`
	PenaltyRate    float64         `json:"penalty_rate" bson:"penalty_rate" validate:"min=0,max=1"`
	Payments       []PaymentRecord `json:"payments" bson:"payments" validate:"required,dive"`
	ChairmanNetUSD float64         `json:"chairman_net_usd" bson:"chairman_net_usd"`
}

// Validate checks the settlement and every payment line.
func (s *Settlement) Validate() error { return validate.Struct(s) }

// TotalPaidUSD sums the USD amounts paid out to bidders.
func (s *Settlement) TotalPaidUSD() float64 {
	var total float64
	for _, p := range s.Payments {
		total += p.PaymentUSD
	}
	return total
}
