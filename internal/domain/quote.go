package domain

import "sort"

// Auction defaults. Candidates that return garbage instead of a number are
// quoted at DefaultQuotedTokens rather than dropped; only transport failures
// exclude a candidate.
const (
	// DefaultCouncilSize is the bidder set size k when not configured.
	DefaultCouncilSize = 3

	// DefaultQuotedTokens is the fallback quote when a candidate's reply
	// cannot be parsed into a sane token count.
	DefaultQuotedTokens = 1500

	// MinQuotedTokens and MaxQuotedTokens bound a parsed quote; values
	// outside the range fall back to DefaultQuotedTokens.
	MinQuotedTokens = 100
	MaxQuotedTokens = 10000

	// TokensPerMillion converts per-million-token rates into per-token cost.
	TokensPerMillion = 1_000_000
)

// Quote is one candidate's priced bid for answering the query.
// Immutable once emitted by the auction.
type Quote struct {
	// Model is the candidate model identifier (e.g. "openai/gpt-4o").
	Model string `json:"model" bson:"model" validate:"required,min=1"`

	// QuotedTokens is the output budget the candidate asked for.
	QuotedTokens int64 `json:"quoted_tokens" bson:"quoted_tokens" validate:"required,min=1"`

	// InputCostPerMillion and OutputCostPerMillion are the catalog rates
	// in USD per million tokens.
	InputCostPerMillion  float64 `json:"input_cost_per_million" bson:"input_cost_per_million" validate:"min=0"`
	OutputCostPerMillion float64 `json:"output_cost_per_million" bson:"output_cost_per_million" validate:"min=0"`

	// EstimatedCostUSD is the cost implied by the quote at catalog rates.
	EstimatedCostUSD float64 `json:"estimated_cost_usd" bson:"estimated_cost_usd" validate:"min=0"`

	// Selected marks the quote as part of the winning bidder set.
	Selected bool `json:"selected" bson:"selected"`
}

// Validate checks the quote against its structural constraints.
func (q *Quote) Validate() error { return validate.Struct(q) }

// BidderSet is the ordered set of models selected by the auction.
// Every member is among the k lowest estimated-cost quotes that responded.
type BidderSet []string

// Contains reports whether model is a member of the set.
func (b BidderSet) Contains(model string) bool {
	for _, m := range b {
		if m == model {
			return true
		}
	}
	return false
}

// Without returns a copy of the set with the given models removed,
// preserving order.
func (b BidderSet) Without(models ...string) BidderSet {
	drop := make(map[string]struct{}, len(models))
	for _, m := range models {
		drop[m] = struct{}{}
	}
	out := make(BidderSet, 0, len(b))
	for _, m := range b {
		if _, gone := drop[m]; !gone {
			out = append(out, m)
		}
	}
	return out
}

// SelectBidders ranks quotes by estimated cost ascending and marks the k
// cheapest as selected, returning the marked quotes and the bidder set.
// Ties break by arrival order (first successful quote wins); the sort is
// stable over the input slice for exactly that reason. Fewer than k quotes
// selects all of them.
func SelectBidders(quotes []Quote, k int) ([]Quote, BidderSet) {
	if k <= 0 {
		k = DefaultCouncilSize
	}

	ranked := make([]Quote, len(quotes))
	copy(ranked, quotes)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EstimatedCostUSD < ranked[j].EstimatedCostUSD
	})

	n := min(k, len(ranked))
	bidders := make(BidderSet, 0, n)
	for i := 0; i < n; i++ {
		ranked[i].Selected = true
		bidders = append(bidders, ranked[i].Model)
	}
	return ranked, bidders
}

// SelectedValueBasis sums the estimated cost of the selected quotes. This is
// the default value basis for converting MCC percentages into currency.
func SelectedValueBasis(quotes []Quote) float64 {
	var sum float64
	for _, q := range quotes {
		if q.Selected {
			sum += q.EstimatedCostUSD
		}
	}
	return sum
}
