package settlement

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/pkg/activity"
	"github.com/ahrav/go-council/pkg/events"
)

func basisInput() domain.SettleInput {
	return domain.SettleInput{
		ExchangeID:     uuid.NewString(),
		ConversationID: uuid.NewString(),
		ValueBasisUSD:  1.0,
		PenaltyRate:    0.2,
		Survivors:      domain.BidderSet{"a", "b", "c"},
		Decisions:      map[string]float64{"a": 55, "b": 25, "c": 20},
		Claims: []domain.FinalClaim{
			{Model: "a", CommunicatedMCC: 55, ClaimMCC: 60},
			{Model: "b", CommunicatedMCC: 25, ClaimMCC: 20},
			{Model: "c", CommunicatedMCC: 20, ClaimMCC: 25},
		},
	}
}

func TestSettleNegotiationRules(t *testing.T) {
	s := Settle(basisInput())
	require.Len(t, s.Payments, 3)

	byModel := make(map[string]domain.PaymentRecord, 3)
	for _, p := range s.Payments {
		byModel[p.Model] = p
	}

	// Overclaim: decision 55, claim 60. Penalty 0.2*5=1.
	a := byModel["a"]
	assert.InDelta(t, 55.0, a.DecisionMCC, 1e-9)
	assert.InDelta(t, 1.0, a.PenaltyMCC, 1e-9)
	assert.InDelta(t, 61.0, a.ChairmanPaysMCC, 1e-9)
	assert.InDelta(t, 54.0, a.BidderReceivesMCC, 1e-9)

	// Underclaim: decision 25, claim 20. Split at 22.5, no penalty.
	b := byModel["b"]
	assert.Zero(t, b.PenaltyMCC)
	assert.InDelta(t, 22.5, b.ChairmanPaysMCC, 1e-9)
	assert.InDelta(t, 22.5, b.BidderReceivesMCC, 1e-9)

	// Overclaim: decision 20, claim 25. Penalty 0.2*5=1.
	c := byModel["c"]
	assert.InDelta(t, 1.0, c.PenaltyMCC, 1e-9)
	assert.InDelta(t, 26.0, c.ChairmanPaysMCC, 1e-9)
	assert.InDelta(t, 19.0, c.BidderReceivesMCC, 1e-9)
}

func TestSettlePaymentConversion(t *testing.T) {
	input := basisInput()
	input.ValueBasisUSD = 0.5

	s := Settle(input)
	byModel := make(map[string]domain.PaymentRecord, 3)
	for _, p := range s.Payments {
		byModel[p.Model] = p
	}

	// Bidder receives MCC points / 100 * basis.
	assert.InDelta(t, 0.27, byModel["a"].PaymentUSD, 1e-9)   // 54% of 0.50
	assert.InDelta(t, 0.1125, byModel["b"].PaymentUSD, 1e-9) // 22.5% of 0.50
	assert.InDelta(t, 0.095, byModel["c"].PaymentUSD, 1e-9)  // 19% of 0.50

	// Chairman pays MCC points / 100 * basis.
	assert.InDelta(t, 0.305, byModel["a"].ChairmanPaymentUSD, 1e-9)  // 61% of 0.50
	assert.InDelta(t, 0.1125, byModel["b"].ChairmanPaymentUSD, 1e-9) // 22.5% of 0.50
	assert.InDelta(t, 0.13, byModel["c"].ChairmanPaymentUSD, 1e-9)   // 26% of 0.50
}

func TestSettleChairmanNet(t *testing.T) {
	s := Settle(basisInput())

	// Chairman pays 61 + 22.5 + 26 = 109.5 points of a 1.00 basis.
	assert.InDelta(t, 1.0-1.095, s.ChairmanNetUSD, 1e-9)
	assert.Less(t, s.ChairmanNetUSD, 0.0, "penalties can push the chairman net negative")
}

func TestSettleBurnOnOverclaim(t *testing.T) {
	// The gap between what the chairman pays and what the bidder receives
	// is burned; neither side gets it.
	s := Settle(domain.SettleInput{
		ValueBasisUSD: 1.0,
		PenaltyRate:   0.2,
		Survivors:     domain.BidderSet{"a"},
		Decisions:     map[string]float64{"a": 50},
		Claims:        []domain.FinalClaim{{Model: "a", CommunicatedMCC: 50, ClaimMCC: 70}},
	})

	p := s.Payments[0]
	// Burn = (claim - decision) + 2*penalty = 20 + 8.
	burn := p.ChairmanPaysMCC - p.BidderReceivesMCC
	assert.InDelta(t, 28.0, burn, 1e-9)
	assert.Greater(t, p.ChairmanPaysMCC, p.ClaimMCC)
	assert.Less(t, p.BidderReceivesMCC, 50.0)
}

func TestSettleExactAgreement(t *testing.T) {
	s := Settle(domain.SettleInput{
		ValueBasisUSD: 2.0,
		PenaltyRate:   0.2,
		Survivors:     domain.BidderSet{"a"},
		Decisions:     map[string]float64{"a": 40},
		Claims:        []domain.FinalClaim{{Model: "a", CommunicatedMCC: 40, ClaimMCC: 40}},
	})

	p := s.Payments[0]
	assert.Zero(t, p.PenaltyMCC)
	assert.InDelta(t, 40.0, p.DecisionMCC, 1e-9)
	assert.InDelta(t, 40.0, p.ChairmanPaysMCC, 1e-9)
	assert.InDelta(t, 40.0, p.BidderReceivesMCC, 1e-9)
	assert.InDelta(t, 0.8, p.PaymentUSD, 1e-9)
	assert.InDelta(t, 0.8, p.ChairmanPaymentUSD, 1e-9)
}

func TestSettleDeterministicOrder(t *testing.T) {
	input := basisInput()
	first := Settle(input)
	second := Settle(input)
	assert.Equal(t, first, second)

	var models []string
	for _, p := range first.Payments {
		models = append(models, p.Model)
	}
	assert.Equal(t, []string{"a", "b", "c"}, models)
}

func TestSettleActivityCoverage(t *testing.T) {
	base := activity.NewBaseActivities(events.NewNoOpEventSink())
	acts := NewActivities(base)

	t.Run("full coverage settles", func(t *testing.T) {
		out, err := acts.Settle(context.Background(), basisInput())
		require.NoError(t, err)
		assert.Len(t, out.Settlement.Payments, 3)
	})

	t.Run("missing claim rejected", func(t *testing.T) {
		input := basisInput()
		input.Claims = input.Claims[:2]
		_, err := acts.Settle(context.Background(), input)
		assert.Error(t, err)
	})

	t.Run("claim from dropped bidder rejected", func(t *testing.T) {
		input := basisInput()
		input.Claims = append(input.Claims, domain.FinalClaim{Model: "ghost", ClaimMCC: 10})
		_, err := acts.Settle(context.Background(), input)
		assert.Error(t, err)
	})

	t.Run("missing decision rejected", func(t *testing.T) {
		input := basisInput()
		delete(input.Decisions, "b")
		_, err := acts.Settle(context.Background(), input)
		assert.Error(t, err)
	})
}
