package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBidders(t *testing.T) {
	tests := []struct {
		name        string
		quotes      []Quote
		k           int
		wantBidders BidderSet
	}{
		{
			name: "selects k cheapest",
			quotes: []Quote{
				{Model: "a", EstimatedCostUSD: 0.30},
				{Model: "b", EstimatedCostUSD: 0.10},
				{Model: "c", EstimatedCostUSD: 0.20},
				{Model: "d", EstimatedCostUSD: 0.40},
			},
			k:           3,
			wantBidders: BidderSet{"b", "c", "a"},
		},
		{
			name: "tie breaks by arrival order",
			quotes: []Quote{
				{Model: "late", EstimatedCostUSD: 0.10},
				{Model: "later", EstimatedCostUSD: 0.10},
				{Model: "cheap", EstimatedCostUSD: 0.05},
			},
			k:           2,
			wantBidders: BidderSet{"cheap", "late"},
		},
		{
			name: "fewer quotes than k selects all",
			quotes: []Quote{
				{Model: "only", EstimatedCostUSD: 0.50},
			},
			k:           3,
			wantBidders: BidderSet{"only"},
		},
		{
			name: "non-positive k falls back to default size",
			quotes: []Quote{
				{Model: "a", EstimatedCostUSD: 0.10},
				{Model: "b", EstimatedCostUSD: 0.20},
				{Model: "c", EstimatedCostUSD: 0.30},
				{Model: "d", EstimatedCostUSD: 0.40},
			},
			k:           0,
			wantBidders: BidderSet{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, bidders := SelectBidders(tt.quotes, tt.k)
			assert.Equal(t, tt.wantBidders, bidders)

			selected := 0
			for _, q := range ranked {
				if q.Selected {
					selected++
					assert.True(t, bidders.Contains(q.Model))
				}
			}
			assert.Equal(t, len(tt.wantBidders), selected)
		})
	}
}

func TestSelectBiddersDoesNotMutateInput(t *testing.T) {
	quotes := []Quote{
		{Model: "a", EstimatedCostUSD: 0.30},
		{Model: "b", EstimatedCostUSD: 0.10},
	}
	_, _ = SelectBidders(quotes, 1)

	assert.Equal(t, "a", quotes[0].Model)
	assert.False(t, quotes[0].Selected)
	assert.False(t, quotes[1].Selected)
}

func TestSelectedValueBasis(t *testing.T) {
	quotes := []Quote{
		{Model: "a", EstimatedCostUSD: 0.10, Selected: true},
		{Model: "b", EstimatedCostUSD: 0.25, Selected: true},
		{Model: "c", EstimatedCostUSD: 0.99, Selected: false},
	}
	assert.InDelta(t, 0.35, SelectedValueBasis(quotes), 1e-9)
}

func TestBidderSetWithout(t *testing.T) {
	set := BidderSet{"a", "b", "c"}
	got := set.Without("b")

	assert.Equal(t, BidderSet{"a", "c"}, got)
	assert.Equal(t, BidderSet{"a", "b", "c"}, set, "original set must not change")
}

func TestQuoteValidate(t *testing.T) {
	q := Quote{
		Model:                "openai/gpt-4o",
		QuotedTokens:         1500,
		InputCostPerMillion:  2.5,
		OutputCostPerMillion: 10,
		EstimatedCostUSD:     0.015,
	}
	require.NoError(t, q.Validate())

	q.QuotedTokens = 0
	assert.Error(t, q.Validate())
}
