package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChairmanEvaluationValidate(t *testing.T) {
	survivors := BidderSet{"a", "b", "c"}

	tests := []struct {
		name    string
		mcc     map[string]float64
		wantErr error
	}{
		{
			name: "sum exactly 100",
			mcc:  map[string]float64{"a": 50, "b": 30, "c": 20},
		},
		{
			name: "sum within tolerance",
			mcc:  map[string]float64{"a": 50.2, "b": 30, "c": 20.2},
		},
		{
			name:    "sum outside tolerance",
			mcc:     map[string]float64{"a": 60, "b": 30, "c": 20},
			wantErr: ErrMCCSumOutOfTolerance,
		},
		{
			name:    "unknown bidder",
			mcc:     map[string]float64{"a": 50, "intruder": 50},
			wantErr: ErrUnknownBidder,
		},
		{
			name:    "negative value",
			mcc:     map[string]float64{"a": 110, "b": -10},
			wantErr: ErrNegativeMCC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := ChairmanEvaluation{
				ChairmanModel:    "google/gemini-2.5-pro",
				AggregatedAnswer: "synthesized",
				MCC:              tt.mcc,
			}
			err := eval.Validate(survivors)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestChairmanEvaluationNormalize(t *testing.T) {
	t.Run("within tolerance is untouched", func(t *testing.T) {
		eval := ChairmanEvaluation{MCC: map[string]float64{"a": 50.3, "b": 49.9}}
		require.NoError(t, eval.Normalize())

		assert.Nil(t, eval.RawMCC)
		assert.Equal(t, 50.3, eval.MCC["a"])
	})

	t.Run("out of tolerance rescales to exactly 100", func(t *testing.T) {
		eval := ChairmanEvaluation{MCC: map[string]float64{"a": 60, "b": 60}}
		require.NoError(t, eval.Normalize())

		assert.InDelta(t, 50, eval.MCC["a"], 1e-9)
		assert.InDelta(t, 50, eval.MCC["b"], 1e-9)
		assert.Equal(t, map[string]float64{"a": 60, "b": 60}, eval.RawMCC)
		assert.InDelta(t, 100, mccSum(eval.MCC), 1e-9)
	})

	t.Run("rescale preserves proportions", func(t *testing.T) {
		eval := ChairmanEvaluation{MCC: map[string]float64{"a": 30, "b": 10}}
		require.NoError(t, eval.Normalize())

		assert.InDelta(t, 75, eval.MCC["a"], 1e-9)
		assert.InDelta(t, 25, eval.MCC["b"], 1e-9)
	})

	t.Run("zero sum cannot be rescaled", func(t *testing.T) {
		eval := ChairmanEvaluation{MCC: map[string]float64{"a": 0, "b": 0}}
		assert.ErrorIs(t, eval.Normalize(), ErrMCCSumOutOfTolerance)
	})
}

func TestChairmanDecisionValidate(t *testing.T) {
	survivors := BidderSet{"a", "b"}

	valid := ChairmanDecision{
		ChairmanModel:  "google/gemini-2.5-pro",
		Decisions:      map[string]float64{"a": 55, "b": 25},
		Communications: map[string]float64{"a": 60, "b": 20},
	}
	require.NoError(t, valid.Validate(survivors))

	t.Run("decisions and communications may diverge", func(t *testing.T) {
		assert.NotEqual(t, valid.Decisions["a"], valid.Communications["a"])
	})

	t.Run("missing decision for a survivor", func(t *testing.T) {
		d := ChairmanDecision{
			ChairmanModel:  "google/gemini-2.5-pro",
			Decisions:      map[string]float64{"a": 55},
			Communications: map[string]float64{"a": 60, "b": 20},
		}
		assert.ErrorIs(t, d.Validate(survivors), ErrUnknownBidder)
	})

	t.Run("decision for dropped bidder", func(t *testing.T) {
		d := ChairmanDecision{
			ChairmanModel:  "google/gemini-2.5-pro",
			Decisions:      map[string]float64{"a": 55, "b": 25, "ghost": 10},
			Communications: map[string]float64{"a": 60, "b": 20},
		}
		assert.ErrorIs(t, d.Validate(survivors), ErrUnknownBidder)
	})
}
