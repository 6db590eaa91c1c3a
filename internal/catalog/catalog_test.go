package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryCandidates(t *testing.T) {
	r := NewRegistry([]Entry{
		{Model: "b/two", Candidate: true},
		{Model: "a/one", Candidate: true},
		{Model: "c/chairman", Candidate: false},
	})

	assert.Equal(t, []string{"a/one", "b/two"}, r.Candidates(), "deterministic order, non-candidates excluded")
}

func TestRegistryRatesFallback(t *testing.T) {
	r := NewRegistry([]Entry{
		{Model: "a/one", InputCostPerMillion: 1, OutputCostPerMillion: 4, Candidate: true},
	})

	in, out := r.Rates("a/one")
	assert.Equal(t, 1.0, in)
	assert.Equal(t, 4.0, out)

	in, out = r.Rates("never/seen")
	assert.Equal(t, DefaultCostPerMillion, in)
	assert.Equal(t, DefaultCostPerMillion, out)
}

func TestRegistryEstimateCost(t *testing.T) {
	r := NewRegistry([]Entry{
		{Model: "a/one", InputCostPerMillion: 1, OutputCostPerMillion: 4, Candidate: true},
	})

	// 1500 tokens at $4 per million.
	assert.InDelta(t, 0.006, r.EstimateCost("a/one", 1500), 1e-9)
	assert.InDelta(t, 0.015, r.EstimateCost("unknown", 1500), 1e-9)
}

func TestRegistryAddEntry(t *testing.T) {
	r := NewDefaultRegistry()
	before := len(r.Candidates())

	r.AddEntry(Entry{Model: "new/model", InputCostPerMillion: 0.5, OutputCostPerMillion: 2, Candidate: true})
	assert.Len(t, r.Candidates(), before+1)
}
