// Package catalog maintains the model registry the auction prices quotes
// against. Each entry carries OpenRouter rates in USD per million tokens;
// unknown models fall back to a conservative default rate so a stale
// catalog degrades pricing accuracy, never availability.
package catalog

import (
	"sort"
	"sync"

	"github.com/ahrav/go-council/internal/domain"
)

// DefaultCostPerMillion prices models missing from the catalog, in USD.
const DefaultCostPerMillion = 10.0

// Entry is one priced model in the registry.
type Entry struct {
	// Model is the OpenRouter identifier.
	Model string `json:"model"`

	// InputCostPerMillion and OutputCostPerMillion are USD rates.
	InputCostPerMillion  float64 `json:"input_cost_per_million"`
	OutputCostPerMillion float64 `json:"output_cost_per_million"`

	// Candidate marks the model as eligible for auction participation.
	// Non-candidate entries (the chairman, the title model) are priced
	// but never invited to bid.
	Candidate bool `json:"candidate"`
}

// Catalog answers model pricing and candidacy questions.
type Catalog interface {
	// Candidates lists the models invited to every auction, in a stable
	// order that defines quote arrival tie-breaking.
	Candidates() []string

	// Rates returns the USD-per-million rates for a model, falling back
	// to DefaultCostPerMillion for unknown models.
	Rates(model string) (inputPerMillion, outputPerMillion float64)

	// EstimateCost prices a quoted output token count for a model.
	EstimateCost(model string, quotedTokens int64) float64
}

// Registry is the in-memory Catalog. Safe for concurrent use; entries may
// be added at runtime as new models appear on OpenRouter.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates a registry with the given entries.
func NewRegistry(entries []Entry) *Registry {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		r.entries[e.Model] = e
	}
	return r
}

// NewDefaultRegistry creates a registry seeded with the stock council
// lineup: four bidding frontier models plus the chairman.
func NewDefaultRegistry() *Registry {
	return NewRegistry([]Entry{
		{Model: "openai/gpt-5.1", InputCostPerMillion: 1.25, OutputCostPerMillion: 10, Candidate: true},
		{Model: "google/gemini-3-pro-preview", InputCostPerMillion: 2, OutputCostPerMillion: 12, Candidate: true},
		{Model: "anthropic/claude-sonnet-4.5", InputCostPerMillion: 3, OutputCostPerMillion: 15, Candidate: true},
		{Model: "x-ai/grok-4", InputCostPerMillion: 3, OutputCostPerMillion: 15, Candidate: true},
	})
}

// AddEntry inserts or replaces an entry.
func (r *Registry) AddEntry(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.Model] = e
}

// Candidates implements Catalog. Order is lexicographic so tie-breaking
// stays deterministic across processes.
func (r *Registry) Candidates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.entries))
	for model, e := range r.entries {
		if e.Candidate {
			models = append(models, model)
		}
	}
	sort.Strings(models)
	return models
}

// Rates implements Catalog.
func (r *Registry) Rates(model string) (float64, float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[model]; ok {
		return e.InputCostPerMillion, e.OutputCostPerMillion
	}
	return DefaultCostPerMillion, DefaultCostPerMillion
}

// EstimateCost implements Catalog. Quotes are priced on output tokens only;
// prompt-side cost is negligible at quote granularity and identical across
// bidders answering the same query.
func (r *Registry) EstimateCost(model string, quotedTokens int64) float64 {
	_, output := r.Rates(model)
	return float64(quotedTokens) / domain.TokensPerMillion * output
}
