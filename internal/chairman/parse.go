package chairman

import (
	"encoding/json"
	"fmt"

	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/internal/llm"
)

// aggregateSchema is the JSON shape the chairman answers the aggregation
// prompt with.
type aggregateSchema struct {
	AggregatedAnswer string             `json:"aggregated_answer"`
	MCC              map[string]float64 `json:"mcc"`
}

// decisionSchema is the JSON shape the chairman answers the finalize
// prompt with.
type decisionSchema struct {
	Decisions      map[string]float64 `json:"decisions"`
	Communications map[string]float64 `json:"communications"`
}

// decodeOnce unmarshals chairman output, allowing exactly one repair pass
// over common JSON damage. Anything still malformed after repair is fatal.
func decodeOnce(content string, v any) error {
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	repaired := llm.RepairJSON(content)
	if repaired == content {
		return fmt.Errorf("%w: output is not JSON and no repair applied", domain.ErrMalformedChairmanOutput)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedChairmanOutput, err)
	}
	return nil
}

// parseAggregate decodes and checks the aggregation reply. Every surviving
// bidder must appear in the MCC mapping; a chairman that skips a seat has
// produced unusable output.
func parseAggregate(content string, survivors domain.BidderSet) (*aggregateSchema, error) {
	var parsed aggregateSchema
	if err := decodeOnce(content, &parsed); err != nil {
		return nil, err
	}
	if parsed.AggregatedAnswer == "" {
		return nil, fmt.Errorf("%w: missing aggregated_answer", domain.ErrMalformedChairmanOutput)
	}
	for _, model := range survivors {
		if _, ok := parsed.MCC[model]; !ok {
			return nil, fmt.Errorf("%w: no MCC for bidder %q", domain.ErrMalformedChairmanOutput, model)
		}
	}
	return &parsed, nil
}

// parseDecision decodes and checks the finalize reply. Both mappings must
// cover every surviving bidder.
func parseDecision(content string, survivors domain.BidderSet) (*decisionSchema, error) {
	var parsed decisionSchema
	if err := decodeOnce(content, &parsed); err != nil {
		return nil, err
	}
	for _, model := range survivors {
		if _, ok := parsed.Decisions[model]; !ok {
			return nil, fmt.Errorf("%w: no decision for bidder %q", domain.ErrMalformedChairmanOutput, model)
		}
		if _, ok := parsed.Communications[model]; !ok {
			return nil, fmt.Errorf("%w: no communication for bidder %q", domain.ErrMalformedChairmanOutput, model)
		}
	}
	return &parsed, nil
}
