package domain

import "github.com/go-playground/validator/v10"

// validate is the package-level validator shared by all Validate methods.
// A single instance caches struct metadata across calls.
var validate = validator.New(validator.WithRequiredStructEnabled())

// cloneFloatMap copies a model→value mapping. Used wherever a caller must
// preserve pre-mutation values, such as RawMCC audit snapshots.
func cloneFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
