package domain

import "github.com/shopspring/decimal"

// Percentages and USD amounts stay full-precision float64 internally; the
// only rounding in the system happens here, at presentation boundaries
// (stage events and API payloads).
const (
	percentDisplayPlaces = 1
	usdDisplayPlaces     = 4
)

// RoundPercent rounds an MCC percentage to one decimal place for display.
func RoundPercent(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(percentDisplayPlaces).Float64()
	return f
}

// RoundUSD rounds a currency amount to four decimal places for display.
// Council payments are fractions of a cent, so two places would erase them.
func RoundUSD(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(usdDisplayPlaces).Float64()
	return f
}
