package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizeCurrency upper-cases and trims a currency code
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RateTable converts currencies into one reference currency. Rates[c] is the
// number of reference units per one unit of c.
type RateTable struct {
	Reference string
	Rates     map[string]decimal.Decimal
	AsOf      time.Time
}

// NewRateTable builds a table with normalized currency codes
func NewRateTable(reference string, rates map[string]decimal.Decimal, asOf time.Time) (RateTable, error) {
	ref := NormalizeCurrency(reference)
	if ref == "" {
		return RateTable{}, NewValidationError("reference", "reference currency cannot be empty")
	}
	table := RateTable{Reference: ref, Rates: make(map[string]decimal.Decimal, len(rates)), AsOf: asOf}
	for code, rate := range rates {
		c := NormalizeCurrency(code)
		if c == "" {
			return RateTable{}, NewValidationError("rates", "currency code cannot be empty")
		}
		if !rate.IsPositive() {
			return RateTable{}, NewValidationError("rates", "rate for %s must be positive, got %s", c, rate)
		}
		table.Rates[c] = rate
	}
	return table, nil
}

// Rate returns the conversion rate for a currency. The reference currency is
// always 1. Unknown currencies also return 1 with known=false so the caller
// can warn about the permissive fallback.
func (t RateTable) Rate(currency string) (rate decimal.Decimal, known bool) {
	c := NormalizeCurrency(currency)
	if c == t.Reference {
		return decimal.NewFromInt(1), true
	}
	if r, ok := t.Rates[c]; ok {
		return r, true
	}
	return decimal.NewFromInt(1), false
}
