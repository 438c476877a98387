package entities

import (
	"github.com/shopspring/decimal"
)

// StockID identifies a stock item in the ledger
type StockID string

// MaxZero floors q at zero
func MaxZero(q decimal.Decimal) decimal.Decimal {
	if q.IsNegative() {
		return decimal.Zero
	}
	return q
}
