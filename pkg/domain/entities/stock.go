package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StockSnapshot is a point-in-time read of one stock item from the ledger
type StockSnapshot struct {
	StockID          StockID         `gorm:"primaryKey;size:36" yaml:"stock_id" json:"stock_id"`
	Code             string          `gorm:"size:50" yaml:"code" json:"code"`
	Name             string          `gorm:"size:255" yaml:"name" json:"name"`
	Unit             string          `gorm:"size:20" yaml:"unit" json:"unit"`
	CurrentQuantity  decimal.Decimal `gorm:"type:numeric;not null" yaml:"current_quantity" json:"current_quantity"`
	ReservedQuantity decimal.Decimal `gorm:"type:numeric;not null" yaml:"reserved_quantity" json:"reserved_quantity"`
	OnOrderQuantity  decimal.Decimal `gorm:"type:numeric;not null" yaml:"on_order_quantity" json:"on_order_quantity"`
	MinStockLevel    decimal.Decimal `gorm:"type:numeric;not null" yaml:"min_stock_level" json:"min_stock_level"`
	AsOf             time.Time       `yaml:"as_of" json:"as_of"`
}

// AvailableQuantity is current minus reserved. It may be negative when the
// item is over-reserved.
func (s *StockSnapshot) AvailableQuantity() decimal.Decimal {
	return s.CurrentQuantity.Sub(s.ReservedQuantity)
}

// HasMinimum reports whether a minimum stock threshold applies. A zero
// minimum means no threshold.
func (s *StockSnapshot) HasMinimum() bool {
	return s.MinStockLevel.IsPositive()
}

// Validate checks the snapshot fields the reconciler relies on
func (s *StockSnapshot) Validate() error {
	if strings.TrimSpace(string(s.StockID)) == "" {
		return NewValidationError("stock_id", "stock id cannot be empty")
	}
	if s.CurrentQuantity.IsNegative() {
		return NewValidationError("current_quantity", "current quantity cannot be negative, got %s", s.CurrentQuantity)
	}
	if s.ReservedQuantity.IsNegative() {
		return NewValidationError("reserved_quantity", "reserved quantity cannot be negative, got %s", s.ReservedQuantity)
	}
	if s.OnOrderQuantity.IsNegative() {
		return NewValidationError("on_order_quantity", "on-order quantity cannot be negative, got %s", s.OnOrderQuantity)
	}
	if s.MinStockLevel.IsNegative() {
		return NewValidationError("min_stock_level", "minimum stock level cannot be negative, got %s", s.MinStockLevel)
	}
	return nil
}
