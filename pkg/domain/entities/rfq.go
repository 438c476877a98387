package entities

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RFQStatus is the state of a request for quotation
type RFQStatus string

const (
	RFQOpen   RFQStatus = "open"
	RFQClosed RFQStatus = "closed"
)

// RFQ is a request for quotation sent to suppliers against a shortage list
type RFQ struct {
	ID        string     `gorm:"primaryKey;size:36" yaml:"id" json:"id"`
	Number    string     `gorm:"uniqueIndex;size:50;not null" yaml:"number" json:"number"`
	Status    RFQStatus  `gorm:"size:20;default:'open'" yaml:"status" json:"status"`
	IssuedAt  time.Time  `gorm:"index" yaml:"issued_at" json:"issued_at"`
	DueDate   *time.Time `yaml:"due_date" json:"due_date,omitempty"`
	Notes     string     `gorm:"type:text" yaml:"notes" json:"notes,omitempty"`
	Items     []RFQItem  `gorm:"foreignKey:RFQID" yaml:"items" json:"items"`
	CreatedAt time.Time  `gorm:"autoCreateTime" yaml:"-" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" yaml:"-" json:"updated_at"`
}

// TableName keeps the acronym readable in the schema
func (RFQ) TableName() string {
	return "rfqs"
}

// RFQItem is one requested line: a stock item and a quantity
type RFQItem struct {
	ID       string          `gorm:"primaryKey;size:36" yaml:"id" json:"id"`
	RFQID    string          `gorm:"index;size:36;not null" yaml:"-" json:"rfq_id"`
	StockID  StockID         `gorm:"size:36;not null" yaml:"stock_id" json:"stock_id"`
	Quantity decimal.Decimal `gorm:"type:numeric;not null" yaml:"quantity" json:"quantity"`
	Notes    string          `gorm:"type:text" yaml:"notes" json:"notes,omitempty"`
}

// TableName keeps the acronym readable in the schema
func (RFQItem) TableName() string {
	return "rfq_items"
}

// Validate checks the RFQ and each of its lines
func (r *RFQ) Validate() error {
	if strings.TrimSpace(r.Number) == "" {
		return NewValidationError("number", "rfq number cannot be empty")
	}
	if len(r.Items) == 0 {
		return NewValidationError("items", "rfq %s has no lines", r.Number)
	}
	seen := make(map[StockID]bool, len(r.Items))
	for _, item := range r.Items {
		if strings.TrimSpace(string(item.StockID)) == "" {
			return NewValidationError("items.stock_id", "rfq line %s has no stock item", item.ID)
		}
		if !item.Quantity.IsPositive() {
			return NewValidationError("items.quantity", "requested quantity for %s must be positive, got %s", item.StockID, item.Quantity)
		}
		if seen[item.StockID] {
			return NewValidationError("items.stock_id", "stock item %s requested twice", item.StockID)
		}
		seen[item.StockID] = true
	}
	return nil
}

// FormatRFQNumber renders <prefix>-<YYYY>-<NNNN>
func FormatRFQNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s%04d", RFQNumberStem(prefix, year), seq)
}

// RFQNumberStem is the part of an RFQ number shared by one prefix and year,
// e.g. "RFQ-2025-".
func RFQNumberStem(prefix string, year int) string {
	return fmt.Sprintf("%s-%04d-", prefix, year)
}

// RFQSequence extracts the sequence of number when it starts with stem, so
// RFQSequence("RFQ-2025-0007", "RFQ-2025-") is 7. Numbers outside the stem,
// or with a non-numeric tail, give 0.
func RFQSequence(number, stem string) int {
	if !strings.HasPrefix(number, stem) {
		return 0
	}
	seq, err := strconv.Atoi(number[len(stem):])
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}
