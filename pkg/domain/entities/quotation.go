package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// QuotationStatus is the state of a supplier quotation. Expired is never
// stored; it is derived at read time from ValidUntil.
type QuotationStatus string

const (
	QuotationPending  QuotationStatus = "pending"
	QuotationAccepted QuotationStatus = "accepted"
	QuotationRejected QuotationStatus = "rejected"
	QuotationExpired  QuotationStatus = "expired"
)

// Quotation is a supplier's priced response to an RFQ. Stored amounts keep
// their original currency.
type Quotation struct {
	ID           string          `gorm:"primaryKey;size:36" yaml:"id" json:"id"`
	RFQID        string          `gorm:"index;size:36;not null" yaml:"rfq_id" json:"rfq_id"`
	SupplierID   string          `gorm:"size:36" yaml:"supplier_id" json:"supplier_id"`
	SupplierName string          `gorm:"size:255" yaml:"supplier_name" json:"supplier_name"`
	Currency     string          `gorm:"size:3;not null" yaml:"currency" json:"currency"`
	Status       QuotationStatus `gorm:"index;size:20;default:'pending'" yaml:"status" json:"status"`
	ValidUntil   *time.Time      `yaml:"valid_until" json:"valid_until,omitempty"`
	WithdrawnAt  *time.Time      `yaml:"withdrawn_at" json:"withdrawn_at,omitempty"`
	DecidedAt    *time.Time      `yaml:"-" json:"decided_at,omitempty"`
	TotalAmount  decimal.Decimal `gorm:"type:numeric;not null" yaml:"-" json:"total_amount"`
	Items        []QuotationItem `gorm:"foreignKey:QuotationID" yaml:"items" json:"items"`
	Version      int             `gorm:"not null;default:1" yaml:"-" json:"version"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" yaml:"-" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" yaml:"-" json:"updated_at"`
}

// QuotationItem is a supplier's price for one RFQ line
type QuotationItem struct {
	ID           string          `gorm:"primaryKey;size:36" yaml:"id" json:"id"`
	QuotationID  string          `gorm:"index;size:36;not null" yaml:"-" json:"quotation_id"`
	RFQItemID    string          `gorm:"index;size:36;not null" yaml:"rfq_item_id" json:"rfq_item_id"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric;not null" yaml:"unit_price" json:"unit_price"`
	Currency     string          `gorm:"size:3" yaml:"currency" json:"currency,omitempty"`
	Quantity     decimal.Decimal `gorm:"type:numeric;not null" yaml:"quantity" json:"quantity"`
	LeadTimeDays int             `gorm:"default:0" yaml:"lead_time_days" json:"lead_time_days"`
}

// TotalPrice is quantity times unit price in the item's own currency
func (i *QuotationItem) TotalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(i.Quantity)
}

// EffectiveCurrency falls back to the quotation currency when the line has none
func (i *QuotationItem) EffectiveCurrency(q *Quotation) string {
	if strings.TrimSpace(i.Currency) == "" {
		return NormalizeCurrency(q.Currency)
	}
	return NormalizeCurrency(i.Currency)
}

// Validate checks the quotation and its lines. Every line must be priced in
// the quotation currency so TotalAmount stays a single-currency sum.
func (q *Quotation) Validate() error {
	if strings.TrimSpace(q.RFQID) == "" {
		return NewValidationError("rfq_id", "quotation must reference an rfq")
	}
	if strings.TrimSpace(q.Currency) == "" {
		return NewValidationError("currency", "quotation %s has no currency", q.ID)
	}
	switch q.Status {
	case "", QuotationPending, QuotationAccepted, QuotationRejected:
	default:
		return NewValidationError("status", "quotation status %q cannot be stored", q.Status)
	}
	currency := NormalizeCurrency(q.Currency)
	for _, item := range q.Items {
		if strings.TrimSpace(item.RFQItemID) == "" {
			return NewValidationError("items.rfq_item_id", "quotation line %s does not reference an rfq line", item.ID)
		}
		if item.UnitPrice.IsNegative() {
			return NewValidationError("items.unit_price", "unit price cannot be negative, got %s", item.UnitPrice)
		}
		if !item.Quantity.IsPositive() {
			return NewValidationError("items.quantity", "quoted quantity must be positive, got %s", item.Quantity)
		}
		if item.LeadTimeDays < 0 {
			return NewValidationError("items.lead_time_days", "lead time cannot be negative, got %d", item.LeadTimeDays)
		}
		if item.EffectiveCurrency(q) != currency {
			return NewValidationError("items.currency", "line %s is priced in %s, quotation is in %s", item.ID, item.Currency, currency)
		}
	}
	return nil
}

// RecalculateTotal sets TotalAmount to the native-currency sum of the lines
func (q *Quotation) RecalculateTotal() {
	total := decimal.Zero
	for i := range q.Items {
		total = total.Add(q.Items[i].TotalPrice())
	}
	q.TotalAmount = total
}

// NativeTotals sums line totals per currency without conversion
func (q *Quotation) NativeTotals() map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for i := range q.Items {
		cur := q.Items[i].EffectiveCurrency(q)
		totals[cur] = totals[cur].Add(q.Items[i].TotalPrice())
	}
	return totals
}

// IsWithdrawn reports whether the supplier withdrew the quotation
func (q *Quotation) IsWithdrawn() bool {
	return q.WithdrawnAt != nil
}

// EffectiveStatus derives expiry at read time: a pending quotation whose
// ValidUntil has passed reads as expired.
func (q *Quotation) EffectiveStatus(now time.Time) QuotationStatus {
	status := q.Status
	if status == "" {
		status = QuotationPending
	}
	if status == QuotationPending && q.ValidUntil != nil && now.After(*q.ValidUntil) {
		return QuotationExpired
	}
	return status
}

// Accept marks a pending quotation accepted. Competing quotations are left
// untouched.
func (q *Quotation) Accept(now time.Time) error {
	return q.decide(QuotationAccepted, "accept", now)
}

// Reject marks a pending quotation rejected
func (q *Quotation) Reject(now time.Time) error {
	return q.decide(QuotationRejected, "reject", now)
}

func (q *Quotation) decide(to QuotationStatus, action string, now time.Time) error {
	if q.IsWithdrawn() {
		return &InvalidStateTransitionError{Entity: "quotation", ID: q.ID, From: "withdrawn", Action: action}
	}
	current := q.EffectiveStatus(now)
	if current != QuotationPending {
		return &InvalidStateTransitionError{Entity: "quotation", ID: q.ID, From: string(current), Action: action}
	}
	q.Status = to
	q.DecidedAt = &now
	return nil
}
