package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineOffer is one quotation's price for one RFQ line, in native and
// reference currency
type LineOffer struct {
	QuotationID         string          `json:"quotation_id"`
	SupplierName        string          `json:"supplier_name"`
	Currency            string          `json:"currency"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	Quantity            decimal.Decimal `json:"quantity"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	NormalizedUnitPrice decimal.Decimal `json:"normalized_unit_price"`
	NormalizedTotal     decimal.Decimal `json:"normalized_total"`
	LeadTimeDays        int             `json:"lead_time_days"`
	Excluded            bool            `json:"excluded"`
	Best                bool            `json:"best"`
}

// LineComparison gathers every offer for one RFQ line
type LineComparison struct {
	RFQItemID         string           `json:"rfq_item_id"`
	StockID           StockID          `json:"stock_id"`
	RequestedQuantity decimal.Decimal  `json:"requested_quantity"`
	Offers            []LineOffer      `json:"offers"`
	BestPrice         *decimal.Decimal `json:"best_price,omitempty"`
	BestQuotationIDs  []string         `json:"best_quotation_ids,omitempty"`
}

// QuotationSummary is one quotation's totals across the RFQ
type QuotationSummary struct {
	QuotationID     string                     `json:"quotation_id"`
	SupplierName    string                     `json:"supplier_name"`
	Currency        string                     `json:"currency"`
	Status          QuotationStatus            `json:"status"`
	NativeTotals    map[string]decimal.Decimal `json:"native_totals"`
	NormalizedTotal decimal.Decimal            `json:"normalized_total"`
	LinesQuoted     int                        `json:"lines_quoted"`
	LinesRequested  int                        `json:"lines_requested"`
	MinLeadTimeDays int                        `json:"min_lead_time_days"`
	MaxLeadTimeDays int                        `json:"max_lead_time_days"`
	Excluded        bool                       `json:"excluded"`
	Best            bool                       `json:"best"`
}

// ComparisonReport is the per-line and per-quotation comparison of every
// response to one RFQ, normalized to the reference currency
type ComparisonReport struct {
	RFQID             string                `json:"rfq_id"`
	RFQNumber         string                `json:"rfq_number"`
	ReferenceCurrency string                `json:"reference_currency"`
	GeneratedAt       time.Time             `json:"generated_at"`
	Lines             []LineComparison      `json:"lines"`
	Quotations        []QuotationSummary    `json:"quotations"`
	BestQuotationIDs  []string              `json:"best_quotation_ids,omitempty"`
	BestTotal         *decimal.Decimal      `json:"best_total,omitempty"`
	UnknownCurrencies []string              `json:"unknown_currencies,omitempty"`
	Warnings          []string              `json:"warnings,omitempty"`
	StaleRates        *StaleSnapshotWarning `json:"stale_rates,omitempty"`
}

// IsBest reports whether a quotation is flagged best overall
func (r *ComparisonReport) IsBest(quotationID string) bool {
	for _, id := range r.BestQuotationIDs {
		if id == quotationID {
			return true
		}
	}
	return false
}

// Line returns the comparison for an RFQ line
func (r *ComparisonReport) Line(rfqItemID string) (*LineComparison, bool) {
	for i := range r.Lines {
		if r.Lines[i].RFQItemID == rfqItemID {
			return &r.Lines[i], true
		}
	}
	return nil, false
}

// Summary returns the totals for one quotation
func (r *ComparisonReport) Summary(quotationID string) (*QuotationSummary, bool) {
	for i := range r.Quotations {
		if r.Quotations[i].QuotationID == quotationID {
			return &r.Quotations[i], true
		}
	}
	return nil, false
}
