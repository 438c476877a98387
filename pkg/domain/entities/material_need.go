package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// IssueType classifies why a stock item appears in the needs report
type IssueType string

const (
	IssueBoth       IssueType = "both"
	IssueProject    IssueType = "project"
	IssueStockLevel IssueType = "stock_level"
)

// Rank orders buckets from most to least urgent
func (t IssueType) Rank() int {
	switch t {
	case IssueBoth:
		return 0
	case IssueProject:
		return 1
	case IssueStockLevel:
		return 2
	default:
		return 3
	}
}

// NeedsFilter selects which needs a report keeps
type NeedsFilter string

const (
	FilterAll             NeedsFilter = "all"
	FilterProjectShortage NeedsFilter = "project_shortage"
	FilterCriticalStock   NeedsFilter = "critical_stock"
)

// ParseNeedsFilter validates a filter name; the empty string means all
func ParseNeedsFilter(s string) (NeedsFilter, error) {
	switch NeedsFilter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterProjectShortage, FilterCriticalStock:
		return NeedsFilter(s), nil
	}
	return "", NewValidationError("filter", "unknown needs filter %q", s)
}

// Keeps reports whether the filter admits a need
func (f NeedsFilter) Keeps(need *MaterialNeed) bool {
	switch f {
	case FilterProjectShortage:
		return need.ProjectShortage.IsPositive()
	case FilterCriticalStock:
		return need.BelowMinimum.IsPositive()
	default:
		return true
	}
}

// MaterialNeed is the reconciled supply/demand position of one stock item.
// It is recomputed on demand and never stored.
type MaterialNeed struct {
	StockID                StockID         `json:"stock_id"`
	StockCode              string          `json:"stock_code"`
	StockName              string          `json:"stock_name"`
	Unit                   string          `json:"unit"`
	TotalNeed              decimal.Decimal `json:"total_need"`
	TotalRemainingNeed     decimal.Decimal `json:"total_remaining_need"`
	CurrentQuantity        decimal.Decimal `json:"current_quantity"`
	ReservedQuantity       decimal.Decimal `json:"reserved_quantity"`
	AvailableQuantity      decimal.Decimal `json:"available_quantity"`
	OnOrderQuantity        decimal.Decimal `json:"on_order_quantity"`
	MinStockLevel          decimal.Decimal `json:"min_stock_level"`
	ProjectShortage        decimal.Decimal `json:"project_shortage"`
	BelowMinimum           decimal.Decimal `json:"below_minimum"`
	Shortage               decimal.Decimal `json:"shortage"`
	IssueType              IssueType       `json:"issue_type"`
	SuggestedOrderQuantity decimal.Decimal `json:"suggested_order_quantity"`
	ReservationCount       int             `json:"reservation_count"`
	JobCount               int             `json:"job_count"`
	EarliestPlannedDate    *time.Time      `json:"earliest_planned_date,omitempty"`
	AsOf                   time.Time       `json:"as_of"`
}

// ItemFailure isolates a reconciliation error to one stock item
type ItemFailure struct {
	StockID StockID `json:"stock_id"`
	Reason  string  `json:"reason"`
	Err     error   `json:"-"`
}

// NeedsReport is the grouped and ordered shortage list
type NeedsReport struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Filter      NeedsFilter            `json:"filter"`
	Needs       []MaterialNeed         `json:"needs"`
	Warnings    []StaleSnapshotWarning `json:"warnings,omitempty"`
	Failures    []ItemFailure          `json:"failures,omitempty"`
}

// Bucket returns the needs of one issue type in report order
func (r *NeedsReport) Bucket(issue IssueType) []MaterialNeed {
	var out []MaterialNeed
	for _, need := range r.Needs {
		if need.IssueType == issue {
			out = append(out, need)
		}
	}
	return out
}

// Counts returns the number of needs per issue type
func (r *NeedsReport) Counts() map[IssueType]int {
	counts := make(map[IssueType]int, 3)
	for _, need := range r.Needs {
		counts[need.IssueType]++
	}
	return counts
}

// Find returns the need for a stock item, if reported
func (r *NeedsReport) Find(stockID StockID) (*MaterialNeed, bool) {
	for i := range r.Needs {
		if r.Needs[i].StockID == stockID {
			return &r.Needs[i], true
		}
	}
	return nil, false
}
