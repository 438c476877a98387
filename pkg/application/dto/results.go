package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// StepActionResult is the authoritative state after a step action. Steps is
// the whole job; callers never need to refetch.
type StepActionResult struct {
	Action   string
	Step     entities.Step
	Job      entities.Job
	Steps    []entities.Step
	Promoted []string
	Demoted  []string
	Consumed []entities.Reservation
}

// RFQSelection picks one stock item from a needs report. A zero Quantity
// means the suggested order quantity.
type RFQSelection struct {
	StockID  entities.StockID
	Quantity decimal.Decimal
	Notes    string
}

// CreateRFQRequest is the input of an RFQ creation
type CreateRFQRequest struct {
	Selections []RFQSelection
	DueDate    *time.Time
	Notes      string
}

// ImportSummary counts what an importer wrote
type ImportSummary struct {
	Jobs         int
	Steps        int
	Reservations int
	Stock        int
	RFQs         int
	Quotations   int
}
