package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus is derived from used vs reserved quantity plus cancellation
type ReservationStatus string

const (
	ReservationActive        ReservationStatus = "active"
	ReservationPartiallyUsed ReservationStatus = "partially_used"
	ReservationFullyUsed     ReservationStatus = "fully_used"
	ReservationCanceled      ReservationStatus = "canceled"
)

// Reservation sets Quantity units of a stock item aside for a job
type Reservation struct {
	ID           string          `gorm:"primaryKey;size:36" yaml:"id" json:"id"`
	JobID        string          `gorm:"index;size:36;not null" yaml:"job_id" json:"job_id"`
	StockID      StockID         `gorm:"index;size:36;not null" yaml:"stock_id" json:"stock_id"`
	Quantity     decimal.Decimal `gorm:"type:numeric;not null" yaml:"quantity" json:"quantity"`
	UsedQuantity decimal.Decimal `gorm:"type:numeric;not null" yaml:"used_quantity" json:"used_quantity"`
	PlannedDate  *time.Time      `yaml:"planned_date" json:"planned_date,omitempty"`
	CanceledAt   *time.Time      `yaml:"canceled_at" json:"canceled_at,omitempty"`
	Version      int             `gorm:"not null;default:1" yaml:"-" json:"version"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" yaml:"-" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" yaml:"-" json:"updated_at"`
}

// NewReservation creates a validated Reservation
func NewReservation(id, jobID string, stockID StockID, quantity, used decimal.Decimal, plannedDate *time.Time) (*Reservation, error) {
	r := &Reservation{
		ID:           id,
		JobID:        jobID,
		StockID:      stockID,
		Quantity:     quantity,
		UsedQuantity: used,
		PlannedDate:  plannedDate,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate enforces 0 <= used_quantity <= quantity. Violations are rejected,
// never clamped.
func (r *Reservation) Validate() error {
	if strings.TrimSpace(r.JobID) == "" {
		return NewValidationError("job_id", "reservation must reference a job")
	}
	if strings.TrimSpace(string(r.StockID)) == "" {
		return NewValidationError("stock_id", "reservation must reference a stock item")
	}
	if !r.Quantity.IsPositive() {
		return NewValidationError("quantity", "reserved quantity must be positive, got %s", r.Quantity)
	}
	if r.UsedQuantity.IsNegative() {
		return NewValidationError("used_quantity", "used quantity cannot be negative, got %s", r.UsedQuantity)
	}
	if r.UsedQuantity.GreaterThan(r.Quantity) {
		return NewValidationError("used_quantity", "used quantity %s exceeds reserved quantity %s", r.UsedQuantity, r.Quantity)
	}
	return nil
}

// IsCanceled reports whether the reservation was manually canceled
func (r *Reservation) IsCanceled() bool {
	return r.CanceledAt != nil
}

// Status derives the reservation status from the used/reserved pair
func (r *Reservation) Status() ReservationStatus {
	switch {
	case r.IsCanceled():
		return ReservationCanceled
	case r.UsedQuantity.IsZero():
		return ReservationActive
	case r.UsedQuantity.LessThan(r.Quantity):
		return ReservationPartiallyUsed
	default:
		return ReservationFullyUsed
	}
}

// Remaining is the reserved quantity not yet consumed
func (r *Reservation) Remaining() decimal.Decimal {
	return r.Quantity.Sub(r.UsedQuantity)
}

// Consume records usage of qty units. It fails without mutating the
// reservation if qty is not positive or would push usage past the reserved quantity.
func (r *Reservation) Consume(qty decimal.Decimal) error {
	if r.IsCanceled() {
		return &InvalidStateTransitionError{Entity: "reservation", ID: r.ID, From: string(ReservationCanceled), Action: "consume"}
	}
	if !qty.IsPositive() {
		return NewValidationError("quantity", "consumed quantity must be positive, got %s", qty)
	}
	next := r.UsedQuantity.Add(qty)
	if next.GreaterThan(r.Quantity) {
		return NewValidationError("quantity", "consuming %s would exceed remaining %s on reservation %s", qty, r.Remaining(), r.ID)
	}
	r.UsedQuantity = next
	return nil
}

// Cancel releases the reservation. Fully used reservations cannot be canceled.
func (r *Reservation) Cancel(now time.Time) error {
	status := r.Status()
	if status == ReservationCanceled || status == ReservationFullyUsed {
		return &InvalidStateTransitionError{Entity: "reservation", ID: r.ID, From: string(status), Action: "cancel"}
	}
	r.CanceledAt = &now
	return nil
}
