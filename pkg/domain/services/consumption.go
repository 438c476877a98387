package services

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// Consumption is stock used up by a completed step
type Consumption struct {
	StockID  entities.StockID
	Quantity decimal.Decimal
}

// Validate requires a stock item and a positive quantity
func (c Consumption) Validate() error {
	if strings.TrimSpace(string(c.StockID)) == "" {
		return entities.NewValidationError("consumptions.stock_id", "consumption must name a stock item")
	}
	if !c.Quantity.IsPositive() {
		return entities.NewValidationError("consumptions.quantity", "consumed quantity of %s must be positive, got %s", c.StockID, c.Quantity)
	}
	return nil
}

// ApplyConsumptions draws each consumption from the job's open reservations
// for that stock item, earliest planned date first. It returns copies of the
// reservations that changed. Nothing is returned unless every consumption
// fits inside what is still reserved; over-consumption is rejected, never
// clamped.
func ApplyConsumptions(reservations []entities.Reservation, jobID string, consumptions []Consumption) ([]entities.Reservation, error) {
	work := make([]entities.Reservation, 0, len(reservations))
	for _, r := range reservations {
		if r.JobID == jobID && !r.IsCanceled() {
			work = append(work, r)
		}
	}
	sort.SliceStable(work, func(i, j int) bool {
		a, b := work[i].PlannedDate, work[j].PlannedDate
		switch {
		case a == nil && b == nil:
			return work[i].ID < work[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return work[i].ID < work[j].ID
		}
	})

	touched := make(map[string]bool)
	for _, c := range consumptions {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		left := c.Quantity
		for i := range work {
			if left.IsZero() {
				break
			}
			r := &work[i]
			if r.StockID != c.StockID || !r.Remaining().IsPositive() {
				continue
			}
			take := decimal.Min(left, r.Remaining())
			if err := r.Consume(take); err != nil {
				return nil, err
			}
			touched[r.ID] = true
			left = left.Sub(take)
		}
		if left.IsPositive() {
			return nil, entities.NewValidationError("consumptions.quantity",
				"job %s has %s less of %s reserved than consumed", jobID, left, c.StockID)
		}
	}

	var changed []entities.Reservation
	for _, r := range work {
		if touched[r.ID] {
			changed = append(changed, r)
		}
	}
	return changed, nil
}

// CancelReservation cancels a copy of the reservation at now
func CancelReservation(r entities.Reservation, now time.Time) (entities.Reservation, error) {
	if err := r.Cancel(now); err != nil {
		return entities.Reservation{}, err
	}
	return r, nil
}
