package repositories

import "context"

// Store groups the repositories behind one backend. Atomic runs fn against
// a transactional view; if fn returns an error nothing it wrote is kept.
type Store interface {
	Jobs() JobRepository
	Steps() StepRepository
	Reservations() ReservationRepository
	Stock() StockRepository
	RFQs() RFQRepository
	Quotations() QuotationRepository
	Atomic(ctx context.Context, fn func(tx Store) error) error
	Close() error
}
