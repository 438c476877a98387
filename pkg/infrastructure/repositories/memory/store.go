package memory

import (
	"context"
	"sync"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
)

type state struct {
	jobs         map[string]entities.Job
	steps        map[string]entities.Step
	reservations map[string]entities.Reservation
	stock        map[entities.StockID]entities.StockSnapshot
	rfqs         map[string]entities.RFQ
	quotations   map[string]entities.Quotation
}

func newState() *state {
	return &state{
		jobs:         make(map[string]entities.Job),
		steps:        make(map[string]entities.Step),
		reservations: make(map[string]entities.Reservation),
		stock:        make(map[entities.StockID]entities.StockSnapshot),
		rfqs:         make(map[string]entities.RFQ),
		quotations:   make(map[string]entities.Quotation),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.jobs {
		c.jobs[k] = v
	}
	for k, v := range s.steps {
		c.steps[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.rfqs {
		c.rfqs[k] = cloneRFQ(v)
	}
	for k, v := range s.quotations {
		c.quotations[k] = cloneQuotation(v)
	}
	return c
}

// Store keeps every repository in process memory. Writes outside Atomic are
// serialized with transactions, so a commit never overwrites them.
type Store struct {
	mu   *sync.RWMutex
	txMu *sync.Mutex
	data *state
	inTx bool
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{mu: &sync.RWMutex{}, txMu: &sync.Mutex{}, data: newState()}
}

// Verify interface compliance
var _ repositories.Store = (*Store)(nil)

func (s *Store) Jobs() repositories.JobRepository                 { return jobRepository{s} }
func (s *Store) Steps() repositories.StepRepository               { return stepRepository{s} }
func (s *Store) Reservations() repositories.ReservationRepository { return reservationRepository{s} }
func (s *Store) Stock() repositories.StockRepository              { return stockRepository{s} }
func (s *Store) RFQs() repositories.RFQRepository                 { return rfqRepository{s} }
func (s *Store) Quotations() repositories.QuotationRepository     { return quotationRepository{s} }

// Close is a no-op
func (s *Store) Close() error { return nil }

// Atomic runs fn against a private copy of the data and publishes the copy
// only when fn succeeds. Transactions run one at a time.
func (s *Store) Atomic(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	tx := &Store{mu: &sync.RWMutex{}, txMu: &sync.Mutex{}, data: work, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

func (s *Store) read(fn func(d *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

func (s *Store) write(fn func(d *state) error) error {
	if !s.inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func cloneRFQ(r entities.RFQ) entities.RFQ {
	r.Items = append([]entities.RFQItem(nil), r.Items...)
	return r
}

func cloneQuotation(q entities.Quotation) entities.Quotation {
	q.Items = append([]entities.QuotationItem(nil), q.Items...)
	return q
}
