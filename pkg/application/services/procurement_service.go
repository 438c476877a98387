package services

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vsinha/shopfloor/pkg/application/dto"
	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
	domain "github.com/vsinha/shopfloor/pkg/domain/services"
	"github.com/vsinha/shopfloor/pkg/infrastructure/events"
	"github.com/vsinha/shopfloor/pkg/infrastructure/logging"
)

// ProcurementConfig holds tuning for needs, RFQs and comparisons
type ProcurementConfig struct {
	RFQPrefix  string
	Reconciler domain.ReconcilerConfig
	Comparator domain.ComparatorConfig
}

// ProcurementService turns shortages into RFQs and supplier quotations into
// purchasing decisions.
type ProcurementService struct {
	store      repositories.Store
	publisher  events.Publisher
	config     ProcurementConfig
	reconciler *domain.Reconciler
	comparator *domain.QuotationComparator
	logger     *zap.SugaredLogger
}

// NewProcurementService wires a procurement service. publisher may be nil.
func NewProcurementService(
	store repositories.Store,
	publisher events.Publisher,
	config ProcurementConfig,
	logger *zap.SugaredLogger,
) *ProcurementService {
	if strings.TrimSpace(config.RFQPrefix) == "" {
		config.RFQPrefix = "RFQ"
	}
	return &ProcurementService{
		store:      store,
		publisher:  publisher,
		config:     config,
		reconciler: domain.NewReconciler(config.Reconciler, logging.Component(logger, "reconciler")),
		comparator: domain.NewQuotationComparator(config.Comparator, logging.Component(logger, "comparator")),
		logger:     logging.Component(logger, "procurement"),
	}
}

// NeedsReport reconciles the stored reservations against the stored stock
// snapshots and publishes a shortage event per reported need.
func (s *ProcurementService) NeedsReport(ctx context.Context, filter entities.NeedsFilter, now time.Time) (*entities.NeedsReport, error) {
	report, err := s.needs(ctx, s.store, filter, now)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("needs report built",
		"filter", report.Filter,
		logging.FieldCount, len(report.Needs),
		"failures", len(report.Failures),
		"stale", len(report.Warnings),
	)
	if s.publisher != nil {
		for _, need := range report.Needs {
			e := events.NewShortageIdentifiedEvent(need, now)
			if err := s.publisher.AppendEvent(e.StreamID(), e); err != nil {
				s.logger.Warnw("event not recorded", logging.FieldEvent, e.Type(), logging.FieldError, err)
			}
		}
	}
	return report, nil
}

func (s *ProcurementService) needs(ctx context.Context, store repositories.Store, filter entities.NeedsFilter, now time.Time) (*entities.NeedsReport, error) {
	reservations, err := store.Reservations().ListReservations(ctx)
	if err != nil {
		return nil, err
	}
	stock, err := store.Stock().ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	return s.reconciler.Reconcile(reservations, stock, filter, now), nil
}

// CreateRFQ builds an RFQ from selected needs. Every selection must name a
// stock item that is short right now; a zero quantity takes the suggested
// order quantity. The number is <prefix>-<year>-<sequence>.
func (s *ProcurementService) CreateRFQ(ctx context.Context, req dto.CreateRFQRequest, now time.Time) (*entities.RFQ, error) {
	if len(req.Selections) == 0 {
		return nil, entities.NewValidationError("selections", "select at least one stock item")
	}

	var rfq *entities.RFQ
	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		report, err := s.needs(ctx, tx, entities.FilterAll, now)
		if err != nil {
			return err
		}

		id := uuid.NewString()
		items := make([]entities.RFQItem, 0, len(req.Selections))
		for _, sel := range req.Selections {
			need, ok := report.Find(sel.StockID)
			if !ok {
				return entities.NewValidationError("selections.stock_id", "stock item %s has no open need", sel.StockID)
			}
			qty := sel.Quantity
			if qty.IsNegative() {
				return entities.NewValidationError("selections.quantity", "quantity for %s cannot be negative, got %s", sel.StockID, qty)
			}
			if qty.IsZero() {
				qty = need.SuggestedOrderQuantity
			}
			if !qty.IsPositive() {
				return entities.NewValidationError("selections.quantity",
					"nothing to order for %s: shortage is covered by %s on order", sel.StockID, need.OnOrderQuantity)
			}
			items = append(items, entities.RFQItem{
				ID:       uuid.NewString(),
				RFQID:    id,
				StockID:  sel.StockID,
				Quantity: qty,
				Notes:    sel.Notes,
			})
		}

		seq, err := tx.RFQs().NextRFQSequence(ctx, s.config.RFQPrefix, now.Year())
		if err != nil {
			return err
		}
		rfq = &entities.RFQ{
			ID:       id,
			Number:   entities.FormatRFQNumber(s.config.RFQPrefix, now.Year(), seq),
			Status:   entities.RFQOpen,
			IssuedAt: now,
			DueDate:  req.DueDate,
			Notes:    req.Notes,
			Items:    items,
		}
		return tx.RFQs().CreateRFQ(ctx, rfq)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("rfq created", logging.FieldRFQID, rfq.ID, "number", rfq.Number, "lines", len(rfq.Items))
	s.emit(events.NewRFQCreatedEvent(*rfq, now))
	return rfq, nil
}

// AddQuotation records a supplier quotation against an RFQ. Missing ids are
// generated; every line must point at a line of that RFQ.
func (s *ProcurementService) AddQuotation(ctx context.Context, q *entities.Quotation) error {
	return s.store.Atomic(ctx, func(tx repositories.Store) error {
		if err := bindQuotation(ctx, tx, q); err != nil {
			return err
		}
		return tx.Quotations().CreateQuotation(ctx, q)
	})
}

// bindQuotation resolves the RFQ (by id or number), fills missing ids and
// checks that every line belongs to the RFQ.
func bindQuotation(ctx context.Context, tx repositories.Store, q *entities.Quotation) error {
	rfq, err := tx.RFQs().GetRFQ(ctx, q.RFQID)
	if err != nil {
		return err
	}
	q.RFQID = rfq.ID
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	lines := make(map[string]bool, len(rfq.Items))
	for _, item := range rfq.Items {
		lines[item.ID] = true
	}
	for i := range q.Items {
		item := &q.Items[i]
		if !lines[item.RFQItemID] {
			return entities.NewValidationError("items.rfq_item_id", "rfq %s has no line %s", rfq.Number, item.RFQItemID)
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.QuotationID = q.ID
	}
	return q.Validate()
}

// Compare normalizes every quotation of an RFQ into the rate table's
// reference currency.
func (s *ProcurementService) Compare(ctx context.Context, rfqIDOrNumber string, rates entities.RateTable, now time.Time) (*entities.ComparisonReport, error) {
	rfq, err := s.store.RFQs().GetRFQ(ctx, rfqIDOrNumber)
	if err != nil {
		return nil, err
	}
	quotations, err := s.store.Quotations().ListQuotationsByRFQ(ctx, rfq.ID)
	if err != nil {
		return nil, err
	}
	report, err := s.comparator.Compare(*rfq, quotations, rates, now)
	if err != nil {
		return nil, errors.Wrapf(err, "compare rfq %s", rfq.Number)
	}
	return report, nil
}

// AcceptQuotation marks a pending quotation accepted
func (s *ProcurementService) AcceptQuotation(ctx context.Context, quotationID string, now time.Time) (*entities.Quotation, error) {
	return s.decide(ctx, quotationID, now, (*entities.Quotation).Accept)
}

// RejectQuotation marks a pending quotation rejected
func (s *ProcurementService) RejectQuotation(ctx context.Context, quotationID string, now time.Time) (*entities.Quotation, error) {
	return s.decide(ctx, quotationID, now, (*entities.Quotation).Reject)
}

func (s *ProcurementService) decide(
	ctx context.Context,
	quotationID string,
	now time.Time,
	decide func(*entities.Quotation, time.Time) error,
) (*entities.Quotation, error) {
	var q *entities.Quotation
	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		var err error
		q, err = tx.Quotations().GetQuotation(ctx, quotationID)
		if err != nil {
			return err
		}
		if err := decide(q, now); err != nil {
			return err
		}
		return tx.Quotations().SaveQuotation(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("quotation decided", logging.FieldQuotationID, q.ID, logging.FieldRFQID, q.RFQID, "status", q.Status)
	s.emit(events.NewQuotationDecidedEvent(*q, now))
	return q, nil
}

func (s *ProcurementService) emit(e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.AppendEvent(e.StreamID(), e); err != nil {
		s.logger.Warnw("event not recorded", logging.FieldEvent, e.Type(), logging.FieldError, err)
	}
}
