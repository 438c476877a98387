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
	"github.com/vsinha/shopfloor/pkg/infrastructure/logging"
	"github.com/vsinha/shopfloor/pkg/infrastructure/repositories/scenario"
)

// ImportService writes scenario files and CSV exports into the store. Every
// import is one transaction: a bad record leaves the store untouched.
type ImportService struct {
	store     repositories.Store
	rfqPrefix string
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewImportService wires an importer. rfqPrefix numbers RFQs that arrive
// without a number.
func NewImportService(store repositories.Store, rfqPrefix string, logger *zap.SugaredLogger) *ImportService {
	if strings.TrimSpace(rfqPrefix) == "" {
		rfqPrefix = "RFQ"
	}
	return &ImportService{
		store:     store,
		rfqPrefix: rfqPrefix,
		logger:    logging.Component(logger, "import"),
		now:       time.Now,
	}
}

// WithClock replaces the time source
func (s *ImportService) WithClock(now func() time.Time) *ImportService {
	s.now = now
	return s
}

// ImportScenario creates everything in doc. Jobs and steps are created
// before reservations, RFQs before quotations. Step readiness is
// normalized per job after its steps are stored.
func (s *ImportService) ImportScenario(ctx context.Context, doc *scenario.Document) (*dto.ImportSummary, error) {
	summary := &dto.ImportSummary{}
	now := s.now()

	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		*summary = dto.ImportSummary{}
		for i := range doc.Jobs {
			n, err := s.importJob(ctx, tx, doc.Jobs[i])
			if err != nil {
				return errors.Wrapf(err, "job %d", i+1)
			}
			summary.Jobs++
			summary.Steps += n
		}
		for i := range doc.Stock {
			if err := s.saveSnapshot(ctx, tx, doc.Stock[i], now); err != nil {
				return errors.Wrapf(err, "stock %d", i+1)
			}
			summary.Stock++
		}
		for i := range doc.Reservations {
			if err := s.createReservation(ctx, tx, doc.Reservations[i]); err != nil {
				return errors.Wrapf(err, "reservation %d", i+1)
			}
			summary.Reservations++
		}
		for i := range doc.RFQs {
			if err := s.createRFQ(ctx, tx, doc.RFQs[i], now); err != nil {
				return errors.Wrapf(err, "rfq %d", i+1)
			}
			summary.RFQs++
		}
		for i := range doc.Quotations {
			if err := s.createQuotation(ctx, tx, doc.Quotations[i]); err != nil {
				return errors.Wrapf(err, "quotation %d", i+1)
			}
			summary.Quotations++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("scenario imported",
		"jobs", summary.Jobs,
		"steps", summary.Steps,
		"reservations", summary.Reservations,
		"stock", summary.Stock,
		"rfqs", summary.RFQs,
		"quotations", summary.Quotations,
	)
	return summary, nil
}

// ImportStock upserts stock snapshots. Snapshots without an as-of time are
// stamped with the import time.
func (s *ImportService) ImportStock(ctx context.Context, snapshots []entities.StockSnapshot) (*dto.ImportSummary, error) {
	now := s.now()
	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		for i := range snapshots {
			if err := s.saveSnapshot(ctx, tx, snapshots[i], now); err != nil {
				return errors.Wrapf(err, "stock %s", snapshots[i].StockID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("stock imported", logging.FieldCount, len(snapshots))
	return &dto.ImportSummary{Stock: len(snapshots)}, nil
}

// ImportReservations creates reservations
func (s *ImportService) ImportReservations(ctx context.Context, reservations []entities.Reservation) (*dto.ImportSummary, error) {
	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		for i := range reservations {
			if err := s.createReservation(ctx, tx, reservations[i]); err != nil {
				return errors.Wrapf(err, "reservation %s", reservations[i].ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("reservations imported", logging.FieldCount, len(reservations))
	return &dto.ImportSummary{Reservations: len(reservations)}, nil
}

// Export reads the whole store back into a scenario document
func (s *ImportService) Export(ctx context.Context) (*scenario.Document, error) {
	doc := &scenario.Document{}
	jobs, err := s.store.Jobs().ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		steps, err := s.store.Steps().ListStepsByJob(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		doc.Jobs = append(doc.Jobs, scenario.Job{Job: *job, Steps: steps})
	}
	if doc.Reservations, err = s.store.Reservations().ListReservations(ctx); err != nil {
		return nil, err
	}
	if doc.Stock, err = s.store.Stock().ListSnapshots(ctx); err != nil {
		return nil, err
	}
	rfqs, err := s.store.RFQs().ListRFQs(ctx)
	if err != nil {
		return nil, err
	}
	for _, rfq := range rfqs {
		doc.RFQs = append(doc.RFQs, *rfq)
		quotations, err := s.store.Quotations().ListQuotationsByRFQ(ctx, rfq.ID)
		if err != nil {
			return nil, err
		}
		doc.Quotations = append(doc.Quotations, quotations...)
	}
	return doc, nil
}

func (s *ImportService) importJob(ctx context.Context, tx repositories.Store, in scenario.Job) (int, error) {
	job := in.Job
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = entities.JobDraft
	}
	if err := job.Validate(); err != nil {
		return 0, err
	}
	if err := tx.Jobs().CreateJob(ctx, &job); err != nil {
		return 0, err
	}

	for _, step := range in.Steps {
		step.JobID = job.ID
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
		if step.Status == "" {
			step.Status = entities.StepPending
		}
		if err := tx.Steps().CreateStep(ctx, &step); err != nil {
			return 0, errors.Wrapf(err, "step %s", step.ID)
		}
	}
	if len(in.Steps) == 0 {
		return 0, nil
	}

	stored, err := tx.Steps().ListStepsByJob(ctx, job.ID)
	if err != nil {
		return 0, err
	}
	outcome, err := domain.RecomputeReadiness(stored)
	if err != nil {
		return 0, err
	}
	if err := tx.Steps().SaveSteps(ctx, outcome.Changed); err != nil {
		return 0, err
	}
	return len(in.Steps), nil
}

func (s *ImportService) saveSnapshot(ctx context.Context, tx repositories.Store, snap entities.StockSnapshot, now time.Time) error {
	if snap.AsOf.IsZero() {
		snap.AsOf = now
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	return tx.Stock().SaveSnapshot(ctx, &snap)
}

func (s *ImportService) createReservation(ctx context.Context, tx repositories.Store, r entities.Reservation) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := r.Validate(); err != nil {
		return err
	}
	return tx.Reservations().CreateReservation(ctx, &r)
}

func (s *ImportService) createRFQ(ctx context.Context, tx repositories.Store, rfq entities.RFQ, now time.Time) error {
	if rfq.ID == "" {
		rfq.ID = uuid.NewString()
	}
	if rfq.Status == "" {
		rfq.Status = entities.RFQOpen
	}
	if rfq.IssuedAt.IsZero() {
		rfq.IssuedAt = now
	}
	if rfq.Number == "" {
		seq, err := tx.RFQs().NextRFQSequence(ctx, s.rfqPrefix, rfq.IssuedAt.Year())
		if err != nil {
			return err
		}
		rfq.Number = entities.FormatRFQNumber(s.rfqPrefix, rfq.IssuedAt.Year(), seq)
	}
	items := make([]entities.RFQItem, len(rfq.Items))
	for i, item := range rfq.Items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.RFQID = rfq.ID
		items[i] = item
	}
	rfq.Items = items
	if err := rfq.Validate(); err != nil {
		return err
	}
	return tx.RFQs().CreateRFQ(ctx, &rfq)
}

// createQuotation accepts the RFQ by id or number
func (s *ImportService) createQuotation(ctx context.Context, tx repositories.Store, q entities.Quotation) error {
	q.Items = append([]entities.QuotationItem(nil), q.Items...)
	if err := bindQuotation(ctx, tx, &q); err != nil {
		return err
	}
	return tx.Quotations().CreateQuotation(ctx, &q)
}
