package sqlstore

import (
	"context"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

type jobRepository struct{ db *gorm.DB }

func (r jobRepository) GetJob(ctx context.Context, id string) (*entities.Job, error) {
	var job entities.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, translate(err, "job", id)
	}
	return &job, nil
}

func (r jobRepository) ListJobs(ctx context.Context) ([]*entities.Job, error) {
	var jobs []*entities.Job
	err := r.db.WithContext(ctx).Order("number ASC").Find(&jobs).Error
	return jobs, errors.Wrap(err, "list jobs")
}

func (r jobRepository) CreateJob(ctx context.Context, job *entities.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	job.Version = 1
	return translate(r.db.WithContext(ctx).Create(job).Error, "job", job.ID)
}

func (r jobRepository) SaveJob(ctx context.Context, job *entities.Job) error {
	next := *job
	next.Version = job.Version + 1
	if err := compareAndSwap(ctx, r.db, &next, "job", job.ID, job.Version); err != nil {
		return err
	}
	*job = next
	return nil
}

type stepRepository struct{ db *gorm.DB }

func (r stepRepository) GetStep(ctx context.Context, id string) (*entities.Step, error) {
	var step entities.Step
	if err := r.db.WithContext(ctx).First(&step, "id = ?", id).Error; err != nil {
		return nil, translate(err, "step", id)
	}
	return &step, nil
}

func (r stepRepository) ListStepsByJob(ctx context.Context, jobID string) ([]entities.Step, error) {
	steps := []entities.Step{}
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("order_index ASC, id ASC").
		Find(&steps).Error
	return steps, errors.Wrapf(err, "list steps of job %s", jobID)
}

func (r stepRepository) CreateStep(ctx context.Context, step *entities.Step) error {
	if err := step.Validate(); err != nil {
		return err
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Job{}).Where("id = ?", step.JobID).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "job %s", step.JobID)
	}
	if count == 0 {
		return errors.Wrapf(entities.ErrNotFound, "job %s", step.JobID)
	}
	step.Version = 1
	return translate(r.db.WithContext(ctx).Create(step).Error, "step", step.ID)
}

// SaveSteps runs inside its own transaction unless the caller already opened one
func (r stepRepository) SaveSteps(ctx context.Context, steps []entities.Step) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range steps {
			next := steps[i]
			next.Version = steps[i].Version + 1
			if err := compareAndSwap(ctx, tx, &next, "step", next.ID, steps[i].Version); err != nil {
				return err
			}
		}
		return nil
	})
}

type reservationRepository struct{ db *gorm.DB }

func (r reservationRepository) ListReservations(ctx context.Context) ([]entities.Reservation, error) {
	out := []entities.Reservation{}
	err := r.db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, errors.Wrap(err, "list reservations")
}

func (r reservationRepository) ListReservationsByJob(ctx context.Context, jobID string) ([]entities.Reservation, error) {
	out := []entities.Reservation{}
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Order("id ASC").Find(&out).Error
	return out, errors.Wrapf(err, "list reservations of job %s", jobID)
}

func (r reservationRepository) CreateReservation(ctx context.Context, res *entities.Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	res.Version = 1
	return translate(r.db.WithContext(ctx).Create(res).Error, "reservation", res.ID)
}

func (r reservationRepository) SaveReservation(ctx context.Context, res *entities.Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	next := *res
	next.Version = res.Version + 1
	if err := compareAndSwap(ctx, r.db, &next, "reservation", res.ID, res.Version); err != nil {
		return err
	}
	*res = next
	return nil
}

type stockRepository struct{ db *gorm.DB }

func (r stockRepository) ListSnapshots(ctx context.Context) ([]entities.StockSnapshot, error) {
	out := []entities.StockSnapshot{}
	err := r.db.WithContext(ctx).Order("stock_id ASC").Find(&out).Error
	return out, errors.Wrap(err, "list stock snapshots")
}

func (r stockRepository) GetSnapshot(ctx context.Context, id entities.StockID) (*entities.StockSnapshot, error) {
	var snap entities.StockSnapshot
	if err := r.db.WithContext(ctx).First(&snap, "stock_id = ?", id).Error; err != nil {
		return nil, translate(err, "stock", string(id))
	}
	return &snap, nil
}

func (r stockRepository) SaveSnapshot(ctx context.Context, snap *entities.StockSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Save(snap).Error, "stock", string(snap.StockID))
}

type rfqRepository struct{ db *gorm.DB }

func (r rfqRepository) CreateRFQ(ctx context.Context, rfq *entities.RFQ) error {
	if err := rfq.Validate(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(rfq).Error, "rfq", rfq.Number)
}

func (r rfqRepository) GetRFQ(ctx context.Context, idOrNumber string) (*entities.RFQ, error) {
	var rfq entities.RFQ
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ? OR number = ?", idOrNumber, idOrNumber).
		First(&rfq).Error
	if err != nil {
		return nil, translate(err, "rfq", idOrNumber)
	}
	return &rfq, nil
}

func (r rfqRepository) ListRFQs(ctx context.Context) ([]*entities.RFQ, error) {
	var out []*entities.RFQ
	err := r.db.WithContext(ctx).Preload("Items").Order("number ASC").Find(&out).Error
	return out, errors.Wrap(err, "list rfqs")
}

func (r rfqRepository) NextRFQSequence(ctx context.Context, prefix string, year int) (int, error) {
	stem := entities.RFQNumberStem(prefix, year)
	var numbers []string
	// the prefix may hold LIKE wildcards, so RFQSequence re-checks the stem
	err := r.db.WithContext(ctx).
		Model(&entities.RFQ{}).
		Where("number LIKE ?", stem+"%").
		Pluck("number", &numbers).Error
	if err != nil {
		return 0, errors.Wrap(err, "rfq sequence")
	}
	highest := 0
	for _, n := range numbers {
		if seq := entities.RFQSequence(n, stem); seq > highest {
			highest = seq
		}
	}
	return highest + 1, nil
}

type quotationRepository struct{ db *gorm.DB }

func (r quotationRepository) CreateQuotation(ctx context.Context, q *entities.Quotation) error {
	if err := q.Validate(); err != nil {
		return err
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.RFQ{}).Where("id = ?", q.RFQID).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "rfq %s", q.RFQID)
	}
	if count == 0 {
		return errors.Wrapf(entities.ErrNotFound, "rfq %s", q.RFQID)
	}
	if q.Status == "" {
		q.Status = entities.QuotationPending
	}
	q.RecalculateTotal()
	q.Version = 1
	return translate(r.db.WithContext(ctx).Create(q).Error, "quotation", q.ID)
}

func (r quotationRepository) GetQuotation(ctx context.Context, id string) (*entities.Quotation, error) {
	var q entities.Quotation
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&q, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "quotation", id)
	}
	return &q, nil
}

func (r quotationRepository) ListQuotationsByRFQ(ctx context.Context, rfqID string) ([]entities.Quotation, error) {
	out := []entities.Quotation{}
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("rfq_id = ?", rfqID).
		Order("id ASC").
		Find(&out).Error
	return out, errors.Wrapf(err, "list quotations of rfq %s", rfqID)
}

func (r quotationRepository) SaveQuotation(ctx context.Context, q *entities.Quotation) error {
	if err := q.Validate(); err != nil {
		return err
	}
	next := *q
	next.Version = q.Version + 1
	if err := compareAndSwap(ctx, r.db, &next, "quotation", q.ID, q.Version); err != nil {
		return err
	}
	*q = next
	return nil
}
