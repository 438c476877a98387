package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
	domain "github.com/vsinha/shopfloor/pkg/domain/services"
	"github.com/vsinha/shopfloor/pkg/infrastructure/events"
	"github.com/vsinha/shopfloor/pkg/infrastructure/logging"
)

// JobService drives the job lifecycle
type JobService struct {
	store     repositories.Store
	publisher events.Publisher
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewJobService wires a job service. publisher may be nil.
func NewJobService(store repositories.Store, publisher events.Publisher, logger *zap.SugaredLogger) *JobService {
	return &JobService{
		store:     store,
		publisher: publisher,
		logger:    logging.Component(logger, "jobs"),
		now:       time.Now,
	}
}

// WithClock replaces the time source
func (s *JobService) WithClock(now func() time.Time) *JobService {
	s.now = now
	return s
}

// ListJobs returns every job ordered by number
func (s *JobService) ListJobs(ctx context.Context) ([]*entities.Job, error) {
	return s.store.Jobs().ListJobs(ctx)
}

// Activate releases a draft job to the floor
func (s *JobService) Activate(ctx context.Context, jobID string) (*entities.Job, error) {
	return s.transition(ctx, jobID, func(tx repositories.Store, job *entities.Job) error {
		return job.Transition(entities.JobActive)
	})
}

// Hold pauses a job; its steps cannot be executed until it resumes
func (s *JobService) Hold(ctx context.Context, jobID string) (*entities.Job, error) {
	return s.transition(ctx, jobID, func(tx repositories.Store, job *entities.Job) error {
		return job.Hold()
	})
}

// Resume returns a held job to the state it was held from
func (s *JobService) Resume(ctx context.Context, jobID string) (*entities.Job, error) {
	return s.transition(ctx, jobID, func(tx repositories.Store, job *entities.Job) error {
		return job.Resume()
	})
}

// Complete closes a job once every step that was not canceled is completed
func (s *JobService) Complete(ctx context.Context, jobID string) (*entities.Job, error) {
	return s.transition(ctx, jobID, func(tx repositories.Store, job *entities.Job) error {
		steps, err := tx.Steps().ListStepsByJob(ctx, job.ID)
		if err != nil {
			return err
		}
		for _, st := range steps {
			if !st.Status.IsTerminal() {
				return &entities.InvalidStateTransitionError{
					Entity: "job",
					ID:     job.ID,
					From:   string(job.Status),
					Action: "complete with step " + st.ID + " " + string(st.Status) + " in",
				}
			}
		}
		return job.Transition(entities.JobCompleted)
	})
}

// Cancel cancels a job and releases its open reservations. Fully used
// reservations stay as they are.
func (s *JobService) Cancel(ctx context.Context, jobID string) (*entities.Job, error) {
	now := s.now()
	return s.transition(ctx, jobID, func(tx repositories.Store, job *entities.Job) error {
		if err := job.Cancel(); err != nil {
			return err
		}
		reservations, err := tx.Reservations().ListReservationsByJob(ctx, job.ID)
		if err != nil {
			return err
		}
		for _, r := range reservations {
			status := r.Status()
			if status == entities.ReservationCanceled || status == entities.ReservationFullyUsed {
				continue
			}
			released, err := domain.CancelReservation(r, now)
			if err != nil {
				return err
			}
			if err := tx.Reservations().SaveReservation(ctx, &released); err != nil {
				return err
			}
			s.logger.Debugw("reservation released", logging.FieldJobID, job.ID, logging.FieldStockID, r.StockID, "reservation_id", r.ID)
		}
		return nil
	})
}

func (s *JobService) transition(
	ctx context.Context,
	jobID string,
	mutate func(tx repositories.Store, job *entities.Job) error,
) (*entities.Job, error) {
	var (
		job  *entities.Job
		from entities.JobStatus
	)
	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		var err error
		job, err = tx.Jobs().GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		from = job.Status
		if err := mutate(tx, job); err != nil {
			return err
		}
		return tx.Jobs().SaveJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("job status changed", logging.FieldJobID, job.ID, "from", from, "to", job.Status)
	if s.publisher != nil {
		e := events.NewJobStatusChangedEvent(job.ID, from, job.Status, s.now())
		if err := s.publisher.AppendEvent(e.StreamID(), e); err != nil {
			s.logger.Warnw("event not recorded", logging.FieldEvent, e.Type(), logging.FieldError, err)
		}
	}
	return job, nil
}
