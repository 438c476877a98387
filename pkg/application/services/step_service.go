package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vsinha/shopfloor/pkg/application/dto"
	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
	domain "github.com/vsinha/shopfloor/pkg/domain/services"
	"github.com/vsinha/shopfloor/pkg/infrastructure/events"
	"github.com/vsinha/shopfloor/pkg/infrastructure/logging"
)

// jobGate is the job-level precondition of a step action
type jobGate int

const (
	// step execution needs an active or in-progress job
	gateExecution jobGate = iota
	// structural edits need a job that is not completed or canceled
	gatePlanning
	// administrative revisions only refuse canceled jobs
	gateRevision
)

// StepService runs step actions against the store. Each action reads the
// whole job, applies the pure state machine and writes the changed steps,
// consumed reservations and job status in one transaction. Events are
// published only after the transaction commits.
type StepService struct {
	store     repositories.Store
	publisher events.Publisher
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewStepService wires a step service. publisher may be nil.
func NewStepService(store repositories.Store, publisher events.Publisher, logger *zap.SugaredLogger) *StepService {
	return &StepService{
		store:     store,
		publisher: publisher,
		logger:    logging.Component(logger, "steps"),
		now:       time.Now,
	}
}

// WithClock replaces the time source
func (s *StepService) WithClock(now func() time.Time) *StepService {
	s.now = now
	return s
}

// Start moves a ready step to in_progress. Starting work on an active job
// moves the job to in_progress.
func (s *StepService) Start(ctx context.Context, stepID string) (*dto.StepActionResult, error) {
	return s.apply(ctx, stepID, "start", gateExecution, events.StepStartedEvent,
		func(steps []entities.Step, now time.Time) (*domain.StepOutcome, error) {
			return domain.StartStep(steps, stepID, now)
		}, nil)
}

// Complete finishes an in_progress step and draws its consumptions from
// the job's reservations.
func (s *StepService) Complete(ctx context.Context, stepID string, input domain.CompleteInput) (*dto.StepActionResult, error) {
	return s.apply(ctx, stepID, "complete", gateExecution, events.StepCompletedEvent,
		func(steps []entities.Step, now time.Time) (*domain.StepOutcome, error) {
			return domain.CompleteStep(steps, stepID, input, now)
		},
		func(ctx context.Context, tx repositories.Store, result *dto.StepActionResult) error {
			if len(input.Consumptions) == 0 {
				return nil
			}
			reservations, err := tx.Reservations().ListReservationsByJob(ctx, result.Job.ID)
			if err != nil {
				return err
			}
			changed, err := domain.ApplyConsumptions(reservations, result.Job.ID, input.Consumptions)
			if err != nil {
				return err
			}
			for i := range changed {
				if err := tx.Reservations().SaveReservation(ctx, &changed[i]); err != nil {
					return err
				}
			}
			result.Consumed = changed
			return nil
		})
}

// Pause blocks an in_progress step with a mandatory reason
func (s *StepService) Pause(ctx context.Context, stepID, reason string) (*dto.StepActionResult, error) {
	return s.apply(ctx, stepID, "pause", gateExecution, events.StepBlockedEvent,
		func(steps []entities.Step, _ time.Time) (*domain.StepOutcome, error) {
			return domain.PauseStep(steps, stepID, reason)
		}, nil)
}

// Resume returns a blocked step to in_progress
func (s *StepService) Resume(ctx context.Context, stepID string) (*dto.StepActionResult, error) {
	return s.apply(ctx, stepID, "resume", gateExecution, events.StepResumedEvent,
		func(steps []entities.Step, _ time.Time) (*domain.StepOutcome, error) {
			return domain.ResumeStep(steps, stepID)
		}, nil)
}

// Delete cancels a pending or ready step
func (s *StepService) Delete(ctx context.Context, stepID string) (*dto.StepActionResult, error) {
	return s.apply(ctx, stepID, "delete", gatePlanning, events.StepCanceledEvent,
		func(steps []entities.Step, _ time.Time) (*domain.StepOutcome, error) {
			return domain.DeleteStep(steps, stepID)
		}, nil)
}

// Revise edits the production record of a completed step
func (s *StepService) Revise(ctx context.Context, stepID string, input domain.RevisionInput) (*dto.StepActionResult, error) {
	return s.apply(ctx, stepID, "revise", gateRevision, events.StepRevisedEvent,
		func(steps []entities.Step, _ time.Time) (*domain.StepOutcome, error) {
			return domain.ReviseStep(steps, stepID, input)
		}, nil)
}

// AddStep appends a step to a job. An empty ID gets a fresh UUID.
func (s *StepService) AddStep(ctx context.Context, step entities.Step) (*dto.StepActionResult, error) {
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	now := s.now()
	var result *dto.StepActionResult

	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		job, err := tx.Jobs().GetJob(ctx, step.JobID)
		if err != nil {
			return err
		}
		if err := checkGate(job, gatePlanning, "add step to"); err != nil {
			return err
		}
		steps, err := tx.Steps().ListStepsByJob(ctx, job.ID)
		if err != nil {
			return err
		}
		outcome, err := domain.AddStep(steps, step)
		if err != nil {
			return err
		}

		created := outcome.Step
		if err := tx.Steps().CreateStep(ctx, &created); err != nil {
			return err
		}
		var others []entities.Step
		for _, c := range outcome.Changed {
			if c.ID != created.ID {
				others = append(others, c)
			}
		}
		if err := tx.Steps().SaveSteps(ctx, others); err != nil {
			return err
		}

		result, err = s.snapshot(ctx, tx, "add", job, created.ID, outcome)
		return err
	})
	if err != nil {
		s.logger.Debugw("add step rejected", logging.FieldJobID, step.JobID, logging.FieldError, err)
		return nil, err
	}

	s.publish(result, events.StepAddedEvent, nil, now)
	return result, nil
}

// ListSteps returns the job's steps ordered by order index
func (s *StepService) ListSteps(ctx context.Context, jobID string) ([]entities.Step, error) {
	if _, err := s.store.Jobs().GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.Steps().ListStepsByJob(ctx, jobID)
}

// Recompute normalizes pending/ready for every step of the job
func (s *StepService) Recompute(ctx context.Context, jobID string) (*dto.StepActionResult, error) {
	now := s.now()
	var result *dto.StepActionResult
	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		job, err := tx.Jobs().GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		steps, err := tx.Steps().ListStepsByJob(ctx, jobID)
		if err != nil {
			return err
		}
		outcome, err := domain.RecomputeReadiness(steps)
		if err != nil {
			return err
		}
		if err := tx.Steps().SaveSteps(ctx, outcome.Changed); err != nil {
			return err
		}
		result, err = s.snapshot(ctx, tx, "recompute", job, "", outcome)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(result, "", nil, now)
	return result, nil
}

type stepAction func(steps []entities.Step, now time.Time) (*domain.StepOutcome, error)

type afterAction func(ctx context.Context, tx repositories.Store, result *dto.StepActionResult) error

func (s *StepService) apply(
	ctx context.Context,
	stepID, action string,
	gate jobGate,
	eventType string,
	run stepAction,
	after afterAction,
) (*dto.StepActionResult, error) {
	now := s.now()
	var (
		result    *dto.StepActionResult
		jobChange *events.JobStatusChanged
	)

	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		target, err := tx.Steps().GetStep(ctx, stepID)
		if err != nil {
			return err
		}
		job, err := tx.Jobs().GetJob(ctx, target.JobID)
		if err != nil {
			return err
		}
		if err := checkGate(job, gate, action+" step of"); err != nil {
			return err
		}
		steps, err := tx.Steps().ListStepsByJob(ctx, job.ID)
		if err != nil {
			return err
		}

		outcome, err := run(steps, now)
		if err != nil {
			return err
		}
		if err := tx.Steps().SaveSteps(ctx, outcome.Changed); err != nil {
			return err
		}

		if action == "start" && job.Status == entities.JobActive {
			from := job.Status
			if err := job.Transition(entities.JobInProgress); err != nil {
				return err
			}
			if err := tx.Jobs().SaveJob(ctx, job); err != nil {
				return err
			}
			jobChange = &events.JobStatusChanged{JobID: job.ID, From: from, To: job.Status}
		}

		result, err = s.snapshot(ctx, tx, action, job, stepID, outcome)
		if err != nil {
			return err
		}
		if after != nil {
			return after(ctx, tx, result)
		}
		return nil
	})
	if err != nil {
		s.logger.Debugw("step action rejected", "action", action, logging.FieldStepID, stepID, logging.FieldError, err)
		return nil, err
	}

	s.logger.Infow("step action applied",
		"action", action,
		logging.FieldStepID, stepID,
		logging.FieldJobID, result.Job.ID,
		"status", result.Step.Status,
		"promoted", result.Promoted,
	)
	s.publish(result, eventType, jobChange, now)
	return result, nil
}

// snapshot re-reads the job's steps so the result carries the stored versions
func (s *StepService) snapshot(
	ctx context.Context,
	tx repositories.Store,
	action string,
	job *entities.Job,
	stepID string,
	outcome *domain.StepOutcome,
) (*dto.StepActionResult, error) {
	steps, err := tx.Steps().ListStepsByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	result := &dto.StepActionResult{
		Action:   action,
		Job:      *job,
		Steps:    steps,
		Promoted: outcome.Promoted,
		Demoted:  outcome.Demoted,
	}
	for _, st := range steps {
		if st.ID == stepID {
			result.Step = st
		}
	}
	return result, nil
}

func (s *StepService) publish(result *dto.StepActionResult, eventType string, jobChange *events.JobStatusChanged, now time.Time) {
	if s.publisher == nil {
		return
	}
	var out []events.Event
	if eventType != "" {
		out = append(out, events.NewStepEvent(eventType, result.Step, now))
	}
	for _, id := range result.Promoted {
		for _, st := range result.Steps {
			if st.ID == id {
				out = append(out, events.NewStepEvent(events.StepReadyEvent, st, now))
			}
		}
	}
	for _, r := range result.Consumed {
		out = append(out, events.NewReservationConsumedEvent(r, now))
	}
	if jobChange != nil {
		out = append(out, events.NewJobStatusChangedEvent(jobChange.JobID, jobChange.From, jobChange.To, now))
	}
	for _, e := range out {
		if err := s.publisher.AppendEvent(e.StreamID(), e); err != nil {
			s.logger.Warnw("event not recorded", logging.FieldEvent, e.Type(), logging.FieldError, err)
		}
	}
}

func checkGate(job *entities.Job, gate jobGate, action string) error {
	ok := true
	switch gate {
	case gateExecution:
		ok = job.AllowsExecution()
	case gatePlanning:
		ok = job.AllowsPlanning()
	case gateRevision:
		ok = job.Status != entities.JobCanceled
	}
	if ok {
		return nil
	}
	return &entities.InvalidStateTransitionError{
		Entity: "job",
		ID:     job.ID,
		From:   string(job.Status),
		Action: action,
	}
}
