package services

import (
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// StepOutcome is the authoritative snapshot returned by every step action.
// Steps is the whole job after the action; Changed holds only the steps that
// must be persisted, each still carrying the Version it was read with.
type StepOutcome struct {
	Step     entities.Step
	Steps    []entities.Step
	Changed  []entities.Step
	Promoted []string
	Demoted  []string
}

// CompleteInput carries the optional production record of a completed step
// and the stock consumed while producing it.
type CompleteInput struct {
	ProductionQuantity *decimal.Decimal
	ProductionUnit     string
	ProductionNotes    string
	Consumptions       []Consumption
}

// RevisionInput is an administrative edit of a completed step's record
type RevisionInput struct {
	ProductionQuantity *decimal.Decimal
	ProductionUnit     *string
	ProductionNotes    *string
}

// Cohort is the set of steps sharing one order index
type Cohort struct {
	OrderIndex int
	Steps      []entities.Step
}

// Done reports whether every member of the cohort is completed or canceled
func (c Cohort) Done() bool {
	for _, s := range c.Steps {
		if !s.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// Cohorts groups a job's steps by order index, lowest first
func Cohorts(steps []entities.Step) []Cohort {
	byIndex := make(map[int][]entities.Step)
	for _, s := range steps {
		byIndex[s.OrderIndex] = append(byIndex[s.OrderIndex], s)
	}
	indexes := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	cohorts := make([]Cohort, 0, len(indexes))
	for _, idx := range indexes {
		members := byIndex[idx]
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		cohorts = append(cohorts, Cohort{OrderIndex: idx, Steps: members})
	}
	return cohorts
}

// BlockingPredecessors returns the ids of steps in earlier cohorts that are
// neither completed nor canceled
func BlockingPredecessors(steps []entities.Step, step entities.Step) []string {
	var blocking []string
	for _, s := range steps {
		if s.ID == step.ID || s.OrderIndex >= step.OrderIndex {
			continue
		}
		if !s.Status.IsTerminal() {
			blocking = append(blocking, s.ID)
		}
	}
	sort.Strings(blocking)
	return blocking
}

// InitialStatus is ready when no earlier cohort is still open, pending otherwise
func InitialStatus(steps []entities.Step, step entities.Step) entities.StepStatus {
	if len(BlockingPredecessors(steps, step)) == 0 {
		return entities.StepReady
	}
	return entities.StepPending
}

// RecomputeReadiness normalizes pending/ready across the snapshot without
// applying any action
func RecomputeReadiness(steps []entities.Step) (*StepOutcome, error) {
	if err := checkSnapshot(steps); err != nil {
		return nil, err
	}
	work := cloneSteps(steps)
	promoted, demoted := normalizeReadiness(work)
	return buildOutcome(work, "", promoted, demoted), nil
}

// AddStep inserts a new step, assigning its initial status. Ready steps in
// later cohorts fall back to pending because the new step now precedes them.
func AddStep(steps []entities.Step, step entities.Step) (*StepOutcome, error) {
	if err := checkSnapshot(steps); err != nil {
		return nil, err
	}
	if err := step.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(step.ID) == "" {
		return nil, entities.NewValidationError("id", "step id cannot be empty")
	}
	for _, s := range steps {
		if s.ID == step.ID {
			return nil, entities.NewValidationError("id", "step %s already exists", step.ID)
		}
		if s.JobID != step.JobID {
			return nil, entities.NewValidationError("job_id", "step %s belongs to job %s, snapshot is job %s", step.ID, step.JobID, s.JobID)
		}
	}

	step.Status = entities.StepPending
	step.StartedAt = nil
	step.CompletedAt = nil
	step.ActualDuration = nil
	step.BlockReason = ""
	if step.Version == 0 {
		step.Version = 1
	}

	work := append(cloneSteps(steps), step)
	promoted, demoted := normalizeReadiness(work)
	return buildOutcome(work, step.ID, promoted, demoted), nil
}

// StartStep moves a ready step to in_progress and records started_at.
// Machine-based steps need an assigned machine.
func StartStep(steps []entities.Step, stepID string, now time.Time) (*StepOutcome, error) {
	return applyAction(steps, stepID, "start", func(work []entities.Step, s *entities.Step) error {
		if s.Status != entities.StepPending && s.Status != entities.StepReady {
			return transitionError(s, "start")
		}
		if blocking := BlockingPredecessors(work, *s); len(blocking) > 0 {
			return &entities.PredecessorNotSatisfiedError{StepID: s.ID, Blocking: blocking}
		}
		if s.MachineBased && !s.HasMachine() {
			return entities.NewValidationError("assigned_machine_id", "step %s runs on a machine but none is assigned", s.ID)
		}
		s.Status = entities.StepInProgress
		startedAt := now
		s.StartedAt = &startedAt
		s.BlockReason = ""
		return nil
	})
}

// CompleteStep moves an in_progress step to completed, records completed_at
// and the actual duration in whole minutes, and releases successors.
func CompleteStep(steps []entities.Step, stepID string, input CompleteInput, now time.Time) (*StepOutcome, error) {
	return applyAction(steps, stepID, "complete", func(work []entities.Step, s *entities.Step) error {
		if s.Status != entities.StepInProgress {
			return transitionError(s, "complete")
		}
		if input.ProductionQuantity != nil && !input.ProductionQuantity.IsPositive() {
			return entities.NewValidationError("production_quantity", "production quantity must be positive, got %s", input.ProductionQuantity)
		}
		for _, c := range input.Consumptions {
			if err := c.Validate(); err != nil {
				return err
			}
		}

		completedAt := now
		s.Status = entities.StepCompleted
		s.CompletedAt = &completedAt
		minutes := 0
		if s.StartedAt != nil && completedAt.After(*s.StartedAt) {
			minutes = int(completedAt.Sub(*s.StartedAt) / time.Minute)
		}
		s.ActualDuration = &minutes
		if input.ProductionQuantity != nil {
			q := *input.ProductionQuantity
			s.ProductionQuantity = &q
		}
		if input.ProductionUnit != "" {
			s.ProductionUnit = input.ProductionUnit
		}
		if input.ProductionNotes != "" {
			s.ProductionNotes = input.ProductionNotes
		}
		return nil
	})
}

// PauseStep blocks an in_progress step. The reason is mandatory and the
// assignment is kept.
func PauseStep(steps []entities.Step, stepID, reason string) (*StepOutcome, error) {
	return applyAction(steps, stepID, "pause", func(work []entities.Step, s *entities.Step) error {
		if s.Status != entities.StepInProgress {
			return transitionError(s, "pause")
		}
		if strings.TrimSpace(reason) == "" {
			return entities.NewValidationError("reason", "a reason is required to pause step %s", s.ID)
		}
		s.Status = entities.StepBlocked
		s.BlockReason = strings.TrimSpace(reason)
		return nil
	})
}

// ResumeStep returns a blocked step to in_progress, keeping started_at
func ResumeStep(steps []entities.Step, stepID string) (*StepOutcome, error) {
	return applyAction(steps, stepID, "resume", func(work []entities.Step, s *entities.Step) error {
		if s.Status != entities.StepBlocked {
			return transitionError(s, "resume")
		}
		s.Status = entities.StepInProgress
		s.BlockReason = ""
		return nil
	})
}

// DeleteStep cancels a pending or ready step. Successors are re-evaluated as
// if the step had been skipped; order indexes are never compacted.
func DeleteStep(steps []entities.Step, stepID string) (*StepOutcome, error) {
	return applyAction(steps, stepID, "delete", func(work []entities.Step, s *entities.Step) error {
		if s.Status != entities.StepPending && s.Status != entities.StepReady {
			return transitionError(s, "delete")
		}
		s.Status = entities.StepCanceled
		return nil
	})
}

// ReviseStep edits the production record of a completed step and bumps its
// revision. Status and timestamps are left alone.
func ReviseStep(steps []entities.Step, stepID string, input RevisionInput) (*StepOutcome, error) {
	return applyAction(steps, stepID, "revise", func(work []entities.Step, s *entities.Step) error {
		if s.Status != entities.StepCompleted {
			return transitionError(s, "revise")
		}
		if input.ProductionQuantity == nil && input.ProductionUnit == nil && input.ProductionNotes == nil {
			return entities.NewValidationError("revision", "revision of step %s changes nothing", s.ID)
		}
		if input.ProductionQuantity != nil {
			if !input.ProductionQuantity.IsPositive() {
				return entities.NewValidationError("production_quantity", "production quantity must be positive, got %s", input.ProductionQuantity)
			}
			q := *input.ProductionQuantity
			s.ProductionQuantity = &q
		}
		if input.ProductionUnit != nil {
			s.ProductionUnit = *input.ProductionUnit
		}
		if input.ProductionNotes != nil {
			s.ProductionNotes = *input.ProductionNotes
		}
		s.Revision++
		return nil
	})
}

func applyAction(
	steps []entities.Step,
	stepID, action string,
	mutate func(work []entities.Step, target *entities.Step) error,
) (*StepOutcome, error) {
	if err := checkSnapshot(steps); err != nil {
		return nil, err
	}
	work := cloneSteps(steps)
	idx := indexOf(work, stepID)
	if idx < 0 {
		return nil, errors.Wrapf(entities.ErrNotFound, "step %s", stepID)
	}
	if err := mutate(work, &work[idx]); err != nil {
		return nil, errors.WithMessagef(err, "%s step %s", action, stepID)
	}
	promoted, demoted := normalizeReadiness(work)
	return buildOutcome(work, stepID, promoted, demoted), nil
}

// normalizeReadiness enforces: a non-started step is ready iff every earlier
// cohort is done.
func normalizeReadiness(work []entities.Step) (promoted, demoted []string) {
	for i := range work {
		s := &work[i]
		if s.Status != entities.StepPending && s.Status != entities.StepReady {
			continue
		}
		open := len(BlockingPredecessors(work, *s)) > 0
		switch {
		case s.Status == entities.StepPending && !open:
			s.Status = entities.StepReady
			promoted = append(promoted, s.ID)
		case s.Status == entities.StepReady && open:
			s.Status = entities.StepPending
			demoted = append(demoted, s.ID)
		}
	}
	sort.Strings(promoted)
	sort.Strings(demoted)
	return promoted, demoted
}

func buildOutcome(after []entities.Step, targetID string, promoted, demoted []string) *StepOutcome {
	touched := make(map[string]bool, len(promoted)+len(demoted)+1)
	for _, id := range promoted {
		touched[id] = true
	}
	for _, id := range demoted {
		touched[id] = true
	}
	if targetID != "" {
		touched[targetID] = true
	}

	outcome := &StepOutcome{Steps: after, Promoted: promoted, Demoted: demoted}
	for _, s := range after {
		if s.ID == targetID {
			outcome.Step = s
		}
		if touched[s.ID] {
			outcome.Changed = append(outcome.Changed, s)
		}
	}
	sort.Slice(outcome.Changed, func(i, j int) bool {
		return outcome.Changed[i].ID < outcome.Changed[j].ID
	})
	return outcome
}

func checkSnapshot(steps []entities.Step) error {
	seen := make(map[string]bool, len(steps))
	jobID := ""
	for _, s := range steps {
		if seen[s.ID] {
			return entities.NewValidationError("steps", "step %s appears twice in snapshot", s.ID)
		}
		seen[s.ID] = true
		if jobID == "" {
			jobID = s.JobID
		} else if s.JobID != jobID {
			return entities.NewValidationError("steps", "snapshot mixes jobs %s and %s", jobID, s.JobID)
		}
		if !s.Status.Valid() {
			return entities.NewValidationError("status", "step %s has unknown status %q", s.ID, s.Status)
		}
	}
	return nil
}

func transitionError(s *entities.Step, action string) error {
	return &entities.InvalidStateTransitionError{
		Entity: "step",
		ID:     s.ID,
		From:   string(s.Status),
		Action: action,
	}
}

func cloneSteps(steps []entities.Step) []entities.Step {
	out := make([]entities.Step, len(steps))
	copy(out, steps)
	return out
}

func indexOf(steps []entities.Step, id string) int {
	for i := range steps {
		if steps[i].ID == id {
			return i
		}
	}
	return -1
}
