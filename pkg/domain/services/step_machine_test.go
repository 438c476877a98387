package services

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

var t0 = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func step(id string, order int, status entities.StepStatus) entities.Step {
	return entities.Step{ID: id, JobID: "JOB1", OrderIndex: order, Status: status, Version: 1}
}

// A(1), B(2), C(2, parallel with B), D(3)
func parallelJob() []entities.Step {
	b := step("B", 2, entities.StepPending)
	b.IsParallel = true
	c := step("C", 2, entities.StepPending)
	c.IsParallel = true
	return []entities.Step{
		step("A", 1, entities.StepReady),
		b,
		c,
		step("D", 3, entities.StepPending),
	}
}

func statusOf(t *testing.T, steps []entities.Step, id string) entities.StepStatus {
	t.Helper()
	for _, s := range steps {
		if s.ID == id {
			return s.Status
		}
	}
	t.Fatalf("step %s not in snapshot", id)
	return ""
}

func run(t *testing.T, steps []entities.Step, id string) []entities.Step {
	t.Helper()
	out, err := StartStep(steps, id, t0)
	require.NoError(t, err)
	out, err = CompleteStep(out.Steps, id, CompleteInput{}, t0.Add(30*time.Minute))
	require.NoError(t, err)
	return out.Steps
}

func TestCompletingCohortReleasesParallelSteps(t *testing.T) {
	steps := run(t, parallelJob(), "A")

	assert.Equal(t, entities.StepReady, statusOf(t, steps, "B"))
	assert.Equal(t, entities.StepReady, statusOf(t, steps, "C"))
	assert.Equal(t, entities.StepPending, statusOf(t, steps, "D"))

	steps = run(t, steps, "B")
	assert.Equal(t, entities.StepPending, statusOf(t, steps, "D"), "D waits for the whole cohort")

	steps = run(t, steps, "C")
	assert.Equal(t, entities.StepReady, statusOf(t, steps, "D"))
}

func TestDeletingPendingCohortMemberLeavesSiblingAndSuccessor(t *testing.T) {
	out, err := DeleteStep(parallelJob(), "B")
	require.NoError(t, err)

	assert.Equal(t, entities.StepCanceled, out.Step.Status)
	assert.Equal(t, entities.StepPending, statusOf(t, out.Steps, "C"))
	assert.Equal(t, entities.StepPending, statusOf(t, out.Steps, "D"))

	steps := run(t, out.Steps, "A")
	assert.Equal(t, entities.StepReady, statusOf(t, steps, "C"))
	assert.Equal(t, entities.StepPending, statusOf(t, steps, "D"), "D still waits for C")

	steps = run(t, steps, "C")
	assert.Equal(t, entities.StepReady, statusOf(t, steps, "D"))
}

func TestDeletingSolePredecessorPromotesSuccessor(t *testing.T) {
	steps := []entities.Step{
		step("A", 1, entities.StepReady),
		step("B", 2, entities.StepPending),
	}
	out, err := DeleteStep(steps, "A")
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, out.Promoted)
	assert.Equal(t, entities.StepReady, statusOf(t, out.Steps, "B"))
	assert.Equal(t, 2, out.Steps[1].OrderIndex, "order indexes are not compacted")
}

func TestCompletePendingStepIsInvalidAndLeavesSnapshotUntouched(t *testing.T) {
	steps := parallelJob()
	before := make([]entities.Step, len(steps))
	copy(before, steps)

	out, err := CompleteStep(steps, "D", CompleteInput{}, t0)

	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, entities.ErrInvalidStateTransition))
	var ist *entities.InvalidStateTransitionError
	require.True(t, errors.As(err, &ist))
	assert.Equal(t, "pending", ist.From)
	assert.Equal(t, before, steps)
}

func TestStartBeforePredecessorsFails(t *testing.T) {
	_, err := StartStep(parallelJob(), "B", t0)

	var pns *entities.PredecessorNotSatisfiedError
	require.True(t, errors.As(err, &pns))
	assert.Equal(t, []string{"A"}, pns.Blocking)
	assert.True(t, errors.Is(err, entities.ErrPredecessorNotSatisfied))
}

func TestStartStaleReadyStepChecksPredecessors(t *testing.T) {
	steps := []entities.Step{
		step("A", 1, entities.StepInProgress),
		step("B", 2, entities.StepReady),
	}
	_, err := StartStep(steps, "B", t0)
	assert.True(t, errors.Is(err, entities.ErrPredecessorNotSatisfied))
}

func TestStartMachineStepRequiresMachine(t *testing.T) {
	s := step("A", 1, entities.StepReady)
	s.MachineBased = true
	user := "u-1"
	s.AssignedUserID = &user

	_, err := StartStep([]entities.Step{s}, "A", t0)
	assert.True(t, errors.Is(err, entities.ErrValidation))

	machine := "press-4"
	s.AssignedMachineID = &machine
	out, err := StartStep([]entities.Step{s}, "A", t0)
	require.NoError(t, err)
	assert.Equal(t, entities.StepInProgress, out.Step.Status)
	assert.Equal(t, t0, *out.Step.StartedAt)
}

func TestCompleteRecordsDurationAndProduction(t *testing.T) {
	out, err := StartStep([]entities.Step{step("A", 1, entities.StepReady)}, "A", t0)
	require.NoError(t, err)

	qty := decimal.NewFromInt(500)
	out, err = CompleteStep(out.Steps, "A", CompleteInput{
		ProductionQuantity: &qty,
		ProductionUnit:     "sheets",
		ProductionNotes:    "first run",
	}, t0.Add(95*time.Minute+40*time.Second))
	require.NoError(t, err)

	s := out.Step
	assert.Equal(t, entities.StepCompleted, s.Status)
	require.NotNil(t, s.ActualDuration)
	assert.Equal(t, 95, *s.ActualDuration)
	assert.True(t, s.ProductionQuantity.Equal(qty))
	assert.Equal(t, "sheets", s.ProductionUnit)
	assert.Equal(t, t0, *s.StartedAt)
}

func TestCompleteRejectsNonPositiveProduction(t *testing.T) {
	out, err := StartStep([]entities.Step{step("A", 1, entities.StepReady)}, "A", t0)
	require.NoError(t, err)

	zero := decimal.Zero
	_, err = CompleteStep(out.Steps, "A", CompleteInput{ProductionQuantity: &zero}, t0.Add(time.Hour))
	assert.True(t, errors.Is(err, entities.ErrValidation))
}

func TestPauseAndResume(t *testing.T) {
	machine := "press-1"
	s := step("A", 1, entities.StepReady)
	s.AssignedMachineID = &machine
	out, err := StartStep([]entities.Step{s}, "A", t0)
	require.NoError(t, err)

	_, err = PauseStep(out.Steps, "A", "   ")
	assert.True(t, errors.Is(err, entities.ErrValidation), "reason is mandatory")

	paused, err := PauseStep(out.Steps, "A", "plate cracked")
	require.NoError(t, err)
	assert.Equal(t, entities.StepBlocked, paused.Step.Status)
	assert.Equal(t, "plate cracked", paused.Step.BlockReason)
	assert.Equal(t, &machine, paused.Step.AssignedMachineID)

	_, err = CompleteStep(paused.Steps, "A", CompleteInput{}, t0.Add(time.Hour))
	assert.True(t, errors.Is(err, entities.ErrInvalidStateTransition), "blocked steps resume before completing")

	resumed, err := ResumeStep(paused.Steps, "A")
	require.NoError(t, err)
	assert.Equal(t, entities.StepInProgress, resumed.Step.Status)
	assert.Equal(t, t0, *resumed.Step.StartedAt)
	assert.Empty(t, resumed.Step.BlockReason)

	_, err = ResumeStep(resumed.Steps, "A")
	assert.True(t, errors.Is(err, entities.ErrInvalidStateTransition))
}

func TestDeleteOnlyPendingOrReady(t *testing.T) {
	tests := []struct {
		status entities.StepStatus
		ok     bool
	}{
		{entities.StepPending, true},
		{entities.StepReady, true},
		{entities.StepInProgress, false},
		{entities.StepBlocked, false},
		{entities.StepCompleted, false},
		{entities.StepCanceled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			_, err := DeleteStep([]entities.Step{step("A", 1, tt.status)}, "A")
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, entities.ErrInvalidStateTransition))
			}
		})
	}
}

func TestCompletingNeverTouchesOtherSteps(t *testing.T) {
	started := t0.Add(-time.Hour)
	finished := t0.Add(-30 * time.Minute)
	other := step("X", 1, entities.StepCompleted)
	other.StartedAt = &started
	other.CompletedAt = &finished
	canceled := step("Y", 2, entities.StepCanceled)

	steps := []entities.Step{other, canceled, step("Z", 2, entities.StepReady)}
	steps = run(t, steps, "Z")

	assert.Equal(t, entities.StepCanceled, statusOf(t, steps, "Y"))
	assert.Equal(t, started, *steps[0].StartedAt)
	assert.Equal(t, finished, *steps[0].CompletedAt)
}

func TestChangedCarriesOnlyTouchedSteps(t *testing.T) {
	out, err := StartStep(parallelJob(), "A", t0)
	require.NoError(t, err)
	require.Len(t, out.Changed, 1)
	assert.Equal(t, "A", out.Changed[0].ID)
	assert.Equal(t, 1, out.Changed[0].Version)

	out, err = CompleteStep(out.Steps, "A", CompleteInput{}, t0.Add(time.Minute))
	require.NoError(t, err)
	ids := []string{}
	for _, s := range out.Changed {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)
	assert.Equal(t, []string{"B", "C"}, out.Promoted)
}

func TestAddStepAssignsInitialStatusAndDemotesSuccessors(t *testing.T) {
	steps := []entities.Step{
		step("A", 1, entities.StepCompleted),
		step("C", 3, entities.StepReady),
	}

	out, err := AddStep(steps, entities.Step{ID: "B", JobID: "JOB1", OrderIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, entities.StepReady, out.Step.Status)
	assert.Equal(t, []string{"C"}, out.Demoted)
	assert.Equal(t, entities.StepPending, statusOf(t, out.Steps, "C"))

	_, err = AddStep(out.Steps, entities.Step{ID: "B", JobID: "JOB1", OrderIndex: 4})
	assert.True(t, errors.Is(err, entities.ErrValidation))

	_, err = AddStep(out.Steps, entities.Step{ID: "E", JobID: "OTHER", OrderIndex: 4})
	assert.True(t, errors.Is(err, entities.ErrValidation))
}

func TestReviseCompletedStep(t *testing.T) {
	steps := run(t, []entities.Step{step("A", 1, entities.StepReady)}, "A")

	notes := "recounted"
	qty := decimal.NewFromInt(480)
	out, err := ReviseStep(steps, "A", RevisionInput{ProductionQuantity: &qty, ProductionNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Step.Revision)
	assert.Equal(t, "recounted", out.Step.ProductionNotes)
	assert.Equal(t, entities.StepCompleted, out.Step.Status)

	_, err = ReviseStep(steps, "A", RevisionInput{})
	assert.True(t, errors.Is(err, entities.ErrValidation))

	_, err = ReviseStep([]entities.Step{step("B", 1, entities.StepReady)}, "B", RevisionInput{ProductionNotes: &notes})
	assert.True(t, errors.Is(err, entities.ErrInvalidStateTransition))
}

func TestReadinessInvariant(t *testing.T) {
	steps := []entities.Step{
		step("A", 1, entities.StepCompleted),
		step("B", 1, entities.StepCanceled),
		step("C", 2, entities.StepPending),
		step("D", 2, entities.StepReady),
		step("E", 3, entities.StepReady),
		step("F", 5, entities.StepPending),
	}
	out, err := RecomputeReadiness(steps)
	require.NoError(t, err)

	for _, s := range out.Steps {
		if s.Status != entities.StepPending && s.Status != entities.StepReady {
			continue
		}
		want := entities.StepPending
		if len(BlockingPredecessors(out.Steps, s)) == 0 {
			want = entities.StepReady
		}
		assert.Equal(t, want, s.Status, "step %s", s.ID)
	}
	assert.Equal(t, []string{"C"}, out.Promoted)
	assert.Equal(t, []string{"E"}, out.Demoted)
}

func TestSnapshotValidation(t *testing.T) {
	mixed := []entities.Step{step("A", 1, entities.StepReady), {ID: "B", JobID: "JOB2", OrderIndex: 2, Status: entities.StepPending}}
	_, err := StartStep(mixed, "A", t0)
	assert.True(t, errors.Is(err, entities.ErrValidation))

	_, err = StartStep(parallelJob(), "missing", t0)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

func TestCohorts(t *testing.T) {
	cohorts := Cohorts(parallelJob())
	require.Len(t, cohorts, 3)
	assert.Equal(t, 2, cohorts[1].OrderIndex)
	assert.Len(t, cohorts[1].Steps, 2)
	assert.False(t, cohorts[0].Done())

	steps := run(t, parallelJob(), "A")
	assert.True(t, Cohorts(steps)[0].Done())
}
