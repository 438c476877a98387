package services

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	domain "github.com/vsinha/shopfloor/pkg/domain/services"
	"github.com/vsinha/shopfloor/pkg/infrastructure/events"
	"github.com/vsinha/shopfloor/pkg/infrastructure/repositories/memory"
)

func TestJobService_Lifecycle(t *testing.T) {
	store := memory.NewStore()
	seedParallelJob(t, store, entities.JobDraft)
	ev := events.NewInMemoryEventStore(nil)
	jobs := NewJobService(store, ev, nil).WithClock(func() time.Time { return clock })
	ctx := context.Background()

	job, err := jobs.Activate(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, entities.JobActive, job.Status)

	job, err = jobs.Hold(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, entities.JobOnHold, job.Status)

	_, err = jobs.Hold(ctx, "J1")
	assert.True(t, errors.Is(err, entities.ErrInvalidStateTransition))

	job, err = jobs.Resume(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, entities.JobActive, job.Status)

	_, err = jobs.Complete(ctx, "J1")
	assert.True(t, errors.Is(err, entities.ErrInvalidStateTransition), "open steps block completion")

	changes, _ := ev.ReadEvents("J1", 0)
	assert.Len(t, changes, 3)
}

func TestJobService_CompleteAfterAllSteps(t *testing.T) {
	store := memory.NewStore()
	seedParallelJob(t, store, entities.JobActive)
	steps := NewStepService(store, nil, nil).WithClock(func() time.Time { return clock })
	jobs := NewJobService(store, nil, nil)
	ctx := context.Background()

	for _, id := range []string{"A", "B", "C", "D"} {
		_, err := steps.Start(ctx, id)
		require.NoError(t, err, id)
		_, err = steps.Complete(ctx, id, domain.CompleteInput{})
		require.NoError(t, err, id)
	}

	job, err := jobs.Complete(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, entities.JobCompleted, job.Status)

	_, err = steps.AddStep(ctx, entities.Step{JobID: "J1", OrderIndex: 9})
	assert.True(t, errors.Is(err, entities.ErrInvalidStateTransition))
}

func TestJobService_CancelReleasesReservations(t *testing.T) {
	store := memory.NewStore()
	seedParallelJob(t, store, entities.JobActive)
	steps := NewStepService(store, nil, nil).WithClock(func() time.Time { return clock })
	jobs := NewJobService(store, nil, nil).WithClock(func() time.Time { return clock })
	ctx := context.Background()

	_, err := steps.Start(ctx, "A")
	require.NoError(t, err)
	_, err = steps.Complete(ctx, "A", domain.CompleteInput{
		Consumptions: []domain.Consumption{{StockID: "INK", Quantity: dec("4")}},
	})
	require.NoError(t, err)

	job, err := jobs.Cancel(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, entities.JobCanceled, job.Status)

	reservations, err := store.Reservations().ListReservationsByJob(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, entities.ReservationFullyUsed, reservations[0].Status())
	assert.Equal(t, entities.ReservationCanceled, reservations[1].Status())
	assert.Equal(t, clock, *reservations[1].CanceledAt)

	_, err = jobs.Cancel(ctx, "J1")
	assert.True(t, errors.Is(err, entities.ErrInvalidStateTransition))
	_, err = jobs.Hold(ctx, "missing")
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}
