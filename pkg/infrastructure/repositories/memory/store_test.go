package memory

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
)

func seedJob(t *testing.T, store *Store) *entities.Job {
	t.Helper()
	job := &entities.Job{ID: "J1", Number: "JOB-001", Title: "Brochure run", Status: entities.JobActive}
	require.NoError(t, store.Jobs().CreateJob(context.Background(), job))
	return job
}

func TestJobRepository_SaveChecksVersion(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	job := seedJob(t, store)
	assert.Equal(t, 1, job.Version)

	stale := *job
	job.Status = entities.JobInProgress
	require.NoError(t, store.Jobs().SaveJob(ctx, job))
	assert.Equal(t, 2, job.Version)

	stale.Status = entities.JobOnHold
	err := store.Jobs().SaveJob(ctx, &stale)
	assert.True(t, errors.Is(err, entities.ErrConcurrentUpdate))

	got, err := store.Jobs().GetJob(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, entities.JobInProgress, got.Status)

	_, err = store.Jobs().GetJob(ctx, "nope")
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	dup := &entities.Job{ID: "J2", Number: "JOB-001", Title: "Copy"}
	assert.True(t, errors.Is(store.Jobs().CreateJob(ctx, dup), entities.ErrValidation))
}

func TestStepRepository_SaveStepsIsAllOrNothing(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedJob(t, store)

	a := &entities.Step{ID: "A", JobID: "J1", OrderIndex: 1, Status: entities.StepReady}
	b := &entities.Step{ID: "B", JobID: "J1", OrderIndex: 2, Status: entities.StepPending}
	require.NoError(t, store.Steps().CreateStep(ctx, b))
	require.NoError(t, store.Steps().CreateStep(ctx, a))

	orphan := &entities.Step{ID: "X", JobID: "missing", OrderIndex: 1}
	assert.True(t, errors.Is(store.Steps().CreateStep(ctx, orphan), entities.ErrNotFound))

	steps, err := store.Steps().ListStepsByJob(ctx, "J1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "A", steps[0].ID)

	steps[0].Status = entities.StepInProgress
	stale := steps[1]
	stale.Version = 7
	err = store.Steps().SaveSteps(ctx, []entities.Step{steps[0], stale})
	assert.True(t, errors.Is(err, entities.ErrConcurrentUpdate))

	got, err := store.Steps().GetStep(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, entities.StepReady, got.Status, "no step written when one is stale")
	assert.Equal(t, 1, got.Version)

	require.NoError(t, store.Steps().SaveSteps(ctx, steps))
	got, _ = store.Steps().GetStep(ctx, "A")
	assert.Equal(t, entities.StepInProgress, got.Status)
	assert.Equal(t, 2, got.Version)
}

func TestStore_AtomicRollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedJob(t, store)

	boom := errors.New("boom")
	err := store.Atomic(ctx, func(tx repositories.Store) error {
		job, err := tx.Jobs().GetJob(ctx, "J1")
		require.NoError(t, err)
		job.Status = entities.JobCanceled
		require.NoError(t, tx.Jobs().SaveJob(ctx, job))
		require.NoError(t, tx.Stock().SaveSnapshot(ctx, &entities.StockSnapshot{StockID: "PAPER"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	job, err := store.Jobs().GetJob(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, entities.JobActive, job.Status)
	_, err = store.Stock().GetSnapshot(ctx, "PAPER")
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	err = store.Atomic(ctx, func(tx repositories.Store) error {
		return tx.Stock().SaveSnapshot(ctx, &entities.StockSnapshot{StockID: "PAPER", CurrentQuantity: decimal.NewFromInt(3)})
	})
	require.NoError(t, err)
	snap, err := store.Stock().GetSnapshot(ctx, "PAPER")
	require.NoError(t, err)
	assert.True(t, snap.CurrentQuantity.Equal(decimal.NewFromInt(3)))
}

func TestReservationRepository(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	r, err := entities.NewReservation("R1", "J1", "INK", decimal.NewFromInt(5), decimal.Zero, nil)
	require.NoError(t, err)
	require.NoError(t, store.Reservations().CreateReservation(ctx, r))
	other, _ := entities.NewReservation("R2", "J2", "INK", decimal.NewFromInt(1), decimal.Zero, nil)
	require.NoError(t, store.Reservations().CreateReservation(ctx, other))

	mine, err := store.Reservations().ListReservationsByJob(ctx, "J1")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	res := mine[0]
	require.NoError(t, res.Consume(decimal.NewFromInt(2)))
	require.NoError(t, store.Reservations().SaveReservation(ctx, &res))
	assert.Equal(t, 2, res.Version)

	all, _ := store.Reservations().ListReservations(ctx)
	require.Len(t, all, 2)
	assert.True(t, all[0].UsedQuantity.Equal(decimal.NewFromInt(2)))
}

func TestProcurementRepositories(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	issued := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

	seq, err := store.RFQs().NextRFQSequence(ctx, "RFQ", 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	rfq := &entities.RFQ{
		ID:       "RFQ1",
		Number:   entities.FormatRFQNumber("RFQ", 2025, 7),
		Status:   entities.RFQOpen,
		IssuedAt: issued,
		Items:    []entities.RFQItem{{ID: "L1", RFQID: "RFQ1", StockID: "INK", Quantity: decimal.NewFromInt(10)}},
	}
	require.NoError(t, store.RFQs().CreateRFQ(ctx, rfq))

	seq, _ = store.RFQs().NextRFQSequence(ctx, "RFQ", 2025)
	assert.Equal(t, 8, seq)
	seq, _ = store.RFQs().NextRFQSequence(ctx, "RFQ", 2026)
	assert.Equal(t, 1, seq)
	seq, _ = store.RFQs().NextRFQSequence(ctx, "PR", 2025)
	assert.Equal(t, 1, seq, "other prefixes keep their own sequence")

	byNumber, err := store.RFQs().GetRFQ(ctx, "RFQ-2025-0007")
	require.NoError(t, err)
	assert.Equal(t, "RFQ1", byNumber.ID)
	byNumber.Items[0].Quantity = decimal.NewFromInt(99)
	again, _ := store.RFQs().GetRFQ(ctx, "RFQ1")
	assert.True(t, again.Items[0].Quantity.Equal(decimal.NewFromInt(10)), "callers get copies")

	q := &entities.Quotation{
		ID: "Q1", RFQID: "RFQ1", SupplierName: "Acme", Currency: "USD",
		Items: []entities.QuotationItem{{ID: "QI1", QuotationID: "Q1", RFQItemID: "L1", UnitPrice: decimal.NewFromInt(3), Quantity: decimal.NewFromInt(10)}},
	}
	require.NoError(t, store.Quotations().CreateQuotation(ctx, q))
	assert.True(t, q.TotalAmount.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, entities.QuotationPending, q.Status)

	orphan := &entities.Quotation{ID: "Q2", RFQID: "missing", Currency: "USD"}
	assert.True(t, errors.Is(store.Quotations().CreateQuotation(ctx, orphan), entities.ErrNotFound))

	stale := *q
	require.NoError(t, q.Accept(issued))
	require.NoError(t, store.Quotations().SaveQuotation(ctx, q))
	require.NoError(t, stale.Reject(issued))
	assert.True(t, errors.Is(store.Quotations().SaveQuotation(ctx, &stale), entities.ErrConcurrentUpdate))

	list, err := store.Quotations().ListQuotationsByRFQ(ctx, "RFQ1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entities.QuotationAccepted, list[0].Status)
}

func TestNextRFQSequence_FollowsNumberNotIssueDate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	// numbered for 2025 but issued on the last days of 2024
	late := &entities.RFQ{
		ID:       "RFQ0",
		Number:   "RFQ-2025-0001",
		Status:   entities.RFQOpen,
		IssuedAt: time.Date(2024, 12, 30, 16, 0, 0, 0, time.UTC),
		Items:    []entities.RFQItem{{ID: "L0", RFQID: "RFQ0", StockID: "INK", Quantity: decimal.NewFromInt(1)}},
	}
	require.NoError(t, store.RFQs().CreateRFQ(ctx, late))

	tests := []struct {
		name   string
		prefix string
		year   int
		want   int
	}{
		{"same stem", "RFQ", 2025, 2},
		{"issue year", "RFQ", 2024, 1},
		{"other prefix", "PR", 2025, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := store.RFQs().NextRFQSequence(ctx, tt.prefix, tt.year)
			require.NoError(t, err)
			assert.Equal(t, tt.want, seq)
		})
	}
}
