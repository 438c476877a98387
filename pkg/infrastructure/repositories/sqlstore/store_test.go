package sqlstore

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

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(DriverSQLite, ":memory:", false)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x", false)
	assert.True(t, errors.Is(err, entities.ErrValidation))
}

func TestStore_JobAndSteps(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	job := &entities.Job{ID: "J1", Number: "JOB-001", Title: "Catalogue", Status: entities.JobActive}
	require.NoError(t, store.Jobs().CreateJob(ctx, job))

	machine := "press-2"
	for _, s := range []*entities.Step{
		{ID: "B", JobID: "J1", OrderIndex: 2, Status: entities.StepPending, ProcessName: "fold"},
		{ID: "A", JobID: "J1", OrderIndex: 1, Status: entities.StepReady, ProcessName: "print", MachineBased: true, AssignedMachineID: &machine},
	} {
		require.NoError(t, store.Steps().CreateStep(ctx, s))
	}

	steps, err := store.Steps().ListStepsByJob(ctx, "J1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "A", steps[0].ID)
	require.NotNil(t, steps[0].AssignedMachineID)
	assert.Equal(t, "press-2", *steps[0].AssignedMachineID)

	started := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	qty := decimal.RequireFromString("12.5")
	steps[0].Status = entities.StepCompleted
	steps[0].StartedAt = &started
	steps[0].ProductionQuantity = &qty
	require.NoError(t, store.Steps().SaveSteps(ctx, steps[:1]))

	got, err := store.Steps().GetStep(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, entities.StepCompleted, got.Status)
	assert.Equal(t, 2, got.Version)
	require.NotNil(t, got.ProductionQuantity)
	assert.True(t, got.ProductionQuantity.Equal(qty))
	assert.True(t, got.StartedAt.Equal(started))

	err = store.Steps().SaveSteps(ctx, steps[:1])
	assert.True(t, errors.Is(err, entities.ErrConcurrentUpdate))

	missing := entities.Step{ID: "Z", JobID: "J1", Version: 1}
	assert.True(t, errors.Is(store.Steps().SaveSteps(ctx, []entities.Step{missing}), entities.ErrNotFound))

	_, err = store.Jobs().GetJob(ctx, "nope")
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

func TestStore_AtomicRollsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Jobs().CreateJob(ctx, &entities.Job{ID: "J1", Number: "JOB-001", Title: "Flyers", Status: entities.JobActive}))

	boom := errors.New("boom")
	err := store.Atomic(ctx, func(tx repositories.Store) error {
		job, err := tx.Jobs().GetJob(ctx, "J1")
		if err != nil {
			return err
		}
		job.Status = entities.JobInProgress
		if err := tx.Jobs().SaveJob(ctx, job); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	job, err := store.Jobs().GetJob(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, entities.JobActive, job.Status)
	assert.Equal(t, 1, job.Version)
}

func TestStore_StockUpsertAndReservations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	asOf := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)

	snap := &entities.StockSnapshot{StockID: "INK", Code: "INK-C", Unit: "kg", CurrentQuantity: decimal.NewFromInt(4), AsOf: asOf}
	require.NoError(t, store.Stock().SaveSnapshot(ctx, snap))
	snap.CurrentQuantity = decimal.RequireFromString("2.25")
	require.NoError(t, store.Stock().SaveSnapshot(ctx, snap))

	all, err := store.Stock().ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].CurrentQuantity.Equal(decimal.RequireFromString("2.25")))

	r, err := entities.NewReservation("R1", "J1", "INK", decimal.NewFromInt(3), decimal.Zero, &asOf)
	require.NoError(t, err)
	require.NoError(t, store.Reservations().CreateReservation(ctx, r))
	require.NoError(t, r.Consume(decimal.NewFromInt(1)))
	require.NoError(t, store.Reservations().SaveReservation(ctx, r))

	byJob, err := store.Reservations().ListReservationsByJob(ctx, "J1")
	require.NoError(t, err)
	require.Len(t, byJob, 1)
	assert.True(t, byJob[0].UsedQuantity.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 2, byJob[0].Version)
}

func TestStore_RFQAndQuotations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	issued := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	rfq := &entities.RFQ{
		ID:       "RFQ1",
		Number:   entities.FormatRFQNumber("RFQ", 2025, 3),
		Status:   entities.RFQOpen,
		IssuedAt: issued,
		Items: []entities.RFQItem{
			{ID: "L1", StockID: "INK", Quantity: decimal.NewFromInt(10)},
			{ID: "L2", StockID: "PAPER", Quantity: decimal.NewFromInt(500)},
		},
	}
	require.NoError(t, store.RFQs().CreateRFQ(ctx, rfq))

	seq, err := store.RFQs().NextRFQSequence(ctx, "RFQ", 2025)
	require.NoError(t, err)
	assert.Equal(t, 4, seq)

	carried := &entities.RFQ{
		ID:       "RFQ0",
		Number:   entities.FormatRFQNumber("RFQ", 2025, 9),
		Status:   entities.RFQOpen,
		IssuedAt: time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC),
		Items:    []entities.RFQItem{{ID: "L0", StockID: "INK", Quantity: decimal.NewFromInt(1)}},
	}
	require.NoError(t, store.RFQs().CreateRFQ(ctx, carried))
	seq, err = store.RFQs().NextRFQSequence(ctx, "RFQ", 2025)
	require.NoError(t, err)
	assert.Equal(t, 10, seq, "a 2025 number issued in 2024 still counts for 2025")

	got, err := store.RFQs().GetRFQ(ctx, "RFQ-2025-0003")
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "RFQ1", got.Items[0].RFQID)

	q := &entities.Quotation{
		ID: "Q1", RFQID: "RFQ1", SupplierName: "Acme", Currency: "EUR",
		Items: []entities.QuotationItem{
			{ID: "QI1", RFQItemID: "L1", UnitPrice: decimal.RequireFromString("9.5"), Quantity: decimal.NewFromInt(10), LeadTimeDays: 4},
		},
	}
	require.NoError(t, store.Quotations().CreateQuotation(ctx, q))

	loaded, err := store.Quotations().GetQuotation(ctx, "Q1")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.True(t, loaded.TotalAmount.Equal(decimal.NewFromInt(95)))

	require.NoError(t, loaded.Reject(issued))
	require.NoError(t, store.Quotations().SaveQuotation(ctx, loaded))

	list, err := store.Quotations().ListQuotationsByRFQ(ctx, "RFQ1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entities.QuotationRejected, list[0].Status)
	require.Len(t, list[0].Items, 1, "saving a quotation keeps its lines")
}
