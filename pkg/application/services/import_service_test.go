package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/shopfloor/pkg/infrastructure/repositories/scenario"
)

const importScenario = `
jobs:
  - id: J1
    number: JOB-001
    title: Brochures
    status: active
    steps:
      - {id: A, process_name: print, order_index: 1}
      - {id: B, process_name: fold, order_index: 2}
stock:
  - {stock_id: PAPER, code: PAP, name: Paper, unit: kg, current_quantity: 25, reserved_quantity: 15, min_stock_level: 20}
reservations:
  - {id: R1, job_id: J1, stock_id: PAPER, quantity: 15}
rfqs:
  - items:
      - {id: L1, stock_id: PAPER, quantity: 50}
quotations:
  - rfq_id: RFQ-2025-0001
    supplier_name: Acme
    currency: EUR
    items:
      - {rfq_item_id: L1, unit_price: 2, quantity: 50}
`

func newImportService(t *testing.T) (*ImportService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewImportService(store, "", nil).WithClock(func() time.Time { return clock }), store
}

func TestImportService_Scenario(t *testing.T) {
	svc, store := newImportService(t)
	ctx := context.Background()

	doc, err := scenario.Parse(strings.NewReader(importScenario))
	require.NoError(t, err)
	summary, err := svc.ImportScenario(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Jobs)
	assert.Equal(t, 2, summary.Steps)
	assert.Equal(t, 1, summary.Stock)
	assert.Equal(t, 1, summary.Reservations)
	assert.Equal(t, 1, summary.RFQs)
	assert.Equal(t, 1, summary.Quotations)

	a, err := store.Steps().GetStep(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, entities.StepReady, a.Status, "first cohort is released on import")
	b, _ := store.Steps().GetStep(ctx, "B")
	assert.Equal(t, entities.StepPending, b.Status)

	rfq, err := store.RFQs().GetRFQ(ctx, "RFQ-2025-0001")
	require.NoError(t, err)
	assert.Equal(t, clock, rfq.IssuedAt)
	quotes, err := store.Quotations().ListQuotationsByRFQ(ctx, rfq.ID)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "100", quotes[0].TotalAmount.String())

	snap, err := store.Stock().GetSnapshot(ctx, "PAPER")
	require.NoError(t, err)
	assert.Equal(t, clock, snap.AsOf)

	exported, err := svc.Export(ctx)
	require.NoError(t, err)
	require.Len(t, exported.Jobs, 1)
	assert.Len(t, exported.Jobs[0].Steps, 2)
	assert.Len(t, exported.Quotations, 1)
}

func TestImportService_BadRecordRollsBack(t *testing.T) {
	svc, store := newImportService(t)
	ctx := context.Background()

	doc, err := scenario.Parse(strings.NewReader(importScenario))
	require.NoError(t, err)
	doc.Reservations[0].UsedQuantity = dec("16")

	_, err = svc.ImportScenario(ctx, doc)
	assert.True(t, errors.Is(err, entities.ErrValidation), "got %v", err)

	jobs, err := store.Jobs().ListJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestImportService_QuotationForUnknownLine(t *testing.T) {
	svc, _ := newImportService(t)
	doc, err := scenario.Parse(strings.NewReader(importScenario))
	require.NoError(t, err)
	doc.Quotations[0].Items[0].RFQItemID = "L9"

	_, err = svc.ImportScenario(context.Background(), doc)
	assert.True(t, errors.Is(err, entities.ErrValidation))
}

func TestImportService_StockAndReservations(t *testing.T) {
	svc, store := newImportService(t)
	ctx := context.Background()

	summary, err := svc.ImportStock(ctx, []entities.StockSnapshot{
		{StockID: "INK", CurrentQuantity: dec("3")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stock)

	_, err = svc.ImportReservations(ctx, []entities.Reservation{
		{JobID: "J9", StockID: "INK", Quantity: dec("5")},
	})
	require.NoError(t, err)
	all, err := store.Reservations().ListReservations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotEmpty(t, all[0].ID)

	_, err = svc.ImportReservations(ctx, []entities.Reservation{
		{ID: "X", JobID: "J9", StockID: "INK", Quantity: dec("0")},
	})
	assert.True(t, errors.Is(err, entities.ErrValidation))
}
