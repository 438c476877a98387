package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/shopfloor/pkg/application/dto"
	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

var generated = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func sampleNeeds() *entities.NeedsReport {
	planned := generated.Add(48 * time.Hour)
	return &entities.NeedsReport{
		GeneratedAt: generated,
		Filter:      entities.FilterAll,
		Needs: []entities.MaterialNeed{
			{
				StockID: "PAPER", StockCode: "PAP-80", StockName: "Paper 80g", Unit: "kg",
				TotalNeed: d("15"), TotalRemainingNeed: d("15"), CurrentQuantity: d("25"), ReservedQuantity: d("15"),
				AvailableQuantity: d("10"), MinStockLevel: d("20"), ProjectShortage: d("5"), BelowMinimum: d("10"),
				Shortage: d("15"), IssueType: entities.IssueBoth, SuggestedOrderQuantity: d("15"),
				ReservationCount: 1, JobCount: 1, EarliestPlannedDate: &planned,
			},
			{
				StockID: "GLUE", StockCode: "GLU", StockName: "Glue", Unit: "l",
				CurrentQuantity: d("2"), AvailableQuantity: d("2"), MinStockLevel: d("5"), BelowMinimum: d("3"),
				Shortage: d("3"), IssueType: entities.IssueStockLevel, SuggestedOrderQuantity: d("3"),
			},
		},
		Failures: []entities.ItemFailure{{StockID: "BAD", Reason: "used quantity exceeds reserved quantity"}},
	}
}

func TestRenderNeedsText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderNeeds(sampleNeeds(), Config{Format: FormatText, Out: &buf}))

	out := buf.String()
	assert.Contains(t, out, "Both: 1   Project: 0   Below minimum: 1")
	assert.Contains(t, out, "PAP-80")
	assert.Contains(t, out, "2025-03-12")
	assert.Contains(t, out, "Below minimum stock")
	assert.NotContains(t, out, "🟠")
	assert.Contains(t, out, "BAD: used quantity exceeds reserved quantity")
}

func TestRenderNeedsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderNeeds(sampleNeeds(), Config{Format: FormatCSV, Out: &buf}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "stock_id", records[0][0])
	assert.Equal(t, []string{"PAPER", "PAP-80", "Paper 80g", "kg", "both"}, records[1][:5])
	assert.Equal(t, "2025-03-12", records[1][17])
	assert.Equal(t, "", records[2][17])
}

func TestRenderNeedsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderNeeds(sampleNeeds(), Config{Format: FormatJSON, Out: &buf}))

	var decoded struct {
		Needs []struct {
			StockID   string `json:"stock_id"`
			IssueType string `json:"issue_type"`
			Suggested string `json:"suggested_order_quantity"`
		} `json:"needs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Needs, 2)
	assert.Equal(t, "both", decoded.Needs[0].IssueType)
	assert.Equal(t, "15", decoded.Needs[0].Suggested)
}

func TestRenderComparison(t *testing.T) {
	best := d("334.8")
	report := &entities.ComparisonReport{
		RFQNumber:         "RFQ-2025-0001",
		ReferenceCurrency: "TRY",
		Lines: []entities.LineComparison{{
			RFQItemID: "L1", StockID: "PAPER", RequestedQuantity: d("100"),
			Offers: []entities.LineOffer{
				{QuotationID: "Q2", SupplierName: "Bolt", Currency: "EUR", UnitPrice: d("9"), Quantity: d("100"),
					TotalPrice: d("900"), NormalizedUnitPrice: d("334.8"), NormalizedTotal: d("33480"), LeadTimeDays: 14, Best: true},
				{QuotationID: "Q1", SupplierName: "Acme", Currency: "USD", UnitPrice: d("10"), Quantity: d("100"),
					TotalPrice: d("1000"), NormalizedUnitPrice: d("345"), NormalizedTotal: d("34500"), LeadTimeDays: 7},
			},
			BestPrice:        &best,
			BestQuotationIDs: []string{"Q2"},
		}},
		Quotations: []entities.QuotationSummary{
			{QuotationID: "Q2", SupplierName: "Bolt", Status: entities.QuotationPending, NormalizedTotal: d("33480"), LinesQuoted: 1, LinesRequested: 1, Best: true},
		},
		Warnings: []string{"no exchange rate for GBP, compared at 1:1"},
	}

	var text bytes.Buffer
	require.NoError(t, RenderComparison(report, Config{Format: FormatText, Out: &text}))
	assert.Contains(t, text.String(), "334.80")
	assert.Contains(t, text.String(), "★")
	assert.Contains(t, text.String(), "no exchange rate for GBP")

	var buf bytes.Buffer
	require.NoError(t, RenderComparison(report, Config{Format: FormatCSV, Out: &buf}))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Q2", records[1][2])
	assert.Equal(t, "true", records[1][12])
	assert.Equal(t, "false", records[2][12])
}

func TestRenderStepResult(t *testing.T) {
	duration := 95
	machine := "HEIDELBERG-1"
	result := &dto.StepActionResult{
		Action: "complete",
		Step:   entities.Step{ID: "A", Status: entities.StepCompleted},
		Job:    entities.Job{Number: "JOB-001", Status: entities.JobInProgress},
		Steps: []entities.Step{
			{ID: "A", OrderIndex: 1, ProcessName: "print", Status: entities.StepCompleted, ActualDuration: &duration, AssignedMachineID: &machine},
			{ID: "B", OrderIndex: 2, IsParallel: true, ProcessName: "laminate", Status: entities.StepReady},
		},
		Promoted: []string{"B"},
		Consumed: []entities.Reservation{{ID: "R1", StockID: "INK", Quantity: d("4"), UsedQuantity: d("4")}},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderStepResult(result, Config{Format: FormatText, Out: &buf}))
	out := buf.String()
	assert.Contains(t, out, "complete A: completed (job JOB-001 is in_progress)")
	assert.Contains(t, out, "now ready: B")
	assert.Contains(t, out, "consumed 4/4 of INK (reservation R1, fully_used)")
	assert.Contains(t, out, "95m")
	assert.Contains(t, out, "HEIDELBERG-1")

	buf.Reset()
	require.NoError(t, RenderStepResult(result, Config{Format: FormatCSV, Out: &buf}))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	err := RenderNeeds(sampleNeeds(), Config{Format: "xml", Out: &buf})
	assert.True(t, errors.Is(err, entities.ErrValidation))
	assert.NoError(t, ValidateFormat(FormatCSV))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Kağıt…", truncate("Kağıt 80 gr", 6))
}
