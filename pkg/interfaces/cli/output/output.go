package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/application/dto"
	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/infrastructure/events"
)

// Formats understood by every renderer
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Config holds configuration for output generation
type Config struct {
	Format string
	Out    io.Writer
}

// ValidateFormat rejects unknown formats before any work is done
func ValidateFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatCSV:
		return nil
	}
	return entities.NewValidationError("format", "unsupported output format: %s (expected text, json or csv)", format)
}

// RenderNeeds writes a needs report
func RenderNeeds(report *entities.NeedsReport, config Config) error {
	switch config.Format {
	case FormatText:
		return needsText(report, config.Out)
	case FormatJSON:
		return writeJSON(config.Out, report)
	case FormatCSV:
		return needsCSV(report, config.Out)
	}
	return ValidateFormat(config.Format)
}

// RenderComparison writes a quotation comparison
func RenderComparison(report *entities.ComparisonReport, config Config) error {
	switch config.Format {
	case FormatText:
		return comparisonText(report, config.Out)
	case FormatJSON:
		return writeJSON(config.Out, report)
	case FormatCSV:
		return comparisonCSV(report, config.Out)
	}
	return ValidateFormat(config.Format)
}

// RenderSteps writes a job's steps in order
func RenderSteps(steps []entities.Step, config Config) error {
	switch config.Format {
	case FormatText:
		return stepsText(steps, config.Out)
	case FormatJSON:
		return writeJSON(config.Out, steps)
	case FormatCSV:
		return stepsCSV(steps, config.Out)
	}
	return ValidateFormat(config.Format)
}

// RenderStepResult writes the outcome of a step action followed by the
// job's steps
func RenderStepResult(result *dto.StepActionResult, config Config) error {
	if config.Format != FormatText {
		if config.Format == FormatJSON {
			return writeJSON(config.Out, result)
		}
		return RenderSteps(result.Steps, config)
	}

	w := config.Out
	fmt.Fprintf(w, "✅ %s %s: %s (job %s is %s)\n", result.Action, result.Step.ID, result.Step.Status, result.Job.Number, result.Job.Status)
	if len(result.Promoted) > 0 {
		fmt.Fprintf(w, "   now ready: %s\n", strings.Join(result.Promoted, ", "))
	}
	if len(result.Demoted) > 0 {
		fmt.Fprintf(w, "   back to pending: %s\n", strings.Join(result.Demoted, ", "))
	}
	for _, r := range result.Consumed {
		fmt.Fprintf(w, "   consumed %s/%s of %s (reservation %s, %s)\n",
			qty(r.UsedQuantity), qty(r.Quantity), r.StockID, r.ID, r.Status())
	}
	fmt.Fprintln(w)
	return stepsText(result.Steps, w)
}

// RenderRFQ writes a created RFQ
func RenderRFQ(rfq *entities.RFQ, config Config) error {
	if config.Format == FormatJSON {
		return writeJSON(config.Out, rfq)
	}
	w := config.Out
	fmt.Fprintf(w, "📨 %s issued %s (%d lines)\n", rfq.Number, rfq.IssuedAt.Format("2006-01-02"), len(rfq.Items))
	fmt.Fprintf(w, "%-36s %-15s %12s\n", "Line", "Stock", "Quantity")
	fmt.Fprintf(w, "%-36s %-15s %12s\n", strings.Repeat("-", 36), strings.Repeat("-", 15), strings.Repeat("-", 12))
	for _, item := range rfq.Items {
		fmt.Fprintf(w, "%-36s %-15s %12s\n", item.ID, item.StockID, qty(item.Quantity))
	}
	return nil
}

// RenderQuotation writes a quotation after a decision
func RenderQuotation(q *entities.Quotation, config Config) error {
	if config.Format == FormatJSON {
		return writeJSON(config.Out, q)
	}
	fmt.Fprintf(config.Out, "Quotation %s from %s: %s (%s %s)\n",
		q.ID, q.SupplierName, q.Status, money(q.TotalAmount), q.Currency)
	return nil
}

// RenderJobs writes one line per job
func RenderJobs(jobs []*entities.Job, config Config) error {
	switch config.Format {
	case FormatJSON:
		return writeJSON(config.Out, jobs)
	case FormatCSV:
		rows := make([][]string, 0, len(jobs))
		for _, j := range jobs {
			rows = append(rows, []string{
				j.ID, j.Number, j.Title, string(j.Status), strconv.Itoa(j.Priority),
				strings.TrimPrefix(date(j.DueDate), "-"),
			})
		}
		return writeCSV(config.Out, []string{"job_id", "number", "title", "status", "priority", "due_date"}, rows)
	case FormatText:
		w := config.Out
		fmt.Fprintf(w, "%-15s %-30s %-12s %8s %-10s\n", "Number", "Title", "Status", "Priority", "Due")
		fmt.Fprintf(w, "%-15s %-30s %-12s %8s %-10s\n", dash(15), dash(30), dash(12), dash(8), dash(10))
		for _, j := range jobs {
			fmt.Fprintf(w, "%-15s %-30s %-12s %8d %-10s\n",
				truncate(j.Number, 15), truncate(j.Title, 30), j.Status, j.Priority, date(j.DueDate))
		}
		return nil
	}
	return ValidateFormat(config.Format)
}

// RenderJob writes a job after a status change
func RenderJob(job *entities.Job, config Config) error {
	if config.Format == FormatText {
		fmt.Fprintf(config.Out, "Job %s (%s): %s\n", job.Number, job.ID, job.Status)
		return nil
	}
	return RenderJobs([]*entities.Job{job}, config)
}

// RenderEvents writes the domain events a command emitted, oldest first
func RenderEvents(evs []events.Event, config Config) error {
	switch config.Format {
	case FormatJSON:
		return writeJSON(config.Out, evs)
	case FormatCSV:
		rows := make([][]string, 0, len(evs))
		for _, e := range evs {
			rows = append(rows, []string{
				e.Timestamp().Format(time.RFC3339), e.StreamID(), strconv.Itoa(e.Version()), e.Type(),
			})
		}
		return writeCSV(config.Out, []string{"time", "stream", "version", "type"}, rows)
	case FormatText:
		w := config.Out
		fmt.Fprintf(w, "📣 Events (%d)\n", len(evs))
		for _, e := range evs {
			fmt.Fprintf(w, "  %s  %-36s v%-3d %s\n",
				e.Timestamp().Format(time.RFC3339), truncate(e.StreamID(), 36), e.Version(), e.Type())
		}
		return nil
	}
	return ValidateFormat(config.Format)
}

// RenderImport writes an import summary
func RenderImport(summary *dto.ImportSummary, config Config) error {
	if config.Format == FormatJSON {
		return writeJSON(config.Out, summary)
	}
	fmt.Fprintf(config.Out, "📥 Imported: %d jobs, %d steps, %d reservations, %d stock items, %d RFQs, %d quotations\n",
		summary.Jobs, summary.Steps, summary.Reservations, summary.Stock, summary.RFQs, summary.Quotations)
	return nil
}

func needsText(report *entities.NeedsReport, w io.Writer) error {
	counts := report.Counts()
	fmt.Fprintf(w, "📊 Material Needs (%s)\n", report.Filter)
	fmt.Fprintf(w, "======================\n\n")
	fmt.Fprintf(w, "Generated: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Both: %d   Project: %d   Below minimum: %d\n\n",
		counts[entities.IssueBoth], counts[entities.IssueProject], counts[entities.IssueStockLevel])

	sections := []struct {
		issue entities.IssueType
		title string
	}{
		{entities.IssueBoth, "🔴 Project shortage and below minimum"},
		{entities.IssueProject, "🟠 Project shortage"},
		{entities.IssueStockLevel, "🟡 Below minimum stock"},
	}
	for _, sec := range sections {
		needs := report.Bucket(sec.issue)
		if len(needs) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", sec.title)
		fmt.Fprintf(w, "%-12s %-24s %10s %10s %10s %10s %10s %10s %-12s\n",
			"Code", "Name", "Remaining", "Available", "On Order", "Project", "Below Min", "Suggested", "Earliest")
		fmt.Fprintf(w, "%-12s %-24s %10s %10s %10s %10s %10s %10s %-12s\n",
			dash(12), dash(24), dash(10), dash(10), dash(10), dash(10), dash(10), dash(10), dash(12))
		for _, n := range needs {
			fmt.Fprintf(w, "%-12s %-24s %10s %10s %10s %10s %10s %10s %-12s\n",
				truncate(n.StockCode, 12),
				truncate(n.StockName, 24),
				qty(n.TotalRemainingNeed),
				qty(n.AvailableQuantity),
				qty(n.OnOrderQuantity),
				qty(n.ProjectShortage),
				qty(n.BelowMinimum),
				qty(n.SuggestedOrderQuantity),
				date(n.EarliestPlannedDate))
		}
		fmt.Fprintln(w)
	}
	if len(report.Needs) == 0 {
		fmt.Fprintf(w, "No material needs.\n\n")
	}

	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "⚠️  %s\n", warn.Error())
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w, "❌ %s: %s\n", f.StockID, f.Reason)
	}
	return nil
}

func needsCSV(report *entities.NeedsReport, w io.Writer) error {
	header := []string{
		"stock_id", "code", "name", "unit", "issue_type",
		"total_need", "remaining_need", "current_quantity", "reserved_quantity", "available_quantity",
		"on_order_quantity", "min_stock_level", "project_shortage", "below_minimum", "suggested_order_quantity",
		"reservations", "jobs", "earliest_planned_date",
	}
	rows := make([][]string, 0, len(report.Needs))
	for _, n := range report.Needs {
		rows = append(rows, []string{
			string(n.StockID), n.StockCode, n.StockName, n.Unit, string(n.IssueType),
			n.TotalNeed.String(), n.TotalRemainingNeed.String(), n.CurrentQuantity.String(),
			n.ReservedQuantity.String(), n.AvailableQuantity.String(), n.OnOrderQuantity.String(),
			n.MinStockLevel.String(), n.ProjectShortage.String(), n.BelowMinimum.String(),
			n.SuggestedOrderQuantity.String(),
			strconv.Itoa(n.ReservationCount), strconv.Itoa(n.JobCount), strings.TrimPrefix(date(n.EarliestPlannedDate), "-"),
		})
	}
	return writeCSV(w, header, rows)
}

func comparisonText(report *entities.ComparisonReport, w io.Writer) error {
	fmt.Fprintf(w, "💱 Quotation Comparison %s (reference %s)\n", report.RFQNumber, report.ReferenceCurrency)
	fmt.Fprintf(w, "======================\n\n")

	for _, line := range report.Lines {
		fmt.Fprintf(w, "📦 %s x %s\n", line.StockID, qty(line.RequestedQuantity))
		if len(line.Offers) == 0 {
			fmt.Fprintf(w, "   no offers\n\n")
			continue
		}
		fmt.Fprintf(w, "   %-2s %-20s %-4s %12s %14s %16s %6s\n",
			"", "Supplier", "Cur", "Unit", "Unit (ref)", "Total (ref)", "Days")
		for _, o := range line.Offers {
			mark := ""
			switch {
			case o.Best:
				mark = "★"
			case o.Excluded:
				mark = "✗"
			}
			fmt.Fprintf(w, "   %-2s %-20s %-4s %12s %14s %16s %6d\n",
				mark,
				truncate(o.SupplierName, 20),
				o.Currency,
				money(o.UnitPrice),
				money(o.NormalizedUnitPrice),
				money(o.NormalizedTotal),
				o.LeadTimeDays)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "📋 Quotations:\n")
	fmt.Fprintf(w, "%-2s %-20s %-9s %16s %8s %10s\n", "", "Supplier", "Status", "Total (ref)", "Lines", "Lead")
	fmt.Fprintf(w, "%-2s %-20s %-9s %16s %8s %10s\n", "", dash(20), dash(9), dash(16), dash(8), dash(10))
	for _, q := range report.Quotations {
		mark := ""
		if q.Best {
			mark = "★"
		}
		fmt.Fprintf(w, "%-2s %-20s %-9s %16s %8s %10s\n",
			mark,
			truncate(q.SupplierName, 20),
			q.Status,
			money(q.NormalizedTotal),
			fmt.Sprintf("%d/%d", q.LinesQuoted, q.LinesRequested),
			fmt.Sprintf("%d-%dd", q.MinLeadTimeDays, q.MaxLeadTimeDays))
	}
	if report.BestTotal != nil {
		fmt.Fprintf(w, "\nBest total: %s %s\n", money(*report.BestTotal), report.ReferenceCurrency)
	}
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "⚠️  %s\n", warn)
	}
	return nil
}

func comparisonCSV(report *entities.ComparisonReport, w io.Writer) error {
	header := []string{
		"rfq_item_id", "stock_id", "quotation_id", "supplier", "currency",
		"unit_price", "quantity", "total_price", "normalized_unit_price", "normalized_total",
		"lead_time_days", "excluded", "best",
	}
	var rows [][]string
	for _, line := range report.Lines {
		for _, o := range line.Offers {
			rows = append(rows, []string{
				line.RFQItemID, string(line.StockID), o.QuotationID, o.SupplierName, o.Currency,
				o.UnitPrice.String(), o.Quantity.String(), o.TotalPrice.String(),
				o.NormalizedUnitPrice.String(), o.NormalizedTotal.String(),
				strconv.Itoa(o.LeadTimeDays), strconv.FormatBool(o.Excluded), strconv.FormatBool(o.Best),
			})
		}
	}
	return writeCSV(w, header, rows)
}

func stepsText(steps []entities.Step, w io.Writer) error {
	fmt.Fprintf(w, "%-5s %-36s %-20s %-12s %-10s %-12s\n", "Order", "Step", "Process", "Status", "Duration", "Machine")
	fmt.Fprintf(w, "%-5s %-36s %-20s %-12s %-10s %-12s\n", dash(5), dash(36), dash(20), dash(12), dash(10), dash(12))
	for _, s := range steps {
		duration := "-"
		if s.ActualDuration != nil {
			duration = fmt.Sprintf("%dm", *s.ActualDuration)
		}
		machine := "-"
		if s.HasMachine() {
			machine = *s.AssignedMachineID
		}
		order := strconv.Itoa(s.OrderIndex)
		if s.IsParallel {
			order += "∥"
		}
		fmt.Fprintf(w, "%-5s %-36s %-20s %-12s %-10s %-12s\n",
			order, s.ID, truncate(s.ProcessName, 20), s.Status, duration, machine)
	}
	return nil
}

func stepsCSV(steps []entities.Step, w io.Writer) error {
	header := []string{"step_id", "job_id", "order_index", "is_parallel", "process_name", "status", "actual_duration", "production_quantity", "block_reason"}
	rows := make([][]string, 0, len(steps))
	for _, s := range steps {
		duration, produced := "", ""
		if s.ActualDuration != nil {
			duration = strconv.Itoa(*s.ActualDuration)
		}
		if s.ProductionQuantity != nil {
			produced = s.ProductionQuantity.String()
		}
		rows = append(rows, []string{
			s.ID, s.JobID, strconv.Itoa(s.OrderIndex), strconv.FormatBool(s.IsParallel),
			s.ProcessName, string(s.Status), duration, produced, s.BlockReason,
		})
	}
	return writeCSV(w, header, rows)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "marshal JSON")
	}
	return nil
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write CSV header")
	}
	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(err, "write CSV rows")
	}
	return nil
}

// qty trims trailing zeros; money keeps two places
func qty(d decimal.Decimal) string {
	return d.String()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func date(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func dash(n int) string {
	return strings.Repeat("-", n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
