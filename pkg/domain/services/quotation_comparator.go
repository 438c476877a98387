package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// ComparatorConfig holds tuning for quotation comparison
type ComparatorConfig struct {
	// MaxRateAge flags exchange-rate tables older than this as stale (0 disables)
	MaxRateAge time.Duration
}

// QuotationComparator normalizes supplier quotations to one reference
// currency and picks the best offers. Rates are read from the table passed
// to each call and never cached.
type QuotationComparator struct {
	config ComparatorConfig
	logger *zap.SugaredLogger
}

// NewQuotationComparator creates a comparator; a nil logger discards output
func NewQuotationComparator(config ComparatorConfig, logger *zap.SugaredLogger) *QuotationComparator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &QuotationComparator{config: config, logger: logger}
}

// Compare builds the comparison report for one RFQ. Withdrawn quotations and
// quotations for other RFQs are left out; rejected ones are listed but never
// flagged best. Ties are all flagged best.
func (c *QuotationComparator) Compare(
	rfq entities.RFQ,
	quotations []entities.Quotation,
	rates entities.RateTable,
	now time.Time,
) (*entities.ComparisonReport, error) {
	if rates.Reference == "" {
		return nil, entities.NewValidationError("reference", "reference currency cannot be empty")
	}

	report := &entities.ComparisonReport{
		RFQID:             rfq.ID,
		RFQNumber:         rfq.Number,
		ReferenceCurrency: rates.Reference,
		GeneratedAt:       now,
		Lines:             make([]entities.LineComparison, 0, len(rfq.Items)),
		Quotations:        []entities.QuotationSummary{},
	}
	if w := entities.CheckStaleness("exchange_rates", rates.Reference, rates.AsOf, now, c.config.MaxRateAge); w != nil {
		report.StaleRates = w
		report.Warnings = append(report.Warnings, w.Error())
		c.logger.Warnw("comparing with stale exchange rates", "rfq_id", rfq.ID, "as_of", rates.AsOf, "max_age", c.config.MaxRateAge)
	}

	lineIndex := make(map[string]int, len(rfq.Items))
	for i, item := range rfq.Items {
		lineIndex[item.ID] = i
		report.Lines = append(report.Lines, entities.LineComparison{
			RFQItemID:         item.ID,
			StockID:           item.StockID,
			RequestedQuantity: item.Quantity,
			Offers:            []entities.LineOffer{},
		})
	}

	unknown := make(map[string]bool)
	ordered := make([]entities.Quotation, len(quotations))
	copy(ordered, quotations)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for qi := range ordered {
		q := &ordered[qi]
		if q.RFQID != rfq.ID {
			report.Warnings = append(report.Warnings, fmt.Sprintf("quotation %s belongs to rfq %s", q.ID, q.RFQID))
			continue
		}
		if q.IsWithdrawn() {
			continue
		}

		status := q.EffectiveStatus(now)
		summary := entities.QuotationSummary{
			QuotationID:     q.ID,
			SupplierName:    q.SupplierName,
			Currency:        entities.NormalizeCurrency(q.Currency),
			Status:          status,
			NativeTotals:    make(map[string]decimal.Decimal),
			NormalizedTotal: decimal.Zero,
			LinesRequested:  len(rfq.Items),
			Excluded:        status == entities.QuotationRejected,
		}
		quoted := make(map[string]bool)

		for ii := range q.Items {
			item := &q.Items[ii]
			li, ok := lineIndex[item.RFQItemID]
			if !ok {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("quotation %s line %s references no line of rfq %s", q.ID, item.ID, rfq.Number))
				continue
			}

			currency := item.EffectiveCurrency(q)
			rate, known := rates.Rate(currency)
			if !known && !unknown[currency] {
				unknown[currency] = true
				c.logger.Warnw("no exchange rate for currency, comparing at 1:1",
					"currency", currency, "reference", rates.Reference, "rfq_id", rfq.ID)
			}

			total := item.TotalPrice()
			offer := entities.LineOffer{
				QuotationID:         q.ID,
				SupplierName:        q.SupplierName,
				Currency:            currency,
				UnitPrice:           item.UnitPrice,
				Quantity:            item.Quantity,
				TotalPrice:          total,
				NormalizedUnitPrice: item.UnitPrice.Mul(rate),
				NormalizedTotal:     total.Mul(rate),
				LeadTimeDays:        item.LeadTimeDays,
				Excluded:            summary.Excluded,
			}
			report.Lines[li].Offers = append(report.Lines[li].Offers, offer)

			summary.NativeTotals[currency] = summary.NativeTotals[currency].Add(total)
			summary.NormalizedTotal = summary.NormalizedTotal.Add(offer.NormalizedTotal)
			if len(quoted) == 0 || item.LeadTimeDays < summary.MinLeadTimeDays {
				summary.MinLeadTimeDays = item.LeadTimeDays
			}
			if item.LeadTimeDays > summary.MaxLeadTimeDays {
				summary.MaxLeadTimeDays = item.LeadTimeDays
			}
			quoted[item.RFQItemID] = true
		}
		summary.LinesQuoted = len(quoted)
		report.Quotations = append(report.Quotations, summary)
	}

	for i := range report.Lines {
		markBestOffers(&report.Lines[i])
	}
	markBestQuotations(report)

	for cur := range unknown {
		report.UnknownCurrencies = append(report.UnknownCurrencies, cur)
	}
	sort.Strings(report.UnknownCurrencies)
	for _, cur := range report.UnknownCurrencies {
		report.Warnings = append(report.Warnings, fmt.Sprintf("no exchange rate for %s, compared at 1:1", cur))
	}

	return report, nil
}

func markBestOffers(line *entities.LineComparison) {
	sort.SliceStable(line.Offers, func(i, j int) bool {
		a, b := line.Offers[i], line.Offers[j]
		if a.Excluded != b.Excluded {
			return !a.Excluded
		}
		if cmp := a.NormalizedUnitPrice.Cmp(b.NormalizedUnitPrice); cmp != 0 {
			return cmp < 0
		}
		if a.SupplierName != b.SupplierName {
			return a.SupplierName < b.SupplierName
		}
		return a.QuotationID < b.QuotationID
	})

	var best *decimal.Decimal
	for _, o := range line.Offers {
		if o.Excluded {
			continue
		}
		if best == nil || o.NormalizedUnitPrice.LessThan(*best) {
			p := o.NormalizedUnitPrice
			best = &p
		}
	}
	if best == nil {
		return
	}
	line.BestPrice = best
	for i := range line.Offers {
		o := &line.Offers[i]
		if !o.Excluded && o.NormalizedUnitPrice.Equal(*best) {
			o.Best = true
			line.BestQuotationIDs = append(line.BestQuotationIDs, o.QuotationID)
		}
	}
	sort.Strings(line.BestQuotationIDs)
}

// markBestQuotations flags the lowest normalized total among quotations that
// priced at least one line. Missing lines are not penalized.
func markBestQuotations(report *entities.ComparisonReport) {
	var best *decimal.Decimal
	for _, s := range report.Quotations {
		if s.Excluded || s.LinesQuoted == 0 {
			continue
		}
		if best == nil || s.NormalizedTotal.LessThan(*best) {
			t := s.NormalizedTotal
			best = &t
		}
	}
	if best != nil {
		report.BestTotal = best
		for i := range report.Quotations {
			s := &report.Quotations[i]
			if !s.Excluded && s.LinesQuoted > 0 && s.NormalizedTotal.Equal(*best) {
				s.Best = true
				report.BestQuotationIDs = append(report.BestQuotationIDs, s.QuotationID)
			}
		}
	}

	sort.SliceStable(report.Quotations, func(i, j int) bool {
		a, b := report.Quotations[i], report.Quotations[j]
		if a.Excluded != b.Excluded {
			return !a.Excluded
		}
		if cmp := a.NormalizedTotal.Cmp(b.NormalizedTotal); cmp != 0 {
			return cmp < 0
		}
		return a.QuotationID < b.QuotationID
	})
	sort.Strings(report.BestQuotationIDs)
}
