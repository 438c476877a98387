package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// ReconcilerConfig holds tuning for the material requirements reconciler
type ReconcilerConfig struct {
	// MaxSnapshotAge flags stock snapshots older than this as stale (0 disables)
	MaxSnapshotAge time.Duration
}

// Reconciler turns reservations, stock snapshots and on-order quantities
// into a shortage report. It never mutates its inputs and keeps no state
// between runs.
type Reconciler struct {
	config ReconcilerConfig
	logger *zap.SugaredLogger
}

// NewReconciler creates a reconciler; a nil logger discards output
func NewReconciler(config ReconcilerConfig, logger *zap.SugaredLogger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Reconciler{config: config, logger: logger}
}

type itemDemand struct {
	reservations []entities.Reservation
	err          error
}

// Reconcile computes the needs report. A bad input for one stock item is
// recorded as a failure for that item and never aborts the others.
func (r *Reconciler) Reconcile(
	reservations []entities.Reservation,
	stock []entities.StockSnapshot,
	filter entities.NeedsFilter,
	now time.Time,
) *entities.NeedsReport {
	if filter == "" {
		filter = entities.FilterAll
	}
	report := &entities.NeedsReport{GeneratedAt: now, Filter: filter, Needs: []entities.MaterialNeed{}}

	snapshots := make(map[entities.StockID]entities.StockSnapshot, len(stock))
	failed := make(map[entities.StockID]error)
	for _, s := range stock {
		if err := s.Validate(); err != nil {
			failed[s.StockID] = err
			continue
		}
		if prev, ok := snapshots[s.StockID]; ok && !s.AsOf.After(prev.AsOf) {
			continue
		}
		snapshots[s.StockID] = s
	}

	demand := make(map[entities.StockID]*itemDemand)
	for _, res := range reservations {
		d, ok := demand[res.StockID]
		if !ok {
			d = &itemDemand{}
			demand[res.StockID] = d
		}
		if d.err != nil {
			continue
		}
		if err := res.Validate(); err != nil {
			d.err = err
			continue
		}
		d.reservations = append(d.reservations, res)
	}

	for stockID, d := range demand {
		if d.err != nil {
			failed[stockID] = d.err
			continue
		}
		if _, ok := snapshots[stockID]; !ok {
			if _, already := failed[stockID]; !already {
				failed[stockID] = entities.NewValidationError("stock_id", "no stock snapshot for %s", stockID)
			}
		}
	}

	ids := make([]entities.StockID, 0, len(snapshots))
	for id := range snapshots {
		if _, bad := failed[id]; !bad {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		snap := snapshots[id]
		var res []entities.Reservation
		if d, ok := demand[id]; ok {
			res = d.reservations
		}

		if w := entities.CheckStaleness("stock", string(id), snap.AsOf, now, r.config.MaxSnapshotAge); w != nil {
			report.Warnings = append(report.Warnings, *w)
		}

		need, ok := ComputeNeed(snap, res)
		if !ok || !filter.Keeps(&need) {
			continue
		}
		report.Needs = append(report.Needs, need)
	}

	SortNeeds(report.Needs)

	failedIDs := make([]entities.StockID, 0, len(failed))
	for id := range failed {
		failedIDs = append(failedIDs, id)
	}
	sort.Slice(failedIDs, func(i, j int) bool { return failedIDs[i] < failedIDs[j] })
	for _, id := range failedIDs {
		err := failed[id]
		r.logger.Warnw("stock item skipped in needs report", "stock_id", id, "error", err)
		report.Failures = append(report.Failures, entities.ItemFailure{StockID: id, Reason: err.Error(), Err: err})
	}
	if len(report.Warnings) > 0 {
		r.logger.Warnw("needs report built from stale stock snapshots",
			"count", len(report.Warnings), "max_age", r.config.MaxSnapshotAge)
	}

	return report
}

// ComputeNeed reconciles one stock item. ok is false when the item has
// neither a project shortage nor a shortfall against its minimum.
// Available quantity is used unclamped; only the final results are floored.
func ComputeNeed(snap entities.StockSnapshot, reservations []entities.Reservation) (need entities.MaterialNeed, ok bool) {
	totalNeed := decimal.Zero
	remaining := decimal.Zero
	jobs := make(map[string]bool)
	count := 0
	var earliest *time.Time

	for i := range reservations {
		res := &reservations[i]
		if res.StockID != snap.StockID || res.IsCanceled() {
			continue
		}
		count++
		jobs[res.JobID] = true
		totalNeed = totalNeed.Add(res.Quantity)
		rem := res.Remaining()
		remaining = remaining.Add(rem)
		if rem.IsPositive() && res.PlannedDate != nil {
			if earliest == nil || res.PlannedDate.Before(*earliest) {
				d := *res.PlannedDate
				earliest = &d
			}
		}
	}

	available := snap.AvailableQuantity()
	projectShortage := entities.MaxZero(remaining.Sub(available))
	belowMinimum := decimal.Zero
	if snap.HasMinimum() {
		belowMinimum = entities.MaxZero(snap.MinStockLevel.Sub(available))
	}

	var issue entities.IssueType
	switch {
	case projectShortage.IsPositive() && belowMinimum.IsPositive():
		issue = entities.IssueBoth
	case projectShortage.IsPositive():
		issue = entities.IssueProject
	case belowMinimum.IsPositive():
		issue = entities.IssueStockLevel
	default:
		return entities.MaterialNeed{}, false
	}

	gap := projectShortage.Add(belowMinimum)
	return entities.MaterialNeed{
		StockID:                snap.StockID,
		StockCode:              snap.Code,
		StockName:              snap.Name,
		Unit:                   snap.Unit,
		TotalNeed:              totalNeed,
		TotalRemainingNeed:     remaining,
		CurrentQuantity:        snap.CurrentQuantity,
		ReservedQuantity:       snap.ReservedQuantity,
		AvailableQuantity:      available,
		OnOrderQuantity:        snap.OnOrderQuantity,
		MinStockLevel:          snap.MinStockLevel,
		ProjectShortage:        projectShortage,
		BelowMinimum:           belowMinimum,
		Shortage:               gap,
		IssueType:              issue,
		SuggestedOrderQuantity: entities.MaxZero(gap.Sub(snap.OnOrderQuantity)),
		ReservationCount:       count,
		JobCount:               len(jobs),
		EarliestPlannedDate:    earliest,
		AsOf:                   snap.AsOf,
	}, true
}

// SortNeeds orders needs by bucket (both, project, stock_level), then
// shortage descending, then earliest planned date ascending with undated
// needs last, then stock id.
func SortNeeds(needs []entities.MaterialNeed) {
	sort.SliceStable(needs, func(i, j int) bool {
		a, b := &needs[i], &needs[j]
		if ra, rb := a.IssueType.Rank(), b.IssueType.Rank(); ra != rb {
			return ra < rb
		}
		if c := a.Shortage.Cmp(b.Shortage); c != 0 {
			return c > 0
		}
		da, db := a.EarliestPlannedDate, b.EarliestPlannedDate
		switch {
		case da != nil && db == nil:
			return true
		case da == nil && db != nil:
			return false
		case da != nil && db != nil && !da.Equal(*db):
			return da.Before(*db)
		}
		return a.StockID < b.StockID
	})
}
