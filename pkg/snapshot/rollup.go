package snapshot

import (
	"time"

	"github.com/google/uuid"
	"github.com/pplan/pplan/pkg/effort"
	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	"github.com/pplan/pplan/pkg/rate"
	"github.com/shopspring/decimal"
)

type monthBucket struct {
	plannedDays decimal.Decimal
	actualDays  decimal.Decimal
	plannedCost decimal.Decimal
	actualCost  decimal.Decimal
}

// BuildRollup computes the snapshot rows for every month of the project
// range. Costs are accumulated from per-entry rounded products; an entry
// whose performer has no effective rate contributes person-days but zero
// cost. The cumulative series is re-rounded after every addition so it
// equals what a reader would get summing the published month values.
func BuildRollup(
	proj project.Project,
	entries []effort.Entry,
	rates []rate.Rate,
	calc rate.Calculator,
	invoiceTotals map[string]decimal.Decimal,
	revenueTotals map[string]decimal.Decimal,
) []Snapshot {
	return BuildRollupRange(proj, proj.StartMonth, proj.EndMonth, entries, rates, calc, invoiceTotals, revenueTotals)
}

// BuildRollupRange is BuildRollup over an arbitrary month window. The
// cumulative series starts fresh at fromMonth, so a windowed rollup shows
// the window's own running totals rather than a slice of the project ones.
func BuildRollupRange(
	proj project.Project,
	fromMonth, toMonth time.Time,
	entries []effort.Entry,
	rates []rate.Rate,
	calc rate.Calculator,
	invoiceTotals map[string]decimal.Decimal,
	revenueTotals map[string]decimal.Decimal,
) []Snapshot {
	ratesByPerformer := make(map[uuid.UUID][]rate.Rate)
	for _, r := range rates {
		ratesByPerformer[r.PerformerID] = append(ratesByPerformer[r.PerformerID], r)
	}

	buckets := make(map[string]*monthBucket)
	for _, entry := range entries {
		key := months.Key(entry.Month)
		bucket := buckets[key]
		if bucket == nil {
			bucket = &monthBucket{}
			buckets[key] = bucket
		}
		bucket.plannedDays = bucket.plannedDays.Add(entry.PlannedPersonDays)
		bucket.actualDays = bucket.actualDays.Add(entry.ActualPersonDays)

		effective, ok := rate.Resolve(ratesByPerformer[entry.PerformerID], proj.ID, entry.Month)
		if !ok {
			continue
		}
		perDay := calc.PerDayValue(effective)
		bucket.plannedCost = bucket.plannedCost.Add(money.Cost(entry.PlannedPersonDays, perDay))
		bucket.actualCost = bucket.actualCost.Add(money.Cost(entry.ActualPersonDays, perDay))
	}

	var cumulativePlanned, cumulativeActual, cumulativeRevenue decimal.Decimal
	monthAxis := months.Sequence(fromMonth, toMonth)
	rollup := make([]Snapshot, 0, len(monthAxis))
	for _, month := range monthAxis {
		key := months.Key(month)
		bucket := buckets[key]
		if bucket == nil {
			bucket = &monthBucket{}
		}

		plannedCost := money.Round2(bucket.plannedCost)
		actualCost := money.Round2(bucket.actualCost)
		revenueAmount := money.Round2(revenueTotals[key])
		invoiceAmount := money.Round2(invoiceTotals[key])

		cumulativePlanned = money.Round2(cumulativePlanned.Add(plannedCost))
		cumulativeActual = money.Round2(cumulativeActual.Add(actualCost))
		cumulativeRevenue = money.Round2(cumulativeRevenue.Add(revenueAmount))

		rollup = append(rollup, Snapshot{
			ProjectID:             proj.ID,
			Month:                 month,
			PlannedPersonDays:     money.Round2(bucket.plannedDays),
			ActualPersonDays:      money.Round2(bucket.actualDays),
			PlannedCost:           plannedCost,
			ActualCost:            actualCost,
			RevenueAmount:         revenueAmount,
			InvoiceAmount:         invoiceAmount,
			CumulativePlannedCost: cumulativePlanned,
			CumulativeActualCost:  cumulativeActual,
			CumulativeRevenue:     cumulativeRevenue,
		})
	}
	return rollup
}
