package snapshot

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pplan/pplan/pkg/effort"
	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	"github.com/pplan/pplan/pkg/rate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var calc = rate.NewCalculator(20)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func monthOf(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func rollupProject(from, to time.Time) project.Project {
	return project.Project{
		ID:         uuid.New(),
		StartMonth: from,
		EndMonth:   to,
		Status:     project.StatusActive,
	}
}

func entry(performerID uuid.UUID, month time.Time, planned, actual string) effort.Entry {
	return effort.Entry{
		ID:                uuid.New(),
		TaskID:            uuid.New(),
		PerformerID:       performerID,
		Month:             month,
		PlannedPersonDays: dec(planned),
		ActualPersonDays:  dec(actual),
	}
}

func dayRate(performerID uuid.UUID, value string, from time.Time) rate.Rate {
	return rate.Rate{
		ID:            uuid.New(),
		PerformerID:   performerID,
		Unit:          rate.UnitDay,
		Value:         dec(value),
		EffectiveFrom: from,
		EffectiveTo:   months.Max,
	}
}

func TestBuildRollup(t *testing.T) {
	jan := monthOf(2025, 1)
	feb := monthOf(2025, 2)
	mar := monthOf(2025, 3)

	t.Run("produces exactly one row per project month", func(t *testing.T) {
		proj := rollupProject(jan, mar)

		rollup := BuildRollup(proj, nil, nil, calc, nil, nil)

		require.Len(t, rollup, 3)
		assert.Equal(t, jan, rollup[0].Month)
		assert.Equal(t, feb, rollup[1].Month)
		assert.Equal(t, mar, rollup[2].Month)
		for _, row := range rollup {
			assert.Equal(t, proj.ID, row.ProjectID)
			assert.Equal(t, "0.00", money.String(row.PlannedCost))
			assert.Equal(t, "0.00", money.String(row.CumulativeRevenue))
		}
	})

	t.Run("costs accumulate from per-entry rounded products", func(t *testing.T) {
		proj := rollupProject(jan, jan)
		performer := uuid.New()
		entries := []effort.Entry{
			// 0.33 * 150.50 = 49.665 -> 49.67 per entry; three entries sum
			// to 149.01, while 0.99 * 150.50 rounded once would be 148.99.
			entry(performer, jan, "0.33", "0"),
			entry(performer, jan, "0.33", "0"),
			entry(performer, jan, "0.33", "0"),
		}
		rates := []rate.Rate{dayRate(performer, "150.50", jan)}

		rollup := BuildRollup(proj, entries, rates, calc, nil, nil)

		require.Len(t, rollup, 1)
		assert.Equal(t, "149.01", money.String(rollup[0].PlannedCost))
		assert.Equal(t, "0.99", money.String(rollup[0].PlannedPersonDays))
	})

	t.Run("entries without an effective rate contribute days but no cost", func(t *testing.T) {
		proj := rollupProject(jan, jan)
		unrated := uuid.New()

		rollup := BuildRollup(proj, []effort.Entry{entry(unrated, jan, "5", "4")}, nil, calc, nil, nil)

		require.Len(t, rollup, 1)
		assert.Equal(t, "5.00", money.String(rollup[0].PlannedPersonDays))
		assert.Equal(t, "4.00", money.String(rollup[0].ActualPersonDays))
		assert.Equal(t, "0.00", money.String(rollup[0].PlannedCost))
		assert.Equal(t, "0.00", money.String(rollup[0].ActualCost))
	})

	t.Run("cumulative series re-rounds after every addition", func(t *testing.T) {
		proj := rollupProject(jan, mar)
		performer := uuid.New()
		entries := []effort.Entry{
			entry(performer, jan, "2", "1"),
			entry(performer, feb, "2", "1.5"),
		}
		rates := []rate.Rate{dayRate(performer, "150", jan)}
		revenues := map[string]decimal.Decimal{
			months.Key(jan): dec("500"),
			months.Key(feb): dec("250"),
		}
		invoices := map[string]decimal.Decimal{months.Key(feb): dec("400")}

		rollup := BuildRollup(proj, entries, rates, calc, invoices, revenues)

		require.Len(t, rollup, 3)
		assert.Equal(t, "300.00", money.String(rollup[0].CumulativePlannedCost))
		assert.Equal(t, "600.00", money.String(rollup[1].CumulativePlannedCost))
		assert.Equal(t, "600.00", money.String(rollup[2].CumulativePlannedCost))
		assert.Equal(t, "150.00", money.String(rollup[0].CumulativeActualCost))
		assert.Equal(t, "375.00", money.String(rollup[1].CumulativeActualCost))
		assert.Equal(t, "500.00", money.String(rollup[0].CumulativeRevenue))
		assert.Equal(t, "750.00", money.String(rollup[1].CumulativeRevenue))
		assert.Equal(t, "750.00", money.String(rollup[2].CumulativeRevenue))
		assert.Equal(t, "0.00", money.String(rollup[0].InvoiceAmount))
		assert.Equal(t, "400.00", money.String(rollup[1].InvoiceAmount))
	})

	t.Run("rebuilding from the same inputs is identical", func(t *testing.T) {
		proj := rollupProject(jan, mar)
		performer := uuid.New()
		entries := []effort.Entry{entry(performer, feb, "3.5", "2.25")}
		rates := []rate.Rate{dayRate(performer, "420", jan)}

		first := BuildRollup(proj, entries, rates, calc, nil, nil)
		second := BuildRollup(proj, entries, rates, calc, nil, nil)

		assert.Equal(t, first, second)
	})
}

func TestBuildRollupRange(t *testing.T) {
	jan := monthOf(2025, 1)
	mar := monthOf(2025, 3)

	t.Run("windowed cumulative series starts fresh at the window start", func(t *testing.T) {
		proj := rollupProject(jan, mar)
		performer := uuid.New()
		entries := []effort.Entry{
			entry(performer, jan, "2", "2"),
			entry(performer, monthOf(2025, 2), "2", "2"),
			entry(performer, mar, "2", "2"),
		}
		rates := []rate.Rate{dayRate(performer, "100", jan)}

		windowed := BuildRollupRange(proj, monthOf(2025, 2), mar, entries, rates, calc, nil, nil)

		require.Len(t, windowed, 2)
		assert.Equal(t, "200.00", money.String(windowed[0].CumulativePlannedCost))
		assert.Equal(t, "400.00", money.String(windowed[1].CumulativePlannedCost))
	})
}

func TestBuildRollupMixedRateTiers(t *testing.T) {
	jan := monthOf(2026, 1)
	feb := monthOf(2026, 2)
	mar := monthOf(2026, 3)

	proj := rollupProject(jan, mar)
	alice := uuid.New()
	bob := uuid.New()

	defaultJanOnly := dayRate(alice, "100", jan)
	defaultJanOnly.EffectiveTo = jan
	projectFromFeb := dayRate(alice, "200", feb)
	projectFromFeb.ProjectID = proj.ID
	fteDefault := rate.Rate{
		ID:            uuid.New(),
		PerformerID:   bob,
		Unit:          rate.UnitFTEMonth,
		Value:         dec("2000"),
		EffectiveFrom: jan,
		EffectiveTo:   months.Max,
	}

	entries := []effort.Entry{
		entry(alice, jan, "2", "1"),
		entry(alice, feb, "3", "2"),
		entry(bob, jan, "1", "0.5"),
	}
	rates := []rate.Rate{defaultJanOnly, projectFromFeb, fteDefault}

	rollup := BuildRollup(proj, entries, rates, calc, nil, nil)

	require.Len(t, rollup, 3)
	assert.Equal(t, "300.00", money.String(rollup[0].PlannedCost))
	assert.Equal(t, "150.00", money.String(rollup[0].ActualCost))
	assert.Equal(t, "600.00", money.String(rollup[1].PlannedCost))
	assert.Equal(t, "400.00", money.String(rollup[1].ActualCost))
	assert.Equal(t, "0.00", money.String(rollup[2].PlannedCost))
	assert.Equal(t, "0.00", money.String(rollup[2].ActualCost))
	assert.Equal(t, "900.00", money.String(rollup[2].CumulativePlannedCost))
	assert.Equal(t, "550.00", money.String(rollup[2].CumulativeActualCost))
}
