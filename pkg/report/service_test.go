package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pplan/pplan/internal/test_utils"
	"github.com/pplan/pplan/pkg/actor"
	"github.com/pplan/pplan/pkg/effort"
	"github.com/pplan/pplan/pkg/finance"
	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	"github.com/pplan/pplan/pkg/rate"
	"github.com/pplan/pplan/pkg/snapshot"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type projectRepoStub struct {
	project.Repository
	projects   map[uuid.UUID]project.Project
	tasks      []project.Task
	stages     []project.Stage
	performers []project.Performer
}

func (s *projectRepoStub) GetProject(_ context.Context, id uuid.UUID) (project.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return project.Project{}, project.ErrProjectNotFound
	}
	return p, nil
}

func (s *projectRepoStub) ListProjects(_ context.Context, businessUnitID uuid.UUID) ([]project.Project, error) {
	var list []project.Project
	for _, p := range s.projects {
		if p.BusinessUnitID == businessUnitID {
			list = append(list, p)
		}
	}
	return list, nil
}

func (s *projectRepoStub) ListTasks(_ context.Context, projectID uuid.UUID) ([]project.Task, error) {
	var list []project.Task
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			list = append(list, t)
		}
	}
	return list, nil
}

func (s *projectRepoStub) ListStages(_ context.Context, projectID uuid.UUID) ([]project.Stage, error) {
	var list []project.Stage
	for _, st := range s.stages {
		if st.ProjectID == projectID {
			list = append(list, st)
		}
	}
	return list, nil
}

func (s *projectRepoStub) ListPerformers(_ context.Context, _ uuid.UUID) ([]project.Performer, error) {
	return s.performers, nil
}

type effortRepoStub struct {
	effort.Repository
	entries []effort.Entry
}

func (s *effortRepoStub) List(_ context.Context, projectID uuid.UUID, fromMonth, toMonth time.Time) ([]effort.Entry, error) {
	var list []effort.Entry
	for _, e := range s.entries {
		if e.ProjectID == projectID && months.Within(e.Month, fromMonth, toMonth) {
			list = append(list, e)
		}
	}
	return list, nil
}

func (s *effortRepoStub) ListFiltered(ctx context.Context, projectID uuid.UUID, fromMonth, toMonth time.Time, taskIDs, performerIDs []uuid.UUID) ([]effort.Entry, error) {
	inRange, err := s.List(ctx, projectID, fromMonth, toMonth)
	if err != nil {
		return nil, err
	}
	var list []effort.Entry
	for _, e := range inRange {
		if len(taskIDs) > 0 && !containsID(taskIDs, e.TaskID) {
			continue
		}
		if len(performerIDs) > 0 && !containsID(performerIDs, e.PerformerID) {
			continue
		}
		list = append(list, e)
	}
	return list, nil
}

func (s *effortRepoStub) ListForBusinessUnit(_ context.Context, _ uuid.UUID, fromMonth, toMonth time.Time) ([]effort.Entry, error) {
	var list []effort.Entry
	for _, e := range s.entries {
		if months.Within(e.Month, fromMonth, toMonth) {
			list = append(list, e)
		}
	}
	return list, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

type rateRepoStub struct {
	rate.Repository
	rates []rate.Rate
}

func (s *rateRepoStub) ListForProject(_ context.Context, _, _ uuid.UUID) ([]rate.Rate, error) {
	return s.rates, nil
}

type financeRepoStub struct {
	finance.Repository
	invoiceTotals map[string]decimal.Decimal
	revenueTotals map[string]decimal.Decimal
}

func (s *financeRepoStub) InvoiceTotalsByMonth(_ context.Context, _ uuid.UUID) (map[string]decimal.Decimal, error) {
	return s.invoiceTotals, nil
}

func (s *financeRepoStub) RevenueTotalsByMonth(_ context.Context, _ uuid.UUID) (map[string]decimal.Decimal, error) {
	return s.revenueTotals, nil
}

type snapshotRepoStub struct {
	snapshot.Repository
	buRows []snapshot.BusinessUnitSnapshot
}

func (s *snapshotRepoStub) ListForBusinessUnit(_ context.Context, _ uuid.UUID, fromMonth, toMonth time.Time) ([]snapshot.BusinessUnitSnapshot, error) {
	var list []snapshot.BusinessUnitSnapshot
	for _, row := range s.buRows {
		if months.Within(row.Month, fromMonth, toMonth) {
			list = append(list, row)
		}
	}
	return list, nil
}

type fixture struct {
	service     Service
	ctx         context.Context
	buID        uuid.UUID
	proj        project.Project
	taskA       project.Task
	taskB       project.Task
	stage       project.Stage
	performerA  project.Performer
	performerB  project.Performer
	effortRepo  *effortRepoStub
	rateRepo    *rateRepoStub
	projectRepo *projectRepoStub
	snapRepo    *snapshotRepoStub
}

func monthOf(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture() *fixture {
	buID := uuid.New()
	proj := project.Project{
		ID:             uuid.New(),
		BusinessUnitID: buID,
		Code:           "PRJ-1",
		Name:           "Billing Revamp",
		StartMonth:     monthOf(2025, 1),
		EndMonth:       monthOf(2025, 3),
		Status:         project.StatusActive,
	}
	stage := project.Stage{ID: uuid.New(), ProjectID: proj.ID, Name: "Build"}
	taskA := project.Task{ID: uuid.New(), ProjectID: proj.ID, StageID: stage.ID, Code: "T-A", Name: "API"}
	taskB := project.Task{ID: uuid.New(), ProjectID: proj.ID, StageID: stage.ID, Code: "T-B", Name: "Frontend"}
	performerA := project.Performer{ID: uuid.New(), BusinessUnitID: buID, DisplayName: "Alice", Active: true}
	performerB := project.Performer{ID: uuid.New(), BusinessUnitID: buID, DisplayName: "Bob", Active: true}

	projectRepo := &projectRepoStub{
		projects:   map[uuid.UUID]project.Project{proj.ID: proj},
		tasks:      []project.Task{taskA, taskB},
		stages:     []project.Stage{stage},
		performers: []project.Performer{performerA, performerB},
	}
	effortRepo := &effortRepoStub{}
	rateRepo := &rateRepoStub{}
	financeRepo := &financeRepoStub{
		invoiceTotals: map[string]decimal.Decimal{},
		revenueTotals: map[string]decimal.Decimal{},
	}
	snapRepo := &snapshotRepoStub{}

	service := NewService(
		projectRepo, effortRepo, rateRepo, financeRepo, snapRepo,
		rate.NewCalculator(20), NewCsvReportRenderer(),
	)
	return &fixture{
		service:     service,
		ctx:         test_utils.ViewerContext(context.Background(), buID),
		buID:        buID,
		proj:        proj,
		taskA:       taskA,
		taskB:       taskB,
		stage:       stage,
		performerA:  performerA,
		performerB:  performerB,
		effortRepo:  effortRepo,
		rateRepo:    rateRepo,
		projectRepo: projectRepo,
		snapRepo:    snapRepo,
	}
}

func (f *fixture) addEntry(taskID, performerID uuid.UUID, month time.Time, planned, actual string) {
	f.effortRepo.entries = append(f.effortRepo.entries, effort.Entry{
		ID:                uuid.New(),
		ProjectID:         f.proj.ID,
		TaskID:            taskID,
		PerformerID:       performerID,
		Month:             month,
		PlannedPersonDays: dec(planned),
		ActualPersonDays:  dec(actual),
	})
}

func (f *fixture) addDayRate(performerID uuid.UUID, value string) {
	f.rateRepo.rates = append(f.rateRepo.rates, rate.Rate{
		ID:            uuid.New(),
		PerformerID:   performerID,
		Unit:          rate.UnitDay,
		Value:         dec(value),
		EffectiveFrom: monthOf(2025, 1),
		EffectiveTo:   months.Max,
	})
}

func TestServiceImpl_Run(t *testing.T) {
	t.Run("effort by performer pivots rows sorted by display name", func(t *testing.T) {
		f := newFixture()
		f.addEntry(f.taskA.ID, f.performerB.ID, monthOf(2025, 1), "3", "2")
		f.addEntry(f.taskA.ID, f.performerA.ID, monthOf(2025, 1), "2", "2.5")
		f.addEntry(f.taskB.ID, f.performerA.ID, monthOf(2025, 2), "4", "0")

		report, err := f.service.Run(f.ctx, KeyEffortByPerformer, f.proj.ID, Window{}, Filter{})

		require.NoError(t, err)
		require.Len(t, report.Months, 3)
		require.Len(t, report.PerformerRows, 2)
		assert.Equal(t, "Alice", report.PerformerRows[0].PerformerName)
		assert.Equal(t, "Bob", report.PerformerRows[1].PerformerName)

		alice := report.PerformerRows[0]
		require.Len(t, alice.Months, 3)
		assert.Equal(t, "2.00", money.String(alice.Months[0].Planned))
		assert.Equal(t, "2.50", money.String(alice.Months[0].Actual))
		assert.Equal(t, "0.50", money.String(alice.Months[0].Variance))
		assert.Equal(t, "4.00", money.String(alice.Months[1].Planned))
		assert.Equal(t, "0.00", money.String(alice.Months[2].Planned))
		assert.Equal(t, "6.00", money.String(alice.Totals.Planned))
		assert.Equal(t, "2.50", money.String(alice.Totals.Actual))
		assert.Equal(t, "-3.50", money.String(alice.Totals.Variance))
	})

	t.Run("cost by task prices entries through effective rates", func(t *testing.T) {
		f := newFixture()
		f.addEntry(f.taskA.ID, f.performerA.ID, monthOf(2025, 1), "2", "1")
		f.addEntry(f.taskB.ID, f.performerB.ID, monthOf(2025, 1), "3", "3")
		f.addDayRate(f.performerA.ID, "400")

		report, err := f.service.Run(f.ctx, KeyCostByTask, f.proj.ID, Window{}, Filter{})

		require.NoError(t, err)
		require.Len(t, report.TaskRows, 2)
		api := report.TaskRows[0]
		assert.Equal(t, "API", api.TaskName)
		assert.Equal(t, "Build", api.StageName)
		assert.Equal(t, "800.00", money.String(api.Months[0].Planned))
		assert.Equal(t, "400.00", money.String(api.Months[0].Actual))

		// Bob has no rate, so the frontend task costs zero.
		frontend := report.TaskRows[1]
		assert.Equal(t, "Frontend", frontend.TaskName)
		assert.Equal(t, "0.00", money.String(frontend.Totals.Planned))
	})

	t.Run("totals are the sum of already-rounded cells", func(t *testing.T) {
		f := newFixture()
		// 0.33 * 150.50 rounds to 49.67 per month; three months total
		// 149.01 rather than 148.99.
		f.addEntry(f.taskA.ID, f.performerA.ID, monthOf(2025, 1), "0.33", "0")
		f.addEntry(f.taskA.ID, f.performerA.ID, monthOf(2025, 2), "0.33", "0")
		f.addEntry(f.taskA.ID, f.performerA.ID, monthOf(2025, 3), "0.33", "0")
		f.addDayRate(f.performerA.ID, "150.50")

		report, err := f.service.Run(f.ctx, KeyCostByPerformer, f.proj.ID, Window{}, Filter{})

		require.NoError(t, err)
		require.Len(t, report.PerformerRows, 1)
		assert.Equal(t, "149.01", money.String(report.PerformerRows[0].Totals.Planned))
	})

	t.Run("task filter narrows the input entries", func(t *testing.T) {
		f := newFixture()
		f.addEntry(f.taskA.ID, f.performerA.ID, monthOf(2025, 1), "2", "2")
		f.addEntry(f.taskB.ID, f.performerA.ID, monthOf(2025, 1), "5", "5")

		report, err := f.service.Run(f.ctx, KeyEffortByTask, f.proj.ID, Window{}, Filter{TaskIDs: []uuid.UUID{f.taskA.ID}})

		require.NoError(t, err)
		require.Len(t, report.TaskRows, 1)
		assert.Equal(t, f.taskA.ID, report.TaskRows[0].TaskID)
	})

	t.Run("unknown filter ids are all reported sorted", func(t *testing.T) {
		f := newFixture()
		unknownA := uuid.New()
		unknownB := uuid.New()

		_, err := f.service.Run(f.ctx, KeyEffortByTask, f.proj.ID, Window{}, Filter{
			TaskIDs: []uuid.UUID{unknownA, f.taskA.ID, unknownB},
		})

		var unknownErr UnknownTaskIDsError
		require.ErrorAs(t, err, &unknownErr)
		require.Len(t, unknownErr.IDs, 2)
		assert.Less(t, unknownErr.IDs[0], unknownErr.IDs[1])
	})

	t.Run("unknown performer ids are rejected separately", func(t *testing.T) {
		f := newFixture()
		unknown := uuid.New()

		_, err := f.service.Run(f.ctx, KeyEffortByPerformer, f.proj.ID, Window{}, Filter{
			PerformerIDs: []uuid.UUID{unknown},
		})

		var unknownErr UnknownPerformerIDsError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, []string{unknown.String()}, unknownErr.IDs)
	})

	t.Run("window outside the project range is rejected", func(t *testing.T) {
		f := newFixture()
		before := monthOf(2024, 12)

		_, err := f.service.Run(f.ctx, KeyEffortByTask, f.proj.ID, Window{FromMonth: &before}, Filter{})

		assert.ErrorIs(t, err, ErrRangeOutsideProject)
	})

	t.Run("inverted window is rejected", func(t *testing.T) {
		f := newFixture()
		from := monthOf(2025, 3)
		to := monthOf(2025, 1)

		_, err := f.service.Run(f.ctx, KeyEffortByTask, f.proj.ID, Window{FromMonth: &from, ToMonth: &to}, Filter{})

		assert.ErrorIs(t, err, ErrRangeInverted)
	})

	t.Run("actor outside the business unit is forbidden", func(t *testing.T) {
		f := newFixture()
		foreignCtx := test_utils.ViewerContext(context.Background(), uuid.New())

		_, err := f.service.Run(foreignCtx, KeyEffortByTask, f.proj.ID, Window{}, Filter{})

		assert.ErrorIs(t, err, actor.ErrForbidden)
	})
}

func TestServiceImpl_FinanceSummary(t *testing.T) {
	t.Run("windowed summary restarts the cumulative chain", func(t *testing.T) {
		f := newFixture()
		f.addEntry(f.taskA.ID, f.performerA.ID, monthOf(2025, 1), "1", "1")
		f.addEntry(f.taskA.ID, f.performerA.ID, monthOf(2025, 2), "1", "1")
		f.addEntry(f.taskA.ID, f.performerA.ID, monthOf(2025, 3), "1", "1")
		f.addDayRate(f.performerA.ID, "100")
		from := monthOf(2025, 2)

		summary, err := f.service.FinanceSummary(f.ctx, f.proj.ID, Window{FromMonth: &from})

		require.NoError(t, err)
		require.Len(t, summary.Months, 2)
		assert.Equal(t, "100.00", money.String(summary.Months[0].CumulativePlannedCost))
		assert.Equal(t, "200.00", money.String(summary.Months[1].CumulativePlannedCost))
	})
}

func TestServiceImpl_ProjectDashboard(t *testing.T) {
	t.Run("builds trend series and workload rows", func(t *testing.T) {
		f := newFixture()
		f.addEntry(f.taskA.ID, f.performerA.ID, monthOf(2025, 1), "2", "1.5")
		f.addDayRate(f.performerA.ID, "100")

		dashboard, err := f.service.ProjectDashboard(f.ctx, f.proj.ID, Window{})

		require.NoError(t, err)
		require.Len(t, dashboard.CostTrend, 3)
		assert.Equal(t, "200.00", money.String(dashboard.CostTrend[0].PlannedCost))
		assert.Equal(t, "150.00", money.String(dashboard.CostTrend[2].CumulativeActualCost))
		require.Len(t, dashboard.RealizationTrend, 3)
		// No revenue recorded, so realization percent divides into zero.
		assert.Equal(t, "0.00", money.String(dashboard.RealizationTrend[0].RealizationPercent))
		assert.Equal(t, "-150.00", money.String(dashboard.RealizationTrend[2].CumulativeMargin))
		require.Len(t, dashboard.WorkloadTrend, 1)
		assert.Equal(t, "Alice", dashboard.WorkloadTrend[0].PerformerName)
	})
}

func TestServiceImpl_BusinessUnitDashboard(t *testing.T) {
	t.Run("business unit without projects yields an empty dashboard", func(t *testing.T) {
		f := newFixture()
		emptyBU := uuid.New()
		ctx := test_utils.ViewerContext(context.Background(), emptyBU)

		dashboard, err := f.service.BusinessUnitDashboard(ctx, emptyBU, Window{})

		require.NoError(t, err)
		assert.True(t, dashboard.Empty)
		assert.Empty(t, dashboard.CostTrend)
	})

	t.Run("aggregates stored snapshots across projects per month", func(t *testing.T) {
		f := newFixture()
		other := project.Project{
			ID:             uuid.New(),
			BusinessUnitID: f.buID,
			Code:           "PRJ-2",
			Name:           "Mobile App",
			StartMonth:     monthOf(2025, 1),
			EndMonth:       monthOf(2025, 2),
			Status:         project.StatusActive,
		}
		f.projectRepo.projects[other.ID] = other
		f.snapRepo.buRows = []snapshot.BusinessUnitSnapshot{
			{Snapshot: snapshot.Snapshot{ProjectID: f.proj.ID, Month: monthOf(2025, 1), PlannedCost: dec("100.00"), ActualCost: dec("80.00"), RevenueAmount: dec("120.00")}},
			{Snapshot: snapshot.Snapshot{ProjectID: other.ID, Month: monthOf(2025, 1), PlannedCost: dec("50.00"), ActualCost: dec("40.00"), RevenueAmount: dec("0.00")}},
			{Snapshot: snapshot.Snapshot{ProjectID: f.proj.ID, Month: monthOf(2025, 2), PlannedCost: dec("100.00"), ActualCost: dec("90.00"), RevenueAmount: dec("0.00")}},
		}

		dashboard, err := f.service.BusinessUnitDashboard(f.ctx, f.buID, Window{})

		require.NoError(t, err)
		assert.False(t, dashboard.Empty)
		assert.Equal(t, monthOf(2025, 1), dashboard.FromMonth)
		assert.Equal(t, monthOf(2025, 3), dashboard.ToMonth)
		require.Len(t, dashboard.CostTrend, 3)
		assert.Equal(t, "150.00", money.String(dashboard.CostTrend[0].PlannedCost))
		assert.Equal(t, "250.00", money.String(dashboard.CostTrend[1].CumulativePlannedCost))
		assert.Equal(t, "210.00", money.String(dashboard.CostTrend[2].CumulativeActualCost))
		assert.Equal(t, "120.00", money.String(dashboard.RealizationTrend[2].CumulativeRevenue))
	})

	t.Run("actor without scope on the unit is forbidden", func(t *testing.T) {
		f := newFixture()
		foreignCtx := test_utils.ViewerContext(context.Background(), uuid.New())

		_, err := f.service.BusinessUnitDashboard(foreignCtx, f.buID, Window{})

		assert.ErrorIs(t, err, actor.ErrForbidden)
	})
}

func TestServiceImpl_Export(t *testing.T) {
	t.Run("unsupported format is rejected", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.Export(f.ctx, KeyEffortByTask, "xlsx", f.proj.ID, Window{}, Filter{})

		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("csv export names the file after the report and project", func(t *testing.T) {
		f := newFixture()
		f.addEntry(f.taskA.ID, f.performerA.ID, monthOf(2025, 1), "2", "2")

		file, err := f.service.Export(f.ctx, KeyEffortByTask, "csv", f.proj.ID, Window{}, Filter{})

		require.NoError(t, err)
		assert.Equal(t, "text/csv; charset=utf-8", file.MediaType)
		assert.Equal(t, "effort-by-task-"+f.proj.ID.String()+".csv", file.Filename)
		assert.NotEmpty(t, file.Content)
	})
}

func TestParseKey(t *testing.T) {
	t.Run("recognizes all report keys", func(t *testing.T) {
		for _, key := range []Key{KeyEffortByPerformer, KeyEffortByTask, KeyCostByPerformer, KeyCostByTask} {
			parsed, err := ParseKey(string(key))
			require.NoError(t, err)
			assert.Equal(t, key, parsed)
		}
	})

	t.Run("rejects an unknown key", func(t *testing.T) {
		_, err := ParseKey("effort-by-stage")

		assert.True(t, errors.Is(err, ErrUnknownReportKey))
	})
}
