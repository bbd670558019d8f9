package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pplan/pplan/pkg/actor"
	"github.com/pplan/pplan/pkg/effort"
	"github.com/pplan/pplan/pkg/finance"
	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	"github.com/pplan/pplan/pkg/rate"
	"github.com/pplan/pplan/pkg/snapshot"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Window narrows a report to a month range. Nil bounds default to the
// project's own range.
type Window struct {
	FromMonth *time.Time
	ToMonth   *time.Time
}

// Filter restricts report input to specific tasks or performers. Empty
// slices mean no filtering.
type Filter struct {
	TaskIDs      []uuid.UUID
	PerformerIDs []uuid.UUID
}

type Service interface {
	Run(ctx context.Context, key Key, projectID uuid.UUID, window Window, filter Filter) (Report, error)
	FinanceSummary(ctx context.Context, projectID uuid.UUID, window Window) (FinanceSummary, error)
	ProjectDashboard(ctx context.Context, projectID uuid.UUID, window Window) (ProjectDashboard, error)
	BusinessUnitDashboard(ctx context.Context, businessUnitID uuid.UUID, window Window) (BusinessUnitDashboard, error)
	Export(ctx context.Context, key Key, format string, projectID uuid.UUID, window Window, filter Filter) (ExportFile, error)
}

type ServiceImpl struct {
	projects  project.Repository
	efforts   effort.Repository
	rates     rate.Repository
	finances  finance.Repository
	snapshots snapshot.Repository
	guard     *project.Guard
	calc      rate.Calculator
	renderer  Renderer
}

func NewService(
	projects project.Repository,
	efforts effort.Repository,
	rates rate.Repository,
	finances finance.Repository,
	snapshots snapshot.Repository,
	calc rate.Calculator,
	renderer Renderer,
) *ServiceImpl {
	return &ServiceImpl{
		projects:  projects,
		efforts:   efforts,
		rates:     rates,
		finances:  finances,
		snapshots: snapshots,
		guard:     project.NewGuard(projects),
		calc:      calc,
		renderer:  renderer,
	}
}

func (s *ServiceImpl) Run(ctx context.Context, key Key, projectID uuid.UUID, window Window, filter Filter) (Report, error) {
	proj, err := s.guard.View(ctx, projectID)
	if err != nil {
		return Report{}, err
	}
	fromMonth, toMonth, monthAxis, err := s.monthWindow(proj, window)
	if err != nil {
		return Report{}, err
	}
	labels, err := s.resolveFilters(ctx, proj, filter)
	if err != nil {
		return Report{}, err
	}

	entries, err := s.efforts.ListFiltered(ctx, proj.ID, fromMonth, toMonth, filter.TaskIDs, filter.PerformerIDs)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Key:       key,
		ProjectID: proj.ID,
		FromMonth: fromMonth,
		ToMonth:   toMonth,
		Months:    monthAxis,
	}

	switch key {
	case KeyEffortByPerformer, KeyEffortByTask:
		cells := effortCells(entries)
		if key == KeyEffortByPerformer {
			report.PerformerRows = performerRows(cells, monthAxis, labels)
		} else {
			report.TaskRows = taskRows(cells, monthAxis, labels)
		}
	case KeyCostByPerformer, KeyCostByTask:
		rates, err := s.rates.ListForProject(ctx, proj.BusinessUnitID, proj.ID)
		if err != nil {
			return Report{}, err
		}
		cells := costCells(entries, rates, proj.ID, s.calc)
		if key == KeyCostByPerformer {
			report.PerformerRows = performerRows(cells, monthAxis, labels)
		} else {
			report.TaskRows = taskRows(cells, monthAxis, labels)
		}
	default:
		return Report{}, ErrUnknownReportKey
	}

	log.Debugf("Built %s report for project %s over %d months", key, proj.ID, len(monthAxis))
	return report, nil
}

// FinanceSummary recomputes the rollup rows for a window of the project
// range from live effort, rate and register data.
func (s *ServiceImpl) FinanceSummary(ctx context.Context, projectID uuid.UUID, window Window) (FinanceSummary, error) {
	proj, err := s.guard.View(ctx, projectID)
	if err != nil {
		return FinanceSummary{}, err
	}
	fromMonth, toMonth, _, err := s.monthWindow(proj, window)
	if err != nil {
		return FinanceSummary{}, err
	}
	rollups, err := s.windowRollups(ctx, proj, fromMonth, toMonth)
	if err != nil {
		return FinanceSummary{}, err
	}
	return FinanceSummary{
		ProjectID: proj.ID,
		FromMonth: fromMonth,
		ToMonth:   toMonth,
		Months:    rollups,
	}, nil
}

func (s *ServiceImpl) ProjectDashboard(ctx context.Context, projectID uuid.UUID, window Window) (ProjectDashboard, error) {
	proj, err := s.guard.View(ctx, projectID)
	if err != nil {
		return ProjectDashboard{}, err
	}
	fromMonth, toMonth, monthAxis, err := s.monthWindow(proj, window)
	if err != nil {
		return ProjectDashboard{}, err
	}
	rollups, err := s.windowRollups(ctx, proj, fromMonth, toMonth)
	if err != nil {
		return ProjectDashboard{}, err
	}

	costTrend := make([]CostTrendPoint, 0, len(rollups))
	realizationTrend := make([]RealizationPoint, 0, len(rollups))
	for _, row := range rollups {
		costTrend = append(costTrend, CostTrendPoint{
			Month:                 row.Month,
			PlannedCost:           row.PlannedCost,
			ActualCost:            row.ActualCost,
			CumulativePlannedCost: row.CumulativePlannedCost,
			CumulativeActualCost:  row.CumulativeActualCost,
		})
		realizationTrend = append(realizationTrend, RealizationPoint{
			Month:                row.Month,
			CumulativeRevenue:    row.CumulativeRevenue,
			CumulativeActualCost: row.CumulativeActualCost,
			CumulativeMargin:     money.Round2(row.CumulativeRevenue.Sub(row.CumulativeActualCost)),
			RealizationPercent:   money.PercentOf(row.CumulativeActualCost, row.CumulativeRevenue),
		})
	}

	entries, err := s.efforts.List(ctx, proj.ID, fromMonth, toMonth)
	if err != nil {
		return ProjectDashboard{}, err
	}
	performers, err := s.projects.ListPerformers(ctx, proj.BusinessUnitID)
	if err != nil {
		return ProjectDashboard{}, err
	}

	return ProjectDashboard{
		ProjectID:        proj.ID,
		FromMonth:        fromMonth,
		ToMonth:          toMonth,
		CostTrend:        costTrend,
		WorkloadTrend:    workloadRows(entries, monthAxis, performers),
		RealizationTrend: realizationTrend,
	}, nil
}

func (s *ServiceImpl) BusinessUnitDashboard(ctx context.Context, businessUnitID uuid.UUID, window Window) (BusinessUnitDashboard, error) {
	a, err := actor.Current(ctx)
	if err != nil {
		return BusinessUnitDashboard{}, err
	}
	if !a.CanView(businessUnitID) {
		return BusinessUnitDashboard{}, actor.ErrForbidden
	}

	projects, err := s.projects.ListProjects(ctx, businessUnitID)
	if err != nil {
		return BusinessUnitDashboard{}, err
	}
	if len(projects) == 0 {
		return BusinessUnitDashboard{BusinessUnitID: businessUnitID, Empty: true}, nil
	}

	fromMonth := projects[0].StartMonth
	toMonth := projects[0].EndMonth
	for _, p := range projects[1:] {
		if p.StartMonth.Before(fromMonth) {
			fromMonth = p.StartMonth
		}
		if p.EndMonth.After(toMonth) {
			toMonth = p.EndMonth
		}
	}
	if window.FromMonth != nil {
		fromMonth = months.Trunc(*window.FromMonth)
	}
	if window.ToMonth != nil {
		toMonth = months.Trunc(*window.ToMonth)
	}
	if toMonth.Before(fromMonth) {
		return BusinessUnitDashboard{}, ErrRangeInverted
	}
	monthAxis := months.Sequence(fromMonth, toMonth)

	snapshots, err := s.snapshots.ListForBusinessUnit(ctx, businessUnitID, fromMonth, toMonth)
	if err != nil {
		return BusinessUnitDashboard{}, err
	}

	type monthTotals struct {
		plannedCost decimal.Decimal
		actualCost  decimal.Decimal
		revenue     decimal.Decimal
	}
	totalsByMonth := make(map[string]*monthTotals, len(monthAxis))
	for _, row := range snapshots {
		key := months.Key(row.Month)
		totals := totalsByMonth[key]
		if totals == nil {
			totals = &monthTotals{}
			totalsByMonth[key] = totals
		}
		totals.plannedCost = totals.plannedCost.Add(row.PlannedCost)
		totals.actualCost = totals.actualCost.Add(row.ActualCost)
		totals.revenue = totals.revenue.Add(row.RevenueAmount)
	}

	var cumulativePlanned, cumulativeActual, cumulativeRevenue decimal.Decimal
	costTrend := make([]CostTrendPoint, 0, len(monthAxis))
	realizationTrend := make([]RealizationPoint, 0, len(monthAxis))
	for _, month := range monthAxis {
		totals := totalsByMonth[months.Key(month)]
		if totals == nil {
			totals = &monthTotals{}
		}
		plannedCost := money.Round2(totals.plannedCost)
		actualCost := money.Round2(totals.actualCost)
		revenue := money.Round2(totals.revenue)

		cumulativePlanned = money.Round2(cumulativePlanned.Add(plannedCost))
		cumulativeActual = money.Round2(cumulativeActual.Add(actualCost))
		cumulativeRevenue = money.Round2(cumulativeRevenue.Add(revenue))

		costTrend = append(costTrend, CostTrendPoint{
			Month:                 month,
			PlannedCost:           plannedCost,
			ActualCost:            actualCost,
			CumulativePlannedCost: cumulativePlanned,
			CumulativeActualCost:  cumulativeActual,
		})
		realizationTrend = append(realizationTrend, RealizationPoint{
			Month:                month,
			CumulativeRevenue:    cumulativeRevenue,
			CumulativeActualCost: cumulativeActual,
			CumulativeMargin:     money.Round2(cumulativeRevenue.Sub(cumulativeActual)),
			RealizationPercent:   money.PercentOf(cumulativeActual, cumulativeRevenue),
		})
	}

	entries, err := s.efforts.ListForBusinessUnit(ctx, businessUnitID, fromMonth, toMonth)
	if err != nil {
		return BusinessUnitDashboard{}, err
	}
	performers, err := s.projects.ListPerformers(ctx, businessUnitID)
	if err != nil {
		return BusinessUnitDashboard{}, err
	}

	return BusinessUnitDashboard{
		BusinessUnitID:   businessUnitID,
		FromMonth:        fromMonth,
		ToMonth:          toMonth,
		CostTrend:        costTrend,
		WorkloadHeatmap:  workloadRows(entries, monthAxis, performers),
		RealizationTrend: realizationTrend,
	}, nil
}

func (s *ServiceImpl) Export(ctx context.Context, key Key, format string, projectID uuid.UUID, window Window, filter Filter) (ExportFile, error) {
	if format != "csv" {
		return ExportFile{}, ErrUnsupportedFormat
	}
	report, err := s.Run(ctx, key, projectID, window, filter)
	if err != nil {
		return ExportFile{}, err
	}
	content, err := s.renderer.RenderReport(report)
	if err != nil {
		return ExportFile{}, err
	}
	return ExportFile{
		MediaType: "text/csv; charset=utf-8",
		Filename:  fmt.Sprintf("%s-%s.csv", key, projectID),
		Content:   []byte(content),
	}, nil
}

func (s *ServiceImpl) monthWindow(proj project.Project, window Window) (time.Time, time.Time, []time.Time, error) {
	fromMonth := proj.StartMonth
	toMonth := proj.EndMonth
	if window.FromMonth != nil {
		fromMonth = months.Trunc(*window.FromMonth)
	}
	if window.ToMonth != nil {
		toMonth = months.Trunc(*window.ToMonth)
	}
	if fromMonth.Before(proj.StartMonth) || toMonth.After(proj.EndMonth) {
		return time.Time{}, time.Time{}, nil, ErrRangeOutsideProject
	}
	if toMonth.Before(fromMonth) {
		return time.Time{}, time.Time{}, nil, ErrRangeInverted
	}
	return fromMonth, toMonth, months.Sequence(fromMonth, toMonth), nil
}

// labelSet carries the display names the pivot rows are titled and sorted
// by. Stage names are keyed by task so task rows can show their stage.
type labelSet struct {
	performers map[uuid.UUID]string
	tasks      map[uuid.UUID]string
	stages     map[uuid.UUID]string
}

func (s *ServiceImpl) resolveFilters(ctx context.Context, proj project.Project, filter Filter) (labelSet, error) {
	tasks, err := s.projects.ListTasks(ctx, proj.ID)
	if err != nil {
		return labelSet{}, err
	}
	performers, err := s.projects.ListPerformers(ctx, proj.BusinessUnitID)
	if err != nil {
		return labelSet{}, err
	}
	stages, err := s.projects.ListStages(ctx, proj.ID)
	if err != nil {
		return labelSet{}, err
	}

	labels := labelSet{
		performers: make(map[uuid.UUID]string, len(performers)),
		tasks:      make(map[uuid.UUID]string, len(tasks)),
		stages:     make(map[uuid.UUID]string, len(tasks)),
	}
	stageNames := make(map[uuid.UUID]string, len(stages))
	for _, stage := range stages {
		stageNames[stage.ID] = stage.Name
	}
	for _, task := range tasks {
		labels.tasks[task.ID] = task.Name
		labels.stages[task.ID] = stageNames[task.StageID]
	}
	for _, performer := range performers {
		labels.performers[performer.ID] = performer.DisplayName
	}

	if unknown := unknownIDs(filter.TaskIDs, labels.tasks); len(unknown) > 0 {
		return labelSet{}, UnknownTaskIDsError{IDs: unknown}
	}
	if unknown := unknownIDs(filter.PerformerIDs, labels.performers); len(unknown) > 0 {
		return labelSet{}, UnknownPerformerIDsError{IDs: unknown}
	}
	return labels, nil
}

func unknownIDs(ids []uuid.UUID, known map[uuid.UUID]string) []string {
	var unknown []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id.String())
		}
	}
	sort.Strings(unknown)
	return unknown
}

// pivotCell accumulates unrounded planned/actual sums for one group-month
// pair. Rounding happens once per published cell.
type pivotCell struct {
	taskID      uuid.UUID
	performerID uuid.UUID
	monthKey    string
	planned     decimal.Decimal
	actual      decimal.Decimal
}

func effortCells(entries []effort.Entry) []pivotCell {
	cells := make([]pivotCell, 0, len(entries))
	for _, entry := range entries {
		cells = append(cells, pivotCell{
			taskID:      entry.TaskID,
			performerID: entry.PerformerID,
			monthKey:    months.Key(entry.Month),
			planned:     entry.PlannedPersonDays,
			actual:      entry.ActualPersonDays,
		})
	}
	return cells
}

// costCells prices every effort entry through the effective rate of its
// performer and month. Entries without an effective rate cost zero.
func costCells(entries []effort.Entry, rates []rate.Rate, projectID uuid.UUID, calc rate.Calculator) []pivotCell {
	ratesByPerformer := make(map[uuid.UUID][]rate.Rate)
	for _, r := range rates {
		ratesByPerformer[r.PerformerID] = append(ratesByPerformer[r.PerformerID], r)
	}

	cells := make([]pivotCell, 0, len(entries))
	for _, entry := range entries {
		perDay := money.Zero
		if effective, ok := rate.Resolve(ratesByPerformer[entry.PerformerID], projectID, entry.Month); ok {
			perDay = calc.PerDayValue(effective)
		}
		cells = append(cells, pivotCell{
			taskID:      entry.TaskID,
			performerID: entry.PerformerID,
			monthKey:    months.Key(entry.Month),
			planned:     money.Cost(entry.PlannedPersonDays, perDay),
			actual:      money.Cost(entry.ActualPersonDays, perDay),
		})
	}
	return cells
}

type groupKey struct {
	group    uuid.UUID
	monthKey string
}

func pivotGroups(cells []pivotCell, monthAxis []time.Time, groupOf func(pivotCell) uuid.UUID) (map[uuid.UUID][]MonthCell, map[uuid.UUID]Totals) {
	sums := make(map[groupKey]*pivotCell)
	groups := make(map[uuid.UUID]struct{})
	for _, cell := range cells {
		group := groupOf(cell)
		groups[group] = struct{}{}
		key := groupKey{group: group, monthKey: cell.monthKey}
		sum := sums[key]
		if sum == nil {
			sum = &pivotCell{}
			sums[key] = sum
		}
		sum.planned = sum.planned.Add(cell.planned)
		sum.actual = sum.actual.Add(cell.actual)
	}

	monthsByGroup := make(map[uuid.UUID][]MonthCell, len(groups))
	totalsByGroup := make(map[uuid.UUID]Totals, len(groups))
	for group := range groups {
		monthCells := make([]MonthCell, 0, len(monthAxis))
		var totalPlanned, totalActual decimal.Decimal
		for _, month := range monthAxis {
			var planned, actual decimal.Decimal
			if sum := sums[groupKey{group: group, monthKey: months.Key(month)}]; sum != nil {
				planned = sum.planned
				actual = sum.actual
			}
			planned = money.Round2(planned)
			actual = money.Round2(actual)
			totalPlanned = totalPlanned.Add(planned)
			totalActual = totalActual.Add(actual)
			monthCells = append(monthCells, MonthCell{
				Month:    month,
				Planned:  planned,
				Actual:   actual,
				Variance: money.Round2(actual.Sub(planned)),
			})
		}
		monthsByGroup[group] = monthCells
		totalsByGroup[group] = Totals{
			Planned:  money.Round2(totalPlanned),
			Actual:   money.Round2(totalActual),
			Variance: money.Round2(totalActual.Sub(totalPlanned)),
		}
	}
	return monthsByGroup, totalsByGroup
}

func performerRows(cells []pivotCell, monthAxis []time.Time, labels labelSet) []PerformerRow {
	monthsByGroup, totalsByGroup := pivotGroups(cells, monthAxis, func(c pivotCell) uuid.UUID { return c.performerID })

	rows := make([]PerformerRow, 0, len(monthsByGroup))
	for performerID, monthCells := range monthsByGroup {
		name := labels.performers[performerID]
		if name == "" {
			name = performerID.String()
		}
		rows = append(rows, PerformerRow{
			PerformerID:   performerID,
			PerformerName: name,
			Months:        monthCells,
			Totals:        totalsByGroup[performerID],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PerformerName < rows[j].PerformerName })
	return rows
}

func taskRows(cells []pivotCell, monthAxis []time.Time, labels labelSet) []TaskRow {
	monthsByGroup, totalsByGroup := pivotGroups(cells, monthAxis, func(c pivotCell) uuid.UUID { return c.taskID })

	rows := make([]TaskRow, 0, len(monthsByGroup))
	for taskID, monthCells := range monthsByGroup {
		name := labels.tasks[taskID]
		if name == "" {
			name = taskID.String()
		}
		rows = append(rows, TaskRow{
			TaskID:    taskID,
			TaskName:  name,
			StageName: labels.stages[taskID],
			Months:    monthCells,
			Totals:    totalsByGroup[taskID],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TaskName < rows[j].TaskName })
	return rows
}

func workloadRows(entries []effort.Entry, monthAxis []time.Time, performers []project.Performer) []WorkloadRow {
	labels := make(map[uuid.UUID]string, len(performers))
	for _, performer := range performers {
		labels[performer.ID] = performer.DisplayName
	}

	type workloadTotals struct {
		planned decimal.Decimal
		actual  decimal.Decimal
	}
	workload := make(map[groupKey]*workloadTotals)
	seen := make(map[uuid.UUID]struct{})
	for _, entry := range entries {
		seen[entry.PerformerID] = struct{}{}
		key := groupKey{group: entry.PerformerID, monthKey: months.Key(entry.Month)}
		totals := workload[key]
		if totals == nil {
			totals = &workloadTotals{}
			workload[key] = totals
		}
		totals.planned = totals.planned.Add(entry.PlannedPersonDays)
		totals.actual = totals.actual.Add(entry.ActualPersonDays)
	}

	performerIDs := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		performerIDs = append(performerIDs, id)
	}
	sort.Slice(performerIDs, func(i, j int) bool { return performerIDs[i].String() < performerIDs[j].String() })

	rows := make([]WorkloadRow, 0, len(performerIDs))
	for _, performerID := range performerIDs {
		cells := make([]WorkloadCell, 0, len(monthAxis))
		for _, month := range monthAxis {
			var planned, actual decimal.Decimal
			if totals := workload[groupKey{group: performerID, monthKey: months.Key(month)}]; totals != nil {
				planned = totals.planned
				actual = totals.actual
			}
			cells = append(cells, WorkloadCell{
				Month:             month,
				PlannedPersonDays: money.Round2(planned),
				ActualPersonDays:  money.Round2(actual),
			})
		}
		name := labels[performerID]
		if name == "" {
			name = performerID.String()
		}
		rows = append(rows, WorkloadRow{
			PerformerID:   performerID,
			PerformerName: name,
			Months:        cells,
		})
	}
	return rows
}

func (s *ServiceImpl) windowRollups(ctx context.Context, proj project.Project, fromMonth, toMonth time.Time) ([]snapshot.Snapshot, error) {
	entries, err := s.efforts.List(ctx, proj.ID, fromMonth, toMonth)
	if err != nil {
		return nil, err
	}
	rates, err := s.rates.ListForProject(ctx, proj.BusinessUnitID, proj.ID)
	if err != nil {
		return nil, err
	}
	invoiceTotals, err := s.finances.InvoiceTotalsByMonth(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	revenueTotals, err := s.finances.RevenueTotalsByMonth(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	return snapshot.BuildRollupRange(proj, fromMonth, toMonth, entries, rates, s.calc, invoiceTotals, revenueTotals), nil
}
