package effort

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pplan/pplan/internal/database"
	"github.com/pplan/pplan/internal/event_bus"
	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNegativePersonDays   = errors.New("planned_person_days and actual_person_days must be greater or equal zero")
	ErrMonthOutsideRange    = errors.New("matrix edits outside project month range are rejected")
	ErrUnknownTask          = errors.New("task_id must reference task in this project")
	ErrInactiveTask         = errors.New("edits for inactive task are rejected")
	ErrUnknownPerformer     = errors.New("performer_id must reference performer in project business unit")
	ErrInactivePerformer    = errors.New("edits for inactive performer are rejected")
	ErrPairNotAssigned      = errors.New("task-performer pair must be assigned before matrix edits")
	ErrDuplicateKey         = errors.New("duplicate matrix entry key in bulk payload")
	ErrUpsertConflict       = errors.New("bulk matrix save violated entry uniqueness constraints")
	ErrMatrixRangeInverted  = errors.New("to_month must be greater than or equal to from_month")
	ErrMatrixOutsideProject = errors.New("requested matrix month range must be within project month range")
)

// SnapshotRow is the per-month snapshot slice the matrix response carries
// alongside the raw entries.
type SnapshotRow struct {
	Month                 time.Time
	PlannedPersonDays     decimal.Decimal
	ActualPersonDays      decimal.Decimal
	PlannedCost           decimal.Decimal
	ActualCost            decimal.Decimal
	RevenueAmount         decimal.Decimal
	InvoiceAmount         decimal.Decimal
	CumulativePlannedCost decimal.Decimal
	CumulativeActualCost  decimal.Decimal
	CumulativeRevenue     decimal.Decimal
}

// SnapshotSource supplies snapshot rows for reads and rebuilds them inside
// the matrix upsert transaction.
type SnapshotSource interface {
	Rows(ctx context.Context, projectID uuid.UUID, fromMonth, toMonth time.Time) ([]SnapshotRow, error)
	RefreshRowsTx(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) ([]SnapshotRow, error)
}

type MonthlyTotal struct {
	Month   time.Time
	Planned decimal.Decimal
	Actual  decimal.Decimal
}

type TaskRow struct {
	Task          project.Task
	MonthlyTotals []MonthlyTotal
	PerformerIDs  []uuid.UUID
}

type PerformerRow struct {
	Performer     project.Performer
	MonthlyTotals []MonthlyTotal
}

// Cell is one dense grid position of the matrix. Cells without a stored
// entry carry zero values.
type Cell struct {
	TaskID      uuid.UUID
	PerformerID uuid.UUID
	Month       time.Time
	Planned     decimal.Decimal
	Actual      decimal.Decimal
}

type Matrix struct {
	Project     project.Project
	Months      []time.Time
	Stages      []project.Stage
	Tasks       []TaskRow
	Performers  []PerformerRow
	Assignments []project.Assignment
	Entries     []Cell
	Snapshots   []SnapshotRow
}

// EntryInput is one cell of a bulk matrix write.
type EntryInput struct {
	TaskID            uuid.UUID
	PerformerID       uuid.UUID
	Month             time.Time
	PlannedPersonDays decimal.Decimal
	ActualPersonDays  decimal.Decimal
}

type UpsertResult struct {
	UpdatedEntries int
	Snapshots      []SnapshotRow
}

type Service interface {
	ReadMatrix(ctx context.Context, projectID uuid.UUID, fromMonth, toMonth *time.Time) (Matrix, error)
	BulkUpsert(ctx context.Context, projectID uuid.UUID, entries []EntryInput) (UpsertResult, error)
}

type ServiceImpl struct {
	pool      *pgxpool.Pool
	repo      Repository
	projects  project.Repository
	guard     *project.Guard
	snapshots SnapshotSource
	bus       *event_bus.EventBus
}

func NewService(
	pool *pgxpool.Pool,
	repo Repository,
	projects project.Repository,
	snapshots SnapshotSource,
	bus *event_bus.EventBus,
) *ServiceImpl {
	return &ServiceImpl{
		pool:      pool,
		repo:      repo,
		projects:  projects,
		guard:     project.NewGuard(projects),
		snapshots: snapshots,
		bus:       bus,
	}
}

// ReadMatrix assembles the full editing surface of a project: the month
// axis, stage and task rows with per-month totals, assigned performers
// with per-month totals, the dense entry grid over every assigned pair,
// and the snapshot rows of the window.
func (s *ServiceImpl) ReadMatrix(ctx context.Context, projectID uuid.UUID, fromMonth, toMonth *time.Time) (Matrix, error) {
	proj, err := s.guard.View(ctx, projectID)
	if err != nil {
		return Matrix{}, err
	}

	matrixFrom := proj.StartMonth
	matrixTo := proj.EndMonth
	if fromMonth != nil {
		if matrixFrom, err = months.Normalize(*fromMonth); err != nil {
			return Matrix{}, err
		}
	}
	if toMonth != nil {
		if matrixTo, err = months.Normalize(*toMonth); err != nil {
			return Matrix{}, err
		}
	}
	if matrixFrom.Before(proj.StartMonth) || matrixTo.After(proj.EndMonth) {
		return Matrix{}, ErrMatrixOutsideProject
	}
	if matrixTo.Before(matrixFrom) {
		return Matrix{}, ErrMatrixRangeInverted
	}

	monthAxis := months.Sequence(matrixFrom, matrixTo)
	stages, err := s.projects.ListStages(ctx, proj.ID)
	if err != nil {
		return Matrix{}, err
	}
	tasks, err := s.projects.ListTasks(ctx, proj.ID)
	if err != nil {
		return Matrix{}, err
	}
	performers, err := s.projects.ListProjectPerformers(ctx, proj.ID, proj.BusinessUnitID)
	if err != nil {
		return Matrix{}, err
	}
	assignments, err := s.projects.ListAssignments(ctx, proj.ID)
	if err != nil {
		return Matrix{}, err
	}
	entries, err := s.repo.List(ctx, proj.ID, matrixFrom, matrixTo)
	if err != nil {
		return Matrix{}, err
	}
	snapshots, err := s.snapshots.Rows(ctx, proj.ID, matrixFrom, matrixTo)
	if err != nil {
		return Matrix{}, err
	}

	type totalKey struct {
		id    uuid.UUID
		month string
	}
	entryMap := make(map[entryKey]Entry, len(entries))
	performerTotals := make(map[totalKey]MonthlyTotal)
	taskTotals := make(map[totalKey]MonthlyTotal)
	for _, entry := range entries {
		entryMap[entryKey{entry.TaskID, entry.PerformerID, months.Key(entry.Month)}] = entry

		pKey := totalKey{entry.PerformerID, months.Key(entry.Month)}
		pTotal := performerTotals[pKey]
		pTotal.Planned = pTotal.Planned.Add(entry.PlannedPersonDays)
		pTotal.Actual = pTotal.Actual.Add(entry.ActualPersonDays)
		performerTotals[pKey] = pTotal

		tKey := totalKey{entry.TaskID, months.Key(entry.Month)}
		tTotal := taskTotals[tKey]
		tTotal.Planned = tTotal.Planned.Add(entry.PlannedPersonDays)
		tTotal.Actual = tTotal.Actual.Add(entry.ActualPersonDays)
		taskTotals[tKey] = tTotal
	}

	taskPerformers := make(map[uuid.UUID][]uuid.UUID)
	for _, assignment := range assignments {
		taskPerformers[assignment.TaskID] = append(taskPerformers[assignment.TaskID], assignment.PerformerID)
	}

	taskRows := make([]TaskRow, 0, len(tasks))
	for _, task := range tasks {
		row := TaskRow{Task: task, PerformerIDs: taskPerformers[task.ID]}
		for _, month := range monthAxis {
			total := taskTotals[totalKey{task.ID, months.Key(month)}]
			total.Month = month
			row.MonthlyTotals = append(row.MonthlyTotals, total)
		}
		taskRows = append(taskRows, row)
	}

	performerRows := make([]PerformerRow, 0, len(performers))
	for _, performer := range performers {
		row := PerformerRow{Performer: performer}
		for _, month := range monthAxis {
			total := performerTotals[totalKey{performer.ID, months.Key(month)}]
			total.Month = month
			row.MonthlyTotals = append(row.MonthlyTotals, total)
		}
		performerRows = append(performerRows, row)
	}

	var cells []Cell
	for _, task := range tasks {
		for _, performerID := range taskPerformers[task.ID] {
			for _, month := range monthAxis {
				cell := Cell{TaskID: task.ID, PerformerID: performerID, Month: month}
				if entry, ok := entryMap[entryKey{task.ID, performerID, months.Key(month)}]; ok {
					cell.Planned = entry.PlannedPersonDays
					cell.Actual = entry.ActualPersonDays
				}
				cells = append(cells, cell)
			}
		}
	}

	snapshotByMonth := make(map[string]SnapshotRow, len(snapshots))
	for _, row := range snapshots {
		snapshotByMonth[months.Key(row.Month)] = row
	}
	snapshotRows := make([]SnapshotRow, 0, len(monthAxis))
	for _, month := range monthAxis {
		row := snapshotByMonth[months.Key(month)]
		row.Month = month
		snapshotRows = append(snapshotRows, row)
	}

	return Matrix{
		Project:     proj,
		Months:      monthAxis,
		Stages:      stages,
		Tasks:       taskRows,
		Performers:  performerRows,
		Assignments: assignments,
		Entries:     cells,
		Snapshots:   snapshotRows,
	}, nil
}

type entryKey struct {
	taskID      uuid.UUID
	performerID uuid.UUID
	month       string
}

// BulkUpsert validates every cell before writing any of them. A single
// rejected cell fails the whole batch and the database is untouched. The
// writes and exactly one snapshot refresh share one transaction.
func (s *ServiceImpl) BulkUpsert(ctx context.Context, projectID uuid.UUID, entries []EntryInput) (UpsertResult, error) {
	proj, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return UpsertResult{}, err
	}

	tasks, err := s.projects.ListTasks(ctx, proj.ID)
	if err != nil {
		return UpsertResult{}, err
	}
	taskByID := make(map[uuid.UUID]project.Task, len(tasks))
	for _, task := range tasks {
		taskByID[task.ID] = task
	}
	performers, err := s.projects.ListProjectPerformers(ctx, proj.ID, proj.BusinessUnitID)
	if err != nil {
		return UpsertResult{}, err
	}
	performerByID := make(map[uuid.UUID]project.Performer, len(performers))
	for _, performer := range performers {
		performerByID[performer.ID] = performer
	}
	assignments, err := s.projects.ListAssignments(ctx, proj.ID)
	if err != nil {
		return UpsertResult{}, err
	}
	assigned := make(map[entryKey]bool, len(assignments))
	for _, assignment := range assignments {
		assigned[entryKey{taskID: assignment.TaskID, performerID: assignment.PerformerID}] = true
	}

	normalized := make([]EntryInput, 0, len(entries))
	seen := make(map[entryKey]bool, len(entries))
	for _, input := range entries {
		month, err := months.Normalize(input.Month)
		if err != nil {
			return UpsertResult{}, err
		}
		if input.PlannedPersonDays.LessThan(money.Zero) || input.ActualPersonDays.LessThan(money.Zero) {
			return UpsertResult{}, ErrNegativePersonDays
		}
		if !months.Within(month, proj.StartMonth, proj.EndMonth) {
			return UpsertResult{}, ErrMonthOutsideRange
		}
		task, ok := taskByID[input.TaskID]
		if !ok {
			return UpsertResult{}, ErrUnknownTask
		}
		if !task.Active {
			return UpsertResult{}, ErrInactiveTask
		}
		performer, ok := performerByID[input.PerformerID]
		if !ok {
			return UpsertResult{}, ErrUnknownPerformer
		}
		if !performer.Active {
			return UpsertResult{}, ErrInactivePerformer
		}
		if !assigned[entryKey{taskID: task.ID, performerID: performer.ID}] {
			return UpsertResult{}, ErrPairNotAssigned
		}

		key := entryKey{task.ID, performer.ID, months.Key(month)}
		if seen[key] {
			return UpsertResult{}, ErrDuplicateKey
		}
		seen[key] = true

		input.Month = month
		normalized = append(normalized, input)
	}

	var snapshots []SnapshotRow
	err = database.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		for _, input := range normalized {
			existing, err := repo.Get(ctx, proj.ID, input.TaskID, input.PerformerID, input.Month)
			switch {
			case errors.Is(err, ErrEntryNotFound):
				_, err = repo.Store(ctx, Entry{
					ProjectID:         proj.ID,
					TaskID:            input.TaskID,
					PerformerID:       input.PerformerID,
					Month:             input.Month,
					PlannedPersonDays: input.PlannedPersonDays,
					ActualPersonDays:  input.ActualPersonDays,
				})
				if err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				existing.PlannedPersonDays = input.PlannedPersonDays
				existing.ActualPersonDays = input.ActualPersonDays
				if _, err := repo.Update(ctx, existing); err != nil {
					return err
				}
			}
		}
		snapshots, err = s.snapshots.RefreshRowsTx(ctx, tx, proj.ID)
		return err
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return UpsertResult{}, ErrUpsertConflict
		}
		return UpsertResult{}, err
	}

	s.publishAudit(ctx, proj, len(normalized))
	return UpsertResult{UpdatedEntries: len(normalized), Snapshots: snapshots}, nil
}

func (s *ServiceImpl) publishAudit(ctx context.Context, proj project.Project, updated int) {
	if s.bus == nil {
		return
	}
	payload := event_bus.EntityMutated{
		BusinessUnitID: proj.BusinessUnitID,
		EntityName:     "effort_monthly_entry",
		EntityID:       proj.ID.String(),
		ActionType:     "bulk_upsert",
		After:          map[string]any{"updated_entries": updated},
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.bus.Publish(event_bus.NewEvent(ctx, event_bus.EntityMutatedEvent, payload)); err != nil {
		log.Warnf("failed to publish matrix audit event for project %s: %v", proj.ID, err)
	}
}
