package effort

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pplan/pplan/internal/test_utils"
	"github.com/pplan/pplan/pkg/actor"
	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type projectRepoStub struct {
	project.Repository
	proj        project.Project
	stages      []project.Stage
	tasks       []project.Task
	performers  []project.Performer
	assignments []project.Assignment
}

func (s *projectRepoStub) GetProject(_ context.Context, id uuid.UUID) (project.Project, error) {
	if id != s.proj.ID {
		return project.Project{}, project.ErrProjectNotFound
	}
	return s.proj, nil
}

func (s *projectRepoStub) ListStages(_ context.Context, _ uuid.UUID) ([]project.Stage, error) {
	return s.stages, nil
}

func (s *projectRepoStub) ListTasks(_ context.Context, _ uuid.UUID) ([]project.Task, error) {
	return s.tasks, nil
}

func (s *projectRepoStub) ListProjectPerformers(_ context.Context, _, _ uuid.UUID) ([]project.Performer, error) {
	return s.performers, nil
}

func (s *projectRepoStub) ListAssignments(_ context.Context, _ uuid.UUID) ([]project.Assignment, error) {
	return s.assignments, nil
}

type repoStub struct {
	Repository
	entries []Entry
	writes  int
}

func (s *repoStub) Store(_ context.Context, e Entry) (Entry, error) {
	s.writes++
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *repoStub) Update(_ context.Context, e Entry) (Entry, error) {
	s.writes++
	return e, nil
}

func (s *repoStub) List(_ context.Context, projectID uuid.UUID, fromMonth, toMonth time.Time) ([]Entry, error) {
	var list []Entry
	for _, e := range s.entries {
		if e.ProjectID == projectID && months.Within(e.Month, fromMonth, toMonth) {
			list = append(list, e)
		}
	}
	return list, nil
}

type snapshotSourceStub struct {
	rows []SnapshotRow
}

func (s *snapshotSourceStub) Rows(_ context.Context, _ uuid.UUID, fromMonth, toMonth time.Time) ([]SnapshotRow, error) {
	var rows []SnapshotRow
	for _, row := range s.rows {
		if months.Within(row.Month, fromMonth, toMonth) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *snapshotSourceStub) RefreshRowsTx(_ context.Context, _ pgx.Tx, _ uuid.UUID) ([]SnapshotRow, error) {
	return s.rows, nil
}

type fixture struct {
	service    Service
	ctx        context.Context
	editorCtx  context.Context
	proj       project.Project
	task       project.Task
	inactive   project.Task
	performer  project.Performer
	benched    project.Performer
	repo       *repoStub
	projects   *projectRepoStub
	snapshots  *snapshotSourceStub
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
		StartMonth:     monthOf(2025, 1),
		EndMonth:       monthOf(2025, 3),
		Status:         project.StatusActive,
	}
	stage := project.Stage{ID: uuid.New(), ProjectID: proj.ID, Name: "Build"}
	task := project.Task{ID: uuid.New(), ProjectID: proj.ID, StageID: stage.ID, Code: "T-A", Name: "API", Active: true}
	inactive := project.Task{ID: uuid.New(), ProjectID: proj.ID, StageID: stage.ID, Code: "T-X", Name: "Legacy", Active: false}
	performer := project.Performer{ID: uuid.New(), BusinessUnitID: buID, DisplayName: "Alice", Active: true}
	benched := project.Performer{ID: uuid.New(), BusinessUnitID: buID, DisplayName: "Bob", Active: false}

	projects := &projectRepoStub{
		proj:       proj,
		stages:     []project.Stage{stage},
		tasks:      []project.Task{task, inactive},
		performers: []project.Performer{performer, benched},
		assignments: []project.Assignment{
			{TaskID: task.ID, PerformerID: performer.ID},
			{TaskID: inactive.ID, PerformerID: performer.ID},
			{TaskID: task.ID, PerformerID: benched.ID},
		},
	}
	repo := &repoStub{}
	snapshots := &snapshotSourceStub{}

	return &fixture{
		service:   NewService(nil, repo, projects, snapshots, nil),
		ctx:       test_utils.ViewerContext(context.Background(), buID),
		editorCtx: test_utils.EditorContext(context.Background(), buID),
		proj:      proj,
		task:      task,
		inactive:  inactive,
		performer: performer,
		benched:   benched,
		repo:      repo,
		projects:  projects,
		snapshots: snapshots,
	}
}

func (f *fixture) addEntry(taskID, performerID uuid.UUID, month time.Time, planned, actual string) {
	f.repo.entries = append(f.repo.entries, Entry{
		ID:                uuid.New(),
		ProjectID:         f.proj.ID,
		TaskID:            taskID,
		PerformerID:       performerID,
		Month:             month,
		PlannedPersonDays: dec(planned),
		ActualPersonDays:  dec(actual),
	})
}

func cellInput(taskID, performerID uuid.UUID, month time.Time, planned, actual string) EntryInput {
	return EntryInput{
		TaskID:            taskID,
		PerformerID:       performerID,
		Month:             month,
		PlannedPersonDays: dec(planned),
		ActualPersonDays:  dec(actual),
	}
}

func TestServiceImpl_ReadMatrix(t *testing.T) {
	t.Run("spans the full project range by default", func(t *testing.T) {
		f := newFixture()
		f.addEntry(f.task.ID, f.performer.ID, monthOf(2025, 1), "2.5", "2")

		matrix, err := f.service.ReadMatrix(f.ctx, f.proj.ID, nil, nil)

		require.NoError(t, err)
		require.Len(t, matrix.Months, 3)
		assert.Equal(t, monthOf(2025, 1), matrix.Months[0])
		assert.Equal(t, monthOf(2025, 3), matrix.Months[2])
		require.Len(t, matrix.Stages, 1)
		require.Len(t, matrix.Tasks, 2)
		require.Len(t, matrix.Performers, 2)
	})

	t.Run("builds a dense grid over every assigned pair and month", func(t *testing.T) {
		f := newFixture()
		f.addEntry(f.task.ID, f.performer.ID, monthOf(2025, 2), "2.5", "2")

		matrix, err := f.service.ReadMatrix(f.ctx, f.proj.ID, nil, nil)

		require.NoError(t, err)
		// 3 assigned pairs x 3 months.
		require.Len(t, matrix.Entries, 9)
		var filled, zero int
		for _, cell := range matrix.Entries {
			if cell.TaskID == f.task.ID && cell.PerformerID == f.performer.ID && cell.Month.Equal(monthOf(2025, 2)) {
				assert.Equal(t, "2.50", money.String(cell.Planned))
				assert.Equal(t, "2.00", money.String(cell.Actual))
				filled++
				continue
			}
			assert.True(t, cell.Planned.IsZero())
			zero++
		}
		assert.Equal(t, 1, filled)
		assert.Equal(t, 8, zero)
	})

	t.Run("sums per-task and per-performer monthly totals", func(t *testing.T) {
		f := newFixture()
		f.addEntry(f.task.ID, f.performer.ID, monthOf(2025, 1), "2", "1")
		f.addEntry(f.task.ID, f.benched.ID, monthOf(2025, 1), "3", "0")

		matrix, err := f.service.ReadMatrix(f.ctx, f.proj.ID, nil, nil)

		require.NoError(t, err)
		var taskRow TaskRow
		for _, row := range matrix.Tasks {
			if row.Task.ID == f.task.ID {
				taskRow = row
			}
		}
		require.Len(t, taskRow.MonthlyTotals, 3)
		assert.Equal(t, "5.00", money.String(taskRow.MonthlyTotals[0].Planned))
		assert.Equal(t, "1.00", money.String(taskRow.MonthlyTotals[0].Actual))

		var performerRow PerformerRow
		for _, row := range matrix.Performers {
			if row.Performer.ID == f.performer.ID {
				performerRow = row
			}
		}
		assert.Equal(t, "2.00", money.String(performerRow.MonthlyTotals[0].Planned))
	})

	t.Run("zero-fills snapshot rows for months without data", func(t *testing.T) {
		f := newFixture()
		f.snapshots.rows = []SnapshotRow{{Month: monthOf(2025, 2), PlannedCost: dec("300.00")}}

		matrix, err := f.service.ReadMatrix(f.ctx, f.proj.ID, nil, nil)

		require.NoError(t, err)
		require.Len(t, matrix.Snapshots, 3)
		assert.True(t, matrix.Snapshots[0].PlannedCost.IsZero())
		assert.Equal(t, "300.00", money.String(matrix.Snapshots[1].PlannedCost))
		assert.Equal(t, monthOf(2025, 3), matrix.Snapshots[2].Month)
	})

	t.Run("window outside the project range is rejected", func(t *testing.T) {
		f := newFixture()
		before := monthOf(2024, 12)

		_, err := f.service.ReadMatrix(f.ctx, f.proj.ID, &before, nil)

		assert.ErrorIs(t, err, ErrMatrixOutsideProject)
	})

	t.Run("inverted window is rejected", func(t *testing.T) {
		f := newFixture()
		from := monthOf(2025, 3)
		to := monthOf(2025, 1)

		_, err := f.service.ReadMatrix(f.ctx, f.proj.ID, &from, &to)

		assert.ErrorIs(t, err, ErrMatrixRangeInverted)
	})

	t.Run("mid-month window bound is rejected", func(t *testing.T) {
		f := newFixture()
		midMonth := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

		_, err := f.service.ReadMatrix(f.ctx, f.proj.ID, &midMonth, nil)

		assert.ErrorIs(t, err, months.ErrNotMonthStart)
	})
}

func TestServiceImpl_BulkUpsert_Validation(t *testing.T) {
	t.Run("viewer may not edit the matrix", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.BulkUpsert(f.ctx, f.proj.ID, nil)

		assert.ErrorIs(t, err, actor.ErrForbidden)
	})

	t.Run("negative person days fail the whole batch", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []EntryInput{
			cellInput(f.task.ID, f.performer.ID, monthOf(2025, 1), "2", "-1"),
		})

		assert.ErrorIs(t, err, ErrNegativePersonDays)
	})

	t.Run("month outside the project range is rejected", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []EntryInput{
			cellInput(f.task.ID, f.performer.ID, monthOf(2025, 4), "2", "0"),
		})

		assert.ErrorIs(t, err, ErrMonthOutsideRange)
	})

	t.Run("unknown task is rejected", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []EntryInput{
			cellInput(uuid.New(), f.performer.ID, monthOf(2025, 1), "2", "0"),
		})

		assert.ErrorIs(t, err, ErrUnknownTask)
	})

	t.Run("inactive task is rejected", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []EntryInput{
			cellInput(f.inactive.ID, f.performer.ID, monthOf(2025, 1), "2", "0"),
		})

		assert.ErrorIs(t, err, ErrInactiveTask)
	})

	t.Run("unknown performer is rejected", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []EntryInput{
			cellInput(f.task.ID, uuid.New(), monthOf(2025, 1), "2", "0"),
		})

		assert.ErrorIs(t, err, ErrUnknownPerformer)
	})

	t.Run("inactive performer is rejected", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []EntryInput{
			cellInput(f.task.ID, f.benched.ID, monthOf(2025, 1), "2", "0"),
		})

		assert.ErrorIs(t, err, ErrInactivePerformer)
	})

	t.Run("unassigned pair is rejected", func(t *testing.T) {
		f := newFixture()
		lonely := project.Performer{ID: uuid.New(), BusinessUnitID: f.proj.BusinessUnitID, DisplayName: "Carol", Active: true}
		f.projects.performers = append(f.projects.performers, lonely)

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []EntryInput{
			cellInput(f.task.ID, lonely.ID, monthOf(2025, 1), "2", "0"),
		})

		assert.ErrorIs(t, err, ErrPairNotAssigned)
	})

	t.Run("duplicate cell key in one batch is rejected", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []EntryInput{
			cellInput(f.task.ID, f.performer.ID, monthOf(2025, 1), "2", "0"),
			cellInput(f.task.ID, f.performer.ID, monthOf(2025, 1), "3", "0"),
		})

		assert.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("mid-month date is rejected", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []EntryInput{
			cellInput(f.task.ID, f.performer.ID, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), "2", "0"),
		})

		assert.ErrorIs(t, err, months.ErrNotMonthStart)
	})

	t.Run("a bad row keeps the whole batch out of the store", func(t *testing.T) {
		f := newFixture()
		existing := Entry{
			ID:                uuid.New(),
			ProjectID:         f.proj.ID,
			TaskID:            f.task.ID,
			PerformerID:       f.performer.ID,
			Month:             monthOf(2025, 1),
			PlannedPersonDays: decimal.RequireFromString("2"),
		}
		f.repo.entries = []Entry{existing}

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []EntryInput{
			cellInput(f.task.ID, f.performer.ID, monthOf(2025, 1), "5", "0"),
			cellInput(f.task.ID, f.performer.ID, monthOf(2025, 2), "1", "-1"),
		})

		require.ErrorIs(t, err, ErrNegativePersonDays)
		assert.Zero(t, f.repo.writes)
		assert.Equal(t, []Entry{existing}, f.repo.entries)
	})
}
