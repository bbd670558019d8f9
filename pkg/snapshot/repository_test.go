package snapshot

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pplan/pplan/internal/test_utils"
	"github.com/pplan/pplan/pkg/businessunit"
	"github.com/pplan/pplan/pkg/effort"
	"github.com/pplan/pplan/pkg/finance"
	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	"github.com/pplan/pplan/pkg/rate"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var pgContainer *postgres.PostgresContainer
var openDb func() *pgxpool.Pool

func TestMain(m *testing.M) {
	pgContainer, openDb = test_utils.TestWithDB()
	defer func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			log.Errorf("failed to terminate container: %s", err)
		}
	}()
	code := m.Run()
	os.Exit(code)
}

type dbFixture struct {
	ctx       context.Context
	pool      *pgxpool.Pool
	repo      *RepositoryImpl
	projects  project.Repository
	sync      *Synchronizer
	unit      businessunit.BusinessUnit
	proj      project.Project
	task      project.Task
	performer project.Performer
}

// setupTestDB seeds a project spanning 2025-01..03 with one assigned
// performer on a 100.00 day rate, effort in January and February, one
// revenue in January and one invoice in February.
func setupTestDB(t *testing.T) *dbFixture {
	ctx := context.Background()
	pool := openDb()
	t.Cleanup(func() {
		pool.Close()
		err := pgContainer.Restore(ctx)
		require.NoError(t, err)
	})

	units := businessunit.NewRepository(pool)
	unit, err := units.Store(ctx, businessunit.BusinessUnit{Code: "DEL", Name: "Delivery", Active: true})
	require.NoError(t, err)

	projects := project.NewRepository(pool)
	proj, err := projects.StoreProject(ctx, project.Project{
		BusinessUnitID: unit.ID,
		Code:           "ROLLOUT",
		Name:           "Rollout",
		StartMonth:     monthOf(2025, 1),
		EndMonth:       monthOf(2025, 3),
		Status:         project.StatusActive,
	})
	require.NoError(t, err)

	stage, err := projects.StoreStage(ctx, project.Stage{
		ProjectID:  proj.ID,
		Name:       "Build",
		StartMonth: proj.StartMonth,
		EndMonth:   proj.EndMonth,
		SequenceNo: 1,
	})
	require.NoError(t, err)

	task, err := projects.StoreTask(ctx, project.Task{
		ProjectID:  proj.ID,
		StageID:    stage.ID,
		Code:       "API",
		Name:       "API work",
		SequenceNo: 1,
		Active:     true,
	})
	require.NoError(t, err)

	performer, err := projects.StorePerformer(ctx, project.Performer{
		BusinessUnitID: unit.ID,
		DisplayName:    "Alice",
		Active:         true,
	})
	require.NoError(t, err)

	_, err = projects.StoreAssignment(ctx, project.Assignment{TaskID: task.ID, PerformerID: performer.ID})
	require.NoError(t, err)

	efforts := effort.NewRepository(pool)
	for _, e := range []effort.Entry{
		{ProjectID: proj.ID, TaskID: task.ID, PerformerID: performer.ID, Month: monthOf(2025, 1), PlannedPersonDays: dec("2"), ActualPersonDays: dec("1")},
		{ProjectID: proj.ID, TaskID: task.ID, PerformerID: performer.ID, Month: monthOf(2025, 2), PlannedPersonDays: dec("3"), ActualPersonDays: dec("2")},
	} {
		_, err = efforts.Store(ctx, e)
		require.NoError(t, err)
	}

	rates := rate.NewRepository(pool)
	_, err = rates.Store(ctx, rate.Rate{
		BusinessUnitID: unit.ID,
		PerformerID:    performer.ID,
		Unit:           rate.UnitDay,
		Value:          dec("100"),
		EffectiveFrom:  monthOf(2025, 1),
		EffectiveTo:    months.Max,
	})
	require.NoError(t, err)

	finances := finance.NewRepository(pool)
	_, err = finances.StoreRevenue(ctx, finance.Revenue{
		ProjectID:       proj.ID,
		RevenueNo:       "REV-1",
		RecognitionDate: time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		Month:           monthOf(2025, 1),
		Amount:          dec("400"),
		Currency:        finance.CurrencyPLN,
	})
	require.NoError(t, err)
	_, err = finances.StoreInvoice(ctx, finance.Invoice{
		ProjectID:     proj.ID,
		InvoiceNo:     "INV-1",
		InvoiceDate:   time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
		Month:         monthOf(2025, 2),
		Amount:        dec("500"),
		Currency:      finance.CurrencyPLN,
		PaymentStatus: "unpaid",
	})
	require.NoError(t, err)

	repo := NewRepository(pool)
	sync := NewSynchronizer(pool, repo, projects, efforts, rates, finances, calc)

	return &dbFixture{
		ctx:       ctx,
		pool:      pool,
		repo:      repo,
		projects:  projects,
		sync:      sync,
		unit:      unit,
		proj:      proj,
		task:      task,
		performer: performer,
	}
}

func TestSynchronizer_Refresh(t *testing.T) {
	t.Run("persists one computed row per project month", func(t *testing.T) {
		// given
		f := setupTestDB(t)

		// when
		_, err := f.sync.Refresh(f.ctx, f.proj.ID)
		require.NoError(t, err)

		// then
		rows, err := f.repo.List(f.ctx, f.proj.ID, f.proj.StartMonth, f.proj.EndMonth)
		require.NoError(t, err)
		require.Len(t, rows, 3)

		jan, feb, mar := rows[0], rows[1], rows[2]
		assert.Equal(t, "200.00", money.String(jan.PlannedCost))
		assert.Equal(t, "100.00", money.String(jan.ActualCost))
		assert.Equal(t, "400.00", money.String(jan.RevenueAmount))
		assert.Equal(t, "0.00", money.String(jan.InvoiceAmount))

		assert.Equal(t, "300.00", money.String(feb.PlannedCost))
		assert.Equal(t, "200.00", money.String(feb.ActualCost))
		assert.Equal(t, "500.00", money.String(feb.InvoiceAmount))

		assert.Equal(t, "0.00", money.String(mar.PlannedCost))
		assert.Equal(t, "500.00", money.String(mar.CumulativePlannedCost))
		assert.Equal(t, "300.00", money.String(mar.CumulativeActualCost))
		assert.Equal(t, "400.00", money.String(mar.CumulativeRevenue))
	})

	t.Run("refreshing twice with unchanged inputs leaves identical rows", func(t *testing.T) {
		// given
		f := setupTestDB(t)

		// when
		_, err := f.sync.Refresh(f.ctx, f.proj.ID)
		require.NoError(t, err)
		first, err := f.repo.List(f.ctx, f.proj.ID, f.proj.StartMonth, f.proj.EndMonth)
		require.NoError(t, err)

		_, err = f.sync.Refresh(f.ctx, f.proj.ID)
		require.NoError(t, err)
		second, err := f.repo.List(f.ctx, f.proj.ID, f.proj.StartMonth, f.proj.EndMonth)
		require.NoError(t, err)

		// then: same months, same values, same ids
		assert.Equal(t, first, second)
	})

	t.Run("prunes months that left the project range", func(t *testing.T) {
		// given
		f := setupTestDB(t)
		_, err := f.sync.Refresh(f.ctx, f.proj.ID)
		require.NoError(t, err)

		shrunk := f.proj
		shrunk.EndMonth = monthOf(2025, 2)
		_, err = f.projects.UpdateProject(f.ctx, shrunk)
		require.NoError(t, err)

		// when
		_, err = f.sync.Refresh(f.ctx, f.proj.ID)
		require.NoError(t, err)

		// then
		rows, err := f.repo.List(f.ctx, f.proj.ID, monthOf(2025, 1), monthOf(2025, 12))
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, monthOf(2025, 1), rows[0].Month)
		assert.Equal(t, monthOf(2025, 2), rows[1].Month)
	})
}

func TestRepositoryImpl_Upsert(t *testing.T) {
	t.Run("update path returns the surviving row id", func(t *testing.T) {
		// given
		f := setupTestDB(t)
		first, err := f.repo.Upsert(f.ctx, Snapshot{ProjectID: f.proj.ID, Month: monthOf(2025, 1)})
		require.NoError(t, err)

		// when: a second upsert for the same month arrives with a fresh id
		second, err := f.repo.Upsert(f.ctx, Snapshot{
			ProjectID:   f.proj.ID,
			Month:       monthOf(2025, 1),
			PlannedCost: dec("42"),
		})
		require.NoError(t, err)

		// then
		assert.Equal(t, first.ID, second.ID)

		rows, err := f.repo.List(f.ctx, f.proj.ID, monthOf(2025, 1), monthOf(2025, 1))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, first.ID, rows[0].ID)
		assert.Equal(t, "42.00", money.String(rows[0].PlannedCost))
	})
}

func TestRepositoryImpl_ListForBusinessUnit(t *testing.T) {
	t.Run("joins the owning project code and name", func(t *testing.T) {
		// given
		f := setupTestDB(t)
		_, err := f.sync.Refresh(f.ctx, f.proj.ID)
		require.NoError(t, err)

		// when
		rows, err := f.repo.ListForBusinessUnit(f.ctx, f.unit.ID, monthOf(2025, 1), monthOf(2025, 3))
		require.NoError(t, err)

		// then
		require.Len(t, rows, 3)
		assert.Equal(t, "ROLLOUT", rows[0].ProjectCode)
		assert.Equal(t, "Rollout", rows[0].ProjectName)
	})
}
