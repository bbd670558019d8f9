package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pplan/pplan/internal/config"
	"github.com/pplan/pplan/internal/event_bus"
	"github.com/pplan/pplan/pkg/actor"
	"github.com/pplan/pplan/pkg/audit"
	"github.com/pplan/pplan/pkg/businessunit"
	"github.com/pplan/pplan/pkg/effort"
	"github.com/pplan/pplan/pkg/finance"
	"github.com/pplan/pplan/pkg/project"
	"github.com/pplan/pplan/pkg/rate"
	"github.com/pplan/pplan/pkg/report"
	"github.com/pplan/pplan/pkg/snapshot"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Bus *event_bus.EventBus

	ActorRepo actor.Repository

	BusinessUnitRepo    businessunit.Repository
	BusinessUnitService businessunit.Service
	BusinessUnitHandler *businessunit.Handler

	ProjectRepo    project.Repository
	ProjectService project.Service
	ProjectHandler *project.Handler

	EffortRepo    effort.Repository
	EffortService effort.Service
	MatrixHandler *effort.Handler

	RateRepo    rate.Repository
	RateService rate.Service
	RateHandler *rate.Handler

	FinanceRepo    finance.Repository
	FinanceService finance.Service
	FinanceHandler *finance.Handler

	SnapshotRepo         snapshot.Repository
	SnapshotSynchronizer *snapshot.Synchronizer

	ReportService     report.Service
	CsvReportRenderer *report.CsvReportRendererImpl
	ReportHandler     *report.Handler

	AuditRepo     audit.Repository
	AuditRecorder *audit.Recorder
	AuditHandler  *audit.Handler

	Calculator rate.Calculator
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(pool *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Bus = event_bus.NewEventBus()
	deps.Calculator = rate.NewCalculator(cfg.Planning.WorkingDaysPerMonth)

	deps.ActorRepo = actor.NewRepository(pool)

	deps.BusinessUnitRepo = businessunit.NewRepository(pool)
	deps.BusinessUnitService = businessunit.NewService(deps.BusinessUnitRepo, deps.Bus)
	deps.BusinessUnitHandler = businessunit.NewHandler(deps.BusinessUnitService)

	deps.ProjectRepo = project.NewRepository(pool)
	deps.EffortRepo = effort.NewRepository(pool)
	deps.RateRepo = rate.NewRepository(pool)
	deps.FinanceRepo = finance.NewRepository(pool)
	deps.SnapshotRepo = snapshot.NewRepository(pool)

	deps.SnapshotSynchronizer = snapshot.NewSynchronizer(
		pool,
		deps.SnapshotRepo,
		deps.ProjectRepo,
		deps.EffortRepo,
		deps.RateRepo,
		deps.FinanceRepo,
		deps.Calculator,
	)

	deps.ProjectService = project.NewService(pool, deps.ProjectRepo, deps.BusinessUnitRepo, deps.EffortRepo, deps.SnapshotSynchronizer, deps.Bus)
	deps.ProjectHandler = project.NewProjectHandler(deps.ProjectService)

	deps.EffortService = effort.NewService(pool, deps.EffortRepo, deps.ProjectRepo, deps.SnapshotSynchronizer, deps.Bus)
	deps.MatrixHandler = effort.NewMatrixHandler(deps.EffortService)

	deps.RateService = rate.NewService(pool, deps.RateRepo, deps.ProjectRepo, deps.SnapshotSynchronizer, deps.Bus)
	deps.RateHandler = rate.NewRateHandler(deps.RateService)

	deps.FinanceService = finance.NewService(pool, deps.FinanceRepo, deps.ProjectRepo, deps.SnapshotSynchronizer, deps.Bus)
	deps.FinanceHandler = finance.NewFinanceHandler(deps.FinanceService)

	deps.CsvReportRenderer = report.NewCsvReportRenderer()
	deps.ReportService = report.NewService(
		deps.ProjectRepo,
		deps.EffortRepo,
		deps.RateRepo,
		deps.FinanceRepo,
		deps.SnapshotRepo,
		deps.Calculator,
		deps.CsvReportRenderer,
	)
	deps.ReportHandler = report.NewHandler(deps.ReportService)

	deps.AuditRepo = audit.NewRepository(pool)
	deps.AuditRecorder = audit.NewRecorder(deps.AuditRepo)
	deps.AuditRecorder.Register(deps.Bus)
	deps.AuditHandler = audit.NewHandler(deps.AuditRepo)

	return deps
}
