package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pplan/pplan/internal/database"
	"github.com/pplan/pplan/pkg/effort"
	"github.com/pplan/pplan/pkg/finance"
	"github.com/pplan/pplan/pkg/project"
	"github.com/pplan/pplan/pkg/rate"
	log "github.com/sirupsen/logrus"
)

// Synchronizer rebuilds the monthly snapshots of a project from its effort
// entries, rates and financial registers. Every write path that touches one
// of those inputs calls RefreshTx within its own transaction, so the
// snapshot table always reflects the latest persisted state.
type Synchronizer struct {
	pool     *pgxpool.Pool
	repo     Repository
	projects project.Repository
	efforts  effort.Repository
	rates    rate.Repository
	finances finance.Repository
	calc     rate.Calculator
}

func NewSynchronizer(
	pool *pgxpool.Pool,
	repo Repository,
	projects project.Repository,
	efforts effort.Repository,
	rates rate.Repository,
	finances finance.Repository,
	calc rate.Calculator,
) *Synchronizer {
	return &Synchronizer{
		pool:     pool,
		repo:     repo,
		projects: projects,
		efforts:  efforts,
		rates:    rates,
		finances: finances,
		calc:     calc,
	}
}

// Refresh rebuilds the snapshots of a project in its own transaction and
// returns the fresh rows.
func (s *Synchronizer) Refresh(ctx context.Context, projectID uuid.UUID) ([]Snapshot, error) {
	var snapshots []Snapshot
	err := database.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		snapshots, err = s.refresh(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

// RefreshTx rebuilds the snapshots of a project inside the caller's
// transaction.
func (s *Synchronizer) RefreshTx(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) error {
	_, err := s.refresh(ctx, tx, projectID)
	return err
}

// RefreshRowsTx rebuilds the snapshots inside the caller's transaction and
// returns them as matrix rows.
func (s *Synchronizer) RefreshRowsTx(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) ([]effort.SnapshotRow, error) {
	snapshots, err := s.refresh(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}
	return toRows(snapshots), nil
}

// Rows reads the stored snapshots of a window without rebuilding them.
func (s *Synchronizer) Rows(ctx context.Context, projectID uuid.UUID, fromMonth, toMonth time.Time) ([]effort.SnapshotRow, error) {
	snapshots, err := s.repo.List(ctx, projectID, fromMonth, toMonth)
	if err != nil {
		return nil, err
	}
	return toRows(snapshots), nil
}

func (s *Synchronizer) CountForProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	return s.repo.CountForProject(ctx, projectID)
}

func (s *Synchronizer) refresh(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) ([]Snapshot, error) {
	projects := s.projects.WithTx(tx)
	proj, err := projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	entries, err := s.efforts.WithTx(tx).List(ctx, proj.ID, proj.StartMonth, proj.EndMonth)
	if err != nil {
		return nil, err
	}
	rates, err := s.rates.WithTx(tx).ListForProject(ctx, proj.BusinessUnitID, proj.ID)
	if err != nil {
		return nil, err
	}
	finances := s.finances.WithTx(tx)
	invoiceTotals, err := finances.InvoiceTotalsByMonth(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	revenueTotals, err := finances.RevenueTotalsByMonth(ctx, proj.ID)
	if err != nil {
		return nil, err
	}

	snapshots := BuildRollup(proj, entries, rates, s.calc, invoiceTotals, revenueTotals)

	repo := s.repo.WithTx(tx)
	persisted := make([]Snapshot, 0, len(snapshots))
	for _, snapshot := range snapshots {
		stored, err := repo.Upsert(ctx, snapshot)
		if err != nil {
			return nil, err
		}
		persisted = append(persisted, stored)
	}
	if err := repo.DeleteOutsideRange(ctx, proj.ID, proj.StartMonth, proj.EndMonth); err != nil {
		return nil, err
	}

	log.Debugf("Refreshed %d snapshot months for project %s", len(persisted), proj.ID)
	return persisted, nil
}

func toRows(snapshots []Snapshot) []effort.SnapshotRow {
	rows := make([]effort.SnapshotRow, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, effort.SnapshotRow{
			Month:                 s.Month,
			PlannedPersonDays:     s.PlannedPersonDays,
			ActualPersonDays:      s.ActualPersonDays,
			PlannedCost:           s.PlannedCost,
			ActualCost:            s.ActualCost,
			RevenueAmount:         s.RevenueAmount,
			InvoiceAmount:         s.InvoiceAmount,
			CumulativePlannedCost: s.CumulativePlannedCost,
			CumulativeActualCost:  s.CumulativeActualCost,
			CumulativeRevenue:     s.CumulativeRevenue,
		})
	}
	return rows
}
