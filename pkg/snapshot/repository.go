package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pplan/pplan/internal/database"
	log "github.com/sirupsen/logrus"
)

// BusinessUnitSnapshot pairs a snapshot with its owning project for
// unit-wide aggregation.
type BusinessUnitSnapshot struct {
	Snapshot
	ProjectCode string
	ProjectName string
}

type Repository interface {
	WithTx(tx pgx.Tx) Repository

	List(ctx context.Context, projectID uuid.UUID, fromMonth, toMonth time.Time) ([]Snapshot, error)
	ListForBusinessUnit(ctx context.Context, businessUnitID uuid.UUID, fromMonth, toMonth time.Time) ([]BusinessUnitSnapshot, error)
	Upsert(ctx context.Context, s Snapshot) (Snapshot, error)
	DeleteOutsideRange(ctx context.Context, projectID uuid.UUID, startMonth, endMonth time.Time) error
	CountForProject(ctx context.Context, projectID uuid.UUID) (int, error)
}

type RepositoryImpl struct {
	db database.Querier
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) WithTx(tx pgx.Tx) Repository {
	return &RepositoryImpl{db: tx}
}

const snapshotColumns = `id, project_id, month_start, planned_person_days, actual_person_days, planned_cost, actual_cost,
	revenue_amount, invoice_amount, cumulative_planned_cost, cumulative_actual_cost, cumulative_revenue`

func scanSnapshot(row pgx.Row, s *Snapshot) error {
	return row.Scan(
		&s.ID, &s.ProjectID, &s.Month, &s.PlannedPersonDays, &s.ActualPersonDays, &s.PlannedCost, &s.ActualCost,
		&s.RevenueAmount, &s.InvoiceAmount, &s.CumulativePlannedCost, &s.CumulativeActualCost, &s.CumulativeRevenue,
	)
}

func (r *RepositoryImpl) List(ctx context.Context, projectID uuid.UUID, fromMonth, toMonth time.Time) ([]Snapshot, error) {
	query := `SELECT ` + snapshotColumns + `
			  FROM project_monthly_snapshots
			  WHERE project_id = $1 AND month_start >= $2 AND month_start <= $3
			  ORDER BY month_start`
	rows, err := r.db.Query(ctx, query, projectID, fromMonth, toMonth)
	if err != nil {
		log.Errorf("could not query snapshots for project %s: %v", projectID, err)
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := scanSnapshot(rows, &s); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

func (r *RepositoryImpl) ListForBusinessUnit(ctx context.Context, businessUnitID uuid.UUID, fromMonth, toMonth time.Time) ([]BusinessUnitSnapshot, error) {
	query := `SELECT s.id, s.project_id, s.month_start, s.planned_person_days, s.actual_person_days, s.planned_cost, s.actual_cost,
					 s.revenue_amount, s.invoice_amount, s.cumulative_planned_cost, s.cumulative_actual_cost, s.cumulative_revenue,
					 p.code, p.name
			  FROM project_monthly_snapshots s
			  JOIN projects p ON p.id = s.project_id
			  WHERE p.business_unit_id = $1 AND s.month_start >= $2 AND s.month_start <= $3
			  ORDER BY s.month_start, p.code`
	rows, err := r.db.Query(ctx, query, businessUnitID, fromMonth, toMonth)
	if err != nil {
		log.Errorf("could not query snapshots for business unit %s: %v", businessUnitID, err)
		return nil, err
	}
	defer rows.Close()

	var snapshots []BusinessUnitSnapshot
	for rows.Next() {
		var s BusinessUnitSnapshot
		err := rows.Scan(
			&s.ID, &s.ProjectID, &s.Month, &s.PlannedPersonDays, &s.ActualPersonDays, &s.PlannedCost, &s.ActualCost,
			&s.RevenueAmount, &s.InvoiceAmount, &s.CumulativePlannedCost, &s.CumulativeActualCost, &s.CumulativeRevenue,
			&s.ProjectCode, &s.ProjectName,
		)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// Upsert writes the row keyed by (project, month). Refreshing twice in a
// row leaves the table unchanged. On the update path the returned row
// carries the surviving id, not the freshly generated one.
func (r *RepositoryImpl) Upsert(ctx context.Context, s Snapshot) (Snapshot, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	query := `INSERT INTO project_monthly_snapshots (` + snapshotColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			  ON CONFLICT (project_id, month_start) DO UPDATE SET
				  planned_person_days = EXCLUDED.planned_person_days,
				  actual_person_days = EXCLUDED.actual_person_days,
				  planned_cost = EXCLUDED.planned_cost,
				  actual_cost = EXCLUDED.actual_cost,
				  revenue_amount = EXCLUDED.revenue_amount,
				  invoice_amount = EXCLUDED.invoice_amount,
				  cumulative_planned_cost = EXCLUDED.cumulative_planned_cost,
				  cumulative_actual_cost = EXCLUDED.cumulative_actual_cost,
				  cumulative_revenue = EXCLUDED.cumulative_revenue
			  RETURNING id`
	err := r.db.QueryRow(ctx, query,
		s.ID, s.ProjectID, s.Month, s.PlannedPersonDays, s.ActualPersonDays, s.PlannedCost, s.ActualCost,
		s.RevenueAmount, s.InvoiceAmount, s.CumulativePlannedCost, s.CumulativeActualCost, s.CumulativeRevenue,
	).Scan(&s.ID)
	if err != nil {
		log.Errorf("could not upsert snapshot for project %s month %s: %v", s.ProjectID, s.Month, err)
		return Snapshot{}, err
	}
	return s, nil
}

func (r *RepositoryImpl) DeleteOutsideRange(ctx context.Context, projectID uuid.UUID, startMonth, endMonth time.Time) error {
	query := `DELETE FROM project_monthly_snapshots
			  WHERE project_id = $1 AND (month_start < $2 OR month_start > $3)`
	if _, err := r.db.Exec(ctx, query, projectID, startMonth, endMonth); err != nil {
		log.Errorf("could not prune snapshots for project %s: %v", projectID, err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) CountForProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM project_monthly_snapshots WHERE project_id = $1`, projectID).Scan(&count)
	if err != nil {
		log.Errorf("could not count snapshots for project %s: %v", projectID, err)
		return 0, err
	}
	return count, nil
}
