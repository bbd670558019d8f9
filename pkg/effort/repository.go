package effort

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pplan/pplan/internal/database"
	log "github.com/sirupsen/logrus"
)

var ErrEntryNotFound = errors.New("effort entry not found")

type Repository interface {
	WithTx(tx pgx.Tx) Repository

	List(ctx context.Context, projectID uuid.UUID, fromMonth, toMonth time.Time) ([]Entry, error)
	ListFiltered(ctx context.Context, projectID uuid.UUID, fromMonth, toMonth time.Time, taskIDs, performerIDs []uuid.UUID) ([]Entry, error)
	ListForBusinessUnit(ctx context.Context, businessUnitID uuid.UUID, fromMonth, toMonth time.Time) ([]Entry, error)
	Get(ctx context.Context, projectID, taskID, performerID uuid.UUID, month time.Time) (Entry, error)
	Store(ctx context.Context, e Entry) (Entry, error)
	Update(ctx context.Context, e Entry) (Entry, error)

	CountForProject(ctx context.Context, projectID uuid.UUID) (int, error)
	CountForTask(ctx context.Context, taskID uuid.UUID) (int, error)
	CountForPerformer(ctx context.Context, performerID uuid.UUID) (int, error)
	CountForAssignment(ctx context.Context, taskID, performerID uuid.UUID) (int, error)
	CountOutsideRange(ctx context.Context, projectID uuid.UUID, startMonth, endMonth time.Time) (int, error)
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

const entryColumns = `id, project_id, task_id, performer_id, month_start, planned_person_days, actual_person_days`

func (r *RepositoryImpl) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		log.Errorf("could not query effort entries: %v", err)
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.TaskID, &e.PerformerID, &e.Month, &e.PlannedPersonDays, &e.ActualPersonDays); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *RepositoryImpl) List(ctx context.Context, projectID uuid.UUID, fromMonth, toMonth time.Time) ([]Entry, error) {
	query := `SELECT ` + entryColumns + `
			  FROM effort_monthly_entries
			  WHERE project_id = $1 AND month_start >= $2 AND month_start <= $3
			  ORDER BY month_start, task_id, performer_id`
	return r.queryEntries(ctx, query, projectID, fromMonth, toMonth)
}

func (r *RepositoryImpl) ListFiltered(ctx context.Context, projectID uuid.UUID, fromMonth, toMonth time.Time, taskIDs, performerIDs []uuid.UUID) ([]Entry, error) {
	query := `SELECT ` + entryColumns + `
			  FROM effort_monthly_entries
			  WHERE project_id = $1 AND month_start >= $2 AND month_start <= $3
			    AND (cardinality($4::uuid[]) = 0 OR task_id = ANY($4))
			    AND (cardinality($5::uuid[]) = 0 OR performer_id = ANY($5))
			  ORDER BY month_start, task_id, performer_id`
	if taskIDs == nil {
		taskIDs = []uuid.UUID{}
	}
	if performerIDs == nil {
		performerIDs = []uuid.UUID{}
	}
	return r.queryEntries(ctx, query, projectID, fromMonth, toMonth, taskIDs, performerIDs)
}

func (r *RepositoryImpl) ListForBusinessUnit(ctx context.Context, businessUnitID uuid.UUID, fromMonth, toMonth time.Time) ([]Entry, error) {
	query := `SELECT e.id, e.project_id, e.task_id, e.performer_id, e.month_start, e.planned_person_days, e.actual_person_days
			  FROM effort_monthly_entries e
			  JOIN projects p ON p.id = e.project_id
			  WHERE p.business_unit_id = $1 AND e.month_start >= $2 AND e.month_start <= $3
			  ORDER BY e.month_start, e.project_id, e.task_id, e.performer_id`
	return r.queryEntries(ctx, query, businessUnitID, fromMonth, toMonth)
}

func (r *RepositoryImpl) Get(ctx context.Context, projectID, taskID, performerID uuid.UUID, month time.Time) (Entry, error) {
	query := `SELECT ` + entryColumns + `
			  FROM effort_monthly_entries
			  WHERE project_id = $1 AND task_id = $2 AND performer_id = $3 AND month_start = $4`
	var e Entry
	err := r.db.QueryRow(ctx, query, projectID, taskID, performerID, month).Scan(
		&e.ID, &e.ProjectID, &e.TaskID, &e.PerformerID, &e.Month, &e.PlannedPersonDays, &e.ActualPersonDays,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		log.Errorf("could not query effort entry: %v", err)
		return Entry{}, err
	}
	return e, nil
}

func (r *RepositoryImpl) Store(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `INSERT INTO effort_monthly_entries (id, project_id, task_id, performer_id, month_start, planned_person_days, actual_person_days)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query, e.ID, e.ProjectID, e.TaskID, e.PerformerID, e.Month, e.PlannedPersonDays, e.ActualPersonDays)
	if err != nil {
		if !database.IsUniqueViolation(err) {
			log.Errorf("could not store effort entry: %v", err)
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, e Entry) (Entry, error) {
	query := `UPDATE effort_monthly_entries
			  SET planned_person_days = $2, actual_person_days = $3
			  WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, e.ID, e.PlannedPersonDays, e.ActualPersonDays)
	if err != nil {
		log.Errorf("could not update effort entry %s: %v", e.ID, err)
		return Entry{}, err
	}
	if tag.RowsAffected() == 0 {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (r *RepositoryImpl) count(ctx context.Context, query string, args ...any) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		log.Errorf("could not count effort entries: %v", err)
		return 0, err
	}
	return count, nil
}

func (r *RepositoryImpl) CountForProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM effort_monthly_entries WHERE project_id = $1`, projectID)
}

func (r *RepositoryImpl) CountForTask(ctx context.Context, taskID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM effort_monthly_entries WHERE task_id = $1`, taskID)
}

func (r *RepositoryImpl) CountForPerformer(ctx context.Context, performerID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM effort_monthly_entries WHERE performer_id = $1`, performerID)
}

func (r *RepositoryImpl) CountForAssignment(ctx context.Context, taskID, performerID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM effort_monthly_entries WHERE task_id = $1 AND performer_id = $2`, taskID, performerID)
}

func (r *RepositoryImpl) CountOutsideRange(ctx context.Context, projectID uuid.UUID, startMonth, endMonth time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM effort_monthly_entries
			  WHERE project_id = $1 AND (month_start < $2 OR month_start > $3)`
	return r.count(ctx, query, projectID, startMonth, endMonth)
}
