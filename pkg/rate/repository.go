package rate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pplan/pplan/internal/database"
	"github.com/pplan/pplan/pkg/months"
	log "github.com/sirupsen/logrus"
)

var ErrRateNotFound = errors.New("performer rate not found")

type Repository interface {
	WithTx(tx pgx.Tx) Repository

	// ListForProject returns the business unit's rates visible to a
	// project: its project-scoped rates plus the unit defaults.
	ListForProject(ctx context.Context, businessUnitID, projectID uuid.UUID) ([]Rate, error)
	GetByKey(ctx context.Context, performerID, projectID uuid.UUID, effectiveFrom time.Time) (Rate, error)
	ListConflicting(ctx context.Context, performerID, projectID uuid.UUID, effectiveFrom, effectiveTo time.Time, excludeID uuid.UUID) ([]Rate, error)
	Store(ctx context.Context, r Rate) (Rate, error)
	Update(ctx context.Context, r Rate) (Rate, error)
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

// scopeArg maps the uuid.Nil default scope onto a SQL NULL.
func scopeArg(projectID uuid.UUID) any {
	if projectID == uuid.Nil {
		return nil
	}
	return projectID
}

// openEndArg maps the months.Max open-range sentinel onto a SQL NULL.
func openEndArg(effectiveTo time.Time) any {
	if effectiveTo.Equal(months.Max) {
		return nil
	}
	return effectiveTo
}

const rateColumns = `id, business_unit_id, performer_id, project_id, rate_unit, rate_value, effective_from_month, effective_to_month`

func scanRate(row pgx.Row) (Rate, error) {
	var rate Rate
	var projectID *uuid.UUID
	var effectiveTo *time.Time
	err := row.Scan(
		&rate.ID, &rate.BusinessUnitID, &rate.PerformerID, &projectID,
		&rate.Unit, &rate.Value, &rate.EffectiveFrom, &effectiveTo,
	)
	if err != nil {
		return Rate{}, err
	}
	if projectID != nil {
		rate.ProjectID = *projectID
	}
	if effectiveTo != nil {
		rate.EffectiveTo = *effectiveTo
	} else {
		rate.EffectiveTo = months.Max
	}
	return rate, nil
}

func (r *RepositoryImpl) ListForProject(ctx context.Context, businessUnitID, projectID uuid.UUID) ([]Rate, error) {
	query := `SELECT ` + rateColumns + `
			  FROM performer_rates
			  WHERE business_unit_id = $1 AND (project_id = $2 OR project_id IS NULL)
			  ORDER BY performer_id, project_id, effective_from_month`
	rows, err := r.db.Query(ctx, query, businessUnitID, projectID)
	if err != nil {
		log.Errorf("could not query rates for business unit %s: %v", businessUnitID, err)
		return nil, err
	}
	defer rows.Close()

	var rates []Rate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

func (r *RepositoryImpl) GetByKey(ctx context.Context, performerID, projectID uuid.UUID, effectiveFrom time.Time) (Rate, error) {
	query := `SELECT ` + rateColumns + `
			  FROM performer_rates
			  WHERE performer_id = $1 AND project_id IS NOT DISTINCT FROM $2 AND effective_from_month = $3`
	rate, err := scanRate(r.db.QueryRow(ctx, query, performerID, scopeArg(projectID), effectiveFrom))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rate{}, ErrRateNotFound
		}
		log.Errorf("could not query rate for performer %s: %v", performerID, err)
		return Rate{}, err
	}
	return rate, nil
}

func (r *RepositoryImpl) ListConflicting(ctx context.Context, performerID, projectID uuid.UUID, effectiveFrom, effectiveTo time.Time, excludeID uuid.UUID) ([]Rate, error) {
	query := `SELECT ` + rateColumns + `
			  FROM performer_rates
			  WHERE performer_id = $1
			    AND project_id IS NOT DISTINCT FROM $2
			    AND effective_from_month <= $3
			    AND (effective_to_month IS NULL OR effective_to_month >= $4)
			    AND id <> $5`
	rows, err := r.db.Query(ctx, query, performerID, scopeArg(projectID), effectiveTo, effectiveFrom, excludeID)
	if err != nil {
		log.Errorf("could not query conflicting rates for performer %s: %v", performerID, err)
		return nil, err
	}
	defer rows.Close()

	var rates []Rate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

func (r *RepositoryImpl) Store(ctx context.Context, rate Rate) (Rate, error) {
	if rate.ID == uuid.Nil {
		rate.ID = uuid.New()
	}
	query := `INSERT INTO performer_rates (id, business_unit_id, performer_id, project_id, rate_unit, rate_value, effective_from_month, effective_to_month)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query,
		rate.ID, rate.BusinessUnitID, rate.PerformerID, scopeArg(rate.ProjectID),
		rate.Unit, rate.Value, rate.EffectiveFrom, openEndArg(rate.EffectiveTo),
	)
	if err != nil {
		if !database.IsUniqueViolation(err) {
			log.Errorf("could not store rate: %v", err)
		}
		return Rate{}, err
	}
	return rate, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, rate Rate) (Rate, error) {
	query := `UPDATE performer_rates
			  SET rate_unit = $2, rate_value = $3, effective_to_month = $4
			  WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, rate.ID, rate.Unit, rate.Value, openEndArg(rate.EffectiveTo))
	if err != nil {
		log.Errorf("could not update rate %s: %v", rate.ID, err)
		return Rate{}, err
	}
	if tag.RowsAffected() == 0 {
		return Rate{}, ErrRateNotFound
	}
	return rate, nil
}
