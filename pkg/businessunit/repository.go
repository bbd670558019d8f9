package businessunit

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

var ErrBusinessUnitNotFound = errors.New("business unit not found")

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (BusinessUnit, error)
	List(ctx context.Context) ([]BusinessUnit, error)
	Store(ctx context.Context, unit BusinessUnit) (BusinessUnit, error)
	Update(ctx context.Context, unit BusinessUnit) (BusinessUnit, error)
}

type RepositoryImpl struct {
	db database.Querier
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Get(ctx context.Context, id uuid.UUID) (BusinessUnit, error) {
	query := `SELECT id, code, name, active, created_at, updated_at FROM business_units WHERE id = $1`
	var unit BusinessUnit
	err := r.db.QueryRow(ctx, query, id).Scan(
		&unit.ID, &unit.Code, &unit.Name, &unit.Active, &unit.CreatedAt, &unit.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BusinessUnit{}, ErrBusinessUnitNotFound
		}
		log.Errorf("could not query business unit %s: %v", id, err)
		return BusinessUnit{}, err
	}
	return unit, nil
}

func (r *RepositoryImpl) List(ctx context.Context) ([]BusinessUnit, error) {
	query := `SELECT id, code, name, active, created_at, updated_at FROM business_units ORDER BY code`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		log.Errorf("could not query business units: %v", err)
		return nil, err
	}
	defer rows.Close()

	var units []BusinessUnit
	for rows.Next() {
		var unit BusinessUnit
		if err := rows.Scan(&unit.ID, &unit.Code, &unit.Name, &unit.Active, &unit.CreatedAt, &unit.UpdatedAt); err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func (r *RepositoryImpl) Store(ctx context.Context, unit BusinessUnit) (BusinessUnit, error) {
	if unit.ID == uuid.Nil {
		unit.ID = uuid.New()
	}
	now := time.Now().UTC()
	unit.CreatedAt = now
	unit.UpdatedAt = now
	query := `INSERT INTO business_units (id, code, name, active, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.Exec(ctx, query, unit.ID, unit.Code, unit.Name, unit.Active, unit.CreatedAt, unit.UpdatedAt); err != nil {
		log.Errorf("could not store business unit: %v", err)
		return BusinessUnit{}, err
	}
	return unit, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, unit BusinessUnit) (BusinessUnit, error) {
	unit.UpdatedAt = time.Now().UTC()
	query := `UPDATE business_units SET name = $2, active = $3, updated_at = $4 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, unit.ID, unit.Name, unit.Active, unit.UpdatedAt)
	if err != nil {
		log.Errorf("could not update business unit %s: %v", unit.ID, err)
		return BusinessUnit{}, err
	}
	if tag.RowsAffected() == 0 {
		return BusinessUnit{}, ErrBusinessUnitNotFound
	}
	return unit, nil
}
