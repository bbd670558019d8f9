package actor

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrActorNotFound = errors.New("actor not found in directory")

type Repository interface {
	// FindByExternalID resolves an identity-provider subject to an actor
	// with all of its active role assignments.
	FindByExternalID(ctx context.Context, externalID string) (Actor, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) FindByExternalID(ctx context.Context, externalID string) (Actor, error) {
	query := `SELECT id, external_id, email, display_name FROM users WHERE external_id = $1 AND status = 'active'`
	var a Actor
	err := r.db.QueryRow(ctx, query, externalID).Scan(&a.ID, &a.ExternalID, &a.Email, &a.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Actor{}, ErrActorNotFound
		}
		log.Errorf("failed to query user %s: %v", externalID, err)
		return Actor{}, err
	}

	rolesQuery := `SELECT role, business_unit_id, active FROM role_assignments WHERE user_id = $1`
	rows, err := r.db.Query(ctx, rolesQuery, a.ID)
	if err != nil {
		log.Errorf("failed to query role assignments for user %s: %v", a.ID, err)
		return Actor{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var assignment RoleAssignment
		if err := rows.Scan(&assignment.Role, &assignment.BusinessUnitID, &assignment.Active); err != nil {
			return Actor{}, err
		}
		a.Roles = append(a.Roles, assignment)
	}
	if err := rows.Err(); err != nil {
		return Actor{}, err
	}
	return a, nil
}
