package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pplan/pplan/internal/database"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	WithTx(tx pgx.Tx) Repository
	Store(ctx context.Context, event Event) (Event, error)
	List(ctx context.Context, businessUnitID uuid.UUID, limit int) ([]Event, error)
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

func (r *RepositoryImpl) Store(ctx context.Context, event Event) (Event, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	query := `INSERT INTO audit_events
				  (id, actor_user_id, business_unit_id, entity_name, entity_id, action_type, before_payload, after_payload, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, query,
		event.ID, event.ActorUserID, event.BusinessUnitID, event.EntityName, event.EntityID,
		event.ActionType, event.Before, event.After, event.CreatedAt,
	)
	if err != nil {
		log.Errorf("could not store audit event for %s %s: %v", event.EntityName, event.EntityID, err)
		return Event{}, err
	}
	return event, nil
}

func (r *RepositoryImpl) List(ctx context.Context, businessUnitID uuid.UUID, limit int) ([]Event, error) {
	query := `SELECT id, actor_user_id, business_unit_id, entity_name, entity_id, action_type, before_payload, after_payload, created_at
			  FROM audit_events
			  WHERE business_unit_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2`
	rows, err := r.db.Query(ctx, query, businessUnitID, limit)
	if err != nil {
		log.Errorf("could not query audit events for business unit %s: %v", businessUnitID, err)
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		err := rows.Scan(
			&event.ID, &event.ActorUserID, &event.BusinessUnitID, &event.EntityName, &event.EntityID,
			&event.ActionType, &event.Before, &event.After, &event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
