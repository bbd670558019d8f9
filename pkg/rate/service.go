package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pplan/pplan/internal/database"
	"github.com/pplan/pplan/internal/event_bus"
	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrEffectiveRangeInverted = errors.New("effective_to_month must be greater than or equal to effective_from_month")
	ErrNegativeValue          = errors.New("rate_value must be greater or equal zero")
	ErrScopeMismatch          = errors.New("project_id for rate entry must be either null or current project id")
	ErrDuplicateKey           = errors.New("duplicate rate key in bulk payload")
	ErrUpsertConflict         = errors.New("rate upsert violated database constraints")
)

// OverlapError reports a rate whose effective range collides with an
// existing rate in the same scope. Touching ranges count as a collision;
// a rate ending in March and another starting in March conflict.
type OverlapError struct {
	PerformerID uuid.UUID
	Scope       string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("rate effective range overlaps existing %s rate for performer %s", e.Scope, e.PerformerID)
}

// Entry is one row of a bulk rate upsert. ProjectID of uuid.Nil targets
// the business-unit default scope, EffectiveTo of months.Max leaves the
// range open-ended.
type Entry struct {
	PerformerID   uuid.UUID
	ProjectID     uuid.UUID
	Unit          Unit
	Value         decimal.Decimal
	EffectiveFrom time.Time
	EffectiveTo   time.Time
}

// SnapshotSynchronizer rebuilds project snapshots inside the upsert
// transaction, so rate changes and the recomputed costs land together.
type SnapshotSynchronizer interface {
	RefreshTx(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) error
}

type Service interface {
	List(ctx context.Context, projectID uuid.UUID) ([]Rate, error)
	BulkUpsert(ctx context.Context, projectID uuid.UUID, entries []Entry) ([]Rate, error)
}

type ServiceImpl struct {
	pool      *pgxpool.Pool
	repo      Repository
	projects  project.Repository
	guard     *project.Guard
	snapshots SnapshotSynchronizer
	bus       *event_bus.EventBus
}

func NewService(
	pool *pgxpool.Pool,
	repo Repository,
	projects project.Repository,
	snapshots SnapshotSynchronizer,
	bus *event_bus.EventBus,
) *ServiceImpl {
	return &ServiceImpl{
		pool:      pool,
		repo:      repo,
		projects:  projects,
		guard:     project.NewGuard(projects),
		snapshots: snapshots,
		bus:       bus,
	}
}

func (s *ServiceImpl) List(ctx context.Context, projectID uuid.UUID) ([]Rate, error) {
	proj, err := s.guard.View(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListForProject(ctx, proj.BusinessUnitID, proj.ID)
}

type rateKey struct {
	performerID   uuid.UUID
	projectID     uuid.UUID
	effectiveFrom time.Time
}

// BulkUpsert validates the whole payload first and only then writes, so a
// bad row never leaves a partial batch behind. Every row is keyed by
// (performer, scope, effective_from): an existing row with that key is
// updated in place, otherwise a new rate is inserted. One snapshot refresh
// runs inside the same transaction.
func (s *ServiceImpl) BulkUpsert(ctx context.Context, projectID uuid.UUID, entries []Entry) ([]Rate, error) {
	proj, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return nil, err
	}

	performers, err := s.projects.ListPerformers(ctx, proj.BusinessUnitID)
	if err != nil {
		return nil, err
	}
	known := make(map[uuid.UUID]bool, len(performers))
	for _, performer := range performers {
		known[performer.ID] = true
	}

	normalized := make([]Entry, 0, len(entries))
	seen := make(map[rateKey]bool, len(entries))
	for _, entry := range entries {
		effectiveFrom, err := months.Normalize(entry.EffectiveFrom)
		if err != nil {
			return nil, err
		}
		effectiveTo := entry.EffectiveTo
		if !effectiveTo.Equal(months.Max) {
			if effectiveTo, err = months.Normalize(effectiveTo); err != nil {
				return nil, err
			}
		}
		if effectiveTo.Before(effectiveFrom) {
			return nil, ErrEffectiveRangeInverted
		}
		if entry.Value.LessThan(money.Zero) {
			return nil, ErrNegativeValue
		}
		if !known[entry.PerformerID] {
			return nil, project.ErrPerformerOutsideBU
		}
		if entry.ProjectID != uuid.Nil && entry.ProjectID != proj.ID {
			return nil, ErrScopeMismatch
		}

		key := rateKey{entry.PerformerID, entry.ProjectID, effectiveFrom}
		if seen[key] {
			return nil, ErrDuplicateKey
		}
		seen[key] = true

		entry.EffectiveFrom = effectiveFrom
		entry.EffectiveTo = effectiveTo
		normalized = append(normalized, entry)
	}

	var persisted []Rate
	err = database.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		for _, entry := range normalized {
			target, err := repo.GetByKey(ctx, entry.PerformerID, entry.ProjectID, entry.EffectiveFrom)
			switch {
			case errors.Is(err, ErrRateNotFound):
				target, err = repo.Store(ctx, Rate{
					BusinessUnitID: proj.BusinessUnitID,
					PerformerID:    entry.PerformerID,
					ProjectID:      entry.ProjectID,
					Unit:           entry.Unit,
					Value:          entry.Value,
					EffectiveFrom:  entry.EffectiveFrom,
					EffectiveTo:    entry.EffectiveTo,
				})
				if err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				target.Unit = entry.Unit
				target.Value = entry.Value
				target.EffectiveTo = entry.EffectiveTo
				if target, err = repo.Update(ctx, target); err != nil {
					return err
				}
			}

			conflicts, err := repo.ListConflicting(ctx, entry.PerformerID, entry.ProjectID, entry.EffectiveFrom, entry.EffectiveTo, target.ID)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				scope := "business-unit default"
				if entry.ProjectID != uuid.Nil {
					scope = "project"
				}
				return &OverlapError{PerformerID: entry.PerformerID, Scope: scope}
			}
			persisted = append(persisted, target)
		}
		return s.snapshots.RefreshTx(ctx, tx, proj.ID)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUpsertConflict
		}
		return nil, err
	}

	s.publishAudit(ctx, proj, persisted)
	return persisted, nil
}

func (s *ServiceImpl) publishAudit(ctx context.Context, proj project.Project, rates []Rate) {
	if s.bus == nil {
		return
	}
	for _, r := range rates {
		payload := event_bus.EntityMutated{
			BusinessUnitID: proj.BusinessUnitID,
			EntityName:     "performer_rate",
			EntityID:       r.ID.String(),
			ActionType:     "upsert",
			After: map[string]any{
				"performer_id":         r.PerformerID.String(),
				"rate_unit":            string(r.Unit),
				"rate_value":           money.String(r.Value),
				"effective_from_month": months.Key(r.EffectiveFrom),
			},
			OccurredAt: time.Now().UTC(),
		}
		if err := s.bus.Publish(event_bus.NewEvent(ctx, event_bus.EntityMutatedEvent, payload)); err != nil {
			log.Warnf("failed to publish rate audit event for %s: %v", r.ID, err)
		}
	}
}
