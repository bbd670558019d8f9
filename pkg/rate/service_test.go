package rate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pplan/pplan/internal/test_utils"
	"github.com/pplan/pplan/pkg/actor"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type projectRepoStub struct {
	project.Repository
	proj       project.Project
	performers []project.Performer
}

func (s *projectRepoStub) GetProject(_ context.Context, id uuid.UUID) (project.Project, error) {
	if id != s.proj.ID {
		return project.Project{}, project.ErrProjectNotFound
	}
	return s.proj, nil
}

func (s *projectRepoStub) ListPerformers(_ context.Context, _ uuid.UUID) ([]project.Performer, error) {
	return s.performers, nil
}

type serviceFixture struct {
	service   Service
	editorCtx context.Context
	viewerCtx context.Context
	proj      project.Project
	performer project.Performer
}

func newServiceFixture() *serviceFixture {
	buID := uuid.New()
	proj := project.Project{
		ID:             uuid.New(),
		BusinessUnitID: buID,
		Code:           "PRJ-1",
		StartMonth:     monthOf(2025, 1),
		EndMonth:       monthOf(2025, 12),
		Status:         project.StatusActive,
	}
	performer := project.Performer{ID: uuid.New(), BusinessUnitID: buID, DisplayName: "Alice", Active: true}
	projects := &projectRepoStub{proj: proj, performers: []project.Performer{performer}}

	return &serviceFixture{
		service:   NewService(nil, nil, projects, nil, nil),
		editorCtx: test_utils.EditorContext(context.Background(), buID),
		viewerCtx: test_utils.ViewerContext(context.Background(), buID),
		proj:      proj,
		performer: performer,
	}
}

func rateEntry(performerID, projectID uuid.UUID, value string, from, to time.Time) Entry {
	return Entry{
		PerformerID:   performerID,
		ProjectID:     projectID,
		Unit:          UnitDay,
		Value:         decimal.RequireFromString(value),
		EffectiveFrom: from,
		EffectiveTo:   to,
	}
}

func TestServiceImpl_BulkUpsert_Validation(t *testing.T) {
	t.Run("viewer may not upsert rates", func(t *testing.T) {
		f := newServiceFixture()

		_, err := f.service.BulkUpsert(f.viewerCtx, f.proj.ID, nil)

		assert.ErrorIs(t, err, actor.ErrForbidden)
	})

	t.Run("inverted effective range is rejected", func(t *testing.T) {
		f := newServiceFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []Entry{
			rateEntry(f.performer.ID, uuid.Nil, "400", monthOf(2025, 6), monthOf(2025, 3)),
		})

		assert.ErrorIs(t, err, ErrEffectiveRangeInverted)
	})

	t.Run("negative value is rejected", func(t *testing.T) {
		f := newServiceFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []Entry{
			rateEntry(f.performer.ID, uuid.Nil, "-1", monthOf(2025, 1), months.Max),
		})

		assert.ErrorIs(t, err, ErrNegativeValue)
	})

	t.Run("performer outside the business unit is rejected", func(t *testing.T) {
		f := newServiceFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []Entry{
			rateEntry(uuid.New(), uuid.Nil, "400", monthOf(2025, 1), months.Max),
		})

		assert.ErrorIs(t, err, project.ErrPerformerOutsideBU)
	})

	t.Run("rate scoped to a different project is rejected", func(t *testing.T) {
		f := newServiceFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []Entry{
			rateEntry(f.performer.ID, uuid.New(), "400", monthOf(2025, 1), months.Max),
		})

		assert.ErrorIs(t, err, ErrScopeMismatch)
	})

	t.Run("duplicate scope and effective_from key in one batch is rejected", func(t *testing.T) {
		f := newServiceFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []Entry{
			rateEntry(f.performer.ID, uuid.Nil, "400", monthOf(2025, 1), monthOf(2025, 3)),
			rateEntry(f.performer.ID, uuid.Nil, "450", monthOf(2025, 1), months.Max),
		})

		assert.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("mid-month effective_from is rejected", func(t *testing.T) {
		f := newServiceFixture()

		_, err := f.service.BulkUpsert(f.editorCtx, f.proj.ID, []Entry{
			rateEntry(f.performer.ID, uuid.Nil, "400", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), months.Max),
		})

		assert.ErrorIs(t, err, months.ErrNotMonthStart)
	})
}
