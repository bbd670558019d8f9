package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pplan/pplan/internal/database"
	"github.com/pplan/pplan/internal/event_bus"
	"github.com/pplan/pplan/pkg/actor"
	"github.com/pplan/pplan/pkg/businessunit"
	"github.com/pplan/pplan/pkg/months"
	log "github.com/sirupsen/logrus"
)

var (
	ErrEndBeforeStart      = errors.New("end_month must be greater than or equal to start_month")
	ErrRangeShrink         = errors.New("cannot shrink project month range while effort entries exist outside new range")
	ErrStageOutsideProject = errors.New("stage month range must be within project month range")
	ErrStageNotInProject   = errors.New("stage_id must reference a stage in this project")
	ErrPerformerOutsideBU  = errors.New("performer_id must reference performer in project business unit")

	ErrProjectCodeTaken = errors.New("project code already exists in this business unit")
	ErrTaskCodeTaken    = errors.New("task code already exists in this project")
	ErrAssignmentExists = errors.New("task-performer assignment already exists")

	ErrProjectHasStages    = errors.New("cannot delete project with existing stages")
	ErrProjectHasTasks     = errors.New("cannot delete project with existing tasks")
	ErrProjectHasEffort    = errors.New("cannot delete project with existing effort entries")
	ErrProjectHasSnapshots = errors.New("cannot delete project with existing snapshots")
	ErrStageHasTasks       = errors.New("cannot delete stage with existing tasks")
	ErrTaskHasAssignments  = errors.New("cannot delete task with performer assignments")
	ErrTaskHasEffort       = errors.New("cannot delete task with effort entries")
	ErrPerformerAssigned   = errors.New("cannot delete performer with task assignments")
	ErrPerformerHasEffort  = errors.New("cannot delete performer with effort entries")
	ErrAssignmentHasEffort = errors.New("cannot delete assignment with existing effort entries")
)

// EffortCounter is the slice of the effort store the project service needs
// for its delete and range-shrink guards.
type EffortCounter interface {
	CountForProject(ctx context.Context, projectID uuid.UUID) (int, error)
	CountForTask(ctx context.Context, taskID uuid.UUID) (int, error)
	CountForPerformer(ctx context.Context, performerID uuid.UUID) (int, error)
	CountForAssignment(ctx context.Context, taskID, performerID uuid.UUID) (int, error)
	CountOutsideRange(ctx context.Context, projectID uuid.UUID, startMonth, endMonth time.Time) (int, error)
}

// SnapshotSynchronizer recomputes a project's monthly snapshots. RefreshTx
// runs inside the caller's transaction so a range change and its snapshot
// rebuild commit together.
type SnapshotSynchronizer interface {
	CountForProject(ctx context.Context, projectID uuid.UUID) (int, error)
	RefreshTx(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) error
}

type ProjectCreate struct {
	Code        string
	Name        string
	Description string
	StartMonth  time.Time
	EndMonth    time.Time
	Status      Status
}

type ProjectUpdate struct {
	Code        *string
	Name        *string
	Description *string
	StartMonth  *time.Time
	EndMonth    *time.Time
	Status      *Status
}

type StageCreate struct {
	Name       string
	StartMonth time.Time
	EndMonth   time.Time
	ColorToken string
	SequenceNo int
}

type StageUpdate struct {
	Name       *string
	StartMonth *time.Time
	EndMonth   *time.Time
	ColorToken *string
	SequenceNo *int
}

type TaskCreate struct {
	StageID    uuid.UUID
	Code       string
	Name       string
	SequenceNo int
	Active     bool
}

type TaskUpdate struct {
	StageID    *uuid.UUID
	Code       *string
	Name       *string
	SequenceNo *int
	Active     *bool
}

type PerformerCreate struct {
	ExternalRef string
	DisplayName string
	Active      bool
}

type PerformerUpdate struct {
	ExternalRef *string
	DisplayName *string
	Active      *bool
}

type Service interface {
	ListProjects(ctx context.Context, businessUnitID uuid.UUID) ([]Project, error)
	CreateProject(ctx context.Context, businessUnitID uuid.UUID, data ProjectCreate) (Project, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (Project, error)
	UpdateProject(ctx context.Context, projectID uuid.UUID, data ProjectUpdate) (Project, error)
	DeleteProject(ctx context.Context, projectID uuid.UUID) error

	ListStages(ctx context.Context, projectID uuid.UUID) ([]Stage, error)
	CreateStage(ctx context.Context, projectID uuid.UUID, data StageCreate) (Stage, error)
	UpdateStage(ctx context.Context, projectID, stageID uuid.UUID, data StageUpdate) (Stage, error)
	DeleteStage(ctx context.Context, projectID, stageID uuid.UUID) error

	ListTasks(ctx context.Context, projectID uuid.UUID) ([]Task, error)
	CreateTask(ctx context.Context, projectID uuid.UUID, data TaskCreate) (Task, error)
	UpdateTask(ctx context.Context, projectID, taskID uuid.UUID, data TaskUpdate) (Task, error)
	DeleteTask(ctx context.Context, projectID, taskID uuid.UUID) error

	ListPerformers(ctx context.Context, projectID uuid.UUID) ([]Performer, error)
	CreatePerformer(ctx context.Context, projectID uuid.UUID, data PerformerCreate) (Performer, error)
	UpdatePerformer(ctx context.Context, projectID, performerID uuid.UUID, data PerformerUpdate) (Performer, error)
	DeletePerformer(ctx context.Context, projectID, performerID uuid.UUID) error

	ListAssignments(ctx context.Context, projectID uuid.UUID) ([]Assignment, error)
	CreateAssignment(ctx context.Context, projectID, taskID, performerID uuid.UUID) (Assignment, error)
	DeleteAssignment(ctx context.Context, projectID, taskID, performerID uuid.UUID) error
}

type ServiceImpl struct {
	pool      *pgxpool.Pool
	repo      Repository
	units     businessunit.Repository
	guard     *Guard
	efforts   EffortCounter
	snapshots SnapshotSynchronizer
	bus       *event_bus.EventBus
}

func NewService(
	pool *pgxpool.Pool,
	repo Repository,
	units businessunit.Repository,
	efforts EffortCounter,
	snapshots SnapshotSynchronizer,
	bus *event_bus.EventBus,
) *ServiceImpl {
	return &ServiceImpl{
		pool:      pool,
		repo:      repo,
		units:     units,
		guard:     NewGuard(repo),
		efforts:   efforts,
		snapshots: snapshots,
		bus:       bus,
	}
}

func (s *ServiceImpl) audit(ctx context.Context, businessUnitID uuid.UUID, entity string, entityID string, action string, before, after map[string]any) {
	if s.bus == nil {
		return
	}
	payload := event_bus.EntityMutated{
		BusinessUnitID: businessUnitID,
		EntityName:     entity,
		EntityID:       entityID,
		ActionType:     action,
		Before:         before,
		After:          after,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.bus.Publish(event_bus.NewEvent(ctx, event_bus.EntityMutatedEvent, payload)); err != nil {
		log.Warnf("failed to publish %s audit event for %s %s: %v", action, entity, entityID, err)
	}
}

func projectFields(p Project) map[string]any {
	return map[string]any{
		"code":        p.Code,
		"name":        p.Name,
		"start_month": months.Key(p.StartMonth),
		"end_month":   months.Key(p.EndMonth),
		"status":      string(p.Status),
	}
}

func stageFields(s Stage) map[string]any {
	return map[string]any{
		"name":        s.Name,
		"start_month": months.Key(s.StartMonth),
		"end_month":   months.Key(s.EndMonth),
		"sequence_no": s.SequenceNo,
	}
}

func taskFields(t Task) map[string]any {
	return map[string]any{
		"stage_id": t.StageID.String(),
		"code":     t.Code,
		"name":     t.Name,
		"active":   t.Active,
	}
}

func performerFields(p Performer) map[string]any {
	return map[string]any{
		"external_ref": p.ExternalRef,
		"display_name": p.DisplayName,
		"active":       p.Active,
	}
}

func (s *ServiceImpl) ListProjects(ctx context.Context, businessUnitID uuid.UUID) ([]Project, error) {
	if _, err := s.units.Get(ctx, businessUnitID); err != nil {
		return nil, err
	}
	a, err := actor.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !a.CanView(businessUnitID) {
		return nil, actor.ErrForbidden
	}
	return s.repo.ListProjects(ctx, businessUnitID)
}

func (s *ServiceImpl) CreateProject(ctx context.Context, businessUnitID uuid.UUID, data ProjectCreate) (Project, error) {
	if _, err := s.units.Get(ctx, businessUnitID); err != nil {
		return Project{}, err
	}
	a, err := actor.Current(ctx)
	if err != nil {
		return Project{}, err
	}
	if !a.CanEdit(businessUnitID) {
		return Project{}, actor.ErrForbidden
	}

	startMonth, err := months.Normalize(data.StartMonth)
	if err != nil {
		return Project{}, err
	}
	endMonth, err := months.Normalize(data.EndMonth)
	if err != nil {
		return Project{}, err
	}
	if endMonth.Before(startMonth) {
		return Project{}, ErrEndBeforeStart
	}

	status := data.Status
	if status == "" {
		status = StatusDraft
	}
	created, err := s.repo.StoreProject(ctx, Project{
		BusinessUnitID: businessUnitID,
		Code:           strings.TrimSpace(data.Code),
		Name:           strings.TrimSpace(data.Name),
		Description:    strings.TrimSpace(data.Description),
		StartMonth:     startMonth,
		EndMonth:       endMonth,
		Status:         status,
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return Project{}, ErrProjectCodeTaken
		}
		return Project{}, err
	}

	s.audit(ctx, businessUnitID, "project", created.ID.String(), "create", nil, projectFields(created))
	return created, nil
}

func (s *ServiceImpl) GetProject(ctx context.Context, projectID uuid.UUID) (Project, error) {
	return s.guard.View(ctx, projectID)
}

func (s *ServiceImpl) UpdateProject(ctx context.Context, projectID uuid.UUID, data ProjectUpdate) (Project, error) {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	before := projectFields(project)

	targetStart := project.StartMonth
	targetEnd := project.EndMonth
	if data.StartMonth != nil {
		if targetStart, err = months.Normalize(*data.StartMonth); err != nil {
			return Project{}, err
		}
	}
	if data.EndMonth != nil {
		if targetEnd, err = months.Normalize(*data.EndMonth); err != nil {
			return Project{}, err
		}
	}
	if targetEnd.Before(targetStart) {
		return Project{}, ErrEndBeforeStart
	}

	outside, err := s.efforts.CountOutsideRange(ctx, project.ID, targetStart, targetEnd)
	if err != nil {
		return Project{}, err
	}
	if outside > 0 {
		return Project{}, ErrRangeShrink
	}

	if data.Code != nil {
		project.Code = strings.TrimSpace(*data.Code)
	}
	if data.Name != nil {
		project.Name = strings.TrimSpace(*data.Name)
	}
	if data.Description != nil {
		project.Description = strings.TrimSpace(*data.Description)
	}
	project.StartMonth = targetStart
	project.EndMonth = targetEnd
	if data.Status != nil {
		project.Status = *data.Status
	}

	var updated Project
	err = database.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		var txErr error
		if updated, txErr = repo.UpdateProject(ctx, project); txErr != nil {
			return txErr
		}
		// The refresh also prunes snapshot rows outside the new range.
		return s.snapshots.RefreshTx(ctx, tx, project.ID)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return Project{}, ErrProjectCodeTaken
		}
		return Project{}, err
	}

	s.audit(ctx, project.BusinessUnitID, "project", project.ID.String(), "update", before, projectFields(updated))
	return updated, nil
}

func (s *ServiceImpl) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return err
	}

	checks := []struct {
		count func(context.Context, uuid.UUID) (int, error)
		fail  error
	}{
		{s.repo.CountStages, ErrProjectHasStages},
		{s.repo.CountTasks, ErrProjectHasTasks},
		{s.efforts.CountForProject, ErrProjectHasEffort},
		{s.snapshots.CountForProject, ErrProjectHasSnapshots},
	}
	for _, check := range checks {
		count, err := check.count(ctx, project.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return check.fail
		}
	}

	if err := s.repo.DeleteProject(ctx, project.ID); err != nil {
		return err
	}
	s.audit(ctx, project.BusinessUnitID, "project", project.ID.String(), "delete", projectFields(project), nil)
	return nil
}

func (s *ServiceImpl) ListStages(ctx context.Context, projectID uuid.UUID) ([]Stage, error) {
	if _, err := s.guard.View(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListStages(ctx, projectID)
}

func validateStageRange(project Project, startMonth, endMonth time.Time) error {
	if endMonth.Before(startMonth) {
		return ErrEndBeforeStart
	}
	if startMonth.Before(project.StartMonth) || endMonth.After(project.EndMonth) {
		return ErrStageOutsideProject
	}
	return nil
}

func (s *ServiceImpl) CreateStage(ctx context.Context, projectID uuid.UUID, data StageCreate) (Stage, error) {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return Stage{}, err
	}

	startMonth, err := months.Normalize(data.StartMonth)
	if err != nil {
		return Stage{}, err
	}
	endMonth, err := months.Normalize(data.EndMonth)
	if err != nil {
		return Stage{}, err
	}
	if err := validateStageRange(project, startMonth, endMonth); err != nil {
		return Stage{}, err
	}

	created, err := s.repo.StoreStage(ctx, Stage{
		ProjectID:  projectID,
		Name:       strings.TrimSpace(data.Name),
		StartMonth: startMonth,
		EndMonth:   endMonth,
		ColorToken: strings.TrimSpace(data.ColorToken),
		SequenceNo: data.SequenceNo,
	})
	if err != nil {
		return Stage{}, err
	}
	s.audit(ctx, project.BusinessUnitID, "project_stage", created.ID.String(), "create", nil, stageFields(created))
	return created, nil
}

func (s *ServiceImpl) UpdateStage(ctx context.Context, projectID, stageID uuid.UUID, data StageUpdate) (Stage, error) {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return Stage{}, err
	}
	stage, err := s.repo.GetStage(ctx, stageID)
	if err != nil {
		return Stage{}, err
	}
	if stage.ProjectID != project.ID {
		return Stage{}, ErrStageNotFound
	}
	before := stageFields(stage)

	targetStart := stage.StartMonth
	targetEnd := stage.EndMonth
	if data.StartMonth != nil {
		if targetStart, err = months.Normalize(*data.StartMonth); err != nil {
			return Stage{}, err
		}
	}
	if data.EndMonth != nil {
		if targetEnd, err = months.Normalize(*data.EndMonth); err != nil {
			return Stage{}, err
		}
	}
	if err := validateStageRange(project, targetStart, targetEnd); err != nil {
		return Stage{}, err
	}

	if data.Name != nil {
		stage.Name = strings.TrimSpace(*data.Name)
	}
	if data.ColorToken != nil {
		stage.ColorToken = strings.TrimSpace(*data.ColorToken)
	}
	if data.SequenceNo != nil {
		stage.SequenceNo = *data.SequenceNo
	}
	stage.StartMonth = targetStart
	stage.EndMonth = targetEnd

	updated, err := s.repo.UpdateStage(ctx, stage)
	if err != nil {
		return Stage{}, err
	}
	s.audit(ctx, project.BusinessUnitID, "project_stage", stage.ID.String(), "update", before, stageFields(updated))
	return updated, nil
}

func (s *ServiceImpl) DeleteStage(ctx context.Context, projectID, stageID uuid.UUID) error {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return err
	}
	stage, err := s.repo.GetStage(ctx, stageID)
	if err != nil {
		return err
	}
	if stage.ProjectID != project.ID {
		return ErrStageNotFound
	}

	count, err := s.repo.CountTasksInStage(ctx, stage.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrStageHasTasks
	}

	if err := s.repo.DeleteStage(ctx, stage.ID); err != nil {
		return err
	}
	s.audit(ctx, project.BusinessUnitID, "project_stage", stage.ID.String(), "delete", stageFields(stage), nil)
	return nil
}

func (s *ServiceImpl) ListTasks(ctx context.Context, projectID uuid.UUID) ([]Task, error) {
	if _, err := s.guard.View(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListTasks(ctx, projectID)
}

func (s *ServiceImpl) CreateTask(ctx context.Context, projectID uuid.UUID, data TaskCreate) (Task, error) {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return Task{}, err
	}

	stage, err := s.repo.GetStage(ctx, data.StageID)
	if err != nil || stage.ProjectID != project.ID {
		return Task{}, ErrStageNotInProject
	}

	created, err := s.repo.StoreTask(ctx, Task{
		ProjectID:  projectID,
		StageID:    data.StageID,
		Code:       strings.TrimSpace(data.Code),
		Name:       strings.TrimSpace(data.Name),
		SequenceNo: data.SequenceNo,
		Active:     data.Active,
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return Task{}, ErrTaskCodeTaken
		}
		return Task{}, err
	}
	s.audit(ctx, project.BusinessUnitID, "task", created.ID.String(), "create", nil, taskFields(created))
	return created, nil
}

func (s *ServiceImpl) UpdateTask(ctx context.Context, projectID, taskID uuid.UUID, data TaskUpdate) (Task, error) {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return Task{}, err
	}
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if task.ProjectID != project.ID {
		return Task{}, ErrTaskNotFound
	}
	before := taskFields(task)

	if data.StageID != nil {
		stage, err := s.repo.GetStage(ctx, *data.StageID)
		if err != nil || stage.ProjectID != project.ID {
			return Task{}, ErrStageNotInProject
		}
		task.StageID = *data.StageID
	}
	if data.Code != nil {
		task.Code = strings.TrimSpace(*data.Code)
	}
	if data.Name != nil {
		task.Name = strings.TrimSpace(*data.Name)
	}
	if data.SequenceNo != nil {
		task.SequenceNo = *data.SequenceNo
	}
	if data.Active != nil {
		task.Active = *data.Active
	}

	updated, err := s.repo.UpdateTask(ctx, task)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return Task{}, ErrTaskCodeTaken
		}
		return Task{}, err
	}
	s.audit(ctx, project.BusinessUnitID, "task", task.ID.String(), "update", before, taskFields(updated))
	return updated, nil
}

func (s *ServiceImpl) DeleteTask(ctx context.Context, projectID, taskID uuid.UUID) error {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return err
	}
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.ProjectID != project.ID {
		return ErrTaskNotFound
	}

	assignments, err := s.repo.CountAssignmentsForTask(ctx, task.ID)
	if err != nil {
		return err
	}
	if assignments > 0 {
		return ErrTaskHasAssignments
	}
	entries, err := s.efforts.CountForTask(ctx, task.ID)
	if err != nil {
		return err
	}
	if entries > 0 {
		return ErrTaskHasEffort
	}

	if err := s.repo.DeleteTask(ctx, task.ID); err != nil {
		return err
	}
	s.audit(ctx, project.BusinessUnitID, "task", task.ID.String(), "delete", taskFields(task), nil)
	return nil
}

func (s *ServiceImpl) ListPerformers(ctx context.Context, projectID uuid.UUID) ([]Performer, error) {
	project, err := s.guard.View(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPerformers(ctx, project.BusinessUnitID)
}

func (s *ServiceImpl) CreatePerformer(ctx context.Context, projectID uuid.UUID, data PerformerCreate) (Performer, error) {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return Performer{}, err
	}

	created, err := s.repo.StorePerformer(ctx, Performer{
		BusinessUnitID: project.BusinessUnitID,
		ExternalRef:    strings.TrimSpace(data.ExternalRef),
		DisplayName:    strings.TrimSpace(data.DisplayName),
		Active:         data.Active,
	})
	if err != nil {
		return Performer{}, err
	}
	s.audit(ctx, project.BusinessUnitID, "performer", created.ID.String(), "create", nil, performerFields(created))
	return created, nil
}

func (s *ServiceImpl) performerInProjectUnit(ctx context.Context, project Project, performerID uuid.UUID) (Performer, error) {
	performer, err := s.repo.GetPerformer(ctx, performerID)
	if err != nil {
		return Performer{}, err
	}
	if performer.BusinessUnitID != project.BusinessUnitID {
		return Performer{}, ErrPerformerNotFound
	}
	return performer, nil
}

func (s *ServiceImpl) UpdatePerformer(ctx context.Context, projectID, performerID uuid.UUID, data PerformerUpdate) (Performer, error) {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return Performer{}, err
	}
	performer, err := s.performerInProjectUnit(ctx, project, performerID)
	if err != nil {
		return Performer{}, err
	}
	before := performerFields(performer)

	if data.ExternalRef != nil {
		performer.ExternalRef = strings.TrimSpace(*data.ExternalRef)
	}
	if data.DisplayName != nil {
		performer.DisplayName = strings.TrimSpace(*data.DisplayName)
	}
	if data.Active != nil {
		performer.Active = *data.Active
	}

	updated, err := s.repo.UpdatePerformer(ctx, performer)
	if err != nil {
		return Performer{}, err
	}
	s.audit(ctx, project.BusinessUnitID, "performer", performer.ID.String(), "update", before, performerFields(updated))
	return updated, nil
}

func (s *ServiceImpl) DeletePerformer(ctx context.Context, projectID, performerID uuid.UUID) error {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return err
	}
	performer, err := s.performerInProjectUnit(ctx, project, performerID)
	if err != nil {
		return err
	}

	assignments, err := s.repo.CountAssignmentsForPerformer(ctx, performer.ID)
	if err != nil {
		return err
	}
	if assignments > 0 {
		return ErrPerformerAssigned
	}
	entries, err := s.efforts.CountForPerformer(ctx, performer.ID)
	if err != nil {
		return err
	}
	if entries > 0 {
		return ErrPerformerHasEffort
	}

	if err := s.repo.DeletePerformer(ctx, performer.ID); err != nil {
		return err
	}
	s.audit(ctx, project.BusinessUnitID, "performer", performer.ID.String(), "delete", performerFields(performer), nil)
	return nil
}

func (s *ServiceImpl) ListAssignments(ctx context.Context, projectID uuid.UUID) ([]Assignment, error) {
	if _, err := s.guard.View(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListAssignments(ctx, projectID)
}

func (s *ServiceImpl) CreateAssignment(ctx context.Context, projectID, taskID, performerID uuid.UUID) (Assignment, error) {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return Assignment{}, err
	}

	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil || task.ProjectID != project.ID {
		return Assignment{}, ErrTaskNotFound
	}
	performer, err := s.repo.GetPerformer(ctx, performerID)
	if err != nil || performer.BusinessUnitID != project.BusinessUnitID {
		return Assignment{}, ErrPerformerOutsideBU
	}

	created, err := s.repo.StoreAssignment(ctx, Assignment{TaskID: task.ID, PerformerID: performer.ID})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return Assignment{}, ErrAssignmentExists
		}
		return Assignment{}, err
	}
	s.audit(ctx, project.BusinessUnitID, "task_performer_assignment", task.ID.String()+":"+performer.ID.String(), "create", nil, map[string]any{
		"task_id":      task.ID.String(),
		"performer_id": performer.ID.String(),
	})
	return created, nil
}

func (s *ServiceImpl) DeleteAssignment(ctx context.Context, projectID, taskID, performerID uuid.UUID) error {
	project, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return err
	}

	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.ProjectID != project.ID {
		return ErrTaskNotFound
	}
	if _, err := s.performerInProjectUnit(ctx, project, performerID); err != nil {
		return err
	}
	if _, err := s.repo.GetAssignment(ctx, taskID, performerID); err != nil {
		return err
	}

	entries, err := s.efforts.CountForAssignment(ctx, taskID, performerID)
	if err != nil {
		return err
	}
	if entries > 0 {
		return ErrAssignmentHasEffort
	}

	if err := s.repo.DeleteAssignment(ctx, taskID, performerID); err != nil {
		return err
	}
	s.audit(ctx, project.BusinessUnitID, "task_performer_assignment", taskID.String()+":"+performerID.String(), "delete", map[string]any{
		"task_id":      taskID.String(),
		"performer_id": performerID.String(),
	}, nil)
	return nil
}
