package project

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type assignmentKey struct {
	taskID      uuid.UUID
	performerID uuid.UUID
}

// RepositoryStub is an in-memory Repository used by service tests.
type RepositoryStub struct {
	projects    map[uuid.UUID]Project
	stages      map[uuid.UUID]Stage
	tasks       map[uuid.UUID]Task
	performers  map[uuid.UUID]Performer
	assignments map[assignmentKey]Assignment
}

func NewRepositoryStub() *RepositoryStub {
	s := &RepositoryStub{}
	s.Reset()
	return s
}

func (s *RepositoryStub) Reset() {
	s.projects = make(map[uuid.UUID]Project)
	s.stages = make(map[uuid.UUID]Stage)
	s.tasks = make(map[uuid.UUID]Task)
	s.performers = make(map[uuid.UUID]Performer)
	s.assignments = make(map[assignmentKey]Assignment)
}

func (s *RepositoryStub) WithTx(_ pgx.Tx) Repository {
	return s
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

func (s *RepositoryStub) GetProject(_ context.Context, id uuid.UUID) (Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrProjectNotFound
	}
	return p, nil
}

func (s *RepositoryStub) ListProjects(_ context.Context, businessUnitID uuid.UUID) ([]Project, error) {
	var list []Project
	for _, p := range s.projects {
		if p.BusinessUnitID == businessUnitID {
			list = append(list, p)
		}
	}
	return list, nil
}

func (s *RepositoryStub) StoreProject(_ context.Context, p Project) (Project, error) {
	for _, existing := range s.projects {
		if existing.BusinessUnitID == p.BusinessUnitID && existing.Code == p.Code {
			return Project{}, uniqueViolation()
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.projects[p.ID] = p
	return p, nil
}

func (s *RepositoryStub) UpdateProject(_ context.Context, p Project) (Project, error) {
	if _, ok := s.projects[p.ID]; !ok {
		return Project{}, ErrProjectNotFound
	}
	for _, existing := range s.projects {
		if existing.ID != p.ID && existing.BusinessUnitID == p.BusinessUnitID && existing.Code == p.Code {
			return Project{}, uniqueViolation()
		}
	}
	s.projects[p.ID] = p
	return p, nil
}

func (s *RepositoryStub) DeleteProject(_ context.Context, id uuid.UUID) error {
	if _, ok := s.projects[id]; !ok {
		return ErrProjectNotFound
	}
	delete(s.projects, id)
	return nil
}

func (s *RepositoryStub) GetStage(_ context.Context, id uuid.UUID) (Stage, error) {
	stage, ok := s.stages[id]
	if !ok {
		return Stage{}, ErrStageNotFound
	}
	return stage, nil
}

func (s *RepositoryStub) ListStages(_ context.Context, projectID uuid.UUID) ([]Stage, error) {
	var list []Stage
	for _, stage := range s.stages {
		if stage.ProjectID == projectID {
			list = append(list, stage)
		}
	}
	return list, nil
}

func (s *RepositoryStub) StoreStage(_ context.Context, stage Stage) (Stage, error) {
	if stage.ID == uuid.Nil {
		stage.ID = uuid.New()
	}
	s.stages[stage.ID] = stage
	return stage, nil
}

func (s *RepositoryStub) UpdateStage(_ context.Context, stage Stage) (Stage, error) {
	if _, ok := s.stages[stage.ID]; !ok {
		return Stage{}, ErrStageNotFound
	}
	s.stages[stage.ID] = stage
	return stage, nil
}

func (s *RepositoryStub) DeleteStage(_ context.Context, id uuid.UUID) error {
	if _, ok := s.stages[id]; !ok {
		return ErrStageNotFound
	}
	delete(s.stages, id)
	return nil
}

func (s *RepositoryStub) GetTask(_ context.Context, id uuid.UUID) (Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return task, nil
}

func (s *RepositoryStub) ListTasks(_ context.Context, projectID uuid.UUID) ([]Task, error) {
	var list []Task
	for _, task := range s.tasks {
		if task.ProjectID == projectID {
			list = append(list, task)
		}
	}
	return list, nil
}

func (s *RepositoryStub) StoreTask(_ context.Context, task Task) (Task, error) {
	for _, existing := range s.tasks {
		if existing.ProjectID == task.ProjectID && existing.Code == task.Code {
			return Task{}, uniqueViolation()
		}
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	s.tasks[task.ID] = task
	return task, nil
}

func (s *RepositoryStub) UpdateTask(_ context.Context, task Task) (Task, error) {
	if _, ok := s.tasks[task.ID]; !ok {
		return Task{}, ErrTaskNotFound
	}
	for _, existing := range s.tasks {
		if existing.ID != task.ID && existing.ProjectID == task.ProjectID && existing.Code == task.Code {
			return Task{}, uniqueViolation()
		}
	}
	s.tasks[task.ID] = task
	return task, nil
}

func (s *RepositoryStub) DeleteTask(_ context.Context, id uuid.UUID) error {
	if _, ok := s.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *RepositoryStub) GetPerformer(_ context.Context, id uuid.UUID) (Performer, error) {
	performer, ok := s.performers[id]
	if !ok {
		return Performer{}, ErrPerformerNotFound
	}
	return performer, nil
}

func (s *RepositoryStub) ListPerformers(_ context.Context, businessUnitID uuid.UUID) ([]Performer, error) {
	var list []Performer
	for _, performer := range s.performers {
		if performer.BusinessUnitID == businessUnitID {
			list = append(list, performer)
		}
	}
	return list, nil
}

func (s *RepositoryStub) ListProjectPerformers(ctx context.Context, projectID, businessUnitID uuid.UUID) ([]Performer, error) {
	return s.ListPerformers(ctx, businessUnitID)
}

func (s *RepositoryStub) StorePerformer(_ context.Context, performer Performer) (Performer, error) {
	if performer.ID == uuid.Nil {
		performer.ID = uuid.New()
	}
	s.performers[performer.ID] = performer
	return performer, nil
}

func (s *RepositoryStub) UpdatePerformer(_ context.Context, performer Performer) (Performer, error) {
	if _, ok := s.performers[performer.ID]; !ok {
		return Performer{}, ErrPerformerNotFound
	}
	s.performers[performer.ID] = performer
	return performer, nil
}

func (s *RepositoryStub) DeletePerformer(_ context.Context, id uuid.UUID) error {
	if _, ok := s.performers[id]; !ok {
		return ErrPerformerNotFound
	}
	delete(s.performers, id)
	return nil
}

func (s *RepositoryStub) GetAssignment(_ context.Context, taskID, performerID uuid.UUID) (Assignment, error) {
	assignment, ok := s.assignments[assignmentKey{taskID, performerID}]
	if !ok {
		return Assignment{}, ErrAssignmentNotFound
	}
	return assignment, nil
}

func (s *RepositoryStub) ListAssignments(_ context.Context, projectID uuid.UUID) ([]Assignment, error) {
	var list []Assignment
	for _, assignment := range s.assignments {
		if task, ok := s.tasks[assignment.TaskID]; ok && task.ProjectID == projectID {
			list = append(list, assignment)
		}
	}
	return list, nil
}

func (s *RepositoryStub) StoreAssignment(_ context.Context, assignment Assignment) (Assignment, error) {
	key := assignmentKey{assignment.TaskID, assignment.PerformerID}
	if _, ok := s.assignments[key]; ok {
		return Assignment{}, uniqueViolation()
	}
	s.assignments[key] = assignment
	return assignment, nil
}

func (s *RepositoryStub) DeleteAssignment(_ context.Context, taskID, performerID uuid.UUID) error {
	key := assignmentKey{taskID, performerID}
	if _, ok := s.assignments[key]; !ok {
		return ErrAssignmentNotFound
	}
	delete(s.assignments, key)
	return nil
}

func (s *RepositoryStub) CountStages(ctx context.Context, projectID uuid.UUID) (int, error) {
	stages, _ := s.ListStages(ctx, projectID)
	return len(stages), nil
}

func (s *RepositoryStub) CountTasks(ctx context.Context, projectID uuid.UUID) (int, error) {
	tasks, _ := s.ListTasks(ctx, projectID)
	return len(tasks), nil
}

func (s *RepositoryStub) CountTasksInStage(_ context.Context, stageID uuid.UUID) (int, error) {
	count := 0
	for _, task := range s.tasks {
		if task.StageID == stageID {
			count++
		}
	}
	return count, nil
}

func (s *RepositoryStub) CountAssignmentsForTask(_ context.Context, taskID uuid.UUID) (int, error) {
	count := 0
	for key := range s.assignments {
		if key.taskID == taskID {
			count++
		}
	}
	return count, nil
}

func (s *RepositoryStub) CountAssignmentsForPerformer(_ context.Context, performerID uuid.UUID) (int, error) {
	count := 0
	for key := range s.assignments {
		if key.performerID == performerID {
			count++
		}
	}
	return count, nil
}

var _ Repository = (*RepositoryStub)(nil)
