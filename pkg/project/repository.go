package project

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

var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrStageNotFound      = errors.New("project stage not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrPerformerNotFound  = errors.New("performer not found")
	ErrAssignmentNotFound = errors.New("task-performer assignment not found")
)

type Repository interface {
	WithTx(tx pgx.Tx) Repository

	GetProject(ctx context.Context, id uuid.UUID) (Project, error)
	ListProjects(ctx context.Context, businessUnitID uuid.UUID) ([]Project, error)
	StoreProject(ctx context.Context, p Project) (Project, error)
	UpdateProject(ctx context.Context, p Project) (Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error

	GetStage(ctx context.Context, id uuid.UUID) (Stage, error)
	ListStages(ctx context.Context, projectID uuid.UUID) ([]Stage, error)
	StoreStage(ctx context.Context, s Stage) (Stage, error)
	UpdateStage(ctx context.Context, s Stage) (Stage, error)
	DeleteStage(ctx context.Context, id uuid.UUID) error

	GetTask(ctx context.Context, id uuid.UUID) (Task, error)
	ListTasks(ctx context.Context, projectID uuid.UUID) ([]Task, error)
	StoreTask(ctx context.Context, t Task) (Task, error)
	UpdateTask(ctx context.Context, t Task) (Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error

	GetPerformer(ctx context.Context, id uuid.UUID) (Performer, error)
	ListPerformers(ctx context.Context, businessUnitID uuid.UUID) ([]Performer, error)
	ListProjectPerformers(ctx context.Context, projectID, businessUnitID uuid.UUID) ([]Performer, error)
	StorePerformer(ctx context.Context, p Performer) (Performer, error)
	UpdatePerformer(ctx context.Context, p Performer) (Performer, error)
	DeletePerformer(ctx context.Context, id uuid.UUID) error

	GetAssignment(ctx context.Context, taskID, performerID uuid.UUID) (Assignment, error)
	ListAssignments(ctx context.Context, projectID uuid.UUID) ([]Assignment, error)
	StoreAssignment(ctx context.Context, a Assignment) (Assignment, error)
	DeleteAssignment(ctx context.Context, taskID, performerID uuid.UUID) error

	CountStages(ctx context.Context, projectID uuid.UUID) (int, error)
	CountTasks(ctx context.Context, projectID uuid.UUID) (int, error)
	CountTasksInStage(ctx context.Context, stageID uuid.UUID) (int, error)
	CountAssignmentsForTask(ctx context.Context, taskID uuid.UUID) (int, error)
	CountAssignmentsForPerformer(ctx context.Context, performerID uuid.UUID) (int, error)
}

type RepositoryImpl struct {
	db database.Querier
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// WithTx returns a repository bound to an open transaction so project
// mutations and the snapshot refresh share a single unit of work.
func (r *RepositoryImpl) WithTx(tx pgx.Tx) Repository {
	return &RepositoryImpl{db: tx}
}

const projectColumns = `id, business_unit_id, code, name, COALESCE(description, ''), start_month, end_month, status, created_at, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(
		&p.ID, &p.BusinessUnitID, &p.Code, &p.Name, &p.Description,
		&p.StartMonth, &p.EndMonth, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *RepositoryImpl) GetProject(ctx context.Context, id uuid.UUID) (Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrProjectNotFound
		}
		log.Errorf("could not query project %s: %v", id, err)
		return Project{}, err
	}
	return p, nil
}

func (r *RepositoryImpl) ListProjects(ctx context.Context, businessUnitID uuid.UUID) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE business_unit_id = $1 ORDER BY code`
	rows, err := r.db.Query(ctx, query, businessUnitID)
	if err != nil {
		log.Errorf("could not query projects for business unit %s: %v", businessUnitID, err)
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *RepositoryImpl) StoreProject(ctx context.Context, p Project) (Project, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	query := `INSERT INTO projects (id, business_unit_id, code, name, description, start_month, end_month, status, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.BusinessUnitID, p.Code, p.Name, p.Description,
		p.StartMonth, p.EndMonth, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if !database.IsUniqueViolation(err) {
			log.Errorf("could not store project: %v", err)
		}
		return Project{}, err
	}
	return p, nil
}

func (r *RepositoryImpl) UpdateProject(ctx context.Context, p Project) (Project, error) {
	p.UpdatedAt = time.Now().UTC()
	query := `UPDATE projects
			  SET code = $2, name = $3, description = NULLIF($4, ''), start_month = $5, end_month = $6, status = $7, updated_at = $8
			  WHERE id = $1`
	tag, err := r.db.Exec(ctx, query,
		p.ID, p.Code, p.Name, p.Description, p.StartMonth, p.EndMonth, p.Status, p.UpdatedAt,
	)
	if err != nil {
		if !database.IsUniqueViolation(err) {
			log.Errorf("could not update project %s: %v", p.ID, err)
		}
		return Project{}, err
	}
	if tag.RowsAffected() == 0 {
		return Project{}, ErrProjectNotFound
	}
	return p, nil
}

func (r *RepositoryImpl) DeleteProject(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		log.Errorf("could not delete project %s: %v", id, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

const stageColumns = `id, project_id, name, start_month, end_month, color_token, sequence_no`

func (r *RepositoryImpl) GetStage(ctx context.Context, id uuid.UUID) (Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM project_stages WHERE id = $1`
	var s Stage
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.ProjectID, &s.Name, &s.StartMonth, &s.EndMonth, &s.ColorToken, &s.SequenceNo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, ErrStageNotFound
		}
		log.Errorf("could not query stage %s: %v", id, err)
		return Stage{}, err
	}
	return s, nil
}

func (r *RepositoryImpl) ListStages(ctx context.Context, projectID uuid.UUID) ([]Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM project_stages WHERE project_id = $1 ORDER BY sequence_no, name`
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		log.Errorf("could not query stages for project %s: %v", projectID, err)
		return nil, err
	}
	defer rows.Close()

	var stages []Stage
	for rows.Next() {
		var s Stage
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Name, &s.StartMonth, &s.EndMonth, &s.ColorToken, &s.SequenceNo); err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

func (r *RepositoryImpl) StoreStage(ctx context.Context, s Stage) (Stage, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	query := `INSERT INTO project_stages (id, project_id, name, start_month, end_month, color_token, sequence_no)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.Exec(ctx, query, s.ID, s.ProjectID, s.Name, s.StartMonth, s.EndMonth, s.ColorToken, s.SequenceNo); err != nil {
		log.Errorf("could not store stage: %v", err)
		return Stage{}, err
	}
	return s, nil
}

func (r *RepositoryImpl) UpdateStage(ctx context.Context, s Stage) (Stage, error) {
	query := `UPDATE project_stages
			  SET name = $2, start_month = $3, end_month = $4, color_token = $5, sequence_no = $6
			  WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, s.ID, s.Name, s.StartMonth, s.EndMonth, s.ColorToken, s.SequenceNo)
	if err != nil {
		log.Errorf("could not update stage %s: %v", s.ID, err)
		return Stage{}, err
	}
	if tag.RowsAffected() == 0 {
		return Stage{}, ErrStageNotFound
	}
	return s, nil
}

func (r *RepositoryImpl) DeleteStage(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM project_stages WHERE id = $1`, id)
	if err != nil {
		log.Errorf("could not delete stage %s: %v", id, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStageNotFound
	}
	return nil
}

const taskColumns = `id, project_id, stage_id, code, name, sequence_no, active`

func (r *RepositoryImpl) GetTask(ctx context.Context, id uuid.UUID) (Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	var t Task
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.ProjectID, &t.StageID, &t.Code, &t.Name, &t.SequenceNo, &t.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrTaskNotFound
		}
		log.Errorf("could not query task %s: %v", id, err)
		return Task{}, err
	}
	return t, nil
}

func (r *RepositoryImpl) ListTasks(ctx context.Context, projectID uuid.UUID) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1 ORDER BY sequence_no, code`
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		log.Errorf("could not query tasks for project %s: %v", projectID, err)
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.StageID, &t.Code, &t.Name, &t.SequenceNo, &t.Active); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *RepositoryImpl) StoreTask(ctx context.Context, t Task) (Task, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query := `INSERT INTO tasks (id, project_id, stage_id, code, name, sequence_no, active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.Exec(ctx, query, t.ID, t.ProjectID, t.StageID, t.Code, t.Name, t.SequenceNo, t.Active); err != nil {
		if !database.IsUniqueViolation(err) {
			log.Errorf("could not store task: %v", err)
		}
		return Task{}, err
	}
	return t, nil
}

func (r *RepositoryImpl) UpdateTask(ctx context.Context, t Task) (Task, error) {
	query := `UPDATE tasks
			  SET stage_id = $2, code = $3, name = $4, sequence_no = $5, active = $6
			  WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, t.ID, t.StageID, t.Code, t.Name, t.SequenceNo, t.Active)
	if err != nil {
		if !database.IsUniqueViolation(err) {
			log.Errorf("could not update task %s: %v", t.ID, err)
		}
		return Task{}, err
	}
	if tag.RowsAffected() == 0 {
		return Task{}, ErrTaskNotFound
	}
	return t, nil
}

func (r *RepositoryImpl) DeleteTask(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		log.Errorf("could not delete task %s: %v", id, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

const performerColumns = `id, business_unit_id, COALESCE(external_ref, ''), display_name, active`
const performerColumnsPrefixed = `p.id, p.business_unit_id, COALESCE(p.external_ref, ''), p.display_name, p.active`

func (r *RepositoryImpl) GetPerformer(ctx context.Context, id uuid.UUID) (Performer, error) {
	query := `SELECT ` + performerColumns + ` FROM performers WHERE id = $1`
	var p Performer
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.BusinessUnitID, &p.ExternalRef, &p.DisplayName, &p.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Performer{}, ErrPerformerNotFound
		}
		log.Errorf("could not query performer %s: %v", id, err)
		return Performer{}, err
	}
	return p, nil
}

func (r *RepositoryImpl) ListPerformers(ctx context.Context, businessUnitID uuid.UUID) ([]Performer, error) {
	query := `SELECT ` + performerColumns + ` FROM performers WHERE business_unit_id = $1 ORDER BY display_name`
	rows, err := r.db.Query(ctx, query, businessUnitID)
	if err != nil {
		log.Errorf("could not query performers for business unit %s: %v", businessUnitID, err)
		return nil, err
	}
	defer rows.Close()

	var performers []Performer
	for rows.Next() {
		var p Performer
		if err := rows.Scan(&p.ID, &p.BusinessUnitID, &p.ExternalRef, &p.DisplayName, &p.Active); err != nil {
			return nil, err
		}
		performers = append(performers, p)
	}
	return performers, rows.Err()
}

// ListProjectPerformers returns only the performers actually assigned to
// one of the project's tasks.
func (r *RepositoryImpl) ListProjectPerformers(ctx context.Context, projectID, businessUnitID uuid.UUID) ([]Performer, error) {
	query := `SELECT DISTINCT ` + performerColumnsPrefixed + `
			  FROM performers p
			  JOIN task_performer_assignments a ON a.performer_id = p.id
			  JOIN tasks t ON t.id = a.task_id
			  WHERE t.project_id = $1 AND p.business_unit_id = $2
			  ORDER BY p.display_name`
	rows, err := r.db.Query(ctx, query, projectID, businessUnitID)
	if err != nil {
		log.Errorf("could not query performers for project %s: %v", projectID, err)
		return nil, err
	}
	defer rows.Close()

	var performers []Performer
	for rows.Next() {
		var p Performer
		if err := rows.Scan(&p.ID, &p.BusinessUnitID, &p.ExternalRef, &p.DisplayName, &p.Active); err != nil {
			return nil, err
		}
		performers = append(performers, p)
	}
	return performers, rows.Err()
}

func (r *RepositoryImpl) StorePerformer(ctx context.Context, p Performer) (Performer, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `INSERT INTO performers (id, business_unit_id, external_ref, display_name, active)
			  VALUES ($1, $2, NULLIF($3, ''), $4, $5)`
	if _, err := r.db.Exec(ctx, query, p.ID, p.BusinessUnitID, p.ExternalRef, p.DisplayName, p.Active); err != nil {
		log.Errorf("could not store performer: %v", err)
		return Performer{}, err
	}
	return p, nil
}

func (r *RepositoryImpl) UpdatePerformer(ctx context.Context, p Performer) (Performer, error) {
	query := `UPDATE performers
			  SET external_ref = NULLIF($2, ''), display_name = $3, active = $4
			  WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, p.ID, p.ExternalRef, p.DisplayName, p.Active)
	if err != nil {
		log.Errorf("could not update performer %s: %v", p.ID, err)
		return Performer{}, err
	}
	if tag.RowsAffected() == 0 {
		return Performer{}, ErrPerformerNotFound
	}
	return p, nil
}

func (r *RepositoryImpl) DeletePerformer(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM performers WHERE id = $1`, id)
	if err != nil {
		log.Errorf("could not delete performer %s: %v", id, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPerformerNotFound
	}
	return nil
}

func (r *RepositoryImpl) GetAssignment(ctx context.Context, taskID, performerID uuid.UUID) (Assignment, error) {
	query := `SELECT task_id, performer_id FROM task_performer_assignments WHERE task_id = $1 AND performer_id = $2`
	var a Assignment
	err := r.db.QueryRow(ctx, query, taskID, performerID).Scan(&a.TaskID, &a.PerformerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrAssignmentNotFound
		}
		log.Errorf("could not query assignment (%s, %s): %v", taskID, performerID, err)
		return Assignment{}, err
	}
	return a, nil
}

func (r *RepositoryImpl) ListAssignments(ctx context.Context, projectID uuid.UUID) ([]Assignment, error) {
	query := `SELECT a.task_id, a.performer_id
			  FROM task_performer_assignments a
			  JOIN tasks t ON t.id = a.task_id
			  WHERE t.project_id = $1`
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		log.Errorf("could not query assignments for project %s: %v", projectID, err)
		return nil, err
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.TaskID, &a.PerformerID); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (r *RepositoryImpl) StoreAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	query := `INSERT INTO task_performer_assignments (task_id, performer_id) VALUES ($1, $2)`
	if _, err := r.db.Exec(ctx, query, a.TaskID, a.PerformerID); err != nil {
		if !database.IsUniqueViolation(err) {
			log.Errorf("could not store assignment: %v", err)
		}
		return Assignment{}, err
	}
	return a, nil
}

func (r *RepositoryImpl) DeleteAssignment(ctx context.Context, taskID, performerID uuid.UUID) error {
	query := `DELETE FROM task_performer_assignments WHERE task_id = $1 AND performer_id = $2`
	tag, err := r.db.Exec(ctx, query, taskID, performerID)
	if err != nil {
		log.Errorf("could not delete assignment (%s, %s): %v", taskID, performerID, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func (r *RepositoryImpl) countBy(ctx context.Context, query string, id uuid.UUID) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, query, id).Scan(&count); err != nil {
		log.Errorf("could not count rows for %s: %v", id, err)
		return 0, err
	}
	return count, nil
}

func (r *RepositoryImpl) CountStages(ctx context.Context, projectID uuid.UUID) (int, error) {
	return r.countBy(ctx, `SELECT COUNT(*) FROM project_stages WHERE project_id = $1`, projectID)
}

func (r *RepositoryImpl) CountTasks(ctx context.Context, projectID uuid.UUID) (int, error) {
	return r.countBy(ctx, `SELECT COUNT(*) FROM tasks WHERE project_id = $1`, projectID)
}

func (r *RepositoryImpl) CountTasksInStage(ctx context.Context, stageID uuid.UUID) (int, error) {
	return r.countBy(ctx, `SELECT COUNT(*) FROM tasks WHERE stage_id = $1`, stageID)
}

func (r *RepositoryImpl) CountAssignmentsForTask(ctx context.Context, taskID uuid.UUID) (int, error) {
	return r.countBy(ctx, `SELECT COUNT(*) FROM task_performer_assignments WHERE task_id = $1`, taskID)
}

func (r *RepositoryImpl) CountAssignmentsForPerformer(ctx context.Context, performerID uuid.UUID) (int, error) {
	return r.countBy(ctx, `SELECT COUNT(*) FROM task_performer_assignments WHERE performer_id = $1`, performerID)
}
