package project

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pplan/pplan/internal/rest"
	"github.com/pplan/pplan/pkg/actor"
	"github.com/pplan/pplan/pkg/businessunit"
	"github.com/pplan/pplan/pkg/months"
	log "github.com/sirupsen/logrus"
)

type ProjectDTO struct {
	ID             string    `json:"id"`
	BusinessUnitID string    `json:"businessUnitId"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	StartMonth     string    `json:"startMonth"`
	EndMonth       string    `json:"endMonth"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type StageDTO struct {
	ID         string `json:"id"`
	ProjectID  string `json:"projectId"`
	Name       string `json:"name"`
	StartMonth string `json:"startMonth"`
	EndMonth   string `json:"endMonth"`
	ColorToken string `json:"colorToken"`
	SequenceNo int    `json:"sequenceNo"`
}

type TaskDTO struct {
	ID         string `json:"id"`
	ProjectID  string `json:"projectId"`
	StageID    string `json:"stageId"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	SequenceNo int    `json:"sequenceNo"`
	Active     bool   `json:"active"`
}

type PerformerDTO struct {
	ID             string `json:"id"`
	BusinessUnitID string `json:"businessUnitId"`
	ExternalRef    string `json:"externalRef,omitempty"`
	DisplayName    string `json:"displayName"`
	Active         bool   `json:"active"`
}

type AssignmentDTO struct {
	TaskID      string `json:"taskId"`
	PerformerID string `json:"performerId"`
}

func ProjectToDTO(p Project) ProjectDTO {
	return ProjectDTO{
		ID:             p.ID.String(),
		BusinessUnitID: p.BusinessUnitID.String(),
		Code:           p.Code,
		Name:           p.Name,
		Description:    p.Description,
		StartMonth:     months.Key(p.StartMonth),
		EndMonth:       months.Key(p.EndMonth),
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func StageToDTO(s Stage) StageDTO {
	return StageDTO{
		ID:         s.ID.String(),
		ProjectID:  s.ProjectID.String(),
		Name:       s.Name,
		StartMonth: months.Key(s.StartMonth),
		EndMonth:   months.Key(s.EndMonth),
		ColorToken: s.ColorToken,
		SequenceNo: s.SequenceNo,
	}
}

func TaskToDTO(t Task) TaskDTO {
	return TaskDTO{
		ID:         t.ID.String(),
		ProjectID:  t.ProjectID.String(),
		StageID:    t.StageID.String(),
		Code:       t.Code,
		Name:       t.Name,
		SequenceNo: t.SequenceNo,
		Active:     t.Active,
	}
}

func PerformerToDTO(p Performer) PerformerDTO {
	return PerformerDTO{
		ID:             p.ID.String(),
		BusinessUnitID: p.BusinessUnitID.String(),
		ExternalRef:    p.ExternalRef,
		DisplayName:    p.DisplayName,
		Active:         p.Active,
	}
}

type projectCreateDTO struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StartMonth  string `json:"startMonth"`
	EndMonth    string `json:"endMonth"`
	Status      string `json:"status"`
}

type projectUpdateDTO struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	StartMonth  *string `json:"startMonth"`
	EndMonth    *string `json:"endMonth"`
	Status      *string `json:"status"`
}

type stageCreateDTO struct {
	Name       string `json:"name"`
	StartMonth string `json:"startMonth"`
	EndMonth   string `json:"endMonth"`
	ColorToken string `json:"colorToken"`
	SequenceNo int    `json:"sequenceNo"`
}

type stageUpdateDTO struct {
	Name       *string `json:"name"`
	StartMonth *string `json:"startMonth"`
	EndMonth   *string `json:"endMonth"`
	ColorToken *string `json:"colorToken"`
	SequenceNo *int    `json:"sequenceNo"`
}

type taskCreateDTO struct {
	StageID    string `json:"stageId"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	SequenceNo int    `json:"sequenceNo"`
	Active     *bool  `json:"active"`
}

type taskUpdateDTO struct {
	StageID    *string `json:"stageId"`
	Code       *string `json:"code"`
	Name       *string `json:"name"`
	SequenceNo *int    `json:"sequenceNo"`
	Active     *bool   `json:"active"`
}

type performerCreateDTO struct {
	ExternalRef string `json:"externalRef"`
	DisplayName string `json:"displayName"`
	Active      *bool  `json:"active"`
}

type performerUpdateDTO struct {
	ExternalRef *string `json:"externalRef"`
	DisplayName *string `json:"displayName"`
	Active      *bool   `json:"active"`
}

type assignmentCreateDTO struct {
	TaskID      string `json:"taskId"`
	PerformerID string `json:"performerId"`
}

type Handler struct {
	service Service
}

func NewProjectHandler(service Service) *Handler {
	return &Handler{service}
}

// WriteServiceError maps domain errors onto HTTP statuses. Shared by the
// handlers of the packages built on top of the project guard.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, actor.ErrNoActor):
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
	case errors.Is(err, actor.ErrForbidden):
		rest.WriteError(w, http.StatusForbidden, "Insufficient business unit scope permissions for this operation.", "")
	case errors.Is(err, businessunit.ErrBusinessUnitNotFound),
		errors.Is(err, ErrProjectNotFound),
		errors.Is(err, ErrStageNotFound),
		errors.Is(err, ErrTaskNotFound),
		errors.Is(err, ErrPerformerNotFound),
		errors.Is(err, ErrAssignmentNotFound):
		rest.WriteError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, ErrProjectCodeTaken),
		errors.Is(err, ErrTaskCodeTaken),
		errors.Is(err, ErrAssignmentExists),
		errors.Is(err, ErrProjectHasStages),
		errors.Is(err, ErrProjectHasTasks),
		errors.Is(err, ErrProjectHasEffort),
		errors.Is(err, ErrProjectHasSnapshots),
		errors.Is(err, ErrStageHasTasks),
		errors.Is(err, ErrTaskHasAssignments),
		errors.Is(err, ErrTaskHasEffort),
		errors.Is(err, ErrPerformerAssigned),
		errors.Is(err, ErrPerformerHasEffort),
		errors.Is(err, ErrAssignmentHasEffort):
		rest.WriteError(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, months.ErrNotMonthStart),
		errors.Is(err, ErrEndBeforeStart),
		errors.Is(err, ErrRangeShrink),
		errors.Is(err, ErrStageOutsideProject),
		errors.Is(err, ErrStageNotInProject),
		errors.Is(err, ErrPerformerOutsideBU):
		rest.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "")
	default:
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)[name])
}

// MonthParam parses a YYYY-MM-01 value and writes the appropriate error
// response itself. Malformed dates are a 400, well-formed dates that are
// not a month start a 422.
func MonthParam(w http.ResponseWriter, name, value string) (time.Time, bool) {
	month, err := months.Parse(value)
	if err != nil {
		if errors.Is(err, months.ErrNotMonthStart) {
			rest.WriteError(w, http.StatusUnprocessableEntity, err.Error(), name)
		} else {
			rest.WriteError(w, http.StatusBadRequest, "invalid "+name, err.Error())
		}
		return time.Time{}, false
	}
	return month, true
}

// ListProjects godoc
// @Summary List projects of a business unit
// @Tags Project
// @Produce json
// @Success 200 {array} ProjectDTO
// @Router /api/businessunit/{businessUnitId}/projects [get]
// @Security XUserId
func (handler *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing projects")
	businessUnitID, err := pathUUID(r, "businessUnitId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid business unit id", err.Error())
		return
	}
	projects, err := handler.service.ListProjects(r.Context(), businessUnitID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	dtos := make([]ProjectDTO, 0, len(projects))
	for _, p := range projects {
		dtos = append(dtos, ProjectToDTO(p))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// CreateProject godoc
// @Summary Create a project in a business unit
// @Tags Project
// @Accept json
// @Produce json
// @Success 201 {object} ProjectDTO
// @Router /api/businessunit/{businessUnitId}/projects [post]
// @Security XUserId
func (handler *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new project")
	businessUnitID, err := pathUUID(r, "businessUnitId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid business unit id", err.Error())
		return
	}
	var dto projectCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	startMonth, ok := MonthParam(w, "startMonth", dto.StartMonth)
	if !ok {
		return
	}
	endMonth, ok := MonthParam(w, "endMonth", dto.EndMonth)
	if !ok {
		return
	}

	created, err := handler.service.CreateProject(r.Context(), businessUnitID, ProjectCreate{
		Code:        dto.Code,
		Name:        dto.Name,
		Description: dto.Description,
		StartMonth:  startMonth,
		EndMonth:    endMonth,
		Status:      Status(dto.Status),
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, ProjectToDTO(created))
}

// GetProject godoc
// @Summary Get a project
// @Tags Project
// @Produce json
// @Success 200 {object} ProjectDTO
// @Router /api/projects/{projectId} [get]
// @Security XUserId
func (handler *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	project, err := handler.service.GetProject(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ProjectToDTO(project))
}

// UpdateProject godoc
// @Summary Update a project
// @Tags Project
// @Accept json
// @Produce json
// @Success 200 {object} ProjectDTO
// @Router /api/projects/{projectId} [patch]
// @Security XUserId
func (handler *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	log.Debug("Updating project")
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	var dto projectUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	update := ProjectUpdate{
		Code:        dto.Code,
		Name:        dto.Name,
		Description: dto.Description,
	}
	if dto.StartMonth != nil {
		startMonth, ok := MonthParam(w, "startMonth", *dto.StartMonth)
		if !ok {
			return
		}
		update.StartMonth = &startMonth
	}
	if dto.EndMonth != nil {
		endMonth, ok := MonthParam(w, "endMonth", *dto.EndMonth)
		if !ok {
			return
		}
		update.EndMonth = &endMonth
	}
	if dto.Status != nil {
		status := Status(*dto.Status)
		update.Status = &status
	}

	updated, err := handler.service.UpdateProject(r.Context(), projectID, update)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ProjectToDTO(updated))
}

// DeleteProject godoc
// @Summary Delete an empty project
// @Tags Project
// @Success 204
// @Router /api/projects/{projectId} [delete]
// @Security XUserId
func (handler *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	log.Debug("Deleting project")
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	if err := handler.service.DeleteProject(r.Context(), projectID); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListStages godoc
// @Summary List stages of a project
// @Tags Stage
// @Produce json
// @Success 200 {array} StageDTO
// @Router /api/projects/{projectId}/stages [get]
// @Security XUserId
func (handler *Handler) ListStages(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	stages, err := handler.service.ListStages(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	dtos := make([]StageDTO, 0, len(stages))
	for _, s := range stages {
		dtos = append(dtos, StageToDTO(s))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// CreateStage godoc
// @Summary Create a stage within the project month range
// @Tags Stage
// @Accept json
// @Produce json
// @Success 201 {object} StageDTO
// @Router /api/projects/{projectId}/stages [post]
// @Security XUserId
func (handler *Handler) CreateStage(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new project stage")
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	var dto stageCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	startMonth, ok := MonthParam(w, "startMonth", dto.StartMonth)
	if !ok {
		return
	}
	endMonth, ok := MonthParam(w, "endMonth", dto.EndMonth)
	if !ok {
		return
	}

	created, err := handler.service.CreateStage(r.Context(), projectID, StageCreate{
		Name:       dto.Name,
		StartMonth: startMonth,
		EndMonth:   endMonth,
		ColorToken: dto.ColorToken,
		SequenceNo: dto.SequenceNo,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, StageToDTO(created))
}

// UpdateStage godoc
// @Summary Update a stage
// @Tags Stage
// @Accept json
// @Produce json
// @Success 200 {object} StageDTO
// @Router /api/projects/{projectId}/stages/{stageId} [patch]
// @Security XUserId
func (handler *Handler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	stageID, err := pathUUID(r, "stageId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid stage id", err.Error())
		return
	}
	var dto stageUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	update := StageUpdate{
		Name:       dto.Name,
		ColorToken: dto.ColorToken,
		SequenceNo: dto.SequenceNo,
	}
	if dto.StartMonth != nil {
		startMonth, ok := MonthParam(w, "startMonth", *dto.StartMonth)
		if !ok {
			return
		}
		update.StartMonth = &startMonth
	}
	if dto.EndMonth != nil {
		endMonth, ok := MonthParam(w, "endMonth", *dto.EndMonth)
		if !ok {
			return
		}
		update.EndMonth = &endMonth
	}

	updated, err := handler.service.UpdateStage(r.Context(), projectID, stageID, update)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, StageToDTO(updated))
}

// DeleteStage godoc
// @Summary Delete a stage without tasks
// @Tags Stage
// @Success 204
// @Router /api/projects/{projectId}/stages/{stageId} [delete]
// @Security XUserId
func (handler *Handler) DeleteStage(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	stageID, err := pathUUID(r, "stageId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid stage id", err.Error())
		return
	}
	if err := handler.service.DeleteStage(r.Context(), projectID, stageID); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTasks godoc
// @Summary List tasks of a project
// @Tags Task
// @Produce json
// @Success 200 {array} TaskDTO
// @Router /api/projects/{projectId}/tasks [get]
// @Security XUserId
func (handler *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	tasks, err := handler.service.ListTasks(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	dtos := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		dtos = append(dtos, TaskToDTO(t))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// CreateTask godoc
// @Summary Create a task under a stage
// @Tags Task
// @Accept json
// @Produce json
// @Success 201 {object} TaskDTO
// @Router /api/projects/{projectId}/tasks [post]
// @Security XUserId
func (handler *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new task")
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	var dto taskCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	stageID, err := uuid.Parse(dto.StageID)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid stage id", err.Error())
		return
	}
	active := true
	if dto.Active != nil {
		active = *dto.Active
	}

	created, err := handler.service.CreateTask(r.Context(), projectID, TaskCreate{
		StageID:    stageID,
		Code:       dto.Code,
		Name:       dto.Name,
		SequenceNo: dto.SequenceNo,
		Active:     active,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, TaskToDTO(created))
}

// UpdateTask godoc
// @Summary Update a task
// @Tags Task
// @Accept json
// @Produce json
// @Success 200 {object} TaskDTO
// @Router /api/projects/{projectId}/tasks/{taskId} [patch]
// @Security XUserId
func (handler *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	taskID, err := pathUUID(r, "taskId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid task id", err.Error())
		return
	}
	var dto taskUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	update := TaskUpdate{
		Code:       dto.Code,
		Name:       dto.Name,
		SequenceNo: dto.SequenceNo,
		Active:     dto.Active,
	}
	if dto.StageID != nil {
		stageID, err := uuid.Parse(*dto.StageID)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "invalid stage id", err.Error())
			return
		}
		update.StageID = &stageID
	}

	updated, err := handler.service.UpdateTask(r.Context(), projectID, taskID, update)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, TaskToDTO(updated))
}

// DeleteTask godoc
// @Summary Delete a task without assignments or effort
// @Tags Task
// @Success 204
// @Router /api/projects/{projectId}/tasks/{taskId} [delete]
// @Security XUserId
func (handler *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	taskID, err := pathUUID(r, "taskId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid task id", err.Error())
		return
	}
	if err := handler.service.DeleteTask(r.Context(), projectID, taskID); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPerformers godoc
// @Summary List performers available to a project
// @Tags Performer
// @Produce json
// @Success 200 {array} PerformerDTO
// @Router /api/projects/{projectId}/performers [get]
// @Security XUserId
func (handler *Handler) ListPerformers(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	performers, err := handler.service.ListPerformers(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	dtos := make([]PerformerDTO, 0, len(performers))
	for _, p := range performers {
		dtos = append(dtos, PerformerToDTO(p))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// CreatePerformer godoc
// @Summary Create a performer in the project business unit
// @Tags Performer
// @Accept json
// @Produce json
// @Success 201 {object} PerformerDTO
// @Router /api/projects/{projectId}/performers [post]
// @Security XUserId
func (handler *Handler) CreatePerformer(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new performer")
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	var dto performerCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	active := true
	if dto.Active != nil {
		active = *dto.Active
	}

	created, err := handler.service.CreatePerformer(r.Context(), projectID, PerformerCreate{
		ExternalRef: dto.ExternalRef,
		DisplayName: dto.DisplayName,
		Active:      active,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, PerformerToDTO(created))
}

// UpdatePerformer godoc
// @Summary Update a performer
// @Tags Performer
// @Accept json
// @Produce json
// @Success 200 {object} PerformerDTO
// @Router /api/projects/{projectId}/performers/{performerId} [patch]
// @Security XUserId
func (handler *Handler) UpdatePerformer(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	performerID, err := pathUUID(r, "performerId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid performer id", err.Error())
		return
	}
	var dto performerUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	updated, err := handler.service.UpdatePerformer(r.Context(), projectID, performerID, PerformerUpdate{
		ExternalRef: dto.ExternalRef,
		DisplayName: dto.DisplayName,
		Active:      dto.Active,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, PerformerToDTO(updated))
}

// DeletePerformer godoc
// @Summary Delete a performer without assignments or effort
// @Tags Performer
// @Success 204
// @Router /api/projects/{projectId}/performers/{performerId} [delete]
// @Security XUserId
func (handler *Handler) DeletePerformer(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	performerID, err := pathUUID(r, "performerId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid performer id", err.Error())
		return
	}
	if err := handler.service.DeletePerformer(r.Context(), projectID, performerID); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAssignments godoc
// @Summary List task-performer assignments of a project
// @Tags Assignment
// @Produce json
// @Success 200 {array} AssignmentDTO
// @Router /api/projects/{projectId}/assignments [get]
// @Security XUserId
func (handler *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	assignments, err := handler.service.ListAssignments(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	dtos := make([]AssignmentDTO, 0, len(assignments))
	for _, a := range assignments {
		dtos = append(dtos, AssignmentDTO{TaskID: a.TaskID.String(), PerformerID: a.PerformerID.String()})
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// CreateAssignment godoc
// @Summary Assign a performer to a task
// @Tags Assignment
// @Accept json
// @Produce json
// @Success 201 {object} AssignmentDTO
// @Router /api/projects/{projectId}/assignments [post]
// @Security XUserId
func (handler *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new task-performer assignment")
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	var dto assignmentCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	taskID, err := uuid.Parse(dto.TaskID)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid task id", err.Error())
		return
	}
	performerID, err := uuid.Parse(dto.PerformerID)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid performer id", err.Error())
		return
	}

	created, err := handler.service.CreateAssignment(r.Context(), projectID, taskID, performerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, AssignmentDTO{
		TaskID:      created.TaskID.String(),
		PerformerID: created.PerformerID.String(),
	})
}

// DeleteAssignment godoc
// @Summary Remove a task-performer assignment without effort
// @Tags Assignment
// @Success 204
// @Router /api/projects/{projectId}/assignments/{taskId}/{performerId} [delete]
// @Security XUserId
func (handler *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	taskID, err := pathUUID(r, "taskId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid task id", err.Error())
		return
	}
	performerID, err := pathUUID(r, "performerId")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid performer id", err.Error())
		return
	}
	if err := handler.service.DeleteAssignment(r.Context(), projectID, taskID, performerID); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
