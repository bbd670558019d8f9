package effort

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pplan/pplan/internal/rest"
	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type MonthlyTotalDTO struct {
	MonthStart        string `json:"monthStart"`
	PlannedPersonDays string `json:"plannedPersonDays"`
	ActualPersonDays  string `json:"actualPersonDays"`
}

type TaskRowDTO struct {
	project.TaskDTO
	MonthlyTotals []MonthlyTotalDTO `json:"monthlyTotals"`
	PerformerIDs  []string          `json:"performerIds"`
}

type PerformerRowDTO struct {
	project.PerformerDTO
	MonthlyTotals []MonthlyTotalDTO `json:"monthlyTotals"`
}

type CellDTO struct {
	TaskID            string `json:"taskId"`
	PerformerID       string `json:"performerId"`
	MonthStart        string `json:"monthStart"`
	PlannedPersonDays string `json:"plannedPersonDays"`
	ActualPersonDays  string `json:"actualPersonDays"`
}

type SnapshotRowDTO struct {
	MonthStart            string `json:"monthStart"`
	PlannedPersonDays     string `json:"plannedPersonDays"`
	ActualPersonDays      string `json:"actualPersonDays"`
	PlannedCost           string `json:"plannedCost"`
	ActualCost            string `json:"actualCost"`
	RevenueAmount         string `json:"revenueAmount"`
	InvoiceAmount         string `json:"invoiceAmount"`
	CumulativePlannedCost string `json:"cumulativePlannedCost"`
	CumulativeActualCost  string `json:"cumulativeActualCost"`
	CumulativeRevenue     string `json:"cumulativeRevenue"`
}

type MatrixDTO struct {
	Project     project.ProjectDTO      `json:"project"`
	Months      []string                `json:"months"`
	Stages      []project.StageDTO      `json:"stages"`
	Tasks       []TaskRowDTO            `json:"tasks"`
	Performers  []PerformerRowDTO       `json:"performers"`
	Assignments []project.AssignmentDTO `json:"assignments"`
	Entries     []CellDTO               `json:"entries"`
	Snapshots   []SnapshotRowDTO        `json:"projectMonthlySnapshots"`
}

type entryInputDTO struct {
	TaskID            string `json:"taskId"`
	PerformerID       string `json:"performerId"`
	MonthStart        string `json:"monthStart"`
	PlannedPersonDays string `json:"plannedPersonDays"`
	ActualPersonDays  string `json:"actualPersonDays"`
}

type bulkUpsertDTO struct {
	Entries []entryInputDTO `json:"entries"`
}

type UpsertResultDTO struct {
	UpdatedEntries int              `json:"updatedEntries"`
	Snapshots      []SnapshotRowDTO `json:"projectMonthlySnapshots"`
}

func SnapshotRowToDTO(row SnapshotRow) SnapshotRowDTO {
	return SnapshotRowDTO{
		MonthStart:            months.Key(row.Month),
		PlannedPersonDays:     money.String(row.PlannedPersonDays),
		ActualPersonDays:      money.String(row.ActualPersonDays),
		PlannedCost:           money.String(row.PlannedCost),
		ActualCost:            money.String(row.ActualCost),
		RevenueAmount:         money.String(row.RevenueAmount),
		InvoiceAmount:         money.String(row.InvoiceAmount),
		CumulativePlannedCost: money.String(row.CumulativePlannedCost),
		CumulativeActualCost:  money.String(row.CumulativeActualCost),
		CumulativeRevenue:     money.String(row.CumulativeRevenue),
	}
}

func matrixToDTO(m Matrix) MatrixDTO {
	dto := MatrixDTO{
		Project:     project.ProjectToDTO(m.Project),
		Months:      make([]string, 0, len(m.Months)),
		Stages:      make([]project.StageDTO, 0, len(m.Stages)),
		Tasks:       make([]TaskRowDTO, 0, len(m.Tasks)),
		Performers:  make([]PerformerRowDTO, 0, len(m.Performers)),
		Assignments: make([]project.AssignmentDTO, 0, len(m.Assignments)),
		Entries:     make([]CellDTO, 0, len(m.Entries)),
		Snapshots:   make([]SnapshotRowDTO, 0, len(m.Snapshots)),
	}
	for _, month := range m.Months {
		dto.Months = append(dto.Months, months.Key(month))
	}
	for _, stage := range m.Stages {
		dto.Stages = append(dto.Stages, project.StageToDTO(stage))
	}
	for _, row := range m.Tasks {
		taskRow := TaskRowDTO{
			TaskDTO:       project.TaskToDTO(row.Task),
			MonthlyTotals: totalsToDTO(row.MonthlyTotals),
			PerformerIDs:  make([]string, 0, len(row.PerformerIDs)),
		}
		for _, performerID := range row.PerformerIDs {
			taskRow.PerformerIDs = append(taskRow.PerformerIDs, performerID.String())
		}
		dto.Tasks = append(dto.Tasks, taskRow)
	}
	for _, row := range m.Performers {
		dto.Performers = append(dto.Performers, PerformerRowDTO{
			PerformerDTO:  project.PerformerToDTO(row.Performer),
			MonthlyTotals: totalsToDTO(row.MonthlyTotals),
		})
	}
	for _, assignment := range m.Assignments {
		dto.Assignments = append(dto.Assignments, project.AssignmentDTO{
			TaskID:      assignment.TaskID.String(),
			PerformerID: assignment.PerformerID.String(),
		})
	}
	for _, cell := range m.Entries {
		dto.Entries = append(dto.Entries, CellDTO{
			TaskID:            cell.TaskID.String(),
			PerformerID:       cell.PerformerID.String(),
			MonthStart:        months.Key(cell.Month),
			PlannedPersonDays: money.String(cell.Planned),
			ActualPersonDays:  money.String(cell.Actual),
		})
	}
	for _, row := range m.Snapshots {
		dto.Snapshots = append(dto.Snapshots, SnapshotRowToDTO(row))
	}
	return dto
}

func totalsToDTO(totals []MonthlyTotal) []MonthlyTotalDTO {
	dtos := make([]MonthlyTotalDTO, 0, len(totals))
	for _, total := range totals {
		dtos = append(dtos, MonthlyTotalDTO{
			MonthStart:        months.Key(total.Month),
			PlannedPersonDays: money.String(total.Planned),
			ActualPersonDays:  money.String(total.Actual),
		})
	}
	return dtos
}

type Handler struct {
	service Service
}

func NewMatrixHandler(service Service) *Handler {
	return &Handler{service}
}

func writeMatrixError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNegativePersonDays),
		errors.Is(err, ErrMonthOutsideRange),
		errors.Is(err, ErrUnknownTask),
		errors.Is(err, ErrInactiveTask),
		errors.Is(err, ErrUnknownPerformer),
		errors.Is(err, ErrInactivePerformer),
		errors.Is(err, ErrPairNotAssigned),
		errors.Is(err, ErrDuplicateKey),
		errors.Is(err, ErrMatrixRangeInverted),
		errors.Is(err, ErrMatrixOutsideProject):
		rest.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "")
	case errors.Is(err, ErrUpsertConflict):
		rest.WriteError(w, http.StatusConflict, err.Error(), "")
	default:
		project.WriteServiceError(w, err)
	}
}

// ReadMatrix godoc
// @Summary Read the effort matrix of a project
// @Tags Matrix
// @Produce json
// @Param fromMonth query string false "Window start (YYYY-MM-01)"
// @Param toMonth query string false "Window end (YYYY-MM-01)"
// @Success 200 {object} MatrixDTO
// @Router /api/projects/{projectId}/matrix [get]
// @Security XUserId
func (handler *Handler) ReadMatrix(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}

	var fromMonth, toMonth *time.Time
	if raw := r.URL.Query().Get("fromMonth"); raw != "" {
		month, ok := project.MonthParam(w, "fromMonth", raw)
		if !ok {
			return
		}
		fromMonth = &month
	}
	if raw := r.URL.Query().Get("toMonth"); raw != "" {
		month, ok := project.MonthParam(w, "toMonth", raw)
		if !ok {
			return
		}
		toMonth = &month
	}

	matrix, err := handler.service.ReadMatrix(r.Context(), projectID, fromMonth, toMonth)
	if err != nil {
		writeMatrixError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, matrixToDTO(matrix))
}

// BulkUpsertEntries godoc
// @Summary Save a batch of matrix cells
// @Description The whole batch is validated first; any invalid cell rejects the entire payload.
// @Tags Matrix
// @Accept json
// @Produce json
// @Success 200 {object} UpsertResultDTO
// @Router /api/projects/{projectId}/matrix/entries [put]
// @Security XUserId
func (handler *Handler) BulkUpsertEntries(w http.ResponseWriter, r *http.Request) {
	log.Debug("Bulk upserting matrix entries")
	projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	var dto bulkUpsertDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entries := make([]EntryInput, 0, len(dto.Entries))
	for _, entryDTO := range dto.Entries {
		input, ok := entryInputFromDTO(w, entryDTO)
		if !ok {
			return
		}
		entries = append(entries, input)
	}

	result, err := handler.service.BulkUpsert(r.Context(), projectID, entries)
	if err != nil {
		writeMatrixError(w, err)
		return
	}

	resultDTO := UpsertResultDTO{
		UpdatedEntries: result.UpdatedEntries,
		Snapshots:      make([]SnapshotRowDTO, 0, len(result.Snapshots)),
	}
	for _, row := range result.Snapshots {
		resultDTO.Snapshots = append(resultDTO.Snapshots, SnapshotRowToDTO(row))
	}
	rest.WriteJSON(w, http.StatusOK, resultDTO)
}

func entryInputFromDTO(w http.ResponseWriter, dto entryInputDTO) (EntryInput, bool) {
	taskID, err := uuid.Parse(dto.TaskID)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid task id", err.Error())
		return EntryInput{}, false
	}
	performerID, err := uuid.Parse(dto.PerformerID)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid performer id", err.Error())
		return EntryInput{}, false
	}
	month, ok := project.MonthParam(w, "monthStart", dto.MonthStart)
	if !ok {
		return EntryInput{}, false
	}
	planned, err := decimal.NewFromString(dto.PlannedPersonDays)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid plannedPersonDays", err.Error())
		return EntryInput{}, false
	}
	actual, err := decimal.NewFromString(dto.ActualPersonDays)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid actualPersonDays", err.Error())
		return EntryInput{}, false
	}
	return EntryInput{
		TaskID:            taskID,
		PerformerID:       performerID,
		Month:             month,
		PlannedPersonDays: planned,
		ActualPersonDays:  actual,
	}, true
}
