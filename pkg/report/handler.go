package report

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pplan/pplan/internal/rest"
	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	log "github.com/sirupsen/logrus"
)

type MonthCellDTO struct {
	MonthStart string `json:"monthStart"`
	Planned    string `json:"planned"`
	Actual     string `json:"actual"`
	Variance   string `json:"variance"`
}

type TotalsDTO struct {
	Planned  string `json:"planned"`
	Actual   string `json:"actual"`
	Variance string `json:"variance"`
}

type PerformerRowDTO struct {
	PerformerID   string         `json:"performerId"`
	PerformerName string         `json:"performerName"`
	Months        []MonthCellDTO `json:"months"`
	Totals        TotalsDTO      `json:"totals"`
}

type TaskRowDTO struct {
	TaskID    string         `json:"taskId"`
	TaskName  string         `json:"taskName"`
	StageName string         `json:"stageName,omitempty"`
	Months    []MonthCellDTO `json:"months"`
	Totals    TotalsDTO      `json:"totals"`
}

type ReportDTO struct {
	ReportKey     string            `json:"reportKey"`
	ProjectID     string            `json:"projectId"`
	FromMonth     string            `json:"fromMonth"`
	ToMonth       string            `json:"toMonth"`
	Months        []string          `json:"months"`
	PerformerRows []PerformerRowDTO `json:"performerRows,omitempty"`
	TaskRows      []TaskRowDTO      `json:"taskRows,omitempty"`
}

type SummaryMonthDTO struct {
	MonthStart            string `json:"monthStart"`
	PlannedPersonDays     string `json:"plannedPersonDays"`
	ActualPersonDays      string `json:"actualPersonDays"`
	PlannedCost           string `json:"plannedCost"`
	ActualCost            string `json:"actualCost"`
	InvoiceAmount         string `json:"invoiceAmount"`
	RevenueAmount         string `json:"revenueAmount"`
	CumulativePlannedCost string `json:"cumulativePlannedCost"`
	CumulativeActualCost  string `json:"cumulativeActualCost"`
	CumulativeRevenue     string `json:"cumulativeRevenue"`
}

type FinanceSummaryDTO struct {
	ProjectID string            `json:"projectId"`
	FromMonth string            `json:"fromMonth"`
	ToMonth   string            `json:"toMonth"`
	Months    []SummaryMonthDTO `json:"months"`
}

type CostTrendPointDTO struct {
	MonthStart            string `json:"monthStart"`
	PlannedCost           string `json:"plannedCost"`
	ActualCost            string `json:"actualCost"`
	CumulativePlannedCost string `json:"cumulativePlannedCost"`
	CumulativeActualCost  string `json:"cumulativeActualCost"`
}

type RealizationPointDTO struct {
	MonthStart           string `json:"monthStart"`
	CumulativeRevenue    string `json:"cumulativeRevenue"`
	CumulativeActualCost string `json:"cumulativeActualCost"`
	CumulativeMargin     string `json:"cumulativeMargin"`
	RealizationPercent   string `json:"realizationPercent"`
}

type WorkloadCellDTO struct {
	MonthStart        string `json:"monthStart"`
	PlannedPersonDays string `json:"plannedPersonDays"`
	ActualPersonDays  string `json:"actualPersonDays"`
}

type WorkloadRowDTO struct {
	PerformerID   string            `json:"performerId"`
	PerformerName string            `json:"performerName"`
	Months        []WorkloadCellDTO `json:"months"`
}

type ProjectDashboardDTO struct {
	Scope            string                `json:"scope"`
	ProjectID        string                `json:"projectId"`
	FromMonth        string                `json:"fromMonth"`
	ToMonth          string                `json:"toMonth"`
	CostTrend        []CostTrendPointDTO   `json:"cumulativeCostTrend"`
	WorkloadTrend    []WorkloadRowDTO      `json:"workloadTrend"`
	RealizationTrend []RealizationPointDTO `json:"realizationTrend"`
}

type BusinessUnitDashboardDTO struct {
	Scope            string                `json:"scope"`
	BusinessUnitID   string                `json:"businessUnitId"`
	FromMonth        *string               `json:"fromMonth"`
	ToMonth          *string               `json:"toMonth"`
	CostTrend        []CostTrendPointDTO   `json:"aggregatedCumulativeCostTrend"`
	WorkloadHeatmap  []WorkloadRowDTO      `json:"workloadHeatmap"`
	RealizationTrend []RealizationPointDTO `json:"realizationTrend"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetReport godoc
// @Summary Pivoted effort or cost report for a project
// @Tags Report
// @Produce json
// @Success 200 {object} ReportDTO
// @Router /api/projects/{projectId}/reports/{reportKey} [get]
// @Security XUserId
func (handler *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	log.Debug("Building project report")
	projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	key, err := ParseKey(mux.Vars(r)["reportKey"])
	if err != nil {
		rest.WriteError(w, http.StatusNotFound, "Unknown report key.", "")
		return
	}
	window, ok := windowParams(w, r)
	if !ok {
		return
	}
	filter, ok := filterParams(w, r)
	if !ok {
		return
	}

	report, err := handler.service.Run(r.Context(), key, projectID, window, filter)
	if err != nil {
		writeReportError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, reportToDTO(report))
}

// ExportReport godoc
// @Summary Download a pivoted report as a file
// @Tags Report
// @Produce text/csv
// @Success 200
// @Router /api/projects/{projectId}/reports/{reportKey}/export [get]
// @Security XUserId
func (handler *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	log.Debug("Exporting project report")
	projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	key, err := ParseKey(mux.Vars(r)["reportKey"])
	if err != nil {
		rest.WriteError(w, http.StatusNotFound, "Unknown report key.", "")
		return
	}
	window, ok := windowParams(w, r)
	if !ok {
		return
	}
	filter, ok := filterParams(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	file, err := handler.service.Export(r.Context(), key, format, projectID, window, filter)
	if err != nil {
		writeReportError(w, err)
		return
	}
	w.Header().Set("Content-Type", file.MediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Content); err != nil {
		log.Errorf("could not write export body: %v", err)
	}
}

// GetFinanceSummary godoc
// @Summary Monthly financial rollup of a project
// @Tags Report
// @Produce json
// @Success 200 {object} FinanceSummaryDTO
// @Router /api/projects/{projectId}/finance-summary [get]
// @Security XUserId
func (handler *Handler) GetFinanceSummary(w http.ResponseWriter, r *http.Request) {
	log.Debug("Building project finance summary")
	projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	window, ok := windowParams(w, r)
	if !ok {
		return
	}

	summary, err := handler.service.FinanceSummary(r.Context(), projectID, window)
	if err != nil {
		writeReportError(w, err)
		return
	}

	monthDTOs := make([]SummaryMonthDTO, 0, len(summary.Months))
	for _, row := range summary.Months {
		monthDTOs = append(monthDTOs, SummaryMonthDTO{
			MonthStart:            months.Key(row.Month),
			PlannedPersonDays:     money.String(row.PlannedPersonDays),
			ActualPersonDays:      money.String(row.ActualPersonDays),
			PlannedCost:           money.String(row.PlannedCost),
			ActualCost:            money.String(row.ActualCost),
			InvoiceAmount:         money.String(row.InvoiceAmount),
			RevenueAmount:         money.String(row.RevenueAmount),
			CumulativePlannedCost: money.String(row.CumulativePlannedCost),
			CumulativeActualCost:  money.String(row.CumulativeActualCost),
			CumulativeRevenue:     money.String(row.CumulativeRevenue),
		})
	}
	rest.WriteJSON(w, http.StatusOK, FinanceSummaryDTO{
		ProjectID: summary.ProjectID.String(),
		FromMonth: months.Key(summary.FromMonth),
		ToMonth:   months.Key(summary.ToMonth),
		Months:    monthDTOs,
	})
}

// GetProjectDashboard godoc
// @Summary Cost, workload and realization trends of a project
// @Tags Report
// @Produce json
// @Success 200 {object} ProjectDashboardDTO
// @Router /api/projects/{projectId}/dashboard [get]
// @Security XUserId
func (handler *Handler) GetProjectDashboard(w http.ResponseWriter, r *http.Request) {
	log.Debug("Building project dashboard")
	projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return
	}
	window, ok := windowParams(w, r)
	if !ok {
		return
	}

	dashboard, err := handler.service.ProjectDashboard(r.Context(), projectID, window)
	if err != nil {
		writeReportError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ProjectDashboardDTO{
		Scope:            "project",
		ProjectID:        dashboard.ProjectID.String(),
		FromMonth:        months.Key(dashboard.FromMonth),
		ToMonth:          months.Key(dashboard.ToMonth),
		CostTrend:        costTrendToDTO(dashboard.CostTrend),
		WorkloadTrend:    workloadToDTO(dashboard.WorkloadTrend),
		RealizationTrend: realizationToDTO(dashboard.RealizationTrend),
	})
}

// GetBusinessUnitDashboard godoc
// @Summary Aggregated trends across all projects of a business unit
// @Tags Report
// @Produce json
// @Success 200 {object} BusinessUnitDashboardDTO
// @Router /api/businessunit/{businessUnitId}/dashboard [get]
// @Security XUserId
func (handler *Handler) GetBusinessUnitDashboard(w http.ResponseWriter, r *http.Request) {
	log.Debug("Building business unit dashboard")
	businessUnitID, err := uuid.Parse(mux.Vars(r)["businessUnitId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid business unit id", err.Error())
		return
	}
	window, ok := windowParams(w, r)
	if !ok {
		return
	}

	dashboard, err := handler.service.BusinessUnitDashboard(r.Context(), businessUnitID, window)
	if err != nil {
		writeReportError(w, err)
		return
	}

	dto := BusinessUnitDashboardDTO{
		Scope:            "business_unit",
		BusinessUnitID:   dashboard.BusinessUnitID.String(),
		CostTrend:        costTrendToDTO(dashboard.CostTrend),
		WorkloadHeatmap:  workloadToDTO(dashboard.WorkloadHeatmap),
		RealizationTrend: realizationToDTO(dashboard.RealizationTrend),
	}
	if !dashboard.Empty {
		fromMonth := months.Key(dashboard.FromMonth)
		toMonth := months.Key(dashboard.ToMonth)
		dto.FromMonth = &fromMonth
		dto.ToMonth = &toMonth
	}
	rest.WriteJSON(w, http.StatusOK, dto)
}

func writeReportError(w http.ResponseWriter, err error) {
	var unknownTasks UnknownTaskIDsError
	var unknownPerformers UnknownPerformerIDsError
	switch {
	case errors.As(err, &unknownTasks), errors.As(err, &unknownPerformers):
		rest.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "")
	case errors.Is(err, ErrRangeOutsideProject),
		errors.Is(err, ErrRangeInverted),
		errors.Is(err, ErrUnsupportedFormat):
		rest.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "")
	case errors.Is(err, ErrUnknownReportKey):
		rest.WriteError(w, http.StatusNotFound, err.Error(), "")
	default:
		project.WriteServiceError(w, err)
	}
}

func windowParams(w http.ResponseWriter, r *http.Request) (Window, bool) {
	var window Window
	if value := r.URL.Query().Get("fromMonth"); value != "" {
		month, ok := project.MonthParam(w, "fromMonth", value)
		if !ok {
			return Window{}, false
		}
		window.FromMonth = &month
	}
	if value := r.URL.Query().Get("toMonth"); value != "" {
		month, ok := project.MonthParam(w, "toMonth", value)
		if !ok {
			return Window{}, false
		}
		window.ToMonth = &month
	}
	return window, true
}

func filterParams(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	taskIDs, ok := idListParam(w, r, "taskIds")
	if !ok {
		return Filter{}, false
	}
	performerIDs, ok := idListParam(w, r, "performerIds")
	if !ok {
		return Filter{}, false
	}
	return Filter{TaskIDs: taskIDs, PerformerIDs: performerIDs}, true
}

func idListParam(w http.ResponseWriter, r *http.Request, name string) ([]uuid.UUID, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, true
	}
	parts := strings.Split(value, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "invalid "+name, err.Error())
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func reportToDTO(report Report) ReportDTO {
	monthKeys := make([]string, 0, len(report.Months))
	for _, month := range report.Months {
		monthKeys = append(monthKeys, months.Key(month))
	}
	dto := ReportDTO{
		ReportKey: string(report.Key),
		ProjectID: report.ProjectID.String(),
		FromMonth: months.Key(report.FromMonth),
		ToMonth:   months.Key(report.ToMonth),
		Months:    monthKeys,
	}
	for _, row := range report.PerformerRows {
		dto.PerformerRows = append(dto.PerformerRows, PerformerRowDTO{
			PerformerID:   row.PerformerID.String(),
			PerformerName: row.PerformerName,
			Months:        monthCellsToDTO(row.Months),
			Totals:        totalsToDTO(row.Totals),
		})
	}
	for _, row := range report.TaskRows {
		dto.TaskRows = append(dto.TaskRows, TaskRowDTO{
			TaskID:    row.TaskID.String(),
			TaskName:  row.TaskName,
			StageName: row.StageName,
			Months:    monthCellsToDTO(row.Months),
			Totals:    totalsToDTO(row.Totals),
		})
	}
	return dto
}

func monthCellsToDTO(cells []MonthCell) []MonthCellDTO {
	dtos := make([]MonthCellDTO, 0, len(cells))
	for _, cell := range cells {
		dtos = append(dtos, MonthCellDTO{
			MonthStart: months.Key(cell.Month),
			Planned:    money.String(cell.Planned),
			Actual:     money.String(cell.Actual),
			Variance:   money.String(cell.Variance),
		})
	}
	return dtos
}

func totalsToDTO(totals Totals) TotalsDTO {
	return TotalsDTO{
		Planned:  money.String(totals.Planned),
		Actual:   money.String(totals.Actual),
		Variance: money.String(totals.Variance),
	}
}

func costTrendToDTO(points []CostTrendPoint) []CostTrendPointDTO {
	dtos := make([]CostTrendPointDTO, 0, len(points))
	for _, point := range points {
		dtos = append(dtos, CostTrendPointDTO{
			MonthStart:            months.Key(point.Month),
			PlannedCost:           money.String(point.PlannedCost),
			ActualCost:            money.String(point.ActualCost),
			CumulativePlannedCost: money.String(point.CumulativePlannedCost),
			CumulativeActualCost:  money.String(point.CumulativeActualCost),
		})
	}
	return dtos
}

func realizationToDTO(points []RealizationPoint) []RealizationPointDTO {
	dtos := make([]RealizationPointDTO, 0, len(points))
	for _, point := range points {
		dtos = append(dtos, RealizationPointDTO{
			MonthStart:           months.Key(point.Month),
			CumulativeRevenue:    money.String(point.CumulativeRevenue),
			CumulativeActualCost: money.String(point.CumulativeActualCost),
			CumulativeMargin:     money.String(point.CumulativeMargin),
			RealizationPercent:   money.String(point.RealizationPercent),
		})
	}
	return dtos
}

func workloadToDTO(rows []WorkloadRow) []WorkloadRowDTO {
	dtos := make([]WorkloadRowDTO, 0, len(rows))
	for _, row := range rows {
		cells := make([]WorkloadCellDTO, 0, len(row.Months))
		for _, cell := range row.Months {
			cells = append(cells, WorkloadCellDTO{
				MonthStart:        months.Key(cell.Month),
				PlannedPersonDays: money.String(cell.PlannedPersonDays),
				ActualPersonDays:  money.String(cell.ActualPersonDays),
			})
		}
		dtos = append(dtos, WorkloadRowDTO{
			PerformerID:   row.PerformerID.String(),
			PerformerName: row.PerformerName,
			Months:        cells,
		})
	}
	return dtos
}
