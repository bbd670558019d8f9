package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pplan/pplan/internal/config"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Health
	r.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Business units
	r.HandleFunc("/api/businessunit", deps.BusinessUnitHandler.ListBusinessUnits).Methods("GET")
	r.HandleFunc("/api/businessunit", deps.BusinessUnitHandler.CreateBusinessUnit).Methods("POST")
	r.HandleFunc("/api/businessunit/{businessUnitId}", deps.BusinessUnitHandler.GetBusinessUnit).Methods("GET")
	r.HandleFunc("/api/businessunit/{businessUnitId}", deps.BusinessUnitHandler.UpdateBusinessUnit).Methods("PATCH")

	// Projects
	r.HandleFunc("/api/businessunit/{businessUnitId}/projects", deps.ProjectHandler.ListProjects).Methods("GET")
	r.HandleFunc("/api/businessunit/{businessUnitId}/projects", deps.ProjectHandler.CreateProject).Methods("POST")
	r.HandleFunc("/api/projects/{projectId}", deps.ProjectHandler.GetProject).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}", deps.ProjectHandler.UpdateProject).Methods("PUT")
	r.HandleFunc("/api/projects/{projectId}", deps.ProjectHandler.DeleteProject).Methods("DELETE")

	// Stages
	r.HandleFunc("/api/projects/{projectId}/stages", deps.ProjectHandler.ListStages).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/stages", deps.ProjectHandler.CreateStage).Methods("POST")
	r.HandleFunc("/api/projects/{projectId}/stages/{stageId}", deps.ProjectHandler.UpdateStage).Methods("PUT")
	r.HandleFunc("/api/projects/{projectId}/stages/{stageId}", deps.ProjectHandler.DeleteStage).Methods("DELETE")

	// Tasks
	r.HandleFunc("/api/projects/{projectId}/tasks", deps.ProjectHandler.ListTasks).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/tasks", deps.ProjectHandler.CreateTask).Methods("POST")
	r.HandleFunc("/api/projects/{projectId}/tasks/{taskId}", deps.ProjectHandler.UpdateTask).Methods("PUT")
	r.HandleFunc("/api/projects/{projectId}/tasks/{taskId}", deps.ProjectHandler.DeleteTask).Methods("DELETE")

	// Performers
	r.HandleFunc("/api/businessunit/{businessUnitId}/performers", deps.ProjectHandler.ListPerformers).Methods("GET")
	r.HandleFunc("/api/businessunit/{businessUnitId}/performers", deps.ProjectHandler.CreatePerformer).Methods("POST")
	r.HandleFunc("/api/performers/{performerId}", deps.ProjectHandler.UpdatePerformer).Methods("PUT")
	r.HandleFunc("/api/performers/{performerId}", deps.ProjectHandler.DeletePerformer).Methods("DELETE")

	// Task-performer assignments
	r.HandleFunc("/api/projects/{projectId}/assignments", deps.ProjectHandler.ListAssignments).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/assignments", deps.ProjectHandler.CreateAssignment).Methods("POST")
	r.HandleFunc("/api/projects/{projectId}/assignments/{taskId}/{performerId}", deps.ProjectHandler.DeleteAssignment).Methods("DELETE")

	// Planning matrix
	r.HandleFunc("/api/projects/{projectId}/matrix", deps.MatrixHandler.ReadMatrix).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/matrix/entries", deps.MatrixHandler.BulkUpsertEntries).Methods("PUT")

	// Rates
	r.HandleFunc("/api/projects/{projectId}/rates", deps.RateHandler.ListRates).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/rates", deps.RateHandler.BulkUpsertRates).Methods("PUT")

	// Financial registers
	r.HandleFunc("/api/projects/{projectId}/invoices", deps.FinanceHandler.ListInvoices).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/invoices", deps.FinanceHandler.CreateInvoice).Methods("POST")
	r.HandleFunc("/api/projects/{projectId}/revenues", deps.FinanceHandler.ListRevenues).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/revenues", deps.FinanceHandler.CreateRevenue).Methods("POST")
	r.HandleFunc("/api/projects/{projectId}/financial-requests", deps.FinanceHandler.ListFinancialRequests).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/financial-requests", deps.FinanceHandler.CreateFinancialRequest).Methods("POST")

	// Reports and dashboards
	r.HandleFunc("/api/projects/{projectId}/finance-summary", deps.ReportHandler.GetFinanceSummary).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/reports/{reportKey}", deps.ReportHandler.GetReport).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/reports/{reportKey}/export", deps.ReportHandler.ExportReport).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/dashboard", deps.ReportHandler.GetProjectDashboard).Methods("GET")
	r.HandleFunc("/api/businessunit/{businessUnitId}/dashboard", deps.ReportHandler.GetBusinessUnitDashboard).Methods("GET")

	// Audit trail
	r.HandleFunc("/api/businessunit/{businessUnitId}/audit-events", deps.AuditHandler.ListEvents).Methods("GET")
}
