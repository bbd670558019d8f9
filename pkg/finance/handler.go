package finance

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

const dateLayout = "2006-01-02"

type InvoiceDTO struct {
	ID            string  `json:"id"`
	ProjectID     string  `json:"projectId"`
	InvoiceNo     string  `json:"invoiceNo"`
	InvoiceDate   string  `json:"invoiceDate"`
	MonthStart    string  `json:"monthStart"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	PaymentStatus string  `json:"paymentStatus"`
	PaymentDate   *string `json:"paymentDate"`
}

type RevenueDTO struct {
	ID              string `json:"id"`
	ProjectID       string `json:"projectId"`
	RevenueNo       string `json:"revenueNo"`
	RecognitionDate string `json:"recognitionDate"`
	MonthStart      string `json:"monthStart"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
}

type FinancialRequestDTO struct {
	ID          string `json:"id"`
	ProjectID   string `json:"projectId"`
	RequestNo   string `json:"requestNo"`
	RequestDate string `json:"requestDate"`
	MonthStart  string `json:"monthStart"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

func InvoiceToDTO(invoice Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID:            invoice.ID.String(),
		ProjectID:     invoice.ProjectID.String(),
		InvoiceNo:     invoice.InvoiceNo,
		InvoiceDate:   invoice.InvoiceDate.Format(dateLayout),
		MonthStart:    months.Key(invoice.Month),
		Amount:        money.String(invoice.Amount),
		Currency:      string(invoice.Currency),
		PaymentStatus: invoice.PaymentStatus,
	}
	if invoice.PaymentDate != nil {
		paymentDate := invoice.PaymentDate.Format(dateLayout)
		dto.PaymentDate = &paymentDate
	}
	return dto
}

func RevenueToDTO(revenue Revenue) RevenueDTO {
	return RevenueDTO{
		ID:              revenue.ID.String(),
		ProjectID:       revenue.ProjectID.String(),
		RevenueNo:       revenue.RevenueNo,
		RecognitionDate: revenue.RecognitionDate.Format(dateLayout),
		MonthStart:      months.Key(revenue.Month),
		Amount:          money.String(revenue.Amount),
		Currency:        string(revenue.Currency),
	}
}

func RequestToDTO(request FinancialRequest) FinancialRequestDTO {
	return FinancialRequestDTO{
		ID:          request.ID.String(),
		ProjectID:   request.ProjectID.String(),
		RequestNo:   request.RequestNo,
		RequestDate: request.RequestDate.Format(dateLayout),
		MonthStart:  months.Key(request.Month),
		Amount:      money.String(request.Amount),
		Currency:    string(request.Currency),
		Status:      request.Status,
	}
}

type invoiceCreateDTO struct {
	InvoiceNo     string  `json:"invoiceNo"`
	InvoiceDate   string  `json:"invoiceDate"`
	MonthStart    string  `json:"monthStart"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	PaymentStatus string  `json:"paymentStatus"`
	PaymentDate   *string `json:"paymentDate"`
}

type revenueCreateDTO struct {
	RevenueNo       string `json:"revenueNo"`
	RecognitionDate string `json:"recognitionDate"`
	MonthStart      string `json:"monthStart"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
}

type requestCreateDTO struct {
	RequestNo   string `json:"requestNo"`
	RequestDate string `json:"requestDate"`
	MonthStart  string `json:"monthStart"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

type Handler struct {
	service Service
}

func NewFinanceHandler(service Service) *Handler {
	return &Handler{service}
}

func writeFinanceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNegativeAmount), errors.Is(err, ErrMonthOutsideRange):
		rest.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "")
	default:
		project.WriteServiceError(w, err)
	}
}

func projectIDVar(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid project id", err.Error())
		return uuid.Nil, false
	}
	return projectID, true
}

func dateParam(w http.ResponseWriter, name, value string) (time.Time, bool) {
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid "+name, err.Error())
		return time.Time{}, false
	}
	return parsed, true
}

func amountParam(w http.ResponseWriter, value string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return decimal.Decimal{}, false
	}
	return amount, true
}

// ListInvoices godoc
// @Summary List invoices of a project
// @Tags Finance
// @Produce json
// @Success 200 {array} InvoiceDTO
// @Router /api/projects/{projectId}/invoices [get]
// @Security XUserId
func (handler *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDVar(w, r)
	if !ok {
		return
	}
	invoices, err := handler.service.ListInvoices(r.Context(), projectID)
	if err != nil {
		writeFinanceError(w, err)
		return
	}
	dtos := make([]InvoiceDTO, 0, len(invoices))
	for _, invoice := range invoices {
		dtos = append(dtos, InvoiceToDTO(invoice))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// CreateInvoice godoc
// @Summary Register an invoice against a project month
// @Tags Finance
// @Accept json
// @Produce json
// @Success 201 {object} InvoiceDTO
// @Router /api/projects/{projectId}/invoices [post]
// @Security XUserId
func (handler *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new invoice")
	projectID, ok := projectIDVar(w, r)
	if !ok {
		return
	}
	var dto invoiceCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	invoiceDate, ok := dateParam(w, "invoiceDate", dto.InvoiceDate)
	if !ok {
		return
	}
	month, ok := project.MonthParam(w, "monthStart", dto.MonthStart)
	if !ok {
		return
	}
	amount, ok := amountParam(w, dto.Amount)
	if !ok {
		return
	}
	data := InvoiceCreate{
		InvoiceNo:     dto.InvoiceNo,
		InvoiceDate:   invoiceDate,
		Month:         month,
		Amount:        amount,
		Currency:      Currency(dto.Currency),
		PaymentStatus: dto.PaymentStatus,
	}
	if dto.PaymentDate != nil {
		paymentDate, ok := dateParam(w, "paymentDate", *dto.PaymentDate)
		if !ok {
			return
		}
		data.PaymentDate = &paymentDate
	}

	created, err := handler.service.CreateInvoice(r.Context(), projectID, data)
	if err != nil {
		writeFinanceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, InvoiceToDTO(created))
}

// ListRevenues godoc
// @Summary List revenues of a project
// @Tags Finance
// @Produce json
// @Success 200 {array} RevenueDTO
// @Router /api/projects/{projectId}/revenues [get]
// @Security XUserId
func (handler *Handler) ListRevenues(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDVar(w, r)
	if !ok {
		return
	}
	revenues, err := handler.service.ListRevenues(r.Context(), projectID)
	if err != nil {
		writeFinanceError(w, err)
		return
	}
	dtos := make([]RevenueDTO, 0, len(revenues))
	for _, revenue := range revenues {
		dtos = append(dtos, RevenueToDTO(revenue))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// CreateRevenue godoc
// @Summary Register a revenue against a project month
// @Tags Finance
// @Accept json
// @Produce json
// @Success 201 {object} RevenueDTO
// @Router /api/projects/{projectId}/revenues [post]
// @Security XUserId
func (handler *Handler) CreateRevenue(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new revenue")
	projectID, ok := projectIDVar(w, r)
	if !ok {
		return
	}
	var dto revenueCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	recognitionDate, ok := dateParam(w, "recognitionDate", dto.RecognitionDate)
	if !ok {
		return
	}
	month, ok := project.MonthParam(w, "monthStart", dto.MonthStart)
	if !ok {
		return
	}
	amount, ok := amountParam(w, dto.Amount)
	if !ok {
		return
	}

	created, err := handler.service.CreateRevenue(r.Context(), projectID, RevenueCreate{
		RevenueNo:       dto.RevenueNo,
		RecognitionDate: recognitionDate,
		Month:           month,
		Amount:          amount,
		Currency:        Currency(dto.Currency),
	})
	if err != nil {
		writeFinanceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, RevenueToDTO(created))
}

// ListFinancialRequests godoc
// @Summary List financial requests of a project
// @Tags Finance
// @Produce json
// @Success 200 {array} FinancialRequestDTO
// @Router /api/projects/{projectId}/financial-requests [get]
// @Security XUserId
func (handler *Handler) ListFinancialRequests(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDVar(w, r)
	if !ok {
		return
	}
	requests, err := handler.service.ListRequests(r.Context(), projectID)
	if err != nil {
		writeFinanceError(w, err)
		return
	}
	dtos := make([]FinancialRequestDTO, 0, len(requests))
	for _, request := range requests {
		dtos = append(dtos, RequestToDTO(request))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// CreateFinancialRequest godoc
// @Summary Register a financial request against a project month
// @Tags Finance
// @Accept json
// @Produce json
// @Success 201 {object} FinancialRequestDTO
// @Router /api/projects/{projectId}/financial-requests [post]
// @Security XUserId
func (handler *Handler) CreateFinancialRequest(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new financial request")
	projectID, ok := projectIDVar(w, r)
	if !ok {
		return
	}
	var dto requestCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	requestDate, ok := dateParam(w, "requestDate", dto.RequestDate)
	if !ok {
		return
	}
	month, ok := project.MonthParam(w, "monthStart", dto.MonthStart)
	if !ok {
		return
	}
	amount, ok := amountParam(w, dto.Amount)
	if !ok {
		return
	}

	created, err := handler.service.CreateRequest(r.Context(), projectID, RequestCreate{
		RequestNo:   dto.RequestNo,
		RequestDate: requestDate,
		Month:       month,
		Amount:      amount,
		Currency:    Currency(dto.Currency),
		Status:      dto.Status,
	})
	if err != nil {
		writeFinanceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, RequestToDTO(created))
}
