package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pplan/pplan/internal/database"
	"github.com/pplan/pplan/pkg/months"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	WithTx(tx pgx.Tx) Repository

	ListInvoices(ctx context.Context, projectID uuid.UUID) ([]Invoice, error)
	StoreInvoice(ctx context.Context, invoice Invoice) (Invoice, error)
	ListRevenues(ctx context.Context, projectID uuid.UUID) ([]Revenue, error)
	StoreRevenue(ctx context.Context, revenue Revenue) (Revenue, error)
	ListRequests(ctx context.Context, projectID uuid.UUID) ([]FinancialRequest, error)
	StoreRequest(ctx context.Context, request FinancialRequest) (FinancialRequest, error)

	// InvoiceTotalsByMonth and RevenueTotalsByMonth return per-month sums
	// keyed by the YYYY-MM-01 month key.
	InvoiceTotalsByMonth(ctx context.Context, projectID uuid.UUID) (map[string]decimal.Decimal, error)
	RevenueTotalsByMonth(ctx context.Context, projectID uuid.UUID) (map[string]decimal.Decimal, error)
}

type RepositoryImpl struct {
	db database.Querier
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) WithTx(tx pgx.Tx) Repository {
	return &RepositoryImpl{db: tx}
}

func (r *RepositoryImpl) ListInvoices(ctx context.Context, projectID uuid.UUID) ([]Invoice, error) {
	query := `SELECT id, project_id, invoice_no, invoice_date, month_start, amount, currency, payment_status, payment_date
			  FROM invoices WHERE project_id = $1 ORDER BY month_start, invoice_no`
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		log.Errorf("could not query invoices for project %s: %v", projectID, err)
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var invoice Invoice
		err := rows.Scan(
			&invoice.ID, &invoice.ProjectID, &invoice.InvoiceNo, &invoice.InvoiceDate, &invoice.Month,
			&invoice.Amount, &invoice.Currency, &invoice.PaymentStatus, &invoice.PaymentDate,
		)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func (r *RepositoryImpl) StoreInvoice(ctx context.Context, invoice Invoice) (Invoice, error) {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	query := `INSERT INTO invoices (id, project_id, invoice_no, invoice_date, month_start, amount, currency, payment_status, payment_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, query,
		invoice.ID, invoice.ProjectID, invoice.InvoiceNo, invoice.InvoiceDate, invoice.Month,
		invoice.Amount, invoice.Currency, invoice.PaymentStatus, invoice.PaymentDate,
	)
	if err != nil {
		log.Errorf("could not store invoice: %v", err)
		return Invoice{}, err
	}
	return invoice, nil
}

func (r *RepositoryImpl) ListRevenues(ctx context.Context, projectID uuid.UUID) ([]Revenue, error) {
	query := `SELECT id, project_id, revenue_no, recognition_date, month_start, amount, currency
			  FROM revenues WHERE project_id = $1 ORDER BY month_start, revenue_no`
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		log.Errorf("could not query revenues for project %s: %v", projectID, err)
		return nil, err
	}
	defer rows.Close()

	var revenues []Revenue
	for rows.Next() {
		var revenue Revenue
		err := rows.Scan(
			&revenue.ID, &revenue.ProjectID, &revenue.RevenueNo, &revenue.RecognitionDate,
			&revenue.Month, &revenue.Amount, &revenue.Currency,
		)
		if err != nil {
			return nil, err
		}
		revenues = append(revenues, revenue)
	}
	return revenues, rows.Err()
}

func (r *RepositoryImpl) StoreRevenue(ctx context.Context, revenue Revenue) (Revenue, error) {
	if revenue.ID == uuid.Nil {
		revenue.ID = uuid.New()
	}
	query := `INSERT INTO revenues (id, project_id, revenue_no, recognition_date, month_start, amount, currency)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		revenue.ID, revenue.ProjectID, revenue.RevenueNo, revenue.RecognitionDate,
		revenue.Month, revenue.Amount, revenue.Currency,
	)
	if err != nil {
		log.Errorf("could not store revenue: %v", err)
		return Revenue{}, err
	}
	return revenue, nil
}

func (r *RepositoryImpl) ListRequests(ctx context.Context, projectID uuid.UUID) ([]FinancialRequest, error) {
	query := `SELECT id, project_id, request_no, request_date, month_start, amount, currency, status
			  FROM financial_requests WHERE project_id = $1 ORDER BY month_start, request_no`
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		log.Errorf("could not query financial requests for project %s: %v", projectID, err)
		return nil, err
	}
	defer rows.Close()

	var requests []FinancialRequest
	for rows.Next() {
		var request FinancialRequest
		err := rows.Scan(
			&request.ID, &request.ProjectID, &request.RequestNo, &request.RequestDate,
			&request.Month, &request.Amount, &request.Currency, &request.Status,
		)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

func (r *RepositoryImpl) StoreRequest(ctx context.Context, request FinancialRequest) (FinancialRequest, error) {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	query := `INSERT INTO financial_requests (id, project_id, request_no, request_date, month_start, amount, currency, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query,
		request.ID, request.ProjectID, request.RequestNo, request.RequestDate,
		request.Month, request.Amount, request.Currency, request.Status,
	)
	if err != nil {
		log.Errorf("could not store financial request: %v", err)
		return FinancialRequest{}, err
	}
	return request, nil
}

func (r *RepositoryImpl) totalsByMonth(ctx context.Context, table string, projectID uuid.UUID) (map[string]decimal.Decimal, error) {
	query := `SELECT month_start, COALESCE(SUM(amount), 0)
			  FROM ` + table + `
			  WHERE project_id = $1
			  GROUP BY month_start`
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		log.Errorf("could not aggregate %s for project %s: %v", table, projectID, err)
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var month time.Time
		var sum decimal.Decimal
		if err := rows.Scan(&month, &sum); err != nil {
			return nil, err
		}
		totals[months.Key(month)] = sum
	}
	return totals, rows.Err()
}

func (r *RepositoryImpl) InvoiceTotalsByMonth(ctx context.Context, projectID uuid.UUID) (map[string]decimal.Decimal, error) {
	return r.totalsByMonth(ctx, "invoices", projectID)
}

func (r *RepositoryImpl) RevenueTotalsByMonth(ctx context.Context, projectID uuid.UUID) (map[string]decimal.Decimal, error) {
	return r.totalsByMonth(ctx, "revenues", projectID)
}
