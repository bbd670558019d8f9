package finance

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
	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	"github.com/pplan/pplan/pkg/project"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNegativeAmount    = errors.New("amount must be greater or equal zero")
	ErrMonthOutsideRange = errors.New("financial register month_start must be within project month range")
)

// SnapshotSynchronizer rebuilds the project snapshots inside the register
// write transaction.
type SnapshotSynchronizer interface {
	RefreshTx(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) error
}

type InvoiceCreate struct {
	InvoiceNo     string
	InvoiceDate   time.Time
	Month         time.Time
	Amount        decimal.Decimal
	Currency      Currency
	PaymentStatus string
	PaymentDate   *time.Time
}

type RevenueCreate struct {
	RevenueNo       string
	RecognitionDate time.Time
	Month           time.Time
	Amount          decimal.Decimal
	Currency        Currency
}

type RequestCreate struct {
	RequestNo   string
	RequestDate time.Time
	Month       time.Time
	Amount      decimal.Decimal
	Currency    Currency
	Status      string
}

type Service interface {
	ListInvoices(ctx context.Context, projectID uuid.UUID) ([]Invoice, error)
	CreateInvoice(ctx context.Context, projectID uuid.UUID, data InvoiceCreate) (Invoice, error)
	ListRevenues(ctx context.Context, projectID uuid.UUID) ([]Revenue, error)
	CreateRevenue(ctx context.Context, projectID uuid.UUID, data RevenueCreate) (Revenue, error)
	ListRequests(ctx context.Context, projectID uuid.UUID) ([]FinancialRequest, error)
	CreateRequest(ctx context.Context, projectID uuid.UUID, data RequestCreate) (FinancialRequest, error)
}

type ServiceImpl struct {
	pool      *pgxpool.Pool
	repo      Repository
	guard     *project.Guard
	snapshots SnapshotSynchronizer
	bus       *event_bus.EventBus
}

func NewService(
	pool *pgxpool.Pool,
	repo Repository,
	projects project.Repository,
	snapshots SnapshotSynchronizer,
	bus *event_bus.EventBus,
) *ServiceImpl {
	return &ServiceImpl{
		pool:      pool,
		repo:      repo,
		guard:     project.NewGuard(projects),
		snapshots: snapshots,
		bus:       bus,
	}
}

// registerMonth normalizes and checks a register month against the
// project range.
func registerMonth(proj project.Project, month time.Time, amount decimal.Decimal) (time.Time, error) {
	normalized, err := months.Normalize(month)
	if err != nil {
		return time.Time{}, err
	}
	if amount.LessThan(money.Zero) {
		return time.Time{}, ErrNegativeAmount
	}
	if !months.Within(normalized, proj.StartMonth, proj.EndMonth) {
		return time.Time{}, ErrMonthOutsideRange
	}
	return normalized, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func currencyOrDefault(c Currency) Currency {
	if c == "" {
		return CurrencyPLN
	}
	return c
}

func (s *ServiceImpl) ListInvoices(ctx context.Context, projectID uuid.UUID) ([]Invoice, error) {
	proj, err := s.guard.View(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInvoices(ctx, proj.ID)
}

func (s *ServiceImpl) CreateInvoice(ctx context.Context, projectID uuid.UUID, data InvoiceCreate) (Invoice, error) {
	proj, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return Invoice{}, err
	}
	month, err := registerMonth(proj, data.Month, data.Amount)
	if err != nil {
		return Invoice{}, err
	}

	var created Invoice
	err = database.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		var txErr error
		created, txErr = repo.StoreInvoice(ctx, Invoice{
			ProjectID:     proj.ID,
			InvoiceNo:     strings.TrimSpace(data.InvoiceNo),
			InvoiceDate:   data.InvoiceDate,
			Month:         month,
			Amount:        data.Amount,
			Currency:      currencyOrDefault(data.Currency),
			PaymentStatus: orDefault(data.PaymentStatus, "unpaid"),
			PaymentDate:   data.PaymentDate,
		})
		if txErr != nil {
			return txErr
		}
		return s.snapshots.RefreshTx(ctx, tx, proj.ID)
	})
	if err != nil {
		return Invoice{}, err
	}

	s.audit(ctx, proj, "invoice", created.ID, created.Month, created.Amount)
	return created, nil
}

func (s *ServiceImpl) ListRevenues(ctx context.Context, projectID uuid.UUID) ([]Revenue, error) {
	proj, err := s.guard.View(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListRevenues(ctx, proj.ID)
}

func (s *ServiceImpl) CreateRevenue(ctx context.Context, projectID uuid.UUID, data RevenueCreate) (Revenue, error) {
	proj, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return Revenue{}, err
	}
	month, err := registerMonth(proj, data.Month, data.Amount)
	if err != nil {
		return Revenue{}, err
	}

	var created Revenue
	err = database.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		var txErr error
		created, txErr = repo.StoreRevenue(ctx, Revenue{
			ProjectID:       proj.ID,
			RevenueNo:       strings.TrimSpace(data.RevenueNo),
			RecognitionDate: data.RecognitionDate,
			Month:           month,
			Amount:          data.Amount,
			Currency:        currencyOrDefault(data.Currency),
		})
		if txErr != nil {
			return txErr
		}
		return s.snapshots.RefreshTx(ctx, tx, proj.ID)
	})
	if err != nil {
		return Revenue{}, err
	}

	s.audit(ctx, proj, "revenue", created.ID, created.Month, created.Amount)
	return created, nil
}

func (s *ServiceImpl) ListRequests(ctx context.Context, projectID uuid.UUID) ([]FinancialRequest, error) {
	proj, err := s.guard.View(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListRequests(ctx, proj.ID)
}

func (s *ServiceImpl) CreateRequest(ctx context.Context, projectID uuid.UUID, data RequestCreate) (FinancialRequest, error) {
	proj, err := s.guard.Edit(ctx, projectID)
	if err != nil {
		return FinancialRequest{}, err
	}
	month, err := registerMonth(proj, data.Month, data.Amount)
	if err != nil {
		return FinancialRequest{}, err
	}

	var created FinancialRequest
	err = database.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		var txErr error
		created, txErr = repo.StoreRequest(ctx, FinancialRequest{
			ProjectID:   proj.ID,
			RequestNo:   strings.TrimSpace(data.RequestNo),
			RequestDate: data.RequestDate,
			Month:       month,
			Amount:      data.Amount,
			Currency:    currencyOrDefault(data.Currency),
			Status:      orDefault(data.Status, "draft"),
		})
		if txErr != nil {
			return txErr
		}
		return s.snapshots.RefreshTx(ctx, tx, proj.ID)
	})
	if err != nil {
		return FinancialRequest{}, err
	}

	s.audit(ctx, proj, "financial_request", created.ID, created.Month, created.Amount)
	return created, nil
}

func (s *ServiceImpl) audit(ctx context.Context, proj project.Project, entity string, id uuid.UUID, month time.Time, amount decimal.Decimal) {
	if s.bus == nil {
		return
	}
	payload := event_bus.EntityMutated{
		BusinessUnitID: proj.BusinessUnitID,
		EntityName:     entity,
		EntityID:       id.String(),
		ActionType:     "create",
		After: map[string]any{
			"project_id":  proj.ID.String(),
			"month_start": months.Key(month),
			"amount":      money.String(amount),
		},
		OccurredAt: time.Now().UTC(),
	}
	if err := s.bus.Publish(event_bus.NewEvent(ctx, event_bus.EntityMutatedEvent, payload)); err != nil {
		log.Warnf("failed to publish %s audit event for %s: %v", entity, id, err)
	}
}
