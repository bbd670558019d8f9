package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is carried as a plain code. Amounts are never converted
// between currencies.
type Currency string

const (
	CurrencyPLN Currency = "PLN"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

// Invoice is a billed amount booked against one project month.
type Invoice struct {
	ID            uuid.UUID
	ProjectID     uuid.UUID
	InvoiceNo     string
	InvoiceDate   time.Time
	Month         time.Time
	Amount        decimal.Decimal
	Currency      Currency
	PaymentStatus string
	PaymentDate   *time.Time
}

// Revenue is a recognized amount booked against one project month.
type Revenue struct {
	ID              uuid.UUID
	ProjectID       uuid.UUID
	RevenueNo       string
	RecognitionDate time.Time
	Month           time.Time
	Amount          decimal.Decimal
	Currency        Currency
}

// FinancialRequest is an internal spending request. It feeds no snapshot
// column but its registration still refreshes the project snapshots.
type FinancialRequest struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	RequestNo   string
	RequestDate time.Time
	Month       time.Time
	Amount      decimal.Decimal
	Currency    Currency
	Status      string
}
