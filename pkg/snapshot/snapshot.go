package snapshot

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is the derived monthly aggregate of one project month. Rows
// exist for every month of the project range, zero-filled where nothing
// happened, and are fully recomputed on every refresh.
type Snapshot struct {
	ID                    uuid.UUID
	ProjectID             uuid.UUID
	Month                 time.Time
	PlannedPersonDays     decimal.Decimal
	ActualPersonDays      decimal.Decimal
	PlannedCost           decimal.Decimal
	ActualCost            decimal.Decimal
	RevenueAmount         decimal.Decimal
	InvoiceAmount         decimal.Decimal
	CumulativePlannedCost decimal.Decimal
	CumulativeActualCost  decimal.Decimal
	CumulativeRevenue     decimal.Decimal
}
