package report

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pplan/pplan/pkg/snapshot"
	"github.com/shopspring/decimal"
)

// Key identifies one of the pivoted report shapes.
type Key string

const (
	KeyEffortByPerformer Key = "effort-by-performer"
	KeyEffortByTask      Key = "effort-by-task"
	KeyCostByPerformer   Key = "cost-by-performer"
	KeyCostByTask        Key = "cost-by-task"
)

var (
	ErrRangeOutsideProject = errors.New("requested month range must be within project month range")
	ErrRangeInverted       = errors.New("toMonth must be greater than or equal to fromMonth")
	ErrUnknownReportKey    = errors.New("unknown report key")
	ErrUnsupportedFormat   = errors.New("unsupported export format")
)

// UnknownTaskIDsError lists every filter id that does not belong to the
// project, not just the first one found.
type UnknownTaskIDsError struct {
	IDs []string
}

func (e UnknownTaskIDsError) Error() string {
	return "Unknown task_id values for this project: " + strings.Join(e.IDs, ", ")
}

type UnknownPerformerIDsError struct {
	IDs []string
}

func (e UnknownPerformerIDsError) Error() string {
	return "Unknown performer_id values for this project business unit: " + strings.Join(e.IDs, ", ")
}

// MonthCell is one pivot cell. Variance is actual minus planned.
type MonthCell struct {
	Month    time.Time
	Planned  decimal.Decimal
	Actual   decimal.Decimal
	Variance decimal.Decimal
}

type Totals struct {
	Planned  decimal.Decimal
	Actual   decimal.Decimal
	Variance decimal.Decimal
}

type PerformerRow struct {
	PerformerID   uuid.UUID
	PerformerName string
	Months        []MonthCell
	Totals        Totals
}

type TaskRow struct {
	TaskID    uuid.UUID
	TaskName  string
	StageName string
	Months    []MonthCell
	Totals    Totals
}

// Report is a pivot of effort or cost figures over a month window. Exactly
// one of PerformerRows and TaskRows is populated, matching the Key.
type Report struct {
	Key           Key
	ProjectID     uuid.UUID
	FromMonth     time.Time
	ToMonth       time.Time
	Months        []time.Time
	PerformerRows []PerformerRow
	TaskRows      []TaskRow
}

// FinanceSummary carries the windowed rollup rows of a project. The
// cumulative chain restarts at FromMonth.
type FinanceSummary struct {
	ProjectID uuid.UUID
	FromMonth time.Time
	ToMonth   time.Time
	Months    []snapshot.Snapshot
}

type CostTrendPoint struct {
	Month                 time.Time
	PlannedCost           decimal.Decimal
	ActualCost            decimal.Decimal
	CumulativePlannedCost decimal.Decimal
	CumulativeActualCost  decimal.Decimal
}

type RealizationPoint struct {
	Month                time.Time
	CumulativeRevenue    decimal.Decimal
	CumulativeActualCost decimal.Decimal
	CumulativeMargin     decimal.Decimal
	RealizationPercent   decimal.Decimal
}

type WorkloadCell struct {
	Month             time.Time
	PlannedPersonDays decimal.Decimal
	ActualPersonDays  decimal.Decimal
}

type WorkloadRow struct {
	PerformerID   uuid.UUID
	PerformerName string
	Months        []WorkloadCell
}

type ProjectDashboard struct {
	ProjectID        uuid.UUID
	FromMonth        time.Time
	ToMonth          time.Time
	CostTrend        []CostTrendPoint
	WorkloadTrend    []WorkloadRow
	RealizationTrend []RealizationPoint
}

// BusinessUnitDashboard aggregates snapshots across every project of a
// business unit. Empty is set when the unit has no projects at all, in
// which case the month window is undefined.
type BusinessUnitDashboard struct {
	BusinessUnitID   uuid.UUID
	Empty            bool
	FromMonth        time.Time
	ToMonth          time.Time
	CostTrend        []CostTrendPoint
	WorkloadHeatmap  []WorkloadRow
	RealizationTrend []RealizationPoint
}

// ExportFile is a rendered report download.
type ExportFile struct {
	MediaType string
	Filename  string
	Content   []byte
}

// Renderer turns a pivoted report into a downloadable document.
type Renderer interface {
	RenderReport(report Report) (string, error)
}

// ParseKey maps a request path segment to a report key.
func ParseKey(s string) (Key, error) {
	switch Key(strings.ToLower(strings.TrimSpace(s))) {
	case KeyEffortByPerformer:
		return KeyEffortByPerformer, nil
	case KeyEffortByTask:
		return KeyEffortByTask, nil
	case KeyCostByPerformer:
		return KeyCostByPerformer, nil
	case KeyCostByTask:
		return KeyCostByTask, nil
	default:
		return "", ErrUnknownReportKey
	}
}
