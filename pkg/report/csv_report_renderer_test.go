package report

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCsvReportRendererImpl_RenderReport(t *testing.T) {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	performerID := uuid.MustParse("9b8e7d6c-5b4a-3f2e-1d0c-b9a8f7e6d5c4")
	taskID := uuid.MustParse("0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9")

	t.Run("renders performer rows with a trailing totals record", func(t *testing.T) {
		report := Report{
			Key: KeyEffortByPerformer,
			PerformerRows: []PerformerRow{
				{
					PerformerID:   performerID,
					PerformerName: "Alice",
					Months: []MonthCell{
						{Month: jan, Planned: decimal.RequireFromString("2.00"), Actual: decimal.RequireFromString("2.50"), Variance: decimal.RequireFromString("0.50")},
						{Month: feb, Planned: decimal.RequireFromString("4.00"), Actual: decimal.RequireFromString("0.00"), Variance: decimal.RequireFromString("-4.00")},
					},
					Totals: Totals{
						Planned:  decimal.RequireFromString("6.00"),
						Actual:   decimal.RequireFromString("2.50"),
						Variance: decimal.RequireFromString("-3.50"),
					},
				},
			},
		}

		got, err := NewCsvReportRenderer().RenderReport(report)

		require.NoError(t, err)
		want := "performer_id,performer_name,month_start,planned,actual,variance\n" +
			performerID.String() + ",Alice,2025-01-01,2.00,2.50,0.50\n" +
			performerID.String() + ",Alice,2025-02-01,4.00,0.00,-4.00\n" +
			performerID.String() + ",Alice,TOTAL,6.00,2.50,-3.50\n"
		assert.Equal(t, want, got)
	})

	t.Run("cost reports use cost column headers and task rows carry the stage", func(t *testing.T) {
		report := Report{
			Key: KeyCostByTask,
			TaskRows: []TaskRow{
				{
					TaskID:   taskID,
					TaskName: "API",
					StageName: "Build",
					Months: []MonthCell{
						{Month: jan, Planned: decimal.RequireFromString("800.00"), Actual: decimal.RequireFromString("400.00"), Variance: decimal.RequireFromString("-400.00")},
					},
					Totals: Totals{
						Planned:  decimal.RequireFromString("800.00"),
						Actual:   decimal.RequireFromString("400.00"),
						Variance: decimal.RequireFromString("-400.00"),
					},
				},
			},
		}

		got, err := NewCsvReportRenderer().RenderReport(report)

		require.NoError(t, err)
		want := "task_id,task_name,stage_name,month_start,planned_cost,actual_cost,variance\n" +
			taskID.String() + ",API,Build,2025-01-01,800.00,400.00,-400.00\n" +
			taskID.String() + ",API,Build,TOTAL,800.00,400.00,-400.00\n"
		assert.Equal(t, want, got)
	})

	t.Run("report without rows renders only the header", func(t *testing.T) {
		got, err := NewCsvReportRenderer().RenderReport(Report{Key: KeyEffortByPerformer})

		require.NoError(t, err)
		assert.Equal(t, "performer_id,performer_name,month_start,planned,actual,variance\n", got)
	})
}
