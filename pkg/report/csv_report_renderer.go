package report

import (
	"bytes"
	"encoding/csv"

	"github.com/pplan/pplan/pkg/money"
	"github.com/pplan/pplan/pkg/months"
	log "github.com/sirupsen/logrus"
)

type CsvReportRendererImpl struct {
}

func NewCsvReportRenderer() *CsvReportRendererImpl {
	return &CsvReportRendererImpl{}
}

// RenderReport flattens the pivot into one record per row and month, with
// a trailing totals record per row.
func (t *CsvReportRendererImpl) RenderReport(report Report) (string, error) {
	plannedHeader, actualHeader := "planned", "actual"
	if report.Key == KeyCostByPerformer || report.Key == KeyCostByTask {
		plannedHeader, actualHeader = "planned_cost", "actual_cost"
	}

	data := make([][]string, 0, 1+len(report.PerformerRows)+len(report.TaskRows))
	if len(report.TaskRows) > 0 {
		data = append(data, []string{"task_id", "task_name", "stage_name", "month_start", plannedHeader, actualHeader, "variance"})
		for _, row := range report.TaskRows {
			base := []string{row.TaskID.String(), row.TaskName, row.StageName}
			data = append(data, cellRecords(base, row.Months, row.Totals)...)
		}
	} else {
		data = append(data, []string{"performer_id", "performer_name", "month_start", plannedHeader, actualHeader, "variance"})
		for _, row := range report.PerformerRows {
			base := []string{row.PerformerID.String(), row.PerformerName}
			data = append(data, cellRecords(base, row.Months, row.Totals)...)
		}
	}

	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	for _, record := range data {
		err := writer.Write(record)
		if err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}

	return b.String(), nil
}

func cellRecords(base []string, cells []MonthCell, totals Totals) [][]string {
	records := make([][]string, 0, len(cells)+1)
	for _, cell := range cells {
		record := append(append([]string{}, base...),
			months.Key(cell.Month),
			money.String(cell.Planned),
			money.String(cell.Actual),
			money.String(cell.Variance),
		)
		records = append(records, record)
	}
	totalsRecord := append(append([]string{}, base...),
		"TOTAL",
		money.String(totals.Planned),
		money.String(totals.Actual),
		money.String(totals.Variance),
	)
	return append(records, totalsRecord)
}
