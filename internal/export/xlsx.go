// Package export renders a tracker ledger and its summary as a spreadsheet.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"example.com/ecotrack/internal/domain"
)

// Sheet names in the exported workbook.
const (
	ActivitiesSheet = "Activities"
	SummarySheet    = "Summary"
)

// ContentType is the media type of the exported workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var activityHeader = []interface{}{
	"seq", "recorded_at", "meal", "vehicle", "distance_km", "outside_food",
	"env_activities", "duration_min", "negative", "positive",
}

// WriteWorkbook writes the ledger in chronological order to one sheet and the
// summary to another.
func WriteWorkbook(w io.Writer, activities []domain.Activity, summary domain.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ActivitiesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeActivities(f, activities); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummary(f, summary); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeActivities(f *excelize.File, activities []domain.Activity) error {
	sw, err := f.NewStreamWriter(ActivitiesSheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	if err := sw.SetRow("A1", activityHeader); err != nil {
		return err
	}
	for i, a := range activities {
		neg, pos := domain.Impact(a)
		env := make([]string, 0, len(a.EnvActivities))
		for _, action := range a.EnvActivities {
			env = append(env, string(action))
		}
		row := []interface{}{
			a.Seq,
			a.RecordedAt.UTC().Format(time.RFC3339),
			string(a.Meal),
			string(a.Vehicle),
			a.DistanceKm,
			string(a.OutsideFood),
			strings.Join(env, ","),
			a.DurationMinutes,
			neg,
			pos,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func writeSummary(f *excelize.File, summary domain.Summary) error {
	result := summary.Result
	rows := [][]interface{}{
		{"activities", summary.ActivityCount},
	}
	if result.Empty {
		rows = append(rows, []interface{}{"status", "no_data"})
	} else {
		rows = append(rows,
			[]interface{}{"score", result.Score},
			[]interface{}{"negative", result.Negative},
			[]interface{}{"positive", result.Positive},
		)
	}
	rows = append(rows, []interface{}{})
	rows = append(rows, []interface{}{"suggestion", "link"})
	for _, s := range summary.Suggestions {
		rows = append(rows, []interface{}{s.Text, s.Link})
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("summary row %d: %w", i+1, err)
		}
	}
	return nil
}
