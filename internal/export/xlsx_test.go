package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/random"
)

func TestWriteWorkbook(t *testing.T) {
	at := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	activities := []domain.Activity{
		{Seq: 1, Meal: domain.MealBeef, Vehicle: domain.VehicleCar, DistanceKm: 10, OutsideFood: domain.OutsideFoodNone, EnvActivities: []domain.EnvAction{}, RecordedAt: at},
		{Seq: 2, Meal: domain.MealVegan, Vehicle: domain.VehicleNone, OutsideFood: domain.OutsideFoodNone, EnvActivities: []domain.EnvAction{domain.EnvPlanting, domain.EnvRecycling}, DurationMinutes: 30, RecordedAt: at.Add(time.Hour)},
	}
	service := domain.NewService(nil, domain.NewSuggester(random.Fixed(0)))
	summary := service.Summarize(domain.NewLedger(activities...))

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, activities, summary))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ActivitiesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "seq", rows[0][0])
	require.Equal(t, "beef", rows[1][2])
	require.Equal(t, "planting,recycling", rows[2][6])

	summaryRows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Equal(t, []string{"activities", "2"}, summaryRows[0])
	require.Equal(t, "score", summaryRows[1][0])
}

func TestWriteWorkbookEmptyLedger(t *testing.T) {
	service := domain.NewService(nil, domain.NewSuggester(random.Fixed(0)))
	summary := service.Summarize(domain.NewLedger())

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, nil, summary))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ActivitiesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	summaryRows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Equal(t, []string{"status", "no_data"}, summaryRows[1])
}
