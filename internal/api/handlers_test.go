package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/export"
	"example.com/ecotrack/internal/persistence/memory"
	"example.com/ecotrack/internal/random"
	"example.com/ecotrack/internal/realtime"
)

func newTestMux(t *testing.T) (*http.ServeMux, *realtime.Hub) {
	t.Helper()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	hub := realtime.NewHub("*")
	service := domain.NewService(
		memory.NewStore(),
		domain.NewSuggester(random.Fixed(2)),
		domain.WithClock(func() time.Time { return now }),
		domain.WithPublisher(NewBroadcaster(hub)),
	)
	mux := http.NewServeMux()
	NewHandler(service, hub).RegisterRoutes(mux)
	return mux, hub
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func createTracker(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/trackers", "", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp CreateTrackerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.TrackerID)
	return resp.TrackerID
}

func suggestionCodes(view SummaryView) []string {
	codes := make([]string, 0, len(view.Suggestions))
	for _, s := range view.Suggestions {
		codes = append(codes, s.Code)
	}
	return codes
}

func TestSummaryEmptyLedger(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createTracker(t, mux)

	rr := do(t, mux, http.MethodGet, "/v1/trackers/"+id+"/summary", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	require.Equal(t, StatusNoData, raw["status"])
	require.Nil(t, raw["score"])

	var view SummaryView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.True(t, view.Chart.Placeholder)
	require.Equal(t, domain.ColorPlaceholder, view.Chart.Segments[0].Color)
	require.Empty(t, view.Suggestions)
	require.Empty(t, view.Recent)
}

func TestRecordActivityJSON(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createTracker(t, mux)

	rr := do(t, mux, http.MethodPost, "/v1/trackers/"+id+"/activities", "application/json",
		`{"meal":"beef","vehicle":"car","distance_km":10,"outside_food":"none","env_activities":[],"duration_min":"0"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp RecordActivityResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Activity.Seq)
	require.Equal(t, "beef", resp.Activity.Meal)
	require.InDelta(t, 10.0, resp.Activity.DistanceKm, 1e-9)

	summary := resp.Summary
	require.Equal(t, StatusOK, summary.Status)
	require.NotNil(t, summary.Score)
	require.Equal(t, 93, *summary.Score)
	require.Equal(t, 7, *summary.Negative)
	require.Equal(t, 0, *summary.Positive)
	require.Equal(t, []string{"plant_based_meals", "add_env_activity", "tip_compost"}, suggestionCodes(summary))
	require.False(t, summary.Chart.Placeholder)
	require.Len(t, summary.Chart.Segments, 2)
	require.InDelta(t, 1.0, summary.Chart.Segments[0].Share, 1e-9)
}

func TestRecordActivityForm(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createTracker(t, mux)

	form := url.Values{}
	form.Set(FieldMealType, "vegan")
	form.Set(FieldVehicleType, "none")
	form.Set(FieldDistance, "")
	form.Set(FieldOutsideFood, "none")
	form.Add(FieldEnvActivity, "planting")
	form.Add(FieldEnvActivity, "recycling")
	form.Set(FieldActivityDuration, "30")

	rr := do(t, mux, http.MethodPost, "/v1/trackers/"+id+"/activities", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp RecordActivityResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, []string{"planting", "recycling"}, resp.Activity.EnvActivities)
	require.Equal(t, 104, *resp.Summary.Score)
	require.Equal(t, 1, *resp.Summary.Negative)
	require.Equal(t, 4, *resp.Summary.Positive)
	require.Equal(t, []string{"great_job", "tip_compost"}, suggestionCodes(resp.Summary))
}

func TestRecordActivityCoercesMalformedNumbers(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createTracker(t, mux)

	form := url.Values{}
	form.Set(FieldMealType, "chicken")
	form.Set(FieldVehicleType, "bus")
	form.Set(FieldDistance, "12.5km")
	form.Set(FieldActivityDuration, "abc")

	rr := do(t, mux, http.MethodPost, "/v1/trackers/"+id+"/activities", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp RecordActivityResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.InDelta(t, 12.5, resp.Activity.DistanceKm, 1e-9)
	require.Equal(t, 0, resp.Activity.DurationMin)
	require.Equal(t, "none", resp.Activity.OutsideFood)
}

func TestRecordActivityRejectsBadJSON(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createTracker(t, mux)

	rr := do(t, mux, http.MethodPost, "/v1/trackers/"+id+"/activities", "application/json", `{"distance_km": true}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnknownTrackerReturnsNotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/v1/trackers/missing/summary", ""},
		{http.MethodGet, "/v1/trackers/missing/activities", ""},
		{http.MethodPost, "/v1/trackers/missing/activities", `{"meal":"beef"}`},
		{http.MethodDelete, "/v1/trackers/missing", ""},
	} {
		rr := do(t, mux, tc.method, tc.path, "application/json", tc.body)
		require.Equal(t, http.StatusNotFound, rr.Code, tc.path)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, "not_found", body["type"])
	}
}

func TestListActivitiesPaginates(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createTracker(t, mux)
	for _, meal := range []string{"beef", "fish", "vegan"} {
		rr := do(t, mux, http.MethodPost, "/v1/trackers/"+id+"/activities", "application/json", `{"meal":"`+meal+`"}`)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := do(t, mux, http.MethodGet, "/v1/trackers/"+id+"/activities?limit=2", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var page ListActivitiesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Items, 2)
	require.Equal(t, "beef", page.Items[0].Meal)
	require.NotEmpty(t, page.NextCursor)

	rr = do(t, mux, http.MethodGet, "/v1/trackers/"+id+"/activities?limit=2&cursor="+page.NextCursor, "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var rest ListActivitiesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rest))
	require.Len(t, rest.Items, 1)
	require.Equal(t, "vegan", rest.Items[0].Meal)
	require.Empty(t, rest.NextCursor)

	rr = do(t, mux, http.MethodGet, "/v1/trackers/"+id+"/activities?cursor=!!!", "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecentActivitiesNewestFirst(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createTracker(t, mux)
	for _, meal := range []string{"beef", "fish", "vegan"} {
		do(t, mux, http.MethodPost, "/v1/trackers/"+id+"/activities", "application/json", `{"meal":"`+meal+`"}`)
	}

	rr := do(t, mux, http.MethodGet, "/v1/trackers/"+id+"/activities/recent?n=2", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp ListActivitiesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	require.Equal(t, int64(3), resp.Items[0].Seq)
	require.Equal(t, int64(2), resp.Items[1].Seq)

	rr = do(t, mux, http.MethodGet, "/v1/trackers/"+id+"/activities/recent?n=0", "", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Empty(t, resp.Items)

	rr = do(t, mux, http.MethodGet, "/v1/trackers/"+id+"/activities/recent?n=-1", "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLeaderboardHighlightsTracker(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createTracker(t, mux)
	do(t, mux, http.MethodPost, "/v1/trackers/"+id+"/activities", "application/json", `{"meal":"beef","vehicle":"car","distance_km":"10"}`)

	rr := do(t, mux, http.MethodGet, "/v1/trackers/"+id+"/leaderboard?period=monthly", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp LeaderboardResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "monthly", resp.Period)
	require.Len(t, resp.Rows, 4)
	require.Equal(t, LeaderboardRowView{Rank: 2, User: domain.YouLabel, Score: 372, Highlight: true}, resp.Rows[1])

	rr = do(t, mux, http.MethodGet, "/v1/trackers/"+id+"/leaderboard?period=yearly", "", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "all-time", resp.Period)
}

func TestEndTrackerDropsLedger(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createTracker(t, mux)

	rr := do(t, mux, http.MethodDelete, "/v1/trackers/"+id, "", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, mux, http.MethodGet, "/v1/trackers/"+id+"/summary", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestExportWorkbook(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createTracker(t, mux)
	do(t, mux, http.MethodPost, "/v1/trackers/"+id+"/activities", "application/json", `{"meal":"fish","vehicle":"train","distance_km":"40"}`)

	rr := do(t, mux, http.MethodGet, "/v1/trackers/"+id+"/export", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, export.ContentType, rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), id)

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.ActivitiesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "fish", rows[1][2])
}

func TestStreamPushesSummaries(t *testing.T) {
	mux, hub := newTestMux(t)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	id := createTracker(t, mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/trackers/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var initial SummaryView
	require.NoError(t, conn.ReadJSON(&initial))
	require.Equal(t, StatusNoData, initial.Status)
	require.Eventually(t, func() bool { return hub.Subscribers(id) == 1 }, time.Second, 10*time.Millisecond)

	rr := do(t, mux, http.MethodPost, "/v1/trackers/"+id+"/activities", "application/json", `{"meal":"beef","vehicle":"car","distance_km":10}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var update SummaryView
	require.NoError(t, conn.ReadJSON(&update))
	require.Equal(t, StatusOK, update.Status)
	require.Equal(t, 93, *update.Score)
	require.Equal(t, 1, update.ActivityCount)
}

func TestStreamUnknownTracker(t *testing.T) {
	mux, _ := newTestMux(t)
	rr := do(t, mux, http.MethodGet, "/v1/trackers/missing/stream", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestInstrumentRecordsStatus(t *testing.T) {
	mux, _ := newTestMux(t)
	var logs bytes.Buffer
	handler := Instrument(mux, log.New(&logs, "", 0))

	rr := do(t, handler, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, logs.String(), "GET /healthz 200")
}
