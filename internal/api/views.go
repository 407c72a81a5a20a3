package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"example.com/ecotrack/internal/domain"
)

// Form field names accepted on form-encoded submissions.
const (
	FieldMealType         = "meal-type"
	FieldVehicleType      = "vehicle-type"
	FieldDistance         = "distance"
	FieldOutsideFood      = "outside-food"
	FieldActivityDuration = "activity-duration"
	FieldEnvActivity      = "env-activity"
)

// Summary statuses.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
)

// flexText accepts a JSON string or number and keeps its text for coercion.
type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexText(s)
	case len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')):
		*f = flexText(data)
	default:
		return fmt.Errorf("expected string or number, got %s", data)
	}
	return nil
}

// RecordActivityRequest is the JSON payload for POST /v1/trackers/{id}/activities.
type RecordActivityRequest struct {
	Meal          string   `json:"meal"`
	Vehicle       string   `json:"vehicle"`
	DistanceKm    flexText `json:"distance_km"`
	OutsideFood   string   `json:"outside_food"`
	EnvActivities []string `json:"env_activities"`
	DurationMin   flexText `json:"duration_min"`
}

// Submission converts the request into the domain's untrusted input.
func (r RecordActivityRequest) Submission() domain.Submission {
	return domain.Submission{
		Meal:          r.Meal,
		Vehicle:       r.Vehicle,
		Distance:      string(r.DistanceKm),
		OutsideFood:   r.OutsideFood,
		EnvActivities: r.EnvActivities,
		Duration:      string(r.DurationMin),
	}
}

// CreateTrackerResponse describes the response body for tracker creation.
type CreateTrackerResponse struct {
	TrackerID string    `json:"tracker_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityView exposes one ledger entry and its impact.
type ActivityView struct {
	ActivityID    string    `json:"activity_id"`
	TrackerID     string    `json:"tracker_id"`
	Seq           int64     `json:"seq"`
	Meal          string    `json:"meal"`
	Vehicle       string    `json:"vehicle"`
	DistanceKm    float64   `json:"distance_km"`
	OutsideFood   string    `json:"outside_food"`
	EnvActivities []string  `json:"env_activities"`
	DurationMin   int       `json:"duration_min"`
	RecordedAt    time.Time `json:"recorded_at"`
	Negative      float64   `json:"negative"`
	Positive      float64   `json:"positive"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// SegmentView is one slice of the breakdown chart.
type SegmentView struct {
	Label string  `json:"label"`
	Value int     `json:"value"`
	Share float64 `json:"share"`
	Angle float64 `json:"angle"`
	Color string  `json:"color"`
}

// ChartView is the two-segment emission breakdown.
type ChartView struct {
	Placeholder bool          `json:"placeholder"`
	Segments    []SegmentView `json:"segments"`
}

// SuggestionView is one piece of advice.
type SuggestionView struct {
	Code string `json:"code"`
	Text string `json:"text"`
	Icon string `json:"icon"`
	Link string `json:"link,omitempty"`
}

// SummaryView is the rendered state of a tracker. Score fields are null when
// the ledger is empty.
type SummaryView struct {
	TrackerID     string           `json:"tracker_id,omitempty"`
	Status        string           `json:"status"`
	ActivityCount int              `json:"activity_count"`
	Score         *int             `json:"score"`
	Negative      *int             `json:"negative"`
	Positive      *int             `json:"positive"`
	Chart         ChartView        `json:"chart"`
	Suggestions   []SuggestionView `json:"suggestions"`
	Recent        []ActivityView   `json:"recent"`
}

// RecordActivityResponse returns the stored activity with the refreshed summary.
type RecordActivityResponse struct {
	Activity ActivityView `json:"activity"`
	Summary  SummaryView  `json:"summary"`
}

// LeaderboardRowView is one ranked entry.
type LeaderboardRowView struct {
	Rank      int    `json:"rank"`
	User      string `json:"user"`
	Score     int    `json:"score"`
	Highlight bool   `json:"highlight"`
}

// LeaderboardResponse is the mock board for a period.
type LeaderboardResponse struct {
	Period string               `json:"period"`
	Empty  bool                 `json:"empty"`
	Rows   []LeaderboardRowView `json:"rows"`
}

func toActivityView(a domain.Activity) ActivityView {
	neg, pos := domain.Impact(a)
	env := make([]string, 0, len(a.EnvActivities))
	for _, action := range a.EnvActivities {
		env = append(env, string(action))
	}
	return ActivityView{
		ActivityID:    a.ID,
		TrackerID:     a.TrackerID,
		Seq:           a.Seq,
		Meal:          string(a.Meal),
		Vehicle:       string(a.Vehicle),
		DistanceKm:    a.DistanceKm,
		OutsideFood:   string(a.OutsideFood),
		EnvActivities: env,
		DurationMin:   a.DurationMinutes,
		RecordedAt:    a.RecordedAt,
		Negative:      neg,
		Positive:      pos,
	}
}

func toActivityViews(activities []domain.Activity) []ActivityView {
	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, toActivityView(a))
	}
	return items
}

func toChartView(b domain.Breakdown) ChartView {
	if b.Placeholder {
		return ChartView{
			Placeholder: true,
			Segments: []SegmentView{
				{Label: "placeholder", Share: 1, Angle: 2 * math.Pi, Color: domain.ColorPlaceholder},
			},
		}
	}
	return ChartView{
		Segments: []SegmentView{
			{Label: "negative", Value: b.Negative, Share: b.NegativeShare, Angle: b.NegativeAngle, Color: domain.ColorNegative},
			{Label: "positive", Value: b.Positive, Share: b.PositiveShare, Angle: b.PositiveAngle, Color: domain.ColorPositive},
		},
	}
}

// NewSummaryView renders a summary for clients.
func NewSummaryView(s domain.Summary) SummaryView {
	view := SummaryView{
		TrackerID:     s.TrackerID,
		Status:        StatusOK,
		ActivityCount: s.ActivityCount,
		Chart:         toChartView(s.Chart),
		Suggestions:   make([]SuggestionView, 0, len(s.Suggestions)),
		Recent:        toActivityViews(s.Recent),
	}
	if s.Result.Empty {
		view.Status = StatusNoData
	} else {
		score, neg, pos := s.Result.Score, s.Result.Negative, s.Result.Positive
		view.Score, view.Negative, view.Positive = &score, &neg, &pos
	}
	for _, sg := range s.Suggestions {
		view.Suggestions = append(view.Suggestions, SuggestionView{Code: sg.Code, Text: sg.Text, Icon: sg.Icon, Link: sg.Link})
	}
	return view
}

// NewLeaderboardResponse renders the board for period.
func NewLeaderboardResponse(period domain.Period, result domain.Result, rows []domain.LeaderboardRow) LeaderboardResponse {
	resp := LeaderboardResponse{
		Period: string(period),
		Empty:  result.Empty,
		Rows:   make([]LeaderboardRowView, 0, len(rows)),
	}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, LeaderboardRowView{
			Rank:      row.Rank,
			User:      row.User,
			Score:     row.Score,
			Highlight: row.Highlight,
		})
	}
	return resp
}
