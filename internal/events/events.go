// Package events defines the payloads published for tracker activity.
package events

import "time"

// Event types carried in the event_type header.
const (
	TypeActivityRecorded = "activity.recorded"
	TypeTrackerCreated   = "tracker.created"
	TypeTrackerEnded     = "tracker.ended"
)

// ActivityRecorded is emitted when an activity is appended to a ledger.
type ActivityRecorded struct {
	ActivityID      string    `json:"activity_id"`
	TrackerID       string    `json:"tracker_id"`
	Seq             int64     `json:"seq"`
	Meal            string    `json:"meal"`
	Vehicle         string    `json:"vehicle"`
	DistanceKm      float64   `json:"distance_km"`
	OutsideFood     string    `json:"outside_food"`
	EnvActivities   []string  `json:"env_activities"`
	DurationMinutes int       `json:"duration_min"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// TrackerLifecycle tracks session open/close transitions.
type TrackerLifecycle struct {
	TrackerID  string    `json:"tracker_id"`
	State      string    `json:"state"`
	OccurredAt time.Time `json:"occurred_at"`
}
