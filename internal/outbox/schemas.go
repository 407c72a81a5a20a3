package outbox

import "example.com/ecotrack/internal/events"

const activityRecordedSchema = `{
  "type": "object",
  "title": "ActivityRecorded",
  "properties": {
    "activity_id": {"type": "string"},
    "tracker_id": {"type": "string"},
    "seq": {"type": "integer", "minimum": 1},
    "meal": {"type": "string"},
    "vehicle": {"type": "string"},
    "distance_km": {"type": "number", "minimum": 0},
    "outside_food": {"type": "string"},
    "env_activities": {"type": "array", "items": {"type": "string"}, "uniqueItems": true},
    "duration_min": {"type": "integer", "minimum": 0},
    "recorded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "tracker_id", "seq", "meal", "vehicle", "distance_km", "outside_food", "env_activities", "duration_min", "recorded_at"],
  "additionalProperties": false
}`

const trackerLifecycleSchema = `{
  "type": "object",
  "title": "TrackerLifecycle",
  "properties": {
    "tracker_id": {"type": "string"},
    "state": {"type": "string", "enum": ["open", "ended"]},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["tracker_id", "state", "occurred_at"],
  "additionalProperties": false
}`

// schemaCatalog maps event type to the JSON schema registered for its subject.
var schemaCatalog = map[string]string{
	events.TypeActivityRecorded: activityRecordedSchema,
	events.TypeTrackerCreated:   trackerLifecycleSchema,
	events.TypeTrackerEnded:     trackerLifecycleSchema,
}
