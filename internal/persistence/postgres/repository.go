// Package postgres stores tracker ledgers in PostgreSQL and records outbox
// events in the same transaction as each ledger change.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/events"
)

// Repository provides Postgres-backed persistence for trackers and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTracker inserts the tracker row and a tracker.created event.
func (r *Repository) CreateTracker(ctx context.Context, tracker domain.Tracker) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `INSERT INTO trackers (tracker_id, created_at) VALUES ($1, $2)`, tracker.ID, tracker.CreatedAt); err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, "tracker", tracker.ID, events.TypeTrackerCreated, events.TrackerLifecycle{
		TrackerID:  tracker.ID,
		State:      "open",
		OccurredAt: tracker.CreatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Append assigns the next sequence number under a row lock on the tracker,
// inserts the activity and records an activity.recorded event.
func (r *Repository) Append(ctx context.Context, trackerID string, activity domain.Activity) (stored domain.Activity, err error) {
	if !validID(trackerID) {
		return domain.Activity{}, domain.ErrTrackerNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Activity{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var seq int64
	err = tx.QueryRow(ctx, `UPDATE trackers SET last_seq = last_seq + 1 WHERE tracker_id = $1 RETURNING last_seq`, trackerID).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrTrackerNotFound
		}
		return domain.Activity{}, err
	}

	activity.TrackerID = trackerID
	activity.Seq = seq

	const insertActivity = `INSERT INTO tracker_activities (activity_id, tracker_id, seq, meal, vehicle, distance_km, outside_food, env_activities, duration_min, recorded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err = tx.Exec(ctx, insertActivity,
		activity.ID,
		activity.TrackerID,
		activity.Seq,
		string(activity.Meal),
		string(activity.Vehicle),
		activity.DistanceKm,
		string(activity.OutsideFood),
		envStrings(activity.EnvActivities),
		activity.DurationMinutes,
		activity.RecordedAt,
	)
	if err != nil {
		return domain.Activity{}, err
	}

	if err = insertOutbox(ctx, tx, "tracker", trackerID, events.TypeActivityRecorded, ActivityRecordedEvent(activity)); err != nil {
		return domain.Activity{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.Activity{}, err
	}
	return activity, nil
}

// Ledger loads the tracker's full ledger in sequence order.
func (r *Repository) Ledger(ctx context.Context, trackerID string) (*domain.Ledger, error) {
	if err := r.ensureTracker(ctx, trackerID); err != nil {
		return nil, err
	}

	const query = `SELECT activity_id, tracker_id, seq, meal, vehicle, distance_km, outside_food, env_activities, duration_min, recorded_at
        FROM tracker_activities WHERE tracker_id=$1 ORDER BY seq`

	rows, err := r.pool.Query(ctx, query, trackerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities, err := scanActivities(rows, 0)
	if err != nil {
		return nil, err
	}
	return domain.NewLedger(activities...), nil
}

// ListActivities pages through the ledger by sequence number.
func (r *Repository) ListActivities(ctx context.Context, trackerID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	if err := r.ensureTracker(ctx, trackerID); err != nil {
		return nil, nil, err
	}

	var after int64
	if cursor != nil {
		after = cursor.Seq
	}

	const query = `SELECT activity_id, tracker_id, seq, meal, vehicle, distance_km, outside_food, env_activities, duration_min, recorded_at
        FROM tracker_activities WHERE tracker_id=$1 AND seq > $2 ORDER BY seq LIMIT $3`

	rows, err := r.pool.Query(ctx, query, trackerID, after, limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results, err := scanActivities(rows, limit)
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit && limit > 0 {
		last := results[len(results)-1]
		next = &domain.Cursor{Seq: last.Seq, ID: last.ID}
	}
	return results, next, nil
}

// DeleteTracker removes the tracker and its ledger and records tracker.ended.
func (r *Repository) DeleteTracker(ctx context.Context, trackerID string) (err error) {
	if !validID(trackerID) {
		return domain.ErrTrackerNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `DELETE FROM trackers WHERE tracker_id = $1`, trackerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrTrackerNotFound
		return err
	}

	if err = insertOutbox(ctx, tx, "tracker", trackerID, events.TypeTrackerEnded, events.TrackerLifecycle{
		TrackerID:  trackerID,
		State:      "ended",
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) ensureTracker(ctx context.Context, trackerID string) error {
	if !validID(trackerID) {
		return domain.ErrTrackerNotFound
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trackers WHERE tracker_id = $1)`, trackerID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrTrackerNotFound
	}
	return nil
}

// validID reports whether id can name a tracker row; anything else cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanActivities(rows pgx.Rows, capacity int) ([]domain.Activity, error) {
	results := make([]domain.Activity, 0, capacity)
	for rows.Next() {
		var (
			a       domain.Activity
			meal    string
			vehicle string
			outside string
			env     []string
		)
		if err := rows.Scan(&a.ID, &a.TrackerID, &a.Seq, &meal, &vehicle, &a.DistanceKm, &outside, &env, &a.DurationMinutes, &a.RecordedAt); err != nil {
			return nil, err
		}
		a.Meal = domain.Meal(meal)
		a.Vehicle = domain.Vehicle(vehicle)
		a.OutsideFood = domain.OutsideFood(outside)
		a.EnvActivities = domain.NormalizeEnvActions(env)
		a.RecordedAt = a.RecordedAt.UTC()
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := EventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s:%s", aggregateID, eventType, dedupeSuffix(payload))

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		aggregateID,
		body,
		dedupeKey,
	)
	return err
}

func dedupeSuffix(payload interface{}) string {
	if evt, ok := payload.(events.ActivityRecorded); ok {
		return evt.ActivityID
	}
	return "lifecycle"
}

// ActivityRecordedEvent converts a stored activity into its event payload.
func ActivityRecordedEvent(a domain.Activity) events.ActivityRecorded {
	return events.ActivityRecorded{
		ActivityID:      a.ID,
		TrackerID:       a.TrackerID,
		Seq:             a.Seq,
		Meal:            string(a.Meal),
		Vehicle:         string(a.Vehicle),
		DistanceKm:      a.DistanceKm,
		OutsideFood:     string(a.OutsideFood),
		EnvActivities:   envStrings(a.EnvActivities),
		DurationMinutes: a.DurationMinutes,
		RecordedAt:      a.RecordedAt,
	}
}

func envStrings(actions []domain.EnvAction) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, string(a))
	}
	return out
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

// EventCatalog routes each event type to its topic and Schema Registry subject.
var EventCatalog = map[string]EventMetadata{
	events.TypeActivityRecorded: {
		Topic:         "eco_activity_events",
		SchemaSubject: "eco_activity_events-value",
	},
	events.TypeTrackerCreated: {
		Topic:         "eco_tracker_lifecycle",
		SchemaSubject: "eco_tracker_lifecycle-value",
	},
	events.TypeTrackerEnded: {
		Topic:         "eco_tracker_lifecycle",
		SchemaSubject: "eco_tracker_lifecycle-value",
	},
}
