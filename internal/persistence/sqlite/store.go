// Package sqlite provides a single-node SQLite ledger store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"example.com/ecotrack/internal/domain"
)

//go:embed schema.sql
var schema string

// Store persists tracker ledgers in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps per-tracker sequence assignment serial.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateTracker implements domain.LedgerStore.
func (s *Store) CreateTracker(ctx context.Context, tracker domain.Tracker) error {
	if strings.TrimSpace(tracker.ID) == "" {
		return fmt.Errorf("tracker id is required")
	}
	createdAt := tracker.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO trackers (tracker_id, created_at, last_seq) VALUES (?, ?, 0)`,
		tracker.ID, toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert tracker: %w", err)
	}
	return nil
}

// Append implements domain.LedgerStore.
func (s *Store) Append(ctx context.Context, trackerID string, activity domain.Activity) (domain.Activity, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE trackers SET last_seq = last_seq + 1 WHERE tracker_id = ?`, trackerID)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("advance sequence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Activity{}, domain.ErrTrackerNotFound
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT last_seq FROM trackers WHERE tracker_id = ?`, trackerID).Scan(&seq); err != nil {
		return domain.Activity{}, fmt.Errorf("read sequence: %w", err)
	}

	activity.TrackerID = trackerID
	activity.Seq = seq

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tracker_activities (
		   activity_id, tracker_id, seq, meal, vehicle, distance_km, outside_food, env_activities, duration_min, recorded_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		activity.ID,
		activity.TrackerID,
		activity.Seq,
		string(activity.Meal),
		string(activity.Vehicle),
		activity.DistanceKm,
		string(activity.OutsideFood),
		joinEnv(activity.EnvActivities),
		activity.DurationMinutes,
		toMillis(activity.RecordedAt),
	)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("insert activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Activity{}, fmt.Errorf("commit append: %w", err)
	}
	return activity, nil
}

// Ledger implements domain.LedgerStore.
func (s *Store) Ledger(ctx context.Context, trackerID string) (*domain.Ledger, error) {
	if err := s.ensureTracker(ctx, trackerID); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT activity_id, tracker_id, seq, meal, vehicle, distance_km, outside_food, env_activities, duration_min, recorded_at
		   FROM tracker_activities WHERE tracker_id = ? ORDER BY seq`,
		trackerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	activities, err := scanActivities(rows)
	if err != nil {
		return nil, err
	}
	return domain.NewLedger(activities...), nil
}

// ListActivities implements domain.LedgerStore.
func (s *Store) ListActivities(ctx context.Context, trackerID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	if err := s.ensureTracker(ctx, trackerID); err != nil {
		return nil, nil, err
	}
	var after int64
	if cursor != nil {
		after = cursor.Seq
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT activity_id, tracker_id, seq, meal, vehicle, distance_km, outside_food, env_activities, duration_min, recorded_at
		   FROM tracker_activities WHERE tracker_id = ? AND seq > ? ORDER BY seq LIMIT ?`,
		trackerID, after, limit,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	results, err := scanActivities(rows)
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{Seq: last.Seq, ID: last.ID}
	}
	return results, next, nil
}

// DeleteTracker implements domain.LedgerStore.
func (s *Store) DeleteTracker(ctx context.Context, trackerID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM trackers WHERE tracker_id = ?`, trackerID)
	if err != nil {
		return fmt.Errorf("delete tracker: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTrackerNotFound
	}
	return nil
}

func (s *Store) ensureTracker(ctx context.Context, trackerID string) error {
	var one int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM trackers WHERE tracker_id = ?`, trackerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrTrackerNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup tracker: %w", err)
	}
	return nil
}

func scanActivities(rows *sql.Rows) ([]domain.Activity, error) {
	var results []domain.Activity
	for rows.Next() {
		var (
			a          domain.Activity
			meal       string
			vehicle    string
			outside    string
			env        string
			recordedAt int64
		)
		if err := rows.Scan(&a.ID, &a.TrackerID, &a.Seq, &meal, &vehicle, &a.DistanceKm, &outside, &env, &a.DurationMinutes, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Meal = domain.Meal(meal)
		a.Vehicle = domain.Vehicle(vehicle)
		a.OutsideFood = domain.OutsideFood(outside)
		a.EnvActivities = splitEnv(env)
		a.RecordedAt = fromMillis(recordedAt)
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return results, nil
}

func joinEnv(actions []domain.EnvAction) string {
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts, string(a))
	}
	return strings.Join(parts, ",")
}

func splitEnv(raw string) []domain.EnvAction {
	if raw == "" {
		return []domain.EnvAction{}
	}
	return domain.NormalizeEnvActions(strings.Split(raw, ","))
}
