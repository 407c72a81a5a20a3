//go:build integration

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/persistence/postgres"
	"example.com/ecotrack/internal/testsupport"
)

func TestDispatcherPublishesTrackerEvents(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	repo := postgres.NewRepository(pool)

	trackerID := uuid.NewString()
	require.NoError(t, repo.CreateTracker(ctx, domain.Tracker{ID: trackerID, CreatedAt: time.Now().UTC()}))
	_, err := repo.Append(ctx, trackerID, domain.Activity{
		ID: uuid.NewString(), Meal: domain.MealFish, Vehicle: domain.VehicleTrain, DistanceKm: 40,
		OutsideFood: domain.OutsideFoodNone, EnvActivities: []domain.EnvAction{}, RecordedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	before := testutil.ToFloat64(deliveredCounter)
	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 2)
	require.Equal(t, "eco_tracker_lifecycle", producer.writes[0].topic)
	require.Equal(t, "eco_activity_events", producer.writes[1].topic)
	require.InDelta(t, before+2, testutil.ToFloat64(deliveredCounter), 0.0001)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	require.Zero(t, pending)
}

func TestDispatcherFailureRoutesToDLQAndManagerRequeues(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	repo := postgres.NewRepository(pool)

	trackerID := uuid.NewString()
	require.NoError(t, repo.CreateTracker(ctx, domain.Tracker{ID: trackerID, CreatedAt: time.Now().UTC()}))

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, 10*time.Millisecond, 5)

	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues("eco_tracker_lifecycle"))
	require.NoError(t, dispatcher.processBatch(ctx))
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues("eco_tracker_lifecycle")), 0.0001)

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE aggregate_id = $1`, trackerID).Scan(&dlqCount))
	require.Equal(t, 1, dlqCount)

	manager := NewDLQManager(pool, 3, time.Second)
	requeued, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, requeued)

	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount))
	require.Zero(t, dlqCount)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND aggregate_id = $1`, trackerID).Scan(&pending))
	require.Equal(t, 1, pending)
}

func TestDLQManagerQuarantinesExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	_, err := pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at)
         VALUES (1, 'tracker.created', 'eco_tracker_lifecycle', '{}', 'boom', 'tracker', $1, 'eco_tracker_lifecycle-value', $1, 3, NOW())`,
		uuid.NewString(),
	)
	require.NoError(t, err)

	manager := NewDLQManager(pool, 3, time.Second)
	requeued, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, requeued)

	var quarantined int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.Equal(t, 1, quarantined)
}
