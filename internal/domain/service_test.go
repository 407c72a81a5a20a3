package domain_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/persistence/memory"
	"example.com/ecotrack/internal/random"
)

type recordingPublisher struct {
	mu        sync.Mutex
	summaries []domain.Summary
}

func (p *recordingPublisher) PublishSummary(_ string, summary domain.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, summary)
}

func newTestService(opts ...domain.Option) *domain.Service {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]domain.Option{domain.WithClock(func() time.Time { return now })}, opts...)
	return domain.NewService(memory.NewStore(), domain.NewSuggester(random.Fixed(2)), opts...)
}

func TestServiceRecordActivity(t *testing.T) {
	ctx := context.Background()
	publisher := &recordingPublisher{}
	svc := newTestService(domain.WithPublisher(publisher))

	tracker, err := svc.CreateTracker(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, tracker.ID)

	empty, err := svc.Summary(ctx, tracker.ID)
	require.NoError(t, err)
	require.True(t, empty.Result.Empty)
	require.Empty(t, empty.Suggestions)
	require.True(t, empty.Chart.Placeholder)

	activity, summary, err := svc.RecordActivity(ctx, tracker.ID, domain.Submission{
		Meal: "beef", Vehicle: "car", Distance: "10",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), activity.Seq)
	require.Equal(t, tracker.ID, activity.TrackerID)
	require.NotEmpty(t, activity.ID)
	require.Equal(t, 93, summary.Result.Score)
	require.Equal(t, 1, summary.ActivityCount)
	require.Equal(t, []string{"plant_based_meals", "add_env_activity", "tip_compost"}, codes(summary.Suggestions))

	require.Len(t, publisher.summaries, 1)
	require.Equal(t, 93, publisher.summaries[0].Result.Score)
}

func TestServiceRecentAndPaging(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(domain.WithRecentLimit(2))
	tracker, err := svc.CreateTracker(ctx)
	require.NoError(t, err)

	for _, meal := range []string{"beef", "fish", "vegan"} {
		_, _, err := svc.RecordActivity(ctx, tracker.ID, domain.Submission{Meal: meal})
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, tracker.ID)
	require.NoError(t, err)
	require.Len(t, summary.Recent, 2)
	require.Equal(t, domain.MealVegan, summary.Recent[0].Meal)

	recent, err := svc.Recent(ctx, tracker.ID, 3)
	require.NoError(t, err)
	require.Equal(t, domain.MealBeef, recent[2].Meal)

	page, next, err := svc.ListActivities(ctx, tracker.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	rest, next, err := svc.ListActivities(ctx, tracker.ID, next, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, int64(3), rest[0].Seq)
	require.Nil(t, next)
}

func TestServiceLeaderboard(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	tracker, err := svc.CreateTracker(ctx)
	require.NoError(t, err)
	_, _, err = svc.RecordActivity(ctx, tracker.ID, domain.Submission{Meal: "beef", Vehicle: "car", Distance: "10"})
	require.NoError(t, err)

	rows, result, err := svc.Leaderboard(ctx, tracker.ID, domain.PeriodMonthly)
	require.NoError(t, err)
	require.Equal(t, 93, result.Score)
	require.Equal(t, 372, rows[1].Score)
}

func TestServiceEndTracker(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	tracker, err := svc.CreateTracker(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.EndTracker(ctx, tracker.ID))
	require.ErrorIs(t, svc.EndTracker(ctx, tracker.ID), domain.ErrTrackerNotFound)

	_, _, err = svc.RecordActivity(ctx, tracker.ID, domain.Submission{Meal: "fish"})
	require.ErrorIs(t, err, domain.ErrTrackerNotFound)
	_, err = svc.Summary(ctx, tracker.ID)
	require.ErrorIs(t, err, domain.ErrTrackerNotFound)
}

func TestServiceTrackersAreIndependent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	first, err := svc.CreateTracker(ctx)
	require.NoError(t, err)
	second, err := svc.CreateTracker(ctx)
	require.NoError(t, err)

	_, _, err = svc.RecordActivity(ctx, first.ID, domain.Submission{Meal: "beef"})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, summary.Result.Empty)
}

func TestServiceSummarize(t *testing.T) {
	svc := newTestService()
	summary := svc.Summarize(domain.NewLedger(veganGardening()))
	require.Equal(t, 104, summary.Result.Score)
	require.Empty(t, summary.TrackerID)
}

// pausingStore snapshots the first Ledger read, then holds it until released.
type pausingStore struct {
	*memory.Store
	once     sync.Once
	captured chan struct{}
	release  chan struct{}
}

func (s *pausingStore) Ledger(ctx context.Context, trackerID string) (*domain.Ledger, error) {
	ledger, err := s.Store.Ledger(ctx, trackerID)
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.captured)
		<-s.release
	}
	return ledger, err
}

func TestServiceDropsStaleSummaries(t *testing.T) {
	ctx := context.Background()
	store := &pausingStore{Store: memory.NewStore(), captured: make(chan struct{}), release: make(chan struct{})}
	publisher := &recordingPublisher{}
	svc := domain.NewService(store, domain.NewSuggester(random.Fixed(0)), domain.WithPublisher(publisher))

	tracker, err := svc.CreateTracker(ctx)
	require.NoError(t, err)

	type outcome struct {
		summary domain.Summary
		err     error
	}
	slow := make(chan outcome, 1)
	go func() {
		_, summary, err := svc.RecordActivity(ctx, tracker.ID, domain.Submission{Meal: "beef"})
		slow <- outcome{summary, err}
	}()
	<-store.captured

	_, fast, err := svc.RecordActivity(ctx, tracker.ID, domain.Submission{Meal: "vegan"})
	require.NoError(t, err)
	require.Equal(t, 2, fast.ActivityCount)

	close(store.release)
	first := <-slow
	require.NoError(t, first.err)
	require.Equal(t, 1, first.summary.ActivityCount)

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	require.Len(t, publisher.summaries, 1)
	require.Equal(t, 2, publisher.summaries[0].ActivityCount)
}
