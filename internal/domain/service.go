// Package domain defines the activity ledger, scoring engine and tracker workflows.
package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"example.com/ecotrack/internal/observability"
)

var (
	// ErrTrackerNotFound is returned when a tracker cannot be located.
	ErrTrackerNotFound = errors.New("tracker not found")
	// ErrTrackerEnded is returned when appending to a tracker whose session has closed.
	ErrTrackerEnded = errors.New("tracker has ended")
)

// DefaultRecentLimit is the number of entries shown in the recent list.
const DefaultRecentLimit = 5

// Tracker is one independent session owning a ledger.
type Tracker struct {
	ID        string
	CreatedAt time.Time
}

// Cursor models the pagination token over a ledger: the last sequence number seen.
type Cursor struct {
	Seq int64
	ID  string
}

// LedgerStore captures tracker persistence. Implementations serialise appends
// to the same tracker and assign Seq.
type LedgerStore interface {
	CreateTracker(ctx context.Context, tracker Tracker) error
	Append(ctx context.Context, trackerID string, activity Activity) (Activity, error)
	Ledger(ctx context.Context, trackerID string) (*Ledger, error)
	ListActivities(ctx context.Context, trackerID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	DeleteTracker(ctx context.Context, trackerID string) error
}

// SummaryPublisher is notified after every append, e.g. to push live updates.
type SummaryPublisher interface {
	PublishSummary(trackerID string, summary Summary)
}

// NoopPublisher discards summaries.
type NoopPublisher struct{}

// PublishSummary implements SummaryPublisher.
func (NoopPublisher) PublishSummary(string, Summary) {}

// Summary is everything a presentation layer needs to render a tracker.
type Summary struct {
	TrackerID     string
	ActivityCount int
	Result        Result
	Chart         Breakdown
	Suggestions   []Suggestion
	Recent        []Activity
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the clock used to stamp activities.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithPublisher registers a summary publisher.
func WithPublisher(p SummaryPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithRecentLimit sets how many entries a summary's recent list carries.
func WithRecentLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

// Service orchestrates tracker workflows.
type Service struct {
	store       LedgerStore
	suggester   *Suggester
	publisher   SummaryPublisher
	now         func() time.Time
	recentLimit int
	tracer      trace.Tracer

	// published holds the activity count of the last summary pushed per tracker.
	publishMu sync.Mutex
	published map[string]int
}

// NewService constructs a Service.
func NewService(store LedgerStore, suggester *Suggester, opts ...Option) *Service {
	s := &Service{
		store:       store,
		suggester:   suggester,
		publisher:   NoopPublisher{},
		now:         time.Now,
		recentLimit: DefaultRecentLimit,
		tracer:      otel.Tracer("example.com/ecotrack/internal/domain"),
		published:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTracker opens a new tracker session with an empty ledger.
func (s *Service) CreateTracker(ctx context.Context) (Tracker, error) {
	tracker := Tracker{ID: uuid.NewString(), CreatedAt: s.now().UTC()}
	if err := s.store.CreateTracker(ctx, tracker); err != nil {
		return Tracker{}, fmt.Errorf("create tracker: %w", err)
	}
	observability.TrackerOpened()
	return tracker, nil
}

// EndTracker closes the session and discards its ledger.
func (s *Service) EndTracker(ctx context.Context, trackerID string) error {
	if err := s.store.DeleteTracker(ctx, trackerID); err != nil {
		return err
	}
	s.publishMu.Lock()
	delete(s.published, trackerID)
	s.publishMu.Unlock()
	observability.TrackerClosed()
	return nil
}

// RecordActivity normalises the submission, appends it and returns the
// refreshed summary.
func (s *Service) RecordActivity(ctx context.Context, trackerID string, sub Submission) (Activity, Summary, error) {
	ctx, span := s.tracer.Start(ctx, "domain.RecordActivity", trace.WithAttributes(attribute.String("tracker.id", trackerID)))
	defer span.End()

	activity := sub.Normalize(s.now())
	activity.ID = uuid.NewString()
	activity.TrackerID = trackerID

	stored, err := s.store.Append(ctx, trackerID, activity)
	if err != nil {
		span.RecordError(err)
		return Activity{}, Summary{}, err
	}
	observability.RecordActivity(string(stored.Meal), string(stored.Vehicle), stored.RecordedAt)

	summary, err := s.Summary(ctx, trackerID)
	if err != nil {
		return stored, Summary{}, err
	}
	observability.ObserveScore(summary.Result.Score)
	span.SetAttributes(attribute.Int("eco.score", summary.Result.Score), attribute.Int64("ledger.seq", stored.Seq))

	s.publish(trackerID, summary)
	return stored, summary, nil
}

// publish forwards summary unless a summary covering more activities has
// already gone out for the tracker. Concurrent appends may finish scoring out
// of order.
func (s *Service) publish(trackerID string, summary Summary) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if summary.ActivityCount < s.published[trackerID] {
		return
	}
	s.published[trackerID] = summary.ActivityCount
	s.publisher.PublishSummary(trackerID, summary)
}

// Summary scores the tracker's ledger and derives chart and suggestions.
func (s *Service) Summary(ctx context.Context, trackerID string) (Summary, error) {
	ctx, span := s.tracer.Start(ctx, "domain.Summary")
	defer span.End()

	ledger, err := s.store.Ledger(ctx, trackerID)
	if err != nil {
		return Summary{}, err
	}
	return s.summarize(trackerID, ledger), nil
}

// Summarize builds a summary for an arbitrary ledger without touching the store.
func (s *Service) Summarize(ledger *Ledger) Summary {
	return s.summarize("", ledger)
}

func (s *Service) summarize(trackerID string, ledger *Ledger) Summary {
	result := ledger.Score()
	return Summary{
		TrackerID:     trackerID,
		ActivityCount: ledger.Len(),
		Result:        result,
		Chart:         Chart(result),
		Suggestions:   s.suggester.Suggest(result, ledger),
		Recent:        ledger.Recent(s.recentLimit),
	}
}

// Ledger returns a snapshot of the tracker's ledger.
func (s *Service) Ledger(ctx context.Context, trackerID string) (*Ledger, error) {
	return s.store.Ledger(ctx, trackerID)
}

// Recent returns the n newest activities, newest first. n <= 0 uses the default limit.
func (s *Service) Recent(ctx context.Context, trackerID string, n int) ([]Activity, error) {
	if n <= 0 {
		n = s.recentLimit
	}
	ledger, err := s.store.Ledger(ctx, trackerID)
	if err != nil {
		return nil, err
	}
	return ledger.Recent(n), nil
}

// ListActivities pages through the ledger in chronological order.
func (s *Service) ListActivities(ctx context.Context, trackerID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	return s.store.ListActivities(ctx, trackerID, cursor, limit)
}

// Leaderboard returns the mock board for period with the tracker's current score.
func (s *Service) Leaderboard(ctx context.Context, trackerID string, period Period) ([]LeaderboardRow, Result, error) {
	ledger, err := s.store.Ledger(ctx, trackerID)
	if err != nil {
		return nil, Result{}, err
	}
	result := ledger.Score()
	return Leaderboard(period, result.Score), result, nil
}
