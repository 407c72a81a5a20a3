package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/events"
)

// ImpactObserver receives the per-activity impact computed from an event.
type ImpactObserver func(meal string, negative, positive float64)

// ImpactHandler scores each recorded activity on its own and feeds the impact
// histograms, giving a fleet-wide view of what drives scores down.
type ImpactHandler struct {
	observe ImpactObserver
}

// NewImpactHandler constructs a handler. A nil observer records Prometheus histograms.
func NewImpactHandler(observe ImpactObserver) *ImpactHandler {
	if observe == nil {
		observe = func(meal string, negative, positive float64) {
			negativeImpact.WithLabelValues(meal).Observe(negative)
			positiveImpact.Observe(positive)
		}
	}
	return &ImpactHandler{observe: observe}
}

// Handle implements Handler. Unknown event types are ignored.
func (h *ImpactHandler) Handle(_ context.Context, msg Message) error {
	switch msg.EventType {
	case events.TypeActivityRecorded:
		var evt events.ActivityRecorded
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		activity := ActivityFromEvent(evt)
		negative, positive := domain.Impact(activity)
		h.observe(string(activity.Meal), negative, positive)
	case events.TypeTrackerCreated, events.TypeTrackerEnded:
		var evt events.TrackerLifecycle
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		trackerTransitions.WithLabelValues(evt.State).Inc()
	}
	return nil
}

// ActivityFromEvent rebuilds the domain activity carried by an event.
func ActivityFromEvent(evt events.ActivityRecorded) domain.Activity {
	return domain.Activity{
		ID:              evt.ActivityID,
		TrackerID:       evt.TrackerID,
		Seq:             evt.Seq,
		Meal:            domain.Meal(evt.Meal),
		Vehicle:         domain.Vehicle(evt.Vehicle),
		DistanceKm:      evt.DistanceKm,
		OutsideFood:     domain.OutsideFood(evt.OutsideFood),
		EnvActivities:   domain.NormalizeEnvActions(evt.EnvActivities),
		DurationMinutes: evt.DurationMinutes,
		RecordedAt:      evt.RecordedAt,
	}
}

// Fanout runs every handler in order and joins their errors.
type Fanout []Handler

// Handle implements Handler.
func (f Fanout) Handle(ctx context.Context, msg Message) error {
	var errs error
	for _, h := range f {
		errs = errors.Join(errs, h.Handle(ctx, msg))
	}
	return errs
}
