package api

import (
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/realtime"
)

// Broadcaster publishes refreshed summaries to websocket subscribers.
type Broadcaster struct {
	hub *realtime.Hub
}

// NewBroadcaster returns a domain.SummaryPublisher backed by hub.
func NewBroadcaster(hub *realtime.Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// PublishSummary implements domain.SummaryPublisher.
func (b *Broadcaster) PublishSummary(trackerID string, summary domain.Summary) {
	b.hub.Broadcast(trackerID, NewSummaryView(summary))
}
