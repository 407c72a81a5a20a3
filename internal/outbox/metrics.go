package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DLQ outcomes recorded on dlqTransitions.
const (
	outcomeRequeued    = "requeued"
	outcomeQuarantined = "quarantined"
	outcomeRetry       = "retry_scheduled"
)

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Tracker events published to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Tracker events whose publish failed.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ecotrack",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Wall time of one claim, deliver and mark cycle.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Tracker events parked in outbox_dlq, by topic.",
	}, []string{"topic"})

	dlqTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "dlq",
		Name:      "transitions_total",
		Help:      "Dead-letter entries processed by the DLQ manager, by outcome.",
	}, []string{"topic", "event_type", "outcome"})

	dlqBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecotrack",
		Subsystem: "dlq",
		Name:      "backlog",
		Help:      "Dead-letter entries still eligible for replay.",
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, batchDuration, dlqCounter, dlqTransitions, dlqBacklog)
}

func recordTransition(entry dlqEntry, outcome string) {
	dlqTransitions.WithLabelValues(entry.Topic, entry.EventType, outcome).Inc()
}

func refreshBacklog(ctx context.Context, pool *pgxpool.Pool) {
	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&n); err == nil {
		dlqBacklog.Set(float64(n))
	}
}
