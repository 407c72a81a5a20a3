// Package observability holds the tracker-level Prometheus collectors.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activitiesRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "ledger",
		Name:      "activities_recorded_total",
		Help:      "Number of activities appended to tracker ledgers, by meal and vehicle.",
	}, []string{"meal", "vehicle"})

	lastActivityGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecotrack",
		Subsystem: "ledger",
		Name:      "last_activity_recorded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity appended to any ledger.",
	})

	scoreHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ecotrack",
		Subsystem: "scoring",
		Name:      "eco_score",
		Help:      "Eco score observed after each append.",
		Buckets:   prometheus.LinearBuckets(0, 20, 8),
	})

	activeTrackers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecotrack",
		Subsystem: "trackers",
		Name:      "active",
		Help:      "Number of tracker sessions currently open on this instance.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by method and status code.",
	}, []string{"method", "code"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ecotrack",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)

func init() {
	prometheus.MustRegister(activitiesRecorded, lastActivityGauge, scoreHistogram, activeTrackers, httpRequests, httpDuration)
}

// RecordActivity counts an appended activity and moves the watermark gauge.
func RecordActivity(meal, vehicle string, ts time.Time) {
	activitiesRecorded.WithLabelValues(meal, vehicle).Inc()
	if ts.IsZero() {
		return
	}
	lastActivityGauge.Set(float64(ts.Unix()))
}

// ObserveScore records the eco score computed after an append.
func ObserveScore(score int) {
	scoreHistogram.Observe(float64(score))
}

// TrackerOpened increments the active tracker gauge.
func TrackerOpened() {
	activeTrackers.Inc()
}

// TrackerClosed decrements the active tracker gauge.
func TrackerClosed() {
	activeTrackers.Dec()
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
