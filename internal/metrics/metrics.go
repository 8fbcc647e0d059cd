// Package metrics holds the Prometheus collectors for the destination.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capture outcomes.
const (
	OutcomeSent     = "sent"     // PostHog answered 2xx
	OutcomeRejected = "rejected" // PostHog answered non-2xx
	OutcomeInvalid  = "invalid"  // refused before sending
	OutcomeFailed   = "failed"   // transport or decode error
)

var (
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segment_events_received_total",
			Help: "Segment events received, by type",
		},
		[]string{"type"},
	)

	CapturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posthog_capture_total",
			Help: "PostHog capture attempts, by Segment event type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	CaptureDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posthog_capture_duration_seconds",
			Help:    "Duration of PostHog capture requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Inbound HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Inbound HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordCapture counts one capture attempt and, when it reached PostHog,
// its latency.
func RecordCapture(eventType, outcome string, d time.Duration) {
	CapturesTotal.WithLabelValues(eventType, outcome).Inc()
	if outcome == OutcomeSent || outcome == OutcomeRejected {
		CaptureDuration.WithLabelValues(eventType).Observe(d.Seconds())
	}
}

// RecordHTTPRequest counts an inbound request.
func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
