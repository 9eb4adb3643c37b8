// Package metrics exposes Prometheus instrumentation for the tracker daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracking engine
	FixesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runtrack_fixes_total",
			Help: "Position fixes received by the active session",
		},
		[]string{"result"}, // "accepted", "low_accuracy", "ignored"
	)

	RoutePointsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "runtrack_route_points_total",
			Help: "Fixes promoted to route points",
		},
	)

	GeolocationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runtrack_geolocation_errors_total",
			Help: "Errors reported by the device location stream",
		},
		[]string{"code"},
	)

	RunsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runtrack_runs_total",
			Help: "Stopped sessions by outcome",
		},
		[]string{"outcome"}, // "saved", "insufficient_data", "save_failed"
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "runtrack_active_sessions",
			Help: "Sessions currently tracking or paused (0 or 1)",
		},
	)

	// Run persistence API
	RunsAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runtrack_runs_api_requests_total",
			Help: "Requests to the run persistence API",
		},
		[]string{"result"}, // "success", "failure", "rejected"
	)

	RunsAPIDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "runtrack_runs_api_duration_seconds",
			Help:    "Latency of run persistence API calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "runtrack_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Outbox
	OutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "runtrack_outbox_pending",
			Help: "Runs waiting to be delivered to the persistence API",
		},
	)

	OutboxDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "runtrack_outbox_delivered_total",
			Help: "Queued runs delivered on retry",
		},
	)

	// HTTP control surface
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "runtrack_http_request_duration_seconds",
			Help:    "Control API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
