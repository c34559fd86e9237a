// Package metrics provides Prometheus metrics for opswatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "opswatch"
)

// Event bus metrics
var (
	// EventsPublishedTotal counts events accepted by the bus, by type.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_published_total",
			Help:      "Total events published to the bus",
		},
		[]string{"type"},
	)

	// DispatchQueueDepth tracks events waiting for dispatch.
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "dispatch_queue_depth",
			Help:      "Events currently queued for dispatch",
		},
	)

	// DispatchDuration tracks per-event fan-out/join latency.
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "dispatch_duration_seconds",
			Help:      "Time to dispatch one event to all subscribers",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	// SubscriberErrorsTotal counts isolated subscriber failures.
	SubscriberErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "subscriber_errors_total",
			Help:      "Subscriber callbacks that returned an error or panicked",
		},
	)

	// SubscribersActive tracks registered subscriptions.
	SubscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "subscribers_active",
			Help:      "Number of registered subscriptions",
		},
	)
)

// Rule engine metrics
var (
	// RuleMatchesTotal counts rule matches, by rule name.
	RuleMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "matches_total",
			Help:      "Total rule matches",
		},
		[]string{"rule"},
	)

	// ActionsExecutedTotal counts action executions, by type and outcome.
	ActionsExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "actions_executed_total",
			Help:      "Total actions executed",
		},
		[]string{"type", "status"},
	)
)

// Alarm metrics
var (
	// AlarmsActive tracks alarms in the active set.
	AlarmsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alarms",
			Name:      "active",
			Help:      "Alarms currently active or acknowledged",
		},
	)

	// AlarmsCreatedTotal counts created alarms, by severity.
	AlarmsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alarms",
			Name:      "created_total",
			Help:      "Total alarms created",
		},
		[]string{"severity"},
	)

	// NotificationsTotal counts channel delivery attempts, by channel and outcome.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alarms",
			Name:      "notifications_total",
			Help:      "Total notification delivery attempts",
		},
		[]string{"channel", "status"},
	)

	// RateLimitedTotal counts notifications suppressed by the rate limiter.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alarms",
			Name:      "rate_limited_total",
			Help:      "Notifications suppressed by the per-type rate limiter",
		},
		[]string{"type"},
	)

	// EscalationsTotal counts escalation levels fired, by level.
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alarms",
			Name:      "escalations_total",
			Help:      "Escalation notifications fired",
		},
		[]string{"level"},
	)
)

// Aircraft tracker metrics
var (
	// AircraftTracked tracks aircraft inside the tracking radius.
	AircraftTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "aircraft_tracked",
			Help:      "Aircraft currently inside the tracking radius",
		},
	)

	// StateTransitionsTotal counts operational-state transitions, by new state.
	StateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "state_transitions_total",
			Help:      "Aircraft operational-state transitions",
		},
		[]string{"state"},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks concurrent HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)
