// Package metrics provides Prometheus metrics for the session gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "session_gateway"

var (
	// SessionsEstablished counts login attempts by result.
	SessionsEstablished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_established_total",
			Help:      "Total number of session establishment attempts",
		},
		[]string{"result"},
	)

	// SessionResolves counts session resolution outcomes.
	SessionResolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_resolve_total",
			Help:      "Total number of session resolutions",
		},
		[]string{"result"},
	)

	// CSRFRejected counts state-changing requests refused for a bad token.
	CSRFRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "csrf_rejected_total",
			Help:      "Total number of requests rejected for an invalid CSRF token",
		},
	)

	// StoreRequests counts session store calls by operation and result.
	StoreRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_requests_total",
			Help:      "Total number of session store requests",
		},
		[]string{"op", "result"},
	)

	// StoreDuration measures session store call latency.
	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_request_duration_seconds",
			Help:      "Duration of session store requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// OnboardingTransitions counts applied onboarding moves by target state.
	OnboardingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "onboarding_transitions_total",
			Help:      "Total number of onboarding transitions applied",
		},
		[]string{"to"},
	)
)

// RecordStore records one store call.
func RecordStore(op, result string, seconds float64) {
	StoreRequests.WithLabelValues(op, result).Inc()
	StoreDuration.WithLabelValues(op).Observe(seconds)
}
