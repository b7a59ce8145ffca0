package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|reverification).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "athlos_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// PasscodesIssued counts one-time passcodes dispatched by trigger (signup|resend|reverification).
	PasscodesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "athlos_passcodes_issued_total",
			Help: "Total number of one-time passcodes issued",
		},
		[]string{"trigger"},
	)

	// PasscodeChecks counts passcode verification outcomes (success|invalid).
	PasscodeChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "athlos_passcode_checks_total",
			Help: "Total number of passcode verification attempts",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks active sessions (not expired/revoked).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "athlos_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "athlos_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
