// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the rollcall authentication core.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LatencyBuckets covers request latencies from 5ms to 5s. Login requests
// sit near the upper end because of bcrypt.
var LatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollcall_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LatencyBuckets,
		},
		[]string{"method"},
	)

	// LoginAttemptsTotal counts login outcomes: issued, invalid_credentials,
	// rate_limited, error.
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// RegistrationsTotal counts register outcomes: created, conflict, invalid.
	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_registrations_total",
			Help: "Account registrations by outcome",
		},
		[]string{"outcome"},
	)

	// TokenVerificationsTotal counts gate token checks: valid, invalid, missing.
	TokenVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_token_verifications_total",
			Help: "Token verifications by result",
		},
		[]string{"result"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"route"},
	)

	// RateLimitBuckets tracks the number of live per-client buckets.
	RateLimitBuckets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rollcall_ratelimit_buckets",
			Help: "Rate limit buckets held in memory",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		LoginAttemptsTotal,
		RegistrationsTotal,
		TokenVerificationsTotal,
		RateLimitRejectedTotal,
		RateLimitBuckets,
	)
}
