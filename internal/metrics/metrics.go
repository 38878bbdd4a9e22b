// Package metrics defines Prometheus collectors for the secrets API server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// HTTP metrics (RED: Rate, Errors, Duration).
var (
	// HTTPRequestsTotal counts total HTTP requests by action and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretsmanager_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"action", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds by action.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secretsmanager_http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
)

// Domain metrics.
var (
	// OperationsTotal counts action invocations by name and outcome
	// ("success" or the apierr.APIError.Type on failure).
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretsmanager_operations_total",
			Help: "Secrets Manager operations by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// SecretsTotal is a gauge tracking the number of non-deleted secrets.
	SecretsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "secretsmanager_secrets_total",
			Help: "Total secrets not pending deletion",
		},
	)

	// VersionsTotal is a gauge tracking the number of secret versions stored.
	VersionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "secretsmanager_versions_total",
			Help: "Total secret versions across all secrets",
		},
	)

	// AuthFailuresTotal counts SigV4 verification failures by reason.
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretsmanager_auth_failures_total",
			Help: "SigV4 authentication failures by error type",
		},
		[]string{"reason"},
	)
)

// Register registers all Prometheus collectors with the default registry.
// Safe to call multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			OperationsTotal,
			SecretsTotal,
			VersionsTotal,
			AuthFailuresTotal,
		)
	})
}
