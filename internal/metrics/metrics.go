// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

// Package metrics defines the Prometheus instrumentation for MedChain.
//
// Covered concerns:
//   - Document store connectivity (circuit breaker state, connect attempts)
//   - Fallback queue (depth, persist errors, replay outcomes)
//   - API endpoint latency and throughput
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection supervisor metrics

	// CircuitBreakerState tracks breaker state: 0=closed, 1=half-open, 2=open.
	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_circuit_breaker_state",
			Help: "Document store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_circuit_breaker_consecutive_failures",
			Help: "Consecutive failed connection probes against the document store",
		},
	)

	StoreConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_connect_attempts_total",
			Help: "Total document store connection attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "rejected"
	)

	StoreHealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_health_checks_total",
			Help: "Total document store health probes by outcome",
		},
		[]string{"outcome"}, // "healthy", "unhealthy"
	)

	// Fallback queue metrics

	FallbackQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fallback_queue_depth",
			Help: "Current number of buffered writes awaiting replay",
		},
	)

	FallbackPersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fallback_persist_errors_total",
			Help: "Total failures persisting the fallback queue snapshot to disk",
		},
	)

	FallbackEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_enqueued_total",
			Help: "Total writes buffered to the fallback queue by collection",
		},
		[]string{"collection"},
	)

	FallbackReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_replays_total",
			Help: "Total replay attempts by outcome",
		},
		[]string{"outcome"}, // "success", "already_synced", "failure", "dropped"
	)

	// API endpoint metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordConnectAttempt records one connection attempt outcome.
func RecordConnectAttempt(outcome string) {
	StoreConnectAttempts.WithLabelValues(outcome).Inc()
}

// RecordHealthCheck records one health probe outcome.
func RecordHealthCheck(healthy bool) {
	outcome := "healthy"
	if !healthy {
		outcome = "unhealthy"
	}
	StoreHealthChecks.WithLabelValues(outcome).Inc()
}

// RecordReplay records one replay attempt outcome.
func RecordReplay(outcome string) {
	FallbackReplays.WithLabelValues(outcome).Inc()
}

// SetQueueDepth updates the fallback queue depth gauge.
func SetQueueDepth(n int) {
	FallbackQueueDepth.Set(float64(n))
}
