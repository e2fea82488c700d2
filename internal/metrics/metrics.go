// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

// Package metrics declares the Prometheus metrics exported on /metrics.
//
// Instrumentation covers:
//   - HTTP request latency and throughput
//   - Guard decisions per clause
//   - Auth flow commands and transitions
//   - Backend calls, the circuit breaker and the role cache
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenpo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenpo_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenpo_http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Guard Metrics
	GuardDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenpo_guard_decisions_total",
			Help: "Access guard decisions by deciding clause and outcome",
		},
		[]string{"clause", "kind"}, // kind: allow, redirect, not_found
	)

	SessionRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenpo_session_refresh_total",
			Help: "Session refresh attempts by outcome",
		},
		[]string{"outcome"}, // refreshed, expired, error
	)

	// Auth Flow Metrics
	AuthFlowCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenpo_authflow_commands_total",
			Help: "Auth flow commands by outcome",
		},
		[]string{"command", "outcome"},
	)

	AuthFlowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenpo_authflow_transitions_total",
			Help: "Auth flow mode transitions",
		},
		[]string{"from", "to"},
	)

	FlowStoreCleanupRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tenpo_flow_store_cleanup_removed_total",
			Help: "Expired flow states removed by the cleanup service",
		},
	)

	CaptchaVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenpo_captcha_verifications_total",
			Help: "Turnstile token verifications by outcome",
		},
		[]string{"outcome"},
	)

	// Backend Metrics
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenpo_backend_requests_total",
			Help: "Backend API calls by operation and result code",
		},
		[]string{"operation", "code"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenpo_backend_request_duration_seconds",
			Help:    "Backend API call latency in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tenpo_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenpo_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Role Cache Metrics
	RoleCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenpo_role_cache_hits_total",
			Help: "Role cache hits",
		},
		[]string{"backend"},
	)

	RoleCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenpo_role_cache_misses_total",
			Help: "Role cache misses",
		},
		[]string{"backend"},
	)

	// Analytics Event Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenpo_events_published_total",
			Help: "Analytics events published by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)
)

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordGuardDecision counts a guard decision.
func RecordGuardDecision(clause, kind string) {
	GuardDecisionsTotal.WithLabelValues(clause, kind).Inc()
}

// RecordBackendRequest records a backend call. code is "ok" on success.
func RecordBackendRequest(operation, code string, duration time.Duration) {
	BackendRequestsTotal.WithLabelValues(operation, code).Inc()
	BackendRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFlowCommand counts an auth flow command outcome.
func RecordFlowCommand(command, outcome string) {
	AuthFlowCommandsTotal.WithLabelValues(command, outcome).Inc()
}

// RecordFlowTransition counts a mode change.
func RecordFlowTransition(from, to string) {
	AuthFlowTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordRoleCache records a role cache lookup.
func RecordRoleCache(backend string, hit bool) {
	if hit {
		RoleCacheHits.WithLabelValues(backend).Inc()
	} else {
		RoleCacheMisses.WithLabelValues(backend).Inc()
	}
}
