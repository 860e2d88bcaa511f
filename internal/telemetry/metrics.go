/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API metrics
var (
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkintime_api_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkintime_api_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkintime_api_active_connections",
		Help: "In-flight HTTP requests.",
	})
)

// Database metrics
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkintime_database_query_duration_seconds",
		Help:    "Database operation latency by operation and table.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkintime_database_errors_total",
		Help: "Failed database operations.",
	}, []string{"operation", "error_type"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkintime_database_connections_active",
		Help: "Open database connections.",
	})
)

// Compilation metrics
var (
	CompileRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkintime_compile_runs_total",
		Help: "Compile passes by result (success, failed, skipped).",
	}, []string{"result"})

	CompileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inkintime_compile_duration_seconds",
		Help:    "Wall time of successful compile passes.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	CompileLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkintime_compile_last_success_timestamp_seconds",
		Help: "Unix time of the last successful compile pass.",
	})

	BufferLocked = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inkintime_buffer_locked",
		Help: "1 while the slot buffer is locked.",
	}, []string{"role"})

	SlotsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkintime_slots_generated_total",
		Help: "Slots inserted by the compiler per appointment label.",
	}, []string{"label"})

	SlotsMarkedUnavailableTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkintime_slots_marked_unavailable_total",
		Help: "Slot rows matched by busy events.",
	})

	SlotsCleanedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkintime_slots_cleaned_total",
		Help: "Stale slots removed by cleanup.",
	})

	SlotsPublished = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkintime_slots_published",
		Help: "Rows in the published slot table after the last pass.",
	})
)

// Calendar source metrics
var (
	CalendarFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkintime_calendar_fetch_errors_total",
		Help: "Failed busy-event fetches by source.",
	}, []string{"source"})

	CalendarEvents = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inkintime_calendar_events",
		Help: "Busy events read from each source in the last pass.",
	}, []string{"source"})
)

// Cluster metrics
var (
	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inkintime_leader_election_status",
		Help: "1 when this instance holds the compile leadership.",
	}, []string{"instance_id"})

	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkintime_leader_election_changes_total",
		Help: "Leadership transitions by type (acquired, lost).",
	}, []string{"type"})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkintime_cache_hits_total",
		Help: "Cache hits by cache type.",
	}, []string{"cache_type"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkintime_cache_misses_total",
		Help: "Cache misses by cache type.",
	}, []string{"cache_type"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkintime_events_published_total",
		Help: "Events fanned out to the message bus by type.",
	}, []string{"event_type"})

	EventPublishErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkintime_event_publish_errors_total",
		Help: "Events the message bus rejected by type.",
	}, []string{"event_type"})
)

// Handler exposes metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetBufferLocked mirrors a buffer's lock flag into BufferLocked.
func SetBufferLocked(role string, locked bool) {
	v := 0.0
	if locked {
		v = 1
	}
	BufferLocked.WithLabelValues(role).Set(v)
}
