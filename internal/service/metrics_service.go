package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studyflow/studyflow-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides
// lightweight snapshots for the ops endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	allocations       prometheus.Counter
	sessionsPlaced    prometheus.Counter
	overloadedTopics  prometheus.Counter
	conflictsDetected prometheus.Counter
	conflictsResolved *prometheus.CounterVec
	redistributed     prometheus.Counter
	sweeperRuns       prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	allocationCount      uint64
	conflictCount        uint64
	resolvedCount        uint64
	redistributedCount   uint64
	overloadedCount      uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	allocations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_allocations_total",
		Help: "Total full allocation runs",
	})

	sessionsPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_sessions_placed_total",
		Help: "Total sessions emitted by allocation runs",
	})

	overloadedTopics := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_overloaded_topics_total",
		Help: "Total topics reported as overloaded",
	})

	conflictsDetected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_conflicts_detected_total",
		Help: "Total conflicts found by detection sweeps",
	})

	conflictsResolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_conflicts_resolved_total",
		Help: "Total conflict resolution attempts by outcome",
	}, []string{"outcome"})

	redistributed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_sessions_redistributed_total",
		Help: "Total sessions created by missed-session redistribution",
	})

	sweeperRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_sweeper_runs_total",
		Help: "Total missed-session sweeper executions",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		allocations, sessionsPlaced, overloadedTopics, conflictsDetected, conflictsResolved, redistributed, sweeperRuns, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		allocations:       allocations,
		sessionsPlaced:    sessionsPlaced,
		overloadedTopics:  overloadedTopics,
		conflictsDetected: conflictsDetected,
		conflictsResolved: conflictsResolved,
		redistributed:     redistributed,
		sweeperRuns:       sweeperRuns,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache set operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordAllocation tracks a full allocation run's output.
func (m *MetricsService) RecordAllocation(sessions, overloaded int) {
	if m == nil {
		return
	}
	m.allocations.Inc()
	m.sessionsPlaced.Add(float64(sessions))
	m.overloadedTopics.Add(float64(overloaded))
	atomic.AddUint64(&m.allocationCount, 1)
	atomic.AddUint64(&m.overloadedCount, uint64(overloaded))
}

// RecordConflictsDetected tracks conflicts surfaced by a detection sweep.
func (m *MetricsService) RecordConflictsDetected(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.conflictsDetected.Add(float64(count))
	atomic.AddUint64(&m.conflictCount, uint64(count))
}

// RecordConflictResolution tracks a resolution attempt by outcome.
func (m *MetricsService) RecordConflictResolution(resolved bool) {
	if m == nil {
		return
	}
	outcome := "unresolvable"
	if resolved {
		outcome = "resolved"
		atomic.AddUint64(&m.resolvedCount, 1)
	}
	m.conflictsResolved.WithLabelValues(outcome).Inc()
}

// RecordRedistribution tracks sessions emitted by missed-session handling.
func (m *MetricsService) RecordRedistribution(sessions, overloaded int) {
	if m == nil {
		return
	}
	m.redistributed.Add(float64(sessions))
	m.overloadedTopics.Add(float64(overloaded))
	atomic.AddUint64(&m.redistributedCount, uint64(sessions))
	atomic.AddUint64(&m.overloadedCount, uint64(overloaded))
}

// RecordSweeperRun tracks a missed-session sweeper execution.
func (m *MetricsService) RecordSweeperRun() {
	if m == nil {
		return
	}
	m.sweeperRuns.Inc()
}

// Snapshot returns aggregated metrics suitable for the ops endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:              cacheRatio,
		CacheHits:                  hits,
		CacheMisses:                misses,
		RequestsTotal:              requests,
		AverageRequestDurationMs:   avgRequestMs,
		AllocationsTotal:           atomic.LoadUint64(&m.allocationCount),
		ConflictsDetectedTotal:     atomic.LoadUint64(&m.conflictCount),
		ConflictsResolvedTotal:     atomic.LoadUint64(&m.resolvedCount),
		SessionsRedistributedTotal: atomic.LoadUint64(&m.redistributedCount),
		OverloadedTopicsTotal:      atomic.LoadUint64(&m.overloadedCount),
		Goroutines:                 runtime.NumGoroutine(),
		GeneratedAt:                time.Now().UTC(),
	}
}
