package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/loan-query-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	approvalActions   *prometheus.CounterVec
	chatMessages      *prometheus.CounterVec
	fallbackWrites    *prometheus.CounterVec
	legacyCacheLookup *prometheus.CounterVec
	reconcileJobs     *prometheus.CounterVec
	realtimeChannels  prometheus.Gauge

	requestCount         uint64
	requestDurationTotal uint64
	legacyHits           uint64
	legacyMisses         uint64
	fallbackCount        uint64
	channelCount         int64
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

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "query_transitions_total",
		Help: "Query status transitions by target status",
	}, []string{"status"})

	approvalActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "approval_actions_total",
		Help: "Approval request actions by action and result",
	}, []string{"action", "result"})

	chatMessages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Chat messages stored by destination",
	}, []string{"destination"})

	fallbackWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fallback_writes_total",
		Help: "Writes diverted to the in-memory fallback store",
	}, []string{"entity"})

	legacyCacheLookup := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "legacy_chat_cache_lookups_total",
		Help: "Legacy chat cache lookups by result",
	}, []string{"result"})

	reconcileJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_jobs_total",
		Help: "Fallback reconciliation jobs by kind and result",
	}, []string{"kind", "result"})

	realtimeChannels := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_channels",
		Help: "Open realtime push channels",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitions, approvalActions, chatMessages,
		fallbackWrites, legacyCacheLookup, reconcileJobs, realtimeChannels, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		transitions:       transitions,
		approvalActions:   approvalActions,
		chatMessages:      chatMessages,
		fallbackWrites:    fallbackWrites,
		legacyCacheLookup: legacyCacheLookup,
		reconcileJobs:     reconcileJobs,
		realtimeChannels:  realtimeChannels,
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

// RecordTransition counts a query entering status.
func (m *MetricsService) RecordTransition(status models.QueryStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(status)).Inc()
}

// RecordApprovalAction counts one bulk action item.
func (m *MetricsService) RecordApprovalAction(action string, success bool) {
	if m == nil {
		return
	}
	result := "failed"
	if success {
		result = "ok"
	}
	m.approvalActions.WithLabelValues(action, result).Inc()
}

// RecordChatMessage counts a stored message by destination (persisted, fallback, duplicate).
func (m *MetricsService) RecordChatMessage(destination string) {
	if m == nil {
		return
	}
	m.chatMessages.WithLabelValues(destination).Inc()
}

// RecordFallbackWrite counts a write that degraded to memory.
func (m *MetricsService) RecordFallbackWrite(entity string) {
	if m == nil {
		return
	}
	m.fallbackWrites.WithLabelValues(entity).Inc()
	atomic.AddUint64(&m.fallbackCount, 1)
}

// RecordCacheOperation records a legacy cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.legacyCacheLookup.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.legacyHits, 1)
		return
	}
	m.legacyCacheLookup.WithLabelValues("miss").Inc()
	atomic.AddUint64(&m.legacyMisses, 1)
}

// RecordReconcile counts a reconciliation job outcome.
func (m *MetricsService) RecordReconcile(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reconcileJobs.WithLabelValues(kind, result).Inc()
}

// SetRealtimeChannels reports the number of open push channels.
func (m *MetricsService) SetRealtimeChannels(n int) {
	if m == nil {
		return
	}
	m.realtimeChannels.Set(float64(n))
	atomic.StoreInt64(&m.channelCount, int64(n))
}

// Snapshot returns aggregated metrics suitable for the ops endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		LegacyCacheHits:          atomic.LoadUint64(&m.legacyHits),
		LegacyCacheMisses:        atomic.LoadUint64(&m.legacyMisses),
		FallbackWrites:           atomic.LoadUint64(&m.fallbackCount),
		RealtimeChannels:         atomic.LoadInt64(&m.channelCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
