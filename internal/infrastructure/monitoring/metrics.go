package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session lifecycle metrics
	SessionsActive  prometheus.Gauge
	SessionsStarted prometheus.Counter
	BootFailures    *prometheus.CounterVec
	Restarts        prometheus.Counter
	RestartFailures prometheus.Counter
	ChildSpawns     prometheus.Counter
	SessionsClosed  prometheus.Counter
	CloseDeclined   prometheus.Counter

	// Store metrics
	SpawnDuration *prometheus.HistogramVec
	BreakerOpen   *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	registry *prometheus.Registry

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests  int64
	TotalErrors    int64
	ActiveSessions int64
	TotalDuration  float64 // sum of all request durations
	RequestCount   int64   // count for averaging
}

// NewMetrics creates a new metrics collector on its own registry, so
// several collectors can coexist in one process (tests build one per server).
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		startTime: time.Now(),
		registry:  registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_sessions_active",
				Help: "Number of sessions currently registered",
			},
		),
		SessionsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_sessions_started_total",
				Help: "Total number of sessions started",
			},
		),
		BootFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_session_boot_failures_total",
				Help: "Total number of session boot failures",
			},
			[]string{"adapter"},
		),
		Restarts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_session_restarts_total",
				Help: "Total number of session restarts",
			},
		),
		RestartFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_session_restart_failures_total",
				Help: "Total number of failed session restarts",
			},
		),
		ChildSpawns: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_session_child_spawns_total",
				Help: "Total number of child sessions spawned",
			},
		),
		SessionsClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_sessions_closed_total",
				Help: "Total number of sessions closed",
			},
		),
		CloseDeclined: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_session_close_declined_total",
				Help: "Total number of close confirmations declined",
			},
		),

		SpawnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_adapter_spawn_duration_seconds",
				Help:    "Adapter process spawn duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"adapter"},
		),
		BreakerOpen: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_adapter_breaker_open_total",
				Help: "Total number of spawns rejected by an open circuit breaker",
			},
			[]string{"adapter"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_uptime_seconds",
				Help: "Backend uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SetSessionsActive sets the number of registered sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// IncSessionsStarted increments the sessions started counter
func (m *Metrics) IncSessionsStarted() {
	m.SessionsStarted.Inc()
}

// IncBootFailures records a boot failure for an adapter
func (m *Metrics) IncBootFailures(adapter string) {
	m.BootFailures.WithLabelValues(adapter).Inc()
}

// RecordSpawn records an adapter process spawn duration
func (m *Metrics) RecordSpawn(adapter string, duration time.Duration) {
	m.SpawnDuration.WithLabelValues(adapter).Observe(duration.Seconds())
}

// IncBreakerOpen records a spawn rejected by an open breaker
func (m *Metrics) IncBreakerOpen(adapter string) {
	m.BreakerOpen.WithLabelValues(adapter).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Registry returns the backing registry for the Prometheus scrape handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Snapshot returns the current snapshot values for the JSON metrics API
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
