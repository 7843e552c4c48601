package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	// Session lifecycle
	SessionsActive     prometheus.Gauge
	SessionsCreated    prometheus.Counter
	SessionsTerminated prometheus.Counter
	SessionsReaped     prometheus.Counter

	// Command execution
	CommandsTotal   *prometheus.CounterVec
	CommandDuration prometheus.Histogram
	OutputBytes     prometheus.Counter
	BatchSize       prometheus.Histogram

	// HTTP surface
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// WebSocket attach streams
	StreamsActive prometheus.Gauge

	startTime time.Time
	Uptime    prometheus.GaugeFunc
}

// NewMetrics creates a metrics collector registered against reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	m.SessionsActive = factory.NewGauge(prometheus.GaugeOpts{
		Name: "luavm_sessions_active",
		Help: "Number of registered interpreter sessions",
	})
	m.SessionsCreated = factory.NewCounter(prometheus.CounterOpts{
		Name: "luavm_sessions_created_total",
		Help: "Total sessions created",
	})
	m.SessionsTerminated = factory.NewCounter(prometheus.CounterOpts{
		Name: "luavm_sessions_terminated_total",
		Help: "Total sessions terminated",
	})
	m.SessionsReaped = factory.NewCounter(prometheus.CounterOpts{
		Name: "luavm_sessions_reaped_total",
		Help: "Total dead sessions removed by cleanup",
	})

	m.CommandsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "luavm_commands_total",
		Help: "Total commands executed through stabilization",
	}, []string{"status"})
	m.CommandDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "luavm_command_duration_seconds",
		Help:    "Command execution duration in seconds",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})
	m.OutputBytes = factory.NewCounter(prometheus.CounterOpts{
		Name: "luavm_output_bytes_total",
		Help: "Total interpreter output bytes returned by commands",
	})
	m.BatchSize = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "luavm_batch_size",
		Help:    "Number of sessions per batch execution",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})

	m.RequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "luavm_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})
	m.RequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "luavm_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path"})

	m.StreamsActive = factory.NewGauge(prometheus.GaugeOpts{
		Name: "luavm_streams_active",
		Help: "Number of active WebSocket attach streams",
	})

	m.Uptime = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "luavm_uptime_seconds",
		Help: "Process uptime in seconds",
	}, func() float64 { return time.Since(m.startTime).Seconds() })

	return m
}

// RecordSessionCreated tracks a new session.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionRemoved tracks a terminated-and-unregistered session.
func (m *Metrics) RecordSessionRemoved() {
	m.SessionsTerminated.Inc()
	m.SessionsActive.Dec()
}

// RecordSessionsReaped tracks dead sessions removed by cleanup.
func (m *Metrics) RecordSessionsReaped(n int) {
	m.SessionsReaped.Add(float64(n))
	m.SessionsTerminated.Add(float64(n))
	m.SessionsActive.Sub(float64(n))
}

// RecordCommand tracks one stabilization-based execution.
func (m *Metrics) RecordCommand(status string, duration time.Duration, outputBytes int) {
	m.CommandsTotal.WithLabelValues(status).Inc()
	m.CommandDuration.Observe(duration.Seconds())
	m.OutputBytes.Add(float64(outputBytes))
}

// RecordBatch tracks a batch execution fan-out.
func (m *Metrics) RecordBatch(size int) {
	m.BatchSize.Observe(float64(size))
}

// RecordHTTPRequest tracks one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
