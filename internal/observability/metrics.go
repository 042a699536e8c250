package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pdxquery"

// Metrics records session activity. Each Metrics owns its registry so that
// tests and the serve command never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	streamMessages prometheus.Counter
	loadDuration   prometheus.Histogram
}

// NewMetrics creates and registers the session metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "requests_total",
				Help:      "Total session requests.",
			},
			[]string{"op", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "request_duration_seconds",
				Help:      "Session request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		streamMessages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "stream_messages_total",
				Help:      "Entry and batch messages written by section streams.",
			},
		),
		loadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "load_duration_seconds",
				Help:      "Time spent reading and parsing the save before serving.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
	}
	m.registry.MustRegister(m.requests, m.duration, m.streamMessages, m.loadDuration)
	return m
}

// RecordRequest counts one handled request.
func (m *Metrics) RecordRequest(op string, ok bool, duration time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.requests.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordStreamMessage counts one entry or batch message of a stream.
func (m *Metrics) RecordStreamMessage() {
	m.streamMessages.Inc()
}

// RecordLoad records how long the save took to load.
func (m *Metrics) RecordLoad(duration time.Duration) {
	m.loadDuration.Observe(duration.Seconds())
}

// Registry returns the registry holding the session metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the metrics in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
