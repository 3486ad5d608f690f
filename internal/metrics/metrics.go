// Package metrics counts recording sessions and writes them to a
// node-exporter textfile.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SessionMonitor holds the session counters. A nil *SessionMonitor ignores
// every call.
type SessionMonitor struct {
	registry *prometheus.Registry

	sessionsCounter    *prometheus.CounterVec
	framesCounter      prometheus.Counter
	startErrorsCounter *prometheus.CounterVec
	durationHistogram  prometheus.Histogram
}

func NewSessionMonitor() *SessionMonitor {
	m := &SessionMonitor{registry: prometheus.NewRegistry()}

	m.sessionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camrec",
		Name:      "sessions_total",
		Help:      "Number of finished recording sessions by stop reason",
	}, []string{"result"}) // result: user_stop, end_of_stream, source_lost, sink_failed, cancelled, shutdown

	m.framesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "camrec",
		Name:      "frames_written_total",
		Help:      "Number of frames handed to the encoder",
	})

	m.startErrorsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camrec",
		Name:      "start_errors_total",
		Help:      "Number of rejected start requests by error kind",
	}, []string{"kind"})

	m.durationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "camrec",
		Name:      "session_duration_seconds",
		Help:      "Wall-clock length of finished recording sessions",
		Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
	})

	m.registry.MustRegister(m.sessionsCounter, m.framesCounter, m.startErrorsCounter, m.durationHistogram)
	return m
}

// ObserveStartError counts a start request rejected with kind.
func (m *SessionMonitor) ObserveStartError(kind string) {
	if m == nil || kind == "" {
		return
	}
	m.startErrorsCounter.With(prometheus.Labels{"kind": kind}).Inc()
}

// ObserveSession counts a finished session.
func (m *SessionMonitor) ObserveSession(result string, frames int, seconds float64) {
	if m == nil {
		return
	}
	m.sessionsCounter.With(prometheus.Labels{"result": result}).Inc()
	m.framesCounter.Add(float64(frames))
	m.durationHistogram.Observe(seconds)
}

// WriteTextfile writes every metric to path in the Prometheus text format.
// An empty path is a no-op.
func (m *SessionMonitor) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Registry exposes the underlying registry.
func (m *SessionMonitor) Registry() *prometheus.Registry {
	return m.registry
}
