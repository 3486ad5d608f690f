package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSession(t *testing.T) {
	m := NewSessionMonitor()
	m.ObserveSession("user_stop", 40, 2)
	m.ObserveSession("user_stop", 10, 0.5)
	m.ObserveSession("end_of_stream", 5, 0.25)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsCounter.WithLabelValues("user_stop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsCounter.WithLabelValues("end_of_stream")))
	assert.Equal(t, 55.0, testutil.ToFloat64(m.framesCounter))
	assert.Equal(t, 1, testutil.CollectAndCount(m.durationHistogram))
}

func TestObserveStartError(t *testing.T) {
	m := NewSessionMonitor()
	m.ObserveStartError("not_implemented")
	m.ObserveStartError("not_implemented")
	m.ObserveStartError("")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.startErrorsCounter.WithLabelValues("not_implemented")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.startErrorsCounter))
}

func TestWriteTextfile(t *testing.T) {
	m := NewSessionMonitor()
	m.ObserveSession("source_lost", 3, 1)

	path := filepath.Join(t.TempDir(), "camrec.prom")
	require.NoError(t, m.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `camrec_sessions_total{result="source_lost"} 1`)
	assert.Contains(t, string(b), "camrec_frames_written_total 3")

	require.NoError(t, m.WriteTextfile(""))
}

func TestNilMonitorIsSafe(t *testing.T) {
	var m *SessionMonitor
	m.ObserveStartError("sink_unavailable")
	m.ObserveSession("user_stop", 1, 1)
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetricNames(t *testing.T) {
	m := NewSessionMonitor()
	m.ObserveSession("user_stop", 1, 1)
	m.ObserveStartError("no_selection")

	expected := `
# HELP camrec_start_errors_total Number of rejected start requests by error kind
# TYPE camrec_start_errors_total counter
camrec_start_errors_total{kind="no_selection"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "camrec_start_errors_total"))
}
