package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiroq/camrec/internal/config"
	"github.com/tiroq/camrec/internal/diaglog"
	"github.com/tiroq/camrec/internal/fileutil"
	"github.com/tiroq/camrec/internal/ipc"
	"github.com/tiroq/camrec/internal/media"
	"github.com/tiroq/camrec/internal/metrics"
	"github.com/tiroq/camrec/internal/recorder"
	"github.com/tiroq/camrec/internal/sink"
	"github.com/tiroq/camrec/internal/source"
	"github.com/tiroq/camrec/internal/statemachine"
	"github.com/tiroq/camrec/testutil"
)

func newTestDaemon(t *testing.T, frames int) (*daemon, *config.Config) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := config.Default()
	cfg.Encoder = string(sink.EncoderMJPEG)
	cfg.MetricsTextfile = filepath.Join(t.TempDir(), "camrec.prom")

	registry := &sink.Registry{Encoder: sink.EncoderMJPEG, JPEGQuality: cfg.JPEGQuality}
	selector := source.Selector{Camera: func() media.Source {
		return &testutil.FakeCamera{Size: testutil.Size{Width: 16, Height: 8}, Frames: frames}
	}}
	monitor := metrics.NewSessionMonitor()
	session := recorder.New(selector, registry, recorder.WithMetrics(monitor))
	return newDaemon(cfg, session, registry, diaglog.NewNoOp(), monitor), cfg
}

func TestDaemonStartRecordsAndWritesSidecar(t *testing.T) {
	d, cfg := newTestDaemon(t, 5)
	out := filepath.Join(t.TempDir(), "clip.avi")

	d.handleCommand(ipc.Start(media.SourceCamera, out, ""))
	d.sessions.Wait()

	st, err := ipc.ReadStatus()
	require.NoError(t, err)
	assert.Equal(t, statemachine.StateIdle, st.State)
	assert.Equal(t, 5, st.Frames)
	assert.Equal(t, statemachine.ReasonEndOfStream, st.LastReason)
	assert.Equal(t, "start", st.LastAction)
	assert.Equal(t, 1, st.Sessions)
	assert.True(t, st.Controls.StartEnabled)
	assert.False(t, st.Controls.StopEnabled)

	meta, err := fileutil.ReadMetadata(out)
	require.NoError(t, err)
	assert.Equal(t, 5, meta.Frames)
	assert.Equal(t, "MJPG", meta.Codec)
	assert.Equal(t, 16, meta.Width)
	assert.Equal(t, recorder.FrameRate, meta.FrameRate)
	assert.Equal(t, st.SessionID, meta.SessionID)
	assert.Equal(t, meta.EffectiveFrameRate(), meta.MeasuredFrameRate)

	prom, err := os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "camrec_frames_written_total 5")
}

func TestDaemonStartIntoDirectory(t *testing.T) {
	d, _ := newTestDaemon(t, 1)
	dir := t.TempDir()

	d.handleCommand(ipc.Start(media.SourceCamera, dir, ""))
	d.sessions.Wait()

	st, err := ipc.ReadStatus()
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(st.OutputPath))
	assert.FileExists(t, st.OutputPath)
}

func TestDaemonStartAddsDefaultExtension(t *testing.T) {
	d, _ := newTestDaemon(t, 2)
	base := filepath.Join(t.TempDir(), "clip")

	d.handleCommand(ipc.Start(media.SourceCamera, base, ""))
	d.sessions.Wait()

	st, err := ipc.ReadStatus()
	require.NoError(t, err)
	assert.Empty(t, st.LastErrorKind)
	assert.Equal(t, base+".avi", st.OutputPath)
	assert.FileExists(t, base+".avi")
}

func TestDaemonReportsRejectedStart(t *testing.T) {
	tests := []struct {
		name string
		cmd  ipc.Command
		kind string
	}{
		{name: "window", cmd: ipc.Start(media.SourceWindow, "/tmp/x.avi", "window-1"), kind: "not_implemented"},
		{name: "no path", cmd: ipc.Start(media.SourceCamera, "", ""), kind: "no_selection"},
		{name: "bad container", cmd: ipc.Start(media.SourceCamera, "/tmp/x.mov", ""), kind: "sink_unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDaemon(t, 1)

			d.handleCommand(tt.cmd)
			d.sessions.Wait()

			st, err := ipc.ReadStatus()
			require.NoError(t, err)
			assert.Equal(t, statemachine.StateIdle, st.State)
			assert.Equal(t, tt.kind, st.LastErrorKind)
			assert.True(t, st.Controls.StartEnabled)
		})
	}
}

func TestDaemonStopAndQuit(t *testing.T) {
	d, _ := newTestDaemon(t, -1)
	out := filepath.Join(t.TempDir(), "clip.avi")

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	d.handleCommand(ipc.Start(media.SourceCamera, out, ""))
	require.Eventually(t, func() bool {
		st, err := ipc.ReadStatus()
		return err == nil && st.Recording() && st.Controls.StopEnabled
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return d.session.Snapshot().Frames > 0
	}, 2*time.Second, 10*time.Millisecond)

	d.handleCommand(ipc.Command{Verb: ipc.CmdStop})
	require.Eventually(t, func() bool {
		return d.session.State() == statemachine.StateIdle
	}, 2*time.Second, 10*time.Millisecond)

	d.handleCommand(ipc.Command{Verb: ipc.CmdQuit})
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not quit")
	}

	st, err := ipc.ReadStatus()
	require.NoError(t, err)
	assert.Equal(t, "shutdown", st.LastAction)
	assert.Equal(t, statemachine.ReasonUserStop, st.LastReason)
	assert.FileExists(t, fileutil.MetadataPath(out))
}

func TestDaemonShutdownStopsRecording(t *testing.T) {
	d, _ := newTestDaemon(t, -1)
	out := filepath.Join(t.TempDir(), "clip.avi")

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	d.handleCommand(ipc.Start(media.SourceCamera, out, ""))
	require.Eventually(t, func() bool {
		return d.session.State() == statemachine.StateRecording
	}, 2*time.Second, 10*time.Millisecond)

	d.shutdown.Break()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
	}

	st, err := ipc.ReadStatus()
	require.NoError(t, err)
	assert.Equal(t, statemachine.StateIdle, st.State)
	assert.Equal(t, statemachine.ReasonShutdown, st.LastReason)
	assert.FileExists(t, out)
}
