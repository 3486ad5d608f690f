package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiroq/camrec/internal/ipc"
	"github.com/tiroq/camrec/internal/media"
	"github.com/tiroq/camrec/internal/pidfile"
	"github.com/tiroq/camrec/internal/recorder"
	"github.com/tiroq/camrec/internal/statemachine"
)

// fakeCore makes this test process look like a live daemon in the given
// state.
func fakeCore(t *testing.T, state statemachine.State) {
	t.Helper()
	path := pidfile.GetPIDFilePath(coreApp)
	if _, ok := pidfile.Running(path); !ok {
		pf, err := pidfile.New(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = pf.Remove() })
	}

	snap := recorder.Snapshot{State: state}
	if state == statemachine.StateRecording {
		snap.Kind = media.SourceCamera
		snap.OutputPath = "/tmp/clip.avi"
		snap.Frames = 42
		snap.StartedAt = time.Now().Add(-90 * time.Second)
		snap.Elapsed = 90 * time.Second
		snap.Sessions = 2
	}
	require.NoError(t, ipc.WriteStatus(ipc.NewStatus(snap, "start")))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func pendingCommand(t *testing.T) (ipc.Command, bool) {
	t.Helper()
	cmd, ok, err := ipc.ReadCommand()
	require.NoError(t, err)
	return cmd, ok
}

func TestStartSendsCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	fakeCore(t, statemachine.StateIdle)
	dest := filepath.Join(t.TempDir(), "clip.avi")

	_, err := execute(t, "start", "--source", "camera", "--output", dest)
	require.NoError(t, err)

	cmd, ok := pendingCommand(t)
	require.True(t, ok)
	assert.Equal(t, ipc.CmdStart, cmd.Verb)
	assert.Equal(t, media.SourceCamera, cmd.Source)
	assert.Equal(t, dest, cmd.Path)
}

func TestStartResolvesDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	fakeCore(t, statemachine.StateIdle)
	dir := t.TempDir()

	_, err := execute(t, "start", "-o", dir)
	require.NoError(t, err)

	cmd, ok := pendingCommand(t)
	require.True(t, ok)
	assert.Equal(t, dir, filepath.Dir(cmd.Path))
	assert.Equal(t, ".avi", filepath.Ext(cmd.Path))
}

func TestStartAddsDefaultExtension(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	fakeCore(t, statemachine.StateIdle)
	base := filepath.Join(t.TempDir(), "clip")

	_, err := execute(t, "start", "-o", base)
	require.NoError(t, err)

	cmd, ok := pendingCommand(t)
	require.True(t, ok)
	assert.Equal(t, base+".avi", cmd.Path)
}

func TestStartPassesWindowSelection(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	fakeCore(t, statemachine.StateIdle)

	_, err := execute(t, "start", "--source", "window", "--window", "window-2", "-o", filepath.Join(t.TempDir(), "w.avi"))
	require.NoError(t, err)

	cmd, ok := pendingCommand(t)
	require.True(t, ok)
	assert.Equal(t, media.SourceWindow, cmd.Source)
	assert.Equal(t, "window-2", cmd.Window)
}

func TestStartRejected(t *testing.T) {
	tests := []struct {
		name  string
		state statemachine.State
		core  bool
		args  []string
		want  error
	}{
		{name: "while recording", state: statemachine.StateRecording, core: true, args: []string{"start", "-o", "/tmp/a.avi"}, want: errStartDisabled},
		{name: "no daemon", core: false, args: []string{"start", "-o", "/tmp/a.avi"}, want: errCoreNotRunning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			if tt.core {
				fakeCore(t, tt.state)
			}

			_, err := execute(t, tt.args...)
			assert.ErrorIs(t, err, tt.want)

			_, ok := pendingCommand(t)
			assert.False(t, ok)
		})
	}
}

func TestStartUnknownSource(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	fakeCore(t, statemachine.StateIdle)

	_, err := execute(t, "start", "--source", "screen", "-o", "/tmp/a.avi")
	assert.Error(t, err)
}

func TestStopGatedOnRecording(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	fakeCore(t, statemachine.StateIdle)

	_, err := execute(t, "stop")
	assert.ErrorIs(t, err, errStopDisabled)

	fakeCore(t, statemachine.StateRecording)
	_, err = execute(t, "stop")
	require.NoError(t, err)

	cmd, ok := pendingCommand(t)
	require.True(t, ok)
	assert.Equal(t, ipc.CmdStop, cmd.Verb)
}

func TestQuit(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := execute(t, "quit")
	assert.ErrorIs(t, err, errCoreNotRunning)

	fakeCore(t, statemachine.StateIdle)
	_, err = execute(t, "quit")
	require.NoError(t, err)

	cmd, ok := pendingCommand(t)
	require.True(t, ok)
	assert.Equal(t, ipc.CmdQuit, cmd.Verb)
}

func TestStatusPrintsControls(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	fakeCore(t, statemachine.StateRecording)

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "recording")
	assert.Contains(t, out, "/tmp/clip.avi")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "1m30s")
	assert.Regexp(t, `sessions:\s+2\n`, out)
	assert.Regexp(t, `controls:\s+stop\n`, out)
}

func TestStatusJSON(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	fakeCore(t, statemachine.StateIdle)

	out, err := execute(t, "status", "--json")
	require.NoError(t, err)

	var st ipc.StatusSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, statemachine.StateIdle, st.State)
	assert.True(t, st.Controls.StartEnabled)
	assert.False(t, st.Controls.StopEnabled)
}

func TestStatusWithoutDaemon(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := execute(t, "status")
	assert.ErrorIs(t, err, errCoreNotRunning)
}

func TestWindowsPlaceholder(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := execute(t, "windows")
	require.NoError(t, err)
	assert.Contains(t, out, "window-1")
	assert.Contains(t, out, "Window 2")
}

func TestControlsString(t *testing.T) {
	assert.Equal(t, "start", controls(ipc.ControlsFor(statemachine.StateIdle)))
	assert.Equal(t, "stop", controls(ipc.ControlsFor(statemachine.StateRecording)))
	assert.Equal(t, "none", controls(ipc.Controls{}))
}
