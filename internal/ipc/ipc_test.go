package ipc

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiroq/camrec/internal/media"
	"github.com/tiroq/camrec/internal/recorder"
	"github.com/tiroq/camrec/internal/statemachine"
)

func TestCommandRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, WriteCommand(Start(media.SourceCamera, "/tmp/out.avi", "")))

	cmd, ok, err := ReadCommand()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, CmdStart, cmd.Verb)
	assert.Equal(t, media.SourceCamera, cmd.Source)
	assert.Equal(t, "/tmp/out.avi", cmd.Path)

	// consumed
	_, ok, err = ReadCommand()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadCommandMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, ok, err := ReadCommand()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadCommandIgnoresUnknownVerb(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.MkdirAll(Dir(), 0755))
	require.NoError(t, os.WriteFile(CommandPath(), []byte(`{"command":"toggle"}`), 0644))

	_, ok, err := ReadCommand()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadCommandRejectsGarbage(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.MkdirAll(Dir(), 0755))
	require.NoError(t, os.WriteFile(CommandPath(), []byte("start"), 0644))

	_, ok, err := ReadCommand()
	assert.Error(t, err)
	assert.False(t, ok)

	// cleared even when unparseable
	_, ok, err = ReadCommand()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestControlsFor(t *testing.T) {
	assert.Equal(t, Controls{StartEnabled: true, StopEnabled: false}, ControlsFor(statemachine.StateIdle))
	assert.Equal(t, Controls{StartEnabled: false, StopEnabled: true}, ControlsFor(statemachine.StateRecording))
}

func TestStatusRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	snap := recorder.Snapshot{
		State:      statemachine.StateRecording,
		Kind:       media.SourceCamera,
		OutputPath: "/tmp/out.avi",
		SessionID:  "abc",
		Elapsed:    1500 * time.Millisecond,
		Frames:     12,
		Width:      640,
		Height:     480,
		Sessions:   3,
	}
	require.NoError(t, WriteStatus(NewStatus(snap, "start")))

	got, err := ReadStatus()
	require.NoError(t, err)
	assert.True(t, got.Recording())
	assert.Equal(t, "abc", got.SessionID)
	assert.Equal(t, 12, got.Frames)
	assert.Equal(t, "start", got.LastAction)
	assert.Equal(t, Controls{StartEnabled: false, StopEnabled: true}, got.Controls)
	assert.Equal(t, os.Getpid(), got.PID)
	assert.Equal(t, int64(1500), got.ElapsedMs)
	assert.Equal(t, 3, got.Sessions)

	entries, err := os.ReadDir(Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".tmp", filepath.Ext(e.Name()), "temp file left behind")
	}
}

func TestStatusCarriesErrorKind(t *testing.T) {
	snap := recorder.Snapshot{State: statemachine.StateIdle, LastErrorKind: "not_implemented", LastError: "window capture: not implemented"}
	st := NewStatus(snap, "start")
	assert.False(t, st.Recording())
	assert.Equal(t, "not_implemented", st.LastErrorKind)
	assert.True(t, st.Controls.StartEnabled)
}

func TestReadStatusMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := ReadStatus()
	assert.True(t, os.IsNotExist(err))
}

func TestWatchCommandsDeliversCommands(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var mu sync.Mutex
	var got []Verb
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- WatchCommands(ctx, func(c Command) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, c.Verb)
		})
	}()

	received := func(n int) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) >= n
		}
	}

	// the watcher may not be registered yet; rewrite until it is seen
	require.Eventually(t, func() bool {
		_ = WriteCommand(Command{Verb: CmdStop})
		return received(1)()
	}, 5*time.Second, 200*time.Millisecond)

	require.NoError(t, WriteCommand(Command{Verb: CmdQuit}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got[len(got)-1] == CmdQuit
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not exit on cancel")
	}
}
