package statemachine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiroq/camrec/internal/media"
)

func TestNewStateMachine_StartsIdle(t *testing.T) {
	sm := NewStateMachine()
	assert.Equal(t, StateIdle, sm.State())
	assert.False(t, sm.IsRecording())
	assert.Zero(t, sm.RecordingDuration())
	assert.Empty(t, sm.SessionID())
}

func TestBeginEnd_Lifecycle(t *testing.T) {
	sm := NewStateMachine()

	id, err := sm.Begin(media.SourceCamera, "/tmp/out.avi")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, StateRecording, sm.State())
	assert.Equal(t, media.SourceCamera, sm.SourceKind())
	assert.Equal(t, "/tmp/out.avi", sm.OutputPath())
	assert.Equal(t, id, sm.SessionID())
	assert.WithinDuration(t, time.Now(), sm.StartedAt(), time.Second)

	require.NoError(t, sm.End(ReasonEndOfStream))
	assert.Equal(t, StateIdle, sm.State())
	assert.Equal(t, ReasonEndOfStream, sm.LastReason())
	assert.Equal(t, id, sm.SessionID(), "finished session stays readable")
	assert.Zero(t, sm.RecordingDuration())
}

func TestBegin_RejectsWhileRecording(t *testing.T) {
	sm := NewStateMachine()
	id, err := sm.Begin(media.SourceCamera, "/tmp/a.avi")
	require.NoError(t, err)

	_, err = sm.Begin(media.SourceWindow, "/tmp/b.avi")
	assert.ErrorIs(t, err, media.ErrAlreadyRecording)

	// active session untouched
	assert.Equal(t, id, sm.SessionID())
	assert.Equal(t, media.SourceCamera, sm.SourceKind())
	assert.Equal(t, "/tmp/a.avi", sm.OutputPath())
	assert.Equal(t, 1, sm.Sessions())
}

func TestEnd_WhenIdle(t *testing.T) {
	sm := NewStateMachine()
	assert.Error(t, sm.End(ReasonUserStop))
	assert.Equal(t, StateIdle, sm.State())
}

func TestBegin_NewSessionIDEachTime(t *testing.T) {
	sm := NewStateMachine()
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		id, err := sm.Begin(media.SourceCamera, "/tmp/x.avi")
		require.NoError(t, err)
		assert.False(t, seen[id], "session id reused")
		seen[id] = true
		require.NoError(t, sm.End(ReasonUserStop))
	}
	assert.Equal(t, 3, sm.Sessions())
}
