package statemachine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tiroq/camrec/internal/media"
)

// State is the recording session lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// StopReason records why a session ended.
type StopReason string

const (
	ReasonUserStop    StopReason = "user_stop"     // explicit stop request
	ReasonEndOfStream StopReason = "end_of_stream" // source yielded no frame
	ReasonSourceLost  StopReason = "source_lost"   // device read error
	ReasonSinkFailed  StopReason = "sink_failed"   // encoder rejected a frame
	ReasonCancelled   StopReason = "cancelled"     // caller context done
	ReasonShutdown    StopReason = "shutdown"      // owner destroyed while recording
)

// StateMachine tracks the Idle/Recording lifecycle of one long-lived
// recording session. It is not safe for concurrent use; the owner serialises
// access.
type StateMachine struct {
	state          State
	sourceKind     media.SourceKind
	outputPath     string
	sessionID      string
	recordingStart time.Time
	lastReason     StopReason
	sessions       int
}

// NewStateMachine returns a machine in the Idle state.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateIdle}
}

// Begin moves Idle to Recording for kind writing to path and returns the new
// session ID. The source kind and path stay fixed until End.
func (sm *StateMachine) Begin(kind media.SourceKind, path string) (string, error) {
	if sm.state == StateRecording {
		return "", fmt.Errorf("session %s: %w", sm.sessionID, media.ErrAlreadyRecording)
	}
	sm.state = StateRecording
	sm.sourceKind = kind
	sm.outputPath = path
	sm.sessionID = uuid.NewString()
	sm.recordingStart = time.Now()
	sm.lastReason = ""
	sm.sessions++
	return sm.sessionID, nil
}

// End moves Recording back to Idle. The session ID, source kind and output
// path of the finished session remain readable until the next Begin.
func (sm *StateMachine) End(reason StopReason) error {
	if sm.state != StateRecording {
		return fmt.Errorf("not recording")
	}
	sm.state = StateIdle
	sm.lastReason = reason
	return nil
}

// State returns the current state.
func (sm *StateMachine) State() State {
	return sm.state
}

// IsRecording returns current recording status
func (sm *StateMachine) IsRecording() bool {
	return sm.state == StateRecording
}

// SourceKind returns the source kind of the current or last session.
func (sm *StateMachine) SourceKind() media.SourceKind {
	return sm.sourceKind
}

// OutputPath returns the destination of the current or last session.
func (sm *StateMachine) OutputPath() string {
	return sm.outputPath
}

// SessionID returns the ID of the current or last session.
func (sm *StateMachine) SessionID() string {
	return sm.sessionID
}

// StartedAt returns when the current or last session began.
func (sm *StateMachine) StartedAt() time.Time {
	return sm.recordingStart
}

// RecordingDuration returns how long current recording has been active
func (sm *StateMachine) RecordingDuration() time.Duration {
	if sm.state != StateRecording {
		return 0
	}
	return time.Since(sm.recordingStart)
}

// LastReason returns why the last session ended.
func (sm *StateMachine) LastReason() StopReason {
	return sm.lastReason
}

// Sessions returns how many sessions have begun.
func (sm *StateMachine) Sessions() int {
	return sm.sessions
}
