// Package recorder drives a capture-and-encode session: one frame source,
// one encoder, and the loop that moves frames between them.
package recorder

import (
	"errors"
	"time"

	"github.com/tiroq/camrec/internal/media"
	"github.com/tiroq/camrec/internal/statemachine"
)

// FrameRate is the nominal rate every sink is opened with. Frames are
// written as fast as the source delivers them; no pacing is applied.
const FrameRate = 20.0

// ErrSessionClosed is returned by Start after Close.
var ErrSessionClosed = errors.New("recording session closed")

// Sources builds an unopened frame source for a source kind. window is the
// selected window identifier and only matters for media.SourceWindow.
type Sources interface {
	Source(kind media.SourceKind, window string) (media.Source, error)
}

// Sinks builds an unopened encoder whose container suits path.
type Sinks interface {
	Sink(path string) (media.Sink, error)
}

// Request describes one recording attempt.
type Request struct {
	Kind   media.SourceKind
	Path   string
	Window string
}

// Result contains the outcome of a finished session.
type Result struct {
	SessionID  string
	Kind       media.SourceKind
	OutputPath string
	Frames     int
	Width      int
	Height     int
	StartedAt  time.Time
	StoppedAt  time.Time
	Reason     statemachine.StopReason
}

// Duration returns how long the session recorded.
func (r Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.StoppedAt.IsZero() {
		return 0
	}
	return r.StoppedAt.Sub(r.StartedAt)
}

// Snapshot is a point-in-time view of the session for the UI shell.
type Snapshot struct {
	State      statemachine.State
	Kind       media.SourceKind
	OutputPath string
	SessionID  string
	StartedAt  time.Time
	// Elapsed is the running time of the current recording, zero when Idle.
	Elapsed    time.Duration
	Frames     int
	Width      int
	Height     int
	LastReason statemachine.StopReason
	// Sessions counts recordings begun since the session was created.
	Sessions int
	// LastErrorKind is media.Kind of the last failure, "" when the last
	// start or session succeeded.
	LastErrorKind string
	LastError     string
}

// Recording reports whether the snapshot was taken while recording.
func (s Snapshot) Recording() bool {
	return s.State == statemachine.StateRecording
}
