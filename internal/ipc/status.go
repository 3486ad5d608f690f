package ipc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/tiroq/camrec/internal/media"
	"github.com/tiroq/camrec/internal/recorder"
	"github.com/tiroq/camrec/internal/statemachine"
)

// Controls tells a UI shell which buttons to enable.
type Controls struct {
	StartEnabled bool `json:"start_enabled"`
	StopEnabled  bool `json:"stop_enabled"`
}

// ControlsFor derives control enablement from the session state: start only
// when Idle, stop only when Recording.
func ControlsFor(state statemachine.State) Controls {
	recording := state == statemachine.StateRecording
	return Controls{StartEnabled: !recording, StopEnabled: recording}
}

// StatusSnapshot represents the complete daemon state at a point in time
type StatusSnapshot struct {
	State         statemachine.State      `json:"state"`
	Source        media.SourceKind        `json:"source,omitempty"`
	OutputPath    string                  `json:"output_path,omitempty"`
	SessionID     string                  `json:"session_id,omitempty"`
	StartedAt     time.Time               `json:"started_at,omitempty"`
	ElapsedMs     int64                   `json:"elapsed_ms,omitempty"`
	Frames        int                     `json:"frames"`
	Width         int                     `json:"width,omitempty"`
	Height        int                     `json:"height,omitempty"`
	LastReason    statemachine.StopReason `json:"last_reason,omitempty"`
	LastErrorKind string                  `json:"last_error_kind,omitempty"`
	LastError     string                  `json:"last_error,omitempty"`
	LastAction    string                  `json:"last_action"`
	Sessions      int                     `json:"sessions"`
	Controls      Controls                `json:"controls"`
	PID           int                     `json:"pid"`
	Timestamp     time.Time               `json:"timestamp"`
}

// NewStatus builds a snapshot from the session state.
func NewStatus(snap recorder.Snapshot, lastAction string) *StatusSnapshot {
	return &StatusSnapshot{
		State:         snap.State,
		Source:        snap.Kind,
		OutputPath:    snap.OutputPath,
		SessionID:     snap.SessionID,
		StartedAt:     snap.StartedAt,
		ElapsedMs:     snap.Elapsed.Milliseconds(),
		Frames:        snap.Frames,
		Width:         snap.Width,
		Height:        snap.Height,
		LastReason:    snap.LastReason,
		LastErrorKind: snap.LastErrorKind,
		LastError:     snap.LastError,
		LastAction:    lastAction,
		Sessions:      snap.Sessions,
		Controls:      ControlsFor(snap.State),
		PID:           os.Getpid(),
		Timestamp:     time.Now(),
	}
}

// Recording reports whether the daemon was recording.
func (s *StatusSnapshot) Recording() bool {
	return s.State == statemachine.StateRecording
}

// WriteStatus persists StatusSnapshot to ~/.cache/camrec/status.json using atomic write
func WriteStatus(status *StatusSnapshot) error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return err
	}
	return atomicWriteJSON(StatusPath(), status)
}

// ReadStatus loads StatusSnapshot from ~/.cache/camrec/status.json
func ReadStatus() (*StatusSnapshot, error) {
	data, err := os.ReadFile(StatusPath())
	if err != nil {
		return nil, err
	}

	var status StatusSnapshot
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// atomicWriteJSON writes data to a file atomically using temp file + rename
func atomicWriteJSON(path string, data interface{}) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	tmpFile = nil

	return os.Rename(tmpPath, path)
}
