// Package media defines the frame type and the source/sink contracts shared
// by capture backends, encoders and the recording session.
package media

import (
	"fmt"
	"strings"
)

// SourceKind selects which frame source backs a recording session.
type SourceKind string

const (
	SourceCamera SourceKind = "camera" // USB camera via OpenCV
	SourceWindow SourceKind = "window" // on-screen window (no capture backend yet)
)

// ParseSourceKind maps user input to a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case SourceCamera:
		return SourceCamera, nil
	case SourceWindow:
		return SourceWindow, nil
	case "":
		return "", fmt.Errorf("source kind: %w", ErrNoSelection)
	default:
		return "", fmt.Errorf("unknown source kind %q", s)
	}
}

// Source produces sequential frames. Width and Height are valid after a
// successful Open. NextFrame returns io.EOF once the stream has ended or the
// device went away; calling it after Close is invalid. Close is idempotent.
type Source interface {
	Open() error
	Width() int
	Height() int
	NextFrame() (Frame, error)
	Close() error
}

// Sink encodes frames into a container file at fixed dimensions and rate.
// WriteFrame only accepts frames of the dimensions given to Open. Close
// finalizes the container and is idempotent.
type Sink interface {
	Open(width, height int, frameRate float64, path string) error
	WriteFrame(f Frame) error
	Close() error
}
