package media

import "errors"

// Error kinds surfaced to the UI shell. None of them are retried.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSinkUnavailable   = errors.New("sink unavailable")
	ErrNoSelection       = errors.New("required selection missing")
	ErrNotImplemented    = errors.New("not implemented")
	ErrAlreadyRecording  = errors.New("already recording")
)

// Kind returns a stable machine-readable name for the error kind of err, or
// "" for nil. Errors that match several kinds report the first of
// not_implemented, no_selection, already_recording, source_unavailable,
// sink_unavailable.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotImplemented):
		return "not_implemented"
	case errors.Is(err, ErrNoSelection):
		return "no_selection"
	case errors.Is(err, ErrAlreadyRecording):
		return "already_recording"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrSinkUnavailable):
		return "sink_unavailable"
	default:
		return "internal"
	}
}
