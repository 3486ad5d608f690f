// Package source maps a media.SourceKind to the frame source that serves it.
package source

import (
	"fmt"

	"github.com/tiroq/camrec/internal/media"
)

// Selector builds unopened sources. Camera is called once per session.
type Selector struct {
	Camera func() media.Source
}

// Source returns a fresh, unopened source for kind. window is the selected
// window identifier and is only used by the window variant.
func (s Selector) Source(kind media.SourceKind, window string) (media.Source, error) {
	switch kind {
	case media.SourceCamera:
		if s.Camera == nil {
			return nil, fmt.Errorf("no camera backend configured: %w", media.ErrSourceUnavailable)
		}
		return s.Camera(), nil
	case media.SourceWindow:
		return NewWindow(window), nil
	case "":
		return nil, fmt.Errorf("source kind: %w", media.ErrNoSelection)
	default:
		return nil, fmt.Errorf("unknown source kind %q: %w", kind, media.ErrSourceUnavailable)
	}
}
