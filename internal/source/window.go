package source

import (
	"fmt"

	"github.com/tiroq/camrec/internal/media"
)

// Window stands in for an on-screen window capture backend. There is none
// yet, so Open always fails with media.ErrNotImplemented.
type Window struct {
	id string
}

// NewWindow returns the placeholder source for window id.
func NewWindow(id string) *Window {
	return &Window{id: id}
}

func (w *Window) Open() error {
	return fmt.Errorf("capture of window %q: %w", w.id, media.ErrNotImplemented)
}

func (w *Window) Width() int  { return 0 }
func (w *Window) Height() int { return 0 }

func (w *Window) NextFrame() (media.Frame, error) {
	return media.Frame{}, fmt.Errorf("window %q not open: %w", w.id, media.ErrSourceUnavailable)
}

func (w *Window) Close() error { return nil }
