//go:build nocv

package cv

import (
	"fmt"
	"io"

	"github.com/tiroq/camrec/internal/media"
)

// Camera is unavailable in nocv builds.
type Camera struct {
	device int
}

func NewCamera(device int) *Camera { return &Camera{device: device} }

func (c *Camera) Open() error {
	return fmt.Errorf("camera %d: built without OpenCV: %w", c.device, media.ErrSourceUnavailable)
}

func (c *Camera) Width() int                      { return 0 }
func (c *Camera) Height() int                     { return 0 }
func (c *Camera) NextFrame() (media.Frame, error) { return media.Frame{}, io.EOF }
func (c *Camera) Close() error                    { return nil }

// Writer is unavailable in nocv builds.
type Writer struct {
	fourcc string
}

func NewWriter(fourcc string) media.Sink { return &Writer{fourcc: fourcc} }

func (w *Writer) Open(int, int, float64, string) error {
	return fmt.Errorf("%s writer: built without OpenCV: %w", w.fourcc, media.ErrSinkUnavailable)
}

func (w *Writer) WriteFrame(media.Frame) error {
	return fmt.Errorf("%s writer: built without OpenCV: %w", w.fourcc, media.ErrSinkUnavailable)
}

func (w *Writer) Close() error { return nil }
