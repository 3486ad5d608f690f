package sink

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"math"

	"github.com/icza/mjpeg"

	"github.com/tiroq/camrec/internal/media"
)

// DefaultJPEGQuality is used when MJPEG is created with a quality outside 1..100.
const DefaultJPEGQuality = 90

// MJPEG writes Motion-JPEG into an AVI container without cgo. Use it through
// Guard; on its own it does not check frame dimensions.
type MJPEG struct {
	quality int
	aw      mjpeg.AviWriter
	buf     bytes.Buffer
}

// NewMJPEG returns an unopened MJPEG sink.
func NewMJPEG(quality int) *MJPEG {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &MJPEG{quality: quality}
}

func (m *MJPEG) Open(width, height int, frameRate float64, path string) error {
	fps := int32(math.Round(frameRate))
	if fps < 1 {
		fps = 1
	}
	aw, err := mjpeg.New(path, int32(width), int32(height), fps)
	if err != nil {
		return fmt.Errorf("create avi: %w", err)
	}
	m.aw = aw
	return nil
}

func (m *MJPEG) WriteFrame(f media.Frame) error {
	m.buf.Reset()
	if err := jpeg.Encode(&m.buf, f.RGBA(), &jpeg.Options{Quality: m.quality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return m.aw.AddFrame(m.buf.Bytes())
}

func (m *MJPEG) Close() error {
	if m.aw == nil {
		return nil
	}
	aw := m.aw
	m.aw = nil
	return aw.Close()
}
