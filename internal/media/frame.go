package media

import (
	"fmt"
	"image"
)

// PixelFormat describes the memory layout of Frame data.
type PixelFormat int

const (
	// PixelFormatBGR24 is packed 8-bit B, G, R, row-major (OpenCV CV_8UC3).
	PixelFormatBGR24 PixelFormat = iota
)

// BytesPerPixel returns the packed pixel size.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case PixelFormatBGR24:
		return 3
	default:
		return 0
	}
}

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatBGR24:
		return "bgr24"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(p))
	}
}

// Frame is one captured image. It is immutable: Data must not be modified by
// consumers, and nothing should hold on to a Frame past the loop iteration
// that produced it.
type Frame struct {
	width  int
	height int
	format PixelFormat
	data   []byte
}

// NewFrame wraps data as a frame, checking that the buffer matches the
// declared geometry. data is not copied.
func NewFrame(width, height int, format PixelFormat, data []byte) (Frame, error) {
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return Frame{}, fmt.Errorf("unsupported pixel format %s", format)
	}
	if want := width * height * bpp; len(data) != want {
		return Frame{}, fmt.Errorf("frame %dx%d %s needs %d bytes, got %d", width, height, format, want, len(data))
	}
	return Frame{width: width, height: height, format: format, data: data}, nil
}

func (f Frame) Width() int          { return f.width }
func (f Frame) Height() int         { return f.height }
func (f Frame) Format() PixelFormat { return f.format }

// Data returns the raw pixel buffer. Read only.
func (f Frame) Data() []byte { return f.data }

// Empty reports whether f is the zero Frame.
func (f Frame) Empty() bool { return f.data == nil }

// RGBA converts the frame to an *image.RGBA, which the image encoders in the
// standard library handle on their fast path.
func (f Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	src := f.data
	dst := img.Pix
	for i, j := 0, 0; i+2 < len(src); i, j = i+3, j+4 {
		dst[j] = src[i+2]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i]
		dst[j+3] = 0xff
	}
	return img
}
