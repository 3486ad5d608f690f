//go:build !nocv

package cv

import (
	"fmt"
	"io"

	"gocv.io/x/gocv"

	"github.com/tiroq/camrec/internal/media"
)

// Camera reads BGR frames from a V4L2/DirectShow/AVFoundation device.
type Camera struct {
	device int

	vc      *gocv.VideoCapture
	mat     gocv.Mat
	bgr     gocv.Mat
	pending *media.Frame
	width   int
	height  int
}

// NewCamera returns an unopened camera bound to device index.
func NewCamera(device int) *Camera {
	return &Camera{device: device}
}

// Open acquires the device and reads the first frame so that Width and
// Height report the dimensions frames will actually have.
func (c *Camera) Open() error {
	if c.vc != nil {
		return fmt.Errorf("camera %d already open: %w", c.device, media.ErrSourceUnavailable)
	}
	vc, err := gocv.VideoCaptureDevice(c.device)
	if err != nil {
		return fmt.Errorf("open camera %d: %w (%v)", c.device, media.ErrSourceUnavailable, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return fmt.Errorf("open camera %d: device busy or absent: %w", c.device, media.ErrSourceUnavailable)
	}
	c.vc = vc
	c.mat = gocv.NewMat()
	c.bgr = gocv.NewMat()

	first, err := c.read()
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("open camera %d: no initial frame: %w", c.device, media.ErrSourceUnavailable)
	}
	c.pending = &first
	c.width, c.height = first.Width(), first.Height()
	return nil
}

func (c *Camera) Width() int  { return c.width }
func (c *Camera) Height() int { return c.height }

// NextFrame blocks until the driver delivers a frame. An empty read means
// the device stopped streaming or was unplugged and yields io.EOF.
func (c *Camera) NextFrame() (media.Frame, error) {
	if c.vc == nil {
		return media.Frame{}, fmt.Errorf("camera %d not open: %w", c.device, media.ErrSourceUnavailable)
	}
	if c.pending != nil {
		f := *c.pending
		c.pending = nil
		return f, nil
	}
	return c.read()
}

func (c *Camera) read() (media.Frame, error) {
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return media.Frame{}, io.EOF
	}
	src := c.mat
	switch c.mat.Channels() {
	case 3:
	case 1:
		gocv.CvtColor(c.mat, &c.bgr, gocv.ColorGrayToBGR)
		src = c.bgr
	case 4:
		gocv.CvtColor(c.mat, &c.bgr, gocv.ColorBGRAToBGR)
		src = c.bgr
	default:
		return media.Frame{}, fmt.Errorf("camera %d: unsupported channel count %d: %w",
			c.device, c.mat.Channels(), media.ErrSourceUnavailable)
	}
	return media.NewFrame(src.Cols(), src.Rows(), media.PixelFormatBGR24, src.ToBytes())
}

// Close releases the device. Safe to call more than once.
func (c *Camera) Close() error {
	if c.vc == nil {
		return nil
	}
	c.pending = nil
	_ = c.mat.Close()
	_ = c.bgr.Close()
	err := c.vc.Close()
	c.vc = nil
	return err
}
