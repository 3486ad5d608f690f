// Package testutil provides simulated capture devices and encoders for tests.
package testutil

import (
	"errors"
	"io"
	"sync"

	"github.com/tiroq/camrec/internal/media"
)

// FakeCamera simulates a camera that yields Frames frames of Size and then
// reports end of stream. A negative Frames value streams forever.
type FakeCamera struct {
	Size   Size
	Frames int

	// OpenErr is returned by Open when set.
	OpenErr error
	// ReadErr, when set, is returned instead of io.EOF once Frames frames
	// have been produced (simulated disconnect).
	ReadErr error
	// FrameSize overrides the dimensions of produced frames when non-zero.
	FrameSize Size
	// Gate, when set, is received from before each frame is produced, which
	// lets a test hold the transfer loop at a known point.
	Gate chan struct{}
	// Events, when set, records "source.open" and "source.close".
	Events *EventLog

	mu       sync.Mutex
	opened   bool
	closed   bool
	produced int
	closes   int
}

// ErrClosed is returned by NextFrame after Close.
var ErrClosed = errors.New("fake camera closed")

func (c *FakeCamera) Open() error {
	if c.OpenErr != nil {
		return c.OpenErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = true
	c.Events.Add("source.open")
	return nil
}

func (c *FakeCamera) Width() int  { return c.Size.Width }
func (c *FakeCamera) Height() int { return c.Size.Height }

func (c *FakeCamera) NextFrame() (media.Frame, error) {
	if c.Gate != nil {
		<-c.Gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened || c.closed {
		return media.Frame{}, ErrClosed
	}
	if c.Frames >= 0 && c.produced >= c.Frames {
		if c.ReadErr != nil {
			return media.Frame{}, c.ReadErr
		}
		return media.Frame{}, io.EOF
	}
	w, h := c.Size.Width, c.Size.Height
	if c.FrameSize.Width > 0 {
		w, h = c.FrameSize.Width, c.FrameSize.Height
	}
	data := make([]byte, w*h*3)
	for i := range data {
		data[i] = byte(c.produced + i)
	}
	c.produced++
	return media.NewFrame(w, h, media.PixelFormatBGR24, data)
}

func (c *FakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	c.closed = true
	c.Events.Add("source.close")
	return nil
}

// Produced returns how many frames were handed out.
func (c *FakeCamera) Produced() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.produced
}

// Closed reports whether Close was called at least once.
func (c *FakeCamera) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Closes returns the number of Close calls.
func (c *FakeCamera) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}
