// Package sink selects and wraps frame encoders for a destination file.
package sink

import (
	"errors"
	"fmt"
	"os"

	"github.com/tiroq/camrec/internal/media"
)

// Guard wraps a media.Sink and enforces the sink contract independently of
// the encoder behind it: a single Open, writes only between Open and Close,
// frames of exactly the opened dimensions, idempotent Close. Every error it
// returns matches media.ErrSinkUnavailable.
func Guard(next media.Sink) media.Sink {
	return &guarded{next: next}
}

type guarded struct {
	next   media.Sink
	width  int
	height int
	opened bool
	closed bool
}

func (g *guarded) Open(width, height int, frameRate float64, path string) error {
	if g.opened {
		return fmt.Errorf("sink already opened: %w", media.ErrSinkUnavailable)
	}
	if path == "" {
		return fmt.Errorf("empty output path: %w", media.ErrSinkUnavailable)
	}
	if width <= 0 || height <= 0 || frameRate <= 0 {
		return fmt.Errorf("invalid encoder parameters %dx%d@%g: %w", width, height, frameRate, media.ErrSinkUnavailable)
	}

	_, statErr := os.Stat(path)
	existed := statErr == nil

	if err := g.next.Open(width, height, frameRate, path); err != nil {
		// leave nothing behind that we created
		if !existed {
			_ = os.Remove(path)
		}
		return sinkErr("open "+path, err)
	}
	g.width, g.height = width, height
	g.opened = true
	return nil
}

func (g *guarded) WriteFrame(f media.Frame) error {
	if !g.opened || g.closed {
		return fmt.Errorf("write on closed sink: %w", media.ErrSinkUnavailable)
	}
	if f.Width() != g.width || f.Height() != g.height {
		return fmt.Errorf("frame %dx%d does not match sink %dx%d: %w",
			f.Width(), f.Height(), g.width, g.height, media.ErrSinkUnavailable)
	}
	if err := g.next.WriteFrame(f); err != nil {
		return sinkErr("write frame", err)
	}
	return nil
}

func (g *guarded) Close() error {
	if !g.opened || g.closed {
		return nil
	}
	g.closed = true
	if err := g.next.Close(); err != nil {
		return sinkErr("finalize", err)
	}
	return nil
}

func sinkErr(op string, err error) error {
	if errors.Is(err, media.ErrSinkUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w (%v)", op, media.ErrSinkUnavailable, err)
}
