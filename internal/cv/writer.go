//go:build !nocv

package cv

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/tiroq/camrec/internal/media"
)

// Writer encodes frames with OpenCV's VideoWriter using a fourcc codec.
type Writer struct {
	fourcc string
	vw     *gocv.VideoWriter
}

// NewWriter returns an unopened writer. fourcc is a four character codec tag
// such as "XVID".
func NewWriter(fourcc string) media.Sink {
	return &Writer{fourcc: fourcc}
}

func (w *Writer) Open(width, height int, frameRate float64, path string) error {
	vw, err := gocv.VideoWriterFile(path, w.fourcc, frameRate, width, height, true)
	if err != nil {
		return fmt.Errorf("open %s writer: %w", w.fourcc, err)
	}
	if !vw.IsOpened() {
		_ = vw.Close()
		return fmt.Errorf("codec %s cannot encode %dx%d@%g into %s", w.fourcc, width, height, frameRate, path)
	}
	w.vw = vw
	return nil
}

func (w *Writer) WriteFrame(f media.Frame) error {
	mat, err := gocv.NewMatFromBytes(f.Height(), f.Width(), gocv.MatTypeCV8UC3, f.Data())
	if err != nil {
		return fmt.Errorf("wrap frame: %w", err)
	}
	defer mat.Close()
	return w.vw.Write(mat)
}

func (w *Writer) Close() error {
	if w.vw == nil {
		return nil
	}
	vw := w.vw
	w.vw = nil
	return vw.Close()
}
