package sink

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tiroq/camrec/internal/media"
)

// Encoder names the backend used to write containers.
type Encoder string

const (
	EncoderOpenCV Encoder = "opencv" // cgo, any fourcc OpenCV was built with
	EncoderMJPEG  Encoder = "mjpeg"  // pure Go, AVI only
)

// ParseEncoder validates an encoder name from configuration.
func ParseEncoder(s string) (Encoder, error) {
	switch e := Encoder(strings.ToLower(s)); e {
	case EncoderOpenCV, EncoderMJPEG:
		return e, nil
	case "":
		return EncoderOpenCV, nil
	default:
		return "", fmt.Errorf("unknown encoder %q (want %q or %q)", s, EncoderOpenCV, EncoderMJPEG)
	}
}

// opencvCodecs maps container extensions to OpenCV fourcc codes.
var opencvCodecs = map[string]string{
	".avi": "XVID",
	".mp4": "mp4v",
	".mkv": "X264",
}

// Registry picks the encoder for a destination path. It implements the
// recorder's sink factory.
type Registry struct {
	Encoder     Encoder
	JPEGQuality int
	// OpenCV builds an unopened sink for a fourcc. Nil disables the OpenCV
	// encoder.
	OpenCV func(fourcc string) media.Sink
}

// Codec returns the codec tag used for path, or an error matching
// media.ErrSinkUnavailable when the extension is not supported.
func (r *Registry) Codec(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch r.encoder() {
	case EncoderMJPEG:
		if ext != ".avi" {
			return "", fmt.Errorf("mjpeg encoder writes .avi only, got %q: %w", ext, media.ErrSinkUnavailable)
		}
		return "MJPG", nil
	default:
		fourcc, ok := opencvCodecs[ext]
		if !ok {
			return "", fmt.Errorf("unsupported container %q (supported: %s): %w",
				ext, strings.Join(Extensions(), ", "), media.ErrSinkUnavailable)
		}
		return fourcc, nil
	}
}

// Sink returns a guarded, unopened sink for path.
func (r *Registry) Sink(path string) (media.Sink, error) {
	codec, err := r.Codec(path)
	if err != nil {
		return nil, err
	}
	if r.encoder() == EncoderMJPEG {
		return Guard(NewMJPEG(r.JPEGQuality)), nil
	}
	if r.OpenCV == nil {
		return nil, fmt.Errorf("opencv encoder not available: %w", media.ErrSinkUnavailable)
	}
	return Guard(r.OpenCV(codec)), nil
}

func (r *Registry) encoder() Encoder {
	if r.Encoder == "" {
		return EncoderOpenCV
	}
	return r.Encoder
}

// Extensions lists the container extensions the OpenCV encoder accepts.
func Extensions() []string {
	exts := make([]string, 0, len(opencvCodecs))
	for ext := range opencvCodecs {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
