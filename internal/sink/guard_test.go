package sink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiroq/camrec/internal/media"
	"github.com/tiroq/camrec/testutil"
)

func frameOf(t *testing.T, w, h int) media.Frame {
	t.Helper()
	f, err := media.NewFrame(w, h, media.PixelFormatBGR24, make([]byte, w*h*3))
	require.NoError(t, err)
	return f
}

func TestGuard_WriteRequiresOpenedDimensions(t *testing.T) {
	inner := &testutil.RecordingSink{}
	s := Guard(inner)
	path := filepath.Join(t.TempDir(), "out.avi")

	require.NoError(t, s.Open(4, 2, 20, path))
	require.NoError(t, s.WriteFrame(frameOf(t, 4, 2)))

	err := s.WriteFrame(frameOf(t, 2, 4))
	assert.ErrorIs(t, err, media.ErrSinkUnavailable)
	assert.Equal(t, []testutil.Size{{Width: 4, Height: 2}}, inner.Writes())
}

func TestGuard_WriteAfterClose(t *testing.T) {
	inner := &testutil.RecordingSink{}
	s := Guard(inner)
	require.NoError(t, s.Open(2, 2, 20, filepath.Join(t.TempDir(), "out.avi")))
	require.NoError(t, s.Close())

	err := s.WriteFrame(frameOf(t, 2, 2))
	assert.ErrorIs(t, err, media.ErrSinkUnavailable)
	assert.Empty(t, inner.Writes())
}

func TestGuard_WriteBeforeOpen(t *testing.T) {
	s := Guard(&testutil.RecordingSink{})
	assert.ErrorIs(t, s.WriteFrame(frameOf(t, 2, 2)), media.ErrSinkUnavailable)
}

func TestGuard_CloseIsIdempotent(t *testing.T) {
	inner := &testutil.RecordingSink{}
	s := Guard(inner)
	require.NoError(t, s.Open(2, 2, 20, filepath.Join(t.TempDir(), "out.avi")))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, inner.Closes())
}

func TestGuard_CloseWithoutOpenIsNoOp(t *testing.T) {
	inner := &testutil.RecordingSink{}
	require.NoError(t, Guard(inner).Close())
	assert.Equal(t, 0, inner.Closes())
}

func TestGuard_OpenFailureWrapsAndCleansUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	inner := &failingSink{create: true}
	s := Guard(inner)

	err := s.Open(2, 2, 20, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrSinkUnavailable)
	assert.Contains(t, err.Error(), "codec init failed")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "partial output must be removed")
}

func TestGuard_OpenFailureKeepsPreexistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep.avi")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0644))

	err := Guard(&failingSink{}).Open(2, 2, 20, path)
	assert.ErrorIs(t, err, media.ErrSinkUnavailable)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestGuard_RejectsBadParameters(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		w, h   int
		fps    float64
		path   string
		opened bool
	}{
		{"zero width", 0, 2, 20, filepath.Join(dir, "a.avi"), false},
		{"zero rate", 2, 2, 0, filepath.Join(dir, "b.avi"), false},
		{"empty path", 2, 2, 20, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &testutil.RecordingSink{}
			err := Guard(inner).Open(tt.w, tt.h, tt.fps, tt.path)
			assert.ErrorIs(t, err, media.ErrSinkUnavailable)
			assert.Equal(t, 0, inner.OpenCalls())
		})
	}
}

func TestGuard_DoubleOpen(t *testing.T) {
	s := Guard(&testutil.RecordingSink{})
	path := filepath.Join(t.TempDir(), "out.avi")
	require.NoError(t, s.Open(2, 2, 20, path))
	assert.ErrorIs(t, s.Open(2, 2, 20, path), media.ErrSinkUnavailable)
}

// failingSink fails Open, optionally after creating the file.
type failingSink struct {
	create bool
}

func (f *failingSink) Open(_, _ int, _ float64, path string) error {
	if f.create {
		if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
			return err
		}
	}
	return errors.New("codec init failed")
}

func (f *failingSink) WriteFrame(media.Frame) error { return nil }
func (f *failingSink) Close() error                 { return nil }
