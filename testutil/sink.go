package testutil

import (
	"sync"

	"github.com/tiroq/camrec/internal/media"
)

// Size is a frame or encoder geometry.
type Size struct {
	Width, Height int
}

// RecordingSink is an in-memory media.Sink that records every call.
type RecordingSink struct {
	OpenErr  error
	WriteErr error
	CloseErr error
	// Events, when set, records "sink.open" and "sink.close".
	Events *EventLog
	// OpenGate, when set, is received from inside Open after the call is
	// counted, which holds a Start in its opening phase.
	OpenGate chan struct{}

	mu        sync.Mutex
	opened    Size
	rate      float64
	path      string
	writes    []Size
	closes    int
	openCalls int
}

func (s *RecordingSink) Open(width, height int, frameRate float64, path string) error {
	s.mu.Lock()
	s.openCalls++
	s.mu.Unlock()
	if s.OpenGate != nil {
		<-s.OpenGate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.opened = Size{width, height}
	s.rate = frameRate
	s.path = path
	s.Events.Add("sink.open")
	return nil
}

func (s *RecordingSink) WriteFrame(f media.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.writes = append(s.writes, Size{f.Width(), f.Height()})
	return nil
}

func (s *RecordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.Events.Add("sink.close")
	return s.CloseErr
}

// OpenedWith returns the geometry, rate and path passed to Open.
func (s *RecordingSink) OpenedWith() (Size, float64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.rate, s.path
}

// OpenCalls returns the number of Open calls.
func (s *RecordingSink) OpenCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openCalls
}

// Writes returns the dimensions of every written frame, in order.
func (s *RecordingSink) Writes() []Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Size(nil), s.writes...)
}

// Closes returns the number of Close calls.
func (s *RecordingSink) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// EventLog is a concurrency-safe ordered list of event names. A nil
// *EventLog discards events.
type EventLog struct {
	mu     sync.Mutex
	events []string
}

// Add appends name.
func (l *EventLog) Add(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, name)
}

// Events returns a copy of the recorded events.
func (l *EventLog) Events() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}
