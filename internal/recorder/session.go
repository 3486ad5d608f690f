package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/atomic"

	"github.com/tiroq/camrec/internal/diaglog"
	"github.com/tiroq/camrec/internal/logging"
	"github.com/tiroq/camrec/internal/media"
	"github.com/tiroq/camrec/internal/metrics"
	"github.com/tiroq/camrec/internal/statemachine"
)

// Session is the long-lived recording session. It is created once and
// reused; at most one recording runs at a time.
//
// Start runs the transfer loop on the calling goroutine. Stop and Close may
// be called from any other goroutine. A frame read that never returns blocks
// the loop, and with it Stop, until the device delivers or fails.
type Session struct {
	sources   Sources
	sinks     Sinks
	frameRate float64
	diag      *diaglog.Logger
	monitor   *metrics.SessionMonitor

	stopReason atomic.String
	frames     atomic.Int64

	mu        sync.Mutex
	sm        *statemachine.StateMachine
	busy      bool          // a Start call owns the session
	done      chan struct{} // closed when the owning Start call returns
	closed    bool
	width     int
	height    int
	lastErr   error
	listeners []func(Snapshot)
}

// Option configures a Session.
type Option func(*Session)

// WithFrameRate overrides the nominal rate given to sinks.
func WithFrameRate(fps float64) Option {
	return func(s *Session) { s.frameRate = fps }
}

// WithDiagLogger sends lifecycle events to l.
func WithDiagLogger(l *diaglog.Logger) Option {
	return func(s *Session) { s.diag = l }
}

// WithMetrics counts sessions and start failures in m.
func WithMetrics(m *metrics.SessionMonitor) Option {
	return func(s *Session) { s.monitor = m }
}

// New returns an idle session that builds its sources and sinks from the
// given factories.
func New(sources Sources, sinks Sinks, opts ...Option) *Session {
	s := &Session{
		sources:   sources,
		sinks:     sinks,
		frameRate: FrameRate,
		diag:      diaglog.NewNoOp(),
		sm:        statemachine.NewStateMachine(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnStateChanged registers fn to be called after every Idle/Recording
// transition. fn runs on the recording goroutine and must not call Stop or
// Close.
func (s *Session) OnStateChanged(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start opens the source and sink for req and records until Stop, Close,
// ctx cancellation, end of stream or a device/encoder failure. It returns
// once both are closed and the session is Idle again.
//
// Failures before recording begins leave the session Idle with nothing
// opened. Failures during recording finalize the output and are returned
// along with the Result of the session.
func (s *Session) Start(ctx context.Context, req Request) (Result, error) {
	if err := s.acquire(); err != nil {
		s.reject(req, err, false)
		return Result{}, err
	}
	defer s.release()

	src, snk, err := s.open(ctx, req)
	if err != nil {
		s.reject(req, err, true)
		return Result{}, err
	}

	res, err := s.record(ctx, req, src, snk)
	return res, err
}

// Stop ends the current recording and waits until the sink and then the
// source are closed. It is a no-op when Idle and safe to call repeatedly.
func (s *Session) Stop() {
	s.requestStop(statemachine.ReasonUserStop)
}

// Close stops any recording in progress and rejects further Start calls.
// A Start still opening its devices releases them and fails with
// ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.requestStop(statemachine.ReasonShutdown)
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() statemachine.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sm.State()
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      s.sm.State(),
		Kind:       s.sm.SourceKind(),
		OutputPath: s.sm.OutputPath(),
		SessionID:  s.sm.SessionID(),
		StartedAt:  s.sm.StartedAt(),
		Elapsed:    s.sm.RecordingDuration(),
		Frames:     int(s.frames.Load()),
		Width:      s.width,
		Height:     s.height,
		LastReason: s.sm.LastReason(),
		Sessions:   s.sm.Sessions(),
	}
	if s.lastErr != nil {
		snap.LastErrorKind = media.Kind(s.lastErr)
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

// requestStop ends a session that is Recording and waits for its
// teardown. A Start still opening its devices is left alone; Close catches
// it before it begins.
func (s *Session) requestStop(reason statemachine.StopReason) {
	s.mu.Lock()
	if !s.sm.IsRecording() {
		s.mu.Unlock()
		return
	}
	done := s.done
	s.stopReason.CompareAndSwap("", string(reason))
	s.mu.Unlock()
	<-done
}

// acquire claims the session for one Start call.
func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.busy:
		if s.sm.IsRecording() {
			return fmt.Errorf("session %s: %w", s.sm.SessionID(), media.ErrAlreadyRecording)
		}
		return fmt.Errorf("start in progress: %w", media.ErrAlreadyRecording)
	}
	s.busy = true
	s.done = make(chan struct{})
	s.stopReason.Store("")
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	close(s.done)
	s.done = nil
}

// open validates req and opens the source, then a sink at the source's
// dimensions. On error nothing is left open.
func (s *Session) open(ctx context.Context, req Request) (media.Source, media.Sink, error) {
	if err := validate(req); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("start: %w", err)
	}

	src, err := s.sources.Source(req.Kind, req.Window)
	if err != nil {
		return nil, nil, err
	}
	if err := src.Open(); err != nil {
		_ = src.Close()
		if media.Kind(err) == "internal" {
			err = fmt.Errorf("%w: %v", media.ErrSourceUnavailable, err)
		}
		return nil, nil, err
	}

	width, height := src.Width(), src.Height()
	snk, err := s.sinks.Sink(req.Path)
	if err == nil {
		err = snk.Open(width, height, s.frameRate, req.Path)
	}
	if err != nil {
		_ = src.Close()
		if !errors.Is(err, media.ErrSinkUnavailable) {
			err = fmt.Errorf("%w: %v", media.ErrSinkUnavailable, err)
		}
		return nil, nil, err
	}
	return src, snk, nil
}

func validate(req Request) error {
	var merr *multierror.Error
	if req.Kind == "" {
		merr = multierror.Append(merr, fmt.Errorf("source kind: %w", media.ErrNoSelection))
	}
	if req.Path == "" {
		merr = multierror.Append(merr, fmt.Errorf("destination path: %w", media.ErrNoSelection))
	}
	if req.Kind == media.SourceWindow {
		if req.Window == "" {
			merr = multierror.Append(merr, fmt.Errorf("window: %w", media.ErrNoSelection))
		}
		merr = multierror.Append(merr, fmt.Errorf("window capture: %w", media.ErrNotImplemented))
	}
	return merr.ErrorOrNil()
}

func (s *Session) record(ctx context.Context, req Request, src media.Source, snk media.Sink) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = snk.Close()
		_ = src.Close()
		s.reject(req, ErrSessionClosed, false)
		return Result{}, ErrSessionClosed
	}
	s.frames.Store(0)
	s.width, s.height = src.Width(), src.Height()
	sessionID, err := s.sm.Begin(req.Kind, req.Path)
	if err != nil {
		s.mu.Unlock()
		_ = snk.Close()
		_ = src.Close()
		return Result{}, err
	}
	s.lastErr = nil
	snap := s.snapshotLocked()
	listeners := s.listeners
	s.mu.Unlock()

	logging.Infow("recording started",
		"sessionID", sessionID,
		"source", req.Kind,
		"path", req.Path,
		"width", snap.Width,
		"height", snap.Height,
	)
	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventRecordingStart,
		SessionID: sessionID,
		Payload: map[string]interface{}{
			"source": string(req.Kind),
			"path":   req.Path,
			"width":  snap.Width,
			"height": snap.Height,
			"fps":    s.frameRate,
		},
	})
	notify(listeners, snap)

	reason, loopErr := s.transfer(ctx, src, snk, sessionID)

	var teardown *multierror.Error
	if err := snk.Close(); err != nil {
		teardown = multierror.Append(teardown, fmt.Errorf("close sink: %w", err))
	}
	if err := src.Close(); err != nil {
		teardown = multierror.Append(teardown, fmt.Errorf("close source: %w", err))
	}
	if teardown != nil {
		s.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentSession,
			Event:     diaglog.EventTeardownError,
			SessionID: sessionID,
			Reason:    teardown.Error(),
		})
	}
	var result *multierror.Error
	if loopErr != nil {
		result = multierror.Append(result, loopErr)
	}
	if teardown != nil {
		result = multierror.Append(result, teardown.Errors...)
	}
	runErr := result.ErrorOrNil()

	s.mu.Lock()
	_ = s.sm.End(reason)
	s.lastErr = runErr
	res := Result{
		SessionID:  sessionID,
		Kind:       req.Kind,
		OutputPath: req.Path,
		Frames:     int(s.frames.Load()),
		Width:      s.width,
		Height:     s.height,
		StartedAt:  s.sm.StartedAt(),
		StoppedAt:  time.Now(),
		Reason:     reason,
	}
	snap = s.snapshotLocked()
	listeners = s.listeners
	s.mu.Unlock()

	s.monitor.ObserveSession(string(reason), res.Frames, res.Duration().Seconds())
	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventRecordingStop,
		SessionID: sessionID,
		Reason:    string(reason),
		Payload: map[string]interface{}{
			"frames":   res.Frames,
			"duration": res.Duration().String(),
		},
	})
	if runErr != nil {
		logging.Warnw("recording stopped", runErr, "sessionID", sessionID, "reason", reason, "frames", res.Frames)
	} else {
		logging.Infow("recording stopped", "sessionID", sessionID, "reason", reason, "frames", res.Frames)
	}
	notify(listeners, snap)

	return res, runErr
}

// transfer moves frames from src to snk until asked to stop or either side
// fails. Frames are passed through untouched.
func (s *Session) transfer(ctx context.Context, src media.Source, snk media.Sink, sessionID string) (statemachine.StopReason, error) {
	for {
		if r := s.stopReason.Load(); r != "" {
			return statemachine.StopReason(r), nil
		}
		if ctx.Err() != nil {
			return statemachine.ReasonCancelled, nil
		}

		frame, err := src.NextFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return statemachine.ReasonEndOfStream, nil
			}
			s.logFrameError(sessionID, "read", err)
			if !errors.Is(err, media.ErrSourceUnavailable) {
				err = fmt.Errorf("%w: %v", media.ErrSourceUnavailable, err)
			}
			return statemachine.ReasonSourceLost, fmt.Errorf("read frame: %w", err)
		}

		if err := snk.WriteFrame(frame); err != nil {
			s.logFrameError(sessionID, "write", err)
			if !errors.Is(err, media.ErrSinkUnavailable) {
				err = fmt.Errorf("%w: %v", media.ErrSinkUnavailable, err)
			}
			return statemachine.ReasonSinkFailed, fmt.Errorf("write frame: %w", err)
		}
		s.frames.Inc()
	}
}

func (s *Session) logFrameError(sessionID, op string, err error) {
	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventFrameError,
		SessionID: sessionID,
		Reason:    err.Error(),
		Payload:   map[string]interface{}{"op": op, "frame": s.frames.Load()},
	})
}

// reject records a start request that never reached Recording. Rejections
// of a concurrent start leave the active session's state untouched.
func (s *Session) reject(req Request, err error, record bool) {
	kind := media.Kind(err)
	if record {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
	}
	s.monitor.ObserveStartError(kind)
	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventStartRejected,
		Reason:    kind,
		Payload: map[string]interface{}{
			"source": string(req.Kind),
			"path":   req.Path,
			"window": req.Window,
			"error":  err.Error(),
		},
	})
	logging.Warnw("recording start rejected", err, "source", req.Kind, "path", req.Path, "kind", kind)
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
