package main

import (
	"context"
	"sync"
	"time"

	"github.com/frostbyte73/core"

	"github.com/tiroq/camrec/internal/config"
	"github.com/tiroq/camrec/internal/diaglog"
	"github.com/tiroq/camrec/internal/fileutil"
	"github.com/tiroq/camrec/internal/ipc"
	"github.com/tiroq/camrec/internal/logging"
	"github.com/tiroq/camrec/internal/metrics"
	"github.com/tiroq/camrec/internal/recorder"
	"github.com/tiroq/camrec/internal/sink"
	"github.com/tiroq/camrec/internal/statemachine"
)

// statusInterval is how often status.json is refreshed while recording.
const statusInterval = time.Second

// daemon executes IPC commands against the single recording session.
type daemon struct {
	cfg      *config.Config
	session  *recorder.Session
	registry *sink.Registry
	diag     *diaglog.Logger
	monitor  *metrics.SessionMonitor

	shutdown core.Fuse
	sessions sync.WaitGroup

	mu         sync.Mutex
	lastAction string
}

func newDaemon(cfg *config.Config, session *recorder.Session, registry *sink.Registry,
	diag *diaglog.Logger, monitor *metrics.SessionMonitor) *daemon {
	d := &daemon{
		cfg:        cfg,
		session:    session,
		registry:   registry,
		diag:       diag,
		monitor:    monitor,
		lastAction: "startup",
	}
	session.OnStateChanged(func(snap recorder.Snapshot) {
		d.writeStatus(snap)
	})
	return d
}

// Run serves commands until the shutdown fuse breaks, then stops any
// recording and waits for it to be finalized.
func (d *daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.writeStatus(d.session.Snapshot())

	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- ipc.WatchCommands(watchCtx, d.handleCommand)
	}()
	go d.refreshStatus(ctx)

	var err error
	select {
	case <-d.shutdown.Watch():
		stopWatch()
		<-watchDone
	case <-ctx.Done():
		<-watchDone
	case err = <-watchDone:
		if err != nil {
			logging.Errorw("command watcher failed", err)
		}
	}
	stopWatch()

	// no command can start a session past this point
	logging.Infow("shutting down")
	_ = d.session.Close()
	d.sessions.Wait()

	d.setLastAction("shutdown")
	d.writeStatus(d.session.Snapshot())
	return err
}

func (d *daemon) handleCommand(cmd ipc.Command) {
	logging.Infow("received command", "command", cmd.Verb, "source", cmd.Source, "path", cmd.Path)
	d.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentIPC,
		Event:     diaglog.EventCommand,
		Payload: map[string]interface{}{
			"command": string(cmd.Verb),
			"source":  string(cmd.Source),
			"path":    cmd.Path,
			"window":  cmd.Window,
		},
	})
	d.setLastAction(string(cmd.Verb))

	switch cmd.Verb {
	case ipc.CmdStart:
		path := cmd.Path
		if path != "" {
			if resolved, err := fileutil.ResolveDestination(path, string(cmd.Source), time.Now()); err == nil {
				path = resolved
			}
		}
		d.sessions.Add(1)
		go func() {
			defer d.sessions.Done()
			d.record(recorder.Request{Kind: cmd.Source, Path: path, Window: cmd.Window})
		}()

	case ipc.CmdStop:
		// Stop waits for teardown; keep the watcher responsive meanwhile
		go d.session.Stop()

	case ipc.CmdQuit:
		logging.Infow("quit command received")
		d.shutdown.Break()
	}
}

// record runs one session to completion on the calling goroutine.
func (d *daemon) record(req recorder.Request) {
	res, err := d.session.Start(context.Background(), req)

	// rejected starts never change state, so no listener fired
	d.writeStatus(d.session.Snapshot())

	if res.SessionID == "" {
		return
	}
	if res.Frames > 0 {
		d.writeMetadata(res, err)
	}
	if err := d.monitor.WriteTextfile(d.cfg.MetricsTextfile); err != nil {
		logging.Warnw("failed to write metrics textfile", err, "path", d.cfg.MetricsTextfile)
	}
}

func (d *daemon) writeMetadata(res recorder.Result, runErr error) {
	codec, _ := d.registry.Codec(res.OutputPath)
	meta := &fileutil.RecordingMetadata{
		Version:    Version,
		SessionID:  res.SessionID,
		StartedAt:  res.StartedAt,
		StoppedAt:  res.StoppedAt,
		Duration:   res.Duration().Round(time.Millisecond).String(),
		DurationMs: res.Duration().Milliseconds(),
		Source:     string(res.Kind),
		Device:     d.cfg.DeviceIndex,
		Encoder:    string(d.cfg.SinkEncoder()),
		Codec:      codec,
		Width:      res.Width,
		Height:     res.Height,
		FrameRate:  recorder.FrameRate,
		Frames:     res.Frames,
		StopReason: string(res.Reason),
		OutputFile: res.OutputPath,
	}
	meta.MeasuredFrameRate = meta.EffectiveFrameRate()
	if runErr != nil {
		meta.Error = runErr.Error()
	}
	if err := fileutil.WriteMetadata(res.OutputPath, meta); err != nil {
		logging.Warnw("failed to write recording metadata", err, "path", res.OutputPath)
	}
}

// refreshStatus rewrites status.json while recording so frame counts stay
// current.
func (d *daemon) refreshStatus(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if snap := d.session.Snapshot(); snap.State == statemachine.StateRecording {
				d.writeStatus(snap)
			}
		}
	}
}

func (d *daemon) setLastAction(action string) {
	d.mu.Lock()
	d.lastAction = action
	d.mu.Unlock()
}

func (d *daemon) writeStatus(snap recorder.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ipc.WriteStatus(ipc.NewStatus(snap, d.lastAction)); err != nil {
		logging.Warnw("failed to write status", err)
	}
}
