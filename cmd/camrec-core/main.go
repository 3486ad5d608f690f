package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tiroq/camrec/internal/config"
	"github.com/tiroq/camrec/internal/cv"
	"github.com/tiroq/camrec/internal/diaglog"
	"github.com/tiroq/camrec/internal/logging"
	"github.com/tiroq/camrec/internal/media"
	"github.com/tiroq/camrec/internal/metrics"
	"github.com/tiroq/camrec/internal/pidfile"
	"github.com/tiroq/camrec/internal/recorder"
	"github.com/tiroq/camrec/internal/sink"
	"github.com/tiroq/camrec/internal/source"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	// --export-diag [session-id]: read log, write bundle, exit
	if len(os.Args) > 1 && os.Args[1] == "--export-diag" {
		os.Exit(exportDiag(os.Args[2:]))
	}

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC in camrec-core: %v\n", r)
			logging.Errorw("panic", nil, "recovered", r)
			logging.Sync()
			os.Exit(1)
		}
	}()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "camrec-core:", err)
		logging.Sync()
		os.Exit(1)
	}
}

func exportDiag(args []string) int {
	sessionID := ""
	if len(args) > 0 {
		sessionID = args[0]
	}
	diaglog.Version = Version
	path, n, err := diaglog.ExportSession(diaglog.DefaultPath(), ".", sessionID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "hint: run with CAMREC_DEBUG_RECORDING=true to enable logging")
			return 1
		}
		return 2
	}
	fmt.Printf("Wrote: %s (%d lines)\n", path, n)
	return 0
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logging.Init("camrec-core", cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()
	logging.Infow("starting camrec-core", "version", Version, "pid", os.Getpid(), "config", config.Path())

	pidFilePath := pidfile.GetPIDFilePath("camrec-core")
	pf, err := pidfile.New(pidFilePath)
	if err != nil {
		if errors.Is(err, pidfile.ErrAlreadyRunning) {
			logging.Errorw("another camrec-core is running", err, "pidfile", pidFilePath)
		}
		return err
	}
	defer func() {
		if err := pf.Remove(); err != nil {
			logging.Warnw("failed to remove PID file", err)
		}
	}()

	diaglog.Version = Version
	logPath := diaglog.DefaultPath()
	diagLogger, err := diaglog.New(logPath)
	if err != nil {
		logging.Warnw("could not open diagnostic log, continuing", err, "path", logPath)
		diagLogger = diaglog.NewNoOp()
	}
	defer func() { _ = diagLogger.Close() }()

	var monitor *metrics.SessionMonitor
	if cfg.MetricsTextfile != "" {
		monitor = metrics.NewSessionMonitor()
	}

	registry := &sink.Registry{
		Encoder:     cfg.SinkEncoder(),
		JPEGQuality: cfg.JPEGQuality,
		OpenCV:      cv.NewWriter,
	}
	selector := source.Selector{
		Camera: func() media.Source { return cv.NewCamera(cfg.DeviceIndex) },
	}
	session := recorder.New(selector, registry,
		recorder.WithDiagLogger(diagLogger),
		recorder.WithMetrics(monitor),
	)

	d := newDaemon(cfg, session, registry, diagLogger, monitor)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Infow("received signal, shutting down", "signal", sig.String())
			d.shutdown.Break()
		case <-d.shutdown.Watch():
		}
	}()

	return d.Run(context.Background())
}
