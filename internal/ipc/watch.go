package ipc

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tiroq/camrec/internal/logging"
)

// PollInterval is how often the watcher checks the command file when
// fsnotify events are unavailable or missed.
const PollInterval = time.Second

// settleDelay gives a writer time to finish before the file is read.
const settleDelay = 50 * time.Millisecond

// WatchCommands calls handle for every command written to cmd.json until ctx
// is done. It watches the directory with fsnotify and also polls, falling
// back to polling alone when fsnotify is unavailable. handle runs on the
// watcher goroutine.
func WatchCommands(ctx context.Context, handle func(Command)) error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return err
	}
	cmdPath := CommandPath()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warnw("fsnotify not available, falling back to polling", err)
		return pollCommands(ctx, cmdPath, handle)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Warnw("failed to close watcher", err)
		}
	}()

	if err := watcher.Add(Dir()); err != nil {
		logging.Warnw("failed to watch command directory, falling back to polling", err)
		return pollCommands(ctx, cmdPath, handle)
	}
	logging.Infow("command watcher started", "mode", "fsnotify", "path", cmdPath)

	// drain a command left from before startup
	dispatch(handle)

	pollTicker := time.NewTicker(PollInterval)
	defer pollTicker.Stop()
	lastCheck := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				logging.Infow("fsnotify watcher closed, switching to polling")
				return pollCommands(ctx, cmdPath, handle)
			}
			if event.Name == cmdPath && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				time.Sleep(settleDelay)
				dispatch(handle)
				lastCheck = time.Now()
			}

		case <-pollTicker.C:
			if modifiedSince(cmdPath, lastCheck) {
				time.Sleep(settleDelay)
				dispatch(handle)
				lastCheck = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				logging.Infow("fsnotify error channel closed, switching to polling")
				return pollCommands(ctx, cmdPath, handle)
			}
			logging.Warnw("file watcher error", err)
		}
	}
}

// pollCommands is the polling-only fallback.
func pollCommands(ctx context.Context, cmdPath string, handle func(Command)) error {
	logging.Infow("command watcher started", "mode", "polling", "interval", PollInterval, "path", cmdPath)

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	lastCheck := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if modifiedSince(cmdPath, lastCheck) {
				time.Sleep(settleDelay)
				dispatch(handle)
				lastCheck = time.Now()
			}
		}
	}
}

func modifiedSince(path string, t time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().After(t)
}

func dispatch(handle func(Command)) {
	cmd, ok, err := ReadCommand()
	if err != nil {
		logging.Warnw("failed to read command", err)
		return
	}
	if ok {
		handle(cmd)
	}
}
