// Package diaglog provides structured NDJSON diagnostic logging for camrec.
// Activated by CAMREC_DEBUG_RECORDING=true. When the env var is absent, all
// Log calls are no-ops and no file is created.
package diaglog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ── Component labels ────────────────────────────────────────────────────────

const (
	ComponentSession    = "recording-session"
	ComponentIPC        = "ipc-watcher"
	ComponentOBSClient  = "obs-ws-client"
	ComponentDiagExport = "diag-export"
	ComponentCore       = "camrec-core"
)

// ── Event names ─────────────────────────────────────────────────────────────

const (
	EventRecordingStart = "recording_start"
	EventRecordingStop  = "recording_stop"
	EventStartRejected  = "recording_start_rejected"
	EventFrameError     = "frame_error"
	EventTeardownError  = "teardown_error"
	EventCommand        = "command_received"
	EventWSSend         = "ws_send"
	EventWSRecv         = "ws_recv"
	EventWSConnect      = "ws_connect"
	EventWSDisconnect   = "ws_disconnect"
)

// maxSizeMB caps the log file before lumberjack rotates it.
const maxSizeMB = 10

// LogEntry is one structured event record written as a single JSON line.
type LogEntry struct {
	Component string      // see Component* constants
	Event     string      // see Event* constants
	SessionID string      // recording session, when known
	Reason    string      // why the event happened
	Payload   interface{} // redacted before write
}

// Logger writes LogEntry values to a rolling NDJSON file. When debug mode is
// disabled every Log call is a no-op.
type Logger struct {
	z       *zap.Logger
	file    *lumberjack.Logger
	mu      sync.Mutex
	enabled bool
}

// New opens (or creates) the NDJSON log file at path. If debug mode is
// disabled, path is ignored and a no-op logger is returned.
func New(path string) (*Logger, error) {
	if !IsDebugEnabled() {
		return &Logger{enabled: false}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	_ = f.Close()

	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 1,
	}
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		MessageKey:     "event",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(lj), zapcore.DebugLevel)
	return &Logger{z: zap.New(core), file: lj, enabled: true}, nil
}

// Log writes entry as one JSON line. Sensitive payload fields are redacted
// first.
func (l *Logger) Log(entry LogEntry) {
	if l == nil || !l.enabled {
		return
	}
	fields := make([]zap.Field, 0, 4)
	fields = append(fields, zap.String("component", entry.Component))
	if entry.SessionID != "" {
		fields = append(fields, zap.String("session_id", entry.SessionID))
	}
	if entry.Reason != "" {
		fields = append(fields, zap.String("reason", entry.Reason))
	}
	if entry.Payload != nil {
		fields = append(fields, zap.Any("payload", Redact(entry.Payload)))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.z == nil {
		return
	}
	l.z.Info(entry.Event, fields...)
}

// Close flushes and closes the underlying file. Safe on nil/disabled logger.
func (l *Logger) Close() error {
	if l == nil || !l.enabled {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.z == nil {
		return nil
	}
	_ = l.z.Sync()
	l.z = nil
	return l.file.Close()
}

// IsDebugEnabled reports whether CAMREC_DEBUG_RECORDING is set to "true".
func IsDebugEnabled() bool {
	return os.Getenv("CAMREC_DEBUG_RECORDING") == "true"
}

// DefaultPath returns CAMREC_LOG_PATH or /tmp/camrec-debug.log.
func DefaultPath() string {
	if p := os.Getenv("CAMREC_LOG_PATH"); p != "" {
		return p
	}
	return "/tmp/camrec-debug.log"
}

// NewNoOp returns a logger where every Log call is a no-op. Use as a safe
// fallback when New fails (e.g., disk full, permissions error).
func NewNoOp() *Logger {
	return &Logger{enabled: false}
}
