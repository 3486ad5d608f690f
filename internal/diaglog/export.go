package diaglog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Version is injected at link time from the main package; defaults to "dev".
var Version = "dev"

// DiagBundle is the first line written to the export file (valid NDJSON).
type DiagBundle struct {
	ExportedAt    string `json:"exported_at"`
	CamrecVersion string `json:"camrec_version"`
	GoVersion     string `json:"go_version"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	LogFile       string `json:"log_file"`
	SessionID     string `json:"session_id,omitempty"`
	EntryCount    int    `json:"entry_count"`
}

// Export copies logPath into dest/camrec-diag-<ts>.ndjson behind a DiagBundle
// header line. Returns the written file path and number of log lines included.
func Export(logPath, dest string) (path string, lines int, err error) {
	return ExportSession(logPath, dest, "")
}

// ExportSession is Export restricted to lines whose session_id equals
// sessionID. An empty sessionID keeps every line.
func ExportSession(logPath, dest, sessionID string) (path string, lines int, err error) {
	rawLines, err := readLines(logPath, sessionID)
	if err != nil {
		return "", 0, err
	}

	tstamp := time.Now().UTC().Format("20060102T150405")
	outPath := filepath.Join(dest, "camrec-diag-"+tstamp+".ndjson")

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("output file could not be created: %w", err)
	}
	defer func() { _ = out.Close() }()

	w := bufio.NewWriter(out)
	header, err := json.Marshal(DiagBundle{
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
		CamrecVersion: Version,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		LogFile:       logPath,
		SessionID:     sessionID,
		EntryCount:    len(rawLines),
	})
	if err != nil {
		return "", 0, err
	}
	for _, line := range append([][]byte{header}, rawLines...) {
		if _, err := w.Write(append(line, '\n')); err != nil {
			return "", 0, err
		}
	}
	if err := w.Flush(); err != nil {
		return "", 0, err
	}
	return outPath, len(rawLines), nil
}

func readLines(logPath, sessionID string) ([][]byte, error) {
	src, err := os.Open(logPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("log file not found at %s: %w", logPath, os.ErrNotExist)
		}
		return nil, fmt.Errorf("log file unreadable: %w", err)
	}
	defer func() { _ = src.Close() }()

	// the live log is capped by lumberjack, so buffering it is bounded
	var rawLines [][]byte
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxSizeMB*1024*1024)
	for scanner.Scan() {
		if sessionID != "" && !matchesSession(scanner.Bytes(), sessionID) {
			continue
		}
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		rawLines = append(rawLines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("log file unreadable: %w", err)
	}
	return rawLines, nil
}

func matchesSession(line []byte, sessionID string) bool {
	var rec struct {
		SessionID string `json:"session_id"`
	}
	if json.Unmarshal(line, &rec) != nil {
		return false
	}
	return rec.SessionID == sessionID
}
