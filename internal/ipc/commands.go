package ipc

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tiroq/camrec/internal/media"
)

// Verb is what the UI shell asks the daemon to do.
type Verb string

const (
	CmdStart Verb = "start" // Start recording the selected source
	CmdStop  Verb = "stop"  // Stop recording
	CmdQuit  Verb = "quit"  // Shutdown daemon
)

// Command is one request from a UI shell to the daemon. Source, Path and
// Window only apply to CmdStart.
type Command struct {
	Verb   Verb             `json:"command"`
	Source media.SourceKind `json:"source,omitempty"`
	Path   string           `json:"path,omitempty"`
	Window string           `json:"window,omitempty"`
}

// Start builds a start command.
func Start(kind media.SourceKind, path, window string) Command {
	return Command{Verb: CmdStart, Source: kind, Path: path, Window: window}
}

// WriteCommand replaces the pending command in ~/.cache/camrec/cmd.json.
func WriteCommand(cmd Command) error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return err
	}
	return atomicWriteJSON(CommandPath(), cmd)
}

// ReadCommand reads and clears ~/.cache/camrec/cmd.json.
// Returns ok=false if there is no command, the file is empty, or the verb
// is unknown.
func ReadCommand() (cmd Command, ok bool, err error) {
	path := CommandPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Command{}, false, nil
		}
		return Command{}, false, err
	}

	// Clear immediately to prevent re-execution
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return Command{}, false, err
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return Command{}, false, nil
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, false, fmt.Errorf("parse %s: %w", path, err)
	}

	switch cmd.Verb {
	case CmdStart, CmdStop, CmdQuit:
		return cmd, true, nil
	default:
		return Command{}, false, nil
	}
}
