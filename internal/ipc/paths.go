package ipc

import (
	"os"
	"path/filepath"
)

const (
	commandFile = "cmd.json"
	statusFile  = "status.json"
)

// Dir returns ~/.cache/camrec, the directory shared by the core daemon and
// its clients.
func Dir() string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "camrec")
}

// CommandPath returns the path of the pending command file.
func CommandPath() string {
	return filepath.Join(Dir(), commandFile)
}

// StatusPath returns the path of the status snapshot file.
func StatusPath() string {
	return filepath.Join(Dir(), statusFile)
}
