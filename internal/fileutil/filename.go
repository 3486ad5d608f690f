package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tiroq/camrec/internal/media"
)

// DefaultExtension is appended to destinations chosen without one.
const DefaultExtension = ".avi"

var (
	illegalChars = regexp.MustCompile(`[\/\\:*?"<>|]`)
	whitespace   = regexp.MustCompile(`[\s_]+`)
)

// SanitizeForFilename sanitizes a string for safe use in filenames
func SanitizeForFilename(input string) string {
	// Illegal chars: / \ : * ? " < > |
	sanitized := illegalChars.ReplaceAllString(input, "_")
	sanitized = whitespace.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")

	if len(sanitized) > 50 {
		sanitized = strings.TrimRight(sanitized[:50], "-")
	}
	if sanitized == "" {
		return "Recording"
	}
	return sanitized
}

// DefaultFilename returns YYYY-MM-DD_HHMMSS_<label>.avi for a recording
// started at t.
func DefaultFilename(t time.Time, label string) string {
	return t.Format("2006-01-02_150405") + "_" + SanitizeForFilename(label) + DefaultExtension
}

// ResolveDestination turns the user's choice into an absolute output path.
// An existing directory gets a DefaultFilename inside it, a file name
// without an extension gets DefaultExtension. An empty choice is
// media.ErrNoSelection.
func ResolveDestination(choice, label string, now time.Time) (string, error) {
	if strings.TrimSpace(choice) == "" {
		return "", fmt.Errorf("destination path: %w", media.ErrNoSelection)
	}
	if strings.HasPrefix(choice, "~/") {
		choice = filepath.Join(os.Getenv("HOME"), choice[2:])
	}
	abs, err := filepath.Abs(choice)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", choice, err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return filepath.Join(abs, DefaultFilename(now, label)), nil
	}
	if filepath.Ext(abs) == "" {
		abs += DefaultExtension
	}
	return abs, nil
}
