package obsws

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// MinWebSocketMajor is the oldest obs-websocket protocol this client speaks.
const MinWebSocketMajor = 5

// ErrIncompatible is returned by Connect when OBS announces an older
// obs-websocket protocol.
var ErrIncompatible = errors.New("incompatible obs-websocket version")

var versionRe = regexp.MustCompile(`^(\d+)\.(\d+)`)

// CheckWebSocketVersion validates the obsWebSocketVersion from Hello.
func CheckWebSocketVersion(v string) error {
	m := versionRe.FindStringSubmatch(v)
	if m == nil {
		return fmt.Errorf("%w: cannot parse %q", ErrIncompatible, v)
	}
	major, _ := strconv.Atoi(m[1])
	if major < MinWebSocketMajor {
		return fmt.Errorf("%w: v%s (requires %d.x or later)", ErrIncompatible, v, MinWebSocketMajor)
	}
	return nil
}

// Fixes returns troubleshooting steps for an error from this package.
func Fixes(err error) []string {
	var reqErr *RequestError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrIncompatible):
		return []string{
			"Update OBS to 28.0 or later (bundles obs-websocket 5.x)",
		}
	case errors.Is(err, ErrNoWindowCapture):
		return []string{
			"Add a Window Capture source to any OBS scene",
			"or set window_source: placeholder in the camrec config",
		}
	case errors.As(err, &reqErr) && reqErr.Code == 204:
		return []string{
			"Check OBS version: About OBS > Version (need 28.0+)",
			"Verify OBS > Tools > obs-websocket Settings has the server enabled",
		}
	case errors.As(err, &reqErr) && reqErr.Code == 203:
		return []string{
			"OBS is busy or frozen, restart it and try again",
		}
	case errors.Is(err, ErrNotConnected):
		return []string{
			"Make sure OBS is running with the WebSocket server enabled",
			"Check that obs_url in the camrec config matches the server port",
		}
	default:
		return []string{
			"Review OBS logs: Help > Logs > View Current Log",
		}
	}
}
