// internal/progress/errors.go
package progress

import (
	"regexp"
	"strings"
)

// genericFailure is returned when nothing in the diagnostics looks like an
// actual error message.
const genericFailure = "processing failed with no recognizable error message"

// pythonErrorRegex matches the closing line of a Python traceback and the
// script host's own exception summary. These carry the root cause when the
// generator dies.
var pythonErrorRegex = regexp.MustCompile(`^(?:Python exception:|[A-Za-z_][A-Za-z0-9_.]*(?:Error|Exception):)`)

// toolErrorRegex matches the error vocabulary of the command line tools
// themselves.
var toolErrorRegex = regexp.MustCompile(`(?i)(error|failed|failure|invalid|no such file|permission denied|unable to|cannot|unknown (?:encoder|decoder|option|format)|unrecognized option|not found)`)

// bannerPrefixes identify startup and progress noise that must never be
// mistaken for an error message.
var bannerPrefixes = []string{
	"ffmpeg version",
	"ffprobe version",
	"built with",
	"configuration:",
	"libav",
	"libsw",
	"libpostproc",
	"VapourSynth",
	"Input #",
	"Output #",
	"Stream #",
	"Stream mapping",
	"Press [q]",
	"Metadata:",
	"Duration:",
	"frame=",
	"size=",
	"time=",
	"bitrate=",
}

// ExtractError reduces a failed process's captured diagnostics to the
// single line most useful in a user-facing message. The last Python
// exception line wins over encoder noise, then the last tool error line;
// banners and progress output are never chosen. An unrecognizable buffer
// yields a generic message. The function is pure and never fails.
func ExtractError(diagnostics string) string {
	lines := strings.Split(diagnostics, "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if pythonErrorRegex.MatchString(line) {
			return line
		}
	}

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || isBanner(line) {
			continue
		}
		if toolErrorRegex.MatchString(line) {
			return line
		}
	}

	return genericFailure
}

func isBanner(line string) bool {
	for _, prefix := range bannerPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
