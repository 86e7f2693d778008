package ffmpeg

import (
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// ExternalProcessError reports a failed ffmpeg or ffprobe run.
type ExternalProcessError struct {
	Tool     string
	Args     []string
	ExitCode int    // -1 when the process did not exit normally.
	Stderr   string // Captured stderr.
	Reason   string // Short classification of Stderr.
	Err      error
}

func (e *ExternalProcessError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ExternalProcessError) Unwrap() error { return e.Err }

// newProcessError wraps err from exec with the tool name, arguments and
// classified stderr.
func newProcessError(args []string, stderr string, err error) *ExternalProcessError {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	tool := "ffmpeg"
	if len(args) > 0 {
		tool = args[0]
	}
	return &ExternalProcessError{
		Tool:     tool,
		Args:     args,
		ExitCode: code,
		Stderr:   stderr,
		Reason:   Classify(stderr),
		Err:      err,
	}
}

// Pre-compiled stderr patterns. Checked in order by Classify.
var (
	reEncoderUnavailable = regexp.MustCompile(
		`(?i)Unknown encoder|` +
			`Encoder \S+ not found|` +
			`Error selecting an encoder|` +
			`Requested encoder .* not available|` +
			`Automatic encoder selection failed`)

	reFilterMissing = regexp.MustCompile(
		`(?i)No such filter|Filter not found`)

	reInputTruncated = regexp.MustCompile(
		`(?i)Invalid data found when processing input|` +
			`Invalid buffer size, packet size \d+ < expected frame_size|` +
			`Truncating packet`)

	reDiskFull = regexp.MustCompile(`(?i)No space left on device`)
)

// MatchEncoderUnavailable reports whether stderr says the requested video
// encoder is not built into this ffmpeg.
func MatchEncoderUnavailable(stderr string) bool {
	return reEncoderUnavailable.MatchString(stderr)
}

// MatchFilterMissing reports whether stderr names a missing filter.
func MatchFilterMissing(stderr string) bool {
	return reFilterMissing.MatchString(stderr)
}

// Classify returns a short reason for a failed run: a known category, or
// the last non-empty stderr line.
func Classify(stderr string) string {
	switch {
	case MatchEncoderUnavailable(stderr):
		return "encoder unavailable"
	case MatchFilterMissing(stderr):
		return "filter unavailable"
	case reInputTruncated.MatchString(stderr):
		return "raw input shorter than a whole frame"
	case reDiskFull.MatchString(stderr):
		return "no space left on device"
	}
	return lastLine(stderr)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
