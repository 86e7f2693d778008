// Package display formats sizes, counts and durations for console output.
package display

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes returns a binary-prefixed size such as "281 KiB".
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatFrames returns a frame count with thousands separators, e.g.
// "12,000 frames".
func FormatFrames(n int) string {
	if n == 1 {
		return "1 frame"
	}
	return humanize.Comma(int64(n)) + " frames"
}

// FormatDuration rounds d for log lines: milliseconds below one second,
// tenths of a second below a minute, whole seconds beyond.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

// FormatPlayback returns the playback length of frames at fps, e.g.
// "0.4s" for 40 frames at 111 fps.
func FormatPlayback(frames, fps int) string {
	if fps <= 0 {
		return "?"
	}
	secs := float64(frames) / float64(fps)
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	return (time.Duration(secs * float64(time.Second))).Round(time.Second).String()
}

// FormatRate returns a throughput in frames per second.
func FormatRate(frames int, d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f fps", float64(frames)/d.Seconds())
}
