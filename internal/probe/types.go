package probe

import (
	"fmt"

	"github.com/backmassage/planemux/internal/frames"
)

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename   string
	FormatName string
	Duration   float64
	Size       int64
	BitRate    int64
}

// VideoStream holds the parsed properties of a single video stream.
type VideoStream struct {
	Index        int
	Codec        string
	PixFmt       string
	Width        int
	Height       int
	AvgFrameRate string
	NbFrames     int // From the container; 0 when unknown.
	NbReadFrames int // Decoded count; only set with -count_frames.
}

// ProbeResult is the parsed output of one ffprobe call. Video is the first
// video stream, nil when the file has none.
type ProbeResult struct {
	Format FormatInfo
	Video  *VideoStream
}

// FrameCount returns the decoded frame count when available, otherwise the
// container's, otherwise 0.
func (p *ProbeResult) FrameCount() int {
	if p.Video == nil {
		return 0
	}
	if p.Video.NbReadFrames > 0 {
		return p.Video.NbReadFrames
	}
	return p.Video.NbFrames
}

// Resolution returns "WxH" for the video stream, or "unknown".
func (p *ProbeResult) Resolution() string {
	if p.Video == nil || p.Video.Width <= 0 || p.Video.Height <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%dx%d", p.Video.Width, p.Video.Height)
}

// MismatchError reports an encoded output that does not match what was fed
// to the encoder.
type MismatchError struct {
	Path       string
	WantFrames int
	GotFrames  int
	WantSize   string
	GotSize    string
}

func (e *MismatchError) Error() string {
	if e.WantSize != e.GotSize {
		return fmt.Sprintf("%s: resolution %s, want %s", e.Path, e.GotSize, e.WantSize)
	}
	return fmt.Sprintf("%s: %d frames, want %d", e.Path, e.GotFrames, e.WantFrames)
}

// Check compares p against the expected frame count and, for each
// non-zero dimension of g, the expected resolution. Encoders may pad odd dimensions up to
// the next even size, which is accepted.
func (p *ProbeResult) Check(path string, wantFrames int, g frames.Geometry) error {
	if p.Video == nil {
		return fmt.Errorf("%s: no video stream", path)
	}
	if !sizeMatches(p.Video.Width, g.Width) || !sizeMatches(p.Video.Height, g.Height) {
		return &MismatchError{Path: path, WantSize: g.String(), GotSize: p.Resolution()}
	}
	if got := p.FrameCount(); got != wantFrames {
		return &MismatchError{Path: path, WantFrames: wantFrames, GotFrames: got}
	}
	return nil
}

func sizeMatches(got, want int) bool {
	if want <= 0 {
		return true
	}
	return got == want || (want%2 == 1 && got == want+1)
}
