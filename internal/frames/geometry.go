package frames

import (
	"fmt"
	"strconv"
	"strings"
)

// Geometry is the fixed pixel size applied to every frame of a channel.
type Geometry struct {
	Width  int
	Height int
}

// Validate returns an *InvalidGeometryError when either dimension is not
// positive.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return &InvalidGeometryError{Width: g.Width, Height: g.Height}
	}
	return nil
}

// FrameSize is the number of bytes one frame occupies in a single channel.
func (g Geometry) FrameSize() int64 {
	return int64(g.Width) * int64(g.Height)
}

// SupportedFrames returns how many whole frames a channel of length bytes
// holds. Trailing partial frames are not counted.
func (g Geometry) SupportedFrames(length int64) int {
	fs := g.FrameSize()
	if fs <= 0 || length <= 0 {
		return 0
	}
	return int(length / fs)
}

// String returns "WxH", the form ffmpeg's -video_size expects.
func (g Geometry) String() string {
	return strconv.Itoa(g.Width) + "x" + strconv.Itoa(g.Height)
}

// ParseGeometry parses "WxH" (case-insensitive x). The result is validated.
func ParseGeometry(s string) (Geometry, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Geometry{}, fmt.Errorf("invalid geometry %q (use WxH, e.g. 160x120)", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return Geometry{}, fmt.Errorf("invalid geometry width %q: %w", w, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return Geometry{}, fmt.Errorf("invalid geometry height %q: %w", h, err)
	}
	g := Geometry{Width: width, Height: height}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}
