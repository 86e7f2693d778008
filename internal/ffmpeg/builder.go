package ffmpeg

import (
	"strconv"

	"github.com/backmassage/planemux/internal/frames"
)

// StdinInput is the input path that makes ffmpeg read frames from stdin.
const StdinInput = "-"

// Settings are the encoder options shared by every command of a run.
type Settings struct {
	Bin       string // ffmpeg binary. Default "ffmpeg".
	Codec     string // Preferred video encoder.
	Preset    string // libx264 preset.
	CRF       int    // libx264 constant rate factor.
	PixFmt    string // Output pixel format, normally yuv420p.
	HFlip     bool   // Mirror frames horizontally on encode.
	Container string // "mp4" or "mkv".
	Fallback  bool   // Try the fallback chain when the encoder is unavailable.
	Verbose   bool   // ffmpeg loglevel info and stderr tee.
}

// EncodeSpec describes one raw-to-video encode.
type EncodeSpec struct {
	Input     string // Packed RGB24 file, or StdinInput.
	Output    string
	Geometry  frames.Geometry
	FrameRate int
}

// preamble returns the common leading arguments.
func preamble(s *Settings, stdin bool) []string {
	bin := s.Bin
	if bin == "" {
		bin = "ffmpeg"
	}
	args := []string{bin, "-hide_banner"}
	if !stdin {
		args = append(args, "-nostdin")
	}
	args = append(args, "-y")
	if s.Verbose {
		args = append(args, "-loglevel", "info", "-stats")
	} else {
		args = append(args, "-loglevel", "error")
	}
	return args
}

// BuildEncode returns the argument slice (binary first) that encodes spec
// with codec.
func BuildEncode(s *Settings, spec EncodeSpec, codec string) []string {
	args := preamble(s, spec.Input == StdinInput)
	args = append(args,
		"-f", "rawvideo",
		"-pixel_format", "rgb24",
		"-video_size", spec.Geometry.String(),
		"-framerate", strconv.Itoa(spec.FrameRate),
		"-i", spec.Input,
	)
	if vf := encodeFilters(s, spec.Geometry); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args, "-an")
	args = appendVideoCodec(args, s, codec)
	args = appendContainerOpts(args, s)
	return append(args, spec.Output)
}

// encodeFilters returns the -vf chain: hflip when enabled, and padding to
// even dimensions when the output pixel format is chroma-subsampled.
func encodeFilters(s *Settings, g frames.Geometry) string {
	var chain string
	if s.HFlip {
		chain = "hflip"
	}
	if needsEvenDims(s.PixFmt) && (g.Width%2 != 0 || g.Height%2 != 0) {
		if chain != "" {
			chain += ","
		}
		chain += "pad=ceil(iw/2)*2:ceil(ih/2)*2"
	}
	return chain
}

func needsEvenDims(pixFmt string) bool {
	switch pixFmt {
	case "yuv420p", "yuv422p", "nv12":
		return true
	}
	return false
}

// BuildOverlay returns the arguments that average left and right frame by
// frame into out.
func BuildOverlay(s *Settings, left, right, out, codec string) []string {
	args := preamble(s, false)
	args = append(args,
		"-i", left,
		"-i", right,
		"-filter_complex", "[0:v][1:v]blend=all_mode=average[v]",
		"-map", "[v]",
		"-an",
	)
	args = appendVideoCodec(args, s, codec)
	args = appendContainerOpts(args, s)
	return append(args, out)
}

// BuildSideBySide returns the arguments that stack left, right and overlay
// horizontally into out.
func BuildSideBySide(s *Settings, left, right, overlay, out, codec string) []string {
	args := preamble(s, false)
	args = append(args,
		"-i", left,
		"-i", right,
		"-i", overlay,
		"-filter_complex", "[0:v][1:v][2:v]hstack=inputs=3[v]",
		"-map", "[v]",
		"-an",
	)
	args = appendVideoCodec(args, s, codec)
	args = appendContainerOpts(args, s)
	return append(args, out)
}

// appendVideoCodec adds the codec and its quality arguments.
func appendVideoCodec(args []string, s *Settings, codec string) []string {
	args = append(args, "-c:v", codec)
	switch codec {
	case "libx264":
		if s.Preset != "" {
			args = append(args, "-preset", s.Preset)
		}
		args = append(args, "-crf", strconv.Itoa(s.CRF))
	case "mpeg4":
		args = append(args, "-q:v", "2")
	}
	if s.PixFmt != "" {
		args = append(args, "-pix_fmt", s.PixFmt)
	}
	return args
}

// appendContainerOpts adds the muxer. Outputs are written under a
// ".partial" name, so the format is always explicit.
func appendContainerOpts(args []string, s *Settings) []string {
	switch s.Container {
	case "mkv":
		return append(args, "-f", "matroska")
	default:
		return append(args, "-movflags", "+faststart", "-f", "mp4")
	}
}
