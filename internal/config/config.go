// Package config holds runtime configuration: defaults, CLI flag binding,
// config-file and environment overrides, and validation. Defaults match the
// original capture tooling (160x120 frames at 111 fps, libx264/yuv420p,
// horizontal flip).
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/backmassage/planemux/internal/frames"
)

// --- Enum types for validated string fields ---

// Container is the output container format (and file extension).
type Container string

const (
	ContainerMP4 Container = "mp4" // MP4 (default).
	ContainerMKV Container = "mkv" // Matroska.
)

// IntermediateMode selects how packed frames reach the encoder.
type IntermediateMode string

const (
	IntermediateFile IntermediateMode = "file" // Per-session temp .rgb file, deleted after compositing (default).
	IntermediatePipe IntermediateMode = "pipe" // Streamed into ffmpeg's stdin.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// then by the config file, PLANEMUX_* environment variables and CLI flags
// (lowest to highest precedence), and is passed by pointer to packages that
// need it.
type Config struct {
	// Paths (set from positional args).
	InputDir   string
	OutputDir  string
	Extension  string // Channel file extension. Default: ".bin".
	TempDir    string // Parent of per-session temp dirs. Default: OS temp dir.
	ConfigFile string // TOML or YAML config file path.

	// Frame layout and interleaving.
	Width        int               // Default: 160.
	Height       int               // Default: 120.
	FrameRate    int               // Default: 111.
	SizePolicy   frames.SizePolicy // Default: truncate.
	Strategy     frames.Strategy   // Default: auto.
	ChunkFrames  int               // Default: 64.
	MemoryBudget int64             // Bytes per worker; 0 derives it from available memory.
	GreenScale   float64           // Default: 1 (off). The original tooling used 0.5.
	Intermediate IntermediateMode  // Default: file.

	// Encoder settings.
	FFmpegBin     string    // Default: "ffmpeg".
	FFprobeBin    string    // Default: "ffprobe".
	VideoCodec    string    // Default: "libx264".
	Preset        string    // Default: "medium".
	CRF           int       // Default: 18.
	PixFmt        string    // Fixed default: "yuv420p".
	HFlip         bool      // Default: true. Cleared by --no-hflip.
	CodecFallback bool      // Default: true. Cleared by --no-codec-fallback.
	Container     Container // Default: "mp4".

	// Behavior flags.
	Workers       int  // 0 = one per logical CPU.
	DryRun        bool
	SkipExisting  bool // Default: true. Cleared by --force.
	Verify        bool // Default: true. Cleared by --no-verify.
	Analyze       bool // Print the session table and exit.
	Watch         bool
	WatchDebounce time.Duration // Default: 2s.
	ReportFile    string        // Optional YAML run report.

	// Display and logging.
	Verbose   bool
	ColorMode ColorMode // Default: "auto".
	LogFile   string    // Optional log file path.
	CheckOnly bool      // Run --check diagnostics and exit.
}

// DefaultConfig returns a Config with every default applied. Used as the
// base before file, environment and flag overrides.
func DefaultConfig() Config {
	return Config{
		Extension:     ".bin",
		Width:         160,
		Height:        120,
		FrameRate:     111,
		SizePolicy:    frames.PolicyTruncate,
		Strategy:      frames.StrategyAuto,
		ChunkFrames:   frames.DefaultChunkFrames,
		MemoryBudget:  0,
		GreenScale:    1,
		Intermediate:  IntermediateFile,
		FFmpegBin:     "ffmpeg",
		FFprobeBin:    "ffprobe",
		VideoCodec:    "libx264",
		Preset:        "medium",
		CRF:           18,
		PixFmt:        "yuv420p",
		HFlip:         true,
		CodecFallback: true,
		Container:     ContainerMP4,
		Workers:       0,
		SkipExisting:  true,
		Verify:        true,
		WatchDebounce: 2 * time.Second,
		ColorMode:     ColorAuto,
	}
}

// Geometry returns the configured frame geometry.
func (c *Config) Geometry() frames.Geometry {
	return frames.Geometry{Width: c.Width, Height: c.Height}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and numeric ranges. An invalid geometry is
// returned as a wrapped *frames.InvalidGeometryError. When not in CheckOnly
// mode it also requires both directory paths.
func (c *Config) Validate() error {
	if err := c.Geometry().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.FrameRate <= 0 {
		return errors.New("frame rate must be positive")
	}

	switch c.SizePolicy {
	case frames.PolicyTruncate, frames.PolicyStrict:
		// valid
	default:
		return errors.New("invalid size policy (use 'truncate' or 'strict')")
	}

	switch c.Strategy {
	case frames.StrategyAuto, frames.StrategyMaterialize, frames.StrategyChunked:
		// valid
	default:
		return errors.New("invalid strategy (use 'auto', 'materialize' or 'chunked')")
	}

	switch c.Intermediate {
	case IntermediateFile, IntermediatePipe:
		// valid
	default:
		return errors.New("invalid intermediate mode (use 'file' or 'pipe')")
	}

	switch c.Container {
	case ContainerMP4, ContainerMKV:
		// valid
	default:
		return errors.New("invalid container (use 'mp4' or 'mkv')")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if c.ChunkFrames < 0 {
		return errors.New("chunk frames must not be negative")
	}
	if c.MemoryBudget < 0 {
		return errors.New("memory budget must not be negative")
	}
	if c.GreenScale < 0 {
		return errors.New("green scale must not be negative")
	}
	if c.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	if c.CRF < 0 || c.CRF > 51 {
		return fmt.Errorf("invalid CRF %d (use 0-51)", c.CRF)
	}
	if c.VideoCodec == "" {
		return errors.New("video codec must not be empty")
	}
	if c.Extension != "" && !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}

	if c.CheckOnly {
		return nil
	}
	if c.InputDir == "" || c.OutputDir == "" {
		return errors.New("need exactly input_dir and output_dir")
	}
	return nil
}

// ValidatePaths ensures the resolved output directory is not inside (or equal
// to) the resolved input directory, so a watch or re-run never treats its
// own output as input. Both arguments must be absolute, symlink-resolved
// paths.
func (c *Config) ValidatePaths(inputAbs, outputAbs string) error {
	sep := string(filepath.Separator)
	if outputAbs == inputAbs || strings.HasPrefix(outputAbs+sep, inputAbs+sep) {
		return errors.New("output directory must not be inside input directory")
	}
	return nil
}
