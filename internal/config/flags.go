package config

// This file binds CLI flags onto a Config through pflag.
// Flags are grouped into frame layout, encoding, behavior, display, and utility.
// Negated flags (e.g. --no-hflip) are applied after Parse so Config defaults hold unless set.

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/backmassage/planemux/internal/frames"
)

// NegatedFlags holds boolean flags that invert a default. They are applied
// by [ApplyNegatedFlags] after parsing.
type NegatedFlags struct {
	noHFlip         bool
	noCodecFallback bool
	noVerify        bool
	force           bool
	forceColor      bool
	noColor         bool
}

// BindFlags registers every flag on fs with cfg's current values as
// defaults. The returned NegatedFlags must be passed to ApplyNegatedFlags
// once fs has been parsed.
func BindFlags(fs *pflag.FlagSet, cfg *Config) *NegatedFlags {
	n := &NegatedFlags{}
	defineFrameFlags(fs, cfg)
	defineEncodingFlags(fs, cfg, n)
	defineBehaviorFlags(fs, cfg, n)
	defineDisplayFlags(fs, cfg, n)
	return n
}

// defineFrameFlags registers geometry, rate, size policy, strategy and memory flags.
func defineFrameFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Width, "width", cfg.Width, "Frame width in pixels")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "Frame height in pixels")
	fs.IntVarP(&cfg.FrameRate, "fps", "r", cfg.FrameRate, "Frame rate passed to the encoder")
	fs.Var(&sizePolicyValue{&cfg.SizePolicy}, "size-policy", "Channel length mismatch: truncate | strict")
	fs.Var(&strategyValue{&cfg.Strategy}, "strategy", "Interleave strategy: auto | materialize | chunked")
	fs.IntVar(&cfg.ChunkFrames, "chunk-frames", cfg.ChunkFrames, "Frames per interleave pass when chunked")
	fs.Var(&bytesValue{&cfg.MemoryBudget}, "memory-budget", "Per-worker buffer budget, e.g. 256MiB (default: derived from free memory)")
	fs.Float64Var(&cfg.GreenScale, "green-scale", cfg.GreenScale, "Scale factor applied to the green channel (original tooling: 0.5)")
	fs.StringVar(&cfg.Extension, "ext", cfg.Extension, "Channel file extension")
	fs.Var(&intermediateValue{&cfg.Intermediate}, "intermediate", "Packed frames to encoder via: file | pipe")
	fs.StringVar(&cfg.TempDir, "temp-dir", cfg.TempDir, "Parent directory for per-session temp files")
}

// defineEncodingFlags registers codec, quality, container and tool path flags.
func defineEncodingFlags(fs *pflag.FlagSet, cfg *Config, n *NegatedFlags) {
	fs.StringVar(&cfg.VideoCodec, "codec", cfg.VideoCodec, "ffmpeg video encoder")
	fs.StringVarP(&cfg.Preset, "preset", "p", cfg.Preset, "Encoder preset (libx264)")
	fs.IntVarP(&cfg.CRF, "crf", "q", cfg.CRF, "Constant rate factor (libx264, 0-51)")
	fs.Var(&containerValue{&cfg.Container}, "container", "Output container: mp4 | mkv")
	fs.StringVar(&cfg.FFmpegBin, "ffmpeg", cfg.FFmpegBin, "ffmpeg binary")
	fs.StringVar(&cfg.FFprobeBin, "ffprobe", cfg.FFprobeBin, "ffprobe binary")
	fs.BoolVar(&n.noHFlip, "no-hflip", false, "Do not mirror frames horizontally")
	fs.BoolVar(&n.noCodecFallback, "no-codec-fallback", false, "Fail instead of trying fallback encoders")
}

// defineBehaviorFlags registers workers, dry-run, force, verify, watch, analyze and report.
func defineBehaviorFlags(fs *pflag.FlagSet, cfg *Config, n *NegatedFlags) {
	fs.IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "Sessions processed in parallel (0 = one per CPU)")
	fs.BoolVarP(&cfg.DryRun, "dry-run", "d", cfg.DryRun, "Group and plan only; write nothing")
	fs.BoolVarP(&n.force, "force", "f", false, "Re-process sessions whose outputs exist")
	fs.BoolVar(&n.noVerify, "no-verify", false, "Skip ffprobe frame-count verification")
	fs.BoolVar(&cfg.Analyze, "analyze", cfg.Analyze, "Print the session table and exit")
	fs.BoolVarP(&cfg.Watch, "watch", "w", cfg.Watch, "Keep running and process sessions as files arrive")
	fs.DurationVar(&cfg.WatchDebounce, "watch-debounce", cfg.WatchDebounce, "Quiet period before a watch re-run")
	fs.StringVar(&cfg.ReportFile, "report", cfg.ReportFile, "Write a YAML run report to this path")
}

// defineDisplayFlags registers --color, --no-color, verbose, --check, --log, --config.
func defineDisplayFlags(fs *pflag.FlagSet, cfg *Config, n *NegatedFlags) {
	fs.BoolVar(&n.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&n.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output (debug logs, ffmpeg stderr)")
	fs.BoolVarP(&cfg.CheckOnly, "check", "c", cfg.CheckOnly, "Run system diagnostics and exit")
	fs.StringVarP(&cfg.LogFile, "log", "l", cfg.LogFile, "Append logs to file")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Config file (.toml or .yaml; default $HOME/.planemux/config.toml)")
}

// ApplyNegatedFlags copies negated flag values into cfg (e.g. noHFlip -> HFlip=false).
func ApplyNegatedFlags(cfg *Config, n *NegatedFlags) {
	if n.noHFlip {
		cfg.HFlip = false
	}
	if n.noCodecFallback {
		cfg.CodecFallback = false
	}
	if n.noVerify {
		cfg.Verify = false
	}
	if n.force {
		cfg.SkipExisting = false
	}
	if n.noColor {
		cfg.ColorMode = ColorNever
	} else if n.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// ApplyPositionalArgs sets InputDir and OutputDir from the two positional
// args. With no args the directories from the config file stand.
func ApplyPositionalArgs(cfg *Config, args []string) error {
	if len(args) == 0 {
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("need exactly input_dir and output_dir, got %d args", len(args))
	}
	cfg.InputDir = NormalizeDirArg(args[0])
	cfg.OutputDir = NormalizeDirArg(args[1])
	return nil
}

// ChangedFlags returns the names of flags set on the command line. Negated
// flags are reported under the name of the setting they control so file
// and environment values for that setting are not applied over them.
func ChangedFlags(fs *pflag.FlagSet) map[string]bool {
	changed := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) {
		changed[f.Name] = true
		switch f.Name {
		case "no-hflip":
			changed["hflip"] = true
		case "no-codec-fallback":
			changed["codec-fallback"] = true
		case "no-verify":
			changed["verify"] = true
		case "force":
			changed["skip-existing"] = true
		case "no-color":
			changed["color"] = true
		}
	})
	return changed
}

// pflag.Value adapters for the enum and size types.

type sizePolicyValue struct{ p *frames.SizePolicy }

func (v *sizePolicyValue) String() string { return string(*v.p) }
func (v *sizePolicyValue) Type() string   { return "policy" }
func (v *sizePolicyValue) Set(s string) error {
	p, err := ParseSizePolicy(s)
	if err != nil {
		return err
	}
	*v.p = p
	return nil
}

type strategyValue struct{ p *frames.Strategy }

func (v *strategyValue) String() string { return string(*v.p) }
func (v *strategyValue) Type() string   { return "strategy" }
func (v *strategyValue) Set(s string) error {
	st, err := ParseStrategy(s)
	if err != nil {
		return err
	}
	*v.p = st
	return nil
}

type intermediateValue struct{ p *IntermediateMode }

func (v *intermediateValue) String() string { return string(*v.p) }
func (v *intermediateValue) Type() string   { return "mode" }
func (v *intermediateValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "file":
		*v.p = IntermediateFile
	case "pipe":
		*v.p = IntermediatePipe
	default:
		return fmt.Errorf("invalid intermediate mode %q (use 'file' or 'pipe')", s)
	}
	return nil
}

type containerValue struct{ p *Container }

func (c *containerValue) String() string { return string(*c.p) }
func (c *containerValue) Type() string   { return "container" }
func (c *containerValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "mp4":
		*c.p = ContainerMP4
	case "mkv":
		*c.p = ContainerMKV
	default:
		return fmt.Errorf("invalid container %q (use 'mp4' or 'mkv')", s)
	}
	return nil
}

type bytesValue struct{ p *int64 }

func (b *bytesValue) String() string {
	if *b.p == 0 {
		return "auto"
	}
	return humanize.IBytes(uint64(*b.p))
}
func (b *bytesValue) Type() string { return "size" }
func (b *bytesValue) Set(s string) error {
	n, err := ParseBytes(s)
	if err != nil {
		return err
	}
	*b.p = n
	return nil
}

// ParseSizePolicy accepts "truncate" or "strict" (any case).
func ParseSizePolicy(s string) (frames.SizePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "truncate":
		return frames.PolicyTruncate, nil
	case "strict":
		return frames.PolicyStrict, nil
	}
	return "", fmt.Errorf("invalid size policy %q (use 'truncate' or 'strict')", s)
}

// ParseStrategy accepts "auto", "materialize" or "chunked" (any case).
func ParseStrategy(s string) (frames.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return frames.StrategyAuto, nil
	case "materialize":
		return frames.StrategyMaterialize, nil
	case "chunked":
		return frames.StrategyChunked, nil
	}
	return "", fmt.Errorf("invalid strategy %q (use 'auto', 'materialize' or 'chunked')", s)
}

// ParseBytes parses a human size ("256MiB", "1.5 GB", "1048576"). "auto"
// and "" yield 0.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}
