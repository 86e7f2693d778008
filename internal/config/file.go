package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config for TOML and YAML files. Durations, sizes and
// enums are strings; booleans are pointers so an absent key leaves the
// default alone.
type FileConfig struct {
	InputDir      string  `toml:"input_dir" yaml:"input_dir"`
	OutputDir     string  `toml:"output_dir" yaml:"output_dir"`
	Extension     string  `toml:"extension" yaml:"extension"`
	TempDir       string  `toml:"temp_dir" yaml:"temp_dir"`
	Width         int     `toml:"width" yaml:"width"`
	Height        int     `toml:"height" yaml:"height"`
	FrameRate     int     `toml:"fps" yaml:"fps"`
	SizePolicy    string  `toml:"size_policy" yaml:"size_policy"`
	Strategy      string  `toml:"strategy" yaml:"strategy"`
	ChunkFrames   int     `toml:"chunk_frames" yaml:"chunk_frames"`
	MemoryBudget  string  `toml:"memory_budget" yaml:"memory_budget"`
	GreenScale    float64 `toml:"green_scale" yaml:"green_scale"`
	Intermediate  string  `toml:"intermediate" yaml:"intermediate"`
	FFmpegBin     string  `toml:"ffmpeg" yaml:"ffmpeg"`
	FFprobeBin    string  `toml:"ffprobe" yaml:"ffprobe"`
	VideoCodec    string  `toml:"codec" yaml:"codec"`
	Preset        string  `toml:"preset" yaml:"preset"`
	CRF           int     `toml:"crf" yaml:"crf"`
	Container     string  `toml:"container" yaml:"container"`
	HFlip         *bool   `toml:"hflip" yaml:"hflip"`
	CodecFallback *bool   `toml:"codec_fallback" yaml:"codec_fallback"`
	Workers       int     `toml:"workers" yaml:"workers"`
	SkipExisting  *bool   `toml:"skip_existing" yaml:"skip_existing"`
	Verify        *bool   `toml:"verify" yaml:"verify"`
	WatchDebounce string  `toml:"watch_debounce" yaml:"watch_debounce"`
	ReportFile    string  `toml:"report" yaml:"report"`
	Verbose       *bool   `toml:"verbose" yaml:"verbose"`
	Color         string  `toml:"color" yaml:"color"`
	LogFile       string  `toml:"log_file" yaml:"log_file"`
}

// LoadFileConfig reads a config file. Files ending in .yaml or .yml are
// parsed as YAML; everything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.planemux/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".planemux", "config.toml")
	}
	return ""
}

// FileExists reports whether a file exists at p.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// ApplyFileConfig copies set values from fc into cfg, skipping any setting
// whose flag appears in changed.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("input", fc.InputDir, &cfg.InputDir)
	s.setString("output", fc.OutputDir, &cfg.OutputDir)
	s.setString("ext", fc.Extension, &cfg.Extension)
	s.setString("temp-dir", fc.TempDir, &cfg.TempDir)
	s.setString("ffmpeg", fc.FFmpegBin, &cfg.FFmpegBin)
	s.setString("ffprobe", fc.FFprobeBin, &cfg.FFprobeBin)
	s.setString("codec", fc.VideoCodec, &cfg.VideoCodec)
	s.setString("preset", fc.Preset, &cfg.Preset)
	s.setString("report", fc.ReportFile, &cfg.ReportFile)
	s.setString("log", fc.LogFile, &cfg.LogFile)

	s.setInt("width", fc.Width, &cfg.Width)
	s.setInt("height", fc.Height, &cfg.Height)
	s.setInt("fps", fc.FrameRate, &cfg.FrameRate)
	s.setInt("chunk-frames", fc.ChunkFrames, &cfg.ChunkFrames)
	s.setInt("crf", fc.CRF, &cfg.CRF)
	s.setInt("workers", fc.Workers, &cfg.Workers)
	s.setFloat("green-scale", fc.GreenScale, &cfg.GreenScale)

	if err := s.setDuration("watch-debounce", fc.WatchDebounce, &cfg.WatchDebounce); err != nil {
		return err
	}
	if err := s.setBytes("memory-budget", fc.MemoryBudget, &cfg.MemoryBudget); err != nil {
		return err
	}
	if err := s.setEnums(cfg, fc.SizePolicy, fc.Strategy, fc.Intermediate, fc.Container, fc.Color); err != nil {
		return err
	}

	s.setBool("hflip", fc.HFlip, &cfg.HFlip)
	s.setBool("codec-fallback", fc.CodecFallback, &cfg.CodecFallback)
	s.setBool("skip-existing", fc.SkipExisting, &cfg.SkipExisting)
	s.setBool("verify", fc.Verify, &cfg.Verify)
	s.setBool("verbose", fc.Verbose, &cfg.Verbose)
	return nil
}

// configSetter applies values only for settings whose flag was not given
// on the command line.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt ignores zero and negative values.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBytes(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	n, err := ParseBytes(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = n
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString treats "true", "1" and "yes" as true and anything
// else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		*dst = true
	default:
		*dst = false
	}
}

// setEnums parses and applies the enum-valued settings shared by file and
// environment sources.
func (s *configSetter) setEnums(cfg *Config, policy, strategy, intermediate, container, color string) error {
	if policy != "" && !s.changed["size-policy"] {
		p, err := ParseSizePolicy(policy)
		if err != nil {
			return err
		}
		cfg.SizePolicy = p
	}
	if strategy != "" && !s.changed["strategy"] {
		st, err := ParseStrategy(strategy)
		if err != nil {
			return err
		}
		cfg.Strategy = st
	}
	if intermediate != "" && !s.changed["intermediate"] {
		if err := (&intermediateValue{&cfg.Intermediate}).Set(intermediate); err != nil {
			return err
		}
	}
	if container != "" && !s.changed["container"] {
		if err := (&containerValue{&cfg.Container}).Set(container); err != nil {
			return err
		}
	}
	if color != "" && !s.changed["color"] {
		switch c := ColorMode(strings.ToLower(color)); c {
		case ColorAuto, ColorAlways, ColorNever:
			cfg.ColorMode = c
		default:
			return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", color)
		}
	}
	return nil
}
