package config

import (
	"fmt"
	"os"
	"strconv"
)

// EnvPrefix prefixes every environment variable the tool reads.
const EnvPrefix = "PLANEMUX_"

// ApplyEnvConfig applies PLANEMUX_* environment variables to cfg, skipping
// any setting whose flag appears in changed. It runs after ApplyFileConfig,
// so the environment overrides the file.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("ext", env("EXTENSION"), &cfg.Extension)
	s.setString("temp-dir", env("TEMP_DIR"), &cfg.TempDir)
	s.setString("ffmpeg", env("FFMPEG"), &cfg.FFmpegBin)
	s.setString("ffprobe", env("FFPROBE"), &cfg.FFprobeBin)
	s.setString("codec", env("CODEC"), &cfg.VideoCodec)
	s.setString("preset", env("PRESET"), &cfg.Preset)
	s.setString("report", env("REPORT"), &cfg.ReportFile)
	s.setString("log", env("LOG_FILE"), &cfg.LogFile)

	ints := []struct {
		flag, name string
		dst        *int
	}{
		{"width", "WIDTH", &cfg.Width},
		{"height", "HEIGHT", &cfg.Height},
		{"fps", "FPS", &cfg.FrameRate},
		{"chunk-frames", "CHUNK_FRAMES", &cfg.ChunkFrames},
		{"crf", "CRF", &cfg.CRF},
		{"workers", "WORKERS", &cfg.Workers},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, env(i.name), i.dst); err != nil {
			return err
		}
	}
	if err := s.setFloatFromString("green-scale", env("GREEN_SCALE"), &cfg.GreenScale); err != nil {
		return err
	}
	if err := s.setDuration("watch-debounce", env("WATCH_DEBOUNCE"), &cfg.WatchDebounce); err != nil {
		return err
	}
	if err := s.setBytes("memory-budget", env("MEMORY_BUDGET"), &cfg.MemoryBudget); err != nil {
		return err
	}
	if err := s.setEnums(cfg, env("SIZE_POLICY"), env("STRATEGY"), env("INTERMEDIATE"), env("CONTAINER"), env("COLOR")); err != nil {
		return err
	}

	s.setBoolFromString("hflip", env("HFLIP"), &cfg.HFlip)
	s.setBoolFromString("codec-fallback", env("CODEC_FALLBACK"), &cfg.CodecFallback)
	s.setBoolFromString("skip-existing", env("SKIP_EXISTING"), &cfg.SkipExisting)
	s.setBoolFromString("verify", env("VERIFY"), &cfg.Verify)
	s.setBoolFromString("verbose", env("VERBOSE"), &cfg.Verbose)
	return nil
}

// setIntFromString parses an environment integer. Non-positive values are
// ignored.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}
