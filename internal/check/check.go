// Package check provides system diagnostics (--check mode) and pre-run
// dependency validation (CheckDeps) for ffmpeg, ffprobe, the H.264 encoder
// chain and the compositing filters.
package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/backmassage/planemux/internal/config"
	"github.com/backmassage/planemux/internal/display"
	"github.com/backmassage/planemux/internal/ffmpeg"
	"github.com/backmassage/planemux/internal/planner"
)

// Sentinel errors returned by CheckDeps when a required tool or feature is missing.
var (
	ErrFfmpegNotFound  = errors.New("ffmpeg not found on PATH")
	ErrFfprobeNotFound = errors.New("ffprobe not found on PATH")
	ErrNoEncoder       = errors.New("no usable video encoder (test encode failed for every codec)")
	ErrFilterMissing   = errors.New("blend or hstack filter unavailable")
)

// Logger is the minimal logging interface needed by RunCheck.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

// RunCheck runs the interactive --check flow. It is informational only and
// does not stop on failure.
func RunCheck(ctx context.Context, cfg *config.Config, log Logger) {
	log.Info("=== System Check ===")

	checkVersion(ctx, log, cfg.FFmpegBin)
	checkVersion(ctx, log, cfg.FFprobeBin)
	checkEncoders(ctx, log, cfg)
	if testFilters(ctx, cfg) {
		log.Success("blend and hstack filters work")
	} else {
		log.Error("blend/hstack filter test failed")
	}
	checkResources(ctx, log, cfg)
}

// checkVersion verifies bin is on PATH and logs its version string.
func checkVersion(ctx context.Context, log Logger, bin string) {
	if _, err := exec.LookPath(bin); err != nil {
		log.Error("%s not found", bin)
		return
	}
	out, err := exec.CommandContext(ctx, bin, "-version").Output()
	if err != nil {
		log.Warn("%s found but -version failed: %v", bin, err)
		return
	}
	firstLine := strings.TrimSpace(string(out))
	if idx := strings.Index(firstLine, "\n"); idx > 0 {
		firstLine = firstLine[:idx]
	}
	log.Success("%s", firstLine)
}

// checkEncoders test-encodes with every codec in the fallback chain.
func checkEncoders(ctx context.Context, log Logger, cfg *config.Config) {
	rs := ffmpeg.NewRetryState(cfg.VideoCodec, true)
	for _, codec := range chain(rs) {
		if testEncode(ctx, cfg, codec) {
			log.Success("Encoder %s works", codec)
		} else {
			log.Warn("Encoder %s test encode failed", codec)
		}
	}
}

func checkResources(ctx context.Context, log Logger, cfg *config.Config) {
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	r := planner.DetectResources(ctx, cfg.OutputDir, tempDir)
	log.Info("CPUs: %d", r.CPUs)
	if r.AvailableMemory > 0 {
		log.Info("Available memory: %s (default per-worker budget %s)",
			display.FormatBytes(int64(r.AvailableMemory)),
			display.FormatBytes(r.MemoryBudget(0, r.Workers(cfg.Workers, 0))))
	} else {
		log.Warn("Available memory unknown; per-worker budget %s", display.FormatBytes(planner.DefaultMemoryBudget))
	}
	if r.TempFree > 0 {
		log.Info("Temp space free: %s (%s)", display.FormatBytes(int64(r.TempFree)), tempDir)
	}
}

// CheckDeps is the pre-run validation: ffmpeg and ffprobe must be on PATH
// (ffprobe only when verification is on), at least one codec of the chain
// must encode, and the compositing filters must work. It returns the first
// working codec.
func CheckDeps(ctx context.Context, cfg *config.Config) (string, error) {
	if _, err := exec.LookPath(cfg.FFmpegBin); err != nil {
		return "", ErrFfmpegNotFound
	}
	if cfg.Verify {
		if _, err := exec.LookPath(cfg.FFprobeBin); err != nil {
			return "", ErrFfprobeNotFound
		}
	}

	codec := ""
	for _, c := range chain(ffmpeg.NewRetryState(cfg.VideoCodec, cfg.CodecFallback)) {
		if testEncode(ctx, cfg, c) {
			codec = c
			break
		}
	}
	if codec == "" {
		return "", fmt.Errorf("%w: %s", ErrNoEncoder, cfg.VideoCodec)
	}
	if !testFilters(ctx, cfg) {
		return codec, ErrFilterMissing
	}
	return codec, nil
}

// --- internal helpers ---

// chain walks rs through every codec it would try.
func chain(rs *ffmpeg.RetryState) []string {
	out := []string{rs.Codec()}
	for rs.Advance("Unknown encoder") == ffmpeg.RetryNextCodec {
		out = append(out, rs.Codec())
	}
	return out
}

// testEncode runs a minimal rgb24 → codec encode of a few lavfi frames at
// the configured geometry.
func testEncode(ctx context.Context, cfg *config.Config, codec string) bool {
	return runSilent(ctx, cfg.FFmpegBin,
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", lavfiColor("black", cfg),
		"-vf", "format=rgb24,hflip",
		"-c:v", codec, "-pix_fmt", cfg.PixFmt,
		"-f", "null", "-",
	)
}

// testFilters runs the overlay and side-by-side filter graph on lavfi inputs.
func testFilters(ctx context.Context, cfg *config.Config) bool {
	return runSilent(ctx, cfg.FFmpegBin,
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", lavfiColor("red", cfg),
		"-f", "lavfi", "-i", lavfiColor("blue", cfg),
		"-filter_complex",
		"[0:v]split[l][l2];[1:v]split[r][r2];[l][r]blend=all_mode=average[o];[l2][r2][o]hstack=inputs=3[v]",
		"-map", "[v]",
		"-f", "null", "-",
	)
}

func lavfiColor(color string, cfg *config.Config) string {
	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		w, h = 160, 120
	}
	return fmt.Sprintf("color=%s:s=%dx%d:d=0.1", color, w+w%2, h+h%2)
}

// runSilent runs a command and returns true if it exits with status 0.
// Both stdout and stderr are discarded.
func runSilent(ctx context.Context, name string, args ...string) bool {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Run() == nil
}
