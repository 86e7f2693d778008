// Command planemux turns planar RGB channel dumps from a two-camera capture
// rig into videos: one per side, an averaged overlay, and a three-panel
// side-by-side.
//
// It loads configuration (file, PLANEMUX_* environment, flags), validates
// paths, and either runs diagnostics (--check), prints the session table
// (--analyze), or runs the batch once or continuously (--watch).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/backmassage/planemux/internal/check"
	"github.com/backmassage/planemux/internal/config"
	"github.com/backmassage/planemux/internal/display"
	"github.com/backmassage/planemux/internal/logging"
	"github.com/backmassage/planemux/internal/pipeline"
)

// version and commit are injected at build time via -ldflags.
var (
	version = ""
	commit  = "unknown"
)

// errSessionsFailed is returned when the batch ran but some session failed.
// Its details have already been logged.
var errSessionsFailed = errors.New("one or more sessions failed")

var exampleUsage = strings.TrimSpace(`
  planemux ./captures ./videos
  planemux --size-policy strict --workers 4 ./captures ./videos
  planemux --intermediate pipe --no-hflip --container mkv ./captures ./videos
  planemux --watch --report run.yaml ./captures ./videos
  planemux --analyze ./captures ./videos
  planemux --check`)

func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	c := newCLI()
	if err := c.root.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errSessionsFailed) {
			fmt.Fprintf(os.Stderr, "planemux: %v\n", err)
		}
		os.Exit(1)
	}
}

// cli is the root command together with the config its flags bind to.
type cli struct {
	cfg  config.Config
	neg  *config.NegatedFlags
	root *cobra.Command
}

func newCLI() *cli {
	c := &cli{cfg: config.DefaultConfig()}
	c.root = &cobra.Command{
		Use:   "planemux [flags] input_dir output_dir",
		Short: "Interleave planar RGB channel dumps and encode L/R, overlay and side-by-side videos",
		Long: "planemux groups <session>_<side>_<channel>.bin files into sessions, packs each\n" +
			"side's three planes into RGB24 frames, encodes both sides with ffmpeg and\n" +
			"composites an averaged overlay and a three-panel side-by-side.",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s (%s) %s/%s", getVersion(), commit, runtime.GOOS, runtime.GOARCH),
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, args, &c.cfg, c.neg); err != nil {
				return err
			}
			return run(cmd.Context(), &c.cfg)
		},
	}
	c.neg = config.BindFlags(c.root.Flags(), &c.cfg)
	c.root.Flags().SortFlags = false
	return c
}

// loadConfig layers the config file, PLANEMUX_* environment and positional
// args over the parsed flags, lowest precedence first, and validates the
// result. Flags set on the command line always win.
func loadConfig(cmd *cobra.Command, args []string, cfg *config.Config, neg *config.NegatedFlags) error {
	changed := config.ChangedFlags(cmd.Flags())

	cfgFile := cfg.ConfigFile
	explicit := cfgFile != ""
	if !explicit {
		cfgFile = config.DefaultConfigPath()
	}
	if cfgFile != "" && (explicit || config.FileExists(cfgFile)) {
		fc, err := config.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := config.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := config.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	config.ApplyNegatedFlags(cfg, neg)
	if err := config.ApplyPositionalArgs(cfg, args); err != nil {
		return err
	}
	return cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := logging.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	display.PrintBanner(os.Stdout)

	// Cancel on SIGINT/SIGTERM so workers stop picking up sessions and
	// running ffmpeg processes are killed.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.CheckOnly {
		check.RunCheck(ctx, cfg, log)
		return nil
	}

	// Input must exist, output is created if needed, and output must not be
	// inside input so a re-run or watch never reads its own output.
	inputAbs, err := absPath(cfg.InputDir)
	if err != nil {
		return fmt.Errorf("input not found: %s", cfg.InputDir)
	}
	if !cfg.Analyze && !cfg.DryRun {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("cannot create output directory: %w", err)
		}
	}
	outputAbs, err := absPath(cfg.OutputDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cannot resolve output path: %s", cfg.OutputDir)
	}
	if err == nil {
		if err := cfg.ValidatePaths(inputAbs, outputAbs); err != nil {
			log.Error("Choose an output path outside: %s", cfg.InputDir)
			return err
		}
	}

	log.Info("=== planemux %s ===", getVersion())
	log.Info("In:  %s", cfg.InputDir)
	log.Info("Out: %s", cfg.OutputDir)
	if cfg.DryRun {
		log.Warn("DRY RUN: no files will be written")
	}

	if cfg.Analyze {
		return pipeline.Analyze(ctx, cfg, log, os.Stdout)
	}

	// Fail fast when ffmpeg, ffprobe, every encoder of the chain or the
	// compositing filters are unavailable.
	codec := ""
	if !cfg.DryRun {
		codec, err = check.CheckDeps(ctx, cfg)
		if err != nil {
			return err
		}
		if codec != cfg.VideoCodec {
			log.Warn("Encoder %s unavailable, using %s", cfg.VideoCodec, codec)
		}
	}

	p := pipeline.New(cfg, log, codec)
	if cfg.Watch {
		return p.Watch(ctx, func(rep *pipeline.Report) { writeReport(cfg, log, rep) })
	}

	rep, err := p.Run(ctx)
	if err != nil {
		return err
	}
	writeReport(cfg, log, rep)
	if !rep.Stats.OK() {
		return errSessionsFailed
	}
	return nil
}

func writeReport(cfg *config.Config, log *logging.Logger, rep *pipeline.Report) {
	if cfg.ReportFile == "" {
		return
	}
	if err := pipeline.WriteReport(cfg.ReportFile, rep); err != nil {
		log.Error("Cannot write report: %v", err)
		return
	}
	log.Info("Report: %s", cfg.ReportFile)
}

// absPath returns the absolute, symlink-resolved path for safe comparison
// of input vs output directory hierarchies.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
