package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/planemux/internal/frames"
)

func TestNormalizeDirArg(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no trailing slash", "/data/captures", "/data/captures"},
		{"single trailing slash", "/data/captures/", "/data/captures"},
		{"multiple trailing slashes", "/data/captures///", "/data/captures"},
		{"root path", "/", "/"},
		{"relative path", "output", "output"},
		{"relative with slash", "output/", "output"},
		{"empty string", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDirArg(tt.in)
			if got != tt.want {
				t.Errorf("NormalizeDirArg(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, frames.Geometry{Width: 160, Height: 120}, cfg.Geometry())
	assert.Equal(t, 111, cfg.FrameRate)
	assert.Equal(t, "libx264", cfg.VideoCodec)
	assert.Equal(t, "yuv420p", cfg.PixFmt)
	assert.True(t, cfg.HFlip)
	assert.True(t, cfg.SkipExisting)
	assert.Equal(t, 1.0, cfg.GreenScale)
	assert.Equal(t, frames.PolicyTruncate, cfg.SizePolicy)
}

func TestValidate_Geometry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckOnly = true
	cfg.Width = 0

	err := cfg.Validate()
	var geomErr *frames.InvalidGeometryError
	require.ErrorAs(t, err, &geomErr)
	assert.Equal(t, 0, geomErr.Width)
}

func TestValidate_Enums(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"strict policy", func(c *Config) { c.SizePolicy = frames.PolicyStrict }, false},
		{"unknown policy", func(c *Config) { c.SizePolicy = "pad" }, true},
		{"chunked strategy", func(c *Config) { c.Strategy = frames.StrategyChunked }, false},
		{"empty strategy", func(c *Config) { c.Strategy = "" }, true},
		{"pipe intermediate", func(c *Config) { c.Intermediate = IntermediatePipe }, false},
		{"unknown intermediate", func(c *Config) { c.Intermediate = "socket" }, true},
		{"mkv container", func(c *Config) { c.Container = ContainerMKV }, false},
		{"avi container", func(c *Config) { c.Container = "avi" }, true},
		{"empty color", func(c *Config) { c.ColorMode = "" }, true},
		{"crf out of range", func(c *Config) { c.CRF = 52 }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
		{"zero fps", func(c *Config) { c.FrameRate = 0 }, true},
		{"negative green scale", func(c *Config) { c.GreenScale = -0.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CheckOnly = true
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NormalizesExtension(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckOnly = true
	cfg.Extension = "raw"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ".raw", cfg.Extension)
}

func TestValidate_RequiresPaths(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail when paths are empty and CheckOnly is false")
	}

	cfg.InputDir = "/in"
	cfg.OutputDir = "/out"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidatePaths(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		output  string
		wantErr bool
	}{
		{"separate directories", "/data/in", "/data/out", false},
		{"output equals input", "/data/cap", "/data/cap", true},
		{"output inside input", "/data/cap", "/data/cap/videos", true},
		{"output is parent of input", "/data/cap/sub", "/data/cap", false},
		{"similar prefix not nested", "/data/captures", "/data/captures2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.ValidatePaths(tt.input, tt.output)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePaths(%q, %q) error = %v, wantErr %v",
					tt.input, tt.output, err, tt.wantErr)
			}
		})
	}
}

func parseFlags(t *testing.T, args ...string) (Config, map[string]bool) {
	t.Helper()
	cfg := DefaultConfig()
	fs := pflag.NewFlagSet("planemux", pflag.ContinueOnError)
	neg := BindFlags(fs, &cfg)
	require.NoError(t, fs.Parse(args))
	ApplyNegatedFlags(&cfg, neg)
	require.NoError(t, ApplyPositionalArgs(&cfg, fs.Args()))
	return cfg, ChangedFlags(fs)
}

func TestBindFlags(t *testing.T) {
	cfg, changed := parseFlags(t,
		"--width", "320", "--size-policy", "STRICT", "--strategy", "chunked",
		"--memory-budget", "64MiB", "--no-hflip", "-f", "--no-color",
		"--container", "mkv", "--intermediate", "pipe", "-j", "3",
		"in/", "out",
	)

	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, frames.PolicyStrict, cfg.SizePolicy)
	assert.Equal(t, frames.StrategyChunked, cfg.Strategy)
	assert.Equal(t, int64(64<<20), cfg.MemoryBudget)
	assert.False(t, cfg.HFlip)
	assert.False(t, cfg.SkipExisting)
	assert.Equal(t, ColorNever, cfg.ColorMode)
	assert.Equal(t, ContainerMKV, cfg.Container)
	assert.Equal(t, IntermediatePipe, cfg.Intermediate)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "in", cfg.InputDir)
	assert.Equal(t, "out", cfg.OutputDir)

	assert.True(t, changed["width"])
	assert.True(t, changed["hflip"], "--no-hflip marks hflip as set")
	assert.True(t, changed["skip-existing"], "--force marks skip-existing as set")
	assert.False(t, changed["height"])
}

func TestBindFlags_RejectsBadEnum(t *testing.T) {
	cfg := DefaultConfig()
	fs := pflag.NewFlagSet("planemux", pflag.ContinueOnError)
	fs.SetOutput(new(nopWriter))
	BindFlags(fs, &cfg)
	assert.Error(t, fs.Parse([]string{"--strategy", "sometimes"}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestApplyPositionalArgs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputDir = "/from/file"
	require.NoError(t, ApplyPositionalArgs(&cfg, nil))
	assert.Equal(t, "/from/file", cfg.InputDir)

	assert.Error(t, ApplyPositionalArgs(&cfg, []string{"only-one"}))
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"auto", 0, false},
		{"1048576", 1 << 20, false},
		{"256MiB", 256 << 20, false},
		{"1 KB", 1000, false},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBytes(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadFileConfig_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
width = 320
height = 240
fps = 60
size_policy = "strict"
memory_budget = "128MiB"
hflip = false
watch_debounce = "500ms"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	fc, err := LoadFileConfig(path)
	require.NoError(t, err)

	cfg := DefaultConfig()
	require.NoError(t, ApplyFileConfig(&cfg, fc, map[string]bool{"height": true}))

	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 120, cfg.Height, "flag-set height wins over file")
	assert.Equal(t, 60, cfg.FrameRate)
	assert.Equal(t, frames.PolicyStrict, cfg.SizePolicy)
	assert.Equal(t, int64(128<<20), cfg.MemoryBudget)
	assert.False(t, cfg.HFlip)
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce)
}

func TestLoadFileConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "codec: mpeg4\ncontainer: mkv\nverify: false\ngreen_scale: 0.5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	fc, err := LoadFileConfig(path)
	require.NoError(t, err)

	cfg := DefaultConfig()
	require.NoError(t, ApplyFileConfig(&cfg, fc, map[string]bool{}))
	assert.Equal(t, "mpeg4", cfg.VideoCodec)
	assert.Equal(t, ContainerMKV, cfg.Container)
	assert.False(t, cfg.Verify)
	assert.Equal(t, 0.5, cfg.GreenScale)
}

func TestApplyFileConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		fc   FileConfig
	}{
		{"bad duration", FileConfig{WatchDebounce: "soon"}},
		{"bad size", FileConfig{MemoryBudget: "big"}},
		{"bad policy", FileConfig{SizePolicy: "pad"}},
		{"bad color", FileConfig{Color: "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			assert.Error(t, ApplyFileConfig(&cfg, tt.fc, map[string]bool{}))
		})
	}
}

func TestLoadFileConfig_Missing(t *testing.T) {
	_, err := LoadFileConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("PLANEMUX_WIDTH", "640")
	t.Setenv("PLANEMUX_GREEN_SCALE", "0.5")
	t.Setenv("PLANEMUX_HFLIP", "false")
	t.Setenv("PLANEMUX_STRATEGY", "materialize")
	t.Setenv("PLANEMUX_CODEC", "libopenh264")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnvConfig(&cfg, map[string]bool{"codec": true}))

	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 0.5, cfg.GreenScale)
	assert.False(t, cfg.HFlip)
	assert.Equal(t, frames.StrategyMaterialize, cfg.Strategy)
	assert.Equal(t, "libx264", cfg.VideoCodec, "flag-set codec wins over env")
}

func TestApplyEnvConfig_InvalidInt(t *testing.T) {
	t.Setenv("PLANEMUX_WORKERS", "many")
	cfg := DefaultConfig()
	assert.Error(t, ApplyEnvConfig(&cfg, map[string]bool{}))
}
