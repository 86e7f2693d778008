package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/planemux/internal/config"
	"github.com/backmassage/planemux/internal/ffmpeg"
	"github.com/backmassage/planemux/internal/frames"
	"github.com/backmassage/planemux/internal/logging"
	"github.com/backmassage/planemux/internal/planner"
	"github.com/backmassage/planemux/internal/session"
)

var testGeometry = frames.Geometry{Width: 4, Height: 3}

// --- Fakes ---

// fakeEncoder stores the packed frames it receives under the final
// artifact's base name and writes them to the partial output.
type fakeEncoder struct {
	mu     sync.Mutex
	packed map[string][]byte
	fail   map[string]error // Keyed by "<id>_<side>".
}

func (f *fakeEncoder) Encode(ctx context.Context, spec ffmpeg.EncodeSpec, feed ffmpeg.Feeder) (ffmpeg.Result, error) {
	key := artifactKey(spec.Output)
	if err := f.fail[key]; err != nil {
		return ffmpeg.Result{}, err
	}

	var data []byte
	if feed != nil {
		if spec.Input != ffmpeg.StdinInput {
			return ffmpeg.Result{}, fmt.Errorf("feed given with input %s", spec.Input)
		}
		var buf bytes.Buffer
		if err := feed(&buf); err != nil {
			return ffmpeg.Result{}, err
		}
		data = buf.Bytes()
	} else {
		b, err := os.ReadFile(spec.Input)
		if err != nil {
			return ffmpeg.Result{}, err
		}
		data = b
	}
	if err := os.WriteFile(spec.Output, data, 0o644); err != nil {
		return ffmpeg.Result{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.packed == nil {
		f.packed = map[string][]byte{}
	}
	f.packed[key] = data
	return ffmpeg.Result{Codec: "fake264", Attempts: 1}, nil
}

// fakeCompositor requires its inputs to be final artifacts and writes a
// marker naming them.
type fakeCompositor struct {
	failOverlay error
}

func (f *fakeCompositor) Overlay(ctx context.Context, left, right, out string) (ffmpeg.Result, error) {
	if f.failOverlay != nil {
		return ffmpeg.Result{}, f.failOverlay
	}
	return ffmpeg.Result{Codec: "fake264"}, compose(out, left, right)
}

func (f *fakeCompositor) SideBySide(ctx context.Context, left, right, overlay, out string) (ffmpeg.Result, error) {
	return ffmpeg.Result{Codec: "fake264"}, compose(out, left, right, overlay)
}

func compose(out string, inputs ...string) error {
	for _, in := range inputs {
		if strings.Contains(in, ".partial") {
			return fmt.Errorf("partial input %s", in)
		}
		if _, err := os.Stat(in); err != nil {
			return err
		}
	}
	return os.WriteFile(out, []byte(strings.Join(inputs, "\n")), 0o644)
}

// fakeVerifier records every check and rejects the artifacts in reject.
type fakeVerifier struct {
	mu     sync.Mutex
	calls  map[string]frames.Geometry
	frames map[string]int
	reject map[string]bool // Keyed by "<id>_<suffix>".
}

func (f *fakeVerifier) Verify(ctx context.Context, path string, want int, g frames.Geometry) error {
	key := artifactKey(path)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]frames.Geometry{}
		f.frames = map[string]int{}
	}
	f.calls[key] = g
	f.frames[key] = want
	if f.reject[key] {
		return fmt.Errorf("%s: frame count mismatch", path)
	}
	return nil
}

// artifactKey turns ".../<id>_<suffix>.partial.mp4" into "<id>_<suffix>".
func artifactKey(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSuffix(base, ".partial")
}

// --- Helpers ---

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.InputDir = t.TempDir()
	cfg.OutputDir = t.TempDir()
	cfg.TempDir = t.TempDir()
	cfg.Width = testGeometry.Width
	cfg.Height = testGeometry.Height
	cfg.ColorMode = config.ColorNever
	return &cfg
}

type harness struct {
	p   *Pipeline
	enc *fakeEncoder
	cmp *fakeCompositor
	ver *fakeVerifier
}

func newHarness(cfg *config.Config) *harness {
	h := &harness{enc: &fakeEncoder{}, cmp: &fakeCompositor{}, ver: &fakeVerifier{}}
	h.p = &Pipeline{
		Config:     cfg,
		Log:        logging.Nop(),
		Encoder:    h.enc,
		Compositor: h.cmp,
		Verifier:   h.ver,
		Resources:  &planner.Resources{CPUs: 2},
	}
	return h
}

// writeChannels writes the six channel files of session id. Byte i of the
// channel ch on side index si is byte(si*97 + ch*31 + i).
func writeChannels(t *testing.T, dir, id string, frameCounts [2]int) {
	t.Helper()
	for si, side := range session.Sides {
		n := int(testGeometry.FrameSize()) * frameCounts[si]
		for ch := 0; ch < session.NumChannels; ch++ {
			writeChannel(t, dir, fmt.Sprintf("%s_%s_%d.bin", id, side, ch), channelBytes(si, ch, n))
		}
	}
}

func writeChannel(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func channelBytes(si, ch, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(si*97 + ch*31 + i)
	}
	return data
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func basenames(files []session.ChannelFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Base(f.Path)
	}
	return out
}

func record(t *testing.T, rep *Report, id string) SessionRecord {
	t.Helper()
	for _, r := range rep.Sessions {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("no record for session %s", id)
	return SessionRecord{}
}

func outputsOf(cfg *config.Config, id string) []string {
	plan := planner.Build(cfg, id, "")
	return plan.Outputs[:]
}

func leftovers(t *testing.T, dir, pattern string) []string {
	t.Helper()
	var found []string
	err := filepath.WalkDir(dir, func(path string, _ os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			found = append(found, path)
		}
		return nil
	})
	require.NoError(t, err)
	return found
}

// --- Discover tests ---

func TestDiscover_FiltersAndParses(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "cap_L_0.bin")
	touch(t, dir, "cap_R_2.BIN")
	touch(t, dir, "cap_L_3.bin")
	touch(t, dir, "notes.txt")
	touch(t, dir, "cap_L_1.raw")

	d, err := Discover(dir, ".bin")
	require.NoError(t, err)
	assert.Equal(t, []string{"cap_L_0.bin", "cap_R_2.BIN"}, basenames(d.Files))
	require.Len(t, d.Ignored, 1)
	assert.Equal(t, "cap_L_3.bin", filepath.Base(d.Ignored[0]))
	assert.Equal(t, session.SideR, d.Files[1].Side)
	assert.Equal(t, 2, d.Files[1].Channel)
}

func TestDiscover_RecursiveSortedPrunesHidden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".trash"), 0o755))
	touch(t, filepath.Join(dir, "b"), "s1_L_0.bin")
	touch(t, filepath.Join(dir, "a"), "s2_L_0.bin")
	touch(t, filepath.Join(dir, ".trash"), "s3_L_0.bin")

	d, err := Discover(dir, ".bin")
	require.NoError(t, err)
	require.Len(t, d.Files, 2)
	assert.Equal(t, filepath.Join(dir, "a", "s2_L_0.bin"), d.Files[0].Path)
	assert.Equal(t, filepath.Join(dir, "b", "s1_L_0.bin"), d.Files[1].Path)
}

func TestDiscover_RecordsSize(t *testing.T) {
	dir := t.TempDir()
	writeChannel(t, dir, "cap_L_0.bin", make([]byte, 120))

	d, err := Discover(dir, ".bin")
	require.NoError(t, err)
	require.Len(t, d.Files, 1)
	assert.Equal(t, int64(120), d.Files[0].Size)
}

func TestDiscover_MissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), ".bin")
	assert.Error(t, err)
}

// --- Process tests ---

func TestProcess_CompletesSessionsAndKeepsIncomplete(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, cfg.InputDir, "alpha", [2]int{5, 5})
	writeChannels(t, cfg.InputDir, "beta", [2]int{50, 40})
	writeChannel(t, cfg.InputDir, "gamma_L_0.bin", channelBytes(0, 0, 12))
	h := newHarness(cfg)

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Stats.Total)
	assert.Equal(t, 2, rep.Stats.Completed)
	assert.Equal(t, 1, rep.Stats.Incomplete)
	assert.Zero(t, rep.Stats.Failed)
	assert.Equal(t, 45, rep.Stats.Frames)
	assert.Positive(t, rep.Stats.OutputBytes)
	assert.True(t, rep.Stats.OK())
	assert.NotEmpty(t, rep.RunID)

	beta := record(t, rep, "beta")
	assert.Equal(t, StateCleaned, beta.State)
	assert.Equal(t, 40, beta.Frames)
	assert.Equal(t, "fake264", beta.Codec)
	assert.Len(t, beta.Outputs, 4)

	gamma := record(t, rep, "gamma")
	assert.Equal(t, StateGrouped, gamma.State)
	assert.True(t, gamma.Incomplete())
	assert.Contains(t, gamma.Missing, "R/2")
	assert.Contains(t, gamma.Error, "incomplete")

	for _, id := range []string{"alpha", "beta"} {
		for _, out := range outputsOf(cfg, id) {
			assert.FileExists(t, out)
		}
	}
	assert.Empty(t, leftovers(t, cfg.OutputDir, "*.partial.*"))
	assert.Empty(t, leftovers(t, cfg.TempDir, "*.rgb"))
	entries, err := os.ReadDir(cfg.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp root removed")
}

func TestProcess_BothSidesCutToCommonAndPacked(t *testing.T) {
	for _, mode := range []config.IntermediateMode{config.IntermediateFile, config.IntermediatePipe} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Intermediate = mode
			writeChannels(t, cfg.InputDir, "beta", [2]int{50, 40})
			h := newHarness(cfg)

			rep, err := h.p.Run(context.Background())
			require.NoError(t, err)
			require.Equal(t, StateCleaned, record(t, rep, "beta").State)

			fs := int(testGeometry.FrameSize())
			for si, side := range session.Sides {
				data := h.enc.packed["beta_"+string(side)]
				require.Len(t, data, 40*fs*3, "side %s", side)
				r, g, b := frames.Deinterleave(data)
				assert.Equal(t, channelBytes(si, 0, 40*fs), r)
				assert.Equal(t, channelBytes(si, 1, 40*fs), g)
				assert.Equal(t, channelBytes(si, 2, 40*fs), b)
			}
		})
	}
}

func TestProcess_ChunkedMatchesMaterialized(t *testing.T) {
	packed := map[frames.Strategy][]byte{}
	for _, st := range []frames.Strategy{frames.StrategyMaterialize, frames.StrategyChunked} {
		cfg := testConfig(t)
		cfg.Strategy = st
		cfg.ChunkFrames = 3
		writeChannels(t, cfg.InputDir, "s", [2]int{10, 10})
		h := newHarness(cfg)

		_, err := h.p.Run(context.Background())
		require.NoError(t, err)
		packed[st] = h.enc.packed["s_L"]
	}
	require.NotEmpty(t, packed[frames.StrategyChunked])
	assert.Equal(t, packed[frames.StrategyMaterialize], packed[frames.StrategyChunked])
}

func TestProcess_VerifiesEveryArtifact(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, cfg.InputDir, "s", [2]int{7, 9})
	h := newHarness(cfg)

	_, err := h.p.Run(context.Background())
	require.NoError(t, err)

	for _, a := range planner.Artifacts {
		key := "s_" + a.Suffix()
		assert.Equal(t, 7, h.ver.frames[key], key)
	}
	assert.Equal(t, testGeometry, h.ver.calls["s_L"])
	assert.Equal(t, testGeometry, h.ver.calls["s_overlay"])
	assert.Equal(t, frames.Geometry{Width: 12, Height: 3}, h.ver.calls["s_combined"])
}

func TestProcess_FailureIsolatedToSession(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, cfg.InputDir, "bad", [2]int{5, 5})
	writeChannels(t, cfg.InputDir, "good", [2]int{5, 5})
	h := newHarness(cfg)
	procErr := &ffmpeg.ExternalProcessError{Tool: "ffmpeg", ExitCode: 1, Stderr: "No space left on device", Reason: "no space left on device"}
	h.enc.fail = map[string]error{"bad_R": procErr}

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Stats.Completed)
	assert.Equal(t, 1, rep.Stats.Failed)
	assert.False(t, rep.Stats.OK())

	bad := record(t, rep, "bad")
	assert.Equal(t, StateFailed, bad.State)
	assert.Equal(t, "encode R", bad.Stage)

	var se *StageError
	require.True(t, errors.As(bad.Err, &se))
	assert.Equal(t, StateEncodedR, se.Stage)
	var pe *ffmpeg.ExternalProcessError
	assert.True(t, errors.As(bad.Err, &pe))

	assert.Equal(t, StateCleaned, record(t, rep, "good").State)
	plan := planner.Build(cfg, "bad", "")
	assert.FileExists(t, plan.Output(planner.ArtifactLeft))
	assert.NoFileExists(t, plan.Output(planner.ArtifactRight))
	assert.NoFileExists(t, plan.Partial(planner.ArtifactRight))
	assert.NoFileExists(t, plan.Output(planner.ArtifactOverlay))
	assert.Empty(t, leftovers(t, cfg.TempDir, "*.rgb"))
}

func TestProcess_VerifyFailureRemovesPartial(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, cfg.InputDir, "s", [2]int{5, 5})
	h := newHarness(cfg)
	h.ver.reject = map[string]bool{"s_overlay": true}

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)

	rec := record(t, rep, "s")
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, "composite", rec.Stage)
	assert.Contains(t, rec.Error, "verify s_overlay")

	plan := planner.Build(cfg, "s", "")
	assert.NoFileExists(t, plan.Partial(planner.ArtifactOverlay))
	assert.NoFileExists(t, plan.Output(planner.ArtifactOverlay))
	assert.NoFileExists(t, plan.Output(planner.ArtifactCombined))
}

func TestProcess_CompositorFailure(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, cfg.InputDir, "s", [2]int{5, 5})
	h := newHarness(cfg)
	h.cmp.failOverlay = errors.New("blend failed")

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)

	rec := record(t, rep, "s")
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, "overlay: blend failed", rec.Error)
}

func TestProcess_NoVerifier(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, cfg.InputDir, "s", [2]int{5, 5})
	h := newHarness(cfg)
	h.p.Verifier = nil

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCleaned, record(t, rep, "s").State)
	assert.Empty(t, h.ver.calls)
}

func TestProcess_SkipExisting(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, cfg.InputDir, "s", [2]int{5, 5})
	h := newHarness(cfg)

	_, err := h.p.Run(context.Background())
	require.NoError(t, err)

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)
	rec := record(t, rep, "s")
	assert.Equal(t, StateSkipped, rec.State)
	assert.Equal(t, "outputs exist", rec.Error)

	cfg.SkipExisting = false
	rep, err = h.p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCleaned, record(t, rep, "s").State)
}

func TestProcess_DryRunWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.DryRun = true
	writeChannels(t, cfg.InputDir, "s", [2]int{5, 5})
	h := newHarness(cfg)

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)

	rec := record(t, rep, "s")
	assert.Equal(t, StateSkipped, rec.State)
	assert.Equal(t, 5, rec.Frames)
	assert.True(t, rep.DryRun)
	assert.Empty(t, h.enc.packed)

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcess_NothingToSyncIsSkipped(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, cfg.InputDir, "short", [2]int{0, 5})
	h := newHarness(cfg)

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)

	rec := record(t, rep, "short")
	assert.Equal(t, StateSkipped, rec.State)
	assert.Contains(t, rec.Error, "no frames common")
	assert.Equal(t, 1, rep.Stats.Skipped)
	assert.True(t, rep.Stats.OK())
}

func TestProcess_StrictMismatchFailsBeforeWork(t *testing.T) {
	cfg := testConfig(t)
	cfg.SizePolicy = frames.PolicyStrict
	writeChannels(t, cfg.InputDir, "s", [2]int{5, 5})
	writeChannel(t, cfg.InputDir, "s_R_1.bin", channelBytes(1, 1, 5*12-1))
	h := newHarness(cfg)

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)

	rec := record(t, rep, "s")
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, "synchronize", rec.Stage)
	var mismatch *frames.SizeMismatchError
	assert.True(t, errors.As(rec.Err, &mismatch))
	assert.Empty(t, h.enc.packed)
}

func TestProcess_OutputCollisionFailsLaterSession(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, filepath.Join(cfg.InputDir, "a"), "Cap", [2]int{5, 5})
	writeChannels(t, filepath.Join(cfg.InputDir, "b"), "cap", [2]int{5, 5})
	h := newHarness(cfg)

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCleaned, record(t, rep, "Cap").State)
	lower := record(t, rep, "cap")
	assert.Equal(t, StateFailed, lower.State)
	assert.True(t, errors.Is(lower.Err, planner.ErrOutputCollision))
}

func TestProcess_SanitizedNameCollisionFailsLaterSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.SkipExisting = false
	writeChannels(t, cfg.InputDir, "cap:1", [2]int{5, 5})
	writeChannels(t, cfg.InputDir, "cap?1", [2]int{5, 5})
	h := newHarness(cfg)

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)

	first := record(t, rep, "cap:1")
	assert.Equal(t, StateCleaned, first.State)
	second := record(t, rep, "cap?1")
	assert.Equal(t, StateFailed, second.State)
	assert.Equal(t, "plan", second.Stage)
	assert.True(t, errors.Is(second.Err, planner.ErrOutputCollision))
	assert.Len(t, h.enc.packed, 2, "only the first session is encoded")
	assert.Empty(t, leftovers(t, cfg.TempDir, "*.rgb"))
}

func TestProcess_CancelledSkipsEverything(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, cfg.InputDir, "a", [2]int{5, 5})
	writeChannels(t, cfg.InputDir, "b", [2]int{5, 5})
	h := newHarness(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := h.p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Stats.Skipped)
	for _, r := range rep.Sessions {
		assert.Equal(t, "interrupted", r.Error)
	}
	assert.Empty(t, h.enc.packed)
}

func TestProcess_CancelledMidEncodeIsSkipped(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, cfg.InputDir, "s", [2]int{5, 5})
	h := newHarness(cfg)
	h.enc.fail = map[string]error{"s_R": fmt.Errorf("encode: %w", context.Canceled)}

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)

	rec := record(t, rep, "s")
	assert.Equal(t, StateSkipped, rec.State)
	assert.Equal(t, "interrupted", rec.Error)
	assert.Empty(t, rec.Stage)
	assert.Equal(t, 0, rep.Stats.Failed)
	assert.Equal(t, 1, rep.Stats.Skipped)
	assert.True(t, rep.Stats.OK())
	assert.Empty(t, leftovers(t, cfg.TempDir, "*.rgb"))
}

func TestProcess_ManySessionsOnPool(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 3
	for i := 0; i < 8; i++ {
		writeChannels(t, cfg.InputDir, fmt.Sprintf("s%02d", i), [2]int{3, 4})
	}
	h := newHarness(cfg)

	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, rep.Stats.Completed)
	assert.Len(t, h.enc.packed, 16)
	for i, r := range rep.Sessions {
		assert.Equal(t, fmt.Sprintf("s%02d", i), r.ID, "records sorted by id")
	}
}

// --- State, stats and report tests ---

func TestState_String(t *testing.T) {
	assert.Equal(t, "ENCODED_L", StateEncodedL.String())
	assert.Equal(t, "CLEANED", StateCleaned.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestStageError(t *testing.T) {
	inner := errors.New("boom")
	err := &StageError{Stage: StateComposited, Err: inner}
	assert.Equal(t, "composite: boom", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestRunStats_Add(t *testing.T) {
	var s RunStats
	s.Add(&SessionRecord{State: StateCleaned, Frames: 10, Bytes: 100})
	s.Add(&SessionRecord{State: StateFailed})
	s.Add(&SessionRecord{State: StateSkipped})
	s.Add(&SessionRecord{State: StateGrouped, Missing: []string{"L/0"}})

	assert.Equal(t, RunStats{Completed: 1, Failed: 1, Skipped: 1, Incomplete: 1, Frames: 10, OutputBytes: 100}, s)
	assert.False(t, s.OK())
}

func TestWriteReport(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, cfg.InputDir, "s", [2]int{5, 5})
	writeChannel(t, cfg.InputDir, "lone_L_0.bin", channelBytes(0, 0, 12))
	h := newHarness(cfg)
	rep, err := h.p.Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reports", "run.yaml")
	require.NoError(t, WriteReport(path, rep))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "state: CLEANED")
	assert.Contains(t, string(raw), "run_id: "+rep.RunID)

	back, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, rep.Stats, back.Stats)
	assert.Equal(t, []string{"L/1", "L/2", "R/0", "R/1", "R/2"}, record(t, back, "lone").Missing)
}

// --- Analyze tests ---

func TestAnalyze_Table(t *testing.T) {
	cfg := testConfig(t)
	writeChannels(t, cfg.InputDir, "even", [2]int{5, 5})
	writeChannels(t, cfg.InputDir, "uneven", [2]int{50, 40})
	writeChannel(t, cfg.InputDir, "lone_L_0.bin", channelBytes(0, 0, 24))

	var buf bytes.Buffer
	require.NoError(t, Analyze(context.Background(), cfg, logging.Nop(), &buf))
	out := buf.String()

	assert.Contains(t, out, "Session")
	assert.Contains(t, out, "5/5/5")
	assert.Contains(t, out, "truncated (L=50, R=40)")
	assert.Contains(t, out, "2/-/-")
	assert.Contains(t, out, "missing L/1")

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyze_StrictMismatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.SizePolicy = frames.PolicyStrict
	writeChannels(t, cfg.InputDir, "s", [2]int{5, 5})
	writeChannel(t, cfg.InputDir, "s_L_2.bin", channelBytes(0, 2, 5*12+1))

	var buf bytes.Buffer
	require.NoError(t, Analyze(context.Background(), cfg, logging.Nop(), &buf))
	assert.Contains(t, buf.String(), "side L")
}

func TestComputeStats(t *testing.T) {
	b := computeStats([]float64{100, 100, 101, 102, 99, 10})
	require.True(t, b.valid)
	assert.Equal(t, "", b.classify(100))
	assert.NotEqual(t, "", b.classify(10))

	assert.False(t, computeStats([]float64{1, 2, 3}).valid)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, percentile(sorted, 0))
	assert.Equal(t, 3.0, percentile(sorted, 50))
	assert.Equal(t, 5.0, percentile(sorted, 100))
	assert.Equal(t, 1.5, percentile([]float64{1, 2}, 50))
	assert.Equal(t, 0.0, percentile(nil, 50))
}

// --- Watch tests ---

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)
	defer d.stop()
	for i := 0; i < 5; i++ {
		d.schedule()
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-d.C:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never fired")
	}
	select {
	case <-d.C:
		t.Fatal("debouncer fired twice for one burst")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatch_ProcessesNewSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.WatchDebounce = 50 * time.Millisecond
	h := newHarness(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reports := make(chan *Report, 16)
	done := make(chan error, 1)
	go func() { done <- h.p.Watch(ctx, func(r *Report) { reports <- r }) }()

	select {
	case first := <-reports:
		assert.Zero(t, first.Stats.Total)
	case <-time.After(10 * time.Second):
		t.Fatal("no initial run")
	}

	writeChannels(t, filepath.Join(cfg.InputDir, "day2"), "late", [2]int{5, 5})

	deadline := time.After(10 * time.Second)
	for completed := false; !completed; {
		select {
		case r := <-reports:
			completed = r.Stats.Completed == 1
		case <-deadline:
			t.Fatal("watch never processed the new session")
		}
	}
	for _, out := range outputsOf(cfg, "late") {
		assert.FileExists(t, out)
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

// --- ffmpeg integration test ---

func TestPipelineWithFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available")
	}

	cfg := testConfig(t)
	cfg.Width, cfg.Height = 16, 12
	cfg.FrameRate = 25
	cfg.Preset = "ultrafast"
	for si, side := range session.Sides {
		for ch := 0; ch < session.NumChannels; ch++ {
			writeChannel(t, cfg.InputDir, fmt.Sprintf("rec_%s_%d.bin", side, ch), channelBytes(si, ch, 16*12*(5+si)))
		}
	}
	require.NoError(t, cfg.Validate())

	p := New(cfg, logging.Nop(), "")
	p.Resources = &planner.Resources{CPUs: 1}
	rep, err := p.Run(context.Background())
	require.NoError(t, err)

	rec := record(t, rep, "rec")
	require.Equal(t, StateCleaned, rec.State, "error: %s", rec.Error)
	assert.Equal(t, 5, rec.Frames)
	for _, out := range outputsOf(cfg, "rec") {
		assert.FileExists(t, out)
	}
}
