package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/backmassage/planemux/internal/config"
	"github.com/backmassage/planemux/internal/display"
	"github.com/backmassage/planemux/internal/ffmpeg"
	"github.com/backmassage/planemux/internal/frames"
	"github.com/backmassage/planemux/internal/logging"
	"github.com/backmassage/planemux/internal/planner"
	"github.com/backmassage/planemux/internal/probe"
	"github.com/backmassage/planemux/internal/session"
)

// rawBufferSize is the write buffer in front of a raw intermediate file.
const rawBufferSize = 1 << 20

// Encoder turns packed RGB24 frames into a video file.
type Encoder interface {
	Encode(ctx context.Context, spec ffmpeg.EncodeSpec, feed ffmpeg.Feeder) (ffmpeg.Result, error)
}

// Compositor derives the overlay and side-by-side videos from encoded sides.
type Compositor interface {
	Overlay(ctx context.Context, left, right, out string) (ffmpeg.Result, error)
	SideBySide(ctx context.Context, left, right, overlay, out string) (ffmpeg.Result, error)
}

// Verifier checks an encoded artifact's frame count and size.
type Verifier interface {
	Verify(ctx context.Context, path string, wantFrames int, g frames.Geometry) error
}

// Pipeline runs batches of sessions. Encoder and Compositor are required;
// a nil Verifier skips verification.
type Pipeline struct {
	Config     *config.Config
	Log        *logging.Logger
	Encoder    Encoder
	Compositor Compositor
	Verifier   Verifier

	// Resources overrides host detection when non-nil.
	Resources *planner.Resources
}

// New returns a Pipeline backed by ffmpeg and, when cfg.Verify is set,
// ffprobe. codec is the encoder to start from; "" means cfg.VideoCodec.
func New(cfg *config.Config, log *logging.Logger, codec string) *Pipeline {
	if codec == "" {
		codec = cfg.VideoCodec
	}
	runner := ffmpeg.NewRunner(ffmpeg.Settings{
		Bin:       cfg.FFmpegBin,
		Codec:     codec,
		Preset:    cfg.Preset,
		CRF:       cfg.CRF,
		PixFmt:    cfg.PixFmt,
		HFlip:     cfg.HFlip,
		Container: string(cfg.Container),
		Fallback:  cfg.CodecFallback,
		Verbose:   cfg.Verbose,
	}, log)
	p := &Pipeline{Config: cfg, Log: log, Encoder: runner, Compositor: runner}
	if cfg.Verify {
		p.Verifier = &probe.Prober{Bin: cfg.FFprobeBin}
	}
	return p
}

// Run discovers channel files under cfg.InputDir and processes them.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	d, err := Discover(p.Config.InputDir, p.Config.Extension)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", p.Config.InputDir, err)
	}
	return p.Process(ctx, d), nil
}

// batch is the state shared by the sessions of one Process call.
type batch struct {
	runID    string
	log      *logging.Logger
	sync     *session.Synchronizer
	claims   *planner.OutputClaims
	tempFree uint64 // Free bytes under the temp root; 0 when unknown.
}

// Process groups the discovered files into sessions and drives every
// processable session to completion on a bounded worker pool. Failures are
// recorded per session; the batch always runs to the end unless ctx is
// cancelled, in which case sessions not yet started are recorded as
// skipped.
func (p *Pipeline) Process(ctx context.Context, d Discovery) *Report {
	cfg := p.Config
	b := batch{runID: uuid.NewString(), claims: planner.NewOutputClaims()}
	log := p.Log.With("run", b.runID)
	b.log = log
	rep := &Report{
		RunID:   b.runID,
		Input:   cfg.InputDir,
		Output:  cfg.OutputDir,
		Started: time.Now(),
		DryRun:  cfg.DryRun,
	}

	for _, path := range d.Ignored {
		log.Debug("Ignored (name does not parse): %s", path)
	}
	groups := session.Group(d.Files)
	ids := groups.IDs()
	processable := groups.Processable()

	res := p.resources(ctx)
	workers := res.Workers(cfg.Workers, len(processable))
	budget := res.MemoryBudget(cfg.MemoryBudget, workers)
	b.tempFree = res.TempFree
	b.sync = &session.Synchronizer{
		Interleaver: &frames.Interleaver{
			Geometry:     cfg.Geometry(),
			Policy:       cfg.SizePolicy,
			Strategy:     cfg.Strategy,
			ChunkFrames:  cfg.ChunkFrames,
			MemoryBudget: budget,
		},
		GreenScale: cfg.GreenScale,
	}

	logBatchHeader(cfg, log, len(d.Files), len(ids), len(processable), workers, budget)

	records := make([]SessionRecord, len(ids))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, id := range ids {
		s := groups[id]
		rec := &records[i]
		rec.ID = id
		rec.State = StateGrouped

		if !s.Processable() {
			rec.Missing = s.Missing()
			rec.Error = "incomplete: missing " + strings.Join(rec.Missing, ", ")
			log.Warn("Session %s incomplete, missing %s", id, strings.Join(rec.Missing, ", "))
			continue
		}
		for _, dup := range s.Duplicates {
			log.Warn("Session %s: duplicate channel file ignored: %s", id, dup)
		}

		plan := planner.Build(cfg, id, b.runID)
		if err := b.claims.Claim(&plan); err != nil {
			rec.fail(StateGrouped, err)
			log.Error("Session %s: %v", id, err)
			continue
		}

		if ctx.Err() != nil {
			rec.skip("interrupted")
			continue
		}
		g.Go(func() error {
			p.processSession(ctx, &b, s, plan, rec)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		log.Warn("Interrupted")
	}
	if !cfg.DryRun {
		os.Remove(planner.TempRoot(cfg, b.runID))
	}

	rep.Stats.Total = len(ids)
	rep.Stats.Ignored = len(d.Ignored)
	for i := range records {
		rep.Stats.Add(&records[i])
	}
	rep.Sessions = records
	rep.Finished = time.Now()

	logSummary(cfg, log, rep)
	return rep
}

func (p *Pipeline) resources(ctx context.Context) planner.Resources {
	if p.Resources != nil {
		return *p.Resources
	}
	return planner.DetectResources(ctx, p.Config.OutputDir, p.Config.TempDir)
}

// processSession walks one session through the state machine, leaving the
// outcome in rec. The session's temp directory is removed on every path.
func (p *Pipeline) processSession(ctx context.Context, b *batch, s *session.Session, plan planner.SessionPlan, rec *SessionRecord) {
	cfg := p.Config
	log := b.log.With("session", s.ID)
	start := time.Now()
	defer func() { rec.Elapsed = time.Since(start) }()

	if ctx.Err() != nil {
		rec.skip("interrupted")
		return
	}
	if cfg.SkipExisting && plan.Done() {
		log.Warn("Skip (exists): %s", filepath.Base(plan.Output(planner.ArtifactCombined)))
		rec.skip("outputs exist")
		return
	}

	sp, err := b.sync.Plan(s)
	if errors.Is(err, session.ErrNothingToSync) {
		log.Warn("No frames common to both sides (L=%d, R=%d), skipping",
			sp.Frames[session.SideL], sp.Frames[session.SideR])
		rec.skip(err.Error())
		return
	}
	if err != nil {
		p.failed(log, rec, StateSynchronized, err)
		return
	}
	rec.State = StateSynchronized
	rec.Frames = sp.Common
	if sp.Frames[session.SideL] != sp.Frames[session.SideR] {
		log.Warn("Sides differ (L=%d, R=%d frames), truncating to %d",
			sp.Frames[session.SideL], sp.Frames[session.SideR], sp.Common)
	}
	log.Info("%s per side (%s at %d fps)",
		display.FormatFrames(sp.Common), display.FormatPlayback(sp.Common, plan.FrameRate), plan.FrameRate)

	if cfg.DryRun {
		for _, a := range planner.Artifacts {
			log.Debug("  -> %s", plan.Output(a))
		}
		log.Success("[DRY] Would encode and composite %d outputs", len(planner.Artifacts))
		rec.skip("dry run")
		return
	}

	if cfg.Intermediate == config.IntermediateFile && b.tempFree > 0 {
		if need := planner.IntermediateBytes(plan.Geometry.FrameSize(), sp.Common); uint64(need) > b.tempFree {
			log.Warn("Intermediate files need %s, temp dir has %s free",
				display.FormatBytes(need), display.FormatBytes(int64(b.tempFree)))
		}
	}

	if err := os.MkdirAll(plan.TempDir, 0o755); err != nil {
		p.failed(log, rec, StateEncodedL, err)
		return
	}
	defer os.RemoveAll(plan.TempDir)

	for _, side := range session.Sides {
		target := StateEncodedL
		if side == session.SideR {
			target = StateEncodedR
		}
		res, err := p.encodeSide(ctx, log, b.sync, s, sp, side, &plan)
		if err != nil {
			p.failed(log, rec, target, err)
			return
		}
		rec.Codec = res.Codec
		rec.State = target
	}

	if err := p.composite(ctx, log, &plan, sp.Common); err != nil {
		p.failed(log, rec, StateComposited, err)
		return
	}
	rec.State = StateComposited

	if err := os.RemoveAll(plan.TempDir); err != nil {
		log.Warn("Cannot remove temp dir %s: %v", plan.TempDir, err)
	}
	rec.State = StateCleaned
	for _, a := range planner.Artifacts {
		out := plan.Output(a)
		rec.Outputs = append(rec.Outputs, out)
		if fi, err := os.Stat(out); err == nil {
			rec.Bytes += fi.Size()
		}
	}
	log.Success("Done in %s (%s, %s)", display.FormatDuration(time.Since(start)),
		display.FormatRate(2*sp.Common, time.Since(start)), display.FormatBytes(rec.Bytes))
}

// encodeSide packs side's frames and encodes them into the side's final
// artifact. In file mode the frames go through a raw temp file; in pipe
// mode they stream into the encoder's stdin.
func (p *Pipeline) encodeSide(ctx context.Context, log *logging.Logger, sy *session.Synchronizer,
	s *session.Session, sp session.SyncPlan, side session.Side, plan *planner.SessionPlan,
) (ffmpeg.Result, error) {
	a := planner.SideArtifact(side)
	spec := ffmpeg.EncodeSpec{
		Input:     plan.RawPath(side),
		Output:    plan.Partial(a),
		Geometry:  plan.Geometry,
		FrameRate: plan.FrameRate,
	}

	var feed ffmpeg.Feeder
	if p.Config.Intermediate == config.IntermediatePipe {
		spec.Input = ffmpeg.StdinInput
		feed = func(w io.Writer) error {
			_, err := sy.Interleave(ctx, s, sp, side, w)
			return err
		}
	} else {
		r, err := writeRaw(ctx, sy, s, sp, side, spec.Input)
		if err != nil {
			return ffmpeg.Result{}, err
		}
		log.Debug("Packed %s: %s in %d chunk(s) -> %s",
			side, display.FormatBytes(r.Bytes), r.Chunks, filepath.Base(spec.Input))
	}

	res, err := p.Encoder.Encode(ctx, spec, feed)
	if feed == nil {
		os.Remove(spec.Input)
	}
	if err != nil {
		os.Remove(spec.Output)
		return res, err
	}
	if err := p.finalize(ctx, spec.Output, plan.Output(a), sp.Common, plan.Geometry); err != nil {
		return res, err
	}
	log.Success("Encoded %s with %s in %s", filepath.Base(plan.Output(a)), res.Codec, display.FormatDuration(res.Elapsed))
	return res, nil
}

// writeRaw interleaves side into a new file at path.
func writeRaw(ctx context.Context, sy *session.Synchronizer, s *session.Session, sp session.SyncPlan,
	side session.Side, path string,
) (frames.Result, error) {
	f, err := os.Create(path)
	if err != nil {
		return frames.Result{}, err
	}
	bw := bufio.NewWriterSize(f, rawBufferSize)
	res, err := sy.Interleave(ctx, s, sp, side, bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return res, err
}

// composite builds the overlay from the two final side artifacts, then the
// side-by-side from all three.
func (p *Pipeline) composite(ctx context.Context, log *logging.Logger, plan *planner.SessionPlan, n int) error {
	left, right := plan.Output(planner.ArtifactLeft), plan.Output(planner.ArtifactRight)

	overlay := plan.Partial(planner.ArtifactOverlay)
	if _, err := p.Compositor.Overlay(ctx, left, right, overlay); err != nil {
		os.Remove(overlay)
		return fmt.Errorf("overlay: %w", err)
	}
	if err := p.finalize(ctx, overlay, plan.Output(planner.ArtifactOverlay), n, plan.Geometry); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}

	combined := plan.Partial(planner.ArtifactCombined)
	if _, err := p.Compositor.SideBySide(ctx, left, right, plan.Output(planner.ArtifactOverlay), combined); err != nil {
		os.Remove(combined)
		return fmt.Errorf("side-by-side: %w", err)
	}
	if err := p.finalize(ctx, combined, plan.Output(planner.ArtifactCombined), n, combinedGeometry(plan.Geometry)); err != nil {
		return fmt.Errorf("side-by-side: %w", err)
	}
	log.Success("Composited %s, %s",
		filepath.Base(plan.Output(planner.ArtifactOverlay)), filepath.Base(plan.Output(planner.ArtifactCombined)))
	return nil
}

// finalize verifies partial and renames it to final. partial is removed
// when either step fails.
func (p *Pipeline) finalize(ctx context.Context, partial, final string, want int, g frames.Geometry) error {
	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, partial, want, g); err != nil {
			os.Remove(partial)
			return fmt.Errorf("verify %s: %w", filepath.Base(final), err)
		}
	}
	if err := os.Rename(partial, final); err != nil {
		os.Remove(partial)
		return err
	}
	return nil
}

// combinedGeometry is the size of three side-by-side encodes of g. Each
// side is padded to an even width before stacking.
func combinedGeometry(g frames.Geometry) frames.Geometry {
	return frames.Geometry{Width: 3 * (g.Width + g.Width%2), Height: g.Height}
}

// failed records err against target and logs it, with the tail of
// ffmpeg's stderr when an external process failed. A session cut short by
// cancellation is recorded as skipped, like sessions that never started.
func (p *Pipeline) failed(log *logging.Logger, rec *SessionRecord, target State, err error) {
	if errors.Is(err, context.Canceled) {
		log.Warn("Interrupted during %s", stageLabel(target))
		rec.skip("interrupted")
		return
	}
	rec.fail(target, err)
	log.Error("%v", rec.Err)
	var pe *ffmpeg.ExternalProcessError
	if errors.As(err, &pe) {
		logStderr(log, pe.Stderr)
	}
}

func logStderr(log *logging.Logger, stderr string) {
	if stderr == "" {
		return
	}
	log.Debug("Last ffmpeg output:")
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	start := 0
	if len(lines) > 20 {
		start = len(lines) - 20
	}
	for _, l := range lines[start:] {
		log.Debug("  %s", l)
	}
}

// --- Logging helpers ---

func logBatchHeader(cfg *config.Config, log *logging.Logger, files, sessions, processable, workers int, budget int64) {
	log.Info("Found %d channel files in %d sessions (%d processable)", files, sessions, processable)
	log.Info("Frames: %s at %d fps, %s policy, %s strategy",
		cfg.Geometry(), cfg.FrameRate, cfg.SizePolicy, cfg.Strategy)
	log.Info("Encoder: %s (%s), container %s, intermediate %s",
		cfg.VideoCodec, cfg.PixFmt, strings.ToUpper(string(cfg.Container)), cfg.Intermediate)
	log.Info("Workers: %d, buffer budget %s each", workers, display.FormatBytes(budget))
	if !cfg.HFlip {
		log.Info("Horizontal flip: off")
	}
	if cfg.GreenScale != 0 && cfg.GreenScale != 1 {
		log.Info("Green scale: %g", cfg.GreenScale)
	}
	if !cfg.Verify {
		log.Info("Verification: off")
	}
	if cfg.DryRun {
		log.Info("Dry run: nothing will be written")
	}
}

func logSummary(cfg *config.Config, log *logging.Logger, rep *Report) {
	st := &rep.Stats
	log.Info("==============================")
	log.Info("Done: %d completed, %d skipped, %d failed, %d incomplete",
		st.Completed, st.Skipped, st.Failed, st.Incomplete)
	log.Info("Summary report:")
	log.Info("  Sessions: %d", st.Total)
	if st.Ignored > 0 {
		log.Info("  Ignored files: %d", st.Ignored)
	}
	for _, rec := range rep.Sessions {
		if rec.State == StateFailed {
			log.Error("  %s failed at %s: %s", rec.ID, rec.Stage, rec.Error)
		}
	}

	if cfg.DryRun {
		log.Info("  Output written: n/a (dry run)")
		return
	}
	if st.Completed > 0 {
		log.Success("  Output written: %s across %d sessions (%s per side)",
			display.FormatBytes(st.OutputBytes), st.Completed, display.FormatFrames(st.Frames))
	}
	log.Info("  Elapsed: %s", display.FormatDuration(rep.Finished.Sub(rep.Started)))
}
