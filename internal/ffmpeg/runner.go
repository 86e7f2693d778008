package ffmpeg

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the logging surface Runner needs.
type Logger interface {
	Render(string, ...interface{})
	Warn(string, ...interface{})
	Debug(string, ...interface{})
}

// Result describes a successful ffmpeg command.
type Result struct {
	Codec    string // Encoder that produced the output.
	Attempts int
	Elapsed  time.Duration
}

// Runner encodes sides and composites them. Once a fallback codec works,
// later commands start from it. Safe for concurrent use.
type Runner struct {
	settings Settings
	log      Logger

	mu    sync.Mutex
	codec string
}

// NewRunner returns a Runner for s logging through log.
func NewRunner(s Settings, log Logger) *Runner {
	return &Runner{settings: s, log: log, codec: s.Codec}
}

// Codec returns the encoder the next command will try first.
func (r *Runner) Codec() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codec
}

func (r *Runner) settle(codec string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codec != codec {
		r.log.Warn("Encoder %s unavailable, using %s from now on", r.codec, codec)
		r.codec = codec
	}
}

// Encode encodes spec.Input into spec.Output. When feed is non-nil,
// spec.Input is replaced by stdin and feed supplies the packed frames; it
// is called again on each retry.
func (r *Runner) Encode(ctx context.Context, spec EncodeSpec, feed Feeder) (Result, error) {
	if feed != nil {
		spec.Input = StdinInput
	}
	return r.run(ctx, spec.Output, feed, func(codec string) []string {
		return BuildEncode(&r.settings, spec, codec)
	})
}

// Overlay averages left and right into out.
func (r *Runner) Overlay(ctx context.Context, left, right, out string) (Result, error) {
	return r.run(ctx, out, nil, func(codec string) []string {
		return BuildOverlay(&r.settings, left, right, out, codec)
	})
}

// SideBySide stacks left, right and overlay horizontally into out.
func (r *Runner) SideBySide(ctx context.Context, left, right, overlay, out string) (Result, error) {
	return r.run(ctx, out, nil, func(codec string) []string {
		return BuildSideBySide(&r.settings, left, right, overlay, out, codec)
	})
}

// run executes build's command, advancing the codec chain on encoder
// errors. out is removed after any failed attempt.
func (r *Runner) run(ctx context.Context, out string, feed Feeder, build func(codec string) []string) (Result, error) {
	start := time.Now()
	rs := NewRetryState(r.Codec(), r.settings.Fallback)
	for {
		args := build(rs.Codec())
		r.log.Render("%s", strings.Join(args, " "))

		res := Execute(ctx, args, feed, r.settings.Verbose)
		if res.Err == nil {
			r.settle(rs.Codec())
			return Result{Codec: rs.Codec(), Attempts: rs.Attempt + 1, Elapsed: time.Since(start)}, nil
		}
		_ = os.Remove(out)

		if ctx.Err() != nil {
			return Result{}, res.Err
		}
		failed := rs.Codec()
		if rs.Advance(res.Stderr) == RetryNone {
			return Result{Codec: failed, Attempts: rs.Attempt}, res.Err
		}
		r.log.Debug("Retry %d: %s unavailable, trying %s", rs.Attempt, failed, rs.Codec())
	}
}
