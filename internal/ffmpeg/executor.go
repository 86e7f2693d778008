package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait lingers on I/O after the process is killed.
const waitDelay = 5 * time.Second

// Feeder writes a command's stdin. It is called at most once per run and
// must return once w rejects writes.
type Feeder func(w io.Writer) error

// ExecResult holds the outcome of a single ffmpeg invocation.
type ExecResult struct {
	Stderr string
	Err    error // *ExternalProcessError, a feed error, or the context error.
}

// Execute runs args (binary first). When feed is non-nil it streams into
// the process's stdin. Verbose tees stderr to os.Stderr as it arrives;
// otherwise stderr is only captured for classification.
func Execute(ctx context.Context, args []string, feed Feeder, verbose bool) ExecResult {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.WaitDelay = waitDelay

	var stderrBuf bytes.Buffer
	if verbose {
		cmd.Stderr = io.MultiWriter(&stderrBuf, os.Stderr)
	} else {
		cmd.Stderr = &stderrBuf
	}

	var stdin io.WriteCloser
	if feed != nil {
		var err error
		if stdin, err = cmd.StdinPipe(); err != nil {
			return ExecResult{Err: err}
		}
	}

	if err := cmd.Start(); err != nil {
		return ExecResult{Err: newProcessError(args, "", err)}
	}

	feedErr := make(chan error, 1)
	if feed != nil {
		go func() {
			err := feed(stdin)
			if cerr := stdin.Close(); err == nil {
				err = cerr
			}
			feedErr <- err
		}()
	} else {
		feedErr <- nil
	}

	waitErr := cmd.Wait()
	fErr := <-feedErr
	stderr := stderrBuf.String()

	switch {
	case ctx.Err() != nil:
		return ExecResult{Stderr: stderr, Err: ctx.Err()}
	case waitErr != nil:
		return ExecResult{Stderr: stderr, Err: newProcessError(args, stderr, waitErr)}
	case fErr != nil:
		return ExecResult{Stderr: stderr, Err: fmt.Errorf("feed %s: %w", args[0], fErr)}
	}
	return ExecResult{Stderr: stderr}
}
