package harness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
)

// Runs the suite, copying its stdout verbatim to the raw file.
//
// Returns the suite's exit code. A non-zero exit is not an error. Failure to
// start yields [ErrSuiteUnstartable] and death by signal [ErrSuiteCrashed].
// When ctx is cancelled the suite is interrupted, then killed after the
// grace period. Whatever output was captured is flushed to the raw file
// before the context error is returned.
func runSuite(ctx context.Context, opts Options, rawPath string) (int, error) {
	raw, err := os.Create(rawPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutput, err)
	}
	buf := bufio.NewWriter(raw)
	out := &lineCounter{w: buf}

	cmd := exec.CommandContext(ctx, opts.Suite[0], opts.Suite[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), BaseImageVar+"="+opts.Tag)
	cmd.Env = append(cmd.Env, opts.Env...)
	cmd.Stdout = out
	cmd.Stderr = opts.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = opts.Grace

	if err := cmd.Start(); err != nil {
		raw.Close()
		return 0, fmt.Errorf("%w: %s: %w", ErrSuiteUnstartable, opts.Suite[0], err)
	}
	slog.Debug("suite started", "pid", cmd.Process.Pid, "tag", opts.Tag)

	waitErr := cmd.Wait()

	flushErr := buf.Flush()
	if err := raw.Close(); flushErr == nil {
		flushErr = err
	}
	slog.Debug("suite exited", "events", out.lines.Load(), "raw", rawPath)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}
	if flushErr != nil {
		return 0, fmt.Errorf("%w: %w", ErrOutput, flushErr)
	}
	return exitStatus(waitErr)
}

// Classifies the suite's wait error.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, fmt.Errorf("%w: %w", ErrSuiteCrashed, err)
	}

	// ExitCode is -1 when the process was terminated by a signal.
	code := exitErr.ExitCode()
	if code < 0 {
		return 0, fmt.Errorf("%w: %s", ErrSuiteCrashed, exitErr.ProcessState)
	}
	return code, nil
}

// Passes writes through and counts newlines.
type lineCounter struct {
	w     *bufio.Writer // Destination.
	lines atomic.Int64  // Newlines seen.
}

// Writes p to the destination.
func (c *lineCounter) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			c.lines.Add(1)
		}
	}
	return c.w.Write(p)
}
