package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/cruciblehq/tessera/internal/paths"
	"github.com/cruciblehq/tessera/internal/runtime"
)

const (

	// Raw suite output, one go test JSON event per line.
	RawFilename = "complement_test_logs.jsonl"

	// Sorted {"Action","Test"} records.
	ResultsFilename = "complement_test_results.jsonl"

	// Variable the suite reads the image under test from.
	BaseImageVar = "COMPLEMENT_BASE_IMAGE"

	// Repository name of generated tags.
	defaultRepository = "complement-conduit"

	// Time the suite gets to exit after an interrupt before it is killed.
	defaultGrace = 10 * time.Second
)

// Loads images into the container runtime.
type Loader interface {
	ImportImage(ctx context.Context, path, tag string) error
	DestroyImage(ctx context.Context, tag string) error
}

// Checks a loaded image before the suite runs. Implemented by
// [runtime.Runtime].
type Verifier interface {
	Preflight(ctx context.Context, tag string, opts runtime.PreflightOptions) error
}

// Controls a single run.
type Options struct {
	Image     string                    // OCI layout archive to load.
	Tag       string                    // Image tag. Empty generates "complement-conduit:<run id>".
	Suite     []string                  // Suite command line.
	Dir       string                    // Working directory of the suite.
	Env       []string                  // Extra suite environment, KEY=value.
	Output    string                    // Directory receiving the result files. Empty uses the state directory.
	Grace     time.Duration             // Time between interrupt and kill on cancellation. Zero uses ten seconds.
	Preflight *runtime.PreflightOptions // Preflight check. Nil skips it.
	Keep      bool                      // Leave the image loaded after the run.
	Stderr    io.Writer                 // Receives the suite's stderr. Nil discards it.
}

// Outcome of a run.
type Report struct {
	RunID    string        // Unique run identifier.
	Tag      string        // Image tag the suite ran against.
	State    State         // Final state, Done or Failed.
	Path     []State       // States entered, in order.
	Raw      string        // Raw event file. Set once the suite started.
	Results  string        // Normalized result file. Set once normalized.
	ExitCode int           // Suite exit code. Non-zero means some tests failed.
	Summary  Summary       // Counts of normalized records.
	Duration time.Duration // Wall time of the run.
}

// Runs the conformance suite against packaged images.
type Harness struct {
	loader Loader              // Container runtime.
	gate   *semaphore.Weighted // Bounds concurrent runs.
}

// Creates a harness allowing up to concurrency simultaneous runs. Values
// below one are treated as one.
func New(loader Loader, concurrency int) *Harness {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Harness{
		loader: loader,
		gate:   semaphore.NewWeighted(int64(concurrency)),
	}
}

// Runs the suite against one image.
//
// Blocks until a run slot is free. The returned report is never nil, even
// on error, and records how far the run got.
func (h *Harness) Run(ctx context.Context, opts Options) (*Report, error) {
	runID := uuid.NewString()
	r := &run{
		harness: h,
		opts:    withDefaults(opts, runID),
		machine: newMachine(),
		report:  &Report{RunID: runID},
	}
	r.report.Tag = r.opts.Tag

	if err := h.gate.Acquire(ctx, 1); err != nil {
		return r.finish(time.Now(), err)
	}
	defer h.gate.Release(1)

	return r.execute(ctx)
}

// Fills unset options.
func withDefaults(opts Options, runID string) Options {
	if opts.Tag == "" {
		opts.Tag = defaultRepository + ":" + runID
	}
	if opts.Output == "" {
		opts.Output = filepath.Join(paths.Results(), runID)
	}
	if opts.Grace <= 0 {
		opts.Grace = defaultGrace
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	return opts
}

// State of one run.
type run struct {
	harness *Harness // Owning harness.
	opts    Options  // Defaulted options.
	machine *machine // State machine.
	report  *Report  // Report under construction.
}

// Drives the run through every state.
func (r *run) execute(ctx context.Context) (*Report, error) {
	start := time.Now()
	log := slog.With("run", r.report.RunID, "tag", r.opts.Tag)

	if len(r.opts.Suite) == 0 {
		return r.finish(start, fmt.Errorf("%w: no suite command", ErrSuiteUnstartable))
	}
	if err := os.MkdirAll(r.opts.Output, paths.DefaultDirMode); err != nil {
		return r.finish(start, fmt.Errorf("%w: %w", ErrOutput, err))
	}

	log.Info("loading image", "archive", r.opts.Image)
	if err := r.load(ctx); err != nil {
		return r.finish(start, err)
	}
	if !r.opts.Keep {
		defer r.unload()
	}
	if err := r.machine.transition(StateImageLoaded); err != nil {
		return r.finish(start, err)
	}

	if err := r.machine.transition(StateSuiteRunning); err != nil {
		return r.finish(start, err)
	}
	log.Info("running suite", "command", r.opts.Suite[0], "output", r.opts.Output)
	r.report.Raw = filepath.Join(r.opts.Output, RawFilename)
	exitCode, err := runSuite(ctx, r.opts, r.report.Raw)
	if err != nil {
		return r.finish(start, err)
	}
	r.report.ExitCode = exitCode
	if err := r.machine.transition(StateResultsCaptured); err != nil {
		return r.finish(start, err)
	}

	results := filepath.Join(r.opts.Output, ResultsFilename)
	sum, err := normalizeFile(r.report.Raw, results)
	if err != nil {
		return r.finish(start, err)
	}
	r.report.Results = results
	r.report.Summary = sum
	if err := r.machine.transition(StateNormalized); err != nil {
		return r.finish(start, err)
	}

	if err := r.machine.transition(StateDone); err != nil {
		return r.finish(start, err)
	}

	log.Info("suite finished",
		"exit", exitCode,
		"pass", sum.Pass,
		"fail", sum.Fail,
		"skip", sum.Skip,
	)
	return r.finish(start, nil)
}

// Loads the image and runs the preflight check.
func (r *run) load(ctx context.Context) error {
	if err := r.harness.loader.ImportImage(ctx, r.opts.Image, r.opts.Tag); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrImageLoadFailed, r.opts.Image, err)
	}

	if r.opts.Preflight == nil {
		return nil
	}
	v, ok := r.harness.loader.(Verifier)
	if !ok {
		slog.Warn("runtime cannot preflight images, skipping", "tag", r.opts.Tag)
		return nil
	}
	if err := v.Preflight(ctx, r.opts.Tag, *r.opts.Preflight); err != nil {
		r.unload()
		return fmt.Errorf("%w: %s: %w", ErrImageLoadFailed, r.opts.Tag, err)
	}
	return nil
}

// Removes the image. Failures are logged, never returned.
func (r *run) unload() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.harness.loader.DestroyImage(ctx, r.opts.Tag); err != nil {
		slog.Warn("failed to remove image", "tag", r.opts.Tag, "error", err)
	}
}

// Completes the report. A non-nil err moves the run to Failed.
func (r *run) finish(start time.Time, err error) (*Report, error) {
	if err != nil {
		r.machine.fail()
		slog.Error("harness run failed", "run", r.report.RunID, "state", r.machine.state, "error", err)
	}
	r.report.State = r.machine.state
	r.report.Path = r.machine.path()
	r.report.Duration = time.Since(start)
	return r.report, err
}

// Normalizes the raw file into the results file.
func normalizeFile(raw, results string) (Summary, error) {
	in, err := os.Open(raw)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrOutput, err)
	}
	defer in.Close()

	out, err := os.Create(results)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrOutput, err)
	}

	sum, err := Normalize(in, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %w", ErrOutput, cerr)
	}
	if err != nil {
		return sum, errors.Join(err, os.Remove(results))
	}
	return sum, nil
}
