package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cruciblehq/tessera/internal/environ"
	"github.com/cruciblehq/tessera/internal/matrix"
	"github.com/cruciblehq/tessera/internal/paths"
)

// Default cargo executable.
const defaultCargo = "cargo"

// Controls a matrix run.
type Options struct {
	Variants  []matrix.Variant // Variants to build.
	Workspace string           // Cargo workspace root.
	TargetDir string           // Cargo target directory. Empty uses "<workspace>/target".
	Output    string           // Directory receiving collected artifacts.
	Binary    string           // Name of the binary cargo produces.
	Workers   int              // Maximum concurrent jobs. Zero uses the CPU count.
	Cargo     string           // Cargo executable. Empty uses "cargo".
	Env       environ.Map      // Extra variables for every job (e.g., the version extra).
}

// Builds every variant, running up to Options.Workers jobs at once.
//
// The returned error covers only problems that prevent the run as a whole
// (such as an unwritable output directory). Per-variant failures are
// reported in the result; see [Result.Err].
func Run(ctx context.Context, opts Options) (*Result, error) {
	opts = withDefaults(opts)

	slog.Info("building matrix",
		"variants", len(opts.Variants),
		"workers", opts.Workers,
		"output", opts.Output,
	)

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	start := time.Now()
	results := make([]JobResult, len(opts.Variants))

	var g errgroup.Group
	g.SetLimit(opts.Workers)

	for i, v := range opts.Variants {
		g.Go(func() error {
			results[i] = newJob(opts, v).run(ctx)
			return nil
		})
	}
	g.Wait()

	result := &Result{Jobs: results, Duration: time.Since(start)}
	slog.Info("matrix finished",
		"succeeded", len(result.Succeeded()),
		"total", len(results),
		"duration", result.Duration.Truncate(time.Millisecond),
	)
	return result, nil
}

// Fills unset options.
func withDefaults(opts Options) Options {
	if opts.Workers <= 0 {
		opts.Workers = goruntime.NumCPU()
	}
	if opts.Cargo == "" {
		opts.Cargo = defaultCargo
	}
	if opts.Workspace == "" {
		opts.Workspace = "."
	}
	if opts.TargetDir == "" {
		opts.TargetDir = opts.Workspace + string(os.PathSeparator) + "target"
	}
	return opts
}
