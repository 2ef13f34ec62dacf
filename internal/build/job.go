package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cruciblehq/tessera/internal/environ"
	"github.com/cruciblehq/tessera/internal/matrix"
	"github.com/cruciblehq/tessera/internal/paths"
)

// Name of the per-job cargo output log.
const logFilename = "build.log"

// Builds one variant.
type job struct {
	variant   matrix.Variant // Variant to build.
	cargo     string         // Cargo executable.
	workspace string         // Cargo workspace root.
	targetDir string         // Cargo target directory for this variant's allocator.
	output    string         // Directory receiving this variant's artifact and log.
	binary    string         // Name of the binary cargo produces.
	env       environ.Map    // Extra variables shared by all jobs.
}

// Creates a new [job] for a variant.
//
// Variants that differ only in profile or target share a target directory;
// cargo already separates those by path.
func newJob(opts Options, v matrix.Variant) *job {
	return &job{
		variant:   v,
		cargo:     opts.Cargo,
		workspace: opts.Workspace,
		targetDir: filepath.Join(opts.TargetDir, string(v.Allocator)),
		output:    filepath.Join(opts.Output, string(v.Profile), v.Name()),
		binary:    opts.Binary,
		env:       opts.Env,
	}
}

// Runs cargo and collects the artifact. Never panics on failure; the
// outcome is always described by the returned result.
func (j *job) run(ctx context.Context) JobResult {
	start := time.Now()
	res := JobResult{Variant: j.variant}

	fail := func(err error) JobResult {
		res.Status = StatusFailed
		res.Error = fmt.Errorf("%w: %s: %w", ErrBuild, j.variant.Key(), err)
		res.Duration = time.Since(start)
		slog.Error("variant failed", "variant", j.variant.Key(), "error", err)
		return res
	}

	if err := ctx.Err(); err != nil {
		res.Status = StatusSkipped
		res.Error = fmt.Errorf("%w: %s: %w", ErrSkipped, j.variant.Key(), err)
		return res
	}

	if j.variant.Err != nil {
		return fail(j.variant.Err)
	}

	if err := os.MkdirAll(j.output, paths.DefaultDirMode); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrFileSystemOperation, err))
	}

	res.Log = filepath.Join(j.output, logFilename)
	if err := j.cargoBuild(ctx, res.Log); err != nil {
		return fail(err)
	}

	src := j.variant.ArtifactPath(j.targetDir, j.binary)
	dest := filepath.Join(j.output, j.binary)
	if err := collectArtifact(src, dest); err != nil {
		return fail(err)
	}

	res.Status = StatusSuccess
	res.Artifact = dest
	res.Duration = time.Since(start)
	slog.Info("variant built", "variant", j.variant.Key(), "artifact", dest, "duration", res.Duration.Truncate(time.Millisecond))
	return res
}

// Invokes cargo, writing its combined output to logPath.
func (j *job) cargoBuild(ctx context.Context, logPath string) error {
	log, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	defer log.Close()

	cmd := exec.CommandContext(ctx, j.cargo, j.variant.CargoArgs...)
	cmd.Dir = j.workspace
	cmd.Env = j.environ()
	cmd.Stdout = log
	cmd.Stderr = log

	slog.Debug("cargo", "variant", j.variant.Key(), "args", j.variant.CargoArgs, "target-dir", j.targetDir)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("cargo %s: %w (see %s)", j.variant.CargoArgs[0], err, logPath)
	}
	return nil
}

// Returns the process environment for cargo.
//
// The inherited environment comes first so that composed variables override
// anything set by the caller's shell.
func (j *job) environ() []string {
	env := environ.NewBuilder().
		Merge(j.env).
		Merge(j.variant.Env).
		Set("CARGO_TARGET_DIR", j.targetDir).
		Build()
	return append(os.Environ(), env.Environ()...)
}
