package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"text/tabwriter"

	"github.com/cruciblehq/tessera/internal/build"
	"github.com/cruciblehq/tessera/internal/config"
	"github.com/cruciblehq/tessera/internal/source"
)

// Represents the 'tessera build' command.
type BuildCmd struct {
	SelectionFlags `embed:""`
	Outputs        []string `arg:"" optional:"" help:"Output names, <allocator> or <allocator>-<target>. Overrides --allocator and --target."`
	Workers        int      `short:"j" help:"Maximum concurrent jobs. Zero uses matrix.workers."`
	Archive        bool     `help:"Upload the collected artifacts to the configured object store."`
}

// Executes the build command.
//
// Resolves the toolchain once, then builds every selected variant in
// parallel. A failing variant does not stop its siblings; the command fails
// if any variant failed.
func (c *BuildCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	variants, err := selectVariants(ctx, cfg, c.SelectionFlags, c.Outputs)
	if err != nil {
		return err
	}

	workers := c.Workers
	if workers == 0 {
		workers = cfg.Matrix.Workers
	}

	workspace := cfg.Path(cfg.Matrix.Workspace)
	res, err := build.Run(ctx, build.Options{
		Variants:  variants,
		Workspace: workspace,
		Output:    cfg.Path(cfg.Matrix.Output),
		Binary:    cfg.Matrix.Binary,
		Workers:   workers,
		Cargo:     cfg.Matrix.Cargo,
		Env:       build.VersionEnv(workspace),
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tSTATUS\tARTIFACT\tLOG")
	for _, j := range res.Jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", j.Variant.Key(), j.Status, j.Artifact, j.Log)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if c.Archive {
		if err := archiveArtifacts(ctx, cfg, workspace, res); err != nil {
			return errors.Join(res.Err(), err)
		}
	}

	return res.Err()
}

// Uploads every collected artifact under "builds/<revision>/<variant key>".
func archiveArtifacts(ctx context.Context, cfg *config.Config, workspace string, res *build.Result) error {
	arc, err := newArchiver(ctx, cfg)
	if err != nil {
		return err
	}

	revision := "unversioned"
	if rev, err := source.Read(workspace); err == nil {
		revision = rev.Short()
	}

	for _, j := range res.Succeeded() {
		key := path.Join("builds", revision, j.Variant.Key())
		if _, err := arc.Upload(ctx, key, j.Artifact, j.Log); err != nil {
			return err
		}
	}
	slog.Info("artifacts archived", "revision", revision, "count", len(res.Succeeded()))
	return nil
}
