package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cruciblehq/tessera/internal/archive"
	"github.com/cruciblehq/tessera/internal/config"
	"github.com/cruciblehq/tessera/internal/harness"
	"github.com/cruciblehq/tessera/internal/runtime"
)

// Represents the 'tessera test' command.
type TestCmd struct {
	Images      []string `arg:"" type:"path" help:"OCI layout archives written by 'tessera package'."`
	Tag         string   `help:"Image tag. Empty generates a unique tag per run. Only valid with one archive."`
	Output      string   `short:"o" type:"path" help:"Results directory. Defaults to harness.output, then the state directory." placeholder:"PATH"`
	Keep        bool     `help:"Leave images loaded after the run."`
	NoPreflight bool     `help:"Skip the preflight check even when configured."`
	Archive     bool     `help:"Upload the result files to the configured object store."`
}

// Executes the test command.
//
// Runs the suite once per archive. Runs beyond harness.concurrency wait for
// a free slot. Failing conformance tests are data in the result files and
// the printed summary; the command fails only when a run itself failed.
func (c *TestCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Tag != "" && len(c.Images) > 1 {
		return errors.New("--tag requires a single archive")
	}

	rt, err := runtime.New(cfg.Harness.Containerd.Address, cfg.Harness.Containerd.Namespace, cfg.Harness.Containerd.Platform)
	if err != nil {
		return err
	}
	defer rt.Close()

	var arc *archive.Archiver
	if c.Archive {
		if arc, err = newArchiver(ctx, cfg); err != nil {
			return err
		}
	}

	return c.runAll(ctx, cfg, harness.New(rt, cfg.Harness.Concurrency), arc, os.Stdout)
}

// Runs every archive through h and prints one summary line per run.
func (c *TestCmd) runAll(ctx context.Context, cfg *config.Config, h *harness.Harness, arc *archive.Archiver, w io.Writer) error {
	reports := make([]*harness.Report, len(c.Images))
	errs := make([]error, len(c.Images))

	var g errgroup.Group
	for i, img := range c.Images {
		g.Go(func() error {
			reports[i], errs[i] = h.Run(ctx, c.options(cfg, img))
			if errs[i] == nil && arc != nil {
				errs[i] = uploadReport(ctx, arc, reports[i])
			}
			return nil
		})
	}
	g.Wait()

	for i, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\texit=%d pass=%d fail=%d skip=%d\t%s\n",
			c.Images[i], r.Tag, r.State, r.ExitCode, r.Summary.Pass, r.Summary.Fail, r.Summary.Skip, r.Results)
	}
	return errors.Join(errs...)
}

// Returns the harness options for one archive.
func (c *TestCmd) options(cfg *config.Config, img string) harness.Options {
	output := c.Output
	if output == "" && cfg.Harness.Output != "" {
		output = cfg.Path(cfg.Harness.Output)
	}
	if output != "" && len(c.Images) > 1 {
		output = filepath.Join(output, strings.TrimSuffix(filepath.Base(img), ".oci.tar"))
	}

	opts := harness.Options{
		Image:  img,
		Tag:    c.Tag,
		Suite:  cfg.Harness.Suite,
		Dir:    cfg.Path(cfg.Harness.Dir),
		Env:    cfg.Harness.Env,
		Output: output,
		Grace:  cfg.Harness.Grace,
		Keep:   c.Keep,
		Stderr: os.Stderr,
	}
	if !c.NoPreflight {
		opts.Preflight = cfg.PreflightOptions()
	}
	return opts
}

// Creates an archiver for the configured object store, creating the bucket
// if needed.
func newArchiver(ctx context.Context, cfg *config.Config) (*archive.Archiver, error) {
	arc, err := archive.New(cfg.ArchiveSettings())
	if err != nil {
		return nil, err
	}
	if err := arc.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return arc, nil
}

// Uploads the raw and normalized results of a run under its run id.
func uploadReport(ctx context.Context, arc *archive.Archiver, r *harness.Report) error {
	objects, err := arc.Upload(ctx, path.Join("complement", r.RunID), r.Raw, r.Results)
	if err != nil {
		return err
	}
	slog.Info("results archived", "run", r.RunID, "objects", len(objects))
	return nil
}
