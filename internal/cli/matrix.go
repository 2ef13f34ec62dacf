package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cruciblehq/tessera/internal/config"
	"github.com/cruciblehq/tessera/internal/matrix"
)

// Flags narrowing the matrix. Empty flags use the configured selection.
type SelectionFlags struct {
	Allocator []string `short:"a" help:"Allocators (default, jemalloc, hmalloc)." placeholder:"NAME"`
	Profile   []string `short:"p" help:"Cargo profiles (dev, release)." placeholder:"NAME"`
	Target    []string `short:"t" help:"Targets, \"native\" or a configured cross triple." placeholder:"TRIPLE"`
}

// Represents the 'tessera matrix' command.
type MatrixCmd struct {
	SelectionFlags `embed:""`
	Outputs        []string `arg:"" optional:"" help:"Output names, <allocator> or <allocator>-<target>. Overrides --allocator and --target."`
}

// Executes the matrix command.
//
// Prints one line per variant without building anything. Variants whose
// environment could not be composed are listed with their error.
func (c *MatrixCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	variants, err := selectVariants(ctx, cfg, c.SelectionFlags, c.Outputs)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPROFILE\tTARGET\tFEATURES\tSTATUS")
	for _, v := range variants {
		status := "ok"
		if v.Err != nil {
			status = v.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.Name(), v.Profile, v.Target, strings.Join(v.Features, ","), status)
	}
	return w.Flush()
}

// Resolves the toolchain and returns the selected variants.
func selectVariants(ctx context.Context, cfg *config.Config, sel SelectionFlags, outputs []string) ([]matrix.Variant, error) {
	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if len(outputs) > 0 {
		profiles := cfg.Selection(nil, sel.Profile, nil).Profiles
		return gen.GenerateOutputs(outputs, profiles)
	}
	return gen.Generate(cfg.Selection(sel.Allocator, sel.Profile, sel.Target))
}

// Creates a matrix generator over the resolved toolchain.
func newGenerator(ctx context.Context, cfg *config.Config) (*matrix.Generator, error) {
	tc, err := resolveToolchain(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalogue(cfg)
	if err != nil {
		return nil, err
	}

	return cfg.Generator(tc, cat)
}

// Reads the workspace feature catalogue. A workspace without a cargo
// manifest yields nil, which disables feature validation.
func loadCatalogue(cfg *config.Config) (*matrix.Catalogue, error) {
	root := cfg.Path(cfg.Matrix.Workspace)
	cat, err := matrix.LoadCatalogue(root)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("no cargo manifest, feature validation disabled", "workspace", root)
		return nil, nil
	}
	return cat, err
}
