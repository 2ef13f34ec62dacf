package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cruciblehq/tessera/internal/config"
	"github.com/cruciblehq/tessera/internal/image"
	"github.com/cruciblehq/tessera/internal/platform"
	"github.com/cruciblehq/tessera/internal/source"
)

// Represents the 'tessera package' command.
type PackageCmd struct {
	Binary string `arg:"" type:"path" help:"Compiled server binary."`
	Target string `short:"t" default:"native" help:"Triple the binary was built for, or \"native\"." placeholder:"TRIPLE"`
	Tag    string `default:"latest" help:"Image tag."`
	Output string `short:"o" type:"path" help:"Archive path. Defaults to <matrix.output>/<name>-<tag>.oci.tar." placeholder:"PATH"`
}

// Executes the package command.
//
// Packages the binary with tini, the CA bundle and the configured files into
// an OCI layout archive. Every timestamp is the source epoch, so identical
// inputs produce identical archives.
func (c *PackageCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := image.CheckBinary(c.Binary); err != nil {
		return err
	}

	target, err := packageTarget(cfg, c.Target)
	if err != nil {
		return err
	}

	epoch, err := source.Epoch(cfg.Path(cfg.Matrix.Workspace))
	if err != nil {
		return fmt.Errorf("%w: %w", image.ErrNoSourceEpoch, err)
	}

	spec := cfg.ImageSpec(c.Binary, target, c.Tag, epoch)

	output := c.Output
	if output == "" {
		output = filepath.Join(cfg.Path(cfg.Matrix.Output), fmt.Sprintf("%s-%s.oci.tar", spec.Name, c.Tag))
	}

	img, err := image.Package(ctx, spec, output)
	if err != nil {
		return err
	}

	slog.Info("image packaged", "ref", img.Ref, "digest", img.Digest(), "path", img.Path)
	fmt.Println(img.Path)
	return nil
}

// Resolves the target flag without resolving the toolchain.
func packageTarget(cfg *config.Config, target string) (platform.Triple, error) {
	if target == platform.Native {
		return cfg.BuildTriple()
	}
	return platform.Parse(target)
}
