package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cruciblehq/tessera/internal/registry"
)

// Represents the 'tessera publish' command.
type PublishCmd struct {
	Archive string `arg:"" type:"path" help:"OCI layout archive written by 'tessera package'."`
	Tag     string `default:"latest" help:"Tag of the image inside the archive."`
	Ref     string `help:"Destination reference. Defaults to <registry.repository>:<tag>." placeholder:"REF"`
}

// Executes the publish command.
func (c *PublishCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ref := c.Ref
	if ref == "" {
		if cfg.Registry.Repository == "" {
			return errors.New("no destination: pass --ref or set registry.repository")
		}
		ref = cfg.Registry.Repository + ":" + c.Tag
	}

	desc, err := registry.Publish(ctx, c.Archive, c.Tag, ref, cfg.RegistryOptions())
	if err != nil {
		return err
	}

	slog.Info("image published", "ref", ref, "digest", desc.Digest)
	fmt.Printf("%s@%s\n", ref, desc.Digest)
	return nil
}
