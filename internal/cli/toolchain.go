package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cruciblehq/tessera/internal/config"
	"github.com/cruciblehq/tessera/internal/toolchain"
)

// Represents the 'tessera toolchain' command.
type ToolchainCmd struct{}

// Executes the toolchain command.
//
// Resolves the declared toolchain, fetching it into the cache if needed, and
// prints its identity and location.
func (c *ToolchainCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tc, err := resolveToolchain(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("version: %s\n", tc.Spec.Version)
	fmt.Printf("hash:    %s\n", tc.Spec.Hash)
	fmt.Printf("archive: %s\n", tc.Archive)
	fmt.Printf("linker:  %s\n", tc.Linker)
	return nil
}

// Resolves the configured toolchain. Runs once per command, before any job.
func resolveToolchain(ctx context.Context, cfg *config.Config) (*toolchain.Toolchain, error) {
	spec, err := cfg.ToolchainSpec()
	if err != nil {
		return nil, err
	}

	slog.Debug("resolving toolchain", "version", spec.Version, "hash", spec.Hash)

	tc, err := toolchain.Resolve(ctx, spec, cfg.ToolchainOptions())
	if err != nil {
		return nil, err
	}

	slog.Info("toolchain verified", "toolchain", tc.Spec, "archive", tc.Archive)
	return tc, nil
}
