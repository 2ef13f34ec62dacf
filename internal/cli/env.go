package cli

import (
	"context"
	"fmt"
)

// Represents the 'tessera env' command.
type EnvCmd struct {
	Output  string `arg:"" help:"Output name, <allocator> or <allocator>-<target>."`
	Profile string `short:"p" default:"release" help:"Cargo profile (dev, release)."`
}

// Executes the env command.
//
// Prints the composed environment of one variant as shell exports, suitable
// for sourcing before running cargo by hand.
func (c *EnvCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	variants, err := selectVariants(ctx, cfg, SelectionFlags{Profile: []string{c.Profile}}, []string{c.Output})
	if err != nil {
		return err
	}
	if len(variants) != 1 {
		return fmt.Errorf("output %q selected %d variants", c.Output, len(variants))
	}

	v := variants[0]
	if v.Err != nil {
		return v.Err
	}

	fmt.Print(v.Env.String())
	return nil
}
