package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/cruciblehq/tessera/internal/matrix"
)

// Represents the 'tessera features' command.
type FeaturesCmd struct {
	Check []string `help:"Fail unless every listed feature is declared." placeholder:"FEATURE" sep:","`
}

// Executes the features command.
//
// Prints the sorted, deduplicated features of the workspace and its members.
func (c *FeaturesCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := matrix.LoadCatalogue(cfg.Path(cfg.Matrix.Workspace))
	if err != nil {
		return err
	}

	if len(c.Check) > 0 {
		return cat.Validate(c.Check)
	}

	fmt.Println(strings.Join(cat.Features(), "\n"))
	return nil
}
