package matrix

import (
	"fmt"
	"strings"

	"github.com/cruciblehq/tessera/internal/platform"
)

// Resolves a public output name into its allocator and target.
//
// Names take the form "<allocator>" or "<allocator>-<target>", where target
// is [platform.Native] or a configured cross triple. The returned target is
// the string to pass in [Selection.Targets].
func (g *Generator) ParseOutput(name string) (Allocator, string, error) {
	for _, a := range Allocators {
		prefix := string(a)
		if name == prefix {
			return a, platform.Native, nil
		}
		rest, ok := strings.CutPrefix(name, prefix+"-")
		if !ok {
			continue
		}
		if _, err := g.ResolveTarget(rest); err != nil {
			return "", "", fmt.Errorf("%w: %q: %w", ErrInvalidOutput, name, err)
		}
		return a, rest, nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrInvalidOutput, name)
}

// Generates the variants for a list of output names.
//
// Each name selects one allocator and target pair; every selected profile is
// built for each pair. Unlike a [Selection], which spans the full cross
// product of its sets, only the named pairs are returned.
func (g *Generator) GenerateOutputs(names []string, profiles []Profile) ([]Variant, error) {
	sel := Selection{Profiles: profiles}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		a, t, err := g.ParseOutput(n)
		if err != nil {
			return nil, err
		}
		sel.Allocators = append(sel.Allocators, a)
		sel.Targets = append(sel.Targets, t)
		wanted[g.canonicalName(a, t)] = true
	}

	all, err := g.Generate(sel)
	if err != nil {
		return nil, err
	}

	variants := make([]Variant, 0, len(all))
	for _, v := range all {
		if wanted[v.Name()] {
			variants = append(variants, v)
		}
	}
	return variants, nil
}

// Returns the name [Variant.Name] reports for an allocator and target.
func (g *Generator) canonicalName(a Allocator, target string) string {
	t, err := g.ResolveTarget(target)
	if err != nil || t == g.Build {
		return string(a)
	}
	return fmt.Sprintf("%s-%s", a, t)
}
