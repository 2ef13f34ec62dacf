package matrix

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/cruciblehq/tessera/internal/environ"
	"github.com/cruciblehq/tessera/internal/platform"
	"github.com/cruciblehq/tessera/internal/toolchain"
)

// Cells selected for generation.
//
// Empty allocator and profile sets select all of them; an empty target set
// selects the native platform only. Targets are rustc triples or
// [platform.Native].
type Selection struct {
	Allocators []Allocator
	Profiles   []Profile
	Targets    []string
}

// A native library whose build depends on the allocator.
type NativeDependency struct {
	environ.Dependency

	// Install prefixes of the jemalloc-enabled build, keyed by triple. When
	// set, the jemalloc allocator selects these instead of Roots.
	JemallocRoots map[string]string
}

// Returns the dependency to compose for an allocator.
func (d NativeDependency) forAllocator(a Allocator) environ.Dependency {
	dep := d.Dependency
	if a == AllocatorJemalloc && len(d.JemallocRoots) > 0 {
		dep.Name = d.Name + "-jemalloc"
		dep.Roots = d.JemallocRoots
	}
	return dep
}

// Expands selections into variants.
type Generator struct {
	Build          platform.Triple      // Platform running the compiler.
	Toolchain      *toolchain.Toolchain // Resolved toolchain.
	Dependencies   []NativeDependency   // Native dependencies of the server.
	BaseFeatures   []string             // Features enabled in every variant.
	ExtraCargoArgs []string             // Arguments appended to every cargo invocation.
	CrossTargets   []platform.Triple    // Cross targets callers may select.
	Catalogue      *Catalogue           // Declared workspace features. Nil disables validation.
	Probe          func(string) bool    // Directory probe forwarded to [environ.Compose].
}

// Returns one variant per selected cell, in matrix order.
//
// An invalid selection is an error. Undeclared features and failures to
// compose a cell's environment are recorded on that variant only.
func (g *Generator) Generate(sel Selection) ([]Variant, error) {
	allocators, err := g.allocators(sel.Allocators)
	if err != nil {
		return nil, err
	}
	profiles, err := g.profiles(sel.Profiles)
	if err != nil {
		return nil, err
	}
	targets, err := g.targets(sel.Targets)
	if err != nil {
		return nil, err
	}

	variants := make([]Variant, 0, len(allocators)*len(profiles)*len(targets))
	for _, a := range allocators {
		for _, p := range profiles {
			for _, t := range targets {
				variants = append(variants, g.variant(a, p, t))
			}
		}
	}

	slog.Debug("matrix generated", "variants", len(variants))
	return variants, nil
}

// Builds the variant for one cell. Undeclared features and environment
// failures are recorded on the variant.
func (g *Generator) variant(a Allocator, p Profile, target platform.Triple) Variant {
	features := g.features(a)

	v := Variant{
		Allocator:      a,
		Profile:        p,
		Target:         target,
		Native:         target == g.Build,
		Features:       features,
		ExtraCargoArgs: slices.Clone(g.ExtraCargoArgs),
	}
	v.CargoArgs = cargoArgs(v)

	if g.Catalogue != nil {
		if err := g.Catalogue.Validate(features); err != nil {
			v.Err = fmt.Errorf("%s: %w", v.Key(), err)
			return v
		}
	}
	v.Env, v.Err = g.compose(v)

	return v
}

// Composes the environment of a variant.
func (g *Generator) compose(v Variant) (environ.Map, error) {
	roles := platform.NativeRoles(v.Target)
	if !v.Native {
		roles = platform.CrossRoles(g.Build, v.Target)
	}

	deps := make([]environ.Dependency, 0, len(g.Dependencies))
	for _, d := range g.Dependencies {
		deps = append(deps, d.forAllocator(v.Allocator))
	}

	env, err := environ.Compose(environ.Input{
		Roles:        roles,
		Toolchain:    g.Toolchain,
		Static:       v.Target.Static(),
		Dependencies: deps,
		Probe:        g.Probe,
	})
	if err != nil {
		return environ.Map{}, fmt.Errorf("%s: %w", v.Key(), err)
	}
	return env, nil
}

// Returns the sorted, deduplicated features of an allocator.
func (g *Generator) features(a Allocator) []string {
	features := append(slices.Clone(g.BaseFeatures), a.Features()...)
	slices.Sort(features)
	return slices.Compact(features)
}

// Returns the cargo argument list for a variant.
func cargoArgs(v Variant) []string {
	args := []string{
		"build",
		"--locked",
		"--profile", string(v.Profile),
		"--target", v.Target.String(),
		"--no-default-features",
	}
	if len(v.Features) > 0 {
		args = append(args, "--features", strings.Join(v.Features, ","))
	}
	return append(args, v.ExtraCargoArgs...)
}

// Validates and orders the selected allocators.
func (g *Generator) allocators(sel []Allocator) ([]Allocator, error) {
	if len(sel) == 0 {
		return slices.Clone(Allocators), nil
	}
	for _, a := range sel {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}
	return inOrder(Allocators, sel), nil
}

// Validates and orders the selected profiles.
func (g *Generator) profiles(sel []Profile) ([]Profile, error) {
	if len(sel) == 0 {
		return slices.Clone(Profiles), nil
	}
	for _, p := range sel {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return inOrder(Profiles, sel), nil
}

// Resolves the selected targets, native first, then cross targets in
// configuration order.
func (g *Generator) targets(sel []string) ([]platform.Triple, error) {
	order := append([]platform.Triple{g.Build}, g.CrossTargets...)
	if len(sel) == 0 {
		return order[:1], nil
	}

	picked := make([]platform.Triple, 0, len(sel))
	for _, s := range sel {
		t, err := g.ResolveTarget(s)
		if err != nil {
			return nil, err
		}
		picked = append(picked, t)
	}
	return inOrder(order, picked), nil
}

// Resolves "native" or a triple to one of the generator's targets.
func (g *Generator) ResolveTarget(s string) (platform.Triple, error) {
	if s == platform.Native {
		return g.Build, nil
	}
	t, err := platform.Parse(s)
	if err != nil {
		return platform.Triple{}, fmt.Errorf("%w: %w", ErrUnknownTarget, err)
	}
	if t != g.Build && !slices.Contains(g.CrossTargets, t) {
		return platform.Triple{}, fmt.Errorf("%w: %s", ErrUnknownTarget, t)
	}
	return t, nil
}

// Returns the members of order that appear in sel, in the order of order.
// Duplicates in sel collapse.
func inOrder[T comparable](order, sel []T) []T {
	out := make([]T, 0, len(sel))
	for _, v := range order {
		if slices.Contains(sel, v) && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
