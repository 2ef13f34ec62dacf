package config

import (
	"errors"
	"fmt"
	"path"
	"slices"

	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/tessera/internal/matrix"
	"github.com/cruciblehq/tessera/internal/platform"
	"github.com/cruciblehq/tessera/internal/toolchain"
)

// Known linker families.
var linkers = []toolchain.LinkerKind{toolchain.LinkerGNU, toolchain.LinkerGold, toolchain.LinkerMold, toolchain.LinkerLLD}

// Checks structural invariants. Every problem found is reported, each
// prefixed with the offending key.
func (c *Config) Validate() error {
	var errs []error
	add := func(key, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, key, fmt.Sprintf(format, args...)))
	}

	// Toolchain

	if c.Toolchain.Hash != "" {
		if _, err := digest.Parse(c.Toolchain.Hash); err != nil {
			add("toolchain.hash", "%v", err)
		}
	}
	if c.Toolchain.Linker != "" && !slices.Contains(linkers, c.Toolchain.Linker) {
		add("toolchain.linker", "unknown linker %q", c.Toolchain.Linker)
	}
	for triple := range c.Toolchain.Compilers {
		if _, err := platform.Parse(triple); err != nil {
			add("toolchain.compilers", "%v", err)
		}
	}

	// Platform

	if c.Platform.Build != "" {
		if _, err := platform.Parse(c.Platform.Build); err != nil {
			add("platform.build", "%v", err)
		}
	}
	for _, t := range c.Platform.CrossTargets {
		if _, err := platform.Parse(t); err != nil {
			add("platform.cross_targets", "%v", err)
		}
	}

	// Matrix

	for _, a := range c.Matrix.Allocators {
		if err := matrix.Allocator(a).Validate(); err != nil {
			add("matrix.allocators", "%v", err)
		}
	}
	for _, p := range c.Matrix.Profiles {
		if err := matrix.Profile(p).Validate(); err != nil {
			add("matrix.profiles", "%v", err)
		}
	}
	for _, t := range c.Matrix.Targets {
		if t == platform.Native || t == c.Platform.Build {
			continue
		}
		if !slices.Contains(c.Platform.CrossTargets, t) {
			add("matrix.targets", "%q is not listed in platform.cross_targets", t)
		}
	}
	if c.Matrix.Binary == "" {
		add("matrix.binary", "required")
	}
	if c.Matrix.Workers < 0 {
		add("matrix.workers", "must not be negative")
	}

	// Dependencies

	seen := make(map[string]bool)
	for i, d := range c.Dependencies {
		key := fmt.Sprintf("dependencies[%d]", i)
		if d.Name == "" {
			add(key, "name is required")
		} else if seen[d.Name] {
			add(key, "duplicate dependency %q", d.Name)
		}
		seen[d.Name] = true
		if d.EnvPrefix == "" {
			add(key, "env_prefix is required")
		}
	}

	// Image

	if c.Image.Name == "" {
		add("image.name", "required")
	}
	for i, f := range c.Image.Files {
		if f.Src == "" || !path.IsAbs(f.Dest) {
			add(fmt.Sprintf("image.files[%d]", i), "src and an absolute dest are required")
		}
	}

	// Harness

	if c.Harness.Concurrency < 1 {
		add("harness.concurrency", "must be at least 1")
	}
	if c.Harness.Grace < 0 {
		add("harness.grace", "must not be negative")
	}

	return errors.Join(errs...)
}
