package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/tessera/internal/archive"
	"github.com/cruciblehq/tessera/internal/environ"
	"github.com/cruciblehq/tessera/internal/image"
	"github.com/cruciblehq/tessera/internal/matrix"
	"github.com/cruciblehq/tessera/internal/platform"
	"github.com/cruciblehq/tessera/internal/registry"
	"github.com/cruciblehq/tessera/internal/runtime"
	"github.com/cruciblehq/tessera/internal/toolchain"
)

// Returns the declared toolchain identity.
//
// The version comes from toolchain.version, the channel file, or both. When
// both declare a version they must agree.
func (c *Config) ToolchainSpec() (toolchain.Spec, error) {
	version := c.Toolchain.Version

	if c.Toolchain.ChannelFile != "" {
		path := c.Path(c.Toolchain.ChannelFile)
		channel, err := toolchain.LoadChannel(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && version != "":
		case err != nil:
			return toolchain.Spec{}, err
		case version == "":
			version = channel
		case channel != version:
			return toolchain.Spec{}, fmt.Errorf("%w: toolchain.version %s, %s pins %s", toolchain.ErrToolchainMismatch, version, path, channel)
		}
	}

	if version == "" {
		return toolchain.Spec{}, fmt.Errorf("%w: toolchain: neither version nor channel_file set", ErrInvalidConfig)
	}
	return toolchain.Spec{Version: version, Hash: digest.Digest(c.Toolchain.Hash)}, nil
}

// Returns the options for [toolchain.Resolve].
func (c *Config) ToolchainOptions() toolchain.Options {
	source := c.Toolchain.Source
	if !strings.Contains(source, "://") {
		source = c.Path(source)
	}
	return toolchain.Options{
		Source:    source,
		Linker:    c.Toolchain.Linker,
		CCLib:     c.Toolchain.CCLib,
		Compilers: c.Toolchain.Compilers,
	}
}

// Returns the build triple, detecting it when not configured.
func (c *Config) BuildTriple() (platform.Triple, error) {
	if c.Platform.Build == "" {
		return platform.Default(), nil
	}
	return platform.Parse(c.Platform.Build)
}

// Returns a matrix generator over the resolved toolchain. A nil catalogue
// disables feature validation.
func (c *Config) Generator(tc *toolchain.Toolchain, catalogue *matrix.Catalogue) (*matrix.Generator, error) {
	build, err := c.BuildTriple()
	if err != nil {
		return nil, err
	}

	var cross []platform.Triple
	for _, s := range c.Platform.CrossTargets {
		t, err := platform.Parse(s)
		if err != nil {
			return nil, err
		}
		cross = append(cross, t)
	}

	var deps []matrix.NativeDependency
	for _, d := range c.Dependencies {
		deps = append(deps, matrix.NativeDependency{
			Dependency: environ.Dependency{
				Name:      d.Name,
				EnvPrefix: d.EnvPrefix,
				Roots:     c.paths(d.Roots),
			},
			JemallocRoots: c.paths(d.JemallocRoots),
		})
	}

	return &matrix.Generator{
		Build:          build,
		Toolchain:      tc,
		Dependencies:   deps,
		BaseFeatures:   c.Matrix.Features,
		ExtraCargoArgs: c.Matrix.ExtraCargoArgs,
		CrossTargets:   cross,
		Catalogue:      catalogue,
	}, nil
}

// Resolves every value of a path map.
func (c *Config) paths(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = c.Path(v)
	}
	return out
}

// Returns the selection, preferring the given overrides over the configured
// defaults for each dimension.
func (c *Config) Selection(allocators, profiles, targets []string) matrix.Selection {
	pick := func(override, def []string) []string {
		if len(override) > 0 {
			return override
		}
		return def
	}

	var sel matrix.Selection
	for _, a := range pick(allocators, c.Matrix.Allocators) {
		sel.Allocators = append(sel.Allocators, matrix.Allocator(a))
	}
	for _, p := range pick(profiles, c.Matrix.Profiles) {
		sel.Profiles = append(sel.Profiles, matrix.Profile(p))
	}
	sel.Targets = pick(targets, c.Matrix.Targets)
	return sel
}

// Returns the image spec for a built binary.
func (c *Config) ImageSpec(binary string, target platform.Triple, tag string, epoch time.Time) image.Spec {
	var files []image.File
	for _, f := range c.Image.Files {
		files = append(files, image.File{Src: c.Path(f.Src), Dest: f.Dest, Mode: os.FileMode(f.Mode)})
	}
	return image.Spec{
		Name:     c.Image.Name,
		Tag:      tag,
		Binary:   binary,
		Platform: target,
		Init:     c.Path(c.Image.Init),
		CABundle: c.Path(c.Image.CABundle),
		Files:    files,
		Config:   c.Image.Config,
		Env:      c.Image.Env,
		Ports:    c.Image.Ports,
		Epoch:    epoch,
	}
}

// Returns the preflight options, or nil when preflight is disabled.
func (c *Config) PreflightOptions() *runtime.PreflightOptions {
	if !c.Harness.Preflight.Enabled {
		return nil
	}
	return &runtime.PreflightOptions{
		Ports:  c.Harness.Preflight.Ports,
		Settle: c.Harness.Preflight.Settle,
		Probe:  c.Harness.Preflight.Probe,
	}
}

// Returns the registry access options, reading the password from the
// configured variable.
func (c *Config) RegistryOptions() registry.Options {
	opts := registry.Options{
		Username:  c.Registry.Username,
		PlainHTTP: c.Registry.PlainHTTP,
	}
	if c.Registry.PasswordEnv != "" {
		opts.Password = os.Getenv(c.Registry.PasswordEnv)
	}
	return opts
}

// Returns the object store settings, reading keys from the configured
// variables.
func (c *Config) ArchiveSettings() archive.Config {
	return archive.Config{
		Endpoint:  c.Archive.Endpoint,
		Bucket:    c.Archive.Bucket,
		Region:    c.Archive.Region,
		Prefix:    c.Archive.Prefix,
		AccessKey: os.Getenv(c.Archive.AccessKeyEnv),
		SecretKey: os.Getenv(c.Archive.SecretKeyEnv),
		Secure:    c.Archive.Secure,
	}
}
