package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cruciblehq/tessera/internal/paths"
	"github.com/cruciblehq/tessera/internal/toolchain"
)

// Top-level configuration.
type Config struct {
	Toolchain    ToolchainConfig    `yaml:"toolchain"`
	Platform     PlatformConfig     `yaml:"platform"`
	Matrix       MatrixConfig       `yaml:"matrix"`
	Dependencies []DependencyConfig `yaml:"dependencies"`
	Image        ImageConfig        `yaml:"image"`
	Harness      HarnessConfig      `yaml:"harness"`
	Registry     RegistryConfig     `yaml:"registry"`
	Archive      ArchiveConfig      `yaml:"archive"`

	dir string // Directory relative paths are resolved against.
}

// Pinned compiler toolchain.
type ToolchainConfig struct {
	Version     string                        `yaml:"version"`      // Explicit version. Must agree with the channel file.
	ChannelFile string                        `yaml:"channel_file"` // rust-toolchain.toml pinning the channel.
	Hash        string                        `yaml:"hash"`         // Digest of the distribution archive.
	Source      string                        `yaml:"source"`       // Archive path or URL.
	Linker      toolchain.LinkerKind          `yaml:"linker"`       // Linker family.
	CCLib       string                        `yaml:"cc_lib"`       // Root of the C++ runtime libraries.
	Compilers   map[string]toolchain.Compiler `yaml:"compilers"`    // Per-triple C toolchain overrides.
}

// Platforms taking part in builds.
type PlatformConfig struct {
	Build        string   `yaml:"build"`         // Build triple. Empty detects the running platform.
	CrossTargets []string `yaml:"cross_targets"` // Cross targets that may be selected.
}

// Build matrix and cargo invocation.
type MatrixConfig struct {
	Allocators     []string `yaml:"allocators"`       // Default allocator selection.
	Profiles       []string `yaml:"profiles"`         // Default profile selection.
	Targets        []string `yaml:"targets"`          // Default target selection.
	Features       []string `yaml:"features"`         // Features enabled in every variant.
	ExtraCargoArgs []string `yaml:"extra_cargo_args"` // Appended to every cargo invocation.
	Workspace      string   `yaml:"workspace"`        // Cargo workspace root.
	Binary         string   `yaml:"binary"`           // Name of the produced binary.
	Output         string   `yaml:"output"`           // Artifact directory.
	Workers        int      `yaml:"workers"`          // Parallel jobs. Zero uses the CPU count.
	Cargo          string   `yaml:"cargo"`            // Cargo executable.
}

// Native library the server links against.
type DependencyConfig struct {
	Name          string            `yaml:"name"`           // Library name.
	EnvPrefix     string            `yaml:"env_prefix"`     // Variable prefix (e.g., "ROCKSDB").
	Roots         map[string]string `yaml:"roots"`          // Install prefixes keyed by triple.
	JemallocRoots map[string]string `yaml:"jemalloc_roots"` // Prefixes of the jemalloc build keyed by triple.
}

// Image packaging.
type ImageConfig struct {
	Name     string            `yaml:"name"`      // Repository name.
	Init     string            `yaml:"init"`      // Host path of a static tini.
	CABundle string            `yaml:"ca_bundle"` // Host path of the CA bundle.
	Files    []FileConfig      `yaml:"files"`     // Embedded files.
	Config   string            `yaml:"config"`    // Image path of the server configuration.
	Env      map[string]string `yaml:"env"`       // Extra image environment.
	Ports    []string          `yaml:"ports"`     // Exposed ports.
}

// File embedded into the image.
type FileConfig struct {
	Src  string `yaml:"src"`  // Host path.
	Dest string `yaml:"dest"` // Image path.
	Mode uint32 `yaml:"mode"` // Permission bits.
}

// Conformance harness.
type HarnessConfig struct {
	Suite       []string         `yaml:"suite"`       // Suite command line.
	Dir         string           `yaml:"dir"`         // Suite working directory.
	Env         []string         `yaml:"env"`         // Extra suite environment.
	Concurrency int              `yaml:"concurrency"` // Simultaneous runs.
	Grace       time.Duration    `yaml:"grace"`       // Interrupt to kill delay on cancellation.
	Output      string           `yaml:"output"`      // Results directory. Empty uses the state directory.
	Containerd  ContainerdConfig `yaml:"containerd"`  // Container runtime.
	Preflight   PreflightConfig  `yaml:"preflight"`   // Image check before the suite.
}

// Containerd connection.
type ContainerdConfig struct {
	Address   string `yaml:"address"`   // Socket path.
	Namespace string `yaml:"namespace"` // Containerd namespace.
	Platform  string `yaml:"platform"`  // Unpack platform. Empty uses the host's.
}

// Preflight check.
type PreflightConfig struct {
	Enabled bool          `yaml:"enabled"` // Run the check.
	Ports   []string      `yaml:"ports"`   // Ports the image must expose.
	Settle  time.Duration `yaml:"settle"`  // Time the container must stay running.
	Probe   []string      `yaml:"probe"`   // Command run in the container.
}

// Registry publishing.
type RegistryConfig struct {
	Repository  string `yaml:"repository"`   // Destination repository, without tag.
	Username    string `yaml:"username"`     // Static username. Empty uses Docker credentials.
	PasswordEnv string `yaml:"password_env"` // Variable holding the password or token.
	PlainHTTP   bool   `yaml:"plain_http"`   // Use plain HTTP.
}

// Artifact archival.
type ArchiveConfig struct {
	Endpoint     string `yaml:"endpoint"`       // Object store host[:port].
	Bucket       string `yaml:"bucket"`         // Destination bucket.
	Region       string `yaml:"region"`         // Bucket region.
	Prefix       string `yaml:"prefix"`         // Key prefix.
	AccessKeyEnv string `yaml:"access_key_env"` // Variable holding the access key.
	SecretKeyEnv string `yaml:"secret_key_env"` // Variable holding the secret key.
	Secure       bool   `yaml:"secure"`         // Use TLS.
}

// Returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Toolchain: ToolchainConfig{
			ChannelFile: "rust-toolchain.toml",
			Linker:      toolchain.LinkerGNU,
		},
		Platform: PlatformConfig{
			CrossTargets: []string{"x86_64-unknown-linux-musl", "aarch64-unknown-linux-musl"},
		},
		Matrix: MatrixConfig{
			Workspace: ".",
			Binary:    "conduit",
			Output:    "dist",
			Cargo:     "cargo",
		},
		Image: ImageConfig{
			Name:     "conduit",
			Init:     "/usr/bin/tini-static",
			CABundle: "/etc/ssl/certs/ca-certificates.crt",
		},
		Harness: HarnessConfig{
			Concurrency: 1,
			Grace:       10 * time.Second,
			Containerd: ContainerdConfig{
				Address:   "/run/containerd/containerd.sock",
				Namespace: "tessera",
			},
			Preflight: PreflightConfig{
				Ports:  []string{"8008/tcp", "8448/tcp"},
				Settle: 2 * time.Second,
			},
		},
		Archive: ArchiveConfig{
			AccessKeyEnv: "TESSERA_ARCHIVE_ACCESS_KEY",
			SecretKeyEnv: "TESSERA_ARCHIVE_SECRET_KEY",
			Secure:       true,
		},
		dir: ".",
	}
}

// Reads and validates the configuration.
//
// An explicit path must exist. With an empty path, tessera.yaml in the
// working directory is tried first, then the user configuration; when
// neither exists the defaults are returned. Values in the file override
// the defaults field by field.
func Load(path string) (*Config, error) {
	explicit := path != ""
	candidates := []string{path}
	if !explicit {
		candidates = []string{paths.ConfigFile, paths.UserConfig()}
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && !explicit {
				continue
			}
			return nil, fmt.Errorf("%w: %w", ErrReadConfig, err)
		}

		cfg, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		cfg.dir = filepath.Dir(p)
		return cfg, nil
	}

	return Default(), nil
}

// Decodes and validates configuration data over the defaults.
//
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolves a configured path against the configuration file's directory.
// Absolute and empty paths are returned unchanged.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}
