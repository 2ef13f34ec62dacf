package image

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"time"

	"github.com/cruciblehq/tessera/internal/platform"
)

const (

	// Location of the init process inside the image.
	InitPath = "/sbin/tini"

	// Location of the CA certificate bundle inside the image.
	CABundlePath = "/etc/ssl/certs/ca-certificates.crt"

	// Directory the server binary is installed to.
	BinDir = "/usr/local/bin"

	// Variable pointing TLS clients at the CA bundle.
	CertFileVar = "SSL_CERT_FILE"

	// Variable the server reads its configuration path from.
	ConfigVar = "CONDUIT_CONFIG"

	// Tag used when the spec names none.
	DefaultTag = "latest"
)

// Ports the server listens on: client-server API and federation.
var DefaultPorts = []string{"8008/tcp", "8448/tcp"}

// File copied from the host into the image.
type File struct {
	Src  string      // Host path.
	Dest string      // Absolute path inside the image.
	Mode os.FileMode // Permission bits. Zero uses 0644.
}

// Describes an image to package.
type Spec struct {
	Name     string            // Repository name (e.g., "conduit").
	Tag      string            // Tag. Empty uses [DefaultTag].
	Binary   string            // Host path of the compiled server binary.
	Platform platform.Triple   // Triple the binary was built for.
	Init     string            // Host path of a static tini binary.
	CABundle string            // Host path of the CA certificate bundle.
	Files    []File            // Additional files, such as the server configuration.
	Config   string            // Image path of the server configuration. Sets [ConfigVar] when non-empty.
	Env      map[string]string // Extra environment variables.
	Ports    []string          // Exposed ports. Nil uses [DefaultPorts].
	Labels   map[string]string // Image config labels.
	Epoch    time.Time         // Timestamp of every entry. Must not be zero.
}

// Returns the image reference, "<name>:<tag>".
func (s Spec) Ref() string {
	tag := s.Tag
	if tag == "" {
		tag = DefaultTag
	}
	return s.Name + ":" + tag
}

// Returns the binary's name inside the image.
func (s Spec) binaryName() string {
	return path.Base(s.Binary)
}

// Returns the absolute path of the binary inside the image.
func (s Spec) binaryPath() string {
	return path.Join(BinDir, s.binaryName())
}

// Returns the entrypoint: init, then the binary.
func (s Spec) Entrypoint() []string {
	return []string{InitPath, "--", s.binaryPath()}
}

// Returns the config environment as sorted KEY=value pairs.
func (s Spec) environ() []string {
	vars := map[string]string{
		"PATH":      BinDir + ":/usr/bin:/bin",
		CertFileVar: CABundlePath,
	}
	if s.Config != "" {
		vars[ConfigVar] = s.Config
	}
	for k, v := range s.Env {
		vars[k] = v
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	slices.Sort(env)
	return env
}

// Returns the exposed ports.
func (s Spec) ports() []string {
	if s.Ports == nil {
		return DefaultPorts
	}
	return s.Ports
}

// Checks that every host input exists and the epoch is set.
//
// The binary is checked first: one that is missing, not a regular file, or
// not executable yields [ErrArtifactMissing] naming the path whatever else
// is wrong with the spec.
func (s Spec) Validate() error {
	if err := CheckBinary(s.Binary); err != nil {
		return err
	}
	if s.Name == "" {
		return fmt.Errorf("%w: image name", ErrInputMissing)
	}
	if s.Epoch.IsZero() {
		return ErrNoSourceEpoch
	}
	for _, p := range []string{s.Init, s.CABundle} {
		if err := checkRegular(p); err != nil {
			return err
		}
	}
	for _, f := range s.Files {
		if !path.IsAbs(f.Dest) {
			return fmt.Errorf("%w: %s: destination must be absolute", ErrInvalidFile, f.Dest)
		}
		if err := checkRegular(f.Src); err != nil {
			return err
		}
	}
	return nil
}

// Checks that p names an executable regular file. Failures wrap
// [ErrArtifactMissing].
func CheckBinary(p string) error {
	if p == "" {
		return fmt.Errorf("%w: no binary given", ErrArtifactMissing)
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrArtifactMissing, p)
		}
		return fmt.Errorf("%w: %s: %w", ErrArtifactMissing, p, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrArtifactMissing, p)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s is not executable", ErrArtifactMissing, p)
	}
	return nil
}

// Checks that p names a regular file.
func checkRegular(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty path", ErrInputMissing)
	}
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInputMissing, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInputMissing, p)
	}
	return nil
}
