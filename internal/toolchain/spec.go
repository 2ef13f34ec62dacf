package toolchain

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/opencontainers/go-digest"
)

// Matches release channels, optionally pinned to a date.
var channelRe = regexp.MustCompile(`^(stable|beta|nightly)(-\d{4}-\d{2}-\d{2})?$`)

// Declared toolchain identity.
type Spec struct {
	Version string        // Semantic version ("1.86.0") or dated channel ("nightly-2025-03-01").
	Hash    digest.Digest // Digest of the distribution archive (e.g., "sha256:...").
}

// Checks that the version and digest are well formed.
//
// Undated channels are rejected because they do not identify one toolchain.
func (s Spec) Validate() error {
	if s.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidSpec)
	}
	if _, err := semver.StrictNewVersion(s.Version); err != nil {
		m := channelRe.FindStringSubmatch(s.Version)
		if m == nil {
			return fmt.Errorf("%w: version %q is neither semver nor a channel", ErrInvalidSpec, s.Version)
		}
		if m[2] == "" {
			return fmt.Errorf("%w: channel %q must be pinned to a date", ErrInvalidSpec, s.Version)
		}
	}
	if err := s.Hash.Validate(); err != nil {
		return fmt.Errorf("%w: hash %q: %w", ErrInvalidSpec, s.Hash, err)
	}
	return nil
}

// Returns "<version>@<digest>".
func (s Spec) String() string {
	return fmt.Sprintf("%s@%s", s.Version, s.Hash)
}
