package matrix

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/cruciblehq/tessera/internal/environ"
	"github.com/cruciblehq/tessera/internal/platform"
)

// Memory allocator linked into the binary.
type Allocator string

const (
	AllocatorDefault  Allocator = "default"  // System allocator.
	AllocatorJemalloc Allocator = "jemalloc" // jemalloc, also selected for the storage engine.
	AllocatorHardened Allocator = "hmalloc"  // GrapheneOS hardened_malloc.
)

// All allocators in matrix order.
var Allocators = []Allocator{AllocatorDefault, AllocatorJemalloc, AllocatorHardened}

// Returns the cargo features the allocator enables.
func (a Allocator) Features() []string {
	switch a {
	case AllocatorJemalloc:
		return []string{"jemalloc"}
	case AllocatorHardened:
		return []string{"hardened_malloc"}
	}
	return nil
}

// Checks that the allocator is one of [Allocators].
func (a Allocator) Validate() error {
	if !slices.Contains(Allocators, a) {
		return fmt.Errorf("%w: %q", ErrUnknownAllocator, a)
	}
	return nil
}

// Cargo build profile.
type Profile string

const (
	ProfileDev     Profile = "dev"     // Development and test builds.
	ProfileRelease Profile = "release" // Shipped artifacts.
)

// All profiles in matrix order.
var Profiles = []Profile{ProfileDev, ProfileRelease}

// Checks that the profile is one of [Profiles].
func (p Profile) Validate() error {
	if !slices.Contains(Profiles, p) {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, p)
	}
	return nil
}

// Returns the directory cargo writes the profile's artifacts to.
func (p Profile) Dir() string {
	if p == ProfileDev {
		return "debug"
	}
	return string(p)
}

// One cell of the build matrix.
type Variant struct {
	Allocator      Allocator       // Memory allocator.
	Profile        Profile         // Cargo profile.
	Target         platform.Triple // Target triple.
	Native         bool            // Whether Target is the build platform.
	Features       []string        // Sorted cargo features.
	CargoArgs      []string        // Full cargo argument list.
	ExtraCargoArgs []string        // Caller-supplied arguments appended to CargoArgs.
	Env            environ.Map     // Composed environment.
	Err            error           // Set when the environment could not be composed.
}

// Returns the public output name, "<allocator>" for the native target and
// "<allocator>-<triple>" otherwise.
func (v Variant) Name() string {
	if v.Native {
		return string(v.Allocator)
	}
	return fmt.Sprintf("%s-%s", v.Allocator, v.Target)
}

// Returns a key unique across the whole matrix, "<profile>/<name>".
func (v Variant) Key() string {
	return fmt.Sprintf("%s/%s", v.Profile, v.Name())
}

// Returns the path of the compiled binary inside the cargo target directory.
func (v Variant) ArtifactPath(targetDir, binary string) string {
	return filepath.Join(targetDir, v.Target.String(), v.Profile.Dir(), binary)
}
