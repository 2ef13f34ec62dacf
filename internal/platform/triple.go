package platform

import (
	"fmt"
	goruntime "runtime"
	"slices"
	"strings"

	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (

	// Keyword accepted in place of a triple to mean the build platform.
	Native = "native"

	// Vendor component used by Apple triples.
	vendorApple = "apple"

	// Platform family excluded from the static C++ runtime link rule.
	FamilyDarwin = "darwin"
)

// Architectures that need the explicit C++ runtime when linked statically.
const (
	ArchX86_64  = "x86_64"
	ArchAArch64 = "aarch64"
)

// Operating system components rustc knows.
var knownOS = []string{
	"android", "darwin", "dragonfly", "freebsd", "fuchsia", "hermit", "illumos",
	"ios", "linux", "netbsd", "none", "openbsd", "redox", "solaris", "uefi",
	"unknown", "wasi", "windows",
}

// A rustc target triple.
//
// Vendor may be "unknown" and ABI may be empty (e.g. "aarch64-apple-darwin").
type Triple struct {
	Arch   string // CPU architecture (e.g., "x86_64").
	Vendor string // Vendor (e.g., "unknown", "apple").
	OS     string // Operating system (e.g., "linux").
	ABI    string // ABI or libc (e.g., "gnu", "musl"). Empty when absent.
}

// Parses a rustc target triple.
//
// Both the four-component form ("x86_64-unknown-linux-musl") and the
// three-component form ("aarch64-apple-darwin") are accepted. Components are
// lowercased. The operating system must be one rustc knows.
func Parse(s string) (Triple, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "-")
	for _, p := range parts {
		if p == "" {
			return Triple{}, fmt.Errorf("%w: %q", ErrInvalidTriple, s)
		}
	}

	var t Triple
	switch len(parts) {
	case 3:
		t = Triple{Arch: parts[0], Vendor: parts[1], OS: parts[2]}
	case 4:
		t = Triple{Arch: parts[0], Vendor: parts[1], OS: parts[2], ABI: parts[3]}
	default:
		return Triple{}, fmt.Errorf("%w: %q", ErrInvalidTriple, s)
	}

	if !slices.Contains(knownOS, t.OS) {
		return Triple{}, fmt.Errorf("%w: %q: unknown operating system %q", ErrInvalidTriple, s, t.OS)
	}
	return t, nil
}

// Like [Parse] but panics on error. Intended for constants.
func MustParse(s string) Triple {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Returns the triple of the machine running this process.
//
// Linux hosts are reported with the gnu ABI, which is what a native cargo
// toolchain targets by default.
func Default() Triple {
	arch := map[string]string{
		"amd64":   ArchX86_64,
		"arm64":   ArchAArch64,
		"riscv64": "riscv64gc",
		"386":     "i686",
	}[goruntime.GOARCH]
	if arch == "" {
		arch = goruntime.GOARCH
	}

	if goruntime.GOOS == FamilyDarwin {
		return Triple{Arch: arch, Vendor: vendorApple, OS: FamilyDarwin}
	}
	return Triple{Arch: arch, Vendor: "unknown", OS: goruntime.GOOS, ABI: "gnu"}
}

// Returns the rustc form of the triple.
func (t Triple) String() string {
	if t.ABI == "" {
		return strings.Join([]string{t.Arch, t.Vendor, t.OS}, "-")
	}
	return strings.Join([]string{t.Arch, t.Vendor, t.OS, t.ABI}, "-")
}

// Returns the canonical suffix cargo uses for per-target variables.
//
// The triple is uppercased and dashes become underscores, so
// "x86_64-unknown-linux-musl" yields "X86_64_UNKNOWN_LINUX_MUSL". Distinct
// triples never share a suffix, which lets several of them coexist in one
// environment.
func (t Triple) EnvSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(t.String(), "-", "_"))
}

// Returns the lowercase form cargo uses in "CC_<triple>" lookups.
func (t Triple) EnvSuffixLower() string {
	return strings.ReplaceAll(t.String(), "-", "_")
}

// Reports whether binaries for this triple are linked fully statically.
func (t Triple) Static() bool {
	return strings.HasPrefix(t.ABI, "musl")
}

// Returns the platform family used by the link rules.
func (t Triple) Family() string {
	if t.Vendor == vendorApple || t.OS == FamilyDarwin {
		return FamilyDarwin
	}
	return t.OS
}

// Reports whether the triple is the zero value.
func (t Triple) IsZero() bool {
	return t == Triple{}
}

// Returns the OCI platform a binary for this triple runs on.
//
// Only Linux triples can be packaged into images.
func (t Triple) OCIPlatform() (ocispec.Platform, error) {
	if t.OS != "linux" {
		return ocispec.Platform{}, fmt.Errorf("%w: %s has no linux image platform", ErrUnsupportedPlatform, t)
	}

	var p ocispec.Platform
	switch {
	case t.Arch == ArchX86_64:
		p = ocispec.Platform{OS: "linux", Architecture: "amd64"}
	case t.Arch == ArchAArch64:
		p = ocispec.Platform{OS: "linux", Architecture: "arm64"}
	case strings.HasPrefix(t.Arch, "armv7"):
		p = ocispec.Platform{OS: "linux", Architecture: "arm", Variant: "v7"}
	case strings.HasPrefix(t.Arch, "riscv64"):
		p = ocispec.Platform{OS: "linux", Architecture: "riscv64"}
	case t.Arch == "i686":
		p = ocispec.Platform{OS: "linux", Architecture: "386"}
	default:
		return ocispec.Platform{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, t)
	}

	return platforms.Normalize(p), nil
}

// Returns the OCI platform as a "os/arch[/variant]" string.
func (t Triple) OCIPlatformString() (string, error) {
	p, err := t.OCIPlatform()
	if err != nil {
		return "", err
	}
	return platforms.Format(p), nil
}
