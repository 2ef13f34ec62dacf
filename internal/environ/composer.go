package environ

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/cruciblehq/tessera/internal/platform"
	"github.com/cruciblehq/tessera/internal/toolchain"
)

// Variable names forwarded to build scripts that compile native code for
// the build platform.
const (
	hostCCVar  = "HOST_CC"
	hostCXXVar = "HOST_CXX"
)

// A native library the build links against.
type Dependency struct {
	Name      string            // Dependency name used in error messages (e.g., "rocksdb").
	EnvPrefix string            // Prefix of the emitted variables (e.g., "ROCKSDB").
	Roots     map[string]string // Install prefix per rustc triple; each holds include/ and lib/.
}

// Inputs to [Compose].
type Input struct {
	Roles        platform.Roles        // Build, host and target platforms.
	Toolchain    *toolchain.Toolchain  // Resolved toolchain.
	Static       bool                  // Whether a fully static binary is requested.
	Dependencies []Dependency          // Native dependencies to locate for the host triple.
	Probe        func(dir string) bool // Reports whether dir exists. Nil checks the filesystem.
}

// Computes the environment for one compilation.
//
// The result depends only on the input; calling Compose concurrently for
// different inputs is safe. Returns [ErrDependencyNotFound] when a native
// dependency or the C++ runtime directory cannot be located for the triple
// being compiled.
func Compose(in Input) (Map, error) {
	if in.Probe == nil {
		in.Probe = isDir
	}

	b := NewBuilder()
	roles := in.Roles
	tc := in.Toolchain

	// 1. Target role.
	if roles.Target != roles.Host {
		bindCompiler(b, roles.Target, tc.Compiler(roles.Target, roles.Target == roles.Build))
	}

	// 2. Host role, then build role.
	bindCompiler(b, roles.Host, tc.Compiler(roles.Host, roles.Host == roles.Build))
	b.Set("CARGO_BUILD_TARGET", roles.Host.String())

	buildCC := tc.Compiler(roles.Build, true)
	bindCompiler(b, roles.Build, buildCC)

	if roles.Host != roles.Build {
		b.Set(hostCCVar, buildCC.CC)
		b.Set(hostCXXVar, buildCC.CXX)
	}

	// 3. Static linking.
	if in.Static {
		if err := staticFlags(b, in); err != nil {
			return Map{}, err
		}
	}

	// 4. Native dependencies.
	for _, dep := range in.Dependencies {
		if err := bindDependency(b, dep, roles.Host, in.Static, in.Probe); err != nil {
			return Map{}, err
		}
	}

	return b.Build(), nil
}

// Binds the C compiler, C++ compiler and linker for one triple.
func bindCompiler(b *Builder, t platform.Triple, c toolchain.Compiler) {
	suffix := t.EnvSuffix()
	b.Set("CC_"+suffix, c.CC)
	b.Set("CXX_"+suffix, c.CXX)
	b.Set("CARGO_TARGET_"+suffix+"_LINKER", c.Linker)
}

// Adds the rustc flags for a fully static binary.
//
// Position-independent executables are disabled. The C++ runtime pulled in
// by the native dependencies is not built position independent on every
// platform, and linking it into a PIE fails. Static binaries therefore give
// up ASLR of the executable image.
func staticFlags(b *Builder, in Input) error {
	roles := in.Roles
	b.Rustflags("-C", "relocation-model=static")

	if roles.Build != roles.Host {
		b.Rustflags("-l", "c")
	}

	if needsStaticCXXRuntime(roles.Target, in.Toolchain) {
		libDir := filepath.Join(in.Toolchain.CCLib, roles.Host.String(), "lib")
		if in.Toolchain.CCLib == "" || !in.Probe(libDir) {
			return fmt.Errorf("%w: libstdc++ for %s (looked in %q)", ErrDependencyNotFound, roles.Host, libDir)
		}
		b.Rustflags("-l", "stdc++", "-L", libDir)
	}

	return nil
}

// Reports whether a static link must name the C++ runtime explicitly.
//
// Observed to be required on 64-bit ARM and x86 with GNU-family linkers and
// harmful elsewhere. The cause was never pinned down, so the rule stays
// scoped exactly to the configurations where it was observed.
// TODO: find out why the GNU linker drops libstdc++ from static musl links
// and remove this rule once the dependency closure links it by itself.
func needsStaticCXXRuntime(target platform.Triple, tc *toolchain.Toolchain) bool {
	arch := slices.Contains([]string{platform.ArchAArch64, platform.ArchX86_64}, target.Arch)
	return arch && target.Family() != platform.FamilyDarwin && !tc.Linker.IsLLVM()
}

// Emits the include and library directories of a dependency for a triple.
func bindDependency(b *Builder, dep Dependency, t platform.Triple, static bool, probe func(string) bool) error {
	root, ok := dep.Roots[t.String()]
	if !ok || root == "" {
		return fmt.Errorf("%w: %s for %s (no install prefix configured)", ErrDependencyNotFound, dep.Name, t)
	}

	include := filepath.Join(root, "include")
	lib := filepath.Join(root, "lib")
	for _, dir := range []string{include, lib} {
		if !probe(dir) {
			return fmt.Errorf("%w: %s for %s (missing %q)", ErrDependencyNotFound, dep.Name, t, dir)
		}
	}

	b.Set(dep.EnvPrefix+"_INCLUDE_DIR", include)
	b.Set(dep.EnvPrefix+"_LIB_DIR", lib)
	if static {
		b.Set(dep.EnvPrefix+"_STATIC", "1")
	}
	return nil
}

// Reports whether path is an existing directory.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
