package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/tessera/internal/environ"
	"github.com/cruciblehq/tessera/internal/platform"
	"github.com/cruciblehq/tessera/internal/toolchain"
)

var (
	buildTriple = platform.MustParse("x86_64-unknown-linux-gnu")
	muslX86     = platform.MustParse("x86_64-unknown-linux-musl")
	muslArm     = platform.MustParse("aarch64-unknown-linux-musl")
)

func newGenerator() *Generator {
	roots := map[string]string{
		buildTriple.String(): "/deps/rocksdb/gnu",
		muslX86.String():     "/deps/rocksdb/x86",
		muslArm.String():     "/deps/rocksdb/arm",
	}
	jemalloc := map[string]string{
		buildTriple.String(): "/deps/rocksdb-jemalloc/gnu",
		muslX86.String():     "/deps/rocksdb-jemalloc/x86",
		muslArm.String():     "/deps/rocksdb-jemalloc/arm",
	}
	return &Generator{
		Build:     buildTriple,
		Toolchain: &toolchain.Toolchain{Linker: toolchain.LinkerGNU, CCLib: "/opt/gcc"},
		Dependencies: []NativeDependency{{
			Dependency:    environ.Dependency{Name: "rocksdb", EnvPrefix: "ROCKSDB", Roots: roots},
			JemallocRoots: jemalloc,
		}},
		BaseFeatures: []string{"brotli_compression", "element_hacks"},
		CrossTargets: []platform.Triple{muslX86, muslArm},
		Probe:        func(string) bool { return true },
	}
}

func TestGenerateFullCrossProduct(t *testing.T) {
	g := newGenerator()
	variants, err := g.Generate(Selection{
		Allocators: []Allocator{AllocatorDefault, AllocatorJemalloc, AllocatorHardened},
		Profiles:   []Profile{ProfileDev, ProfileRelease},
		Targets:    []string{muslX86.String(), muslArm.String()},
	})
	require.NoError(t, err)
	require.Len(t, variants, 12)

	keys := make(map[string]bool)
	for _, v := range variants {
		require.NoError(t, v.Err)
		assert.False(t, keys[v.Key()], "duplicate variant %s", v.Key())
		keys[v.Key()] = true
	}
	assert.Len(t, keys, 12)
}

func TestGenerateDefaults(t *testing.T) {
	variants, err := newGenerator().Generate(Selection{})
	require.NoError(t, err)
	require.Len(t, variants, 6)
	for _, v := range variants {
		assert.True(t, v.Native)
		assert.Equal(t, string(v.Allocator), v.Name())
	}
}

func TestGenerateOrderAndDedup(t *testing.T) {
	variants, err := newGenerator().Generate(Selection{
		Allocators: []Allocator{AllocatorHardened, AllocatorDefault, AllocatorHardened},
		Profiles:   []Profile{ProfileRelease},
		Targets:    []string{muslArm.String(), platform.Native},
	})
	require.NoError(t, err)

	var got []string
	for _, v := range variants {
		got = append(got, v.Key())
	}
	assert.Equal(t, []string{
		"release/default",
		"release/default-aarch64-unknown-linux-musl",
		"release/hmalloc",
		"release/hmalloc-aarch64-unknown-linux-musl",
	}, got)
}

func TestGenerateDeterministic(t *testing.T) {
	sel := Selection{Targets: []string{platform.Native, muslX86.String(), muslArm.String()}}

	a, err := newGenerator().Generate(sel)
	require.NoError(t, err)
	b, err := newGenerator().Generate(sel)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Key(), b[i].Key())
		assert.Equal(t, a[i].Features, b[i].Features)
		assert.Equal(t, a[i].CargoArgs, b[i].CargoArgs)
		assert.Equal(t, a[i].Env.Environ(), b[i].Env.Environ())
	}
}

func TestJemallocSelectsJemallocStorageEngine(t *testing.T) {
	variants, err := newGenerator().Generate(Selection{
		Allocators: []Allocator{AllocatorDefault, AllocatorJemalloc},
		Profiles:   []Profile{ProfileRelease},
		Targets:    []string{muslX86.String()},
	})
	require.NoError(t, err)
	require.Len(t, variants, 2)

	def, jem := variants[0], variants[1]
	assert.Equal(t, "/deps/rocksdb/x86/include", def.Env.Value("ROCKSDB_INCLUDE_DIR"))
	assert.Equal(t, "/deps/rocksdb-jemalloc/x86/include", jem.Env.Value("ROCKSDB_INCLUDE_DIR"))
	assert.Equal(t, "1", jem.Env.Value("ROCKSDB_STATIC"))

	assert.Equal(t, []string{"brotli_compression", "element_hacks"}, def.Features)
	assert.Equal(t, []string{"brotli_compression", "element_hacks", "jemalloc"}, jem.Features)
	assert.Equal(t, []string{
		"build", "--locked",
		"--profile", "release",
		"--target", "x86_64-unknown-linux-musl",
		"--no-default-features",
		"--features", "brotli_compression,element_hacks,jemalloc",
	}, jem.CargoArgs)
}

func TestGenerateCellErrorIsIsolated(t *testing.T) {
	g := newGenerator()
	delete(g.Dependencies[0].Roots, muslArm.String())

	variants, err := g.Generate(Selection{
		Allocators: []Allocator{AllocatorDefault},
		Profiles:   []Profile{ProfileDev},
		Targets:    []string{muslX86.String(), muslArm.String()},
	})
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.NoError(t, variants[0].Err)
	assert.ErrorIs(t, variants[1].Err, environ.ErrDependencyNotFound)
	assert.Contains(t, variants[1].Err.Error(), "dev/default-aarch64-unknown-linux-musl")
}

func TestGenerateRejectsUnknownCells(t *testing.T) {
	g := newGenerator()

	_, err := g.Generate(Selection{Allocators: []Allocator{"tcmalloc"}})
	assert.ErrorIs(t, err, ErrUnknownAllocator)

	_, err = g.Generate(Selection{Profiles: []Profile{"bench"}})
	assert.ErrorIs(t, err, ErrUnknownProfile)

	_, err = g.Generate(Selection{Targets: []string{"riscv64gc-unknown-linux-musl"}})
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestGenerateValidatesFeatures(t *testing.T) {
	g := newGenerator()
	g.Catalogue = NewCatalogue("brotli_compression", "element_hacks", "jemalloc")

	variants, err := g.Generate(Selection{Profiles: []Profile{ProfileRelease}})
	require.NoError(t, err)
	require.Len(t, variants, 3)

	for _, v := range variants {
		if v.Allocator == AllocatorHardened {
			require.ErrorIs(t, v.Err, ErrUnknownFeature)
			assert.Contains(t, v.Err.Error(), v.Key())
			continue
		}
		assert.NoError(t, v.Err, v.Key())
		assert.NotZero(t, v.Env.Len(), v.Key())
	}
}

func TestArtifactPath(t *testing.T) {
	v := Variant{Profile: ProfileDev, Target: muslArm}
	assert.Equal(t, "target/aarch64-unknown-linux-musl/debug/conduit", v.ArtifactPath("target", "conduit"))
	v.Profile = ProfileRelease
	assert.Equal(t, "target/aarch64-unknown-linux-musl/release/conduit", v.ArtifactPath("target", "conduit"))
}
