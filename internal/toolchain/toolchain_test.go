package toolchain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/tessera/internal/platform"
)

// Writes a fake toolchain archive and returns its path and digest.
func writeArchive(t *testing.T, content string) (string, digest.Digest) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "rust-1.86.0.tar.xz")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p, digest.FromString(content)
}

func TestResolveLocal(t *testing.T) {
	archive, dgst := writeArchive(t, "toolchain bits")

	tc, err := Resolve(context.Background(), Spec{Version: "1.86.0", Hash: dgst}, Options{
		Source: archive,
		Linker: LinkerGNU,
	})
	require.NoError(t, err)
	assert.Equal(t, archive, tc.Archive)
	assert.Equal(t, dgst, tc.Spec.Hash)
	assert.Equal(t, LinkerGNU, tc.Linker)
}

func TestResolveMismatch(t *testing.T) {
	archive, _ := writeArchive(t, "toolchain bits")
	declared := digest.FromString("something else")

	tc, err := Resolve(context.Background(), Spec{Version: "1.86.0", Hash: declared}, Options{Source: archive})
	require.ErrorIs(t, err, ErrToolchainMismatch)
	assert.Nil(t, tc)
	assert.Contains(t, err.Error(), "1.86.0")
	assert.Contains(t, err.Error(), declared.String())
}

func TestResolveMissingArchive(t *testing.T) {
	_, err := Resolve(context.Background(), Spec{Version: "1.86.0", Hash: digest.FromString("x")}, Options{
		Source: filepath.Join(t.TempDir(), "absent.tar.xz"),
	})
	require.ErrorIs(t, err, ErrToolchainUnavailable)
}

func TestResolveDownloadsAndCaches(t *testing.T) {
	content := "remote toolchain"
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(content))
	}))
	defer srv.Close()

	spec := Spec{Version: "nightly-2025-03-01", Hash: digest.FromString(content)}
	opts := Options{
		Source:   srv.URL + "/dist/rust-nightly.tar.xz",
		CacheDir: t.TempDir(),
		Client:   srv.Client(),
	}

	tc, err := Resolve(context.Background(), spec, opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(opts.CacheDir, "nightly-2025-03-01", spec.Hash.Encoded(), "rust-nightly.tar.xz"), tc.Archive)

	_, err = Resolve(context.Background(), spec, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "cached archive should not be downloaded again")
}

func TestResolveRefetchesWhenDigestChanges(t *testing.T) {
	var content atomic.Value
	content.Store("first upload")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(content.Load().(string)))
	}))
	defer srv.Close()

	opts := Options{
		Source:   srv.URL + "/dist/rust-1.86.0.tar.xz",
		CacheDir: t.TempDir(),
		Client:   srv.Client(),
	}

	_, err := Resolve(context.Background(), Spec{Version: "1.86.0", Hash: digest.FromString("first upload")}, opts)
	require.NoError(t, err)

	// The archive was republished under the same version and URL.
	content.Store("second upload")
	tc, err := Resolve(context.Background(), Spec{Version: "1.86.0", Hash: digest.FromString("second upload")}, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, digest.FromString("second upload"), tc.Spec.Hash)
}

func TestResolveDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := Resolve(context.Background(), Spec{Version: "1.86.0", Hash: digest.FromString("x")}, Options{
		Source:   srv.URL + "/missing.tar.xz",
		CacheDir: t.TempDir(),
		Client:   srv.Client(),
	})
	require.ErrorIs(t, err, ErrToolchainUnavailable)
}

func TestSpecValidate(t *testing.T) {
	h := digest.FromString("x")
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"semver", Spec{Version: "1.86.0", Hash: h}, false},
		{"dated nightly", Spec{Version: "nightly-2025-03-01", Hash: h}, false},
		{"undated channel", Spec{Version: "stable", Hash: h}, true},
		{"garbage version", Spec{Version: "latest-and-greatest", Hash: h}, true},
		{"empty version", Spec{Hash: h}, true},
		{"bad digest", Spec{Version: "1.86.0", Hash: "sha256:nothex"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSpec)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLinkerKind(t *testing.T) {
	assert.True(t, LinkerLLD.IsLLVM())
	assert.True(t, LinkerKind("ld.lld").IsLLVM())
	assert.False(t, LinkerGNU.IsLLVM())
	assert.False(t, LinkerMold.IsLLVM())
}

func TestCompilerDefaults(t *testing.T) {
	tc := &Toolchain{Compilers: map[string]Compiler{
		"aarch64-unknown-linux-musl": {CC: "/opt/cross/bin/aarch64-cc"},
	}}

	native := tc.Compiler(platform.MustParse("x86_64-unknown-linux-gnu"), true)
	assert.Equal(t, Compiler{CC: "cc", CXX: "c++", Linker: "cc"}, native)

	cross := tc.Compiler(platform.MustParse("aarch64-unknown-linux-musl"), false)
	assert.Equal(t, "/opt/cross/bin/aarch64-cc", cross.CC)
	assert.Equal(t, "aarch64-unknown-linux-musl-g++", cross.CXX)
	assert.Equal(t, "/opt/cross/bin/aarch64-cc", cross.Linker)
}

func TestLoadChannel(t *testing.T) {
	dir := t.TempDir()

	toml := filepath.Join(dir, "rust-toolchain.toml")
	require.NoError(t, os.WriteFile(toml, []byte("[toolchain]\nchannel = \"1.86.0\"\ncomponents = [\"clippy\"]\n"), 0o644))
	ch, err := LoadChannel(toml)
	require.NoError(t, err)
	assert.Equal(t, "1.86.0", ch)

	legacy := filepath.Join(dir, "rust-toolchain")
	require.NoError(t, os.WriteFile(legacy, []byte("nightly-2025-03-01\n"), 0o644))
	ch, err = LoadChannel(legacy)
	require.NoError(t, err)
	assert.Equal(t, "nightly-2025-03-01", ch)

	empty := filepath.Join(dir, "empty.toml")
	require.NoError(t, os.WriteFile(empty, []byte("[toolchain]\n"), 0o644))
	_, err = LoadChannel(empty)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}
