package matrix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadCatalogue(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), `
[workspace]
members = ["src/*"]

[features]
default = ["jemalloc"]
`)
	writeFile(t, filepath.Join(root, "src", "main", "Cargo.toml"), `
[package]
name = "conduit"

[features]
jemalloc = ["conduit-core/jemalloc"]
hardened_malloc = []
`)
	writeFile(t, filepath.Join(root, "src", "core", "Cargo.toml"), `
[package]
name = "conduit-core"

[features]
jemalloc = []
brotli_compression = []
`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "not-a-crate"), 0o755))

	c, err := LoadCatalogue(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"brotli_compression", "default", "hardened_malloc", "jemalloc"}, c.Features())
	assert.True(t, c.Has("jemalloc"))
	assert.False(t, c.Has("tcmalloc"))
	assert.ErrorIs(t, c.Validate([]string{"jemalloc", "tcmalloc"}), ErrUnknownFeature)
}

func TestLoadCatalogueInvalidManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), "[features\n")
	_, err := LoadCatalogue(root)
	assert.Error(t, err)
}
