package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/tessera/internal/config"
	"github.com/cruciblehq/tessera/internal/harness"
	"github.com/cruciblehq/tessera/internal/image"
	"github.com/cruciblehq/tessera/internal/platform"
)

func TestParseCommands(t *testing.T) {
	parser, err := kong.New(&RootCmd, kong.Name("tessera"), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"-d", "build", "-a", "jemalloc", "-p", "release", "-j", "2", "default-aarch64-unknown-linux-musl"})
	require.NoError(t, err)
	assert.True(t, RootCmd.Debug)
	assert.Equal(t, []string{"jemalloc"}, RootCmd.Build.Allocator)
	assert.Equal(t, []string{"release"}, RootCmd.Build.Profile)
	assert.Equal(t, 2, RootCmd.Build.Workers)
	assert.Equal(t, []string{"default-aarch64-unknown-linux-musl"}, RootCmd.Build.Outputs)

	_, err = parser.Parse([]string{"env", "hmalloc"})
	require.NoError(t, err)
	assert.Equal(t, "hmalloc", RootCmd.Env.Output)
	assert.Equal(t, "release", RootCmd.Env.Profile)
}

func TestPackageTarget(t *testing.T) {
	cfg := config.Default()
	cfg.Platform.Build = "x86_64-unknown-linux-gnu"

	got, err := packageTarget(cfg, platform.Native)
	require.NoError(t, err)
	assert.Equal(t, platform.MustParse("x86_64-unknown-linux-gnu"), got)

	got, err = packageTarget(cfg, "aarch64-unknown-linux-musl")
	require.NoError(t, err)
	assert.Equal(t, platform.MustParse("aarch64-unknown-linux-musl"), got)

	_, err = packageTarget(cfg, "not-a-triple")
	assert.Error(t, err)
}

func TestTestOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Harness.Suite = []string{"go", "test", "-json"}
	cfg.Harness.Preflight.Enabled = true

	cmd := &TestCmd{Images: []string{"/a/conduit-latest.oci.tar"}, Output: "/out"}
	opts := cmd.options(cfg, cmd.Images[0])
	assert.Equal(t, "/out", opts.Output)
	assert.Equal(t, cfg.Harness.Suite, opts.Suite)
	require.NotNil(t, opts.Preflight)

	cmd = &TestCmd{Images: []string{"/a/x.oci.tar", "/a/y.oci.tar"}, Output: "/out", NoPreflight: true}
	opts = cmd.options(cfg, cmd.Images[1])
	assert.Equal(t, filepath.Join("/out", "y"), opts.Output)
	assert.Nil(t, opts.Preflight)
}

// Loader accepting every image without a container runtime.
type nopLoader struct{}

func (nopLoader) ImportImage(ctx context.Context, path, tag string) error { return nil }
func (nopLoader) DestroyImage(ctx context.Context, tag string) error      { return nil }

func TestTestFailingSuiteIsNotAnError(t *testing.T) {
	cfg := config.Default()
	cfg.Harness.Suite = []string{"sh", "-c", `printf '{"Action":"pass","Test":"TestA"}\n{"Action":"fail","Test":"TestB"}\n'; exit 1`}

	cmd := &TestCmd{Images: []string{"conduit-latest.oci.tar"}, Tag: "complement-conduit:test", Output: t.TempDir()}

	var out bytes.Buffer
	err := cmd.runAll(context.Background(), cfg, harness.New(nopLoader{}, 1), nil, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "exit=1 pass=1 fail=1 skip=0")

	data, err := os.ReadFile(filepath.Join(cmd.Output, harness.ResultsFilename))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Action":"fail","Test":"TestB"`)
}

func TestTestUnstartableSuiteIsAnError(t *testing.T) {
	cfg := config.Default()
	cfg.Harness.Suite = []string{filepath.Join(t.TempDir(), "missing-suite")}

	cmd := &TestCmd{Images: []string{"conduit-latest.oci.tar"}, Output: t.TempDir()}
	err := cmd.runAll(context.Background(), cfg, harness.New(nopLoader{}, 1), nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, harness.ErrSuiteUnstartable)
}

func TestPackageChecksBinaryBeforeEpoch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tessera.yaml")
	require.NoError(t, os.WriteFile(path, []byte("toolchain:\n  version: 1.86.0\n"), 0o644))

	t.Setenv("SOURCE_DATE_EPOCH", "")
	require.NoError(t, os.Unsetenv("SOURCE_DATE_EPOCH"))

	old := RootCmd.Config
	RootCmd.Config = path
	t.Cleanup(func() { RootCmd.Config = old })

	cmd := &PackageCmd{Binary: filepath.Join(dir, "missing"), Target: platform.Native, Tag: "latest"}
	err := cmd.Run(context.Background())
	require.ErrorIs(t, err, image.ErrArtifactMissing)
	assert.NotErrorIs(t, err, image.ErrNoSourceEpoch)
}
