package toolchain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/cruciblehq/tessera/internal/paths"
	"github.com/cruciblehq/tessera/internal/platform"
)

// Controls how a toolchain is located and described.
type Options struct {
	Source    string              // Local archive path or http(s) URL of the distribution archive.
	CacheDir  string              // Download cache. Empty uses [paths.Toolchains].
	Client    *http.Client        // HTTP client for downloads. Nil uses a retrying client.
	Linker    LinkerKind          // Linker family used by the C toolchain.
	CCLib     string              // Root of the C++ runtime libraries (contains "<triple>/lib").
	Compilers map[string]Compiler // Per-triple compiler overrides, keyed by rustc triple.
}

// A verified toolchain, shared read-only by all build jobs.
type Toolchain struct {
	Spec      Spec                // Declared and verified identity.
	Archive   string              // Local path of the verified archive.
	Linker    LinkerKind          // Linker family.
	CCLib     string              // Root of the C++ runtime libraries.
	Compilers map[string]Compiler // Per-triple compiler overrides, keyed by rustc triple.
}

// Verifies the declared toolchain and returns a resolved reference.
//
// The archive is fetched into the cache when the source is a URL, then
// hashed with the algorithm of the declared digest. Returns
// [ErrToolchainMismatch] when the digests differ and
// [ErrToolchainUnavailable] when the archive cannot be obtained.
func Resolve(ctx context.Context, spec Spec, opts Options) (*Toolchain, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if opts.Source == "" {
		return nil, fmt.Errorf("%w: %s: no source configured", ErrToolchainUnavailable, spec.Version)
	}

	archive, err := fetch(ctx, spec, opts)
	if err != nil {
		return nil, err
	}

	actual, err := hashFile(archive, spec.Hash.Algorithm())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrToolchainUnavailable, spec.Version, err)
	}

	if actual != spec.Hash {
		return nil, fmt.Errorf("%w: %s: declared %s, found %s (%s)", ErrToolchainMismatch, spec.Version, spec.Hash, actual, archive)
	}

	slog.Debug("toolchain verified", "version", spec.Version, "digest", actual, "archive", archive)

	return &Toolchain{
		Spec:      spec,
		Archive:   archive,
		Linker:    opts.Linker,
		CCLib:     opts.CCLib,
		Compilers: opts.Compilers,
	}, nil
}

// Returns the C toolchain commands for a triple.
//
// Configured overrides take precedence; unset commands fall back to
// conventional names. native selects the defaults for the platform running
// the compiler.
func (tc *Toolchain) Compiler(t platform.Triple, native bool) Compiler {
	c := tc.Compilers[t.String()]
	return c.withDefaults(t.String(), native)
}

// Returns a local path to the toolchain archive, downloading it if needed.
func fetch(ctx context.Context, spec Spec, opts Options) (string, error) {
	u, err := url.Parse(opts.Source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		if _, err := os.Stat(opts.Source); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrToolchainUnavailable, spec.Version, err)
		}
		return opts.Source, nil
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = paths.Toolchains()
	}
	dest := filepath.Join(cacheDir, spec.Version, spec.Hash.Encoded(), path.Base(u.Path))

	// The cache is keyed by the declared digest, so a new digest for the same
	// version fetches again. The digest check that follows still verifies a
	// cached archive.
	if _, err := os.Stat(dest); err == nil {
		slog.Debug("toolchain cached", "path", dest)
		return dest, nil
	}

	client := opts.Client
	if client == nil {
		client = retry.DefaultClient
	}

	if err := download(ctx, client, opts.Source, dest); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrToolchainUnavailable, spec.Version, err)
	}
	return dest, nil
}

// Downloads src to dest atomically.
func download(ctx context.Context, client *http.Client, src, dest string) error {
	slog.Info("downloading toolchain", "url", src)

	if err := os.MkdirAll(filepath.Dir(dest), paths.DefaultDirMode); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", src, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dest)
}

// Computes the digest of a file with the given algorithm.
func hashFile(path string, alg digest.Algorithm) (digest.Digest, error) {
	if !alg.Available() {
		return "", fmt.Errorf("digest algorithm %s unavailable", alg)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return alg.FromReader(f)
}
