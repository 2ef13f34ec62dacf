package image

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pelletier/go-toml/v2"

	"github.com/cruciblehq/tessera/internal/paths"
)

// Packaged image written to disk.
type Image struct {
	Ref      string             // Image reference, "<name>:<tag>".
	Path     string             // OCI layout archive.
	Manifest ocispec.Descriptor // Manifest descriptor.
	Config   ocispec.Image      // Image configuration.
}

// Returns the manifest digest.
func (i *Image) Digest() digest.Digest {
	return i.Manifest.Digest
}

// Packages the spec into an OCI layout archive at output.
//
// The spec is validated first. A missing or non-executable binary fails
// with [ErrArtifactMissing]. The archive is written next to output and
// renamed into place on success.
func Package(ctx context.Context, spec Spec, output string) (*Image, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := validateFiles(spec.Files); err != nil {
		return nil, err
	}

	epoch := spec.Epoch.UTC().Truncate(time.Second)
	plat, err := spec.Platform.OCIPlatform()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPackage, err)
	}

	slog.Debug("packaging image", "ref", spec.Ref(), "binary", spec.Binary, "platform", plat.Architecture, "epoch", epoch.Unix())

	lay := newLayout()
	var layers []*blob
	for _, l := range spec.layers() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := l.build(epoch)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrPackage, l.comment, err)
		}
		lay.addBlob(b.desc, b.data)
		layers = append(layers, b)
	}

	config := spec.imageConfig(plat, layers, epoch)
	configDesc, err := lay.writeJSON(ocispec.MediaTypeImageConfig, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPackage, err)
	}

	manifest := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    configDesc,
		Annotations: map[string]string{
			ocispec.AnnotationCreated: epoch.Format(time.RFC3339),
			ocispec.AnnotationTitle:   spec.Name,
		},
	}
	for _, b := range layers {
		manifest.Layers = append(manifest.Layers, b.desc)
	}

	manifestDesc, err := lay.writeJSON(ocispec.MediaTypeImageManifest, manifest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPackage, err)
	}
	manifestDesc.Platform = &plat

	if err := writeArchive(output, func(f *os.File) error {
		return lay.writeTo(f, manifestDesc, spec.Ref(), spec.tag(), epoch)
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPackage, err)
	}

	slog.Info("image packaged", "ref", spec.Ref(), "digest", manifestDesc.Digest, "path", output)

	return &Image{
		Ref:      spec.Ref(),
		Path:     output,
		Manifest: manifestDesc,
		Config:   config,
	}, nil
}

// Returns the tag, defaulted.
func (s Spec) tag() string {
	if s.Tag == "" {
		return DefaultTag
	}
	return s.Tag
}

// Returns the base, files, and binary layers. The files layer is omitted
// when there are no files.
func (s Spec) layers() []*layer {
	base := newLayer("base: init and CA bundle")
	base.addFile(InitPath, s.Init, paths.ExecutableFileMode)
	base.addFile(CABundlePath, s.CABundle, paths.DefaultFileMode)

	out := []*layer{base}

	if len(s.Files) > 0 {
		files := newLayer("files")
		for _, f := range s.Files {
			mode := f.Mode
			if mode == 0 {
				mode = paths.DefaultFileMode
			}
			files.addFile(f.Dest, f.Src, mode)
		}
		out = append(out, files)
	}

	bin := newLayer("binary: " + s.binaryName())
	bin.addFile(s.binaryPath(), s.Binary, paths.ExecutableFileMode)
	return append(out, bin)
}

// Builds the image configuration.
func (s Spec) imageConfig(plat ocispec.Platform, layers []*blob, epoch time.Time) ocispec.Image {
	ports := make(map[string]struct{}, len(s.ports()))
	for _, p := range s.ports() {
		ports[p] = struct{}{}
	}

	config := ocispec.Image{
		Created:  &epoch,
		Platform: plat,
		Config: ocispec.ImageConfig{
			Entrypoint:   s.Entrypoint(),
			ExposedPorts: ports,
			Env:          s.environ(),
			Labels:       s.Labels,
			StopSignal:   "SIGTERM",
		},
		RootFS: ocispec.RootFS{Type: "layers"},
	}
	for _, b := range layers {
		config.RootFS.DiffIDs = append(config.RootFS.DiffIDs, b.diffID)
		config.History = append(config.History, ocispec.History{
			Created:   &epoch,
			CreatedBy: "tessera",
			Comment:   b.comment,
		})
	}
	return config
}

// Parses embedded TOML files so a malformed server configuration is caught
// before it is baked into an image.
func validateFiles(files []File) error {
	for _, f := range files {
		if !strings.HasSuffix(f.Dest, ".toml") {
			continue
		}
		data, err := os.ReadFile(f.Src)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInputMissing, err)
		}
		var v map[string]any
		if err := toml.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidFile, f.Src, err)
		}
	}
	return nil
}

// Writes an archive through a temporary file renamed to path on success.
func writeArchive(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), paths.DefaultDirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(paths.DefaultFileMode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
