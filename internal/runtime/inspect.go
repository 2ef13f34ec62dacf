package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Returns the configuration of an imported image for the runtime's
// platform.
func (rt *Runtime) ImageConfig(ctx context.Context, tag string) (ocispec.Image, error) {
	img, err := rt.client.ImageService().Get(ctx, tag)
	if err != nil {
		return ocispec.Image{}, fmt.Errorf("%w: %s: %w", ErrRuntime, tag, err)
	}

	target, err := rt.resolveManifestDescriptor(ctx, img.Target, tag)
	if err != nil {
		return ocispec.Image{}, fmt.Errorf("%w: %s: %w", ErrRuntime, tag, err)
	}

	manifest, err := rt.readManifest(ctx, target)
	if err != nil {
		return ocispec.Image{}, fmt.Errorf("%w: %s: %w", ErrRuntime, tag, err)
	}

	config, err := rt.readConfig(ctx, manifest.Config)
	if err != nil {
		return ocispec.Image{}, fmt.Errorf("%w: %s: %w", ErrRuntime, tag, err)
	}
	return config, nil
}

// Resolves the image root descriptor to a platform-specific manifest.
//
// If the root is an OCI Image Index, the index is read and walked to find
// the manifest matching the runtime's platform, falling back to the first
// entry when none matches.
func (rt *Runtime) resolveManifestDescriptor(ctx context.Context, root ocispec.Descriptor, tag string) (ocispec.Descriptor, error) {
	if !images.IsIndexType(root.MediaType) {
		return root, nil
	}

	idx, err := rt.readIndex(ctx, root)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	p, err := platforms.Parse(rt.platform)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	if i, ok := rt.matchManifest(ctx, idx, platforms.OnlyStrict(p)); ok {
		return idx.Manifests[i], nil
	}

	if len(idx.Manifests) == 0 {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %s", ErrEmptyIndex, tag)
	}
	return idx.Manifests[0], nil
}

// Searches the index for a manifest matching the given platform.
//
// Descriptors with an explicit platform field are checked first. If none
// match, descriptors without a platform field are probed by reading the
// image config to discover the platform.
func (rt *Runtime) matchManifest(ctx context.Context, idx ocispec.Index, matcher platforms.MatchComparer) (int, bool) {
	for i, m := range idx.Manifests {
		if m.Platform != nil && matcher.Match(*m.Platform) {
			return i, true
		}
	}
	for i, m := range idx.Manifests {
		if m.Platform != nil || !images.IsManifestType(m.MediaType) {
			continue
		}
		if p, ok := rt.configPlatform(ctx, m); ok && matcher.Match(p) {
			return i, true
		}
	}
	return 0, false
}

// Reads the image config referenced by a manifest descriptor and returns the
// platform declared in the config.
func (rt *Runtime) configPlatform(ctx context.Context, desc ocispec.Descriptor) (ocispec.Platform, bool) {
	manifest, err := rt.readManifest(ctx, desc)
	if err != nil {
		return ocispec.Platform{}, false
	}
	config, err := rt.readConfig(ctx, manifest.Config)
	if err != nil {
		return ocispec.Platform{}, false
	}
	return config.Platform, true
}

// Loads an OCI manifest from the content store.
func (rt *Runtime) readManifest(ctx context.Context, desc ocispec.Descriptor) (ocispec.Manifest, error) {
	var m ocispec.Manifest
	return m, rt.readJSON(ctx, desc, &m)
}

// Loads an OCI image index from the content store.
func (rt *Runtime) readIndex(ctx context.Context, desc ocispec.Descriptor) (ocispec.Index, error) {
	var idx ocispec.Index
	return idx, rt.readJSON(ctx, desc, &idx)
}

// Loads an OCI image config from the content store.
func (rt *Runtime) readConfig(ctx context.Context, desc ocispec.Descriptor) (ocispec.Image, error) {
	var img ocispec.Image
	return img, rt.readJSON(ctx, desc, &img)
}

// Reads a blob from the content store and decodes it into v.
func (rt *Runtime) readJSON(ctx context.Context, desc ocispec.Descriptor, v any) error {
	b, err := content.ReadBlob(ctx, rt.client.ContentStore(), desc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
