package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
)

const (

	// Snapshotter used for container filesystems. fuse-overlayfs provides
	// overlay semantics without requiring root privileges (no mount(2)).
	snapshotter = "fuse-overlayfs"

	// OCI runtime shim for running containers.
	ociRuntime = "io.containerd.runc.v2"
)

// Manages the containerd client and provides image and container operations.
type Runtime struct {
	client   *containerd.Client // Containerd client for managing containers and images.
	platform string             // OCI platform images are unpacked for (e.g., "linux/amd64").
}

// Creates a runtime connected to the containerd socket at the given address.
//
// The namespace scopes all containerd operations to a single tenant. An
// empty platform selects the host's. The runtime must be closed when no
// longer needed.
func New(address, namespace, platform string) (*Runtime, error) {
	if platform == "" {
		platform = defaultPlatform()
	}
	if _, err := platforms.Parse(platform); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	return &Runtime{client: client, platform: platform}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Returns the platform images are unpacked for.
func (rt *Runtime) Platform() string {
	return rt.platform
}

// Imports an OCI archive, tags it under the given name, and unpacks it for
// the runtime's platform.
//
// The archive must hold exactly one image. Loading is all or nothing: any
// error leaves no tag behind.
func (rt *Runtime) ImportImage(ctx context.Context, path, tag string) error {
	source, err := rt.importArchive(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRuntime, path, err)
	}

	if err := rt.tagImage(ctx, source, tag); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRuntime, tag, err)
	}

	if err := rt.unpackImage(ctx, tag); err != nil {
		_ = rt.client.ImageService().Delete(ctx, tag)
		return fmt.Errorf("%w: %s: %w", ErrRuntime, tag, err)
	}

	slog.Debug("image imported", "tag", tag, "platform", rt.platform)
	return nil
}

// Imports an OCI archive into the content store.
func (rt *Runtime) importArchive(ctx context.Context, path string) (images.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return images.Image{}, err
	}
	defer fh.Close()

	imported, err := rt.client.Import(ctx, fh)
	if err != nil {
		return images.Image{}, err
	}

	// One record per entry of the archive's index.json.
	if len(imported) == 0 {
		return images.Image{}, ErrEmptyArchive
	} else if len(imported) > 1 {
		return images.Image{}, ErrMultipleImages
	}

	return imported[0], nil
}

// Tags an imported image.
//
// Updates the tag if it already exists. Removes the source record when
// its name differs from the tag to avoid duplicates.
func (rt *Runtime) tagImage(ctx context.Context, source images.Image, tag string) error {
	is := rt.client.ImageService()

	img := images.Image{
		Name:   tag,
		Target: source.Target,
	}

	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return err
		}
		if _, err := is.Update(ctx, img, "target"); err != nil {
			return err
		}
	}

	if source.Name != tag {
		_ = is.Delete(ctx, source.Name)
	}

	return nil
}

// Unpacks the image layers into the snapshotter.
func (rt *Runtime) unpackImage(ctx context.Context, tag string) error {
	image, err := rt.resolveImage(ctx, tag)
	if err != nil {
		return err
	}

	return image.Unpack(ctx, snapshotter)
}

// Looks up a tagged image and selects the manifest for the runtime's
// platform.
func (rt *Runtime) resolveImage(ctx context.Context, tag string) (containerd.Image, error) {
	p, err := platforms.Parse(rt.platform)
	if err != nil {
		return nil, err
	}

	img, err := rt.client.ImageService().Get(ctx, tag)
	if err != nil {
		return nil, err
	}

	return containerd.NewImageWithPlatform(rt.client, img, platforms.Only(p)), nil
}

// Returns the default OCI platform for the host architecture.
func defaultPlatform() string {
	return "linux/" + goruntime.GOARCH
}

// Starts a container from a previously imported image tag.
//
// Any stale container with the same ID is cleaned up first. With no args the
// image's own entrypoint runs; otherwise args replace the command.
func (rt *Runtime) StartFromTag(ctx context.Context, tag, id string, args ...string) (*Container, error) {
	c := &Container{
		client:   rt.client,
		id:       id,
		platform: rt.platform,
	}

	if stale, err := rt.client.LoadContainer(ctx, id); err == nil {
		if err := deleteContainer(ctx, stale); err != nil {
			return nil, fmt.Errorf("%w: stale container %s: %w", ErrRuntime, id, err)
		}
	}

	image, err := rt.resolveImage(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRuntime, tag, err)
	}

	ctr, err := c.create(ctx, image, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRuntime, id, err)
	}

	if err := c.startTask(ctx, ctr); err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("%w: %s: %w", ErrRuntime, id, err)
	}

	slog.Debug("container started", "id", id, "image", tag)
	return c, nil
}

// Removes an image and all containers created from it.
//
// Containers are discovered by querying containerd for records whose image
// field matches the tag. Each container's task is killed before the container
// and its snapshot are deleted.
func (rt *Runtime) DestroyImage(ctx context.Context, tag string) error {
	ctrs, err := rt.client.Containers(ctx, fmt.Sprintf("image==%s", tag))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	for _, ctr := range ctrs {
		if err := deleteContainer(ctx, ctr); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrRuntime, ctr.ID(), err)
		}
	}

	if err := rt.client.ImageService().Delete(ctx, tag); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Debug("image destroyed", "tag", tag)
	return nil
}
