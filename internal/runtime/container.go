package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Lifecycle state of a container.
type State string

const (
	StateNotCreated State = "not-created" // No container with the ID exists.
	StateStopped    State = "stopped"     // Container exists without a running task.
	StateRunning    State = "running"     // Task is running.
)

// A server container started for a preflight check.
type Container struct {
	client   *containerd.Client // Containerd client.
	id       string             // Containerd container ID.
	platform string             // OCI platform (e.g., "linux/amd64").
}

// Returns the container ID.
func (c *Container) ID() string {
	return c.id
}

// Queries the current state of the container.
func (c *Container) Status(ctx context.Context) (State, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if errdefs.IsNotFound(err) {
		return StateNotCreated, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	task, err := ctr.Task(ctx, nil)
	if errdefs.IsNotFound(err) {
		return StateStopped, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	status, err := task.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	if status.Status == containerd.Running {
		return StateRunning, nil
	}
	return StateStopped, nil
}

// Removes the container, its task and its snapshot. Failures are logged.
// The handle is invalid afterwards.
func (c *Container) Destroy(ctx context.Context) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			slog.Warn("failed to load container for destruction", "id", c.id, "error", err)
		}
		return
	}
	if err := deleteContainer(ctx, ctr); err != nil {
		slog.Warn("failed to delete container", "id", c.id, "error", err)
	}
}

// Creates the containerd container from the image's configuration.
//
// The container shares the host network namespace so the server's ports are
// reachable without port mapping. Non-empty args replace the image command.
func (c *Container) create(ctx context.Context, image containerd.Image, args []string) (containerd.Container, error) {
	specOpts := []oci.SpecOpts{
		oci.WithDefaultSpecForPlatform(c.platform),
		oci.WithImageConfig(image),
		oci.WithHostNamespace(specs.NetworkNamespace),
		oci.WithHostResolvconf,
	}
	if len(args) > 0 {
		specOpts = append(specOpts, oci.WithProcessArgs(args...))
	}

	return c.client.NewContainer(ctx, c.id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(snapshotter),
		containerd.WithNewSnapshot(c.id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(specOpts...),
	)
}

// Starts the container's task with no attached IO.
func (c *Container) startTask(ctx context.Context, ctr containerd.Container) error {
	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return err
	}
	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		return err
	}
	return nil
}

// Kills any task of ctr, then deletes ctr with its snapshot. Records that
// are already gone are not an error.
func deleteContainer(ctx context.Context, ctr containerd.Container) error {
	if task, err := ctr.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		if _, err := task.Delete(ctx, containerd.WithProcessKill); err != nil && !errdefs.IsNotFound(err) {
			return err
		}
	}
	if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		return err
	}
	return nil
}
