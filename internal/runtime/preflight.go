package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Default time a preflight container must stay running.
const defaultSettle = 2 * time.Second

// Controls [Runtime.Preflight].
type PreflightOptions struct {
	ID     string        // Container ID. Empty derives one from the tag.
	Ports  []string      // Ports the image config must expose (e.g., "8008/tcp").
	Settle time.Duration // Time the container must stay running. Zero uses two seconds.
	Probe  []string      // Command executed in the running container. Must exit zero.
}

// Verifies that an imported image is usable before a suite runs against it.
//
// The image config must expose every port in opts.Ports. A container is then
// started with the image's own entrypoint and must still be running after
// the settle time. When a probe is configured it runs inside the container.
// The container is destroyed before returning.
func (rt *Runtime) Preflight(ctx context.Context, tag string, opts PreflightOptions) error {
	config, err := rt.ImageConfig(ctx, tag)
	if err != nil {
		return err
	}
	if err := checkPorts(config, opts.Ports); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPreflight, tag, err)
	}

	id := opts.ID
	if id == "" {
		id = preflightID(tag)
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = defaultSettle
	}

	ctr, err := rt.StartFromTag(ctx, tag, id)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPreflight, tag, err)
	}
	defer ctr.Destroy(context.WithoutCancel(ctx))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settle):
	}

	state, err := ctr.Status(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPreflight, tag, err)
	}
	if state != StateRunning {
		return fmt.Errorf("%w: %s: container %s is %s after %s", ErrPreflight, tag, id, state, settle)
	}

	if len(opts.Probe) > 0 {
		res, err := ctr.Exec(ctx, opts.Probe, nil)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrPreflight, tag, err)
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("%w: %s: probe %q exited %d: %s", ErrPreflight, tag, strings.Join(opts.Probe, " "), res.ExitCode, strings.TrimSpace(res.Stderr))
		}
	}

	slog.Info("preflight passed", "tag", tag, "container", id)
	return nil
}

// Checks that the image config exposes every wanted port.
func checkPorts(config ocispec.Image, want []string) error {
	var missing []string
	for _, p := range want {
		if _, ok := config.Config.ExposedPorts[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("ports not exposed: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Derives a container ID from an image tag.
//
// Containerd IDs allow letters, digits, and "._-", so every other
// character is replaced.
func preflightID(tag string) string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '-'
	}, tag)
	return "preflight-" + id
}
