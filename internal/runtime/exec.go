package runtime

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cruciblehq/tessera/internal/environ"
)

// Sequence counter for exec process identifiers.
var execSeq atomic.Uint64

// Returns a unique exec process identifier.
func nextExecID() string {
	return fmt.Sprintf("probe-%d", execSeq.Add(1))
}

// Output of a command run inside a container.
type ExecResult struct {
	ExitCode int    // Exit code of the process.
	Stdout   string // Captured standard output.
	Stderr   string // Captured standard error.
}

// Runs a command inside the running container.
//
// Server images carry no shell, so args are executed as given. env entries
// override the container's environment for this execution only. A non-zero
// exit code is reported in the result, not as an error.
func (c *Container) Exec(ctx context.Context, args []string, env []string) (*ExecResult, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	pspec, err := processSpec(ctx, ctr, args, env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no task: %w", ErrRuntime, c.id, err)
	}

	var stdout, stderr bytes.Buffer
	process, err := task.Exec(ctx, nextExecID(), pspec, cio.NewCreator(cio.WithStreams(nil, &stdout, &stderr)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	code, err := awaitProcess(ctx, process)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	return &ExecResult{
		ExitCode: code,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// Derives the process spec of an exec from the container's own process,
// replacing args and merging env on top.
func processSpec(ctx context.Context, ctr containerd.Container, args, env []string) (*specs.Process, error) {
	spec, err := ctr.Spec(ctx)
	if err != nil {
		return nil, err
	}

	pspec := *spec.Process
	pspec.Terminal = false
	pspec.Args = args
	if len(env) > 0 {
		pspec.Env = mergeEnv(pspec.Env, env)
	}
	return &pspec, nil
}

// Merges override entries on top of base. The result is sorted and entries
// without "=" are dropped.
func mergeEnv(base, overrides []string) []string {
	return environ.NewBuilder().
		Merge(environ.FromEnviron(base)).
		Merge(environ.FromEnviron(overrides)).
		Build().
		Environ()
}

// Starts process, waits for it to exit and returns the exit code. The
// process is always deleted before returning.
func awaitProcess(ctx context.Context, process containerd.Process) (int, error) {
	defer process.Delete(context.WithoutCancel(ctx))

	statusC, err := process.Wait(ctx)
	if err != nil {
		return 0, err
	}
	if err := process.Start(ctx); err != nil {
		return 0, err
	}

	select {
	case <-ctx.Done():
		process.Kill(context.WithoutCancel(ctx), syscall.SIGKILL)
		return 0, ctx.Err()
	case status := <-statusC:
		code, _, err := status.Result()
		if err != nil {
			return 0, err
		}
		return int(code), nil
	}
}
