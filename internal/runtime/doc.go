// Package runtime loads packaged images into containerd and checks that
// they start.
//
// A [Runtime] connects to a containerd daemon. OCI layout archives are
// imported into the content store, tagged under a caller-chosen name, and
// unpacked for the runtime's platform so the conformance suite can create
// containers from them.
//
// Before a suite runs, [Runtime.Preflight] verifies the image: its config
// must expose the expected ports, and a container started from it with the
// image's own entrypoint must reach the running state. An optional probe
// command is executed inside the running container. The container is always
// destroyed afterwards.
//
// Example usage:
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "tessera", "")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	if err := rt.ImportImage(ctx, "image.tar", "conduit:run-1"); err != nil {
//	    return err
//	}
//	defer rt.DestroyImage(ctx, "conduit:run-1")
//
//	if err := rt.Preflight(ctx, "conduit:run-1", runtime.PreflightOptions{}); err != nil {
//	    return err
//	}
package runtime
