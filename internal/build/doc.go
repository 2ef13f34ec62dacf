// Runs the cargo invocations of a build matrix.
//
// Each [matrix.Variant] becomes one job: cargo is invoked in the workspace
// with the variant's arguments and composed environment, and the resulting
// binary is copied to "<output>/<profile>/<name>/<binary>". Jobs share no
// mutable state and run in parallel up to a worker limit. Every variant gets
// its own cargo target directory per allocator, so jobs with different
// feature sets never overwrite each other's artifacts.
//
// A failing job is recorded in its [JobResult] and never stops its siblings.
// The overall error returned by [Result.Err] joins the failures, each naming
// its variant.
//
// Example usage:
//
//	result, err := build.Run(ctx, build.Options{
//	    Variants:  variants,
//	    Workspace: ".",
//	    Output:    "dist",
//	    Binary:    "conduit",
//	    Workers:   4,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := result.Err(); err != nil {
//	    return err
//	}
package build
