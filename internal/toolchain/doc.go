// Pins and verifies the compiler toolchain.
//
// A [Spec] declares the exact toolchain version and the content digest of
// its distribution archive. [Resolve] locates the archive (a local path or a
// URL that is downloaded into the cache), hashes it, and returns a
// [Toolchain] only when the digest matches. A mismatch is fatal: the hash pin
// is what makes every later build reproducible, so there is no fallback.
//
// The resolved [Toolchain] also carries the per-platform compiler and linker
// commands and the linker family, which is all the environment composer needs
// from it. It is resolved once per invocation and shared read-only by every
// build job.
//
// Example usage:
//
//	tc, err := toolchain.Resolve(ctx, toolchain.Spec{
//	    Version: "1.86.0",
//	    Hash:    "sha256:4b1b...",
//	}, toolchain.Options{Source: "https://static.rust-lang.org/dist/rust-1.86.0-x86_64-unknown-linux-gnu.tar.xz"})
//	if err != nil {
//	    return err
//	}
package toolchain
