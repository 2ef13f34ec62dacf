// Derives compiler and linker environment variables for a build.
//
// [Compose] takes the build, host and target platforms of one compilation
// together with the resolved toolchain and produces an immutable [Map] of
// environment variables for cargo and the C toolchain it drives. Rules are
// applied by a [Builder] in a fixed order, so a later rule deterministically
// replaces a key set by an earlier one:
//
//  1. Target-role compiler bindings, when target and host differ.
//  2. Host-role bindings, then build-role bindings, then the HOST_CC/HOST_CXX
//     pointers when host and build differ.
//  3. Static-link flags.
//  4. Native dependency include and library directories.
//
// Once composed, downstream code only ever sees variables; it never needs to
// inspect the platforms again.
package environ
