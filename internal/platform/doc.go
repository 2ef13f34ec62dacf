// Describes compilation and execution platforms.
//
// A [Triple] is the rustc target triple of a platform (architecture, vendor,
// operating system and ABI). Three triples matter during a cross build, held
// together in [Roles]: the build platform that runs the compiler, the host
// platform the produced tooling is built for, and the target platform the
// output binary runs on.
//
// Triples convert to the suffix cargo uses for per-target environment
// variables ([Triple.EnvSuffix]) and to the OCI platform used when packaging
// and running images ([Triple.OCIPlatform]).
package platform
