// Expands the build configuration matrix into build variants.
//
// The matrix is the cross product of allocator ({default, jemalloc, hmalloc}),
// build profile ({dev, release}) and target (the native platform plus
// statically linked cross targets). Callers select a subset; a [Generator]
// turns each selected cell into exactly one [Variant] carrying the cargo
// features, cargo arguments and composed environment for that cell.
//
// Generation is deterministic: the same cell always yields identical
// features, arguments and environment, and variants are returned in a fixed
// order. A cell whose environment cannot be composed (for example a missing
// native dependency) carries the error in [Variant.Err] without affecting its
// siblings.
//
// A [Catalogue] lists the features declared across the cargo workspace so
// that variants naming an undeclared feature are rejected before any build
// starts.
package matrix
