// Reads revision metadata from the server's source repository.
//
// The commit time of HEAD is the reproducible timestamp for packaged
// images, and the short commit hash is embedded in the binary as its
// version extra. Both come from the git repository containing the source
// directory; SOURCE_DATE_EPOCH overrides the timestamp when set, following
// the reproducible-builds convention.
package source
