// Package registry publishes packaged image archives to an OCI registry.
//
// The archive written by the image packager is opened as a read-only OCI
// layout store and its tagged manifest is copied, with config and layers,
// to a remote repository. Credentials are either static or taken from the
// local Docker credential store.
package registry
