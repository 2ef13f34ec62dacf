// Package image wraps a compiled server binary into a minimal OCI image.
//
// An image has three layers: a base layer with the signal-forwarding init
// process and the CA certificate bundle, a layer of embedded files such as
// the server configuration, and a layer with the binary itself. The init
// process is the entrypoint and execs the binary, so termination signals
// reach the server instead of being absorbed by process id 1.
//
// Packaging is reproducible. Every tar entry is owned by root, entries are
// sorted, and all timestamps (file mtimes, the config's creation time, the
// history) come from a single epoch derived from the source revision rather
// than the wall clock. Packaging the same inputs twice produces a
// byte-identical OCI layout archive.
//
// Example usage:
//
//	img, err := image.Package(ctx, image.Spec{
//	    Name:     "conduit",
//	    Tag:      "release-default",
//	    Binary:   "dist/release/default/conduit",
//	    Platform: platform.MustParse("x86_64-unknown-linux-musl"),
//	    Init:     "/usr/bin/tini-static",
//	    CABundle: "/etc/ssl/certs/ca-certificates.crt",
//	    Epoch:    epoch,
//	}, "dist/release/default/image.tar")
//	if err != nil {
//	    return err
//	}
package image
