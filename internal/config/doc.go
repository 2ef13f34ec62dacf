// Loads and validates the project configuration file.
//
// The configuration lives in tessera.yaml at the project root, with a
// user-level fallback under the XDG config directory. Every section has
// defaults, so an absent file yields a usable configuration for a native
// build. Secrets are never stored in the file; registry and archive
// credentials name the environment variables that hold them.
//
// A minimal file:
//
//	toolchain:
//	  channel_file: rust-toolchain.toml
//	  hash: sha256:4f1b...
//	  source: https://static.rust-lang.org/dist/rust-1.86.0-x86_64-unknown-linux-gnu.tar.xz
//	matrix:
//	  binary: conduit
//	  features: [brotli_compression, element_hacks]
//	harness:
//	  suite: [go, test, -json, ./tests/...]
//	  dir: ../complement
package config
