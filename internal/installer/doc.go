// Package installer installs a pinned crate version into the cargox install
// root. It picks between cargo-binstall (pre-built artifacts) and cargo
// install (build from source), runs the chosen tool with a sandboxed
// environment, and moves the produced binary to its versioned location.
package installer
