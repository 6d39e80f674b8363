// Package paths owns the cargox install root: where it lives, which
// directories are searched for an already-installed binary, and the
// deterministic file name each pinned version is stored under.
//
// Only CARGOX_INSTALL_DIR can move the install root. Ambient cargo variables
// (CARGO_HOME, CARGO_INSTALL_ROOT, BINSTALL_INSTALL_PATH) are never read.
package paths
