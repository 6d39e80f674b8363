package installer

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
)

// Request is everything a backend needs to build its command line.
type Request struct {
	Crate   string
	Version *semver.Version
	// Bin is the user's --bin override; empty lets the tool pick.
	Bin   string
	Root  string
	Force bool
	Quiet bool
}

// Scratch holds per-invocation resources a backend needs while its tool runs.
type Scratch struct {
	// Env is appended to the sandboxed environment.
	Env []string
	// Dir is the scratch directory, if any.
	Dir     string
	release func() error
}

// Release frees the scratch resources. It is safe to call on a zero Scratch.
func (s Scratch) Release() error {
	if s.release == nil {
		return nil
	}
	return s.release()
}

// Backend is one way of installing a crate. The orchestrator owns the steps
// shared by all backends.
type Backend interface {
	// Name identifies the tool in logs and errors.
	Name() string
	// Args returns the arguments passed to cargo.
	Args(req Request) []string
	// Prepare acquires per-invocation resources. Callers must Release them.
	Prepare(req Request) (Scratch, error)
}

// Binstall installs pre-built artifacts with cargo-binstall.
type Binstall struct{}

func (Binstall) Name() string { return "cargo-binstall" }

func (Binstall) Args(req Request) []string {
	args := []string{"binstall"}
	if req.Quiet {
		args = append(args, "--quiet")
	}
	args = append(args, "--no-confirm")
	if req.Force {
		args = append(args, "--force")
	}
	if req.Bin != "" {
		args = append(args, "--bin", req.Bin)
	}
	return append(args, req.Crate+"@"+req.Version.String())
}

func (Binstall) Prepare(Request) (Scratch, error) { return Scratch{}, nil }

// CargoInstall builds the crate from source with cargo install, using a
// throwaway target directory.
type CargoInstall struct {
	// TempDir is the parent of the scratch build directory; empty uses the
	// system default.
	TempDir string
}

func (CargoInstall) Name() string { return "cargo install" }

func (CargoInstall) Args(req Request) []string {
	args := []string{"install"}
	if req.Quiet {
		args = append(args, "--quiet")
	}
	if req.Force {
		args = append(args, "--force")
	}
	args = append(args, "--root", req.Root, req.Crate, "--version", req.Version.String())
	if req.Bin != "" {
		args = append(args, "--bin", req.Bin)
	}
	return args
}

func (b CargoInstall) Prepare(Request) (Scratch, error) {
	dir, err := os.MkdirTemp(b.TempDir, "cargox-build-")
	if err != nil {
		return Scratch{}, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return Scratch{
		Env:     []string{"CARGO_TARGET_DIR=" + dir},
		Dir:     dir,
		release: func() error { return os.RemoveAll(dir) },
	}, nil
}
