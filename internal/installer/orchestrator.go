package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/cargox-labs/cargox/internal/paths"
	"github.com/cargox-labs/cargox/internal/target"
)

// Default tool names.
const (
	DefaultCargoTool    = "cargo"
	DefaultBinstallTool = "cargo-binstall"
)

// Layout is the part of the install root the orchestrator needs.
// *paths.Resolver satisfies it.
type Layout interface {
	EnsureBinDir() (string, error)
	VersionedBinaryPath(binary string, version *semver.Version) (string, error)
	FindVersioned(binary string, version *semver.Version) (string, error)
	ExecutableName(name string) string
}

// Options are the user's install preferences.
type Options struct {
	Force           bool
	Quiet           bool
	BuildFromSource bool
	// Bin is forwarded to the tool as --bin when set.
	Bin string
}

// Reason explains why a backend was selected.
type Reason int

const (
	// ReasonBinstallAvailable means cargo-binstall was found on PATH.
	ReasonBinstallAvailable Reason = iota
	// ReasonExplicit means the user asked to build from source.
	ReasonExplicit
	// ReasonBinstallMissing means cargo-binstall is not installed.
	ReasonBinstallMissing
)

func (r Reason) String() string {
	switch r {
	case ReasonBinstallAvailable:
		return "cargo-binstall available"
	case ReasonExplicit:
		return "explicit request"
	case ReasonBinstallMissing:
		return "cargo-binstall not found"
	default:
		return "unknown"
	}
}

// Orchestrator installs targets into the install root.
type Orchestrator struct {
	layout       Layout
	runner       Runner
	logger       *log.Logger
	lookPath     func(string) (string, error)
	environ      func() []string
	cargoTool    string
	binstallTool string
	tempDir      string
	rename       func(oldpath, newpath string) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunner sets the runner used for installer tools (useful for testing).
func WithRunner(r Runner) Option {
	return func(o *Orchestrator) {
		o.runner = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithLookPath replaces the PATH lookup used to detect cargo-binstall.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(o *Orchestrator) {
		o.lookPath = fn
	}
}

// WithEnviron replaces the source of the ambient environment.
func WithEnviron(fn func() []string) Option {
	return func(o *Orchestrator) {
		o.environ = fn
	}
}

// WithCargoTool sets the cargo executable.
func WithCargoTool(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.cargoTool = name
		}
	}
}

// WithBinstallTool sets the executable probed to decide whether binstall is usable.
func WithBinstallTool(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.binstallTool = name
		}
	}
}

// WithTempDir sets the parent directory for scratch build directories.
func WithTempDir(dir string) Option {
	return func(o *Orchestrator) {
		o.tempDir = dir
	}
}

// New creates an Orchestrator over layout.
func New(layout Layout, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		layout:       layout,
		runner:       NewExecRunner(),
		logger:       log.New(io.Discard),
		lookPath:     exec.LookPath,
		environ:      os.Environ,
		cargoTool:    DefaultCargoTool,
		binstallTool: DefaultBinstallTool,
		rename:       os.Rename,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SelectBackend picks cargo-binstall unless building from source was
// requested or it is not installed.
func (o *Orchestrator) SelectBackend(opts Options) (Backend, Reason) {
	if opts.BuildFromSource {
		return CargoInstall{TempDir: o.tempDir}, ReasonExplicit
	}
	if _, err := o.lookPath(o.binstallTool); err != nil {
		return CargoInstall{TempDir: o.tempDir}, ReasonBinstallMissing
	}
	return Binstall{}, ReasonBinstallAvailable
}

// EnsureInstalled makes t's version available at its versioned path and
// returns that path. An existing install is reused unless opts.Force is set.
func (o *Orchestrator) EnsureInstalled(ctx context.Context, t target.Target, opts Options) (string, error) {
	if t.Version == nil {
		return "", fmt.Errorf("cannot install %s without a resolved version", t.Crate)
	}

	if !opts.Force {
		p, err := o.layout.FindVersioned(t.Binary, t.Version)
		if err == nil {
			o.logger.Debug("already installed", "target", t.Descriptor(), "path", p)
			return p, nil
		}
		if !errors.Is(err, paths.ErrBinaryNotFound) {
			return "", err
		}
	}

	root, err := o.layout.EnsureBinDir()
	if err != nil {
		return "", err
	}

	backend, reason := o.SelectBackend(opts)
	switch reason {
	case ReasonExplicit:
		o.logger.Infof("Building %s from source with cargo install", t.Descriptor())
	case ReasonBinstallMissing:
		o.logger.Infof("cargo-binstall not found; falling back to cargo install for %s", t.Descriptor())
	}
	o.logger.Debug("selected backend", "backend", backend.Name(), "reason", reason)

	req := Request{
		Crate:   t.Crate,
		Version: t.Version,
		Bin:     opts.Bin,
		Root:    root,
		Force:   opts.Force,
		Quiet:   opts.Quiet,
	}
	if err := o.run(ctx, backend, req); err != nil {
		return "", err
	}

	return o.finalize(root, t.Binary, t.Version)
}

// run executes one backend invocation. Scratch resources are released on
// every path.
func (o *Orchestrator) run(ctx context.Context, backend Backend, req Request) error {
	scratch, err := backend.Prepare(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := scratch.Release(); err != nil {
			o.logger.Warn("failed to remove scratch directory", "dir", scratch.Dir, "err", err)
		}
	}()

	env := SandboxEnv(o.environ(), req.Root)
	env = append(env, scratch.Env...)

	quiet := ""
	if req.Quiet {
		quiet = " (quiet)"
	}
	o.logger.Infof("Installing %s@%s with %s%s to %s", req.Crate, req.Version, backend.Name(), quiet, req.Root)

	res, err := o.runner.Run(ctx, Command{Path: o.cargoTool, Args: backend.Args(req), Env: env})
	if err != nil {
		return fmt.Errorf("failed to invoke %s: %w", backend.Name(), err)
	}
	if !res.Success() {
		return &ToolError{Tool: backend.Name(), Code: res.Code, Signaled: res.Signaled}
	}
	return nil
}
