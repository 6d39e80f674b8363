package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/cargox-labs/cargox/internal/executor"
	"github.com/cargox-labs/cargox/internal/installer"
	"github.com/cargox-labs/cargox/internal/paths"
	"github.com/cargox-labs/cargox/internal/registry"
	"github.com/cargox-labs/cargox/internal/target"
)

// Registry resolves a crate and optional requirement to a concrete version.
type Registry interface {
	Resolve(ctx context.Context, crate string, req registry.Matcher) (*semver.Version, error)
}

// Locator finds binaries that are already installed.
type Locator interface {
	FindBinary(name string) (string, error)
	FindVersioned(binary string, version *semver.Version) (string, error)
	ListVersioned() ([]paths.Installed, error)
}

// Installer makes a pinned target available and returns its path.
type Installer interface {
	EnsureInstalled(ctx context.Context, t target.Target, opts installer.Options) (string, error)
}

// Executor runs the final binary.
type Executor interface {
	Run(path string, args []string) (executor.Status, error)
}

// Request is one cargox invocation.
type Request struct {
	// Spec is the raw "name[@version]" argument.
	Spec string
	// Args are forwarded to the binary unchanged.
	Args    []string
	Options installer.Options
}

// Pipeline wires the resolution, installation and execution steps.
type Pipeline struct {
	registry  Registry
	locator   Locator
	installer Installer
	executor  Executor
	logger    *log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a Pipeline from its components.
func New(reg Registry, loc Locator, inst Installer, exec Executor, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:  reg,
		locator:   loc,
		installer: inst,
		executor:  exec,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run resolves req to a binary, installing it if needed, then executes it
// and returns the child's exit status.
func (p *Pipeline) Run(ctx context.Context, req Request) (executor.Status, error) {
	spec, err := target.ParseSpec(req.Spec)
	if err != nil {
		return executor.Status{}, err
	}
	t := target.New(spec, req.Options.Bin)

	path, err := p.locate(ctx, spec, t, req.Options)
	if err != nil {
		return executor.Status{}, err
	}

	p.logger.Debug("executing", "path", path, "args", req.Args)
	status, err := p.executor.Run(path, req.Args)
	if err != nil {
		return executor.Status{}, fmt.Errorf("failed to execute %s: %w", path, err)
	}
	return status, nil
}

// locate returns the path of the binary to run for spec.
func (p *Pipeline) locate(ctx context.Context, spec target.PackageSpec, t target.Target, opts installer.Options) (string, error) {
	var req registry.Matcher

	switch r := spec.Request.(type) {
	case target.Unspecified:
		if !opts.Force {
			path, err := p.locator.FindBinary(t.Binary)
			if err == nil {
				p.logger.Debug("reusing existing binary", "binary", t.Binary, "path", path)
				return path, nil
			}
			if !errors.Is(err, paths.ErrBinaryNotFound) {
				return "", err
			}
			cached, err := p.newestCached(t.Binary)
			if err != nil {
				return "", err
			}
			if cached != nil {
				p.logger.Debug("reusing cached version", "target", t.WithVersion(cached.Version).Descriptor(), "path", cached.Path)
				return cached.Path, nil
			}
			p.logger.Debug("no existing binary", "binary", t.Binary)
		}
	case target.Latest:
	case target.Constraint:
		if r.Exact != nil && !opts.Force {
			path, err := p.locator.FindVersioned(t.Binary, r.Exact)
			if err == nil {
				p.logger.Debug("using cached version", "target", t.WithVersion(r.Exact).Descriptor(), "path", path)
				return path, nil
			}
			if !errors.Is(err, paths.ErrBinaryNotFound) {
				return "", err
			}
			p.logCached(t.Binary)
		}
		req = r
	default:
		return "", fmt.Errorf("unsupported version request %T", r)
	}

	version, err := p.registry.Resolve(ctx, t.Crate, req)
	if err != nil {
		return "", fmt.Errorf("failed to resolve version for %s: %w", spec, err)
	}
	t = t.WithVersion(version)
	p.logger.Debug("resolved version", "spec", spec.String(), "version", version.String())

	path, err := p.installer.EnsureInstalled(ctx, t, opts)
	if err != nil {
		return "", fmt.Errorf("failed to install %s: %w", t.Descriptor(), err)
	}
	return path, nil
}

// newestCached returns the highest installed version of binary, or nil when
// none is cached.
func (p *Pipeline) newestCached(binary string) (*paths.Installed, error) {
	installed, err := p.locator.ListVersioned()
	if err != nil {
		return nil, fmt.Errorf("listing installed versions of %s: %w", binary, err)
	}
	var newest *paths.Installed
	for i := range installed {
		inst := &installed[i]
		if inst.Binary != binary {
			continue
		}
		if newest == nil || inst.Version.GreaterThan(newest.Version) {
			newest = inst
		}
	}
	return newest, nil
}

// logCached lists the installed versions of binary at debug level.
func (p *Pipeline) logCached(binary string) {
	if p.logger.GetLevel() > log.DebugLevel {
		return
	}
	installed, err := p.locator.ListVersioned()
	if err != nil {
		p.logger.Debug("listing installed versions failed", "err", err)
		return
	}
	var versions []string
	for _, inst := range installed {
		if inst.Binary == binary {
			versions = append(versions, inst.Version.String())
		}
	}
	p.logger.Debug("requested version not cached", "binary", binary, "installed", versions)
}
