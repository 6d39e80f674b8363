package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargox-labs/cargox/internal/executor"
	"github.com/cargox-labs/cargox/internal/installer"
	"github.com/cargox-labs/cargox/internal/paths"
	"github.com/cargox-labs/cargox/internal/registry"
	"github.com/cargox-labs/cargox/internal/target"
)

type resolveCall struct {
	crate string
	req   registry.Matcher
}

type fakeRegistry struct {
	calls   []resolveCall
	version string
	err     error
}

func (f *fakeRegistry) Resolve(_ context.Context, crate string, req registry.Matcher) (*semver.Version, error) {
	f.calls = append(f.calls, resolveCall{crate: crate, req: req})
	if f.err != nil {
		return nil, f.err
	}
	return semver.MustParse(f.version), nil
}

type fakeLocator struct {
	onPath    map[string]string
	versioned map[string]string
	installed []paths.Installed
}

func (f *fakeLocator) FindBinary(name string) (string, error) {
	if p, ok := f.onPath[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", paths.ErrBinaryNotFound, name)
}

func (f *fakeLocator) FindVersioned(binary string, v *semver.Version) (string, error) {
	if p, ok := f.versioned[binary+"-"+v.String()]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s@%s", paths.ErrBinaryNotFound, binary, v)
}

func (f *fakeLocator) ListVersioned() ([]paths.Installed, error) { return f.installed, nil }

type installCall struct {
	target target.Target
	opts   installer.Options
}

type fakeInstaller struct {
	calls []installCall
	err   error
}

func (f *fakeInstaller) EnsureInstalled(_ context.Context, t target.Target, opts installer.Options) (string, error) {
	f.calls = append(f.calls, installCall{target: t, opts: opts})
	if f.err != nil {
		return "", f.err
	}
	return "/cargox/" + t.Binary + "-" + t.Version.String(), nil
}

type execCall struct {
	path string
	args []string
}

type fakeExecutor struct {
	calls  []execCall
	status executor.Status
	err    error
}

func (f *fakeExecutor) Run(path string, args []string) (executor.Status, error) {
	f.calls = append(f.calls, execCall{path: path, args: args})
	return f.status, f.err
}

type fixture struct {
	registry  *fakeRegistry
	locator   *fakeLocator
	installer *fakeInstaller
	executor  *fakeExecutor
	pipeline  *Pipeline
}

func newFixture() *fixture {
	f := &fixture{
		registry:  &fakeRegistry{version: "2.0.0"},
		locator:   &fakeLocator{onPath: map[string]string{}, versioned: map[string]string{}},
		installer: &fakeInstaller{},
		executor:  &fakeExecutor{},
	}
	f.pipeline = New(f.registry, f.locator, f.installer, f.executor)
	return f
}

func TestRun_UnspecifiedReusesExistingBinary(t *testing.T) {
	f := newFixture()
	f.locator.onPath["bat"] = "/usr/bin/bat"

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "bat", Args: []string{"--help"}})
	require.NoError(t, err)

	assert.Empty(t, f.registry.calls)
	assert.Empty(t, f.installer.calls)
	require.Len(t, f.executor.calls, 1)
	assert.Equal(t, execCall{path: "/usr/bin/bat", args: []string{"--help"}}, f.executor.calls[0])
}

func TestRun_UnspecifiedInstallsLatestOnMiss(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "bat"})
	require.NoError(t, err)

	require.Len(t, f.registry.calls, 1)
	assert.Nil(t, f.registry.calls[0].req)
	require.Len(t, f.installer.calls, 1)
	assert.Equal(t, "bat@2.0.0", f.installer.calls[0].target.Descriptor())
	assert.Equal(t, "/cargox/bat-2.0.0", f.executor.calls[0].path)
}

func TestRun_UnspecifiedReusesNewestCachedVersion(t *testing.T) {
	f := newFixture()
	f.locator.installed = []paths.Installed{
		{Binary: "bat", Version: semver.MustParse("0.9.0"), Path: "/cargox/bat-0.9.0"},
		{Binary: "bat", Version: semver.MustParse("0.24.0"), Path: "/cargox/bat-0.24.0"},
		{Binary: "bat", Version: semver.MustParse("0.10.0"), Path: "/cargox/bat-0.10.0"},
		{Binary: "batman", Version: semver.MustParse("9.0.0"), Path: "/cargox/batman-9.0.0"},
	}

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "bat"})
	require.NoError(t, err)

	assert.Empty(t, f.registry.calls)
	assert.Empty(t, f.installer.calls)
	require.Len(t, f.executor.calls, 1)
	assert.Equal(t, "/cargox/bat-0.24.0", f.executor.calls[0].path)
}

func TestRun_UnspecifiedForceReinstalls(t *testing.T) {
	f := newFixture()
	f.locator.onPath["bat"] = "/usr/bin/bat"

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "bat", Options: installer.Options{Force: true}})
	require.NoError(t, err)

	require.Len(t, f.registry.calls, 1)
	require.Len(t, f.installer.calls, 1)
	assert.True(t, f.installer.calls[0].opts.Force)
	assert.Equal(t, "/cargox/bat-2.0.0", f.executor.calls[0].path)
}

func TestRun_LatestAlwaysResolves(t *testing.T) {
	f := newFixture()
	f.locator.onPath["bat"] = "/usr/bin/bat"

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "bat@latest"})
	require.NoError(t, err)

	require.Len(t, f.registry.calls, 1)
	assert.Nil(t, f.registry.calls[0].req)
	assert.Equal(t, "/cargox/bat-2.0.0", f.executor.calls[0].path)
}

func TestRun_RangeResolvesWithConstraint(t *testing.T) {
	f := newFixture()
	f.registry.version = "0.24.3"

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "bat@^0.24"})
	require.NoError(t, err)

	require.Len(t, f.registry.calls, 1)
	req := f.registry.calls[0].req
	require.NotNil(t, req)
	assert.Equal(t, "^0.24", req.String())
	assert.True(t, req.Matches(semver.MustParse("0.24.9")))
	assert.Equal(t, "bat@0.24.3", f.installer.calls[0].target.Descriptor())
}

func TestRun_ExactPinUsesCacheWithoutRegistry(t *testing.T) {
	f := newFixture()
	f.locator.versioned["bat-0.24.0"] = "/cargox/bat-0.24.0"

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "bat@0.24.0"})
	require.NoError(t, err)

	assert.Empty(t, f.registry.calls)
	assert.Empty(t, f.installer.calls)
	assert.Equal(t, "/cargox/bat-0.24.0", f.executor.calls[0].path)
}

func TestRun_ExactPinMissResolves(t *testing.T) {
	f := newFixture()
	f.registry.version = "0.24.0"

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "bat@0.24.0"})
	require.NoError(t, err)

	require.Len(t, f.registry.calls, 1)
	require.Len(t, f.installer.calls, 1)
	assert.Equal(t, "bat@0.24.0", f.installer.calls[0].target.Descriptor())
}

func TestRun_BinOverride(t *testing.T) {
	f := newFixture()
	f.locator.onPath["rg"] = "/usr/bin/rg"

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "ripgrep", Options: installer.Options{Bin: "rg"}})
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/rg", f.executor.calls[0].path)
}

func TestRun_InvalidSpec(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "foo@bar@baz"})
	require.Error(t, err)
	assert.ErrorIs(t, err, target.ErrInvalidSpec)
	assert.Empty(t, f.registry.calls)
	assert.Empty(t, f.executor.calls)
}

func TestRun_RegistryError(t *testing.T) {
	f := newFixture()
	f.registry.err = fmt.Errorf("%w: ^9 for bat", registry.ErrNoMatchingVersion)

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "bat@^9"})
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrNoMatchingVersion)
	assert.Contains(t, err.Error(), "failed to resolve version for bat@^9")
	assert.Empty(t, f.installer.calls)
	assert.Empty(t, f.executor.calls)
}

func TestRun_InstallError(t *testing.T) {
	f := newFixture()
	f.installer.err = &installer.ToolError{Tool: "cargo-binstall", Code: 1}

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "bat@latest"})
	require.Error(t, err)
	assert.ErrorIs(t, err, installer.ErrExternalToolFailed)
	assert.Contains(t, err.Error(), "failed to install bat@2.0.0")
	assert.Empty(t, f.executor.calls)
}

func TestRun_ExitStatusPropagates(t *testing.T) {
	f := newFixture()
	f.locator.onPath["bat"] = "/usr/bin/bat"
	f.executor.status = executor.Status{Code: 3}

	status, err := f.pipeline.Run(context.Background(), Request{Spec: "bat"})
	require.NoError(t, err)
	assert.Equal(t, executor.Status{Code: 3}, status)
}

func TestRun_SpawnError(t *testing.T) {
	f := newFixture()
	f.locator.onPath["bat"] = "/usr/bin/bat"
	f.executor.err = fmt.Errorf("%w: /usr/bin/bat: permission denied", executor.ErrSpawnFailed)

	_, err := f.pipeline.Run(context.Background(), Request{Spec: "bat"})
	assert.ErrorIs(t, err, executor.ErrSpawnFailed)
}

// countingRunner fails the test if any installer tool is invoked.
type countingRunner struct {
	t     *testing.T
	calls int
}

func (r *countingRunner) Run(context.Context, installer.Command) (installer.Result, error) {
	r.calls++
	r.t.Errorf("installer tool must not run")
	return installer.Result{}, nil
}

type failingRegistry struct{ t *testing.T }

func (r failingRegistry) Resolve(context.Context, string, registry.Matcher) (*semver.Version, error) {
	r.t.Errorf("registry must not be contacted")
	return nil, errors.New("unexpected registry call")
}

func TestRun_CachedExactPinEndToEnd(t *testing.T) {
	root := t.TempDir()
	cached := filepath.Join(root, "tool-1.2.3")
	require.NoError(t, os.WriteFile(cached, []byte("#!/bin/sh\n"), 0o755))

	resolver := &paths.Resolver{
		Getenv: func(k string) string {
			if k == "CARGOX_INSTALL_DIR" {
				return root
			}
			return ""
		},
		LookPath:    func(string) (string, error) { return "", errors.New("not found") },
		UserHomeDir: func() (string, error) { return "", errors.New("no home") },
		GOOS:        "linux",
	}
	runner := &countingRunner{t: t}
	orch := installer.New(resolver,
		installer.WithRunner(runner),
		installer.WithLookPath(func(string) (string, error) { return "/usr/bin/cargo-binstall", nil }),
	)
	exec := &fakeExecutor{}
	p := New(failingRegistry{t: t}, resolver, orch, exec)

	_, err := p.Run(context.Background(), Request{Spec: "tool@1.2.3", Args: []string{"x"}})
	require.NoError(t, err)

	assert.Zero(t, runner.calls)
	require.Len(t, exec.calls, 1)
	assert.Equal(t, cached, exec.calls[0].path)
	assert.Equal(t, []string{"x"}, exec.calls[0].args)
}

func TestRun_UnspecifiedUsesCachedVersionOffline(t *testing.T) {
	root := t.TempDir()
	cached := filepath.Join(root, "tool-1.0.0")
	require.NoError(t, os.WriteFile(cached, []byte("#!/bin/sh\n"), 0o755))

	resolver := &paths.Resolver{
		Getenv: func(k string) string {
			if k == "CARGOX_INSTALL_DIR" {
				return root
			}
			return ""
		},
		LookPath:    func(string) (string, error) { return "", errors.New("not found") },
		UserHomeDir: func() (string, error) { return "", errors.New("no home") },
		GOOS:        "linux",
	}
	inst := &fakeInstaller{}
	exec := &fakeExecutor{}
	p := New(failingRegistry{t: t}, resolver, inst, exec)

	_, err := p.Run(context.Background(), Request{Spec: "tool"})
	require.NoError(t, err)

	assert.Empty(t, inst.calls)
	require.Len(t, exec.calls, 1)
	assert.Equal(t, cached, exec.calls[0].path)
}
