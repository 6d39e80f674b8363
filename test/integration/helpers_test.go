//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/cargox-labs/cargox/internal/executor"
	"github.com/cargox-labs/cargox/internal/installer"
	"github.com/cargox-labs/cargox/internal/paths"
	"github.com/cargox-labs/cargox/internal/pipeline"
	"github.com/cargox-labs/cargox/internal/registry"
)

const (
	fixtureCrate    = "cargox-fixture-tool"
	fixtureBinstall = "cargox-fixture-binstall"
)

// fakeCargo records its arguments and sandboxed environment, then behaves
// like a successful install by writing $CARGO_INSTALL_ROOT/bin/$FAKE_BINARY.
const fakeCargo = `#!/bin/sh
echo "$*" >> "$FAKE_CARGO_LOG"
env | grep -E '^(CARGO_|RUSTUP_|BINSTALL_)' | sort > "$FAKE_CARGO_ENV"
if [ -n "$FAKE_CARGO_EXIT" ]; then
  exit "$FAKE_CARGO_EXIT"
fi
mkdir -p "$CARGO_INSTALL_ROOT/bin"
printf '#!/bin/sh\necho "%s $*"\n' "$FAKE_OUTPUT" > "$CARGO_INSTALL_ROOT/bin/$FAKE_BINARY"
chmod +x "$CARGO_INSTALL_ROOT/bin/$FAKE_BINARY"
`

// testEnv holds the isolated directories and components of one test.
type testEnv struct {
	InstallDir string
	ToolsDir   string
	CargoLog   string
	CargoEnv   string
	Cargo      string
	Registry   *httptest.Server
	Stdout     *bytes.Buffer
}

// setupTestEnv creates an isolated install root, a fake cargo and a registry
// serving versions for fixtureCrate.
func setupTestEnv(t *testing.T, versions string) *testEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake cargo is a shell script")
	}

	env := &testEnv{
		InstallDir: t.TempDir(),
		ToolsDir:   t.TempDir(),
		Stdout:     &bytes.Buffer{},
	}
	logDir := t.TempDir()
	env.CargoLog = filepath.Join(logDir, "cargo.log")
	env.CargoEnv = filepath.Join(logDir, "cargo.env")
	env.Cargo = filepath.Join(env.ToolsDir, "cargo")
	writeExecutable(t, env.Cargo, fakeCargo)

	t.Setenv("CARGOX_INSTALL_DIR", env.InstallDir)
	t.Setenv("FAKE_CARGO_LOG", env.CargoLog)
	t.Setenv("FAKE_CARGO_ENV", env.CargoEnv)
	t.Setenv("FAKE_BINARY", fixtureCrate)
	t.Setenv("FAKE_OUTPUT", "fresh")
	t.Setenv("FAKE_CARGO_EXIT", "")
	t.Setenv("CARGO_HOME", filepath.Join(logDir, "ambient-cargo-home"))
	t.Setenv("RUSTUP_TOOLCHAIN", "nightly")
	t.Setenv("PATH", env.ToolsDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	env.Registry = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/crates/"+fixtureCrate {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"versions": [%s]}`, versions)
	}))
	t.Cleanup(env.Registry.Close)

	return env
}

// withBinstall puts a cargo-binstall stand-in on PATH.
func (e *testEnv) withBinstall(t *testing.T) {
	t.Helper()
	writeExecutable(t, filepath.Join(e.ToolsDir, fixtureBinstall), "#!/bin/sh\nexit 0\n")
}

// run executes spec through the real pipeline.
func (e *testEnv) run(t *testing.T, spec string, opts installer.Options, args ...string) (executor.Status, error) {
	t.Helper()
	e.Stdout.Reset()
	resolver := paths.NewResolver()
	client := registry.New(registry.WithBaseURL(e.Registry.URL))
	orch := installer.New(resolver,
		installer.WithCargoTool(e.Cargo),
		installer.WithBinstallTool(fixtureBinstall),
		installer.WithRunner(&installer.ExecRunner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}),
	)
	exec := &executor.Executor{Stdout: e.Stdout, Stderr: &bytes.Buffer{}}
	p := pipeline.New(client, resolver, orch, exec)
	return p.Run(context.Background(), pipeline.Request{Spec: spec, Args: args, Options: opts})
}

// cargoCalls returns the recorded fake cargo invocations.
func (e *testEnv) cargoCalls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(e.CargoLog)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func writeExecutable(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist: %s", path)
	}
}

func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected file to not exist: %s", path)
	}
}

func assertFileContains(t *testing.T, path, substr string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if !strings.Contains(string(data), substr) {
		t.Errorf("expected %s to contain %q, got:\n%s", path, substr, data)
	}
}
