package paths

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cargox-labs/cargox/internal/branding"
)

// BinDir is the subdirectory external installers deposit binaries into.
const BinDir = "bin"

// DirPerm is used for every directory cargox creates.
const DirPerm os.FileMode = 0o755

var (
	// ErrNoInstallDirectory means no install root could be determined.
	ErrNoInstallDirectory = errors.New("unable to determine install directory")
	// ErrBinaryNotFound means a lookup missed; callers treat it as "not installed".
	ErrBinaryNotFound = errors.New("binary not found")
)

// Resolver computes install-root locations. The zero value is not usable;
// call NewResolver.
type Resolver struct {
	// Getenv reads environment variables.
	Getenv func(string) string
	// LookPath searches the system PATH.
	LookPath func(string) (string, error)
	// UserHomeDir returns the current user's home directory.
	UserHomeDir func() (string, error)
	// GOOS selects the platform conventions.
	GOOS string
}

// NewResolver returns a Resolver backed by the real process environment.
func NewResolver() *Resolver {
	return &Resolver{
		Getenv:      os.Getenv,
		LookPath:    exec.LookPath,
		UserHomeDir: os.UserHomeDir,
		GOOS:        runtime.GOOS,
	}
}

// OverrideEnvVar is the only environment variable that moves the install root.
func OverrideEnvVar() string {
	return branding.EnvVar("INSTALL_DIR")
}

// InstallDir returns the install root, creating it if needed.
//
// Resolution order:
//  1. CARGOX_INSTALL_DIR
//  2. the platform data directory joined with "cargox"
//  3. ~/.local/share/cargox
func (r *Resolver) InstallDir() (string, error) {
	if v := r.Getenv(OverrideEnvVar()); v != "" {
		return v, nil
	}

	if dataDir := r.platformDataDir(); dataDir != "" {
		dir := filepath.Join(dataDir, branding.DataDir())
		if err := os.MkdirAll(dir, DirPerm); err != nil {
			return "", fmt.Errorf("creating data directory %s: %w", dir, err)
		}
		return dir, nil
	}

	if home := r.homeDir(); home != "" {
		dir := filepath.Join(home, ".local", "share", branding.DataDir())
		if err := os.MkdirAll(dir, DirPerm); err != nil {
			return "", fmt.Errorf("creating fallback directory %s: %w", dir, err)
		}
		return dir, nil
	}

	return "", ErrNoInstallDirectory
}

// platformDataDir returns the per-user application data directory for the
// platform, or "" when it cannot be determined.
func (r *Resolver) platformDataDir() string {
	switch r.GOOS {
	case "windows":
		if v := r.Getenv("LOCALAPPDATA"); v != "" {
			return v
		}
		return r.Getenv("APPDATA")
	case "darwin":
		if home := r.homeDir(); home != "" {
			return filepath.Join(home, "Library", "Application Support")
		}
		return ""
	default:
		if v := r.Getenv("XDG_DATA_HOME"); v != "" && filepath.IsAbs(v) {
			return v
		}
		if home := r.homeDir(); home != "" {
			return filepath.Join(home, ".local", "share")
		}
		return ""
	}
}

func (r *Resolver) homeDir() string {
	if r.UserHomeDir != nil {
		if home, err := r.UserHomeDir(); err == nil && home != "" {
			return home
		}
	}
	if v := r.Getenv("HOME"); v != "" {
		return v
	}
	return r.Getenv("USERPROFILE")
}

// EnsureBinDir creates <root>/bin and returns the install root.
func (r *Resolver) EnsureBinDir() (string, error) {
	root, err := r.InstallDir()
	if err != nil {
		return "", err
	}
	bin := filepath.Join(root, BinDir)
	if err := os.MkdirAll(bin, DirPerm); err != nil {
		return "", fmt.Errorf("creating %s: %w", bin, err)
	}
	return root, nil
}

// CandidateBinDirs returns the install-root directories searched after PATH.
func (r *Resolver) CandidateBinDirs() ([]string, error) {
	root, err := r.InstallDir()
	if err != nil {
		return nil, err
	}
	return []string{filepath.Join(root, BinDir), root}, nil
}

// ExecutableName appends the platform executable suffix where one is required.
func (r *Resolver) ExecutableName(name string) string {
	if r.GOOS == "windows" && filepath.Ext(name) != ".exe" {
		return name + ".exe"
	}
	return name
}

// candidateNames returns the file names probed for name on this platform.
func (r *Resolver) candidateNames(name string) []string {
	if exe := r.ExecutableName(name); exe != name {
		return []string{name, exe}
	}
	return []string{name}
}

// FindBinary looks for an unversioned binary: PATH first, then <root>/bin,
// then <root>. A miss wraps ErrBinaryNotFound.
func (r *Resolver) FindBinary(name string) (string, error) {
	if p, err := r.LookPath(name); err == nil {
		return p, nil
	}

	dirs, err := r.CandidateBinDirs()
	if err != nil {
		return "", err
	}
	for _, dir := range dirs {
		for _, candidate := range r.candidateNames(name) {
			p := filepath.Join(dir, candidate)
			if ok, _ := FileExists(p); ok {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s is not on PATH or in %s", ErrBinaryNotFound, name, dirs[len(dirs)-1])
}

// VersionedBinaryPath returns <root>/<binary>-<version>, with the platform
// executable suffix. The path depends only on binary and version.
func (r *Resolver) VersionedBinaryPath(binary string, version *semver.Version) (string, error) {
	root, err := r.InstallDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, r.ExecutableName(binary+"-"+version.String())), nil
}

// FindVersioned returns the stored path of binary at version, or an error
// wrapping ErrBinaryNotFound when that version is not installed.
func (r *Resolver) FindVersioned(binary string, version *semver.Version) (string, error) {
	p, err := r.VersionedBinaryPath(binary, version)
	if err != nil {
		return "", err
	}
	ok, err := FileExists(p)
	if err != nil {
		return "", fmt.Errorf("checking %s: %w", p, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s@%s is not installed at %s", ErrBinaryNotFound, binary, version, p)
	}
	return p, nil
}

// Installed describes one versioned binary stored in the install root.
type Installed struct {
	Binary  string
	Version *semver.Version
	Path    string
}

// ListVersioned enumerates the <binary>-<version> entries in the install
// root, sorted by binary then ascending version. Entries whose suffix is not
// a version are skipped.
func (r *Resolver) ListVersioned() ([]Installed, error) {
	root, err := r.InstallDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	var out []Installed
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if r.GOOS == "windows" {
			name = strings.TrimSuffix(name, ".exe")
		}
		binary, version, ok := splitVersioned(name)
		if !ok {
			continue
		}
		out = append(out, Installed{Binary: binary, Version: version, Path: filepath.Join(root, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Binary != out[j].Binary {
			return out[i].Binary < out[j].Binary
		}
		return out[i].Version.LessThan(out[j].Version)
	})
	return out, nil
}

// splitVersioned splits "name-1.2.3" at the first hyphen whose suffix is a
// strict semantic version, so hyphenated names and prereleases both survive.
func splitVersioned(name string) (string, *semver.Version, bool) {
	for i := 0; i < len(name); i++ {
		if name[i] != '-' || i == 0 {
			continue
		}
		if v, err := semver.StrictNewVersion(name[i+1:]); err == nil {
			return name[:i], v, true
		}
	}
	return "", nil, false
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
