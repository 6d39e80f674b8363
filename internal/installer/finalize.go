package installer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/cargox-labs/cargox/internal/paths"
	"github.com/cargox-labs/cargox/internal/platform"
)

// ErrInstallationIncomplete means the tool succeeded but left no binary
// where one was expected.
var ErrInstallationIncomplete = errors.New("installation incomplete")

// finalize moves <root>/bin/<binary> to the versioned path, replacing any
// previous install of the same version.
func (o *Orchestrator) finalize(root, binary string, version *semver.Version) (string, error) {
	installed, err := o.installedBinary(root, binary)
	if err != nil {
		return "", err
	}

	dest, err := o.layout.VersionedBinaryPath(binary, version)
	if err != nil {
		return "", err
	}

	// Rename replaces dest in one step, so a failed move keeps the old install.
	if err := o.rename(installed, dest); err != nil {
		if copyErr := o.replaceByCopy(installed, dest); copyErr != nil {
			return "", fmt.Errorf("failed to move installed binary from %s to %s: %w", installed, dest, copyErr)
		}
		if err := os.Remove(installed); err != nil {
			o.logger.Debug("failed to remove installer output", "path", installed, "err", err)
		}
	}

	if err := platform.MakeExecutable(dest); err != nil {
		return "", fmt.Errorf("setting permissions on %s: %w", dest, err)
	}

	o.logger.Debug("finalized install", "from", installed, "to", dest)
	return dest, nil
}

// installedBinary finds the file the tool produced under <root>/bin.
func (o *Orchestrator) installedBinary(root, binary string) (string, error) {
	binDir := filepath.Join(root, paths.BinDir)
	candidate := filepath.Join(binDir, binary)
	names := []string{candidate}
	if exe := o.layout.ExecutableName(binary); exe != binary {
		names = append(names, filepath.Join(binDir, exe))
	}
	for _, p := range names {
		if ok, _ := paths.FileExists(p); ok {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: expected installer to create %s, but it was not found", ErrInstallationIncomplete, candidate)
}

// replaceByCopy stages a copy of src beside dest and renames it over dest.
// Used when src and dest are on different filesystems.
func (o *Orchestrator) replaceByCopy(src, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := copyFile(src, tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := o.rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
