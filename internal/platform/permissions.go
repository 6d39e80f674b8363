package platform

import (
	"os"
	"runtime"
)

// ExecutablePerm is the mode given to installed binaries.
const ExecutablePerm os.FileMode = 0o755

// Chmod sets file permissions. On Windows this is a no-op.
func Chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}

// MakeExecutable sets ExecutablePerm on path.
func MakeExecutable(path string) error {
	return Chmod(path, ExecutablePerm)
}
