package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
)

// ErrSpawnFailed means the binary could not be started.
var ErrSpawnFailed = errors.New("failed to spawn process")

// Status is how the child exited.
type Status struct {
	// Code is the exit code; meaningful only when Signaled is false.
	Code int
	// Signaled is set when the child was terminated by a signal.
	Signaled bool
}

// Executor spawns binaries. Nil streams default to the process's own.
type Executor struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Env is the child environment; nil inherits the current one.
	Env []string
}

// Run executes path with args using the default Executor.
func Run(path string, args []string) (Status, error) {
	return (&Executor{}).Run(path, args)
}

// Run starts path with args and waits for it to exit. Interrupts delivered
// to this process while the child runs are ignored here; the terminal sends
// them to the child too, and its status is what gets reported.
func (e *Executor) Run(path string, args []string) (Status, error) {
	cmd := exec.Command(path, args...)
	cmd.Env = e.Env
	cmd.Stdin = e.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = e.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return Status{}, fmt.Errorf("%w: %s: %v", ErrSpawnFailed, path, err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	err := cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Status{}, fmt.Errorf("waiting for %s: %w", path, err)
		}
	}
	return statusOf(cmd.ProcessState), nil
}

func statusOf(ps *os.ProcessState) Status {
	if ps == nil {
		return Status{Code: -1, Signaled: true}
	}
	code := ps.ExitCode()
	if code < 0 {
		return Status{Code: code, Signaled: true}
	}
	return Status{Code: code}
}
