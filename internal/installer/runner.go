package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
)

// ErrExternalToolFailed is matched by every *ToolError.
var ErrExternalToolFailed = errors.New("external tool failed")

// ToolError reports an installer tool that ran but did not succeed.
type ToolError struct {
	Tool     string
	Code     int
	Signaled bool
}

func (e *ToolError) Error() string {
	status := strconv.Itoa(e.Code)
	if e.Signaled {
		status = "signal"
	}
	return fmt.Sprintf("%s exited with status code %s", e.Tool, status)
}

// Is makes errors.Is(err, ErrExternalToolFailed) hold.
func (e *ToolError) Is(target error) bool { return target == ErrExternalToolFailed }

// Command is one external tool invocation.
type Command struct {
	Path string
	Args []string
	Env  []string
}

// Result is the exit status of a finished command.
type Result struct {
	Code     int
	Signaled bool
}

// Success reports a normal zero exit.
func (r Result) Success() bool { return !r.Signaled && r.Code == 0 }

// Runner executes installer tools. A non-nil error means the tool could not
// be started; a tool that ran and failed is reported through Result.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands as child processes with the given streams.
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns an ExecRunner wired to the process's own streams.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run starts cmd and waits for it.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Env = cmd.Env
	c.Stdin = r.Stdin
	c.Stdout = r.Stdout
	c.Stderr = r.Stderr

	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return statusOf(exitErr.ProcessState), nil
		}
		return Result{}, err
	}
	return statusOf(c.ProcessState), nil
}

func statusOf(ps *os.ProcessState) Result {
	if ps == nil {
		return Result{Code: -1, Signaled: true}
	}
	code := ps.ExitCode()
	if code < 0 {
		return Result{Code: code, Signaled: true}
	}
	return Result{Code: code}
}
