// Package execx abstracts subprocess execution so the engine packages can
// be tested without spawning git or rsync.
package execx

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result carries the captured output of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes external commands. Run blocks until the command exits or
// the context is done.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
	// RunShell executes a command line through the shell. Used for
	// user-configured preparation commands.
	RunShell(ctx context.Context, command string) (Result, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return run(exec.CommandContext(ctx, name, args...))
}

func (ExecRunner) RunShell(ctx context.Context, command string) (Result, error) {
	return run(exec.CommandContext(ctx, "/bin/sh", "-c", command))
}

func run(cmd *exec.Cmd) (Result, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		// A nonzero exit is a reportable outcome, not a transport error.
		return res, nil
	}

	res.ExitCode = 127
	return res, err
}
