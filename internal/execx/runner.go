// Package execx is the process-execution boundary. Every component that
// shells out (git, apt, pip, tmux, the GUI itself) takes a Runner so tests
// can script command outcomes instead of touching the host.
package execx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Cmd describes a single external command invocation.
type Cmd struct {
	Name string
	Args []string
	Dir  string
	// Env replaces the child environment when non-nil. nil inherits.
	Env []string
	// Stdin/Stdout/Stderr attach the child to the given streams when non-nil.
	// A nil Stdout/Stderr discards output (stderr is still captured into the
	// returned error).
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Runner executes external commands.
type Runner interface {
	// Run executes the command and waits for it to finish.
	Run(ctx context.Context, c Cmd) error
	// Output executes the command and returns its stdout.
	Output(ctx context.Context, c Cmd) (string, error)
	// Start launches the command without waiting for it.
	Start(ctx context.Context, c Cmd) error
	// LookPath reports the resolved path of an executable, or an error if
	// it is not on PATH.
	LookPath(name string) (string, error)
}

// OSRunner runs commands with os/exec.
type OSRunner struct{}

// NewOSRunner creates a Runner backed by os/exec.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

// Run executes the command, wiring any attached streams. Stderr is captured
// into the returned error when the caller did not attach its own writer.
func (r *OSRunner) Run(ctx context.Context, c Cmd) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout

	var stderr bytes.Buffer
	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	} else {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		if c.Stderr == nil && stderr.Len() > 0 {
			return fmt.Errorf("%w: %s", err, stderr.String())
		}
		return err
	}
	return nil
}

// Output executes the command and returns its stdout as a string.
func (r *OSRunner) Output(ctx context.Context, c Cmd) (string, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = c.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	} else {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		if c.Stderr == nil && stderr.Len() > 0 {
			return "", fmt.Errorf("%w: %s", err, stderr.String())
		}
		return "", err
	}
	return stdout.String(), nil
}

// Start launches the command detached from the caller's flow. The child is
// reaped in the background so it never becomes a zombie.
func (r *OSRunner) Start(ctx context.Context, c Cmd) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// LookPath resolves an executable on PATH.
func (r *OSRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
