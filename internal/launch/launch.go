// Package launch hands control to the GUI collaborator and waits for it.
package launch

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/camlaunch/internal/execx"
)

// Supervisor runs the GUI process inside the activated environment.
type Supervisor struct {
	runner execx.Runner
	out    io.Writer
	errw   io.Writer
	stdin  io.Reader
}

// NewSupervisor creates a launch supervisor.
func NewSupervisor(runner execx.Runner, stdin io.Reader, out, errw io.Writer) *Supervisor {
	return &Supervisor{runner: runner, out: out, errw: errw, stdin: stdin}
}

// Run starts the GUI script with the given interpreter and activated
// environment, blocks until it exits, and prints a closing banner. The GUI
// is opaque: any exit status is accepted and none is propagated.
func (s *Supervisor) Run(ctx context.Context, python, script, dir string, env []string) {
	fmt.Fprintf(s.out, "%s Starting the camera configuration GUI...\n",
		color.New(color.FgGreen).Sprint("✓"))

	err := s.runner.Run(ctx, execx.Cmd{
		Name:   python,
		Args:   []string{script},
		Dir:    dir,
		Env:    env,
		Stdin:  s.stdin,
		Stdout: s.out,
		Stderr: s.errw,
	})
	if err != nil {
		fmt.Fprintf(s.out, "GUI exited with an error: %v\n", err)
	}
	fmt.Fprintln(s.out, "Camera configuration GUI closed.")
}
