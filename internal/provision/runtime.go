package provision

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/example/camlaunch/internal/execx"
)

// Runtime ensures the base Python 3 runtime and its companions are installed.
type Runtime struct {
	runner   execx.Runner
	elevator Elevator
	packages []string
	out      io.Writer
}

// NewRuntime creates a Runtime provisioner installing the given system
// packages when python3 is missing.
func NewRuntime(runner execx.Runner, elevator Elevator, packages []string, out io.Writer) *Runtime {
	return &Runtime{runner: runner, elevator: elevator, packages: packages, out: out}
}

// Ensure verifies python3 is resolvable, installing it via the elevator if
// not. Returns the detected version string on success.
func (r *Runtime) Ensure(ctx context.Context) (string, error) {
	pkgs := strings.Join(r.packages, " ")
	installCmd := fmt.Sprintf("apt-get update && apt-get install -y %s", pkgs)

	if _, err := r.runner.LookPath("python3"); err != nil {
		fmt.Fprintln(r.out, "Python 3 not found, installing it now...")
		if err := r.elevator.RunElevated(ctx, installCmd); err != nil {
			return "", fmt.Errorf("failed to install the Python runtime: %w", err)
		}
		if _, err := r.runner.LookPath("python3"); err != nil {
			return "", fmt.Errorf("python3 is still missing after installation; run manually: sudo %s", installCmd)
		}
	}

	version, err := r.runner.Output(ctx, execx.Cmd{Name: "python3", Args: []string{"--version"}})
	if err != nil {
		return "", fmt.Errorf("python3 is present but not runnable: %w", err)
	}
	return strings.TrimSpace(version), nil
}
