package provision

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/example/camlaunch/internal/execx"
)

// Installer puts the required packages into the isolated environment.
type Installer struct {
	runner        execx.Runner
	elevator      Elevator
	venv          *Venv
	packages      []string
	buildPackages []string
	out           io.Writer
	errw          io.Writer
}

// NewInstaller creates a dependency installer for the given venv.
func NewInstaller(runner execx.Runner, elevator Elevator, venv *Venv, packages, buildPackages []string, out, errw io.Writer) *Installer {
	return &Installer{
		runner:        runner,
		elevator:      elevator,
		venv:          venv,
		packages:      packages,
		buildPackages: buildPackages,
		out:           out,
		errw:          errw,
	}
}

// Ensure upgrades pip (best effort) and installs the required packages with
// the activated environment. On failure it installs the system build
// prerequisites via the elevator and retries exactly once.
func (i *Installer) Ensure(ctx context.Context, env []string) error {
	// A stale pip is a warning, not a blocker.
	if err := i.pip(ctx, env, "install", "--upgrade", "pip"); err != nil {
		fmt.Fprintf(i.errw, "%s pip self-upgrade failed, continuing with the current version: %v\n",
			color.New(color.FgYellow).Sprint("!"), err)
	}

	installArgs := append([]string{"install"}, i.packages...)
	if err := i.pip(ctx, env, installArgs...); err == nil {
		return nil
	}

	fmt.Fprintln(i.out, "Package installation failed, installing build prerequisites...")
	prereqCmd := "apt-get install -y " + strings.Join(i.buildPackages, " ")
	if err := i.elevator.RunElevated(ctx, prereqCmd); err != nil {
		return fmt.Errorf("failed to install build prerequisites: %w", err)
	}

	if err := i.pip(ctx, env, installArgs...); err != nil {
		return fmt.Errorf("package installation failed after retry; run manually: %s install %s (%w)",
			i.venv.Pip(), strings.Join(i.packages, " "), err)
	}
	return nil
}

func (i *Installer) pip(ctx context.Context, env []string, args ...string) error {
	return i.runner.Run(ctx, execx.Cmd{
		Name:   i.venv.Pip(),
		Args:   args,
		Env:    env,
		Stdout: i.out,
		Stderr: i.errw,
	})
}
