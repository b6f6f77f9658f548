package provision

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/camlaunch/internal/execx"
)

// Venv manages the isolated Python environment. An environment is either
// fully valid or it gets destroyed and recreated; a half-broken venv is never
// patched in place.
type Venv struct {
	runner   execx.Runner
	elevator Elevator
	root     string
	out      io.Writer
}

// NewVenv creates a manager for the virtualenv at root.
func NewVenv(runner execx.Runner, elevator Elevator, root string, out io.Writer) *Venv {
	return &Venv{runner: runner, elevator: elevator, root: root, out: out}
}

// Root returns the environment root path.
func (v *Venv) Root() string { return v.root }

// Pip returns the package-manager entry point inside the environment.
func (v *Venv) Pip() string { return filepath.Join(v.root, "bin", "pip") }

// Python returns the interpreter inside the environment.
func (v *Venv) Python() string { return filepath.Join(v.root, "bin", "python") }

// Valid reports whether the environment is fully usable: root present, pip
// present, and pip answering a trivial query.
func (v *Venv) Valid(ctx context.Context) bool {
	if fi, err := os.Stat(v.root); err != nil || !fi.IsDir() {
		return false
	}
	if _, err := os.Stat(v.Pip()); err != nil {
		return false
	}
	return v.runner.Run(ctx, execx.Cmd{Name: v.Pip(), Args: []string{"--version"}}) == nil
}

// Ensure makes the environment valid, recreating it if necessary. A failed
// creation triggers one elevated install of the venv capability and exactly
// one retry; a still-invalid environment after that is fatal.
func (v *Venv) Ensure(ctx context.Context) error {
	if v.Valid(ctx) {
		return nil
	}

	if _, err := os.Stat(v.root); err == nil {
		fmt.Fprintf(v.out, "Environment at %s is unusable, recreating it...\n", v.root)
		if err := os.RemoveAll(v.root); err != nil {
			return fmt.Errorf("failed to remove broken environment: %w", err)
		}
	} else {
		fmt.Fprintf(v.out, "Creating Python environment at %s...\n", v.root)
	}

	if err := v.create(ctx); err != nil {
		fmt.Fprintln(v.out, "Environment creation failed, installing python3-venv...")
		if elevErr := v.elevator.RunElevated(ctx, "apt-get install -y python3-venv"); elevErr != nil {
			return fmt.Errorf("failed to install python3-venv: %w", elevErr)
		}
		if err := v.create(ctx); err != nil {
			return fmt.Errorf("environment creation failed after installing python3-venv; run manually: python3 -m venv %s (%w)", v.root, err)
		}
	}

	// Creation exiting zero is not enough: the entry point must actually work.
	if !v.Valid(ctx) {
		return fmt.Errorf("environment at %s is still unusable after creation; remove it and run: python3 -m venv %s", v.root, v.root)
	}
	return nil
}

// create runs python3 -m venv. A leftover root from a failed attempt is
// cleared first so the retry starts clean.
func (v *Venv) create(ctx context.Context) error {
	if err := os.RemoveAll(v.root); err != nil {
		return fmt.Errorf("failed to clear environment root: %w", err)
	}
	return v.runner.Run(ctx, execx.Cmd{Name: "python3", Args: []string{"-m", "venv", v.root}})
}

// Activate builds the child environment for commands that must resolve
// against the venv, then sanity-checks the activation marker against the
// expected root. A mismatch is fatal: running pip against the wrong
// environment would corrupt the system installation.
func (v *Venv) Activate(base []string) ([]string, error) {
	env := make([]string, 0, len(base)+2)
	path := ""
	for _, kv := range base {
		switch {
		case strings.HasPrefix(kv, "VIRTUAL_ENV="):
			continue
		case strings.HasPrefix(kv, "PATH="):
			path = strings.TrimPrefix(kv, "PATH=")
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "VIRTUAL_ENV="+v.root)
	env = append(env, "PATH="+filepath.Join(v.root, "bin")+string(os.PathListSeparator)+path)

	if got := lookupEnv(env, "VIRTUAL_ENV"); got != v.root {
		return nil, fmt.Errorf("environment activation mismatch: VIRTUAL_ENV=%q, expected %q", got, v.root)
	}
	return env, nil
}

func lookupEnv(env []string, key string) string {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimPrefix(kv, prefix)
		}
	}
	return ""
}
