package provision

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/camlaunch/internal/execx"
)

type fakeElevator struct {
	commands []string
	err      error
	onRun    func(command string)
}

func (e *fakeElevator) RunElevated(ctx context.Context, command string) error {
	e.commands = append(e.commands, command)
	if e.err != nil {
		return e.err
	}
	if e.onRun != nil {
		e.onRun(command)
	}
	return nil
}

var runtimePackages = []string{"python3", "python3-pip", "python3-venv", "python3-dev"}

func TestRuntimeAlreadyPresent(t *testing.T) {
	fake := &execx.Fake{
		Paths: map[string]string{"python3": "/usr/bin/python3"},
		Handler: func(c execx.Cmd) (string, error) {
			if execx.Key(c) == "python3 --version" {
				return "Python 3.10.12\n", nil
			}
			return "", errors.New("unexpected command")
		},
	}
	elevator := &fakeElevator{}
	r := NewRuntime(fake, elevator, runtimePackages, &bytes.Buffer{})

	version, err := r.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if version != "Python 3.10.12" {
		t.Errorf("version = %q, want %q", version, "Python 3.10.12")
	}
	if len(elevator.commands) != 0 {
		t.Errorf("no elevation expected, got %v", elevator.commands)
	}
}

func TestRuntimeInstalledWhenMissing(t *testing.T) {
	fake := &execx.Fake{
		Paths: map[string]string{},
		Handler: func(c execx.Cmd) (string, error) {
			if execx.Key(c) == "python3 --version" {
				return "Python 3.10.12\n", nil
			}
			return "", nil
		},
	}
	elevator := &fakeElevator{onRun: func(command string) {
		fake.Paths["python3"] = "/usr/bin/python3"
	}}
	r := NewRuntime(fake, elevator, runtimePackages, &bytes.Buffer{})

	version, err := r.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if version == "" {
		t.Error("expected a version string after installation")
	}
	if len(elevator.commands) != 1 {
		t.Fatalf("expected exactly one elevated install, got %v", elevator.commands)
	}
	if !strings.Contains(elevator.commands[0], "python3-venv") {
		t.Errorf("install command should carry the full package list, got %q", elevator.commands[0])
	}
}

func TestRuntimeStillMissingIsFatal(t *testing.T) {
	fake := &execx.Fake{Paths: map[string]string{}}
	elevator := &fakeElevator{} // succeeds, but installs nothing
	r := NewRuntime(fake, elevator, runtimePackages, &bytes.Buffer{})

	_, err := r.Ensure(context.Background())
	if err == nil {
		t.Fatal("expected a fatal error when python3 never appears")
	}
	if !strings.Contains(err.Error(), "sudo apt-get") {
		t.Errorf("fatal error should carry the manual remediation command, got %q", err)
	}
}

func TestRuntimeElevationFailureIsFatal(t *testing.T) {
	fake := &execx.Fake{Paths: map[string]string{}}
	elevator := &fakeElevator{err: errors.New("no mechanism")}
	r := NewRuntime(fake, elevator, runtimePackages, &bytes.Buffer{})

	if _, err := r.Ensure(context.Background()); err == nil {
		t.Fatal("expected an error when elevation is unavailable")
	}
}
