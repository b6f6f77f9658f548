package provision

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/camlaunch/internal/execx"
)

type depsWorld struct {
	pip            string
	upgradeErr     error
	installErrs    []error // consumed per attempt; nil entry means success
	installAttempt int
}

func (w *depsWorld) handler(c execx.Cmd) (string, error) {
	key := execx.Key(c)
	switch {
	case key == w.pip+" install --upgrade pip":
		return "", w.upgradeErr
	case strings.HasPrefix(key, w.pip+" install "):
		attempt := w.installAttempt
		w.installAttempt++
		if attempt < len(w.installErrs) {
			return "", w.installErrs[attempt]
		}
		return "", nil
	}
	return "", errors.New("unexpected command: " + key)
}

func newInstallerUnderTest(t *testing.T, w *depsWorld) (*Installer, *fakeElevator, []string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "venv")
	w.pip = filepath.Join(root, "bin", "pip")
	fake := &execx.Fake{Handler: w.handler}
	elevator := &fakeElevator{}
	venv := NewVenv(fake, elevator, root, &bytes.Buffer{})
	inst := NewInstaller(fake, elevator, venv, []string{"PySide6", "PyYAML"},
		[]string{"build-essential", "python3-dev"}, &bytes.Buffer{}, &bytes.Buffer{})
	env := []string{"VIRTUAL_ENV=" + root, "PATH=" + filepath.Join(root, "bin")}
	return inst, elevator, env
}

func TestInstallSucceedsFirstTry(t *testing.T) {
	w := &depsWorld{}
	inst, elevator, env := newInstallerUnderTest(t, w)

	if err := inst.Ensure(context.Background(), env); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if w.installAttempt != 1 {
		t.Errorf("expected one install attempt, got %d", w.installAttempt)
	}
	if len(elevator.commands) != 0 {
		t.Errorf("no elevation expected, got %v", elevator.commands)
	}
}

func TestPipSelfUpgradeFailureIsWarningOnly(t *testing.T) {
	w := &depsWorld{upgradeErr: errors.New("pip is out of date")}
	inst, _, env := newInstallerUnderTest(t, w)

	if err := inst.Ensure(context.Background(), env); err != nil {
		t.Fatalf("a pip self-upgrade failure must not be fatal: %v", err)
	}
	if w.installAttempt != 1 {
		t.Errorf("install should still run, got %d attempts", w.installAttempt)
	}
}

func TestInstallRetriesOnceAfterBuildPrereqs(t *testing.T) {
	w := &depsWorld{installErrs: []error{errors.New("error: command 'gcc' failed")}}
	inst, elevator, env := newInstallerUnderTest(t, w)

	if err := inst.Ensure(context.Background(), env); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if w.installAttempt != 2 {
		t.Errorf("expected initial attempt plus one retry, got %d", w.installAttempt)
	}
	if len(elevator.commands) != 1 || !strings.Contains(elevator.commands[0], "build-essential") {
		t.Errorf("expected one build-prerequisite install, got %v", elevator.commands)
	}
}

func TestInstallNeverRetriesTwice(t *testing.T) {
	w := &depsWorld{installErrs: []error{
		errors.New("build failure"),
		errors.New("build failure again"),
		errors.New("would be a third attempt"),
	}}
	inst, _, env := newInstallerUnderTest(t, w)

	err := inst.Ensure(context.Background(), env)
	if err == nil {
		t.Fatal("expected a fatal error after the retry failed")
	}
	if w.installAttempt != 2 {
		t.Errorf("a third install attempt must never happen, got %d", w.installAttempt)
	}
	if !strings.Contains(err.Error(), "pip") {
		t.Errorf("fatal error should carry the manual remediation command, got %q", err)
	}
}

func TestPrereqElevationFailureIsFatal(t *testing.T) {
	w := &depsWorld{installErrs: []error{errors.New("build failure")}}
	inst, elevator, env := newInstallerUnderTest(t, w)
	elevator.err = errors.New("no mechanism")

	if err := inst.Ensure(context.Background(), env); err == nil {
		t.Fatal("expected an error when build prerequisites cannot be installed")
	}
	if w.installAttempt != 1 {
		t.Errorf("no retry without prerequisites, got %d attempts", w.installAttempt)
	}
}
