package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/camlaunch/internal/config"
	"github.com/example/camlaunch/internal/elevate"
	"github.com/example/camlaunch/internal/execx"
	"github.com/example/camlaunch/internal/journal"
	"github.com/example/camlaunch/internal/runmode"
	"github.com/example/camlaunch/internal/state"
)

// repoState fakes one git working copy behind the Runner boundary.
type repoState struct {
	isRepo   bool
	local    string
	remote   string
	diff     string
	fetchErr error
	pullErr  error
	pulls    int
}

// world scripts every external command a full pipeline run needs: git for
// both working copies, apt via the elevation chain, venv creation, pip, and
// the GUI itself.
type world struct {
	t    *testing.T
	fake *execx.Fake
	cfg  *config.Config

	self    *repoState
	frigate *repoState

	pipInstalls int
	guiRuns     int
	out         bytes.Buffer
}

func newWorld(t *testing.T) *world {
	t.Helper()
	installDir := t.TempDir()
	frigateDir := filepath.Join(t.TempDir(), "frigate")
	if err := os.MkdirAll(frigateDir, 0755); err != nil {
		t.Fatal(err)
	}
	// The entry point the self-update marks executable after a pull.
	if err := os.WriteFile(filepath.Join(installDir, "camlaunch"), []byte("bin"), 0755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default(installDir)
	cfg.FrigateDir = frigateDir
	cfg.VenvDir = filepath.Join(installDir, "venv")
	cfg.DesktopScript = ""

	w := &world{
		t:       t,
		cfg:     cfg,
		self:    &repoState{isRepo: true, local: "aaa1111", remote: "aaa1111"},
		frigate: &repoState{isRepo: true, local: "ccc3333", remote: "ccc3333"},
	}
	w.fake = &execx.Fake{
		Paths:   map[string]string{"python3": "/usr/bin/python3", "sudo": "/usr/bin/sudo"},
		Handler: w.handle,
	}
	return w
}

func (w *world) repoFor(dir string) *repoState {
	if dir == w.cfg.InstallDir {
		return w.self
	}
	return w.frigate
}

func (w *world) handle(c execx.Cmd) (string, error) {
	key := execx.Key(c)
	switch {
	case c.Name == "git":
		return w.git(c)
	case key == "python3 --version":
		return "Python 3.11.2\n", nil
	case key == "python3 -m venv "+w.cfg.VenvDir:
		return "", w.materializeVenv()
	case c.Name == filepath.Join(w.cfg.VenvDir, "bin", "pip"):
		if c.Args[0] == "--version" {
			if _, err := os.Stat(c.Name); err != nil {
				return "", errors.New("no such file")
			}
			return "pip 24.0\n", nil
		}
		if c.Args[0] == "install" && c.Args[1] != "--upgrade" {
			w.pipInstalls++
		}
		return "", nil
	case c.Name == filepath.Join(w.cfg.VenvDir, "bin", "python"):
		w.guiRuns++
		return "", nil
	case c.Name == "sudo":
		if key == "sudo -n true" {
			return "", nil
		}
		// Elevated installs: make python3 appear when the runtime set is
		// installed.
		if strings.Contains(key, "apt-get install") && strings.Contains(key, "python3 ") {
			w.fake.Paths["python3"] = "/usr/bin/python3"
		}
		return "", nil
	case c.Name == "sh":
		return "", nil
	}
	return "", fmt.Errorf("unexpected command: %s", key)
}

func (w *world) git(c execx.Cmd) (string, error) {
	repo := w.repoFor(c.Dir)
	args := strings.Join(c.Args, " ")
	switch {
	case args == "rev-parse --git-dir":
		if !repo.isRepo {
			return "", errors.New("not a git repository")
		}
		return ".git", nil
	case strings.HasPrefix(args, "fetch origin"):
		return "", repo.fetchErr
	case args == "rev-parse HEAD":
		return repo.local + "\n", nil
	case strings.HasPrefix(args, "rev-parse origin/"):
		return repo.remote + "\n", nil
	case strings.HasPrefix(args, "stash push"):
		return "", nil
	case strings.HasPrefix(args, "pull origin"):
		if repo.pullErr != nil {
			return "", repo.pullErr
		}
		repo.pulls++
		repo.local = repo.remote
		return "", nil
	case strings.HasPrefix(args, "diff --name-only"):
		return repo.diff, nil
	}
	return "", fmt.Errorf("unexpected git command: %s", args)
}

func (w *world) materializeVenv() error {
	bin := filepath.Join(w.cfg.VenvDir, "bin")
	if err := os.MkdirAll(bin, 0755); err != nil {
		return err
	}
	for _, name := range []string{"pip", "python"} {
		if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\n"), 0755); err != nil {
			return err
		}
	}
	return nil
}

// orchestrator builds a fresh Orchestrator for one generation, the way the
// CLI builder does.
func (w *world) orchestrator(mode runmode.Mode, generation int) *Orchestrator {
	w.t.Helper()
	st, err := state.Load(w.cfg.InstallDir)
	if err != nil {
		w.t.Fatalf("state.Load failed: %v", err)
	}
	jnl, err := journal.Open(filepath.Join(config.StateDir(w.cfg.InstallDir), "camlaunch.db"))
	if err != nil {
		w.t.Fatalf("journal.Open failed: %v", err)
	}
	w.t.Cleanup(func() { jnl.Close() })

	resolver := elevate.NewResolver(w.fake, mode, strings.NewReader(""), &w.out, &w.out)
	resolver.Openers = nil

	return New(Deps{
		Cfg:        w.cfg,
		Mode:       mode,
		State:      st,
		Runner:     w.fake,
		Elevator:   resolver,
		Journal:    jnl,
		Stdin:      strings.NewReader(""),
		Out:        &w.out,
		Errw:       &w.out,
		Generation: generation,
	})
}

func (w *world) lastRun() journal.Run {
	w.t.Helper()
	jnl, err := journal.Open(filepath.Join(config.StateDir(w.cfg.InstallDir), "camlaunch.db"))
	if err != nil {
		w.t.Fatalf("journal.Open failed: %v", err)
	}
	defer jnl.Close()
	runs, err := jnl.RecentRuns(context.Background(), 1)
	if err != nil || len(runs) == 0 {
		w.t.Fatalf("no runs recorded: %v", err)
	}
	return runs[0]
}

func TestFreshMachineInteractiveEndToEnd(t *testing.T) {
	w := newWorld(t)
	// Fresh machine: no python3 yet, passwordless sudo available.
	delete(w.fake.Paths, "python3")

	restart, err := w.orchestrator(runmode.Interactive, 0).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v\noutput:\n%s", err, w.out.String())
	}
	if restart {
		t.Error("no restart expected when the launcher is current")
	}
	if w.guiRuns != 1 {
		t.Errorf("GUI should run exactly once, got %d", w.guiRuns)
	}
	if w.pipInstalls != 1 {
		t.Errorf("expected one pip install pass, got %d", w.pipInstalls)
	}

	st, _ := state.Load(w.cfg.InstallDir)
	if !st.SetupDone || !st.InfoShown {
		t.Errorf("both one-time flags should be set by end of run: %+v", st)
	}
	if got := w.lastRun(); got.Outcome != "ok" {
		t.Errorf("journal outcome = %q, want ok", got.Outcome)
	}
}

func TestHeadlessWithoutHelpersIsFatalBeforeLaunch(t *testing.T) {
	w := newWorld(t)
	// Runtime missing, and no pkexec/gksudo anywhere. sudo exists but is
	// out of reach for a headless run.
	delete(w.fake.Paths, "python3")

	_, err := w.orchestrator(runmode.Headless, 0).Run(context.Background())
	if err == nil {
		t.Fatal("expected a fatal error when no escalation mechanism exists")
	}
	if w.guiRuns != 0 {
		t.Error("no GUI launch may be attempted after a fatal provisioning failure")
	}
	if got := w.lastRun(); got.Outcome != "fatal" {
		t.Errorf("journal outcome = %q, want fatal", got.Outcome)
	}
	if !strings.Contains(w.out.String(), "sudo sh -c") {
		t.Errorf("fatal path must print the manual remediation command, got:\n%s", w.out.String())
	}
}

func TestEntryPointChangeRequestsRestartOnce(t *testing.T) {
	w := newWorld(t)
	w.self.remote = "bbb2222"
	w.self.diff = "camlaunch\nREADME.md\n"

	restart, err := w.orchestrator(runmode.Interactive, 0).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !restart {
		t.Fatal("expected a restart request after the entry point changed")
	}
	if w.guiRuns != 0 {
		t.Error("nothing downstream of self-update may run before the restart")
	}
	if w.self.pulls != 1 {
		t.Errorf("expected one pull, got %d", w.self.pulls)
	}

	// The fresh generation finds local == remote and must complete without
	// another restart.
	restart, err = w.orchestrator(runmode.Interactive, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("second generation failed: %v", err)
	}
	if restart {
		t.Error("the post-update generation must never request another restart")
	}
	if w.guiRuns != 1 {
		t.Errorf("GUI should run exactly once across both generations, got %d", w.guiRuns)
	}
}

func TestUnchangedEntryPointDoesNotRestart(t *testing.T) {
	w := newWorld(t)
	w.self.remote = "bbb2222"
	w.self.diff = "README.md\ndocs/setup.md\n"

	restart, err := w.orchestrator(runmode.Interactive, 0).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if restart {
		t.Error("a pull that does not touch the entry point must not restart")
	}
	if w.guiRuns != 1 {
		t.Errorf("pipeline should continue to launch, got %d GUI runs", w.guiRuns)
	}
}

func TestFrigateUpdateNeverRestarts(t *testing.T) {
	w := newWorld(t)
	w.frigate.remote = "ddd4444"
	w.frigate.diff = "camlaunch\n" // same path name, different repo

	restart, err := w.orchestrator(runmode.Interactive, 0).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if restart {
		t.Error("only the launcher's own entry point can trigger a restart")
	}
	if w.frigate.pulls != 1 {
		t.Errorf("expected one frigate pull, got %d", w.frigate.pulls)
	}
}

func TestSelfPullFailureContinuesWithOldCode(t *testing.T) {
	w := newWorld(t)
	w.self.remote = "bbb2222"
	w.self.pullErr = errors.New("merge conflict")

	restart, err := w.orchestrator(runmode.Interactive, 0).Run(context.Background())
	if err != nil {
		t.Fatalf("a failed pull must not abort the launch: %v", err)
	}
	if restart {
		t.Error("no restart after a failed pull")
	}
	if w.guiRuns != 1 {
		t.Errorf("GUI should still launch, got %d runs", w.guiRuns)
	}
}

func TestNotARepoSkipsSelfUpdate(t *testing.T) {
	w := newWorld(t)
	w.self.isRepo = false

	restart, err := w.orchestrator(runmode.Interactive, 0).Run(context.Background())
	if err != nil {
		t.Fatalf("a plain directory install must still launch: %v", err)
	}
	if restart {
		t.Error("no restart without a working copy")
	}
	if !strings.Contains(w.out.String(), "skipping self-update") {
		t.Errorf("expected an informational note, got:\n%s", w.out.String())
	}
}

func TestMissingFrigateDirSkipsSilently(t *testing.T) {
	w := newWorld(t)
	w.cfg.FrigateDir = filepath.Join(t.TempDir(), "nope")

	if _, err := w.orchestrator(runmode.Interactive, 0).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if w.frigate.pulls != 0 {
		t.Error("no frigate sync without a directory")
	}
}

func TestSuperviseRunsAtMostTwoGenerations(t *testing.T) {
	w := newWorld(t)
	w.self.remote = "bbb2222"
	w.self.diff = "camlaunch\n"

	builds := 0
	err := Supervise(context.Background(), func(generation int) (*Orchestrator, func(), error) {
		builds++
		if generation != builds-1 {
			t.Errorf("generation = %d on build %d", generation, builds)
		}
		return w.orchestrator(runmode.Interactive, generation), func() {}, nil
	})
	if err != nil {
		t.Fatalf("Supervise failed: %v", err)
	}
	if builds != 2 {
		t.Errorf("expected exactly two generations, got %d", builds)
	}
	if w.guiRuns != 1 {
		t.Errorf("GUI should run exactly once, got %d", w.guiRuns)
	}
}

func TestDesktopIntegrationRunsExactlyOnce(t *testing.T) {
	w := newWorld(t)
	w.cfg.DesktopScript = filepath.Join("scripts", "install-desktop-entry.sh")
	script := filepath.Join(w.cfg.InstallDir, w.cfg.DesktopScript)
	if err := os.MkdirAll(filepath.Dir(script), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := w.orchestrator(runmode.Interactive, 0).Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if got := w.fake.CallCount("sh " + script); got != 1 {
		t.Fatalf("desktop script should run once on the first run, got %d", got)
	}

	if _, err := w.orchestrator(runmode.Interactive, 0).Run(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if got := w.fake.CallCount("sh " + script); got != 1 {
		t.Errorf("desktop script must not run again, got %d", got)
	}
}
