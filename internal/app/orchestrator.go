// Package app drives the launch pipeline: detect run mode, self-update,
// sync the managed project, provision the runtime and environment, install
// dependencies, and hand off to the GUI. Steps run strictly in sequence and
// each one records its outcome in the run journal.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/example/camlaunch/internal/config"
	"github.com/example/camlaunch/internal/execx"
	"github.com/example/camlaunch/internal/gitsync"
	"github.com/example/camlaunch/internal/journal"
	"github.com/example/camlaunch/internal/launch"
	"github.com/example/camlaunch/internal/provision"
	"github.com/example/camlaunch/internal/runmode"
	"github.com/example/camlaunch/internal/state"
)

// Deps carries everything the pipeline needs, resolved once at startup.
// Nothing below this point re-reads ambient environment state.
type Deps struct {
	Cfg   *config.Config
	Mode  runmode.Mode
	State *state.State

	Runner   execx.Runner
	Elevator provision.Elevator
	// Journal is optional; a broken journal must never block a launch.
	Journal *journal.Journal

	Stdin io.Reader
	Out   io.Writer
	Errw  io.Writer

	// Generation is 0 for the original invocation and 1 for the post-update
	// re-run. Only generation 0 may request a restart.
	Generation int
}

// Orchestrator runs the pipeline once.
type Orchestrator struct {
	d     Deps
	runID int64
}

// New creates an Orchestrator for one logical run.
func New(d Deps) *Orchestrator {
	return &Orchestrator{d: d}
}

// Run executes the pipeline. It returns restart=true when the entry point
// changed during self-update and a fresh generation must re-run; err is
// non-nil only on a fatal provisioning failure.
func (o *Orchestrator) Run(ctx context.Context) (restart bool, err error) {
	if o.d.Journal != nil {
		o.runID, _ = o.d.Journal.StartRun(ctx, o.d.Mode.String(), o.d.Generation)
	}

	fmt.Fprintf(o.d.Out, "camlaunch starting (%s mode)\n", o.d.Mode)

	restart, err = o.selfUpdate(ctx)
	if err != nil {
		return false, o.fatal(ctx, "self-update", err)
	}
	if restart {
		o.finish(ctx, "restart", "")
		return true, nil
	}

	o.updateFrigate(ctx)
	o.firstRunSetup(ctx)

	if err := o.provisionAndLaunch(ctx); err != nil {
		return false, err
	}

	o.showTipOnce()
	o.finish(ctx, "ok", "")
	return false, nil
}

// selfUpdate syncs the launcher's own working copy. A pull that touches the
// entry point requests a restart; generation 1 already pulled, so it can
// never request another one.
func (o *Orchestrator) selfUpdate(ctx context.Context) (bool, error) {
	syncer := gitsync.New(o.d.Runner, o.d.Cfg.InstallDir, o.d.Cfg.Branch)
	if !syncer.IsRepo(ctx) {
		fmt.Fprintln(o.d.Out, "Install directory is not a git checkout, skipping self-update.")
		o.step(ctx, "self-update", "skipped", "not a git checkout")
		return false, nil
	}

	res := syncer.Sync(ctx)
	switch {
	case res.SkipReason != "":
		fmt.Fprintf(o.d.Out, "Self-update skipped: %s\n", res.SkipReason)
		o.step(ctx, "self-update", "skipped", res.SkipReason)
	case res.PullErr != nil:
		fmt.Fprintf(o.d.Errw, "%s Self-update pull failed, continuing with the current version: %v\n",
			color.New(color.FgYellow).Sprint("!"), res.PullErr)
		o.step(ctx, "self-update", "skipped", res.PullErr.Error())
	case res.Pulled:
		fmt.Fprintf(o.d.Out, "Launcher updated (%.8s -> %.8s).\n", res.From, res.To)
		o.step(ctx, "self-update", "ok", fmt.Sprintf("%s -> %s", res.From, res.To))
		if res.Contains(o.d.Cfg.EntryPoint) && o.d.Generation == 0 {
			if err := os.Chmod(o.d.Cfg.EntryPointPath(), 0755); err != nil {
				fmt.Fprintf(o.d.Errw, "%s Could not mark %s executable: %v\n",
					color.New(color.FgYellow).Sprint("!"), o.d.Cfg.EntryPoint, err)
			}
			fmt.Fprintln(o.d.Out, "The launcher itself changed, restarting with the new version...")
			return true, nil
		}
	}
	return false, nil
}

// updateFrigate syncs the managed Frigate working copy. Never fatal and
// never a restart: only the launcher's own entry point can trigger one.
func (o *Orchestrator) updateFrigate(ctx context.Context) {
	if !o.d.Cfg.UpdateFrigate {
		o.step(ctx, "frigate-update", "skipped", "disabled")
		return
	}
	if _, err := os.Stat(o.d.Cfg.FrigateDir); err != nil {
		// Not installed yet; installation is someone else's job.
		o.step(ctx, "frigate-update", "skipped", "directory missing")
		return
	}

	syncer := gitsync.New(o.d.Runner, o.d.Cfg.FrigateDir, o.d.Cfg.FrigateBranch)
	if !syncer.IsRepo(ctx) {
		fmt.Fprintf(o.d.Errw, "%s %s exists but is not a git checkout, skipping Frigate update.\n",
			color.New(color.FgYellow).Sprint("!"), o.d.Cfg.FrigateDir)
		o.step(ctx, "frigate-update", "skipped", "not a git checkout")
		return
	}

	res := syncer.Sync(ctx)
	switch {
	case res.SkipReason != "":
		fmt.Fprintf(o.d.Out, "Frigate update skipped: %s\n", res.SkipReason)
		o.step(ctx, "frigate-update", "skipped", res.SkipReason)
	case res.PullErr != nil:
		fmt.Fprintf(o.d.Errw, "%s Frigate pull failed, continuing with the current checkout: %v\n",
			color.New(color.FgYellow).Sprint("!"), res.PullErr)
		o.step(ctx, "frigate-update", "skipped", res.PullErr.Error())
	case res.Pulled:
		fmt.Fprintf(o.d.Out, "Frigate updated (%.8s -> %.8s).\n", res.From, res.To)
		o.step(ctx, "frigate-update", "ok", fmt.Sprintf("%s -> %s", res.From, res.To))
	}
}

// firstRunSetup runs the external desktop-integration hook exactly once.
func (o *Orchestrator) firstRunSetup(ctx context.Context) {
	if o.d.State.SetupDone {
		return
	}

	if o.d.Cfg.DesktopScript != "" {
		script := filepath.Join(o.d.Cfg.InstallDir, o.d.Cfg.DesktopScript)
		if _, err := os.Stat(script); err == nil {
			fmt.Fprintln(o.d.Out, "Setting up the desktop entry...")
			if err := o.d.Runner.Run(ctx, execx.Cmd{
				Name: "sh", Args: []string{script}, Dir: o.d.Cfg.InstallDir,
				Stdout: o.d.Out, Stderr: o.d.Errw,
			}); err != nil {
				fmt.Fprintf(o.d.Errw, "%s Desktop entry setup failed: %v\n",
					color.New(color.FgYellow).Sprint("!"), err)
			}
		}
	}

	o.d.State.SetupDone = true
	if err := state.Save(o.d.Cfg.InstallDir, o.d.State); err != nil {
		fmt.Fprintf(o.d.Errw, "%s Could not persist first-run state: %v\n",
			color.New(color.FgYellow).Sprint("!"), err)
	}
	o.step(ctx, "first-run-setup", "ok", "")
}

// provisionAndLaunch covers runtime check, environment check, dependency
// installation, and the GUI handoff. Every failure in here is fatal.
func (o *Orchestrator) provisionAndLaunch(ctx context.Context) error {
	runtime := provision.NewRuntime(o.d.Runner, o.d.Elevator, o.d.Cfg.RuntimePackages, o.d.Out)
	version, err := runtime.Ensure(ctx)
	if err != nil {
		return o.fatal(ctx, "runtime", err)
	}
	fmt.Fprintf(o.d.Out, "Using %s\n", version)
	o.step(ctx, "runtime", "ok", version)

	venv := provision.NewVenv(o.d.Runner, o.d.Elevator, o.d.Cfg.VenvDir, o.d.Out)
	if err := venv.Ensure(ctx); err != nil {
		return o.fatal(ctx, "environment", err)
	}
	o.step(ctx, "environment", "ok", venv.Root())

	env, err := venv.Activate(os.Environ())
	if err != nil {
		return o.fatal(ctx, "activation", err)
	}

	installer := provision.NewInstaller(o.d.Runner, o.d.Elevator, venv,
		o.d.Cfg.PipPackages, o.d.Cfg.BuildPackages, o.d.Out, o.d.Errw)
	if err := installer.Ensure(ctx, env); err != nil {
		return o.fatal(ctx, "dependencies", err)
	}
	o.step(ctx, "dependencies", "ok", "")

	supervisor := launch.NewSupervisor(o.d.Runner, o.d.Stdin, o.d.Out, o.d.Errw)
	supervisor.Run(ctx, venv.Python(), o.d.Cfg.GUIScript, o.d.Cfg.InstallDir, env)
	o.step(ctx, "launch", "ok", "")
	return nil
}

// showTipOnce prints the shortcuts tip on the first successful run.
func (o *Orchestrator) showTipOnce() {
	if !o.d.State.SetupDone || o.d.State.InfoShown {
		return
	}
	fmt.Fprintln(o.d.Out)
	fmt.Fprintf(o.d.Out, "%s Tip: a desktop shortcut was created, next time you can start the\n",
		color.New(color.FgCyan).Sprint("i"))
	fmt.Fprintln(o.d.Out, "camera configuration GUI straight from your applications menu.")
	o.d.State.InfoShown = true
	if err := state.Save(o.d.Cfg.InstallDir, o.d.State); err != nil {
		fmt.Fprintf(o.d.Errw, "%s Could not persist tip state: %v\n",
			color.New(color.FgYellow).Sprint("!"), err)
	}
}

// step records a journal step. The journal is best effort by contract.
func (o *Orchestrator) step(ctx context.Context, name, status, detail string) {
	if o.d.Journal == nil {
		return
	}
	_ = o.d.Journal.RecordStep(ctx, o.runID, name, status, detail)
}

// fatal records the failing step and run outcome, prints the diagnostic, and
// returns the error for the non-zero exit.
func (o *Orchestrator) fatal(ctx context.Context, stepName string, err error) error {
	fmt.Fprintf(o.d.Errw, "%s %v\n", color.New(color.FgRed).Sprint("✗"), err)
	if o.d.Journal != nil {
		_ = o.d.Journal.RecordStep(ctx, o.runID, stepName, "fatal", err.Error())
	}
	o.finish(ctx, "fatal", err.Error())
	return err
}

// finish closes out the run: journal outcome plus the state record's
// last-run fields. Run end is one of the defined state write points.
func (o *Orchestrator) finish(ctx context.Context, outcome, errMsg string) {
	o.d.State.LastRunAt = time.Now()
	o.d.State.LastOutcome = outcome
	_ = state.Save(o.d.Cfg.InstallDir, o.d.State)
	if o.d.Journal != nil {
		_ = o.d.Journal.FinishRun(ctx, o.runID, outcome, errMsg)
	}
}
