// Package cli provides the camlaunch commands: the bare launch pipeline plus
// the doctor and history diagnostics.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/example/camlaunch/internal/app"
	"github.com/example/camlaunch/internal/config"
	"github.com/example/camlaunch/internal/elevate"
	"github.com/example/camlaunch/internal/execx"
	"github.com/example/camlaunch/internal/journal"
	"github.com/example/camlaunch/internal/lockfile"
	"github.com/example/camlaunch/internal/logsink"
	"github.com/example/camlaunch/internal/runmode"
	"github.com/example/camlaunch/internal/state"
)

// RunLaunch is the zero-argument entry point: it resolves the install
// directory, classifies the run mode, takes the run lock, and supervises the
// pipeline across at most two generations.
func RunLaunch() error {
	installDir, err := resolveInstallDir()
	if err != nil {
		return err
	}
	cfg, err := config.Load(installDir)
	if err != nil {
		return err
	}
	mode := runmode.Detect()

	lock, err := lockfile.Acquire(filepath.Join(config.StateDir(installDir), "camlaunch.pid"))
	if err != nil {
		return err
	}
	defer lock.Release()

	runner := execx.NewOSRunner()

	build := func(generation int) (*app.Orchestrator, func(), error) {
		sink := logsink.Passthrough()
		if mode == runmode.Headless {
			teed, err := logsink.Tee(cfg.LogPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s Could not open %s, output will not be logged: %v\n",
					color.New(color.FgYellow).Sprint("!"), cfg.LogPath(), err)
			} else {
				sink = teed
			}
		}

		st, err := state.Load(installDir)
		if err != nil {
			sink.Close()
			return nil, nil, err
		}

		// The journal must never block a launch.
		jnl, err := journal.Open(filepath.Join(config.StateDir(installDir), "camlaunch.db"))
		if err != nil {
			fmt.Fprintf(sink.Err, "%s Run journal unavailable: %v\n",
				color.New(color.FgYellow).Sprint("!"), err)
			jnl = nil
		}

		resolver := elevate.NewResolver(runner, mode, os.Stdin, sink.Out, sink.Err)

		o := app.New(app.Deps{
			Cfg:        cfg,
			Mode:       mode,
			State:      st,
			Runner:     runner,
			Elevator:   resolver,
			Journal:    jnl,
			Stdin:      os.Stdin,
			Out:        sink.Out,
			Errw:       sink.Err,
			Generation: generation,
		})
		cleanup := func() {
			if jnl != nil {
				jnl.Close()
			}
			sink.Close()
		}
		return o, cleanup, nil
	}

	return app.Supervise(context.Background(), build)
}

// resolveInstallDir returns the directory holding the launcher binary, which
// doubles as the working copy root. CAMLAUNCH_DIR overrides it for installs
// where the binary lives outside the checkout.
func resolveInstallDir() (string, error) {
	if dir := os.Getenv("CAMLAUNCH_DIR"); dir != "" {
		return filepath.Abs(dir)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate the launcher executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
