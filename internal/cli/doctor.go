package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/camlaunch/internal/config"
	"github.com/example/camlaunch/internal/execx"
	"github.com/example/camlaunch/internal/gitsync"
	"github.com/example/camlaunch/internal/journal"
	"github.com/example/camlaunch/internal/provision"
	"github.com/example/camlaunch/internal/state"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the launcher environment",
		Long: `Health check for the camlaunch environment.

Validates:
- Launcher working copy (git checkout, freshness)
- Python 3 runtime
- Isolated environment and required packages
- First-run state and run journal

Examples:
  camlaunch doctor          # Run full health check
  camlaunch doctor --quiet  # Exit code only (0=healthy, 1=issues)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			installDir, err := resolveInstallDir()
			if err != nil {
				return err
			}
			cfg, err := config.Load(installDir)
			if err != nil {
				return err
			}

			ctx := context.Background()
			runner := execx.NewOSRunner()

			results := []CheckResult{
				checkWorkingCopy(ctx, runner, cfg),
				checkRuntime(ctx, runner),
				checkEnvironment(ctx, runner, cfg),
				checkPackages(ctx, runner, cfg),
				checkRunState(cfg),
				checkJournal(ctx, cfg),
			}

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				fmt.Println()
				fmt.Println("Check              Status")
				fmt.Println("─────────────────────────")
				for _, r := range results {
					fmt.Printf("%-18s %s\n", r.Name, r.Status)
				}
				fmt.Println()

				hasDetails := false
				for _, r := range results {
					if r.Status != "✓" && r.Details != "" {
						if !hasDetails {
							fmt.Println("Details:")
							hasDetails = true
						}
						fmt.Printf("\n%s:\n%s\n", r.Name, r.Details)
					}
				}

				if hasErrors {
					fmt.Println("\n⚠ Issues found. Run 'camlaunch' to provision, or follow the details above.")
				} else {
					fmt.Println("All checks passed.")
				}
			}

			if hasErrors {
				return fmt.Errorf("environment validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - exit code only")

	return cmd
}

// checkWorkingCopy validates the launcher checkout and its freshness
func checkWorkingCopy(ctx context.Context, runner execx.Runner, cfg *config.Config) CheckResult {
	syncer := gitsync.New(runner, cfg.InstallDir, cfg.Branch)
	if !syncer.IsRepo(ctx) {
		return CheckResult{Name: "Working copy", Status: "⚠",
			Details: fmt.Sprintf("  %s is not a git checkout; self-update is disabled", cfg.InstallDir)}
	}
	return CheckResult{Name: "Working copy", Status: "✓"}
}

// checkRuntime validates python3 presence
func checkRuntime(ctx context.Context, runner execx.Runner) CheckResult {
	if _, err := runner.LookPath("python3"); err != nil {
		return CheckResult{Name: "Python runtime", Status: "✗",
			Details: "  python3 not found; run 'camlaunch' to install it"}
	}
	if _, err := runner.Output(ctx, execx.Cmd{Name: "python3", Args: []string{"--version"}}); err != nil {
		return CheckResult{Name: "Python runtime", Status: "✗",
			Details: fmt.Sprintf("  python3 present but not runnable: %v", err)}
	}
	return CheckResult{Name: "Python runtime", Status: "✓"}
}

// checkEnvironment validates the venv
func checkEnvironment(ctx context.Context, runner execx.Runner, cfg *config.Config) CheckResult {
	venv := provision.NewVenv(runner, nil, cfg.VenvDir, nil)
	if !venv.Valid(ctx) {
		return CheckResult{Name: "Environment", Status: "⚠",
			Details: fmt.Sprintf("  environment at %s is missing or unusable; 'camlaunch' will recreate it", cfg.VenvDir)}
	}
	return CheckResult{Name: "Environment", Status: "✓"}
}

// checkPackages validates the required packages inside the venv
func checkPackages(ctx context.Context, runner execx.Runner, cfg *config.Config) CheckResult {
	venv := provision.NewVenv(runner, nil, cfg.VenvDir, nil)
	if !venv.Valid(ctx) {
		return CheckResult{Name: "Packages", Status: "⚠", Details: "  skipped: no usable environment"}
	}

	var missing []string
	for _, pkg := range cfg.PipPackages {
		if err := runner.Run(ctx, execx.Cmd{Name: venv.Pip(), Args: []string{"show", pkg}}); err != nil {
			missing = append(missing, pkg)
		}
	}
	if len(missing) > 0 {
		return CheckResult{Name: "Packages", Status: "⚠",
			Details: fmt.Sprintf("  missing: %s; 'camlaunch' will install them", strings.Join(missing, ", "))}
	}
	return CheckResult{Name: "Packages", Status: "✓"}
}

// checkRunState validates the persistent state record
func checkRunState(cfg *config.Config) CheckResult {
	st, err := state.Load(cfg.InstallDir)
	if err != nil {
		return CheckResult{Name: "Run state", Status: "✗",
			Details: fmt.Sprintf("  state record unreadable: %v", err)}
	}
	if !st.SetupDone {
		return CheckResult{Name: "Run state", Status: "⚠",
			Details: "  first-run setup has not completed yet"}
	}
	return CheckResult{Name: "Run state", Status: "✓"}
}

// checkJournal validates the run journal and reports the last outcome
func checkJournal(ctx context.Context, cfg *config.Config) CheckResult {
	jnl, err := journal.Open(filepath.Join(config.StateDir(cfg.InstallDir), "camlaunch.db"))
	if err != nil {
		return CheckResult{Name: "Run journal", Status: "⚠",
			Details: fmt.Sprintf("  journal unavailable: %v", err)}
	}
	defer jnl.Close()

	runs, err := jnl.RecentRuns(ctx, 1)
	if err != nil {
		return CheckResult{Name: "Run journal", Status: "⚠",
			Details: fmt.Sprintf("  journal unreadable: %v", err)}
	}
	if len(runs) > 0 && runs[0].Outcome == "fatal" {
		return CheckResult{Name: "Run journal", Status: "⚠",
			Details: fmt.Sprintf("  last run failed: %s", runs[0].Error)}
	}
	return CheckResult{Name: "Run journal", Status: "✓"}
}
