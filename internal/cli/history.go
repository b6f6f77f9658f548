package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/camlaunch/internal/config"
	"github.com/example/camlaunch/internal/journal"
)

// HistoryCmd returns the history command listing recent launcher runs.
func HistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent launcher runs from the journal",
		Long: `Show recent launcher runs recorded in the run journal.

With a run id, shows the per-step outcomes of that run.

Examples:
  camlaunch history        # List recent runs
  camlaunch history 12     # Show the steps of run 12`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			installDir, err := resolveInstallDir()
			if err != nil {
				return err
			}

			ctx := context.Background()
			jnl, err := journal.Open(filepath.Join(config.StateDir(installDir), "camlaunch.db"))
			if err != nil {
				return err
			}
			defer jnl.Close()

			if len(args) == 1 {
				runID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid run id %q", args[0])
				}
				return printSteps(ctx, jnl, runID)
			}
			return printRuns(ctx, jnl, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")

	return cmd
}

func printRuns(ctx context.Context, jnl *journal.Journal, limit int) error {
	runs, err := jnl.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	fmt.Printf("%-5s %-20s %-12s %-4s %-8s %s\n", "ID", "STARTED", "MODE", "GEN", "OUTCOME", "ERROR")
	for _, r := range runs {
		// Pad before coloring: ANSI escapes confuse %-8s width handling.
		outcome := colorOutcome(r.Outcome, fmt.Sprintf("%-8s", r.Outcome))
		fmt.Printf("%-5d %-20s %-12s %-4d %s %s\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Mode,
			r.Generation,
			outcome,
			r.Error,
		)
	}
	return nil
}

func printSteps(ctx context.Context, jnl *journal.Journal, runID int64) error {
	steps, err := jnl.Steps(ctx, runID)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Printf("No steps recorded for run %d.\n", runID)
		return nil
	}

	fmt.Printf("%-18s %-8s %s\n", "STEP", "STATUS", "DETAIL")
	for _, s := range steps {
		fmt.Printf("%-18s %-8s %s\n", s.Name, s.Status, s.Detail)
	}
	return nil
}

func colorOutcome(outcome, padded string) string {
	switch outcome {
	case "ok":
		return color.New(color.FgGreen).Sprint(padded)
	case "fatal":
		return color.New(color.FgRed).Sprint(padded)
	case "running":
		return color.New(color.FgYellow).Sprint(padded)
	default:
		return padded
	}
}
