package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/camlaunch/internal/cli"
	"github.com/example/camlaunch/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "camlaunch",
		Short:   "Bootstrap and launch the camera configuration GUI",
		Version: version.String(),
		Long: `camlaunch prepares this machine to run the camera configuration GUI.
It updates itself and the managed Frigate checkout, provisions Python and an
isolated package environment, and then starts the GUI. Run it with no
arguments; everything else happens automatically.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunLaunch()
		},
	}

	// Diagnostics
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.HistoryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
