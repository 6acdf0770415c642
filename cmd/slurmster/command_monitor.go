package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sourceplane/slurmster/internal/stream"
)

var (
	monitorExp       string
	monitorJob       string
	monitorFromStart bool
	monitorLines     int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Follow the log of a submitted run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return monitorRun(cmd)
	},
}

func registerMonitorCommand(root *cobra.Command) {
	root.AddCommand(monitorCmd)

	monitorCmd.Flags().StringVar(&monitorExp, "exp", "", "Experiment name")
	monitorCmd.Flags().StringVar(&monitorJob, "job", "", "Job id")
	monitorCmd.Flags().BoolVar(&monitorFromStart, "from-start", false, "Print the whole log before following")
	monitorCmd.Flags().IntVarP(&monitorLines, "lines", "n", 100, "Lines of history to print before following")
}

func monitorRun(cmd *cobra.Command) error {
	sel, err := selector(monitorExp, monitorJob)
	if err != nil {
		return err
	}

	lines := settings.Monitor.Lines
	if cmd.Flags().Changed("lines") {
		lines = monitorLines
	}
	mode := stream.Mode{FromStart: monitorFromStart, Lines: lines}
	if err := mode.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.runner.Monitor(ctx, sel, mode, os.Stdout); err != nil {
		return err
	}
	if ctx.Err() != nil {
		fmt.Println("\n□ Stopped monitoring. You can re-attach anytime.")
	}
	return nil
}
