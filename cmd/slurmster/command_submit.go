package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sourceplane/slurmster/internal/runner"
	"github.com/sourceplane/slurmster/internal/stream"
)

var (
	submitNoMonitor bool
	submitSkipSetup bool
	submitDryRun    bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit one batch job per run and follow the last one",
	Long: "Expand the experiment file, render a job script per run, submit each through the scheduler " +
		"and record it in the local registry. Unless --no-monitor is set, the log of the last submitted run is followed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if submitDryRun {
			return showPlan("", "")
		}
		return submitRuns(cmd)
	},
}

func registerSubmitCommand(root *cobra.Command) {
	root.AddCommand(submitCmd)

	submitCmd.Flags().BoolVar(&submitNoMonitor, "no-monitor", false, "Do not follow the log after submitting")
	submitCmd.Flags().BoolVar(&submitSkipSetup, "skip-setup", false, "Skip remote setup (directories, pushed files, virtualenv)")
	submitCmd.Flags().BoolVar(&submitDryRun, "dry-run", false, "Render the runs without contacting the cluster")
}

func submitRuns(cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.runner.Submit(ctx, runner.SubmitOptions{SkipSetup: submitSkipSetup})
	if report != nil && len(report.Submitted) > 0 {
		fmt.Printf("✓ Submitted %d of %d runs\n", len(report.Submitted), len(report.Plan.Runs))
	}
	if err != nil {
		return err
	}
	if submitNoMonitor || len(report.Submitted) == 0 {
		return nil
	}

	last := report.Submitted[len(report.Submitted)-1]
	if err := s.runner.Follow(ctx, last, stream.Mode{Lines: settings.Monitor.SubmitLines}, os.Stdout); err != nil {
		return err
	}
	if ctx.Err() != nil {
		fmt.Printf("\n□ Stopped monitoring. Re-attach with `slurmster monitor --job %s`\n", last.JobID)
	}
	return nil
}
