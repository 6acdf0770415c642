package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cancelExp string
	cancelJob string
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel one submitted run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cancelRun(cmd)
	},
}

func registerCancelCommand(root *cobra.Command) {
	root.AddCommand(cancelCmd)

	cancelCmd.Flags().StringVar(&cancelExp, "exp", "", "Experiment name")
	cancelCmd.Flags().StringVar(&cancelJob, "job", "", "Job id")
}

func cancelRun(cmd *cobra.Command) error {
	sel, err := selector(cancelExp, cancelJob)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	run, err := s.runner.Cancel(ctx, sel)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Cancelled %s (job %s)\n", run.ExpName, run.JobID)
	return nil
}
