package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchExp string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Copy finished runs into the local results directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchRuns(cmd)
	},
}

func registerFetchCommand(root *cobra.Command) {
	root.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchExp, "exp", "", "Only fetch runs with this experiment name")
}

func fetchRuns(cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.runner.Fetch(ctx, fetchExp)
	if report != nil {
		for _, skipped := range report.Skipped {
			if skipped.Err != nil {
				fmt.Printf("! %s (job %s): %s: %v\n", skipped.Run.ExpName, skipped.Run.JobID, skipped.Reason, skipped.Err)
			}
		}
		fmt.Printf("✓ Fetched %d runs into %s, %d skipped\n", len(report.Fetched), s.reg.ResultsDir(), len(report.Skipped))
	}
	return err
}
