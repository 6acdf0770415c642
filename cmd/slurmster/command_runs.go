package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourceplane/slurmster/internal/render"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs without contacting the cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		runs := s.reg.Runs()
		if len(runs) == 0 {
			fmt.Printf("(no runs recorded for %s)\n", s.reg.Scope())
			return nil
		}
		table, err := render.RunsTable(runs)
		if err != nil {
			return err
		}
		fmt.Print(table)
		return nil
	},
}

func registerRunsCommand(root *cobra.Command) {
	root.AddCommand(runsCmd)
}
