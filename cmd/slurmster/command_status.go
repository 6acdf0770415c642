package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/render"
)

var (
	statusAll      bool
	statusParallel int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Reconcile recorded runs with markers and the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd)
	},
}

func registerStatusCommand(root *cobra.Command) {
	root.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusAll, "all", "a", false, "Include runs already fetched")
	statusCmd.Flags().IntVar(&statusParallel, "parallel", 1, "Runs probed at once")
}

func showStatus(cmd *cobra.Command) error {
	if cmd.Flags().Changed("parallel") {
		settings.Status.Parallelism = max(statusParallel, 1)
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	outcomes, err := s.runner.Status(ctx, statusAll)
	if len(outcomes) == 0 && err == nil {
		fmt.Println("(no runs)")
		return nil
	}

	runs := make([]model.Run, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Run.JobID == "" {
			continue
		}
		runs = append(runs, o.Run)
		if o.Evidence.MarkerErr != nil && o.Evidence.QueryErr != nil {
			fmt.Printf("! %s (job %s): no evidence, kept %s\n", o.Run.ExpName, o.Run.JobID, o.Run.State)
		}
	}

	table, terr := render.StatusTable(runs)
	if terr != nil {
		return terr
	}
	fmt.Print(table)
	return err
}
