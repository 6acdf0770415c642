package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sourceplane/slurmster/internal/logger"
	"github.com/sourceplane/slurmster/internal/render"
	"github.com/sourceplane/slurmster/internal/runner"
)

var (
	outputFile string
	viewPlan   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Render every run without contacting the cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showPlan(outputFile, viewPlan)
	},
}

func registerPlanCommand(root *cobra.Command) {
	root.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the plan to a file (.json or .yaml)")
	planCmd.Flags().StringVar(&viewPlan, "view", "", "View plan (tree/run=NAME)")
}

func showPlan(output, view string) error {
	fmt.Println("□ Loading experiment file...")
	cfg, err := loadExperiment()
	if err != nil {
		return err
	}

	fmt.Println("□ Expanding and rendering runs...")
	r := runner.New(cfg, nil, nil, runner.Options{
		WorkDir:    ".",
		ConfigFile: configFile,
		Logger:     logger.ComponentLogger("plan"),
	})
	plan, err := r.Plan(cfg.Remote.BaseDir)
	if err != nil {
		return err
	}

	switch {
	case view == "tree":
		fmt.Println("\n" + render.NewPlanViewer(plan).ViewTree())
	case strings.HasPrefix(view, "run="):
		fmt.Println("\n" + render.NewPlanViewer(plan).ViewRun(strings.TrimPrefix(view, "run=")))
	default:
		table, err := render.PlanTable(plan)
		if err != nil {
			return err
		}
		fmt.Print(table)
	}

	if output != "" {
		if err := render.NewRenderer().WritePlan(plan, output); err != nil {
			return err
		}
		fmt.Printf("✓ Saved to: %s\n", output)
	}

	fmt.Printf("✓ Plan has %d runs\n", len(plan.Runs))
	return nil
}
