package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourceplane/slurmster/internal/planner"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the experiment file and render every run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateExperiment()
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}

func validateExperiment() error {
	fmt.Println("□ Validating experiment file...")
	cfg, err := loadExperiment()
	if err != nil {
		return err
	}
	fmt.Println("✓ Experiment file is valid")

	fmt.Println("□ Rendering runs...")
	runs, err := planner.NewRunPlanner(cfg, cfg.Remote.BaseDir, nil).PlanRuns()
	if err != nil {
		return err
	}

	fmt.Printf("✓ All validation passed (%d runs)\n", len(runs))
	return nil
}
