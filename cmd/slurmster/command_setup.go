package main

import "github.com/spf13/cobra"

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Prepare the remote directory tree, pushed files and virtualenv",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.runner.Setup(cmd.Context())
	},
}

func registerSetupCommand(root *cobra.Command) {
	root.AddCommand(setupCmd)
}
