package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := root.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			application.Close()
			return nil
		},
	}
}
