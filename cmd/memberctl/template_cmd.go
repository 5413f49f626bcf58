package main

import (
	"fmt"

	"github.com/rpattn/memberdesk/internal/domain"
	"github.com/rpattn/memberdesk/internal/ingestion"

	"github.com/spf13/cobra"
)

func newTemplateCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:       "template <members|trips>",
		Short:     "Write a spreadsheet template with two example rows",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"members", "trips"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var importType domain.ImportType
			switch args[0] {
			case "members":
				importType = domain.ImportTypeMembers
			case "trips":
				importType = domain.ImportTypeTripAllocations
			default:
				return fmt.Errorf("unknown template %q, want members or trips", args[0])
			}

			f, err := ingestion.BuildTemplate(importType)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			if output == "" {
				output = ingestion.TemplateFileName(importType)
			}
			if err := f.SaveAs(output); err != nil {
				return fmt.Errorf("failed to save template: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file")
	return cmd
}
