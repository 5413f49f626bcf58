package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rpattn/memberdesk/internal/domain"
	"github.com/rpattn/memberdesk/internal/ingestion"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type importFlags struct {
	initiatedBy string
	format      string
	resultsPath string
	quiet       bool
}

func newImportCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a spreadsheet",
	}
	cmd.AddCommand(newImportMembersCmd(root))
	cmd.AddCommand(newImportTripsCmd(root))
	return cmd
}

func newImportMembersCmd(root *rootOptions) *cobra.Command {
	flags := &importFlags{}
	cmd := &cobra.Command{
		Use:   "members <file>",
		Short: "Register new members from a member sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, root, flags, domain.ImportTypeMembers, uuid.Nil, args[0])
		},
	}
	bindImportFlags(cmd, flags)
	return cmd
}

func newImportTripsCmd(root *rootOptions) *cobra.Command {
	flags := &importFlags{}
	var tripID string
	cmd := &cobra.Command{
		Use:   "trips <file>",
		Short: "Upsert trip allocations for registered members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(strings.TrimSpace(tripID))
			if err != nil {
				return fmt.Errorf("invalid --trip: %w", err)
			}
			return runImport(cmd, root, flags, domain.ImportTypeTripAllocations, id, args[0])
		},
	}
	bindImportFlags(cmd, flags)
	cmd.Flags().StringVar(&tripID, "trip", "", "Trip UUID (required)")
	_ = cmd.MarkFlagRequired("trip")
	return cmd
}

func bindImportFlags(cmd *cobra.Command, flags *importFlags) {
	cmd.Flags().StringVar(&flags.initiatedBy, "as", "", "UUID of the operator recorded on the import log")
	cmd.Flags().StringVar(&flags.format, "format", "text", "Report format: text or json")
	cmd.Flags().StringVar(&flags.resultsPath, "results", "", "Also write the per-row results to this .xlsx file")
	cmd.Flags().BoolVar(&flags.quiet, "quiet", false, "Do not print progress")
}

func runImport(cmd *cobra.Command, root *rootOptions, flags *importFlags, importType domain.ImportType, tripID uuid.UUID, path string) error {
	var initiatedBy *uuid.UUID
	if flags.initiatedBy != "" {
		id, err := uuid.Parse(flags.initiatedBy)
		if err != nil {
			return fmt.Errorf("invalid --as: %w", err)
		}
		initiatedBy = &id
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	application, err := root.open(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer application.Close()

	var onProgress ingestion.ProgressFunc
	if !flags.quiet {
		onProgress = func(processed, total, percent int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\rProcessing %d/%d (%d%%)", processed, total, percent)
			if processed == total {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
		}
	}

	report, runErr := application.Imports.Import(cmd.Context(), ingestion.Request{
		Type:        importType,
		FileName:    filepath.Base(path),
		TripID:      tripID,
		InitiatedBy: initiatedBy,
		Data:        file,
	}, onProgress)
	if runErr != nil && report.Log == nil {
		return runErr
	}

	if flags.resultsPath != "" {
		wb, err := ingestion.WriteWorkbook(report)
		if err != nil {
			return err
		}
		defer func() { _ = wb.Close() }()
		if err := wb.SaveAs(flags.resultsPath); err != nil {
			return fmt.Errorf("failed to save results: %w", err)
		}
	}

	switch flags.format {
	case "json":
		if err := writeJSON(report); err != nil {
			return err
		}
	default:
		if err := ingestion.WriteText(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}
	return runErr
}
