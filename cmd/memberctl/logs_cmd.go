package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newLogsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect import logs",
	}
	cmd.AddCommand(newLogsListCmd(root))
	cmd.AddCommand(newLogsShowCmd(root))
	return cmd
}

func newLogsListCmd(root *rootOptions) *cobra.Command {
	var (
		importType string
		status     string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent import logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := root.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer application.Close()

			logs, err := application.Imports.ListLogs(cmd.Context(), domain.ImportLogFilter{
				ImportType: domain.ImportType(importType),
				Status:     domain.ImportStatus(status),
			}, limit, 0)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tFILE\tSTATUS\tTOTAL\tOK\tFAILED\tSTARTED")
			for _, log := range logs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					log.ID, log.ImportType, log.FileName, log.Status,
					log.TotalRows, log.SuccessfulRows, log.FailedRows,
					log.StartedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&importType, "type", "", "Filter by import type (members, trip_allocations)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (processing, completed, partial)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of logs")
	return cmd
}

func newLogsShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one import log with its row errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid log id: %w", err)
			}

			application, err := root.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer application.Close()

			log, err := application.Imports.GetLog(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(log)
		},
	}
}
