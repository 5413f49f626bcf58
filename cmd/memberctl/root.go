package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rpattn/memberdesk/internal/app"
	"github.com/rpattn/memberdesk/internal/config"
	"github.com/rpattn/memberdesk/internal/logging"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "memberctl",
		Short:        "Bulk import members and trip allocations from spreadsheets",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", ".", "Directory containing config.yaml")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newTemplateCmd())
	cmd.AddCommand(newLogsCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// open builds the application with logs on stderr so stdout stays parseable.
func (o *rootOptions) open(ctx context.Context, migrate bool) (*app.App, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return app.New(ctx, cfg, logger, migrate)
}
