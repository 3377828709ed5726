package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/five82/jiratrack/internal/config"
	"github.com/five82/jiratrack/internal/logtail"
)

func newLogsCmd(opts *rootOptions) *cobra.Command {
	var (
		lines  int
		level  string
		logger string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the tail of the jiratrack log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			minLevel, err := zapcore.ParseLevel(level)
			if err != nil {
				return fmt.Errorf("invalid --level: %w", err)
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			raw, err := logtail.Read(cfg.LogPath(), lines)
			if err != nil {
				return err
			}
			entries := logtail.Filter(raw, minLevel, logger)
			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No log entries in %s\n", cfg.LogPath())
				return nil
			}
			for _, e := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), logtail.Format(e))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 200, "number of lines to read from the end (0 for all)")
	cmd.Flags().StringVar(&level, "level", "info", "minimum level: debug, info, warn or error")
	cmd.Flags().StringVar(&logger, "logger", "", "only entries from this logger, e.g. jira or sync")
	return cmd
}
