package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/jiratrack/internal/app"
	"github.com/five82/jiratrack/internal/tracker"
	"github.com/five82/jiratrack/internal/worklog"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push local changes to Jira and fetch the latest worklogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEnv(cmd, func(env *app.Env) error {
				if len(env.Tracker.Accounts()) == 0 {
					return tracker.ErrNoAccounts
				}
				res, err := env.Tracker.Sync(cmd.Context())
				printPushResult(cmd.OutOrStdout(), res)
				return err
			})
		},
	}
}

func printPushResult(out io.Writer, res tracker.PushResult) {
	if res == (tracker.PushResult{}) {
		fmt.Fprintln(out, "Nothing to push")
		return
	}
	fmt.Fprintf(out, "Pushed: %d created, %d updated, %d deleted", res.Created, res.Updated, res.Deleted)
	if res.Skipped > 0 {
		fmt.Fprintf(out, ", %d skipped", res.Skipped)
	}
	if res.Failed > 0 {
		fmt.Fprintf(out, ", %d failed", res.Failed)
	}
	fmt.Fprintln(out)
}

func newStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start the timer on a worklog",
		Long: `Starts tracking time on a worklog. A timer running on another worklog is
stopped first and its time is booked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(env *app.Env) error {
				target, err := env.Tracker.Resolve(args[0])
				if err != nil {
					return err
				}
				if err := env.Tracker.StartTimer(cmd.Context(), target.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Timer started on %s %s\n", shortID(target.ID), target.Issue.Label())
				if today := worklog.FormatDay(time.Now()); target.Started != today && env.Prefs.WarnWhenEditingOtherDays {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: this worklog is on %s, not today\n", target.Started)
				}
				return nil
			})
		},
	}
}

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running timer and book the elapsed time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEnv(cmd, func(env *app.Env) error {
				w, ok, err := env.Tracker.StopTimer(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "No timer running")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Timer stopped: %s now %s\n", w.Issue.Key, worklog.FormatDuration(w.TimeSpentSeconds))
				return nil
			})
		},
	}
}
