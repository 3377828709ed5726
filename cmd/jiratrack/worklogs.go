package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/five82/jiratrack/internal/app"
	"github.com/five82/jiratrack/internal/auth"
	"github.com/five82/jiratrack/internal/prefs"
	"github.com/five82/jiratrack/internal/tracker"
	"github.com/five82/jiratrack/internal/worklog"
)

const searchTimeout = 15 * time.Second

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		day     string
		week    bool
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show worklogs for a day or week",
		Long: `Shows the worklogs of one day (default today) from the local cache.
--week widens the view to the ISO week of that day and --refresh fetches
the latest worklogs from Jira first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := resolveDay(day, time.Now())
			if err != nil {
				return err
			}
			return opts.withEnv(cmd, func(env *app.Env) error {
				if refresh {
					if err := env.Tracker.Refresh(cmd.Context()); err != nil {
						env.Logger.Warn("refresh before list failed", zap.Error(err))
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: showing cached worklogs: %v\n", err)
					}
				}
				days := []string{resolved}
				if week {
					if days, err = worklog.WeekDays(resolved); err != nil {
						return err
					}
				}
				printWorklogs(cmd.OutOrStdout(), env, days, time.Now())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "day to show: YYYY-MM-DD, today or yesterday")
	cmd.Flags().BoolVar(&week, "week", false, "show the whole week")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch from Jira before listing")
	return cmd
}

func printWorklogs(out io.Writer, env *app.Env, days []string, now time.Time) {
	all := env.Tracker.Worklogs()
	timer := env.Tracker.Timer()

	var shown []worklog.Worklog
	for _, d := range days {
		list := worklog.ForDay(all, d)
		worklog.Sort(list)
		shown = append(shown, list...)
	}
	if len(shown) == 0 {
		fmt.Fprintf(out, "No worklogs for %s\n", dayRange(days))
	} else {
		fmt.Fprintln(out, worklogTable(shown, timer, now))
	}

	primaryID := ""
	if primary, ok := auth.Primary(env.Tracker.Accounts()); ok {
		primaryID = primary.AccountID
	}
	total := countedSeconds(shown, timer, env.Prefs, primaryID, now)
	fmt.Fprintf(out, "Total %s: %s\n", dayRange(days), worklog.FormatDuration(total))
	if pending := len(worklog.Pending(env.Tracker.Local())); pending > 0 {
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d change(s) not yet pushed to Jira", pending)))
	}
}

// countedSeconds sums the entries that count towards the working time,
// including the elapsed time of a running timer.
func countedSeconds(list []worklog.Worklog, timer worklog.Timer, p prefs.Prefs, primaryID string, now time.Time) int {
	total := 0
	for _, w := range list {
		if w.State == worklog.StateDeleted || !p.CountsAccount(w.AccountID, primaryID) {
			continue
		}
		if timer.IsTracking(w.ID) {
			w = timer.Apply(w, now)
		}
		total += w.TimeSpentSeconds
	}
	return total
}

func dayRange(days []string) string {
	if len(days) == 1 {
		return days[0]
	}
	return days[0] + " to " + days[len(days)-1]
}

// resolveDay accepts YYYY-MM-DD and the words today and yesterday.
func resolveDay(value string, now time.Time) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "today":
		return worklog.FormatDay(now), nil
	case "yesterday":
		return worklog.FormatDay(now.AddDate(0, 0, -1)), nil
	}
	if _, err := worklog.ParseDay(strings.TrimSpace(value)); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var (
		day       string
		comment   string
		accountID string
	)
	cmd := &cobra.Command{
		Use:   "add <issue> <duration>",
		Short: "Log time against an issue",
		Long: `Records a new worklog locally. The issue is a key such as PROJ-123 and the
duration uses Jira notation ("1h 30m", "45m", "1d"). The worklog is pushed
on the next sync.`,
		Example: `  jiratrack add PROJ-123 1h30m --comment "code review"
  jiratrack add PROJ-7 45m --day yesterday`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := worklog.ParseJiraDuration(args[1])
			if err != nil {
				return err
			}
			resolved, err := resolveDay(day, time.Now())
			if err != nil {
				return err
			}
			return opts.withEnv(cmd, func(env *app.Env) error {
				accountID, err := accountFlag(env, accountID)
				if err != nil {
					return err
				}
				issue := lookupIssue(cmd.Context(), env, accountID, args[0])
				w, err := env.Tracker.Add(cmd.Context(), tracker.Draft{
					AccountID: accountID,
					Issue:     issue,
					Day:       resolved,
					Seconds:   seconds,
					Comment:   comment,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s on %s (%s)\n",
					w.Issue.Key, worklog.FormatDuration(w.TimeSpentSeconds), w.Started, shortID(w.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "day of the worklog: YYYY-MM-DD, today or yesterday")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "worklog comment")
	cmd.Flags().StringVar(&accountID, "account", "", "account ID or email (default primary account)")
	return cmd
}

// accountFlag turns an --account value into an account ID. Empty means the
// primary account.
func accountFlag(env *app.Env, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", nil
	}
	a, err := findAccount(env.Tracker.Accounts(), ref)
	if err != nil {
		return "", err
	}
	return a.AccountID, nil
}

// lookupIssue resolves key to a full issue reference. When Jira cannot be
// reached the bare key is used and the summary fills in on the next refresh.
func lookupIssue(ctx context.Context, env *app.Env, accountID, key string) worklog.Issue {
	key = strings.ToUpper(strings.TrimSpace(key))
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	issues, err := env.Tracker.Search(ctx, accountID, key)
	if err != nil {
		env.Logger.Warn("issue lookup failed", zap.String("issue", key), zap.Error(err))
		return worklog.Issue{Key: key}
	}
	for _, i := range issues {
		if strings.EqualFold(i.Key, key) {
			return i
		}
	}
	return worklog.Issue{Key: key}
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	var (
		duration string
		comment  string
		day      string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the duration, day or comment of a worklog",
		Long: `Edits a worklog locally. The ID may be abbreviated as long as it is unique.
Only the flags given are changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			change, err := editChange(cmd, duration, comment, day)
			if err != nil {
				return err
			}
			return opts.withEnv(cmd, func(env *app.Env) error {
				target, err := env.Tracker.Resolve(args[0])
				if err != nil {
					return err
				}
				w, err := env.Tracker.Update(cmd.Context(), target.ID, change)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s: %s on %s\n",
					shortID(w.ID), w.Issue.Key, worklog.FormatDuration(w.TimeSpentSeconds), w.Started)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&duration, "duration", "d", "", "new duration in Jira notation")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "new comment")
	cmd.Flags().StringVar(&day, "day", "", "move the worklog to this day")
	return cmd
}

// editChange builds a change from the flags that were set on cmd.
func editChange(cmd *cobra.Command, duration, comment, day string) (tracker.Change, error) {
	var change tracker.Change
	flags := cmd.Flags()
	if flags.Changed("duration") {
		seconds, err := worklog.ParseJiraDuration(duration)
		if err != nil {
			return change, err
		}
		change.Seconds = &seconds
	}
	if flags.Changed("day") {
		resolved, err := resolveDay(day, time.Now())
		if err != nil {
			return change, err
		}
		change.Day = &resolved
	}
	if flags.Changed("comment") {
		change.Comment = &comment
	}
	if change.Seconds == nil && change.Day == nil && change.Comment == nil {
		return change, fmt.Errorf("nothing to change, pass --duration, --day or --comment")
	}
	return change, nil
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a worklog",
		Long: `Marks a worklog for deletion in Jira on the next sync. A worklog that was
never pushed is removed immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(env *app.Env) error {
				target, err := env.Tracker.Resolve(args[0])
				if err != nil {
					return err
				}
				if err := env.Tracker.Delete(cmd.Context(), target.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s on %s\n", shortID(target.ID), target.Issue.Key, target.Started)
				return nil
			})
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search Jira issues by key or text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return opts.withEnv(cmd, func(env *app.Env) error {
				accountID, err := accountFlag(env, accountID)
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), searchTimeout)
				defer cancel()
				issues, err := env.Tracker.Search(ctx, accountID, query)
				if err != nil {
					return err
				}
				if len(issues) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No issues match %q\n", query)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), issueTable(issues))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account ID or email (default primary account)")
	return cmd
}

func newRestoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore local changes from the backup taken before the last push",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEnv(cmd, func(env *app.Env) error {
				n, err := env.Tracker.Restore(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d local worklog(s)\n", n)
				return nil
			})
		},
	}
}
