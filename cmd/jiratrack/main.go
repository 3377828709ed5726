package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/jiratrack/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "jiratrack: %v\n", err)
		return 1
	}
	return 0
}

// rootOptions holds the global flags shared by every command.
type rootOptions struct {
	configPath string
	prefsPath  string
	verbose    bool
}

func (o *rootOptions) appOptions() app.Options {
	return app.Options{
		ConfigPath: o.configPath,
		PrefsPath:  o.prefsPath,
		Verbose:    o.verbose,
	}
}

// withEnv bootstraps the environment for one command and closes it afterwards.
func (o *rootOptions) withEnv(cmd *cobra.Command, fn func(*app.Env) error) error {
	env, err := app.Bootstrap(cmd.Context(), o.appOptions())
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()
	return fn(env)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:     "jiratrack",
		Short:   "Track time against Jira Cloud issues",
		Version: app.Version,
		Long: `jiratrack records worklogs against Jira Cloud issues.

Run without arguments to open the day view. Changes are kept locally and
pushed to Jira by the background sync, or on demand with 'jiratrack sync'.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), opts.appOptions())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/jiratrack/config.toml)")
	flags.StringVar(&opts.prefsPath, "prefs", "", "settings file (default ~/.config/jiratrack/prefs.toml)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newAccountsCmd(opts),
		newListCmd(opts),
		newAddCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
		newSearchCmd(opts),
		newSyncCmd(opts),
		newStartCmd(opts),
		newStopCmd(opts),
		newRestoreCmd(opts),
		newLogsCmd(opts),
	)
	return root
}
