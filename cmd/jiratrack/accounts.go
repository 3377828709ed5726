package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/five82/jiratrack/internal/app"
	"github.com/five82/jiratrack/internal/auth"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var noBrowser bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect a Jira Cloud account",
		Long: `Opens the Atlassian consent page and waits for the redirect on the
configured redirect_uri. The first account becomes the primary account.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEnv(cmd, func(env *app.Env) error {
				oauth, err := env.OAuth()
				if err != nil {
					return err
				}
				flow := auth.LoginFlow{
					OAuth:  oauth,
					Open:   auth.OpenBrowser,
					Out:    cmd.OutOrStdout(),
					Logger: env.Logger.Named("auth"),
				}
				if noBrowser {
					flow.Open = nil
				}

				account, tokens, err := flow.Login(cmd.Context())
				if err != nil {
					return fmt.Errorf("login: %w", err)
				}
				if _, err := env.Registry.Save(cmd.Context(), account, tokens); err != nil {
					return fmt.Errorf("save account: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s) on %s\n",
					account.Name, account.Email, account.Workspace.Name)

				// Pull the new account's worklogs right away; a failure here
				// only delays them until the next sync.
				if err := env.Tracker.Load(cmd.Context()); err != nil {
					return err
				}
				if err := env.Tracker.Refresh(cmd.Context()); err != nil {
					env.Logger.Warn("initial refresh failed", zap.Error(err))
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: fetching worklogs failed: %v\n", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the consent URL instead of opening a browser")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout <account>",
		Short: "Remove an account and its cached worklogs",
		Long: `Removes the login, its tokens and its cached worklogs. The account can be
given by account ID or email. Unpushed local changes are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(env *app.Env) error {
				account, err := findAccount(env.Tracker.Accounts(), args[0])
				if err != nil {
					return err
				}
				if err := env.Tracker.Logout(cmd.Context(), account.AccountID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s\n", accountName(account))
				return nil
			})
		},
	}
}

func newAccountsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List logged-in accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEnv(cmd, func(env *app.Env) error {
				accounts := env.Tracker.Accounts()
				if len(accounts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No accounts. Run 'jiratrack login' to add one.")
					return nil
				}
				tokens, err := env.Registry.Tokens(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), accountsTable(accounts, tokens))
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "primary <account>",
		Short: "Make an account the primary account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(env *app.Env) error {
				account, err := findAccount(env.Tracker.Accounts(), args[0])
				if err != nil {
					return err
				}
				if _, err := env.Registry.MakePrimary(cmd.Context(), account.AccountID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now the primary account\n", accountName(account))
				return nil
			})
		},
	})
	return cmd
}

// findAccount matches ref against account IDs and emails.
func findAccount(accounts []auth.Account, ref string) (auth.Account, error) {
	ref = strings.TrimSpace(ref)
	for _, a := range accounts {
		if a.AccountID == ref || strings.EqualFold(a.Email, ref) {
			return a, nil
		}
	}
	return auth.Account{}, fmt.Errorf("%w: %s", auth.ErrUnknownAccount, ref)
}

func accountName(a auth.Account) string {
	if a.Email != "" {
		return a.Email
	}
	if a.Name != "" {
		return a.Name
	}
	return a.AccountID
}
