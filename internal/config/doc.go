// Package config loads jiratrack's TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/jiratrack/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// JIRA_CLIENT_ID and JIRA_CLIENT_SECRET override the file values so the
// OAuth app secret does not have to live on disk.
//
// # Default Values
//
//   - Config file: ~/.config/jiratrack/config.toml
//   - Redirect URI: http://127.0.0.1:51121/callback
//   - Data directory: ~/.local/share/jiratrack (store.db)
//   - Log directory: ~/.local/share/jiratrack/logs (jiratrack.log)
//   - Sync interval: 5m (never below 30s)
//   - Lookback: 4 weeks of remote worklogs
//
// # TOML Format
//
//	client_id = "..."
//	client_secret = "..."
//	redirect_uri = "http://127.0.0.1:51121/callback"
//	data_dir = "~/.local/share/jiratrack"
//	log_dir = "~/.local/share/jiratrack/logs"
//	sync_interval = "5m"
//	lookback_weeks = 4
//
// The redirect URI must match the callback URL registered for the Atlassian
// OAuth 2.0 (3LO) app. Tilde expansion is performed for directories.
//
// # Error Handling
//
// Load returns errors for path expansion failures, read errors other than
// os.ErrNotExist, TOML parse errors, and sync_interval values that are not
// Go durations. A missing config file is not an error.
package config
