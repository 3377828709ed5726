// Package app provides the orchestration layer for jiratrack.
//
// # Overview
//
// This package wires together configuration, storage, the account registry,
// the tracker service, the background sync loop and the UI. Bootstrap builds
// the shared Env used by every CLI command; Run adds the sync loop and the
// TUI on top of it.
//
// # Components
//
//   - env.go: Bootstrap, the file logger and the per-account Jira client factory
//   - poller.go: SyncLoop, which pushes and refreshes worklogs periodically
//   - app.go: Run, the TUI entry point
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       │
//	       ├─────> Bootstrap()        config, prefs, logger, storage, tracker.Load
//	       ├─────> SyncLoop.Run()     background Push + Refresh
//	       └─────> ui.Run()           TUI (blocks)
//
//	SyncLoop:
//	┌─────────────────────────────────────────┐
//	│  state.BeginSync()                      │
//	│  ├─> tracker.Push()   local changes     │
//	│  ├─> tracker.Refresh() per account      │
//	│  └─> state.Update(err)                  │
//	│      └─> UI reads state.Snapshot()      │
//	└─────────────────────────────────────────┘
//
// # Sync Behavior
//
// The loop syncs once on start, then every sync_interval (default five
// minutes). Each consecutive failure doubles the wait up to thirty minutes.
// Pressing s in the UI calls Trigger, which wakes the loop immediately.
// A failed sync never discards local changes; they stay pending until a
// later push succeeds.
//
// # Logging
//
// The TUI owns the terminal, so zap writes JSON lines to
// <log_dir>/jiratrack.log. --verbose lowers the level to debug, which
// includes every Jira request.
package app
