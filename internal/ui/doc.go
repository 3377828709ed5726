// Package ui provides the jiratrack terminal day view.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. Model holds the displayed day, the
// selection and the latest state.Snapshot; every change to worklogs goes
// through the Tracker interface (implemented by *tracker.Service) inside a
// tea.Cmd so storage and network calls never block the event loop. The
// tracker publishes to state.Store after each change; the one second tick
// refetches the snapshot whenever the store version moved and redraws the
// running timer.
//
// # Package Structure
//
//   - app.go: Model, Update/View, messages, commands and Run
//   - header.go: status bar (day, ISO week, totals, timer, sync state) and command bar
//   - list.go: worklog rows for the displayed day, selection, totals
//   - search.go: issue search modal used to add a worklog
//   - edit.go: duration/day/comment modal
//   - help.go, keys.go: key bindings and the help overlay
//   - theme.go, style_helpers.go: palettes and background-safe rendering
//
// # Key Bindings
//
//   - j/k: Move selection
//   - space: Start or stop the timer on the selected worklog
//   - h/l, H/L: Previous/next day, previous/next week
//   - t: Jump to today
//   - a: Search an issue and add a worklog on the displayed day
//   - enter: Edit the selected worklog
//   - x: Delete the selected worklog (press twice)
//   - s: Sync now
//   - T: Cycle theme (saved to prefs)
//   - ?: Help
//   - q or Ctrl+C: Exit
//
// # Usage Example
//
//	err := ui.Run(ui.Options{
//		Context:   ctx,
//		Tracker:   svc,
//		Store:     svc.State(),
//		Sync:      loop.Trigger,
//		Prefs:     userPrefs,
//		PrefsPath: prefsPath,
//	})
package ui
