// Package state provides thread-safe state management for jiratrack.
//
// # Overview
//
// The Store is the meeting point between the tracker, which publishes the
// merged worklog view after every local edit or sync, the background sync
// loop, which records sync outcomes, and the UI, which renders snapshots.
//
//	Tracker / sync loop:             UI:
//	┌──────────────────┐            ┌──────────────────┐
//	│ store.Publish()  │            │                  │
//	│ store.BeginSync()│───────────→│ store.Snapshot() │
//	│ store.Update()   │  (mutex)   │      ↓           │
//	└──────────────────┘            │  render          │
//	                                └──────────────────┘
//
// # Update Semantics
//
// Publish replaces the worklog data and leaves the sync status alone.
// Update records a sync result:
//
//	store.Update(nil)  // LastSynced = now, LastError = nil, failures reset
//	store.Update(err)  // data kept, LastError = err, failures++
//
// A snapshot with two or more consecutive failures reports IsOffline, which
// the header shows instead of the last sync time.
//
// # Defensive Copying
//
// Snapshot clones the worklog and account slices and wraps LastError so the
// UI can never mutate what the tracker published.
//
// The zero Store is ready to use.
package state
