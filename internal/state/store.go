package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/jiratrack/internal/auth"
	"github.com/five82/jiratrack/internal/worklog"
)

// Data is the worklog view published by the tracker after every change.
type Data struct {
	Worklogs []worklog.Worklog
	Accounts []auth.Account
	Timer    worklog.Timer
	Pending  int
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Data
	LastSynced          time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive sync failures
	Syncing             bool
}

// IsOffline returns true when Jira has been unreachable for multiple syncs.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	version  uint64
}

// Publish replaces the worklog view without touching sync status.
func (s *Store) Publish(d Data) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Data = cloneData(d)
	s.version++
}

// BeginSync marks a sync as running.
func (s *Store) BeginSync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Syncing = true
	s.version++
}

// Update records the outcome of a sync. When err is non-nil the previous
// data is kept but the error is recorded for visibility. Expired sessions
// do not count as failures: Jira was reachable.
func (s *Store) Update(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Syncing = false
	s.version++
	if err != nil {
		s.snapshot.LastError = err
		if !auth.OnlySessionExpired(err) {
			s.snapshot.ConsecutiveFailures++
		}
		return
	}
	s.snapshot.LastError = nil
	s.snapshot.LastSynced = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Version increases with every change and lets readers skip redundant renders.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Data = cloneData(s.snapshot.Data)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneData(d Data) Data {
	if len(d.Worklogs) > 0 {
		d.Worklogs = append([]worklog.Worklog(nil), d.Worklogs...)
	} else {
		d.Worklogs = nil
	}
	if len(d.Accounts) > 0 {
		d.Accounts = append([]auth.Account(nil), d.Accounts...)
	} else {
		d.Accounts = nil
	}
	return d
}
