package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/five82/jiratrack/internal/storage"
	"github.com/five82/jiratrack/internal/worklog"
)

// Draft describes a new worklog. An empty AccountID uses the primary account.
type Draft struct {
	AccountID string
	Issue     worklog.Issue
	Day       string
	Seconds   int
	Comment   string
}

// Change lists the fields an edit replaces. Nil fields are left alone.
type Change struct {
	Day     *string
	Seconds *int
	Comment *string
}

// Add records a new local worklog in state created.
func (s *Service) Add(ctx context.Context, d Draft) (worklog.Worklog, error) {
	if strings.TrimSpace(d.Issue.ID) == "" && strings.TrimSpace(d.Issue.Key) == "" {
		return worklog.Worklog{}, fmt.Errorf("issue required")
	}
	if d.Day == "" {
		d.Day = worklog.FormatDay(s.now())
	}
	if _, err := worklog.ParseDay(d.Day); err != nil {
		return worklog.Worklog{}, err
	}
	if d.Seconds < 0 {
		return worklog.Worklog{}, fmt.Errorf("time spent must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.accountLocked(d.AccountID)
	if err != nil {
		return worklog.Worklog{}, err
	}
	w := worklog.Worklog{
		ID:               worklog.LocalIDPrefix + uuid.NewString(),
		AccountID:        account.AccountID,
		Issue:            d.Issue,
		Started:          d.Day,
		TimeSpentSeconds: d.Seconds,
		Comment:          d.Comment,
		State:            worklog.StateCreated,
	}
	err = s.mutateLocked(ctx, func(*storage.Tx) error {
		s.local = worklog.Upsert(s.local, w)
		return nil
	})
	if err != nil {
		return worklog.Worklog{}, err
	}
	s.logger.Debug("worklog added", zap.String("worklog_id", w.ID), zap.String("issue", w.Issue.Key))
	return w, nil
}

// Update applies c to the worklog with the given ID.
func (s *Service) Update(ctx context.Context, id string, c Change) (worklog.Worklog, error) {
	if c.Day != nil {
		if _, err := worklog.ParseDay(*c.Day); err != nil {
			return worklog.Worklog{}, err
		}
	}
	if c.Seconds != nil && *c.Seconds < 0 {
		return worklog.Worklog{}, fmt.Errorf("time spent must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var w worklog.Worklog
	err := s.mutateLocked(ctx, func(*storage.Tx) error {
		var ok bool
		w, ok = worklog.Find(worklog.Merge(s.remote, s.local), id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if c.Day != nil {
			w.Started = *c.Day
		}
		if c.Seconds != nil {
			w.TimeSpentSeconds = *c.Seconds
		}
		if c.Comment != nil {
			w.Comment = *c.Comment
		}
		w = worklog.Edited(w)
		s.local = worklog.Upsert(s.local, w)
		return nil
	})
	if err != nil {
		return worklog.Worklog{}, err
	}
	return w, nil
}

// Delete removes a worklog. Entries never pushed disappear; remote ones are
// marked deleted until the next push. A timer running on the entry is discarded.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateLocked(ctx, func(*storage.Tx) error {
		w, ok := worklog.Find(worklog.Merge(s.remote, s.local), id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if w.State == worklog.StateCreated {
			s.local = worklog.Remove(s.local, id)
		} else {
			w.State = worklog.StateDeleted
			s.local = worklog.Upsert(s.local, w)
		}
		if s.timer.IsTracking(id) {
			s.timer = worklog.Timer{}
		}
		return nil
	})
}

// StartTimer starts tracking id. A timer running on another worklog is
// stopped first and its time is booked.
func (s *Service) StartTimer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateLocked(ctx, func(*storage.Tx) error {
		if s.timer.IsTracking(id) {
			return nil
		}
		if _, ok := worklog.Find(worklog.Merge(s.remote, s.local), id); !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		now := s.now()
		if s.timer.Running() {
			s.stopLocked(now)
		}
		s.timer = worklog.Start(id, now)
		return nil
	})
}

// StopTimer stops the running timer and books the elapsed time. It reports
// false when no timer was running.
func (s *Service) StopTimer(ctx context.Context) (worklog.Worklog, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		w       worklog.Worklog
		stopped bool
	)
	err := s.mutateLocked(ctx, func(*storage.Tx) error {
		if !s.timer.Running() {
			return nil
		}
		w, stopped = s.stopLocked(s.now()), true
		return nil
	})
	if err != nil {
		return worklog.Worklog{}, false, err
	}
	return w, stopped, nil
}

// stopLocked clears the timer and books its elapsed time on the worklog.
func (s *Service) stopLocked(now time.Time) worklog.Worklog {
	timer := s.timer
	s.timer = worklog.Timer{}

	w, ok := worklog.Find(worklog.Merge(s.remote, s.local), timer.WorklogID)
	if !ok {
		s.logger.Info("timer stopped for a worklog that no longer exists", zap.String("worklog_id", timer.WorklogID))
		return w
	}
	if timer.Elapsed(now) > 0 {
		w = worklog.Edited(timer.Apply(w, now))
		s.local = worklog.Upsert(s.local, w)
	}
	return w
}

// Restore replaces the local change set with the backup taken before the
// last push and returns the number of restored entries.
func (s *Service) Restore(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var restored int
	err := s.mutateLocked(ctx, func(tx *storage.Tx) error {
		backup, err := storage.Get[[]worklog.Worklog](ctx, tx, storage.KeyWorklogsLocalBackups)
		if err != nil {
			return fmt.Errorf("load backup: %w", err)
		}
		if len(backup) == 0 {
			return ErrNoBackup
		}
		s.local = backup
		restored = len(backup)
		return nil
	})
	return restored, err
}
