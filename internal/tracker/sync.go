package tracker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/five82/jiratrack/internal/auth"
	"github.com/five82/jiratrack/internal/jira"
	"github.com/five82/jiratrack/internal/storage"
	"github.com/five82/jiratrack/internal/worklog"
)

const maxConcurrentAccounts = 4

// PushResult counts the outcome of a push.
type PushResult struct {
	Created int
	Updated int
	Deleted int
	Skipped int
	Failed  int
}

// Sync pushes local changes and then reloads the remote worklogs. A failing
// push does not prevent the refresh.
func (s *Service) Sync(ctx context.Context) (PushResult, error) {
	res, pushErr := s.Push(ctx)
	refreshErr := s.Refresh(ctx)
	return res, errors.Join(pushErr, refreshErr)
}

// Push sends every pending local change to Jira. The stored local collection
// is reread and backed up first, so changes settled by another process are not
// pushed twice. Pushed entries leave the local collection and land in the
// remote cache; failed entries stay local and their errors are joined.
func (s *Service) Push(ctx context.Context) (PushResult, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	var res PushResult
	var pending []worklog.Worklog
	s.mu.Lock()
	err := s.mutateLocked(ctx, func(tx *storage.Tx) error {
		pending = worklog.Pending(s.local)
		if len(pending) == 0 {
			return nil
		}
		if err := storage.Set(ctx, tx, storage.KeyWorklogsLocalBackups, nonNil(s.local)); err != nil {
			return fmt.Errorf("backup local worklogs: %w", err)
		}
		return nil
	})
	s.mu.Unlock()
	if err != nil || len(pending) == 0 {
		return res, err
	}

	var errs []error
	for _, w := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if w.State == worklog.StateCreated && w.TimeSpentSeconds <= 0 {
			res.Skipped++
			continue
		}
		newID, gone, err := s.pushOne(ctx, w)
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("push %s %s: %w", w.State, w.Issue.Label(), err))
			continue
		}
		switch w.State {
		case worklog.StateCreated:
			res.Created++
		case worklog.StateEdited:
			res.Updated++
		case worklog.StateDeleted:
			res.Deleted++
		}
		if err := s.settle(ctx, w, newID, gone); err != nil {
			errs = append(errs, err)
		}
	}

	s.mu.Lock()
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Info("push finished",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("deleted", res.Deleted),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, errors.Join(errs...)
}

// pushOne sends one change. gone reports that Jira no longer knows the
// worklog, which settles edits and deletes alike.
func (s *Service) pushOne(ctx context.Context, w worklog.Worklog) (newID string, gone bool, err error) {
	account, err := s.account(w.AccountID)
	if err != nil {
		return "", false, err
	}
	client, err := s.client(ctx, account.AccountID)
	if err != nil {
		return "", false, err
	}
	switch w.State {
	case worklog.StateCreated:
		newID, err = client.AddWorklog(ctx, w)
	case worklog.StateEdited:
		err = client.UpdateWorklog(ctx, w)
	case worklog.StateDeleted:
		err = client.DeleteWorklog(ctx, w)
	default:
		return "", false, nil
	}
	if err != nil && w.State != worklog.StateCreated && jira.IsNotFound(err) {
		s.logger.Info("worklog vanished from jira", zap.String("worklog_id", w.ID))
		return "", true, nil
	}
	if err != nil {
		s.expireOnAuthError(ctx, account.AccountID, err)
		return "", false, err
	}
	return newID, false, nil
}

// settle moves a pushed entry from the local collection into the remote
// cache. If the entry was edited while the push was in flight the newer
// local version is kept and re-marked for the next push.
func (s *Service) settle(ctx context.Context, pushed worklog.Worklog, newID string, gone bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateLocked(ctx, func(*storage.Tx) error {
		current, ok := worklog.Find(s.local, pushed.ID)
		unchanged := ok && current == pushed

		if pushed.State == worklog.StateDeleted || gone {
			s.remote = worklog.Remove(s.remote, pushed.ID)
			if unchanged || (ok && pushed.State == worklog.StateDeleted) {
				s.local = worklog.Remove(s.local, pushed.ID)
			}
			return nil
		}

		synced := pushed
		if newID != "" {
			synced.ID = newID
		}
		synced.State = worklog.StateSynced
		s.remote = worklog.Upsert(s.remote, synced)
		worklog.Sort(s.remote)

		switch {
		case unchanged:
			s.local = worklog.Remove(s.local, pushed.ID)
		case ok && newID != "":
			s.local = worklog.Remove(s.local, pushed.ID)
			current.ID = newID
			current.State = worklog.StateEdited
			s.local = worklog.Upsert(s.local, current)
		}
		if newID != "" && s.timer.WorklogID == pushed.ID {
			s.timer.WorklogID = newID
		}
		return nil
	})
}

// Refresh reloads the remote worklogs of every account concurrently and
// publishes the merged view. Accounts that fail keep their cached entries.
func (s *Service) Refresh(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	accounts, err := s.registry.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	s.mu.Lock()
	s.accounts = accounts
	s.mu.Unlock()

	results := make([][]worklog.Worklog, len(accounts))
	errs := make([]error, len(accounts))

	var g errgroup.Group
	g.SetLimit(maxConcurrentAccounts)
	for i, account := range accounts {
		g.Go(func() error {
			list, err := s.fetchAccount(ctx, account)
			if err != nil {
				errs[i] = fmt.Errorf("account %s: %w", accountLabel(account), err)
				return nil
			}
			results[i] = list
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	saveErr := s.mutateLocked(ctx, func(*storage.Tx) error {
		remote := make([]worklog.Worklog, 0, len(s.remote))
		for i, account := range accounts {
			if errs[i] != nil {
				remote = append(remote, worklog.ForAccount(s.remote, account.AccountID)...)
				continue
			}
			remote = append(remote, results[i]...)
		}
		worklog.Sort(remote)
		s.remote = remote
		return nil
	})

	s.logger.Debug("refresh finished", zap.Int("accounts", len(accounts)), zap.Int("worklogs", len(s.remote)))
	return errors.Join(append(errs, saveErr)...)
}

func (s *Service) fetchAccount(ctx context.Context, account auth.Account) ([]worklog.Worklog, error) {
	client, err := s.client(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}
	list, err := client.RemoteWorklogs(ctx, account.AccountID, s.weeks)
	if err != nil {
		s.expireOnAuthError(ctx, account.AccountID, err)
		return nil, err
	}
	for i := range list {
		list[i].AccountID = account.AccountID
	}
	return list, nil
}
