package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/jiratrack/internal/auth"
	"github.com/five82/jiratrack/internal/state"
	"github.com/five82/jiratrack/internal/storage"
	"github.com/five82/jiratrack/internal/worklog"
)

var (
	// ErrNoAccounts is returned when an operation needs a logged-in account.
	ErrNoAccounts = errors.New("no jira account, run `jiratrack login` first")
	// ErrNotFound is returned for unknown worklog IDs.
	ErrNotFound = errors.New("worklog not found")
	// ErrNotLoggedIn means the account has no usable tokens. It wraps
	// auth.ErrSessionExpired: the fix is the same, log in again.
	ErrNotLoggedIn = fmt.Errorf("account is not logged in: %w", auth.ErrSessionExpired)
	// ErrNoBackup is returned by Restore when no push has been attempted yet.
	ErrNoBackup = errors.New("no local worklog backup")
)

// Remote is the Jira surface the tracker needs for one account.
type Remote interface {
	RemoteWorklogs(ctx context.Context, accountID string, weeks int) ([]worklog.Worklog, error)
	AddWorklog(ctx context.Context, w worklog.Worklog) (string, error)
	UpdateWorklog(ctx context.Context, w worklog.Worklog) error
	DeleteWorklog(ctx context.Context, w worklog.Worklog) error
	SearchIssues(ctx context.Context, text string) ([]worklog.Issue, error)
}

// ClientFactory builds the Remote for an account from its stored tokens.
type ClientFactory func(account auth.Account, tokens auth.Tokens) (Remote, error)

// Options configure a Service.
type Options struct {
	Store         *storage.Store
	Registry      *auth.Registry
	State         *state.Store
	NewClient     ClientFactory
	LookbackWeeks int
	Logger        *zap.Logger
	Now           func() time.Time
}

// Service owns the local worklog collection and reconciles it with Jira.
type Service struct {
	store     *storage.Store
	registry  *auth.Registry
	state     *state.Store
	newClient ClientFactory
	weeks     int
	logger    *zap.Logger
	now       func() time.Time

	// syncMu serializes Push and Refresh.
	syncMu sync.Mutex

	mu       sync.Mutex
	local    []worklog.Worklog
	remote   []worklog.Worklog
	accounts []auth.Account
	timer    worklog.Timer
	clients  map[string]Remote
}

// New builds a Service. Call Load before use.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("storage required")
	}
	if opts.NewClient == nil {
		return nil, fmt.Errorf("client factory required")
	}
	s := &Service{
		store:     opts.Store,
		registry:  opts.Registry,
		state:     opts.State,
		newClient: opts.NewClient,
		weeks:     opts.LookbackWeeks,
		logger:    opts.Logger,
		now:       opts.Now,
		clients:   map[string]Remote{},
	}
	if s.registry == nil {
		s.registry = auth.NewRegistry(opts.Store)
	}
	if s.state == nil {
		s.state = &state.Store{}
	}
	if s.weeks <= 0 {
		s.weeks = 4
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// State returns the snapshot store the service publishes to.
func (s *Service) State() *state.Store {
	return s.state
}

// Load reads worklogs, accounts and the running timer from storage.
func (s *Service) Load(ctx context.Context) error {
	local, err := storage.Get[[]worklog.Worklog](ctx, s.store, storage.KeyWorklogsLocal)
	if err != nil {
		return fmt.Errorf("load local worklogs: %w", err)
	}
	remote, err := storage.Get[[]worklog.Worklog](ctx, s.store, storage.KeyWorklogsRemote)
	if err != nil {
		return fmt.Errorf("load cached worklogs: %w", err)
	}
	timer, err := storage.Get[worklog.Timer](ctx, s.store, storage.KeyActiveTimer)
	if err != nil {
		return fmt.Errorf("load timer: %w", err)
	}
	accounts, err := s.registry.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	s.mu.Lock()
	s.local, s.remote, s.timer, s.accounts = local, remote, timer, accounts
	s.publishLocked()
	s.mu.Unlock()
	return nil
}

// Worklogs returns the merged view of remote and local worklogs.
func (s *Service) Worklogs() []worklog.Worklog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return worklog.Merge(s.remote, s.local)
}

// Local returns the local change set.
func (s *Service) Local() []worklog.Worklog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]worklog.Worklog(nil), s.local...)
}

// Accounts returns the logged-in accounts as of the last Load or Refresh.
func (s *Service) Accounts() []auth.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]auth.Account(nil), s.accounts...)
}

// Timer returns the running timer, if any.
func (s *Service) Timer() worklog.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer
}

// Resolve finds a worklog by full or abbreviated ID.
func (s *Service) Resolve(id string) (worklog.Worklog, error) {
	w, ok := worklog.FindPrefix(s.Worklogs(), id)
	if !ok {
		return worklog.Worklog{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return w, nil
}

// Search finds issues through the given account, or the primary one.
func (s *Service) Search(ctx context.Context, accountID, text string) ([]worklog.Issue, error) {
	account, err := s.account(accountID)
	if err != nil {
		return nil, err
	}
	client, err := s.client(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}
	issues, err := client.SearchIssues(ctx, text)
	if err != nil {
		s.expireOnAuthError(ctx, account.AccountID, err)
		return nil, err
	}
	return issues, nil
}

// Logout removes an account, its tokens and its cached remote worklogs.
// Unpushed local changes of the account are kept.
func (s *Service) Logout(ctx context.Context, accountID string) error {
	accounts, err := s.registry.Remove(ctx, accountID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = accounts
	delete(s.clients, accountID)
	return s.mutateLocked(ctx, func(*storage.Tx) error {
		remote := make([]worklog.Worklog, 0, len(s.remote))
		for _, w := range s.remote {
			if w.AccountID != accountID {
				remote = append(remote, w)
			}
		}
		s.remote = remote
		return nil
	})
}

// account resolves accountID, falling back to the primary account.
func (s *Service) account(accountID string) (auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountLocked(accountID)
}

func (s *Service) accountLocked(accountID string) (auth.Account, error) {
	if accountID == "" {
		primary, ok := auth.Primary(s.accounts)
		if !ok {
			return auth.Account{}, ErrNoAccounts
		}
		return primary, nil
	}
	for _, a := range s.accounts {
		if a.AccountID == accountID {
			return a, nil
		}
	}
	return auth.Account{}, fmt.Errorf("%w: %s", auth.ErrUnknownAccount, accountID)
}

func (s *Service) client(ctx context.Context, accountID string) (Remote, error) {
	s.mu.Lock()
	if c, ok := s.clients[accountID]; ok {
		s.mu.Unlock()
		return c, nil
	}
	account, err := s.accountLocked(accountID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	tokens, err := s.registry.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	tok, ok := tokens[accountID]
	if !ok || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return nil, fmt.Errorf("%w: %s", ErrNotLoggedIn, accountLabel(account))
	}
	c, err := s.newClient(account, tok)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.clients[accountID]; ok {
		return existing, nil
	}
	s.clients[accountID] = c
	return c, nil
}

// expireOnAuthError forgets the tokens of an account whose refresh token was rejected.
func (s *Service) expireOnAuthError(ctx context.Context, accountID string, err error) {
	if !errors.Is(err, auth.ErrSessionExpired) {
		return
	}
	s.mu.Lock()
	delete(s.clients, accountID)
	s.mu.Unlock()
	if dropErr := s.registry.DropTokens(ctx, accountID); dropErr != nil {
		s.logger.Warn("drop expired tokens failed", zap.String("account_id", accountID), zap.Error(dropErr))
	}
	s.logger.Warn("jira session expired", zap.String("account_id", accountID))
}

func (s *Service) publishLocked() {
	s.state.Publish(state.Data{
		Worklogs: worklog.Merge(s.remote, s.local),
		Accounts: append([]auth.Account(nil), s.accounts...),
		Timer:    s.timer,
		Pending:  len(worklog.Pending(s.local)),
	})
}

// mutateLocked reloads the stored worklogs and timer, lets fn change them
// and writes them back, all in one transaction. Changes another process made
// since our last read are therefore never overwritten. fn may touch other
// keys through tx only. On error the reloaded values stay in place. The
// caller holds s.mu.
func (s *Service) mutateLocked(ctx context.Context, fn func(tx *storage.Tx) error) error {
	var (
		reloaded bool
		local    []worklog.Worklog
		remote   []worklog.Worklog
		timer    worklog.Timer
	)
	err := s.store.Transact(ctx, func(tx *storage.Tx) error {
		var err error
		if local, err = storage.Get[[]worklog.Worklog](ctx, tx, storage.KeyWorklogsLocal); err != nil {
			return fmt.Errorf("load local worklogs: %w", err)
		}
		if remote, err = storage.Get[[]worklog.Worklog](ctx, tx, storage.KeyWorklogsRemote); err != nil {
			return fmt.Errorf("load cached worklogs: %w", err)
		}
		if timer, err = storage.Get[worklog.Timer](ctx, tx, storage.KeyActiveTimer); err != nil {
			return fmt.Errorf("load timer: %w", err)
		}
		s.local, s.remote, s.timer = local, remote, timer
		reloaded = true

		if err := fn(tx); err != nil {
			return err
		}
		if err := storage.Set(ctx, tx, storage.KeyWorklogsLocal, nonNil(s.local)); err != nil {
			return fmt.Errorf("save local worklogs: %w", err)
		}
		if err := storage.Set(ctx, tx, storage.KeyWorklogsRemote, nonNil(s.remote)); err != nil {
			return fmt.Errorf("save cached worklogs: %w", err)
		}
		if err := storage.Set(ctx, tx, storage.KeyActiveTimer, s.timer); err != nil {
			return fmt.Errorf("save timer: %w", err)
		}
		return nil
	})
	if err != nil && reloaded {
		s.local, s.remote, s.timer = local, remote, timer
	}
	if reloaded {
		s.publishLocked()
	}
	return err
}

func nonNil(list []worklog.Worklog) []worklog.Worklog {
	if list == nil {
		return []worklog.Worklog{}
	}
	return list
}

func accountLabel(a auth.Account) string {
	switch {
	case a.Email != "":
		return a.Email
	case a.Name != "":
		return a.Name
	default:
		return a.AccountID
	}
}
