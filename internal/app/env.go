package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/five82/jiratrack/internal/auth"
	"github.com/five82/jiratrack/internal/config"
	"github.com/five82/jiratrack/internal/jira"
	"github.com/five82/jiratrack/internal/prefs"
	"github.com/five82/jiratrack/internal/state"
	"github.com/five82/jiratrack/internal/storage"
	"github.com/five82/jiratrack/internal/tracker"
)

// Version is the jiratrack release, set at build time with
// -ldflags "-X github.com/five82/jiratrack/internal/app.Version=v1.2.3".
var Version = "dev"

// Options configure the jiratrack application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/jiratrack/prefs.toml
	Verbose    bool
	// Logger overrides the file logger, mainly for tests.
	Logger *zap.Logger
}

// Env holds everything a command needs. Close releases the store and flushes the log.
type Env struct {
	Config    config.Config
	Prefs     prefs.Prefs
	PrefsPath string
	Logger    *zap.Logger
	Store     *storage.Store
	Registry  *auth.Registry
	State     *state.Store
	Tracker   *tracker.Service
	// PreviousVersion is the release that last opened the store, empty on
	// first run.
	PreviousVersion string
}

// Bootstrap loads configuration, opens storage and loads the tracker.
func Bootstrap(ctx context.Context, opts Options) (*Env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		return nil, fmt.Errorf("load prefs: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger, err = newLogger(cfg.LogPath(), opts.Verbose)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	store, err := storage.Open(cfg.StorePath())
	if err != nil {
		return nil, err
	}

	previous, err := recordVersion(ctx, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	env := &Env{
		PreviousVersion: previous,
		Config:    cfg,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
		Logger:    logger,
		Store:     store,
		Registry:  auth.NewRegistry(store),
		State:     &state.Store{},
	}
	svc, err := tracker.New(tracker.Options{
		Store:         store,
		Registry:      env.Registry,
		State:         env.State,
		NewClient:     env.newClient,
		LookbackWeeks: cfg.LookbackWeeks,
		Logger:        logger.Named("tracker"),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := svc.Load(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	env.Tracker = svc
	return env, nil
}

// recordVersion stores the running release and returns the one that was
// stored before.
func recordVersion(ctx context.Context, store *storage.Store, logger *zap.Logger) (string, error) {
	var previous string
	_, err := storage.Update(ctx, store, storage.KeyLastVersion, func(stored string) (string, error) {
		previous = stored
		return Version, nil
	})
	if err != nil {
		return "", fmt.Errorf("record version: %w", err)
	}
	if previous != Version {
		logger.Info("version changed", zap.String("previous", previous), zap.String("current", Version))
	}
	return previous, nil
}

// Close releases resources held by the environment.
func (e *Env) Close() error {
	if e == nil {
		return nil
	}
	_ = e.Logger.Sync()
	return e.Store.Close()
}

// OAuth returns the OAuth client for the configured Jira app.
func (e *Env) OAuth() (*auth.OAuth, error) {
	return auth.NewOAuth(auth.Options{
		ClientID:     e.Config.ClientID,
		ClientSecret: e.Config.ClientSecret,
		RedirectURI:  e.Config.RedirectURI,
	})
}

// newClient builds a Jira client for one account. Refreshed tokens are
// written back to the registry as soon as Jira rotates them.
func (e *Env) newClient(account auth.Account, tokens auth.Tokens) (tracker.Remote, error) {
	logger := e.Logger.Named("jira").With(zap.String("account_id", account.AccountID))
	opts := jira.Options{
		CloudID: account.Workspace.ID,
		Tokens:  tokens,
		Logger:  logger,
		OnRefresh: func(t auth.Tokens) {
			if err := e.Registry.SaveTokens(context.Background(), account.AccountID, t); err != nil {
				logger.Error("persist refreshed tokens failed", zap.Error(err))
			}
		},
	}
	if oauth, err := e.OAuth(); err == nil {
		opts.Refresher = oauth
	} else {
		logger.Warn("token refresh unavailable", zap.Error(err))
	}
	return jira.NewClient(opts)
}

func newLogger(path string, verbose bool) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
