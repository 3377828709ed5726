package app

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/five82/jiratrack/internal/ui"
)

// Run boots the jiratrack TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	env, err := Bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start background sync
	loop := NewSyncLoop(env.Tracker, env.State, env.Config.SyncInterval, env.Logger.Named("sync"))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(runCtx)
	}()

	env.Logger.Info("ui starting",
		zap.Int("accounts", len(env.Tracker.Accounts())),
		zap.Duration("sync_interval", env.Config.SyncInterval),
	)
	err = ui.Run(ui.Options{
		Context:   runCtx,
		Tracker:   env.Tracker,
		Store:     env.State,
		Sync:      loop.Trigger,
		Prefs:     env.Prefs,
		PrefsPath: env.PrefsPath,
	})

	cancel()
	wg.Wait()

	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
