package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/five82/jiratrack/internal/auth"
	"github.com/five82/jiratrack/internal/state"
	"github.com/five82/jiratrack/internal/tracker"
)

const (
	defaultSyncInterval = 5 * time.Minute
	maxBackoff          = 30 * time.Minute
)

// Syncer pushes and refreshes worklogs. *tracker.Service implements it.
type Syncer interface {
	Sync(ctx context.Context) (tracker.PushResult, error)
}

var _ Syncer = (*tracker.Service)(nil)

// SyncLoop runs Sync at a fixed cadence, backing off while Jira is unreachable.
type SyncLoop struct {
	syncer   Syncer
	store    *state.Store
	interval time.Duration
	logger   *zap.Logger
	trigger  chan struct{}
}

// NewSyncLoop builds a loop. A non-positive interval uses the default.
func NewSyncLoop(syncer Syncer, store *state.Store, interval time.Duration, logger *zap.Logger) *SyncLoop {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncLoop{
		syncer:   syncer,
		store:    store,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate sync. It never blocks.
func (l *SyncLoop) Trigger() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

// Run syncs immediately and then on every tick until ctx is cancelled.
func (l *SyncLoop) Run(ctx context.Context) {
	failures := 0
	for {
		err := l.SyncOnce(ctx)
		if err != nil && ctx.Err() != nil {
			return
		}
		failures = countFailures(failures, err)

		timer := time.NewTimer(calculateBackoff(failures, l.interval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-l.trigger:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// SyncOnce runs one sync and records the outcome in the state store.
func (l *SyncLoop) SyncOnce(ctx context.Context) error {
	l.store.BeginSync()
	res, err := l.syncer.Sync(ctx)
	l.store.Update(err)
	if err != nil {
		l.logger.Warn("sync failed", zap.Error(err))
		return err
	}
	l.logger.Debug("sync finished",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("deleted", res.Deleted),
	)
	return nil
}

// countFailures tracks consecutive failures. An expired session resets the
// count: Jira answered, and retrying sooner will not bring the login back.
func countFailures(failures int, err error) int {
	if err == nil || auth.OnlySessionExpired(err) {
		return 0
	}
	return failures + 1
}

// calculateBackoff doubles the interval per consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
