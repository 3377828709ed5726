package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/five82/jiratrack/internal/auth"
	"github.com/five82/jiratrack/internal/state"
	"github.com/five82/jiratrack/internal/tracker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 5 * time.Minute

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 5 * time.Minute},
		{"negative failures", -1, 5 * time.Minute},
		{"one failure", 1, 10 * time.Minute},
		{"two failures", 2, 20 * time.Minute},
		{"three failures capped", 3, 30 * time.Minute}, // Would be 40m, capped to 30m
		{"many failures capped", 10, 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	// Verify that backoff never exceeds maxBackoff regardless of input
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 64; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff || got <= 0 {
			t.Errorf("calculateBackoff(%d, %v) = %v, outside (0, %v]", failures, baseInterval, got, maxBackoff)
		}
	}
}

func TestCountFailures(t *testing.T) {
	expired := fmt.Errorf("account a: %w", auth.ErrSessionExpired)
	tests := []struct {
		name string
		prev int
		err  error
		want int
	}{
		{"success resets", 3, nil, 0},
		{"network failure counts", 1, errors.New("connection refused"), 2},
		{"expired session resets", 2, expired, 0},
		{"expired plus network counts", 0, errors.Join(expired, errors.New("timeout")), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countFailures(tt.prev, tt.err); got != tt.want {
				t.Errorf("countFailures(%d, %v) = %d, want %d", tt.prev, tt.err, got, tt.want)
			}
		})
	}
}

type fakeSyncer struct {
	mu    sync.Mutex
	calls int
	errs  []error
	done  chan struct{}
}

func (f *fakeSyncer) Sync(context.Context) (tracker.PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	if f.done != nil && f.calls == len(f.errs) {
		close(f.done)
	}
	return tracker.PushResult{}, err
}

func TestSyncOnce_RecordsOutcome(t *testing.T) {
	store := &state.Store{}
	syncer := &fakeSyncer{errs: []error{errors.New("offline"), errors.New("offline"), nil}}
	loop := NewSyncLoop(syncer, store, time.Hour, nil)
	ctx := context.Background()

	_ = loop.SyncOnce(ctx)
	_ = loop.SyncOnce(ctx)
	snap := store.Snapshot()
	if !snap.IsOffline() || snap.Syncing {
		t.Fatalf("after two failures snapshot = %+v, want offline and idle", snap)
	}

	if err := loop.SyncOnce(ctx); err != nil {
		t.Fatalf("SyncOnce returned error: %v", err)
	}
	snap = store.Snapshot()
	if snap.IsOffline() || snap.LastError != nil || snap.LastSynced.IsZero() {
		t.Fatalf("after success snapshot = %+v", snap)
	}
}

func TestSyncOnce_ExpiredSessionIsNotOffline(t *testing.T) {
	store := &state.Store{}
	expired := fmt.Errorf("account a: %w", auth.ErrSessionExpired)
	syncer := &fakeSyncer{errs: []error{expired, expired, expired}}
	loop := NewSyncLoop(syncer, store, time.Hour, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := loop.SyncOnce(ctx); !errors.Is(err, auth.ErrSessionExpired) {
			t.Fatalf("SyncOnce #%d error = %v, want session expired", i+1, err)
		}
	}
	snap := store.Snapshot()
	if snap.IsOffline() || snap.ConsecutiveFailures != 0 {
		t.Fatalf("snapshot = %+v, want online with zero failures", snap)
	}
	if !errors.Is(snap.LastError, auth.ErrSessionExpired) {
		t.Fatalf("LastError = %v, want session expired", snap.LastError)
	}
}

func TestSyncLoop_TriggerAndStop(t *testing.T) {
	store := &state.Store{}
	syncer := &fakeSyncer{errs: []error{nil, nil}, done: make(chan struct{})}
	loop := NewSyncLoop(syncer, store, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(finished)
	}()

	// The first sync runs immediately; the second only because of Trigger.
	deadline := time.After(2 * time.Second)
	for {
		loop.Trigger()
		select {
		case <-syncer.done:
		case <-time.After(10 * time.Millisecond):
			continue
		case <-deadline:
			t.Fatal("triggered sync did not run")
		}
		break
	}

	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("sync loop did not stop after cancel")
	}
}
