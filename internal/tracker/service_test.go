package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/five82/jiratrack/internal/auth"
	"github.com/five82/jiratrack/internal/jira"
	"github.com/five82/jiratrack/internal/storage"
	"github.com/five82/jiratrack/internal/worklog"
)

type fakeRemote struct {
	mu       sync.Mutex
	worklogs []worklog.Worklog
	fetchErr error
	pushErr  map[string]error
	nextID   int
	added    []worklog.Worklog
	updated  []worklog.Worklog
	deleted  []worklog.Worklog
	issues   []worklog.Issue
}

func (f *fakeRemote) RemoteWorklogs(_ context.Context, accountID string, _ int) ([]worklog.Worklog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]worklog.Worklog(nil), f.worklogs...), nil
}

func (f *fakeRemote) AddWorklog(_ context.Context, w worklog.Worklog) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pushErr[w.ID]; err != nil {
		return "", err
	}
	f.nextID++
	f.added = append(f.added, w)
	created := w
	created.ID = fmt.Sprintf("%d", 1000+f.nextID)
	created.State = worklog.StateSynced
	f.worklogs = append(f.worklogs, created)
	return created.ID, nil
}

func (f *fakeRemote) UpdateWorklog(_ context.Context, w worklog.Worklog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pushErr[w.ID]; err != nil {
		return err
	}
	f.updated = append(f.updated, w)
	return nil
}

func (f *fakeRemote) DeleteWorklog(_ context.Context, w worklog.Worklog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pushErr[w.ID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, w)
	f.worklogs = worklog.Remove(f.worklogs, w.ID)
	return nil
}

func (f *fakeRemote) SearchIssues(_ context.Context, text string) ([]worklog.Issue, error) {
	var out []worklog.Issue
	for _, i := range f.issues {
		if strings.Contains(strings.ToLower(i.Summary), strings.ToLower(text)) {
			out = append(out, i)
		}
	}
	return out, nil
}

type harness struct {
	svc     *Service
	path    string
	store   *storage.Store
	reg     *auth.Registry
	remotes map[string]*fakeRemote
	now     time.Time
}

func newHarness(t *testing.T, accountIDs ...string) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	store, err := storage.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	h := &harness{
		path:    path,
		store:   store,
		reg:     auth.NewRegistry(store),
		remotes: map[string]*fakeRemote{},
		now:     time.Date(2024, 3, 4, 9, 0, 0, 0, time.Local),
	}
	for _, id := range accountIDs {
		_, err := h.reg.Save(ctx, auth.Account{AccountID: id, Email: id + "@example.com"}, auth.Tokens{AccessToken: "at-" + id, RefreshToken: "rt-" + id, CloudID: "c"})
		require.NoError(t, err)
		h.remotes[id] = &fakeRemote{}
	}

	h.svc = h.service(t, store)
	return h
}

func (h *harness) service(t *testing.T, store *storage.Store) *Service {
	t.Helper()
	svc, err := New(Options{
		Store:    store,
		Registry: auth.NewRegistry(store),
		NewClient: func(a auth.Account, _ auth.Tokens) (Remote, error) {
			r, ok := h.remotes[a.AccountID]
			if !ok {
				return nil, fmt.Errorf("no remote for %s", a.AccountID)
			}
			return r, nil
		},
		Now: func() time.Time { return h.now },
	})
	require.NoError(t, err)
	require.NoError(t, svc.Load(context.Background()))
	return svc
}

// sibling opens a second Service on the same database file, the way a
// second jiratrack process would.
func (h *harness) sibling(t *testing.T) *Service {
	t.Helper()
	store, err := storage.Open(h.path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return h.service(t, store)
}

func synced(id, account, day, key string, seconds int) worklog.Worklog {
	return worklog.Worklog{
		ID:               id,
		AccountID:        account,
		Issue:            worklog.Issue{ID: "i-" + key, Key: key},
		Started:          day,
		TimeSpentSeconds: seconds,
		State:            worklog.StateSynced,
	}
}

func ids(list []worklog.Worklog) []string {
	out := make([]string, 0, len(list))
	for _, w := range list {
		out = append(out, w.ID)
	}
	return out
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestRefresh_MergesAccountsAndPublishes(t *testing.T) {
	h := newHarness(t, "a", "b")
	h.remotes["a"].worklogs = []worklog.Worklog{synced("1", "a", "2024-03-04", "ABC-1", 3600)}
	h.remotes["b"].worklogs = []worklog.Worklog{synced("2", "", "2024-03-04", "XYZ-1", 1800)}
	ctx := context.Background()

	require.NoError(t, h.svc.Refresh(ctx))

	got := h.svc.Worklogs()
	require.Equal(t, []string{"1", "2"}, ids(got))
	require.Equal(t, "b", got[1].AccountID)

	snap := h.svc.State().Snapshot()
	require.Len(t, snap.Worklogs, 2)
	require.Len(t, snap.Accounts, 2)

	cached, err := storage.Get[[]worklog.Worklog](ctx, h.store, storage.KeyWorklogsRemote)
	require.NoError(t, err)
	require.Len(t, cached, 2)
}

func TestRefresh_FailingAccountKeepsCachedEntries(t *testing.T) {
	h := newHarness(t, "a", "b")
	h.remotes["a"].worklogs = []worklog.Worklog{synced("1", "a", "2024-03-04", "ABC-1", 3600)}
	h.remotes["b"].worklogs = []worklog.Worklog{synced("2", "b", "2024-03-04", "XYZ-1", 1800)}
	ctx := context.Background()
	require.NoError(t, h.svc.Refresh(ctx))

	h.remotes["a"].worklogs = nil
	h.remotes["b"].fetchErr = errors.New("boom")
	err := h.svc.Refresh(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "b@example.com")

	require.Equal(t, []string{"2"}, ids(h.svc.Worklogs()))
}

func TestRefresh_SessionExpiryDropsTokens(t *testing.T) {
	h := newHarness(t, "a")
	h.remotes["a"].fetchErr = fmt.Errorf("execute request: %w", auth.ErrSessionExpired)
	ctx := context.Background()

	err := h.svc.Refresh(ctx)
	require.ErrorIs(t, err, auth.ErrSessionExpired)

	tokens, err := h.reg.Tokens(ctx)
	require.NoError(t, err)
	require.Empty(t, tokens)

	err = h.svc.Refresh(ctx)
	require.ErrorIs(t, err, ErrNotLoggedIn)
	require.ErrorIs(t, err, auth.ErrSessionExpired)
	require.True(t, auth.OnlySessionExpired(err), "%v", err)
}

func TestSiblingServices_KeepEachOthersChanges(t *testing.T) {
	h := newHarness(t, "a")
	ui := h.sibling(t)
	ctx := context.Background()

	cli, err := h.svc.Add(ctx, Draft{Issue: worklog.Issue{Key: "CLI-1"}, Seconds: 600})
	require.NoError(t, err)
	require.NoError(t, ui.StartTimer(ctx, cli.ID))
	fromUI, err := ui.Add(ctx, Draft{Issue: worklog.Issue{Key: "UI-1"}, Seconds: 300})
	require.NoError(t, err)
	fromCLI, err := h.svc.Add(ctx, Draft{Issue: worklog.Issue{Key: "CLI-2"}, Seconds: 900})
	require.NoError(t, err)

	fresh := h.sibling(t)
	got := ids(fresh.Local())
	require.ElementsMatch(t, []string{cli.ID, fromUI.ID, fromCLI.ID}, got)
	require.True(t, fresh.Timer().IsTracking(cli.ID), "timer started by the other service was lost")
	require.ElementsMatch(t, got, ids(h.svc.Local()))
}

func TestPush_SkipsEntriesSettledBySibling(t *testing.T) {
	h := newHarness(t, "a")
	ctx := context.Background()
	_, err := h.svc.Add(ctx, Draft{Issue: worklog.Issue{Key: "ABC-1"}, Seconds: 600})
	require.NoError(t, err)
	other := h.sibling(t)
	require.Len(t, worklog.Pending(other.Local()), 1)

	res, err := h.svc.Push(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)

	res, err = other.Push(ctx)
	require.NoError(t, err)
	require.Equal(t, PushResult{}, res)
	require.Len(t, h.remotes["a"].added, 1)
	require.Empty(t, other.Local())
	require.Equal(t, []string{"1001"}, ids(other.Worklogs()))
}

func TestLocalEdits(t *testing.T) {
	h := newHarness(t, "a")
	h.remotes["a"].worklogs = []worklog.Worklog{
		synced("1", "a", "2024-03-04", "ABC-1", 3600),
		synced("2", "a", "2024-03-04", "ABC-2", 600),
	}
	ctx := context.Background()
	require.NoError(t, h.svc.Refresh(ctx))

	created, err := h.svc.Add(ctx, Draft{Issue: worklog.Issue{ID: "i-ABC-3", Key: "ABC-3"}, Seconds: 900})
	require.NoError(t, err)
	require.True(t, created.IsLocal())
	require.Equal(t, "a", created.AccountID)
	require.Equal(t, "2024-03-04", created.Started)
	require.Equal(t, worklog.StateCreated, created.State)

	updated, err := h.svc.Update(ctx, "1", Change{Seconds: intPtr(7200), Comment: strPtr("review")})
	require.NoError(t, err)
	require.Equal(t, worklog.StateEdited, updated.State)

	require.NoError(t, h.svc.Delete(ctx, "2"))

	editedCreated, err := h.svc.Update(ctx, created.ID, Change{Day: strPtr("2024-03-05")})
	require.NoError(t, err)
	require.Equal(t, worklog.StateCreated, editedCreated.State)

	got := h.svc.Worklogs()
	require.Equal(t, []string{"1", created.ID}, ids(got))
	require.Equal(t, 7200, got[0].TimeSpentSeconds)

	local, err := storage.Get[[]worklog.Worklog](ctx, h.store, storage.KeyWorklogsLocal)
	require.NoError(t, err)
	require.Len(t, local, 3)
	require.Equal(t, 3, h.svc.State().Snapshot().Pending)

	// Deleting a never-pushed entry removes it outright.
	require.NoError(t, h.svc.Delete(ctx, created.ID))
	require.Len(t, h.svc.Local(), 2)

	_, err = h.svc.Update(ctx, "nope", Change{})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = h.svc.Add(ctx, Draft{Issue: worklog.Issue{Key: "ABC-1"}, Day: "04.03.2024"})
	require.Error(t, err)
}

func TestAdd_WithoutAccountFails(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Add(context.Background(), Draft{Issue: worklog.Issue{Key: "ABC-1"}})
	require.ErrorIs(t, err, ErrNoAccounts)
}

func TestTimer_StartSwitchAndStop(t *testing.T) {
	h := newHarness(t, "a")
	h.remotes["a"].worklogs = []worklog.Worklog{
		synced("1", "a", "2024-03-04", "ABC-1", 3600),
		synced("2", "a", "2024-03-04", "ABC-2", 600),
	}
	ctx := context.Background()
	require.NoError(t, h.svc.Refresh(ctx))

	require.NoError(t, h.svc.StartTimer(ctx, "1"))
	h.now = h.now.Add(10*time.Minute + 30*time.Second + 700*time.Millisecond)

	// Switching books the running timer first.
	require.NoError(t, h.svc.StartTimer(ctx, "2"))
	w, ok := worklog.Find(h.svc.Worklogs(), "1")
	require.True(t, ok)
	require.Equal(t, 3600+630, w.TimeSpentSeconds)
	require.Equal(t, worklog.StateEdited, w.State)
	require.True(t, h.svc.Timer().IsTracking("2"))

	h.now = h.now.Add(time.Minute)
	stopped, ok, err := h.svc.StopTimer(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 660, stopped.TimeSpentSeconds)
	require.False(t, h.svc.Timer().Running())

	_, ok, err = h.svc.StopTimer(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	persisted, err := storage.Get[worklog.Timer](ctx, h.store, storage.KeyActiveTimer)
	require.NoError(t, err)
	require.False(t, persisted.Running())

	require.ErrorIs(t, h.svc.StartTimer(ctx, "missing"), ErrNotFound)
}

func TestTimer_SurvivesReload(t *testing.T) {
	h := newHarness(t, "a")
	ctx := context.Background()
	w, err := h.svc.Add(ctx, Draft{Issue: worklog.Issue{Key: "ABC-1"}})
	require.NoError(t, err)
	require.NoError(t, h.svc.StartTimer(ctx, w.ID))

	reloaded, err := New(Options{Store: h.store, NewClient: h.svc.newClient, Now: h.svc.now})
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(ctx))
	require.True(t, reloaded.Timer().IsTracking(w.ID))
}

func TestPush_SettlesEntries(t *testing.T) {
	h := newHarness(t, "a")
	remote := h.remotes["a"]
	remote.worklogs = []worklog.Worklog{
		synced("1", "a", "2024-03-04", "ABC-1", 3600),
		synced("2", "a", "2024-03-04", "ABC-2", 600),
	}
	ctx := context.Background()
	require.NoError(t, h.svc.Refresh(ctx))

	created, err := h.svc.Add(ctx, Draft{Issue: worklog.Issue{ID: "i-ABC-3", Key: "ABC-3"}, Seconds: 900})
	require.NoError(t, err)
	_, err = h.svc.Add(ctx, Draft{Issue: worklog.Issue{ID: "i-ABC-4", Key: "ABC-4"}})
	require.NoError(t, err)
	_, err = h.svc.Update(ctx, "1", Change{Seconds: intPtr(1800)})
	require.NoError(t, err)
	require.NoError(t, h.svc.Delete(ctx, "2"))
	require.NoError(t, h.svc.StartTimer(ctx, created.ID))

	res, err := h.svc.Push(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(PushResult{Created: 1, Updated: 1, Deleted: 1, Skipped: 1}, res); diff != "" {
		t.Fatalf("PushResult mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, remote.added, 1)
	require.Equal(t, created.ID, remote.added[0].ID)
	require.Len(t, remote.updated, 1)
	require.Equal(t, 1800, remote.updated[0].TimeSpentSeconds)
	require.Len(t, remote.deleted, 1)

	// Only the empty draft stays local.
	local := h.svc.Local()
	require.Len(t, local, 1)
	require.Equal(t, "ABC-4", local[0].Issue.Key)

	got := h.svc.Worklogs()
	w, ok := worklog.Find(got, "1001")
	require.True(t, ok)
	require.Equal(t, worklog.StateSynced, w.State)
	_, ok = worklog.Find(got, "2")
	require.False(t, ok)
	require.True(t, h.svc.Timer().IsTracking("1001"))

	backup, err := storage.Get[[]worklog.Worklog](ctx, h.store, storage.KeyWorklogsLocalBackups)
	require.NoError(t, err)
	require.Len(t, backup, 4)
}

func TestPush_FailuresStayLocal(t *testing.T) {
	h := newHarness(t, "a")
	remote := h.remotes["a"]
	remote.worklogs = []worklog.Worklog{
		synced("1", "a", "2024-03-04", "ABC-1", 3600),
		synced("2", "a", "2024-03-04", "ABC-2", 600),
	}
	ctx := context.Background()
	require.NoError(t, h.svc.Refresh(ctx))

	_, err := h.svc.Update(ctx, "1", Change{Seconds: intPtr(60)})
	require.NoError(t, err)
	_, err = h.svc.Update(ctx, "2", Change{Seconds: intPtr(120)})
	require.NoError(t, err)
	remote.pushErr = map[string]error{
		"1": &jira.APIError{Method: http.MethodPut, Path: "/x", Status: http.StatusBadRequest, Messages: []string{"bad"}},
		"2": &jira.APIError{Method: http.MethodPut, Path: "/y", Status: http.StatusNotFound},
	}

	res, err := h.svc.Push(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad")
	require.Equal(t, 1, res.Failed)
	require.Equal(t, 1, res.Updated)

	// The 404 entry is settled as gone, the 400 entry stays pending.
	require.Equal(t, []string{"1"}, ids(h.svc.Local()))
	require.Equal(t, []string{"1"}, ids(h.svc.Worklogs()))
}

func TestSyncAndRestore(t *testing.T) {
	h := newHarness(t, "a")
	ctx := context.Background()

	_, err := h.svc.Restore(ctx)
	require.ErrorIs(t, err, ErrNoBackup)

	_, err = h.svc.Add(ctx, Draft{Issue: worklog.Issue{ID: "i-ABC-1", Key: "ABC-1"}, Seconds: 60})
	require.NoError(t, err)
	res, err := h.svc.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)
	require.Empty(t, h.svc.Local())
	require.Equal(t, []string{"1001"}, ids(h.svc.Worklogs()))

	n, err := h.svc.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, h.svc.Local(), 1)
}

func TestSearchAndLogout(t *testing.T) {
	h := newHarness(t, "a", "b")
	h.remotes["a"].issues = []worklog.Issue{{ID: "1", Key: "ABC-1", Summary: "Fix login"}}
	h.remotes["b"].worklogs = []worklog.Worklog{synced("9", "b", "2024-03-04", "XYZ-1", 60)}
	ctx := context.Background()
	require.NoError(t, h.svc.Refresh(ctx))

	issues, err := h.svc.Search(ctx, "", "login")
	require.NoError(t, err)
	require.Len(t, issues, 1)

	require.NoError(t, h.svc.Logout(ctx, "b"))
	require.Empty(t, h.svc.Worklogs())
	require.Len(t, h.svc.Accounts(), 1)

	w, err := h.svc.Resolve("9")
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, w.ID)
}
