package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/five82/jiratrack/internal/storage"
)

func TestAddAccount(t *testing.T) {
	list := AddAccount(nil, Account{AccountID: "a", Name: "Ada"})
	list = AddAccount(list, Account{AccountID: "b", Name: "Bob"})
	list = AddAccount(list, Account{AccountID: "a", Name: "Ada Lovelace"})

	want := []Account{
		{AccountID: "b", Name: "Bob"},
		{AccountID: "a", Name: "Ada Lovelace", IsPrimary: true},
	}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Fatalf("AddAccount mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveAccount_ReassignsPrimary(t *testing.T) {
	list := []Account{
		{AccountID: "a", IsPrimary: true},
		{AccountID: "b"},
		{AccountID: "c"},
	}
	got := RemoveAccount(list, "a")
	want := []Account{{AccountID: "b", IsPrimary: true}, {AccountID: "c"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("RemoveAccount mismatch (-want +got):\n%s", diff)
	}
	if !list[0].IsPrimary {
		t.Fatalf("RemoveAccount modified its input")
	}

	got = RemoveAccount(want, "c")
	if diff := cmp.Diff([]Account{{AccountID: "b", IsPrimary: true}}, got); diff != "" {
		t.Fatalf("RemoveAccount mismatch (-want +got):\n%s", diff)
	}
}

func TestSetPrimaryAndPrimary(t *testing.T) {
	list := []Account{{AccountID: "a", IsPrimary: true}, {AccountID: "b"}}

	got, err := SetPrimary(list, "b")
	require.NoError(t, err)
	p, ok := Primary(got)
	require.True(t, ok)
	require.Equal(t, "b", p.AccountID)
	require.False(t, got[0].IsPrimary)

	_, err = SetPrimary(list, "zzz")
	require.ErrorIs(t, err, ErrUnknownAccount)

	_, ok = Primary(nil)
	require.False(t, ok)
}

func TestRegistry_SaveAndRemove(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	reg := NewRegistry(store)

	_, err = reg.Save(ctx, Account{AccountID: "a"}, Tokens{AccessToken: "at-a", RefreshToken: "rt-a", CloudID: "c1"})
	require.NoError(t, err)
	accounts, err := reg.Save(ctx, Account{AccountID: "b"}, Tokens{AccessToken: "at-b", RefreshToken: "rt-b", CloudID: "c2"})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.True(t, accounts[0].IsPrimary)

	tokens, err := reg.Tokens(ctx)
	require.NoError(t, err)
	require.Equal(t, "rt-b", tokens["b"].RefreshToken)

	accounts, err = reg.Remove(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []Account{{AccountID: "b", IsPrimary: true}}, accounts)

	tokens, err = reg.Tokens(ctx)
	require.NoError(t, err)
	_, ok := tokens["a"]
	require.False(t, ok)

	_, err = reg.Remove(ctx, "a")
	require.ErrorIs(t, err, ErrUnknownAccount)
}

func TestRegistry_DropTokensKeepsAccount(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	reg := NewRegistry(store)
	_, err = reg.Save(ctx, Account{AccountID: "a"}, Tokens{RefreshToken: "rt"})
	require.NoError(t, err)

	require.NoError(t, reg.DropTokens(ctx, "a"))
	accounts, err := reg.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	tokens, err := reg.Tokens(ctx)
	require.NoError(t, err)
	require.Empty(t, tokens)
}

func TestRegistry_ConcurrentTokenSavesAreNotLost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	// One registry per handle, as when the UI and a CLI command both refresh.
	var regs []*Registry
	for i := 0; i < 2; i++ {
		store, err := storage.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		regs = append(regs, NewRegistry(store))
	}

	const accounts, rounds = 4, 100
	var wg sync.WaitGroup
	errs := make(chan error, accounts)
	for a := 0; a < accounts; a++ {
		wg.Add(1)
		go func(a int) {
			defer wg.Done()
			reg := regs[a%len(regs)]
			id := fmt.Sprintf("acc-%d", a)
			for r := 0; r < rounds; r++ {
				if err := reg.SaveTokens(ctx, id, Tokens{RefreshToken: fmt.Sprintf("%s-%d", id, r)}); err != nil {
					errs <- err
					return
				}
			}
		}(a)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	tokens, err := regs[0].Tokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, accounts)
	for a := 0; a < accounts; a++ {
		id := fmt.Sprintf("acc-%d", a)
		require.Equal(t, fmt.Sprintf("%s-%d", id, rounds-1), tokens[id].RefreshToken)
	}
}

func TestRegistry_MakePrimary(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	reg := NewRegistry(store)
	_, err = reg.Save(ctx, Account{AccountID: "a"}, Tokens{RefreshToken: "rt-a"})
	require.NoError(t, err)
	_, err = reg.Save(ctx, Account{AccountID: "b"}, Tokens{RefreshToken: "rt-b"})
	require.NoError(t, err)

	accounts, err := reg.MakePrimary(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, []Account{{AccountID: "a"}, {AccountID: "b", IsPrimary: true}}, accounts)

	_, err = reg.MakePrimary(ctx, "zzz")
	require.ErrorIs(t, err, ErrUnknownAccount)
	stored, err := reg.Accounts(ctx)
	require.NoError(t, err)
	require.Equal(t, accounts, stored)
}
