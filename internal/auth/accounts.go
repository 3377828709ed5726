package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/five82/jiratrack/internal/storage"
)

// ErrUnknownAccount is returned when an account ID is not logged in.
var ErrUnknownAccount = errors.New("unknown account")

// Workspace is the Jira Cloud site an account is connected to.
type Workspace struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Account is a logged-in Atlassian user.
type Account struct {
	AccountID string    `json:"accountId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Workspace Workspace `json:"workspace"`
	IsPrimary bool      `json:"isPrimary"`
}

// Tokens are the OAuth credentials for one account.
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	CloudID      string    `json:"cloudId"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// WithToken returns t updated from a token endpoint response. An empty
// refresh token in the response keeps the current one.
func (t Tokens) WithToken(tok *oauth2.Token) Tokens {
	if tok == nil {
		return t
	}
	t.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		t.RefreshToken = tok.RefreshToken
	}
	t.Expiry = tok.Expiry
	return t
}

// AddAccount inserts or replaces a by AccountID. The first account becomes
// primary and a replaced account keeps its primary flag.
func AddAccount(list []Account, a Account) []Account {
	out := make([]Account, 0, len(list)+1)
	a.IsPrimary = len(list) == 0
	for _, existing := range list {
		if existing.AccountID == a.AccountID {
			a.IsPrimary = existing.IsPrimary
			continue
		}
		out = append(out, existing)
	}
	if len(out) == 0 {
		a.IsPrimary = true
	}
	return append(out, a)
}

// RemoveAccount drops accountID. If it was primary, the first remaining account takes over.
func RemoveAccount(list []Account, accountID string) []Account {
	out := make([]Account, 0, len(list))
	hadPrimary := false
	for _, a := range list {
		if a.AccountID == accountID {
			hadPrimary = hadPrimary || a.IsPrimary
			continue
		}
		out = append(out, a)
	}
	if hadPrimary && len(out) > 0 {
		out[0].IsPrimary = true
	}
	return out
}

// SetPrimary marks accountID as the only primary account.
func SetPrimary(list []Account, accountID string) ([]Account, error) {
	found := false
	out := make([]Account, len(list))
	for i, a := range list {
		a.IsPrimary = a.AccountID == accountID
		found = found || a.IsPrimary
		out[i] = a
	}
	if !found {
		return list, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	return out, nil
}

// Primary returns the primary account.
func Primary(list []Account) (Account, bool) {
	for _, a := range list {
		if a.IsPrimary {
			return a, true
		}
	}
	if len(list) > 0 {
		return list[0], true
	}
	return Account{}, false
}

// Registry persists accounts and their tokens.
type Registry struct {
	store *storage.Store
}

// NewRegistry returns a registry backed by store.
func NewRegistry(store *storage.Store) *Registry {
	return &Registry{store: store}
}

// Accounts lists the logged-in accounts.
func (r *Registry) Accounts(ctx context.Context) ([]Account, error) {
	return storage.Get[[]Account](ctx, r.store, storage.KeyLogins)
}

// Tokens returns the stored tokens keyed by account ID.
func (r *Registry) Tokens(ctx context.Context) (map[string]Tokens, error) {
	tokens, err := storage.Get[map[string]Tokens](ctx, r.store, storage.KeyJiraAccountTokens)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		tokens = map[string]Tokens{}
	}
	return tokens, nil
}

// Save records a freshly logged-in account with its tokens.
func (r *Registry) Save(ctx context.Context, a Account, t Tokens) ([]Account, error) {
	var accounts []Account
	err := r.store.Transact(ctx, func(tx *storage.Tx) error {
		if err := updateTokens(ctx, tx, func(tokens map[string]Tokens) { tokens[a.AccountID] = t }); err != nil {
			return err
		}
		current, err := storage.Get[[]Account](ctx, tx, storage.KeyLogins)
		if err != nil {
			return err
		}
		accounts = AddAccount(current, a)
		return storage.Set(ctx, tx, storage.KeyLogins, accounts)
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// SaveTokens replaces the tokens of one account. Concurrent saves for
// different accounts all survive.
func (r *Registry) SaveTokens(ctx context.Context, accountID string, t Tokens) error {
	return r.store.Transact(ctx, func(tx *storage.Tx) error {
		return updateTokens(ctx, tx, func(tokens map[string]Tokens) { tokens[accountID] = t })
	})
}

// DropTokens forgets the tokens of an account whose session expired. The
// account stays listed so the user can see which login needs renewing.
func (r *Registry) DropTokens(ctx context.Context, accountID string) error {
	return r.store.Transact(ctx, func(tx *storage.Tx) error {
		return updateTokens(ctx, tx, func(tokens map[string]Tokens) { delete(tokens, accountID) })
	})
}

// Remove logs an account out.
func (r *Registry) Remove(ctx context.Context, accountID string) ([]Account, error) {
	var accounts []Account
	err := r.store.Transact(ctx, func(tx *storage.Tx) error {
		current, err := storage.Get[[]Account](ctx, tx, storage.KeyLogins)
		if err != nil {
			return err
		}
		known := false
		for _, a := range current {
			known = known || a.AccountID == accountID
		}
		if !known {
			return fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
		}
		accounts = RemoveAccount(current, accountID)
		if err := updateTokens(ctx, tx, func(tokens map[string]Tokens) { delete(tokens, accountID) }); err != nil {
			return err
		}
		return storage.Set(ctx, tx, storage.KeyLogins, accounts)
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// MakePrimary changes the primary account.
func (r *Registry) MakePrimary(ctx context.Context, accountID string) ([]Account, error) {
	return storage.Update(ctx, r.store, storage.KeyLogins, func(current []Account) ([]Account, error) {
		return SetPrimary(current, accountID)
	})
}

func updateTokens(ctx context.Context, tx *storage.Tx, fn func(map[string]Tokens)) error {
	tokens, err := storage.Get[map[string]Tokens](ctx, tx, storage.KeyJiraAccountTokens)
	if err != nil {
		return err
	}
	if tokens == nil {
		tokens = map[string]Tokens{}
	}
	fn(tokens)
	return storage.Set(ctx, tx, storage.KeyJiraAccountTokens, tokens)
}
