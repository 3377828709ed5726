package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

type accessibleResource struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	URL       string   `json:"url"`
	AvatarURL string   `json:"avatarUrl"`
	Scopes    []string `json:"scopes"`
}

type userInfo struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Picture   string `json:"picture"`
}

// InitializeAccount resolves the workspace and user behind a fresh token.
// The first accessible Jira site becomes the account's workspace.
func (o *OAuth) InitializeAccount(ctx context.Context, tok *oauth2.Token) (Account, Tokens, error) {
	if tok == nil || tok.AccessToken == "" {
		return Account{}, Tokens{}, fmt.Errorf("access token is empty")
	}

	var resources []accessibleResource
	if err := o.getJSON(ctx, tok.AccessToken, "/oauth/token/accessible-resources", &resources); err != nil {
		return Account{}, Tokens{}, fmt.Errorf("fetch accessible resources: %w", err)
	}
	if len(resources) == 0 {
		return Account{}, Tokens{}, fmt.Errorf("no jira site is accessible with this login")
	}
	site := resources[0]

	var me userInfo
	if err := o.getJSON(ctx, tok.AccessToken, "/me", &me); err != nil {
		return Account{}, Tokens{}, fmt.Errorf("fetch user info: %w", err)
	}
	if me.AccountID == "" {
		return Account{}, Tokens{}, fmt.Errorf("user info has no account id")
	}

	account := Account{
		AccountID: me.AccountID,
		Name:      me.Name,
		Email:     me.Email,
		AvatarURL: me.Picture,
		Workspace: Workspace{
			ID:        site.ID,
			Name:      site.Name,
			URL:       site.URL,
			AvatarURL: site.AvatarURL,
		},
	}
	tokens := Tokens{CloudID: site.ID}.WithToken(tok)
	return account, tokens, nil
}

func (o *OAuth) getJSON(ctx context.Context, accessToken, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := o.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api %s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
