package jira

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/five82/jiratrack/internal/auth"
)

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// tokenTransport authorizes requests with the account's access token. A 401
// triggers one refresh and one retry; concurrent requests that fail with the
// same stale token share a single refresh.
type tokenTransport struct {
	base      http.RoundTripper
	refresher Refresher
	onRefresh func(auth.Tokens)
	logger    *zap.Logger

	mu     sync.Mutex
	tokens auth.Tokens
}

func (t *tokenTransport) current() auth.Tokens {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokens
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	used := t.current().AccessToken
	resp, err := t.send(req, used)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || t.refresher == nil {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()

	fresh, err := t.refresh(req.Context(), used)
	if err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		retry.Body = body
	}
	return t.send(retry, fresh)
}

func (t *tokenTransport) send(req *http.Request, accessToken string) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Body = req.Body
	if accessToken != "" {
		out.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return t.base.RoundTrip(out)
}

func (t *tokenTransport) refresh(ctx context.Context, used string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tokens.AccessToken != used {
		return t.tokens.AccessToken, nil
	}
	tok, err := t.refresher.Refresh(ctx, t.tokens.RefreshToken)
	if err != nil {
		return "", err
	}
	t.tokens = t.tokens.WithToken(tok)
	t.logger.Debug("access token refreshed")
	if t.onRefresh != nil {
		t.onRefresh(t.tokens)
	}
	return t.tokens.AccessToken, nil
}
