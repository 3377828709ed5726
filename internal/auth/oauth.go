package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	AuthURL  = "https://auth.atlassian.com/authorize"
	TokenURL = "https://auth.atlassian.com/oauth/token"
	APIBase  = "https://api.atlassian.com"
	Audience = "api.atlassian.com"
)

// Scopes requested during login. offline_access is required to receive a refresh token.
var Scopes = []string{
	"delete:issue-worklog:jira",
	"delete:issue-worklog.property:jira",
	"read:account",
	"read:application-role:jira",
	"read:audit-log:jira",
	"read:avatar:jira",
	"read:comment:jira",
	"read:field-configuration:jira",
	"read:field:jira",
	"read:field.default-value:jira",
	"read:field.option:jira",
	"read:group:jira",
	"read:issue-details:jira",
	"read:issue-meta:jira",
	"read:issue-type:jira",
	"read:issue-worklog:jira",
	"read:issue-worklog.property:jira",
	"read:issue:jira",
	"read:me",
	"read:project-role:jira",
	"read:user:jira",
	"write:comment:jira",
	"write:issue-worklog:jira",
	"write:issue-worklog.property:jira",
	"write:issue.time-tracking:jira",
	"offline_access",
}

// ErrSessionExpired means the refresh token was rejected and the user has to log in again.
var ErrSessionExpired = errors.New("session expired, please log in again")

// OnlySessionExpired reports whether err is non-nil and every failure
// joined into it is an expired session. Such errors need a new login, not
// a retry.
func OnlySessionExpired(err error) bool {
	switch e := err.(type) {
	case nil:
		return false
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if !OnlySessionExpired(inner) {
				return false
			}
		}
		return true
	}
	if err == ErrSessionExpired {
		return true
	}
	return OnlySessionExpired(errors.Unwrap(err))
}

// ErrNotConfigured is returned when no OAuth app credentials are available.
var ErrNotConfigured = errors.New("jira oauth app is not configured (set client_id and client_secret)")

// Options configure the OAuth client. Empty URLs use Atlassian's endpoints.
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	APIBase      string
	HTTPClient   *http.Client
}

// OAuth wraps the Atlassian 3LO authorization code flow.
type OAuth struct {
	config  oauth2.Config
	apiBase string
	http    *http.Client
}

// NewOAuth builds an OAuth client from the app credentials.
func NewOAuth(opts Options) (*OAuth, error) {
	if strings.TrimSpace(opts.ClientID) == "" || strings.TrimSpace(opts.ClientSecret) == "" {
		return nil, ErrNotConfigured
	}
	authURL := firstNonEmpty(opts.AuthURL, AuthURL)
	tokenURL := firstNonEmpty(opts.TokenURL, TokenURL)
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &OAuth{
		config: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBase: strings.TrimRight(firstNonEmpty(opts.APIBase, APIBase), "/"),
		http:    httpClient,
	}, nil
}

// RedirectURI returns the configured callback URL.
func (o *OAuth) RedirectURI() string {
	return o.config.RedirectURL
}

// WithRedirect returns a copy that uses a different callback URL.
func (o *OAuth) WithRedirect(uri string) *OAuth {
	dup := *o
	dup.config.RedirectURL = uri
	return &dup
}

// AuthCodeURL returns the consent page URL for the given anti-forgery state.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("audience", Audience),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for access and refresh tokens.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("authorization code is empty")
	}
	tok, err := o.config.Exchange(o.context(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", classify(err, false))
	}
	return tok, nil
}

// Refresh obtains a new access token. Atlassian rotates refresh tokens, so
// callers must persist the returned refresh token.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrSessionExpired
	}
	src := o.config.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", classify(err, true))
	}
	return tok, nil
}

func (o *OAuth) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.http)
}

// classify surfaces the token endpoint's error description. A rejected
// refresh token maps to ErrSessionExpired.
func classify(err error, refreshing bool) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return err
	}
	desc := re.ErrorDescription
	if desc == "" {
		desc = strings.TrimSpace(string(re.Body))
	}
	if refreshing && (re.ErrorCode == "invalid_grant" || strings.Contains(desc, "refresh_token is invalid")) {
		return fmt.Errorf("%w: %s", ErrSessionExpired, desc)
	}
	if desc != "" {
		return fmt.Errorf("%s: %w", desc, err)
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
