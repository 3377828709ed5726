package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrStateMismatch is returned when the callback does not carry the state
// the consent page was opened with.
var ErrStateMismatch = errors.New("An error occurred while authenticating. Maybe your session timed out? Please try again.")

const callbackPage = `<!doctype html><html><body><h3>jiratrack</h3><p>%s</p><p>You can close this window.</p></body></html>`

// LoginFlow runs the browser based authorization code flow against a
// loopback callback server.
type LoginFlow struct {
	OAuth  *OAuth
	Open   func(url string) error
	Out    io.Writer
	Logger *zap.Logger
}

type callbackResult struct {
	code string
	err  error
}

// Login opens the consent page and waits for the redirect. On success the
// account's workspace and profile have been resolved.
func (f LoginFlow) Login(ctx context.Context) (Account, Tokens, error) {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	redirect, err := url.Parse(f.OAuth.RedirectURI())
	if err != nil || redirect.Host == "" {
		return Account{}, Tokens{}, fmt.Errorf("invalid redirect uri %q", f.OAuth.RedirectURI())
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", redirect.Host)
	if err != nil {
		return Account{}, Tokens{}, fmt.Errorf("listen for oauth callback: %w", err)
	}
	if redirect.Port() == "0" {
		redirect.Host = ln.Addr().String()
	}
	oauth := f.OAuth.WithRedirect(redirect.String())

	state := uuid.NewString()
	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		res := readCallback(r, state)
		msg := "Login complete."
		if res.err != nil {
			msg = res.err.Error()
			w.WriteHeader(http.StatusBadRequest)
		}
		_, _ = fmt.Fprintf(w, callbackPage, msg)
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("oauth callback server stopped", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := oauth.AuthCodeURL(state)
	if f.Out != nil {
		_, _ = fmt.Fprintf(f.Out, "Opening the Atlassian login page. If it does not open, visit:\n%s\n", authURL)
	}
	if f.Open != nil {
		if err := f.Open(authURL); err != nil {
			logger.Warn("open browser failed", zap.Error(err))
		}
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return Account{}, Tokens{}, ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return Account{}, Tokens{}, res.err
	}

	tok, err := oauth.Exchange(ctx, res.code)
	if err != nil {
		return Account{}, Tokens{}, err
	}
	account, tokens, err := oauth.InitializeAccount(ctx, tok)
	if err != nil {
		return Account{}, Tokens{}, err
	}
	logger.Info("logged in",
		zap.String("account_id", account.AccountID),
		zap.String("workspace", account.Workspace.Name),
	)
	return account, tokens, nil
}

func readCallback(r *http.Request, state string) callbackResult {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		desc := q.Get("error_description")
		if desc == "" {
			desc = e
		}
		return callbackResult{err: fmt.Errorf("authorization denied: %s", desc)}
	}
	if q.Get("state") != state {
		return callbackResult{err: ErrStateMismatch}
	}
	code := q.Get("code")
	if code == "" {
		return callbackResult{err: fmt.Errorf("callback is missing the authorization code")}
	}
	return callbackResult{code: code}
}

// OpenBrowser opens url with the platform's default handler.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
