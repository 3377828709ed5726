package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/five82/jiratrack/internal/auth"
	"github.com/five82/jiratrack/internal/worklog"
)

const (
	defaultUserAgent = "jiratrack/0.1"
	requestTimeout   = 20 * time.Second
)

// Options configure a Client for one account.
type Options struct {
	// CloudID selects the Jira site. Defaults to Tokens.CloudID.
	CloudID   string
	Tokens    auth.Tokens
	Refresher Refresher
	// OnRefresh receives rotated tokens so they can be persisted.
	OnRefresh func(auth.Tokens)
	APIBase   string
	Logger    *zap.Logger
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Client talks to the Jira Cloud REST API on behalf of one account.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	transport *tokenTransport
	logger    *zap.Logger
	userAgent string
	now       func() time.Time
}

// APIError is a non-2xx response from Jira.
type APIError struct {
	Method   string
	Path     string
	Status   int
	Messages []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("jira %s %s returned status %d", e.Method, e.Path, e.Status)
	if len(e.Messages) > 0 {
		msg += ": " + strings.Join(e.Messages, "; ")
	}
	return msg
}

// IsNotFound reports whether err is a 404 from Jira.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// NewClient builds a Client for the account's site.
func NewClient(opts Options) (*Client, error) {
	cloudID := strings.TrimSpace(opts.CloudID)
	if cloudID == "" {
		cloudID = strings.TrimSpace(opts.Tokens.CloudID)
	}
	if cloudID == "" {
		return nil, fmt.Errorf("cloud id required")
	}
	apiBase := strings.TrimSpace(opts.APIBase)
	if apiBase == "" {
		apiBase = auth.APIBase
	}
	root, err := url.Parse(apiBase)
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", apiBase, err)
	}
	base := root.JoinPath("ex", "jira", cloudID)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := opts.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	transport := &tokenTransport{
		base:      rt,
		refresher: opts.Refresher,
		onRefresh: opts.OnRefresh,
		logger:    logger,
		tokens:    opts.Tokens,
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout, Transport: transport},
		transport: transport,
		logger:    logger,
		userAgent: defaultUserAgent,
		now:       time.Now,
	}, nil
}

// Tokens returns the tokens currently in use, including any refresh.
func (c *Client) Tokens() auth.Tokens {
	return c.transport.current()
}

// Myself returns the user the access token belongs to.
func (c *Client) Myself(ctx context.Context) (User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/myself", nil, nil, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Issue fetches one issue by ID or key with its summary and project.
func (c *Client) Issue(ctx context.Context, idOrKey string) (Issue, error) {
	idOrKey = strings.TrimSpace(idOrKey)
	if idOrKey == "" {
		return Issue{}, fmt.Errorf("issue id or key required")
	}
	query := url.Values{"fields": {"summary,project"}}
	var issue Issue
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/issue/"+url.PathEscape(idOrKey), query, nil, &issue); err != nil {
		return Issue{}, err
	}
	return issue, nil
}

// AddWorklog creates w on its issue and returns the ID Jira assigned.
func (c *Client) AddWorklog(ctx context.Context, w worklog.Worklog) (string, error) {
	payload, err := newWorklogPayload(w)
	if err != nil {
		return "", err
	}
	var created Worklog
	if err := c.do(ctx, http.MethodPost, issuePath(w.Issue)+"/worklog", nil, payload, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("jira returned a worklog without id")
	}
	return created.ID, nil
}

// UpdateWorklog replaces day, duration and comment of an existing worklog.
func (c *Client) UpdateWorklog(ctx context.Context, w worklog.Worklog) error {
	if w.IsLocal() {
		return fmt.Errorf("worklog %s was never pushed", w.ID)
	}
	payload, err := newWorklogPayload(w)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, issuePath(w.Issue)+"/worklog/"+url.PathEscape(w.ID), nil, payload, nil)
}

// DeleteWorklog removes a worklog from Jira.
func (c *Client) DeleteWorklog(ctx context.Context, w worklog.Worklog) error {
	if w.IsLocal() {
		return fmt.Errorf("worklog %s was never pushed", w.ID)
	}
	return c.do(ctx, http.MethodDelete, issuePath(w.Issue)+"/worklog/"+url.PathEscape(w.ID), nil, nil, nil)
}

func newWorklogPayload(w worklog.Worklog) (worklogPayload, error) {
	if w.TimeSpentSeconds <= 0 {
		return worklogPayload{}, fmt.Errorf("worklog %s has no time spent", w.ID)
	}
	started, err := worklog.JiraStarted(w.Started)
	if err != nil {
		return worklogPayload{}, err
	}
	return worklogPayload{
		Started:          started,
		TimeSpentSeconds: w.TimeSpentSeconds,
		Comment:          DocumentFromText(w.Comment),
	}, nil
}

func issuePath(issue worklog.Issue) string {
	id := issue.ID
	if id == "" {
		id = issue.Key
	}
	return "/rest/api/3/issue/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	reqURL := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		reqURL.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.logger.Debug("jira request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode}
		var eb errorBody
		if raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); len(raw) > 0 {
			if json.Unmarshal(raw, &eb) == nil {
				apiErr.Messages = eb.messages()
			}
		}
		return apiErr
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
