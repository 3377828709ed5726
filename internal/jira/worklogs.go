package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/five82/jiratrack/internal/worklog"
)

const (
	issuePageSize   = 40
	worklogPageSize = 5000
	maxPageCalls    = 20
)

var (
	errTooManyIssueCalls   = errors.New("too many issues calls")
	errTooManyWorklogCalls = errors.New("too many worklogs calls")
)

// RemoteWorklogs loads every worklog accountID logged during the last
// weeks weeks. Worklogs without a start or duration are skipped.
func (c *Client) RemoteWorklogs(ctx context.Context, accountID string, weeks int) ([]worklog.Worklog, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account id required")
	}
	if weeks <= 0 {
		weeks = 4
	}
	startedAfter := c.now().Add(-time.Duration(weeks) * 7 * 24 * time.Hour)
	jql := fmt.Sprintf("worklogAuthor = %s AND worklogDate > -%dw", accountID, weeks)

	var out []worklog.Worklog
	for startAt, total, calls := 0, 1, 0; startAt < total; calls++ {
		if calls >= maxPageCalls {
			return nil, errTooManyIssueCalls
		}
		page, err := c.search(ctx, SearchRequest{
			JQL:        jql,
			Fields:     []string{"summary", "project", "worklog"},
			StartAt:    startAt,
			MaxResults: issuePageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("search issues: %w", err)
		}
		for _, issue := range page.Issues {
			logs := issue.Fields.Worklog
			var raw []Worklog
			if logs.Complete() {
				raw = logs.Worklogs
			} else {
				raw, err = c.IssueWorklogs(ctx, issue.ID, startedAfter)
				if err != nil {
					return nil, fmt.Errorf("load worklogs of %s: %w", issue.Key, err)
				}
			}
			out = append(out, convertWorklogs(raw, accountID, issue, c.logger)...)
		}
		if len(page.Issues) == 0 {
			break
		}
		startAt += len(page.Issues)
		total = page.Total
	}

	worklog.Sort(out)
	return out, nil
}

// IssueWorklogs pages through the worklogs of one issue started after the given time.
func (c *Client) IssueWorklogs(ctx context.Context, issueID string, startedAfter time.Time) ([]Worklog, error) {
	var out []Worklog
	for startAt, total, calls := 0, 1, 0; startAt < total; calls++ {
		if calls >= maxPageCalls {
			return nil, errTooManyWorklogCalls
		}
		query := url.Values{
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(worklogPageSize)},
		}
		if !startedAfter.IsZero() {
			query.Set("startedAfter", strconv.FormatInt(startedAfter.UnixMilli(), 10))
		}
		var page WorklogPage
		if err := c.do(ctx, http.MethodGet, "/rest/api/3/issue/"+url.PathEscape(issueID)+"/worklog", query, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Worklogs...)
		if len(page.Worklogs) == 0 {
			break
		}
		startAt += len(page.Worklogs)
		total = page.Total
	}
	return out, nil
}

func (c *Client) search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	var resp SearchResponse
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/search", nil, req, &resp); err != nil {
		return SearchResponse{}, err
	}
	return resp, nil
}

func convertWorklogs(raw []Worklog, accountID string, issue Issue, logger *zap.Logger) []worklog.Worklog {
	ref := issueRef(issue)
	out := make([]worklog.Worklog, 0, len(raw))
	for _, w := range raw {
		if w.Author == nil || w.Author.AccountID != accountID || w.Started == "" || w.TimeSpent == "" {
			continue
		}
		day, err := worklog.DayFromJira(w.Started)
		if err != nil {
			logger.Warn("skipping worklog with unreadable start", zap.String("worklog_id", w.ID), zap.Error(err))
			continue
		}
		seconds, err := worklog.ParseJiraDuration(w.TimeSpent)
		if err != nil {
			seconds = w.TimeSpentSeconds
		}
		out = append(out, worklog.Worklog{
			ID:               w.ID,
			AccountID:        accountID,
			Issue:            ref,
			Started:          day,
			TimeSpentSeconds: seconds,
			Comment:          TextFromDocument(w.Comment),
			State:            worklog.StateSynced,
		})
	}
	return out
}

func issueRef(issue Issue) worklog.Issue {
	ref := worklog.Issue{ID: issue.ID, Key: issue.Key, Summary: issue.Fields.Summary}
	if issue.Fields.Project != nil {
		ref.ProjectKey = issue.Fields.Project.Key
	}
	return ref
}
