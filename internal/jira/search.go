package jira

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/five82/jiratrack/internal/worklog"
)

const searchLimit = 50

var issueKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*-[0-9]+$`)

// SearchIssues finds issues whose summary or description matches text,
// newest first. Text that looks like an issue key also matches that issue.
func (c *Client) SearchIssues(ctx context.Context, text string) ([]worklog.Issue, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var out []worklog.Issue
	if issueKeyPattern.MatchString(text) {
		issue, err := c.Issue(ctx, strings.ToUpper(text))
		switch {
		case err == nil:
			out = append(out, issueRef(issue))
		case IsNotFound(err):
		default:
			c.logger.Debug("issue key lookup failed", zap.String("key", text), zap.Error(err))
		}
	}

	q := escapeJQL(text)
	page, err := c.search(ctx, SearchRequest{
		JQL:        fmt.Sprintf(`summary ~ "%s" OR description ~ "%s" ORDER BY created DESC`, q, q),
		Fields:     []string{"summary", "project"},
		MaxResults: searchLimit,
	})
	if err != nil {
		if len(out) > 0 {
			return out, nil
		}
		return nil, fmt.Errorf("search issues: %w", err)
	}
	for _, issue := range page.Issues {
		if len(out) > 0 && out[0].ID == issue.ID {
			continue
		}
		out = append(out, issueRef(issue))
	}
	return out, nil
}

func escapeJQL(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
