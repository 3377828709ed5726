package jira

import (
	"encoding/json"
	"strings"
)

// SearchRequest is the body of POST /rest/api/3/search.
type SearchRequest struct {
	JQL        string   `json:"jql"`
	Fields     []string `json:"fields,omitempty"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
}

// SearchResponse is one page of issues.
type SearchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue mirrors the subset of the Jira issue schema jiratrack reads.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the requested issue fields.
type IssueFields struct {
	Summary string       `json:"summary"`
	Project *Project     `json:"project,omitempty"`
	Worklog *WorklogPage `json:"worklog,omitempty"`
}

// Project is the issue's project reference.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// WorklogPage is a page of worklogs, either embedded in an issue or
// returned by the issue worklog endpoint.
type WorklogPage struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Worklogs   []Worklog `json:"worklogs"`
}

// Complete reports whether the embedded page can be trusted to hold every
// worklog of the issue. Jira caps embedded worklogs at maxResults, so a
// total that reaches the cap, or no total at all, needs the paged endpoint.
func (p *WorklogPage) Complete() bool {
	return p != nil && p.StartAt == 0 && p.Total > 0 && p.Total < p.MaxResults
}

// Worklog is a Jira worklog. Comment is an Atlassian Document Format node.
type Worklog struct {
	ID               string          `json:"id"`
	IssueID          string          `json:"issueId"`
	Author           *User           `json:"author,omitempty"`
	Comment          json.RawMessage `json:"comment,omitempty"`
	Started          string          `json:"started"`
	TimeSpent        string          `json:"timeSpent"`
	TimeSpentSeconds int             `json:"timeSpentSeconds"`
}

// User is a Jira user reference.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Active       bool   `json:"active"`
}

// worklogPayload is the body of worklog create and update requests.
type worklogPayload struct {
	Started          string `json:"started"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
	Comment          *Node  `json:"comment,omitempty"`
}

// errorBody is Jira's error response envelope.
type errorBody struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

func (e errorBody) messages() []string {
	out := make([]string, 0, len(e.ErrorMessages)+len(e.Errors))
	for _, m := range e.ErrorMessages {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	for field, m := range e.Errors {
		out = append(out, field+": "+m)
	}
	return out
}
