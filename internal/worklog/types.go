package worklog

import "strings"

// State tracks how a worklog relates to its remote counterpart.
type State string

const (
	StateSynced  State = "synced"
	StateEdited  State = "edited"
	StateCreated State = "created"
	StateDeleted State = "deleted"
)

// LocalIDPrefix marks worklogs that have never been pushed to Jira.
const LocalIDPrefix = "local-"

// Issue is the compact issue reference carried by each worklog.
type Issue struct {
	ID         string `json:"id"`
	Key        string `json:"key"`
	Summary    string `json:"summary"`
	ProjectKey string `json:"projectKey,omitempty"`
}

// Worklog is a single time entry against an issue. Started is a YYYY-MM-DD day.
type Worklog struct {
	ID               string `json:"id"`
	AccountID        string `json:"accountId"`
	Issue            Issue  `json:"issue"`
	Started          string `json:"started"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
	Comment          string `json:"comment"`
	State            State  `json:"state"`
}

// IsLocal reports whether the worklog only exists on this machine.
func (w Worklog) IsLocal() bool {
	return strings.HasPrefix(w.ID, LocalIDPrefix)
}

// NeedsPush reports whether the worklog carries changes Jira has not seen.
func (w Worklog) NeedsPush() bool {
	switch w.State {
	case StateEdited, StateCreated, StateDeleted:
		return true
	default:
		return false
	}
}

// Label renders the issue key and summary on one line.
func (i Issue) Label() string {
	key := strings.TrimSpace(i.Key)
	summary := strings.TrimSpace(i.Summary)
	switch {
	case key == "":
		return summary
	case summary == "":
		return key
	default:
		return key + " " + summary
	}
}

// Project returns the project key, deriving it from the issue key when unset.
func (i Issue) Project() string {
	if i.ProjectKey != "" {
		return i.ProjectKey
	}
	if idx := strings.LastIndex(i.Key, "-"); idx > 0 {
		return i.Key[:idx]
	}
	return ""
}
