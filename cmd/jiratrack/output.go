package main

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/five82/jiratrack/internal/auth"
	"github.com/five82/jiratrack/internal/worklog"
)

const shortIDLength = 8

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#87AFFF")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F")).Bold(true)

	stateStyles = map[worklog.State]lipgloss.Style{
		worklog.StateSynced:  lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")),
		worklog.StateEdited:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")),
		worklog.StateCreated: lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F")),
		worklog.StateDeleted: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Strikethrough(true),
	}
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// shortID abbreviates local IDs; Jira IDs are short already.
func shortID(id string) string {
	if !strings.HasPrefix(id, worklog.LocalIDPrefix) {
		return id
	}
	rest := strings.TrimPrefix(id, worklog.LocalIDPrefix)
	if len(rest) > shortIDLength {
		rest = rest[:shortIDLength]
	}
	return worklog.LocalIDPrefix + rest
}

func worklogTable(list []worklog.Worklog, timer worklog.Timer, now time.Time) string {
	t := newTable("ID", "Day", "Issue", "Time", "State", "Comment")
	for _, w := range list {
		spent := worklog.FormatDuration(w.TimeSpentSeconds)
		if timer.IsTracking(w.ID) {
			spent = runningStyle.Render("▶ " + worklog.FormatClock(timer.Apply(w, now).TimeSpentSeconds))
		}
		style, ok := stateStyles[w.State]
		if !ok {
			style = mutedStyle
		}
		t.Row(
			shortID(w.ID),
			w.Started,
			clip(w.Issue.Label(), 48),
			spent,
			style.Render(string(w.State)),
			clip(firstLine(w.Comment), 40),
		)
	}
	return t.String()
}

func accountsTable(accounts []auth.Account, tokens map[string]auth.Tokens) string {
	t := newTable("", "Account", "Email", "Workspace", "Session")
	for _, a := range accounts {
		marker := ""
		if a.IsPrimary {
			marker = "*"
		}
		session := "ok"
		if tok := tokens[a.AccountID]; tok.AccessToken == "" && tok.RefreshToken == "" {
			session = "expired"
		}
		t.Row(marker, a.AccountID, a.Email, a.Workspace.Name, session)
	}
	return t.String()
}

func issueTable(issues []worklog.Issue) string {
	t := newTable("Key", "Summary", "ID")
	for _, i := range issues {
		t.Row(i.Key, clip(i.Summary, 60), mutedStyle.Render(i.ID))
	}
	return t.String()
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func clip(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
