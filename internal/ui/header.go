package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/five82/jiratrack/internal/auth"
	"github.com/five82/jiratrack/internal/worklog"
)

// renderHeader renders the status bar: day, week, totals, timer and sync state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{bg.Render("jiratrack", styles.Logo)}

	dayLabel := m.day
	if t, err := worklog.ParseDay(m.day); err == nil {
		dayLabel = t.Format("Mon 02 Jan 2006")
	}
	dayStyle := styles.Text.Bold(true)
	if m.day == m.today() {
		dayStyle = styles.AccentText.Bold(true)
	}
	parts = append(parts,
		bg.Render(dayLabel, dayStyle)+bg.Space()+
			bg.Render(fmt.Sprintf("W%d", worklog.ISOWeek(m.day)), styles.MutedText))

	parts = append(parts,
		bg.Render("Day:", styles.MutedText)+bg.Space()+
			bg.Render(worklog.FormatDuration(m.totalFor(m.day)), styles.Text),
		bg.Render("Week:", styles.MutedText)+bg.Space()+
			bg.Render(worklog.FormatDuration(m.weekTotal()), styles.Text),
	)

	if timer := m.snapshot.Timer; timer.Running() {
		label := timer.WorklogID
		if w, ok := worklog.Find(m.snapshot.Worklogs, timer.WorklogID); ok {
			label = w.Issue.Key
		}
		parts = append(parts,
			bg.Render("●", styles.SuccessText)+bg.Space()+
				bg.Render(label, styles.Text)+bg.Space()+
				bg.Render(worklog.FormatClock(timer.Elapsed(m.clock)), styles.SuccessText))
	}

	if m.snapshot.Pending > 0 {
		parts = append(parts,
			bg.Render("Pending:", styles.MutedText)+bg.Space()+
				bg.Render(fmt.Sprintf("%d", m.snapshot.Pending), styles.WarningText))
	}

	parts = append(parts, m.formatSyncStatus(styles, bg))

	if m.prefs.WarnWhenEditingOtherDays && m.day != m.today() {
		parts = append(parts, bg.Render("Not today", styles.WarningText.Bold(true)))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// formatSyncStatus describes the last sync with a relative timestamp.
func (m Model) formatSyncStatus(styles Styles, bg BgStyle) string {
	snap := m.snapshot
	switch {
	case snap.Syncing:
		return bg.Render("Syncing...", styles.InfoText)
	case snap.LastError != nil:
		label := classifySyncError(snap.LastError)
		if snap.IsOffline() && label == "SYNC ERROR" {
			label = "OFFLINE"
		}
		return bg.Render(label, styles.DangerText) + bg.Space() +
			bg.Render(truncate(snap.LastError.Error(), 40), styles.MutedText)
	case snap.LastSynced.IsZero():
		return bg.Render("Not synced", styles.MutedText)
	}
	return bg.Render("Synced", styles.MutedText) + bg.Space() +
		bg.Render(formatTimestamp(snap.LastSynced, m.clock), styles.Text)
}

// formatTimestamp formats t with a relative indicator.
func formatTimestamp(t, now time.Time) string {
	since := now.Sub(t)
	s := t.Format("15:04")
	switch {
	case since < time.Minute:
		s += " (now)"
	case since < time.Hour:
		s += fmt.Sprintf(" (%dm ago)", int(since.Minutes()))
	case since < 24*time.Hour:
		s += fmt.Sprintf(" (%dh ago)", int(since.Hours()))
	}
	return s
}

// classifySyncError returns a short description of a sync failure.
func classifySyncError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, auth.ErrSessionExpired) {
		return "SESSION EXPIRED"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return "OFFLINE"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "TIMEOUT"
	default:
		return "SYNC ERROR"
	}
}

// renderCommandBar renders the key hints and the latest notice.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	h := m.help
	h.Styles.ShortKey = styles.AccentText
	h.Styles.ShortDesc = styles.MutedText
	h.Styles.ShortSeparator = styles.FaintText
	bar := h.ShortHelpView(m.keys.ShortHelp())

	if m.notice.text != "" {
		bar += bg.Spaces(2) + bg.Render(truncate(m.notice.text, max(m.width/2, 20)), m.noticeStyle(styles))
	}
	bar += bg.Spaces(2) + bg.Render("T", styles.AccentText) + bg.Render(":", styles.FaintText) + bg.Render(m.theme.Name, styles.FaintText)

	return styles.Header.Width(m.width).Render(bar)
}
