package ui

import (
	"hash/fnv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/jiratrack/internal/auth"
	"github.com/five82/jiratrack/internal/worklog"
)

// dayWorklogs returns the worklogs of the displayed day in list order.
func (m Model) dayWorklogs() []worklog.Worklog {
	list := worklog.ForDay(m.snapshot.Worklogs, m.day)
	worklog.Sort(list)
	return list
}

// selectedWorklog returns the highlighted worklog, if any.
func (m Model) selectedWorklog() (worklog.Worklog, bool) {
	list := m.dayWorklogs()
	if m.selectedRow < 0 || m.selectedRow >= len(list) {
		return worklog.Worklog{}, false
	}
	return list[m.selectedRow], true
}

// moveSelection clamps row to the list and remembers the worklog under it.
func (m *Model) moveSelection(row int) {
	list := m.dayWorklogs()
	if len(list) == 0 {
		m.selectedRow = 0
		m.selectedID = ""
		return
	}
	row = min(max(row, 0), len(list)-1)
	m.selectedRow = row
	m.selectedID = list[row].ID
}

// restoreSelection keeps the selection on the same worklog across
// snapshot updates. A vanished worklog leaves the row index clamped.
func (m *Model) restoreSelection() {
	list := m.dayWorklogs()
	if m.selectedID != "" {
		for i, w := range list {
			if w.ID == m.selectedID {
				m.selectedRow = i
				return
			}
		}
	}
	m.moveSelection(m.selectedRow)
}

func (m *Model) setDay(day string) {
	if day == m.day {
		return
	}
	m.day = day
	m.selectedID = ""
	m.moveSelection(0)
}

// stepDay moves one day in the given direction, skipping non-working days
// when they are hidden.
func (m Model) stepDay(step int) string {
	day := worklog.AddDays(m.day, step)
	if !m.prefs.HideNonWorkingDays || len(m.prefs.WorkingDays) == 0 {
		return day
	}
	for range 7 {
		t, err := worklog.ParseDay(day)
		if err != nil || m.prefs.IsWorkingDay(t) {
			return day
		}
		day = worklog.AddDays(day, step)
	}
	return day
}

// trackedSeconds includes the running timer's elapsed time.
func (m Model) trackedSeconds(w worklog.Worklog) int {
	return m.snapshot.Timer.Apply(w, m.clock).TimeSpentSeconds
}

// totalFor sums the tracked time of day over the accounts that count
// towards working time. Entries marked for deletion are excluded.
func (m Model) totalFor(day string) int {
	primaryID := ""
	if primary, ok := auth.Primary(m.snapshot.Accounts); ok {
		primaryID = primary.AccountID
	}
	total := 0
	for _, w := range worklog.ForDay(m.snapshot.Worklogs, day) {
		if w.State == worklog.StateDeleted || !m.prefs.CountsAccount(w.AccountID, primaryID) {
			continue
		}
		total += m.trackedSeconds(w)
	}
	return total
}

func (m Model) weekTotal() int {
	days, err := worklog.WeekDays(m.day)
	if err != nil {
		return 0
	}
	total := 0
	for _, d := range days {
		total += m.totalFor(d)
	}
	return total
}

// renderList renders the worklogs of the displayed day as styled rows.
func (m Model) renderList(height int) string {
	styles := m.theme.Styles()
	list := m.dayWorklogs()
	surface := lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.SurfaceAlt)).
		Width(m.width).
		Height(height)

	if len(list) == 0 {
		msg := "No worklogs on " + m.day + ". Press a to add one."
		if len(m.snapshot.Accounts) == 0 {
			msg = "Not logged in. Run jiratrack login to connect a Jira workspace."
		}
		bg := NewBgStyle(m.theme.SurfaceAlt)
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center,
			bg.Render(msg, styles.MutedText),
			lipgloss.WithWhitespaceBackground(lipgloss.Color(m.theme.SurfaceAlt)))
	}

	start := 0
	if m.selectedRow >= height {
		start = m.selectedRow - height + 1
	}
	end := min(start+height, len(list))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		if i == m.selectedRow {
			lines = append(lines, m.formatRow(list[i], m.theme.SelectionBg, true))
		} else {
			lines = append(lines, m.formatRow(list[i], m.theme.SurfaceAlt, false))
		}
	}
	return surface.Render(strings.Join(lines, "\n"))
}

// formatRow formats one worklog row.
// Format: "[state] TAG KEY Summary · comment          1h 30m"
func (m Model) formatRow(w worklog.Worklog, bgColor string, selected bool) string {
	bg := NewBgStyle(bgColor)
	styles := m.theme.Styles()
	running := m.snapshot.Timer.IsTracking(w.ID)

	state := w.State
	if running {
		state = stateRunning
	}
	badge := styles.StateStyle(state).Render(string(state))

	duration := worklog.FormatDuration(m.trackedSeconds(w))
	if running {
		duration = "▶ " + worklog.FormatClock(m.trackedSeconds(w))
	}
	duration = padLeft(duration, 11)

	keyStyle, textStyle, mutedStyle := styles.AccentText.Bold(true), styles.Text, styles.MutedText
	if selected {
		sel := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SelectionText))
		keyStyle, textStyle, mutedStyle = sel.Bold(true), sel, sel
	}
	if w.State == worklog.StateDeleted {
		textStyle = textStyle.Strikethrough(true)
	}

	var parts []string
	if tag := m.issueTag(w); tag != "" {
		parts = append(parts, bg.Render(tag, lipgloss.NewStyle().Foreground(lipgloss.Color(m.tagColor(w)))))
	}
	parts = append(parts, bg.Render(w.Issue.Key, keyStyle))

	room := m.width - lipgloss.Width(badge) - lipgloss.Width(strings.Join(parts, " ")) - lipgloss.Width(duration) - 6
	text := w.Issue.Summary
	if comment := firstLine(w.Comment); comment != "" {
		text += " · " + comment
	}
	parts = append(parts, bg.Render(truncate(text, room), textStyle))

	left := bg.Space() + badge + bg.Space() + strings.Join(parts, bg.Space())
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(duration)-1, 1)
	return bg.FillLine(left+bg.Spaces(gap)+bg.Render(duration, mutedStyle), m.width)
}

// issueTag renders the project and workspace tag configured in the settings.
func (m Model) issueTag(w worklog.Worklog) string {
	workspace := m.workspaceName(w.AccountID)
	switch m.prefs.IssueTagIcon {
	case "project":
		return w.Issue.Project()
	case "workspace":
		return workspace
	case "workspaceAndProject":
		if workspace == "" {
			return w.Issue.Project()
		}
		return workspace + "/" + w.Issue.Project()
	default:
		return ""
	}
}

func (m Model) workspaceName(accountID string) string {
	for _, a := range m.snapshot.Accounts {
		if a.AccountID == accountID {
			return a.Workspace.Name
		}
	}
	return ""
}

// tagColor derives a stable palette color from the issue's project or workspace.
func (m Model) tagColor(w worklog.Worklog) string {
	seed := w.Issue.Project()
	if m.prefs.IssueTagColor == "workspace" {
		seed = m.workspaceName(w.AccountID)
	}
	palette := []string{m.theme.Accent, m.theme.Info, m.theme.Success, m.theme.Warning, m.theme.Danger}
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return palette[h.Sum32()%uint32(len(palette))]
}
