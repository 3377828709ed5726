package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/jiratrack/internal/worklog"
)

const (
	searchModalWidth = 64
	searchMaxResults = 10
)

// searchModal looks up issues and hands the chosen one back as an issuePickedMsg.
// Enter submits the query; pressing it again without editing picks the
// highlighted result.
type searchModal struct {
	day     string
	input   textinput.Model
	search  func(query string) tea.Cmd
	query   string
	results []worklog.Issue
	cursor  int
	loading bool
	err     error
}

func newSearchModal(day string, search func(query string) tea.Cmd) searchModal {
	ti := textinput.New()
	ti.Placeholder = "Issue key or text, e.g. PROJ-12"
	ti.CharLimit = 200
	ti.Width = searchModalWidth - 12
	ti.Focus()
	return searchModal{day: day, input: ti, search: search}
}

// Update implements Modal.
func (s searchModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case searchResultsMsg:
		if msg.query != s.query {
			return s, nil, false
		}
		s.loading = false
		s.err = msg.err
		s.results = msg.issues
		s.cursor = 0
		return s, nil, false

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Escape):
			return s, nil, true

		case msg.Type == tea.KeyUp:
			if s.cursor > 0 {
				s.cursor--
			}
			return s, nil, false

		case msg.Type == tea.KeyDown:
			if s.cursor < len(s.visibleResults())-1 {
				s.cursor++
			}
			return s, nil, false

		case key.Matches(msg, keys.Confirm):
			query := strings.TrimSpace(s.input.Value())
			if query != "" && query != s.query {
				s.query = query
				s.loading = true
				s.err = nil
				s.results = nil
				return s, s.search(query), false
			}
			results := s.visibleResults()
			if s.loading || len(results) == 0 {
				return s, nil, false
			}
			issue := results[s.cursor]
			return s, func() tea.Msg { return issuePickedMsg{issue: issue} }, true
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd, false
}

func (s searchModal) visibleResults() []worklog.Issue {
	if len(s.results) > searchMaxResults {
		return s.results[:searchMaxResults]
	}
	return s.results
}

// View implements Modal.
func (s searchModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder

	b.WriteString(fieldLabel(styles, "Search: ", true))
	b.WriteString(s.input.View())
	b.WriteString("\n\n")

	results := s.visibleResults()
	switch {
	case s.loading:
		b.WriteString(styles.MutedText.Render("Searching..."))
		b.WriteString("\n")
	case s.err != nil:
		b.WriteString(styles.DangerText.Render(truncate(s.err.Error(), searchModalWidth-6)))
		b.WriteString("\n")
	case s.query != "" && len(results) == 0:
		b.WriteString(styles.MutedText.Render("No issues found"))
		b.WriteString("\n")
	}

	for i, issue := range results {
		line := truncate(issue.Label(), searchModalWidth-8)
		if i == s.cursor {
			b.WriteString(styles.Selected.Render("> " + line))
		} else {
			b.WriteString(styles.Text.Render("  " + line))
		}
		b.WriteString("\n")
	}
	if more := len(s.results) - len(results); more > 0 {
		b.WriteString(styles.FaintText.Render(fmt.Sprintf("  +%d more, refine the query", more)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("Enter: Search/Select  •  ↑/↓: Choose  •  Esc: Cancel"))

	return placeModal(theme, "Add Worklog · "+s.day, b.String(), searchModalWidth, width, height)
}
