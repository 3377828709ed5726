package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/jiratrack/internal/tracker"
	"github.com/five82/jiratrack/internal/worklog"
)

const editModalWidth = 56

const (
	fieldDuration = iota
	fieldDay
	fieldComment
	fieldCount
)

// editModal edits the duration, day and comment of one worklog. Only fields
// whose text changed end up in the submitted tracker.Change.
type editModal struct {
	worklog worklog.Worklog
	inputs  [fieldCount]textinput.Model
	initial [fieldCount]string
	focus   int
	warning string
	err     string
}

func newEditModal(w worklog.Worklog, warning string) editModal {
	m := editModal{worklog: w, warning: warning}

	m.initial[fieldDuration] = worklog.FormatDuration(w.TimeSpentSeconds)
	m.initial[fieldDay] = w.Started
	m.initial[fieldComment] = firstLine(w.Comment)

	placeholders := [fieldCount]string{"e.g. 1h 30m", "YYYY-MM-DD", "What did you work on?"}
	limits := [fieldCount]int{20, 10, 500}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = limits[i]
		ti.Width = editModalWidth - 18
		ti.SetValue(m.initial[i])
		m.inputs[i] = ti
	}
	m.inputs[fieldDuration].Focus()
	return m
}

// Update implements Modal.
func (e editModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Escape):
			return e, nil, true

		case key.Matches(msg, keys.Confirm):
			change, err := e.change()
			if err != nil {
				e.err = err.Error()
				return e, nil, false
			}
			if change == (tracker.Change{}) {
				return e, nil, true
			}
			id := e.worklog.ID
			return e, func() tea.Msg { return editSubmittedMsg{id: id, change: change} }, true

		case key.Matches(msg, keys.NextField):
			e.setFocus((e.focus + 1) % fieldCount)
			return e, nil, false

		case key.Matches(msg, keys.PrevField):
			e.setFocus((e.focus - 1 + fieldCount) % fieldCount)
			return e, nil, false
		}
	}

	var cmd tea.Cmd
	e.inputs[e.focus], cmd = e.inputs[e.focus].Update(msg)
	return e, cmd, false
}

func (e *editModal) setFocus(idx int) {
	e.inputs[e.focus].Blur()
	e.focus = idx
	e.inputs[e.focus].Focus()
}

// change validates the inputs and collects the edited fields.
func (e editModal) change() (tracker.Change, error) {
	var c tracker.Change

	if v := strings.TrimSpace(e.inputs[fieldDuration].Value()); v != e.initial[fieldDuration] {
		seconds, err := worklog.ParseJiraDuration(v)
		if err != nil {
			return c, err
		}
		c.Seconds = &seconds
	}
	if v := strings.TrimSpace(e.inputs[fieldDay].Value()); v != e.initial[fieldDay] {
		if _, err := worklog.ParseDay(v); err != nil {
			return c, err
		}
		c.Day = &v
	}
	if v := strings.TrimSpace(e.inputs[fieldComment].Value()); v != e.initial[fieldComment] {
		c.Comment = &v
	}
	return c, nil
}

// View implements Modal.
func (e editModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder

	b.WriteString(styles.AccentText.Render(truncate(e.worklog.Issue.Label(), editModalWidth-6)))
	b.WriteString("\n\n")

	labels := [fieldCount]string{"Duration: ", "Day:      ", "Comment:  "}
	for i := range e.inputs {
		b.WriteString(fieldLabel(styles, labels[i], e.focus == i))
		b.WriteString(e.inputs[i].View())
		b.WriteString("\n\n")
	}

	if e.warning != "" {
		b.WriteString(styles.WarningText.Render(e.warning))
		b.WriteString("\n")
	}
	if e.err != "" {
		b.WriteString(styles.DangerText.Render(truncate(e.err, editModalWidth-6)))
		b.WriteString("\n")
	}
	b.WriteString(styles.FaintText.Render("Enter: Save  •  Tab: Next field  •  Esc: Cancel"))

	return placeModal(theme, "Edit Worklog", b.String(), editModalWidth, width, height)
}
