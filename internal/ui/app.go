package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/jiratrack/internal/prefs"
	"github.com/five82/jiratrack/internal/state"
	"github.com/five82/jiratrack/internal/tracker"
	"github.com/five82/jiratrack/internal/worklog"
)

const searchTimeout = 15 * time.Second

// Tracker is the part of tracker.Service the UI drives.
type Tracker interface {
	Add(ctx context.Context, d tracker.Draft) (worklog.Worklog, error)
	Update(ctx context.Context, id string, c tracker.Change) (worklog.Worklog, error)
	Delete(ctx context.Context, id string) error
	StartTimer(ctx context.Context, id string) error
	StopTimer(ctx context.Context) (worklog.Worklog, bool, error)
	Search(ctx context.Context, accountID, text string) ([]worklog.Issue, error)
}

var _ Tracker = (*tracker.Service)(nil)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Tracker   Tracker
	Store     *state.Store
	Sync      func() // requests a background sync; may be nil
	Prefs     prefs.Prefs
	PrefsPath string
	Tick      time.Duration
	Now       func() time.Time
}

type noticeLevel int

const (
	noticeInfo noticeLevel = iota
	noticeWarn
	noticeError
)

type notice struct {
	text  string
	level noticeLevel
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	tracker   Tracker
	store     *state.Store
	sync      func()
	prefs     prefs.Prefs
	prefsPath string
	tick      time.Duration

	keys   keyMap
	help   help.Model
	theme  Theme
	width  int
	height int
	ready  bool

	snapshot state.Snapshot
	version  uint64
	clock    time.Time

	day         string
	selectedRow int
	selectedID  string

	modal         Modal
	showHelp      bool
	confirmDelete string
	notice        notice
	remindedDay   string
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	sync := opts.Sync
	if sync == nil {
		sync = func() {}
	}

	m := Model{
		ctx:       ctx,
		tracker:   opts.Tracker,
		store:     opts.Store,
		sync:      sync,
		prefs:     opts.Prefs,
		prefsPath: prefsPath,
		tick:      tick,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		theme:     GetTheme(opts.Prefs.Theme),
		clock:     now(),
	}
	m.day = worklog.FormatDay(m.clock)
	if m.store != nil {
		m.version = m.store.Version()
		m.snapshot = m.store.Snapshot()
	}
	m.restoreSelection()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.tick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tickMsg:
		return m.handleTick(time.Time(msg))

	case snapshotMsg:
		m.applySnapshot(msg)
		return m, nil

	case actionMsg:
		return m.handleAction(msg)

	case issuePickedMsg:
		return m, m.addCmd(msg.issue)

	case editSubmittedMsg:
		id, change := msg.id, msg.change
		return m, m.runAction(func(ctx context.Context) (actionMsg, error) {
			w, err := m.tracker.Update(ctx, id, change)
			return actionMsg{text: "Updated " + w.Issue.Key, selectID: w.ID}, err
		})
	}

	// Anything else (search results, cursor blinks) belongs to the open modal.
	if m.modal != nil {
		return m.updateModal(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.modal != nil {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.updateModal(msg)
	}

	pendingDelete := m.confirmDelete
	m.confirmDelete = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.CycleTheme):
		return m, m.cycleTheme()

	case key.Matches(msg, m.keys.Up):
		m.moveSelection(m.selectedRow - 1)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(m.selectedRow + 1)
	case key.Matches(msg, m.keys.Top):
		m.moveSelection(0)
	case key.Matches(msg, m.keys.Bottom):
		m.moveSelection(len(m.dayWorklogs()) - 1)

	case key.Matches(msg, m.keys.PrevDay):
		m.setDay(m.stepDay(-1))
	case key.Matches(msg, m.keys.NextDay):
		m.setDay(m.stepDay(1))
	case key.Matches(msg, m.keys.PrevWeek):
		m.setDay(worklog.AddDays(m.day, -7))
	case key.Matches(msg, m.keys.NextWeek):
		m.setDay(worklog.AddDays(m.day, 7))
	case key.Matches(msg, m.keys.Today):
		m.setDay(m.today())

	case key.Matches(msg, m.keys.Timer):
		return m.toggleTimer()

	case key.Matches(msg, m.keys.Add):
		if len(m.snapshot.Accounts) == 0 {
			m.setNotice(noticeWarn, "Log in first: run jiratrack login")
			return m, nil
		}
		m.modal = newSearchModal(m.day, m.searchCmd)
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Edit):
		w, ok := m.selectedWorklog()
		if !ok || w.State == worklog.StateDeleted {
			return m, nil
		}
		m.modal = newEditModal(w, m.otherDayWarning(w.Started))
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Delete):
		return m.deleteSelected(pendingDelete)

	case key.Matches(msg, m.keys.Sync):
		m.sync()
		m.setNotice(noticeInfo, "Sync requested")
	}
	return m, nil
}

func (m Model) updateModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	modal, cmd, closed := m.modal.Update(msg, m.keys)
	if closed {
		m.modal = nil
	} else {
		m.modal = modal
	}
	return m, cmd
}

// handleTick advances the clock, refreshes the snapshot when it changed and
// fires the tracking reminder once per day.
func (m Model) handleTick(t time.Time) (tea.Model, tea.Cmd) {
	m.clock = t
	cmds := []tea.Cmd{tickCmd(m.tick)}
	if m.store != nil && m.store.Version() != m.version {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}

	today := worklog.FormatDay(t)
	if m.remindedDay != today && m.prefs.ReminderDue(t, m.totalFor(today)) {
		m.remindedDay = today
		m.setNotice(noticeWarn, "Nothing tracked today yet")
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) applySnapshot(msg snapshotMsg) {
	m.snapshot = msg.snapshot
	m.version = msg.version
	m.restoreSelection()
}

func (m Model) handleAction(msg actionMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.setNotice(noticeError, msg.err.Error())
	} else if msg.text != "" {
		m.setNotice(noticeInfo, msg.text)
	}
	if msg.selectID != "" {
		m.selectedID = msg.selectID
	}
	if m.store == nil {
		return m, nil
	}
	return m, fetchSnapshotCmd(m.store)
}

// toggleTimer stops the timer on the selected worklog or starts it there.
func (m Model) toggleTimer() (tea.Model, tea.Cmd) {
	w, ok := m.selectedWorklog()
	if !ok {
		return m, nil
	}
	if w.State == worklog.StateDeleted {
		m.setNotice(noticeWarn, "Worklog is marked for deletion")
		return m, nil
	}
	if m.snapshot.Timer.IsTracking(w.ID) {
		return m, m.runAction(func(ctx context.Context) (actionMsg, error) {
			stopped, _, err := m.tracker.StopTimer(ctx)
			return actionMsg{text: "Timer stopped for " + stopped.Issue.Key}, err
		})
	}
	if warning := m.otherDayWarning(w.Started); warning != "" {
		m.setNotice(noticeWarn, warning)
	}
	id := w.ID
	return m, m.runAction(func(ctx context.Context) (actionMsg, error) {
		return actionMsg{text: "Timer started for " + w.Issue.Key}, m.tracker.StartTimer(ctx, id)
	})
}

// deleteSelected asks for confirmation on the first press and deletes on the second.
func (m Model) deleteSelected(pending string) (tea.Model, tea.Cmd) {
	w, ok := m.selectedWorklog()
	if !ok || w.State == worklog.StateDeleted {
		return m, nil
	}
	if pending != w.ID {
		m.confirmDelete = w.ID
		m.setNotice(noticeWarn, fmt.Sprintf("Press x again to delete %s", w.Issue.Key))
		return m, nil
	}
	return m, m.runAction(func(ctx context.Context) (actionMsg, error) {
		return actionMsg{text: "Deleted " + w.Issue.Key}, m.tracker.Delete(ctx, w.ID)
	})
}

func (m *Model) cycleTheme() tea.Cmd {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	m.prefs.Theme = m.theme.Name
	if m.prefsPath == "" {
		return nil
	}
	p, path := m.prefs, m.prefsPath
	return func() tea.Msg {
		if err := prefs.Save(path, p); err != nil {
			return actionMsg{err: fmt.Errorf("save theme: %w", err)}
		}
		return nil
	}
}

func (m *Model) setNotice(level noticeLevel, text string) {
	m.notice = notice{text: text, level: level}
}

func (m Model) today() string {
	return worklog.FormatDay(m.clock)
}

// otherDayWarning returns a warning when day is not today and the user asked to be told.
func (m Model) otherDayWarning(day string) string {
	if !m.prefs.WarnWhenEditingOtherDays || day == m.today() {
		return ""
	}
	return "Heads up: this worklog is on " + day + ", not today"
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderList(max(m.height-2, 1)))
	return b.String()
}

// Messages

type tickMsg time.Time

// snapshotMsg carries the version read before the snapshot, so a change
// landing in between triggers another fetch.
type snapshotMsg struct {
	snapshot state.Snapshot
	version  uint64
}

// actionMsg reports the outcome of a tracker call.
type actionMsg struct {
	text     string
	selectID string
	err      error
}

type searchResultsMsg struct {
	query  string
	issues []worklog.Issue
	err    error
}

type issuePickedMsg struct {
	issue worklog.Issue
}

type editSubmittedMsg struct {
	id     string
	change tracker.Change
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		version := store.Version()
		return snapshotMsg{snapshot: store.Snapshot(), version: version}
	}
}

// runAction runs fn off the event loop and reports its outcome as an actionMsg.
func (m Model) runAction(fn func(ctx context.Context) (actionMsg, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		msg, err := fn(ctx)
		if err != nil {
			return actionMsg{err: err}
		}
		return msg
	}
}

func (m Model) searchCmd(query string) tea.Cmd {
	ctx, tr := m.ctx, m.tracker
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, searchTimeout)
		defer cancel()
		issues, err := tr.Search(ctx, "", query)
		return searchResultsMsg{query: query, issues: issues, err: err}
	}
}

func (m Model) addCmd(issue worklog.Issue) tea.Cmd {
	day := m.day
	return m.runAction(func(ctx context.Context) (actionMsg, error) {
		w, err := m.tracker.Add(ctx, tracker.Draft{Issue: issue, Day: day})
		return actionMsg{text: "Added " + issue.Key, selectID: w.ID}, err
	})
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	return err
}

// noticeStyle picks the style for the current notice level.
func (m Model) noticeStyle(styles Styles) lipgloss.Style {
	switch m.notice.level {
	case noticeError:
		return styles.DangerText
	case noticeWarn:
		return styles.WarningText
	default:
		return styles.InfoText
	}
}
