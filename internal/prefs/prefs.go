// Package prefs handles jiratrack user settings persistence.
// Settings are stored in ~/.config/jiratrack/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// CountMethod selects which accounts contribute to the working time totals.
type CountMethod string

const (
	CountAll         CountMethod = "all"
	CountOnlyPrimary CountMethod = "onlyPrimary"
)

// Clock is a time of day.
type Clock struct {
	Hour   int `toml:"hour"`
	Minute int `toml:"minute"`
}

// Prefs holds user settings for jiratrack. Weekdays are 0=Monday through 6=Sunday.
type Prefs struct {
	WorkingDays              []int       `toml:"working_days"`
	HideNonWorkingDays       bool        `toml:"hide_non_working_days"`
	WarnWhenEditingOtherDays bool        `toml:"warning_when_editing_other_days"`
	EnableTrackingReminder   bool        `toml:"enable_tracking_reminder"`
	TrackingReminderTime     Clock       `toml:"tracking_reminder_time"`
	Theme                    string      `toml:"theme"`
	WorkingTimeCountMethod   CountMethod `toml:"working_time_count_method"`
	IssueTagIcon             string      `toml:"issue_tag_icon"`
	IssueTagColor            string      `toml:"issue_tag_color"`
}

const (
	defaultPrefsPath = "~/.config/jiratrack/prefs.toml"
	defaultTheme     = "Nightfox"
)

var (
	issueTagIcons  = []string{"none", "project", "workspace", "workspaceAndProject"}
	issueTagColors = []string{"issue", "workspace"}
)

// Defaults returns the settings used for a fresh install.
func Defaults() Prefs {
	return Prefs{
		WorkingDays:              []int{0, 1, 2, 3, 4},
		HideNonWorkingDays:       false,
		WarnWhenEditingOtherDays: true,
		EnableTrackingReminder:   false,
		TrackingReminderTime:     Clock{Hour: 18, Minute: 30},
		Theme:                    defaultTheme,
		WorkingTimeCountMethod:   CountAll,
		IssueTagIcon:             "project",
		IssueTagColor:            "issue",
	}
}

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads settings from the given path, falling back to defaults if missing.
// Stored values are merged over the defaults: keys jiratrack no longer knows
// are ignored and keys added since the file was written take their default.
func Load(path string) (Prefs, error) {
	prefs := Defaults()

	resolved, err := resolvePath(path)
	if err != nil {
		return prefs, nil
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, nil // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return prefs, nil // Graceful degradation
	}

	if err := toml.Unmarshal(bytes, &prefs); err != nil {
		return Defaults(), nil // Graceful degradation
	}

	return normalize(prefs), nil
}

// Save writes settings to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(normalize(p))
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

// IsWorkingDay reports whether t falls on a configured working day.
func (p Prefs) IsWorkingDay(t time.Time) bool {
	idx := (int(t.Weekday()) + 6) % 7
	return slices.Contains(p.WorkingDays, idx)
}

// ReminderDue reports whether the tracking reminder should fire: it is
// enabled, now is a working day past the reminder time, and nothing has
// been tracked today.
func (p Prefs) ReminderDue(now time.Time, trackedToday int) bool {
	if !p.EnableTrackingReminder || trackedToday > 0 || !p.IsWorkingDay(now) {
		return false
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), p.TrackingReminderTime.Hour, p.TrackingReminderTime.Minute, 0, 0, now.Location())
	return !now.Before(at)
}

// CountsAccount reports whether worklogs of accountID count towards totals.
func (p Prefs) CountsAccount(accountID, primaryID string) bool {
	if p.WorkingTimeCountMethod != CountOnlyPrimary || primaryID == "" {
		return true
	}
	return accountID == primaryID
}

func normalize(p Prefs) Prefs {
	def := Defaults()
	if strings.TrimSpace(p.Theme) == "" {
		p.Theme = def.Theme
	}
	if p.WorkingTimeCountMethod != CountAll && p.WorkingTimeCountMethod != CountOnlyPrimary {
		p.WorkingTimeCountMethod = def.WorkingTimeCountMethod
	}
	if !slices.Contains(issueTagIcons, p.IssueTagIcon) {
		p.IssueTagIcon = def.IssueTagIcon
	}
	if !slices.Contains(issueTagColors, p.IssueTagColor) {
		p.IssueTagColor = def.IssueTagColor
	}
	days := make([]int, 0, len(p.WorkingDays))
	for _, d := range p.WorkingDays {
		if d >= 0 && d <= 6 && !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	slices.Sort(days)
	p.WorkingDays = days
	c := p.TrackingReminderTime
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		p.TrackingReminderTime = def.TrackingReminderTime
	}
	return p
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
