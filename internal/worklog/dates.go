package worklog

import (
	"fmt"
	"time"
)

const (
	// DayLayout is the storage format for worklog days.
	DayLayout = "2006-01-02"
	// JiraTimeLayout is the format Jira uses for the worklog started field.
	JiraTimeLayout = "2006-01-02T15:04:05.000-0700"
)

// FormatDay renders t as a YYYY-MM-DD day in its own location.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// ParseDay parses a YYYY-MM-DD day in the local time zone.
func ParseDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, day, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", day, err)
	}
	return t, nil
}

// Today returns the current local day.
func Today() string {
	return FormatDay(time.Now())
}

// AddDays shifts a day by n days, returning the input unchanged if it does not parse.
func AddDays(day string, n int) string {
	t, err := ParseDay(day)
	if err != nil {
		return day
	}
	return FormatDay(t.AddDate(0, 0, n))
}

// JiraStarted formats a day as a Jira started timestamp at local noon so that
// time zone conversion on the server never moves the entry to another day.
func JiraStarted(day string) (string, error) {
	t, err := ParseDay(day)
	if err != nil {
		return "", err
	}
	noon := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.Local)
	return noon.Format(JiraTimeLayout), nil
}

// DayFromJira converts a Jira started timestamp to a local day.
func DayFromJira(started string) (string, error) {
	t, err := time.Parse(JiraTimeLayout, started)
	if err != nil {
		t, err = time.Parse(time.RFC3339, started)
		if err != nil {
			return "", fmt.Errorf("parse started %q: %w", started, err)
		}
	}
	return FormatDay(t.In(time.Local)), nil
}

// ISOWeek returns the ISO 8601 week number of the day, or 0 if it does not parse.
func ISOWeek(day string) int {
	t, err := ParseDay(day)
	if err != nil {
		return 0
	}
	_, week := t.ISOWeek()
	return week
}

// WeekDays returns the Monday through Sunday days of the week containing day.
func WeekDays(day string) ([]string, error) {
	t, err := ParseDay(day)
	if err != nil {
		return nil, err
	}
	monday := t.AddDate(0, 0, -WeekdayIndex(t))
	days := make([]string, 7)
	for i := range days {
		days[i] = FormatDay(monday.AddDate(0, 0, i))
	}
	return days, nil
}

// WeekdayIndex maps a date to 0=Monday through 6=Sunday.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
