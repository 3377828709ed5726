package worklog

import (
	"fmt"
	"strconv"
	"strings"
)

// Jira's default time tracking configuration.
const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 8 * secondsPerHour
	secondsPerWeek   = 5 * secondsPerDay
)

var unitSeconds = map[byte]int{
	'w': secondsPerWeek,
	'd': secondsPerDay,
	'h': secondsPerHour,
	'm': secondsPerMinute,
	's': 1,
}

// ParseJiraDuration converts Jira's timeSpent format ("1d 2h 30m") to seconds.
// Parts may also be written without spaces ("1h30m").
func ParseJiraDuration(value string) (int, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return 0, fmt.Errorf("duration is empty")
	}

	total := 0
	for _, field := range strings.Fields(trimmed) {
		seconds, err := parseDurationField(field)
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", value, err)
		}
		total += seconds
	}
	return total, nil
}

func parseDurationField(field string) (int, error) {
	total := 0
	start := 0
	for i := 0; i < len(field); i++ {
		c := field[i]
		if (c >= '0' && c <= '9') || c == '.' {
			continue
		}
		mult, ok := unitSeconds[c]
		if !ok {
			return 0, fmt.Errorf("unknown unit %q", string(c))
		}
		if i == start {
			return 0, fmt.Errorf("missing number before %q", string(c))
		}
		n, err := strconv.ParseFloat(field[start:i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", field[start:i])
		}
		total += int(n * float64(mult))
		start = i + 1
	}
	if start != len(field) {
		return 0, fmt.Errorf("missing unit after %q", field[start:])
	}
	return total, nil
}

// FormatDuration renders seconds the way Jira displays short durations,
// using only hours and minutes ("1h 30m"). Zero renders as "0m".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / secondsPerHour
	minutes := (seconds % secondsPerHour) / secondsPerMinute
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// FormatClock renders seconds as HH:MM:SS for running timers.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d",
		seconds/secondsPerHour,
		(seconds%secondsPerHour)/secondsPerMinute,
		seconds%secondsPerMinute)
}
