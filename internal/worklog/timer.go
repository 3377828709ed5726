package worklog

import "time"

// Timer is the single running stopwatch. The zero value is stopped.
type Timer struct {
	WorklogID string    `json:"worklogId"`
	StartedAt time.Time `json:"startedAt"`
}

// Running reports whether a worklog is being tracked.
func (t Timer) Running() bool {
	return t.WorklogID != "" && !t.StartedAt.IsZero()
}

// IsTracking reports whether the timer runs for the given worklog.
func (t Timer) IsTracking(id string) bool {
	return t.Running() && t.WorklogID == id
}

// Elapsed returns whole seconds tracked up to now. Clock skew that would
// produce a negative value yields zero.
func (t Timer) Elapsed(now time.Time) int {
	if !t.Running() {
		return 0
	}
	d := now.Sub(t.StartedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// Start begins tracking id at now.
func Start(id string, now time.Time) Timer {
	return Timer{WorklogID: id, StartedAt: now}
}

// Apply adds the timer's elapsed time to w if the timer tracks it.
func (t Timer) Apply(w Worklog, now time.Time) Worklog {
	if !t.IsTracking(w.ID) {
		return w
	}
	w.TimeSpentSeconds += t.Elapsed(now)
	return w
}
