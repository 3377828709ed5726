package worklog

import (
	"sort"
	"strings"
)

// Merge overlays local changes on the remote collection. Local entries
// replace remote entries with the same ID, deleted entries hide them, and
// entries unknown to the remote side are appended. Deleted entries are not
// part of the result.
func Merge(remote, local []Worklog) []Worklog {
	overrides := make(map[string]Worklog, len(local))
	for _, w := range local {
		overrides[w.ID] = w
	}

	merged := make([]Worklog, 0, len(remote)+len(local))
	seen := make(map[string]struct{}, len(remote))
	for _, w := range remote {
		seen[w.ID] = struct{}{}
		if o, ok := overrides[w.ID]; ok {
			if o.State == StateDeleted {
				continue
			}
			merged = append(merged, o)
			continue
		}
		merged = append(merged, w)
	}
	for _, w := range local {
		if _, ok := seen[w.ID]; ok || w.State == StateDeleted {
			continue
		}
		merged = append(merged, w)
	}

	Sort(merged)
	return merged
}

// Sort orders worklogs by day, then issue key, then ID.
func Sort(list []Worklog) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Started != b.Started {
			return a.Started < b.Started
		}
		if a.Issue.Key != b.Issue.Key {
			return a.Issue.Key < b.Issue.Key
		}
		return a.ID < b.ID
	})
}

// Pending returns the local entries that still have to be pushed.
func Pending(local []Worklog) []Worklog {
	var out []Worklog
	for _, w := range local {
		if w.NeedsPush() {
			out = append(out, w)
		}
	}
	return out
}

// ForDay filters worklogs started on day.
func ForDay(list []Worklog, day string) []Worklog {
	var out []Worklog
	for _, w := range list {
		if w.Started == day {
			out = append(out, w)
		}
	}
	return out
}

// ForAccount filters worklogs owned by accountID.
func ForAccount(list []Worklog, accountID string) []Worklog {
	var out []Worklog
	for _, w := range list {
		if w.AccountID == accountID {
			out = append(out, w)
		}
	}
	return out
}

// TotalSeconds sums the time spent across list.
func TotalSeconds(list []Worklog) int {
	total := 0
	for _, w := range list {
		total += w.TimeSpentSeconds
	}
	return total
}

// Find returns the worklog with the given ID.
func Find(list []Worklog, id string) (Worklog, bool) {
	for _, w := range list {
		if w.ID == id {
			return w, true
		}
	}
	return Worklog{}, false
}

// FindPrefix resolves a possibly abbreviated ID. It fails when the prefix
// matches more than one entry.
func FindPrefix(list []Worklog, prefix string) (Worklog, bool) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return Worklog{}, false
	}
	if w, ok := Find(list, prefix); ok {
		return w, true
	}
	var match Worklog
	count := 0
	for _, w := range list {
		if strings.HasPrefix(w.ID, prefix) || strings.HasPrefix(strings.TrimPrefix(w.ID, LocalIDPrefix), prefix) {
			match = w
			count++
		}
	}
	return match, count == 1
}

// Upsert replaces the entry with w.ID or appends w.
func Upsert(list []Worklog, w Worklog) []Worklog {
	for i := range list {
		if list[i].ID == w.ID {
			out := clone(list)
			out[i] = w
			return out
		}
	}
	return append(clone(list), w)
}

// Remove drops the entry with the given ID.
func Remove(list []Worklog, id string) []Worklog {
	out := make([]Worklog, 0, len(list))
	for _, w := range list {
		if w.ID != id {
			out = append(out, w)
		}
	}
	return out
}

// Edited returns w marked as changed. Entries that were never pushed stay created.
func Edited(w Worklog) Worklog {
	if w.State != StateCreated {
		w.State = StateEdited
	}
	return w
}

func clone(list []Worklog) []Worklog {
	if list == nil {
		return nil
	}
	out := make([]Worklog, len(list))
	copy(out, list)
	return out
}
