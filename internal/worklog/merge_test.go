package worklog

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func entry(id, day, key string, seconds int, state State) Worklog {
	return Worklog{
		ID:               id,
		AccountID:        "acc-1",
		Issue:            Issue{ID: "1" + key, Key: key, Summary: "Summary " + key},
		Started:          day,
		TimeSpentSeconds: seconds,
		State:            state,
	}
}

func TestMerge(t *testing.T) {
	remote := []Worklog{
		entry("100", "2024-01-02", "ABC-2", 3600, StateSynced),
		entry("101", "2024-01-01", "ABC-1", 1800, StateSynced),
		entry("102", "2024-01-01", "ABC-3", 600, StateSynced),
	}
	local := []Worklog{
		entry("101", "2024-01-01", "ABC-1", 2700, StateEdited),
		entry("102", "2024-01-01", "ABC-3", 600, StateDeleted),
		entry("local-a", "2024-01-01", "ABC-0", 900, StateCreated),
		entry("local-b", "2024-01-03", "ABC-9", 900, StateDeleted),
	}

	got := Merge(remote, local)
	want := []Worklog{
		entry("local-a", "2024-01-01", "ABC-0", 900, StateCreated),
		entry("101", "2024-01-01", "ABC-1", 2700, StateEdited),
		entry("100", "2024-01-02", "ABC-2", 3600, StateSynced),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_EmptyInputs(t *testing.T) {
	if got := Merge(nil, nil); len(got) != 0 {
		t.Fatalf("Merge(nil, nil) = %v, want empty", got)
	}
	remote := []Worklog{entry("1", "2024-01-01", "A-1", 60, StateSynced)}
	if diff := cmp.Diff(remote, Merge(remote, nil)); diff != "" {
		t.Fatalf("Merge(remote, nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestPending(t *testing.T) {
	local := []Worklog{
		entry("1", "2024-01-01", "A-1", 60, StateSynced),
		entry("2", "2024-01-01", "A-1", 60, StateEdited),
		entry("local-3", "2024-01-01", "A-1", 60, StateCreated),
		entry("4", "2024-01-01", "A-1", 60, StateDeleted),
	}
	got := Pending(local)
	if len(got) != 3 {
		t.Fatalf("Pending returned %d entries, want 3", len(got))
	}
	for _, w := range got {
		if w.State == StateSynced {
			t.Fatalf("Pending returned synced entry %q", w.ID)
		}
	}
}

func TestForDayAndTotal(t *testing.T) {
	list := []Worklog{
		entry("1", "2024-01-01", "A-1", 600, StateSynced),
		entry("2", "2024-01-02", "A-1", 1200, StateSynced),
		entry("3", "2024-01-01", "A-2", 1800, StateEdited),
	}
	day := ForDay(list, "2024-01-01")
	if len(day) != 2 {
		t.Fatalf("ForDay returned %d entries, want 2", len(day))
	}
	if got := TotalSeconds(day); got != 2400 {
		t.Fatalf("TotalSeconds = %d, want 2400", got)
	}
}

func TestFindPrefix(t *testing.T) {
	list := []Worklog{
		entry("10234", "2024-01-01", "A-1", 60, StateSynced),
		entry("10299", "2024-01-01", "A-1", 60, StateSynced),
		entry("local-9f8e7d", "2024-01-01", "A-1", 60, StateCreated),
	}
	if w, ok := FindPrefix(list, "10234"); !ok || w.ID != "10234" {
		t.Fatalf("FindPrefix exact = %v, %v", w.ID, ok)
	}
	if _, ok := FindPrefix(list, "102"); ok {
		t.Fatalf("FindPrefix ambiguous prefix resolved")
	}
	if w, ok := FindPrefix(list, "9f8e"); !ok || w.ID != "local-9f8e7d" {
		t.Fatalf("FindPrefix local = %v, %v", w.ID, ok)
	}
	if _, ok := FindPrefix(list, " "); ok {
		t.Fatalf("FindPrefix blank resolved")
	}
}

func TestUpsertAndRemoveDoNotAlias(t *testing.T) {
	list := []Worklog{entry("1", "2024-01-01", "A-1", 60, StateSynced)}
	updated := Upsert(list, entry("1", "2024-01-01", "A-1", 120, StateEdited))
	if list[0].TimeSpentSeconds != 60 {
		t.Fatalf("Upsert mutated its input")
	}
	if updated[0].TimeSpentSeconds != 120 {
		t.Fatalf("Upsert did not replace entry")
	}
	appended := Upsert(updated, entry("2", "2024-01-01", "A-2", 60, StateCreated))
	if len(appended) != 2 {
		t.Fatalf("Upsert did not append, len = %d", len(appended))
	}
	if got := Remove(appended, "1"); len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("Remove = %v", got)
	}
}

func TestEdited(t *testing.T) {
	if got := Edited(entry("1", "", "A-1", 0, StateSynced)).State; got != StateEdited {
		t.Fatalf("Edited(synced).State = %q, want edited", got)
	}
	if got := Edited(entry("local-1", "", "A-1", 0, StateCreated)).State; got != StateCreated {
		t.Fatalf("Edited(created).State = %q, want created", got)
	}
}

func TestTimer(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	var zero Timer
	if zero.Running() || zero.Elapsed(start) != 0 {
		t.Fatalf("zero Timer should be stopped")
	}

	timer := Start("1", start)
	if !timer.IsTracking("1") || timer.IsTracking("2") {
		t.Fatalf("IsTracking mismatch")
	}
	now := start.Add(90*time.Second + 900*time.Millisecond)
	if got := timer.Elapsed(now); got != 90 {
		t.Fatalf("Elapsed = %d, want 90", got)
	}
	if got := timer.Elapsed(start.Add(-time.Minute)); got != 0 {
		t.Fatalf("Elapsed with skew = %d, want 0", got)
	}

	w := entry("1", "2024-01-01", "A-1", 60, StateSynced)
	if got := timer.Apply(w, now).TimeSpentSeconds; got != 150 {
		t.Fatalf("Apply = %d, want 150", got)
	}
	other := entry("2", "2024-01-01", "A-1", 60, StateSynced)
	if got := timer.Apply(other, now).TimeSpentSeconds; got != 60 {
		t.Fatalf("Apply on other worklog = %d, want 60", got)
	}
}

func TestIssueHelpers(t *testing.T) {
	issue := Issue{Key: "CORE-12", Summary: "Fix login"}
	if got := issue.Label(); got != "CORE-12 Fix login" {
		t.Fatalf("Label = %q", got)
	}
	if got := issue.Project(); got != "CORE" {
		t.Fatalf("Project = %q, want CORE", got)
	}
	issue.ProjectKey = "OTHER"
	if got := issue.Project(); got != "OTHER" {
		t.Fatalf("Project = %q, want OTHER", got)
	}
}
