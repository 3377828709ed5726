package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "missing.log"), 10)
	if err != nil || got != nil {
		t.Fatalf("Read(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestParse(t *testing.T) {
	line := `{"level":"warn","ts":"2024-03-11T10:00:00.000+0100","logger":"sync","caller":"app/poller.go:90","msg":"sync failed","error":"jira: 503","attempt":2}`
	e := Parse(line)

	if e.Level != zapcore.WarnLevel || e.Logger != "sync" || e.Message != "sync failed" {
		t.Fatalf("Parse() = %+v", e)
	}
	if e.Time != "2024-03-11T10:00:00.000+0100" {
		t.Fatalf("Time = %q", e.Time)
	}
	want := map[string]any{"error": "jira: 503", "attempt": float64(2)}
	if !reflect.DeepEqual(e.Fields, want) {
		t.Fatalf("Fields = %v, want %v", e.Fields, want)
	}

	raw := Parse("panic: runtime error")
	if raw.Raw != "panic: runtime error" || raw.Level != zapcore.InfoLevel {
		t.Fatalf("Parse(raw) = %+v", raw)
	}
}

func TestFilter(t *testing.T) {
	lines := []string{
		`{"level":"debug","logger":"jira","msg":"request"}`,
		`{"level":"info","logger":"tracker","msg":"worklog added"}`,
		`{"level":"error","logger":"jira.acc-1","msg":"refresh failed"}`,
		``,
		`not json`,
	}

	tests := []struct {
		name   string
		level  zapcore.Level
		logger string
		want   []string
	}{
		{"everything", zapcore.DebugLevel, "", []string{"request", "worklog added", "refresh failed", ""}},
		{"info and up", zapcore.InfoLevel, "", []string{"worklog added", "refresh failed", ""}},
		{"errors only", zapcore.ErrorLevel, "", []string{"refresh failed"}},
		{"jira logger tree", zapcore.DebugLevel, "jira", []string{"request", "refresh failed", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range Filter(lines, tt.level, tt.logger) {
				got = append(got, e.Message)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Filter() messages = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	e := Entry{
		Time:    "2024-03-11T10:00:00.000+0100",
		Level:   zapcore.InfoLevel,
		Logger:  "tracker",
		Message: "worklog added",
		Fields:  map[string]any{"issue": "PROJ-1", "comment": "two words", "seconds": float64(3600)},
	}
	got := Format(e)
	for _, want := range []string{"2024-03-11T10:00:00.000+0100", "INFO", "[tracker]", "worklog added", `comment="two words"`, "issue=PROJ-1", "seconds=3600"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Format() = %q, missing %q", got, want)
		}
	}
	if strings.Index(got, "comment=") > strings.Index(got, "issue=") {
		t.Fatalf("fields not sorted: %q", got)
	}

	if got := Format(Entry{Raw: "plain text"}); got != "plain text" {
		t.Fatalf("Format(raw) = %q", got)
	}
}
