package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Entry is one structured line of the jiratrack log.
type Entry struct {
	Time    string
	Level   zapcore.Level
	Logger  string
	Message string
	Fields  map[string]any
	Raw     string // set when the line is not JSON
}

// reserved keys written by the zap production encoder.
var reserved = map[string]bool{
	"ts": true, "level": true, "logger": true, "msg": true, "caller": true, "stacktrace": true,
}

// Parse decodes a zap JSON line. Lines that are not JSON are returned as Raw
// entries at info level so they still show up.
func Parse(line string) Entry {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{Level: zapcore.InfoLevel, Raw: line}
	}
	e := Entry{Level: zapcore.InfoLevel, Fields: map[string]any{}}
	if v, ok := raw["level"].(string); ok {
		if lvl, err := zapcore.ParseLevel(v); err == nil {
			e.Level = lvl
		}
	}
	e.Time = stringField(raw["ts"])
	e.Logger, _ = raw["logger"].(string)
	e.Message, _ = raw["msg"].(string)
	for k, v := range raw {
		if !reserved[k] {
			e.Fields[k] = v
		}
	}
	return e
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// Filter parses lines and keeps entries at or above minLevel. A non-empty
// logger keeps only entries from that logger or its children.
func Filter(lines []string, minLevel zapcore.Level, logger string) []Entry {
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		e := Parse(line)
		if e.Level < minLevel {
			continue
		}
		if logger != "" && e.Raw == "" && e.Logger != logger && !strings.HasPrefix(e.Logger, logger+".") {
			continue
		}
		out = append(out, e)
	}
	return out
}

var (
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	loggerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87AFFF"))
	fieldStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	levelStyles = map[zapcore.Level]lipgloss.Style{
		zapcore.DebugLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")).Bold(true),
		zapcore.InfoLevel:  lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F")).Bold(true),
		zapcore.WarnLevel:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true),
		zapcore.ErrorLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
	}
)

// Format renders an entry on one line:
// "2024-03-11T10:00:00.000+0100 INFO  [tracker] worklog added issue=PROJ-1".
// Fields are sorted by key.
func Format(e Entry) string {
	if e.Raw != "" {
		return e.Raw
	}
	style, ok := levelStyles[e.Level]
	if !ok {
		style = levelStyles[zapcore.ErrorLevel]
	}

	parts := make([]string, 0, 4+len(e.Fields))
	if e.Time != "" {
		parts = append(parts, timeStyle.Render(e.Time))
	}
	parts = append(parts, style.Render(fmt.Sprintf("%-5s", e.Level.CapitalString())))
	if e.Logger != "" {
		parts = append(parts, loggerStyle.Render("["+e.Logger+"]"))
	}
	parts = append(parts, e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fieldStyle.Render(k+"=")+formatValue(e.Fields[k]))
	}
	return strings.Join(parts, " ")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		if strings.ContainsAny(t, " \t\"") {
			return fmt.Sprintf("%q", t)
		}
		return t
	case float64:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
