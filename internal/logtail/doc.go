// Package logtail reads and pretty-prints the jiratrack log file.
//
// # Overview
//
// jiratrack writes zap JSON lines to <log_dir>/jiratrack.log because the
// TUI owns the terminal. The `jiratrack logs` command uses this package to
// show the tail of that file in a readable form.
//
// # Reading Log Files
//
// Read extracts the last maxLines from a file with a ring buffer of size
// maxLines, so memory stays O(maxLines) however large the log grows:
//
//	1. Allocate ring buffer of size maxLines
//	2. For each line in file:
//	   - Store line at current index
//	   - Increment index (wrapping at maxLines)
//	   - Track total lines seen
//	3. If total < maxLines:
//	   - Return first 'count' entries from buffer
//	4. If total >= maxLines:
//	   - Return buffer starting from current index (oldest line)
//
// A non-positive maxLines returns the whole file.
//
// # Parsing and Formatting
//
// Parse turns a line into an Entry (time, level, logger, message and the
// remaining fields). Lines that are not JSON, such as a panic trace, are
// kept verbatim. Filter applies a minimum level and an optional logger
// prefix ("jira" matches "jira" and "jira.<account>"). Format renders
//
//	2024-03-11T10:00:00.000+0100 WARN  [sync] sync failed error="jira: 503"
//
// with lipgloss colors, which are dropped automatically when stdout is
// not a terminal.
//
// Example usage:
//
//	lines, err := logtail.Read(cfg.LogPath(), 200)
//	if err != nil {
//		return err
//	}
//	for _, e := range logtail.Filter(lines, zapcore.InfoLevel, "") {
//		fmt.Println(logtail.Format(e))
//	}
package logtail
