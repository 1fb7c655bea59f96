package parser

import (
	"slices"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

// LogFilter selects log entries. Zero-valued fields match everything.
type LogFilter struct {
	Level  string
	TaskID string
	Status core.TaskStatus
	Search string // Case-insensitive substring of the raw line
}

// IsZero reports whether the filter matches every entry.
func (f LogFilter) IsZero() bool {
	return f == LogFilter{}
}

// Match reports whether e satisfies the filter.
func (f LogFilter) Match(e core.LogEntry) bool {
	if f.Level != "" && !strings.EqualFold(f.Level, e.Level) {
		return false
	}
	if f.TaskID != "" && f.TaskID != e.TaskID {
		return false
	}
	if f.Status != "" && f.Status != e.Status {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Raw), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// FilterLogs returns the entries matching f, preserving order.
func FilterLogs(entries []core.LogEntry, f LogFilter) []core.LogEntry {
	if f.IsZero() {
		return slices.Clone(entries)
	}
	out := make([]core.LogEntry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// LogSummary aggregates a set of log entries.
type LogSummary struct {
	Total       int            `json:"total"`
	LevelCounts map[string]int `json:"level_counts"`
	UniqueTasks []string       `json:"unique_tasks"`
	First       *time.Time     `json:"first,omitempty"`
	Last        *time.Time     `json:"last,omitempty"`
	HasErrors   bool           `json:"has_errors"`
}

// SummarizeLogs computes a LogSummary. UniqueTasks is sorted.
func SummarizeLogs(entries []core.LogEntry) LogSummary {
	sum := LogSummary{
		Total:       len(entries),
		LevelCounts: make(map[string]int),
	}
	tasks := make(map[string]bool)
	for _, e := range entries {
		sum.LevelCounts[e.Level]++
		if e.Level == core.LogLevelError {
			sum.HasErrors = true
		}
		if e.TaskID != "" {
			tasks[e.TaskID] = true
		}
		if e.Timestamp != nil {
			if sum.First == nil || e.Timestamp.Before(*sum.First) {
				ts := *e.Timestamp
				sum.First = &ts
			}
			if sum.Last == nil || e.Timestamp.After(*sum.Last) {
				ts := *e.Timestamp
				sum.Last = &ts
			}
		}
	}
	sum.UniqueTasks = make([]string, 0, len(tasks))
	for id := range tasks {
		sum.UniqueTasks = append(sum.UniqueTasks, id)
	}
	slices.Sort(sum.UniqueTasks)
	return sum
}
