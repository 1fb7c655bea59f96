package parser

import (
	"cmp"
	"slices"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

// ApplyLogStatuses returns a copy of wf updated from its log entries, which
// must be in file order. Each mentioned task gets its latest raw line as
// LastLogLine. Tasks whose definition carries no explicit status take the
// latest status reported by the log, with start and end times filled in
// from the entry timestamps.
func ApplyLogStatuses(wf *core.Workflow, entries []core.LogEntry) *core.Workflow {
	out := wf.Clone()
	if out == nil || len(entries) == 0 {
		return out
	}

	for _, e := range entries {
		if e.TaskID == "" {
			continue
		}
		task, ok := out.Task(e.TaskID)
		if !ok {
			continue
		}
		task.LastLogLine = e.Raw
		if e.Status == "" || task.HasExplicitStatus() {
			continue
		}
		task.Status = e.Status
		if e.Timestamp == nil {
			continue
		}
		ts := *e.Timestamp
		switch {
		case e.Status == core.TaskStatusRunning && task.StartTime == nil:
			task.StartTime = &ts
		case e.Status.IsTerminal():
			task.EndTime = &ts
		}
	}
	out.RecomputeStatus()
	return out
}

// StatusTracker remembers, per task, the log entries that decide the
// outcome of ApplyLogStatuses: the latest line, the latest status, the first
// timestamped RUNNING and the latest timestamped terminal status. It lets a
// bounded display buffer drop old lines without losing task statuses.
// Entries must be observed in file order.
type StatusTracker struct {
	tasks map[string]*taskMarks
}

type taskMarks struct {
	last    *core.LogEntry
	status  *core.LogEntry
	started *core.LogEntry
	ended   *core.LogEntry
}

// Observe records a batch of entries.
func (t *StatusTracker) Observe(entries []core.LogEntry) {
	if t.tasks == nil {
		t.tasks = make(map[string]*taskMarks)
	}
	for _, e := range entries {
		if e.TaskID == "" {
			continue
		}
		m := t.tasks[e.TaskID]
		if m == nil {
			m = &taskMarks{}
			t.tasks[e.TaskID] = m
		}
		m.last = &e
		if e.Status == "" {
			continue
		}
		m.status = &e
		if e.Timestamp == nil {
			continue
		}
		switch {
		case e.Status == core.TaskStatusRunning && m.started == nil:
			m.started = &e
		case e.Status.IsTerminal():
			m.ended = &e
		}
	}
}

// Reset forgets everything, used when the log starts over.
func (t *StatusTracker) Reset() {
	t.tasks = nil
}

// Len returns the number of tasks seen.
func (t *StatusTracker) Len() int {
	return len(t.tasks)
}

// Entries returns the retained entries in file order. Passing them to
// ApplyLogStatuses gives the same result as passing every observed entry.
func (t *StatusTracker) Entries() []core.LogEntry {
	seen := make(map[*core.LogEntry]bool)
	var out []core.LogEntry
	for _, m := range t.tasks {
		for _, e := range []*core.LogEntry{m.started, m.ended, m.status, m.last} {
			if e == nil || seen[e] {
				continue
			}
			seen[e] = true
			out = append(out, *e)
		}
	}
	slices.SortStableFunc(out, func(a, b core.LogEntry) int {
		return cmp.Compare(a.LineNumber, b.LineNumber)
	})
	return out
}
