package core

import (
	"maps"
	"reflect"
	"slices"
	"time"
)

// Cycle is a cycledef entry of a workflow.
type Cycle struct {
	Group string `json:"group,omitempty" yaml:"group,omitempty"`
	Spec  string `json:"spec" yaml:"spec"`
}

// Resource is an entry of the workflow's resource pool.
type Resource struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Workflow is one parse generation of a Rocoto workflow definition. It is
// replaced wholesale on re-parse; fields from different parses never mix.
type Workflow struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Path        string     `json:"path" yaml:"path"`
	Tasks       []Task     `json:"tasks" yaml:"tasks"`
	Cycles      []Cycle    `json:"cycles,omitempty" yaml:"cycles,omitempty"`
	Resources   []Resource `json:"resources,omitempty" yaml:"resources,omitempty"`
	Status      TaskStatus `json:"status" yaml:"status"`
	ModifiedAt  time.Time  `json:"modified_at" yaml:"modified_at"`
	ParsedAt    time.Time  `json:"parsed_at" yaml:"parsed_at"`
	Generation  int64      `json:"generation" yaml:"generation"`
}

// DeriveStatus computes the overall workflow status from its tasks.
func DeriveStatus(tasks []Task) TaskStatus {
	if len(tasks) == 0 {
		return TaskStatusUnknown
	}
	counts := countStatuses(tasks)
	switch {
	case counts[TaskStatusFailed] > 0 || counts[TaskStatusDead] > 0:
		return TaskStatusFailed
	case counts[TaskStatusRunning] > 0:
		return TaskStatusRunning
	case counts[TaskStatusSucceeded] == len(tasks):
		return TaskStatusSucceeded
	case counts[TaskStatusPending] == len(tasks):
		return TaskStatusPending
	case counts[TaskStatusUnknown] == len(tasks):
		return TaskStatusUnknown
	case counts[TaskStatusSucceeded] > 0:
		// Some work done, some still waiting.
		return TaskStatusRunning
	default:
		return TaskStatusPending
	}
}

func countStatuses(tasks []Task) map[TaskStatus]int {
	counts := make(map[TaskStatus]int)
	for i := range tasks {
		counts[tasks[i].Status]++
	}
	return counts
}

// RecomputeStatus refreshes Status from the task list.
func (w *Workflow) RecomputeStatus() {
	w.Status = DeriveStatus(w.Tasks)
}

// Task returns the task with the given id.
func (w *Workflow) Task(id string) (*Task, bool) {
	for i := range w.Tasks {
		if w.Tasks[i].ID == id {
			return &w.Tasks[i], true
		}
	}
	return nil, false
}

// TaskIDs returns task ids in definition order.
func (w *Workflow) TaskIDs() []string {
	ids := make([]string, len(w.Tasks))
	for i := range w.Tasks {
		ids[i] = w.Tasks[i].ID
	}
	return ids
}

// StatusCounts returns the number of tasks per status.
func (w *Workflow) StatusCounts() map[TaskStatus]int {
	return countStatuses(w.Tasks)
}

// Timeline is the time span covered by a workflow's tasks.
type Timeline struct {
	EarliestStart *time.Time    `json:"earliest_start,omitempty" yaml:"earliest_start,omitempty"`
	LatestEnd     *time.Time    `json:"latest_end,omitempty" yaml:"latest_end,omitempty"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
}

// Timeline returns the earliest task start and latest task end. Duration is
// zero unless both are known and the end is not before the start.
func (w *Workflow) Timeline() Timeline {
	var tl Timeline
	for i := range w.Tasks {
		t := &w.Tasks[i]
		if t.StartTime != nil && (tl.EarliestStart == nil || t.StartTime.Before(*tl.EarliestStart)) {
			st := *t.StartTime
			tl.EarliestStart = &st
		}
		if t.EndTime != nil && (tl.LatestEnd == nil || t.EndTime.After(*tl.LatestEnd)) {
			et := *t.EndTime
			tl.LatestEnd = &et
		}
	}
	if tl.EarliestStart != nil && tl.LatestEnd != nil && !tl.LatestEnd.Before(*tl.EarliestStart) {
		tl.Duration = tl.LatestEnd.Sub(*tl.EarliestStart)
	}
	return tl
}

// DependencyCount returns the number of task-to-task dependency edges.
func (w *Workflow) DependencyCount() int {
	n := 0
	for i := range w.Tasks {
		n += len(w.Tasks[i].DependsOn)
	}
	return n
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	out.Cycles = slices.Clone(w.Cycles)
	out.Resources = slices.Clone(w.Resources)
	out.Tasks = make([]Task, len(w.Tasks))
	for i := range w.Tasks {
		out.Tasks[i] = w.Tasks[i].Clone()
	}
	return &out
}

// Equal reports structural equality, ignoring bookkeeping fields
// (ModifiedAt, ParsedAt, Generation) that change on every parse.
func (w *Workflow) Equal(other *Workflow) bool {
	if w == nil || other == nil {
		return w == other
	}
	if w.ID != other.ID || w.Name != other.Name || w.Description != other.Description ||
		w.Path != other.Path || w.Status != other.Status {
		return false
	}
	if !slices.Equal(w.Cycles, other.Cycles) || !slices.Equal(w.Resources, other.Resources) {
		return false
	}
	return slices.EqualFunc(w.Tasks, other.Tasks, tasksEqual)
}

// ChangedTasks returns ids of tasks that differ between prev and next,
// including tasks added in next. Removed tasks are included too.
func ChangedTasks(prev, next *Workflow) []string {
	var changed []string
	seen := make(map[string]bool)
	for i := range next.Tasks {
		t := &next.Tasks[i]
		seen[t.ID] = true
		if prev == nil {
			changed = append(changed, t.ID)
			continue
		}
		old, ok := prev.Task(t.ID)
		if !ok || !tasksEqual(*old, *t) {
			changed = append(changed, t.ID)
		}
	}
	if prev != nil {
		for i := range prev.Tasks {
			if !seen[prev.Tasks[i].ID] {
				changed = append(changed, prev.Tasks[i].ID)
			}
		}
	}
	return changed
}

func tasksEqual(a, b Task) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Command != b.Command || a.Status != b.Status ||
		a.Cycledefs != b.Cycledefs || a.LastLogLine != b.LastLogLine {
		return false
	}
	if !slices.Equal(a.DependsOn, b.DependsOn) || !slices.Equal(a.Envars, b.Envars) {
		return false
	}
	if !maps.Equal(a.Attributes, b.Attributes) {
		return false
	}
	if !timePtrEqual(a.StartTime, b.StartTime) || !timePtrEqual(a.EndTime, b.EndTime) {
		return false
	}
	return reflect.DeepEqual(a.Dependencies, b.Dependencies)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
