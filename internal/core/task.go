package core

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// TaskStatus represents the last known state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusDead      TaskStatus = "DEAD"
	TaskStatusUnknown   TaskStatus = "UNKNOWN"
)

// statusAliases maps Rocoto, rocotostat and legacy spellings to a status.
var statusAliases = map[string]TaskStatus{
	"pending":   TaskStatusPending,
	"queued":    TaskStatusPending,
	"q":         TaskStatusPending,
	"held":      TaskStatusPending,
	"h":         TaskStatusPending,
	"submitted": TaskStatusPending,
	"waiting":   TaskStatusPending,
	"running":   TaskStatusRunning,
	"run":       TaskStatusRunning,
	"r":         TaskStatusRunning,
	"active":    TaskStatusRunning,
	"succeeded": TaskStatusSucceeded,
	"success":   TaskStatusSucceeded,
	"complete":  TaskStatusSucceeded,
	"completed": TaskStatusSucceeded,
	"done":      TaskStatusSucceeded,
	"s":         TaskStatusSucceeded,
	"failed":    TaskStatusFailed,
	"fail":      TaskStatusFailed,
	"f":         TaskStatusFailed,
	"dead":      TaskStatusDead,
	"lost":      TaskStatusDead,
	"expired":   TaskStatusDead,
	"unknown":   TaskStatusUnknown,
	"u":         TaskStatusUnknown,
}

// ParseTaskStatus normalises a status string. Unrecognised values map to
// TaskStatusUnknown.
func ParseTaskStatus(s string) TaskStatus {
	key := strings.ToLower(strings.TrimSpace(s))
	if status, ok := statusAliases[key]; ok {
		return status
	}
	return TaskStatusUnknown
}

// IsTerminal reports whether the status can no longer change without a rewind.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusDead:
		return true
	default:
		return false
	}
}

// Dependency is one node of a task's dependency tree.
type Dependency struct {
	Type       string            `json:"type" yaml:"type"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Text       string            `json:"text,omitempty" yaml:"text,omitempty"`
	Children   []Dependency      `json:"children,omitempty" yaml:"children,omitempty"`
}

// TaskRefs returns every task referenced by taskdep nodes in the tree.
func (d Dependency) TaskRefs() []string {
	var refs []string
	if d.Type == "taskdep" {
		if ref := d.Attributes["task"]; ref != "" {
			refs = append(refs, ref)
		}
	}
	for _, child := range d.Children {
		refs = append(refs, child.TaskRefs()...)
	}
	return refs
}

func (d Dependency) clone() Dependency {
	out := Dependency{Type: d.Type, Text: d.Text, Attributes: maps.Clone(d.Attributes)}
	if len(d.Children) > 0 {
		out.Children = make([]Dependency, len(d.Children))
		for i, child := range d.Children {
			out.Children[i] = child.clone()
		}
	}
	return out
}

// Envar is an environment variable exported to a task's job.
type Envar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Task represents a task in a Rocoto workflow.
type Task struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	Command      string            `json:"command,omitempty" yaml:"command,omitempty"`
	Status       TaskStatus        `json:"status" yaml:"status"`
	Dependencies []Dependency      `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	DependsOn    []string          `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Envars       []Envar           `json:"envars,omitempty" yaml:"envars,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Cycledefs    string            `json:"cycledefs,omitempty" yaml:"cycledefs,omitempty"`
	LastLogLine  string            `json:"last_log_line,omitempty" yaml:"last_log_line,omitempty"`
	StartTime    *time.Time        `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime      *time.Time        `json:"end_time,omitempty" yaml:"end_time,omitempty"`
}

// HasExplicitStatus reports whether the definition file itself carried a status.
func (t *Task) HasExplicitStatus() bool {
	_, ok := t.Attributes["status"]
	return ok
}

// Duration returns EndTime-StartTime, or zero when either is missing.
func (t *Task) Duration() time.Duration {
	if t.StartTime == nil || t.EndTime == nil {
		return 0
	}
	return t.EndTime.Sub(*t.StartTime)
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	out.DependsOn = slices.Clone(t.DependsOn)
	out.Envars = slices.Clone(t.Envars)
	out.Attributes = maps.Clone(t.Attributes)
	if len(t.Dependencies) > 0 {
		out.Dependencies = make([]Dependency, len(t.Dependencies))
		for i, dep := range t.Dependencies {
			out.Dependencies[i] = dep.clone()
		}
	}
	if t.StartTime != nil {
		st := *t.StartTime
		out.StartTime = &st
	}
	if t.EndTime != nil {
		et := *t.EndTime
		out.EndTime = &et
	}
	return out
}
