package tui

import (
	"time"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/clip"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

// WorkflowChangedMsg signals a committed workflow update.
type WorkflowChangedMsg struct {
	WorkflowID   string
	Generation   int64
	Status       core.TaskStatus
	ChangedTasks []string
}

// WorkflowRemovedMsg signals that a workflow left the state.
type WorkflowRemovedMsg struct {
	WorkflowID string
}

// LogAppendedMsg signals new log entries for a log file.
type LogAppendedMsg struct {
	Path  string
	Count int
}

// RefreshFailedMsg signals that re-reading a workflow failed.
type RefreshFailedMsg struct {
	WorkflowID string
	Error      string
}

// HandlerErrorMsg signals a failing event subscriber.
type HandlerErrorMsg struct {
	EventType string
	Error     string
}

// refreshTickMsg drives the periodic state re-pull.
type refreshTickMsg time.Time

// copiedMsg reports the outcome of a yank.
type copiedMsg struct {
	result clip.Result
	err    error
}

// adapterClosedMsg is delivered once the event channel is closed.
type adapterClosedMsg struct{}
