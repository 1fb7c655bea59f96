package events

import "github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"

// Event type constants for state events.
const (
	TypeWorkflowUpdated = "workflow_updated"
	TypeWorkflowRemoved = "workflow_removed"
	TypeRefreshFailed   = "refresh_failed"
	TypeHandlerError    = "handler_error"
)

// SourceState is the source identifier used by the state manager.
const SourceState = "state"

// WorkflowUpdatedEvent is emitted exactly once per committed workflow change.
type WorkflowUpdatedEvent struct {
	BaseEvent
	WorkflowID   string          `json:"workflow_id"`
	Generation   int64           `json:"generation"`
	Status       core.TaskStatus `json:"status"`
	ChangedTasks []string        `json:"changed_tasks,omitempty"`
}

// NewWorkflowUpdatedEvent creates a new workflow updated event.
func NewWorkflowUpdatedEvent(workflowID string, generation int64, status core.TaskStatus, changed []string) WorkflowUpdatedEvent {
	return WorkflowUpdatedEvent{
		BaseEvent:    NewBaseEvent(TypeWorkflowUpdated, SourceState),
		WorkflowID:   workflowID,
		Generation:   generation,
		Status:       status,
		ChangedTasks: changed,
	}
}

// WorkflowRemovedEvent is emitted when a workflow is dropped from state.
type WorkflowRemovedEvent struct {
	BaseEvent
	WorkflowID string `json:"workflow_id"`
}

// NewWorkflowRemovedEvent creates a new workflow removed event.
func NewWorkflowRemovedEvent(workflowID string) WorkflowRemovedEvent {
	return WorkflowRemovedEvent{
		BaseEvent:  NewBaseEvent(TypeWorkflowRemoved, SourceState),
		WorkflowID: workflowID,
	}
}

// RefreshFailedEvent is emitted when a refresh could not be committed. The
// previous snapshot stays in place.
type RefreshFailedEvent struct {
	BaseEvent
	WorkflowID string             `json:"workflow_id,omitempty"`
	Path       string             `json:"path"`
	Category   core.ErrorCategory `json:"category"`
	Error      string             `json:"error"`
}

// NewRefreshFailedEvent creates a new refresh failed event.
func NewRefreshFailedEvent(workflowID, path string, err error) RefreshFailedEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return RefreshFailedEvent{
		BaseEvent:  NewBaseEvent(TypeRefreshFailed, SourceState),
		WorkflowID: workflowID,
		Path:       path,
		Category:   core.GetCategory(err),
		Error:      errStr,
	}
}

// HandlerErrorEvent reports a subscriber failure.
type HandlerErrorEvent struct {
	BaseEvent
	FailedType string `json:"failed_type"`
	HandlerID  string `json:"handler_id"`
	Error      string `json:"error"`
}

// NewHandlerErrorEvent creates a new handler error event.
func NewHandlerErrorEvent(err *core.HandlerError) HandlerErrorEvent {
	return HandlerErrorEvent{
		BaseEvent:  NewBaseEvent(TypeHandlerError, "bus"),
		FailedType: err.EventType,
		HandlerID:  err.HandlerID,
		Error:      err.Cause.Error(),
	}
}
