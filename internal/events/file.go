package events

import "github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"

// Event type constants for file monitor events.
const (
	TypeFileChanged     = "file_changed"
	TypeFileRemoved     = "file_removed"
	TypePathUnmonitored = "path_unmonitored"
	TypeMonitorStarted  = "monitor_started"
	TypeMonitorStopped  = "monitor_stopped"
)

// SourceMonitor is the source identifier used by the file monitor.
const SourceMonitor = "monitor"

// FileChangedEvent is emitted when a monitored file's signature changes.
type FileChangedEvent struct {
	BaseEvent
	Path string          `json:"path"`
	Kind core.ParserKind `json:"kind"`
}

// NewFileChangedEvent creates a new file changed event.
func NewFileChangedEvent(path string, kind core.ParserKind) FileChangedEvent {
	return FileChangedEvent{
		BaseEvent: NewBaseEvent(TypeFileChanged, SourceMonitor),
		Path:      path,
		Kind:      kind,
	}
}

// FileRemovedEvent is emitted once when a monitored file disappears.
type FileRemovedEvent struct {
	BaseEvent
	Path string          `json:"path"`
	Kind core.ParserKind `json:"kind"`
}

// NewFileRemovedEvent creates a new file removed event.
func NewFileRemovedEvent(path string, kind core.ParserKind) FileRemovedEvent {
	return FileRemovedEvent{
		BaseEvent: NewBaseEvent(TypeFileRemoved, SourceMonitor),
		Path:      path,
		Kind:      kind,
	}
}

// PathUnmonitoredEvent is emitted when a path is explicitly unregistered.
type PathUnmonitoredEvent struct {
	BaseEvent
	Path string          `json:"path"`
	Kind core.ParserKind `json:"kind"`
}

// NewPathUnmonitoredEvent creates a new path unmonitored event.
func NewPathUnmonitoredEvent(path string, kind core.ParserKind) PathUnmonitoredEvent {
	return PathUnmonitoredEvent{
		BaseEvent: NewBaseEvent(TypePathUnmonitored, SourceMonitor),
		Path:      path,
		Kind:      kind,
	}
}

// MonitorStartedEvent is emitted when the polling loop starts.
type MonitorStartedEvent struct {
	BaseEvent
	Paths int `json:"paths"`
}

// NewMonitorStartedEvent creates a new monitor started event.
func NewMonitorStartedEvent(paths int) MonitorStartedEvent {
	return MonitorStartedEvent{
		BaseEvent: NewBaseEvent(TypeMonitorStarted, SourceMonitor),
		Paths:     paths,
	}
}

// MonitorStoppedEvent is emitted after the polling loop has exited.
type MonitorStoppedEvent struct {
	BaseEvent
}

// NewMonitorStoppedEvent creates a new monitor stopped event.
func NewMonitorStoppedEvent() MonitorStoppedEvent {
	return MonitorStoppedEvent{BaseEvent: NewBaseEvent(TypeMonitorStopped, SourceMonitor)}
}
