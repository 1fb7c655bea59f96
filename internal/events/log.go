package events

// Event type constants for log events.
const (
	TypeLogAppended = "log_appended"
)

// LogAppendedEvent is emitted once per batch of new log entries.
type LogAppendedEvent struct {
	BaseEvent
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// NewLogAppendedEvent creates a new log appended event.
func NewLogAppendedEvent(path string, count int) LogAppendedEvent {
	return LogAppendedEvent{
		BaseEvent: NewBaseEvent(TypeLogAppended, SourceState),
		Path:      path,
		Count:     count,
	}
}
