package core

import "time"

// Log levels recognised by the log parser.
const (
	LogLevelDebug = "DEBUG"
	LogLevelInfo  = "INFO"
	LogLevelWarn  = "WARNING"
	LogLevelError = "ERROR"
)

// LogEntry is one parsed line of a workflow log. It is immutable once created.
type LogEntry struct {
	Timestamp  *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Level      string     `json:"level" yaml:"level"`
	TaskID     string     `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Cycle      string     `json:"cycle,omitempty" yaml:"cycle,omitempty"`
	JobID      string     `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	Status     TaskStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Message    string     `json:"message" yaml:"message"`
	Raw        string     `json:"raw" yaml:"raw"`
	LineNumber int        `json:"line_number" yaml:"line_number"`
	Source     string     `json:"source,omitempty" yaml:"source,omitempty"`
}

// WithSource returns a copy of the entry attributed to source.
func (e LogEntry) WithSource(source string) LogEntry {
	e.Source = source
	return e
}
