package config

import "time"

// Config holds all application configuration.
type Config struct {
	Workflows []WorkflowConfig `mapstructure:"workflows" yaml:"workflows"`
	Display   DisplayConfig    `mapstructure:"display" yaml:"display"`
	Monitor   MonitorConfig    `mapstructure:"monitor" yaml:"monitor"`
	Logging   LogConfig        `mapstructure:"logging" yaml:"logging"`
}

// WorkflowConfig names one workflow definition to view.
type WorkflowConfig struct {
	Path    string   `mapstructure:"path" yaml:"path"`
	Name    string   `mapstructure:"name" yaml:"name,omitempty"`
	Monitor *bool    `mapstructure:"monitor" yaml:"monitor,omitempty"`
	Logs    []string `mapstructure:"logs" yaml:"logs,omitempty"`
}

// DisplayConfig configures the terminal UI.
type DisplayConfig struct {
	Theme           string `mapstructure:"theme" yaml:"theme"`
	RefreshInterval int    `mapstructure:"refresh_interval" yaml:"refresh_interval"` // seconds
	MaxLogLines     int    `mapstructure:"max_log_lines" yaml:"max_log_lines"`
}

// MonitorConfig configures file change detection.
type MonitorConfig struct {
	Enabled      bool  `mapstructure:"enabled" yaml:"enabled"`
	PollInterval int   `mapstructure:"poll_interval" yaml:"poll_interval"` // seconds
	MaxFileSize  int64 `mapstructure:"max_file_size" yaml:"max_file_size"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
	Format string `mapstructure:"format" yaml:"format,omitempty"`
}

// MonitorEnabledFor reports whether wf should be watched after its initial
// load. An explicit per-workflow flag wins over monitor.enabled.
func (c *Config) MonitorEnabledFor(wf WorkflowConfig) bool {
	if wf.Monitor != nil {
		return *wf.Monitor
	}
	return c.Monitor.Enabled
}

// PollInterval returns the monitor tick interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollInterval) * time.Second
}

// RefreshInterval returns how often the UI re-reads state.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Display.RefreshInterval) * time.Second
}
