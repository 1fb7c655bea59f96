package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// Validate checks the whole configuration and reports every problem at
// once, joined with errors.Join. Each joined error is a ValidationError.
func Validate(cfg *Config) error {
	var errs []error
	add := func(field string, value interface{}, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	for i, wf := range cfg.Workflows {
		field := fmt.Sprintf("workflows[%d].path", i)
		if strings.TrimSpace(wf.Path) == "" {
			add(field, wf.Path, "path required")
			continue
		}
		info, err := os.Stat(wf.Path)
		switch {
		case err != nil:
			add(field, wf.Path, "file not found")
		case info.IsDir():
			add(field, wf.Path, "must be a file")
		}
	}

	if !slices.Contains(Themes, cfg.Display.Theme) {
		add("display.theme", cfg.Display.Theme, "must be one of: "+strings.Join(Themes, ", "))
	}
	if cfg.Display.RefreshInterval <= 0 {
		add("display.refresh_interval", cfg.Display.RefreshInterval, "must be positive")
	}
	if cfg.Display.MaxLogLines <= 0 {
		add("display.max_log_lines", cfg.Display.MaxLogLines, "must be positive")
	}

	if cfg.Monitor.PollInterval <= 0 {
		add("monitor.poll_interval", cfg.Monitor.PollInterval, "must be positive")
	}
	if cfg.Monitor.MaxFileSize <= 0 {
		add("monitor.max_file_size", cfg.Monitor.MaxFileSize, "must be positive")
	}

	if !logging.ValidLevel(cfg.Logging.Level) {
		add("logging.level", cfg.Logging.Level, "must be one of: DEBUG, INFO, WARNING, ERROR, CRITICAL")
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "auto", "text", "json":
	default:
		add("logging.format", cfg.Logging.Format, "must be one of: auto, text, json")
	}

	return errors.Join(errs...)
}

// ValidationErrors unpacks the individual problems of an error returned by
// Validate.
func ValidationErrors(err error) []ValidationError {
	if err == nil {
		return nil
	}
	var out []ValidationError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			var ve ValidationError
			if errors.As(e, &ve) {
				out = append(out, ve)
			}
		}
		return out
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		out = append(out, ve)
	}
	return out
}
