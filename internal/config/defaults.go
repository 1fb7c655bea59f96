package config

// DefaultConfigFile is the file written by `rocotoviewer init`.
const DefaultConfigFile = "rocoto_config.yaml"

// DefaultConfigYAML contains the default configuration YAML content.
// It is used by both `rocotoviewer init` and `rocotoviewer config --reset`.
const DefaultConfigYAML = `# RocotoViewer configuration
#
# Values not specified here use built-in defaults.

# Workflows to display. monitor overrides monitor.enabled for one workflow.
workflows: []
#  - path: /path/to/workflow.xml
#    name: My Workflow
#    monitor: true
#    logs:
#      - /path/to/log/workflow.log

display:
  theme: default          # default, dark, light
  refresh_interval: 5     # seconds
  max_log_lines: 1000

monitor:
  enabled: true
  poll_interval: 10       # seconds
  max_file_size: 10485760 # bytes; larger files are read line-capped

logging:
  level: INFO             # DEBUG, INFO, WARNING, ERROR, CRITICAL
  file: ""                # required to see logs while the UI is running
  format: auto            # auto, text, json
`

// defaults lists every settable scalar key with its default value. The
// value's type drives coercion in Loader.SetValue.
var defaults = map[string]any{
	"display.theme":            "default",
	"display.refresh_interval": 5,
	"display.max_log_lines":    1000,
	"monitor.enabled":          true,
	"monitor.poll_interval":    10,
	"monitor.max_file_size":    int64(10485760),
	"logging.level":            "INFO",
	"logging.file":             "",
	"logging.format":           "auto",
}

// Themes lists the built-in UI themes.
var Themes = []string{"default", "dark", "light"}
