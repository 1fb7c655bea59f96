package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rocoto_config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	return path
}

func TestLoader_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Display.Theme != "default" {
		t.Errorf("Display.Theme = %q, want %q", cfg.Display.Theme, "default")
	}
	if cfg.Display.RefreshInterval != 5 {
		t.Errorf("Display.RefreshInterval = %d, want 5", cfg.Display.RefreshInterval)
	}
	if cfg.Display.MaxLogLines != 1000 {
		t.Errorf("Display.MaxLogLines = %d, want 1000", cfg.Display.MaxLogLines)
	}
	if !cfg.Monitor.Enabled {
		t.Error("Monitor.Enabled = false, want true")
	}
	if cfg.Monitor.PollInterval != 10 {
		t.Errorf("Monitor.PollInterval = %d, want 10", cfg.Monitor.PollInterval)
	}
	if cfg.Monitor.MaxFileSize != 10485760 {
		t.Errorf("Monitor.MaxFileSize = %d, want 10485760", cfg.Monitor.MaxFileSize)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Logging.Level = %q, want INFO", cfg.Logging.Level)
	}
	if len(cfg.Workflows) != 0 {
		t.Errorf("Workflows = %v, want none", cfg.Workflows)
	}
}

func TestLoader_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
workflows:
  - path: /runs/gfs.xml
    name: GFS
    monitor: false
  - path: /runs/gefs.xml
    logs: [/runs/log/gefs.log]
display:
  theme: dark
monitor:
  poll_interval: 3
logging:
  level: DEBUG
`)

	loader := NewLoader().WithConfigFile(path)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loader.ConfigFile() != path {
		t.Errorf("ConfigFile() = %q, want %q", loader.ConfigFile(), path)
	}

	if len(cfg.Workflows) != 2 {
		t.Fatalf("Workflows = %d, want 2", len(cfg.Workflows))
	}
	gfs := cfg.Workflows[0]
	if gfs.Name != "GFS" || gfs.Monitor == nil || *gfs.Monitor {
		t.Errorf("Workflows[0] = %+v, want GFS with monitor false", gfs)
	}
	if cfg.Workflows[1].Monitor != nil {
		t.Error("Workflows[1].Monitor set, want nil")
	}
	if got := cfg.Workflows[1].Logs; len(got) != 1 || got[0] != "/runs/log/gefs.log" {
		t.Errorf("Workflows[1].Logs = %v", got)
	}
	if cfg.Display.Theme != "dark" {
		t.Errorf("Display.Theme = %q, want dark", cfg.Display.Theme)
	}
	if cfg.PollInterval().Seconds() != 3 {
		t.Errorf("PollInterval() = %v, want 3s", cfg.PollInterval())
	}
	// Untouched keys keep their defaults.
	if cfg.Display.MaxLogLines != 1000 {
		t.Errorf("Display.MaxLogLines = %d, want 1000", cfg.Display.MaxLogLines)
	}
}

func TestLoader_EnvOverride(t *testing.T) {
	path := writeConfig(t, "display:\n  theme: dark\n")
	t.Setenv("ROCOTOVIEWER_DISPLAY_THEME", "light")

	cfg, err := NewLoader().WithConfigFile(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Display.Theme != "light" {
		t.Errorf("Display.Theme = %q, want light", cfg.Display.Theme)
	}
}

func TestLoader_ConfigFromEnv(t *testing.T) {
	path := writeConfig(t, "monitor:\n  enabled: false\n")
	t.Setenv("ROCOTOVIEWER_CONFIG", path)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Monitor.Enabled {
		t.Error("Monitor.Enabled = true, want false from file")
	}
}

func TestLoader_MissingExplicitFile(t *testing.T) {
	_, err := NewLoader().WithConfigFile(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	if err == nil {
		t.Fatal("Load() expected error for missing explicit file")
	}
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "display: [unclosed\n")
	if _, err := NewLoader().WithConfigFile(path).Load(); err == nil {
		t.Fatal("Load() expected error for malformed YAML")
	}
}

func TestLoader_SetValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	loader := NewLoader()
	if _, err := loader.Load(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key, raw string
		wantErr  bool
	}{
		{"display.theme", "light", false},
		{"monitor.enabled", "false", false},
		{"monitor.poll_interval", "30", false},
		{"monitor.max_file_size", "2048", false},
		{"monitor.enabled", "maybe", true},
		{"display.refresh_interval", "soon", true},
		{"display.colour", "red", true},
		{"workflows", "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.raw, func(t *testing.T) {
			err := loader.SetValue(tt.key, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetValue() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := loader.SetValue("nope", "1"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("SetValue(nope) = %v, want ErrUnknownKey", err)
	}

	cfg, err := loader.Config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Display.Theme != "light" || cfg.Monitor.Enabled || cfg.Monitor.PollInterval != 30 || cfg.Monitor.MaxFileSize != 2048 {
		t.Errorf("Config() after SetValue = %+v", cfg)
	}
}

func TestMonitorEnabledFor(t *testing.T) {
	on, off := true, false
	tests := []struct {
		name   string
		global bool
		flag   *bool
		want   bool
	}{
		{"global on, unset", true, nil, true},
		{"global off, unset", false, nil, false},
		{"global on, workflow off", true, &off, false},
		{"global off, workflow on", false, &on, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Monitor: MonitorConfig{Enabled: tt.global}}
			if got := cfg.MonitorEnabledFor(WorkflowConfig{Path: "x.xml", Monitor: tt.flag}); got != tt.want {
				t.Errorf("MonitorEnabledFor() = %v, want %v", got, tt.want)
			}
		})
	}
}
