package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Help(t *testing.T) {
	isolate(t)

	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "rocotoviewer")
	for _, sub := range []string{"view", "monitor", "parse", "stats", "config", "init", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestGetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc", "today")
	assert.Equal(t, "1.2.3", GetVersion())
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	SetVersion("1.2.3", "abc123", "2024-01-01")

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rocotoviewer 1.2.3")
	assert.Contains(t, out, "commit: abc123")
	assert.Contains(t, out, "built:  2024-01-01")
}

func TestExecute_UnknownFlag(t *testing.T) {
	isolate(t)

	_, err := execute(t, "parse", "--bogus")
	assert.Error(t, err)
}

func TestView_NoWorkflows(t *testing.T) {
	isolate(t)

	_, err := execute(t, "view")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no workflows")
}

func TestWorkflowSources(t *testing.T) {
	dir := isolate(t)
	wf := writeTestFile(t, dir, "demo.xml", testWorkflow)
	writeTestFile(t, dir, "rocoto_config.yaml", "workflows:\n  - path: "+wf+"\n    name: Configured\n    monitor: false\n    logs: [a.log]\nmonitor:\n  enabled: true\n")

	cfg, err := loadConfig()
	require.NoError(t, err)

	sources := workflowSources(cfg, nil, []string{"b.log"})
	require.Len(t, sources, 1)
	assert.Equal(t, "Configured", sources[0].Name)
	assert.False(t, sources[0].Monitor)
	assert.Equal(t, []string{"a.log", "b.log"}, sources[0].Logs)
	assert.False(t, anyMonitored(sources))

	sources = workflowSources(cfg, []string{"other.xml"}, nil)
	require.Len(t, sources, 1)
	assert.Equal(t, "other.xml", sources[0].Path)
	assert.True(t, sources[0].Monitor)
}

func TestLoadConfig_VerboseForcesDebug(t *testing.T) {
	isolate(t)
	verbose = 1
	t.Cleanup(func() { verbose = 0 })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}
