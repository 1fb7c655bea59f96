package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

func TestParse_WorkflowText(t *testing.T) {
	dir := isolate(t)
	wf := writeTestFile(t, dir, "demo.xml", testWorkflow)

	out, err := execute(t, "parse", wf)
	require.NoError(t, err)
	assert.Contains(t, out, "Demo (demo)")
	assert.Contains(t, out, "Tasks:")
	assert.Regexp(t, `fcst\s+UNKNOWN\s+-\s+prep`, out)
}

func TestParse_WorkflowJSON(t *testing.T) {
	dir := isolate(t)
	wf := writeTestFile(t, dir, "demo.xml", testWorkflow)

	out, err := execute(t, "parse", wf, "--format", "json")
	require.NoError(t, err)

	var res parsedFile
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, core.KindWorkflow, res.Kind)
	require.NotNil(t, res.Workflow)
	assert.Equal(t, "demo", res.Workflow.ID)
	require.Len(t, res.Workflow.Tasks, 2)
	assert.Equal(t, "/home/user/run/prep.sh", res.Workflow.Tasks[0].Command)
}

func TestParse_Extract(t *testing.T) {
	dir := isolate(t)
	wf := writeTestFile(t, dir, "demo.xml", testWorkflow)

	out, err := execute(t, "parse", wf, "-f", "yaml", "-e", "cycles")
	require.NoError(t, err)
	var cycles []core.Cycle
	require.NoError(t, yaml.Unmarshal([]byte(out), &cycles))
	require.Len(t, cycles, 1)
	assert.Equal(t, "hourly", cycles[0].Group)

	out, err = execute(t, "parse", wf, "-f", "json", "-e", "dependencies")
	require.NoError(t, err)
	var deps []taskDependencies
	require.NoError(t, json.Unmarshal([]byte(out), &deps))
	require.Len(t, deps, 2)
	assert.Equal(t, "fcst", deps[1].Task)
	assert.Equal(t, []string{"prep"}, deps[1].DependsOn)
	assert.Equal(t, 1, deps[1].Level)
	assert.Equal(t, []string{"fcst"}, deps[0].Dependents)

	out, err = execute(t, "parse", wf, "-e", "dependencies")
	require.NoError(t, err)
	assert.Regexp(t, `prep\s+0\s+-\s+fcst`, out)
}

func TestParse_LogSummary(t *testing.T) {
	dir := isolate(t)
	log := writeTestFile(t, dir, "demo.log", testLog)

	out, err := execute(t, "parse", log)
	require.NoError(t, err)
	assert.Regexp(t, `Entries:\s+3`, out)
	assert.Regexp(t, `ERROR:\s+1`, out)
	assert.Contains(t, out, "fcst, prep")

	_, err = execute(t, "parse", log, "-e", "tasks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow files only")
}

func TestParse_MultipleFilesToOutput(t *testing.T) {
	dir := isolate(t)
	wf := writeTestFile(t, dir, "demo.xml", testWorkflow)
	log := writeTestFile(t, dir, "demo.log", testLog)
	dest := filepath.Join(dir, "out", "parsed.json")

	out, err := execute(t, "parse", wf, log, "-f", "json", "-o", dest)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var results []parsedFile
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 2)
	assert.Equal(t, wf, results[0].Path)
	assert.Equal(t, core.KindLog, results[1].Kind)
	require.NotNil(t, results[1].Summary)
	assert.True(t, results[1].Summary.HasErrors)
}

func TestParse_Errors(t *testing.T) {
	dir := isolate(t)
	broken := writeTestFile(t, dir, "broken.xml", "<workflow><task name=\"a\">")

	tests := []struct {
		name string
		args []string
		cat  core.ErrorCategory
	}{
		{"missing file", []string{"parse", filepath.Join(dir, "nope.xml")}, core.ErrCatInvalidPath},
		{"directory", []string{"parse", dir}, core.ErrCatInvalidPath},
		{"malformed xml", []string{"parse", broken}, core.ErrCatParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.True(t, core.IsCategory(err, tt.cat), "got %v", err)
		})
	}

	_, err := execute(t, "parse", broken, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestParse_OversizedLogKeepsWholeLines(t *testing.T) {
	dir := isolate(t)
	log := writeTestFile(t, dir, "demo.log", testLog)
	// The window of the last 120 bytes starts inside the first line.
	writeTestFile(t, dir, "rocoto_config.yaml", "monitor:\n  max_file_size: 120\n")

	out, err := execute(t, "parse", log, "-f", "json")
	require.NoError(t, err)
	var res parsedFile
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Capped)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "2024-01-01 00:06:00 :: Task fcst, jobid=102, in state RUNNING", res.Entries[0].Raw)
	assert.Equal(t, "fcst", res.Entries[0].TaskID)

	out, err = execute(t, "parse", log)
	require.NoError(t, err)
	assert.Contains(t, out, "only its last lines were read")
	assert.Regexp(t, `Entries:\s+2`, out)
}

func TestParse_SmallLogNotCapped(t *testing.T) {
	dir := isolate(t)
	log := writeTestFile(t, dir, "demo.log", testLog)

	out, err := execute(t, "parse", log, "-f", "json")
	require.NoError(t, err)
	var res parsedFile
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Capped)
	assert.Len(t, res.Entries, 3)
}
