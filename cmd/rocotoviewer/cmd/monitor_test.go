package cmd

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/events"
)

func TestMonitor_OnePassText(t *testing.T) {
	dir := isolate(t)
	wf := writeTestFile(t, dir, "demo.xml", testWorkflow)
	log := writeTestFile(t, dir, "demo.log", testLog)

	out, err := execute(t, "monitor", wf, "-l", log)
	require.NoError(t, err)
	assert.Contains(t, out, events.TypeLogAppended)
	assert.Contains(t, out, log+" +3")
	assert.Contains(t, out, events.TypeWorkflowUpdated)
	assert.Contains(t, out, "demo gen=1")
}

func TestMonitor_DirectoryJSONToFile(t *testing.T) {
	dir := isolate(t)
	runDir := filepath.Join(dir, "run")
	writeTestFile(t, runDir, "demo.xml", testWorkflow)
	writeTestFile(t, runDir, "demo.log", testLog)
	dest := filepath.Join(dir, "events.jsonl")

	_, err := execute(t, "monitor", "-d", runDir, "--format", "json", "-o", dest)
	require.NoError(t, err)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()

	types := map[string]int{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		types[ev.Type]++
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, 1, types[events.TypeLogAppended])
	assert.GreaterOrEqual(t, types[events.TypeWorkflowUpdated], 1)
}

func TestMonitor_FailuresSurface(t *testing.T) {
	dir := isolate(t)
	bad := writeTestFile(t, dir, "broken.xml", "<workflow>")

	out, err := execute(t, "monitor", bad)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatParse), "got %v", err)
	assert.Contains(t, out, events.TypeRefreshFailed)
}

func TestMonitor_Validation(t *testing.T) {
	isolate(t)

	_, err := execute(t, "monitor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to monitor")

	_, err = execute(t, "monitor", "x.xml", "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")

	_, err = execute(t, "monitor", "x.xml", "-i", "-1")
	require.Error(t, err)
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		event events.Event
		want  string
	}{
		{events.NewWorkflowUpdatedEvent("wf", 2, core.TaskStatusRunning, []string{"a"}), "wf gen=2 status=RUNNING changed=[a]"},
		{events.NewWorkflowRemovedEvent("wf"), "wf"},
		{events.NewLogAppendedEvent("x.log", 4), "x.log +4"},
		{events.NewMonitorStartedEvent(3), "3 paths"},
		{events.NewMonitorStoppedEvent(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.event.EventType(), func(t *testing.T) {
			assert.Equal(t, tt.want, describeEvent(tt.event))
		})
	}
}

func TestEventPrinter_Text(t *testing.T) {
	var b strings.Builder
	p := &eventPrinter{w: &b}
	require.NoError(t, p.handle(events.NewWorkflowRemovedEvent("wf")))
	assert.Contains(t, b.String(), events.TypeWorkflowRemoved)
	assert.True(t, strings.HasSuffix(b.String(), "wf\n"))
}

func TestEventPrinter_Label(t *testing.T) {
	plain := &eventPrinter{}
	assert.Equal(t, "refresh_failed   ", plain.label(events.TypeRefreshFailed))

	old := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = old })

	colored := &eventPrinter{color: true}
	got := colored.label(events.TypeRefreshFailed)
	assert.Contains(t, got, "refresh_failed")
	assert.Contains(t, got, "\x1b[31m")
}
