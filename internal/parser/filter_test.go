package parser

import (
	"testing"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

const sampleLog = `2024-01-01 00:00:00 INFO task=prep submitted jobid=1
2024-01-01 00:05:00 INFO task=prep running
2024-01-01 00:10:00 INFO task=prep succeeded exit: 0
2024-01-01 00:11:00 WARN queue is slow
2024-01-01 00:20:00 ERROR task=fcst failed exit: 1
`

func TestFilterLogs(t *testing.T) {
	entries, _ := ParseLog("wf.log", []byte(sampleLog))
	if len(entries) != 5 {
		t.Fatalf("got %d entries", len(entries))
	}

	tests := []struct {
		name   string
		filter LogFilter
		want   int
	}{
		{"zero", LogFilter{}, 5},
		{"level", LogFilter{Level: "error"}, 1},
		{"task", LogFilter{TaskID: "prep"}, 3},
		{"status", LogFilter{Status: core.TaskStatusRunning}, 1},
		{"search", LogFilter{Search: "SLOW"}, 1},
		{"combined", LogFilter{TaskID: "prep", Search: "exit"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilterLogs(entries, tt.filter); len(got) != tt.want {
				t.Errorf("got %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSummarizeLogs(t *testing.T) {
	entries, _ := ParseLog("wf.log", []byte(sampleLog))
	sum := SummarizeLogs(entries)

	if sum.Total != 5 {
		t.Errorf("total = %d", sum.Total)
	}
	if sum.LevelCounts[core.LogLevelInfo] != 3 || sum.LevelCounts[core.LogLevelWarn] != 1 || sum.LevelCounts[core.LogLevelError] != 1 {
		t.Errorf("level counts = %v", sum.LevelCounts)
	}
	if !sum.HasErrors {
		t.Error("HasErrors = false")
	}
	if len(sum.UniqueTasks) != 2 || sum.UniqueTasks[0] != "fcst" || sum.UniqueTasks[1] != "prep" {
		t.Errorf("unique tasks = %v", sum.UniqueTasks)
	}
	if sum.First == nil || sum.Last == nil || !sum.Last.After(*sum.First) {
		t.Errorf("first/last = %v/%v", sum.First, sum.Last)
	}
}

func TestApplyLogStatuses(t *testing.T) {
	wf, err := ParseWorkflow("wf.xml", []byte(`<workflow workflowid="w">
  <task name="prep"/>
  <task name="fcst" status="running"/>
</workflow>`))
	if err != nil {
		t.Fatal(err)
	}
	entries, _ := ParseLog("wf.log", []byte(sampleLog))

	out := ApplyLogStatuses(wf, entries)

	prep, _ := out.Task("prep")
	if prep.Status != core.TaskStatusSucceeded {
		t.Errorf("prep status = %s", prep.Status)
	}
	if prep.StartTime == nil || prep.EndTime == nil || prep.Duration().Minutes() != 5 {
		t.Errorf("prep times = %v - %v", prep.StartTime, prep.EndTime)
	}
	if prep.LastLogLine != "2024-01-01 00:10:00 INFO task=prep succeeded exit: 0" {
		t.Errorf("last log line = %q", prep.LastLogLine)
	}

	fcst, _ := out.Task("fcst")
	if fcst.Status != core.TaskStatusRunning {
		t.Errorf("explicit status overridden: %s", fcst.Status)
	}
	if fcst.LastLogLine == "" {
		t.Error("fcst last log line not set")
	}

	orig, _ := wf.Task("prep")
	if orig.Status != core.TaskStatusUnknown {
		t.Error("input workflow mutated")
	}
	if !ApplyLogStatuses(wf, entries).Equal(out) {
		t.Error("applying the same entries twice is not deterministic")
	}
}

func TestStatusTracker_MatchesFullHistory(t *testing.T) {
	wf, err := ParseWorkflow("wf.xml", []byte(`<workflow workflowid="w">
  <task name="prep"/>
  <task name="fcst"/>
</workflow>`))
	if err != nil {
		t.Fatal(err)
	}
	entries, _ := ParseLog("wf.log", []byte(sampleLog+
		"2024-01-01 00:30:00 INFO task=fcst submitted jobid=2\n"+
		"2024-01-01 00:31:00 INFO task=fcst running\n"+
		"2024-01-01 00:32:00 INFO task=fcst running\n"))

	var tr StatusTracker
	tr.Observe(entries[:3])
	tr.Observe(entries[3:])
	if tr.Len() != 2 {
		t.Fatalf("tracked tasks = %d, want 2", tr.Len())
	}

	kept := tr.Entries()
	if len(kept) >= len(entries) {
		t.Errorf("tracker kept %d of %d entries", len(kept), len(entries))
	}
	for i := 1; i < len(kept); i++ {
		if kept[i-1].LineNumber >= kept[i].LineNumber {
			t.Fatalf("entries out of file order: %d then %d", kept[i-1].LineNumber, kept[i].LineNumber)
		}
	}
	if !ApplyLogStatuses(wf, kept).Equal(ApplyLogStatuses(wf, entries)) {
		t.Error("tracked entries give a different workflow than the full log")
	}

	tr.Reset()
	if tr.Len() != 0 || len(tr.Entries()) != 0 {
		t.Error("Reset kept entries")
	}
}

func TestStatusTracker_SurvivesDroppedLines(t *testing.T) {
	wf, err := ParseWorkflow("wf.xml", []byte(`<workflow workflowid="w"><task name="prep"/><task name="fcst"/></workflow>`))
	if err != nil {
		t.Fatal(err)
	}
	entries, _ := ParseLog("wf.log", []byte(sampleLog))

	var tr StatusTracker
	tr.Observe(entries)

	// Only the last line would still be in a two-line display buffer.
	prep, _ := ApplyLogStatuses(wf, tr.Entries()).Task("prep")
	if prep.Status != core.TaskStatusSucceeded {
		t.Errorf("prep = %s, want SUCCEEDED", prep.Status)
	}
}
