package parser

import (
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

func TestParseLogLine_RocotoFormat(t *testing.T) {
	line := "2024-01-01 00:15:00 +0000 :: hera :: Task fcst, jobid=123456, in state SUCCEEDED (COMPLETED), ran for 300.0 seconds, exit status=0, try=1 (of 2), and cycle=202401010000"
	e := ParseLogLine(line, 7)

	if e.Timestamp == nil || !e.Timestamp.Equal(time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", e.Timestamp)
	}
	if e.TaskID != "fcst" {
		t.Errorf("task = %q", e.TaskID)
	}
	if e.JobID != "123456" {
		t.Errorf("jobid = %q", e.JobID)
	}
	if e.Cycle != "202401010000" {
		t.Errorf("cycle = %q", e.Cycle)
	}
	if e.ExitCode == nil || *e.ExitCode != 0 {
		t.Errorf("exit code = %v", e.ExitCode)
	}
	if e.Status != core.TaskStatusSucceeded {
		t.Errorf("status = %s", e.Status)
	}
	if e.Level != core.LogLevelInfo {
		t.Errorf("level = %s", e.Level)
	}
	if e.LineNumber != 7 || e.Raw != line {
		t.Errorf("line number/raw not kept")
	}
	if e.Message == line || e.Message[0] == ' ' {
		t.Errorf("timestamp not stripped from message: %q", e.Message)
	}
}

func TestParseLogLine_KeyValueFormat(t *testing.T) {
	e := ParseLogLine("2024-01-01 06:00:00 ERROR task=post_a cycle=2024010106 failed exit: 3", 1)
	if e.Level != core.LogLevelError {
		t.Errorf("level = %s", e.Level)
	}
	if e.TaskID != "post_a" || e.Cycle != "2024010106" {
		t.Errorf("task/cycle = %q/%q", e.TaskID, e.Cycle)
	}
	if e.Status != core.TaskStatusFailed {
		t.Errorf("status = %s", e.Status)
	}
	if e.ExitCode == nil || *e.ExitCode != 3 {
		t.Errorf("exit = %v", e.ExitCode)
	}
}

func TestParseLogLine_SubmissionIsPending(t *testing.T) {
	e := ParseLogLine("2024-01-01 00:00:01 :: hera :: Submission of prep succeeded, jobid=42", 1)
	if e.TaskID != "prep" {
		t.Errorf("task = %q", e.TaskID)
	}
	if e.Status != core.TaskStatusPending {
		t.Errorf("status = %s, want PENDING", e.Status)
	}
}

func TestParseLogLine_LegacyFormats(t *testing.T) {
	tests := []struct {
		line  string
		want  time.Time
		level string
	}{
		{"2024-02-03T04:05:06 WARN slow queue", time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC), core.LogLevelWarn},
		{"Feb 03 04:05:06 2024 TASK NAME=prep FAIL", time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC), core.LogLevelError},
		{"2024-02-03 04:05:06 DEBUG polling", time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC), core.LogLevelDebug},
	}
	for _, tt := range tests {
		e := ParseLogLine(tt.line, 1)
		if e.Timestamp == nil || !e.Timestamp.Equal(tt.want) {
			t.Errorf("%q: timestamp = %v", tt.line, e.Timestamp)
		}
		if e.Level != tt.level {
			t.Errorf("%q: level = %s, want %s", tt.line, e.Level, tt.level)
		}
	}
}

func TestParseLogLine_Unrecognised(t *testing.T) {
	e := ParseLogLine("just some text\r\n", 3)
	if e.Timestamp != nil || e.TaskID != "" || e.Status != "" {
		t.Errorf("unexpected fields %+v", e)
	}
	if e.Message != "just some text" || e.Raw != "just some text" {
		t.Errorf("message/raw = %q/%q", e.Message, e.Raw)
	}
}

func TestParseLog_WithholdsPartialLine(t *testing.T) {
	data := []byte("2024-01-01 00:00:00 task=a running\n\n2024-01-01 00:01:00 task=a succ")
	entries, pending := ParseLog("wf.log", data)

	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Source != "wf.log" || entries[0].LineNumber != 1 {
		t.Errorf("entry = %+v", entries[0])
	}
	if pending != "2024-01-01 00:01:00 task=a succ" {
		t.Errorf("pending = %q", pending)
	}
}

func TestLineBuffer(t *testing.T) {
	var b LineBuffer

	if lines := b.Write([]byte("first li")); len(lines) != 0 {
		t.Fatalf("partial line returned early: %q", lines)
	}
	if b.Pending() != "first li" {
		t.Errorf("pending = %q", b.Pending())
	}

	lines := b.Write([]byte("ne\r\nsecond\nthi"))
	if len(lines) != 2 || lines[0] != "first line" || lines[1] != "second" {
		t.Errorf("lines = %q", lines)
	}
	if b.Pending() != "thi" {
		t.Errorf("pending = %q", b.Pending())
	}

	b.Reset()
	if lines := b.Write([]byte("fresh\n")); len(lines) != 1 || lines[0] != "fresh" {
		t.Errorf("after reset lines = %q", lines)
	}
	if b.Pending() != "" {
		t.Errorf("pending after complete line = %q", b.Pending())
	}
}
