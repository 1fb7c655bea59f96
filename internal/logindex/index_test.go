package logindex

import (
	"context"
	"testing"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/parser"
)

const sampleLog = `2024-01-01 00:00:00 INFO task=prep submitted jobid=1
2024-01-01 00:05:00 INFO task=prep running
2024-01-01 00:10:00 INFO task=prep succeeded exit: 0
2024-01-01 00:11:00 WARN queue 100% full_ish
2024-01-01 00:20:00 ERROR task=fcst failed exit: 1
`

func openWithSample(t *testing.T) *Index {
	t.Helper()
	ix, err := Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })

	entries, _ := parser.ParseLog("/runs/a.log", []byte(sampleLog))
	if err := ix.Insert(context.Background(), entries); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	other, _ := parser.ParseLog("/runs/b.log", []byte("2024-01-02 00:00:00 ERROR task=post failed\n"))
	if err := ix.Insert(context.Background(), other); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return ix
}

func TestQuery(t *testing.T) {
	ix := openWithSample(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		source string
		filter parser.LogFilter
		limit  int
		want   int
	}{
		{"all", "", parser.LogFilter{}, 0, 6},
		{"one source", "/runs/a.log", parser.LogFilter{}, 0, 5},
		{"level any case", "", parser.LogFilter{Level: "error"}, 0, 2},
		{"task", "/runs/a.log", parser.LogFilter{TaskID: "prep"}, 0, 3},
		{"status", "", parser.LogFilter{Status: core.TaskStatusFailed}, 0, 2},
		{"search literal percent", "", parser.LogFilter{Search: "100%"}, 0, 1},
		{"search underscore is literal", "", parser.LogFilter{Search: "l_i"}, 0, 1},
		{"limit keeps newest", "/runs/a.log", parser.LogFilter{}, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ix.Query(ctx, tt.source, tt.filter, tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestQuery_RoundTripsFields(t *testing.T) {
	ix := openWithSample(t)
	got, err := ix.Query(context.Background(), "/runs/a.log", parser.LogFilter{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].LineNumber != 4 || got[1].LineNumber != 5 {
		t.Fatalf("limit did not keep newest in order: %d, %d", got[0].LineNumber, got[1].LineNumber)
	}
	e := got[1]
	if e.TaskID != "fcst" || e.Status != core.TaskStatusFailed || e.Level != core.LogLevelError {
		t.Errorf("entry = %+v", e)
	}
	if e.ExitCode == nil || *e.ExitCode != 1 {
		t.Errorf("exit code = %v", e.ExitCode)
	}
	if e.Timestamp == nil || e.Timestamp.Minute() != 20 {
		t.Errorf("timestamp = %v", e.Timestamp)
	}
	if got[0].ExitCode != nil {
		t.Error("missing exit code should stay nil")
	}
}

func TestSummary(t *testing.T) {
	ix := openWithSample(t)
	ctx := context.Background()

	sum, err := ix.Summary(ctx, "/runs/a.log")
	if err != nil {
		t.Fatal(err)
	}
	want := parser.SummarizeLogs(mustParse(t, "/runs/a.log", sampleLog))
	if sum.Total != want.Total || !sum.HasErrors {
		t.Errorf("summary = %+v", sum)
	}
	for level, n := range want.LevelCounts {
		if sum.LevelCounts[level] != n {
			t.Errorf("level %s = %d, want %d", level, sum.LevelCounts[level], n)
		}
	}
	if len(sum.UniqueTasks) != 2 || sum.UniqueTasks[0] != "fcst" {
		t.Errorf("tasks = %v", sum.UniqueTasks)
	}
	if sum.First == nil || !sum.First.Equal(*want.First) || !sum.Last.Equal(*want.Last) {
		t.Errorf("range = %v - %v", sum.First, sum.Last)
	}

	all, err := ix.Summary(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if all.Total != 6 || len(all.UniqueTasks) != 3 {
		t.Errorf("all summary = %+v", all)
	}
}

func TestResetAndTrim(t *testing.T) {
	ix := openWithSample(t)
	ctx := context.Background()

	if err := ix.Trim(ctx, "/runs/a.log", 2); err != nil {
		t.Fatal(err)
	}
	got, _ := ix.Query(ctx, "/runs/a.log", parser.LogFilter{}, 0)
	if len(got) != 2 || got[0].LineNumber != 4 {
		t.Errorf("trim kept %d entries", len(got))
	}

	if err := ix.Reset(ctx, "/runs/a.log"); err != nil {
		t.Fatal(err)
	}
	if n, _ := ix.Count(ctx); n != 1 {
		t.Errorf("count after reset = %d, want 1", n)
	}
	if err := ix.Reset(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if n, _ := ix.Count(ctx); n != 0 {
		t.Errorf("count after full reset = %d", n)
	}
}

func TestClose(t *testing.T) {
	ix, err := Open()
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ix.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := ix.Query(context.Background(), "", parser.LogFilter{}, 0); err == nil {
		t.Error("query after close should fail")
	}
}

func mustParse(t *testing.T, source, data string) []core.LogEntry {
	t.Helper()
	entries, pending := parser.ParseLog(source, []byte(data))
	if pending != "" {
		t.Fatalf("unexpected pending %q", pending)
	}
	return entries
}
