package parser

import (
	"testing"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

func TestParseTasks_Fragment(t *testing.T) {
	data := `<task name="a" status="S"/><task name="b" status="R"><dependency><taskdep task="a"/></dependency></task>`
	tasks, err := ParseTasks([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks", len(tasks))
	}
	if tasks[0].Status != core.TaskStatusSucceeded || tasks[1].Status != core.TaskStatusRunning {
		t.Errorf("statuses = %s, %s", tasks[0].Status, tasks[1].Status)
	}
}

func TestParseTasks_LegacyFields(t *testing.T) {
	data := `<jobs>
  <taskdef taskname="legacy1">
    <status>Q</status>
    <var name="OUT">/tmp</var>
    <prereq><taskdep task="other"/></prereq>
  </taskdef>
  <jobdef>
    <jobid>legacy2</jobid>
    <jobname>nightly</jobname>
  </jobdef>
</jobs>`
	tasks, err := ParseTasks([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks", len(tasks))
	}

	first := tasks[0]
	if first.ID != "legacy1" || first.Status != core.TaskStatusPending {
		t.Errorf("first = %s/%s", first.ID, first.Status)
	}
	if !first.HasExplicitStatus() {
		t.Error("child <status> should count as explicit")
	}
	if len(first.Envars) != 1 || first.Envars[0].Name != "OUT" || first.Envars[0].Value != "/tmp" {
		t.Errorf("envars = %+v", first.Envars)
	}
	if len(first.DependsOn) != 1 || first.DependsOn[0] != "other" {
		t.Errorf("depends on = %v", first.DependsOn)
	}

	second := tasks[1]
	if second.ID != "legacy2" || second.Name != "nightly" {
		t.Errorf("second = %s/%s", second.ID, second.Name)
	}
}

func TestParseTasks_Malformed(t *testing.T) {
	if _, err := ParseTasks([]byte(`<task name="a">`)); !core.IsParseError(err) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}
