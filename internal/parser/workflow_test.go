package parser

import (
	"strings"
	"testing"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

const sampleWorkflow = `<?xml version="1.0"?>
<!DOCTYPE workflow [
  <!ENTITY EXPDIR "/home/user/exp">
  <!ENTITY CYCLES SYSTEM "cycles.xml">
]>
<workflow realtime="F" scheduler="slurm" workflowid="gfs" name="GFS Forecast">
  <description>Global forecast</description>
  <cycledef group="gdas">202401010000 202401020000 06:00:00</cycledef>
  <resources>
    <pool>
      <entry key="cores" value="4"/>
    </pool>
  </resources>
  <task name="prep" cycledefs="gdas" status="succeeded">
    <command>&EXPDIR;/prep.sh</command>
    <envar><name>PDY</name><value>20240101</value></envar>
  </task>
  <task name="fcst" status="running" start_time="2024-01-01T00:10:00Z">
    <command>&EXPDIR;/fcst.sh</command>
    <walltime>01:00:00</walltime>
    <dependency>
      <and>
        <taskdep task="prep"/>
        <datadep age="120">&EXPDIR;/input.nc</datadep>
      </and>
    </dependency>
  </task>
  <metatask name="post">
    <var name="grp">a b</var>
    <task name="post_#grp#">
      <command>post.sh #grp#</command>
      <dependency><taskdep task="fcst"/></dependency>
    </task>
  </metatask>
</workflow>
`

func TestParseWorkflow_Basic(t *testing.T) {
	wf, err := ParseWorkflow("/runs/gfs.xml", []byte(sampleWorkflow))
	if err != nil {
		t.Fatalf("ParseWorkflow: %v", err)
	}

	if wf.ID != "gfs" || wf.Name != "GFS Forecast" {
		t.Errorf("id/name = %q/%q", wf.ID, wf.Name)
	}
	if wf.Description != "Global forecast" {
		t.Errorf("description = %q", wf.Description)
	}
	if wf.Path != "/runs/gfs.xml" {
		t.Errorf("path = %q", wf.Path)
	}
	if len(wf.Cycles) != 1 || wf.Cycles[0].Group != "gdas" {
		t.Errorf("cycles = %+v", wf.Cycles)
	}
	if len(wf.Resources) != 1 || wf.Resources[0] != (core.Resource{Key: "cores", Value: "4"}) {
		t.Errorf("resources = %+v", wf.Resources)
	}

	ids := wf.TaskIDs()
	want := []string{"prep", "fcst", "post_a", "post_b"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Fatalf("task ids = %v, want %v", ids, want)
	}

	prep, _ := wf.Task("prep")
	if prep.Status != core.TaskStatusSucceeded {
		t.Errorf("prep status = %s", prep.Status)
	}
	if prep.Command != "/home/user/exp/prep.sh" {
		t.Errorf("entity not resolved: %q", prep.Command)
	}
	if len(prep.Envars) != 1 || prep.Envars[0] != (core.Envar{Name: "PDY", Value: "20240101"}) {
		t.Errorf("envars = %+v", prep.Envars)
	}

	fcst, _ := wf.Task("fcst")
	if fcst.Status != core.TaskStatusRunning {
		t.Errorf("fcst status = %s", fcst.Status)
	}
	if len(fcst.DependsOn) != 1 || fcst.DependsOn[0] != "prep" {
		t.Errorf("fcst depends on %v", fcst.DependsOn)
	}
	if fcst.Attributes["walltime"] != "01:00:00" {
		t.Errorf("walltime attribute = %q", fcst.Attributes["walltime"])
	}
	if fcst.StartTime == nil || fcst.StartTime.Hour() != 0 || fcst.StartTime.Minute() != 10 {
		t.Errorf("start time = %v", fcst.StartTime)
	}
	if len(fcst.Dependencies) != 1 || fcst.Dependencies[0].Type != "and" || len(fcst.Dependencies[0].Children) != 2 {
		t.Errorf("dependency tree = %+v", fcst.Dependencies)
	}

	postB, _ := wf.Task("post_b")
	if postB.Command != "post.sh b" {
		t.Errorf("metatask command = %q", postB.Command)
	}
	if postB.Status != core.TaskStatusUnknown {
		t.Errorf("task without status = %s, want UNKNOWN", postB.Status)
	}

	if wf.Status != core.TaskStatusRunning {
		t.Errorf("workflow status = %s, want RUNNING", wf.Status)
	}
}

func TestParseWorkflow_IDFallsBackToFileStem(t *testing.T) {
	wf, err := ParseWorkflow("/tmp/my_run.xml", []byte(`<workflow><task name="a"/></workflow>`))
	if err != nil {
		t.Fatalf("ParseWorkflow: %v", err)
	}
	if wf.ID != "my_run" || wf.Name != "my_run" {
		t.Errorf("id/name = %q/%q", wf.ID, wf.Name)
	}
}

func TestParseWorkflow_Idempotent(t *testing.T) {
	first, err := ParseWorkflow("gfs.xml", []byte(sampleWorkflow))
	if err != nil {
		t.Fatal(err)
	}
	second, err := ParseWorkflow("gfs.xml", []byte(sampleWorkflow))
	if err != nil {
		t.Fatal(err)
	}
	if !first.Equal(second) {
		t.Error("parsing identical bytes twice gave different workflows")
	}
	if !ValidateWorkflow(first) {
		t.Errorf("sample workflow invalid: %v", ValidationProblems(first))
	}
}

func TestParseWorkflow_Malformed(t *testing.T) {
	data := []byte(`<workflow><task name="a"><command>x</task></workflow>`)
	_, err := ParseWorkflow("bad.xml", data)
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *core.ParseError
	if !asParseError(err, &perr) {
		t.Fatalf("expected *core.ParseError, got %T", err)
	}
	if perr.Offset <= 0 {
		t.Errorf("offset = %d, want > 0", perr.Offset)
	}
	if perr.Source != "bad.xml" {
		t.Errorf("source = %q", perr.Source)
	}
}

func TestParseWorkflow_Truncated(t *testing.T) {
	data := []byte(sampleWorkflow[:len(sampleWorkflow)/2])
	_, err := ParseWorkflow("half.xml", data)
	if !core.IsParseError(err) {
		t.Fatalf("expected ParseError for truncated document, got %v", err)
	}
	if !core.IsRetryable(err) {
		t.Error("parse errors should be retryable on the next tick")
	}
}

func TestParseWorkflow_Empty(t *testing.T) {
	_, err := ParseWorkflow("empty.xml", []byte("  \n"))
	var perr *core.ParseError
	if !asParseError(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if perr.Reason != "empty document" || perr.Offset != 0 {
		t.Errorf("got %q at %d", perr.Reason, perr.Offset)
	}
}

func TestParseWorkflow_UndeclaredEntity(t *testing.T) {
	_, err := ParseWorkflow("x.xml", []byte(`<workflow><task name="a"><command>&NOPE;</command></task></workflow>`))
	if !core.IsParseError(err) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestParseWorkflow_NestedMetatask(t *testing.T) {
	data := `<workflow>
  <metatask name="outer">
    <var name="m">1 2</var>
    <metatask name="inner">
      <var name="f">x y z</var>
      <task name="t#m#_#f#"/>
    </metatask>
  </metatask>
</workflow>`
	wf, err := ParseWorkflow("meta.xml", []byte(data))
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(wf.TaskIDs(), ",")
	if got != "t1_x,t1_y,t1_z,t2_x,t2_y,t2_z" {
		t.Errorf("task ids = %s", got)
	}
}
