package parser

import (
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

// Element names that hold a single task definition. taskdef, job and jobdef
// are legacy spellings.
var taskElements = map[string]bool{
	"task":    true,
	"taskdef": true,
	"job":     true,
	"jobdef":  true,
}

// Child elements that describe a task's dependency tree.
var dependencyElements = map[string]bool{
	"dependency": true,
	"depends":    true,
	"prereq":     true,
}

// Child elements consumed structurally and not copied into Attributes.
var structuralElements = map[string]bool{
	"command":    true,
	"envar":      true,
	"var":        true,
	"dependency": true,
	"depends":    true,
	"prereq":     true,
}

// ParseTasks extracts tasks from a workflow document or a fragment holding
// one or more task elements. Legacy field names are mapped onto the current
// ones.
func ParseTasks(data []byte) ([]core.Task, error) {
	roots, err := parseTree("", data)
	if err != nil {
		return nil, err
	}
	var tasks []core.Task
	for _, root := range roots {
		tasks = collectTasks(root, tasks)
	}
	return tasks, nil
}

// collectTasks walks el and appends every task it defines, expanding
// metatasks along the way.
func collectTasks(el *element, tasks []core.Task) []core.Task {
	switch {
	case taskElements[el.name]:
		return append(tasks, taskFromElement(el))
	case el.name == "metatask":
		for _, expanded := range expandMetatask(el) {
			tasks = collectTasks(expanded, tasks)
		}
		return tasks
	case dependencyElements[el.name]:
		return tasks
	}
	for _, c := range el.children {
		tasks = collectTasks(c, tasks)
	}
	return tasks
}

// expandMetatask returns one copy of the metatask body per <var> value,
// with #name# placeholders substituted. Vars with differing value counts
// are truncated to the shortest list.
func expandMetatask(meta *element) []*element {
	type variable struct {
		name   string
		values []string
	}
	var vars []variable
	var body []*element
	for _, c := range meta.children {
		if c.name == "var" {
			vars = append(vars, variable{name: c.attr("name"), values: strings.Fields(c.text)})
			continue
		}
		body = append(body, c)
	}
	if len(vars) == 0 {
		return body
	}

	n := len(vars[0].values)
	for _, v := range vars[1:] {
		n = min(n, len(v.values))
	}

	var out []*element
	for i := 0; i < n; i++ {
		pairs := make([]string, 0, len(vars)*2)
		for _, v := range vars {
			pairs = append(pairs, "#"+v.name+"#", v.values[i])
		}
		r := strings.NewReplacer(pairs...)
		for _, c := range body {
			out = append(out, c.expand(r))
		}
	}
	return out
}

func taskFromElement(el *element) core.Task {
	task := core.Task{
		Attributes: make(map[string]string, len(el.attrs)),
		Status:     core.TaskStatusUnknown,
	}
	for k, v := range el.attrs {
		task.Attributes[k] = v
	}

	task.ID = el.attr("name", "id", "taskname", "jobname", "taskid", "jobid")
	if task.ID == "" {
		task.ID = el.childText("taskname", "taskid", "jobid", "jobname")
	}
	task.Name = el.childText("jobname")
	if task.Name == "" {
		task.Name = task.ID
	}
	task.Cycledefs = el.attr("cycledefs")

	for _, c := range el.children {
		switch {
		case c.name == "command":
			task.Command = strings.TrimSpace(c.text)
		case c.name == "envar":
			task.Envars = append(task.Envars, envarFromElement(c))
		case c.name == "var":
			task.Envars = append(task.Envars, core.Envar{
				Name:  c.attr("name"),
				Value: strings.TrimSpace(c.text),
			})
		case dependencyElements[c.name]:
			for _, d := range c.children {
				task.Dependencies = append(task.Dependencies, dependencyFromElement(d))
			}
			if len(c.children) == 0 && strings.TrimSpace(c.text) != "" {
				task.Dependencies = append(task.Dependencies, dependencyFromElement(c))
			}
		case !structuralElements[c.name]:
			if text := strings.TrimSpace(c.text); text != "" {
				task.Attributes[c.name] = text
			}
		}
	}

	if raw, ok := task.Attributes["status"]; ok {
		task.Status = core.ParseTaskStatus(raw)
	}
	task.StartTime = parseTime(task.Attributes["start_time"])
	task.EndTime = parseTime(task.Attributes["end_time"])
	task.DependsOn = dependsOn(task.Dependencies)
	return task
}

func envarFromElement(el *element) core.Envar {
	name := el.attr("name")
	if name == "" {
		name = el.childText("name")
	}
	value := el.attr("value")
	if value == "" {
		value = el.childText("value")
	}
	if value == "" && len(el.children) == 0 {
		value = strings.TrimSpace(el.text)
	}
	return core.Envar{Name: name, Value: value}
}

func dependencyFromElement(el *element) core.Dependency {
	dep := core.Dependency{
		Type: el.name,
		Text: strings.TrimSpace(el.text),
	}
	if len(el.attrs) > 0 {
		dep.Attributes = make(map[string]string, len(el.attrs))
		for k, v := range el.attrs {
			dep.Attributes[k] = v
		}
	}
	for _, c := range el.children {
		dep.Children = append(dep.Children, dependencyFromElement(c))
	}
	return dep
}

// dependsOn flattens taskdep references, keeping first-seen order.
func dependsOn(deps []core.Dependency) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, d := range deps {
		for _, ref := range d.TaskRefs() {
			if !seen[ref] {
				seen[ref] = true
				ids = append(ids, ref)
			}
		}
	}
	return ids
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
