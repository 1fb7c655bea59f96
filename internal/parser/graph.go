package parser

import (
	"slices"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

// TaskGraph is the dependency graph of a workflow's tasks, built from taskdep
// references. Self references and references to unknown tasks are left out;
// ValidationProblems reports those separately. Iteration follows definition
// order so results are stable across parses.
type TaskGraph struct {
	ids     []string
	known   map[string]bool
	edges   map[string][]string // task -> dependencies
	reverse map[string][]string // task -> dependents
}

// NewTaskGraph builds the graph of wf.
func NewTaskGraph(wf *core.Workflow) *TaskGraph {
	g := &TaskGraph{
		known:   make(map[string]bool, len(wf.Tasks)),
		edges:   make(map[string][]string, len(wf.Tasks)),
		reverse: make(map[string][]string, len(wf.Tasks)),
	}
	for i := range wf.Tasks {
		id := wf.Tasks[i].ID
		if id == "" || g.known[id] {
			continue
		}
		g.known[id] = true
		g.ids = append(g.ids, id)
	}
	for i := range wf.Tasks {
		t := &wf.Tasks[i]
		for _, dep := range t.DependsOn {
			if dep == t.ID || !g.known[dep] || slices.Contains(g.edges[t.ID], dep) {
				continue
			}
			g.edges[t.ID] = append(g.edges[t.ID], dep)
			g.reverse[dep] = append(g.reverse[dep], t.ID)
		}
	}
	return g
}

// Dependencies returns the tasks id depends on.
func (g *TaskGraph) Dependencies(id string) []string {
	return slices.Clone(g.edges[id])
}

// Dependents returns the tasks that depend on id.
func (g *TaskGraph) Dependents(id string) []string {
	return slices.Clone(g.reverse[id])
}

// Cycle returns one dependency cycle as a path that starts and ends with the
// same task, or nil when the graph is acyclic.
func (g *TaskGraph) Cycle() []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.ids))
	var stack []string

	var dfs func(id string) []string
	dfs = func(id string) []string {
		state[id] = active
		stack = append(stack, id)
		for _, dep := range g.edges[id] {
			switch state[dep] {
			case active:
				start := slices.Index(stack, dep)
				return append(slices.Clone(stack[start:]), dep)
			case unvisited:
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range g.ids {
		if state[id] == unvisited {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Levels groups tasks by dependency depth: level 0 has no dependencies and
// every task sits one level above its deepest dependency. It fails with a
// validation error when the graph has a cycle.
func (g *TaskGraph) Levels() ([][]string, error) {
	if g.Cycle() != nil {
		return nil, core.ErrValidation(core.CodeDependencyCycle, "task dependency graph contains a cycle")
	}

	depth := make(map[string]int, len(g.ids))
	var visit func(id string) int
	visit = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		for _, dep := range g.edges[id] {
			d = max(d, visit(dep)+1)
		}
		depth[id] = d
		return d
	}

	var levels [][]string
	for _, id := range g.ids {
		d := visit(id)
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], id)
	}
	return levels, nil
}

// Order returns the tasks in dependency order, level by level.
func (g *TaskGraph) Order() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(g.ids))
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}

// Ready returns the tasks of wf that have not started and whose dependencies
// have all succeeded.
func (g *TaskGraph) Ready(wf *core.Workflow) []string {
	status := make(map[string]core.TaskStatus, len(wf.Tasks))
	for i := range wf.Tasks {
		status[wf.Tasks[i].ID] = wf.Tasks[i].Status
	}

	var ready []string
	for _, id := range g.ids {
		if s := status[id]; s != core.TaskStatusPending && s != core.TaskStatusUnknown {
			continue
		}
		ok := true
		for _, dep := range g.edges[id] {
			if status[dep] != core.TaskStatusSucceeded {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}
