// Package parser turns raw workflow definition and log bytes into core
// records. Every function here is pure: identical input bytes always yield
// structurally equal output and nothing touches shared state.
package parser

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

// ParseWorkflow parses a Rocoto workflow document. source is the file path
// and is used for the fallback id and in error messages. Malformed input
// yields a *core.ParseError carrying the decoder offset.
func ParseWorkflow(source string, data []byte) (*core.Workflow, error) {
	roots, err := parseTree(source, data)
	if err != nil {
		return nil, err
	}
	root := roots[0]

	wf := &core.Workflow{
		Path:     source,
		ParsedAt: time.Now(),
	}
	wf.ID = root.attr("workflowid")
	if wf.ID == "" {
		wf.ID = workflowStem(source)
	}
	wf.Name = root.attr("name")
	if wf.Name == "" {
		wf.Name = wf.ID
	}
	wf.Description = root.childText("description")

	for _, c := range root.children {
		switch c.name {
		case "cycledef":
			wf.Cycles = append(wf.Cycles, core.Cycle{
				Group: c.attr("group"),
				Spec:  strings.TrimSpace(c.text),
			})
		case "resources":
			wf.Resources = append(wf.Resources, resourcesFromElement(c)...)
		}
	}

	wf.Tasks = collectTasks(root, nil)
	wf.RecomputeStatus()
	return wf, nil
}

func workflowStem(source string) string {
	base := filepath.Base(source)
	if base == "." || base == string(filepath.Separator) {
		return "workflow"
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func resourcesFromElement(el *element) []core.Resource {
	var out []core.Resource
	for _, pool := range el.children {
		if pool.name != "pool" {
			continue
		}
		for _, entry := range pool.children {
			if entry.name != "entry" {
				continue
			}
			key := entry.attr("key")
			if key == "" {
				key = entry.childText("key")
			}
			value := entry.attr("value")
			if value == "" {
				value = entry.childText("value")
			}
			out = append(out, core.Resource{Key: key, Value: value})
		}
	}
	return out
}
