package parser

import (
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

// ValidationProblems lists every consistency problem found in wf. Forward
// references are fine; a reference is only a problem when no task in the
// workflow carries that id.
func ValidationProblems(wf *core.Workflow) []string {
	if wf == nil {
		return []string{"workflow is nil"}
	}

	var problems []string
	ids := make(map[string]int, len(wf.Tasks))
	for i := range wf.Tasks {
		id := wf.Tasks[i].ID
		if id == "" {
			problems = append(problems, fmt.Sprintf("task #%d has an empty id", i+1))
			continue
		}
		ids[id]++
		if ids[id] == 2 {
			problems = append(problems, fmt.Sprintf("duplicate task id %q", id))
		}
	}

	for i := range wf.Tasks {
		t := &wf.Tasks[i]
		for _, ref := range t.DependsOn {
			switch {
			case ref == t.ID:
				problems = append(problems, fmt.Sprintf("task %q depends on itself", t.ID))
			case ids[ref] == 0:
				problems = append(problems, fmt.Sprintf("task %q depends on unknown task %q", t.ID, ref))
			}
		}
	}

	if cycle := NewTaskGraph(wf).Cycle(); cycle != nil {
		problems = append(problems, "dependency cycle: "+strings.Join(cycle, " -> "))
	}
	return problems
}

// ValidateWorkflow reports whether wf passes every consistency check. It
// never fails loudly; use ValidationProblems for the details.
func ValidateWorkflow(wf *core.Workflow) bool {
	return len(ValidationProblems(wf)) == 0
}

// Validate is the commit hook used by the state manager. It returns a
// validation DomainError listing every problem, or nil.
func Validate(wf *core.Workflow) error {
	problems := ValidationProblems(wf)
	if len(problems) == 0 {
		return nil
	}
	return core.ErrValidation(core.CodeInvalidWorkflow, strings.Join(problems, "; ")).
		WithDetail("problems", problems)
}
