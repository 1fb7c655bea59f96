package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/parser"
)

var (
	parseFormat  string
	parseExtract string
	parseOutput  string
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE...",
	Short: "Parse workflow or log files and print the result",
	Long: `Parse Rocoto workflow XML files or workflow logs and print the parsed
structure.

Files are classified by extension: .xml and .workflow are workflows, .log,
.out and .err (or a name containing "log") are logs. --extract narrows a
workflow to one section.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "text", "output format (json, yaml, text)")
	parseCmd.Flags().StringVarP(&parseExtract, "extract", "e", "", "extract one section (tasks, cycles, resources, dependencies)")
	parseCmd.Flags().StringVarP(&parseOutput, "output", "o", "", "write output to file instead of stdout")
}

// parsedFile is the result of parsing one file.
type parsedFile struct {
	Path     string             `json:"path" yaml:"path"`
	Kind     core.ParserKind    `json:"kind" yaml:"kind"`
	Workflow *core.Workflow     `json:"workflow,omitempty" yaml:"workflow,omitempty"`
	Problems []string           `json:"problems,omitempty" yaml:"problems,omitempty"`
	Entries  []core.LogEntry    `json:"entries,omitempty" yaml:"entries,omitempty"`
	Summary  *parser.LogSummary `json:"summary,omitempty" yaml:"summary,omitempty"`
	Capped   bool               `json:"capped,omitempty" yaml:"capped,omitempty"`
}

var extractions = []string{"tasks", "cycles", "resources", "dependencies"}

func runParse(cmd *cobra.Command, args []string) error {
	switch parseFormat {
	case "json", "yaml", "text":
	default:
		return fmt.Errorf("invalid format %q (valid: json, yaml, text)", parseFormat)
	}
	if parseExtract != "" && !slices.Contains(extractions, parseExtract) {
		return fmt.Errorf("invalid extract %q (valid: %s)", parseExtract, strings.Join(extractions, ", "))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	results := make([]parsedFile, len(args))
	g, _ := errgroup.WithContext(cmd.Context())
	for i, path := range args {
		g.Go(func() error {
			res, err := parseFile(path, cfg.Monitor.MaxFileSize, cfg.Display.MaxLogLines)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out, closeOut, err := openOutput(parseOutput, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	defer func() { _ = closeOut() }()

	var payload any = results
	if len(results) == 1 {
		payload = results[0]
	}
	if parseExtract != "" {
		extracted := make([]any, len(results))
		for i, res := range results {
			if res.Workflow == nil {
				return fmt.Errorf("%s: --extract applies to workflow files only", res.Path)
			}
			extracted[i] = extract(res.Workflow, parseExtract)
		}
		payload = extracted
		if len(extracted) == 1 {
			payload = extracted[0]
		}
	}

	switch parseFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(payload)
	default:
		for i, res := range results {
			if i > 0 {
				fmt.Fprintln(out)
			}
			if err := writeParsedText(out, res, parseExtract); err != nil {
				return err
			}
		}
		return nil
	}
}

func parseFile(path string, maxSize int64, maxLines int) (parsedFile, error) {
	data, capped, err := readFile(path, maxSize, maxLines)
	if err != nil {
		return parsedFile{}, err
	}
	res := parsedFile{Path: path, Kind: core.KindForPath(path, ""), Capped: capped}
	if res.Kind == core.KindLog {
		entries, _ := parser.ParseLog(path, data)
		sum := parser.SummarizeLogs(entries)
		res.Entries = entries
		res.Summary = &sum
		return res, nil
	}
	wf, err := parser.ParseWorkflow(path, data)
	if err != nil {
		return parsedFile{}, err
	}
	res.Workflow = wf
	res.Problems = parser.ValidationProblems(wf)
	return res, nil
}

// taskDependencies is the "dependencies" extraction of one task.
type taskDependencies struct {
	Task       string            `json:"task" yaml:"task"`
	Level      int               `json:"level" yaml:"level"`
	DependsOn  []string          `json:"depends_on" yaml:"depends_on"`
	Dependents []string          `json:"dependents,omitempty" yaml:"dependents,omitempty"`
	Tree       []core.Dependency `json:"tree,omitempty" yaml:"tree,omitempty"`
}

func extract(wf *core.Workflow, section string) any {
	switch section {
	case "tasks":
		return wf.Tasks
	case "cycles":
		return wf.Cycles
	case "resources":
		return wf.Resources
	default:
		return dependencyReport(wf)
	}
}

// dependencyReport lists each task with its graph level. Levels are -1 when
// the graph has a cycle.
func dependencyReport(wf *core.Workflow) []taskDependencies {
	g := parser.NewTaskGraph(wf)
	level := make(map[string]int, len(wf.Tasks))
	levels, err := g.Levels()
	for i, ids := range levels {
		for _, id := range ids {
			level[id] = i
		}
	}

	deps := make([]taskDependencies, 0, len(wf.Tasks))
	for _, t := range wf.Tasks {
		d := taskDependencies{
			Task:       t.ID,
			Level:      level[t.ID],
			DependsOn:  t.DependsOn,
			Dependents: g.Dependents(t.ID),
			Tree:       t.Dependencies,
		}
		if err != nil {
			d.Level = -1
		}
		deps = append(deps, d)
	}
	return deps
}

func writeParsedText(w io.Writer, res parsedFile, section string) error {
	if res.Summary != nil {
		if res.Capped {
			fmt.Fprintf(w, "Note: %s exceeds the size limit, only its last lines were read\n", res.Path)
		}
		return writeLogSummaryText(w, res.Path, *res.Summary)
	}
	wf := res.Workflow
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if section == "" {
		fmt.Fprintf(tw, "Workflow:\t%s (%s)\n", wf.Name, wf.ID)
		fmt.Fprintf(tw, "Path:\t%s\n", wf.Path)
		fmt.Fprintf(tw, "Status:\t%s\n", wf.Status)
		fmt.Fprintf(tw, "Tasks:\t%d\n", len(wf.Tasks))
		fmt.Fprintf(tw, "Cycles:\t%d\n", len(wf.Cycles))
		for _, p := range res.Problems {
			fmt.Fprintf(tw, "Problem:\t%s\n", p)
		}
		fmt.Fprintln(tw)
		section = "tasks"
	}

	switch section {
	case "tasks":
		fmt.Fprintln(tw, "ID\tSTATUS\tCYCLEDEFS\tDEPENDS ON")
		for _, t := range wf.Tasks {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Status, dash(t.Cycledefs), dash(strings.Join(t.DependsOn, ", ")))
		}
	case "cycles":
		fmt.Fprintln(tw, "GROUP\tSPEC")
		for _, c := range wf.Cycles {
			fmt.Fprintf(tw, "%s\t%s\n", dash(c.Group), c.Spec)
		}
	case "resources":
		fmt.Fprintln(tw, "KEY\tVALUE")
		for _, r := range wf.Resources {
			fmt.Fprintf(tw, "%s\t%s\n", r.Key, r.Value)
		}
	case "dependencies":
		fmt.Fprintln(tw, "TASK\tLEVEL\tDEPENDS ON\tNEEDED BY")
		for _, d := range dependencyReport(wf) {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", d.Task, d.Level,
				dash(strings.Join(d.DependsOn, ", ")), dash(strings.Join(d.Dependents, ", ")))
		}
	}
	return tw.Flush()
}

func writeLogSummaryText(w io.Writer, path string, sum parser.LogSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Log:\t%s\n", path)
	fmt.Fprintf(tw, "Entries:\t%d\n", sum.Total)
	for _, level := range []string{core.LogLevelError, core.LogLevelWarn, core.LogLevelInfo, core.LogLevelDebug} {
		if n := sum.LevelCounts[level]; n > 0 {
			fmt.Fprintf(tw, "%s:\t%d\n", level, n)
		}
	}
	fmt.Fprintf(tw, "Tasks:\t%s\n", dash(strings.Join(sum.UniqueTasks, ", ")))
	if sum.First != nil && sum.Last != nil {
		fmt.Fprintf(tw, "Span:\t%s .. %s\n", sum.First.Format("2006-01-02 15:04:05"), sum.Last.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
