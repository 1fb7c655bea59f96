package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/parser"
)

var (
	statsFormat string
	statsLogs   []string
)

var statsCmd = &cobra.Command{
	Use:   "stats [WORKFLOW...]",
	Short: "Show task status counts and log summaries",
	Long: `Load workflows and their logs once and report per-status task counts,
dependency counts, the task timeline and a summary of each paired log
(entries per level, tasks mentioned, time span).

Markdown output is rendered for the terminal when stdout is a TTY.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVarP(&statsFormat, "format", "f", "text", "output format (text, json, markdown)")
	statsCmd.Flags().StringArrayVarP(&statsLogs, "log", "l", nil, "workflow log file (repeatable)")
}

// workflowStats is the report for one workflow.
type workflowStats struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Path         string                  `json:"path"`
	Status       core.TaskStatus         `json:"status"`
	Tasks        int                     `json:"tasks"`
	Dependencies int                     `json:"dependencies"`
	StatusCounts map[core.TaskStatus]int `json:"status_counts"`
	Timeline     core.Timeline           `json:"timeline"`
	Logs         []logStats              `json:"logs,omitempty"`
}

type logStats struct {
	Path string `json:"path"`
	parser.LogSummary
}

// statusOrder fixes the column order of status counts.
var statusOrder = []core.TaskStatus{
	core.TaskStatusSucceeded,
	core.TaskStatusRunning,
	core.TaskStatusPending,
	core.TaskStatusFailed,
	core.TaskStatusDead,
	core.TaskStatusUnknown,
}

func runStats(cmd *cobra.Command, args []string) error {
	switch statsFormat {
	case "text", "json", "markdown":
	default:
		return fmt.Errorf("invalid format %q (valid: text, json, markdown)", statsFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sources := workflowSources(cfg, args, statsLogs)
	if len(sources) == 0 {
		return errors.New("no workflows: pass workflow files or list workflows in the config")
	}
	for i := range sources {
		sources[i].Monitor = false
	}

	logger, err := newLogger(cfg, false)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	v, err := newViewer(cfg, logger)
	if err != nil {
		_ = logger.Close()
		return err
	}
	defer v.Close()

	ctx := cmd.Context()
	loadErr := v.register(ctx, sources)

	var report []workflowStats
	for _, wf := range v.state.Workflows() {
		ws := workflowStats{
			ID:           wf.ID,
			Name:         wf.Name,
			Path:         wf.Path,
			Status:       wf.Status,
			Tasks:        len(wf.Tasks),
			Dependencies: wf.DependencyCount(),
			StatusCounts: wf.StatusCounts(),
			Timeline:     wf.Timeline(),
		}
		for _, logPath := range v.sync.LogPathsFor(wf.Path) {
			sum, err := v.index.Summary(ctx, logPath)
			if err != nil {
				return fmt.Errorf("summarizing %s: %w", logPath, err)
			}
			ws.Logs = append(ws.Logs, logStats{Path: logPath, LogSummary: sum})
		}
		report = append(report, ws)
	}

	out := cmd.OutOrStdout()
	switch statsFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	case "markdown":
		md := statsMarkdown(report)
		if isTerminal(out) {
			rendered, err := renderMarkdown(md)
			if err == nil {
				md = rendered
			}
		}
		if _, err := io.WriteString(out, md); err != nil {
			return err
		}
	default:
		if err := writeStatsText(out, report); err != nil {
			return err
		}
	}
	return loadErr
}

func writeStatsText(w io.Writer, report []workflowStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"WORKFLOW", "STATUS", "TASKS", "DEPS"}
	for _, s := range statusOrder {
		header = append(header, string(s))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, ws := range report {
		row := []string{ws.Name, string(ws.Status), fmt.Sprint(ws.Tasks), fmt.Sprint(ws.Dependencies)}
		for _, s := range statusOrder {
			row = append(row, fmt.Sprint(ws.StatusCounts[s]))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, ws := range report {
		if line := timelineText(ws.Timeline); line != "" {
			fmt.Fprintf(w, "\nTimeline %s: %s\n", ws.Name, line)
		}
	}

	for _, ws := range report {
		for _, ls := range ws.Logs {
			fmt.Fprintln(w)
			if err := writeLogSummaryText(w, ls.Path, ls.LogSummary); err != nil {
				return err
			}
		}
	}
	return nil
}

func statsMarkdown(report []workflowStats) string {
	var b strings.Builder
	b.WriteString("# Workflow statistics\n")
	for _, ws := range report {
		fmt.Fprintf(&b, "\n## %s\n\n", ws.Name)
		fmt.Fprintf(&b, "- **ID:** `%s`\n", ws.ID)
		fmt.Fprintf(&b, "- **Path:** `%s`\n", ws.Path)
		fmt.Fprintf(&b, "- **Status:** %s\n", ws.Status)
		fmt.Fprintf(&b, "- **Tasks:** %d\n", ws.Tasks)
		fmt.Fprintf(&b, "- **Dependencies:** %d\n", ws.Dependencies)
		if line := timelineText(ws.Timeline); line != "" {
			fmt.Fprintf(&b, "- **Timeline:** %s\n", line)
		}
		b.WriteString("\n")

		b.WriteString("| Status | Count |\n|---|---|\n")
		for _, s := range statusOrder {
			if n := ws.StatusCounts[s]; n > 0 {
				fmt.Fprintf(&b, "| %s | %d |\n", s, n)
			}
		}

		for _, ls := range ws.Logs {
			fmt.Fprintf(&b, "\n### Log `%s`\n\n", ls.Path)
			fmt.Fprintf(&b, "%d entries", ls.Total)
			if ls.HasErrors {
				fmt.Fprintf(&b, ", **%d errors**", ls.LevelCounts[core.LogLevelError])
			}
			b.WriteString("\n")
			if len(ls.UniqueTasks) > 0 {
				fmt.Fprintf(&b, "\nTasks: %s\n", strings.Join(ls.UniqueTasks, ", "))
			}
		}
	}
	return b.String()
}

// timelineText formats a timeline as "start .. end (duration)", leaving out
// the parts that are unknown.
func timelineText(tl core.Timeline) string {
	const layout = "2006-01-02 15:04:05"
	if tl.EarliestStart == nil && tl.LatestEnd == nil {
		return ""
	}
	start, end := "?", "?"
	if tl.EarliestStart != nil {
		start = tl.EarliestStart.Format(layout)
	}
	if tl.LatestEnd != nil {
		end = tl.LatestEnd.Format(layout)
	}
	if tl.Duration > 0 {
		return fmt.Sprintf("%s .. %s (%s)", start, end, tl.Duration)
	}
	return start + " .. " + end
}

func renderMarkdown(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
