package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/events"
)

var (
	monDirs      []string
	monWorkflows []string
	monLogs      []string
	monInterval  int
	monFormat    string
	monOutput    string
	monFollow    bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [PATH]",
	Short: "Watch workflow files and print state events",
	Long: `Run the file monitor without the UI and print every state event.

Without --follow the command loads all paths, prints the resulting events and
exits. With --follow it keeps polling until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringArrayVarP(&monDirs, "directory", "d", nil, "directory to scan for workflow and log files (repeatable)")
	monitorCmd.Flags().StringArrayVarP(&monWorkflows, "workflow", "w", nil, "workflow XML file (repeatable)")
	monitorCmd.Flags().StringArrayVarP(&monLogs, "log", "l", nil, "workflow log file (repeatable)")
	monitorCmd.Flags().IntVarP(&monInterval, "interval", "i", 0, "poll interval in seconds (default from config)")
	monitorCmd.Flags().StringVar(&monFormat, "format", "text", "output format (text, json)")
	monitorCmd.Flags().StringVarP(&monOutput, "output", "o", "", "write events to file instead of stdout")
	monitorCmd.Flags().BoolVar(&monFollow, "follow", false, "keep watching until interrupted")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monFormat != "text" && monFormat != "json" {
		return fmt.Errorf("invalid format %q (valid: text, json)", monFormat)
	}
	if monInterval < 0 {
		return fmt.Errorf("interval must be positive, got %d", monInterval)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if monInterval > 0 {
		cfg.Monitor.PollInterval = monInterval
	}

	paths := append(append([]string(nil), args...), monWorkflows...)
	sources := workflowSources(cfg, paths, monLogs)
	for i := range sources {
		sources[i].Monitor = true
	}
	if len(sources) == 0 && len(monDirs) == 0 {
		return errors.New("nothing to monitor: pass a workflow file, --directory, or list workflows in the config")
	}

	out, closeOut, err := openOutput(monOutput, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	defer func() { _ = closeOut() }()

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

	printer := &eventPrinter{w: out, json: monFormat == "json", color: isTerminal(out)}
	v.bus.SubscribeAll(printer.handle,
		events.TypeWorkflowUpdated,
		events.TypeWorkflowRemoved,
		events.TypeLogAppended,
		events.TypeRefreshFailed,
		events.TypeFileRemoved,
		events.TypeHandlerError,
		events.TypeMonitorStarted,
		events.TypeMonitorStopped,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var loadErrs []error
	if err := v.register(ctx, sources); err != nil {
		loadErrs = append(loadErrs, err)
	}
	for _, dir := range monDirs {
		added, err := v.mon.AddDirectory(dir)
		if err != nil {
			loadErrs = append(loadErrs, err)
			continue
		}
		if err := v.sync.LoadAll(ctx, added); err != nil {
			loadErrs = append(loadErrs, err)
		}
	}

	if !monFollow {
		return errors.Join(loadErrs...)
	}

	if err := v.mon.Start(ctx); err != nil {
		return fmt.Errorf("starting monitor: %w", err)
	}
	<-ctx.Done()
	v.mon.Stop()
	return nil
}

// eventPrinter writes bus events as text lines or JSON objects.
type eventPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	json  bool
	color bool
}

func (p *eventPrinter) handle(e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.json {
		line, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.w, "%s\n", line)
		return err
	}
	_, err := fmt.Fprintf(p.w, "%s %s %s\n",
		e.Timestamp().Format(time.TimeOnly), p.label(e.EventType()), describeEvent(e))
	return err
}

func (p *eventPrinter) label(eventType string) string {
	label := fmt.Sprintf("%-17s", eventType)
	if !p.color {
		return label
	}
	attr := color.FgCyan
	switch eventType {
	case events.TypeRefreshFailed, events.TypeHandlerError, events.TypeFileRemoved:
		attr = color.FgRed
	case events.TypeWorkflowUpdated:
		attr = color.FgGreen
	case events.TypeWorkflowRemoved:
		attr = color.FgYellow
	}
	return color.New(attr).Sprint(label)
}

func describeEvent(e events.Event) string {
	switch ev := e.(type) {
	case events.WorkflowUpdatedEvent:
		s := fmt.Sprintf("%s gen=%d status=%s", ev.WorkflowID, ev.Generation, ev.Status)
		if len(ev.ChangedTasks) > 0 {
			s += fmt.Sprintf(" changed=%v", ev.ChangedTasks)
		}
		return s
	case events.WorkflowRemovedEvent:
		return ev.WorkflowID
	case events.LogAppendedEvent:
		return fmt.Sprintf("%s +%d", ev.Path, ev.Count)
	case events.RefreshFailedEvent:
		return fmt.Sprintf("%s [%s] %s", ev.Path, ev.Category, ev.Error)
	case events.FileRemovedEvent:
		return fmt.Sprintf("%s (%s)", ev.Path, ev.Kind)
	case events.HandlerErrorEvent:
		return fmt.Sprintf("%s: %s", ev.FailedType, ev.Error)
	case events.MonitorStartedEvent:
		return fmt.Sprintf("%d paths", ev.Paths)
	default:
		return ""
	}
}
