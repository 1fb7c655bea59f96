package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/tui"
)

var (
	viewWorkflows []string
	viewLogs      []string
	viewTheme     string
	viewFilter    string
)

var viewCmd = &cobra.Command{
	Use:   "view [WORKFLOW]",
	Short: "Open the interactive workflow viewer",
	Long: `Open the terminal viewer on one or more Rocoto workflows.

Workflows come from the positional argument and --workflow flags, or from the
configuration file when none are given. Log files listed with --log are paired
with every workflow; logs in the workflow's directory (or its log/ and logs/
subdirectories) are paired automatically.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)
	addViewFlags(viewCmd)
}

func addViewFlags(c *cobra.Command) {
	c.Flags().StringArrayVarP(&viewWorkflows, "workflow", "w", nil, "workflow XML file (repeatable)")
	c.Flags().StringArrayVarP(&viewLogs, "log", "l", nil, "workflow log file (repeatable)")
	c.Flags().StringVar(&viewTheme, "theme", "", "UI theme (default, dark, light)")
	c.Flags().StringVar(&viewFilter, "filter", "", "initial task filter")
}

func runView(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if viewTheme != "" {
		cfg.Display.Theme = viewTheme
	}

	paths := append(append([]string(nil), args...), viewWorkflows...)
	sources := workflowSources(cfg, paths, viewLogs)
	if len(sources) == 0 {
		return errors.New("no workflows to display: pass a workflow file or list workflows in the config")
	}

	logger, err := newLogger(cfg, true)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	v, err := newViewer(cfg, logger)
	if err != nil {
		_ = logger.Close()
		return err
	}
	defer v.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Broken workflows are shown through their refresh-failed banner.
	_ = v.register(ctx, sources)
	if anyMonitored(sources) {
		if err := v.mon.Start(ctx); err != nil {
			return fmt.Errorf("starting monitor: %w", err)
		}
	}

	adapter := tui.NewEventBusAdapter(v.bus)
	defer adapter.Close()

	model := tui.New(v.state,
		tui.WithEventBus(adapter),
		tui.WithRefresher(v.mon),
		tui.WithLogPaths(v.sync.LogPathsFor),
		tui.WithLogIndex(v.index),
		tui.WithTheme(cfg.Display.Theme),
		tui.WithRefreshInterval(cfg.RefreshInterval()),
		tui.WithFilter(viewFilter),
	)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running viewer: %w", err)
	}
	return nil
}
