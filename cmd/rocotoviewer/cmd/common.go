package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/config"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/events"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/fsutil"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/logging"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/logindex"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/monitor"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/service"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/state"
)

// newLoader returns a loader on the global viper so flag bindings apply.
func newLoader() *config.Loader {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	return loader
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := newLoader().Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose > 0 {
		cfg.Logging.Level = "DEBUG"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// newLogger creates the logger from config. While the TUI owns the terminal
// logs are discarded unless a log file is configured.
func newLogger(cfg *config.Config, tui bool) (*logging.Logger, error) {
	lc := logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Output: os.Stderr,
	}
	if tui && lc.File == "" {
		lc.Output = io.Discard
	}
	return logging.New(lc)
}

// viewer wires the event bus, state manager, monitor, log index and
// synchronizer together.
type viewer struct {
	logger *logging.Logger
	bus    *events.Bus
	state  *state.Manager
	mon    *monitor.Monitor
	index  *logindex.Index
	sync   *service.Synchronizer
}

func newViewer(cfg *config.Config, logger *logging.Logger) (*viewer, error) {
	ix, err := logindex.Open()
	if err != nil {
		return nil, fmt.Errorf("opening log index: %w", err)
	}

	bus := events.New(events.WithLogger(logger))
	st := state.New(bus,
		state.WithLogger(logger),
		state.WithMaxLogLines(cfg.Display.MaxLogLines))
	mon := monitor.New(bus,
		monitor.WithInterval(cfg.PollInterval()),
		monitor.WithMaxFileSize(cfg.Monitor.MaxFileSize),
		monitor.WithNotify(true),
		monitor.WithLogger(logger))
	sync := service.NewSynchronizer(bus, st, mon,
		service.WithSyncLogger(logger),
		service.WithLogIndex(ix),
		service.WithMaxLogLines(cfg.Display.MaxLogLines))

	return &viewer{logger: logger, bus: bus, state: st, mon: mon, index: ix, sync: sync}, nil
}

// register loads every source. Failures are logged and joined; the other
// sources are still loaded.
func (v *viewer) register(ctx context.Context, sources []service.WorkflowSource) error {
	var errs []error
	for _, src := range sources {
		if err := v.sync.Register(ctx, src); err != nil {
			v.logger.Warn("workflow load failed", "path", src.Path, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (v *viewer) Close() {
	v.mon.Stop()
	v.sync.Close()
	v.bus.Close()
	_ = v.index.Close()
	_ = v.logger.Close()
}

// workflowSources merges config workflows with paths given on the command
// line. Command-line workflows replace the configured ones.
func workflowSources(cfg *config.Config, paths, logs []string) []service.WorkflowSource {
	var sources []service.WorkflowSource
	if len(paths) > 0 {
		for _, p := range paths {
			sources = append(sources, service.WorkflowSource{
				Path:    p,
				Monitor: cfg.Monitor.Enabled,
				Logs:    logs,
			})
		}
		return sources
	}
	for _, wf := range cfg.Workflows {
		sources = append(sources, service.WorkflowSource{
			Path:    wf.Path,
			Name:    wf.Name,
			Monitor: cfg.MonitorEnabledFor(wf),
			Logs:    append(append([]string(nil), wf.Logs...), logs...),
		})
	}
	return sources
}

// anyMonitored reports whether at least one source wants live updates.
func anyMonitored(sources []service.WorkflowSource) bool {
	for _, s := range sources {
		if s.Monitor {
			return true
		}
	}
	return false
}

// openOutput returns stdout or the named file.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// readFile reads a workflow or log file for the one-shot commands. Files
// above maxSize are read in line-capped mode, keeping at most maxLines whole
// lines from the end; the boolean reports when that happened.
func readFile(path string, maxSize int64, maxLines int) ([]byte, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, core.ErrInvalidPath(path, err)
	}
	if info.IsDir() {
		return nil, false, core.ErrInvalidPath(path, errors.New("is a directory"))
	}
	data, capped, err := fsutil.ReadCapped(path, maxSize, maxLines)
	if err != nil {
		return nil, false, core.ErrIO(path, err)
	}
	return data, capped, nil
}
