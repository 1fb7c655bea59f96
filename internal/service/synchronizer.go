package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/events"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/fsutil"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/logging"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/logindex"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/monitor"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/parser"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/state"
)

// WorkflowSource is a workflow definition together with the log files that
// report its progress.
type WorkflowSource struct {
	Path    string
	Name    string // Display name override
	Monitor bool   // Watch for changes after the initial load
	Logs    []string
}

// Synchronizer turns file events into state updates: it re-parses changed
// workflow files, tails changed log files and merges log statuses into the
// workflows they belong to.
type Synchronizer struct {
	bus         *events.Bus
	state       *state.Manager
	mon         *monitor.Monitor
	index       *logindex.Index
	logger      *logging.Logger
	maxLogLines int
	concurrency int

	mu       sync.Mutex
	ids      map[string]string         // workflow path -> workflow id
	names    map[string]string         // workflow path -> display name
	paired   map[string][]string       // workflow path -> explicit log paths
	parsed   map[string]*core.Workflow // workflow path -> last good parse, before log statuses
	logs     map[string]bool           // known log paths
	statuses map[string]*parser.StatusTracker
	tailers  map[string]*monitor.Tailer

	subs []events.SubscriptionID
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithLogIndex mirrors every appended log entry into ix.
func WithLogIndex(ix *logindex.Index) SyncOption {
	return func(s *Synchronizer) {
		s.index = ix
	}
}

// WithSyncLogger sets the logger.
func WithSyncLogger(logger *logging.Logger) SyncOption {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxLogLines caps capped-mode reads and index retention.
func WithMaxLogLines(n int) SyncOption {
	return func(s *Synchronizer) {
		if n > 0 {
			s.maxLogLines = n
		}
	}
}

// WithConcurrency bounds parallel parsing in LoadAll.
func WithConcurrency(n int) SyncOption {
	return func(s *Synchronizer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewSynchronizer wires a Synchronizer to the bus. Call Close to detach it.
func NewSynchronizer(bus *events.Bus, st *state.Manager, mon *monitor.Monitor, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		bus:         bus,
		state:       st,
		mon:         mon,
		logger:      logging.NewNop(),
		maxLogLines: state.DefaultMaxLogLines,
		concurrency: runtime.NumCPU(),
		ids:         make(map[string]string),
		names:       make(map[string]string),
		paired:      make(map[string][]string),
		parsed:      make(map[string]*core.Workflow),
		logs:        make(map[string]bool),
		statuses:    make(map[string]*parser.StatusTracker),
		tailers:     make(map[string]*monitor.Tailer),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.subs = append(s.subs,
		bus.Subscribe(events.TypeFileChanged, s.onFileChanged),
		bus.Subscribe(events.TypeFileRemoved, s.onFileRemoved),
		bus.Subscribe(events.TypePathUnmonitored, s.onPathUnmonitored),
	)
	return s
}

// Close unsubscribes from the bus.
func (s *Synchronizer) Close() {
	for _, id := range s.subs {
		s.bus.Unsubscribe(id)
	}
	s.subs = nil
}

// Register adds a workflow and its logs to the monitor (when src.Monitor is
// set) and performs the initial load.
func (s *Synchronizer) Register(ctx context.Context, src WorkflowSource) error {
	wfPath, err := filepath.Abs(src.Path)
	if err != nil {
		return core.ErrInvalidPath(src.Path, err)
	}

	paths := make([]core.MonitoredPath, 0, len(src.Logs)+1)
	var logPaths []string
	for _, l := range src.Logs {
		mp, err := s.track(l, core.KindLog, src.Monitor)
		if err != nil {
			s.logger.Warn("skipping log file", "path", l, "error", err)
			continue
		}
		logPaths = append(logPaths, mp.Path)
		paths = append(paths, mp)
	}
	mp, err := s.track(src.Path, core.KindWorkflow, src.Monitor)
	if err != nil {
		return err
	}
	paths = append(paths, mp)

	s.mu.Lock()
	if src.Name != "" {
		s.names[wfPath] = src.Name
	}
	s.paired[wfPath] = append(s.paired[wfPath], logPaths...)
	s.mu.Unlock()

	return s.LoadAll(ctx, paths)
}

// track registers path with the monitor, or only validates it when the
// workflow is not monitored.
func (s *Synchronizer) track(path string, kind core.ParserKind, monitored bool) (core.MonitoredPath, error) {
	if monitored && s.mon != nil {
		mp, err := s.mon.AddPath(path, kind)
		if err != nil {
			return core.MonitoredPath{}, err
		}
		return *mp, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return core.MonitoredPath{}, core.ErrInvalidPath(path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return core.MonitoredPath{}, core.ErrInvalidPath(path, err)
	}
	if info.IsDir() {
		return core.MonitoredPath{}, core.ErrInvalidPath(path, errors.New("is a directory"))
	}
	return core.MonitoredPath{Path: abs, Kind: kind, Enabled: true}, nil
}

type loadResult struct {
	wf      *core.Workflow
	lines   []string
	first   int
	err     error
	capped  bool
	skipped bool
}

// LoadAll reads and parses every path concurrently, then commits the
// results one by one in path order: logs first so workflow statuses can
// use them. Per-path failures are recorded in state and returned joined.
func (s *Synchronizer) LoadAll(ctx context.Context, paths []core.MonitoredPath) error {
	results := make([]loadResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.load(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var errs []error
	for i, p := range paths {
		if p.Kind == core.KindLog {
			if err := s.commitLog(p.Path, results[i]); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for i, p := range paths {
		if p.Kind == core.KindWorkflow {
			if err := s.commitWorkflow(p.Path, results[i]); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Synchronizer) load(p core.MonitoredPath) loadResult {
	switch p.Kind {
	case core.KindLog:
		lines, first, err := s.tailer(p.Path).Read()
		return loadResult{lines: lines, first: first, err: err}
	default:
		return s.loadWorkflow(p.Path)
	}
}

func (s *Synchronizer) loadWorkflow(path string) loadResult {
	maxSize := int64(monitor.DefaultMaxFileSize)
	if s.mon != nil {
		maxSize = s.mon.MaxFileSize()
	}
	data, capped, err := fsutil.ReadCapped(path, maxSize, s.maxLogLines)
	if err != nil {
		return loadResult{err: core.ErrIO(path, err)}
	}
	wf, err := parser.ParseWorkflow(path, data)
	return loadResult{wf: wf, err: err, capped: capped}
}

// RefreshWorkflow re-parses a workflow file and commits it. On failure the
// previous snapshot is kept and the refresh is marked failed.
func (s *Synchronizer) RefreshWorkflow(path string) error {
	return s.commitWorkflow(path, s.loadWorkflow(path))
}

func (s *Synchronizer) commitWorkflow(path string, res loadResult) error {
	if res.capped {
		s.logger.Warn("workflow file exceeds size limit, read in capped mode", "path", path)
	}
	if res.err != nil {
		id := s.idFor(path)
		s.logger.Warn("workflow refresh failed, keeping previous state", "path", path, "workflow_id", id, "error", res.err)
		s.state.MarkRefreshFailed(id, path, res.err)
		return res.err
	}

	s.mu.Lock()
	if prev, ok := s.ids[path]; ok && prev != res.wf.ID {
		s.mu.Unlock()
		s.state.RemoveWorkflow(prev)
		s.mu.Lock()
	}
	s.ids[path] = res.wf.ID
	if name := s.names[path]; name != "" {
		res.wf.Name = name
	}
	s.parsed[path] = res.wf
	s.mu.Unlock()

	wf := parser.ApplyLogStatuses(res.wf, s.statusEntriesFor(path))
	_, err := s.state.UpdateWorkflow(wf.ID, wf)
	return err
}

// RefreshLog reads the lines appended to a log file and merges them.
func (s *Synchronizer) RefreshLog(path string) error {
	lines, first, err := s.tailer(path).Read()
	return s.commitLog(path, loadResult{lines: lines, first: first, err: err})
}

func (s *Synchronizer) commitLog(path string, res loadResult) error {
	s.mu.Lock()
	s.logs[path] = true
	s.mu.Unlock()

	if res.err != nil {
		s.logger.Warn("log read failed, retrying next tick", "path", path, "error", res.err)
		return core.ErrIO(path, res.err)
	}
	restart := res.first == 1
	if len(res.lines) == 0 {
		// A truncated or rotated log with no complete line yet still
		// clears what was shown for the old file.
		if !restart || len(s.state.Logs(path)) == 0 {
			return nil
		}
	}

	entries := parser.ParseLogLines(path, res.lines, res.first)
	s.mu.Lock()
	tr := s.statuses[path]
	if tr == nil {
		tr = &parser.StatusTracker{}
		s.statuses[path] = tr
	}
	if restart {
		tr.Reset()
	}
	tr.Observe(entries)
	s.mu.Unlock()

	if restart {
		s.state.ReplaceLogEntries(path, entries)
	} else {
		s.state.AppendLogEntries(path, entries)
	}
	s.indexEntries(path, entries, restart)

	for _, wfPath := range s.workflowsFor(path) {
		s.reapply(wfPath)
	}
	return nil
}

func (s *Synchronizer) indexEntries(path string, entries []core.LogEntry, restart bool) {
	if s.index == nil {
		return
	}
	ctx := context.Background()
	if restart {
		if err := s.index.Reset(ctx, path); err != nil {
			s.logger.Warn("log index reset failed", "path", path, "error", err)
		}
	}
	if err := s.index.Insert(ctx, entries); err != nil {
		s.logger.Warn("log index insert failed", "path", path, "error", err)
		return
	}
	if err := s.index.Trim(ctx, path, s.maxLogLines); err != nil {
		s.logger.Warn("log index trim failed", "path", path, "error", err)
	}
}

// reapply merges the tracked log statuses into the last parsed workflow.
func (s *Synchronizer) reapply(wfPath string) {
	s.mu.Lock()
	wf := s.parsed[wfPath]
	s.mu.Unlock()
	if wf == nil {
		return
	}
	next := parser.ApplyLogStatuses(wf, s.statusEntriesFor(wfPath))
	if _, err := s.state.UpdateWorkflow(next.ID, next); err != nil {
		s.logger.Warn("applying log statuses failed", "path", wfPath, "error", err)
	}
}

func (s *Synchronizer) tailer(path string) *monitor.Tailer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tailers[path]
	if !ok {
		maxRead := int64(monitor.DefaultMaxFileSize)
		if s.mon != nil {
			maxRead = s.mon.MaxFileSize()
		}
		t = monitor.NewTailer(path, maxRead)
		s.tailers[path] = t
	}
	return t
}

func (s *Synchronizer) idFor(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[path]; ok {
		return id
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// logsFor returns the log paths associated with a workflow: explicit
// pairings plus known logs in the workflow's directory or its log(s)
// subdirectory.
func (s *Synchronizer) logsFor(wfPath string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logsForLocked(wfPath)
}

func (s *Synchronizer) logsForLocked(wfPath string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range s.paired[wfPath] {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	dir := filepath.Dir(wfPath)
	for l := range s.logs {
		if seen[l] {
			continue
		}
		ld := filepath.Dir(l)
		if ld == dir || ld == filepath.Join(dir, "log") || ld == filepath.Join(dir, "logs") {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Synchronizer) workflowsFor(logPath string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for wfPath := range s.ids {
		for _, l := range s.logsForLocked(wfPath) {
			if l == logPath {
				out = append(out, wfPath)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// statusEntriesFor returns the status-deciding entries of every log
// associated with wfPath, log by log in path order.
func (s *Synchronizer) statusEntriesFor(wfPath string) []core.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []core.LogEntry
	for _, l := range s.logsForLocked(wfPath) {
		if tr := s.statuses[l]; tr != nil {
			entries = append(entries, tr.Entries()...)
		}
	}
	return entries
}

// LogPathsFor exposes the log association of a workflow file.
func (s *Synchronizer) LogPathsFor(wfPath string) []string {
	return s.logsFor(wfPath)
}

func (s *Synchronizer) onFileChanged(e events.Event) error {
	ev, ok := e.(events.FileChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	switch ev.Kind {
	case core.KindLog:
		_ = s.RefreshLog(ev.Path)
	default:
		_ = s.RefreshWorkflow(ev.Path)
	}
	return nil
}

func (s *Synchronizer) onFileRemoved(e events.Event) error {
	ev, ok := e.(events.FileRemovedEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	if ev.Kind == core.KindLog {
		s.logger.Info("log file removed, keeping entries", "path", ev.Path)
		return nil
	}
	id := s.idFor(ev.Path)
	s.state.MarkRefreshFailed(id, ev.Path, core.ErrNotFound("workflow file", ev.Path))
	return nil
}

func (s *Synchronizer) onPathUnmonitored(e events.Event) error {
	ev, ok := e.(events.PathUnmonitoredEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}

	if ev.Kind == core.KindLog {
		s.mu.Lock()
		delete(s.logs, ev.Path)
		delete(s.tailers, ev.Path)
		delete(s.statuses, ev.Path)
		s.mu.Unlock()
		s.state.RemoveLogs(ev.Path)
		if s.index != nil {
			_ = s.index.Reset(context.Background(), ev.Path)
		}
		return nil
	}

	s.mu.Lock()
	id, ok := s.ids[ev.Path]
	delete(s.ids, ev.Path)
	delete(s.names, ev.Path)
	delete(s.paired, ev.Path)
	delete(s.parsed, ev.Path)
	s.mu.Unlock()
	if ok {
		s.state.RemoveWorkflow(id)
	}
	return nil
}
