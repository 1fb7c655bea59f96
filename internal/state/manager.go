// Package state holds the canonical in-memory snapshot of workflows, log
// entries and UI preferences.
//
// Every mutation runs under a single writer lock. Data is committed under a
// separate read/write lock which is released before the resulting event is
// published, while the writer lock is still held. Subscribers can therefore
// read the manager from inside a handler, never observe a half-applied
// update, and receive events in commit order.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/events"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/logging"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/parser"
)

// DefaultMaxLogLines bounds the entries kept per log file.
const DefaultMaxLogLines = 1000

// Validator checks a workflow before it is committed.
type Validator func(*core.Workflow) error

// RefreshStatus records the last failed refresh of a workflow.
type RefreshStatus struct {
	Path     string             `json:"path"`
	Category core.ErrorCategory `json:"category"`
	Error    string             `json:"error"`
	At       time.Time          `json:"at"`
}

// Manager is the single owner of application state.
type Manager struct {
	bus         *events.Bus
	logger      *logging.Logger
	validate    Validator
	maxLogLines int

	writeMu sync.Mutex

	mu        sync.RWMutex
	values    map[string]any
	workflows map[string]*core.Workflow
	failures  map[string]RefreshStatus
	logs      map[string][]core.LogEntry
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxLogLines bounds the entries kept per log path.
func WithMaxLogLines(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxLogLines = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithValidator replaces the commit hook. The default is parser.Validate.
func WithValidator(v Validator) Option {
	return func(m *Manager) {
		if v != nil {
			m.validate = v
		}
	}
}

// New creates a Manager publishing on bus.
func New(bus *events.Bus, opts ...Option) *Manager {
	m := &Manager{
		bus:         bus,
		logger:      logging.NewNop(),
		validate:    parser.Validate,
		maxLogLines: DefaultMaxLogLines,
		values:      make(map[string]any),
		workflows:   make(map[string]*core.Workflow),
		failures:    make(map[string]RefreshStatus),
		logs:        make(map[string][]core.LogEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the value stored under key, or def.
func (m *Manager) Get(key string, def any) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok {
		return v
	}
	return def
}

// Set stores value under key. The last write wins.
func (m *Manager) Set(key string, value any) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// GetString returns a string value or def when missing or of another type.
func (m *Manager) GetString(key, def string) string {
	if s, ok := m.Get(key, def).(string); ok {
		return s
	}
	return def
}

// GetBool returns a bool value or def.
func (m *Manager) GetBool(key string, def bool) bool {
	if b, ok := m.Get(key, def).(bool); ok {
		return b
	}
	return def
}

// GetInt returns an int value or def.
func (m *Manager) GetInt(key string, def int) int {
	if n, ok := m.Get(key, def).(int); ok {
		return n
	}
	return def
}

// UpdateWorkflow validates wf and commits it wholesale under id. It returns
// false without publishing when wf is structurally equal to the stored
// version. A successful commit bumps the generation, clears any refresh
// failure and publishes exactly one WorkflowUpdated event. A validation
// failure leaves state untouched and publishes RefreshFailed.
func (m *Manager) UpdateWorkflow(id string, wf *core.Workflow) (bool, error) {
	if wf == nil {
		return false, core.ErrValidation(core.CodeInvalidWorkflow, "workflow is nil")
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.validate(wf); err != nil {
		m.logger.Warn("workflow rejected", "workflow_id", id, "path", wf.Path, "error", err)
		m.markFailed(id, wf.Path, err)
		return false, err
	}

	next := wf.Clone()
	next.ID = id
	next.RecomputeStatus()

	m.mu.RLock()
	prev := m.workflows[id]
	m.mu.RUnlock()

	if prev != nil && prev.Equal(next) {
		m.mu.Lock()
		delete(m.failures, id)
		m.mu.Unlock()
		return false, nil
	}

	next.Generation = 1
	if prev != nil {
		next.Generation = prev.Generation + 1
	}
	changed := core.ChangedTasks(prev, next)

	m.mu.Lock()
	m.workflows[id] = next
	delete(m.failures, id)
	m.mu.Unlock()

	m.logger.Debug("workflow committed", "workflow_id", id, "generation", next.Generation, "changed", len(changed))
	m.bus.Publish(events.NewWorkflowUpdatedEvent(id, next.Generation, next.Status, changed))
	return true, nil
}

// GetWorkflow returns a deep copy of the workflow, or false if it was never
// loaded.
func (m *Manager) GetWorkflow(id string) (*core.Workflow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf, ok := m.workflows[id]
	if !ok {
		return nil, false
	}
	return wf.Clone(), true
}

// WorkflowForPath returns a copy of the workflow parsed from path.
func (m *Manager) WorkflowForPath(path string) (*core.Workflow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, wf := range m.workflows {
		if wf.Path == path {
			return wf.Clone(), true
		}
	}
	return nil, false
}

// WorkflowIDs returns the loaded workflow ids, sorted.
func (m *Manager) WorkflowIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.workflows))
	for id := range m.workflows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Workflows returns copies of every workflow, sorted by id.
func (m *Manager) Workflows() []*core.Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*core.Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		out = append(out, wf.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveWorkflow drops a workflow and publishes WorkflowRemoved. It reports
// whether the workflow existed.
func (m *Manager) RemoveWorkflow(id string) bool {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	_, ok := m.workflows[id]
	delete(m.workflows, id)
	delete(m.failures, id)
	m.mu.Unlock()

	if ok {
		m.bus.Publish(events.NewWorkflowRemovedEvent(id))
	}
	return ok
}

// MarkRefreshFailed records that refreshing id from path failed. The stored
// workflow is kept. A RefreshFailed event is published.
func (m *Manager) MarkRefreshFailed(id, path string, err error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.markFailed(id, path, err)
}

func (m *Manager) markFailed(id, path string, err error) {
	status := RefreshStatus{
		Path:     path,
		Category: core.GetCategory(err),
		At:       time.Now(),
	}
	if err != nil {
		status.Error = err.Error()
	}

	m.mu.Lock()
	m.failures[id] = status
	m.mu.Unlock()

	m.bus.Publish(events.NewRefreshFailedEvent(id, path, err))
}

// RefreshStatus returns the last refresh failure for id, if the failure has
// not been cleared by a later successful update.
func (m *Manager) RefreshStatus(id string) (RefreshStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.failures[id]
	return s, ok
}

// AppendLogEntries adds entries for a log path, keeping at most the
// configured number of most recent entries, and publishes one LogAppended
// event per non-empty batch.
func (m *Manager) AppendLogEntries(path string, entries []core.LogEntry) {
	if len(entries) == 0 {
		return
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	buf := append(m.logs[path], entries...)
	if len(buf) > m.maxLogLines {
		buf = append([]core.LogEntry(nil), buf[len(buf)-m.maxLogLines:]...)
	}
	m.logs[path] = buf
	m.mu.Unlock()

	m.bus.Publish(events.NewLogAppendedEvent(path, len(entries)))
}

// ReplaceLogEntries swaps the entries for path, used after rotation.
func (m *Manager) ReplaceLogEntries(path string, entries []core.LogEntry) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if len(entries) > m.maxLogLines {
		entries = entries[len(entries)-m.maxLogLines:]
	}
	m.mu.Lock()
	m.logs[path] = append([]core.LogEntry(nil), entries...)
	m.mu.Unlock()

	m.bus.Publish(events.NewLogAppendedEvent(path, len(entries)))
}

// RemoveLogs drops the entries kept for path.
func (m *Manager) RemoveLogs(path string) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.logs, path)
}

// Logs returns a copy of the entries kept for path.
func (m *Manager) Logs(path string) []core.LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.LogEntry(nil), m.logs[path]...)
}

// LogPaths returns the paths that have entries, sorted.
func (m *Manager) LogPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.logs))
	for p := range m.logs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// AllLogs returns every kept entry, grouped by path in sorted path order.
func (m *Manager) AllLogs() []core.LogEntry {
	var out []core.LogEntry
	for _, p := range m.LogPaths() {
		out = append(out, m.Logs(p)...)
	}
	return out
}
