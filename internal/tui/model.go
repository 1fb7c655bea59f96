package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/clip"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/logindex"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/parser"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/state"
)

// Keys of the UI preferences kept in the state manager.
const (
	KeySelectedWorkflow = "ui.selected_workflow"
	KeySelectedTask     = "ui.selected_task"
	KeyShowLogs         = "ui.show_logs"
	KeyTheme            = "ui.theme"
)

// DefaultRefreshInterval is used when no refresh interval is configured.
const DefaultRefreshInterval = 5 * time.Second

// Refresher forces an immediate check of the monitored files.
type Refresher interface {
	TriggerTick()
}

// Copier copies text out of the viewer.
type Copier interface {
	Copy(text string) (clip.Result, error)
}

// Model is the main TUI model. It renders a read-only view of the state
// manager and re-reads it on every bus notification and refresh tick.
type Model struct {
	state     *state.Manager
	adapter   *EventBusAdapter
	refresher Refresher
	logsFor   func(workflowPath string) []string
	index     *logindex.Index
	copier    Copier

	theme   Theme
	styles  Styles
	refresh time.Duration

	workflows []*core.Workflow
	wfIdx     int
	tasks     []core.Task // selected workflow's tasks after filtering
	taskIdx   int
	logs      []core.LogEntry

	showLogs  bool
	searching bool
	search    textinput.Model
	query     string

	keys     keyMap
	help     help.Model
	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
	ready    bool
	flash    string
	quitting bool
}

// Option configures a Model.
type Option func(*Model)

// WithEventBus delivers state changes through adapter.
func WithEventBus(adapter *EventBusAdapter) Option {
	return func(m *Model) { m.adapter = adapter }
}

// WithRefresher lets the r key trigger an immediate monitor tick.
func WithRefresher(r Refresher) Option {
	return func(m *Model) { m.refresher = r }
}

// WithLogPaths tells the model which log files belong to a workflow file.
func WithLogPaths(fn func(workflowPath string) []string) Option {
	return func(m *Model) { m.logsFor = fn }
}

// WithLogIndex routes log pane searches through the SQLite index.
func WithLogIndex(ix *logindex.Index) Option {
	return func(m *Model) { m.index = ix }
}

// WithCopier overrides the clipboard.
func WithCopier(c Copier) Option {
	return func(m *Model) { m.copier = c }
}

// WithTheme selects a theme by name. Unknown names keep the current theme.
func WithTheme(name string) Option {
	return func(m *Model) {
		if t, ok := ThemeByName(name); ok {
			m.theme = t
		}
	}
}

// WithRefreshInterval sets the periodic re-read interval.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.refresh = d
		}
	}
}

// WithFilter starts the view with a task filter applied.
func WithFilter(query string) Option {
	return func(m *Model) {
		m.query = query
		m.search.SetValue(query)
	}
}

// New creates a model over st. Preferences stored in st (selection, theme,
// log pane) are restored.
func New(st *state.Manager, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "filter tasks"
	ti.Prompt = "/ "
	ti.CharLimit = 128

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	theme, _ := ThemeByName(st.GetString(KeyTheme, "default"))
	m := Model{
		state:    st,
		copier:   clip.New(),
		theme:    theme,
		refresh:  DefaultRefreshInterval,
		search:   ti,
		spinner:  sp,
		keys:     defaultKeyMap(),
		help:     help.New(),
		showLogs: st.GetBool(KeyShowLogs, false),
		viewport: viewport.New(80, 10),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.styles = NewStyles(m.theme)
	m.spinner.Style = m.styles.Status[core.TaskStatusRunning]
	st.Set(KeyTheme, m.theme.Name)

	m.reload()
	m.restoreSelection()
	return m
}

func (m *Model) restoreSelection() {
	wfID := m.state.GetString(KeySelectedWorkflow, "")
	for i, wf := range m.workflows {
		if wf.ID == wfID {
			m.wfIdx = i
			break
		}
	}
	m.reload()
	taskID := m.state.GetString(KeySelectedTask, "")
	for i, t := range m.tasks {
		if t.ID == taskID {
			m.taskIdx = i
			break
		}
	}
	m.loadLogs()
}

// Init starts the spinner, the refresh ticker and event delivery.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, refreshTick(m.refresh)}
	if m.adapter != nil {
		cmds = append(cmds, waitForEvent(m.adapter))
	}
	return tea.Batch(cmds...)
}

func refreshTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m Model) next() tea.Cmd {
	if m.adapter == nil {
		return nil
	}
	return waitForEvent(m.adapter)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		m.resizeViewport()
		return m, nil

	case WorkflowChangedMsg, WorkflowRemovedMsg, LogAppendedMsg, RefreshFailedMsg:
		m.reload()
		return m, m.next()

	case HandlerErrorMsg:
		m.flash = fmt.Sprintf("handler for %s failed: %s", msg.EventType, msg.Error)
		return m, m.next()

	case adapterClosedMsg:
		return m, nil

	case refreshTickMsg:
		m.reload()
		return m, refreshTick(m.refresh)

	case copiedMsg:
		if msg.err != nil {
			m.flash = "copy failed: " + msg.err.Error()
		} else {
			m.flash = msg.result.String()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKeyPress handles keyboard input outside the search box.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.NextWF):
		m.selectWorkflow(m.wfIdx + 1)

	case key.Matches(msg, m.keys.PrevWF):
		m.selectWorkflow(m.wfIdx - 1)

	case key.Matches(msg, m.keys.Down):
		m.selectTask(m.taskIdx + 1)

	case key.Matches(msg, m.keys.Up):
		m.selectTask(m.taskIdx - 1)

	case key.Matches(msg, m.keys.Logs):
		m.showLogs = !m.showLogs
		m.state.Set(KeyShowLogs, m.showLogs)
		m.resizeViewport()

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.Clear):
		m.setQuery("")
		m.flash = ""

	case key.Matches(msg, m.keys.Yank):
		text := m.yankText()
		if text == "" {
			return m, nil
		}
		copier := m.copier
		return m, func() tea.Msg {
			res, err := copier.Copy(text)
			return copiedMsg{result: res, err: err}
		}

	case key.Matches(msg, m.keys.Refresh):
		if m.refresher != nil {
			m.refresher.TriggerTick()
		}
		m.reload()
		m.flash = "refreshed"

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resizeViewport()

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		if m.showLogs {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.setQuery("")
		return m, nil
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != m.query {
		m.setQuery(m.search.Value())
	}
	return m, cmd
}

func (m *Model) setQuery(q string) {
	m.query = q
	m.search.SetValue(q)
	m.taskIdx = 0
	m.reload()
}

func (m *Model) selectWorkflow(i int) {
	n := len(m.workflows)
	if n == 0 {
		return
	}
	m.wfIdx = ((i % n) + n) % n
	m.taskIdx = 0
	m.state.Set(KeySelectedWorkflow, m.workflows[m.wfIdx].ID)
	m.reload()
}

func (m *Model) selectTask(i int) {
	if i < 0 || i >= len(m.tasks) {
		return
	}
	m.taskIdx = i
	m.state.Set(KeySelectedTask, m.tasks[i].ID)
	m.loadLogs()
}

// reload re-reads workflows from the state manager, keeping the selection
// on the same workflow and task ids where possible.
func (m *Model) reload() {
	var selWF, selTask string
	if wf := m.selectedWorkflow(); wf != nil {
		selWF = wf.ID
	}
	if t := m.selectedTask(); t != nil {
		selTask = t.ID
	}

	m.workflows = m.state.Workflows()
	m.wfIdx = min(m.wfIdx, max(len(m.workflows)-1, 0))
	for i, wf := range m.workflows {
		if wf.ID == selWF {
			m.wfIdx = i
		}
	}

	m.tasks = nil
	if wf := m.selectedWorkflow(); wf != nil {
		m.tasks = filterTasks(wf.Tasks, m.query)
	}
	m.taskIdx = min(m.taskIdx, max(len(m.tasks)-1, 0))
	for i, t := range m.tasks {
		if t.ID == selTask {
			m.taskIdx = i
		}
	}
	m.loadLogs()
}

// taskSource adapts tasks to fuzzy.Source over id and name.
type taskSource []core.Task

func (s taskSource) String(i int) string { return s[i].ID + " " + s[i].Name }
func (s taskSource) Len() int            { return len(s) }

// filterTasks keeps tasks matching query, in definition order.
func filterTasks(tasks []core.Task, query string) []core.Task {
	if strings.TrimSpace(query) == "" {
		return tasks
	}
	matches := fuzzy.FindFrom(query, taskSource(tasks))
	idx := make([]int, 0, len(matches))
	for _, match := range matches {
		idx = append(idx, match.Index)
	}
	sort.Ints(idx)
	out := make([]core.Task, len(idx))
	for i, j := range idx {
		out[i] = tasks[j]
	}
	return out
}

func (m *Model) loadLogs() {
	m.logs = nil
	wf := m.selectedWorkflow()
	if wf == nil || m.logsFor == nil {
		m.refreshViewport()
		return
	}

	filter := parser.LogFilter{Search: strings.TrimSpace(m.query)}
	limit := max(m.viewport.Height*4, 200)
	for _, path := range m.logsFor(wf.Path) {
		if m.index != nil && !filter.IsZero() {
			entries, err := m.index.Query(context.Background(), path, filter, limit)
			if err == nil {
				m.logs = append(m.logs, entries...)
				continue
			}
		}
		m.logs = append(m.logs, parser.FilterLogs(m.state.Logs(path), filter)...)
	}
	if len(m.logs) > limit {
		m.logs = m.logs[len(m.logs)-limit:]
	}
	m.refreshViewport()
}

func (m *Model) resizeViewport() {
	if m.width == 0 {
		return
	}
	m.viewport.Width = m.width - 2
	m.viewport.Height = max(m.height/3, 3)
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	lines := make([]string, 0, len(m.logs))
	for _, e := range m.logs {
		style, ok := m.styles.Level[e.Level]
		if !ok {
			style = m.styles.Level[core.LogLevelInfo]
		}
		lines = append(lines, style.Render(e.Raw))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) selectedWorkflow() *core.Workflow {
	if m.wfIdx < 0 || m.wfIdx >= len(m.workflows) {
		return nil
	}
	return m.workflows[m.wfIdx]
}

func (m Model) selectedTask() *core.Task {
	if m.taskIdx < 0 || m.taskIdx >= len(m.tasks) {
		return nil
	}
	return &m.tasks[m.taskIdx]
}

// yankText is the last visible log line when the log pane is open,
// otherwise the selected task id.
func (m Model) yankText() string {
	if m.showLogs && len(m.logs) > 0 {
		return m.logs[len(m.logs)-1].Raw
	}
	if t := m.selectedTask(); t != nil {
		return t.ID
	}
	return ""
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}
	if len(m.workflows) == 0 {
		return m.styles.Header.Render("RocotoViewer") + "\n\nNo workflows loaded\n\n" + m.renderFooter()
	}

	sections := []string{m.renderHeader(), m.renderTabs()}
	if banner := m.renderRefreshBanner(); banner != "" {
		sections = append(sections, banner)
	}
	sections = append(sections, m.renderTasks())
	if m.showLogs {
		sections = append(sections, m.styles.LogBox.Render(m.viewport.View()))
	}
	if m.searching || m.query != "" {
		sections = append(sections, m.styles.Search.Render(m.search.View()))
	}
	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	wf := m.selectedWorkflow()
	counts := wf.StatusCounts()
	return m.styles.Header.Render(fmt.Sprintf("RocotoViewer - %s - %s - %d/%d succeeded - gen %d",
		wf.Name, wf.Status, counts[core.TaskStatusSucceeded], len(wf.Tasks), wf.Generation))
}

func (m Model) renderTabs() string {
	tabs := make([]string, len(m.workflows))
	for i, wf := range m.workflows {
		style := m.styles.Tab
		if i == m.wfIdx {
			style = m.styles.TabActive
		}
		tabs[i] = style.Render(wf.Name)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderRefreshBanner() string {
	wf := m.selectedWorkflow()
	status, ok := m.state.RefreshStatus(wf.ID)
	if !ok {
		return ""
	}
	return m.styles.Banner.Render(fmt.Sprintf("⚠ refresh failed at %s: %s (showing last good state)",
		status.At.Format("15:04:05"), status.Error))
}

func (m Model) renderTasks() string {
	if len(m.tasks) == 0 {
		if m.query != "" {
			return m.styles.Detail.Render("no tasks match " + m.query)
		}
		return m.styles.Detail.Render("no tasks")
	}

	rows := len(m.tasks)
	if m.height > 0 {
		used := 6
		if m.showLogs {
			used += m.viewport.Height + 2
		}
		rows = max(m.height-used, 3)
	}
	start := 0
	if m.taskIdx >= rows {
		start = m.taskIdx - rows + 1
	}
	end := min(start+rows, len(m.tasks))

	var b strings.Builder
	for i := start; i < end; i++ {
		t := m.tasks[i]
		style := m.styles.Task
		if i == m.taskIdx {
			style = m.styles.Selected
		}
		status := m.styles.Status[t.Status].Render(fmt.Sprintf("%s %s", statusIcon(t.Status), t.Status))
		line := fmt.Sprintf("%-24s %s", t.ID, status)
		if t.Status == core.TaskStatusRunning {
			line += " " + m.spinner.View()
		}
		if d := taskDuration(t); d > 0 {
			line += fmt.Sprintf(" [%s]", formatDuration(d))
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
		if i == m.taskIdx && len(t.DependsOn) > 0 {
			b.WriteString(m.styles.Detail.Render("depends on: " + strings.Join(t.DependsOn, ", ")))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func taskDuration(t core.Task) time.Duration {
	if t.Status == core.TaskStatusRunning && t.StartTime != nil {
		return time.Since(*t.StartTime)
	}
	return t.Duration()
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

func (m Model) renderFooter() string {
	footer := m.help.View(m.keys)
	if m.adapter != nil {
		if n := m.adapter.DroppedCount(); n > 0 {
			footer += fmt.Sprintf(" | ⚠ %d dropped", n)
		}
	}
	if m.flash != "" {
		footer += "\n" + m.flash
	}
	return m.styles.Footer.Render(footer)
}
