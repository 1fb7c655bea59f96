// Package monitor watches registered workflow and log files and publishes
// change events on the bus. Change detection is polling based; fsnotify
// events only trigger an early tick.
package monitor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/events"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/fsutil"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/logging"
)

const (
	DefaultInterval      = 10 * time.Second
	DefaultMaxFileSize   = 10 * 1024 * 1024
	DefaultHashThreshold = 64 * 1024

	notifyDebounce = 100 * time.Millisecond
)

// Monitor polls registered paths for changes. Ticks never overlap; a tick
// that comes due while another is running is skipped.
type Monitor struct {
	bus           *events.Bus
	logger        *logging.Logger
	interval      time.Duration
	maxFileSize   int64
	hashThreshold int64
	notify        bool
	now           func() time.Time

	mu    sync.RWMutex
	paths map[string]*core.MonitoredPath
	order []string

	tickMu sync.Mutex

	runMu    sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	watcher  *fsnotify.Watcher
	watched  map[string]bool
	kick     chan struct{}
	debounce *time.Timer
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the polling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMaxFileSize sets the size above which files are read in capped mode.
func WithMaxFileSize(n int64) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.maxFileSize = n
		}
	}
}

// WithHashThreshold sets the largest file size that is content hashed.
// Zero disables hashing.
func WithHashThreshold(n int64) Option {
	return func(m *Monitor) {
		if n >= 0 {
			m.hashThreshold = n
		}
	}
}

// WithNotify enables fsnotify assisted ticks.
func WithNotify(enabled bool) Option {
	return func(m *Monitor) {
		m.notify = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for LastChecked.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Monitor publishing on bus.
func New(bus *events.Bus, opts ...Option) *Monitor {
	m := &Monitor{
		bus:           bus,
		logger:        logging.NewNop(),
		interval:      DefaultInterval,
		maxFileSize:   DefaultMaxFileSize,
		hashThreshold: DefaultHashThreshold,
		now:           time.Now,
		paths:         make(map[string]*core.MonitoredPath),
		watched:       make(map[string]bool),
		kick:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interval returns the polling interval.
func (m *Monitor) Interval() time.Duration { return m.interval }

// MaxFileSize returns the capped-read threshold.
func (m *Monitor) MaxFileSize() int64 { return m.maxFileSize }

// AddPath registers path. The kind is inferred from the extension unless
// hint is set. Registering an existing path only updates its kind.
func (m *Monitor) AddPath(path string, hint core.ParserKind) (*core.MonitoredPath, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, core.ErrInvalidPath(path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, core.ErrInvalidPath(path, err)
	}
	if info.IsDir() {
		return nil, core.ErrInvalidPath(path, errors.New("is a directory"))
	}

	kind := core.KindForPath(abs, hint)

	m.mu.Lock()
	if existing, ok := m.paths[abs]; ok {
		existing.Kind = kind
		out := *existing
		m.mu.Unlock()
		return &out, nil
	}
	m.mu.Unlock()

	sig, err := m.signature(abs)
	if err != nil {
		return nil, core.ErrInvalidPath(path, err)
	}

	m.mu.Lock()
	mp, ok := m.paths[abs]
	if ok {
		mp.Kind = kind
	} else {
		mp = &core.MonitoredPath{
			Path:        abs,
			Kind:        kind,
			Signature:   sig,
			Enabled:     true,
			LastChecked: m.now(),
		}
		m.paths[abs] = mp
		m.order = append(m.order, abs)
	}
	out := *mp
	m.mu.Unlock()

	m.watchDir(filepath.Dir(abs))
	m.logger.Debug("path registered", "path", abs, "kind", kind)
	return &out, nil
}

// AddDirectory registers every workflow or log file directly inside dir.
func (m *Monitor) AddDirectory(dir string) ([]core.MonitoredPath, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, core.ErrInvalidPath(dir, err)
	}
	var added []core.MonitoredPath
	for _, e := range entries {
		if !e.Type().IsRegular() || !core.IsRecognised(e.Name()) {
			continue
		}
		mp, err := m.AddPath(filepath.Join(dir, e.Name()), "")
		if err != nil {
			m.logger.Warn("skipping file", "path", e.Name(), "error", err)
			continue
		}
		added = append(added, *mp)
	}
	return added, nil
}

// RemovePath unregisters path and publishes PathUnmonitored. It reports
// whether the path was registered.
func (m *Monitor) RemovePath(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	m.mu.Lock()
	mp, ok := m.paths[abs]
	if ok {
		delete(m.paths, abs)
		for i, p := range m.order {
			if p == abs {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.bus.Publish(events.NewPathUnmonitoredEvent(abs, mp.Kind))
	return true
}

// Paths returns a snapshot of the registered paths in registration order.
func (m *Monitor) Paths() []core.MonitoredPath {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.MonitoredPath, 0, len(m.order))
	for _, p := range m.order {
		out = append(out, *m.paths[p])
	}
	return out
}

// Path returns the registration for path.
func (m *Monitor) Path(path string) (core.MonitoredPath, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return core.MonitoredPath{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	mp, ok := m.paths[abs]
	if !ok {
		return core.MonitoredPath{}, false
	}
	return *mp, true
}

// Tick checks every registered path once. It returns false without doing
// anything when another tick is still in flight. Cancellation of ctx is
// honoured between paths, never in the middle of one.
func (m *Monitor) Tick(ctx context.Context) bool {
	if !m.tickMu.TryLock() {
		m.logger.Debug("tick skipped, previous tick still running")
		return false
	}
	defer m.tickMu.Unlock()

	m.mu.RLock()
	paths := append([]string(nil), m.order...)
	m.mu.RUnlock()

	for _, p := range paths {
		if ctx.Err() != nil {
			return true
		}
		m.check(p)
	}
	return true
}

func (m *Monitor) check(path string) {
	sig, err := m.signature(path)
	now := m.now()

	if err != nil {
		m.mu.Lock()
		mp, ok := m.paths[path]
		if !ok {
			m.mu.Unlock()
			return
		}
		mp.LastChecked = now
		if !errors.Is(err, fs.ErrNotExist) {
			mp.LastError = err.Error()
			m.mu.Unlock()
			m.logger.Warn("stat failed, retrying next tick", "path", path, "error", core.ErrIO(path, err))
			return
		}
		wasEnabled := mp.Enabled
		mp.Enabled = false
		mp.LastError = "file removed"
		kind := mp.Kind
		m.mu.Unlock()

		if wasEnabled {
			m.logger.Info("monitored file removed", "path", path)
			m.bus.Publish(events.NewFileRemovedEvent(path, kind))
		}
		return
	}

	m.mu.Lock()
	mp, ok := m.paths[path]
	if !ok {
		m.mu.Unlock()
		return
	}
	changed := !mp.Enabled || !mp.Signature.Equal(sig)
	mp.Enabled = true
	mp.Signature = sig
	mp.LastChecked = now
	mp.LastError = ""
	kind := mp.Kind
	m.mu.Unlock()

	if changed {
		m.logger.Debug("file changed", "path", path, "size", sig.Size)
		m.bus.Publish(events.NewFileChangedEvent(path, kind))
	}
}

// signature stats path and hashes it when it is small enough.
func (m *Monitor) signature(path string) (core.Signature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return core.Signature{}, err
	}
	sig := core.Signature{ModTime: info.ModTime(), Size: info.Size()}
	if m.hashThreshold > 0 && info.Mode().IsRegular() && info.Size() <= m.hashThreshold {
		data, err := fsutil.ReadFileScoped(path)
		if err != nil {
			return core.Signature{}, err
		}
		sum := sha256.Sum256(data)
		sig.Hash = hex.EncodeToString(sum[:])
		sig.Size = int64(len(data))
	}
	return sig, nil
}

// Start begins the polling loop. Calling Start on a running monitor is a
// no-op. The loop ends when ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	if m.running {
		m.runMu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	if m.notify {
		if err := m.startWatcher(loopCtx); err != nil {
			m.logger.Warn("fsnotify unavailable, polling only", "error", err)
		}
	}
	done := m.done
	m.runMu.Unlock()

	go m.loop(loopCtx, done)

	m.mu.RLock()
	n := len(m.paths)
	m.mu.RUnlock()
	m.logger.Info("monitor started", "paths", n, "interval", m.interval)
	m.bus.Publish(events.NewMonitorStartedEvent(n))
	return nil
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		case <-m.kick:
			m.Tick(ctx)
		}
	}
}

// Stop halts the polling loop and waits for it to exit. An in-flight tick
// finishes the path it is checking first. Stop is idempotent.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	if !m.running {
		m.runMu.Unlock()
		return
	}
	m.running = false
	cancel, done, w := m.cancel, m.done, m.watcher
	m.watcher = nil
	m.watched = make(map[string]bool)
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.runMu.Unlock()

	cancel()
	<-done
	if w != nil {
		w.Close()
	}
	m.logger.Info("monitor stopped")
	m.bus.Publish(events.NewMonitorStoppedEvent())
}

// Running reports whether the polling loop is active.
func (m *Monitor) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.running
}

// TriggerTick asks the running loop for an early tick. It never blocks.
func (m *Monitor) TriggerTick() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}
