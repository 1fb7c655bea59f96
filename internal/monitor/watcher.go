package monitor

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// startWatcher watches the parent directories of registered paths. Editors
// and Rocoto replace files by rename, which a per-file watch would lose.
// Must be called with runMu held.
func (m *Monitor) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = watcher

	m.mu.RLock()
	dirs := make(map[string]bool)
	for p := range m.paths {
		dirs[filepath.Dir(p)] = true
	}
	m.mu.RUnlock()

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			m.logger.Warn("cannot watch directory", "dir", dir, "error", err)
			continue
		}
		m.watched[dir] = true
	}

	go m.watchLoop(ctx, watcher)
	return nil
}

// watchDir adds dir to the running watcher, if any.
func (m *Monitor) watchDir(dir string) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.watcher == nil || m.watched[dir] {
		return
	}
	if err := m.watcher.Add(dir); err == nil {
		m.watched[dir] = true
	}
}

func (m *Monitor) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if m.isRegistered(event.Name) {
				m.scheduleTick()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Debug("fsnotify error", "error", err)
		}
	}
}

func (m *Monitor) isRegistered(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.paths[abs]
	return ok
}

// scheduleTick debounces bursts of notifications into one early tick.
func (m *Monitor) scheduleTick() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if !m.running {
		return
	}
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.debounce = time.AfterFunc(notifyDebounce, m.TriggerTick)
}
