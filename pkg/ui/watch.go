package ui

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/argus-labs/cardinal-extras/pkg/ecs"
	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
)

const reloadDebounce = 50 * time.Millisecond

// MenuWatcher reloads a menu spec file whenever it's written. Editors often replace files instead
// of writing them in place, so the directory is watched rather than the file.
type MenuWatcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending *MenuSpec
	err     error

	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// WatchMenu starts watching the menu spec at path.
func WatchMenu(path string) (*MenuWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", path)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "failed to create watcher")
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, eris.Wrapf(err, "failed to watch %s", filepath.Dir(abs))
	}

	mw := &MenuWatcher{
		path:    abs,
		watcher: fw,
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go mw.run()
	return mw, nil
}

// Close stops watching. It's safe to call more than once.
func (m *MenuWatcher) Close() error {
	var err error
	m.once.Do(func() {
		close(m.closeCh)
		err = m.watcher.Close()
		<-m.done
	})
	return err
}

// Take returns the newest spec loaded since the last call, if any, and the newest load error.
func (m *MenuWatcher) Take() (*MenuSpec, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	spec, err := m.pending, m.err
	m.pending, m.err = nil, nil
	return spec, err
}

func (m *MenuWatcher) run() {
	defer close(m.done)

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != m.path || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			// Writes come in bursts, so wait for them to settle before reading.
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			reload = timer.C
		case <-reload:
			reload = nil
			m.load()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.setErr(eris.Wrap(err, "watch failed"))
		case <-m.closeCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (m *MenuWatcher) load() {
	spec, err := LoadMenu(m.path)
	if err != nil {
		m.setErr(err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = &spec
}

func (m *MenuWatcher) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MenuWatcher) reloadSystem() ecs.Runnable {
	return ecs.NewExclusiveSystem("ui.ReloadMenu", &menuState{}, func(state *menuState) error {
		spec, err := m.Take()
		if err != nil {
			state.Logger().Warn().Err(err).Str("path", m.path).Msg("menu reload failed")
		}
		if spec == nil {
			return nil
		}
		if _, err := ReplaceMenu(state.World(), *spec); err != nil {
			return err
		}
		state.Logger().Info().Str("menu", spec.Name).Msg("menu reloaded")
		return nil
	})
}
