package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads a config.yaml's tunables whenever it changes on disk,
// without ever touching the structural fields (Home, SocketPath,
// VectorDim) a running process already opened its stores against.
// Grounded on fsnotify's standard watch-a-directory idiom (the dependency
// is already part of the pack's stack, per go.mod, though no example repo
// exercises it directly) — watching the parent directory rather than the
// file itself survives editors that replace the file via rename-on-save.
type Watcher struct {
	mu       sync.RWMutex
	path     string
	current  *Config
	fsw      *fsnotify.Watcher
	onChange func(*Config)
	done     chan struct{}
}

// WatchFile starts watching <home>/config.yaml for changes, applying each
// reload to a copy of initial and invoking onChange (if non-nil) with the
// result. Call Close to stop watching.
func WatchFile(initial *Config, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(initial.Home, "config.yaml")
	if err := fsw.Add(initial.Home); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		current:  initial,
		fsw:      fsw,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watcher error")
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	next := *w.current
	w.mu.Unlock()

	if err := next.mergeYAMLFile(w.path); err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("config reload failed, keeping previous tunables")
		return
	}

	w.mu.Lock()
	w.current = &next
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(&next)
	}
}

// Current returns the most recently applied configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cfg := *w.current
	return &cfg
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
