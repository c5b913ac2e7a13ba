package app

import (
	"os"
	"time"

	"painting-enhancer/internal/config"
)

// ConfigWatcher polls the configuration file and hands each valid new
// version to a callback. Invalid edits are reported and skipped so a typo
// does not take the running configuration down.
type ConfigWatcher struct {
	path          string
	modTime       time.Time
	checkInterval time.Duration
	stopCh        chan struct{}
	onChange      func(config.Config)
	onError       func(error)
}

// NewConfigWatcher watches path. Returns nil if path is empty.
func NewConfigWatcher(path string, checkInterval time.Duration) *ConfigWatcher {
	if path == "" {
		return nil
	}
	w := &ConfigWatcher{
		path:          path,
		checkInterval: checkInterval,
		stopCh:        make(chan struct{}),
	}
	w.modTime, _ = w.currentModTime()
	return w
}

// OnChange sets the callback for a reloaded configuration. It is called from
// a background goroutine.
func (w *ConfigWatcher) OnChange(callback func(config.Config)) {
	w.onChange = callback
}

// OnError sets the callback for a configuration that failed to load.
func (w *ConfigWatcher) OnError(callback func(error)) {
	w.onError = callback
}

// Start begins watching in a background goroutine.
func (w *ConfigWatcher) Start() {
	w.stopCh = make(chan struct{})
	go w.watchLoop()
}

// Stop stops the watcher goroutine.
func (w *ConfigWatcher) Stop() {
	close(w.stopCh)
}

func (w *ConfigWatcher) watchLoop() {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check reloads the file if it changed since the last check.
func (w *ConfigWatcher) check() {
	mod, err := w.currentModTime()
	if err != nil || !mod.After(w.modTime) {
		return
	}
	w.modTime = mod

	cfg, err := config.Load(w.path)
	if err != nil {
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

func (w *ConfigWatcher) currentModTime() (time.Time, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Path returns the watched file.
func (w *ConfigWatcher) Path() string {
	return w.path
}
