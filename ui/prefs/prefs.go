// Package prefs keeps the window settings that survive a restart: recent
// locations, the comparison controls and grid overlay visibility.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const fileName = "preferences.json"

// Values are the stored preferences.
type Values struct {
	LastDirectory string  `json:"lastDirectory,omitempty"`
	LastImage     string  `json:"lastImage,omitempty"`
	CompareMode   string  `json:"compareMode,omitempty"`
	CompareAmount float64 `json:"compareAmount"`
	ShowGrid      bool    `json:"showGrid"`
}

// Defaults returns the values used when nothing has been saved. Fields a
// file leaves out keep these too.
func Defaults() Values {
	return Values{CompareAmount: 0.5, ShowGrid: true}
}

// Prefs holds the preferences and the file they are saved to.
type Prefs struct {
	mu    sync.RWMutex
	path  string
	vals  Values
	dirty bool
}

// Load reads preferences from the user config directory,
// ~/.config/painting-enhancer/preferences.json on Linux.
func Load() *Prefs {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return LoadFrom(filepath.Join(configDir, "painting-enhancer", fileName))
}

// LoadFrom reads preferences from path. A missing or corrupt file gives the
// defaults, which are saved to path on the next change.
func LoadFrom(path string) *Prefs {
	p := &Prefs{path: path, vals: Defaults()}
	data, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	vals := Defaults()
	if err := json.Unmarshal(data, &vals); err != nil {
		return p
	}
	vals.CompareAmount = min(max(vals.CompareAmount, 0), 1)
	p.vals = vals
	return p
}

// Path returns the file the preferences are saved to.
func (p *Prefs) Path() string {
	return p.path
}

// Get returns a copy of the current values.
func (p *Prefs) Get() Values {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.vals
}

// Update changes the values through fn. Save writes only after an update
// actually changed something.
func (p *Prefs) Update(fn func(v *Values)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	before := p.vals
	fn(&p.vals)
	if p.vals != before {
		p.dirty = true
	}
}

// Changed reports whether there are unsaved changes.
func (p *Prefs) Changed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirty
}

// Save writes unsaved changes. The file is replaced through a rename so a
// crash never leaves it half written.
func (p *Prefs) Save() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.dirty {
		return nil
	}

	data, err := json.MarshalIndent(p.vals, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp)
		return err
	}
	p.dirty = false
	return nil
}
