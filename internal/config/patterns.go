// Package config contains everything related to configuration
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/orbwatch/internal/logger"
)

// PatternFile is the on-disk JSON shape of the extraction pattern table.
// Empty fields fall back to the built-in defaults, so a user file only
// needs to override what differs for their portal.
type PatternFile struct {
	Balance    []string `json:"balance,omitempty"`
	Generic    []string `json:"generic,omitempty"`
	Script     []string `json:"script,omitempty"`
	Attribute  []string `json:"attribute,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	Markers    []string `json:"markers,omitempty"`
	Selectors  []string `json:"selectors,omitempty"`
	Probes     []string `json:"probes,omitempty"`
	Indicators []string `json:"indicators,omitempty"`
}

// Patterns is the compiled extraction pattern table. Regex groups are
// ordered by priority: service-specific balance patterns first, generic
// fallbacks last.
type Patterns struct {
	Balance    []*regexp.Regexp
	Generic    []*regexp.Regexp
	Script     []*regexp.Regexp
	Attribute  []*regexp.Regexp
	Labels     []string
	Markers    []string
	Selectors  []string
	Probes     []string
	Indicators []string
}

// defaultPatternFile holds the built-in table, tuned for Orb-style
// billing portals but intentionally generic in its fallbacks.
var defaultPatternFile = PatternFile{
	Balance: []string{
		`(?i)credit balance[:\s]*([\d,]+(?:\.\d+)?)`,
		`(?i)([\d,]+(?:\.\d+)?)\s*user messages`,
		`(?i)remaining balance[:\s]*([\d,]+(?:\.\d+)?)`,
	},
	Generic: []string{
		`(?i)balance[:\s]*([\d,]+(?:\.\d+)?)`,
		`(?i)([\d,]+(?:\.\d+)?)\s*credits?\b`,
		`(?i)([\d,]+(?:\.\d+)?)\s*messages?\b`,
	},
	Script: []string{
		`"balance"\s*:\s*"?([\d,.]+)"?`,
		`"credits?"\s*:\s*"?([\d,.]+)"?`,
		`"amount"\s*:\s*"?([\d,.]+)"?`,
		`(?i)balance["']?\s*[:=]\s*["']?([\d,.]+)`,
	},
	Attribute: []string{
		`(?i)data-balance=["']([\d,.]+)["']`,
		`(?i)data-credits?=["']([\d,.]+)["']`,
		`(?i)data-amount=["']([\d,.]+)["']`,
	},
	Labels: []string{
		"credit balance",
		"current balance",
		"remaining balance",
		"user messages",
	},
	Markers: []string{
		"credit balance",
		"user messages",
		"ledger",
	},
	Selectors: []string{
		`[data-testid*="balance"]`,
		`[class*="balance"]`,
		`[class*="credit"]`,
		`[data-balance]`,
	},
	Probes: []string{
		`(() => { const el = document.querySelector('[data-testid*="balance"]'); return el ? el.textContent : ''; })()`,
		`(() => { const m = document.body.innerText.match(/credit balance[:\s]*([\d,]+)/i); return m ? m[1] : ''; })()`,
	},
	Indicators: []string{
		"credit balance",
		"invoice",
		"billing",
		"user messages",
	},
}

// DefaultPatterns returns the compiled built-in pattern table.
func DefaultPatterns() *Patterns {
	p, err := compilePatterns(&defaultPatternFile)
	if err != nil {
		// Built-ins are fixed at compile time; a failure here is a bug.
		panic(fmt.Sprintf("invalid built-in patterns: %v", err))
	}
	return p
}

// LoadPatterns reads a pattern file and merges it over the defaults.
// A missing file yields the defaults; a malformed file is an error.
func LoadPatterns(path string) (*Patterns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPatterns(), nil
		}
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}

	var pf PatternFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file: %w", err)
	}

	merged := mergePatternFile(&defaultPatternFile, &pf)
	p, err := compilePatterns(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern file: %w", err)
	}
	return p, nil
}

func mergePatternFile(base, override *PatternFile) *PatternFile {
	merged := *base
	if len(override.Balance) > 0 {
		merged.Balance = override.Balance
	}
	if len(override.Generic) > 0 {
		merged.Generic = override.Generic
	}
	if len(override.Script) > 0 {
		merged.Script = override.Script
	}
	if len(override.Attribute) > 0 {
		merged.Attribute = override.Attribute
	}
	if len(override.Labels) > 0 {
		merged.Labels = override.Labels
	}
	if len(override.Markers) > 0 {
		merged.Markers = override.Markers
	}
	if len(override.Selectors) > 0 {
		merged.Selectors = override.Selectors
	}
	if len(override.Probes) > 0 {
		merged.Probes = override.Probes
	}
	if len(override.Indicators) > 0 {
		merged.Indicators = override.Indicators
	}
	return &merged
}

func compilePatterns(pf *PatternFile) (*Patterns, error) {
	p := &Patterns{
		Labels:     pf.Labels,
		Markers:    pf.Markers,
		Selectors:  pf.Selectors,
		Probes:     pf.Probes,
		Indicators: pf.Indicators,
	}

	groups := []struct {
		name string
		src  []string
		dst  *[]*regexp.Regexp
	}{
		{"balance", pf.Balance, &p.Balance},
		{"generic", pf.Generic, &p.Generic},
		{"script", pf.Script, &p.Script},
		{"attribute", pf.Attribute, &p.Attribute},
	}

	for _, g := range groups {
		for _, src := range g.src {
			re, err := regexp.Compile(src)
			if err != nil {
				return nil, fmt.Errorf("invalid %s pattern %q: %w", g.name, src, err)
			}
			if re.NumSubexp() < 1 {
				return nil, fmt.Errorf("%s pattern %q has no capture group", g.name, src)
			}
			*g.dst = append(*g.dst, re)
		}
	}

	return p, nil
}

// PatternWatcher keeps a pattern table hot-reloaded from disk. Invalid
// edits keep the previous table in effect.
type PatternWatcher struct {
	mu            sync.RWMutex
	patterns      *Patterns
	path          string
	watcher       *fsnotify.Watcher
	stopChan      chan struct{}
	debounceTimer *time.Timer
}

// WatchPatterns loads the pattern file and starts watching it for changes.
func WatchPatterns(path string) (*PatternWatcher, error) {
	patterns, err := LoadPatterns(path)
	if err != nil {
		return nil, err
	}

	w := &PatternWatcher{
		patterns: patterns,
		path:     path,
		stopChan: make(chan struct{}),
	}

	if err := ensureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start pattern watcher: %w", err)
	}
	w.watcher = watcher

	// Watch the directory (to catch file creation/deletion)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to watch pattern directory: %w", err)
	}

	go w.watchLoop()
	return w, nil
}

// Current returns the active pattern table.
func (w *PatternWatcher) Current() *Patterns {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.patterns
}

// Close stops the watcher.
func (w *PatternWatcher) Close() error {
	close(w.stopChan)
	return w.watcher.Close()
}

// watchLoop handles file system events with debouncing.
func (w *PatternWatcher) watchLoop() {
	const debounceInterval = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				// Debounce rapid changes
				if w.debounceTimer != nil {
					w.debounceTimer.Stop()
				}
				w.debounceTimer = time.AfterFunc(debounceInterval, func() {
					w.reload()
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("pattern watcher error", "error", err)

		case <-w.stopChan:
			return
		}
	}
}

// reload swaps in the updated table, keeping the old one on failure.
func (w *PatternWatcher) reload() {
	patterns, err := LoadPatterns(w.path)
	if err != nil {
		logger.Warn("keeping previous pattern table", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	w.patterns = patterns
	w.mu.Unlock()

	logger.Info("reloaded extraction patterns", "path", w.path)
}
