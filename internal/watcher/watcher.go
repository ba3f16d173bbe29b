// Package watcher monitors files for external changes and feeds the
// classifier's secondary trigger path.
//
// Editor-driven changes arrive over IPC with full event detail; the
// watcher exists for everything else: an external tool rewriting a file
// produces no editor events, only a filesystem change. Files must be
// stable for a debounce interval before they fire, so a generator still
// streaming output is observed exactly once, after it finishes.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event reports a file that changed on disk and went stable.
type Event struct {
	Path      string
	Timestamp time.Time
}

// Config configures a watcher.
type Config struct {
	// Paths are the directories or files to monitor.
	Paths []string

	// IncludePatterns are glob patterns (matched against the base
	// name) a file must match. Empty means everything matches.
	IncludePatterns []string

	// ExcludePatterns are glob patterns for files to skip.
	ExcludePatterns []string

	// Debounce is how long a file must be quiet before firing.
	Debounce time.Duration
}

// Watcher monitors configured paths for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	cfg       Config

	// path -> last modification observation
	state   map[string]time.Time
	stateMu sync.Mutex

	events chan Event
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher.
func New(cfg Config) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = time.Second
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		cfg:       cfg,
		state:     make(map[string]time.Time),
		events:    make(chan Event, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of stable-file events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start begins watching all configured paths.
func (w *Watcher) Start() error {
	for _, path := range w.cfg.Paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if err := w.fsWatcher.Add(absPath); err != nil {
				return err
			}
		} else {
			// Watch the containing directory: editors replace files
			// rather than writing in place.
			if err := w.fsWatcher.Add(filepath.Dir(absPath)); err != nil {
				return err
			}
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	return nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

// matches applies the include/exclude glob patterns to a path.
func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)

	for _, p := range w.cfg.ExcludePatterns {
		if ok, _ := filepath.Match(p, base); ok {
			return false
		}
	}

	if len(w.cfg.IncludePatterns) == 0 {
		return true
	}
	for _, p := range w.cfg.IncludePatterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// eventLoop records write/create notifications for matching files.
func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}

			w.stateMu.Lock()
			w.state[event.Name] = time.Now()
			w.stateMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

// debounceLoop fires events for files that went quiet.
func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	tick := w.cfg.Debounce / 4
	if tick < 100*time.Millisecond {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.fireStable(now)
		}
	}
}

// fireStable emits an event for every tracked file whose last change is
// older than the debounce interval.
func (w *Watcher) fireStable(now time.Time) {
	threshold := now.Add(-w.cfg.Debounce)

	w.stateMu.Lock()
	var stable []string
	for path, lastMod := range w.state {
		if lastMod.Before(threshold) {
			stable = append(stable, path)
		}
	}
	w.stateMu.Unlock()

	for _, path := range stable {
		select {
		case w.events <- Event{Path: path, Timestamp: now}:
			w.stateMu.Lock()
			delete(w.state, path)
			w.stateMu.Unlock()
		default:
			// Channel full: leave the entry; it fires on a later tick.
		}
	}
}

// TrackedFiles returns the number of files awaiting stability.
func (w *Watcher) TrackedFiles() int {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return len(w.state)
}
