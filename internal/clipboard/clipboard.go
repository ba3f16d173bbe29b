// Package clipboard detects paste operations by watching clipboard state.
//
// The monitor keeps the last known clipboard text (refreshed on a fixed
// polling interval and on every intercepted paste command) and decides
// whether a given inserted string plausibly came from a paste. This is
// more reliable than size heuristics alone: an intercepted paste command
// sets a short-lived flag that overrides everything else, and content
// matching catches pastes delivered without the command (middle-click,
// drag-and-drop).
package clipboard

import (
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
)

// Accessor is the capability interface for reading the system clipboard.
// The default implementation shells through github.com/atotto/clipboard;
// tests substitute an in-memory fake.
type Accessor interface {
	ReadText() (string, error)
}

type systemAccessor struct{}

func (systemAccessor) ReadText() (string, error) {
	return clipboard.ReadAll()
}

// SystemAccessor returns an Accessor backed by the OS clipboard.
func SystemAccessor() Accessor {
	return systemAccessor{}
}

// Matching thresholds. Exact matches need a small floor so trivial
// snippets ("x", ")") never count; substring containment needs a larger
// floor because short clipboard content appears in almost any insertion.
const (
	exactMatchMinLen    = 8
	containmentMinLen   = 30
	pasteFlagWindow     = 400 * time.Millisecond
	defaultPollInterval = 500 * time.Millisecond
)

// Monitor tracks clipboard contents and the paste-in-progress flag.
type Monitor struct {
	mu sync.RWMutex

	accessor Accessor
	interval time.Duration

	lastText    string
	lastReadAt  time.Time
	pasteFlagAt time.Time

	now func() time.Time

	stopCh  chan struct{}
	running bool
}

// NewMonitor creates a clipboard monitor polling at interval (a
// non-positive interval uses the default). A nil accessor degrades to
// flag-only paste detection (clipboard reads are skipped entirely).
func NewMonitor(accessor Accessor, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Monitor{
		accessor: accessor,
		interval: interval,
		now:      time.Now,
	}
}

// Start begins polling the clipboard on the monitor's interval.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	interval := m.interval
	m.mu.Unlock()

	go m.pollLoop(interval)
}

// Stop halts polling.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
}

func (m *Monitor) pollLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Refresh()
		}
	}
}

// Refresh re-reads the clipboard. Read errors are swallowed: the last
// known contents stay in place and detection degrades gracefully.
func (m *Monitor) Refresh() {
	if m.accessor == nil {
		return
	}
	text, err := m.accessor.ReadText()
	if err != nil {
		return
	}

	m.mu.Lock()
	m.lastText = text
	m.lastReadAt = m.now()
	m.mu.Unlock()
}

// NotePaste records that a paste command was intercepted. For a short
// window afterward every insertion is treated as pasted, and the
// clipboard is re-read immediately so content matching stays current.
func (m *Monitor) NotePaste() {
	m.mu.Lock()
	m.pasteFlagAt = m.now()
	m.mu.Unlock()

	m.Refresh()
}

// WasPasted reports whether insertedText plausibly came from a paste.
//
// Decision order:
//  1. paste-in-progress flag still inside its window;
//  2. exact match (trimmed) against the last clipboard contents, when
//     both clear the small length floor;
//  3. clipboard contents (trimmed) contained in the insertion, when the
//     clipboard content clears the larger floor.
func (m *Monitor) WasPasted(insertedText string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.pasteFlagAt.IsZero() && m.now().Sub(m.pasteFlagAt) < pasteFlagWindow {
		return true
	}

	clip := strings.TrimSpace(m.lastText)
	ins := strings.TrimSpace(insertedText)
	if clip == "" || ins == "" {
		return false
	}

	if len(clip) >= exactMatchMinLen && len(ins) >= exactMatchMinLen && clip == ins {
		return true
	}

	if len(clip) >= containmentMinLen && strings.Contains(ins, clip) {
		return true
	}

	return false
}

// LastText returns the most recently observed clipboard contents.
func (m *Monitor) LastText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastText
}
