// Package classify turns raw editor change events into a small number of
// high-confidence "AI-generated" classifications.
//
// Detection is two-tier. A large multi-line insertion delivered in one
// event is classified immediately. Anything smaller is coalesced in a
// per-file buffer for a short window, because generators that stream
// their output produce several qualifying changes within a few hundred
// milliseconds while a human typing keystroke-by-keystroke never does.
// An ordered reject chain in front of both tiers filters typing,
// auto-indent, autocomplete, bracket-matching, and paste.
package classify

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"provmark/internal/event"
	"provmark/internal/marker"
)

// Detection thresholds. MinChars is configurable; the rest are fixed
// shape heuristics.
const (
	// whitespaceFloor is the length under which a pure-whitespace
	// insertion is treated as auto-indent.
	whitespaceFloor = 16

	// completionMaxLen is the insertion length under which a
	// replacing insertion is treated as a snippet tab-stop or bracket
	// auto-close.
	completionMaxLen = 15

	// completionRatio is the insertion/replacement length ratio under
	// which a single-line replacing insertion is treated as
	// word-completion.
	completionRatio = 2.0

	// instantMinChars and instantMinLines gate immediate emission:
	// both must be cleared by a single event.
	instantMinChars = 80
	instantMinLines = 3

	// bufferDiscardFloor discards a flushed buffer whose accumulated
	// trimmed text is shorter than this.
	bufferDiscardFloor = 10

	// bufferEmitChars emits a flushed buffer on length alone, even
	// when it received only one change.
	bufferEmitChars = 50

	// defaultCoalesceWindow is how long a pending buffer waits for the
	// next rapid change before flushing.
	defaultCoalesceWindow = 300 * time.Millisecond
)

// Config is the live-updatable classifier configuration.
type Config struct {
	// Enabled gates the whole engine.
	Enabled bool

	// MinChars is the minimum trimmed insertion length considered for
	// immediate detection. Shorter multi-character insertions still
	// feed the coalescing buffer.
	MinChars int

	// CharsPerSecond is a sensitivity knob used only to phrase the
	// human-readable reason on emitted results; it gates nothing.
	CharsPerSecond float64

	// CoalesceWindow overrides the default coalescing window when
	// positive.
	CoalesceWindow time.Duration
}

// DefaultConfig returns the classifier defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		MinChars:       6,
		CharsPerSecond: 120,
		CoalesceWindow: defaultCoalesceWindow,
	}
}

// Suppressor reports whether a document identity is currently being
// written to by the annotation writer. Events from suppressed documents
// are the writer's own edits and must never classify.
type Suppressor interface {
	Suppressed(key string) bool
}

// PasteDetector is the clipboard heuristic consulted inside the reject
// chain.
type PasteDetector interface {
	WasPasted(insertedText string) bool
}

// Document is the minimal document surface the classifier reads.
type Document interface {
	URI() string
}

// pending accumulates rapid changes for one file between flushes.
type pending struct {
	text        string
	charCount   int
	startLine   int
	endLine     int
	firstSeen   time.Time
	lastSeen    time.Time
	changeCount int
	timer       Timer
}

// Classifier is the coalescing detection engine. One instance owns all
// per-file buffers; collaborators receive it explicitly.
type Classifier struct {
	mu sync.Mutex

	cfg       Config
	clock     Clock
	paste     PasteDetector
	suppress  Suppressor
	log       *slog.Logger
	buffers   map[string]*pending
	uriByKey  map[string]string
	callbacks []func(event.Result)
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock substitutes the timer source (tests use a virtual clock).
func WithClock(c Clock) Option {
	return func(cl *Classifier) { cl.clock = c }
}

// New creates a classifier. paste and suppress may be nil, disabling the
// corresponding reject-chain checks.
func New(cfg Config, paste PasteDetector, suppress Suppressor, log *slog.Logger, opts ...Option) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	c := &Classifier{
		cfg:      cfg,
		clock:    RealClock(),
		paste:    paste,
		suppress: suppress,
		log:      log.With("component", "classify"),
		buffers:  make(map[string]*pending),
		uriByKey: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnResult registers a callback invoked for every emitted classification.
// Callbacks run synchronously in registration order.
func (c *Classifier) OnResult(fn func(event.Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// SetConfig replaces the live configuration.
func (c *Classifier) SetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

func (c *Classifier) window() time.Duration {
	if c.cfg.CoalesceWindow > 0 {
		return c.cfg.CoalesceWindow
	}
	return defaultCoalesceWindow
}

// ProcessChange runs one content-change sub-event through the reject
// chain and either emits, buffers, or drops it. A panic while processing
// one event is absorbed so it cannot stop processing of subsequent
// events.
func (c *Classifier) ProcessChange(doc Document, change event.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic processing change", "uri", change.URI, "panic", fmt.Sprint(r))
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.Enabled {
		return
	}

	uri := change.URI
	if uri == "" && doc != nil {
		uri = doc.URI()
	}

	// Internal surfaces (output, debug, diff, search views) are checked
	// before anything is logged: diagnostic output written to such a
	// surface would otherwise feed back into this very entry point.
	if isInternalURI(uri) {
		return
	}

	key := event.FileKey(uri)

	if c.suppress != nil && c.suppress.Suppressed(key) {
		return
	}

	text := change.Text
	if len(text) == 0 {
		return
	}

	if marker.ContainsMarker(text) {
		return
	}

	if len(text) == 1 && change.ReplacedLength == 0 {
		return
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" && len(text) < whitespaceFloor {
		return
	}

	if len(trimmed) < c.cfg.MinChars {
		// Too small to judge alone, but a burst of these inside the
		// coalescing window is exactly what a streaming generator
		// produces.
		c.bufferChange(key, uri, change)
		return
	}

	if c.paste != nil && c.paste.WasPasted(text) {
		c.emitLocked(event.Result{
			Classification: event.ClassPasted,
			URI:            uri,
			AnchorLine:     change.Start.Line,
			Text:           text,
			ChangeCount:    1,
			Reason:         "matches clipboard contents",
			Timestamp:      c.clock.Now(),
		})
		return
	}

	lineCount := change.LineCount()

	if change.ReplacedLength > 0 && lineCount == 1 &&
		float64(len(text)) < completionRatio*float64(change.ReplacedLength) {
		return
	}

	if change.ReplacedLength > 0 && len(text) < completionMaxLen {
		return
	}

	if len(trimmed) >= instantMinChars && lineCount >= instantMinLines {
		// An instant large block supersedes any pending buffer.
		c.flushLocked(key, "superseded by large event")
		c.emitLocked(event.Result{
			Classification: event.ClassAILikely,
			URI:            uri,
			AnchorLine:     change.Start.Line,
			Text:           text,
			ChangeCount:    1,
			Reason: fmt.Sprintf("instant %d-line block of %d chars (sensitivity %.0f cps)",
				lineCount, len(trimmed), c.cfg.CharsPerSecond),
			Timestamp: c.clock.Now(),
		})
		return
	}

	c.bufferChange(key, uri, change)
}

// bufferChange adds a change to the file's pending buffer, creating it
// if needed. A change arriving after the coalescing window forces the
// stale buffer to flush first. Callers hold c.mu.
func (c *Classifier) bufferChange(key, uri string, change event.ChangeEvent) {
	now := c.clock.Now()

	buf := c.buffers[key]
	if buf != nil && now.Sub(buf.lastSeen) > c.window() {
		c.flushLocked(key, "window expired before next change")
		buf = nil
	}

	endLine := change.Start.Line + change.LineCount() - 1

	if buf == nil {
		buf = &pending{
			text:        change.Text,
			charCount:   len(change.Text),
			startLine:   change.Start.Line,
			endLine:     endLine,
			firstSeen:   now,
			lastSeen:    now,
			changeCount: 1,
		}
		buf.timer = c.clock.AfterFunc(c.window(), func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.flushLocked(key, "coalescing window elapsed")
		})
		c.buffers[key] = buf
		// The first change's URI anchors the emitted result; later
		// changes may arrive from alternate views of the same file.
		c.uriByKey[key] = uri
		return
	}

	buf.text += change.Text
	buf.charCount += len(change.Text)
	buf.changeCount++
	buf.lastSeen = now
	if change.Start.Line < buf.startLine {
		buf.startLine = change.Start.Line
	}
	if endLine > buf.endLine {
		buf.endLine = endLine
	}
	buf.timer.Reset(c.window())
}

// flushLocked empties the pending buffer for key and decides whether the
// accumulated text warrants emission. Callers hold c.mu.
func (c *Classifier) flushLocked(key, cause string) {
	buf := c.buffers[key]
	if buf == nil {
		return
	}
	delete(c.buffers, key)
	buf.timer.Stop()

	uri := key
	if u, ok := c.uriByKey[key]; ok {
		uri = u
		delete(c.uriByKey, key)
	}

	trimmed := strings.TrimSpace(buf.text)
	if len(trimmed) < bufferDiscardFloor {
		return
	}

	singleLine := !strings.Contains(strings.TrimSpace(buf.text), "\n")
	if buf.changeCount == 1 && singleLine && len(trimmed) < bufferEmitChars {
		// One change that never grew: indistinguishable from a short
		// completion.
		return
	}

	if buf.changeCount >= 2 || len(trimmed) >= bufferEmitChars {
		c.emitLocked(event.Result{
			Classification: event.ClassAILikely,
			URI:            uri,
			AnchorLine:     buf.startLine,
			Text:           buf.text,
			ChangeCount:    buf.changeCount,
			Reason: fmt.Sprintf("%d rapid changes totaling %d chars in %s (%s)",
				buf.changeCount, buf.charCount,
				buf.lastSeen.Sub(buf.firstSeen).Round(time.Millisecond), cause),
			Timestamp: c.clock.Now(),
		})
	}
}

// emitLocked delivers a result to every registered callback. Callers
// hold c.mu; AILikely and Pasted results are both delivered so callers
// can surface paste statistics, but only AILikely is actionable.
func (c *Classifier) emitLocked(res event.Result) {
	c.log.Debug("classified",
		"uri", res.URI,
		"class", string(res.Classification),
		"chars", len(res.Text),
		"changes", res.ChangeCount,
		"reason", res.Reason)
	for _, fn := range c.callbacks {
		fn(res)
	}
}

// Flush forces the pending buffer for a URI to flush immediately.
func (c *Classifier) Flush(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked(event.FileKey(uri), "forced flush")
}

// PendingCount returns the number of files with a pending buffer.
func (c *Classifier) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffers)
}

// isInternalURI reports whether a document identity refers to a
// synthetic editor surface rather than a real file. Anything with a
// scheme other than file (or no scheme) is internal: output panes,
// debug consoles, diff and search views.
func isInternalURI(uri string) bool {
	i := strings.Index(uri, ":")
	if i < 0 {
		return false
	}
	scheme := uri[:i]
	switch scheme {
	case "file", "untitled":
		return false
	}
	// Windows drive letters ("C:\...") are paths, not schemes.
	if len(scheme) == 1 {
		return false
	}
	return true
}
