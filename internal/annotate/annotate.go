// Package annotate writes provenance marker blocks around AI-generated
// insertions.
//
// The writer owns all per-file mutable state: the job lock serializing
// writes, the cooldown table, the "before" snapshots the diff resolver
// works against, and the suppression set that keeps its own edits from
// re-triggering the classifier. Writes are idempotent: a range already
// inside an existing marker block is never annotated twice.
package annotate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"provmark/internal/diffrange"
	"provmark/internal/document"
	"provmark/internal/event"
	"provmark/internal/marker"
)

// Doc is the full document surface the writer needs: read access,
// atomic edits, and persistence.
type Doc interface {
	document.Document
	document.EditApplier
	document.Saver
}

// Source acquires the document for a URI, whether it is an open editor
// buffer or a file that must be read from disk.
type Source interface {
	Acquire(uri string) (Doc, error)
}

// Recorder persists successful annotations; the ledger is best-effort
// and a recording failure never blocks or reverts a write.
type Recorder interface {
	Record(rec Record) error
}

// Record describes one successful annotation.
type Record struct {
	ID             string
	FilePath       string
	StartLine      int
	EndLine        int
	CharCount      int
	ChangeCount    int
	Classification event.Classification
	Reason         string
	CreatedAt      time.Time
}

// Config configures the annotation writer.
type Config struct {
	// Tool names the generator recorded in the start block.
	Tool string

	// Identifier is written as the ID line of the start block. When
	// the identifier source is absent, the placeholder "unknown" is
	// substituted.
	Identifier string

	// Cooldown is the minimum interval between successful writes to
	// the same file.
	Cooldown time.Duration

	// SuppressGrace is how long after a write completes its document
	// stays in the suppression set.
	SuppressGrace time.Duration
}

// DefaultConfig returns the writer defaults.
func DefaultConfig() Config {
	return Config{
		Tool:          "provmark",
		Identifier:    "unknown",
		Cooldown:      2 * time.Second,
		SuppressGrace: 500 * time.Millisecond,
	}
}

// Writer applies provenance annotations, one job at a time per file.
type Writer struct {
	cfg      Config
	source   Source
	suppress *SuppressionSet
	ledger   Recorder
	log      *slog.Logger

	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	cooldowns map[string]time.Time
	snapshots map[string]string
}

// Abort reasons surfaced to the diagnostics sink. None of these are
// failures: an aborted annotation simply means there was nothing to do.
var (
	ErrCooldown       = errors.New("within cooldown interval")
	ErrEmptyRange     = errors.New("no new range resolved")
	ErrAlreadyMarked  = errors.New("range already inside a marker block")
	ErrDocumentClosed = errors.New("document closed")
)

// NewWriter creates an annotation writer. ledger may be nil.
func NewWriter(cfg Config, source Source, suppress *SuppressionSet, ledger Recorder, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Identifier == "" {
		cfg.Identifier = "unknown"
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	if cfg.SuppressGrace <= 0 {
		cfg.SuppressGrace = DefaultConfig().SuppressGrace
	}
	return &Writer{
		cfg:       cfg,
		source:    source,
		suppress:  suppress,
		ledger:    ledger,
		log:       log.With("component", "annotate"),
		locks:     make(map[string]*sync.Mutex),
		cooldowns: make(map[string]time.Time),
		snapshots: make(map[string]string),
	}
}

// Suppression returns the writer's suppression set for wiring into the
// classifier.
func (w *Writer) Suppression() *SuppressionSet {
	return w.suppress
}

// fileLock returns the per-file job lock, creating it on first use.
// Goroutines queue behind it so edits to one file never interleave.
func (w *Writer) fileLock(key string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.locks[key]
	if !ok {
		l = &sync.Mutex{}
		w.locks[key] = l
	}
	return l
}

// Annotate wraps the new-code range of one classification result in
// marker blocks. All failure modes abort the single attempt without
// corrupting snapshot or cooldown state; the returned error is
// diagnostic only and callers must not treat it as fatal.
func (w *Writer) Annotate(res event.Result) error {
	if res.Classification != event.ClassAILikely {
		return nil
	}

	key := event.FileKey(res.URI)
	lock := w.fileLock(key)
	lock.Lock()
	defer lock.Unlock()

	w.mu.Lock()
	last, hasLast := w.cooldowns[key]
	snapshot := w.snapshots[key]
	w.mu.Unlock()

	if hasLast && time.Since(last) < w.cfg.Cooldown {
		return fmt.Errorf("annotate %s: %w", key, ErrCooldown)
	}

	doc, err := w.source.Acquire(res.URI)
	if err != nil {
		w.log.Warn("acquire document", "uri", res.URI, "error", err)
		return fmt.Errorf("annotate %s: %w", key, err)
	}
	if doc.Closed() {
		return fmt.Errorf("annotate %s: %w", key, ErrDocumentClosed)
	}

	current := doc.Text()
	rng := diffrange.Find(current, snapshot, res.Text)
	if rng.Empty() {
		return fmt.Errorf("annotate %s: %w", key, ErrEmptyRange)
	}

	for _, block := range marker.Blocks(current) {
		if block.Contains(rng.Start, rng.End) {
			return fmt.Errorf("annotate %s: %w", key, ErrAlreadyMarked)
		}
	}

	// Suppress every identity referring to this file before touching it,
	// and keep them suppressed for a grace period after completion so
	// the echoed change notification is ignored too.
	suppressKeys := []string{key, event.FileKey(doc.URI()), event.FileKey(doc.Path())}
	w.suppress.Add(suppressKeys...)
	defer w.suppress.RemoveAfter(w.cfg.SuppressGrace, suppressKeys...)

	lang := doc.LanguageID()
	startBlock := marker.StartBlock(lang, w.cfg.Tool, w.cfg.Identifier)
	endBlock := marker.EndBlock(lang)

	// End marker first: inserting at the higher line leaves the start
	// line number untouched within the same atomic edit.
	edits := []document.Edit{
		{Line: rng.End, Text: endBlock},
		{Line: rng.Start, Text: startBlock},
	}
	if err := doc.ApplyEdits(edits); err != nil {
		w.log.Warn("apply edits", "uri", res.URI, "error", err)
		return fmt.Errorf("annotate %s: %w", key, err)
	}

	if err := doc.Save(); err != nil {
		w.log.Warn("save document", "uri", res.URI, "error", err)
		return fmt.Errorf("annotate %s: %w", key, err)
	}

	// The saved content, markers included, becomes the new baseline so
	// this block is never re-diffed as new.
	now := time.Now()
	w.mu.Lock()
	w.cooldowns[key] = now
	w.snapshots[key] = doc.Text()
	w.mu.Unlock()

	w.log.Info("annotated",
		"path", doc.Path(),
		"start_line", rng.Start,
		"end_line", rng.End,
		"changes", res.ChangeCount)

	if w.ledger != nil {
		rec := Record{
			ID:             event.NewID(),
			FilePath:       doc.Path(),
			StartLine:      rng.Start,
			EndLine:        rng.End,
			CharCount:      len(res.Text),
			ChangeCount:    res.ChangeCount,
			Classification: res.Classification,
			Reason:         res.Reason,
			CreatedAt:      now,
		}
		if err := w.ledger.Record(rec); err != nil {
			w.log.Warn("record annotation", "path", doc.Path(), "error", err)
		}
	}

	return nil
}

// TakeSnapshot captures the last known clean content for a file. Called
// on open and on manual save/focus events.
func (w *Writer) TakeSnapshot(uri, content string) {
	key := event.FileKey(uri)
	w.mu.Lock()
	w.snapshots[key] = content
	w.mu.Unlock()
}

// Snapshot returns the stored snapshot for a URI.
func (w *Writer) Snapshot(uri string) (string, bool) {
	key := event.FileKey(uri)
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.snapshots[key]
	return s, ok
}

// OnDocumentClosed purges all per-file state so a long editing session
// does not grow without bound.
func (w *Writer) OnDocumentClosed(uri string) {
	key := event.FileKey(uri)
	w.mu.Lock()
	delete(w.locks, key)
	delete(w.cooldowns, key)
	delete(w.snapshots, key)
	w.mu.Unlock()
	w.suppress.Remove(key)
}
