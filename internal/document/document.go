// Package document models the editor-side documents the engine operates
// on. A Buffer mirrors one open editor buffer: it is fed by change
// events and full-content syncs arriving over IPC, and can be annotated
// and saved back to disk. The Store owns all open buffers by URI.
//
// The annotation writer only depends on the Document and EditApplier
// interfaces, so tests drive it with plain in-memory buffers and no live
// editor is needed.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"provmark/internal/marker"
)

// Document is the read surface the engine needs from an open document.
type Document interface {
	URI() string
	Path() string
	Text() string
	LineCount() int
	Line(i int) string
	LanguageID() string
	Closed() bool
}

// Edit inserts text at the start of a line. When Line is at or past the
// document's last line, the text is appended after the final line with a
// preceding line break.
type Edit struct {
	Line int
	Text string
}

// EditApplier applies a batch of insertions as one atomic operation:
// either every edit lands or none does. Edits are applied in the order
// given; callers order them so earlier insertions do not shift the line
// numbers of later ones.
type EditApplier interface {
	ApplyEdits(edits []Edit) error
}

// Saver persists a document to its backing file.
type Saver interface {
	Save() error
}

// Buffer is an in-memory document mirroring an editor buffer.
type Buffer struct {
	mu sync.RWMutex

	uri      string
	path     string
	language string
	content  string
	closed   bool
}

// NewBuffer creates a buffer for the given URI with initial content.
// The language is resolved from the file extension when languageID is
// empty.
func NewBuffer(uri, languageID, content string) *Buffer {
	path := uriPath(uri)
	if languageID == "" {
		languageID = marker.LanguageForExt(filepath.Ext(path))
	}
	return &Buffer{
		uri:      uri,
		path:     path,
		language: languageID,
		content:  content,
	}
}

// OpenFile creates a buffer backed by an on-disk file, reading its
// current content. Used by the filesystem-watcher trigger path where no
// editor buffer exists.
func OpenFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", path, err)
	}
	return NewBuffer(path, "", string(data)), nil
}

func uriPath(uri string) string {
	if strings.HasPrefix(uri, "file://") {
		return strings.TrimPrefix(uri, "file://")
	}
	return uri
}

// URI returns the document's identity as reported by the editor.
func (b *Buffer) URI() string { return b.uri }

// Path returns the filesystem path backing the document.
func (b *Buffer) Path() string { return b.path }

// LanguageID returns the document's language identifier.
func (b *Buffer) LanguageID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.language
}

// Text returns the full document content.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.content
}

// LineCount returns the number of lines in the document.
func (b *Buffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.Count(b.content, "\n") + 1
}

// Line returns the text of line i without its trailing newline, or ""
// when i is out of range.
func (b *Buffer) Line(i int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	lines := strings.Split(b.content, "\n")
	if i < 0 || i >= len(lines) {
		return ""
	}
	return lines[i]
}

// Closed reports whether the editor has closed this document.
func (b *Buffer) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// SetClosed marks the buffer closed.
func (b *Buffer) SetClosed() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Sync replaces the buffer content wholesale (full-content sync from the
// editor on open and save).
func (b *Buffer) Sync(content string) {
	b.mu.Lock()
	b.content = content
	b.mu.Unlock()
}

// ApplyChange applies one editor content change: replacedLength bytes at
// (line, column) are replaced by text. Out-of-range positions clamp to
// the document bounds rather than erroring; the editor is authoritative
// and a mirror that drifts gets corrected by the next full sync.
func (b *Buffer) ApplyChange(line, column, replacedLength int, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	off := b.offsetLocked(line, column)
	end := off + replacedLength
	if end > len(b.content) {
		end = len(b.content)
	}
	b.content = b.content[:off] + text + b.content[end:]
}

// offsetLocked converts a (line, column) position to a byte offset.
func (b *Buffer) offsetLocked(line, column int) int {
	off := 0
	for i := 0; i < line; i++ {
		nl := strings.IndexByte(b.content[off:], '\n')
		if nl < 0 {
			return len(b.content)
		}
		off += nl + 1
	}
	off += column
	if off > len(b.content) {
		off = len(b.content)
	}
	return off
}

// ApplyEdits inserts each edit's text at the start of its line, as one
// atomic operation. Edits must be ordered so earlier insertions do not
// shift later line numbers (the writer inserts end marker before start
// marker for this reason).
func (b *Buffer) ApplyEdits(edits []Edit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("apply edits: document %s is closed", b.uri)
	}

	content := b.content
	for _, e := range edits {
		lines := strings.Split(content, "\n")
		switch {
		case e.Line < len(lines):
			lines[e.Line] = e.Text + lines[e.Line]
			content = strings.Join(lines, "\n")
		case lines[len(lines)-1] == "":
			// Only the synthetic trailing empty element (file ending in
			// a newline) is past the edit: land there instead of
			// appending, which would leave a stray blank line.
			lines[len(lines)-1] = e.Text
			content = strings.Join(lines, "\n")
		default:
			content = content + "\n" + strings.TrimSuffix(e.Text, "\n")
		}
	}
	b.content = content
	return nil
}

// Save writes the buffer content to its backing file.
func (b *Buffer) Save() error {
	b.mu.RLock()
	content := b.content
	path := b.path
	b.mu.RUnlock()

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// Store tracks open documents by URI.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*Buffer
}

// NewStore creates an empty document store.
func NewStore() *Store {
	return &Store{docs: make(map[string]*Buffer)}
}

// Open registers a document, replacing any previous buffer for the URI.
func (s *Store) Open(uri, languageID, content string) *Buffer {
	b := NewBuffer(uri, languageID, content)
	s.mu.Lock()
	s.docs[uri] = b
	s.mu.Unlock()
	return b
}

// Get returns the open buffer for a URI.
func (s *Store) Get(uri string) (*Buffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.docs[uri]
	return b, ok
}

// Close marks a document closed and forgets it.
func (s *Store) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.docs[uri]; ok {
		b.SetClosed()
		delete(s.docs, uri)
	}
}

// Len returns the number of open documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
