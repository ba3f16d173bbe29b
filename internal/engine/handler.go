package engine

import (
	"strings"

	"provmark/internal/annotate"
	"provmark/internal/document"
	"provmark/internal/event"
)

// The engine is both the IPC event handler and the writer's document
// source.
var (
	_ annotate.Source = (*Engine)(nil)
)

// HandleOpen registers an editor buffer and captures its content as the
// file's clean snapshot.
func (e *Engine) HandleOpen(uri, language, content string) {
	e.docs.Open(uri, language, content)
	e.writer.TakeSnapshot(uri, content)
	e.log.Debug("document opened", "uri", uri, "language", language)
}

// HandleChange mirrors the change into the open buffer, then classifies
// it. The buffer is updated first so the writer sees post-change content
// while the snapshot still holds the pre-change baseline.
func (e *Engine) HandleChange(change event.ChangeEvent) {
	doc, ok := e.docs.Get(change.URI)
	if !ok {
		doc = e.openLazily(change.URI)
	}
	doc.ApplyChange(change.Start.Line, change.Start.Column, change.ReplacedLength, change.Text)

	e.classifier.ProcessChange(doc, change)
}

// openLazily creates a buffer for a change that arrived before its open
// event, seeding it (and the snapshot) from disk when possible.
func (e *Engine) openLazily(uri string) *document.Buffer {
	if buf, err := document.OpenFile(stripScheme(uri)); err == nil {
		e.docs.Open(uri, buf.LanguageID(), buf.Text())
		e.writer.TakeSnapshot(uri, buf.Text())
	} else {
		e.docs.Open(uri, "", "")
	}
	doc, _ := e.docs.Get(uri)
	return doc
}

func stripScheme(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// HandleSave refreshes the buffer and snapshot with the saved content.
// A save without content keeps the buffer's mirror as the baseline.
func (e *Engine) HandleSave(uri, content string) {
	if content != "" {
		if doc, ok := e.docs.Get(uri); ok {
			doc.Sync(content)
		}
		e.writer.TakeSnapshot(uri, content)
		return
	}
	if doc, ok := e.docs.Get(uri); ok {
		e.writer.TakeSnapshot(uri, doc.Text())
	}
}

// HandleClose purges all per-file state.
func (e *Engine) HandleClose(uri string) {
	e.docs.Close(uri)
	e.writer.OnDocumentClosed(uri)
	e.log.Debug("document closed", "uri", uri)
}

// HandlePaste flags the paste-in-progress window on the clipboard
// heuristic.
func (e *Engine) HandlePaste() {
	e.clip.NotePaste()
}

// Acquire returns the document for a URI: the open editor buffer when
// one exists, otherwise the file read from disk (the watcher-triggered
// path).
func (e *Engine) Acquire(uri string) (annotate.Doc, error) {
	if doc, ok := e.docs.Get(uri); ok {
		return doc, nil
	}
	return document.OpenFile(stripScheme(uri))
}
