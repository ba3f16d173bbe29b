package annotate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provmark/internal/document"
	"provmark/internal/event"
	"provmark/internal/marker"
)

// fakeSource hands out pre-registered buffers by URI.
type fakeSource struct {
	docs map[string]*document.Buffer
}

func (s *fakeSource) Acquire(uri string) (Doc, error) {
	if d, ok := s.docs[uri]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("no document for %s", uri)
}

// fakeRecorder collects ledger records.
type fakeRecorder struct {
	records []Record
	err     error
}

func (r *fakeRecorder) Record(rec Record) error {
	r.records = append(r.records, rec)
	return r.err
}

// newTestDoc creates a buffer backed by a real temp file so Save has
// somewhere to write.
func newTestDoc(t *testing.T, name, content string) (string, *document.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	uri := "file://" + path
	return uri, document.NewBuffer(uri, "", content)
}

func newTestWriter(source Source, rec Recorder, cfg Config) *Writer {
	if cfg.Tool == "" {
		cfg.Tool = "provmark"
	}
	return NewWriter(cfg, source, NewSuppressionSet(), rec, nil)
}

func aiResult(uri, text string, changes int) event.Result {
	return event.Result{
		Classification: event.ClassAILikely,
		URI:            uri,
		Text:           text,
		ChangeCount:    changes,
		Reason:         "test insertion",
		Timestamp:      time.Now(),
	}
}

func TestAnnotateWrapsInsertedRange(t *testing.T) {
	uri, doc := newTestDoc(t, "main.go", "a\nb\nX\nY\nc\n")
	source := &fakeSource{docs: map[string]*document.Buffer{uri: doc}}
	rec := &fakeRecorder{}
	w := newTestWriter(source, rec, Config{Identifier: "alice"})
	w.TakeSnapshot(uri, "a\nb\nc\n")

	require.NoError(t, w.Annotate(aiResult(uri, "X\nY\n", 1)))

	text := doc.Text()
	blocks := marker.Blocks(text)
	require.Len(t, blocks, 1, "expected exactly one marker block, got:\n%s", text)

	lines := strings.Split(text, "\n")
	assert.Contains(t, lines[blocks[0].StartLine], marker.Start)
	assert.Contains(t, lines[blocks[0].EndLine], marker.End)
	assert.Contains(t, text, "TOOL: provmark")
	assert.Contains(t, text, "ID: alice")

	// The inserted lines sit strictly between the markers.
	var inside []string
	for i := blocks[0].StartLine + 1; i < blocks[0].EndLine; i++ {
		inside = append(inside, lines[i])
	}
	assert.Contains(t, inside, "X")
	assert.Contains(t, inside, "Y")

	// Save flushed the annotated content to disk.
	data, err := os.ReadFile(doc.Path())
	require.NoError(t, err)
	assert.Equal(t, text, string(data))
}

func TestAnnotateRecordsToLedger(t *testing.T) {
	uri, doc := newTestDoc(t, "main.go", "a\nNEW\nb\n")
	source := &fakeSource{docs: map[string]*document.Buffer{uri: doc}}
	rec := &fakeRecorder{}
	w := newTestWriter(source, rec, Config{})
	w.TakeSnapshot(uri, "a\nb\n")

	require.NoError(t, w.Annotate(aiResult(uri, "NEW\n", 3)))

	require.Len(t, rec.records, 1)
	r := rec.records[0]
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, doc.Path(), r.FilePath)
	assert.Equal(t, 3, r.ChangeCount)
	assert.Equal(t, event.ClassAILikely, r.Classification)
	assert.False(t, r.CreatedAt.IsZero())
}

func TestAnnotateSnapshotRefreshAfterWrite(t *testing.T) {
	uri, doc := newTestDoc(t, "main.go", "a\nNEW\nb\n")
	source := &fakeSource{docs: map[string]*document.Buffer{uri: doc}}
	w := newTestWriter(source, nil, Config{})
	w.TakeSnapshot(uri, "a\nb\n")

	require.NoError(t, w.Annotate(aiResult(uri, "NEW\n", 1)))

	snap, ok := w.Snapshot(uri)
	require.True(t, ok)
	assert.Equal(t, doc.Text(), snap, "snapshot must include the markers just written")
}

func TestAnnotateCooldownBlocksSecondWrite(t *testing.T) {
	uri, doc := newTestDoc(t, "main.go", "a\nNEW\nb\n")
	source := &fakeSource{docs: map[string]*document.Buffer{uri: doc}}
	w := newTestWriter(source, nil, Config{Cooldown: time.Hour})
	w.TakeSnapshot(uri, "a\nb\n")

	require.NoError(t, w.Annotate(aiResult(uri, "NEW\n", 1)))

	doc.Sync(doc.Text() + "MORE\n")
	err := w.Annotate(aiResult(uri, "MORE\n", 1))
	assert.ErrorIs(t, err, ErrCooldown)

	assert.Len(t, marker.Blocks(doc.Text()), 1, "cooldown-blocked write must not add markers")
}

func TestAnnotateAlreadyMarkedRangeAborts(t *testing.T) {
	content := strings.Join([]string{
		"a",
		"// " + marker.Start,
		"// TOOL: provmark",
		"// ID: unknown",
		"X",
		"// " + marker.End,
		"b",
		"",
	}, "\n")
	uri, doc := newTestDoc(t, "main.go", content)
	source := &fakeSource{docs: map[string]*document.Buffer{uri: doc}}
	w := newTestWriter(source, nil, Config{})
	w.TakeSnapshot(uri, "a\nb\n")

	err := w.Annotate(aiResult(uri, "X\n", 1))
	assert.ErrorIs(t, err, ErrAlreadyMarked)
	assert.Equal(t, content, doc.Text(), "already-marked abort must not edit the document")
}

func TestAnnotateUnseenMarkedFileDoesNotNestBlocks(t *testing.T) {
	// The watcher trigger path: the daemon never opened this file, so no
	// snapshot exists. The file already carries a block from an earlier
	// run plus unmarked trailing content; only the trailing content may
	// be wrapped, and the existing block must stay intact.
	trailing := strings.Join([]string{
		"tail line one generated",
		"tail line two generated",
		"tail line three generated",
		"tail line four generated",
		"",
	}, "\n")
	content := strings.Join([]string{
		"// " + marker.Start,
		"// TOOL: provmark",
		"// ID: unknown",
		"old marked code",
		"// " + marker.End,
	}, "\n") + "\n" + trailing
	uri, doc := newTestDoc(t, "gen.go", content)
	source := &fakeSource{docs: map[string]*document.Buffer{uri: doc}}
	w := newTestWriter(source, nil, Config{})

	require.NoError(t, w.Annotate(aiResult(uri, trailing, 1)))

	text := doc.Text()
	blocks := marker.Blocks(text)
	require.Len(t, blocks, 2, "expected the old block plus one new block:\n%s", text)
	assert.Greater(t, blocks[1].StartLine, blocks[0].EndLine,
		"new block must start after the existing block, not around it")

	lines := strings.Split(text, "\n")
	if lines[blocks[0].StartLine+3] != "old marked code" {
		t.Errorf("existing block content disturbed:\n%s", text)
	}
	assert.Contains(t, lines[blocks[1].StartLine+3], "tail line one generated")
}

func TestAnnotateEmptyRangeAborts(t *testing.T) {
	uri, doc := newTestDoc(t, "main.go", "a\nb\n")
	source := &fakeSource{docs: map[string]*document.Buffer{uri: doc}}
	w := newTestWriter(source, nil, Config{})
	w.TakeSnapshot(uri, "a\nb\n")

	err := w.Annotate(aiResult(uri, "vanished\n", 1))
	assert.ErrorIs(t, err, ErrEmptyRange)
}

func TestAnnotateClosedDocumentAborts(t *testing.T) {
	uri, doc := newTestDoc(t, "main.go", "a\nNEW\nb\n")
	doc.SetClosed()
	source := &fakeSource{docs: map[string]*document.Buffer{uri: doc}}
	w := newTestWriter(source, nil, Config{})
	w.TakeSnapshot(uri, "a\nb\n")

	err := w.Annotate(aiResult(uri, "NEW\n", 1))
	assert.ErrorIs(t, err, ErrDocumentClosed)
}

func TestAnnotateIgnoresNonAIResults(t *testing.T) {
	uri, doc := newTestDoc(t, "main.go", "a\nNEW\nb\n")
	source := &fakeSource{docs: map[string]*document.Buffer{uri: doc}}
	rec := &fakeRecorder{}
	w := newTestWriter(source, rec, Config{})
	w.TakeSnapshot(uri, "a\nb\n")

	for _, class := range []event.Classification{event.ClassHuman, event.ClassPasted, event.ClassIgnored} {
		res := aiResult(uri, "NEW\n", 1)
		res.Classification = class
		require.NoError(t, w.Annotate(res))
	}

	assert.Empty(t, marker.Blocks(doc.Text()))
	assert.Empty(t, rec.records)
}

func TestAnnotateSuppressionGrace(t *testing.T) {
	uri, doc := newTestDoc(t, "main.go", "a\nNEW\nb\n")
	source := &fakeSource{docs: map[string]*document.Buffer{uri: doc}}
	w := newTestWriter(source, nil, Config{SuppressGrace: 150 * time.Millisecond})
	w.TakeSnapshot(uri, "a\nb\n")

	require.NoError(t, w.Annotate(aiResult(uri, "NEW\n", 1)))

	key := event.FileKey(uri)
	assert.True(t, w.Suppression().Suppressed(key), "file stays suppressed during the grace window")

	deadline := time.Now().Add(2 * time.Second)
	for w.Suppression().Suppressed(key) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.False(t, w.Suppression().Suppressed(key), "suppression must lift after the grace window")
}

func TestAnnotateLedgerFailureDoesNotRevert(t *testing.T) {
	uri, doc := newTestDoc(t, "main.go", "a\nNEW\nb\n")
	source := &fakeSource{docs: map[string]*document.Buffer{uri: doc}}
	rec := &fakeRecorder{err: fmt.Errorf("disk full")}
	w := newTestWriter(source, rec, Config{})
	w.TakeSnapshot(uri, "a\nb\n")

	require.NoError(t, w.Annotate(aiResult(uri, "NEW\n", 1)), "ledger failure is best-effort")
	assert.Len(t, marker.Blocks(doc.Text()), 1)
}

func TestOnDocumentClosedPurgesState(t *testing.T) {
	uri, doc := newTestDoc(t, "main.go", "a\nNEW\nb\n")
	source := &fakeSource{docs: map[string]*document.Buffer{uri: doc}}
	w := newTestWriter(source, nil, Config{})
	w.TakeSnapshot(uri, "a\nb\n")
	require.NoError(t, w.Annotate(aiResult(uri, "NEW\n", 1)))

	w.OnDocumentClosed(uri)

	_, ok := w.Snapshot(uri)
	assert.False(t, ok, "snapshot must be purged on close")
	assert.False(t, w.Suppression().Suppressed(event.FileKey(uri)))
}
