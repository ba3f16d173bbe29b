// Package event defines the change-event and classification types shared
// across the provmark pipeline.
package event

import (
	"crypto/rand"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Classification is the verdict assigned to one observed insertion.
type Classification string

const (
	// ClassHuman indicates ordinary typing.
	ClassHuman Classification = "human"
	// ClassAILikely indicates a generated insertion worth annotating.
	ClassAILikely Classification = "ai_likely"
	// ClassPasted indicates clipboard content.
	ClassPasted Classification = "pasted"
	// ClassIgnored indicates an event rejected before any judgment.
	ClassIgnored Classification = "ignored"
)

// Position is a zero-based line/column location in a document.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ChangeEvent is one content-change sub-event reported by an editor.
// It is ephemeral: produced by the editor collaborator, consumed once
// by the classifier.
type ChangeEvent struct {
	URI            string    `json:"uri"`
	Start          Position  `json:"start"`
	ReplacedLength int       `json:"replaced_length"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

// LineCount returns the number of lines the inserted text spans.
func (c ChangeEvent) LineCount() int {
	if c.Text == "" {
		return 0
	}
	return strings.Count(c.Text, "\n") + 1
}

// Result is a classification produced by the detection engine.
// Only AILikely results are forwarded to the annotation writer.
type Result struct {
	Classification Classification `json:"classification"`
	URI            string         `json:"uri"`
	AnchorLine     int            `json:"anchor_line"`
	Text           string         `json:"text"`
	ChangeCount    int            `json:"change_count"`
	Reason         string         `json:"reason"`
	Timestamp      time.Time      `json:"timestamp"`
}

// FileKey normalizes a document URI to a key shared by alternate views
// of the same underlying file. Scheme and query/fragment decorations are
// stripped so a virtual view (e.g. a preview or git-indexed variant)
// coalesces with the buffer it mirrors.
func FileKey(uri string) string {
	s := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		s = u.Path
	}
	s = strings.TrimSuffix(s, ".git")
	return filepath.Clean(s)
}

// NewID returns a new lexically sortable annotation identifier.
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
