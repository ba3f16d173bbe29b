// Package marker owns the provenance marker literals and their rendering.
//
// The two marker strings are a stable on-disk contract: other tooling may
// scan files for them, so they are exported as named constants and must
// never drift. The classifier, diff resolver, and annotation writer all
// share this package.
package marker

import (
	"fmt"
	"strings"
)

// Marker literals written into source files. These appear verbatim inside
// a comment rendered in the target language's syntax.
const (
	// Start is the literal that opens an annotated block.
	Start = "AI_ASSISTED: true"
	// End is the literal that closes an annotated block.
	End = "AI_ASSISTED_END"
)

// Block is a matched start/end marker pair found in a file.
// Lines are zero-based; StartLine is the line holding the start marker,
// EndLine the line holding the end marker.
type Block struct {
	StartLine int
	EndLine   int
}

// Contains reports whether the half-open line range [from, to) falls
// entirely inside the block's marked span.
func (b Block) Contains(from, to int) bool {
	return from > b.StartLine && to <= b.EndLine
}

// ContainsMarker reports whether text carries either marker literal.
// Used by the classifier to ignore echoes of annotation writes and
// copy-pasted already-annotated code.
func ContainsMarker(text string) bool {
	return strings.Contains(text, Start) || strings.Contains(text, End)
}

// IsMarkerLine reports whether a single line carries either marker.
func IsMarkerLine(line string) bool {
	return strings.Contains(line, Start) || strings.Contains(line, End)
}

// Blocks scans full file text for matched start/end pairs, in order of
// appearance. An unmatched start marker (file still being written, or
// hand-edited markers) is dropped rather than paired across a later
// block's boundary.
func Blocks(text string) []Block {
	var blocks []Block
	openStart := -1
	for i, line := range strings.Split(text, "\n") {
		switch {
		case strings.Contains(line, Start):
			openStart = i
		case strings.Contains(line, End):
			if openStart >= 0 {
				blocks = append(blocks, Block{StartLine: openStart, EndLine: i})
				openStart = -1
			}
		}
	}
	return blocks
}

// LastEndLine returns the line index of the final end marker in text,
// or -1 when the file contains none.
func LastEndLine(text string) int {
	last := -1
	for i, line := range strings.Split(text, "\n") {
		if strings.Contains(line, End) {
			last = i
		}
	}
	return last
}

// StartBlock renders the start comment block for the given language.
// It carries three provenance lines: the assisted flag, the tool that
// produced the insertion, and the annotation identifier.
func StartBlock(languageID, tool, id string) string {
	style := StyleFor(languageID)
	lines := []string{
		Start,
		fmt.Sprintf("TOOL: %s", tool),
		fmt.Sprintf("ID: %s", id),
	}
	return style.wrap(lines)
}

// EndBlock renders the end comment block for the given language.
func EndBlock(languageID string) string {
	return StyleFor(languageID).wrap([]string{End})
}

// wrap renders marker lines in the style's comment syntax, with a
// trailing newline so the block occupies whole lines when inserted at a
// line start.
func (s Style) wrap(lines []string) string {
	var b strings.Builder
	if s.BlockStart != "" {
		for _, l := range lines {
			b.WriteString(s.BlockStart)
			b.WriteByte(' ')
			b.WriteString(l)
			b.WriteByte(' ')
			b.WriteString(s.BlockEnd)
			b.WriteByte('\n')
		}
		return b.String()
	}
	for _, l := range lines {
		b.WriteString(s.Line)
		b.WriteByte(' ')
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}
